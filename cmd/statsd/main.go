// Statsd consumes bot events from Kafka and reports process, command and gateway statistics to
// InfluxDB and the bot listing service on independent schedules. gRPC health is served on GRPC_ADDR.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/BR88C/discord-boilerplate/internal/config"
	"github.com/BR88C/discord-boilerplate/internal/gateway"
	healthhandler "github.com/BR88C/discord-boilerplate/internal/health/handler"
	"github.com/BR88C/discord-boilerplate/internal/ingest"
	"github.com/BR88C/discord-boilerplate/internal/logging"
	"github.com/BR88C/discord-boilerplate/internal/process"
	"github.com/BR88C/discord-boilerplate/internal/rest"
	"github.com/BR88C/discord-boilerplate/internal/server"
	"github.com/BR88C/discord-boilerplate/internal/stats/collector"
	"github.com/BR88C/discord-boilerplate/internal/stats/reporter"
	"github.com/BR88C/discord-boilerplate/internal/stats/sink/influx"
	"github.com/BR88C/discord-boilerplate/internal/stats/sink/leaderboard"
	"github.com/BR88C/discord-boilerplate/internal/tally"
	"github.com/BR88C/discord-boilerplate/internal/telemetry"
	"github.com/BR88C/discord-boilerplate/internal/telemetry/loki"
	telemetryotel "github.com/BR88C/discord-boilerplate/internal/telemetry/otel"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Error("statsd: exiting", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	providers, err := telemetryotel.NewProviders(ctx, telemetryotel.Options{
		Endpoint:    cfg.OTLPEndpoint,
		ServiceName: cfg.ServiceName,
		Insecure:    cfg.OTLPInsecure,
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	providers.SetGlobal()

	emitters := []telemetry.EventEmitter{telemetryotel.NewEventEmitter(providers.LoggerProvider)}
	if cfg.LokiURL != "" {
		emitters = append(emitters, loki.NewEmitter(loki.NewClient(cfg.LokiURL)))
	}
	emitter := telemetry.Multi(emitters...)

	tracker := gateway.NewTracker()
	if cfg.ApplicationID != "" {
		tracker.SetApplicationID(cfg.ApplicationID)
	}
	commands := tally.NewCommands()

	sinks, err := buildSinks(cfg, tracker)
	if err != nil {
		return err
	}
	defer sinks.close()

	rep := reporter.New(reporter.Config{
		Influx:              sinks.influx,
		InfluxInterval:      cfg.InfluxInterval(),
		Leaderboard:         sinks.leaderboard,
		LeaderboardInterval: cfg.LeaderboardInterval(),
		HookTimeout:         cfg.HookTimeout(),
	}, reporter.Deps{
		Collector: collector.New(tracker, logger),
		Commands:  commands,
		CPU:       process.NewSampler(),
		Memory:    process.ResidentMemory,
		Emitter:   emitter,
		Logger:    logger,
		Tracer:    providers.Tracer(),
		Meter:     providers.Meter(),
	})

	health := healthhandler.NewServer(logger)
	var wg sync.WaitGroup
	var consumer *ingest.Consumer
	if brokers := cfg.KafkaBrokersList(); len(brokers) > 0 {
		reader := ingest.NewReader(ingest.ReaderConfig{
			Brokers: brokers,
			Topic:   cfg.BotEventsTopic,
			GroupID: cfg.KafkaGroupID,
		})
		consumer = ingest.NewConsumer(reader, ingest.NewHandler(tracker, commands, logger), logger)
		health.AddChecker("ingest", consumer)
		rep.RegisterExtensionHook(consumer.Records)
		wg.Add(1)
		go func() {
			defer wg.Done()
			logger.Info("statsd: consuming bot events",
				zap.String("topic", cfg.BotEventsTopic), zap.String("group", cfg.KafkaGroupID))
			_ = consumer.Run(ctx)
		}()
	} else {
		logger.Warn("statsd: KAFKA_BROKERS not set, bot event ingest disabled")
	}

	grpcServer := server.New(server.Deps{Health: health, Logger: logger})
	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	serveErr := make(chan error, 1)
	go func() {
		logger.Info("statsd: gRPC health listening", zap.String("addr", cfg.GRPCAddr))
		if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			serveErr <- err
		}
	}()

	rep.Start(ctx)

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("statsd: shutting down")
	case err := <-serveErr:
		runErr = fmt.Errorf("serve: %w", err)
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	grpcServer.GracefulStop()
	wg.Wait()
	if consumer != nil {
		if err := consumer.Close(); err != nil {
			logger.Warn("statsd: close kafka reader", zap.Error(err))
		}
	}
	if err := rep.Stop(shutdownCtx); err != nil {
		logger.Warn("statsd: reporter stop", zap.Error(err))
	}
	time.Sleep(telemetry.ShutdownDrainDuration)
	if err := providers.Shutdown(shutdownCtx); err != nil {
		logger.Warn("statsd: otel shutdown", zap.Error(err))
	}
	logger.Info("statsd: stopped")
	return runErr
}

type sinkSet struct {
	influx      reporter.Sink
	leaderboard reporter.Sink
	closers     []func()
}

func (s *sinkSet) close() {
	for _, c := range s.closers {
		c()
	}
}

// buildSinks constructs the enabled sinks. The leaderboard's REST responses feed the tracker's
// response-code tally.
func buildSinks(cfg *config.Config, tracker *gateway.Tracker) (*sinkSet, error) {
	set := &sinkSet{}
	if cfg.InfluxEnabled {
		s, err := influx.New(influx.Config{
			URL:    cfg.InfluxURL,
			Token:  cfg.InfluxToken,
			Org:    cfg.InfluxOrg,
			Bucket: cfg.InfluxBucket,
			Tags:   cfg.InfluxTagSet(),
		})
		if err != nil {
			return nil, err
		}
		set.influx = s
		set.closers = append(set.closers, s.Close)
	}
	if cfg.TopggEnabled {
		baseURL := cfg.TopggBaseURL
		if baseURL == "" {
			baseURL = leaderboard.DefaultBaseURL
		}
		s, err := leaderboard.New(rest.NewClient(baseURL, tracker), leaderboard.Config{
			Token:             cfg.TopggToken,
			IncludeShardCount: cfg.TopggIncludeShardCount,
		})
		if err != nil {
			return nil, err
		}
		set.leaderboard = s
	}
	return set, nil
}
