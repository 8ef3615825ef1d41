// Package config loads and validates the daemon's config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// Env is the application environment ("development", "production"). Selects the log encoder.
	Env string `mapstructure:"APP_ENV"`
	// LogLevel is a zap level name (debug, info, warn, error).
	LogLevel string `mapstructure:"LOG_LEVEL"`
	// GRPCAddr is the address the gRPC health server listens on (e.g. :8081).
	GRPCAddr    string `mapstructure:"GRPC_ADDR"`
	ServiceName string `mapstructure:"SERVICE_NAME"`

	// OTLPEndpoint enables trace, metric and log export when set.
	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTLPInsecure bool   `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`

	InfluxEnabled bool   `mapstructure:"INFLUX_ENABLED"`
	InfluxURL     string `mapstructure:"INFLUX_URL"`
	InfluxToken   string `mapstructure:"INFLUX_TOKEN"`
	InfluxOrg     string `mapstructure:"INFLUX_ORG"`
	InfluxBucket  string `mapstructure:"INFLUX_BUCKET"`
	// InfluxTags is a comma-separated list of k=v pairs attached to every point.
	InfluxTags string `mapstructure:"INFLUX_TAGS"`
	// InfluxIntervalMs is the Influx reporting interval; 0 disables the schedule.
	InfluxIntervalMs int64 `mapstructure:"INFLUX_REPORT_INTERVAL_MS"`

	TopggEnabled bool   `mapstructure:"TOPGG_ENABLED"`
	TopggToken   string `mapstructure:"TOPGG_TOKEN"`
	TopggBaseURL string `mapstructure:"TOPGG_BASE_URL"`
	// TopggIntervalMs is the leaderboard reporting interval; 0 disables the schedule.
	TopggIntervalMs        int64 `mapstructure:"TOPGG_REPORT_INTERVAL_MS"`
	TopggIncludeShardCount bool  `mapstructure:"TOPGG_INCLUDE_SHARD_COUNT"`

	// ExtensionHookTimeout bounds the extension hook per Influx cycle (e.g. "5s").
	ExtensionHookTimeout string `mapstructure:"EXTENSION_HOOK_TIMEOUT"`

	// KafkaBrokers is a comma-separated list of brokers. Empty disables event ingest.
	KafkaBrokers   string `mapstructure:"KAFKA_BROKERS"`
	BotEventsTopic string `mapstructure:"BOT_EVENTS_TOPIC"`
	KafkaGroupID   string `mapstructure:"KAFKA_GROUP_ID"`

	// LokiURL enables the cycle journal in Loki (e.g. http://localhost:3100).
	LokiURL string `mapstructure:"LOKI_URL"`
	// ApplicationID seeds the bot identity before a ready event arrives.
	ApplicationID string `mapstructure:"APPLICATION_ID"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("APP_ENV", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("GRPC_ADDR", ":8081")
	v.SetDefault("SERVICE_NAME", "discord-stats")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("INFLUX_ENABLED", false)
	v.SetDefault("INFLUX_URL", "")
	v.SetDefault("INFLUX_TOKEN", "")
	v.SetDefault("INFLUX_ORG", "")
	v.SetDefault("INFLUX_BUCKET", "")
	v.SetDefault("INFLUX_TAGS", "")
	v.SetDefault("INFLUX_REPORT_INTERVAL_MS", 60000)
	v.SetDefault("TOPGG_ENABLED", false)
	v.SetDefault("TOPGG_TOKEN", "")
	v.SetDefault("TOPGG_BASE_URL", "https://top.gg/api")
	v.SetDefault("TOPGG_REPORT_INTERVAL_MS", 1800000)
	v.SetDefault("TOPGG_INCLUDE_SHARD_COUNT", false)
	v.SetDefault("EXTENSION_HOOK_TIMEOUT", "5s")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("BOT_EVENTS_TOPIC", "discord-bot-events")
	v.SetDefault("KAFKA_GROUP_ID", "discord-stats")
	v.SetDefault("LOKI_URL", "")
	v.SetDefault("APPLICATION_ID", "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.GRPCAddr == "" {
		return errors.New("config: GRPC_ADDR must be set")
	}
	if c.InfluxIntervalMs < 0 {
		return errors.New("config: INFLUX_REPORT_INTERVAL_MS must not be negative")
	}
	if c.TopggIntervalMs < 0 {
		return errors.New("config: TOPGG_REPORT_INTERVAL_MS must not be negative")
	}
	if c.InfluxEnabled {
		var missing []string
		for _, f := range []struct{ name, value string }{
			{"INFLUX_URL", c.InfluxURL},
			{"INFLUX_TOKEN", c.InfluxToken},
			{"INFLUX_ORG", c.InfluxOrg},
			{"INFLUX_BUCKET", c.InfluxBucket},
		} {
			if strings.TrimSpace(f.value) == "" {
				missing = append(missing, f.name)
			}
		}
		if len(missing) > 0 {
			return errors.New("config: INFLUX_ENABLED requires " + strings.Join(missing, ", "))
		}
	}
	if c.TopggEnabled && strings.TrimSpace(c.TopggToken) == "" {
		return errors.New("config: TOPGG_ENABLED requires TOPGG_TOKEN")
	}
	if c.ExtensionHookTimeout != "" {
		if d, err := time.ParseDuration(c.ExtensionHookTimeout); err != nil || d <= 0 {
			return errors.New("config: EXTENSION_HOOK_TIMEOUT must be a positive duration")
		}
	}
	return nil
}

// InfluxInterval returns the Influx reporting interval. 0 means the schedule is off.
func (c *Config) InfluxInterval() time.Duration {
	return time.Duration(c.InfluxIntervalMs) * time.Millisecond
}

// LeaderboardInterval returns the leaderboard reporting interval. 0 means the schedule is off.
func (c *Config) LeaderboardInterval() time.Duration {
	return time.Duration(c.TopggIntervalMs) * time.Millisecond
}

// HookTimeout parses ExtensionHookTimeout. Returns 5s if unset or invalid.
func (c *Config) HookTimeout() time.Duration {
	d, err := time.ParseDuration(c.ExtensionHookTimeout)
	if err != nil || d <= 0 {
		return 5 * time.Second
	}
	return d
}

// KafkaBrokersList returns Kafka broker addresses from the comma-separated config.
// An empty list disables event ingest.
func (c *Config) KafkaBrokersList() []string {
	if c == nil || c.KafkaBrokers == "" {
		return nil
	}
	return splitList(c.KafkaBrokers)
}

// InfluxTagSet parses InfluxTags ("env=prod,region=eu") into a map. Malformed pairs are skipped.
func (c *Config) InfluxTagSet() map[string]string {
	tags := map[string]string{}
	if c == nil {
		return tags
	}
	for _, pair := range splitList(c.InfluxTags) {
		k, v, ok := strings.Cut(pair, "=")
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)
		if !ok || k == "" || v == "" {
			continue
		}
		tags[k] = v
	}
	return tags
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
