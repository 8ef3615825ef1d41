package config

import (
	"os"
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.GRPCAddr != ":8081" {
		t.Errorf("GRPCAddr = %q, want %q", cfg.GRPCAddr, ":8081")
	}
	if cfg.ServiceName != "discord-stats" {
		t.Errorf("ServiceName = %q, want discord-stats", cfg.ServiceName)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
	if cfg.InfluxInterval() != time.Minute {
		t.Errorf("InfluxInterval = %v, want 1m", cfg.InfluxInterval())
	}
	if cfg.LeaderboardInterval() != 30*time.Minute {
		t.Errorf("LeaderboardInterval = %v, want 30m", cfg.LeaderboardInterval())
	}
	if cfg.HookTimeout() != 5*time.Second {
		t.Errorf("HookTimeout = %v, want 5s", cfg.HookTimeout())
	}
	if cfg.TopggBaseURL != "https://top.gg/api" {
		t.Errorf("TopggBaseURL = %q", cfg.TopggBaseURL)
	}
	if cfg.BotEventsTopic != "discord-bot-events" {
		t.Errorf("BotEventsTopic = %q", cfg.BotEventsTopic)
	}
	if cfg.KafkaGroupID != "discord-stats" {
		t.Errorf("KafkaGroupID = %q", cfg.KafkaGroupID)
	}
	if cfg.InfluxEnabled || cfg.TopggEnabled {
		t.Error("sinks should default to disabled")
	}
	if cfg.KafkaBrokersList() != nil {
		t.Errorf("KafkaBrokersList = %v, want nil", cfg.KafkaBrokersList())
	}
}

func TestLoad_EnvVarOverride(t *testing.T) {
	os.Clearenv()
	os.Setenv("GRPC_ADDR", ":9090")
	os.Setenv("INFLUX_REPORT_INTERVAL_MS", "15000")
	os.Setenv("TOPGG_REPORT_INTERVAL_MS", "0")
	os.Setenv("TOPGG_INCLUDE_SHARD_COUNT", "true")
	os.Setenv("EXTENSION_HOOK_TIMEOUT", "750ms")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.GRPCAddr != ":9090" {
		t.Errorf("GRPCAddr = %q, want %q", cfg.GRPCAddr, ":9090")
	}
	if cfg.InfluxInterval() != 15*time.Second {
		t.Errorf("InfluxInterval = %v, want 15s", cfg.InfluxInterval())
	}
	if cfg.LeaderboardInterval() != 0 {
		t.Errorf("LeaderboardInterval = %v, want 0", cfg.LeaderboardInterval())
	}
	if !cfg.TopggIncludeShardCount {
		t.Error("TopggIncludeShardCount should be true")
	}
	if cfg.HookTimeout() != 750*time.Millisecond {
		t.Errorf("HookTimeout = %v, want 750ms", cfg.HookTimeout())
	}
}

func TestLoad_InfluxEnabledRequiresConnection(t *testing.T) {
	os.Clearenv()
	os.Setenv("INFLUX_ENABLED", "true")
	os.Setenv("INFLUX_URL", "http://localhost:8086")

	_, err := Load()
	if err == nil {
		t.Fatal("Load should fail when influx is enabled without token/org/bucket")
	}
	for _, key := range []string{"INFLUX_TOKEN", "INFLUX_ORG", "INFLUX_BUCKET"} {
		if !strings.Contains(err.Error(), key) {
			t.Errorf("error %q should name %s", err, key)
		}
	}
	if strings.Contains(err.Error(), "INFLUX_URL") {
		t.Errorf("error %q should not name INFLUX_URL", err)
	}
}

func TestLoad_InfluxEnabledComplete(t *testing.T) {
	os.Clearenv()
	os.Setenv("INFLUX_ENABLED", "true")
	os.Setenv("INFLUX_URL", "http://localhost:8086")
	os.Setenv("INFLUX_TOKEN", "tok")
	os.Setenv("INFLUX_ORG", "org")
	os.Setenv("INFLUX_BUCKET", "bot")

	if _, err := Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
}

func TestLoad_LeaderboardEnabledWithoutToken(t *testing.T) {
	os.Clearenv()
	os.Setenv("TOPGG_ENABLED", "true")

	_, err := Load()
	if err == nil {
		t.Fatal("Load should fail when the leaderboard is enabled without TOPGG_TOKEN")
	}
	if !strings.HasPrefix(err.Error(), "config:") {
		t.Errorf("error %q should carry the config prefix", err)
	}
}

func TestLoad_NegativeIntervals(t *testing.T) {
	for _, key := range []string{"INFLUX_REPORT_INTERVAL_MS", "TOPGG_REPORT_INTERVAL_MS"} {
		t.Run(key, func(t *testing.T) {
			os.Clearenv()
			os.Setenv(key, "-1")
			if _, err := Load(); err == nil {
				t.Errorf("Load should reject negative %s", key)
			}
		})
	}
}

func TestLoad_InvalidHookTimeout(t *testing.T) {
	for _, value := range []string{"soon", "0s", "-2s"} {
		t.Run(value, func(t *testing.T) {
			os.Clearenv()
			os.Setenv("EXTENSION_HOOK_TIMEOUT", value)
			if _, err := Load(); err == nil {
				t.Errorf("Load should reject EXTENSION_HOOK_TIMEOUT=%q", value)
			}
		})
	}
}

func TestHookTimeout_FallsBackWhenInvalid(t *testing.T) {
	cfg := &Config{ExtensionHookTimeout: "never"}
	if got := cfg.HookTimeout(); got != 5*time.Second {
		t.Errorf("HookTimeout = %v, want 5s", got)
	}
}

func TestKafkaBrokersList(t *testing.T) {
	cfg := &Config{KafkaBrokers: " broker1:9092, ,broker2:9092 "}
	got := cfg.KafkaBrokersList()
	if len(got) != 2 || got[0] != "broker1:9092" || got[1] != "broker2:9092" {
		t.Errorf("KafkaBrokersList = %v", got)
	}
	var nilCfg *Config
	if nilCfg.KafkaBrokersList() != nil {
		t.Error("nil config should yield nil brokers")
	}
}

func TestInfluxTagSet(t *testing.T) {
	testCases := []struct {
		name string
		raw  string
		want map[string]string
	}{
		{"empty", "", map[string]string{}},
		{"pairs", "env=prod, region = eu", map[string]string{"env": "prod", "region": "eu"}},
		{"malformed skipped", "env=prod,broken,=x,y=", map[string]string{"env": "prod"}},
		{"value with equals", "q=a=b", map[string]string{"q": "a=b"}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := (&Config{InfluxTags: tc.raw}).InfluxTagSet()
			if len(got) != len(tc.want) {
				t.Fatalf("InfluxTagSet = %v, want %v", got, tc.want)
			}
			for k, v := range tc.want {
				if got[k] != v {
					t.Errorf("tag %q = %q, want %q", k, got[k], v)
				}
			}
		})
	}
}
