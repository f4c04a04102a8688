package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if !cfg.ErrorLog.EnableConsole || !cfg.ErrorLog.EnableLocalStore {
		t.Error("console and local store channels should be enabled by default")
	}
	if cfg.ErrorLog.EnableAPI {
		t.Error("API channel should be disabled by default")
	}
	if cfg.ErrorLog.MaxLocalEntries != 50 {
		t.Errorf("MaxLocalEntries = %d, want 50", cfg.ErrorLog.MaxLocalEntries)
	}
	if cfg.ErrorLog.Level != "error" {
		t.Errorf("Level = %q, want error", cfg.ErrorLog.Level)
	}
	if cfg.Store.Key != "appErrorLogs" || cfg.Store.SessionKey != "errorLoggerSessionId" {
		t.Errorf("unexpected storage keys: %q, %q", cfg.Store.Key, cfg.Store.SessionKey)
	}
	if cfg.Store.SessionTTL != 30*time.Minute {
		t.Errorf("SessionTTL = %v, want 30m", cfg.Store.SessionTTL)
	}
	if cfg.Development() {
		t.Error("default APP_ENV should not be development")
	}
	if cfg.Collector.Sink != "postgres" || cfg.Collector.KafkaTopic != "error-reports" {
		t.Errorf("unexpected collector sink defaults: %q %q", cfg.Collector.Sink, cfg.Collector.KafkaTopic)
	}
	if cfg.Diagnostics.JWTSecret != "" || cfg.Diagnostics.TokenTTL != time.Hour {
		t.Errorf("unexpected diagnostics defaults: %+v", cfg.Diagnostics)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("ERRORLOG_ENABLE_API", "true")
	t.Setenv("ERRORLOG_API_ENDPOINT", "http://collector/errors")
	t.Setenv("ERRORLOG_MAX_LOCAL_ENTRIES", "5")
	t.Setenv("APP_ENV", "Development")
	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("COLLECTOR_SINK", "kafka")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !cfg.ErrorLog.EnableAPI || cfg.ErrorLog.APIEndpoint != "http://collector/errors" {
		t.Errorf("API overrides not applied: %+v", cfg.ErrorLog)
	}
	if cfg.ErrorLog.MaxLocalEntries != 5 {
		t.Errorf("MaxLocalEntries = %d, want 5", cfg.ErrorLog.MaxLocalEntries)
	}
	if !cfg.Development() {
		t.Error("APP_ENV=Development should enable development mode")
	}
	if len(cfg.Collector.KafkaBrokers) != 2 || cfg.Collector.KafkaBrokers[1] != "k2:9092" {
		t.Errorf("KafkaBrokers = %v", cfg.Collector.KafkaBrokers)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"file backend", func(c *Config) { c.Store.Backend = "file" }, false},
		{"unknown backend", func(c *Config) { c.Store.Backend = "s3" }, true},
		{"redis without address", func(c *Config) { c.Store.Backend = "redis" }, true},
		{"redis with address", func(c *Config) { c.Store.Backend = "redis"; c.Store.RedisAddr = "redis://localhost:6379" }, false},
		{"negative capacity", func(c *Config) { c.Store.Backend = "none"; c.ErrorLog.MaxLocalEntries = -1 }, true},
		{"kafka sink without brokers", func(c *Config) { c.Store.Backend = "none"; c.Collector.Sink = "kafka" }, true},
		{"kafka sink with brokers", func(c *Config) {
			c.Store.Backend = "none"
			c.Collector.Sink = "kafka"
			c.Collector.KafkaBrokers = []string{"localhost:9092"}
		}, false},
		{"unknown sink", func(c *Config) { c.Store.Backend = "none"; c.Collector.Sink = "s3" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{}
			tt.mutate(cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestPIIFieldList(t *testing.T) {
	c := ErrorLogConfig{PIIFields: " email, ,ssn,"}
	got := c.PIIFieldList()
	if len(got) != 2 || got[0] != "email" || got[1] != "ssn" {
		t.Errorf("PIIFieldList() = %v", got)
	}
}
