package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`
	AppEnv    string `env:"APP_ENV" envDefault:"production"`

	ErrorLog ErrorLogConfig
	Store    StoreConfig
	Boundary BoundaryConfig
	Sentry   SentryConfig

	DemoServerAddr  string `env:"DEMO_SERVER_ADDR" envDefault:":3000"`
	AdminServerAddr string `env:"ADMIN_SERVER_ADDR" envDefault:":9091"`

	Collector   CollectorConfig
	Diagnostics DiagnosticsConfig
}

// ErrorLogConfig configures the ErrorLogger channels.
type ErrorLogConfig struct {
	EnableConsole    bool          `env:"ERRORLOG_ENABLE_CONSOLE" envDefault:"true"`
	EnableLocalStore bool          `env:"ERRORLOG_ENABLE_LOCAL_STORE" envDefault:"true"`
	EnableAPI        bool          `env:"ERRORLOG_ENABLE_API" envDefault:"false"`
	EnableSentry     bool          `env:"ERRORLOG_ENABLE_SENTRY" envDefault:"false"`
	APIEndpoint      string        `env:"ERRORLOG_API_ENDPOINT"`
	APIKey           string        `env:"ERRORLOG_API_KEY"`
	APITimeout       time.Duration `env:"ERRORLOG_API_TIMEOUT" envDefault:"0s"` // 0 keeps the HTTP client default
	MaxLocalEntries  int           `env:"ERRORLOG_MAX_LOCAL_ENTRIES" envDefault:"50"`
	Level            string        `env:"ERRORLOG_LEVEL" envDefault:"error"`
	PIIFields        string        `env:"ERRORLOG_PII_FIELDS" envDefault:"email,password,ssn,phone,income,account_number"`
}

// StoreConfig selects and configures the local log store and session store.
type StoreConfig struct {
	Backend    string        `env:"STORE_BACKEND" envDefault:"file"` // file, redis, memory, none
	Dir        string        `env:"STORE_DIR" envDefault:"./data"`
	Key        string        `env:"STORE_KEY" envDefault:"appErrorLogs"`
	SessionKey string        `env:"SESSION_KEY" envDefault:"errorLoggerSessionId"`
	SessionTTL time.Duration `env:"SESSION_TTL" envDefault:"30m"`
	RedisAddr  string        `env:"REDIS_ADDR"`
}

// BoundaryConfig configures the failure boundary mounted by the demo host.
type BoundaryConfig struct {
	LogLevel    string `env:"BOUNDARY_LOG_LEVEL" envDefault:"localStorage"`
	APIEndpoint string `env:"BOUNDARY_API_ENDPOINT"`
}

// SentryConfig configures the optional Sentry channel.
type SentryConfig struct {
	DSN          string        `env:"SENTRY_DSN"`
	FlushTimeout time.Duration `env:"SENTRY_FLUSH_TIMEOUT" envDefault:"2s"`
}

// CollectorConfig configures the reference error-report collector.
type CollectorConfig struct {
	Addr           string        `env:"COLLECTOR_ADDR" envDefault:":8080"`
	Sink           string        `env:"COLLECTOR_SINK" envDefault:"postgres"` // postgres, kafka
	PostgresURL    string        `env:"POSTGRES_URL"`
	KafkaBrokers   []string      `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopic     string        `env:"KAFKA_TOPIC" envDefault:"error-reports"`
	MaxReportSize  int64         `env:"MAX_REPORT_SIZE_BYTES" envDefault:"1048576"` // 1MB
	RequireAPIKey  bool          `env:"COLLECTOR_REQUIRE_API_KEY" envDefault:"false"`
	APIKeyCacheTTL time.Duration `env:"API_KEY_CACHE_TTL" envDefault:"5m"`
}

// DiagnosticsConfig protects the local store endpoints of the demo host.
// An empty secret leaves them open.
type DiagnosticsConfig struct {
	JWTSecret string        `env:"DIAGNOSTICS_JWT_SECRET"`
	TokenTTL  time.Duration `env:"DIAGNOSTICS_TOKEN_TTL" envDefault:"1h"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	// Attempt to load .env file for local development.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks values env tags cannot express.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case "file", "redis", "memory", "none":
	default:
		return fmt.Errorf("unsupported STORE_BACKEND %q", c.Store.Backend)
	}
	if c.Store.Backend == "redis" && c.Store.RedisAddr == "" {
		return fmt.Errorf("REDIS_ADDR is required when STORE_BACKEND=redis")
	}
	switch c.Collector.Sink {
	case "", "postgres":
	case "kafka":
		if len(c.Collector.KafkaBrokers) == 0 {
			return fmt.Errorf("KAFKA_BROKERS is required when COLLECTOR_SINK=kafka")
		}
	default:
		return fmt.Errorf("unsupported COLLECTOR_SINK %q", c.Collector.Sink)
	}
	if c.ErrorLog.MaxLocalEntries < 0 {
		return fmt.Errorf("ERRORLOG_MAX_LOCAL_ENTRIES must not be negative")
	}
	return nil
}

// Development reports whether recovery views may disclose failure details.
func (c *Config) Development() bool {
	return strings.EqualFold(c.AppEnv, "development")
}

// PIIFieldList splits the configured PII field names.
func (c *ErrorLogConfig) PIIFieldList() []string {
	var out []string
	for _, f := range strings.Split(c.PIIFields, ",") {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}
