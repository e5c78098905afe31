package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for feedback-engine.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords, API keys) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"8080"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	BaseURL  string `yaml:"base_url" env:"BASE_URL" env-default:""` // Auto-derived from Port if empty
	Version  string `yaml:"-"`                                      // Set at load time, not from config

	// Database configuration (PostgreSQL)
	Database DatabaseConfig `yaml:"database"`

	// MigrationsPath is the directory containing SQL migrations.
	MigrationsPath string `yaml:"migrations_path" env:"MIGRATIONS_PATH" env-default:"migrations"`

	// Redis configuration for the stats cache (optional).
	Redis RedisConfig `yaml:"redis"`

	// Classifier capability configuration
	Classifier ClassifierConfig `yaml:"classifier"`

	// Pipeline (worker pool) configuration
	Pipeline PipelineConfig `yaml:"pipeline"`
}

// DatabaseConfig holds PostgreSQL database configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"feedback"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"feedback_engine"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
}

// URL builds a PostgreSQL connection URL from the configuration.
func (c *DatabaseConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(c.User), url.QueryEscape(c.Password),
		c.Host, c.Port, c.Database, c.SSLMode)
}

// RedisConfig holds Redis configuration for the stats cache.
// Caching is disabled when Host is empty.
type RedisConfig struct {
	Host     string        `yaml:"host" env:"REDIS_HOST" env-default:""`
	Port     int           `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
	Password string        `yaml:"-" env:"REDIS_PASSWORD"` // Secret - not in YAML
	DB       int           `yaml:"db" env:"REDIS_DB" env-default:"0"`
	StatsTTL time.Duration `yaml:"stats_ttl" env:"REDIS_STATS_TTL" env-default:"15m"`
}

// ClassifierConfig configures the external classification capability.
// Provider selects the backend: "openai", "anthropic" or "lexicon".
// The lexicon provider classifies locally with no network dependency and is
// the default so the pipeline works out of the box.
type ClassifierConfig struct {
	Provider string `yaml:"provider" env:"CLASSIFIER_PROVIDER" env-default:"lexicon"`
	Endpoint string `yaml:"endpoint" env:"CLASSIFIER_ENDPOINT" env-default:"https://api.openai.com/v1"`
	Model    string `yaml:"model" env:"CLASSIFIER_MODEL" env-default:"gpt-4o-mini"`
	APIKey   string `yaml:"-" env:"CLASSIFIER_API_KEY"` // Secret - not in YAML

	// Timeout bounds a single Classify call, distinct from retry policy.
	Timeout time.Duration `yaml:"timeout" env:"CLASSIFIER_TIMEOUT" env-default:"30s"`
}

// PipelineConfig configures the analysis worker pool and task queue.
type PipelineConfig struct {
	// Workers caps simultaneous in-flight Classify calls.
	Workers int `yaml:"workers" env:"PIPELINE_WORKERS" env-default:"16"`

	// PollInterval is how long an idle worker waits before checking the
	// queue again.
	PollInterval time.Duration `yaml:"poll_interval" env:"PIPELINE_POLL_INTERVAL" env-default:"1s"`

	// MaxAttempts is the delivery attempt ceiling per task; once exhausted
	// the row is marked permanently failed.
	MaxAttempts int `yaml:"max_attempts" env:"PIPELINE_MAX_ATTEMPTS" env-default:"3"`

	// InitialBackoff and MaxBackoff bound the exponential redelivery delay.
	InitialBackoff time.Duration `yaml:"initial_backoff" env:"PIPELINE_INITIAL_BACKOFF" env-default:"2s"`
	MaxBackoff     time.Duration `yaml:"max_backoff" env:"PIPELINE_MAX_BACKOFF" env-default:"30s"`

	// StalledAfter is the visibility timeout: a claimed task older than this
	// is assumed orphaned by a crashed worker and released for redelivery.
	StalledAfter time.Duration `yaml:"stalled_after" env:"PIPELINE_STALLED_AFTER" env-default:"5m"`

	// SweepInterval drives the stalled-task release and the re-enqueue sweep
	// for batches whose initial enqueue failed.
	SweepInterval time.Duration `yaml:"sweep_interval" env:"PIPELINE_SWEEP_INTERVAL" env-default:"1m"`
}

// Load reads configuration from config.yaml with environment variable overrides.
// The version parameter is injected at build time and set on the returned Config.
// If config.yaml does not exist, configuration comes from environment variables
// and defaults alone.
func Load(version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if _, err := os.Stat("config.yaml"); err == nil {
		if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
			return nil, fmt.Errorf("failed to read config.yaml: %w", err)
		}
	} else {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = (&url.URL{
			Scheme: "http",
			Host:   "localhost:" + cfg.Port,
		}).String()
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Pipeline.Workers < 1 {
		return fmt.Errorf("pipeline workers must be at least 1, got %d", c.Pipeline.Workers)
	}
	if c.Pipeline.MaxAttempts < 1 {
		return fmt.Errorf("pipeline max attempts must be at least 1, got %d", c.Pipeline.MaxAttempts)
	}
	switch c.Classifier.Provider {
	case "openai", "anthropic", "lexicon":
	default:
		return fmt.Errorf("unknown classifier provider %q", c.Classifier.Provider)
	}
	if c.Classifier.Provider != "lexicon" && c.Classifier.APIKey == "" {
		return fmt.Errorf("classifier provider %q requires CLASSIFIER_API_KEY", c.Classifier.Provider)
	}
	return nil
}
