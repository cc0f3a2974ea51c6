// Package config loads and validates backend configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Processing ProcessingConfig `mapstructure:"processing"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
	Storage    StorageConfig    `mapstructure:"storage"`
	DB         DBConfig         `mapstructure:"db"`
	PubSub     PubSubConfig     `mapstructure:"pubsub"`
	Cleanup    CleanupConfig    `mapstructure:"cleanup"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port           int `mapstructure:"port"`
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

// ProcessingConfig governs the session pipeline.
type ProcessingConfig struct {
	Workers       int `mapstructure:"workers"`
	QueueDepth    int `mapstructure:"queue_depth"`
	MaxStatements int `mapstructure:"max_statements"`
}

// RateLimitConfig controls the per-client token buckets guarding the API.
type RateLimitConfig struct {
	Enabled bool    `mapstructure:"enabled"`
	RPS     float64 `mapstructure:"rps"`
	Burst   int     `mapstructure:"burst"`
}

// StorageConfig selects and parameterizes the archive blob store.
type StorageConfig struct {
	Provider  string `mapstructure:"provider"`
	BaseDir   string `mapstructure:"base_dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// DBConfig controls access to the relational session store.
type DBConfig struct {
	Provider     string `mapstructure:"provider"`
	DSN          string `mapstructure:"dsn"`
	MaxConns     int32  `mapstructure:"max_conns"`
	SessionTable string `mapstructure:"session_table"`
}

// PubSubConfig holds metadata for completion notifications.
type PubSubConfig struct {
	Provider  string `mapstructure:"provider"`
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// CleanupConfig drives the retention sweeper over the archive directory.
type CleanupConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxAgeHours   int  `mapstructure:"max_age_hours"`
	IntervalHours int  `mapstructure:"interval_hours"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("ALAE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.timeout_seconds", 60)
	v.SetDefault("processing.workers", 2)
	v.SetDefault("processing.queue_depth", 64)
	v.SetDefault("processing.max_statements", 5000)
	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.rps", 0.34)
	v.SetDefault("rate_limit.burst", 20)
	v.SetDefault("storage.provider", "local")
	v.SetDefault("storage.base_dir", "results")
	v.SetDefault("storage.prefix", "archives")
	v.SetDefault("db.provider", "memory")
	v.SetDefault("db.session_table", "sessions")
	v.SetDefault("pubsub.provider", "noop")
	v.SetDefault("cleanup.enabled", true)
	v.SetDefault("cleanup.max_age_hours", 24)
	v.SetDefault("cleanup.interval_hours", 6)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Processing.Workers <= 0 {
		return fmt.Errorf("processing.workers must be > 0")
	}
	if c.Processing.QueueDepth <= 0 {
		return fmt.Errorf("processing.queue_depth must be > 0")
	}
	if c.RateLimit.Enabled && c.RateLimit.RPS <= 0 {
		return fmt.Errorf("rate_limit.rps must be > 0 when rate limiting is enabled")
	}
	switch c.Storage.Provider {
	case "local", "gcs", "":
	default:
		return fmt.Errorf("unknown storage.provider %q", c.Storage.Provider)
	}
	if c.Storage.Provider == "gcs" && c.Storage.GCSBucket == "" {
		return fmt.Errorf("storage.gcs_bucket must be set when storage.provider is gcs")
	}
	switch c.DB.Provider {
	case "memory", "postgres", "":
	default:
		return fmt.Errorf("unknown db.provider %q", c.DB.Provider)
	}
	if c.DB.Provider == "postgres" && c.DB.DSN == "" {
		return fmt.Errorf("db.dsn must be set when db.provider is postgres")
	}
	switch c.PubSub.Provider {
	case "noop", "memory", "pubsub", "":
	default:
		return fmt.Errorf("unknown pubsub.provider %q", c.PubSub.Provider)
	}
	if c.PubSub.Provider == "pubsub" && (c.PubSub.ProjectID == "" || c.PubSub.TopicName == "") {
		return fmt.Errorf("pubsub.project_id and pubsub.topic_name must be set when pubsub.provider is pubsub")
	}
	return nil
}

// RequestTimeout converts the server timeout config into a duration.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.TimeoutSeconds) * time.Second
}
