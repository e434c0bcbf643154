// Package config provides typed application configuration loaded through viper.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Defaults applied when neither the config file nor the environment provides
// a value.
const (
	DefaultIntervalMinutes = 30
	DefaultMaxConcurrency  = 3
	DefaultFetchTimeout    = 45 * time.Second
	DefaultBatchDelayMin   = 5 * time.Second
	DefaultBatchDelayMax   = 15 * time.Second
	DefaultNotifyDelayMin  = 2 * time.Second
	DefaultNotifyDelayMax  = 6 * time.Second
	DefaultBackoffCooldown = 5 * time.Minute
	DefaultDataDir         = "./data"
	DefaultSourcesFile     = "sources.yaml"
	DefaultAPIAddress      = ":8060"
	DefaultLogLevel        = "info"
)

// Config is the root application configuration.
type Config struct {
	Telegram TelegramConfig `mapstructure:"telegram"`
	Crawler  CrawlerConfig  `mapstructure:"crawler"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Sources  SourcesConfig  `mapstructure:"sources"`
	Filter   FilterConfig   `mapstructure:"filter"`
	API      APIConfig      `mapstructure:"api"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// TelegramConfig authorizes and targets the notifier.
type TelegramConfig struct {
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
}

// CrawlerConfig controls the run loop and the crawl scheduler.
type CrawlerConfig struct {
	// IntervalMinutes is the sleep between cycles.
	IntervalMinutes int `mapstructure:"interval_minutes"`
	// Schedule is an optional cron expression; when set it overrides
	// IntervalMinutes for deciding when the next cycle starts.
	Schedule string `mapstructure:"schedule"`
	// MaxConcurrency bounds simultaneous fetch sessions per batch.
	MaxConcurrency int `mapstructure:"max_concurrency"`
	// FetchTimeout bounds a single source visit.
	FetchTimeout time.Duration `mapstructure:"fetch_timeout"`
	// BatchDelayMin/Max bound the randomized politeness delay between batches.
	BatchDelayMin time.Duration `mapstructure:"batch_delay_min"`
	BatchDelayMax time.Duration `mapstructure:"batch_delay_max"`
	// NotifyDelayMin/Max bound the randomized spacing between notifications.
	NotifyDelayMin time.Duration `mapstructure:"notify_delay_min"`
	NotifyDelayMax time.Duration `mapstructure:"notify_delay_max"`
	// BackoffCooldown is the fixed wait after a fatal cycle error.
	BackoffCooldown time.Duration `mapstructure:"backoff_cooldown"`
}

// StorageConfig selects and locates the durable store.
type StorageConfig struct {
	// Driver is "sqlite" (default) or "postgres".
	Driver string `mapstructure:"driver"`
	// DataDir is the root for the sqlite database and log files.
	DataDir string `mapstructure:"data_dir"`
	// DSN is the postgres connection string when Driver is "postgres".
	DSN string `mapstructure:"dsn"`
}

// SourcesConfig locates the source registry file.
type SourcesConfig struct {
	File string `mapstructure:"file"`
}

// FilterConfig overrides the built-in relevance keyword sets when non-empty.
type FilterConfig struct {
	Include []string `mapstructure:"include"`
	Exclude []string `mapstructure:"exclude"`
}

// APIConfig controls the optional status HTTP server.
type APIConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Address string `mapstructure:"address"`
}

// LoggingConfig controls the log sink.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

// SetDefaults registers all configuration defaults on the global viper
// instance. Environment variables and the config file take precedence.
func SetDefaults() {
	viper.SetDefault("telegram.bot_token", "")
	viper.SetDefault("telegram.chat_id", "")

	viper.SetDefault("crawler.interval_minutes", DefaultIntervalMinutes)
	viper.SetDefault("crawler.schedule", "")
	viper.SetDefault("crawler.max_concurrency", DefaultMaxConcurrency)
	viper.SetDefault("crawler.fetch_timeout", DefaultFetchTimeout)
	viper.SetDefault("crawler.batch_delay_min", DefaultBatchDelayMin)
	viper.SetDefault("crawler.batch_delay_max", DefaultBatchDelayMax)
	viper.SetDefault("crawler.notify_delay_min", DefaultNotifyDelayMin)
	viper.SetDefault("crawler.notify_delay_max", DefaultNotifyDelayMax)
	viper.SetDefault("crawler.backoff_cooldown", DefaultBackoffCooldown)

	viper.SetDefault("storage.driver", "sqlite")
	viper.SetDefault("storage.data_dir", DefaultDataDir)
	viper.SetDefault("storage.dsn", "")

	viper.SetDefault("sources.file", DefaultSourcesFile)

	viper.SetDefault("filter.include", []string{})
	viper.SetDefault("filter.exclude", []string{})

	viper.SetDefault("api.enabled", false)
	viper.SetDefault("api.address", DefaultAPIAddress)

	viper.SetDefault("logging.level", DefaultLogLevel)
	viper.SetDefault("logging.file", "")
}

// Load unmarshals and validates the configuration from the global viper
// instance. SetDefaults must have been called first.
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// Validate checks the configuration for values the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Crawler.IntervalMinutes < 1 {
		return errors.New("crawler.interval_minutes must be at least 1")
	}
	if c.Crawler.MaxConcurrency < 1 {
		return errors.New("crawler.max_concurrency must be at least 1")
	}
	if c.Crawler.FetchTimeout <= 0 {
		return errors.New("crawler.fetch_timeout must be positive")
	}
	if c.Crawler.BatchDelayMin < 0 || c.Crawler.BatchDelayMax < c.Crawler.BatchDelayMin {
		return errors.New("crawler batch delay window is invalid")
	}
	if c.Crawler.NotifyDelayMin < 0 || c.Crawler.NotifyDelayMax < c.Crawler.NotifyDelayMin {
		return errors.New("crawler notify delay window is invalid")
	}
	if c.Crawler.BackoffCooldown <= 0 {
		return errors.New("crawler.backoff_cooldown must be positive")
	}

	switch c.Storage.Driver {
	case "sqlite":
		if c.Storage.DataDir == "" {
			return errors.New("storage.data_dir is required for the sqlite driver")
		}
	case "postgres":
		if c.Storage.DSN == "" {
			return errors.New("storage.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}

	if c.Sources.File == "" {
		return errors.New("sources.file is required")
	}

	return nil
}

// Interval returns the inter-cycle sleep as a duration.
func (c *CrawlerConfig) Interval() time.Duration {
	return time.Duration(c.IntervalMinutes) * time.Minute
}
