package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	App struct {
		Name       string `toml:"name"`
		DefaultURL string `toml:"default_url"` // listing URL for subscribers without filters
	} `toml:"app"`

	Fleet struct {
		IntervalSeconds          int  `toml:"interval_seconds"`
		MaxSubscribers           int  `toml:"max_subscribers"`
		BatchSize                int  `toml:"batch_size"`
		SubscriberTimeoutSeconds int  `toml:"subscriber_timeout_seconds"`
		RunOnStart               bool `toml:"run_on_start"`
		PreserveOnFetchFailure   bool `toml:"preserve_on_fetch_failure"`
	} `toml:"fleet"`

	Listing struct {
		MaxAttempts            int   `toml:"max_attempts"`
		PacingMillis           int   `toml:"pacing_ms"`
		BackoffBaseMillis      int   `toml:"backoff_base_ms"`
		TimeoutSeconds         int   `toml:"timeout_seconds"`
		RenewalConsumesAttempt *bool `toml:"renewal_consumes_attempt"` // nil = true
	} `toml:"listing"`

	Pairs struct {
		BaseURL           string `toml:"base_url"`
		ChunkSize         int    `toml:"chunk_size"`
		TimeoutSeconds    int    `toml:"timeout_seconds"`
		RequestsPerMinute int    `toml:"requests_per_minute"`
	} `toml:"pairs"`

	Clearance struct {
		SolverURL      string `toml:"solver_url"`
		TargetURL      string `toml:"target_url"`
		CookieName     string `toml:"cookie_name"`
		TimeoutSeconds int    `toml:"timeout_seconds"`
		File           string `toml:"file"` // JSON mirror; empty disables
	} `toml:"clearance"`

	Storage struct {
		Driver string `toml:"driver"` // memory | sqlite | postgres

		SQLite struct {
			Path string `toml:"path"`
		} `toml:"sqlite"`

		Postgres struct {
			DSN string `toml:"dsn"`
		} `toml:"postgres"`
	} `toml:"storage"`

	Redis struct {
		Enabled      bool   `toml:"enabled"`
		Addr         string `toml:"addr"`
		Password     string `toml:"password"`
		DB           int    `toml:"db"`
		Prefix       string `toml:"prefix"`
		TTLSeconds   int    `toml:"ttl_seconds"`
		AlertStream  string `toml:"alert_stream"`
		AlertChannel string `toml:"alert_channel"`
	} `toml:"redis"`

	Telegram struct {
		Enabled            bool   `toml:"enabled"`
		Token              string `toml:"token"`
		APIURL             string `toml:"api_url"`
		PollTimeoutSeconds int    `toml:"poll_timeout_seconds"`
	} `toml:"telegram"`

	WebSocket struct {
		Enabled bool   `toml:"enabled"`
		Addr    string `toml:"addr"`
		Path    string `toml:"path"`
	} `toml:"websocket"`

	Log LogConfig `toml:"log"`
}

type LogConfig struct {
	Level      string `toml:"level"`  // debug | info | warn | error
	Format     string `toml:"format"` // console | json
	File       string `toml:"file"`   // optional, rotated
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
}

func Load(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}
	applyEnv(&cfg)
	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnv lets secrets live outside the config file.
func applyEnv(cfg *Config) {
	set := func(dst *string, key string) {
		if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	set(&cfg.Telegram.Token, "TELEGRAM_BOT_TOKEN")
	set(&cfg.Clearance.SolverURL, "SOLVER_URL")
	set(&cfg.Storage.Postgres.DSN, "PG_DSN")
	set(&cfg.Redis.Password, "REDIS_PASSWORD")
	set(&cfg.Log.Level, "LOG_LEVEL")
}

func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "profitsniffer"
	}
	if cfg.Fleet.IntervalSeconds <= 0 {
		cfg.Fleet.IntervalSeconds = 60
	}
	if cfg.Fleet.MaxSubscribers <= 0 {
		cfg.Fleet.MaxSubscribers = 300
	}
	if cfg.Fleet.BatchSize <= 0 {
		cfg.Fleet.BatchSize = 30
	}
	if cfg.Fleet.SubscriberTimeoutSeconds <= 0 {
		cfg.Fleet.SubscriberTimeoutSeconds = 50
	}
	if cfg.Listing.MaxAttempts <= 0 {
		cfg.Listing.MaxAttempts = 3
	}
	if cfg.Listing.PacingMillis <= 0 {
		cfg.Listing.PacingMillis = 2000
	}
	if cfg.Listing.BackoffBaseMillis <= 0 {
		cfg.Listing.BackoffBaseMillis = 1000
	}
	if cfg.Listing.TimeoutSeconds <= 0 {
		cfg.Listing.TimeoutSeconds = 10
	}
	if cfg.Listing.RenewalConsumesAttempt == nil {
		v := true
		cfg.Listing.RenewalConsumesAttempt = &v
	}
	if cfg.Pairs.ChunkSize <= 0 {
		cfg.Pairs.ChunkSize = 30
	}
	if cfg.Pairs.TimeoutSeconds <= 0 {
		cfg.Pairs.TimeoutSeconds = 30
	}
	if cfg.Pairs.RequestsPerMinute <= 0 {
		cfg.Pairs.RequestsPerMinute = 300
	}
	if cfg.Clearance.TimeoutSeconds <= 0 {
		cfg.Clearance.TimeoutSeconds = 360
	}
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = "sqlite"
	}
	cfg.Storage.Driver = strings.ToLower(strings.TrimSpace(cfg.Storage.Driver))
	if cfg.Storage.SQLite.Path == "" {
		cfg.Storage.SQLite.Path = "data/profitsniffer.db"
	}
	if cfg.Redis.Prefix == "" {
		cfg.Redis.Prefix = "profitsniffer"
	}
	if cfg.Telegram.PollTimeoutSeconds <= 0 {
		cfg.Telegram.PollTimeoutSeconds = 30
	}
	if cfg.WebSocket.Addr == "" {
		cfg.WebSocket.Addr = ":8081"
	}
	if cfg.WebSocket.Path == "" {
		cfg.WebSocket.Path = "/ws/alerts"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
}

func validate(cfg *Config) error {
	if strings.TrimSpace(cfg.Clearance.SolverURL) == "" {
		return errors.New("clearance.solver_url is empty")
	}
	if cfg.Fleet.BatchSize > cfg.Fleet.MaxSubscribers {
		return fmt.Errorf("fleet.batch_size %d exceeds fleet.max_subscribers %d", cfg.Fleet.BatchSize, cfg.Fleet.MaxSubscribers)
	}
	if cfg.Pairs.ChunkSize > 30 {
		return fmt.Errorf("pairs.chunk_size %d exceeds the provider limit of 30", cfg.Pairs.ChunkSize)
	}
	switch cfg.Storage.Driver {
	case "memory", "sqlite":
	case "postgres":
		if strings.TrimSpace(cfg.Storage.Postgres.DSN) == "" {
			return errors.New("storage.postgres.dsn empty but driver is postgres")
		}
	default:
		return fmt.Errorf("storage.driver %q: want memory, sqlite or postgres", cfg.Storage.Driver)
	}
	if cfg.Redis.Enabled && strings.TrimSpace(cfg.Redis.Addr) == "" {
		return errors.New("redis.addr empty but redis enabled")
	}
	if cfg.Telegram.Enabled && strings.TrimSpace(cfg.Telegram.Token) == "" {
		return errors.New("telegram.token empty but telegram enabled")
	}
	switch cfg.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("log.format %q: want console or json", cfg.Log.Format)
	}
	return nil
}

func (c *Config) Interval() time.Duration {
	return time.Duration(c.Fleet.IntervalSeconds) * time.Second
}

func (c *Config) SubscriberTimeout() time.Duration {
	return time.Duration(c.Fleet.SubscriberTimeoutSeconds) * time.Second
}

func (c *Config) ListingPacing() time.Duration {
	return time.Duration(c.Listing.PacingMillis) * time.Millisecond
}

func (c *Config) ListingBackoffBase() time.Duration {
	return time.Duration(c.Listing.BackoffBaseMillis) * time.Millisecond
}

func (c *Config) ListingTimeout() time.Duration {
	return time.Duration(c.Listing.TimeoutSeconds) * time.Second
}

func (c *Config) PairsTimeout() time.Duration {
	return time.Duration(c.Pairs.TimeoutSeconds) * time.Second
}

func (c *Config) SolverTimeout() time.Duration {
	return time.Duration(c.Clearance.TimeoutSeconds) * time.Second
}

func (c *Config) RedisTTL() time.Duration {
	return time.Duration(c.Redis.TTLSeconds) * time.Second
}

func (c *Config) TelegramPollTimeout() time.Duration {
	return time.Duration(c.Telegram.PollTimeoutSeconds) * time.Second
}
