package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds runtime options for the control plane. Values come from an
// optional YAML file (CONFIG_FILE) overridden by environment variables.
type Config struct {
	HTTPAddr string `yaml:"http_addr"`

	// StoreBackend selects the document store: memory | postgres | redis.
	StoreBackend  string `yaml:"store_backend"`
	PostgresDSN   string `yaml:"postgres_dsn"`
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`

	SchedulerTick     time.Duration `yaml:"scheduler_tick"`
	StoreWriteTimeout time.Duration `yaml:"store_write_timeout"`

	AuthDisabled bool `yaml:"auth_disabled"`

	// ReplayPendingSchedules re-enqueues Pending schedule documents at
	// startup. The controller itself never reconstructs its queue; replay is
	// this outer layer's job.
	ReplayPendingSchedules bool `yaml:"replay_pending_schedules"`

	LogListLimit int `yaml:"log_list_limit"`
}

// Default returns production defaults.
func Default() Config {
	return Config{
		HTTPAddr:               ":8080",
		StoreBackend:           "memory",
		RedisAddr:              "localhost:6379",
		SchedulerTick:          1 * time.Second,
		StoreWriteTimeout:      3 * time.Second,
		ReplayPendingSchedules: true,
		LogListLimit:           50,
	}
}

// Load builds the effective configuration: defaults, then the YAML file
// named by CONFIG_FILE (if any), then environment overrides.
func Load() (Config, error) {
	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnv(&cfg)

	if cfg.SchedulerTick <= 0 {
		cfg.SchedulerTick = 1 * time.Second
	}
	if cfg.StoreWriteTimeout <= 0 {
		cfg.StoreWriteTimeout = 3 * time.Second
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("HTTP_ADDR"); v != "" {
		cfg.HTTPAddr = v
	}
	if v := os.Getenv("STORE_BACKEND"); v != "" {
		cfg.StoreBackend = v
	}
	if v := os.Getenv("POSTGRES_DSN"); v != "" {
		cfg.PostgresDSN = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.RedisPassword = v
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.RedisDB = db
		}
	}
	if v := os.Getenv("SCHEDULER_TICK"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.SchedulerTick = d
		}
	}
	if v := os.Getenv("STORE_WRITE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.StoreWriteTimeout = d
		}
	}
	if v := os.Getenv("AUTH_DISABLED"); v != "" {
		cfg.AuthDisabled = v == "true" || v == "1"
	}
	if v := os.Getenv("REPLAY_PENDING_SCHEDULES"); v != "" {
		cfg.ReplayPendingSchedules = v == "true" || v == "1"
	}
}
