package app

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/lucemdev/fundtrace/internal/platform/envutil"
	"github.com/lucemdev/fundtrace/internal/platform/logger"
	"github.com/lucemdev/fundtrace/internal/store"
)

// Config is loaded from an optional YAML file and then overridden by
// environment variables, which always win.
type Config struct {
	Addr        string `yaml:"addr"`
	LogMode     string `yaml:"log_mode"`
	ServiceName string `yaml:"service_name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`

	BatchSize             int `yaml:"batch_size"`
	DispatcherConcurrency int `yaml:"dispatcher_concurrency"`

	Redis RedisConfig `yaml:"redis"`
}

type RedisConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
	Channel string `yaml:"channel"`
}

func LoadConfig(log *logger.Logger) (Config, error) {
	cfg := Config{
		Addr:                  ":8080",
		LogMode:               "development",
		ServiceName:           "fundtrace",
		BatchSize:             store.MaxBatchWrites,
		DispatcherConcurrency: 4,
		Redis: RedisConfig{
			Channel: "changes",
		},
	}

	path := envutil.String("CONFIG_FILE", "config.yaml")
	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
		log.Info("config file loaded", "path", path)
	case os.IsNotExist(err):
		log.Debug("no config file, using defaults", "path", path)
	default:
		return Config{}, fmt.Errorf("read %s: %w", path, err)
	}

	cfg.Addr = envutil.String("ADDR", cfg.Addr)
	cfg.LogMode = envutil.String("LOG_MODE", cfg.LogMode)
	cfg.ServiceName = envutil.String("SERVICE_NAME", cfg.ServiceName)
	cfg.Environment = envutil.String("ENVIRONMENT", cfg.Environment)
	cfg.Version = envutil.String("VERSION", cfg.Version)
	cfg.BatchSize = envutil.Int("BATCH_SIZE", cfg.BatchSize)
	cfg.DispatcherConcurrency = envutil.Int("DISPATCHER_CONCURRENCY", cfg.DispatcherConcurrency)
	cfg.Redis.Enabled = envutil.Bool("REDIS_RELAY_ENABLED", cfg.Redis.Enabled)
	cfg.Redis.Addr = envutil.String("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Channel = envutil.String("REDIS_CHANNEL", cfg.Redis.Channel)

	return cfg, nil
}
