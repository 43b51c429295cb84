package config

import (
	"fmt"

	"ashare-sentinel/internal/condition"
	"ashare-sentinel/internal/indicator"
	"ashare-sentinel/pkg/config"
)

// Realtime holds orchestrator-specific configuration.
type Realtime struct {
	Exchange           string  `mapstructure:"exchange"`
	Workers            int     `mapstructure:"workers"`
	TickBuffer         int     `mapstructure:"tick_buffer"`
	AlertQueueSize     int     `mapstructure:"alert_queue_size"`
	PreloadConcurrency int     `mapstructure:"preload_concurrency"`
	SessionPrepareCron string  `mapstructure:"session_prepare_cron"`
	MetricRefreshCron  string  `mapstructure:"metric_refresh_cron"`
	AlertRatePerSecond float64 `mapstructure:"alert_rate_per_second"`
}

// Config holds the full configuration for the realtime service.
type Config struct {
	App        config.App           `mapstructure:"app"`
	Logger     config.Logger        `mapstructure:"logger"`
	Database   config.Database      `mapstructure:"database"`
	Redis      config.Redis         `mapstructure:"redis"`
	Telegram   config.Telegram      `mapstructure:"telegram"`
	Realtime   Realtime             `mapstructure:"realtime"`
	Indicator  indicator.Params     `mapstructure:"indicator"`
	Conditions condition.Thresholds `mapstructure:"conditions"`
}

// Load loads the realtime configuration from the given path and validates
// the condition thresholds up front.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := config.Load(path, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Conditions.Validate(); err != nil {
		return nil, fmt.Errorf("invalid condition thresholds: %w", err)
	}
	if cfg.Realtime.Workers <= 0 {
		cfg.Realtime.Workers = 8
	}
	if cfg.Realtime.TickBuffer <= 0 {
		cfg.Realtime.TickBuffer = 1024
	}
	if cfg.Realtime.AlertQueueSize <= 0 {
		cfg.Realtime.AlertQueueSize = 256
	}
	if cfg.Realtime.PreloadConcurrency <= 0 {
		cfg.Realtime.PreloadConcurrency = 16
	}
	if cfg.Realtime.AlertRatePerSecond <= 0 {
		cfg.Realtime.AlertRatePerSecond = 1
	}
	return &cfg, nil
}
