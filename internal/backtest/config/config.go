package config

import (
	"fmt"

	"ashare-sentinel/internal/condition"
	"ashare-sentinel/internal/indicator"
	"ashare-sentinel/pkg/config"
)

// Backtest holds engine-specific configuration.
type Backtest struct {
	RunID       string `mapstructure:"run_id"`
	Exchange    string `mapstructure:"exchange"`
	StartDate   string `mapstructure:"start_date"` // 2006-01-02
	EndDate     string `mapstructure:"end_date"`
	Concurrency int    `mapstructure:"concurrency"`
	Horizons    []int  `mapstructure:"horizons"` // forward-return horizons in trading days
}

// Config holds the full configuration for the backtest service.
type Config struct {
	App        config.App           `mapstructure:"app"`
	Logger     config.Logger        `mapstructure:"logger"`
	Database   config.Database      `mapstructure:"database"`
	Backtest   Backtest             `mapstructure:"backtest"`
	Indicator  indicator.Params     `mapstructure:"indicator"`
	Conditions condition.Thresholds `mapstructure:"conditions"`
}

// Load loads the backtest configuration from the given path and validates
// the condition thresholds up front.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := config.Load(path, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Conditions.Validate(); err != nil {
		return nil, fmt.Errorf("invalid condition thresholds: %w", err)
	}
	if cfg.Backtest.Concurrency <= 0 {
		cfg.Backtest.Concurrency = 8
	}
	if len(cfg.Backtest.Horizons) == 0 {
		cfg.Backtest.Horizons = []int{1, 5, 10}
	}
	if cfg.Backtest.Exchange == "" {
		cfg.Backtest.Exchange = "SH"
	}
	return &cfg, nil
}
