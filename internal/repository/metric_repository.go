package repository

import (
	"context"
	"errors"
	"time"

	"ashare-sentinel/internal/entity"

	"gorm.io/gorm"
)

// MetricRepository provides read access to the externally landed daily
// metrics. Rows land T+1; a missing row is a normal outcome, not an error.
type MetricRepository interface {
	Get(ctx context.Context, symbol string, day time.Time) (*entity.ExternalDailyMetric, error)
}

type metricRepository struct {
	db *gorm.DB
}

// NewMetricRepository creates a new MetricRepository.
func NewMetricRepository(db *gorm.DB) MetricRepository {
	return &metricRepository{db: db}
}

// Get returns the metric row for (symbol, day), or nil when it has not
// landed yet.
func (r *metricRepository) Get(ctx context.Context, symbol string, day time.Time) (*entity.ExternalDailyMetric, error) {
	var metric entity.ExternalDailyMetric
	err := r.db.WithContext(ctx).
		Where("symbol = ? AND trade_date = ?", symbol, day).
		First(&metric).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &metric, nil
}
