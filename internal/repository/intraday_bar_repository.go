package repository

import (
	"context"
	"time"

	"ashare-sentinel/internal/entity"

	"gorm.io/gorm"
)

// IntradayBarRepository provides read access to the fixed 30-minute
// buckets.
type IntradayBarRepository interface {
	// GetBuckets returns the buckets starting at the given clock slots of
	// one trading day, ordered by bucket start.
	GetBuckets(ctx context.Context, symbol string, starts []time.Time) ([]entity.IntradayBar, error)
}

type intradayBarRepository struct {
	db *gorm.DB
}

// NewIntradayBarRepository creates a new IntradayBarRepository.
func NewIntradayBarRepository(db *gorm.DB) IntradayBarRepository {
	return &intradayBarRepository{db: db}
}

func (r *intradayBarRepository) GetBuckets(ctx context.Context, symbol string, starts []time.Time) ([]entity.IntradayBar, error) {
	var bars []entity.IntradayBar
	err := r.db.WithContext(ctx).
		Where("symbol = ? AND bucket_start IN ?", symbol, starts).
		Order("bucket_start asc").
		Find(&bars).Error
	return bars, err
}
