package repository

import (
	"context"

	"ashare-sentinel/internal/entity"

	"gorm.io/gorm"
)

// BacktestHitRepository persists backtest hits.
type BacktestHitRepository interface {
	CreateBatch(ctx context.Context, hits []entity.BacktestHit) error
}

type backtestHitRepository struct {
	db *gorm.DB
}

// NewBacktestHitRepository creates a new BacktestHitRepository.
func NewBacktestHitRepository(db *gorm.DB) BacktestHitRepository {
	return &backtestHitRepository{db: db}
}

func (r *backtestHitRepository) CreateBatch(ctx context.Context, hits []entity.BacktestHit) error {
	if len(hits) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(hits, 200).Error
}
