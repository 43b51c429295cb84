package repository

import (
	"context"
	"time"

	"ashare-sentinel/internal/entity"

	"gorm.io/gorm"
)

// DailyBarRepository provides read access to the daily bar history.
type DailyBarRepository interface {
	// GetTrailing returns up to limit bars with trade date <= asOf, ordered
	// oldest to newest.
	GetTrailing(ctx context.Context, symbol string, asOf time.Time, limit int) ([]entity.DailyBar, error)
	// GetForward returns up to limit bars with trade date strictly after
	// day, ordered oldest to newest.
	GetForward(ctx context.Context, symbol string, day time.Time, limit int) ([]entity.DailyBar, error)
}

type dailyBarRepository struct {
	db *gorm.DB
}

// NewDailyBarRepository creates a new DailyBarRepository.
func NewDailyBarRepository(db *gorm.DB) DailyBarRepository {
	return &dailyBarRepository{db: db}
}

func (r *dailyBarRepository) GetTrailing(ctx context.Context, symbol string, asOf time.Time, limit int) ([]entity.DailyBar, error) {
	var bars []entity.DailyBar
	err := r.db.WithContext(ctx).
		Where("symbol = ? AND trade_date <= ?", symbol, asOf).
		Order("trade_date desc").
		Limit(limit).
		Find(&bars).Error
	if err != nil {
		return nil, err
	}
	reverseBars(bars)
	return bars, nil
}

func (r *dailyBarRepository) GetForward(ctx context.Context, symbol string, day time.Time, limit int) ([]entity.DailyBar, error) {
	var bars []entity.DailyBar
	err := r.db.WithContext(ctx).
		Where("symbol = ? AND trade_date > ?", symbol, day).
		Order("trade_date asc").
		Limit(limit).
		Find(&bars).Error
	return bars, err
}

func reverseBars(bars []entity.DailyBar) {
	for i, j := 0, len(bars)-1; i < j; i, j = i+1, j-1 {
		bars[i], bars[j] = bars[j], bars[i]
	}
}
