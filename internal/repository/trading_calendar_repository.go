package repository

import (
	"context"
	"time"

	"ashare-sentinel/internal/entity"

	"gorm.io/gorm"
)

// TradingCalendarRepository provides read access to the exchange trading
// calendar.
type TradingCalendarRepository interface {
	// GetTradingDays returns the trading days in [start, end], ascending.
	GetTradingDays(ctx context.Context, exchange string, start, end time.Time) ([]time.Time, error)
}

type tradingCalendarRepository struct {
	db *gorm.DB
}

// NewTradingCalendarRepository creates a new TradingCalendarRepository.
func NewTradingCalendarRepository(db *gorm.DB) TradingCalendarRepository {
	return &tradingCalendarRepository{db: db}
}

func (r *tradingCalendarRepository) GetTradingDays(ctx context.Context, exchange string, start, end time.Time) ([]time.Time, error) {
	var rows []entity.TradingDay
	err := r.db.WithContext(ctx).
		Where("exchange = ? AND date BETWEEN ? AND ? AND is_trading_day = ?", exchange, start, end, true).
		Order("date asc").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	days := make([]time.Time, len(rows))
	for i, row := range rows {
		days[i] = row.Date
	}
	return days, nil
}
