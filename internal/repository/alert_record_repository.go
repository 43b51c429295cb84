package repository

import (
	"context"
	"time"

	"ashare-sentinel/internal/entity"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AlertRecordRepository persists realtime alerts. The unique
// (symbol, trade_date) index is the durable backstop for the at-most-one
// alert per symbol per day invariant.
type AlertRecordRepository interface {
	Create(ctx context.Context, record *entity.AlertRecord) error
	ExistsForDay(ctx context.Context, symbol string, day time.Time) (bool, error)
}

type alertRecordRepository struct {
	db *gorm.DB
}

// NewAlertRecordRepository creates a new AlertRecordRepository.
func NewAlertRecordRepository(db *gorm.DB) AlertRecordRepository {
	return &alertRecordRepository{db: db}
}

// Create inserts the record; a duplicate (symbol, trade_date) is a no-op.
func (r *alertRecordRepository) Create(ctx context.Context, record *entity.AlertRecord) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(record).Error
}

func (r *alertRecordRepository) ExistsForDay(ctx context.Context, symbol string, day time.Time) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&entity.AlertRecord{}).
		Where("symbol = ? AND trade_date = ?", symbol, day).
		Count(&count).Error
	return count > 0, err
}
