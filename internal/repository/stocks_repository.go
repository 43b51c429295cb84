package repository

import (
	"context"

	"ashare-sentinel/internal/entity"

	"gorm.io/gorm"
)

// StocksRepository provides read access to the stock pool.
type StocksRepository interface {
	GetPool(ctx context.Context) ([]entity.Stock, error)
	GetBySymbol(ctx context.Context, symbol string) (*entity.Stock, error)
}

type stocksRepository struct {
	db *gorm.DB
}

// NewStocksRepository creates a new StocksRepository.
func NewStocksRepository(db *gorm.DB) StocksRepository {
	return &stocksRepository{db: db}
}

// GetPool returns the evaluated universe: ST and suspended names are
// filtered out.
func (r *stocksRepository) GetPool(ctx context.Context) ([]entity.Stock, error) {
	var stocks []entity.Stock
	err := r.db.WithContext(ctx).
		Where("is_st = ? AND is_suspended = ?", false, false).
		Order("symbol asc").
		Find(&stocks).Error
	return stocks, err
}

func (r *stocksRepository) GetBySymbol(ctx context.Context, symbol string) (*entity.Stock, error) {
	var stock entity.Stock
	if err := r.db.WithContext(ctx).Where("symbol = ?", symbol).First(&stock).Error; err != nil {
		return nil, err
	}
	return &stock, nil
}
