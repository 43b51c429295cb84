package entity

import (
	"time"

	"gorm.io/datatypes"
)

// BacktestHit is one all-satisfied day recorded by the backtest engine,
// write-once, with forward returns filled in after the decision.
type BacktestHit struct {
	ID              uint      `gorm:"primaryKey"`
	RunID           string    `gorm:"index;not null"`
	Symbol          string    `gorm:"not null"`
	TradeDate       time.Time `gorm:"type:date;not null"`
	EntryClose      float64
	ConditionVector datatypes.JSON
	// ForwardReturns maps horizon (trading days) to return; a horizon is
	// absent when not enough forward bars exist yet.
	ForwardReturns datatypes.JSON
	CreatedAt      time.Time `gorm:"autoCreateTime"`
}
