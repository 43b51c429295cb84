package entity

import (
	"time"

	"gorm.io/datatypes"
)

// AlertRecord is the realtime alert ledger: one row per symbol per trading
// day, created on the first all-satisfied transition and never updated
// afterward.
type AlertRecord struct {
	ID              uint      `gorm:"primaryKey"`
	Symbol          string    `gorm:"index:idx_alert_symbol_date,unique;not null"`
	TradeDate       time.Time `gorm:"index:idx_alert_symbol_date,unique;type:date;not null"`
	TriggeredAt     time.Time `gorm:"not null"`
	Price           float64
	ConditionVector datatypes.JSON
	CreatedAt       time.Time `gorm:"autoCreateTime"`
}
