package entity

import (
	"time"
)

// TradingDay is one row of the exchange trading calendar.
type TradingDay struct {
	ID             uint      `gorm:"primaryKey"`
	Exchange       string    `gorm:"index:idx_calendar_exchange_date,unique;not null"`
	Date           time.Time `gorm:"index:idx_calendar_exchange_date,unique;type:date;not null"`
	IsTradingDay   bool      `gorm:"not null"`
	PrevTradingDay *time.Time `gorm:"type:date"`
	NextTradingDay *time.Time `gorm:"type:date"`
}
