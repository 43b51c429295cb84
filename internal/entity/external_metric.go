package entity

import (
	"time"
)

// ExternalDailyMetric carries the chip-concentration and capital-flow rows
// landed by the scraper jobs, at most once per symbol per day (T+1). The
// core only reads this table and must tolerate missing rows for the
// current day.
type ExternalDailyMetric struct {
	ID                uint      `gorm:"primaryKey"`
	Symbol            string    `gorm:"index:idx_metric_symbol_date,unique;not null"`
	TradeDate         time.Time `gorm:"index:idx_metric_symbol_date,unique;type:date;not null"`
	ChipConcentration float64
	ProfitRatio       float64
	MainNetInflow     float64
	NetInflowRate     float64   // fraction, 0.06 == 6%
	CreatedAt         time.Time `gorm:"autoCreateTime"`
}
