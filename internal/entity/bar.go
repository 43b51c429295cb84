package entity

import (
	"time"
)

// DailyBar is one daily candle plus the per-day market metrics the
// evaluator needs. Append-only: one row per symbol per trading day, never
// mutated after the session closes.
type DailyBar struct {
	ID                   uint      `gorm:"primaryKey"`
	Symbol               string    `gorm:"index:idx_daily_symbol_date,unique;not null"`
	TradeDate            time.Time `gorm:"index:idx_daily_symbol_date,unique;type:date;not null"`
	Open                 float64   `gorm:"not null"`
	High                 float64   `gorm:"not null"`
	Low                  float64   `gorm:"not null"`
	Close                float64   `gorm:"not null"`
	Volume               int64     `gorm:"not null"`
	Amount               float64   `gorm:"not null"`
	TurnoverRate         float64   // percent, e.g. 5.2 means 5.2%
	CirculatingMarketCap float64   // CNY
	CreatedAt            time.Time `gorm:"autoCreateTime"`
}

// Gain returns the day's return relative to the previous close.
func (b DailyBar) Gain(prevClose float64) (float64, bool) {
	if prevClose <= 0 {
		return 0, false
	}
	return b.Close/prevClose - 1, true
}

// IntradayBar is a fixed 30-minute bucket. Bucket boundaries are clock
// slots, independent of data arrival order.
type IntradayBar struct {
	ID          uint      `gorm:"primaryKey"`
	Symbol      string    `gorm:"index:idx_intraday_symbol_bucket,unique;not null"`
	BucketStart time.Time `gorm:"index:idx_intraday_symbol_bucket,unique;not null"`
	Open        float64
	High        float64
	Low         float64
	Close       float64
	Volume      int64
	Amount      float64
	CreatedAt   time.Time `gorm:"autoCreateTime"`
}
