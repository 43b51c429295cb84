package entity

import (
	"time"
)

// MarketSegment identifies the board a stock trades on. The segment
// determines the daily price-limit percentage.
type MarketSegment string

const (
	SegmentMain MarketSegment = "main"
	SegmentGem  MarketSegment = "gem"
)

// LimitPct returns the daily price-limit percentage for the segment.
func (m MarketSegment) LimitPct() float64 {
	if m == SegmentGem {
		return 0.20
	}
	return 0.10
}

// Stock is one member of the evaluated universe. Immutable for the duration
// of a session once loaded.
type Stock struct {
	ID          uint          `gorm:"primaryKey"`
	Symbol      string        `gorm:"uniqueIndex;not null"` // e.g. SHSE.600000
	Code        string        `gorm:"not null"`             // e.g. 600000
	Exchange    string        `gorm:"not null"`             // SH / SZ
	Name        string        `gorm:"not null"`
	Segment     MarketSegment `gorm:"not null"`
	IsST        bool
	IsSuspended bool
	CreatedAt   time.Time `gorm:"autoCreateTime"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime"`
}
