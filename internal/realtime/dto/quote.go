package dto

import (
	"time"

	"ashare-sentinel/internal/condition"
)

// Quote is one live tick: a cumulative session snapshot for a symbol. Per
// symbol, timestamps are expected to be monotonic; the orchestrator
// discards anything not strictly newer than the last applied tick.
type Quote struct {
	Symbol    string    `json:"symbol"`
	Timestamp time.Time `json:"timestamp"`
	Price     float64   `json:"price"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	CumVolume int64     `json:"cum_volume"`
	CumAmount float64   `json:"cum_amount"`
}

// AlertEvent is emitted once per symbol per trading day, the instant the
// combined verdict first becomes satisfied.
type AlertEvent struct {
	Symbol      string           `json:"symbol"`
	Name        string           `json:"name"`
	TradeDate   time.Time        `json:"trade_date"`
	TriggeredAt time.Time        `json:"triggered_at"`
	Price       float64          `json:"price"`
	Vector      condition.Vector `json:"condition_vector"`
}
