package condition

import (
	"time"

	"ashare-sentinel/internal/entity"
	"ashare-sentinel/internal/indicator"
)

// TailBuckets is the traded-amount pair of the two fixed 30-minute
// tail-session buckets. Closed is true only once both buckets are final;
// before that the tail condition evaluates to not-ready, never false.
type TailBuckets struct {
	FirstAmount  float64 // 14:00–14:30
	SecondAmount float64 // 14:30–15:00
	Closed       bool
}

// Features is the immutable per-symbol snapshot one evaluation runs over.
// Everything a condition reads is declared here; re-evaluating the same
// snapshot must always yield the same vector.
type Features struct {
	Symbol  string
	Segment entity.MarketSegment
	AsOf    time.Time

	// Daily bars, oldest to newest. The last bar is the evaluation day:
	// a closed bar in backtest, the synthetic "day so far" bar live.
	Daily []entity.DailyBar

	Indicators indicator.Snapshot

	// Price is the current price: last trade live, the day's close in
	// backtest.
	Price float64

	// External metrics for the evaluation day and the prior day; nil when
	// the scraper row has not landed.
	Metric     *entity.ExternalDailyMetric
	PrevMetric *entity.ExternalDailyMetric

	Tail TailBuckets
}

// Today returns the evaluation-day bar.
func (f Features) Today() (entity.DailyBar, bool) {
	if len(f.Daily) == 0 {
		return entity.DailyBar{}, false
	}
	return f.Daily[len(f.Daily)-1], true
}

// Prev returns the bar n days before the evaluation day.
func (f Features) Prev(n int) (entity.DailyBar, bool) {
	i := len(f.Daily) - 1 - n
	if i < 0 {
		return entity.DailyBar{}, false
	}
	return f.Daily[i], true
}
