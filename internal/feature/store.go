package feature

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ashare-sentinel/internal/condition"
	"ashare-sentinel/internal/entity"
	"ashare-sentinel/internal/indicator"
	"ashare-sentinel/pkg/utils"

	"github.com/patrickmn/go-cache"
)

// ErrInsufficientHistory marks a symbol that does not yet have the trailing
// bars a valid snapshot needs. Callers skip the symbol for the period; it
// is never a hard failure.
var ErrInsufficientHistory = errors.New("insufficient trailing history")

// tail-session bucket clock slots.
const (
	tailFirstHour  = 14
	tailFirstMin   = 0
	tailSecondHour = 14
	tailSecondMin  = 30
)

// Store is the read-only feature view over bars, intraday buckets and
// external metrics. It assembles immutable as-of snapshots; no evaluation
// path behind it ever blocks on network I/O, only on already-landed reads.
type Store struct {
	bars     DailyBarReader
	intraday IntradayBarReader
	metrics  MetricReader

	params      indicator.Params
	minBars     int
	metricCache *cache.Cache
}

// DailyBarReader is the slice of the bar repository the store needs.
type DailyBarReader interface {
	GetTrailing(ctx context.Context, symbol string, asOf time.Time, limit int) ([]entity.DailyBar, error)
}

// IntradayBarReader is the slice of the intraday repository the store needs.
type IntradayBarReader interface {
	GetBuckets(ctx context.Context, symbol string, starts []time.Time) ([]entity.IntradayBar, error)
}

// MetricReader is the slice of the metric repository the store needs.
type MetricReader interface {
	Get(ctx context.Context, symbol string, day time.Time) (*entity.ExternalDailyMetric, error)
}

// NewStore creates a feature store. minBars is the longest window any
// condition needs (condition.MinBars).
func NewStore(bars DailyBarReader, intraday IntradayBarReader, metrics MetricReader, params indicator.Params, minBars int) *Store {
	return &Store{
		bars:        bars,
		intraday:    intraday,
		metrics:     metrics,
		params:      params,
		minBars:     minBars,
		metricCache: cache.New(4*time.Hour, 30*time.Minute),
	}
}

// SnapshotAsOf builds the full feature snapshot for one symbol on one
// trading day, using only data dated at or before that day. The last bar
// of the window is the evaluation day itself, on top of minBars closed
// bars before it, matching the realtime preload exactly; the snapshot is
// what the backtest engine evaluates.
func (s *Store) SnapshotAsOf(ctx context.Context, stock entity.Stock, day time.Time) (condition.Features, error) {
	bars, err := s.bars.GetTrailing(ctx, stock.Symbol, day, s.minBars+1)
	if err != nil {
		return condition.Features{}, fmt.Errorf("failed to load trailing bars for %s: %w", stock.Symbol, err)
	}
	if len(bars) < s.minBars+1 {
		return condition.Features{}, ErrInsufficientHistory
	}
	last := bars[len(bars)-1]
	if !utils.SameDate(last.TradeDate, day) {
		// the symbol did not trade that day
		return condition.Features{}, ErrInsufficientHistory
	}

	tail, err := s.tailBuckets(ctx, stock.Symbol, day)
	if err != nil {
		return condition.Features{}, err
	}

	metric, prevMetric, err := s.MetricPair(ctx, stock.Symbol, day, prevBarDate(bars))
	if err != nil {
		return condition.Features{}, err
	}

	return condition.Features{
		Symbol:     stock.Symbol,
		Segment:    stock.Segment,
		AsOf:       day,
		Daily:      bars,
		Indicators: indicator.Compute(bars, s.params),
		Price:      last.Close,
		Metric:     metric,
		PrevMetric: prevMetric,
		Tail:       tail,
	}, nil
}

// TrailingWindow returns the closed bars strictly before day, for the
// realtime orchestrator's session preload.
func (s *Store) TrailingWindow(ctx context.Context, symbol string, day time.Time) ([]entity.DailyBar, error) {
	bars, err := s.bars.GetTrailing(ctx, symbol, day.AddDate(0, 0, -1), s.minBars)
	if err != nil {
		return nil, fmt.Errorf("failed to load trailing bars for %s: %w", symbol, err)
	}
	if len(bars) < s.minBars {
		return nil, ErrInsufficientHistory
	}
	return bars, nil
}

// MetricPair returns the metric rows for the evaluation day and the prior
// trading day, caching reads since a row never changes once landed. Either
// may be nil: T+1 landing means the current day's row is usually absent.
func (s *Store) MetricPair(ctx context.Context, symbol string, day, prevDay time.Time) (*entity.ExternalDailyMetric, *entity.ExternalDailyMetric, error) {
	metric, err := s.cachedMetric(ctx, symbol, day)
	if err != nil {
		return nil, nil, err
	}
	if prevDay.IsZero() {
		return metric, nil, nil
	}
	prevMetric, err := s.cachedMetric(ctx, symbol, prevDay)
	if err != nil {
		return nil, nil, err
	}
	return metric, prevMetric, nil
}

func (s *Store) cachedMetric(ctx context.Context, symbol string, day time.Time) (*entity.ExternalDailyMetric, error) {
	key := symbol + "|" + day.Format("2006-01-02")
	if v, ok := s.metricCache.Get(key); ok {
		return v.(*entity.ExternalDailyMetric), nil
	}
	metric, err := s.metrics.Get(ctx, symbol, day)
	if err != nil {
		return nil, fmt.Errorf("failed to read metric for %s: %w", symbol, err)
	}
	if metric != nil {
		// only cache landed rows; a missing row may land later
		s.metricCache.Set(key, metric, cache.DefaultExpiration)
	}
	return metric, nil
}

// tailBuckets loads the two fixed tail-session buckets of the day. Both
// present means the session tail is closed; anything less keeps condition
// 20 not-ready.
func (s *Store) tailBuckets(ctx context.Context, symbol string, day time.Time) (condition.TailBuckets, error) {
	starts := TailBucketStarts(day)
	bars, err := s.intraday.GetBuckets(ctx, symbol, starts)
	if err != nil {
		return condition.TailBuckets{}, fmt.Errorf("failed to load tail buckets for %s: %w", symbol, err)
	}
	var tail condition.TailBuckets
	var haveFirst, haveSecond bool
	for _, b := range bars {
		switch {
		case b.BucketStart.Equal(starts[0]):
			tail.FirstAmount = b.Amount
			haveFirst = true
		case b.BucketStart.Equal(starts[1]):
			tail.SecondAmount = b.Amount
			haveSecond = true
		}
	}
	tail.Closed = haveFirst && haveSecond
	return tail, nil
}

// TailBucketStarts returns the day's two fixed tail bucket start slots.
func TailBucketStarts(day time.Time) []time.Time {
	return []time.Time{
		utils.ClockAt(day, tailFirstHour, tailFirstMin),
		utils.ClockAt(day, tailSecondHour, tailSecondMin),
	}
}

func prevBarDate(bars []entity.DailyBar) time.Time {
	if len(bars) < 2 {
		return time.Time{}
	}
	return bars[len(bars)-2].TradeDate
}
