package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ashare-sentinel/internal/condition"
	"ashare-sentinel/internal/entity"
	"ashare-sentinel/internal/feature"
	"ashare-sentinel/internal/indicator"
	"ashare-sentinel/internal/realtime/config"
	"ashare-sentinel/internal/realtime/dto"
	"ashare-sentinel/pkg/logger"
	"ashare-sentinel/pkg/utils"
)

type memBarReader struct {
	bars []entity.DailyBar
}

func (m *memBarReader) GetTrailing(_ context.Context, symbol string, asOf time.Time, limit int) ([]entity.DailyBar, error) {
	var out []entity.DailyBar
	for _, b := range m.bars {
		if b.Symbol == symbol && !b.TradeDate.After(asOf) {
			out = append(out, b)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

type memIntradayReader struct{}

func (memIntradayReader) GetBuckets(_ context.Context, _ string, _ []time.Time) ([]entity.IntradayBar, error) {
	return nil, nil
}

type memMetricReader struct{}

func (memMetricReader) Get(_ context.Context, _ string, _ time.Time) (*entity.ExternalDailyMetric, error) {
	return nil, nil
}

type memStocksRepo struct {
	stocks []entity.Stock
}

func (m *memStocksRepo) GetPool(_ context.Context) ([]entity.Stock, error) { return m.stocks, nil }
func (m *memStocksRepo) GetBySymbol(_ context.Context, symbol string) (*entity.Stock, error) {
	for i := range m.stocks {
		if m.stocks[i].Symbol == symbol {
			return &m.stocks[i], nil
		}
	}
	return nil, nil
}

type chanFeed struct {
	ch chan dto.Quote
}

func (f *chanFeed) Subscribe(_ context.Context) (<-chan dto.Quote, error) { return f.ch, nil }

type recordingSink struct {
	mu     sync.Mutex
	events []dto.AlertEvent
}

func (s *recordingSink) Deliver(_ context.Context, event dto.AlertEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *recordingSink) all() []dto.AlertEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]dto.AlertEvent(nil), s.events...)
}

const testMinBars = 3

func historyFor(symbol string, day time.Time) []entity.DailyBar {
	bars := make([]entity.DailyBar, testMinBars)
	for i := range bars {
		c := 10.0 + float64(i)*0.02
		bars[i] = entity.DailyBar{
			Symbol:       symbol,
			TradeDate:    day.AddDate(0, 0, i-testMinBars),
			Open:         c,
			High:         c + 0.03,
			Low:          c - 0.03,
			Close:        c,
			Volume:       10_000_000,
			Amount:       c * 10_000_000,
			TurnoverRate: 4.0,
		}
	}
	return bars
}

func testConfig() *config.Config {
	return &config.Config{
		Realtime: config.Realtime{
			Workers:            2,
			TickBuffer:         32,
			AlertQueueSize:     8,
			PreloadConcurrency: 2,
		},
		Indicator:  indicator.DefaultParams(),
		Conditions: condition.DefaultThresholds(),
	}
}

func newTestOrchestrator(t *testing.T, stocks []entity.Stock, bars []entity.DailyBar, feed QuoteFeed, sink AlertSink) *Orchestrator {
	t.Helper()
	log, err := logger.New("error", "console")
	require.NoError(t, err)
	store := feature.NewStore(&memBarReader{bars: bars}, memIntradayReader{}, memMetricReader{}, indicator.DefaultParams(), testMinBars)
	return NewOrchestrator(testConfig(), log, store, &memStocksRepo{stocks: stocks}, feed, sink)
}

func allSatisfiedVector() condition.Vector {
	var v condition.Vector
	for i := range v {
		v[i] = condition.Satisfied
	}
	return v
}

func allUnsatisfiedVector() condition.Vector {
	var v condition.Vector
	for i := range v {
		v[i] = condition.Unsatisfied
	}
	return v
}

func TestOrchestrator_OneAlertPerSymbolPerDay(t *testing.T) {
	day := time.Date(2024, 6, 3, 0, 0, 0, 0, utils.LocationCST())
	symbol := "SHSE.600000"
	stocks := []entity.Stock{{Symbol: symbol, Name: "PF Bank", Segment: entity.SegmentMain}}

	feed := &chanFeed{ch: make(chan dto.Quote)}
	sink := &recordingSink{}
	o := newTestOrchestrator(t, stocks, historyFor(symbol, day), feed, sink)
	o.evaluate = func(condition.Features, condition.Thresholds) condition.Vector {
		return allSatisfiedVector()
	}

	ctx := context.Background()
	require.NoError(t, o.PrepareSession(ctx, day))
	require.NoError(t, o.Start(ctx))

	first := utils.ClockAt(day, 10, 0)
	for i := 0; i < 5; i++ {
		feed.ch <- dto.Quote{
			Symbol:    symbol,
			Timestamp: first.Add(time.Duration(i) * time.Second),
			Price:     10.50 + float64(i)*0.01,
			CumVolume: int64(1_000_000 * (i + 1)),
			CumAmount: 1.05e7 * float64(i+1),
		}
	}
	close(feed.ch)
	o.Stop()

	events := sink.all()
	require.Len(t, events, 1, "repeat satisfied ticks must not re-alert")
	assert.Equal(t, symbol, events[0].Symbol)
	assert.Equal(t, "PF Bank", events[0].Name)
	assert.Equal(t, first, events[0].TriggeredAt)
	assert.InDelta(t, 10.50, events[0].Price, 1e-9)
	assert.Equal(t, condition.Satisfied, events[0].Vector.Combined())
}

func TestOrchestrator_DiscardsStaleAndMalformedTicks(t *testing.T) {
	day := time.Date(2024, 6, 3, 0, 0, 0, 0, utils.LocationCST())
	symbol := "SHSE.600000"
	stocks := []entity.Stock{{Symbol: symbol, Segment: entity.SegmentMain}}

	feed := &chanFeed{ch: make(chan dto.Quote)}
	sink := &recordingSink{}
	o := newTestOrchestrator(t, stocks, historyFor(symbol, day), feed, sink)

	var evals atomic.Int64
	o.evaluate = func(condition.Features, condition.Thresholds) condition.Vector {
		evals.Add(1)
		return allUnsatisfiedVector()
	}

	ctx := context.Background()
	require.NoError(t, o.PrepareSession(ctx, day))
	require.NoError(t, o.Start(ctx))

	at := utils.ClockAt(day, 10, 0)
	feed.ch <- dto.Quote{Symbol: symbol, Timestamp: at, Price: 10.50, CumVolume: 1_000_000, CumAmount: 1.05e7}
	feed.ch <- dto.Quote{Symbol: symbol, Timestamp: at.Add(-time.Second), Price: 10.48, CumVolume: 900_000, CumAmount: 9.4e6}
	feed.ch <- dto.Quote{Symbol: symbol, Timestamp: at, Price: 10.50, CumVolume: 1_000_000, CumAmount: 1.05e7}
	feed.ch <- dto.Quote{Symbol: symbol, Timestamp: at.Add(time.Second), Price: 0, CumVolume: 1_100_000, CumAmount: 1.15e7}
	close(feed.ch)
	o.Stop()

	assert.Equal(t, int64(2), o.staleTicks.Load(), "older and duplicate timestamps are stale")
	assert.Equal(t, int64(1), evals.Load(), "only the first tick reaches the evaluator")
	assert.Empty(t, sink.all())
}

func TestOrchestrator_TailBucketsFromCumulativeSnapshots(t *testing.T) {
	day := time.Date(2024, 6, 3, 0, 0, 0, 0, utils.LocationCST())
	symbol := "SHSE.600000"
	stocks := []entity.Stock{{Symbol: symbol, Segment: entity.SegmentMain}}

	feed := &chanFeed{ch: make(chan dto.Quote)}
	sink := &recordingSink{}
	o := newTestOrchestrator(t, stocks, historyFor(symbol, day), feed, sink)
	o.evaluate = func(condition.Features, condition.Thresholds) condition.Vector {
		return allUnsatisfiedVector()
	}

	ctx := context.Background()
	require.NoError(t, o.PrepareSession(ctx, day))
	require.NoError(t, o.Start(ctx))

	ticks := []struct {
		hour, min int
		cumAmount float64
	}{
		{13, 59, 0.4e8}, // last snapshot before the tail session
		{14, 5, 0.6e8},
		{14, 29, 1.4e8}, // last snapshot of the first bucket
		{14, 31, 1.5e8},
		{14, 59, 2.3e8},
		{15, 0, 2.4e8}, // session close seals the second bucket
	}
	for i, tick := range ticks {
		feed.ch <- dto.Quote{
			Symbol:    symbol,
			Timestamp: utils.ClockAt(day, tick.hour, tick.min),
			Price:     10.50,
			CumVolume: int64(1_000_000 * (i + 1)),
			CumAmount: tick.cumAmount,
		}
	}
	close(feed.ch)
	o.Stop()

	state := o.workerFor(symbol).states[symbol]
	require.NotNil(t, state)
	assert.True(t, state.tail.Closed)
	assert.InDelta(t, 1.0e8, state.tail.FirstAmount, 1)
	assert.InDelta(t, 1.0e8, state.tail.SecondAmount, 1)
}

func TestOrchestrator_EmitDropsOldestOnOverflow(t *testing.T) {
	day := time.Date(2024, 6, 3, 0, 0, 0, 0, utils.LocationCST())
	stocks := []entity.Stock{{Symbol: "SHSE.600000", Segment: entity.SegmentMain}}

	o := newTestOrchestrator(t, stocks, historyFor("SHSE.600000", day), &chanFeed{ch: make(chan dto.Quote)}, &recordingSink{})
	o.cfg.Realtime.AlertQueueSize = 2
	o.alertCh = make(chan dto.AlertEvent, 2)

	o.emit(dto.AlertEvent{Symbol: "A"})
	o.emit(dto.AlertEvent{Symbol: "B"})
	o.emit(dto.AlertEvent{Symbol: "C"}) // evicts A

	assert.Equal(t, int64(1), o.droppedAlerts.Load())
	close(o.alertCh)
	var got []string
	for event := range o.alertCh {
		got = append(got, event.Symbol)
	}
	assert.Equal(t, []string{"B", "C"}, got)
}

// Rolling the session over while ticks keep arriving must leave every alert
// stamped with the day its symbol state was prepared for: the trade day
// travels inside the per-symbol state, not through a shared field.
func TestOrchestrator_RolloverStampsAlertsWithPreparedDay(t *testing.T) {
	day1 := time.Date(2024, 6, 3, 0, 0, 0, 0, utils.LocationCST())
	day2 := day1.AddDate(0, 0, 1)
	symbol := "SHSE.600000"
	stocks := []entity.Stock{{Symbol: symbol, Segment: entity.SegmentMain}}

	bars := historyFor(symbol, day1)
	// day1's closed bar, so day2's trailing window is deep enough
	bars = append(bars, entity.DailyBar{
		Symbol: symbol, TradeDate: day1,
		Open: 10.06, High: 10.12, Low: 10.02, Close: 10.08,
		Volume: 10_000_000, Amount: 1.008e8, TurnoverRate: 4.0,
	})

	feed := &chanFeed{ch: make(chan dto.Quote)}
	sink := &recordingSink{}
	o := newTestOrchestrator(t, stocks, bars, feed, sink)
	o.evaluate = func(f condition.Features, _ condition.Thresholds) condition.Vector {
		if f.Price >= 10.50 {
			return allSatisfiedVector()
		}
		return allUnsatisfiedVector()
	}

	ctx := context.Background()
	require.NoError(t, o.PrepareSession(ctx, day1))
	require.NoError(t, o.Start(ctx))

	feed.ch <- dto.Quote{
		Symbol: symbol, Timestamp: utils.ClockAt(day1, 10, 0),
		Price: 10.55, CumVolume: 1_000_000, CumAmount: 1.05e7,
	}
	require.Eventually(t, func() bool { return len(sink.all()) == 1 },
		time.Second, 5*time.Millisecond, "first alert must land before rollover")

	// keep ticks flowing through the workers while the cron-side rollover
	// swaps the shards underneath them
	done := make(chan struct{})
	go func() {
		defer close(done)
		base := utils.ClockAt(day1, 10, 1)
		for i := 0; i < 200; i++ {
			feed.ch <- dto.Quote{
				Symbol: symbol, Timestamp: base.Add(time.Duration(i) * time.Millisecond),
				Price: 10.30, CumVolume: int64(1_100_000 + i*1000), CumAmount: 1.13e7 + float64(i)*1e4,
			}
		}
	}()
	require.NoError(t, o.PrepareSession(ctx, day2))
	<-done

	feed.ch <- dto.Quote{
		Symbol: symbol, Timestamp: utils.ClockAt(day2, 10, 0),
		Price: 10.60, CumVolume: 900_000, CumAmount: 9.5e6,
	}
	close(feed.ch)
	o.Stop()

	events := sink.all()
	require.Len(t, events, 2)
	assert.True(t, events[0].TradeDate.Equal(day1), "pre-rollover alert keeps its own day")
	assert.True(t, events[1].TradeDate.Equal(day2), "post-rollover alert carries the new day")
}

func TestOrchestrator_PrepareSessionSkipsShortHistory(t *testing.T) {
	day := time.Date(2024, 6, 3, 0, 0, 0, 0, utils.LocationCST())
	stocks := []entity.Stock{
		{Symbol: "SHSE.600000", Segment: entity.SegmentMain},
		{Symbol: "SZSE.300001", Segment: entity.SegmentGem},
	}
	bars := historyFor("SHSE.600000", day)
	// the second symbol listed recently and has a single bar
	bars = append(bars, entity.DailyBar{
		Symbol: "SZSE.300001", TradeDate: day.AddDate(0, 0, -1),
		Open: 20, High: 20.5, Low: 19.8, Close: 20.2, Volume: 500_000, Amount: 1.0e7, TurnoverRate: 2.0,
	})

	o := newTestOrchestrator(t, stocks, bars, &chanFeed{ch: make(chan dto.Quote)}, &recordingSink{})
	require.NoError(t, o.PrepareSession(context.Background(), day))

	loaded := 0
	for _, w := range o.workers {
		loaded += len(w.states)
	}
	assert.Equal(t, 1, loaded)
	assert.NotNil(t, o.workerFor("SHSE.600000").states["SHSE.600000"])
	assert.Nil(t, o.workerFor("SZSE.300001").states["SZSE.300001"])
}
