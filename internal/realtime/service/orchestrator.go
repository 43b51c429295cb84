package service

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"

	"ashare-sentinel/internal/condition"
	"ashare-sentinel/internal/entity"
	"ashare-sentinel/internal/feature"
	"ashare-sentinel/internal/indicator"
	"ashare-sentinel/internal/realtime/config"
	"ashare-sentinel/internal/realtime/dto"
	"ashare-sentinel/internal/repository"
	"ashare-sentinel/pkg/logger"
	"ashare-sentinel/pkg/utils"

	"golang.org/x/sync/errgroup"
)

// session clock slots (exchange local time).
const (
	sessionOpenHour = 9
	sessionOpenMin  = 30
	sessionEndHour  = 15
	sessionEndMin   = 0
)

// QuoteFeed supplies the live tick stream. Retry and backoff are the
// market-data collaborator's responsibility.
type QuoteFeed interface {
	Subscribe(ctx context.Context) (<-chan dto.Quote, error)
}

// AlertSink accepts alert events. Delivery guarantees are the sink's
// responsibility; the orchestrator guarantees at most one emission per
// symbol per day.
type AlertSink interface {
	Deliver(ctx context.Context, event dto.AlertEvent) error
}

// Orchestrator runs the live evaluation loop. Mutable state is sharded by
// symbol: every symbol hashes to exactly one worker, so ticks for one
// symbol are applied in order while different symbols proceed in parallel.
type Orchestrator struct {
	cfg        *config.Config
	logger     *logger.Logger
	store      *feature.Store
	stocksRepo repository.StocksRepository
	feed       QuoteFeed
	sink       AlertSink

	thresholds condition.Thresholds
	params     indicator.Params
	evaluate   func(condition.Features, condition.Thresholds) condition.Vector

	workers []*worker
	alertCh chan dto.AlertEvent

	droppedAlerts atomic.Int64
	staleTicks    atomic.Int64
	alertCount    atomic.Int64

	workerWg sync.WaitGroup
	sinkWg   sync.WaitGroup
}

// worker owns one shard of per-symbol state. Values in the states map are
// touched only by the worker goroutine; the map itself is swapped at day
// rollover from the cron goroutine, hence the lock around map access.
type worker struct {
	ticks chan dto.Quote

	mu     sync.RWMutex
	states map[string]*symbolState
}

// symbolState is the exclusively owned per-symbol slot. day is the session
// trade day the state was prepared for; like stock and history it is
// immutable once the state is published to a shard, so workers read it
// without synchronization across day rollovers.
type symbolState struct {
	stock   entity.Stock
	day     time.Time
	history []entity.DailyBar // closed trailing bars, oldest to newest

	// floatShares is derived from the last closed bar so the synthetic
	// bar can carry a live turnover rate and market cap.
	floatShares float64

	today     entity.DailyBar
	haveToday bool
	lastTick  time.Time

	// metric pointers are refreshed from the cron goroutine while the
	// owning worker reads them, hence atomic. Rows are write-once.
	metric     atomic.Pointer[entity.ExternalDailyMetric]
	prevMetric atomic.Pointer[entity.ExternalDailyMetric]

	lastCumAmount     float64
	tailStartAmount   float64
	tailStartSeen     bool
	tailMidAmount     float64
	tailMidSeen       bool
	tail              condition.TailBuckets

	alerted bool
}

// NewOrchestrator creates the realtime orchestrator.
func NewOrchestrator(cfg *config.Config, log *logger.Logger, store *feature.Store, stocksRepo repository.StocksRepository, feed QuoteFeed, sink AlertSink) *Orchestrator {
	o := &Orchestrator{
		cfg:        cfg,
		logger:     log,
		store:      store,
		stocksRepo: stocksRepo,
		feed:       feed,
		sink:       sink,
		thresholds: cfg.Conditions,
		params:     cfg.Indicator,
		evaluate:   condition.Evaluate,
		alertCh:    make(chan dto.AlertEvent, cfg.Realtime.AlertQueueSize),
	}
	o.workers = make([]*worker, cfg.Realtime.Workers)
	for i := range o.workers {
		o.workers[i] = &worker{
			ticks:  make(chan dto.Quote, cfg.Realtime.TickBuffer),
			states: make(map[string]*symbolState),
		}
	}
	return o
}

// PrepareSession loads the stock pool and each symbol's trailing history
// and prior-day metrics into the shards, and resets the per-day alert
// state. Called once before the session opens and again at day rollover.
func (o *Orchestrator) PrepareSession(ctx context.Context, day time.Time) error {
	stocks, err := o.stocksRepo.GetPool(ctx)
	if err != nil {
		return fmt.Errorf("failed to load stock pool: %w", err)
	}
	day = utils.TruncateToDate(day)

	var mu sync.Mutex
	loaded := make(map[string]*symbolState, len(stocks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.Realtime.PreloadConcurrency)
	for _, stock := range stocks {
		stock := stock
		g.Go(func() error {
			state, err := o.loadSymbol(gctx, stock, day)
			if err == feature.ErrInsufficientHistory {
				return nil // skipped for the session, not an error
			}
			if err != nil {
				o.logger.Error("Failed to preload symbol",
					logger.StringField("symbol", stock.Symbol), logger.ErrorField(err))
				return nil // one symbol's data gap never stops the session
			}
			mu.Lock()
			loaded[stock.Symbol] = state
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	next := make([]map[string]*symbolState, len(o.workers))
	for i := range next {
		next[i] = make(map[string]*symbolState)
	}
	for symbol, state := range loaded {
		next[o.workerIndex(symbol)][symbol] = state
	}
	for i, w := range o.workers {
		w.mu.Lock()
		w.states = next[i]
		w.mu.Unlock()
	}

	o.logger.Info("Session prepared",
		logger.StringField("day", day.Format("2006-01-02")),
		logger.IntField("symbols", len(loaded)),
		logger.IntField("pool", len(stocks)))
	return nil
}

func (o *Orchestrator) loadSymbol(ctx context.Context, stock entity.Stock, day time.Time) (*symbolState, error) {
	history, err := o.store.TrailingWindow(ctx, stock.Symbol, day)
	if err != nil {
		return nil, err
	}
	last := history[len(history)-1]

	metric, prevMetric, err := o.store.MetricPair(ctx, stock.Symbol, day, last.TradeDate)
	if err != nil {
		return nil, err
	}

	state := &symbolState{
		stock:   stock,
		day:     day,
		history: history,
	}
	state.metric.Store(metric)
	state.prevMetric.Store(prevMetric)
	if last.TurnoverRate > 0 {
		state.floatShares = float64(last.Volume) / (last.TurnoverRate / 100)
	}
	return state, nil
}

// RefreshMetrics re-reads the external metric rows for symbols whose
// current-day row had not landed at preload time. Scheduled before the
// tail session so the flow conditions can resolve.
func (o *Orchestrator) RefreshMetrics(ctx context.Context) {
	refreshed := 0
	for _, w := range o.workers {
		w.mu.RLock()
		states := make(map[string]*symbolState, len(w.states))
		for symbol, state := range w.states {
			states[symbol] = state
		}
		w.mu.RUnlock()
		for symbol, state := range states {
			if state.metric.Load() != nil && state.prevMetric.Load() != nil {
				continue
			}
			prevDay := time.Time{}
			if len(state.history) > 0 {
				prevDay = state.history[len(state.history)-1].TradeDate
			}
			metric, prevMetric, err := o.store.MetricPair(ctx, symbol, state.day, prevDay)
			if err != nil {
				o.logger.Warn("Failed to refresh metrics", logger.StringField("symbol", symbol), logger.ErrorField(err))
				continue
			}
			state.metric.Store(metric)
			state.prevMetric.Store(prevMetric)
			refreshed++
		}
	}
	o.logger.Info("External metrics refreshed", logger.IntField("symbols", refreshed))
}

// Start subscribes to the feed and runs the dispatch, worker and sink
// loops until the context is cancelled.
func (o *Orchestrator) Start(ctx context.Context) error {
	ticks, err := o.feed.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe to quote feed: %w", err)
	}

	for _, w := range o.workers {
		w := w
		o.workerWg.Add(1)
		utils.GoSafe(func() {
			defer o.workerWg.Done()
			for quote := range w.ticks {
				o.applyTick(w, quote)
			}
		})
	}

	o.sinkWg.Add(1)
	utils.GoSafe(func() {
		defer o.sinkWg.Done()
		for event := range o.alertCh {
			if err := o.sink.Deliver(ctx, event); err != nil {
				o.logger.Error("Failed to deliver alert",
					logger.StringField("symbol", event.Symbol), logger.ErrorField(err))
			}
		}
	})

	o.workerWg.Add(1)
	utils.GoSafe(func() {
		defer o.workerWg.Done()
		for quote := range ticks {
			o.workerFor(quote.Symbol).ticks <- quote
		}
		for _, w := range o.workers {
			close(w.ticks)
		}
	})

	o.logger.Info("Realtime orchestrator started", logger.IntField("workers", len(o.workers)))
	return nil
}

// Stop drains the workers and the alert queue, then reports counters. Safe
// to call once after the feed channel has been closed by cancellation.
func (o *Orchestrator) Stop() {
	o.workerWg.Wait()
	close(o.alertCh)
	o.sinkWg.Wait()
	o.logger.Info("Realtime orchestrator stopped",
		logger.IntField("alerts", int(o.alertCount.Load())),
		logger.IntField("stale_ticks", int(o.staleTicks.Load())),
		logger.IntField("dropped_alerts", int(o.droppedAlerts.Load())))
}

func (o *Orchestrator) workerFor(symbol string) *worker {
	return o.workers[o.workerIndex(symbol)]
}

func (o *Orchestrator) workerIndex(symbol string) int {
	h := fnv.New32a()
	h.Write([]byte(symbol))
	return int(h.Sum32() % uint32(len(o.workers)))
}

// applyTick is the per-tick hot path: update the symbol's intraday
// accumulators and synthetic bar, re-evaluate, and emit on the first
// satisfied transition. It never touches the network.
func (o *Orchestrator) applyTick(w *worker, quote dto.Quote) {
	w.mu.RLock()
	state, ok := w.states[quote.Symbol]
	w.mu.RUnlock()
	if !ok {
		return // not in this session's universe
	}
	if quote.Price <= 0 || quote.CumVolume < 0 {
		o.logger.Warn("Rejected malformed tick", logger.StringField("symbol", quote.Symbol))
		return
	}
	if !quote.Timestamp.After(state.lastTick) {
		o.staleTicks.Add(1)
		return
	}
	state.lastTick = quote.Timestamp

	o.updateSyntheticBar(state, quote)
	o.updateTailBuckets(state, quote)

	if state.alerted {
		return
	}

	features := o.buildFeatures(state, quote)
	vector := o.evaluate(features, o.thresholds)
	if vector.Combined() != condition.Satisfied {
		return
	}

	state.alerted = true
	o.alertCount.Add(1)
	o.emit(dto.AlertEvent{
		Symbol:      state.stock.Symbol,
		Name:        state.stock.Name,
		TradeDate:   state.day,
		TriggeredAt: quote.Timestamp,
		Price:       quote.Price,
		Vector:      vector,
	})
}

func (o *Orchestrator) updateSyntheticBar(state *symbolState, quote dto.Quote) {
	if !state.haveToday {
		open := quote.Open
		if open <= 0 {
			open = quote.Price
		}
		state.today = entity.DailyBar{
			Symbol:    state.stock.Symbol,
			TradeDate: state.day,
			Open:      open,
			High:      quote.Price,
			Low:       quote.Price,
		}
		state.haveToday = true
	}
	bar := &state.today
	if quote.High > bar.High {
		bar.High = quote.High
	} else if quote.Price > bar.High {
		bar.High = quote.Price
	}
	if quote.Low > 0 && quote.Low < bar.Low {
		bar.Low = quote.Low
	} else if quote.Price < bar.Low {
		bar.Low = quote.Price
	}
	bar.Close = quote.Price
	bar.Volume = quote.CumVolume
	bar.Amount = quote.CumAmount

	if state.floatShares > 0 {
		bar.TurnoverRate = float64(quote.CumVolume) / state.floatShares * 100
		bar.CirculatingMarketCap = quote.Price * state.floatShares
	}
}

// updateTailBuckets snapshots the cumulative session amount as the clock
// crosses each fixed bucket boundary. Bucket amounts are differences of
// those snapshots, so arrival order within a bucket does not matter.
func (o *Orchestrator) updateTailBuckets(state *symbolState, quote dto.Quote) {
	starts := feature.TailBucketStarts(state.day)
	sessionEnd := utils.ClockAt(state.day, sessionEndHour, sessionEndMin)

	if !state.tailStartSeen && !quote.Timestamp.Before(starts[0]) {
		state.tailStartSeen = true
		state.tailStartAmount = state.lastCumAmount
	}
	if !state.tailMidSeen && !quote.Timestamp.Before(starts[1]) {
		state.tailMidSeen = true
		state.tailMidAmount = state.lastCumAmount
		state.tail.FirstAmount = state.tailMidAmount - state.tailStartAmount
	}
	if !state.tail.Closed && state.tailMidSeen && !quote.Timestamp.Before(sessionEnd) {
		state.tail.SecondAmount = quote.CumAmount - state.tailMidAmount
		state.tail.Closed = true
	}
	state.lastCumAmount = quote.CumAmount
}

func (o *Orchestrator) buildFeatures(state *symbolState, quote dto.Quote) condition.Features {
	window := make([]entity.DailyBar, 0, len(state.history)+1)
	window = append(window, state.history...)
	window = append(window, state.today)

	return condition.Features{
		Symbol:     state.stock.Symbol,
		Segment:    state.stock.Segment,
		AsOf:       state.day,
		Daily:      window,
		Indicators: indicator.Compute(window, o.params),
		Price:      quote.Price,
		Metric:     state.metric.Load(),
		PrevMetric: state.prevMetric.Load(),
		Tail:       state.tail,
	}
}

// emit enqueues the event without ever blocking tick processing. On a full
// queue the oldest queued alert is dropped in favor of the newest, and the
// overflow is counted and logged.
func (o *Orchestrator) emit(event dto.AlertEvent) {
	for {
		select {
		case o.alertCh <- event:
			return
		default:
		}
		select {
		case dropped := <-o.alertCh:
			o.droppedAlerts.Add(1)
			o.logger.Warn("Alert queue saturated, dropping oldest",
				logger.StringField("dropped_symbol", dropped.Symbol),
				logger.IntField("dropped_total", int(o.droppedAlerts.Load())))
		default:
		}
	}
}
