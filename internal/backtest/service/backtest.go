package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"ashare-sentinel/internal/backtest/config"
	"ashare-sentinel/internal/condition"
	"ashare-sentinel/internal/entity"
	"ashare-sentinel/internal/feature"
	"ashare-sentinel/internal/repository"
	"ashare-sentinel/pkg/logger"

	"golang.org/x/sync/errgroup"
)

// Hit is one all-satisfied (symbol, day) pair with its forward returns.
type Hit struct {
	Symbol         string
	TradeDate      time.Time
	EntryClose     float64
	Vector         condition.Vector
	ForwardReturns map[int]float64 // horizon → return, absent if not enough bars
}

// Runner replays the shared evaluator day by day over a date range with
// strict no-lookahead: the decision for day D sees only bars dated <= D;
// forward bars are fetched only after the hit is recorded.
type Runner struct {
	cfg        *config.Config
	logger     *logger.Logger
	store      *feature.Store
	stocksRepo repository.StocksRepository
	barRepo    repository.DailyBarRepository
	calendar   repository.TradingCalendarRepository
	hitRepo    repository.BacktestHitRepository
	evaluate   func(condition.Features, condition.Thresholds) condition.Vector
}

// NewRunner creates a backtest runner.
func NewRunner(cfg *config.Config, log *logger.Logger, store *feature.Store, stocksRepo repository.StocksRepository, barRepo repository.DailyBarRepository, calendar repository.TradingCalendarRepository, hitRepo repository.BacktestHitRepository) *Runner {
	return &Runner{
		cfg:        cfg,
		logger:     log,
		store:      store,
		stocksRepo: stocksRepo,
		barRepo:    barRepo,
		calendar:   calendar,
		hitRepo:    hitRepo,
		evaluate:   condition.Evaluate,
	}
}

// Run executes the backtest and returns the aggregated report.
func (r *Runner) Run(ctx context.Context, start, end time.Time) (*Report, error) {
	days, err := r.calendar.GetTradingDays(ctx, r.cfg.Backtest.Exchange, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to load trading calendar: %w", err)
	}
	if len(days) == 0 {
		return nil, fmt.Errorf("no trading days in range %s..%s", start.Format("2006-01-02"), end.Format("2006-01-02"))
	}

	stocks, err := r.stocksRepo.GetPool(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load stock pool: %w", err)
	}

	var (
		mu        sync.Mutex
		hits      []Hit
		evaluated int
	)

	for _, day := range days {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(r.cfg.Backtest.Concurrency)
		for _, stock := range stocks {
			stock := stock
			g.Go(func() error {
				hit, counted, err := r.evaluateSymbolDay(gctx, stock, day)
				if err != nil {
					return err
				}
				mu.Lock()
				if counted {
					evaluated++
				}
				if hit != nil {
					hits = append(hits, *hit)
				}
				mu.Unlock()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	sort.Slice(hits, func(i, j int) bool {
		if !hits[i].TradeDate.Equal(hits[j].TradeDate) {
			return hits[i].TradeDate.Before(hits[j].TradeDate)
		}
		return hits[i].Symbol < hits[j].Symbol
	})

	if err := r.persistHits(ctx, hits); err != nil {
		return nil, err
	}

	report := Aggregate(hits, evaluated, r.cfg.Backtest.Horizons)
	r.logger.Info("Backtest finished",
		logger.StringField("run_id", r.cfg.Backtest.RunID),
		logger.IntField("days", len(days)),
		logger.IntField("evaluated", evaluated),
		logger.IntField("hits", len(hits)))
	return report, nil
}

// evaluateSymbolDay runs one (symbol, day) cell. counted reports whether
// the symbol was actually evaluable that day; symbols without enough
// trailing history are skipped, not counted as misses.
func (r *Runner) evaluateSymbolDay(ctx context.Context, stock entity.Stock, day time.Time) (*Hit, bool, error) {
	features, err := r.store.SnapshotAsOf(ctx, stock, day)
	if errors.Is(err, feature.ErrInsufficientHistory) {
		return nil, false, nil
	}
	if err != nil {
		// a broken symbol halts only that symbol's evaluation for the day
		r.logger.Warn("Skipping symbol on data error",
			logger.StringField("symbol", stock.Symbol),
			logger.StringField("day", day.Format("2006-01-02")),
			logger.ErrorField(err))
		return nil, false, nil
	}

	vector := r.evaluate(features, r.cfg.Conditions)
	if vector.Combined() != condition.Satisfied {
		return nil, true, nil
	}

	hit := &Hit{
		Symbol:     stock.Symbol,
		TradeDate:  day,
		EntryClose: features.Price,
		Vector:     vector,
	}
	// forward bars are read only now, after the decision is recorded
	hit.ForwardReturns, err = r.forwardReturns(ctx, stock.Symbol, day, features.Price)
	if err != nil {
		return nil, true, err
	}
	return hit, true, nil
}

func (r *Runner) forwardReturns(ctx context.Context, symbol string, day time.Time, entryClose float64) (map[int]float64, error) {
	horizons := r.cfg.Backtest.Horizons
	maxHorizon := 0
	for _, h := range horizons {
		if h > maxHorizon {
			maxHorizon = h
		}
	}
	forward, err := r.barRepo.GetForward(ctx, symbol, day, maxHorizon)
	if err != nil {
		return nil, fmt.Errorf("failed to load forward bars for %s: %w", symbol, err)
	}

	returns := make(map[int]float64, len(horizons))
	for _, h := range horizons {
		if h <= 0 || h > len(forward) || entryClose <= 0 {
			continue
		}
		returns[h] = forward[h-1].Close/entryClose - 1
	}
	return returns, nil
}

func (r *Runner) persistHits(ctx context.Context, hits []Hit) error {
	records := make([]entity.BacktestHit, 0, len(hits))
	for _, hit := range hits {
		vectorJSON, err := json.Marshal(hit.Vector)
		if err != nil {
			return fmt.Errorf("failed to marshal condition vector: %w", err)
		}
		returnsJSON, err := json.Marshal(hit.ForwardReturns)
		if err != nil {
			return fmt.Errorf("failed to marshal forward returns: %w", err)
		}
		records = append(records, entity.BacktestHit{
			RunID:           r.cfg.Backtest.RunID,
			Symbol:          hit.Symbol,
			TradeDate:       hit.TradeDate,
			EntryClose:      hit.EntryClose,
			ConditionVector: vectorJSON,
			ForwardReturns:  returnsJSON,
		})
	}
	if err := r.hitRepo.CreateBatch(ctx, records); err != nil {
		return fmt.Errorf("failed to persist backtest hits: %w", err)
	}
	return nil
}
