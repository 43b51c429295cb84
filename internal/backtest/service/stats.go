package service

import (
	"sort"

	"github.com/samber/lo"
)

// HorizonStats summarizes forward returns at one horizon across all hits
// that have that horizon resolved.
type HorizonStats struct {
	Horizon int     `json:"horizon"`
	Count   int     `json:"count"`
	Mean    float64 `json:"mean"`
	Median  float64 `json:"median"`
	WinRate float64 `json:"win_rate"`
}

// Report is the aggregated outcome of one backtest run. Pure data, no I/O
// behind it.
type Report struct {
	Evaluated    int            `json:"evaluated"`
	HitCount     int            `json:"hit_count"`
	HitRate      float64        `json:"hit_rate"`
	HitsPerDay   map[string]int `json:"hits_per_day"`
	HitsBySymbol map[string]int `json:"hits_by_symbol"`
	Horizons     []HorizonStats `json:"horizons"`
}

// Aggregate folds the hit set into the report. evaluated is the number of
// (symbol, day) cells that were actually evaluable.
func Aggregate(hits []Hit, evaluated int, horizons []int) *Report {
	report := &Report{
		Evaluated: evaluated,
		HitCount:  len(hits),
		HitsPerDay: lo.MapValues(
			lo.GroupBy(hits, func(h Hit) string { return h.TradeDate.Format("2006-01-02") }),
			func(group []Hit, _ string) int { return len(group) },
		),
		HitsBySymbol: lo.MapValues(
			lo.GroupBy(hits, func(h Hit) string { return h.Symbol }),
			func(group []Hit, _ string) int { return len(group) },
		),
	}
	if evaluated > 0 {
		report.HitRate = float64(len(hits)) / float64(evaluated)
	}

	for _, horizon := range horizons {
		returns := lo.FilterMap(hits, func(h Hit, _ int) (float64, bool) {
			r, ok := h.ForwardReturns[horizon]
			return r, ok
		})
		report.Horizons = append(report.Horizons, horizonStats(horizon, returns))
	}
	return report
}

func horizonStats(horizon int, returns []float64) HorizonStats {
	stats := HorizonStats{Horizon: horizon, Count: len(returns)}
	if len(returns) == 0 {
		return stats
	}

	stats.Mean = lo.Sum(returns) / float64(len(returns))

	sorted := append([]float64(nil), returns...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		stats.Median = (sorted[mid-1] + sorted[mid]) / 2
	} else {
		stats.Median = sorted[mid]
	}

	wins := lo.CountBy(returns, func(r float64) bool { return r > 0 })
	stats.WinRate = float64(wins) / float64(len(returns))
	return stats
}
