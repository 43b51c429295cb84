package condition

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"ashare-sentinel/internal/entity"
	"ashare-sentinel/internal/indicator"
)

// qualifyingFeatures builds a snapshot that satisfies every condition under
// the default thresholds: 65 closed bars of quiet history, a pullback day
// before the evaluation day, and a 4.46% breakout to a fresh 10-day high on
// healthy turnover. Each call returns fresh slices and metric rows so tests
// can mutate freely.
func qualifyingFeatures() Features {
	day := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)
	bars := make([]entity.DailyBar, 66)
	for i := range bars {
		bars[i] = entity.DailyBar{
			Symbol:       "SHSE.600519",
			TradeDate:    day.AddDate(0, 0, i-65),
			Open:         10.00,
			High:         10.05,
			Low:          9.97,
			Close:        10.00,
			Volume:       12_000_000,
			Amount:       1.2e8,
			TurnoverRate: 4.0,
		}
	}
	// four small up days, one pullback, then the breakout
	set := func(i int, o, h, l, c float64) {
		bars[i].Open, bars[i].High, bars[i].Low, bars[i].Close = o, h, l, c
	}
	set(60, 10.00, 10.06, 9.99, 10.04)
	set(61, 10.04, 10.10, 10.02, 10.08)
	set(62, 10.08, 10.14, 10.06, 10.12)
	set(63, 10.12, 10.18, 10.10, 10.16)
	set(64, 10.16, 10.18, 10.08, 10.10) // pullback, breaks the yang run
	set(65, 10.20, 10.60, 10.15, 10.55) // +4.46% vs 10.10
	bars[65].Volume = 23_000_000
	bars[65].Amount = 2.4e8
	bars[65].TurnoverRate = 8.0
	bars[65].CirculatingMarketCap = 3.2e9

	return Features{
		Symbol:  "SHSE.600519",
		Segment: entity.SegmentMain,
		AsOf:    day,
		Daily:   bars,
		Indicators: indicator.Snapshot{
			KDJ: []indicator.KDJ{
				{K: 42, D: 50, J: 26},
				{K: 40, D: 48, J: 24},
				{K: 38, D: 46, J: 22},
				{K: 55, D: 48, J: 69}, // evaluation day: J rising, below ceiling
			},
			MAShort:  indicator.Value{Float64: 10.23, Valid: true},
			MAMedium: indicator.Value{Float64: 10.05, Valid: true},
			MALong:   indicator.Value{Float64: 10.00, Valid: true},
			VWAP:     indicator.Value{Float64: 10.43, Valid: true},
		},
		Price:      10.55,
		Metric:     &entity.ExternalDailyMetric{ChipConcentration: 0.15, NetInflowRate: 0.08},
		PrevMetric: &entity.ExternalDailyMetric{ChipConcentration: 0.12, NetInflowRate: 0.05},
		Tail:       TailBuckets{FirstAmount: 1.0e8, SecondAmount: 1.05e8, Closed: true},
	}
}

func TestEvaluate_AllSatisfied(t *testing.T) {
	v := Evaluate(qualifyingFeatures(), DefaultThresholds())

	for i, verdict := range v {
		assert.Equal(t, Satisfied, verdict, "condition %d", i+1)
	}
	assert.Equal(t, Satisfied, v.Combined())
	assert.Equal(t, NumConditions, v.SatisfiedCount())
}

func TestEvaluate_Deterministic(t *testing.T) {
	f := qualifyingFeatures()
	th := DefaultThresholds()
	first := Evaluate(f, th)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Evaluate(f, th))
	}
}

// Each mutation is engineered to flip exactly one condition; the other 19
// must keep their verdicts. This pins down both the per-condition logic and
// the independence of the vector slots.
func TestEvaluate_SingleConditionFlips(t *testing.T) {
	tests := []struct {
		name   string
		index  int
		mutate func(f *Features, th *Thresholds)
	}{
		{"j above ceiling", 0, func(f *Features, th *Thresholds) {
			f.Indicators.KDJ[3].J = 99
		}},
		{"j-k persistence broken", 1, func(f *Features, th *Thresholds) {
			f.Indicators.KDJ[1].J = f.Indicators.KDJ[1].K + 1
		}},
		{"turnover ratio below floor", 2, func(f *Features, th *Thresholds) {
			f.Daily[64].TurnoverRate = 7.0 // ratio 1.14, relaxed rule still holds via 8 >= 7
		}},
		{"turnover rate above ceiling", 3, func(f *Features, th *Thresholds) {
			f.Daily[65].TurnoverRate = 26.0
		}},
		{"relaxed rule fails both branches", 4, func(f *Features, th *Thresholds) {
			f.Daily[64].TurnoverRate = 9.0 // today declines and ratio 0.89 < 2.5
			th.TurnoverRatioMin = 0.5      // keep the strict ratio condition alive
		}},
		{"market cap too small", 5, func(f *Features, th *Thresholds) {
			f.Daily[65].CirculatingMarketCap = 1.0e9
		}},
		{"amount below floor", 6, func(f *Features, th *Thresholds) {
			f.Daily[65].Amount = 1.0e8
		}},
		{"daily gain below raised floor", 7, func(f *Features, th *Thresholds) {
			th.DailyGainMin = 0.05
		}},
		{"trailing gain above lowered ceiling", 8, func(f *Features, th *Thresholds) {
			th.PrevGainMax = 0.05
		}},
		{"price stretched from vwap", 9, func(f *Features, th *Thresholds) {
			f.Indicators.VWAP = indicator.Value{Float64: 10.0, Valid: true}
		}},
		{"older close above today", 10, func(f *Features, th *Thresholds) {
			f.Daily[63].Close = 10.70
		}},
		{"short ma under medium ma", 11, func(f *Features, th *Thresholds) {
			f.Indicators.MAShort = indicator.Value{Float64: 10.0, Valid: true}
		}},
		{"window gain hits lowered ceiling", 12, func(f *Features, th *Thresholds) {
			th.GainCeiling = 0.04
		}},
		{"four-yang run completed", 13, func(f *Features, th *Thresholds) {
			f.Daily[64].Open = 10.02 // the pullback day becomes an up day
		}},
		{"intraday drop beyond floor", 14, func(f *Features, th *Thresholds) {
			f.Daily[64].Low = 9.0
		}},
		{"upper shadow too long", 15, func(f *Features, th *Thresholds) {
			f.Daily[65].High = 11.10
		}},
		{"gain inside widened limit buffer", 16, func(f *Features, th *Thresholds) {
			th.LimitGainBuffer = 0.058
		}},
		{"chip concentration not rising", 17, func(f *Features, th *Thresholds) {
			f.PrevMetric = &entity.ExternalDailyMetric{ChipConcentration: 0.20}
		}},
		{"inflow rate below floor", 18, func(f *Features, th *Thresholds) {
			f.Metric = &entity.ExternalDailyMetric{ChipConcentration: 0.15, NetInflowRate: 0.05}
		}},
		{"tail second bucket too weak", 19, func(f *Features, th *Thresholds) {
			f.Tail.SecondAmount = 0.9e8
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := qualifyingFeatures()
			th := DefaultThresholds()
			tt.mutate(&f, &th)

			v := Evaluate(f, th)
			assert.Equal(t, Unsatisfied, v[tt.index], "condition %d should flip", tt.index+1)
			for i, verdict := range v {
				if i == tt.index {
					continue
				}
				assert.Equal(t, Satisfied, verdict, "condition %d must not move", i+1)
			}
			assert.Equal(t, Unsatisfied, v.Combined())
		})
	}
}

func TestEvaluate_TailSurgeTiers(t *testing.T) {
	th := DefaultThresholds()

	t.Run("ratio and amount exactly at tier floor", func(t *testing.T) {
		f := qualifyingFeatures()
		f.Tail = TailBuckets{FirstAmount: 1.0e8, SecondAmount: 1.0e8, Closed: true}
		assert.Equal(t, Satisfied, Evaluate(f, th)[19])
	})

	t.Run("one unit below every tier", func(t *testing.T) {
		f := qualifyingFeatures()
		f.Tail = TailBuckets{FirstAmount: 1.0e8, SecondAmount: 1.0e8 - 1, Closed: true}
		assert.Equal(t, Unsatisfied, Evaluate(f, th)[19])
	})

	t.Run("lower ratio rescued by a bigger amount tier", func(t *testing.T) {
		f := qualifyingFeatures()
		f.Tail = TailBuckets{FirstAmount: 2.5e8, SecondAmount: 2.0e8, Closed: true} // ratio 0.8, tier 3
		assert.Equal(t, Satisfied, Evaluate(f, th)[19])
	})

	t.Run("open bucket keeps the day undecidable", func(t *testing.T) {
		f := qualifyingFeatures()
		f.Tail = TailBuckets{FirstAmount: 1.0e8, SecondAmount: 0, Closed: false}
		v := Evaluate(f, th)
		assert.Equal(t, NotReady, v[19])
		assert.Equal(t, NotReady, v.Combined())
	})

	t.Run("empty first bucket is not divisible", func(t *testing.T) {
		f := qualifyingFeatures()
		f.Tail = TailBuckets{FirstAmount: 0, SecondAmount: 2.0e8, Closed: true}
		assert.Equal(t, NotReady, Evaluate(f, th)[19])
	})
}

func TestEvaluate_MissingMetricsNotReady(t *testing.T) {
	f := qualifyingFeatures()
	f.Metric = nil
	f.PrevMetric = nil

	v := Evaluate(f, DefaultThresholds())
	assert.Equal(t, NotReady, v[17])
	assert.Equal(t, NotReady, v[18])
	assert.Equal(t, NotReady, v.Combined())
}

func TestEvaluate_ShortHistoryNotReady(t *testing.T) {
	f := qualifyingFeatures()
	f.Daily = f.Daily[60:] // 6 bars
	f.Indicators = indicator.Snapshot{}

	v := Evaluate(f, DefaultThresholds())
	for _, i := range []int{0, 1, 8, 9, 10, 11, 14} {
		assert.Equal(t, NotReady, v[i], "condition %d", i+1)
	}
	assert.Equal(t, NotReady, v.Combined())
}

func TestEvaluate_InclusiveBounds(t *testing.T) {
	f := qualifyingFeatures()
	f.Daily[65].TurnoverRate = 3.28 // exactly the floor
	assert.Equal(t, Satisfied, Evaluate(f, DefaultThresholds())[3])

	f = qualifyingFeatures()
	f.Daily[65].TurnoverRate = 25.8 // exactly the ceiling
	assert.Equal(t, Satisfied, Evaluate(f, DefaultThresholds())[3])
}

func TestMinBars_CoversLongestWindow(t *testing.T) {
	got := MinBars(DefaultThresholds(), indicator.DefaultParams())
	assert.Equal(t, indicator.MinHistory, got)

	th := DefaultThresholds()
	th.BigDropLookbackDays = 80
	assert.Equal(t, 81, MinBars(th, indicator.DefaultParams()))
}
