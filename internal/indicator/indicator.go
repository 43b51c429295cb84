package indicator

import (
	"ashare-sentinel/internal/entity"
)

// MinHistory is the minimum number of trailing daily bars required for a
// valid snapshot. Below this the engine reports not-ready rather than a
// silently wrong value.
const MinHistory = 60

// KDJTrailing is how many trailing KDJ values a snapshot keeps. The
// evaluator needs the current value, the prior value for the J-rising
// check, and the closed days before the current one for the J<K
// persistence check; threshold validation rejects persistence windows
// deeper than this.
const KDJTrailing = 4

// Value is a float that may be not-ready.
type Value struct {
	Float64 float64
	Valid   bool
}

// KDJ is one day's oscillator triple.
type KDJ struct {
	K float64
	D float64
	J float64
}

// Snapshot holds the derived indicators for the most recent bar of a
// trailing window.
type Snapshot struct {
	// KDJ trailing values, oldest first, newest last. Empty when the
	// window is too short.
	KDJ []KDJ

	MAShort  Value
	MAMedium Value
	MALong   Value

	// VWAP for the most recent session: cumulative amount over cumulative
	// volume. Not-ready on a zero denominator.
	VWAP Value
}

// Ready reports whether every indicator in the snapshot is usable.
func (s Snapshot) Ready() bool {
	return len(s.KDJ) == KDJTrailing && s.MAShort.Valid && s.MAMedium.Valid && s.MALong.Valid && s.VWAP.Valid
}

// Params configures the indicator windows.
type Params struct {
	KDJLookback int `mapstructure:"kdj_lookback" yaml:"kdj_lookback"`
	KDJSmoothK  int `mapstructure:"kdj_smooth_k" yaml:"kdj_smooth_k"`
	KDJSmoothD  int `mapstructure:"kdj_smooth_d" yaml:"kdj_smooth_d"`
	MAShort     int `mapstructure:"ma_short" yaml:"ma_short"`
	MAMedium    int `mapstructure:"ma_medium" yaml:"ma_medium"`
	MALong      int `mapstructure:"ma_long" yaml:"ma_long"`
}

// DefaultParams returns the conventional KDJ(9,3,3) and MA(5,20,60) setup.
func DefaultParams() Params {
	return Params{
		KDJLookback: 9,
		KDJSmoothK:  3,
		KDJSmoothD:  3,
		MAShort:     5,
		MAMedium:    20,
		MALong:      60,
	}
}

// Compute derives the snapshot for the most recent bar of the given window.
// Bars must be ordered oldest to newest; the last bar may be a live
// "day so far" bar. Gaps or reordering invalidate the KDJ series, so the
// caller is responsible for passing a contiguous window.
func Compute(bars []entity.DailyBar, p Params) Snapshot {
	var snap Snapshot

	kdj := ComputeKDJ(bars, p.KDJLookback, p.KDJSmoothK, p.KDJSmoothD)
	if len(kdj) >= KDJTrailing {
		snap.KDJ = kdj[len(kdj)-KDJTrailing:]
	}

	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}
	snap.MAShort = MovingAverage(closes, p.MAShort)
	snap.MAMedium = MovingAverage(closes, p.MAMedium)
	snap.MALong = MovingAverage(closes, p.MALong)

	if len(bars) > 0 {
		last := bars[len(bars)-1]
		snap.VWAP = SessionVWAP(last.Amount, last.Volume)
	}

	return snap
}

// ComputeKDJ computes the full KDJ series over the window. Each value is
// recursively smoothed from the prior one, so the computation is strictly
// sequential: K and D seed at 50 before enough history exists.
func ComputeKDJ(bars []entity.DailyBar, n, m1, m2 int) []KDJ {
	if n <= 0 || m1 <= 0 || m2 <= 0 || len(bars) == 0 {
		return nil
	}

	out := make([]KDJ, 0, len(bars))
	k, d := 50.0, 50.0

	for i := range bars {
		lo := i - n + 1
		if lo < 0 {
			lo = 0
		}
		highest := bars[lo].High
		lowest := bars[lo].Low
		for _, b := range bars[lo+1 : i+1] {
			if b.High > highest {
				highest = b.High
			}
			if b.Low < lowest {
				lowest = b.Low
			}
		}

		rsv := 50.0
		if highest > lowest {
			rsv = (bars[i].Close - lowest) / (highest - lowest) * 100
		}

		k = (float64(m1-1)*k + rsv) / float64(m1)
		d = (float64(m2-1)*d + k) / float64(m2)
		out = append(out, KDJ{K: k, D: d, J: 3*k - 2*d})
	}

	return out
}

// MovingAverage returns the arithmetic mean of the last n closes, or
// not-ready while fewer than n values exist.
func MovingAverage(closes []float64, n int) Value {
	if n <= 0 || len(closes) < n {
		return Value{}
	}
	sum := 0.0
	for _, c := range closes[len(closes)-n:] {
		sum += c
	}
	return Value{Float64: sum / float64(n), Valid: true}
}

// SessionVWAP returns cumulative amount over cumulative volume for a
// session. Zero denominators yield not-ready, never a division error.
func SessionVWAP(amount float64, volume int64) Value {
	if volume <= 0 || amount <= 0 {
		return Value{}
	}
	return Value{Float64: amount / float64(volume), Valid: true}
}
