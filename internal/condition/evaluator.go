package condition

import (
	"math"

	"ashare-sentinel/internal/indicator"
)

// Evaluate runs all conditions over one immutable feature snapshot. It is a
// pure function: no I/O, no state beyond its arguments, identical output
// for identical input. Both the realtime orchestrator and the backtest
// engine call exactly this.
func Evaluate(f Features, t Thresholds) Vector {
	var v Vector
	v[0] = evalOscillatorLow(f, t)
	v[1] = evalOscillatorPersistence(f, t)
	v[2] = evalTurnoverRatio(f, t)
	v[3] = evalTurnoverRate(f, t)
	v[4] = evalTurnoverRelaxed(f, t)
	v[5] = evalMarketCap(f, t)
	v[6] = evalAmount(f, t)
	v[7] = evalDailyGain(f, t)
	v[8] = evalTrailingGain(f, t)
	v[9] = evalVWAPDeviation(f, t)
	v[10] = evalRollingHigh(f, t)
	v[11] = evalTrendAlignment(f, t)
	v[12] = evalGainCeilingWindow(f, t)
	v[13] = evalNoYangRun(f, t)
	v[14] = evalNoBigDrop(f, t)
	v[15] = evalNoUpperShadow(f, t)
	v[16] = evalNotAtLimit(f, t)
	v[17] = evalChipConcentration(f, t)
	v[18] = evalMainInflow(f, t)
	v[19] = evalTailSurge(f, t)
	return v
}

// Condition 1: J below its ceiling and rising versus the prior day.
func evalOscillatorLow(f Features, t Thresholds) Verdict {
	kdj := f.Indicators.KDJ
	if len(kdj) < 2 {
		return NotReady
	}
	cur, prev := kdj[len(kdj)-1], kdj[len(kdj)-2]
	return verdictOf(cur.J < t.KDJJMax && cur.J > prev.J)
}

// Condition 2: J < K on each of the last JLtKPersistDays closed days. The
// evaluation day itself is excluded: its oscillator value moves with every
// tick, the persistence check is about the setup leading into it.
func evalOscillatorPersistence(f Features, t Thresholds) Verdict {
	kdj := f.Indicators.KDJ
	if len(kdj) < t.JLtKPersistDays+1 {
		return NotReady
	}
	kdj = kdj[:len(kdj)-1]
	for _, day := range kdj[len(kdj)-t.JLtKPersistDays:] {
		if day.J >= day.K {
			return Unsatisfied
		}
	}
	return Satisfied
}

// Condition 3: today's turnover rate over yesterday's inside the ratio
// bounds, inclusive.
func evalTurnoverRatio(f Features, t Thresholds) Verdict {
	today, ok := f.Today()
	prev, okPrev := f.Prev(1)
	if !ok || !okPrev || today.TurnoverRate <= 0 || prev.TurnoverRate <= 0 {
		return NotReady
	}
	ratio := today.TurnoverRate / prev.TurnoverRate
	return verdictOf(ratio >= t.TurnoverRatioMin && ratio <= t.TurnoverRatioMax)
}

// Condition 4: today's absolute turnover rate inside bounds, inclusive.
func evalTurnoverRate(f Features, t Thresholds) Verdict {
	today, ok := f.Today()
	if !ok || today.TurnoverRate <= 0 {
		return NotReady
	}
	return verdictOf(today.TurnoverRate >= t.TurnoverRateMin && today.TurnoverRate <= t.TurnoverRateMax)
}

// Condition 5: relaxed turnover rule, satisfied by either comparison.
func evalTurnoverRelaxed(f Features, t Thresholds) Verdict {
	today, ok := f.Today()
	prev, okPrev := f.Prev(1)
	if !ok || !okPrev || today.TurnoverRate <= 0 || prev.TurnoverRate <= 0 {
		return NotReady
	}
	ratio := today.TurnoverRate / prev.TurnoverRate
	return verdictOf(ratio >= t.TurnoverRatioRelaxed || today.TurnoverRate >= prev.TurnoverRate)
}

// Condition 6: circulating market cap inside bounds, inclusive.
func evalMarketCap(f Features, t Thresholds) Verdict {
	today, ok := f.Today()
	if !ok || today.CirculatingMarketCap <= 0 {
		return NotReady
	}
	mcap := today.CirculatingMarketCap
	return verdictOf(mcap >= t.MarketCapMin && mcap <= t.MarketCapMax)
}

// Condition 7: traded amount inside bounds, inclusive.
func evalAmount(f Features, t Thresholds) Verdict {
	today, ok := f.Today()
	if !ok || today.Amount <= 0 {
		return NotReady
	}
	return verdictOf(today.Amount >= t.AmountMin && today.Amount <= t.AmountMax)
}

// Condition 8: same-day gain inside bounds, inclusive.
func evalDailyGain(f Features, t Thresholds) Verdict {
	today, ok := f.Today()
	prev, okPrev := f.Prev(1)
	if !ok || !okPrev {
		return NotReady
	}
	gain, valid := today.Gain(prev.Close)
	if !valid {
		return NotReady
	}
	return verdictOf(gain >= t.DailyGainMin && gain <= t.DailyGainMax)
}

// Condition 9: trailing gain over the configured lookback at or below the
// ceiling. The lookback choice (6 or 7 days) is configuration, not a
// hidden heuristic.
func evalTrailingGain(f Features, t Thresholds) Verdict {
	today, ok := f.Today()
	base, okBase := f.Prev(t.PrevGainLookbackDays)
	if !ok || !okBase || base.Close <= 0 {
		return NotReady
	}
	gain := today.Close/base.Close - 1
	return verdictOf(gain <= t.PrevGainMax)
}

// Condition 10: current price deviation from session VWAP at or below the
// ceiling.
func evalVWAPDeviation(f Features, t Thresholds) Verdict {
	vwap := f.Indicators.VWAP
	if !vwap.Valid || f.Price <= 0 {
		return NotReady
	}
	dev := math.Abs(f.Price-vwap.Float64) / vwap.Float64
	return verdictOf(dev <= t.VWAPDeviationMax)
}

// Condition 11: close at the rolling high of the lookback window,
// today included.
func evalRollingHigh(f Features, t Thresholds) Verdict {
	n := t.PriceHighLookbackDays
	if len(f.Daily) < n {
		return NotReady
	}
	today := f.Daily[len(f.Daily)-1]
	for _, b := range f.Daily[len(f.Daily)-n:] {
		if b.Close > today.Close {
			return Unsatisfied
		}
	}
	return Satisfied
}

// Condition 12: three-way trend alignment, evaluated jointly: price above
// the long MA, short MA above both the medium and the long MA.
func evalTrendAlignment(f Features, t Thresholds) Verdict {
	short, medium, long := f.Indicators.MAShort, f.Indicators.MAMedium, f.Indicators.MALong
	if !short.Valid || !medium.Valid || !long.Valid || f.Price <= 0 {
		return NotReady
	}
	return verdictOf(f.Price > long.Float64 &&
		short.Float64 > medium.Float64 &&
		short.Float64 > long.Float64)
}

// Condition 13: daily gain stays below the ceiling on every day of the
// window.
func evalGainCeilingWindow(f Features, t Thresholds) Verdict {
	n := t.GainCeilingDays
	if len(f.Daily) < n+1 {
		return NotReady
	}
	for i := len(f.Daily) - n; i < len(f.Daily); i++ {
		gain, valid := f.Daily[i].Gain(f.Daily[i-1].Close)
		if !valid {
			return NotReady
		}
		if gain >= t.GainCeiling {
			return Unsatisfied
		}
	}
	return Satisfied
}

// Condition 14: exclusion, disqualified on a full run of consecutive
// close-above-open days.
func evalNoYangRun(f Features, t Thresholds) Verdict {
	n := t.YangRunDays
	if len(f.Daily) < n {
		return NotReady
	}
	for _, b := range f.Daily[len(f.Daily)-n:] {
		if b.Close <= b.Open {
			return Satisfied
		}
	}
	return Unsatisfied
}

// Condition 15: exclusion, disqualified if any day in the window dropped
// intraday beyond the floor relative to the prior close.
func evalNoBigDrop(f Features, t Thresholds) Verdict {
	n := t.BigDropLookbackDays
	if len(f.Daily) < n+1 {
		return NotReady
	}
	for i := len(f.Daily) - n; i < len(f.Daily); i++ {
		prevClose := f.Daily[i-1].Close
		if prevClose <= 0 {
			return NotReady
		}
		if f.Daily[i].Low/prevClose-1 <= t.BigDropFloor {
			return Unsatisfied
		}
	}
	return Satisfied
}

// Condition 16: exclusion, disqualified if an up day in the window carries
// an upper shadow beyond the ceiling.
func evalNoUpperShadow(f Features, t Thresholds) Verdict {
	n := t.UpperShadowLookbackDays
	if len(f.Daily) < n {
		return NotReady
	}
	for _, b := range f.Daily[len(f.Daily)-n:] {
		if b.Close <= b.Open || b.Close <= 0 {
			continue
		}
		if (b.High-b.Close)/b.Close > t.UpperShadowMax {
			return Unsatisfied
		}
	}
	return Satisfied
}

// Condition 17: not sealed at the daily limit. The segment sets the limit
// percentage; the buffer absorbs tick-size rounding just below it.
func evalNotAtLimit(f Features, t Thresholds) Verdict {
	today, ok := f.Today()
	prev, okPrev := f.Prev(1)
	if !ok || !okPrev {
		return NotReady
	}
	gain, valid := today.Gain(prev.Close)
	if !valid {
		return NotReady
	}
	return verdictOf(gain < f.Segment.LimitPct()-t.LimitGainBuffer)
}

// Condition 18: chip concentration higher than the prior day. Both days
// must be present.
func evalChipConcentration(f Features, _ Thresholds) Verdict {
	if f.Metric == nil || f.PrevMetric == nil {
		return NotReady
	}
	return verdictOf(f.Metric.ChipConcentration > f.PrevMetric.ChipConcentration)
}

// Condition 19: main net-inflow rate at or above the floor.
func evalMainInflow(f Features, t Thresholds) Verdict {
	if f.Metric == nil {
		return NotReady
	}
	return verdictOf(f.Metric.NetInflowRate >= t.MainInflowRateMin)
}

// Condition 20: tail-session volume surge. A is the first tail bucket's
// amount, B the second's; satisfied when any configured tier's ratio and
// amount floors both hold. Before B closes the verdict is not-ready.
func evalTailSurge(f Features, t Thresholds) Verdict {
	if !f.Tail.Closed {
		return NotReady
	}
	a, b := f.Tail.FirstAmount, f.Tail.SecondAmount
	if a <= 0 {
		return NotReady
	}
	ratio := b / a
	for _, tier := range t.TailTiers {
		if ratio >= tier.RatioMin && b >= tier.AmountMin {
			return Satisfied
		}
	}
	return Unsatisfied
}

// MinBars is the longest daily window any condition needs, given the
// thresholds and indicator parameters.
func MinBars(t Thresholds, p indicator.Params) int {
	min := indicator.MinHistory
	for _, n := range []int{
		p.MALong,
		t.PrevGainLookbackDays + 1,
		t.PriceHighLookbackDays,
		t.GainCeilingDays + 1,
		t.BigDropLookbackDays + 1,
	} {
		if n > min {
			min = n
		}
	}
	return min
}
