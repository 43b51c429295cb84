package condition

import (
	"fmt"

	"ashare-sentinel/internal/indicator"
)

// Thresholds is the full externally configurable parameter set of the
// evaluator. Values load from yaml and must pass Validate before use:
// a missing or out-of-range threshold fails fast instead of defaulting
// silently. The struct is immutable per run, which makes parameter sweeps
// a matter of handing a different value to the same evaluator.
type Thresholds struct {
	// Oscillator conditions.
	KDJJMax         float64 `mapstructure:"kdj_j_max" yaml:"kdj_j_max"`
	JLtKPersistDays int     `mapstructure:"j_lt_k_persist_days" yaml:"j_lt_k_persist_days"`

	// Turnover conditions.
	TurnoverRatioMin     float64 `mapstructure:"turnover_ratio_min" yaml:"turnover_ratio_min"`
	TurnoverRatioMax     float64 `mapstructure:"turnover_ratio_max" yaml:"turnover_ratio_max"`
	TurnoverRateMin      float64 `mapstructure:"turnover_rate_min" yaml:"turnover_rate_min"`
	TurnoverRateMax      float64 `mapstructure:"turnover_rate_max" yaml:"turnover_rate_max"`
	TurnoverRatioRelaxed float64 `mapstructure:"turnover_ratio_relaxed" yaml:"turnover_ratio_relaxed"`

	// Scale conditions.
	MarketCapMin float64 `mapstructure:"market_cap_min" yaml:"market_cap_min"`
	MarketCapMax float64 `mapstructure:"market_cap_max" yaml:"market_cap_max"`
	AmountMin    float64 `mapstructure:"amount_min" yaml:"amount_min"`
	AmountMax    float64 `mapstructure:"amount_max" yaml:"amount_max"`

	// Momentum conditions.
	DailyGainMin          float64 `mapstructure:"daily_gain_min" yaml:"daily_gain_min"`
	DailyGainMax          float64 `mapstructure:"daily_gain_max" yaml:"daily_gain_max"`
	PrevGainLookbackDays  int     `mapstructure:"prev_gain_lookback_days" yaml:"prev_gain_lookback_days"`
	PrevGainMax           float64 `mapstructure:"prev_gain_max" yaml:"prev_gain_max"`
	VWAPDeviationMax      float64 `mapstructure:"vwap_deviation_max" yaml:"vwap_deviation_max"`
	PriceHighLookbackDays int     `mapstructure:"price_high_lookback_days" yaml:"price_high_lookback_days"`

	// Pattern and safety exclusions.
	GainCeiling             float64 `mapstructure:"gain_ceiling" yaml:"gain_ceiling"`
	GainCeilingDays         int     `mapstructure:"gain_ceiling_days" yaml:"gain_ceiling_days"`
	YangRunDays             int     `mapstructure:"yang_run_days" yaml:"yang_run_days"`
	BigDropFloor            float64 `mapstructure:"big_drop_floor" yaml:"big_drop_floor"`
	BigDropLookbackDays     int     `mapstructure:"big_drop_lookback_days" yaml:"big_drop_lookback_days"`
	UpperShadowMax          float64 `mapstructure:"upper_shadow_max" yaml:"upper_shadow_max"`
	UpperShadowLookbackDays int     `mapstructure:"upper_shadow_lookback_days" yaml:"upper_shadow_lookback_days"`
	LimitGainBuffer         float64 `mapstructure:"limit_gain_buffer" yaml:"limit_gain_buffer"`

	// External metric conditions.
	MainInflowRateMin float64 `mapstructure:"main_inflow_rate_min" yaml:"main_inflow_rate_min"`

	// Tail-session condition tiers: satisfied if for any tier the bucket
	// ratio B/A reaches the tier ratio and B reaches the tier amount.
	TailTiers []TailTier `mapstructure:"tail_tiers" yaml:"tail_tiers"`
}

// TailTier is one (ratio floor, amount floor) pair of condition 20.
type TailTier struct {
	RatioMin  float64 `mapstructure:"ratio_min" yaml:"ratio_min"`
	AmountMin float64 `mapstructure:"amount_min" yaml:"amount_min"`
}

// DefaultThresholds returns the production parameter set.
func DefaultThresholds() Thresholds {
	return Thresholds{
		KDJJMax:         98,
		JLtKPersistDays: 3,

		TurnoverRatioMin:     1.28,
		TurnoverRatioMax:     12.0,
		TurnoverRateMin:      3.28,
		TurnoverRateMax:      25.8,
		TurnoverRatioRelaxed: 2.5,

		MarketCapMin: 1.6e9,
		MarketCapMax: 5.0e10,
		AmountMin:    1.68e8,
		AmountMax:    3.668e9,

		DailyGainMin:          0.04,
		DailyGainMax:          0.095,
		PrevGainLookbackDays:  6,
		PrevGainMax:           0.11,
		VWAPDeviationMax:      0.04,
		PriceHighLookbackDays: 10,

		GainCeiling:             0.095,
		GainCeilingDays:         5,
		YangRunDays:             4,
		BigDropFloor:            -0.08,
		BigDropLookbackDays:     10,
		UpperShadowMax:          0.04,
		UpperShadowLookbackDays: 2,
		LimitGainBuffer:         0.002,

		MainInflowRateMin: 0.06,

		TailTiers: []TailTier{
			{RatioMin: 1.0, AmountMin: 1.0e8},
			{RatioMin: 0.7, AmountMin: 1.8e8},
			{RatioMin: 0.8, AmountMin: 1.5e8},
			{RatioMin: 0.9, AmountMin: 1.2e8},
		},
	}
}

// Validate checks the parameter set for internal consistency.
func (t Thresholds) Validate() error {
	if t.KDJJMax <= 0 {
		return fmt.Errorf("kdj_j_max must be positive, got %v", t.KDJJMax)
	}
	if t.JLtKPersistDays <= 0 {
		return fmt.Errorf("j_lt_k_persist_days must be positive, got %d", t.JLtKPersistDays)
	}
	if t.JLtKPersistDays > indicator.KDJTrailing-1 {
		// the snapshot keeps KDJTrailing trailing values, the newest of
		// which is the evaluation day; a deeper persistence window would
		// leave the condition permanently not-ready
		return fmt.Errorf("j_lt_k_persist_days must be at most %d, got %d", indicator.KDJTrailing-1, t.JLtKPersistDays)
	}
	if err := validRange("turnover_ratio", t.TurnoverRatioMin, t.TurnoverRatioMax); err != nil {
		return err
	}
	if err := validRange("turnover_rate", t.TurnoverRateMin, t.TurnoverRateMax); err != nil {
		return err
	}
	if t.TurnoverRatioRelaxed <= 0 {
		return fmt.Errorf("turnover_ratio_relaxed must be positive, got %v", t.TurnoverRatioRelaxed)
	}
	if err := validRange("market_cap", t.MarketCapMin, t.MarketCapMax); err != nil {
		return err
	}
	if err := validRange("amount", t.AmountMin, t.AmountMax); err != nil {
		return err
	}
	if err := validRange("daily_gain", t.DailyGainMin, t.DailyGainMax); err != nil {
		return err
	}
	if t.PrevGainLookbackDays <= 0 {
		return fmt.Errorf("prev_gain_lookback_days must be positive, got %d", t.PrevGainLookbackDays)
	}
	if t.PrevGainMax <= 0 {
		return fmt.Errorf("prev_gain_max must be positive, got %v", t.PrevGainMax)
	}
	if t.VWAPDeviationMax <= 0 {
		return fmt.Errorf("vwap_deviation_max must be positive, got %v", t.VWAPDeviationMax)
	}
	if t.PriceHighLookbackDays <= 0 {
		return fmt.Errorf("price_high_lookback_days must be positive, got %d", t.PriceHighLookbackDays)
	}
	if t.GainCeiling <= 0 || t.GainCeilingDays <= 0 {
		return fmt.Errorf("gain ceiling parameters must be positive")
	}
	if t.YangRunDays <= 0 {
		return fmt.Errorf("yang_run_days must be positive, got %d", t.YangRunDays)
	}
	if t.BigDropFloor >= 0 {
		return fmt.Errorf("big_drop_floor must be negative, got %v", t.BigDropFloor)
	}
	if t.BigDropLookbackDays <= 0 || t.UpperShadowLookbackDays <= 0 {
		return fmt.Errorf("exclusion lookback days must be positive")
	}
	if t.UpperShadowMax <= 0 {
		return fmt.Errorf("upper_shadow_max must be positive, got %v", t.UpperShadowMax)
	}
	if t.LimitGainBuffer < 0 {
		return fmt.Errorf("limit_gain_buffer must be non-negative, got %v", t.LimitGainBuffer)
	}
	if t.MainInflowRateMin <= 0 {
		return fmt.Errorf("main_inflow_rate_min must be positive, got %v", t.MainInflowRateMin)
	}
	if len(t.TailTiers) == 0 {
		return fmt.Errorf("tail_tiers must not be empty")
	}
	for i, tier := range t.TailTiers {
		if tier.RatioMin <= 0 || tier.AmountMin <= 0 {
			return fmt.Errorf("tail_tiers[%d] must have positive ratio and amount floors", i)
		}
	}
	return nil
}

func validRange(name string, min, max float64) error {
	if min <= 0 || max <= 0 || min >= max {
		return fmt.Errorf("%s range invalid: min=%v max=%v", name, min, max)
	}
	return nil
}
