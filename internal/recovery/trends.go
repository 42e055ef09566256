package recovery

import (
	"math"
	"sort"
)

type TrendDirection string

const (
	TrendIncreasing TrendDirection = "increasing"
	TrendDecreasing TrendDirection = "decreasing"
	TrendFlat       TrendDirection = "flat"
)

// Trend is the robust slope of one metric over the trailing weeks.
type Trend struct {
	Metric    string
	Direction TrendDirection
	Slope     float64
	Weeks     int
}

const (
	MetricCrisisFrequency = "crisis_frequency"
	MetricCrisisSeverity  = "crisis_severity"
	MetricRecoveryTime    = "recovery_time"
	MetricFeatureBreadth  = "feature_breadth"
)

type Config struct {
	// TrendWeeks is the trailing window for slope estimation; at least 4.
	TrendWeeks int
	// MinSlope gates trend direction so noise never flips a trend.
	MinSlope float64

	// Habit formation: weekly-count variance below HabitVarianceBound
	// while the mean stays at or above HabitMinMean, over HabitWindow
	// consecutive weeks.
	HabitWindow        int
	HabitVarianceBound float64
	HabitMinMean       float64

	// Regression classification.
	BaselineWeeks  int
	SpikeDelta     float64
	RelapseRunLen  int
	SetbackMaxLen  int
}

func DefaultConfig() Config {
	return Config{
		TrendWeeks:         6,
		MinSlope:           0.1,
		HabitWindow:        4,
		HabitVarianceBound: 1.5,
		HabitMinMean:       3.0,
		BaselineWeeks:      4,
		SpikeDelta:         1.5,
		RelapseRunLen:      4,
		SetbackMaxLen:      2,
	}
}

// Trends computes the four longitudinal series over the trailing window.
// Weeks with no interventions are excluded from the recovery-time fit
// rather than read as instant recovery.
func Trends(snaps []WeeklySnapshot, cfg Config) []Trend {
	if cfg.TrendWeeks < 4 {
		cfg.TrendWeeks = 4
	}
	if len(snaps) > cfg.TrendWeeks {
		snaps = snaps[len(snaps)-cfg.TrendWeeks:]
	}

	freq := make([]float64, len(snaps))
	sev := make([]float64, len(snaps))
	breadth := make([]float64, len(snaps))
	var recovery []float64
	for i, s := range snaps {
		freq[i] = float64(len(s.CrisisEvents))
		sev[i] = s.CrisisSeverity()
		breadth[i] = float64(len(s.FeaturesUsed))
		if s.MeanRecoveryMinutes > 0 {
			recovery = append(recovery, s.MeanRecoveryMinutes)
		}
	}

	return []Trend{
		trendOf(MetricCrisisFrequency, freq, cfg.MinSlope),
		trendOf(MetricCrisisSeverity, sev, cfg.MinSlope),
		trendOf(MetricRecoveryTime, recovery, cfg.MinSlope),
		trendOf(MetricFeatureBreadth, breadth, cfg.MinSlope),
	}
}

func trendOf(metric string, series []float64, minSlope float64) Trend {
	slope := theilSen(series)
	dir := TrendFlat
	if slope >= minSlope {
		dir = TrendIncreasing
	} else if slope <= -minSlope {
		dir = TrendDecreasing
	}
	return Trend{Metric: metric, Direction: dir, Slope: slope, Weeks: len(series)}
}

// theilSen is the median of all pairwise slopes: robust to one bad week in
// a way a least-squares fit is not.
func theilSen(series []float64) float64 {
	if len(series) < 2 {
		return 0
	}
	var slopes []float64
	for i := 0; i < len(series); i++ {
		for j := i + 1; j < len(series); j++ {
			slopes = append(slopes, (series[j]-series[i])/float64(j-i))
		}
	}
	sort.Float64s(slopes)
	mid := len(slopes) / 2
	if len(slopes)%2 == 1 {
		return slopes[mid]
	}
	return (slopes[mid-1] + slopes[mid]) / 2
}

// Habit is a behavior whose weekly rate has stabilized.
type Habit struct {
	Name       string
	FormedWeek string
	Mean       float64
	Variance   float64
}

// DetectHabits reports formed habits. A habit forms in the earliest
// trailing window where the weekly-count variance drops below the bound
// while the mean stays useful.
func DetectHabits(snaps []WeeklySnapshot, cfg Config) []Habit {
	var out []Habit
	if h, ok := habitIn(snaps, cfg, "regular_logging", func(s WeeklySnapshot) float64 {
		return float64(s.EntriesLogged)
	}); ok {
		out = append(out, h)
	}
	if h, ok := habitIn(snaps, cfg, "regular_sessions", func(s WeeklySnapshot) float64 {
		return float64(s.SessionPatterns.Sessions)
	}); ok {
		out = append(out, h)
	}
	return out
}

func habitIn(snaps []WeeklySnapshot, cfg Config, name string, metric func(WeeklySnapshot) float64) (Habit, bool) {
	w := cfg.HabitWindow
	for i := 0; i+w <= len(snaps); i++ {
		window := snaps[i : i+w]
		var sum float64
		for _, s := range window {
			sum += metric(s)
		}
		mean := sum / float64(w)
		if mean < cfg.HabitMinMean {
			continue
		}
		var varSum float64
		for _, s := range window {
			d := metric(s) - mean
			varSum += d * d
		}
		variance := varSum / float64(w)
		if variance < cfg.HabitVarianceBound {
			return Habit{
				Name:       name,
				FormedWeek: window[w-1].Week,
				Mean:       mean,
				Variance:   variance,
			}, true
		}
	}
	return Habit{}, false
}

type RegressionKind string

const (
	RegressionNone    RegressionKind = ""
	RegressionSetback RegressionKind = "setback"
	RegressionRelapse RegressionKind = "relapse"
)

// RelapseWarning is derived on demand from snapshot history, never stored.
type RelapseWarning struct {
	Week              string
	Kind              RegressionKind
	Signals           []string
	Trend             TrendDirection
	Confidence        float64
	RecommendedAction string
}

// Recommended intervention tiers, gated by estimated severity rather than
// crisis category.
const (
	ActionGentleReminder = "gentle_reminder"
	ActionSupportOffer   = "support_offer"
	ActionCrisisSupport  = "crisis_support_mode"
)

// ClassifyRegression distinguishes a transient setback from a sustained
// relapse in the weekly crisis counts. A setback resolves back to the
// pre-spike trend within SetbackMaxLen weeks; a relapse stays elevated for
// RelapseRunLen or more consecutive weeks.
func ClassifyRegression(snaps []WeeklySnapshot, cfg Config) *RelapseWarning {
	if len(snaps) < 2 {
		return nil
	}

	counts := make([]float64, len(snaps))
	for i, s := range snaps {
		counts[i] = float64(len(s.CrisisEvents))
	}

	spike := -1
	var baseline float64
	for i := 1; i < len(counts); i++ {
		b := meanTail(counts[:i], cfg.BaselineWeeks)
		if counts[i] >= b+cfg.SpikeDelta {
			spike = i
			baseline = b
			break
		}
	}
	if spike < 0 {
		return nil
	}

	run := 0
	for j := spike; j < len(counts) && counts[j] > baseline+cfg.SpikeDelta/2; j++ {
		run++
	}
	resolvedBy := spike + run

	warning := &RelapseWarning{
		Week:  snaps[spike].Week,
		Trend: TrendIncreasing,
		Signals: []string{
			MetricCrisisFrequency,
		},
	}
	if sevRising(snaps, spike) {
		warning.Signals = append(warning.Signals, MetricCrisisSeverity)
	}

	severity := peakSeverity(snaps[spike:resolvedByClamp(resolvedBy, len(snaps))])

	switch {
	case run >= cfg.RelapseRunLen:
		warning.Kind = RegressionRelapse
		warning.Confidence = math.Min(1, 0.6+0.1*float64(run-cfg.RelapseRunLen+1))
	case run <= cfg.SetbackMaxLen && resolvedBy < len(snaps):
		warning.Kind = RegressionSetback
		warning.Confidence = 0.6
	default:
		// Still elevated but not yet sustained: treat as a setback with
		// reduced confidence until more weeks arrive.
		warning.Kind = RegressionSetback
		warning.Confidence = 0.4
	}
	warning.RecommendedAction = recommendAction(warning.Kind, severity)
	return warning
}

func recommendAction(kind RegressionKind, severity float64) string {
	if kind == RegressionRelapse {
		if severity >= 0.75 {
			return ActionCrisisSupport
		}
		return ActionSupportOffer
	}
	if severity >= 0.75 {
		return ActionSupportOffer
	}
	return ActionGentleReminder
}

func meanTail(xs []float64, n int) float64 {
	if len(xs) > n {
		xs = xs[len(xs)-n:]
	}
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func sevRising(snaps []WeeklySnapshot, spike int) bool {
	if spike == 0 {
		return false
	}
	return snaps[spike].CrisisSeverity() > snaps[spike-1].CrisisSeverity()
}

func peakSeverity(snaps []WeeklySnapshot) float64 {
	var peak float64
	for _, s := range snaps {
		if sev := s.CrisisSeverity(); sev > peak {
			peak = sev
		}
	}
	return peak
}

func resolvedByClamp(idx, n int) int {
	if idx > n {
		return n
	}
	return idx
}
