package recovery

import (
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/haven-app/haven/internal/classifier"
	"github.com/haven-app/haven/internal/registry"
	"github.com/haven-app/haven/internal/response"
)

var t0 = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

func snap(week string, crisisCount int, severity float64) WeeklySnapshot {
	s := ZeroSnapshot(week)
	for i := 0; i < crisisCount; i++ {
		s.CrisisEvents = append(s.CrisisEvents, classifier.Assessment{
			DetectedCrisis: registry.CategoryPanicAttack,
			Confidence:     severity,
		})
	}
	return s
}

func weeks(n int) []string {
	out := make([]string, n)
	w := WeekKey(t0)
	for i := range out {
		out[i] = w
		w = NextWeek(w)
	}
	return out
}

func series(counts []float64, severity float64) []WeeklySnapshot {
	keys := weeks(len(counts))
	out := make([]WeeklySnapshot, len(counts))
	for i, c := range counts {
		out[i] = snap(keys[i], int(c), severity)
	}
	return out
}

func TestWeekKey_RoundTrip(t *testing.T) {
	for _, tc := range []time.Time{
		t0,
		time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 12, 29, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC),
	} {
		require.Equal(t, WeekKey(tc.AddDate(0, 0, 7)), NextWeek(WeekKey(tc)), "from %s", tc)
	}
}

func TestFinalize_Idempotent(t *testing.T) {
	acc := NewAccumulator(WeekKey(t0))
	acc.EntriesLogged = 5
	acc.PreferenceChanges = 2
	acc.Sessions = 3
	acc.ActiveMinutes = 45
	acc.UseFeature("trend_charts")
	acc.UseFeature("pain_entry")
	acc.RecordAssessment(classifier.Assessment{
		ID:             "a1",
		DetectedCrisis: registry.CategoryPainFlare,
		Confidence:     0.7,
		At:             t0,
	})
	acc.RecordRecoveries([]response.Transition{
		{To: response.StateIntervening, At: t0},
		{To: response.StateCooldown, At: t0.Add(3 * time.Minute)},
		{To: response.StateIdle, At: t0.Add(8 * time.Minute)},
	})

	first := acc.Finalize()
	second := acc.Finalize()
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("finalization not idempotent:\n%+v\n%+v", first, second)
	}

	require.Equal(t, []string{"pain_entry", "trend_charts"}, first.FeaturesUsed)
	require.InDelta(t, 8.0, first.MeanRecoveryMinutes, 1e-9)
	require.InDelta(t, 15.0, first.SessionPatterns.MeanSessionMinutes, 1e-9)
	require.False(t, first.FinalizedAt.IsZero())
}

func TestAccumulator_IgnoresNegativeAssessments(t *testing.T) {
	acc := NewAccumulator(WeekKey(t0))
	acc.RecordAssessment(classifier.Assessment{Confidence: 0.3})
	require.Empty(t, acc.Assessments)
}

func TestTrends_Directions(t *testing.T) {
	cfg := DefaultConfig()
	snaps := series([]float64{4, 3, 3, 2, 1, 1}, 0.7)

	trends := Trends(snaps, cfg)
	byMetric := map[string]Trend{}
	for _, tr := range trends {
		byMetric[tr.Metric] = tr
	}

	require.Equal(t, TrendDecreasing, byMetric[MetricCrisisFrequency].Direction)
	require.Equal(t, TrendFlat, byMetric[MetricCrisisSeverity].Direction)
}

func TestTrends_NoiseStaysFlat(t *testing.T) {
	cfg := DefaultConfig()
	snaps := series([]float64{2, 1, 2, 1, 2, 1}, 0.6)

	trends := Trends(snaps, cfg)
	for _, tr := range trends {
		if tr.Metric == MetricCrisisFrequency {
			require.Equal(t, TrendFlat, tr.Direction, "alternating counts must not flip the trend")
		}
	}
}

func TestDetectHabits_FormsAtEarliestStableWindow(t *testing.T) {
	cfg := DefaultConfig()
	keys := weeks(6)
	entries := []int{1, 0, 5, 4, 5, 4}
	snaps := make([]WeeklySnapshot, len(entries))
	for i, n := range entries {
		s := ZeroSnapshot(keys[i])
		s.EntriesLogged = n
		snaps[i] = s
	}

	habits := DetectHabits(snaps, cfg)
	require.Len(t, habits, 1)
	require.Equal(t, "regular_logging", habits[0].Name)
	require.Equal(t, keys[5], habits[0].FormedWeek)
}

func TestDetectHabits_SporadicUseIsNoHabit(t *testing.T) {
	cfg := DefaultConfig()
	snaps := make([]WeeklySnapshot, 6)
	for i, n := range []int{0, 7, 0, 1, 6, 0} {
		s := ZeroSnapshot(weeks(6)[i])
		s.EntriesLogged = n
		snaps[i] = s
	}
	require.Empty(t, DetectHabits(snaps, cfg))
}

// A one-week spike that resolves by week two is a setback; the same spike
// sustained for four weeks is a relapse.
func TestClassifyRegression_SetbackVsRelapse(t *testing.T) {
	cfg := DefaultConfig()

	setback := series([]float64{0, 0, 0, 0, 2, 0, 0}, 0.6)
	w := ClassifyRegression(setback, cfg)
	require.NotNil(t, w)
	require.Equal(t, RegressionSetback, w.Kind)
	require.Equal(t, setback[4].Week, w.Week)
	require.Equal(t, ActionGentleReminder, w.RecommendedAction)

	relapse := series([]float64{0, 0, 0, 0, 2, 2, 2, 2}, 0.6)
	w = ClassifyRegression(relapse, cfg)
	require.NotNil(t, w)
	require.Equal(t, RegressionRelapse, w.Kind)
	require.Equal(t, ActionSupportOffer, w.RecommendedAction)
}

func TestClassifyRegression_SevereRelapseEscalates(t *testing.T) {
	cfg := DefaultConfig()
	snaps := series([]float64{0, 0, 0, 0, 3, 3, 3, 3}, 0.85)
	w := ClassifyRegression(snaps, cfg)
	require.NotNil(t, w)
	require.Equal(t, RegressionRelapse, w.Kind)
	require.Equal(t, ActionCrisisSupport, w.RecommendedAction)
}

func TestClassifyRegression_QuietHistoryIsNil(t *testing.T) {
	cfg := DefaultConfig()
	require.Nil(t, ClassifyRegression(series([]float64{0, 1, 0, 0, 1, 0}, 0.5), cfg))
}

func TestExposure_AdvancesOneStageAtATime(t *testing.T) {
	cfg := DefaultConfig()
	stages := DefaultStages()

	var levels []int
	snaps := series(make([]float64, 8), 0)
	for i := 1; i <= len(snaps); i++ {
		levels = append(levels, ExposureFor(snaps[:i], stages, cfg).Level)
	}
	require.Equal(t, []int{0, 1, 1, 2, 2, 2, 2, 3}, levels)

	full := ExposureFor(snaps, stages, cfg)
	require.Contains(t, full.Features, "data_export")
	require.Contains(t, full.Features, "pain_entry")
}

// Exposure must retreat after a spike and hold for at least one full week
// before advancing again.
func TestExposure_RetreatsAfterSpike(t *testing.T) {
	cfg := DefaultConfig()
	stages := DefaultStages()

	counts := []float64{0, 0, 0, 0, 3, 0, 0, 0}
	snaps := series(counts, 0.7)

	pre := ExposureFor(snaps[:4], stages, cfg)
	require.Equal(t, 2, pre.Level)

	atSpike := ExposureFor(snaps[:5], stages, cfg)
	require.Equal(t, 1, atSpike.Level)
	require.True(t, atSpike.Retreated)

	weekAfter := ExposureFor(snaps[:6], stages, cfg)
	require.Equal(t, 1, weekAfter.Level, "no advancement during the hold week")
	require.True(t, weekAfter.Retreated)

	resumed := ExposureFor(snaps[:8], stages, cfg)
	require.Equal(t, 2, resumed.Level, "advancement resumes after the hold")
	require.False(t, resumed.Retreated)
}
