package classifier

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/haven-app/haven/internal/event"
	"github.com/haven-app/haven/internal/registry"
	"github.com/haven-app/haven/internal/signals"
)

var t0 = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

func newClassifier(t *testing.T) *Classifier {
	t.Helper()
	reg, err := registry.Default()
	require.NoError(t, err)
	return New(DefaultConfig(), reg)
}

func classifyTrace(t *testing.T, events []event.InteractionEvent, now time.Time) Assessment {
	t.Helper()
	d := signals.NewDetector(signals.DefaultConfig())
	c := newClassifier(t)
	return c.Classify(d.Collect(events, now), nil, now)
}

func nav(ms int, page string) event.InteractionEvent {
	return event.InteractionEvent{Type: event.TypeNavigation, Timestamp: t0.Add(time.Duration(ms) * time.Millisecond), Page: page}
}

func scoreOf(a Assessment, cat registry.Category) float64 {
	if a.DetectedCrisis == cat {
		return a.Confidence
	}
	for _, h := range a.Alternatives {
		if h.Category == cat {
			return h.Score
		}
	}
	return 0
}

// Rapid, circling navigation ending in forced app closure inside four
// seconds: panic attack, clearly separated from the sensory and
// dissociative hypotheses.
func TestClassify_PanicScenario(t *testing.T) {
	offsets := []int{0, 200, 900, 1100, 1900, 2100, 3000, 3200}
	pages := []string{"home", "log", "home", "log", "home", "log", "home", "log"}
	var events []event.InteractionEvent
	for i := range offsets {
		events = append(events, nav(offsets[i], pages[i]))
	}
	events = append(events, event.InteractionEvent{Type: event.TypeAppClose, Timestamp: t0.Add(3800 * time.Millisecond)})

	a := classifyTrace(t, events, t0.Add(4*time.Second))

	require.Equal(t, registry.CategoryPanicAttack, a.DetectedCrisis)
	require.Greater(t, a.Confidence, 0.7)
	require.LessOrEqual(t, scoreOf(a, registry.CategorySensoryOverload), a.Confidence-0.2)
	require.LessOrEqual(t, scoreOf(a, registry.CategoryDissociation), a.Confidence-0.2)
}

// A 15-minute unexplained gap followed by three identical repeated inputs:
// dissociation.
func TestClassify_DissociationScenario(t *testing.T) {
	events := []event.InteractionEvent{
		nav(0, "log"),
	}
	resume := t0.Add(15 * time.Minute)
	for i := 0; i < 3; i++ {
		events = append(events, event.InteractionEvent{
			Type:      event.TypeInput,
			Timestamp: resume.Add(time.Duration(i) * time.Second),
			Field:     "pain_intensity",
			Value:     "5",
		})
	}

	a := classifyTrace(t, events, resume.Add(5*time.Second))
	require.Equal(t, registry.CategoryDissociation, a.DetectedCrisis)
}

// Nine preference changes inside five minutes, three of them theme
// toggles: sensory overload.
func TestClassify_SensoryOverloadScenario(t *testing.T) {
	keys := []string{"theme", "font_size", "theme", "contrast", "animations", "theme", "text_density", "sound", "haptics"}
	var events []event.InteractionEvent
	for i, key := range keys {
		events = append(events, event.InteractionEvent{
			Type:      event.TypePreferenceChange,
			Timestamp: t0.Add(time.Duration(i*30) * time.Second),
			Field:     key,
		})
	}

	a := classifyTrace(t, events, t0.Add(5*time.Minute))
	require.Equal(t, registry.CategorySensoryOverload, a.DetectedCrisis)
}

// A first-session user exploring settings methodically: no crisis.
func TestClassify_MethodicalExplorationIsNegative(t *testing.T) {
	pages := []string{"settings", "profile", "display", "privacy", "about", "help"}
	var events []event.InteractionEvent
	for i, p := range pages {
		events = append(events, nav(i*20000, p))
	}

	a := classifyTrace(t, events, t0.Add(2*time.Minute))
	require.False(t, a.Detected())
	require.False(t, a.InsufficientData)
	require.NotEmpty(t, a.Alternatives, "ranked scores are always reported")
}

func TestClassify_InsufficientDataIsNotNegative(t *testing.T) {
	c := newClassifier(t)
	a := c.Classify(nil, nil, t0)

	require.False(t, a.Detected())
	require.True(t, a.InsufficientData)
	require.Zero(t, a.Confidence)
}

func TestClassify_NonContradiction(t *testing.T) {
	traces := [][]event.InteractionEvent{
		panicTrace(), nil,
	}
	for _, events := range traces {
		a := classifyTrace(t, events, t0.Add(4*time.Second))
		for _, h := range a.Alternatives {
			require.NotEqual(t, a.DetectedCrisis, h.Category)
			if a.Detected() {
				require.LessOrEqual(t, h.Score, a.Confidence+1e-9)
			}
		}
	}
}

func panicTrace() []event.InteractionEvent {
	offsets := []int{0, 200, 900, 1100, 1900, 2100, 3000, 3200}
	var events []event.InteractionEvent
	for i, off := range offsets {
		page := "home"
		if i%2 == 1 {
			page = "log"
		}
		events = append(events, nav(off, page))
	}
	return append(events, event.InteractionEvent{Type: event.TypeAppClose, Timestamp: t0.Add(3800 * time.Millisecond)})
}

// When two categories tie within epsilon and both clear their thresholds,
// the more urgent intervention wins.
func TestClassify_TieBreakPrefersUrgent(t *testing.T) {
	c := newClassifier(t)
	sigs := []signals.DetectedSignal{
		{Name: signals.SignalUnexplainedInactivity, Confidence: 1.0, Source: signals.SourceComputed},
		{Name: signals.SignalLikelyDissociation, Confidence: 0.8, Source: signals.SourceComputed},
		{Name: signals.SignalRepeatedActions, Confidence: 0.33, Source: signals.SourceComputed},
		{Name: signals.SignalNavigationEntropy, Confidence: 0.8, Source: signals.SourceComputed},
		{Name: signals.SignalAbruptExit, Confidence: 0.6, Source: signals.SourceComputed},
	}

	a := c.Classify(sigs, nil, t0)
	// Dissociation scores marginally higher, but panic is immediate.
	require.Equal(t, registry.CategoryPanicAttack, a.DetectedCrisis)
	for _, h := range a.Alternatives {
		require.LessOrEqual(t, h.Score, a.Confidence+1e-9)
	}
}

func TestClassify_SelfReportedSignalCounts(t *testing.T) {
	c := newClassifier(t)
	sigs := []signals.DetectedSignal{
		{Name: signals.SignalPreferenceChurn, Confidence: 0.5, Source: signals.SourceComputed},
		{Name: signals.SignalPreferenceChurn, Confidence: 0.9, Source: signals.SourceSelfReported, Details: "my own warning sign"},
		{Name: signals.SignalDisplayToggling, Confidence: 0.9, Source: signals.SourceSelfReported},
	}

	a := c.Classify(sigs, nil, t0)
	require.Equal(t, registry.CategorySensoryOverload, a.DetectedCrisis)

	var selfReported int
	for _, s := range a.Signals {
		if s.Source == signals.SourceSelfReported {
			selfReported++
		}
	}
	require.Equal(t, 2, selfReported, "self-reported signals stay distinguishable in the assessment")
}

func TestClassify_PersonalizedThresholdBlocksDetection(t *testing.T) {
	c := newClassifier(t)
	sigs := []signals.DetectedSignal{
		{Name: signals.SignalPreferenceChurn, Confidence: 1.0, Source: signals.SourceComputed},
		{Name: signals.SignalDisplayToggling, Confidence: 0.8, Source: signals.SourceComputed},
	}

	base := c.Classify(sigs, nil, t0)
	require.Equal(t, registry.CategorySensoryOverload, base.DetectedCrisis)

	raised := map[registry.Category]float64{registry.CategorySensoryOverload: 0.95}
	a := c.Classify(sigs, raised, t0)
	require.False(t, a.Detected())
	require.Greater(t, a.Confidence, 0.0, "score still reported for transparency")
}
