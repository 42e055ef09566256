package response

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/haven-app/haven/internal/classifier"
	"github.com/haven-app/haven/internal/profile"
	"github.com/haven-app/haven/internal/registry"
)

var t0 = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func detected(cat registry.Category, score float64) classifier.Assessment {
	return classifier.Assessment{DetectedCrisis: cat, Confidence: score, At: t0}
}

func negative() classifier.Assessment {
	return classifier.Assessment{}
}

func newTestController(t *testing.T, onChange func(Directive)) *Controller {
	t.Helper()
	reg, err := registry.Default()
	require.NoError(t, err)
	return NewController(DefaultConfig(), reg, quiet(), onChange)
}

func TestController_FullCycle(t *testing.T) {
	var directives []Directive
	c := newTestController(t, func(d Directive) { directives = append(directives, d) })
	cfg := DefaultConfig()

	require.Equal(t, StateIdle, c.State())

	// First tick with a detection: straight through Monitoring into
	// Intervening.
	c.Observe(detected(registry.CategoryPanicAttack, 0.8), profile.ResponseUnset, t0)
	require.Equal(t, StateIntervening, c.State())
	require.Len(t, directives, 1)
	require.Equal(t, ActionSimplify, directives[0].Mode, "immediate urgency defaults to simplify")
	require.False(t, directives[0].Dismissible)

	// Signals stay clear, but not yet for the sustained period.
	c.Observe(negative(), profile.ResponseUnset, t0.Add(30*time.Second))
	require.Equal(t, StateIntervening, c.State())

	// Sustained clear: intervention lifts into cooldown with a reversal
	// directive.
	c.Observe(negative(), profile.ResponseUnset, t0.Add(30*time.Second+cfg.SustainedClear))
	require.Equal(t, StateCooldown, c.State())
	require.Len(t, directives, 2)
	require.Equal(t, ActionNone, directives[1].Mode)

	// Cooldown dwell done: back to Idle.
	c.Observe(negative(), profile.ResponseUnset, t0.Add(30*time.Second+cfg.SustainedClear+cfg.CooldownDwell))
	require.Equal(t, StateIdle, c.State())
}

func TestController_ClearStreakResetsOnRedetection(t *testing.T) {
	c := newTestController(t, nil)
	cfg := DefaultConfig()

	c.Observe(detected(registry.CategoryPainFlare, 0.7), profile.ResponseUnset, t0)
	require.Equal(t, StateIntervening, c.State())

	half := cfg.SustainedClear / 2
	c.Observe(negative(), profile.ResponseUnset, t0.Add(half))
	c.Observe(detected(registry.CategoryPainFlare, 0.7), profile.ResponseUnset, t0.Add(half+time.Second))

	// The earlier partial clear must not count.
	c.Observe(negative(), profile.ResponseUnset, t0.Add(half+2*time.Second))
	c.Observe(negative(), profile.ResponseUnset, t0.Add(half+2*time.Second+half))
	require.Equal(t, StateIntervening, c.State())
}

func TestController_CooldownSuppressesReintervention(t *testing.T) {
	var directives []Directive
	c := newTestController(t, func(d Directive) { directives = append(directives, d) })
	cfg := DefaultConfig()

	c.Observe(detected(registry.CategorySensoryOverload, 0.8), profile.ResponseUnset, t0)
	c.Observe(negative(), profile.ResponseUnset, t0.Add(time.Second))
	c.Observe(negative(), profile.ResponseUnset, t0.Add(time.Second+cfg.SustainedClear))
	require.Equal(t, StateCooldown, c.State())

	fired := len(directives)
	c.Observe(detected(registry.CategorySensoryOverload, 0.9), profile.ResponseUnset, t0.Add(2*time.Second+cfg.SustainedClear))
	require.Equal(t, StateCooldown, c.State(), "no re-intervention during dwell")
	require.Len(t, directives, fired)
}

func TestController_PreferredResponseWins(t *testing.T) {
	var directives []Directive
	c := newTestController(t, func(d Directive) { directives = append(directives, d) })

	c.Observe(detected(registry.CategoryPanicAttack, 0.8), profile.ResponseGentlePrompt, t0)
	require.Len(t, directives, 1)
	require.Equal(t, ActionGentlePrompt, directives[0].Mode)
	require.True(t, directives[0].Dismissible)
}

func TestController_DoNothingLogsOnly(t *testing.T) {
	var directives []Directive
	c := newTestController(t, func(d Directive) { directives = append(directives, d) })

	c.Observe(detected(registry.CategoryDissociation, 0.7), profile.ResponseDoNothing, t0)
	require.Equal(t, StateIntervening, c.State())
	require.Empty(t, directives, "do_nothing produces no visible change")

	history := c.History()
	require.NotEmpty(t, history)
	last := history[len(history)-1]
	require.Equal(t, StateIntervening, last.To)
	require.Equal(t, ActionDoNothing, last.Action)
}

func TestController_HistoryRecordsEveryTransition(t *testing.T) {
	c := newTestController(t, nil)
	cfg := DefaultConfig()

	c.Observe(detected(registry.CategoryPanicAttack, 0.8), profile.ResponseUnset, t0)
	c.Observe(negative(), profile.ResponseUnset, t0.Add(time.Second))
	c.Observe(negative(), profile.ResponseUnset, t0.Add(time.Second+cfg.SustainedClear))
	c.Observe(negative(), profile.ResponseUnset, t0.Add(time.Second+cfg.SustainedClear+cfg.CooldownDwell))

	history := c.History()
	var states []State
	for _, tr := range history {
		states = append(states, tr.To)
	}
	require.Equal(t, []State{StateMonitoring, StateIntervening, StateCooldown, StateIdle}, states)
	for _, tr := range history {
		require.NotEmpty(t, tr.ID)
		require.False(t, tr.At.IsZero())
	}
}
