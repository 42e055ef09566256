package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/haven-app/haven/internal/classifier"
	"github.com/haven-app/haven/internal/event"
	"github.com/haven-app/haven/internal/profile"
	"github.com/haven-app/haven/internal/recovery"
	"github.com/haven-app/haven/internal/registry"
	"github.com/haven-app/haven/internal/response"
	"github.com/haven-app/haven/internal/signals"
	"github.com/haven-app/haven/internal/store"
)

type Options struct {
	// Store is the injected persistence collaborator; nil falls back to
	// an in-memory store (no persistence, still fully operable).
	Store store.Store
	// Registry overrides the built-in signature table.
	Registry *registry.Registry

	Collectors   signals.Config
	Classifier   classifier.Config
	Response     response.Config
	Recovery     recovery.Config
	Personalizer profile.Personalizer

	// OnChange receives adaptation directives; the host UI renders them.
	OnChange func(response.Directive)
	Logger   *slog.Logger
	// Clock is injectable for tests; defaults to time.Now.
	Clock func() time.Time
	// BufferSize bounds the rolling event buffer.
	BufferSize int
}

// Engine is the host-facing facade: events in, directives out, weekly
// snapshots to local storage. It holds no network interface of any kind
// and is fully operable with networking disabled.
type Engine struct {
	log   *slog.Logger
	clock func() time.Time

	reg      *registry.Registry
	detector *signals.Detector
	cls      *classifier.Classifier
	pz       profile.Personalizer
	storage  store.Store
	recCfg   recovery.Config

	tickBusy atomic.Bool
	closed   atomic.Bool
	dropped  atomic.Int64

	mu           sync.Mutex
	ring         *event.Ring
	prof         profile.Profile
	ctrl         *response.Controller
	acc          *recovery.Accumulator
	sessionStart time.Time
}

// New builds an engine. A signature-registry misconfiguration is fatal
// here; a missing or corrupt stored profile is not — detection falls back
// to population defaults and the reset is logged locally.
func New(opts Options) (*Engine, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}

	reg := opts.Registry
	if reg == nil {
		var err error
		reg, err = registry.Default()
		if err != nil {
			return nil, fmt.Errorf("signature registry: %w", err)
		}
	}

	storage := opts.Store
	if storage == nil {
		storage = store.NewMemory()
	}

	if opts.Collectors.ReferenceGapSec == 0 {
		opts.Collectors = signals.DefaultConfig()
	}
	if opts.Classifier.TieEpsilon == 0 {
		opts.Classifier = classifier.DefaultConfig()
	}
	if opts.Response.SustainedClear == 0 {
		opts.Response = response.DefaultConfig()
	}
	if opts.Recovery.TrendWeeks == 0 {
		opts.Recovery = recovery.DefaultConfig()
	}
	if opts.Personalizer.PopulationNavGapSec == 0 {
		opts.Personalizer = profile.DefaultPersonalizer()
	}
	if opts.BufferSize == 0 {
		opts.BufferSize = 512
	}

	now := clock()
	prof, err := storage.LoadProfile(context.Background())
	switch {
	case err == nil:
	case errors.Is(err, store.ErrNoProfile):
		prof = profile.Default(now)
	default:
		// Corrupt or unreadable profile: personalization resets, the
		// detection path stays up.
		logger.Warn("profile unavailable, personalization reset", slog.String("error", err.Error()))
		prof = profile.Default(now)
	}

	e := &Engine{
		log:      logger,
		clock:    clock,
		reg:      reg,
		detector: signals.NewDetector(opts.Collectors),
		cls:      classifier.New(opts.Classifier, reg),
		pz:       opts.Personalizer,
		storage:  storage,
		recCfg:   opts.Recovery,
		ring:     event.NewRing(opts.BufferSize),
		prof:     prof,
		ctrl:     response.NewController(opts.Response, reg, logger, opts.OnChange),
		acc:      recovery.NewAccumulator(recovery.WeekKey(now)),
	}
	return e, nil
}

// RecordEvent ingests one interaction event. Fire-and-forget: no I/O, no
// blocking, bounded memory. Unknown event types are dropped.
func (e *Engine) RecordEvent(ev event.InteractionEvent) {
	if e.closed.Load() || !ev.Type.IsValid() {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.ring.Append(ev)

	switch ev.Type {
	case event.TypeEntryLogged:
		e.acc.EntriesLogged++
	case event.TypePreferenceChange:
		e.acc.PreferenceChanges++
	case event.TypeFeatureUsed:
		e.acc.UseFeature(ev.Value)
	case event.TypeAppForeground:
		e.acc.Sessions++
		e.sessionStart = ev.Timestamp
	case event.TypeAppBackground, event.TypeAppClose:
		if !e.sessionStart.IsZero() {
			e.acc.ActiveMinutes += ev.Timestamp.Sub(e.sessionStart).Minutes()
			e.sessionStart = time.Time{}
		}
	}
}

// Tick runs one analysis pass: collectors, personalization, classifier,
// response controller. Ticks are serialized by a re-entrancy guard; an
// overlapping tick is dropped and logged, never queued, to avoid
// oscillation.
func (e *Engine) Tick() classifier.Assessment {
	if !e.tickBusy.CompareAndSwap(false, true) {
		e.dropped.Add(1)
		e.log.Warn("analysis tick dropped, previous tick still running")
		return classifier.Assessment{InsufficientData: true}
	}
	defer e.tickBusy.Store(false)

	now := e.clock()

	e.mu.Lock()
	events := e.ring.Events()
	prof := e.prof
	e.mu.Unlock()

	sigs := e.detector.Collect(events, now)
	sigs = append(sigs, e.pz.MatchIndicators(prof, sigs, events)...)
	thresholds := e.pz.Thresholds(prof, e.reg)
	assessment := e.cls.Classify(sigs, thresholds, now)

	// Teardown mid-tick discards the pass entirely; nothing is ever
	// partially applied to the controller.
	if e.closed.Load() {
		return assessment
	}

	e.mu.Lock()
	e.ctrl.Observe(assessment, prof.PreferredResponse, now)
	e.acc.RecordAssessment(assessment)
	e.mu.Unlock()

	if err := e.finalizeThrough(context.Background(), now); err != nil {
		e.log.Warn("weekly finalization deferred", slog.String("error", err.Error()))
	}
	return assessment
}

// DroppedTicks reports how many overlapping ticks were discarded.
func (e *Engine) DroppedTicks() int64 {
	return e.dropped.Load()
}

// Profile returns the current immutable profile snapshot.
func (e *Engine) Profile() profile.Profile {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.prof
}

// UpdateProfile applies a user-initiated copy-on-write edit and persists
// the result. The live profile pointer swaps atomically under the lock;
// no analysis pass ever observes a half-edited profile.
func (e *Engine) UpdateProfile(ctx context.Context, edit func(profile.Profile) profile.Profile) error {
	e.mu.Lock()
	next := edit(e.prof.Clone())
	e.prof = next
	e.mu.Unlock()

	if err := e.storage.SaveProfile(ctx, next); err != nil {
		return fmt.Errorf("persist profile: %w", err)
	}
	return nil
}

// Transitions exposes the local response-controller log for user-facing
// transparency ("why did the app change?").
func (e *Engine) Transitions() []response.Transition {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ctrl.History()
}

// CatchUp finalizes any weeks that elapsed while the app was closed.
// Absent weeks become zero-activity snapshots, not holes, so the trend
// series stays continuous. Safe to run on every app open; it is
// idempotent.
func (e *Engine) CatchUp(ctx context.Context) error {
	now := e.clock()
	current := recovery.WeekKey(now)

	last, err := e.storage.LastWeek(ctx)
	if err != nil {
		return fmt.Errorf("read last finalized week: %w", err)
	}
	if last != "" {
		for week := recovery.NextWeek(last); week != "" && week < current; week = recovery.NextWeek(week) {
			if err := e.storage.SaveSnapshot(ctx, recovery.ZeroSnapshot(week)); err != nil {
				return fmt.Errorf("synthesize week %s: %w", week, err)
			}
		}
	}
	return e.finalizeThrough(ctx, now)
}

// finalizeThrough closes out the active accumulator week by week until it
// reaches the week containing now.
func (e *Engine) finalizeThrough(ctx context.Context, now time.Time) error {
	current := recovery.WeekKey(now)

	for {
		e.mu.Lock()
		if e.acc.Week == current {
			e.mu.Unlock()
			return nil
		}
		week := e.acc.Week
		e.acc.RecordRecoveries(transitionsInWeek(e.ctrl.History(), week))
		snap := e.acc.Finalize()
		e.acc = recovery.NewAccumulator(recovery.NextWeek(week))
		e.mu.Unlock()

		if err := e.storage.SaveSnapshot(ctx, snap); err != nil {
			return fmt.Errorf("finalize week %s: %w", week, err)
		}
		e.log.Info("weekly snapshot finalized",
			slog.String("week", snap.Week),
			slog.Int("crisisEvents", len(snap.CrisisEvents)),
		)
	}
}

func transitionsInWeek(transitions []response.Transition, week string) []response.Transition {
	var out []response.Transition
	for _, tr := range transitions {
		if recovery.WeekKey(tr.At) == week {
			out = append(out, tr)
		}
	}
	return out
}

// Status is the longitudinal view derived on demand from snapshot
// history.
type Status struct {
	Snapshots []recovery.WeeklySnapshot
	Trends    []recovery.Trend
	Habits    []recovery.Habit
	Warning   *recovery.RelapseWarning
	Exposure  recovery.Exposure
}

// RecoveryStatus recomputes trends, habits, regression classification,
// and feature exposure from the persisted snapshot history.
func (e *Engine) RecoveryStatus(ctx context.Context) (Status, error) {
	snaps, err := e.storage.Snapshots(ctx)
	if err != nil {
		return Status{}, fmt.Errorf("load snapshots: %w", err)
	}
	return Status{
		Snapshots: snaps,
		Trends:    recovery.Trends(snaps, e.recCfg),
		Habits:    recovery.DetectHabits(snaps, e.recCfg),
		Warning:   recovery.ClassifyRegression(snaps, e.recCfg),
		Exposure:  recovery.ExposureFor(snaps, recovery.DefaultStages(), e.recCfg),
	}, nil
}

// Close stops the engine. In-flight analysis is discarded, never
// partially applied.
func (e *Engine) Close() {
	e.closed.Store(true)
}
