package response

import (
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/haven-app/haven/internal/classifier"
	"github.com/haven-app/haven/internal/profile"
	"github.com/haven-app/haven/internal/registry"
)

type State string

const (
	StateIdle        State = "idle"
	StateMonitoring  State = "monitoring"
	StateIntervening State = "intervening"
	StateCooldown    State = "cooldown"
)

type Action string

const (
	ActionNone          Action = "none"
	ActionGentlePrompt  Action = "gentle_prompt"
	ActionShowResources Action = "show_resources"
	ActionSimplify      Action = "simplify_immediately"
	ActionDoNothing     Action = "do_nothing"
)

// Directive is the adaptation handed to the host UI. The engine never
// touches presentation itself; rendering is entirely the UI layer's job.
type Directive struct {
	Mode        Action
	Category    registry.Category
	Dismissible bool
	At          time.Time
}

// Transition is one logged state change, kept locally for the recovery
// tracker and for user-facing transparency. Only category, action, and
// timestamps are recorded; never event content.
type Transition struct {
	ID       string
	From     State
	To       State
	Category registry.Category
	Action   Action
	At       time.Time
}

type Config struct {
	// SustainedClear is how long the triggering category must stay below
	// threshold before the intervention lifts, preventing flicker.
	SustainedClear time.Duration
	// CooldownDwell is the minimum time spent in cooldown before the
	// controller may intervene again.
	CooldownDwell time.Duration
	// HistoryLimit bounds the in-memory transition log.
	HistoryLimit int
}

func DefaultConfig() Config {
	return Config{
		SustainedClear: 90 * time.Second,
		CooldownDwell:  5 * time.Minute,
		HistoryLimit:   256,
	}
}

// Controller is the Idle → Monitoring → Intervening → Cooldown state
// machine. It is not internally synchronized: the engine serializes
// analysis ticks, so Observe never runs concurrently.
type Controller struct {
	cfg      Config
	reg      *registry.Registry
	log      *slog.Logger
	onChange func(Directive)

	state      State
	category   registry.Category
	action     Action
	since      time.Time
	clearSince time.Time
	history    []Transition
}

func NewController(cfg Config, reg *registry.Registry, logger *slog.Logger, onChange func(Directive)) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	if onChange == nil {
		onChange = func(Directive) {}
	}
	return &Controller{
		cfg:      cfg,
		reg:      reg,
		log:      logger,
		onChange: onChange,
		state:    StateIdle,
	}
}

func (c *Controller) State() State {
	return c.state
}

// Active returns the category and action of the current intervention;
// zero values outside the Intervening state.
func (c *Controller) Active() (registry.Category, Action) {
	if c.state != StateIntervening {
		return "", ActionNone
	}
	return c.category, c.action
}

// History returns a copy of the transition log, oldest-first.
func (c *Controller) History() []Transition {
	return append([]Transition(nil), c.history...)
}

// Observe advances the state machine by one analysis tick. The whole
// transition is atomic with respect to the tick that drives it.
func (c *Controller) Observe(a classifier.Assessment, preferred profile.ResponseMode, now time.Time) {
	switch c.state {
	case StateIdle:
		c.moveTo(StateMonitoring, "", ActionNone, now)
		c.consider(a, preferred, now)
	case StateMonitoring:
		c.consider(a, preferred, now)
	case StateIntervening:
		if a.Detected() && a.DetectedCrisis == c.category {
			c.clearSince = time.Time{}
			return
		}
		if c.clearSince.IsZero() {
			c.clearSince = now
			return
		}
		if now.Sub(c.clearSince) >= c.cfg.SustainedClear {
			c.moveTo(StateCooldown, c.category, ActionNone, now)
			c.onChange(Directive{Mode: ActionNone, Category: c.category, Dismissible: true, At: now})
		}
	case StateCooldown:
		if now.Sub(c.since) >= c.cfg.CooldownDwell {
			c.moveTo(StateIdle, "", ActionNone, now)
		}
	}
}

// consider fires an intervention when the assessment detected a crisis.
func (c *Controller) consider(a classifier.Assessment, preferred profile.ResponseMode, now time.Time) {
	if !a.Detected() {
		return
	}

	action := c.resolveAction(a.DetectedCrisis, preferred)
	c.category = a.DetectedCrisis
	c.clearSince = time.Time{}
	c.moveTo(StateIntervening, a.DetectedCrisis, action, now)

	if action != ActionDoNothing {
		c.onChange(Directive{
			Mode:        action,
			Category:    a.DetectedCrisis,
			Dismissible: action != ActionSimplify,
			At:          now,
		})
	}
}

// resolveAction maps the user's preferred response mode onto an action,
// falling back to the category's intervention urgency when unset.
func (c *Controller) resolveAction(cat registry.Category, preferred profile.ResponseMode) Action {
	switch preferred {
	case profile.ResponseGentlePrompt:
		return ActionGentlePrompt
	case profile.ResponseShowResources:
		return ActionShowResources
	case profile.ResponseSimplify:
		return ActionSimplify
	case profile.ResponseDoNothing:
		return ActionDoNothing
	}
	urgency := registry.UrgencyGentle
	if sig, ok := c.reg.Get(cat); ok {
		urgency = sig.Urgency
	}
	switch urgency {
	case registry.UrgencyImmediate:
		return ActionSimplify
	case registry.UrgencyDelayed:
		return ActionShowResources
	}
	return ActionGentlePrompt
}

// moveTo records and logs one state change.
func (c *Controller) moveTo(to State, cat registry.Category, action Action, now time.Time) {
	tr := Transition{
		ID:       uuid.New().String(),
		From:     c.state,
		To:       to,
		Category: cat,
		Action:   action,
		At:       now,
	}
	c.state = to
	c.action = action
	c.since = now
	if to == StateIdle || to == StateMonitoring {
		c.category = ""
	}

	c.history = append(c.history, tr)
	if len(c.history) > c.cfg.HistoryLimit {
		c.history = c.history[len(c.history)-c.cfg.HistoryLimit:]
	}
	c.log.Info("response transition",
		slog.String("from", string(tr.From)),
		slog.String("to", string(tr.To)),
		slog.String("category", string(tr.Category)),
		slog.String("action", string(tr.Action)),
	)
}
