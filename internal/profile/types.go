package profile

import (
	"time"
)

type ResponseMode string

const (
	ResponseUnset         ResponseMode = ""
	ResponseGentlePrompt  ResponseMode = "gentle_prompt"
	ResponseShowResources ResponseMode = "show_resources"
	ResponseSimplify      ResponseMode = "simplify_immediately"
	ResponseDoNothing     ResponseMode = "do_nothing"
)

func (m ResponseMode) IsValid() bool {
	switch m {
	case ResponseUnset, ResponseGentlePrompt, ResponseShowResources, ResponseSimplify, ResponseDoNothing:
		return true
	}
	return false
}

// Condition is a user-declared condition with per-marker threshold
// multipliers. A multiplier above 1 raises the bar for that marker
// (naturally erratic but benign behavior); below 1 lowers it.
type Condition struct {
	Name        string             `json:"name"`
	Multipliers map[string]float64 `json:"multipliers"`
}

// CustomIndicator is a user-authored early-warning description plus the
// trigger-behavior tags it maps to. Tags name collector signals or raw
// event types.
type CustomIndicator struct {
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

// Baseline holds rolling statistics of the user's own normal, so the
// classifier compares the user to themselves rather than to a population
// default.
type Baseline struct {
	MeanNavGapSeconds float64   `json:"meanNavGapSeconds"`
	SampleCount       int       `json:"sampleCount"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// Profile is the per-user crisis profile, persisted locally and never
// synchronized off-device. Mutation happens only through the With*
// copy-on-write methods; the original value is never modified, so a
// collector reading a profile snapshot can never observe a mid-edit state.
type Profile struct {
	Conditions        []Condition       `json:"conditions"`
	Baseline          Baseline          `json:"baseline"`
	Indicators        []CustomIndicator `json:"indicators"`
	PreferredResponse ResponseMode      `json:"preferredResponse"`
	CreatedAt         time.Time         `json:"createdAt"`
	UpdatedAt         time.Time         `json:"updatedAt"`
}

func Default(now time.Time) Profile {
	return Profile{CreatedAt: now, UpdatedAt: now}
}

// Clone deep-copies the profile, including condition multiplier maps.
func (p Profile) Clone() Profile {
	out := p
	out.Conditions = make([]Condition, len(p.Conditions))
	for i, c := range p.Conditions {
		mult := make(map[string]float64, len(c.Multipliers))
		for k, v := range c.Multipliers {
			mult[k] = v
		}
		out.Conditions[i] = Condition{Name: c.Name, Multipliers: mult}
	}
	out.Indicators = make([]CustomIndicator, len(p.Indicators))
	for i, ind := range p.Indicators {
		out.Indicators[i] = CustomIndicator{
			Description: ind.Description,
			Tags:        append([]string(nil), ind.Tags...),
		}
	}
	return out
}

func (p Profile) WithCondition(c Condition, now time.Time) Profile {
	out := p.Clone()
	for i, existing := range out.Conditions {
		if existing.Name == c.Name {
			out.Conditions[i] = c
			out.UpdatedAt = now
			return out
		}
	}
	out.Conditions = append(out.Conditions, c)
	out.UpdatedAt = now
	return out
}

func (p Profile) WithoutCondition(name string, now time.Time) Profile {
	out := p.Clone()
	kept := out.Conditions[:0]
	for _, c := range out.Conditions {
		if c.Name != name {
			kept = append(kept, c)
		}
	}
	out.Conditions = kept
	out.UpdatedAt = now
	return out
}

func (p Profile) WithIndicator(ind CustomIndicator, now time.Time) Profile {
	out := p.Clone()
	out.Indicators = append(out.Indicators, ind)
	out.UpdatedAt = now
	return out
}

func (p Profile) WithPreferredResponse(mode ResponseMode, now time.Time) Profile {
	out := p.Clone()
	out.PreferredResponse = mode
	out.UpdatedAt = now
	return out
}

// WithBaseline records a re-estimated baseline. Baseline re-estimation and
// explicit user edits are the only writers; the classifier never mutates a
// profile.
func (p Profile) WithBaseline(b Baseline, now time.Time) Profile {
	out := p.Clone()
	out.Baseline = b
	out.UpdatedAt = now
	return out
}
