package profile

import (
	"math"

	"github.com/haven-app/haven/internal/event"
	"github.com/haven-app/haven/internal/registry"
	"github.com/haven-app/haven/internal/signals"
)

// Personalizer turns a profile snapshot into an adjusted threshold table
// and injects self-reported signals for matched custom indicators. It is a
// pure transform over the immutable profile; thresholds are recomputed per
// assessment, never cached across sessions.
type Personalizer struct {
	// PopulationNavGapSec is the population-default mean gap between
	// navigations, against which the learned baseline is compared.
	PopulationNavGapSec float64
	// BaselineCap bounds how far a fast personal baseline can raise the
	// navigation-entropy bar.
	BaselineCap float64
	// BaselineMinSamples gates baseline use until enough history exists.
	BaselineMinSamples int
	// IndicatorConfidence is the confidence assigned to matched custom
	// indicators.
	IndicatorConfidence float64
	// ThresholdCeiling keeps an adjusted threshold reachable.
	ThresholdCeiling float64
}

func DefaultPersonalizer() Personalizer {
	return Personalizer{
		PopulationNavGapSec: 8.0,
		BaselineCap:         2.0,
		BaselineMinSamples:  50,
		IndicatorConfidence: 0.9,
		ThresholdCeiling:    0.95,
	}
}

// markerFactor multiplies every declared condition's multiplier for the
// marker with the baseline-derived multiplier. Factors >= 1 can only raise
// the effective threshold; the baseline factor is floored at 1 so a
// slower-than-population user never gets a lowered bar from speed alone.
func (pz Personalizer) markerFactor(p Profile, marker string) float64 {
	factor := 1.0
	for _, c := range p.Conditions {
		if m, ok := c.Multipliers[marker]; ok && m > 0 {
			factor *= m
		}
	}
	if marker == signals.SignalNavigationEntropy && pz.usableBaseline(p) {
		ratio := pz.PopulationNavGapSec / p.Baseline.MeanNavGapSeconds
		if ratio > 1 {
			factor *= math.Min(pz.BaselineCap, ratio)
		}
	}
	return factor
}

func (pz Personalizer) usableBaseline(p Profile) bool {
	return p.Baseline.SampleCount >= pz.BaselineMinSamples && p.Baseline.MeanNavGapSeconds > 0
}

// Thresholds computes the effective detection threshold per category. Each
// marker's factor is applied in proportion to its weight inside the
// signature, so a condition that only affects one marker moves a
// multi-marker category's threshold only partially.
func (pz Personalizer) Thresholds(p Profile, reg *registry.Registry) map[registry.Category]float64 {
	out := make(map[registry.Category]float64, len(reg.Signatures()))
	for _, sig := range reg.Signatures() {
		var weightSum float64
		for _, m := range sig.Markers {
			weightSum += m.Weight
		}

		th := sig.BaseThreshold
		for _, m := range sig.Markers {
			factor := pz.markerFactor(p, m.Name)
			if factor == 1 {
				continue
			}
			th *= math.Pow(factor, m.Weight/weightSum)
		}
		if th > pz.ThresholdCeiling {
			th = pz.ThresholdCeiling
		}
		out[sig.Category] = th
	}
	return out
}

// MatchIndicators scans the current window against the user's custom
// indicators. A tag matches when a computed signal of that name fired or
// when the window contains events of that type; each match is injected as
// a high-confidence self-reported signal the classifier treats like any
// computed one.
func (pz Personalizer) MatchIndicators(p Profile, computed []signals.DetectedSignal, events []event.InteractionEvent) []signals.DetectedSignal {
	if len(p.Indicators) == 0 {
		return nil
	}

	signalPresent := make(map[string]bool, len(computed))
	for _, s := range computed {
		signalPresent[s.Name] = true
	}
	typePresent := make(map[string]bool, len(events))
	for _, ev := range events {
		typePresent[string(ev.Type)] = true
	}

	injected := make(map[string]bool)
	var out []signals.DetectedSignal
	for _, ind := range p.Indicators {
		for _, tag := range ind.Tags {
			name := tag
			if !signals.IsKnownName(name) {
				// Raw event-type tags surface under the nearest marker so
				// signatures can score them.
				alias, ok := eventTagMarkers[tag]
				if !ok {
					continue
				}
				name = alias
			}
			if injected[name] {
				continue
			}
			if !signalPresent[tag] && !typePresent[tag] {
				continue
			}
			injected[name] = true
			out = append(out, signals.DetectedSignal{
				Name:       name,
				Confidence: pz.IndicatorConfidence,
				Source:     signals.SourceSelfReported,
				Details:    ind.Description,
			})
		}
	}
	return out
}

// eventTagMarkers maps raw event-type trigger tags to the marker each one
// feeds, so a user-authored indicator phrased in terms of behavior
// ("closing the app suddenly") still lands on a scoreable signal.
var eventTagMarkers = map[string]string{
	string(event.TypePreferenceChange): signals.SignalPreferenceChurn,
	string(event.TypeDeletion):         signals.SignalInputChaos,
	string(event.TypeSubmitAbandoned):  signals.SignalInputChaos,
	string(event.TypeNavigation):       signals.SignalNavigationEntropy,
	string(event.TypeAppClose):         signals.SignalAbruptExit,
}
