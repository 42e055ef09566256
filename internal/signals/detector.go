package signals

import (
	"fmt"
	"time"

	"github.com/haven-app/haven/internal/event"
)

// Detector runs every collector over an event window and returns the
// named signals that fired. Pull model: the classifier invokes Collect on
// each analysis tick; nothing runs while the app is idle.
type Detector struct {
	cfg Config
}

func NewDetector(cfg Config) *Detector {
	return &Detector{cfg: cfg}
}

// Collect is pure over (events, now): the same window always yields the
// same signals.
func (d *Detector) Collect(events []event.InteractionEvent, now time.Time) []DetectedSignal {
	var out []DetectedSignal

	if entropy := NavigationEntropy(events, d.cfg); entropy > 0 {
		out = append(out, DetectedSignal{
			Name:       SignalNavigationEntropy,
			Confidence: entropy,
			Source:     SourceComputed,
			Details:    fmt.Sprintf("entropy=%.2f", entropy),
		})
	}

	if AbruptExit(events, d.cfg) {
		out = append(out, DetectedSignal{
			Name:       SignalAbruptExit,
			Confidence: 0.9,
			Source:     SourceComputed,
			Details:    "app closed during navigation burst",
		})
	}

	if flows := AbandonedFlows(events, d.cfg, now); len(flows) > 0 {
		out = append(out, DetectedSignal{
			Name:       SignalAbandonedFlow,
			Confidence: clamp01(0.4 + 0.2*float64(len(flows))),
			Source:     SourceComputed,
			Details:    fmt.Sprintf("%d stale flows", len(flows)),
		})
	}

	gaps := InactivityGaps(events, d.cfg)
	var longestUnexplained, longestDissociative time.Duration
	for _, g := range gaps {
		if g.Explained {
			continue
		}
		if g.Duration > longestUnexplained {
			longestUnexplained = g.Duration
		}
		if g.LikelyDissociation && g.Duration > longestDissociative {
			longestDissociative = g.Duration
		}
	}
	if longestUnexplained > 0 {
		out = append(out, DetectedSignal{
			Name:       SignalUnexplainedInactivity,
			Confidence: clamp01(longestUnexplained.Minutes() / (2 * d.cfg.InactivityGap.Minutes())),
			Source:     SourceComputed,
			Details:    fmt.Sprintf("gap=%s", longestUnexplained.Round(time.Second)),
		})
	}
	if longestDissociative > 0 {
		out = append(out, DetectedSignal{
			Name:       SignalLikelyDissociation,
			Confidence: clamp01(longestDissociative.Minutes() / 15),
			Source:     SourceComputed,
			Details:    fmt.Sprintf("gap=%s", longestDissociative.Round(time.Second)),
		})
	}

	if reps := Repetitions(events); len(reps) > 0 {
		var max float64
		for _, r := range reps {
			if r.Concern > max {
				max = r.Concern
			}
		}
		out = append(out, DetectedSignal{
			Name:       SignalRepeatedActions,
			Confidence: max,
			Source:     SourceComputed,
			Details:    fmt.Sprintf("%d repeated subsequences", len(reps)),
		})
	}

	churn := PreferenceChurn(events, d.cfg, now)
	if churn.Total > 0 {
		out = append(out, DetectedSignal{
			Name:       SignalPreferenceChurn,
			Confidence: clamp01(float64(churn.Total) / float64(d.cfg.ChurnHighCount)),
			Source:     SourceComputed,
			Details:    fmt.Sprintf("%d changes across %d keys", churn.Total, len(churn.PerKey)),
		})
	}
	if churn.MaxSameKey >= 2 {
		out = append(out, DetectedSignal{
			Name:       SignalDisplayToggling,
			Confidence: clamp01(0.4 + 0.2*float64(churn.MaxSameKey)),
			Source:     SourceComputed,
			Details:    fmt.Sprintf("same key changed %d times", churn.MaxSameKey),
		})
	}

	chaos := InputChaos(events)
	if chaos.Entries+chaos.Submissions+chaos.Abandoned >= d.cfg.ChaosMinSamples {
		conf := clamp01(0.5*clamp01(chaos.DeletionRatio) + 0.5*chaos.AbandonRate)
		if conf > 0 {
			out = append(out, DetectedSignal{
				Name:       SignalInputChaos,
				Confidence: conf,
				Source:     SourceComputed,
				Details:    fmt.Sprintf("deletion_ratio=%.2f abandon_rate=%.2f", chaos.DeletionRatio, chaos.AbandonRate),
			})
		}
	}

	return out
}
