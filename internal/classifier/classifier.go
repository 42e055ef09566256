package classifier

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/haven-app/haven/internal/registry"
	"github.com/haven-app/haven/internal/signals"
)

// Hypothesis is one category's score in a classification pass.
type Hypothesis struct {
	Category registry.Category
	Score    float64
}

// Assessment is the immutable output of one classification pass.
// DetectedCrisis is empty when nothing crossed its threshold; the ranked
// alternatives are always populated so false positives can be diagnosed
// from category names and scores alone, never from raw event content.
type Assessment struct {
	ID               string
	At               time.Time
	DetectedCrisis   registry.Category
	Confidence       float64
	Signals          []signals.DetectedSignal
	Alternatives     []Hypothesis
	InsufficientData bool
}

// Detected reports whether the pass crossed a detection threshold.
func (a Assessment) Detected() bool {
	return a.DetectedCrisis != ""
}

type Config struct {
	// TieEpsilon: two categories scoring within this range are considered
	// tied and resolved by intervention urgency.
	TieEpsilon float64
	// MinSignals below which the pass is marked insufficient-data rather
	// than treated as a confident negative.
	MinSignals int
}

func DefaultConfig() Config {
	return Config{
		TieEpsilon: 0.05,
		MinSignals: 1,
	}
}

type Classifier struct {
	cfg Config
	reg *registry.Registry
}

func New(cfg Config, reg *registry.Registry) *Classifier {
	return &Classifier{cfg: cfg, reg: reg}
}

// Classify scores every registered category against the detected signals
// and resolves the winner against its effective threshold. Thresholds come
// from the personalization layer; a nil map falls back to each signature's
// base threshold.
func (c *Classifier) Classify(sigs []signals.DetectedSignal, thresholds map[registry.Category]float64, now time.Time) Assessment {
	assessment := Assessment{
		ID:      uuid.New().String(),
		At:      now,
		Signals: append([]signals.DetectedSignal(nil), sigs...),
	}

	if len(sigs) < c.cfg.MinSignals {
		assessment.InsufficientData = true
		assessment.Alternatives = c.rankAll(nil)
		return assessment
	}

	// Multiple signals may share a name (computed plus self-reported);
	// the strongest one counts.
	confidence := make(map[string]float64, len(sigs))
	for _, s := range sigs {
		if s.Confidence > confidence[s.Name] {
			confidence[s.Name] = s.Confidence
		}
	}

	ranked := c.rankAll(confidence)

	winner := ranked[0]
	winnerSig, _ := c.reg.Get(winner.Category)
	threshold := effectiveThreshold(winnerSig, thresholds)

	// Tie-break: among categories within epsilon of the top score that
	// also clear their own threshold, prefer the most urgent one.
	for _, h := range ranked[1:] {
		if winner.Score-h.Score > c.cfg.TieEpsilon {
			break
		}
		sig, _ := c.reg.Get(h.Category)
		if h.Score < effectiveThreshold(sig, thresholds) {
			continue
		}
		if sig.Urgency.Rank() > winnerSig.Urgency.Rank() {
			winner, winnerSig = h, sig
			threshold = effectiveThreshold(sig, thresholds)
		}
	}
	// A tie-break winner carries the tied cluster's top score so no
	// alternative ever outranks the detection.
	if winner.Score < ranked[0].Score {
		winner.Score = ranked[0].Score
	}

	if winner.Score >= threshold {
		assessment.DetectedCrisis = winner.Category
		assessment.Confidence = winner.Score
		assessment.Alternatives = without(ranked, winner.Category)
	} else {
		assessment.Confidence = winner.Score
		assessment.Alternatives = ranked
	}
	return assessment
}

// rankAll scores every category as the weighted sum of its marker
// confidences. Marker weights sum to 1 per signature, so a missing signal
// simply contributes nothing.
func (c *Classifier) rankAll(confidence map[string]float64) []Hypothesis {
	ranked := make([]Hypothesis, 0, len(c.reg.Signatures()))
	for _, sig := range c.reg.Signatures() {
		var score float64
		for _, m := range sig.Markers {
			score += m.Weight * confidence[m.Name]
		}
		if score > 1 {
			score = 1
		}
		ranked = append(ranked, Hypothesis{Category: sig.Category, Score: score})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return ranked
}

func effectiveThreshold(sig registry.Signature, thresholds map[registry.Category]float64) float64 {
	if th, ok := thresholds[sig.Category]; ok {
		return th
	}
	return sig.BaseThreshold
}

func without(ranked []Hypothesis, cat registry.Category) []Hypothesis {
	out := make([]Hypothesis, 0, len(ranked)-1)
	for _, h := range ranked {
		if h.Category != cat {
			out = append(out, h)
		}
	}
	return out
}
