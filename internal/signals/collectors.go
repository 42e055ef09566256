package signals

import (
	"math"
	"time"

	"github.com/haven-app/haven/internal/event"
)

// Config tunes the collectors. All thresholds are window-relative; the
// collectors themselves are pure over (events, now).
type Config struct {
	// Navigation entropy component weights: speed, erraticism, circling.
	SpeedWeight     float64
	ErraticWeight   float64
	CirclingWeight  float64
	ReferenceGapSec float64

	// Abrupt exit: app_close within ExitWindow of the last navigation,
	// preceded by at least ExitMinNavs navigations inside that window.
	ExitWindow  time.Duration
	ExitMinNavs int

	// Inactivity thresholds.
	InactivityGap     time.Duration
	DissociationGap   time.Duration

	// Preference churn trailing window and the aggregate count treated
	// as maximal concern.
	ChurnWindow    time.Duration
	ChurnHighCount int

	// Flow catalog for abandonment detection.
	Flows []Flow

	// Minimum input samples before input chaos reports anything.
	ChaosMinSamples int
}

func DefaultConfig() Config {
	return Config{
		SpeedWeight:     0.4,
		ErraticWeight:   0.3,
		CirclingWeight:  0.3,
		ReferenceGapSec: 2.0,
		ExitWindow:      10 * time.Second,
		ExitMinNavs:     3,
		InactivityGap:   5 * time.Minute,
		DissociationGap: 10 * time.Minute,
		ChurnWindow:     5 * time.Minute,
		ChurnHighCount:  8,
		ChaosMinSamples: 4,
		Flows: []Flow{
			{Name: "log_pain_entry", Steps: []string{"open_form", "set_intensity", "set_location", "submit"}, Timeout: 3 * time.Minute},
			{Name: "log_mood_entry", Steps: []string{"open_form", "set_mood", "submit"}, Timeout: 3 * time.Minute},
			{Name: "weekly_review", Steps: []string{"open_review", "read_summary", "confirm"}, Timeout: 10 * time.Minute},
		},
	}
}

// NavigationEntropy combines navigation speed, gap erraticism, and page
// circling into a single score in [0,1]. Fewer than three navigation
// events yields 0: insufficient data is no signal, never a false positive.
func NavigationEntropy(events []event.InteractionEvent, cfg Config) float64 {
	var navs []event.InteractionEvent
	for _, ev := range events {
		if ev.Type == event.TypeNavigation {
			navs = append(navs, ev)
		}
	}
	if len(navs) < 3 {
		return 0
	}

	gaps := make([]float64, 0, len(navs)-1)
	pages := make(map[string]struct{}, len(navs))
	for i, ev := range navs {
		pages[ev.Page] = struct{}{}
		if i > 0 {
			gaps = append(gaps, navs[i].Timestamp.Sub(navs[i-1].Timestamp).Seconds())
		}
	}

	mean := meanOf(gaps)
	if mean <= 0 {
		mean = 0.001
	}
	speed := clamp01(cfg.ReferenceGapSec / mean)
	erratic := clamp01(stddevOf(gaps, mean) / mean)
	circling := 1 - float64(len(pages))/float64(len(navs))

	return clamp01(cfg.SpeedWeight*speed + cfg.ErraticWeight*erratic + cfg.CirclingWeight*circling)
}

// AbruptExit reports whether the window ends in an app closure that
// immediately follows a burst of navigation.
func AbruptExit(events []event.InteractionEvent, cfg Config) bool {
	if len(events) == 0 {
		return false
	}
	last := events[len(events)-1]
	if last.Type != event.TypeAppClose {
		return false
	}

	navs := 0
	for i := len(events) - 2; i >= 0; i-- {
		if last.Timestamp.Sub(events[i].Timestamp) > cfg.ExitWindow {
			break
		}
		if events[i].Type == event.TypeNavigation {
			navs++
		}
	}
	return navs >= cfg.ExitMinNavs
}

// AbandonedFlows flags flows whose completed steps form a strict, non-empty
// prefix of the expected sequence with no further progress before the
// flow's timeout.
func AbandonedFlows(events []event.InteractionEvent, cfg Config, now time.Time) []AbandonedFlow {
	type progress struct {
		steps []string
		first time.Time
		last  time.Time
	}
	seen := make(map[string]*progress)
	for _, ev := range events {
		if ev.Type != event.TypeFlowStep {
			continue
		}
		p, ok := seen[ev.Field]
		if !ok {
			p = &progress{first: ev.Timestamp}
			seen[ev.Field] = p
		}
		p.steps = append(p.steps, ev.Value)
		p.last = ev.Timestamp
	}

	var out []AbandonedFlow
	for _, flow := range cfg.Flows {
		p, ok := seen[flow.Name]
		if !ok || len(p.steps) == 0 {
			continue
		}
		if !isStrictPrefix(p.steps, flow.Steps) {
			continue
		}
		if now.Sub(p.last) <= flow.Timeout {
			continue
		}
		out = append(out, AbandonedFlow{
			FlowName:       flow.Name,
			CompletedSteps: len(p.steps),
			TotalSteps:     len(flow.Steps),
			AbandonedAt:    p.last,
			TimeInFlow:     p.last.Sub(p.first),
		})
	}
	return out
}

func isStrictPrefix(got, want []string) bool {
	if len(got) == 0 || len(got) >= len(want) {
		return false
	}
	for i, s := range got {
		if want[i] != s {
			return false
		}
	}
	return true
}

// InactivityGaps scans consecutive event gaps above the inactivity
// threshold. A gap is explained only when it starts with an app_background
// or ends with an app_foreground event; unexplained gaps beyond the
// dissociation threshold are flagged.
func InactivityGaps(events []event.InteractionEvent, cfg Config) []InactivityGap {
	var out []InactivityGap
	for i := 1; i < len(events); i++ {
		d := events[i].Timestamp.Sub(events[i-1].Timestamp)
		if d <= cfg.InactivityGap {
			continue
		}
		explained := events[i-1].Type == event.TypeAppBackground || events[i].Type == event.TypeAppForeground
		out = append(out, InactivityGap{
			Start:              events[i-1].Timestamp,
			End:                events[i].Timestamp,
			Duration:           d,
			Explained:          explained,
			LikelyDissociation: !explained && d > cfg.DissociationGap,
		})
	}
	return out
}

// Repetitions counts repeated event-type subsequences. Runs of a single
// type of length >= 3 and three or more immediate repeats of a length 2-5
// subsequence are reportable; concern scales with the repeat count.
func Repetitions(events []event.InteractionEvent) []Repetition {
	types := make([]string, len(events))
	for i, ev := range events {
		types[i] = string(ev.Type)
	}

	var out []Repetition
	for i := 0; i < len(types); {
		j := i + 1
		for j < len(types) && types[j] == types[i] {
			j++
		}
		if run := j - i; run >= 3 {
			out = append(out, Repetition{
				Sequence: []string{types[i]},
				Count:    run,
				Concern:  clamp01(0.3 * float64(run)),
			})
		}
		i = j
	}

	for size := 2; size <= 5; size++ {
		for i := 0; i+size <= len(types); i++ {
			count := 1
			for k := i + size; matchAt(types, i, k, size); k += size {
				count++
			}
			if count >= 3 {
				out = append(out, Repetition{
					Sequence: append([]string(nil), types[i:i+size]...),
					Count:    count,
					Concern:  clamp01(0.3 * float64(count)),
				})
				i += size * (count - 1)
			}
		}
	}
	return out
}

func matchAt(types []string, base, at, size int) bool {
	if at+size > len(types) {
		return false
	}
	for k := 0; k < size; k++ {
		if types[base+k] != types[at+k] {
			return false
		}
	}
	return true
}

// PreferenceChurn counts preference changes per key inside the trailing
// churn window.
func PreferenceChurn(events []event.InteractionEvent, cfg Config, now time.Time) ChurnReport {
	rep := ChurnReport{PerKey: map[string]int{}}
	cutoff := now.Add(-cfg.ChurnWindow)
	for _, ev := range events {
		if ev.Type != event.TypePreferenceChange || ev.Timestamp.Before(cutoff) {
			continue
		}
		rep.Total++
		rep.PerKey[ev.Field]++
		if rep.PerKey[ev.Field] > rep.MaxSameKey {
			rep.MaxSameKey = rep.PerKey[ev.Field]
		}
	}
	return rep
}

// InputChaos measures the deletion-to-entry ratio and the
// submission-abandonment rate over the window.
func InputChaos(events []event.InteractionEvent) ChaosReport {
	var rep ChaosReport
	for _, ev := range events {
		switch ev.Type {
		case event.TypeInput:
			rep.Entries++
		case event.TypeDeletion:
			rep.Deletions++
		case event.TypeSubmit:
			rep.Submissions++
		case event.TypeSubmitAbandoned:
			rep.Abandoned++
		}
	}
	if rep.Entries > 0 {
		rep.DeletionRatio = float64(rep.Deletions) / float64(rep.Entries)
	}
	if total := rep.Submissions + rep.Abandoned; total > 0 {
		rep.AbandonRate = float64(rep.Abandoned) / float64(total)
	}
	return rep
}

func meanOf(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func stddevOf(xs []float64, mean float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		d := x - mean
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(xs)))
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
