package recovery

import (
	"fmt"
	"sort"
	"time"

	"github.com/haven-app/haven/internal/classifier"
	"github.com/haven-app/haven/internal/response"
)

// SessionPatterns summarizes how the app was used during one week.
type SessionPatterns struct {
	Sessions           int     `json:"sessions"`
	MeanSessionMinutes float64 `json:"meanSessionMinutes"`
}

// WeeklySnapshot is one finalized calendar week. Immutable after
// finalization; assessments are copied by value so historical analysis
// stays stable even if live detection logic changes.
type WeeklySnapshot struct {
	Week                string                  `json:"week"`
	EntriesLogged       int                     `json:"entriesLogged"`
	CrisisEvents        []classifier.Assessment `json:"crisisEvents"`
	FeaturesUsed        []string                `json:"featuresUsed"`
	PreferenceChanges   int                     `json:"preferenceChanges"`
	SessionPatterns     SessionPatterns         `json:"sessionPatterns"`
	MeanRecoveryMinutes float64                 `json:"meanRecoveryMinutes"`
	FinalizedAt         time.Time               `json:"finalizedAt"`
}

// CrisisSeverity is the mean confidence of the week's detected crises.
func (s WeeklySnapshot) CrisisSeverity() float64 {
	if len(s.CrisisEvents) == 0 {
		return 0
	}
	var sum float64
	for _, a := range s.CrisisEvents {
		sum += a.Confidence
	}
	return sum / float64(len(s.CrisisEvents))
}

// WeekKey renders the ISO week containing t, e.g. "2026-W10".
func WeekKey(t time.Time) string {
	year, week := t.ISOWeek()
	return fmt.Sprintf("%04d-W%02d", year, week)
}

// WeekStart returns the UTC Monday midnight beginning t's ISO week.
func WeekStart(t time.Time) time.Time {
	t = t.UTC()
	weekday := int(t.Weekday())
	if weekday == 0 {
		weekday = 7
	}
	day := t.AddDate(0, 0, 1-weekday)
	return time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
}

// WeekEnd is the exclusive end of t's ISO week.
func WeekEnd(t time.Time) time.Time {
	return WeekStart(t).AddDate(0, 0, 7)
}

// Accumulator gathers one week's aggregates as the session progresses.
// Only derived, privacy-safe aggregates are kept; raw events never reach
// this struct.
type Accumulator struct {
	Week              string
	EntriesLogged     int
	PreferenceChanges int
	Sessions          int
	ActiveMinutes     float64
	Features          map[string]struct{}
	Assessments       []classifier.Assessment
	Recoveries        []time.Duration
}

func NewAccumulator(week string) *Accumulator {
	return &Accumulator{Week: week, Features: map[string]struct{}{}}
}

func (a *Accumulator) UseFeature(name string) {
	a.Features[name] = struct{}{}
}

// RecordAssessment keeps detected crises only; negatives carry no
// longitudinal signal worth retaining.
func (a *Accumulator) RecordAssessment(as classifier.Assessment) {
	if as.Detected() {
		a.Assessments = append(a.Assessments, as)
	}
}

// RecordRecoveries extracts Intervening-entry to Cooldown-exit latencies
// from the transition log.
func (a *Accumulator) RecordRecoveries(transitions []response.Transition) {
	var start time.Time
	for _, tr := range transitions {
		switch tr.To {
		case response.StateIntervening:
			if start.IsZero() {
				start = tr.At
			}
		case response.StateIdle:
			if !start.IsZero() {
				a.Recoveries = append(a.Recoveries, tr.At.Sub(start))
				start = time.Time{}
			}
		}
	}
}

// Finalize produces the immutable weekly snapshot. It is deterministic in
// the accumulator alone — FinalizedAt is the week's own end, not the wall
// clock — so re-running finalization yields an identical snapshot.
func (a *Accumulator) Finalize() WeeklySnapshot {
	features := make([]string, 0, len(a.Features))
	for f := range a.Features {
		features = append(features, f)
	}
	sort.Strings(features)

	var meanSession float64
	if a.Sessions > 0 {
		meanSession = a.ActiveMinutes / float64(a.Sessions)
	}

	var meanRecovery float64
	if len(a.Recoveries) > 0 {
		var sum time.Duration
		for _, r := range a.Recoveries {
			sum += r
		}
		meanRecovery = sum.Minutes() / float64(len(a.Recoveries))
	}

	return WeeklySnapshot{
		Week:                a.Week,
		EntriesLogged:       a.EntriesLogged,
		CrisisEvents:        append([]classifier.Assessment(nil), a.Assessments...),
		FeaturesUsed:        features,
		PreferenceChanges:   a.PreferenceChanges,
		SessionPatterns:     SessionPatterns{Sessions: a.Sessions, MeanSessionMinutes: meanSession},
		MeanRecoveryMinutes: meanRecovery,
		FinalizedAt:         weekKeyEnd(a.Week),
	}
}

// ZeroSnapshot synthesizes a zero-activity week so a multi-week absence
// leaves no hole in the trend series.
func ZeroSnapshot(week string) WeeklySnapshot {
	return WeeklySnapshot{
		Week:         week,
		FeaturesUsed: []string{},
		FinalizedAt:  weekKeyEnd(week),
	}
}

// weekKeyEnd parses a week key back into its exclusive end time.
func weekKeyEnd(week string) time.Time {
	var year, num int
	if _, err := fmt.Sscanf(week, "%04d-W%02d", &year, &num); err != nil {
		return time.Time{}
	}
	// January 4th is always inside ISO week 1.
	jan4 := time.Date(year, 1, 4, 0, 0, 0, 0, time.UTC)
	return WeekStart(jan4).AddDate(0, 0, 7*num)
}

// NextWeek returns the week key following the given one.
func NextWeek(week string) string {
	end := weekKeyEnd(week)
	if end.IsZero() {
		return ""
	}
	return WeekKey(end)
}
