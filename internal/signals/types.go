package signals

import (
	"time"
)

type Source string

const (
	SourceComputed     Source = "computed"
	SourceSelfReported Source = "self_reported"
)

// Marker names emitted by the collectors. Crisis signatures reference
// these; the registry validates at startup that every signature marker
// resolves to one of them.
const (
	SignalNavigationEntropy     = "navigation_entropy"
	SignalAbruptExit            = "abrupt_exit"
	SignalAbandonedFlow         = "abandoned_flow"
	SignalUnexplainedInactivity = "unexplained_inactivity"
	SignalLikelyDissociation    = "likely_dissociation"
	SignalRepeatedActions       = "repeated_actions"
	SignalPreferenceChurn       = "preference_churn"
	SignalDisplayToggling       = "display_toggling"
	SignalInputChaos            = "input_chaos"
)

var Names = map[string]string{
	SignalNavigationEntropy:     "Fast, erratic, circling navigation",
	SignalAbruptExit:            "App closed immediately after rapid navigation",
	SignalAbandonedFlow:         "Multi-step flow started and left incomplete",
	SignalUnexplainedInactivity: "Event gap not bracketed by lifecycle events",
	SignalLikelyDissociation:    "Prolonged unexplained inactivity",
	SignalRepeatedActions:       "Repeated identical event subsequences",
	SignalPreferenceChurn:       "High aggregate preference change rate",
	SignalDisplayToggling:       "Same display preference flipped repeatedly",
	SignalInputChaos:            "High deletion ratio or abandoned submissions",
}

func IsKnownName(name string) bool {
	_, ok := Names[name]
	return ok
}

// DetectedSignal is one named, confidence-scored observation from a single
// analysis pass. Ephemeral; never persisted with raw event content.
type DetectedSignal struct {
	Name       string
	Confidence float64
	Source     Source
	Details    string
}

// Flow describes one expected multi-step flow for abandonment detection.
type Flow struct {
	Name    string
	Steps   []string
	Timeout time.Duration
}

// AbandonedFlow reports a flow whose completed steps are a strict,
// non-empty prefix of the expected sequence and which has gone stale.
type AbandonedFlow struct {
	FlowName       string
	CompletedSteps int
	TotalSteps     int
	AbandonedAt    time.Time
	TimeInFlow     time.Duration
}

// InactivityGap is one inter-event gap above the inactivity threshold.
type InactivityGap struct {
	Start              time.Time
	End                time.Time
	Duration           time.Duration
	Explained          bool
	LikelyDissociation bool
}

// Repetition reports a repeated event-type subsequence within the window.
type Repetition struct {
	Sequence []string
	Count    int
	Concern  float64
}

// ChurnReport summarizes preference changes in the trailing churn window.
type ChurnReport struct {
	Total      int
	PerKey     map[string]int
	MaxSameKey int
}

// ChaosReport summarizes text/numeric input behavior.
type ChaosReport struct {
	Entries       int
	Deletions     int
	Submissions   int
	Abandoned     int
	DeletionRatio float64
	AbandonRate   float64
}
