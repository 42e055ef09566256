package event

import (
	"time"
)

type Type string

const (
	TypeNavigation       Type = "navigation"
	TypeInput            Type = "input"
	TypeDeletion         Type = "deletion"
	TypeSubmit           Type = "submit"
	TypeSubmitAbandoned  Type = "submit_abandoned"
	TypeEntryLogged      Type = "entry_logged"
	TypeFlowStep         Type = "flow_step"
	TypePreferenceChange Type = "preference_change"
	TypeFeatureUsed      Type = "feature_used"
	TypeAppForeground    Type = "app_foreground"
	TypeAppBackground    Type = "app_background"
	TypeAppClose         Type = "app_close"
)

var ValidTypes = map[Type]string{
	TypeNavigation:       "Page or screen navigation",
	TypeInput:            "Character entry into a text or numeric field",
	TypeDeletion:         "Character deletion from a text or numeric field",
	TypeSubmit:           "Form or entry submission",
	TypeSubmitAbandoned:  "Form focused then left without submission",
	TypeEntryLogged:      "Completed pain/mood entry",
	TypeFlowStep:         "Step completed inside a named multi-step flow",
	TypePreferenceChange: "Settings or display preference change",
	TypeFeatureUsed:      "First use of a named feature in a session",
	TypeAppForeground:    "App brought to foreground",
	TypeAppBackground:    "App sent to background",
	TypeAppClose:         "App closed by the user",
}

func (t Type) IsValid() bool {
	_, ok := ValidTypes[t]
	return ok
}

// InteractionEvent is the atomic unit of behavioral telemetry. Immutable
// once recorded; retained only inside the bounded ring buffer and never
// persisted verbatim.
type InteractionEvent struct {
	Type      Type
	Timestamp time.Time
	Page      string
	Field     string
	Value     string
}
