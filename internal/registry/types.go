package registry

type Category string

const (
	CategoryPainFlare       Category = "pain_flare"
	CategoryPanicAttack     Category = "panic_attack"
	CategoryDissociation    Category = "dissociation"
	CategorySensoryOverload Category = "sensory_overload"
)

type TemporalPattern string

const (
	PatternRapid    TemporalPattern = "rapid"
	PatternGradual  TemporalPattern = "gradual"
	PatternSudden   TemporalPattern = "sudden"
	PatternCyclical TemporalPattern = "cyclical"
)

func (p TemporalPattern) IsValid() bool {
	switch p {
	case PatternRapid, PatternGradual, PatternSudden, PatternCyclical:
		return true
	}
	return false
}

type Urgency string

const (
	UrgencyImmediate Urgency = "immediate"
	UrgencyGentle    Urgency = "gentle"
	UrgencyDelayed   Urgency = "delayed"
)

// Rank orders urgencies for tie-breaking: under-reacting costs more than
// over-reacting for acute states.
func (u Urgency) Rank() int {
	switch u {
	case UrgencyImmediate:
		return 3
	case UrgencyGentle:
		return 2
	case UrgencyDelayed:
		return 1
	}
	return 0
}

func (u Urgency) IsValid() bool {
	return u.Rank() > 0
}

// Marker binds a collector signal name to its weight inside one signature.
type Marker struct {
	Name   string  `yaml:"name"`
	Weight float64 `yaml:"weight"`
}

// Signature is the behavioral fingerprint of one crisis category.
// Signatures are data, not code: a new category is a YAML insertion plus
// whatever new collectors its markers need.
type Signature struct {
	Category           Category        `yaml:"category"`
	Markers            []Marker        `yaml:"markers"`
	Pattern            TemporalPattern `yaml:"pattern"`
	DurationMinMinutes int             `yaml:"duration_min_minutes"`
	DurationMaxMinutes int             `yaml:"duration_max_minutes"`
	FalsePositives     string          `yaml:"false_positives"`
	Urgency            Urgency         `yaml:"urgency"`
	BaseThreshold      float64         `yaml:"base_threshold"`
}

// MarkerWeight returns the weight of the named marker, 0 if absent.
func (s Signature) MarkerWeight(name string) float64 {
	for _, m := range s.Markers {
		if m.Name == name {
			return m.Weight
		}
	}
	return 0
}

// HasMarker reports whether the signature references the named signal.
func (s Signature) HasMarker(name string) bool {
	return s.MarkerWeight(name) > 0
}
