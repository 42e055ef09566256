package registry

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/haven-app/haven/internal/signals"
)

//go:embed signatures.yaml
var defaultSignatures []byte

// Registry holds the validated crisis signature table.
type Registry struct {
	sigs       []Signature
	byCategory map[Category]Signature
}

type signatureFile struct {
	Signatures []Signature `yaml:"signatures"`
}

// Default loads the built-in signature table.
func Default() (*Registry, error) {
	var file signatureFile
	if err := yaml.Unmarshal(defaultSignatures, &file); err != nil {
		return nil, fmt.Errorf("parse built-in signatures: %w", err)
	}
	return New(file.Signatures)
}

// Load parses a caller-supplied signature table, for installs that extend
// the built-in categories.
func Load(data []byte) (*Registry, error) {
	var file signatureFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse signatures: %w", err)
	}
	return New(file.Signatures)
}

// New validates and indexes a signature table. A marker that resolves to
// no collector output is a configuration error, fatal at initialization
// rather than a runtime surprise.
func New(sigs []Signature) (*Registry, error) {
	if len(sigs) == 0 {
		return nil, fmt.Errorf("signature table is empty")
	}

	byCategory := make(map[Category]Signature, len(sigs))
	for _, sig := range sigs {
		if sig.Category == "" {
			return nil, fmt.Errorf("signature with empty category")
		}
		if _, dup := byCategory[sig.Category]; dup {
			return nil, fmt.Errorf("duplicate signature for category %q", sig.Category)
		}
		if !sig.Pattern.IsValid() {
			return nil, fmt.Errorf("category %q: invalid temporal pattern %q", sig.Category, sig.Pattern)
		}
		if !sig.Urgency.IsValid() {
			return nil, fmt.Errorf("category %q: invalid urgency %q", sig.Category, sig.Urgency)
		}
		if sig.BaseThreshold <= 0 || sig.BaseThreshold > 1 {
			return nil, fmt.Errorf("category %q: base threshold %v outside (0,1]", sig.Category, sig.BaseThreshold)
		}
		if len(sig.Markers) == 0 {
			return nil, fmt.Errorf("category %q: no markers", sig.Category)
		}
		for _, m := range sig.Markers {
			if !signals.IsKnownName(m.Name) {
				return nil, fmt.Errorf("category %q: marker %q has no producing collector", sig.Category, m.Name)
			}
			if m.Weight <= 0 {
				return nil, fmt.Errorf("category %q: marker %q has non-positive weight", sig.Category, m.Name)
			}
		}
		byCategory[sig.Category] = sig
	}

	return &Registry{sigs: sigs, byCategory: byCategory}, nil
}

// Signatures returns the table in declaration order.
func (r *Registry) Signatures() []Signature {
	return r.sigs
}

func (r *Registry) Get(c Category) (Signature, bool) {
	sig, ok := r.byCategory[c]
	return sig, ok
}

func (r *Registry) Categories() []Category {
	out := make([]Category, 0, len(r.sigs))
	for _, sig := range r.sigs {
		out = append(out, sig.Category)
	}
	return out
}
