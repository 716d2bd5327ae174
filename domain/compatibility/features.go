package compatibility

import (
	"encoding/json"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Feature is a named optional capability
type Feature string

// Known features
const (
	FeatureV2API           Feature = "v2-api"
	FeatureV3Preview       Feature = "v3-preview"
	FeatureDeprecatedV1    Feature = "deprecated-v1"
	FeatureEnhancedErrors  Feature = "enhanced-errors"
	FeaturePerformanceOpts Feature = "performance-opts"
	FeatureExperimental    Feature = "experimental"
)

// FeatureSet is an immutable set of features. The zero value is empty.
type FeatureSet struct {
	m map[Feature]struct{}
}

// NewFeatureSet builds a set, ignoring blanks and duplicates
func NewFeatureSet(features ...Feature) FeatureSet {
	m := make(map[Feature]struct{}, len(features))
	for _, f := range features {
		f = Feature(strings.TrimSpace(string(f)))
		if f != "" {
			m[f] = struct{}{}
		}
	}
	return FeatureSet{m: m}
}

// ParseFeatureList parses a comma-separated list such as "v2-api, experimental"
func ParseFeatureList(s string) FeatureSet {
	var features []Feature
	for _, part := range strings.Split(s, ",") {
		features = append(features, Feature(part))
	}
	return NewFeatureSet(features...)
}

// Has reports whether f is in the set
func (s FeatureSet) Has(f Feature) bool {
	_, ok := s.m[f]
	return ok
}

// Len returns the number of features
func (s FeatureSet) Len() int {
	return len(s.m)
}

// Names returns the features in sorted order
func (s FeatureSet) Names() []string {
	out := make([]string, 0, len(s.m))
	for f := range s.m {
		out = append(out, string(f))
	}
	sort.Strings(out)
	return out
}

// Features returns the features in sorted order
func (s FeatureSet) Features() []Feature {
	names := s.Names()
	out := make([]Feature, len(names))
	for i, n := range names {
		out[i] = Feature(n)
	}
	return out
}

// Difference returns the features in s that are not in other
func (s FeatureSet) Difference(other FeatureSet) FeatureSet {
	var out []Feature
	for f := range s.m {
		if !other.Has(f) {
			out = append(out, f)
		}
	}
	return NewFeatureSet(out...)
}

// Intersect returns the features in both sets
func (s FeatureSet) Intersect(other FeatureSet) FeatureSet {
	var out []Feature
	for f := range s.m {
		if other.Has(f) {
			out = append(out, f)
		}
	}
	return NewFeatureSet(out...)
}

// Union returns the features in either set
func (s FeatureSet) Union(other FeatureSet) FeatureSet {
	out := make([]Feature, 0, s.Len()+other.Len())
	out = append(out, s.Features()...)
	out = append(out, other.Features()...)
	return NewFeatureSet(out...)
}

// IsSubsetOf reports whether every feature in s is in other
func (s FeatureSet) IsSubsetOf(other FeatureSet) bool {
	for f := range s.m {
		if !other.Has(f) {
			return false
		}
	}
	return true
}

// String renders the set as a comma-separated list
func (s FeatureSet) String() string {
	return strings.Join(s.Names(), ",")
}

// MarshalJSON implements json.Marshaler
func (s FeatureSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Names())
}

// UnmarshalJSON implements json.Unmarshaler
func (s *FeatureSet) UnmarshalJSON(data []byte) error {
	var names []Feature
	if err := json.Unmarshal(data, &names); err != nil {
		return err
	}
	*s = NewFeatureSet(names...)
	return nil
}

// MarshalYAML implements yaml.Marshaler
func (s FeatureSet) MarshalYAML() (interface{}, error) {
	return s.Names(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler
func (s *FeatureSet) UnmarshalYAML(node *yaml.Node) error {
	var names []Feature
	if err := node.Decode(&names); err != nil {
		return err
	}
	*s = NewFeatureSet(names...)
	return nil
}

// Profile is one party of a pairing: its version, the features it has
// enabled, the features it needs from the other side and the features it
// has deprecated
type Profile struct {
	Service    string     `json:"service" yaml:"service"`
	Version    Version    `json:"version" yaml:"version"`
	Enabled    FeatureSet `json:"enabled" yaml:"enabled"`
	Required   FeatureSet `json:"required" yaml:"required"`
	Deprecated FeatureSet `json:"deprecated" yaml:"deprecated"`
}
