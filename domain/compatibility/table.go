package compatibility

import (
	"gopkg.in/yaml.v3"

	pkgerrors "nodespace-core/pkg/errors"
)

// FeatureSpec describes one feature and its lifecycle
type FeatureSpec struct {
	Name            Feature  `yaml:"name" json:"name"`
	Description     string   `yaml:"description,omitempty" json:"description,omitempty"`
	DeprecatedSince *Version `yaml:"deprecated_since,omitempty" json:"deprecated_since,omitempty"`
	RemovedIn       *Version `yaml:"removed_in,omitempty" json:"removed_in,omitempty"`
}

// DeprecatedAt reports whether the feature is deprecated at version v
func (f FeatureSpec) DeprecatedAt(v Version) bool {
	return f.DeprecatedSince != nil && v.Compare(*f.DeprecatedSince) >= 0
}

// RemovedAt reports whether the feature no longer exists at version v
func (f FeatureSpec) RemovedAt(v Version) bool {
	return f.RemovedIn != nil && v.Compare(*f.RemovedIn) >= 0
}

// Record is one rule of the table. It applies to a pairing when the
// producer's version lies in Range and the consumer enables or requires
// every feature in Features.
type Record struct {
	Features   FeatureSet `yaml:"features" json:"features"`
	Range      Range      `yaml:"range" json:"range"`
	Compatible bool       `yaml:"compatible" json:"compatible"`
	Reason     string     `yaml:"reason" json:"reason"`
}

// Table is the declarative compatibility configuration
type Table struct {
	Features []FeatureSpec `yaml:"features" json:"features"`
	Records  []Record      `yaml:"records" json:"records"`
}

// ParseTable reads a YAML table
func ParseTable(data []byte) (*Table, error) {
	var t Table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, pkgerrors.SerializationFailed(compatibilityService, "yaml", "Table", err)
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

// Validate checks the table for duplicate features and inverted lifecycles
func (t *Table) Validate() error {
	seen := map[Feature]bool{}
	for _, f := range t.Features {
		if f.Name == "" {
			return pkgerrors.RequiredField(compatibilityService, "name", "FeatureSpec")
		}
		if seen[f.Name] {
			return pkgerrors.BusinessRule(compatibilityService, "feature "+string(f.Name)+" is declared twice")
		}
		seen[f.Name] = true
		if f.DeprecatedSince != nil && f.RemovedIn != nil && f.RemovedIn.Compare(*f.DeprecatedSince) < 0 {
			return pkgerrors.BusinessRule(compatibilityService, "feature "+string(f.Name)+" is removed before it is deprecated")
		}
	}
	for _, r := range t.Records {
		if r.Reason == "" {
			return pkgerrors.RequiredField(compatibilityService, "reason", "Record")
		}
	}
	return nil
}

// Marshal renders the table as YAML
func (t *Table) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(t)
	if err != nil {
		return nil, pkgerrors.SerializationFailed(compatibilityService, "yaml", "Table", err)
	}
	return data, nil
}

func (t *Table) clone() *Table {
	out := &Table{
		Features: make([]FeatureSpec, len(t.Features)),
		Records:  make([]Record, len(t.Records)),
	}
	copy(out.Features, t.Features)
	copy(out.Records, t.Records)
	return out
}

// DefaultTable is the platform's built-in matrix: the 2.x API is stable,
// 3.x is in preview, and the 1.x API is deprecated since 2.0.0 and removed
// in 3.0.0
func DefaultTable() *Table {
	v2 := MustParseVersion("2.0.0")
	v3 := MustParseVersion("3.0.0")
	return &Table{
		Features: []FeatureSpec{
			{Name: FeatureV2API, Description: "stable v2 API"},
			{Name: FeatureV3Preview, Description: "v3 preview API"},
			{Name: FeatureDeprecatedV1, Description: "legacy v1 API", DeprecatedSince: &v2, RemovedIn: &v3},
			{Name: FeatureEnhancedErrors, Description: "structured error context"},
			{Name: FeaturePerformanceOpts, Description: "performance optimisations"},
			{Name: FeatureExperimental, Description: "unstable experimental features"},
		},
		Records: []Record{
			{
				Features:   NewFeatureSet(FeatureV2API),
				Range:      MustParseRange(">=2.0.0, <3.0.0"),
				Compatible: true,
				Reason:     "v2 API is stable across 2.x",
			},
			{
				Features:   NewFeatureSet(FeatureV3Preview),
				Range:      MustParseRange("<3.0.0-0"),
				Compatible: false,
				Reason:     "v3 preview features need a 3.x producer",
			},
			{
				Features:   NewFeatureSet(FeatureV3Preview),
				Range:      MustParseRange(">=3.0.0-0, <4.0.0-0"),
				Compatible: true,
				Reason:     "v3 preview API is unstable; expect breaking changes",
			},
			{
				Features:   NewFeatureSet(FeatureDeprecatedV1),
				Range:      MustParseRange(">=1.0.0, <2.0.0"),
				Compatible: true,
				Reason:     "legacy v1 API",
			},
		},
	}
}
