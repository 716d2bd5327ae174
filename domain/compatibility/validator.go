package compatibility

import (
	"fmt"
	"strings"

	pkgerrors "nodespace-core/pkg/errors"
)

// ReasonCode classifies the outcome of a compatibility check
type ReasonCode string

const (
	ReasonCompatible         ReasonCode = "COMPATIBLE"
	ReasonMajorMismatch      ReasonCode = "MAJOR_MISMATCH"
	ReasonMissingFeatures    ReasonCode = "MISSING_FEATURES"
	ReasonDeprecatedRequired ReasonCode = "DEPRECATED_REQUIRED"
	ReasonTableRule          ReasonCode = "TABLE_RULE"
)

// Reason explains a compatibility decision
type Reason struct {
	Compatible         bool                 `json:"compatible"`
	Code               ReasonCode           `json:"code"`
	Message            string               `json:"message"`
	Producer           string               `json:"producer"`
	Consumer           string               `json:"consumer"`
	MissingFeatures    []string             `json:"missing_features,omitempty"`
	DeprecatedFeatures []string             `json:"deprecated_features,omitempty"`
	Advisories         []pkgerrors.Advisory `json:"advisories,omitempty"`
}

// FeatureStatus is the lifecycle state of a feature at a version
type FeatureStatus struct {
	Spec       FeatureSpec
	Deprecated bool
	Removed    bool
	Severity   pkgerrors.Severity
}

// Validator decides whether two parties can interoperate. It is read-only
// after construction and safe for concurrent use without locking.
type Validator struct {
	table    *Table
	features map[Feature]FeatureSpec
}

// NewValidator creates a validator over a copy of table, or over
// DefaultTable when table is nil
func NewValidator(table *Table) (*Validator, error) {
	if table == nil {
		table = DefaultTable()
	}
	if err := table.Validate(); err != nil {
		return nil, err
	}
	t := table.clone()
	features := make(map[Feature]FeatureSpec, len(t.Features))
	for _, f := range t.Features {
		features[f.Name] = f
	}
	return &Validator{table: t, features: features}, nil
}

// IsCompatible checks a producer against a consumer that requires
// consumerFeatures
func (v *Validator) IsCompatible(producerVersion Version, producerFeatures FeatureSet, consumerVersion Version, consumerFeatures FeatureSet) bool {
	return v.Explain(
		Profile{Version: producerVersion, Enabled: producerFeatures},
		Profile{Version: consumerVersion, Required: consumerFeatures},
	).Compatible
}

// Compatible reports whether the pairing is safe
func (v *Validator) Compatible(producer, consumer Profile) bool {
	return v.Explain(producer, consumer).Compatible
}

// Explain decides a pairing and says why. Rules apply in order: major
// versions must match, every required feature must be enabled by the
// producer and not deprecated by it, and no matching table record may
// forbid the pairing.
func (v *Validator) Explain(producer, consumer Profile) Reason {
	r := Reason{
		Producer: producer.Version.String(),
		Consumer: consumer.Version.String(),
	}

	if producer.Version.IsZero() || consumer.Version.IsZero() || producer.Version.Major() != consumer.Version.Major() {
		r.Code = ReasonMajorMismatch
		r.Message = fmt.Sprintf("producer %s and consumer %s differ in major version", orNone(r.Producer), orNone(r.Consumer))
		return r
	}

	available := producer.Enabled
	var removed []Feature
	for _, f := range producer.Enabled.Features() {
		if spec, ok := v.features[f]; ok && spec.RemovedAt(producer.Version) {
			removed = append(removed, f)
		}
	}
	if len(removed) > 0 {
		available = available.Difference(NewFeatureSet(removed...))
	}

	if missing := consumer.Required.Difference(available); missing.Len() > 0 {
		r.Code = ReasonMissingFeatures
		r.MissingFeatures = missing.Names()
		r.Message = "producer does not enable required features: " + strings.Join(r.MissingFeatures, ", ")
		return r
	}

	var deprecatedRequired []string
	for _, f := range consumer.Required.Features() {
		if v.deprecatedBy(producer, f) {
			deprecatedRequired = append(deprecatedRequired, string(f))
		}
	}
	if len(deprecatedRequired) > 0 {
		r.Code = ReasonDeprecatedRequired
		r.DeprecatedFeatures = deprecatedRequired
		r.Message = "required features are deprecated by the producer: " + strings.Join(deprecatedRequired, ", ")
		return r
	}

	wanted := consumer.Required.Union(consumer.Enabled)
	var notes []pkgerrors.Advisory
	for _, rec := range v.table.Records {
		if !rec.Range.Contains(producer.Version) || !rec.Features.IsSubsetOf(wanted) {
			continue
		}
		if !rec.Compatible {
			r.Code = ReasonTableRule
			r.Message = rec.Reason
			return r
		}
		notes = append(notes, pkgerrors.NewInfo(compatibilityService, string(ReasonTableRule), rec.Reason))
	}

	r.Compatible = true
	r.Code = ReasonCompatible
	r.Message = fmt.Sprintf("producer %s is compatible with consumer %s", r.Producer, r.Consumer)

	// deprecated features stay usable but are flagged
	for _, f := range consumer.Enabled.Difference(consumer.Required).Features() {
		if v.deprecatedBy(producer, f) {
			r.DeprecatedFeatures = append(r.DeprecatedFeatures, string(f))
			r.Advisories = append(r.Advisories, pkgerrors.NewWarning(compatibilityService, "DEPRECATED_FEATURE",
				fmt.Sprintf("consumer enables %s, deprecated by producer %s", f, r.Producer)))
		}
	}
	for _, f := range producer.Enabled.Features() {
		if spec, ok := v.features[f]; ok && spec.DeprecatedAt(producer.Version) && !wanted.Has(f) {
			r.Advisories = append(r.Advisories, pkgerrors.NewWarning(compatibilityService, "DEPRECATED_FEATURE",
				fmt.Sprintf("producer enables %s, deprecated since %s", f, spec.DeprecatedSince)))
		}
	}
	r.Advisories = append(r.Advisories, notes...)
	return r
}

// Check is Explain in Result form: an incompatible pairing is a
// VERSION_MISMATCH error, and deprecation warnings ride on the success
func (v *Validator) Check(producer, consumer Profile) pkgerrors.Result[Reason] {
	r := v.Explain(producer, consumer)
	if !r.Compatible {
		service := consumer.Service
		if service == "" {
			service = compatibilityService
		}
		err := pkgerrors.VersionMismatch(service, orNone(r.Consumer), orNone(r.Producer)).
			WithDetail("reason_code", string(r.Code)).
			WithDetail("reason", r.Message)
		if producer.Service != "" {
			err = err.WithDetail("producer_service", producer.Service)
		}
		if len(r.MissingFeatures) > 0 {
			err = err.WithDetail("missing_features", r.MissingFeatures)
		}
		return pkgerrors.Fail[Reason](err)
	}
	return pkgerrors.Ok(r, r.Advisories...)
}

// Feature reports the lifecycle of a known feature at version at
func (v *Validator) Feature(name Feature, at Version) (FeatureStatus, bool) {
	spec, ok := v.features[name]
	if !ok {
		return FeatureStatus{}, false
	}
	status := FeatureStatus{Spec: spec, Severity: pkgerrors.SeverityInfo}
	switch {
	case spec.RemovedAt(at):
		status.Removed = true
		status.Deprecated = true
		status.Severity = pkgerrors.SeverityError
	case spec.DeprecatedAt(at):
		status.Deprecated = true
		status.Severity = pkgerrors.SeverityWarning
	}
	return status, true
}

// Features returns the known feature specs
func (v *Validator) Features() []FeatureSpec {
	out := make([]FeatureSpec, len(v.table.Features))
	copy(out, v.table.Features)
	return out
}

func (v *Validator) deprecatedBy(producer Profile, f Feature) bool {
	if producer.Deprecated.Has(f) {
		return true
	}
	spec, ok := v.features[f]
	return ok && spec.DeprecatedAt(producer.Version)
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
