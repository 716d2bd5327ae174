package compatibility

import (
	"github.com/Masterminds/semver/v3"
	"gopkg.in/yaml.v3"

	pkgerrors "nodespace-core/pkg/errors"
)

const compatibilityService = "compatibility"

// Version is a semantic version. Short forms such as "2.1" and a leading
// "v" are accepted on parse.
type Version struct {
	v *semver.Version
}

// ParseVersion parses a semantic version
func ParseVersion(s string) (Version, error) {
	v, err := semver.NewVersion(s)
	if err != nil {
		return Version{}, pkgerrors.InvalidFormat(compatibilityService, "version", "semantic version", s).WithCause(err)
	}
	return Version{v: v}, nil
}

// MustParseVersion parses a version and panics on failure
func MustParseVersion(s string) Version {
	v, err := ParseVersion(s)
	if err != nil {
		panic(err)
	}
	return v
}

// IsZero reports whether the version is unset
func (v Version) IsZero() bool {
	return v.v == nil
}

// Major returns the major component
func (v Version) Major() uint64 {
	if v.v == nil {
		return 0
	}
	return v.v.Major()
}

// Minor returns the minor component
func (v Version) Minor() uint64 {
	if v.v == nil {
		return 0
	}
	return v.v.Minor()
}

// Patch returns the patch component
func (v Version) Patch() uint64 {
	if v.v == nil {
		return 0
	}
	return v.v.Patch()
}

// Prerelease returns the prerelease label, e.g. "preview"
func (v Version) Prerelease() string {
	if v.v == nil {
		return ""
	}
	return v.v.Prerelease()
}

// Compare returns -1, 0 or 1. The zero version sorts first.
func (v Version) Compare(other Version) int {
	switch {
	case v.v == nil && other.v == nil:
		return 0
	case v.v == nil:
		return -1
	case other.v == nil:
		return 1
	}
	return v.v.Compare(other.v)
}

// String returns the normalised form, e.g. "2.1.0"
func (v Version) String() string {
	if v.v == nil {
		return ""
	}
	return v.v.String()
}

// MarshalText implements encoding.TextMarshaler
func (v Version) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (v *Version) UnmarshalText(text []byte) error {
	parsed, err := ParseVersion(string(text))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// MarshalYAML implements yaml.Marshaler
func (v Version) MarshalYAML() (interface{}, error) {
	return v.String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler. Unquoted "2.0" arrives as a
// float scalar, so the raw node value is used.
func (v *Version) UnmarshalYAML(node *yaml.Node) error {
	return v.UnmarshalText([]byte(node.Value))
}

// Range is a set of versions, written as a semver constraint such as
// ">=2.0.0, <3.0.0" or "2.x". Prereleases only match ranges that mention one.
type Range struct {
	raw string
	c   *semver.Constraints
}

// ParseRange parses a version range
func ParseRange(s string) (Range, error) {
	c, err := semver.NewConstraint(s)
	if err != nil {
		return Range{}, pkgerrors.InvalidFormat(compatibilityService, "range", "semver constraint", s).WithCause(err)
	}
	return Range{raw: s, c: c}, nil
}

// MustParseRange parses a range and panics on failure
func MustParseRange(s string) Range {
	r, err := ParseRange(s)
	if err != nil {
		panic(err)
	}
	return r
}

// Contains reports whether v lies in the range. An unset range contains
// every version.
func (r Range) Contains(v Version) bool {
	if r.c == nil {
		return true
	}
	if v.v == nil {
		return false
	}
	return r.c.Check(v.v)
}

// String returns the range as written
func (r Range) String() string {
	return r.raw
}

// MarshalText implements encoding.TextMarshaler
func (r Range) MarshalText() ([]byte, error) {
	return []byte(r.raw), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (r *Range) UnmarshalText(text []byte) error {
	parsed, err := ParseRange(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// MarshalYAML implements yaml.Marshaler
func (r Range) MarshalYAML() (interface{}, error) {
	return r.raw, nil
}

// UnmarshalYAML implements yaml.Unmarshaler
func (r *Range) UnmarshalYAML(node *yaml.Node) error {
	return r.UnmarshalText([]byte(node.Value))
}
