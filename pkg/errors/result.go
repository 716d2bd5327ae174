package errors

import (
	"encoding/json"
)

// Advisory is a non-fatal condition reported alongside a successful value,
// such as the use of a deprecated feature.
type Advisory struct {
	Severity Severity `json:"severity"`
	Code     string   `json:"code"`
	Message  string   `json:"message"`
	Service  string   `json:"service,omitempty"`
}

// NewWarning creates a WARNING advisory
func NewWarning(service, code, message string) Advisory {
	return Advisory{Severity: SeverityWarning, Code: code, Message: message, Service: service}
}

// NewInfo creates an INFO advisory
func NewInfo(service, code, message string) Advisory {
	return Advisory{Severity: SeverityInfo, Code: code, Message: message, Service: service}
}

// Result is either a fully computed value, possibly with advisories, or an
// error. It never holds both.
type Result[T any] struct {
	value      T
	err        error
	advisories []Advisory
}

// Ok creates a successful result
func Ok[T any](value T, advisories ...Advisory) Result[T] {
	r := Result[T]{value: value}
	if len(advisories) > 0 {
		r.advisories = append([]Advisory(nil), advisories...)
	}
	return r
}

// Fail creates a failed result. A nil error is itself reported as an
// internal failure so a failed Result always explains why.
func Fail[T any](err error) Result[T] {
	if err == nil {
		err = New(KindService, CodeInternal, "", "failure reported without a cause")
	}
	return Result[T]{err: err}
}

// Collect adapts a (value, error) pair
func Collect[T any](value T, err error, advisories ...Advisory) Result[T] {
	if err != nil {
		return Fail[T](err)
	}
	return Ok(value, advisories...)
}

// Get returns the value and error in Go's usual order
func (r Result[T]) Get() (T, error) {
	return r.value, r.err
}

// IsOk reports whether the computation completed
func (r Result[T]) IsOk() bool {
	return r.err == nil
}

// Err returns the failure, if any
func (r Result[T]) Err() error {
	return r.err
}

// Value returns the value, or the zero value on failure
func (r Result[T]) Value() T {
	return r.value
}

// Advisories returns a copy of the advisories
func (r Result[T]) Advisories() []Advisory {
	if len(r.advisories) == 0 {
		return nil
	}
	return append([]Advisory(nil), r.advisories...)
}

// HasWarnings reports whether any advisory is WARNING or worse
func (r Result[T]) HasWarnings() bool {
	for _, a := range r.advisories {
		if a.Severity.AtLeast(SeverityWarning) {
			return true
		}
	}
	return false
}

type wireResult[T any] struct {
	OK         bool            `json:"ok"`
	Value      *T              `json:"value,omitempty"`
	Error      json.RawMessage `json:"error,omitempty"`
	Advisories []Advisory      `json:"advisories,omitempty"`
}

// MarshalJSON implements json.Marshaler
func (r Result[T]) MarshalJSON() ([]byte, error) {
	w := wireResult[T]{OK: r.IsOk()}
	if r.IsOk() {
		v := r.value
		w.Value = &v
		w.Advisories = r.advisories
	} else {
		raw, err := Encode(r.err)
		if err != nil {
			return nil, err
		}
		w.Error = raw
	}
	return json.Marshal(w)
}

// UnmarshalJSON implements json.Unmarshaler
func (r *Result[T]) UnmarshalJSON(data []byte) error {
	var w wireResult[T]
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if w.OK {
		var v T
		if w.Value != nil {
			v = *w.Value
		}
		*r = Ok(v, w.Advisories...)
		return nil
	}
	var decoded error
	if len(w.Error) > 0 {
		var err error
		if decoded, err = Decode(w.Error); err != nil {
			return err
		}
	}
	*r = Fail[T](decoded)
	return nil
}
