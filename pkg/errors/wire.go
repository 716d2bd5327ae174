package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// wireError is the field-named JSON form of an Error. Causes nest, so a
// decoded chain has the same shape as the encoded one.
type wireError struct {
	Kind         string                 `json:"kind,omitempty"`
	Code         string                 `json:"code,omitempty"`
	Service      string                 `json:"service,omitempty"`
	Message      string                 `json:"message"`
	Severity     string                 `json:"severity,omitempty"`
	Details      map[string]interface{} `json:"details,omitempty"`
	Retryable    bool                   `json:"retryable,omitempty"`
	RetryAfterMs int64                  `json:"retry_after_ms,omitempty"`
	Cause        *wireError             `json:"cause,omitempty"`
	Causes       []*wireError           `json:"causes,omitempty"`
}

// MarshalJSON implements json.Marshaler
func (e *Error) MarshalJSON() ([]byte, error) {
	return json.Marshal(toWire(e))
}

// UnmarshalJSON implements json.Unmarshaler
func (e *Error) UnmarshalJSON(data []byte) error {
	var w wireError
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	decoded, err := fromWire(&w)
	if err != nil {
		return err
	}
	structured, ok := decoded.(*Error)
	if !ok {
		return fmt.Errorf("error payload has no kind")
	}
	*e = *structured
	return nil
}

// Encode renders any error, structured or not, to its wire form
func Encode(err error) ([]byte, error) {
	if err == nil {
		return []byte("null"), nil
	}
	return json.Marshal(toWire(err))
}

// Decode parses a wire error. Payloads without a kind decode to a plain
// error holding only the message.
func Decode(data []byte) (error, error) {
	if string(data) == "null" {
		return nil, nil
	}
	var w wireError
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, err
	}
	return fromWire(&w)
}

func toWire(err error) *wireError {
	if err == nil {
		return nil
	}
	e, ok := err.(*Error)
	if !ok {
		// Keep walking so structured errors below a foreign wrapper survive.
		w := &wireError{Message: err.Error()}
		causes := unwrapAll(err)
		if _, joined := err.(interface{ Unwrap() []error }); joined {
			for _, c := range causes {
				w.Causes = append(w.Causes, toWire(c))
			}
		} else if len(causes) == 1 {
			w.Cause = toWire(causes[0])
		}
		return w
	}
	w := &wireError{
		Kind:         string(e.Kind),
		Code:         e.Code,
		Service:      e.Service,
		Message:      e.Message,
		Severity:     string(e.Severity),
		Retryable:    e.Retryable,
		RetryAfterMs: e.RetryAfter.Milliseconds(),
		Cause:        toWire(e.Cause),
	}
	if len(e.Details) > 0 {
		w.Details = e.Details
	}
	return w
}

func fromWire(w *wireError) (error, error) {
	if w == nil {
		return nil, nil
	}
	cause, err := fromWire(w.Cause)
	if err != nil {
		return nil, err
	}
	if w.Kind == "" {
		if len(w.Causes) > 0 {
			joined := &joinedError{message: w.Message}
			for _, c := range w.Causes {
				decoded, err := fromWire(c)
				if err != nil {
					return nil, err
				}
				if decoded != nil {
					joined.causes = append(joined.causes, decoded)
				}
			}
			return joined, nil
		}
		if cause != nil {
			return &foreignError{message: w.Message, cause: cause}, nil
		}
		return errors.New(w.Message), nil
	}
	kind, err := ParseKind(w.Kind)
	if err != nil {
		return nil, err
	}
	severity := defaultSeverity(kind, w.Code)
	if w.Severity != "" {
		if severity, err = ParseSeverity(w.Severity); err != nil {
			return nil, err
		}
	}
	details := w.Details
	if details == nil {
		details = map[string]interface{}{}
	}
	return &Error{
		Kind:       kind,
		Code:       w.Code,
		Service:    w.Service,
		Message:    w.Message,
		Severity:   severity,
		Details:    details,
		Retryable:  w.Retryable,
		RetryAfter: time.Duration(w.RetryAfterMs) * time.Millisecond,
		Cause:      cause,
	}, nil
}

// foreignError stands in for a decoded non-structured error that wrapped
// something else
type foreignError struct {
	message string
	cause   error
}

func (f *foreignError) Error() string { return f.message }
func (f *foreignError) Unwrap() error { return f.cause }

// joinedError stands in for a decoded multi-error such as errors.Join
type joinedError struct {
	message string
	causes  []error
}

func (j *joinedError) Error() string   { return j.message }
func (j *joinedError) Unwrap() []error { return j.causes }
