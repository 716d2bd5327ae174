package errors

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"
)

// Kind is the failure domain of an error. The set is closed: every error
// produced by this module belongs to exactly one of the kinds below.
type Kind string

const (
	KindDatabase   Kind = "DATABASE"
	KindValidation Kind = "VALIDATION"
	KindNetwork    Kind = "NETWORK"
	KindProcessing Kind = "PROCESSING"
	KindService    Kind = "SERVICE"
	KindIdentifier Kind = "IDENTIFIER"
	KindHierarchy  Kind = "HIERARCHY"
)

// Kinds returns every error kind in declaration order.
func Kinds() []Kind {
	return []Kind{
		KindDatabase,
		KindValidation,
		KindNetwork,
		KindProcessing,
		KindService,
		KindIdentifier,
		KindHierarchy,
	}
}

// Valid reports whether k is one of the declared kinds
func (k Kind) Valid() bool {
	switch k {
	case KindDatabase, KindValidation, KindNetwork, KindProcessing,
		KindService, KindIdentifier, KindHierarchy:
		return true
	default:
		return false
	}
}

// Category returns the lowercase category name used in logs and metrics
func (k Kind) Category() string {
	return strings.ToLower(string(k))
}

// ParseKind converts a wire value into a Kind, rejecting unknown values
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToUpper(strings.TrimSpace(s)))
	if !k.Valid() {
		return "", fmt.Errorf("unknown error kind %q", s)
	}
	return k, nil
}

// Severity classifies the response an error requires
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityError    Severity = "ERROR"
	SeverityWarning  Severity = "WARNING"
	SeverityInfo     Severity = "INFO"
)

// Valid reports whether s is a declared severity
func (s Severity) Valid() bool {
	return s.rank() > 0
}

// AtLeast reports whether s is as severe as other or more
func (s Severity) AtLeast(other Severity) bool {
	return s.rank() >= other.rank()
}

func (s Severity) rank() int {
	switch s {
	case SeverityInfo:
		return 1
	case SeverityWarning:
		return 2
	case SeverityError:
		return 3
	case SeverityCritical:
		return 4
	default:
		return 0
	}
}

// ParseSeverity converts a wire value into a Severity
func ParseSeverity(s string) (Severity, error) {
	sev := Severity(strings.ToUpper(strings.TrimSpace(s)))
	if sev == "WARN" {
		sev = SeverityWarning
	}
	if !sev.Valid() {
		return "", fmt.Errorf("unknown severity %q", s)
	}
	return sev, nil
}

// Error is the structured error carried across every service boundary.
// It records which service raised it and keeps the full cause chain.
type Error struct {
	Kind       Kind
	Code       string
	Service    string
	Message    string
	Severity   Severity
	Details    map[string]interface{}
	Retryable  bool
	RetryAfter time.Duration
	Cause      error
	StackTrace string
}

// New creates an error of the given kind. The severity defaults to the
// policy for the kind and code.
func New(kind Kind, code, service, message string) *Error {
	return &Error{
		Kind:       kind,
		Code:       code,
		Service:    service,
		Message:    message,
		Severity:   defaultSeverity(kind, code),
		Details:    map[string]interface{}{},
		StackTrace: captureStackTrace(),
	}
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s:%s] ", e.Kind, e.Code)
	if e.Service != "" {
		b.WriteString(e.Service)
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches on kind and code. A target without a code matches any error of
// the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if e.Kind != t.Kind {
		return false
	}
	return t.Code == "" || e.Code == t.Code
}

// clone returns a shallow copy with its own details map so the With*
// builders never mutate shared sentinels.
func (e *Error) clone() *Error {
	c := *e
	c.Details = make(map[string]interface{}, len(e.Details))
	for k, v := range e.Details {
		c.Details[k] = v
	}
	return &c
}

// WithCause returns a copy of e caused by err
func (e *Error) WithCause(err error) *Error {
	c := e.clone()
	c.Cause = err
	return c
}

// WithDetail returns a copy of e with one extra detail
func (e *Error) WithDetail(key string, value interface{}) *Error {
	c := e.clone()
	c.Details[key] = value
	return c
}

// WithDetails returns a copy of e with the given details merged in
func (e *Error) WithDetails(details map[string]interface{}) *Error {
	c := e.clone()
	for k, v := range details {
		c.Details[k] = v
	}
	return c
}

// WithSeverity returns a copy of e with an explicit severity
func (e *Error) WithSeverity(severity Severity) *Error {
	c := e.clone()
	c.Severity = severity
	return c
}

// WithRetry returns a copy of e marked retryable after the given delay
func (e *Error) WithRetry(after time.Duration) *Error {
	c := e.clone()
	c.Retryable = true
	c.RetryAfter = after
	return c
}

// WithService returns a copy of e attributed to another service
func (e *Error) WithService(service string) *Error {
	c := e.clone()
	c.Service = service
	return c
}

// captureStackTrace captures the current stack trace
func captureStackTrace() string {
	const depth = 32
	var pcs [depth]uintptr
	n := runtime.Callers(3, pcs[:])
	frames := runtime.CallersFrames(pcs[:n])

	var b strings.Builder
	for {
		frame, more := frames.Next()
		fmt.Fprintf(&b, "%s:%d %s\n", frame.File, frame.Line, frame.Function)
		if !more {
			break
		}
	}
	return b.String()
}

// Helper functions

// As extracts the outermost *Error from an error chain
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// Chain returns every *Error in the chain, outermost first. Foreign errors
// in between are skipped but not lost: they stay reachable via Unwrap.
// Joined errors are walked depth-first in order.
func Chain(err error) []*Error {
	var chain []*Error
	var walk func(err error)
	walk = func(err error) {
		for err != nil {
			if e, ok := err.(*Error); ok {
				chain = append(chain, e)
			}
			causes := unwrapAll(err)
			if len(causes) != 1 {
				for _, c := range causes {
					walk(c)
				}
				return
			}
			err = causes[0]
		}
	}
	walk(err)
	return chain
}

// Root returns the innermost error of the chain. Joined errors are followed
// through their first member.
func Root(err error) error {
	for err != nil {
		causes := unwrapAll(err)
		if len(causes) == 0 {
			return err
		}
		err = causes[0]
	}
	return nil
}

// unwrapAll returns the direct causes of err, covering both single and
// multi-error wrappers such as errors.Join
func unwrapAll(err error) []error {
	switch u := err.(type) {
	case interface{ Unwrap() []error }:
		var out []error
		for _, c := range u.Unwrap() {
			if c != nil {
				out = append(out, c)
			}
		}
		return out
	case interface{ Unwrap() error }:
		if c := u.Unwrap(); c != nil {
			return []error{c}
		}
	}
	return nil
}

// KindOf returns the kind of the outermost *Error, or "" for foreign errors
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return ""
}

// IsKind checks if an error chain contains an error of the given kind
func IsKind(err error, kind Kind) bool {
	return errors.Is(err, &Error{Kind: kind})
}

// SeverityOf returns the severity of the outermost *Error. Foreign errors
// count as SeverityError.
func SeverityOf(err error) Severity {
	if e, ok := As(err); ok && e.Severity.Valid() {
		return e.Severity
	}
	return SeverityError
}

// Attribution returns the service that last handled the error
func Attribution(err error) string {
	if e, ok := As(err); ok {
		return e.Service
	}
	return ""
}

// Origin returns the service that first raised the error
func Origin(err error) string {
	chain := Chain(err)
	for i := len(chain) - 1; i >= 0; i-- {
		if chain[i].Service != "" {
			return chain[i].Service
		}
	}
	return ""
}

// IsRetryable reports whether the caller may retry. Critical errors are
// never reported as retryable; retry policy belongs to the calling service.
func IsRetryable(err error) bool {
	e, ok := As(err)
	if !ok {
		return false
	}
	if e.Severity == SeverityCritical {
		return false
	}
	return e.Retryable
}

// RetryAfterOf returns the suggested delay before a retry, if any
func RetryAfterOf(err error) (time.Duration, bool) {
	for _, e := range Chain(err) {
		if e.RetryAfter > 0 {
			return e.RetryAfter, true
		}
	}
	return 0, false
}

// Wrap attributes err to service with an extra message. The original error
// becomes the cause; kind, code and severity are inherited from the nearest
// *Error in the chain, or default to a SERVICE error for foreign causes.
func Wrap(err error, service, message string) error {
	if err == nil {
		return nil
	}
	if inner, ok := As(err); ok {
		return &Error{
			Kind:       inner.Kind,
			Code:       inner.Code,
			Service:    service,
			Message:    message,
			Severity:   inner.Severity,
			Details:    map[string]interface{}{},
			Retryable:  inner.Retryable,
			RetryAfter: inner.RetryAfter,
			Cause:      err,
			StackTrace: captureStackTrace(),
		}
	}
	return New(KindService, CodeInternal, service, message).WithCause(err)
}

// Wrapf wraps an error with formatted message
func Wrapf(err error, service, format string, args ...interface{}) error {
	return Wrap(err, service, fmt.Sprintf(format, args...))
}

// WrapAs wraps err under an explicit kind and code
func WrapAs(err error, kind Kind, code, service, message string) error {
	if err == nil {
		return nil
	}
	return New(kind, code, service, message).WithCause(err)
}
