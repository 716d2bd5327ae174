package errors

import (
	"fmt"
	"strings"
	"time"
)

// Error codes, grouped by kind
const (
	// Database
	CodeConnectionFailed    = "CONNECTION_FAILED"
	CodeQueryTimeout        = "QUERY_TIMEOUT"
	CodeNotFound            = "NOT_FOUND"
	CodeConstraintViolation = "CONSTRAINT_VIOLATION"
	CodeTransactionFailed   = "TRANSACTION_FAILED"

	// Validation
	CodeRequiredField   = "REQUIRED_FIELD"
	CodeInvalidFormat   = "INVALID_FORMAT"
	CodeOutOfRange      = "OUT_OF_RANGE"
	CodeSchemaViolation = "SCHEMA_VIOLATION"
	CodeBusinessRule    = "BUSINESS_RULE"

	// Network
	CodeConnectionTimeout = "CONNECTION_TIMEOUT"
	CodeHTTPError         = "HTTP_ERROR"
	CodeRateLimited       = "RATE_LIMITED"

	// Processing
	CodeModelError          = "MODEL_ERROR"
	CodeEmbeddingFailed     = "EMBEDDING_FAILED"
	CodeSerializationFailed = "SERIALIZATION_FAILED"

	// Service
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	CodeVersionMismatch    = "VERSION_MISMATCH"
	CodeConfiguration      = "CONFIGURATION_ERROR"
	CodeInternal           = "INTERNAL"

	// Identifier
	CodeInvalidIdentifier   = "INVALID_IDENTIFIER"
	CodeIdentifierCollision = "IDENTIFIER_COLLISION"

	// Hierarchy
	CodeCycle              = "CYCLE"
	CodeMissingTier        = "MISSING_TIER"
	CodeAncestryUnresolved = "ANCESTRY_UNRESOLVED"
	CodeRootMismatch       = "ROOT_MISMATCH"
	CodeUnknownNode        = "UNKNOWN_NODE"
)

// defaultSeverity is the severity policy applied by New
func defaultSeverity(kind Kind, code string) Severity {
	switch {
	case kind == KindDatabase && code == CodeConnectionFailed:
		return SeverityCritical
	case kind == KindService && code == CodeServiceUnavailable:
		return SeverityCritical
	case kind == KindIdentifier && code == CodeIdentifierCollision:
		return SeverityCritical
	case kind == KindDatabase && code == CodeQueryTimeout:
		return SeverityWarning
	case kind == KindNetwork && (code == CodeConnectionTimeout || code == CodeRateLimited):
		return SeverityWarning
	default:
		return SeverityError
	}
}

// Sentinels for errors.Is. They carry kind and code only.
var (
	ErrCycle              = &Error{Kind: KindHierarchy, Code: CodeCycle}
	ErrMissingTier        = &Error{Kind: KindHierarchy, Code: CodeMissingTier}
	ErrAncestryUnresolved = &Error{Kind: KindHierarchy, Code: CodeAncestryUnresolved}
	ErrRootMismatch       = &Error{Kind: KindHierarchy, Code: CodeRootMismatch}
	ErrUnknownNode        = &Error{Kind: KindHierarchy, Code: CodeUnknownNode}
	ErrInvalidIdentifier  = &Error{Kind: KindIdentifier, Code: CodeInvalidIdentifier}
	ErrVersionMismatch    = &Error{Kind: KindService, Code: CodeVersionMismatch}
	ErrNotFound           = &Error{Kind: KindDatabase, Code: CodeNotFound}
)

// Database errors

// ConnectionFailed reports a lost or refused data-store connection
func ConnectionFailed(service, database, reason string) *Error {
	return New(KindDatabase, CodeConnectionFailed, service,
		fmt.Sprintf("connection failed to %s: %s", database, reason)).
		WithDetail("database", database).
		WithRetry(5 * time.Second)
}

// QueryTimeout reports a query that exceeded its deadline
func QueryTimeout(service, query string, after time.Duration) *Error {
	return New(KindDatabase, CodeQueryTimeout, service,
		fmt.Sprintf("query timeout after %s", after)).
		WithDetail("query", query).
		WithDetail("suggested_limit", 1000).
		WithRetry(0)
}

// NotFound reports a missing record
func NotFound(service, entityType, id string) *Error {
	return New(KindDatabase, CodeNotFound, service,
		fmt.Sprintf("record not found: %s with id %s", entityType, id)).
		WithDetail("entity_type", entityType).
		WithDetail("id", id)
}

// ConstraintViolation reports a uniqueness or integrity failure
func ConstraintViolation(service, constraint, table string) *Error {
	return New(KindDatabase, CodeConstraintViolation, service,
		fmt.Sprintf("constraint violation: %s on %s", constraint, table)).
		WithDetail("constraint", constraint).
		WithDetail("table", table)
}

// TransactionFailed reports an aborted transaction
func TransactionFailed(service, operation, reason string, canRetry bool) *Error {
	e := New(KindDatabase, CodeTransactionFailed, service,
		fmt.Sprintf("transaction failed: %s: %s", operation, reason)).
		WithDetail("operation", operation)
	if canRetry {
		e = e.WithRetry(0)
	}
	return e
}

// Validation errors

// RequiredField reports a missing field
func RequiredField(service, field, context string) *Error {
	return New(KindValidation, CodeRequiredField, service,
		fmt.Sprintf("required field missing: %s in %s", field, context)).
		WithDetail("field", field).
		WithDetail("suggestion", fmt.Sprintf("provide a value for '%s'", field))
}

// InvalidFormat reports a malformed value
func InvalidFormat(service, field, expected, actual string) *Error {
	return New(KindValidation, CodeInvalidFormat, service,
		fmt.Sprintf("invalid format for %s: expected %s, got %s", field, expected, actual)).
		WithDetail("field", field).
		WithDetail("expected", expected).
		WithDetail("actual", actual)
}

// OutOfRange reports a value outside its allowed bounds
func OutOfRange(service, field, value, min, max string) *Error {
	return New(KindValidation, CodeOutOfRange, service,
		fmt.Sprintf("value out of range for %s: %s not in [%s, %s]", field, value, min, max)).
		WithDetail("field", field).
		WithDetail("value", value).
		WithDetail("min", min).
		WithDetail("max", max)
}

// SchemaViolation reports a payload that does not match its schema
func SchemaViolation(service, schemaPath string, violations []string) *Error {
	return New(KindValidation, CodeSchemaViolation, service,
		fmt.Sprintf("schema validation failed: %s: %s", schemaPath, strings.Join(violations, "; "))).
		WithDetail("schema_path", schemaPath).
		WithDetail("violations", violations)
}

// BusinessRule reports a violated domain rule
func BusinessRule(service, rule string) *Error {
	return New(KindValidation, CodeBusinessRule, service,
		fmt.Sprintf("business rule violation: %s", rule)).
		WithDetail("rule", rule)
}

// Network errors

// ConnectionTimeout reports an endpoint that did not answer in time
func ConnectionTimeout(service, endpoint string, timeout time.Duration) *Error {
	return New(KindNetwork, CodeConnectionTimeout, service,
		fmt.Sprintf("connection timeout to %s after %s", endpoint, timeout)).
		WithDetail("endpoint", endpoint).
		WithDetail("max_retries", 3).
		WithRetry(time.Second)
}

// HTTPError reports a non-success HTTP status from a collaborator
func HTTPError(service string, status int, reason, endpoint string) *Error {
	e := New(KindNetwork, CodeHTTPError, service,
		fmt.Sprintf("HTTP error %d: %s", status, reason)).
		WithDetail("status_code", status).
		WithDetail("endpoint", endpoint)
	if status >= 500 && status <= 599 {
		return e.WithRetry(0)
	}
	return e.WithSeverity(SeverityWarning)
}

// RateLimited reports a throttled request
func RateLimited(service string, limit int, window string) *Error {
	return New(KindNetwork, CodeRateLimited, service,
		fmt.Sprintf("rate limit exceeded: %d requests per %s", limit, window)).
		WithDetail("limit", limit).
		WithDetail("window", window).
		WithRetry(time.Minute)
}

// Processing errors

// ModelError reports an AI/ML model failure
func ModelError(service, modelName, reason string) *Error {
	return New(KindProcessing, CodeModelError, service,
		fmt.Sprintf("AI model error: %s - %s", modelName, reason)).
		WithDetail("model_name", modelName)
}

// EmbeddingFailed reports an embedding that could not be produced or used
func EmbeddingFailed(service, reason, inputType string) *Error {
	return New(KindProcessing, CodeEmbeddingFailed, service,
		fmt.Sprintf("embedding generation failed: %s", reason)).
		WithDetail("input_type", inputType)
}

// SerializationFailed reports an encode/decode failure
func SerializationFailed(service, format, dataType string, cause error) *Error {
	return New(KindProcessing, CodeSerializationFailed, service,
		fmt.Sprintf("serialization failed: %s %s", format, dataType)).
		WithDetail("format", format).
		WithDetail("data_type", dataType).
		WithCause(cause)
}

// Service errors

// ServiceUnavailable reports a collaborator that cannot be reached
func ServiceUnavailable(service, target, endpoint string) *Error {
	return New(KindService, CodeServiceUnavailable, service,
		fmt.Sprintf("service unavailable: %s", target)).
		WithDetail("target", target).
		WithDetail("endpoint", endpoint).
		WithRetry(30 * time.Second)
}

// VersionMismatch reports incompatible peers
func VersionMismatch(service, expected, actual string) *Error {
	return New(KindService, CodeVersionMismatch, service,
		fmt.Sprintf("version mismatch: expected %s, got %s", expected, actual)).
		WithDetail("expected", expected).
		WithDetail("actual", actual)
}

// ConfigurationError reports a bad configuration value
func ConfigurationError(service, key, expected string) *Error {
	return New(KindService, CodeConfiguration, service,
		fmt.Sprintf("configuration error: %s (expected %s)", key, expected)).
		WithDetail("config_key", key).
		WithDetail("expected_type", expected)
}

// Identifier errors

// InvalidIdentifier reports text that is not a canonical identifier
func InvalidIdentifier(service, kind, value, reason string) *Error {
	return New(KindIdentifier, CodeInvalidIdentifier, service,
		fmt.Sprintf("invalid %s identifier %q: %s", kind, value, reason)).
		WithDetail("identifier_kind", kind)
}

// IdentifierCollision reports two entities sharing one identifier
func IdentifierCollision(service, kind, value string) *Error {
	return New(KindIdentifier, CodeIdentifierCollision, service,
		fmt.Sprintf("%s identifier collision: %s", kind, value)).
		WithDetail("identifier_kind", kind).
		WithDetail("identifier", value)
}

// Hierarchy errors

// Cycle reports a reparent that would make a node its own ancestor
func Cycle(service, nodeID, parentID string) *Error {
	return New(KindHierarchy, CodeCycle, service,
		fmt.Sprintf("reparenting %s under %s would create a cycle", nodeID, parentID)).
		WithDetail("node_id", nodeID).
		WithDetail("parent_id", parentID)
}

// MissingTier reports an embedding tier computed before its prerequisite
func MissingTier(service, requested, missing string) *Error {
	return New(KindHierarchy, CodeMissingTier, service,
		fmt.Sprintf("cannot compute %s embedding: %s tier is missing", requested, missing)).
		WithDetail("requested_tier", requested).
		WithDetail("missing_tier", missing)
}

// AncestryUnresolved reports an ancestor that could not be looked up
func AncestryUnresolved(service, nodeID, missingID string) *Error {
	return New(KindHierarchy, CodeAncestryUnresolved, service,
		fmt.Sprintf("ancestry of %s is unresolved: %s not found", nodeID, missingID)).
		WithDetail("node_id", nodeID).
		WithDetail("missing_id", missingID)
}

// RootMismatch reports a cached root that disagrees with the parent chain
func RootMismatch(service, nodeID, cached, actual string) *Error {
	return New(KindHierarchy, CodeRootMismatch, service,
		fmt.Sprintf("node %s caches root %s but its chain ends at %s", nodeID, cached, actual)).
		WithDetail("node_id", nodeID).
		WithDetail("cached_root", cached).
		WithDetail("actual_root", actual)
}

// UnknownNode reports a node id that is not part of the hierarchy
func UnknownNode(service, nodeID string) *Error {
	return New(KindHierarchy, CodeUnknownNode, service,
		fmt.Sprintf("node %s is not part of this hierarchy", nodeID)).
		WithDetail("node_id", nodeID)
}
