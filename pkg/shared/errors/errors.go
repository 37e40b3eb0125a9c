// Package errors provides a generic operation-wrap error shape for code
// that doesn't need the full internal/errors taxonomy (in this module, the
// cmd/matchengine startup wiring) but still wants consistent, greppable
// error text.
package errors

import "fmt"

// OperationError describes a failed operation with optional component and
// resource context.
type OperationError struct {
	Operation string
	Component string
	Resource  string
	Cause     error
}

func (e *OperationError) Error() string {
	switch {
	case e.Component != "" && e.Resource != "" && e.Cause != nil:
		return fmt.Sprintf("failed to %s, component: %s, resource: %s, cause: %s",
			e.Operation, e.Component, e.Resource, e.Cause)
	case e.Component == "" && e.Resource == "" && e.Cause != nil:
		return fmt.Sprintf("failed to %s, cause: %s", e.Operation, e.Cause)
	case e.Component != "" && e.Cause == nil:
		return fmt.Sprintf("failed to %s, component: %s", e.Operation, e.Component)
	case e.Component != "" && e.Cause != nil:
		return fmt.Sprintf("failed to %s, component: %s, cause: %s", e.Operation, e.Component, e.Cause)
	default:
		return fmt.Sprintf("failed to %s", e.Operation)
	}
}

func (e *OperationError) Unwrap() error { return e.Cause }

// FailedTo builds the common "failed to <action>[: cause]" error.
func FailedTo(action string, cause error) error {
	if cause == nil {
		return &OperationError{Operation: action}
	}
	return fmt.Errorf("failed to %s: %w", action, cause)
}

// FailedToWithDetails builds an OperationError carrying component/resource
// context in addition to the action and cause.
func FailedToWithDetails(operation, component, resource string, cause error) error {
	return &OperationError{Operation: operation, Component: component, Resource: resource, Cause: cause}
}

// Wrapf prefixes err with a formatted message, returning nil when err is nil.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

func DatabaseError(operation string, cause error) error {
	return FailedToWithDetails(operation, "database", "", cause)
}

func NetworkError(operation, endpoint string, cause error) error {
	return FailedToWithDetails(operation, "network", endpoint, cause)
}

func ValidationError(field, message string) error {
	return fmt.Errorf("validation failed for field %s: %s", field, message)
}

func ConfigurationError(setting, message string) error {
	return fmt.Errorf("configuration error for setting %s: %s", setting, message)
}

func TimeoutError(operation, duration string) error {
	return fmt.Errorf("timeout while %s after %s", operation, duration)
}

func AuthenticationError(message string) error {
	return fmt.Errorf("authentication failed: %s", message)
}

func AuthorizationError(action, resource string) error {
	return fmt.Errorf("authorization failed: insufficient permissions to %s %s", action, resource)
}

func ParseError(what, format string, cause error) error {
	return fmt.Errorf("failed to parse %s as %s: %w", what, format, cause)
}

// retryableSubstrings lists the free-text fragments treated as transient;
// anything else classifies as permanent.
var retryableSubstrings = []string{
	"timeout",
	"connection refused",
	"service unavailable",
}

// IsRetryable does a best-effort substring classification of a raw error's
// text. It exists for call sites that receive a plain error from a library
// that doesn't implement its own retryable marker; internal/errors.AppError
// users should prefer classifying by Kind instead.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, s := range retryableSubstrings {
		if containsFold(msg, s) {
			return true
		}
	}
	return false
}

func containsFold(haystack, needle string) bool {
	hl, nl := len(haystack), len(needle)
	if nl == 0 || nl > hl {
		return nl == 0
	}
	lowerHaystack := toLower(haystack)
	lowerNeedle := toLower(needle)
	for i := 0; i+nl <= hl; i++ {
		if lowerHaystack[i:i+nl] == lowerNeedle {
			return true
		}
	}
	return false
}

func toLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

// Chain joins multiple errors (filtering nils) with a "multiple errors: "
// prefix and "; "-separated messages. Note this uses a different join
// format from internal/errors.Chain's " -> " separator; the two packages
// serve different call sites and were never meant to share one format.
func Chain(errs ...error) error {
	var nonNil []error
	for _, e := range errs {
		if e != nil {
			nonNil = append(nonNil, e)
		}
	}
	switch len(nonNil) {
	case 0:
		return nil
	case 1:
		return nonNil[0]
	}
	msg := "multiple errors: "
	for i, e := range nonNil {
		if i > 0 {
			msg += "; "
		}
		msg += e.Error()
	}
	return fmt.Errorf("%s", msg)
}
