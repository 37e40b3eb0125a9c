// Package errors defines the matching engine's error taxonomy: a small set
// of kinds that every component classifies its failures into, so the
// orchestrator can apply a uniform retry/surface/degrade policy without
// inspecting driver-specific error strings at every call site.
package errors

import (
	"errors"
	"fmt"
)

// Kind classifies an AppError into one of the seven policy buckets.
type Kind string

const (
	KindValidation        Kind = "validation"
	KindTransientDB        Kind = "transient_db"
	KindFatalDB            Kind = "fatal_db"
	KindResourceExhausted Kind = "resource_exhausted"
	KindCancelled          Kind = "cancelled"
	KindCache              Kind = "cache"
	KindInternal           Kind = "internal"
)

// downgradeSignal is never surfaced to a caller: the orchestrator recovers
// it internally when the reranker or explainer subcomponent fails, and
// proceeds with the degraded (unreranked or unexplained) result.
type downgradeSignal struct {
	component string
	cause     error
}

func (d *downgradeSignal) Error() string {
	return fmt.Sprintf("degraded: %s: %v", d.component, d.cause)
}

func (d *downgradeSignal) Unwrap() error { return d.cause }

// NewDowngradeSignal builds the sentinel a reranker/explainer soft failure
// returns; callers outside this package and pkg/matchengine/pipeline
// should never need to construct or inspect one directly.
func NewDowngradeSignal(component string, cause error) error {
	return &downgradeSignal{component: component, cause: cause}
}

// IsDowngradeSignal reports whether err (or something it wraps) is a
// downgrade signal, and if so which component raised it.
func IsDowngradeSignal(err error) (component string, ok bool) {
	var d *downgradeSignal
	if errors.As(err, &d) {
		return d.component, true
	}
	return "", false
}

// AppError is the structured error value every component returns.
type AppError struct {
	Kind    Kind
	Message string
	Details string
	Cause   error
}

func New(kind Kind, message string) *AppError {
	return &AppError{Kind: kind, Message: message}
}

func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *AppError) Unwrap() error { return e.Cause }

// WithDetails mutates e in place and returns it, so it can be chained off
// a constructor call.
func (e *AppError) WithDetails(details string) *AppError {
	e.Details = details
	return e
}

func (e *AppError) WithDetailsf(format string, args ...interface{}) *AppError {
	e.Details = fmt.Sprintf(format, args...)
	return e
}

func Wrap(cause error, kind Kind, message string) *AppError {
	return &AppError{Kind: kind, Message: message, Cause: cause}
}

func Wrapf(cause error, kind Kind, format string, args ...interface{}) *AppError {
	return &AppError{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// Predefined constructors, one per policy bucket in spec §7.

func NewValidation(message string) *AppError {
	return New(KindValidation, message)
}

func NewTransientDB(op string, cause error) *AppError {
	return Wrap(cause, KindTransientDB, fmt.Sprintf("transient database failure: %s", op))
}

func NewFatalDB(op string, cause error) *AppError {
	return Wrap(cause, KindFatalDB, fmt.Sprintf("fatal database failure: %s", op))
}

func NewResourceExhausted(resource string) *AppError {
	return New(KindResourceExhausted, fmt.Sprintf("resource exhausted: %s", resource))
}

func NewCancelled(op string) *AppError {
	return New(KindCancelled, fmt.Sprintf("operation cancelled: %s", op))
}

func NewCache(op string, cause error) *AppError {
	return Wrap(cause, KindCache, fmt.Sprintf("cache operation failed: %s", op))
}

// IsKind reports whether err is an *AppError of the given kind.
func IsKind(err error, kind Kind) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind == kind
	}
	return false
}

// GetKind returns err's kind, or KindInternal if err is not an *AppError.
func GetKind(err error) Kind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// safeMessages holds the generic text surfaced for kinds whose message may
// carry sensitive internal detail (query shapes, driver internals).
var safeMessages = struct {
	ResourceExhausted string
	Cancelled         string
	FatalDB           string
	TransientDB       string
	Cache             string
	Internal          string
}{
	ResourceExhausted: "the service is temporarily overloaded",
	Cancelled:         "the request was cancelled",
	FatalDB:           "an internal error occurred",
	TransientDB:       "an internal error occurred",
	Cache:             "an internal error occurred",
	Internal:          "an unexpected error occurred",
}

// SafeMessage returns a message safe to surface to an external caller.
// Validation messages pass through verbatim since they describe the
// caller's own input; every other kind collapses to a generic string so
// driver/query internals never leak past the pipeline boundary.
func SafeMessage(err error) string {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return safeMessages.Internal
	}
	switch appErr.Kind {
	case KindValidation:
		return appErr.Message
	case KindResourceExhausted:
		return safeMessages.ResourceExhausted
	case KindCancelled:
		return safeMessages.Cancelled
	case KindFatalDB:
		return safeMessages.FatalDB
	case KindTransientDB:
		return safeMessages.TransientDB
	case KindCache:
		return safeMessages.Cache
	default:
		return safeMessages.Internal
	}
}

// LogFields returns a structured field map suitable for
// pkg/shared/logging.Fields.Custom-style attachment.
func LogFields(err error) map[string]interface{} {
	fields := map[string]interface{}{"error": err.Error()}

	var appErr *AppError
	if !errors.As(err, &appErr) {
		return fields
	}
	fields["error_kind"] = string(appErr.Kind)
	if appErr.Details != "" {
		fields["error_details"] = appErr.Details
	}
	if appErr.Cause != nil {
		fields["underlying_error"] = appErr.Cause.Error()
	}
	return fields
}

// Chain joins multiple errors (filtering nils) into one, using " -> " as
// the separator between constituent error strings.
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
	msgs := make([]string, len(nonNil))
	for i, e := range nonNil {
		msgs[i] = e.Error()
	}
	joined := msgs[0]
	for _, m := range msgs[1:] {
		joined += " -> " + m
	}
	return errors.New(joined)
}
