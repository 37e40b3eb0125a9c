// Package logging provides a chainable structured-field builder on top of
// logrus, plus cardinality-bounded reason sanitizers so free-text driver
// errors never explode a log index's label cardinality.
package logging

import (
	"time"

	"github.com/sirupsen/logrus"
)

// Fields is a chainable builder over a plain map. The string and error
// setters are no-ops on their zero value so callers can chain
// unconditionally; Duration, StatusCode, Count, Size and Custom always set
// their field, zero included.
type Fields map[string]interface{}

func NewFields() Fields {
	return Fields{}
}

func (f Fields) Component(name string) Fields {
	if name != "" {
		f["component"] = name
	}
	return f
}

func (f Fields) Operation(name string) Fields {
	if name != "" {
		f["operation"] = name
	}
	return f
}

func (f Fields) Resource(resourceType, resourceName string) Fields {
	if resourceType != "" {
		f["resource_type"] = resourceType
	}
	if resourceName != "" {
		f["resource_name"] = resourceName
	}
	return f
}

func (f Fields) Duration(d time.Duration) Fields {
	f["duration_ms"] = d.Milliseconds()
	return f
}

func (f Fields) Error(err error) Fields {
	if err != nil {
		f["error"] = err.Error()
	}
	return f
}

func (f Fields) UserID(id string) Fields {
	if id != "" {
		f["user_id"] = id
	}
	return f
}

func (f Fields) RequestID(id string) Fields {
	if id != "" {
		f["request_id"] = id
	}
	return f
}

func (f Fields) TraceID(id string) Fields {
	if id != "" {
		f["trace_id"] = id
	}
	return f
}

func (f Fields) StatusCode(code int) Fields {
	f["status_code"] = code
	return f
}

func (f Fields) Method(method string) Fields {
	if method != "" {
		f["method"] = method
	}
	return f
}

func (f Fields) URL(url string) Fields {
	if url != "" {
		f["url"] = url
	}
	return f
}

func (f Fields) Count(n int) Fields {
	f["count"] = n
	return f
}

func (f Fields) Size(bytes int) Fields {
	f["size_bytes"] = int64(bytes)
	return f
}

func (f Fields) Version(v string) Fields {
	if v != "" {
		f["version"] = v
	}
	return f
}

func (f Fields) Custom(key string, value interface{}) Fields {
	f[key] = value
	return f
}

// ToLogrus converts the builder's map into logrus.Fields for emission
// through a *logrus.Logger/*logrus.Entry.
func (f Fields) ToLogrus() logrus.Fields {
	out := make(logrus.Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// DatabaseFields is a shorthand constructor for database log-line fields
// (component, operation, table).
func DatabaseFields(operation, table string) Fields {
	return NewFields().Component("database").Operation(operation).Resource("table", table)
}

// HTTPFields is a shorthand constructor for outbound HTTP call log-line
// fields (method, URL, status code).
func HTTPFields(method, url string, statusCode int) Fields {
	return NewFields().Component("http").Method(method).URL(url).StatusCode(statusCode)
}

// MetricsFields logs a named numeric observation (e.g. a calibration
// score) without requiring a metrics backend.
func MetricsFields(operation, metricName string, value float64) Fields {
	return NewFields().Component("metrics").Operation(operation).Custom("metric_name", metricName).Custom("value", value)
}

// PerformanceFields builds the fields for a stage's timing and outcome.
func PerformanceFields(operation string, duration time.Duration, success bool) Fields {
	return NewFields().Component("performance").Operation(operation).Duration(duration).Custom("success", success)
}

// Cardinality-bounded failure reason constants. Any reason not in this set
// collapses to ReasonUnknown so structured logs never carry unbounded
// free-text driver error strings as a label-like field.
const (
	ReasonPostgreSQLFailure   = "postgresql_failure"
	ReasonVectorDBFailure     = "vectordb_failure"
	ReasonValidationFailure   = "validation_failure"
	ReasonContextCanceled     = "context_canceled"
	ReasonTransactionRollback = "transaction_rollback"
	ReasonUnknown             = "unknown"
)

var knownFailureReasons = map[string]bool{
	ReasonPostgreSQLFailure:   true,
	ReasonVectorDBFailure:     true,
	ReasonValidationFailure:   true,
	ReasonContextCanceled:     true,
	ReasonTransactionRollback: true,
}

// SanitizeFailureReason maps a free-text failure description onto one of a
// small fixed set of known reasons, or ReasonUnknown otherwise.
func SanitizeFailureReason(reason string) string {
	if knownFailureReasons[reason] {
		return reason
	}
	return ReasonUnknown
}

const (
	ValidationReasonRequired       = "required"
	ValidationReasonInvalid        = "invalid"
	ValidationReasonLengthExceeded = "length_exceeded"
	ValidationReasonXSSDetected    = "xss_detected"
	ValidationReasonSQLInjection   = "sql_injection_detected"
	ValidationReasonWhitespaceOnly = "whitespace_only"
)

var knownValidationReasons = map[string]bool{
	ValidationReasonRequired:       true,
	ValidationReasonInvalid:        true,
	ValidationReasonLengthExceeded: true,
	ValidationReasonXSSDetected:    true,
	ValidationReasonSQLInjection:   true,
	ValidationReasonWhitespaceOnly: true,
}

// SanitizeValidationReason maps a free-text validation failure onto a
// known reason, defaulting to ValidationReasonInvalid.
func SanitizeValidationReason(reason string) string {
	if knownValidationReasons[reason] {
		return reason
	}
	return ValidationReasonInvalid
}
