// Package dal is the Data Access Layer for the job-match engine: a pooled
// Postgres/pgvector connection, retry-with-backoff around transient failures,
// and the three query shapes the retriever needs (count, fallback fetch,
// vector similarity).
package dal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// RetryConfig controls the backoff schedule applied to a retryable
// operation.
type RetryConfig struct {
	MaxAttempts       int
	InitialDelay      time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64
	Jitter            bool
}

// DefaultRetryConfig is used by general-purpose operations.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:       3,
		InitialDelay:      100 * time.Millisecond,
		MaxDelay:          5 * time.Second,
		BackoffMultiplier: 2.0,
		Jitter:            true,
	}
}

// DatabaseRetryConfig is tuned for the connection-pool / query workload,
// where a transient failure is more likely to clear with a few extra
// attempts at a gentler backoff curve.
func DatabaseRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:       5,
		InitialDelay:      250 * time.Millisecond,
		MaxDelay:          10 * time.Second,
		BackoffMultiplier: 1.5,
		Jitter:            true,
	}
}

var nonRetryableSubstrings = []string{
	"syntax error",
	"does not exist",
	"permission denied",
	"authentication failed",
	"invalid input value",
	"constraint violation",
	"foreign key constraint",
}

var retryableSubstrings = []string{
	"connection refused",
	"connection reset",
	"timeout",
	"temporary failure",
	"too many connections",
	"deadlock detected",
	"lock timeout",
	"serialization failure",
	"could not serialize access",
	"connection lost",
	"server closed the connection",
	"broken pipe",
	"i/o timeout",
	"network is unreachable",
	"no route to host",
}

// IsRetryableError classifies err by matching known transient-failure
// substrings against its message. nil and context.Canceled are never
// retryable; sql.ErrConnDone and context.DeadlineExceeded always are.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, sql.ErrConnDone) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, s := range nonRetryableSubstrings {
		if strings.Contains(msg, s) {
			return false
		}
	}
	for _, s := range retryableSubstrings {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

// WrapRetryableError annotates err with whether it was classified as
// retryable and why, while preserving errors.Is/errors.Unwrap through the
// chain.
func WrapRetryableError(err error, retryable bool, reason string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("retryable=%t (%s): %w", retryable, reason, err)
}

// Retrier executes an operation with exponential backoff, honoring context
// cancellation and deadlines between attempts.
type Retrier struct {
	config *RetryConfig
	logger *logrus.Logger
}

func NewRetrier(config *RetryConfig, logger *logrus.Logger) *Retrier {
	if config == nil {
		config = DefaultRetryConfig()
	}
	return &Retrier{config: config, logger: logger}
}

// ExecuteWithType runs operation, retrying on classified-retryable errors
// until it succeeds, a non-retryable error occurs, the context is
// cancelled/expired, or attempts are exhausted.
func (r *Retrier) ExecuteWithType(ctx context.Context, operation func(ctx context.Context, attempt int) (any, error)) (any, error) {
	maxAttempts := r.config.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	delay := r.config.InitialDelay
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		result, err := operation(ctx, attempt)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !IsRetryableError(err) {
			return nil, fmt.Errorf("non-retryable error on attempt %d: %w", attempt, err)
		}

		if attempt == maxAttempts {
			break
		}

		r.logRetry(attempt, maxAttempts, delay, err)

		timer := time.NewTimer(r.nextDelay(&delay))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	return nil, fmt.Errorf("operation failed after %d attempts: %w", maxAttempts, lastErr)
}

func (r *Retrier) nextDelay(current *time.Duration) time.Duration {
	d := *current
	if d > r.config.MaxDelay {
		d = r.config.MaxDelay
	}

	wait := d
	if r.config.Jitter {
		wait = time.Duration(float64(d) * (0.5 + rand.Float64()*0.5))
	}

	next := time.Duration(float64(d) * r.config.BackoffMultiplier)
	if next > r.config.MaxDelay || next <= 0 {
		next = r.config.MaxDelay
	}
	*current = next

	return wait
}

func (r *Retrier) logRetry(attempt, maxAttempts int, delay time.Duration, err error) {
	if r.logger == nil {
		return
	}
	r.logger.WithFields(logrus.Fields{
		"attempt":      attempt,
		"max_attempts": maxAttempts,
		"delay":        delay,
		"error":        err.Error(),
	}).Warn("retrying operation after transient failure")
}

// DatabaseRetrier is a Retrier preconfigured with DatabaseRetryConfig and a
// named-operation entry point for DAL callers.
type DatabaseRetrier struct {
	retrier *Retrier
}

func NewDatabaseRetrier(logger *logrus.Logger) *DatabaseRetrier {
	return &DatabaseRetrier{retrier: NewRetrier(DatabaseRetryConfig(), logger)}
}

func (d *DatabaseRetrier) ExecuteDBOperation(ctx context.Context, opName string, operation func(ctx context.Context, attempt int) (any, error)) (any, error) {
	result, err := d.retrier.ExecuteWithType(ctx, operation)
	if err != nil {
		return nil, fmt.Errorf("db operation %q: %w", opName, err)
	}
	return result, nil
}

// RetryIfNeeded is the simple wrapper form for call sites that don't need a
// return value from operation.
func RetryIfNeeded(ctx context.Context, config *RetryConfig, logger *logrus.Logger, operation func() error) error {
	retrier := NewRetrier(config, logger)
	_, err := retrier.ExecuteWithType(ctx, func(ctx context.Context, attempt int) (any, error) {
		return nil, operation()
	})
	return err
}
