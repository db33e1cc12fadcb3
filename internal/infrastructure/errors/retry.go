package errors

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryLogger defines the interface for logging retry operations
type RetryLogger interface {
	Printf(format string, v ...interface{})
}

// RetryConfig holds configuration for retry logic
type RetryConfig struct {
	MaxAttempts     int           // Maximum number of attempts, including the first
	InitialDelay    time.Duration // Initial delay between retries
	MaxDelay        time.Duration // Maximum delay between retries
	BackoffFactor   float64       // Exponential backoff factor
	Jitter          bool          // Whether to randomize delays
	RetryableErrors []ErrorCode   // Specific error codes to retry
}

var retryLogger RetryLogger

// DefaultRetryConfig returns the configuration used for blob store writes
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  50 * time.Millisecond,
		MaxDelay:      2 * time.Second,
		BackoffFactor: 2.0,
		Jitter:        true,
		RetryableErrors: []ErrorCode{
			ErrCodeConnection,
			ErrCodeTimeout,
			ErrCodeTransaction,
			ErrCodeBusy,
		},
	}
}

// RetryableOperation represents an operation that can be retried
type RetryableOperation func() error

// SetRetryLogger sets the package-level logger for retry operations
func SetRetryLogger(logger RetryLogger) {
	retryLogger = logger
}

func logRetryMessage(format string, v ...interface{}) {
	if retryLogger != nil {
		retryLogger.Printf(format, v...)
	}
}

// newBackOff translates a RetryConfig into a backoff policy bound to ctx
func newBackOff(ctx context.Context, config *RetryConfig) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = config.InitialDelay
	exp.MaxInterval = config.MaxDelay
	if config.BackoffFactor > 0 {
		exp.Multiplier = config.BackoffFactor
	}
	if !config.Jitter {
		exp.RandomizationFactor = 0
	}
	exp.MaxElapsedTime = 0
	exp.Reset()

	retries := config.MaxAttempts - 1
	if retries < 0 {
		retries = 0
	}
	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(retries)), ctx)
}

func withRetryImpl(ctx context.Context, config *RetryConfig, operation RetryableOperation, operationName string) error {
	if config == nil {
		config = DefaultRetryConfig()
	}
	if operationName == "" {
		operationName = "unnamed"
	}

	attempts := 0
	exhausted := false
	err := backoff.RetryNotify(func() error {
		attempts++
		err := operation()
		if err == nil {
			return nil
		}
		if !shouldRetry(err, config) {
			return backoff.Permanent(err)
		}
		exhausted = attempts >= config.MaxAttempts
		return err
	}, newBackOff(ctx, config), func(err error, delay time.Duration) {
		logRetryMessage("operation '%s' failed (attempt %d/%d), retrying in %v: %v",
			operationName, attempts, config.MaxAttempts, delay, err)
	})

	switch {
	case err == nil:
		if attempts > 1 {
			logRetryMessage("operation '%s' succeeded after %d attempts", operationName, attempts)
		}
		return nil
	case ctx.Err() != nil && !exhausted && errors.Is(err, ctx.Err()):
		return fmt.Errorf("operation '%s' cancelled during retry: %w", operationName, err)
	case exhausted:
		return fmt.Errorf("operation '%s' failed after %d attempts: %w", operationName, attempts, err)
	default:
		return err
	}
}

// WithRetry executes an operation with retry logic
func WithRetry(ctx context.Context, config *RetryConfig, operation RetryableOperation) error {
	return withRetryImpl(ctx, config, operation, "")
}

// WithRetryContext executes an operation with retry logic under a name used in log lines
func WithRetryContext(ctx context.Context, config *RetryConfig, operation RetryableOperation, operationName string) error {
	return withRetryImpl(ctx, config, operation, operationName)
}

// shouldRetry determines if an error should be retried based on configuration
func shouldRetry(err error, config *RetryConfig) bool {
	var trackerErr *Error
	if !errors.As(err, &trackerErr) {
		return false
	}
	if !trackerErr.IsRetryable() {
		return false
	}
	return slices.Contains(config.RetryableErrors, trackerErr.Code)
}
