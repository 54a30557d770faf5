package core

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

const (
	defaultRetryMaxAttempts    = 3
	defaultRetryInitialBackoff = 500 * time.Millisecond
	defaultRetryMaxBackoff     = 10 * time.Second
	defaultRetryJitter         = 0.2
)

type BackoffScheduler interface {
	NextDelay(attempt int) time.Duration
}

// ExponentialBackoffScheduler doubles the delay per attempt up to Max and
// spreads concurrent retries with a random jitter fraction.
type ExponentialBackoffScheduler struct {
	Initial time.Duration
	Max     time.Duration
	Jitter  float64
}

func (s ExponentialBackoffScheduler) NextDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	initial := s.Initial
	if initial <= 0 {
		initial = defaultRetryInitialBackoff
	}
	max := s.Max
	if max <= 0 {
		max = defaultRetryMaxBackoff
	}

	delay := initial
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= max {
			delay = max
			break
		}
	}
	if delay > max {
		delay = max
	}

	jitter := s.Jitter
	if jitter < 0 {
		jitter = 0
	}
	if jitter == 0 {
		jitter = defaultRetryJitter
	}
	spread := float64(delay) * jitter
	offset := (rand.Float64()*2 - 1) * spread
	jittered := time.Duration(float64(delay) + offset)
	if jittered < 0 {
		return 0
	}
	return jittered
}

// RetryRunner executes a vendor call with bounded retries. Transient
// failures (rate limits, vendor 5xx, network faults) are retried up to
// MaxAttempts; permanent failures (auth, validation, not-found) surface on
// the first attempt. Exhaustion annotates the last failure rather than
// hiding it.
type RetryRunner struct {
	MaxAttempts int
	Scheduler   BackoffScheduler
}

type RetryResult struct {
	Attempts int
}

func (r RetryRunner) Run(ctx context.Context, operation string, fn func(ctx context.Context) error) (RetryResult, error) {
	if fn == nil {
		return RetryResult{}, fmt.Errorf("core: retry operation is required")
	}
	maxAttempts := r.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = defaultRetryMaxAttempts
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			return RetryResult{Attempts: attempt}, nil
		}
		lastErr = err

		if isPermanentVendorError(err) {
			return RetryResult{Attempts: attempt}, err
		}
		if attempt == maxAttempts {
			break
		}

		delay := defaultRetryInitialBackoff
		if r.Scheduler != nil {
			delay = r.Scheduler.NextDelay(attempt)
		}
		if waitErr := waitWithContext(ctx, delay); waitErr != nil {
			return RetryResult{Attempts: attempt}, waitErr
		}
	}

	exhausted := goerrors.Wrap(lastErr, goerrors.CategoryExternal,
		fmt.Sprintf("core: %s failed after %d attempts", strings.TrimSpace(operation), maxAttempts)).
		WithCode(http.StatusBadGateway).
		WithTextCode(ConnectorErrorRetryExhausted).
		WithMetadata(map[string]any{"attempts": maxAttempts})
	return RetryResult{Attempts: maxAttempts}, exhausted
}

func isPermanentVendorError(err error) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		switch richErr.Category {
		case goerrors.CategoryAuth, goerrors.CategoryAuthz,
			goerrors.CategoryValidation, goerrors.CategoryBadInput,
			goerrors.CategoryNotFound, goerrors.CategoryConflict:
			return true
		case goerrors.CategoryRateLimit, goerrors.CategoryExternal, goerrors.CategoryOperation:
			return false
		}
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	return strings.Contains(msg, "invalid_grant") ||
		strings.Contains(msg, "unauthorized") ||
		strings.Contains(msg, "forbidden")
}

func waitWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
