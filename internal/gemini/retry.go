package gemini

import (
	"context"
	"errors"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"gofer/internal/logging"
)

// persistent429Threshold is the consecutive-429 streak that triggers the
// rate-limit fallback callback.
const persistent429Threshold = 2

// RetryOptions configures WithRetry.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration

	// OnPersistentRateLimit fires after two consecutive 429 responses.
	// Returning true restarts the attempt budget and backoff, letting the
	// caller change an external condition (switch the active model) instead
	// of failing the request. Returning false resumes normal accounting.
	OnPersistentRateLimit func(ctx context.Context) bool

	// Test hooks. Nil selects the real clock.
	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

// DefaultRetryOptions returns the standard retry policy.
func DefaultRetryOptions() RetryOptions {
	return RetryOptions{
		MaxAttempts:  5,
		InitialDelay: 2 * time.Second,
		MaxDelay:     30 * time.Second,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// WithRetry executes op with bounded retries and exponential backoff.
//
// Only 429 and 5xx responses are retried; any other failure is returned
// immediately without consuming an attempt. A 429 prefers the server's
// Retry-After header over the exponential delay. Symmetric jitter of ±50%
// is applied to whichever delay is chosen. Exhausting MaxAttempts returns
// the last observed error unchanged.
func WithRetry[T any](ctx context.Context, op func(ctx context.Context) (T, error), opts RetryOptions) (T, error) {
	var zero T
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultRetryOptions().MaxAttempts
	}
	if opts.InitialDelay <= 0 {
		opts.InitialDelay = DefaultRetryOptions().InitialDelay
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = DefaultRetryOptions().MaxDelay
	}
	sleep := opts.sleep
	if sleep == nil {
		sleep = sleepCtx
	}
	now := opts.now
	if now == nil {
		now = time.Now
	}

	attempt := 0
	consecutive429 := 0
	currentDelay := opts.InitialDelay
	var lastErr error

	for attempt < opts.MaxAttempts {
		attempt++
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		var se *StatusError
		if !errors.As(err, &se) || !se.Retryable() {
			return zero, err
		}

		if se.Code == 429 {
			consecutive429++
		} else {
			consecutive429 = 0
		}

		if consecutive429 >= persistent429Threshold && opts.OnPersistentRateLimit != nil {
			logging.API("Persistent rate-limiting detected (%d consecutive 429s), invoking fallback", consecutive429)
			if opts.OnPersistentRateLimit(ctx) {
				attempt = 0
				consecutive429 = 0
				currentDelay = opts.InitialDelay
				continue
			}
		}

		if attempt >= opts.MaxAttempts {
			break
		}

		delay := currentDelay
		if se.Code == 429 {
			if ra, ok := parseRetryAfter(se.RetryAfter, now()); ok {
				delay = ra
			}
		}
		// Symmetric jitter: ±50% of the chosen delay, floored at zero.
		jitter := time.Duration((rand.Float64()*2 - 1) * 0.5 * float64(delay))
		wait := delay + jitter
		if wait < 0 {
			wait = 0
		}

		logging.API("Attempt %d/%d failed with status %d, retrying in %v", attempt, opts.MaxAttempts, se.Code, wait)
		if err := sleep(ctx, wait); err != nil {
			return zero, err
		}

		currentDelay *= 2
		if currentDelay > opts.MaxDelay {
			currentDelay = opts.MaxDelay
		}
	}

	logging.APIError("All %d retry attempts exhausted: %v", opts.MaxAttempts, lastErr)
	return zero, lastErr
}

// parseRetryAfter interprets a Retry-After header value, first as an integer
// seconds count, then as an HTTP date relative to now.
func parseRetryAfter(value string, now time.Time) (time.Duration, bool) {
	if value == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs < 0 {
			return 0, false
		}
		return time.Duration(secs) * time.Second, true
	}
	if t, err := http.ParseTime(value); err == nil {
		d := t.Sub(now)
		if d < 0 {
			d = 0
		}
		return d, true
	}
	return 0, false
}
