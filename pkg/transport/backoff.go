package transport

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/hyp3rd/ewrap"

	"github.com/hyp3rd/otlpmetrics/pkg/config"
)

// Clock abstracts time for the retry state machine.
type Clock interface {
	Now() time.Time
	// Sleep blocks for d or until ctx is done, whichever comes first.
	Sleep(ctx context.Context, d time.Duration) error
}

// SystemClock is the wall clock.
type SystemClock struct{}

// Now implements Clock.
func (SystemClock) Now() time.Time {
	return time.Now()
}

// Sleep implements Clock.
func (SystemClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ewrap.Wrap(ctx.Err(), "backoff interrupted")
	case <-timer.C:
		return nil
	}
}

// DelayFunc returns how long to wait before retry number retryCount (1-based).
type DelayFunc func(retryCount int) time.Duration

// ExponentialDelay derives a jittered exponential DelayFunc from the retry bounds.
func ExponentialDelay(cfg config.RetryConfig) DelayFunc {
	return func(retryCount int) time.Duration {
		policy := &backoff.ExponentialBackOff{
			InitialInterval:     cfg.InitialInterval,
			RandomizationFactor: backoff.DefaultRandomizationFactor,
			Multiplier:          cfg.Multiplier,
			MaxInterval:         cfg.MaxInterval,
		}
		policy.Reset()

		var delay time.Duration
		for range max(retryCount, 1) {
			delay = policy.NextBackOff()
		}

		return delay
	}
}

// retryAfter parses a Retry-After header given either as seconds or as an HTTP date.
func retryAfter(header string, now time.Time) (time.Duration, bool) {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0, false
	}

	seconds, err := strconv.ParseInt(header, 10, 64)
	if err == nil {
		if seconds < 0 {
			return 0, false
		}

		return time.Duration(seconds) * time.Second, true
	}

	at, err := http.ParseTime(header)
	if err != nil {
		return 0, false
	}

	return max(at.Sub(now), 0), true
}
