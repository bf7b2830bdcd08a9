package transport

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel/attribute"

	"github.com/hyp3rd/otlpmetrics/pkg/config"
	"github.com/hyp3rd/otlpmetrics/pkg/logging"
)

const breakerName = "otlp-metrics"

// retryableStatusError marks a response the breaker should count as a failure.
// The response itself still reaches the caller.
type retryableStatusError struct {
	code int
}

func (e retryableStatusError) Error() string {
	return "collector responded with status " + strconv.Itoa(e.code)
}

type circuitRoundTripper struct {
	base http.RoundTripper
	cb   *gobreaker.CircuitBreaker
}

func newCircuitRoundTripper(base http.RoundTripper, cfg config.CircuitBreakerConfig, logger logging.Adapter) *circuitRoundTripper {
	return &circuitRoundTripper{
		base: base,
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        breakerName,
			MaxRequests: cfg.MaxRequests,
			Interval:    cfg.Interval,
			Timeout:     cfg.Timeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= cfg.TripCount
			},
			OnStateChange: func(name string, _, to gobreaker.State) {
				ctx := context.Background()
				switch to {
				case gobreaker.StateOpen:
					logger.Warn(ctx, "circuit has been opened", attribute.String("breaker", name))
				case gobreaker.StateHalfOpen:
					logger.Info(ctx, "circuit is half open",
						attribute.String("breaker", name),
						attribute.Int64("max_requests", int64(cfg.MaxRequests)),
					)
				case gobreaker.StateClosed:
					logger.Info(ctx, "circuit has been closed", attribute.String("breaker", name))
				}
			},
		}),
	}
}

func (rt *circuitRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	v, err := rt.cb.Execute(func() (any, error) {
		resp, err := rt.base.RoundTrip(req)
		if err != nil {
			return nil, err
		}

		if retryableStatus(resp.StatusCode) {
			return resp, retryableStatusError{code: resp.StatusCode}
		}

		return resp, nil
	})

	var statusErr retryableStatusError
	if errors.As(err, &statusErr) {
		resp, _ := v.(*http.Response)

		return resp, nil
	}

	if err != nil {
		return nil, err
	}

	resp, _ := v.(*http.Response)

	return resp, nil
}
