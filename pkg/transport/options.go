package transport

import (
	"context"
	"net/http"
	"time"

	"google.golang.org/protobuf/proto"

	"github.com/hyp3rd/otlpmetrics/pkg/logging"
)

// Marshaler serializes the wire request. proto.Marshal by default.
type Marshaler func(m proto.Message) ([]byte, error)

// Outcome summarizes a finished Send call.
type Outcome struct {
	Result   Result
	Attempts int
	// Phase, Err and Message are set on Failure and match the logged line.
	Phase   string
	Err     error
	Message string
}

// Observer receives per-attempt and per-call outcomes, e.g. for self telemetry.
// statusCode is 0 when no response was received.
type Observer interface {
	ObserveAttempt(ctx context.Context, statusCode int, elapsed time.Duration)
	ObserveResult(ctx context.Context, outcome Outcome)
}

type nopObserver struct{}

func (nopObserver) ObserveAttempt(context.Context, int, time.Duration) {}
func (nopObserver) ObserveResult(context.Context, Outcome)             {}

// Option configures a Client.
type Option func(*options)

type options struct {
	logger       logging.Adapter
	clock        Clock
	delay        DelayFunc
	marshal      Marshaler
	roundTripper http.RoundTripper
	observer     Observer
}

func defaultOptions() options {
	return options{
		logger:   logging.NewNoopAdapter(),
		clock:    SystemClock{},
		marshal:  proto.Marshal,
		observer: nopObserver{},
	}
}

// WithLogger sets the diagnostic side channel.
func WithLogger(logger logging.Adapter) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithClock replaces the wall clock used for the time budget and backoff sleeps.
func WithClock(clock Clock) Option {
	return func(o *options) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithDelayFunc replaces the exponential backoff policy.
func WithDelayFunc(delay DelayFunc) Option {
	return func(o *options) {
		o.delay = delay
	}
}

// WithMarshaler replaces proto.Marshal.
func WithMarshaler(marshal Marshaler) Option {
	return func(o *options) {
		if marshal != nil {
			o.marshal = marshal
		}
	}
}

// WithRoundTripper replaces the TLS-aware transport built from the configuration.
// The circuit breaker, when enabled, still wraps it.
func WithRoundTripper(rt http.RoundTripper) Option {
	return func(o *options) {
		o.roundTripper = rt
	}
}

// WithObserver registers an Observer.
func WithObserver(observer Observer) Option {
	return func(o *options) {
		if observer != nil {
			o.observer = observer
		}
	}
}
