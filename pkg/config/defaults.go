package config

import (
	"strconv"
	"time"

	"github.com/hyp3rd/otlpmetrics/internal/constants"
)

const (
	defaultInitialInterval = 100 * time.Millisecond
	defaultMaxInterval     = 5 * time.Second
	defaultMultiplier      = 2.0

	defaultBreakerTripCount = 5
	defaultBreakerTimeout   = 60 * time.Second
)

// DefaultSettings returns the bottom configuration layer.
func DefaultSettings() Settings {
	return Settings{
		Endpoint:    ptr(constants.DefaultEndpoint),
		Compression: ptr(CompressionGzip.String()),
		Timeout:     ptr(strconv.FormatFloat(constants.DefaultTimeoutSeconds, 'f', -1, 64)),
		Retry: &RetryConfig{
			MaxAttempts:     constants.DefaultMaxAttempts,
			InitialInterval: defaultInitialInterval,
			MaxInterval:     defaultMaxInterval,
			Multiplier:      defaultMultiplier,
		},
		CircuitBreaker: &CircuitBreakerConfig{
			Enabled:     false,
			TripCount:   defaultBreakerTripCount,
			MaxRequests: 1,
			Timeout:     defaultBreakerTimeout,
		},
		Logging: &LoggingConfig{
			Level:       "info",
			Format:      "json",
			Adapter:     "noop",
			SampleRatio: 1.0,
		},
		Diagnostics: &DiagnosticsConfig{
			Enabled:  false,
			HTTPAddr: "127.0.0.1:14272",
		},
	}
}

// withDefaults fills zero fields from DefaultSettings so partial file sections stay usable.
func (r RetryConfig) withDefaults() RetryConfig {
	def := DefaultSettings().Retry

	if r.MaxAttempts <= 0 {
		r.MaxAttempts = def.MaxAttempts
	}

	if r.InitialInterval <= 0 {
		r.InitialInterval = def.InitialInterval
	}

	if r.MaxInterval <= 0 {
		r.MaxInterval = def.MaxInterval
	}

	if r.Multiplier < 1 {
		r.Multiplier = def.Multiplier
	}

	return r
}

func (c CircuitBreakerConfig) withDefaults() CircuitBreakerConfig {
	def := DefaultSettings().CircuitBreaker

	if c.TripCount == 0 {
		c.TripCount = def.TripCount
	}

	if c.MaxRequests == 0 {
		c.MaxRequests = def.MaxRequests
	}

	if c.Timeout <= 0 {
		c.Timeout = def.Timeout
	}

	return c
}

// withDefaults fills unset fields. A zero sample ratio would drop every
// non-error line.
func (l LoggingConfig) withDefaults() LoggingConfig {
	def := DefaultSettings().Logging

	if l.Level == "" {
		l.Level = def.Level
	}

	if l.Format == "" {
		l.Format = def.Format
	}

	if l.Adapter == "" {
		l.Adapter = def.Adapter
	}

	if l.SampleRatio <= 0 || l.SampleRatio > 1 {
		l.SampleRatio = def.SampleRatio
	}

	return l
}

func (d DiagnosticsConfig) withDefaults() DiagnosticsConfig {
	if d.HTTPAddr == "" {
		d.HTTPAddr = DefaultSettings().Diagnostics.HTTPAddr
	}

	return d
}

func ptr[T any](v T) *T {
	return &v
}
