// Package config resolves exporter settings from explicit options, environment
// variables, optional YAML files and built-in defaults.
package config

import (
	"strings"
	"time"
)

// Settings is one layer of raw, unvalidated exporter configuration. A nil
// field means the layer did not provide a value. Layers are merged by Load and
// validated exactly once by Resolve.
type Settings struct {
	Endpoint *string `yaml:"endpoint" json:"endpoint,omitempty"`
	// EndpointVerbatim marks an endpoint whose path is used as is. It travels
	// with Endpoint when layers are merged.
	EndpointVerbatim bool `yaml:"endpoint_verbatim" json:"endpoint_verbatim,omitempty"`

	Certificate       *string `yaml:"certificate"        json:"certificate,omitempty"`
	ClientCertificate *string `yaml:"client_certificate" json:"client_certificate,omitempty"`
	ClientKey         *string `yaml:"client_key"         json:"client_key,omitempty"`

	// Headers holds either a map or the comma separated key=value form.
	Headers     any     `yaml:"headers"     json:"headers,omitempty"`
	Compression *string `yaml:"compression" json:"compression,omitempty"`
	// Timeout is expressed in (possibly fractional) seconds.
	Timeout *string `yaml:"timeout" json:"timeout,omitempty"`

	SSLVerifyMode *string `yaml:"ssl_verify_mode" json:"ssl_verify_mode,omitempty"`
	SSLVerifyPeer *string `yaml:"ssl_verify_peer" json:"ssl_verify_peer,omitempty"`
	SSLVerifyNone *string `yaml:"ssl_verify_none" json:"ssl_verify_none,omitempty"`

	TemporalityPreference *string `yaml:"temporality_preference" json:"temporality_preference,omitempty"`

	Retry          *RetryConfig          `yaml:"retry"           json:"retry,omitempty"`
	CircuitBreaker *CircuitBreakerConfig `yaml:"circuit_breaker" json:"circuit_breaker,omitempty"`
	Logging        *LoggingConfig        `yaml:"logging"         json:"logging,omitempty"`
	Diagnostics    *DiagnosticsConfig    `yaml:"diagnostics"     json:"diagnostics,omitempty"`
}

// Overlay copies every field provided by upper onto s.
func (s *Settings) Overlay(upper Settings) {
	if upper.Endpoint != nil {
		s.Endpoint = upper.Endpoint
		s.EndpointVerbatim = upper.EndpointVerbatim
	}

	overlayString(&s.Certificate, upper.Certificate)
	overlayString(&s.ClientCertificate, upper.ClientCertificate)
	overlayString(&s.ClientKey, upper.ClientKey)
	overlayString(&s.Compression, upper.Compression)
	overlayString(&s.Timeout, upper.Timeout)
	overlayString(&s.SSLVerifyMode, upper.SSLVerifyMode)
	overlayString(&s.SSLVerifyPeer, upper.SSLVerifyPeer)
	overlayString(&s.SSLVerifyNone, upper.SSLVerifyNone)
	overlayString(&s.TemporalityPreference, upper.TemporalityPreference)

	if upper.Headers != nil {
		s.Headers = upper.Headers
	}

	if upper.Retry != nil {
		s.Retry = upper.Retry
	}

	if upper.CircuitBreaker != nil {
		s.CircuitBreaker = upper.CircuitBreaker
	}

	if upper.Logging != nil {
		s.Logging = upper.Logging
	}

	if upper.Diagnostics != nil {
		s.Diagnostics = upper.Diagnostics
	}
}

func overlayString(dst **string, src *string) {
	if src != nil {
		*dst = src
	}
}

// RetryConfig bounds the retry state machine of the transport client.
type RetryConfig struct {
	// MaxAttempts caps HTTP attempts per export call, the first one included.
	MaxAttempts     int           `yaml:"max_attempts"     json:"max_attempts"`
	InitialInterval time.Duration `yaml:"initial_interval" json:"initial_interval"`
	MaxInterval     time.Duration `yaml:"max_interval"     json:"max_interval"`
	Multiplier      float64       `yaml:"multiplier"       json:"multiplier"`
}

// CircuitBreakerConfig configures the optional breaker wrapped around the HTTP transport.
type CircuitBreakerConfig struct {
	Enabled     bool          `yaml:"enabled"      json:"enabled"`
	TripCount   uint32        `yaml:"trip_count"   json:"trip_count"`
	MaxRequests uint32        `yaml:"max_requests" json:"max_requests"`
	Interval    time.Duration `yaml:"interval"     json:"interval"`
	Timeout     time.Duration `yaml:"timeout"      json:"timeout"`
}

// LoggingConfig controls structured log behavior.
type LoggingConfig struct {
	Level       string  `yaml:"level"        json:"level"`
	Format      string  `yaml:"format"       json:"format"`
	Adapter     string  `yaml:"adapter"      json:"adapter"`
	SampleRatio float64 `yaml:"sample_ratio" json:"sample_ratio"`
}

// DiagnosticsConfig toggles the exporter status endpoint.
type DiagnosticsConfig struct {
	Enabled   bool   `yaml:"enabled"    json:"enabled"`
	HTTPAddr  string `yaml:"http_addr"  json:"http_addr"`
	AuthToken string `yaml:"auth_token" json:"auth_token"`
}

// Compression selects the request body encoding.
type Compression int

const (
	// CompressionUnset sends the body as is without a Content-Encoding header.
	CompressionUnset Compression = iota
	// CompressionNone is the explicit form of "no compression".
	CompressionNone
	// CompressionGzip compresses request bodies with gzip.
	CompressionGzip
)

// String implements fmt.Stringer.
func (c Compression) String() string {
	switch c {
	case CompressionGzip:
		return "gzip"
	case CompressionNone:
		return "none"
	default:
		return ""
	}
}

// ParseCompression accepts "gzip", "none" and the empty string.
func ParseCompression(raw string) (Compression, error) {
	switch raw {
	case "gzip":
		return CompressionGzip, nil
	case "none":
		return CompressionNone, nil
	case "":
		return CompressionUnset, nil
	default:
		return CompressionUnset, invalidConfigError("unsupported compression key %q", raw)
	}
}

// VerifyMode selects how the server certificate is checked.
type VerifyMode int

const (
	// VerifyPeer validates the server certificate chain and host name.
	VerifyPeer VerifyMode = iota
	// VerifyNone skips server certificate validation.
	VerifyNone
)

// String implements fmt.Stringer.
func (m VerifyMode) String() string {
	if m == VerifyNone {
		return "none"
	}

	return "peer"
}

// ParseVerifyMode accepts "peer" and "none", case insensitively.
func ParseVerifyMode(raw string) (VerifyMode, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "peer", "verify_peer":
		return VerifyPeer, nil
	case "none", "verify_none":
		return VerifyNone, nil
	default:
		return VerifyPeer, invalidConfigError("unsupported ssl verify mode %q", raw)
	}
}

// TemporalityPreference mirrors OTEL_EXPORTER_OTLP_METRICS_TEMPORALITY_PREFERENCE.
type TemporalityPreference int

const (
	// TemporalityCumulative reports every instrument cumulatively.
	TemporalityCumulative TemporalityPreference = iota
	// TemporalityDelta reports counters and histograms as deltas.
	TemporalityDelta
	// TemporalityLowMemory uses delta for synchronous counters and histograms only.
	TemporalityLowMemory
)

// String implements fmt.Stringer.
func (p TemporalityPreference) String() string {
	switch p {
	case TemporalityDelta:
		return "delta"
	case TemporalityLowMemory:
		return "lowmemory"
	default:
		return "cumulative"
	}
}

// ParseTemporalityPreference accepts cumulative, delta and lowmemory.
func ParseTemporalityPreference(raw string) (TemporalityPreference, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "cumulative":
		return TemporalityCumulative, nil
	case "delta":
		return TemporalityDelta, nil
	case "lowmemory":
		return TemporalityLowMemory, nil
	default:
		return TemporalityCumulative, invalidConfigError("unsupported temporality preference %q", raw)
	}
}
