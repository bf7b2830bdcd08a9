package config

import (
	"context"
	"crypto/tls"
	"maps"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hyp3rd/ewrap"

	"github.com/hyp3rd/otlpmetrics/internal/constants"
)

// ErrInvalidConfig is the sentinel wrapped by every construction-time configuration error.
var ErrInvalidConfig = ewrap.New("invalid configuration").WithContext(
	&ewrap.ErrorContext{
		Severity: ewrap.SeverityError,
		Type:     ewrap.ErrorTypeConfiguration,
	},
)

func invalidConfigError(format string, args ...any) error {
	return ewrap.Wrapf(ErrInvalidConfig, format, args...)
}

// TransportConfig is the validated, immutable result of Resolve. Accessors
// return copies.
type TransportConfig struct {
	endpoint    url.URL
	path        string
	headers     map[string]string
	compression Compression
	timeout     time.Duration
	tlsSettings TLSSettings
	tlsConfig   *tls.Config
	temporality TemporalityPreference
	retry       RetryConfig
	breaker     CircuitBreakerConfig
	logging     LoggingConfig
	diagnostics DiagnosticsConfig
}

// Build loads every layer, applies explicit settings last and resolves the
// result. It is the full precedence chain: explicit > metrics env > generic
// env > file > defaults.
func Build(ctx context.Context, explicit Settings, identity Identity, loaders ...Loader) (TransportConfig, error) {
	settings, err := Load(ctx, loaders...)
	if err != nil {
		return TransportConfig{}, err
	}

	settings.Overlay(explicit)

	return Resolve(settings, identity)
}

// Resolve validates merged settings and freezes them.
func Resolve(settings Settings, identity Identity) (TransportConfig, error) {
	cfg := TransportConfig{}

	endpoint, path, err := resolveEndpoint(settings)
	if err != nil {
		return TransportConfig{}, err
	}

	cfg.endpoint = endpoint
	cfg.path = path

	headers, err := ParseHeaders(settings.Headers)
	if err != nil {
		return TransportConfig{}, err
	}

	cfg.headers = withUserAgent(headers, identity)

	cfg.compression, err = ParseCompression(deref(settings.Compression))
	if err != nil {
		return TransportConfig{}, err
	}

	cfg.timeout, err = parseTimeout(deref(settings.Timeout))
	if err != nil {
		return TransportConfig{}, err
	}

	cfg.temporality, err = ParseTemporalityPreference(deref(settings.TemporalityPreference))
	if err != nil {
		return TransportConfig{}, err
	}

	verifyMode, err := resolveVerifyMode(settings)
	if err != nil {
		return TransportConfig{}, err
	}

	cfg.tlsSettings = TLSSettings{
		CAFile:     deref(settings.Certificate),
		CertFile:   deref(settings.ClientCertificate),
		KeyFile:    deref(settings.ClientKey),
		VerifyMode: verifyMode,
	}

	cfg.tlsConfig, err = buildTLSConfig(cfg.tlsSettings)
	if err != nil {
		return TransportConfig{}, err
	}

	if settings.Retry != nil {
		cfg.retry = settings.Retry.withDefaults()
	} else {
		cfg.retry = RetryConfig{}.withDefaults()
	}

	if settings.CircuitBreaker != nil {
		cfg.breaker = settings.CircuitBreaker.withDefaults()
	}

	if settings.Logging != nil {
		cfg.logging = settings.Logging.withDefaults()
	} else {
		cfg.logging = LoggingConfig{}.withDefaults()
	}

	if settings.Diagnostics != nil {
		cfg.diagnostics = settings.Diagnostics.withDefaults()
	} else {
		cfg.diagnostics = DiagnosticsConfig{}.withDefaults()
	}

	return cfg, nil
}

// resolveEndpoint applies the path rules: verbatim endpoints keep their path,
// even when empty, while generic ones get the metrics path appended once.
func resolveEndpoint(settings Settings) (url.URL, string, error) {
	raw := constants.DefaultEndpoint
	if settings.Endpoint != nil {
		raw = strings.TrimSpace(*settings.Endpoint)
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return url.URL{}, "", invalidConfigError("endpoint %q is not a valid URL: %v", raw, err)
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return url.URL{}, "", invalidConfigError("endpoint %q must use the http or https scheme", raw)
	}

	if parsed.Host == "" {
		return url.URL{}, "", invalidConfigError("endpoint %q has no host", raw)
	}

	path := parsed.Path
	if !settings.EndpointVerbatim {
		if !strings.HasSuffix(path, "/") {
			path += "/"
		}

		path += constants.DefaultMetricsPath
	}

	origin := url.URL{Scheme: parsed.Scheme, Host: parsed.Host, User: parsed.User}

	return origin, path, nil
}

func parseTimeout(raw string) (time.Duration, error) {
	if raw == "" {
		return time.Duration(constants.DefaultTimeoutSeconds * float64(time.Second)), nil
	}

	seconds, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return 0, invalidConfigError("timeout %q is not a number of seconds", raw)
	}

	if seconds < 0 {
		return 0, invalidConfigError("timeout %q must not be negative", raw)
	}

	return time.Duration(seconds * float64(time.Second)), nil
}

func resolveVerifyMode(settings Settings) (VerifyMode, error) {
	if settings.SSLVerifyMode != nil {
		return ParseVerifyMode(*settings.SSLVerifyMode)
	}

	if truthy(settings.SSLVerifyPeer) {
		return VerifyPeer, nil
	}

	if truthy(settings.SSLVerifyNone) {
		return VerifyNone, nil
	}

	return VerifyPeer, nil
}

func truthy(raw *string) bool {
	if raw == nil {
		return false
	}

	v, err := strconv.ParseBool(strings.TrimSpace(*raw))

	return err == nil && v
}

func deref(v *string) string {
	if v == nil {
		return ""
	}

	return *v
}

// Endpoint returns the collector origin, e.g. "https://collector:4318".
func (c TransportConfig) Endpoint() string {
	return c.endpoint.String()
}

// Path returns the request path. It may be empty for verbatim endpoints.
func (c TransportConfig) Path() string {
	return c.path
}

// URL returns the full request URL.
func (c TransportConfig) URL() string {
	u := c.endpoint
	u.Path = c.path

	return u.String()
}

// UseTLS reports whether the endpoint scheme is https.
func (c TransportConfig) UseTLS() bool {
	return c.endpoint.Scheme == "https"
}

// Headers returns a copy of the resolved headers, User-Agent included.
func (c TransportConfig) Headers() map[string]string {
	return maps.Clone(c.headers)
}

// Compression returns the resolved compression mode.
func (c TransportConfig) Compression() Compression {
	return c.compression
}

// Timeout returns the default per-call budget.
func (c TransportConfig) Timeout() time.Duration {
	return c.timeout
}

// TLS returns the resolved TLS material paths and verify mode.
func (c TransportConfig) TLS() TLSSettings {
	return c.tlsSettings
}

// TLSClientConfig returns a clone of the parsed TLS configuration, or nil
// when the system defaults apply.
func (c TransportConfig) TLSClientConfig() *tls.Config {
	if c.tlsConfig == nil {
		return nil
	}

	return c.tlsConfig.Clone()
}

// TemporalityPreference returns the preference used by the SDK adapter.
func (c TransportConfig) TemporalityPreference() TemporalityPreference {
	return c.temporality
}

// Retry returns the retry bounds.
func (c TransportConfig) Retry() RetryConfig {
	return c.retry
}

// CircuitBreaker returns the breaker settings.
func (c TransportConfig) CircuitBreaker() CircuitBreakerConfig {
	return c.breaker
}

// Logging returns the logging settings.
func (c TransportConfig) Logging() LoggingConfig {
	return c.logging
}

// Diagnostics returns the diagnostics endpoint settings.
func (c TransportConfig) Diagnostics() DiagnosticsConfig {
	return c.diagnostics
}
