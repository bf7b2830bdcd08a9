package exporter

import (
	"maps"
	"net/http"
	"strconv"

	"go.opentelemetry.io/otel/metric"

	"github.com/hyp3rd/otlpmetrics/pkg/config"
	"github.com/hyp3rd/otlpmetrics/pkg/logging"
	"github.com/hyp3rd/otlpmetrics/pkg/transport"
)

// Option mutates construction settings. Options map onto the explicit
// configuration layer, which wins over environment variables and files.
type Option func(*options)

type options struct {
	explicit      config.Settings
	loaders       []config.Loader
	loadersSet    bool
	configFile    string
	identity      *config.Identity
	logger        logging.Adapter
	meterProvider metric.MeterProvider
	transportOpts []transport.Option
}

func defaultOptions() options {
	return options{}
}

func (o options) configLoaders() []config.Loader {
	if o.loadersSet {
		return o.loaders
	}

	return config.DefaultLoaders(o.configFile)
}

// WithEndpoint sets the full collector URL. Its path is used verbatim.
func WithEndpoint(endpoint string) Option {
	return func(opt *options) {
		opt.explicit.Endpoint = &endpoint
		opt.explicit.EndpointVerbatim = true
	}
}

// WithHeaders sets request headers. The map is copied immediately.
func WithHeaders(headers map[string]string) Option {
	clone := maps.Clone(headers)

	return func(opt *options) {
		opt.explicit.Headers = clone
	}
}

// WithHeadersString sets request headers from the "k1=v1,k2=v2" form with
// percent-encoded values.
func WithHeadersString(headers string) Option {
	return func(opt *options) {
		opt.explicit.Headers = headers
	}
}

// WithHeadersValue accepts headers of any type and defers validation to New,
// which rejects anything but a map or a string.
func WithHeadersValue(headers any) Option {
	if m, ok := headers.(map[string]string); ok {
		headers = maps.Clone(m)
	}

	return func(opt *options) {
		opt.explicit.Headers = headers
	}
}

// WithCompression selects "gzip", "none" or, with the empty string, unset
// compression. Any explicit choice overrides the environment and the gzip default.
func WithCompression(compression string) Option {
	return func(opt *options) {
		opt.explicit.Compression = &compression
	}
}

// WithTimeout bounds each export call, retries included, in seconds.
func WithTimeout(seconds float64) Option {
	raw := strconv.FormatFloat(seconds, 'f', -1, 64)

	return func(opt *options) {
		opt.explicit.Timeout = &raw
	}
}

// WithCertificateFile sets the CA bundle used to verify the collector.
func WithCertificateFile(path string) Option {
	return func(opt *options) {
		opt.explicit.Certificate = &path
	}
}

// WithClientCertificateFile sets the client certificate for mTLS.
func WithClientCertificateFile(path string) Option {
	return func(opt *options) {
		opt.explicit.ClientCertificate = &path
	}
}

// WithClientKeyFile sets the client private key for mTLS.
func WithClientKeyFile(path string) Option {
	return func(opt *options) {
		opt.explicit.ClientKey = &path
	}
}

// WithSSLVerifyMode overrides the verify switches from the environment.
func WithSSLVerifyMode(mode config.VerifyMode) Option {
	raw := mode.String()

	return func(opt *options) {
		opt.explicit.SSLVerifyMode = &raw
	}
}

// WithTemporalityPreference selects the temporality reported to the SDK.
func WithTemporalityPreference(pref config.TemporalityPreference) Option {
	raw := pref.String()

	return func(opt *options) {
		opt.explicit.TemporalityPreference = &raw
	}
}

// WithRetry replaces the retry bounds. Zero fields keep their defaults.
func WithRetry(retry config.RetryConfig) Option {
	return func(opt *options) {
		opt.explicit.Retry = &retry
	}
}

// WithCircuitBreaker enables or tunes the breaker around the HTTP transport.
func WithCircuitBreaker(breaker config.CircuitBreakerConfig) Option {
	return func(opt *options) {
		opt.explicit.CircuitBreaker = &breaker
	}
}

// WithDiagnostics serves the status endpoint for the exporter's lifetime.
func WithDiagnostics(diagnostics config.DiagnosticsConfig) Option {
	return func(opt *options) {
		opt.explicit.Diagnostics = &diagnostics
	}
}

// WithConfigFile layers a YAML file below the environment.
func WithConfigFile(path string) Option {
	return func(opt *options) {
		opt.configFile = path
	}
}

// WithLoaders replaces the default loader chain.
func WithLoaders(loaders ...config.Loader) Option {
	return func(opt *options) {
		opt.loaders = append([]config.Loader{}, loaders...)
		opt.loadersSet = true
	}
}

// WithIdentity overrides the library identity used for the User-Agent.
func WithIdentity(identity config.Identity) Option {
	return func(opt *options) {
		opt.identity = &identity
	}
}

// WithLogger specifies the logging adapter. Without it the logging section of
// the configuration decides, which defaults to discarding everything.
func WithLogger(adapter logging.Adapter) Option {
	return func(opt *options) {
		opt.logger = adapter
	}
}

// WithMeterProvider records self telemetry on provider.
func WithMeterProvider(provider metric.MeterProvider) Option {
	return func(opt *options) {
		opt.meterProvider = provider
	}
}

// WithClock injects the clock driving the export time budget.
func WithClock(clock transport.Clock) Option {
	return func(opt *options) {
		opt.transportOpts = append(opt.transportOpts, transport.WithClock(clock))
	}
}

// WithDelayFunc replaces the backoff policy.
func WithDelayFunc(delay transport.DelayFunc) Option {
	return func(opt *options) {
		opt.transportOpts = append(opt.transportOpts, transport.WithDelayFunc(delay))
	}
}

// WithRoundTripper replaces the HTTP transport built from the TLS settings.
func WithRoundTripper(rt http.RoundTripper) Option {
	return func(opt *options) {
		opt.transportOpts = append(opt.transportOpts, transport.WithRoundTripper(rt))
	}
}

// WithMarshaler replaces proto.Marshal for the wire request.
func WithMarshaler(marshal transport.Marshaler) Option {
	return func(opt *options) {
		opt.transportOpts = append(opt.transportOpts, transport.WithMarshaler(marshal))
	}
}
