// Package constants provides common constants used across the otlpmetrics project.
package constants

import "time"

const (
	// Version is the library version reported in the default User-Agent.
	Version = "0.1.0"
	// LibraryName identifies the exporter in the default User-Agent.
	LibraryName = "OTel-OTLP-MetricsExporter-Go"

	// DefaultEndpoint is the collector origin used when nothing else is configured.
	DefaultEndpoint = "http://localhost:4318"
	// DefaultMetricsPath is appended to generic endpoints.
	DefaultMetricsPath = "v1/metrics"
	// DefaultTimeoutSeconds bounds a whole export call, retries included.
	DefaultTimeoutSeconds = 10.0
	// DefaultMaxAttempts caps the number of HTTP attempts per export call.
	DefaultMaxAttempts = 5

	// DefaultShutdownTimeout is the default timeout for shutdown operations.
	DefaultShutdownTimeout = 30 * time.Second
	// DefaultReadHeaderTimeout guards the diagnostics server.
	DefaultReadHeaderTimeout = 5 * time.Second
)

// Environment variables read by the configuration loaders.
const (
	EnvGenericPrefix = "OTEL_EXPORTER_OTLP_"
	EnvMetricsPrefix = "OTEL_EXPORTER_OTLP_METRICS_"

	EnvSSLVerifyNone = "OTEL_GO_EXPORTER_OTLP_SSL_VERIFY_NONE"
	EnvSSLVerifyPeer = "OTEL_GO_EXPORTER_OTLP_SSL_VERIFY_PEER"
)
