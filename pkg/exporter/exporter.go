// Package exporter is the entry point of the library: it resolves the
// configuration once, translates metric batches to OTLP and hands them to the
// transport client, reducing every outcome to a Result.
package exporter

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hyp3rd/ewrap"
	"go.opentelemetry.io/otel/attribute"

	"github.com/hyp3rd/otlpmetrics/internal/constants"
	"github.com/hyp3rd/otlpmetrics/pkg/config"
	"github.com/hyp3rd/otlpmetrics/pkg/diagnostics"
	"github.com/hyp3rd/otlpmetrics/pkg/logging"
	"github.com/hyp3rd/otlpmetrics/pkg/snapshot"
	"github.com/hyp3rd/otlpmetrics/pkg/translate"
	"github.com/hyp3rd/otlpmetrics/pkg/transport"
)

// Result is the outcome of an export call.
type Result = transport.Result

// Export results.
const (
	Success = transport.Success
	Failure = transport.Failure
)

// ErrShutdown is logged when an export is attempted after Shutdown.
var ErrShutdown = ewrap.New("exporter is shut down")

// Exporter pushes metric batches to an OTLP/HTTP collector. It is safe for
// concurrent use and performs no background work of its own.
type Exporter struct {
	cfg        config.TransportConfig
	identity   config.Identity
	client     *transport.Client
	logger     logging.Adapter
	observer   transport.Observer
	stats      *exportStats
	diagServer *diagnostics.Server
	diagCancel context.CancelFunc
	startTime  time.Time

	shutdown atomic.Bool
	once     sync.Once
}

// New resolves the configuration and builds an Exporter. Configuration errors
// are reported here and never at export time.
func New(ctx context.Context, opts ...Option) (*Exporter, error) {
	settings := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&settings)
		}
	}

	identity := config.DefaultIdentity()
	if settings.identity != nil {
		identity = *settings.identity
	}

	cfg, err := config.Build(ctx, settings.explicit, identity, settings.configLoaders()...)
	if err != nil {
		return nil, ewrap.Wrap(err, "resolve exporter configuration")
	}

	logger := settings.logger
	if logger == nil {
		logger = logging.FromConfig(cfg.Logging())
	}

	tel, err := newTelemetry(settings.meterProvider)
	if err != nil {
		return nil, ewrap.Wrap(err, "init self telemetry")
	}

	stats := newExportStats()
	observer := observers{stats, tel}

	transportOpts := append([]transport.Option{
		transport.WithLogger(logger),
		transport.WithObserver(observer),
	}, settings.transportOpts...)

	client, err := transport.New(cfg, transportOpts...)
	if err != nil {
		return nil, ewrap.Wrap(err, "init transport")
	}

	exp := &Exporter{
		cfg:       cfg,
		identity:  identity,
		client:    client,
		logger:    logger,
		observer:  observer,
		stats:     stats,
		startTime: time.Now().UTC(),
	}

	if diag := cfg.Diagnostics(); diag.Enabled {
		server := diagnostics.NewServer(diag, exp, logger)

		// The server outlives New's context and stops with Shutdown.
		diagCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

		err := server.Start(diagCtx)
		if err != nil {
			cancel()
			client.Close()

			return nil, ewrap.Wrap(err, "start diagnostics server")
		}

		exp.diagServer = server
		exp.diagCancel = cancel
	}

	logger.Debug(ctx, "metrics exporter ready",
		attribute.String("endpoint", cfg.Endpoint()),
		attribute.String("path", cfg.Path()),
		attribute.String("compression", cfg.Compression().String()),
	)

	return exp, nil
}

// Config returns the resolved, immutable transport configuration.
func (e *Exporter) Config() config.TransportConfig {
	return e.cfg
}

// Export sends batch within the configured timeout.
func (e *Exporter) Export(ctx context.Context, batch []snapshot.MetricSnapshot) Result {
	return e.export(ctx, batch, e.cfg.Timeout())
}

// ExportWithTimeout sends batch. timeout bounds the whole call, retries included.
func (e *Exporter) ExportWithTimeout(ctx context.Context, batch []snapshot.MetricSnapshot, timeout time.Duration) Result {
	return e.export(ctx, batch, timeout)
}

func (e *Exporter) export(ctx context.Context, batch []snapshot.MetricSnapshot, timeout time.Duration) (result Result) {
	if e.shutdown.Load() {
		return e.fail(ctx, logging.PhaseShutdown, ErrShutdown, "exporter already shut down, dropping metrics")
	}

	defer func() {
		if r := recover(); r != nil {
			result = e.fail(ctx, logging.PhaseEncode, ewrap.Newf("panic: %v", r), "failed to encode metrics request")
		}
	}()

	req := translate.Translate(ctx, batch, e.logger)

	return e.client.SendWithTimeout(ctx, req, timeout)
}

// fail reports a failure that never reached the transport client.
func (e *Exporter) fail(ctx context.Context, phase string, err error, msg string) Result {
	e.logger.Error(ctx, err, msg, logging.Phase(phase))
	e.observer.ObserveResult(ctx, transport.Outcome{
		Result:  Failure,
		Phase:   phase,
		Err:     err,
		Message: msg,
	})

	return Failure
}

// ForceFlush is a no-op: the exporter holds no buffered data.
func (*Exporter) ForceFlush(context.Context) error {
	return nil
}

// Shutdown makes every later Export fail without I/O, cancels in-flight sends
// and stops the diagnostics server. It is idempotent.
func (e *Exporter) Shutdown(ctx context.Context) error {
	var shutdownErr error

	e.once.Do(func() {
		e.shutdown.Store(true)
		e.client.Close()

		if e.diagServer != nil {
			shutdownCtx, cancel := context.WithTimeout(ctx, constants.DefaultShutdownTimeout)
			defer cancel()

			shutdownErr = e.diagServer.Shutdown(shutdownCtx)
			e.diagCancel()
		}

		e.logger.Debug(ctx, "metrics exporter shut down")
	})

	if shutdownErr != nil {
		return ewrap.Wrap(shutdownErr, "shutdown exporter")
	}

	return nil
}

// IsShutdown reports whether Shutdown has been called.
func (e *Exporter) IsShutdown() bool {
	return e.shutdown.Load()
}

// Snapshot implements diagnostics.SnapshotProvider.
func (e *Exporter) Snapshot() diagnostics.Snapshot {
	return diagnostics.Snapshot{
		Library:     e.identity.Name,
		Version:     e.identity.Version,
		Endpoint:    e.cfg.Endpoint(),
		Path:        e.cfg.Path(),
		Compression: e.cfg.Compression().String(),
		Timeout:     e.cfg.Timeout().String(),
		StartTime:   e.startTime,
		Shutdown:    e.shutdown.Load(),
		Exports:     e.stats.counts(),
		LastError:   e.stats.last(),
	}
}
