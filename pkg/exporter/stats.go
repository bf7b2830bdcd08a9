package exporter

import (
	"context"
	"maps"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hyp3rd/otlpmetrics/pkg/diagnostics"
	"github.com/hyp3rd/otlpmetrics/pkg/transport"
)

// exportStats keeps the counters behind the diagnostics snapshot.
type exportStats struct {
	succeeded atomic.Int64
	failed    atomic.Int64
	lastError atomic.Pointer[diagnostics.ExporterError]

	mu      sync.Mutex
	byPhase map[string]int64
}

func newExportStats() *exportStats {
	return &exportStats{byPhase: make(map[string]int64)}
}

func (s *exportStats) recordFailure(phase, message string) {
	s.failed.Add(1)
	s.lastError.Store(&diagnostics.ExporterError{
		Phase:   phase,
		Message: message,
		Time:    time.Now().UTC(),
	})

	s.mu.Lock()
	s.byPhase[phase]++
	s.mu.Unlock()
}

// ObserveAttempt implements transport.Observer.
func (*exportStats) ObserveAttempt(context.Context, int, time.Duration) {}

// ObserveResult implements transport.Observer.
func (s *exportStats) ObserveResult(_ context.Context, outcome transport.Outcome) {
	if outcome.Result == transport.Success {
		s.succeeded.Add(1)

		return
	}

	message := outcome.Message
	if message == "" && outcome.Err != nil {
		message = outcome.Err.Error()
	}

	s.recordFailure(outcome.Phase, message)
}

func (s *exportStats) counts() diagnostics.ExportCounts {
	s.mu.Lock()
	byPhase := maps.Clone(s.byPhase)
	s.mu.Unlock()

	return diagnostics.ExportCounts{
		Succeeded:       s.succeeded.Load(),
		Failed:          s.failed.Load(),
		FailuresByPhase: byPhase,
	}
}

func (s *exportStats) last() diagnostics.ExporterError {
	if last := s.lastError.Load(); last != nil {
		return *last
	}

	return diagnostics.ExporterError{}
}

// observers fans transport events out to several observers.
type observers []transport.Observer

func (o observers) ObserveAttempt(ctx context.Context, statusCode int, elapsed time.Duration) {
	for _, obs := range o {
		obs.ObserveAttempt(ctx, statusCode, elapsed)
	}
}

func (o observers) ObserveResult(ctx context.Context, outcome transport.Outcome) {
	for _, obs := range o {
		obs.ObserveResult(ctx, outcome)
	}
}
