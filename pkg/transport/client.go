// Package transport delivers encoded OTLP metrics requests to a collector over
// HTTP, retrying transient failures within a per-call time budget.
package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/hyp3rd/ewrap"
	"go.opentelemetry.io/otel/attribute"
	colmetricspb "go.opentelemetry.io/proto/otlp/collector/metrics/v1"
	"golang.org/x/net/http2"
	"google.golang.org/protobuf/proto"

	"github.com/hyp3rd/otlpmetrics/pkg/config"
	"github.com/hyp3rd/otlpmetrics/pkg/logging"
)

const (
	contentTypeProtobuf = "application/x-protobuf"
	encodingGzip        = "gzip"

	maxResponseBody = 64 << 10

	http2ReadIdleTimeout = 30 * time.Second
	http2PingTimeout     = 15 * time.Second
)

type verdict int

const (
	verdictSent verdict = iota
	verdictRetry
	verdictTerminal
)

// attemptResult carries everything the state machine needs to decide the next
// transition and, on failure, the single diagnostic line to emit.
type attemptResult struct {
	verdict    verdict
	phase      string
	err        error
	msg        string
	attrs      []attribute.KeyValue
	statusCode int
	retryAfter time.Duration
	hasRetry   bool
}

// Client owns the HTTP connection pool and the retry state machine. It is safe
// for concurrent use.
type Client struct {
	cfg         config.TransportConfig
	url         string
	headers     map[string]string
	httpClient  *http.Client
	opts        options
	maxAttempts int

	stopCtx  context.Context //nolint:containedctx // links Close to in-flight sends.
	stop     context.CancelFunc
	stopOnce sync.Once
}

// New builds a Client from a resolved configuration.
func New(cfg config.TransportConfig, opts ...Option) (*Client, error) {
	o := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	retry := cfg.Retry()
	if o.delay == nil {
		o.delay = ExponentialDelay(retry)
	}

	rt := o.roundTripper
	if rt == nil {
		built, err := newHTTPTransport(cfg)
		if err != nil {
			return nil, err
		}

		rt = built
	}

	if breaker := cfg.CircuitBreaker(); breaker.Enabled {
		rt = newCircuitRoundTripper(rt, breaker, o.logger)
	}

	stopCtx, stop := context.WithCancel(context.Background())

	return &Client{
		cfg:         cfg,
		url:         cfg.URL(),
		headers:     cfg.Headers(),
		httpClient:  &http.Client{Transport: rt},
		opts:        o,
		maxAttempts: max(retry.MaxAttempts, 1),
		stopCtx:     stopCtx,
		stop:        stop,
	}, nil
}

func newHTTPTransport(cfg config.TransportConfig) (*http.Transport, error) {
	base, ok := http.DefaultTransport.(*http.Transport)
	if !ok {
		base = &http.Transport{}
	}

	tr := base.Clone()
	tr.TLSClientConfig = cfg.TLSClientConfig()

	if cfg.UseTLS() {
		h2, err := http2.ConfigureTransports(tr)
		if err != nil {
			return nil, ewrap.Wrap(err, "configure http2 transport")
		}

		h2.ReadIdleTimeout = http2ReadIdleTimeout
		h2.PingTimeout = http2PingTimeout
	}

	return tr, nil
}

// Send delivers req within the configured timeout.
func (c *Client) Send(ctx context.Context, req *colmetricspb.ExportMetricsServiceRequest) Result {
	return c.SendWithTimeout(ctx, req, c.cfg.Timeout())
}

// SendWithTimeout delivers req. The timeout bounds the whole call, retries included.
func (c *Client) SendWithTimeout(ctx context.Context, req *colmetricspb.ExportMetricsServiceRequest, timeout time.Duration) Result {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	unlink := context.AfterFunc(c.stopCtx, cancel)
	defer unlink()

	body, encoding, err := c.encode(req)
	if err != nil {
		return c.fail(ctx, 0, attemptResult{phase: logging.PhaseEncode, err: err, msg: "failed to encode metrics request"})
	}

	deadline := c.opts.clock.Now().Add(timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}

	for attempt := 1; ; attempt++ {
		remaining := deadline.Sub(c.opts.clock.Now())
		if remaining <= 0 {
			return c.fail(ctx, attempt-1, attemptResult{
				phase: logging.PhaseBudget,
				err:   context.DeadlineExceeded,
				msg:   "export timeout exhausted before the request could be sent",
			})
		}

		res := c.attempt(ctx, body, encoding, remaining)

		switch res.verdict {
		case verdictSent:
			c.opts.observer.ObserveResult(ctx, Outcome{Result: Success, Attempts: attempt})

			return Success
		case verdictTerminal:
			return c.fail(ctx, attempt, res)
		case verdictRetry:
		}

		if attempt >= c.maxAttempts {
			res.attrs = append(res.attrs, attribute.String("retry.exhausted", "max_attempts"))

			return c.fail(ctx, attempt, res)
		}

		delay := c.opts.delay(attempt)
		if res.hasRetry {
			delay = res.retryAfter
		}

		if c.opts.clock.Now().Add(delay).After(deadline) {
			res.attrs = append(res.attrs, attribute.String("retry.exhausted", "budget"))

			return c.fail(ctx, attempt, res)
		}

		c.opts.logger.Debug(ctx, "retrying metrics export",
			attribute.Int("attempt", attempt),
			attribute.String("delay", delay.String()),
			logging.Phase(res.phase),
		)

		err = c.opts.clock.Sleep(ctx, delay)
		if err != nil {
			return c.fail(ctx, attempt, attemptResult{
				phase: c.interruptedPhase(),
				err:   err,
				msg:   "export interrupted during backoff",
			})
		}
	}
}

// Close cancels in-flight sends and releases idle connections. It is idempotent.
func (c *Client) Close() {
	c.stopOnce.Do(func() {
		c.stop()
		c.httpClient.CloseIdleConnections()
	})
}

func (c *Client) encode(req *colmetricspb.ExportMetricsServiceRequest) ([]byte, string, error) {
	payload, err := c.opts.marshal(req)
	if err != nil {
		return nil, "", ewrap.Wrap(err, "marshal export request")
	}

	if c.cfg.Compression() != config.CompressionGzip {
		return payload, "", nil
	}

	compressed, err := gzipBytes(payload)
	if err != nil {
		return nil, "", err
	}

	return compressed, encodingGzip, nil
}

func (c *Client) attempt(ctx context.Context, body []byte, encoding string, remaining time.Duration) attemptResult {
	attemptCtx, cancel := context.WithTimeout(ctx, remaining)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return attemptResult{verdict: verdictTerminal, phase: logging.PhaseSendBytes, err: err, msg: "failed to build export request"}
	}

	for key, value := range c.headers {
		req.Header[key] = []string{value}
	}

	req.Header.Set("Content-Type", contentTypeProtobuf)

	if encoding != "" {
		req.Header.Set("Content-Encoding", encoding)
	}

	start := c.opts.clock.Now()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.opts.observer.ObserveAttempt(ctx, 0, c.opts.clock.Now().Sub(start))

		res := attemptResult{verdict: verdictTerminal, phase: logging.PhaseSendBytes, err: err, msg: "unexpected error sending metrics to collector"}
		if retryableError(ctx, err) {
			res.verdict = verdictRetry
			res.msg = "failed to send metrics to collector"
		}

		return res
	}

	defer func() { _ = resp.Body.Close() }()

	c.opts.observer.ObserveAttempt(ctx, resp.StatusCode, c.opts.clock.Now().Sub(start))

	payload, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if readErr != nil {
		c.opts.logger.Debug(ctx, "failed to read collector response", attribute.String("error", readErr.Error()))
	}

	return c.classifyResponse(ctx, resp, payload)
}

func (c *Client) classifyResponse(ctx context.Context, resp *http.Response, body []byte) attemptResult {
	code := resp.StatusCode
	protobufBody := strings.HasPrefix(strings.ToLower(resp.Header.Get("Content-Type")), contentTypeProtobuf)

	if code >= http.StatusOK && code < http.StatusMultipleChoices {
		if protobufBody {
			c.logPartialSuccess(ctx, body)
		}

		return attemptResult{verdict: verdictSent, statusCode: code}
	}

	res := attemptResult{
		verdict:    verdictTerminal,
		statusCode: code,
		err:        ewrap.Newf("collector responded with status %d", code),
		phase:      logging.PhaseHTTPStatus,
		attrs:      []attribute.KeyValue{attribute.Int("http.code", code)},
	}

	switch {
	case code == http.StatusNotFound:
		res.msg = fmt.Sprintf("%shttp.code=404 for uri: '%s'", receivedPrefix, c.cfg.Path())
	case protobufBody:
		if st, ok := DecodeStatus(body); ok {
			res.phase = logging.PhaseRPCStatus
			res.msg = receivedPrefix + FormatStatus(st)
			res.attrs = append(res.attrs, attribute.String("rpc.code", StatusCodeName(st)))

			break
		}

		fallthrough
	default:
		res.msg = fmt.Sprintf("%shttp.code=%d for uri: '%s'", receivedPrefix, code, c.cfg.Path())
		if len(body) > 0 {
			res.attrs = append(res.attrs, attribute.String("http.body", truncateBody(body)))
		}
	}

	if retryableStatus(code) {
		res.verdict = verdictRetry
		res.retryAfter, res.hasRetry = retryAfter(resp.Header.Get("Retry-After"), c.opts.clock.Now())
	}

	return res
}

func (c *Client) logPartialSuccess(ctx context.Context, body []byte) {
	if len(body) == 0 {
		return
	}

	var resp colmetricspb.ExportMetricsServiceResponse

	err := proto.Unmarshal(body, &resp)
	if err != nil {
		return
	}

	partial := resp.GetPartialSuccess()
	if partial == nil || (partial.GetRejectedDataPoints() == 0 && partial.GetErrorMessage() == "") {
		return
	}

	c.opts.logger.Warn(ctx, "collector partially accepted metrics",
		attribute.Int64("rejected_data_points", partial.GetRejectedDataPoints()),
		attribute.String("error_message", partial.GetErrorMessage()),
	)
}

// fail emits the one error line for a failed call.
func (c *Client) fail(ctx context.Context, attempts int, res attemptResult) Result {
	attrs := append([]attribute.KeyValue{
		logging.Phase(res.phase),
		attribute.Int("attempts", attempts),
	}, res.attrs...)

	c.opts.logger.Error(ctx, res.err, res.msg, attrs...)
	c.opts.observer.ObserveResult(ctx, Outcome{
		Result:   Failure,
		Attempts: attempts,
		Phase:    res.phase,
		Err:      res.err,
		Message:  res.msg,
	})

	return Failure
}

func (c *Client) interruptedPhase() string {
	if c.stopCtx.Err() != nil {
		return logging.PhaseShutdown
	}

	return logging.PhaseBudget
}
