package transport

import (
	"context"
	"crypto/x509"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	statuspb "google.golang.org/genproto/googleapis/rpc/status"
	"google.golang.org/protobuf/proto"

	"github.com/hyp3rd/otlpmetrics/pkg/config"
)

func TestRetryableStatus(t *testing.T) {
	t.Parallel()

	cases := map[int]bool{
		http.StatusRequestTimeout:        true,
		http.StatusTooManyRequests:       true,
		http.StatusInternalServerError:   true,
		http.StatusServiceUnavailable:    true,
		http.StatusBadRequest:            false,
		http.StatusUnauthorized:          false,
		http.StatusNotFound:              false,
		http.StatusRequestEntityTooLarge: false,
	}

	for code, want := range cases {
		if got := retryableStatus(code); got != want {
			t.Fatalf("status %d: expected %v, got %v", code, want, got)
		}
	}
}

func TestRetryableError(t *testing.T) {
	t.Parallel()

	wrap := func(err error) error {
		return &url.Error{Op: "Post", URL: "http://collector:4318/v1/metrics", Err: err}
	}

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	cases := []struct {
		name   string
		parent context.Context
		err    error
		want   bool
	}{
		{name: "connection reset", parent: context.Background(), err: wrap(&net.OpError{Op: "read", Net: "tcp", Err: os.NewSyscallError("read", syscall.ECONNRESET)}), want: true},
		{name: "connection refused", parent: context.Background(), err: wrap(&net.OpError{Op: "dial", Net: "tcp", Err: os.NewSyscallError("connect", syscall.ECONNREFUSED)}), want: true},
		{name: "server closed", parent: context.Background(), err: wrap(io.EOF), want: true},
		{name: "dial timeout", parent: context.Background(), err: wrap(&net.OpError{Op: "dial", Net: "tcp", Err: &net.DNSError{Err: "timeout", IsTimeout: true}}), want: true},
		{name: "unexpected", parent: context.Background(), err: wrap(errors.New("something unexpected")), want: false},
		{name: "unexpected without wrapping", parent: context.Background(), err: errors.New("something unexpected"), want: false},
		{name: "attempt deadline", parent: context.Background(), err: wrap(context.DeadlineExceeded), want: true},
		{name: "caller cancelled", parent: cancelled, err: wrap(context.Canceled), want: false},
		{name: "dns not found", parent: context.Background(), err: wrap(&net.DNSError{Err: "no such host", Name: "nowhere", IsNotFound: true}), want: false},
		{name: "unknown authority", parent: context.Background(), err: wrap(x509.UnknownAuthorityError{}), want: false},
		{name: "hostname mismatch", parent: context.Background(), err: wrap(x509.HostnameError{Certificate: &x509.Certificate{}, Host: "collector"}), want: false},
		{name: "circuit open", parent: context.Background(), err: wrap(gobreaker.ErrOpenState), want: false},
		{name: "unsupported scheme", parent: context.Background(), err: wrap(errors.New(`unsupported protocol scheme "ftp"`)), want: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			if got := retryableError(tc.parent, tc.err); got != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestExponentialDelayBounds(t *testing.T) {
	t.Parallel()

	delay := ExponentialDelay(config.RetryConfig{
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     time.Second,
		Multiplier:      2,
	})

	for range 20 {
		first := delay(1)
		if first < 50*time.Millisecond || first > 150*time.Millisecond {
			t.Fatalf("first delay out of range: %v", first)
		}

		third := delay(3)
		if third < 200*time.Millisecond || third > 600*time.Millisecond {
			t.Fatalf("third delay out of range: %v", third)
		}

		capped := delay(10)
		if capped > 1500*time.Millisecond {
			t.Fatalf("delay must respect the max interval: %v", capped)
		}
	}
}

func TestRetryAfter(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	if d, ok := retryAfter("3", now); !ok || d != 3*time.Second {
		t.Fatalf("expected 3s, got %v %v", d, ok)
	}

	if d, ok := retryAfter(now.Add(5*time.Second).Format(http.TimeFormat), now); !ok || d != 5*time.Second {
		t.Fatalf("expected 5s from date, got %v %v", d, ok)
	}

	if d, ok := retryAfter(now.Add(-time.Minute).Format(http.TimeFormat), now); !ok || d != 0 {
		t.Fatalf("past dates mean retry now, got %v %v", d, ok)
	}

	for _, raw := range []string{"", "-1", "soon"} {
		if _, ok := retryAfter(raw, now); ok {
			t.Fatalf("expected %q to be ignored", raw)
		}
	}
}

func TestDecodeStatusIsTotal(t *testing.T) {
	t.Parallel()

	for _, body := range [][]byte{nil, {}, {0xff, 0xff}, {0x12, 0x05, 0x78}} {
		if _, ok := DecodeStatus(body); ok {
			t.Fatalf("expected %q to be rejected", body)
		}
	}

	raw, err := proto.Marshal(&statuspb.Status{Code: 14, Message: "try later"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	st, ok := DecodeStatus(raw)
	if !ok {
		t.Fatal("expected status to decode")
	}

	if got := FormatStatus(st); got != "rpc.Status{message=try later, details=[]}" {
		t.Fatalf("unexpected format %q", got)
	}
}
