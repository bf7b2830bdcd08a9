package transport

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"io"
	"net"
	"net/http"
	"syscall"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sony/gobreaker"
)

// retryableStatus reports whether a collector response may succeed on a later attempt.
func retryableStatus(code int) bool {
	switch {
	case code == http.StatusRequestTimeout, code == http.StatusTooManyRequests:
		return true
	case code >= http.StatusInternalServerError:
		return true
	default:
		return false
	}
}

// retryableError reports whether a transport failure is transient. Only
// timeouts, dropped or refused connections and truncated exchanges are
// retried; anything else, including unexpected errors, is final.
func retryableError(parent context.Context, err error) bool {
	if err == nil || parent.Err() != nil {
		return false
	}

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return false
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
		return false
	}

	if certificateError(err) || !transientError(err) {
		return false
	}

	// The policy still vetoes redirect loops and malformed requests.
	retry, _ := retryablehttp.DefaultRetryPolicy(context.Background(), nil, err)

	return retry
}

func transientError(err error) bool {
	// A per-attempt deadline is not the caller's cancellation; the budget check decides.
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	// Handshakes cut short by the peer surface as EOF or reset.
	return errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF)
}

func certificateError(err error) bool {
	var verifyErr *tls.CertificateVerificationError
	if errors.As(err, &verifyErr) {
		return true
	}

	var unknownAuthority x509.UnknownAuthorityError
	if errors.As(err, &unknownAuthority) {
		return true
	}

	var hostnameErr x509.HostnameError
	if errors.As(err, &hostnameErr) {
		return true
	}

	var invalidErr x509.CertificateInvalidError

	return errors.As(err, &invalidErr)
}
