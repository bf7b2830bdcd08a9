package config

import (
	"crypto/tls"
	"crypto/x509"
	"os"

	"github.com/hyp3rd/ewrap"
)

// TLSSettings holds the resolved TLS material paths and verify mode.
type TLSSettings struct {
	CAFile     string
	CertFile   string
	KeyFile    string
	VerifyMode VerifyMode
}

// buildTLSConfig reads and parses the configured files. A nil config is
// returned when nothing deviates from the system defaults.
func buildTLSConfig(settings TLSSettings) (*tls.Config, error) {
	if settings.CAFile == "" && settings.CertFile == "" && settings.KeyFile == "" && settings.VerifyMode == VerifyPeer {
		return nil, nil //nolint:nilnil // system defaults apply
	}

	tlsCfg := &tls.Config{
		MinVersion: tls.VersionTLS12,
		//nolint:gosec // allow insecure skip verify via config.
		InsecureSkipVerify: settings.VerifyMode == VerifyNone,
	}

	if settings.CAFile != "" {
		data, err := os.ReadFile(settings.CAFile)
		if err != nil {
			return nil, ewrap.Wrapf(ErrInvalidConfig, "read certificate file %s: %v", settings.CAFile, err)
		}

		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(data) {
			return nil, invalidConfigError("failed to parse certificate file %s", settings.CAFile)
		}

		tlsCfg.RootCAs = pool
	}

	if settings.CertFile != "" || settings.KeyFile != "" {
		if settings.CertFile == "" || settings.KeyFile == "" {
			return nil, invalidConfigError("client_certificate and client_key must both be set")
		}

		cert, err := tls.LoadX509KeyPair(settings.CertFile, settings.KeyFile)
		if err != nil {
			return nil, ewrap.Wrapf(ErrInvalidConfig, "load client certificate: %v", err)
		}

		tlsCfg.Certificates = []tls.Certificate{cert}
	}

	return tlsCfg, nil
}
