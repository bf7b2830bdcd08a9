package config_test

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hyp3rd/otlpmetrics/pkg/config"
)

func TestResolvePathDerivation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		endpoint string
		verbatim bool
		wantPath string
	}{
		{name: "generic without slash", endpoint: "https://host:1234", wantPath: "/v1/metrics"},
		{name: "generic with slash", endpoint: "https://host:1234/", wantPath: "/v1/metrics"},
		{name: "generic with base path", endpoint: "https://host/base", wantPath: "/base/v1/metrics"},
		{name: "explicit custom path", endpoint: "https://host/custom/path", verbatim: true, wantPath: "/custom/path"},
		{name: "explicit without path", endpoint: "http://localhost:4321", verbatim: true, wantPath: ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			settings := config.DefaultSettings()
			settings.Endpoint = strPtr(tc.endpoint)
			settings.EndpointVerbatim = tc.verbatim

			cfg, err := config.Resolve(settings, testIdentity)
			if err != nil {
				t.Fatalf("Resolve returned error: %v", err)
			}

			if cfg.Path() != tc.wantPath {
				t.Fatalf("expected path %q, got %q", tc.wantPath, cfg.Path())
			}
		})
	}
}

func TestResolveRejectsInvalidEndpoint(t *testing.T) {
	t.Parallel()

	for _, endpoint := range []string{"not a url", "ftp://host:21", "http://", "://missing"} {
		settings := config.DefaultSettings()
		settings.Endpoint = strPtr(endpoint)

		_, err := config.Resolve(settings, testIdentity)
		if !errors.Is(err, config.ErrInvalidConfig) {
			t.Fatalf("expected ErrInvalidConfig for %q, got %v", endpoint, err)
		}
	}
}

func TestResolveCompression(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw     string
		want    config.Compression
		wantErr bool
	}{
		{raw: "gzip", want: config.CompressionGzip},
		{raw: "none", want: config.CompressionNone},
		{raw: "", want: config.CompressionUnset},
		{raw: "flate", wantErr: true},
		{raw: "GZIP", wantErr: true},
	}

	for _, tc := range tests {
		settings := config.DefaultSettings()
		settings.Compression = strPtr(tc.raw)

		cfg, err := config.Resolve(settings, testIdentity)
		if tc.wantErr {
			if !errors.Is(err, config.ErrInvalidConfig) {
				t.Fatalf("expected ErrInvalidConfig for %q, got %v", tc.raw, err)
			}

			continue
		}

		if err != nil {
			t.Fatalf("Resolve(%q) returned error: %v", tc.raw, err)
		}

		if cfg.Compression() != tc.want {
			t.Fatalf("expected %v for %q, got %v", tc.want, tc.raw, cfg.Compression())
		}
	}
}

func TestResolveTimeout(t *testing.T) {
	t.Parallel()

	settings := config.DefaultSettings()
	settings.Timeout = strPtr("0")

	cfg, err := config.Resolve(settings, testIdentity)
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}

	if cfg.Timeout() != 0 {
		t.Fatalf("expected zero timeout, got %s", cfg.Timeout())
	}

	for _, raw := range []string{"-1", "soon", "NaN"} {
		settings.Timeout = strPtr(raw)

		_, err = config.Resolve(settings, testIdentity)
		if !errors.Is(err, config.ErrInvalidConfig) {
			t.Fatalf("expected ErrInvalidConfig for timeout %q, got %v", raw, err)
		}
	}
}

func TestResolveVerifyMode(t *testing.T) {
	t.Setenv("OTEL_GO_EXPORTER_OTLP_SSL_VERIFY_NONE", "true")

	cfg, err := config.Build(context.Background(), config.Settings{}, testIdentity, config.DefaultLoaders("")...)
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}

	if cfg.TLS().VerifyMode != config.VerifyNone {
		t.Fatalf("expected verify none, got %s", cfg.TLS().VerifyMode)
	}

	if tlsCfg := cfg.TLSClientConfig(); tlsCfg == nil || !tlsCfg.InsecureSkipVerify {
		t.Fatal("expected tls config skipping verification")
	}

	t.Setenv("OTEL_GO_EXPORTER_OTLP_SSL_VERIFY_PEER", "true")

	cfg, err = config.Build(context.Background(), config.Settings{}, testIdentity, config.DefaultLoaders("")...)
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}

	if cfg.TLS().VerifyMode != config.VerifyPeer {
		t.Fatalf("expected verify peer to win, got %s", cfg.TLS().VerifyMode)
	}

	cfg, err = config.Build(context.Background(), config.Settings{SSLVerifyMode: strPtr("none")}, testIdentity,
		config.DefaultLoaders("")...)
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}

	if cfg.TLS().VerifyMode != config.VerifyNone {
		t.Fatalf("expected explicit verify none to win, got %s", cfg.TLS().VerifyMode)
	}
}

func TestResolveTLSMaterial(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	certPath, keyPath := writeSelfSignedPair(t, dir)

	settings := config.DefaultSettings()
	settings.Endpoint = strPtr("https://collector:4318")
	settings.Certificate = strPtr(certPath)
	settings.ClientCertificate = strPtr(certPath)
	settings.ClientKey = strPtr(keyPath)

	cfg, err := config.Resolve(settings, testIdentity)
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}

	if !cfg.UseTLS() {
		t.Fatal("expected https endpoint to use tls")
	}

	tlsCfg := cfg.TLSClientConfig()
	if tlsCfg == nil || tlsCfg.RootCAs == nil || len(tlsCfg.Certificates) != 1 {
		t.Fatalf("expected root pool and client certificate, got %#v", tlsCfg)
	}

	settings.ClientKey = nil

	_, err = config.Resolve(settings, testIdentity)
	if !errors.Is(err, config.ErrInvalidConfig) {
		t.Fatalf("expected error for certificate without key, got %v", err)
	}

	settings.Certificate = strPtr(filepath.Join(dir, "missing.pem"))
	settings.ClientCertificate = nil

	_, err = config.Resolve(settings, testIdentity)
	if !errors.Is(err, config.ErrInvalidConfig) {
		t.Fatalf("expected error for missing certificate file, got %v", err)
	}
}

func writeSelfSignedPair(t *testing.T, dir string) (string, string) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	template := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "collector"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		IsCA:                  true,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
		DNSNames:              []string{"collector"},
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("create certificate: %v", err)
	}

	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		t.Fatalf("marshal key: %v", err)
	}

	certPath := filepath.Join(dir, "cert.pem")
	keyPath := filepath.Join(dir, "key.pem")

	err = os.WriteFile(certPath, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), 0o600)
	if err != nil {
		t.Fatalf("write certificate: %v", err)
	}

	err = os.WriteFile(keyPath, pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}), 0o600)
	if err != nil {
		t.Fatalf("write key: %v", err)
	}

	return certPath, keyPath
}
