package config

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/hyp3rd/ewrap"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/hyp3rd/otlpmetrics/internal/constants"
)

const errMsgUnableToReadConfigFromPath = "read config file %q"

// Loader transforms external sources into configuration maps that are decoded onto Settings.
type Loader interface {
	Load(ctx context.Context) (map[string]any, error)
}

// LoaderFunc adapts ordinary functions into Loader.
type LoaderFunc func(ctx context.Context) (map[string]any, error)

// Load implements Loader.
func (lf LoaderFunc) Load(ctx context.Context) (map[string]any, error) {
	return lf(ctx)
}

type loaderSkipError struct {
	err *ewrap.Error
}

func newLoaderSkipError() error {
	return &loaderSkipError{err: ewrap.New("config loader skip")}
}

// Error implements error.
func (l *loaderSkipError) Error() string {
	if l == nil || l.err == nil {
		return ""
	}

	return l.err.Error()
}

// Unwrap implements errors.Wrapper.
func (l *loaderSkipError) Unwrap() error {
	if l == nil {
		return nil
	}

	return l.err
}

// Is implements errors.Is.
func (*loaderSkipError) Is(target error) bool {
	_, ok := target.(*loaderSkipError)

	return ok
}

func isLoaderSkipError(err error) bool {
	if err == nil {
		return false
	}

	var target *loaderSkipError

	return errors.As(err, &target)
}

// DefaultLoaders returns the standard chain, lowest precedence first:
// optional file, generic environment, metrics environment.
func DefaultLoaders(path string) []Loader {
	loaders := make([]Loader, 0, 3)
	if path != "" {
		loaders = append(loaders, FileLoader{Path: path})
	}

	return append(loaders,
		EnvLoader{Scope: ScopeGeneric},
		EnvLoader{Scope: ScopeMetrics},
	)
}

// Load runs loaders sequentially, layering their fields over DefaultSettings().
// Later loaders win. The result is not validated; pass it to Resolve.
func Load(ctx context.Context, loaders ...Loader) (Settings, error) {
	merged := DefaultSettings()

	for _, loader := range loaders {
		if loader == nil {
			continue
		}

		values, err := loader.Load(ctx)
		if err != nil {
			if isLoaderSkipError(err) {
				continue
			}

			return Settings{}, err
		}

		if len(values) == 0 {
			continue
		}

		var layer Settings

		err = decodeInto(&layer, values)
		if err != nil {
			return Settings{}, ewrap.Wrap(err, "decode config")
		}

		merged.Overlay(layer)
	}

	return merged, nil
}

func decodeInto(target *Settings, input map[string]any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "yaml",
		Result:           target,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
		),
	})
	if err != nil {
		return ewrap.Wrap(err, "create decoder")
	}

	err = decoder.Decode(input)
	if err != nil {
		return invalidConfigError("%v", err)
	}

	return nil
}

// FileLoader loads configuration from a YAML file. A missing file is skipped.
type FileLoader struct {
	Path string
	FS   fs.FS
}

// Load implements Loader.
func (fl FileLoader) Load(_ context.Context) (map[string]any, error) {
	path := fl.Path
	if path == "" {
		path = "otlpmetrics.yaml"
	}

	data, err := readFile(fl.FS, path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, newLoaderSkipError()
		}

		return nil, err
	}

	var out map[string]any

	err = yaml.Unmarshal(data, &out)
	if err != nil {
		return nil, ewrap.Wrapf(err, "unmarshal yaml %q", path)
	}

	return sanitizeMap(out), nil
}

func readFile(fsys fs.FS, path string) ([]byte, error) {
	if fsys != nil {
		bytes, err := fs.ReadFile(fsys, filepath.Clean(path))
		if err != nil {
			return nil, ewrap.Wrapf(err, errMsgUnableToReadConfigFromPath, path)
		}

		return bytes, nil
	}

	bytes, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, ewrap.Wrapf(err, errMsgUnableToReadConfigFromPath, path)
	}

	return bytes, nil
}

// Scope selects which family of environment variables an EnvLoader reads.
type Scope int

const (
	// ScopeGeneric reads OTEL_EXPORTER_OTLP_* shared by every signal.
	ScopeGeneric Scope = iota
	// ScopeMetrics reads OTEL_EXPORTER_OTLP_METRICS_* overrides.
	ScopeMetrics
)

var envKeys = map[string]string{
	"ENDPOINT":           "endpoint",
	"CERTIFICATE":        "certificate",
	"CLIENT_CERTIFICATE": "client_certificate",
	"CLIENT_KEY":         "client_key",
	"HEADERS":            "headers",
	"COMPRESSION":        "compression",
	"TIMEOUT":            "timeout",
}

// EnvLoader reads exporter settings from environment variables. Empty values
// are treated as unset.
type EnvLoader struct {
	Scope Scope
	// Lookup defaults to os.LookupEnv.
	Lookup func(key string) (string, bool)
}

// Load implements Loader.
func (el EnvLoader) Load(ctx context.Context) (map[string]any, error) {
	err := ctx.Err()
	if err != nil {
		return nil, ewrap.Wrap(err, "context canceled")
	}

	lookup := el.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}

	prefix := constants.EnvGenericPrefix
	if el.Scope == ScopeMetrics {
		prefix = constants.EnvMetricsPrefix
	}

	result := map[string]any{}

	for suffix, key := range envKeys {
		value, ok := lookup(prefix + suffix)
		if !ok || strings.TrimSpace(value) == "" {
			continue
		}

		result[key] = value
	}

	switch el.Scope {
	case ScopeMetrics:
		if _, ok := result["endpoint"]; ok {
			result["endpoint_verbatim"] = true
		}

		if value, ok := lookup(prefix + "TEMPORALITY_PREFERENCE"); ok && value != "" {
			result["temporality_preference"] = value
		}
	default:
		if value, ok := lookup(constants.EnvSSLVerifyPeer); ok && value != "" {
			result["ssl_verify_peer"] = value
		}

		if value, ok := lookup(constants.EnvSSLVerifyNone); ok && value != "" {
			result["ssl_verify_none"] = value
		}
	}

	if len(result) == 0 {
		return nil, newLoaderSkipError()
	}

	return result, nil
}

func sanitizeMap(in map[string]any) map[string]any {
	data, err := json.Marshal(in)
	if err != nil {
		return in
	}

	var out map[string]any

	err = json.Unmarshal(data, &out)
	if err != nil {
		return in
	}

	return out
}
