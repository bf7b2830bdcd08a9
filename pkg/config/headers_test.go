package config_test

import (
	"errors"
	"maps"
	"strings"
	"testing"

	"github.com/hyp3rd/otlpmetrics/pkg/config"
)

func resolveHeaders(t *testing.T, headers any) map[string]string {
	t.Helper()

	settings := config.DefaultSettings()
	settings.Headers = headers

	cfg, err := config.Resolve(settings, testIdentity)
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}

	return cfg.Headers()
}

func TestHeadersMapAndStringAgree(t *testing.T) {
	t.Parallel()

	fromMap := resolveHeaders(t, map[string]string{"token": "über"})
	fromString := resolveHeaders(t, "token=%C3%BCber")

	want := map[string]string{"token": "über", "User-Agent": testUserAgent}
	if !maps.Equal(fromMap, want) {
		t.Fatalf("unexpected headers from map: %#v", fromMap)
	}

	if !maps.Equal(fromString, want) {
		t.Fatalf("unexpected headers from string: %#v", fromString)
	}
}

func TestHeadersStringForms(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  map[string]string
	}{
		{
			name:  "split on first equals",
			input: "a=b,c=d==,e=f",
			want:  map[string]string{"a": "b", "c": "d==", "e": "f"},
		},
		{
			name:  "trims whitespace",
			input: "   a   =  b  ,c=d , e=f",
			want:  map[string]string{"a": "b", "c": "d", "e": "f"},
		},
		{
			name:  "decodes keys",
			input: "%C3%BCber=token",
			want:  map[string]string{"über": "token"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := config.ParseHeaders(tc.input)
			if err != nil {
				t.Fatalf("ParseHeaders returned error: %v", err)
			}

			if !maps.Equal(got, tc.want) {
				t.Fatalf("expected %#v, got %#v", tc.want, got)
			}
		})
	}
}

func TestHeadersMalformed(t *testing.T) {
	t.Parallel()

	inputs := []any{
		"a = ",
		",",
		"c=hi%F3",
		"this is not a header",
		"",
		42,
		[]string{"a=b"},
	}

	for _, input := range inputs {
		settings := config.DefaultSettings()
		settings.Headers = input

		_, err := config.Resolve(settings, testIdentity)
		if err == nil {
			t.Fatalf("expected error for headers %#v", input)
		}

		if !errors.Is(err, config.ErrInvalidConfig) {
			t.Fatalf("expected ErrInvalidConfig for %#v, got %v", input, err)
		}

		if !strings.Contains(err.Error(), "headers") {
			t.Fatalf("expected message to mention headers for %#v, got %q", input, err.Error())
		}
	}
}

func TestHeadersUserAgentAppended(t *testing.T) {
	t.Parallel()

	headers := resolveHeaders(t, "User-Agent=%C3%BCber/3.2.1")
	if got := headers["User-Agent"]; got != "über/3.2.1 "+testUserAgent {
		t.Fatalf("unexpected user agent %q", got)
	}

	headers = resolveHeaders(t, map[string]string{"user-agent": "custom/1"})
	if len(headers) != 1 || headers["User-Agent"] != "custom/1 "+testUserAgent {
		t.Fatalf("expected a single merged user agent, got %#v", headers)
	}
}

func TestHeadersMutationIsolation(t *testing.T) {
	t.Parallel()

	callerHeaders := map[string]string{"foo": "bar"}

	settings := config.DefaultSettings()
	settings.Headers = callerHeaders

	cfg, err := config.Resolve(settings, testIdentity)
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}

	callerHeaders["foo"] = "baz"
	callerHeaders["extra"] = "value"

	got := cfg.Headers()
	if got["foo"] != "bar" || got["extra"] != "" {
		t.Fatalf("resolved headers followed caller mutation: %#v", got)
	}

	got["foo"] = "mutated"
	if cfg.Headers()["foo"] != "bar" {
		t.Fatal("accessor returned shared map")
	}
}
