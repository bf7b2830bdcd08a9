package config

import (
	"fmt"
	"maps"
	"net/url"
	"strings"
	"unicode/utf8"
)

const userAgentHeader = "User-Agent"

// ParseHeaders accepts either a map or the "k1=v1,k2=v2" form used by
// OTEL_EXPORTER_OTLP_HEADERS and returns a fresh map.
func ParseHeaders(raw any) (map[string]string, error) {
	switch value := raw.(type) {
	case nil:
		return map[string]string{}, nil
	case map[string]string:
		return maps.Clone(value), nil
	case map[string]any:
		out := make(map[string]string, len(value))
		for key, v := range value {
			str, ok := v.(string)
			if !ok {
				return nil, invalidConfigError("headers value for key %q must be a string, got %T", key, v)
			}

			out[key] = str
		}

		return out, nil
	case string:
		return parseHeaderString(value)
	default:
		return nil, invalidConfigError("headers must be a map or a string, got %T", raw)
	}
}

func parseHeaderString(raw string) (map[string]string, error) {
	out := map[string]string{}

	for entry := range strings.SplitSeq(raw, ",") {
		key, value, found := strings.Cut(entry, "=")
		if !found {
			return nil, invalidConfigError("headers entry %q is not of the form key=value", entry)
		}

		decodedKey, err := decodeHeaderPart(key)
		if err != nil {
			return nil, err
		}

		decodedValue, err := decodeHeaderPart(value)
		if err != nil {
			return nil, err
		}

		if decodedKey == "" || decodedValue == "" {
			return nil, invalidConfigError("headers entry %q has an empty key or value", entry)
		}

		out[decodedKey] = decodedValue
	}

	return out, nil
}

func decodeHeaderPart(part string) (string, error) {
	decoded, err := url.QueryUnescape(strings.TrimSpace(part))
	if err != nil {
		return "", invalidConfigError("headers entry %q is not percent encoded: %v", part, err)
	}

	if !utf8.ValidString(decoded) {
		return "", invalidConfigError("headers entry %q does not decode to valid UTF-8", part)
	}

	return strings.TrimSpace(decoded), nil
}

// withUserAgent leaves exactly one User-Agent entry: any caller value followed
// by the library default.
func withUserAgent(headers map[string]string, identity Identity) map[string]string {
	defaultAgent := identity.UserAgent()

	var caller []string

	for key, value := range headers {
		if strings.EqualFold(key, userAgentHeader) {
			if value != "" {
				caller = append(caller, value)
			}

			delete(headers, key)
		}
	}

	if len(caller) == 0 {
		headers[userAgentHeader] = defaultAgent

		return headers
	}

	headers[userAgentHeader] = fmt.Sprintf("%s %s", strings.Join(caller, " "), defaultAgent)

	return headers
}
