// Package logging provides helpers for writing request data to logs safely
package logging

import (
	"net/url"
	"strings"
)

// Redacted replaces sensitive values in logs
const Redacted = "[REDACTED]"

// sensitiveParams contains query parameter names that should be redacted from logs.
// These are matched case-insensitively.
var sensitiveParams = []string{
	"api_key",
	"apikey",
	"token",
	"password",
	"auth",
	"secret",
	"key",
	"credential",
}

// sensitiveHeaders are header names whose values are never logged
var sensitiveHeaders = map[string]struct{}{
	"authorization":       {},
	"proxy-authorization": {},
	"cookie":              {},
	"set-cookie":          {},
	"x-api-key":           {},
}

// SanitizeURL removes sensitive query parameters and user info from a URL
// before logging. Unparseable input is returned without its query.
func SanitizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		if i := strings.IndexByte(raw, '?'); i >= 0 {
			return raw[:i]
		}
		return raw
	}

	safe := *u
	if safe.User != nil {
		safe.User = url.User(Redacted)
	}

	if safe.RawQuery != "" {
		q := safe.Query()
		for param := range q {
			if IsSensitiveParam(param) {
				q.Set(param, Redacted)
			}
		}
		safe.RawQuery = q.Encode()
	}
	return safe.String()
}

// IsSensitiveParam checks if a parameter name matches the sensitive list.
// Comparison is case-insensitive to catch variants like "API_KEY", "Api_Key", etc.
func IsSensitiveParam(param string) bool {
	lower := strings.ToLower(param)
	for _, sensitive := range sensitiveParams {
		if strings.Contains(lower, sensitive) {
			return true
		}
	}
	return false
}

// SanitizeHeader returns value, or Redacted for credential-bearing headers
func SanitizeHeader(name, value string) string {
	if _, ok := sensitiveHeaders[strings.ToLower(strings.TrimSpace(name))]; ok {
		return Redacted
	}
	return value
}
