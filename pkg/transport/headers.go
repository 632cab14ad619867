package transport

import (
	"sort"
	"strings"
)

// DefaultUserAgent is sent when no user-agent header is configured
const DefaultUserAgent = "gohttp/1.0"

// FormatHeaders merges default and request headers into "name: value"
// lines. Names are lower-cased and request headers replace defaults with
// the same name. A user-agent line is added when absent, and an empty
// expect line suppresses "Expect: 100-continue". Lines come out sorted by
// name, followed by the added lines.
func FormatHeaders(defaults, request map[string]string, userAgent string) []string {
	combined := make(map[string]string, len(defaults)+len(request))
	for name, value := range defaults {
		combined[normalizeName(name)] = value
	}
	for name, value := range request {
		combined[normalizeName(name)] = value
	}

	names := make([]string, 0, len(combined))
	for name := range combined {
		if name != "" {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	lines := make([]string, 0, len(names)+2)
	for _, name := range names {
		lines = append(lines, headerLine(name, combined[name]))
	}

	if _, ok := combined["user-agent"]; !ok {
		if userAgent == "" {
			userAgent = DefaultUserAgent
		}
		lines = append(lines, headerLine("user-agent", userAgent))
	}
	if _, ok := combined["expect"]; !ok {
		lines = append(lines, "expect:")
	}

	return lines
}

// ParseHeaderLine splits a "name: value" line. ok is false for lines
// without a name.
func ParseHeaderLine(line string) (name, value string, ok bool) {
	name, value, found := strings.Cut(line, ":")
	name = strings.TrimSpace(name)
	if !found || name == "" {
		return "", "", false
	}
	return name, strings.TrimSpace(value), true
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func headerLine(name, value string) string {
	if value == "" {
		return name + ":"
	}
	return name + ": " + value
}
