package types

import (
	"sort"
	"strings"
)

// Headers maps a header name, as received, to its values in arrival order.
// Lookups through the methods are case-insensitive.
type Headers map[string][]string

// Get returns the first value for name, or "" if absent
func (h Headers) Get(name string) string {
	if v := h.Values(name); len(v) > 0 {
		return v[0]
	}
	return ""
}

// Lookup returns the first value for name and whether the header is present
func (h Headers) Lookup(name string) (string, bool) {
	v := h.Values(name)
	if v == nil {
		return "", false
	}
	if len(v) == 0 {
		return "", true
	}
	return v[0], true
}

// Values returns all values for name
func (h Headers) Values(name string) []string {
	if v, ok := h[name]; ok {
		return v
	}
	for k, v := range h {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return nil
}

// Has reports whether name is present
func (h Headers) Has(name string) bool {
	return h.Values(name) != nil
}

// Names returns the header names in sorted order
func (h Headers) Names() []string {
	names := make([]string, 0, len(h))
	for k := range h {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// ParseHeaders parses a raw header block into Headers and returns the status
// line separately. Repeated headers collect every value. A line starting with
// a tab continues the previous header's last value.
func ParseHeaders(raw string) (Headers, string) {
	headers := make(Headers)
	var statusLine, key string

	for _, line := range strings.Split(raw, "\n") {
		if strings.HasPrefix(line, "\t") {
			if vals := headers[key]; key != "" && len(vals) > 0 {
				vals[len(vals)-1] += "\r\n\t" + strings.TrimSpace(line)
			}
			continue
		}

		name, value, found := strings.Cut(line, ":")
		if !found {
			if key == "" && statusLine == "" {
				statusLine = strings.TrimSpace(name)
			}
			continue
		}

		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		headers[name] = append(headers[name], strings.TrimSpace(value))
		key = name
	}

	return headers, statusLine
}
