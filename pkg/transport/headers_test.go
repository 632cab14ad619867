package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatHeaders(t *testing.T) {
	t.Run("Defaults Added", func(t *testing.T) {
		lines := FormatHeaders(nil, map[string]string{"Accept": "application/json"}, "")

		assert.Equal(t, []string{
			"accept: application/json",
			"user-agent: " + DefaultUserAgent,
			"expect:",
		}, lines)
	})

	t.Run("Request Overrides Defaults Case Insensitively", func(t *testing.T) {
		lines := FormatHeaders(
			map[string]string{"X-Token": "default", "Accept": "*/*"},
			map[string]string{"x-token": "request"},
			"custom/2.0",
		)

		assert.Equal(t, []string{
			"accept: */*",
			"x-token: request",
			"user-agent: custom/2.0",
			"expect:",
		}, lines)
	})

	t.Run("Explicit User Agent And Expect", func(t *testing.T) {
		lines := FormatHeaders(nil, map[string]string{"User-Agent": "mine", "Expect": ""}, "ignored")

		assert.Equal(t, []string{"expect:", "user-agent: mine"}, lines)
	})

	t.Run("Empty Value Kept As Suppression Line", func(t *testing.T) {
		lines := FormatHeaders(map[string]string{"Accept-Encoding": "gzip"}, map[string]string{"accept-encoding": ""}, "")

		assert.Contains(t, lines, "accept-encoding:")
		assert.NotContains(t, lines, "accept-encoding: gzip")
	})

	t.Run("Names Trimmed", func(t *testing.T) {
		lines := FormatHeaders(nil, map[string]string{"  X-Pad ": "v", " ": "dropped"}, "")

		assert.Equal(t, "x-pad: v", lines[0])
		assert.Len(t, lines, 3)
	})
}

func TestParseHeaderLine(t *testing.T) {
	tests := []struct {
		line  string
		name  string
		value string
		ok    bool
	}{
		{"accept: application/json", "accept", "application/json", true},
		{"expect:", "expect", "", true},
		{"x-url: http://a:1/b", "x-url", "http://a:1/b", true},
		{"no colon", "", "", false},
		{": value", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			name, value, ok := ParseHeaderLine(tt.line)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.name, name)
			assert.Equal(t, tt.value, value)
		})
	}
}
