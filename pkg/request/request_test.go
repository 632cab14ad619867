package request

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jzx17/gohttp/pkg/types"
)

func TestValidateURL(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "http://example.com/a/b", "http://example.com/a/b"},
		{"https with port", "https://example.com:8443/x", "https://example.com:8443/x"},
		{"host only", "http://example.com", "http://example.com"},
		{"duplicate slashes", "http://example.com//a///b//", "http://example.com/a/b/"},
		{"query untouched", "http://example.com//a?next=http://other//x", "http://example.com/a?next=http://other//x"},
		{"fragment untouched", "http://example.com/a//b#x//y", "http://example.com/a/b#x//y"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidateURL(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidateURL_Rejects(t *testing.T) {
	for _, in := range []string{"", "example.com/a", "/relative/path", "ftp://example.com/file", "http:///nohost", "HTTP://example.com"} {
		t.Run(in, func(t *testing.T) {
			_, err := ValidateURL(in)
			require.Error(t, err)

			var validationErr *types.ValidationError
			require.True(t, errors.As(err, &validationErr))
			assert.Equal(t, "url", validationErr.Field)
			assert.ErrorIs(t, err, types.ErrInvalidURL)
		})
	}
}

func TestNew(t *testing.T) {
	headers := map[string]string{"Accept": "application/json"}
	r, err := New("http://example.com//items", "post", headers, "payload",
		WithRetryOption(types.EnableRetry), WithHeader("X-Trace", "1"))
	require.NoError(t, err)

	assert.Equal(t, "POST", r.Method())
	assert.Equal(t, "http://example.com/items", r.URL())
	assert.Equal(t, types.EnableRetry, r.RetryOption())
	assert.Equal(t, "payload", r.Body())
	assert.Equal(t, map[string]string{"Accept": "application/json", "X-Trace": "1"}, r.Headers())

	headers["Accept"] = "text/plain"
	assert.Equal(t, "application/json", r.Headers()["Accept"])

	r.SetRetryOption(types.DisableRetry)
	assert.Equal(t, types.DisableRetry, r.RetryOption())
}

func TestNew_Defaults(t *testing.T) {
	r, err := New("https://example.com", "", nil, nil)
	require.NoError(t, err)

	assert.Equal(t, types.MethodGet, r.Method())
	assert.Equal(t, types.UseGlobalSettings, r.RetryOption())
	assert.Empty(t, r.Headers())
}

func TestNew_InvalidURL(t *testing.T) {
	r, err := New("not a url", types.MethodGet, nil, nil)
	assert.Nil(t, r)
	assert.ErrorIs(t, err, types.ErrInvalidURL)
}

func TestQueryURL(t *testing.T) {
	t.Run("GET Structured Body", func(t *testing.T) {
		r, err := New("http://example.com/search", types.MethodGet, nil, map[string]any{
			"q":    "go lang",
			"page": 2,
			"filter": map[string]any{
				"tag": []string{"a", "b"},
			},
		})
		require.NoError(t, err)

		got, err := r.QueryURL()
		require.NoError(t, err)
		assert.Equal(t, "http://example.com/search?filter[tag][0]=a&filter[tag][1]=b&page=2&q=go+lang", got)

		body, err := r.EncodedBody()
		require.NoError(t, err)
		assert.Nil(t, body)
	})

	t.Run("Existing Query", func(t *testing.T) {
		r, err := New("http://example.com/search?x=1", types.MethodGet, nil, map[string]string{"y": "2"})
		require.NoError(t, err)

		got, err := r.QueryURL()
		require.NoError(t, err)
		assert.Equal(t, "http://example.com/search?x=1&y=2", got)
	})

	t.Run("Empty Structured Body", func(t *testing.T) {
		r, err := New("http://example.com/a", types.MethodGet, nil, map[string]string{})
		require.NoError(t, err)

		got, err := r.QueryURL()
		require.NoError(t, err)
		assert.Equal(t, "http://example.com/a", got)
	})

	t.Run("POST Keeps URL", func(t *testing.T) {
		r, err := New("http://example.com/a", types.MethodPost, nil, map[string]string{"y": "2"})
		require.NoError(t, err)

		got, err := r.QueryURL()
		require.NoError(t, err)
		assert.Equal(t, "http://example.com/a", got)
	})

	t.Run("GET String Body", func(t *testing.T) {
		r, err := New("http://example.com/a", types.MethodGet, nil, "raw")
		require.NoError(t, err)

		got, err := r.QueryURL()
		require.NoError(t, err)
		assert.Equal(t, "http://example.com/a", got)

		body, err := r.EncodedBody()
		require.NoError(t, err)
		assert.Equal(t, []byte("raw"), body)
	})
}

func TestEncodedBody(t *testing.T) {
	tests := []struct {
		name string
		body any
		want []byte
	}{
		{"nil", nil, nil},
		{"string", `{"a":1}`, []byte(`{"a":1}`)},
		{"bytes", []byte("abc"), []byte("abc")},
		{"map", map[string]any{"foo": "bar", "bar": "baz"}, []byte("bar=baz&foo=bar")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := New("http://example.com", types.MethodPut, nil, tt.body)
			require.NoError(t, err)

			got, err := r.EncodedBody()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
