package response

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jzx17/gohttp/pkg/types"
)

func TestNew_DecodesJSON(t *testing.T) {
	raw := []byte(`{"name":"gohttp","tags":["a","b"],"count":3}`)
	r := New(200, raw, types.Headers{"Content-Type": {"application/json"}}, DecodeOptions{})

	assert.Equal(t, 200, r.StatusCode)
	assert.Equal(t, raw, r.RawBody)
	assert.Equal(t, map[string]any{
		"name":  "gohttp",
		"tags":  []any{"a", "b"},
		"count": float64(3),
	}, r.Body)
	assert.True(t, r.IsSuccess())
	assert.Equal(t, "application/json", r.Headers.Get("content-type"))
}

func TestNew_NonJSONKeepsRaw(t *testing.T) {
	for _, body := range []string{"<html></html>", "", "{broken", `{"a":1} trailing`} {
		t.Run(body, func(t *testing.T) {
			r := New(500, []byte(body), nil, DecodeOptions{})

			assert.Equal(t, []byte(body), r.Body)
			assert.Equal(t, body, r.Text())
			assert.False(t, r.IsSuccess())
			assert.NotNil(t, r.Headers)
		})
	}
}

func TestNew_UseNumber(t *testing.T) {
	raw := []byte(`{"id":12345678901234567890}`)

	plain := New(200, raw, nil, DecodeOptions{})
	assert.IsType(t, float64(0), plain.Body.(map[string]any)["id"])

	precise := New(200, raw, nil, DecodeOptions{UseNumber: true})
	assert.Equal(t, json.Number("12345678901234567890"), precise.Body.(map[string]any)["id"])
}

func TestNew_MaxDepth(t *testing.T) {
	raw := []byte(`[[["deep"]]]`)

	shallow := New(200, raw, nil, DecodeOptions{MaxDepth: 2})
	assert.Equal(t, raw, shallow.Body)

	enough := New(200, raw, nil, DecodeOptions{MaxDepth: 3})
	assert.Equal(t, []any{[]any{[]any{"deep"}}}, enough.Body)

	tooDeep := []byte(strings.Repeat("[", DefaultMaxDepth+1) + strings.Repeat("]", DefaultMaxDepth+1))
	assert.Equal(t, tooDeep, New(200, tooDeep, nil, DecodeOptions{}).Body)
}

func TestNew_Lenient(t *testing.T) {
	raw := append([]byte{0xEF, 0xBB, 0xBF}, []byte("  {\"ok\":true}\n")...)

	strict := New(200, raw, nil, DecodeOptions{})
	assert.Equal(t, raw, strict.Body)

	lenient := New(200, raw, nil, DecodeOptions{Lenient: true})
	assert.Equal(t, map[string]any{"ok": true}, lenient.Body)
}

func TestDecode(t *testing.T) {
	r := New(200, []byte(`{"name":"x","count":2}`), nil, DecodeOptions{})

	var out struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}
	require.NoError(t, r.Decode(&out))
	assert.Equal(t, "x", out.Name)
	assert.Equal(t, 2, out.Count)

	bad := New(200, []byte("nope"), nil, DecodeOptions{})
	assert.Error(t, bad.Decode(&out))
}

func TestDepth(t *testing.T) {
	assert.Equal(t, 0, depth([]byte(`"[[["`)))
	assert.Equal(t, 1, depth([]byte(`{"a":"\"{"}`)))
	assert.Equal(t, 2, depth([]byte(`{"a":[1,2],"b":{}}`)))
}

func TestFromOutcome(t *testing.T) {
	raw := []byte("HTTP/1.1 200 OK\r\nContent-Type: application/json\r\n\r\n[1]")
	outcome := &types.AttemptOutcome{
		StatusCode: 200,
		Headers:    types.Headers{"Content-Type": {"application/json"}},
		Raw:        raw,
		HeaderSize: len(raw) - 3,
	}

	r := FromOutcome(outcome, DecodeOptions{})
	assert.Equal(t, []byte("[1]"), r.RawBody)
	assert.Equal(t, []any{float64(1)}, r.Body)
}
