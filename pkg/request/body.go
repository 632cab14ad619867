package request

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/jzx17/gohttp/pkg/types"
)

// Content types set by the body helpers
const (
	ContentTypeJSON = "application/json"
	ContentTypeForm = "application/x-www-form-urlencoded"
)

// JSON encodes v as a JSON request body. HTML characters are not escaped.
func JSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrInvalidBody, err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Form encodes data as an application/x-www-form-urlencoded body. Strings
// and byte slices are returned unchanged; nested values are flattened to
// parent[child] keys.
func Form(data any) ([]byte, error) {
	switch d := data.(type) {
	case nil:
		return nil, nil
	case string:
		return []byte(d), nil
	case []byte:
		return d, nil
	}

	pairs, err := Flatten(data)
	if err != nil {
		return nil, err
	}
	return []byte(encodePairs(pairs, false)), nil
}
