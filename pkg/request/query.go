package request

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/jzx17/gohttp/pkg/types"
)

// bracketUnescaper restores literal brackets in escaped keys
var bracketUnescaper = strings.NewReplacer("%5B", "[", "%5D", "]")

// Pair is one flattened key/value parameter
type Pair struct {
	Key   string
	Value string
}

// BuildQuery flattens data into a query string. Nested keys take the form
// parent[child] with literal brackets; keys and values are otherwise escaped.
// Map keys are emitted in sorted order.
func BuildQuery(data any) (string, error) {
	pairs, err := Flatten(data)
	if err != nil {
		return "", err
	}
	return encodePairs(pairs, true), nil
}

// Flatten turns a structured value into key/value pairs. Nil values are
// skipped and booleans become "1" or "0".
func Flatten(data any) ([]Pair, error) {
	if values, ok := data.(url.Values); ok {
		return flattenValues(values), nil
	}

	v := indirect(reflect.ValueOf(data))
	if !v.IsValid() {
		return nil, nil
	}

	switch v.Kind() {
	case reflect.Map, reflect.Struct, reflect.Slice, reflect.Array:
	default:
		return nil, fmt.Errorf("%w: cannot build parameters from %T", types.ErrInvalidBody, data)
	}

	var pairs []Pair
	if err := flatten("", v, &pairs); err != nil {
		return nil, err
	}
	return pairs, nil
}

func flattenValues(values url.Values) []Pair {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var pairs []Pair
	for _, k := range keys {
		for _, v := range values[k] {
			pairs = append(pairs, Pair{Key: k, Value: v})
		}
	}
	return pairs
}

func flatten(prefix string, v reflect.Value, out *[]Pair) error {
	v = indirect(v)
	if !v.IsValid() {
		return nil
	}

	switch v.Kind() {
	case reflect.Map:
		keys := v.MapKeys()
		names := make([]string, len(keys))
		byName := make(map[string]reflect.Value, len(keys))
		for i, k := range keys {
			names[i] = fmt.Sprint(k.Interface())
			byName[names[i]] = v.MapIndex(k)
		}
		sort.Strings(names)
		for _, name := range names {
			if err := flatten(childKey(prefix, name), byName[name], out); err != nil {
				return err
			}
		}
		return nil

	case reflect.Slice, reflect.Array:
		if v.Kind() == reflect.Slice && v.Type().Elem().Kind() == reflect.Uint8 {
			*out = append(*out, Pair{Key: prefix, Value: string(v.Bytes())})
			return nil
		}
		for i := 0; i < v.Len(); i++ {
			if err := flatten(childKey(prefix, strconv.Itoa(i)), v.Index(i), out); err != nil {
				return err
			}
		}
		return nil

	case reflect.Struct:
		generic, err := toGeneric(v.Interface())
		if err != nil {
			return err
		}
		gv := reflect.ValueOf(generic)
		if gv.IsValid() && gv.Kind() != reflect.Map {
			return appendScalar(prefix, gv, out)
		}
		return flatten(prefix, gv, out)

	default:
		return appendScalar(prefix, v, out)
	}
}

func appendScalar(key string, v reflect.Value, out *[]Pair) error {
	if key == "" {
		return fmt.Errorf("%w: scalar value without a key", types.ErrInvalidBody)
	}

	var s string
	switch v.Kind() {
	case reflect.Bool:
		if v.Bool() {
			s = "1"
		} else {
			s = "0"
		}
	case reflect.Float32:
		s = strconv.FormatFloat(v.Float(), 'f', -1, 32)
	case reflect.Float64:
		s = strconv.FormatFloat(v.Float(), 'f', -1, 64)
	default:
		s = fmt.Sprint(v.Interface())
	}
	*out = append(*out, Pair{Key: key, Value: s})
	return nil
}

// toGeneric converts a struct through its JSON form so field tags apply
func toGeneric(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrInvalidBody, err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrInvalidBody, err)
	}
	return generic, nil
}

func indirect(v reflect.Value) reflect.Value {
	for v.IsValid() && (v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface) {
		if v.IsNil() {
			return reflect.Value{}
		}
		v = v.Elem()
	}
	return v
}

func childKey(parent, key string) string {
	if parent == "" {
		return key
	}
	return parent + "[" + key + "]"
}

// encodePairs joins pairs with '&'. literalBrackets keeps '[' and ']' in keys unescaped.
func encodePairs(pairs []Pair, literalBrackets bool) string {
	var sb strings.Builder
	for i, p := range pairs {
		if i > 0 {
			sb.WriteByte('&')
		}
		key := url.QueryEscape(p.Key)
		if literalBrackets {
			key = bracketUnescaper.Replace(key)
		}
		sb.WriteString(key)
		sb.WriteByte('=')
		sb.WriteString(url.QueryEscape(p.Value))
	}
	return sb.String()
}

func isStructured(body any) bool {
	switch body.(type) {
	case nil, string, []byte:
		return false
	}
	v := indirect(reflect.ValueOf(body))
	if !v.IsValid() {
		return false
	}
	switch v.Kind() {
	case reflect.Map, reflect.Struct, reflect.Slice, reflect.Array:
		return true
	}
	return false
}
