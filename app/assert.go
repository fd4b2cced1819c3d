package app

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"

	valid "github.com/asaskevich/govalidator"
	jd "github.com/josephburnett/jd/lib"
)

type Kind string

const (
	KindObject  Kind = "object"
	KindArray   Kind = "array"
	KindString  Kind = "string"
	KindNumber  Kind = "number"
	KindInteger Kind = "integer"
	KindBool    Kind = "boolean"
	KindNull    Kind = "null"
	KindEmail   Kind = "email"
	KindURL     Kind = "url"
)

// IsSuccess reports whether status is in the 2xx range.
func IsSuccess(status int) bool {
	return status >= 200 && status <= 299
}

// HasFields returns the fields absent from obj, sorted. An empty result means
// every field is present.
func HasFields(obj map[string]any, fields []string) []string {
	missing := []string{}
	for _, field := range fields {
		if _, ok := obj[field]; !ok {
			missing = append(missing, field)
		}
	}
	sort.Strings(missing)

	return missing
}

// IsType reports whether a decoded JSON value is of the given kind. Email and
// URL are strings that also pass format validation.
func IsType(value any, kind Kind) bool {
	switch kind {
	case KindObject:
		_, ok := value.(map[string]any)
		return ok
	case KindArray:
		_, ok := value.([]any)
		return ok
	case KindString:
		_, ok := value.(string)
		return ok
	case KindNumber:
		_, ok := numberValue(value)
		return ok
	case KindInteger:
		_, ok := intValue(value)
		return ok
	case KindBool:
		_, ok := value.(bool)
		return ok
	case KindNull:
		return value == nil
	case KindEmail:
		s, ok := value.(string)
		return ok && valid.IsEmail(s)
	case KindURL:
		s, ok := value.(string)
		return ok && valid.IsURL(s)
	default:
		return false
	}
}

// DiffJSON renders the difference between two JSON values. Values may be raw
// JSON bytes or anything encoding/json can marshal. An empty diff means equal.
func DiffJSON(expected, actual any) (string, error) {
	first, err := readJSONNode(expected)
	if err != nil {
		return "", fmt.Errorf("DiffJSON: expected: %w", err)
	}

	second, err := readJSONNode(actual)
	if err != nil {
		return "", fmt.Errorf("DiffJSON: actual: %w", err)
	}

	return first.Diff(second).Render(), nil
}

// Contains checks that every key of subset is present in obj with an equal
// value and returns the diff of the offending keys.
func Contains(obj, subset map[string]any) (string, error) {
	projected := make(map[string]any, len(subset))
	for key := range subset {
		if value, ok := obj[key]; ok {
			projected[key] = value
		}
	}

	return DiffJSON(subset, projected)
}

func readJSONNode(value any) (jd.JsonNode, error) {
	var raw []byte
	switch v := value.(type) {
	case json.RawMessage:
		raw = v
	case []byte:
		raw = v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		raw = b
	}

	return jd.ReadJsonString(string(raw))
}

func numberValue(value any) (float64, bool) {
	switch v := value.(type) {
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

func intValue(value any) (int64, bool) {
	switch v := value.(type) {
	case json.Number:
		i, err := v.Int64()
		return i, err == nil
	case int:
		return int64(v), true
	case int64:
		return v, true
	case float64:
		if v != math.Trunc(v) {
			return 0, false
		}
		return int64(v), true
	default:
		return 0, false
	}
}

func kindOf(value any) Kind {
	for _, kind := range []Kind{KindNull, KindObject, KindArray, KindString, KindBool, KindInteger, KindNumber} {
		if IsType(value, kind) {
			return kind
		}
	}

	return Kind(fmt.Sprintf("%T", value))
}
