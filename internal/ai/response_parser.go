// response_parser.go - Pull the evaluation JSON object out of free-form model text

package ai

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Parser errors. ErrMissingField is wrapped with the field name.
var (
	ErrNoJSONFound  = errors.New("no JSON object or array found in response")
	ErrNotAnObject  = errors.New("evaluation JSON is not an object")
	ErrEmptyArray   = errors.New("evaluation JSON array is empty")
	ErrMissingField = errors.New("required field missing or not numeric")
)

const (
	FieldTotal              = "total"
	FieldPhotoCountDetected = "photo_count_detected"
	FieldPhotosAttached     = "photos_attached"
)

// Evaluation is the decoded model answer.
type Evaluation struct {
	Data  map[string]interface{}
	Total int
}

// ParseEvaluation scans raw for the first '{' or '[' from which a complete
// object, or an array led by an object, decodes. Starting at the first such
// offset makes it the outermost value. If nothing object-shaped decodes it
// tries once more on a copy with string escapes repaired. Arrays yield their
// first element, which must carry a numeric "total".
func ParseEvaluation(raw string) (*Evaluation, error) {
	value, err := firstJSONValue(raw)
	if err != nil || !isEvaluationShaped(value) {
		repaired, rerr := firstJSONValue(fixJSONEscaping(raw))
		if rerr == nil && (err != nil || isEvaluationShaped(repaired)) {
			value, err = repaired, nil
		}
	}
	if err != nil {
		return nil, err
	}

	if list, ok := value.([]interface{}); ok {
		if len(list) == 0 {
			return nil, ErrEmptyArray
		}
		value = list[0]
	}

	obj, ok := value.(map[string]interface{})
	if !ok {
		return nil, ErrNotAnObject
	}

	total, ok := numericField(obj[FieldTotal])
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingField, FieldTotal)
	}

	return &Evaluation{Data: obj, Total: total}, nil
}

// JSON serialises the evaluation without HTML escaping so Korean text and
// symbols are stored as written.
func (e *Evaluation) JSON() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(e.Data); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Set overrides a top-level field.
func (e *Evaluation) Set(key string, value interface{}) {
	e.Data[key] = value
}

// firstJSONValue prefers an object, or an array led by an object. Failing
// that it returns the first value that decoded at all so the caller can
// report what was wrong with it.
func firstJSONValue(raw string) (interface{}, error) {
	var fallback interface{}
	found := false

	for i := 0; i < len(raw); i++ {
		if raw[i] != '{' && raw[i] != '[' {
			continue
		}
		dec := json.NewDecoder(strings.NewReader(raw[i:]))
		dec.UseNumber()

		var v interface{}
		if err := dec.Decode(&v); err != nil {
			continue
		}
		if isEvaluationShaped(v) {
			return v, nil
		}
		if !found {
			fallback, found = v, true
		}
	}

	if found {
		return fallback, nil
	}
	return nil, ErrNoJSONFound
}

func isEvaluationShaped(v interface{}) bool {
	switch t := v.(type) {
	case map[string]interface{}:
		return true
	case []interface{}:
		if len(t) == 0 {
			return false
		}
		_, ok := t[0].(map[string]interface{})
		return ok
	}
	return false
}

// numericField accepts JSON numbers and numeric strings, rounding to int.
func numericField(v interface{}) (int, bool) {
	var f float64
	switch n := v.(type) {
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case float64:
		f = n
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return int(math.Round(f)), true
}

var jsonStringPattern = regexp.MustCompile(`"([^"]*(?:\\.[^"]*)*)"`)

// fixJSONEscaping escapes raw control characters that models sometimes leave
// inside JSON string values.
func fixJSONEscaping(jsonStr string) string {
	return jsonStringPattern.ReplaceAllStringFunc(jsonStr, func(match string) string {
		if len(match) < 2 {
			return match
		}
		content := match[1 : len(match)-1]

		// order matters: backslashes first to avoid double-escaping
		content = strings.ReplaceAll(content, "\\ ", "\\\\ ")
		content = strings.ReplaceAll(content, "\n", "\\n")
		content = strings.ReplaceAll(content, "\r", "\\r")
		content = strings.ReplaceAll(content, "\t", "\\t")
		content = strings.ReplaceAll(content, "\f", "\\f")
		content = strings.ReplaceAll(content, "\b", "\\b")

		var builder strings.Builder
		for _, ch := range content {
			if ch < 0x20 {
				builder.WriteString(fmt.Sprintf("\\u%04x", ch))
			} else {
				builder.WriteRune(ch)
			}
		}

		return `"` + builder.String() + `"`
	})
}
