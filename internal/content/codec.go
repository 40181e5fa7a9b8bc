package content

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// FieldError is a problem with one property, addressed by its path inside
// the content object ("" for the object itself).
type FieldError struct {
	Path    string
	Message string
}

func (e FieldError) Error() string {
	if e.Path == "" {
		return e.Message
	}
	return e.Path + ": " + e.Message
}

// ErrOmitted is returned by Coerce for an absent optional value, or an
// empty one that is not a string, which is left out of the assembled object.
var ErrOmitted = errors.New("value omitted")

// Destructure renders content as one cell per schema property, in
// declaration order. Arrays and objects are JSON-encoded; absent or null
// values become empty cells.
func Destructure(content []byte, schema *Schema) ([]string, error) {
	if schema == nil {
		return nil, nil
	}
	values := map[string]json.RawMessage{}
	if trimmed := bytes.TrimSpace(content); len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null")) {
		if err := json.Unmarshal(trimmed, &values); err != nil {
			return nil, fmt.Errorf("content is not a JSON object: %v", err)
		}
	}
	cells := make([]string, len(schema.Properties))
	for i, p := range schema.Properties {
		cells[i] = cell(values[p.Name])
	}
	return cells, nil
}

func cell(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
	}
	return string(raw)
}

// Coerce converts a cell value to the JSON type declared for p. Values may
// be strings (CSV, XLSX) or decoded JSON values.
func Coerce(value interface{}, p Property) (interface{}, error) {
	if isEmpty(value) {
		switch {
		case hasType(p, "string") && (p.Required || value != nil):
			return "", nil
		case !p.Required:
			return nil, ErrOmitted
		case p.Nullable():
			return nil, nil
		}
		return nil, fmt.Errorf("this field is required")
	}
	types := p.Types
	if len(types) == 0 {
		types = []string{"string"}
	}
	var firstErr error
	for _, t := range types {
		if t == "null" {
			continue
		}
		v, err := coerceTo(value, t)
		if err == nil {
			return v, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return nil, firstErr
}

func hasType(p Property, t string) bool {
	if len(p.Types) == 0 {
		return t == "string"
	}
	for _, pt := range p.Types {
		if pt == t {
			return true
		}
	}
	return false
}

func isEmpty(v interface{}) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return s == ""
	}
	return false
}

func coerceTo(value interface{}, t string) (interface{}, error) {
	switch t {
	case "boolean":
		return toBool(value)
	case "integer":
		return toInt(value)
	case "number":
		return toNumber(value)
	case "string":
		if s, ok := value.(string); ok {
			return s, nil
		}
		return nil, fmt.Errorf("expected a string")
	case "array":
		return toComposite(value, "array")
	case "object":
		return toComposite(value, "object")
	}
	return nil, fmt.Errorf("unsupported schema type %q", t)
}

func toBool(value interface{}) (interface{}, error) {
	switch v := value.(type) {
	case bool:
		return v, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "1":
			return true, nil
		case "false", "0":
			return false, nil
		}
	case float64:
		if v == 1 || v == 0 {
			return v == 1, nil
		}
	case int:
		if v == 1 || v == 0 {
			return v == 1, nil
		}
	case int64:
		if v == 1 || v == 0 {
			return v == 1, nil
		}
	}
	return nil, fmt.Errorf("expected a boolean")
}

func toInt(value interface{}) (interface{}, error) {
	switch v := value.(type) {
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("expected an integer")
		}
		return n, nil
	case int:
		return int64(v), nil
	case int64:
		return v, nil
	case float64:
		// 2^63 itself does not fit.
		if v == math.Trunc(v) && v >= math.MinInt64 && v < -math.MinInt64 {
			return int64(v), nil
		}
	}
	return nil, fmt.Errorf("expected an integer")
}

func toNumber(value interface{}) (interface{}, error) {
	switch v := value.(type) {
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("expected a number")
		}
		return f, nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case float64:
		return v, nil
	}
	return nil, fmt.Errorf("expected a number")
}

func toComposite(value interface{}, t string) (interface{}, error) {
	switch v := value.(type) {
	case []interface{}:
		if t == "array" {
			return v, nil
		}
	case map[string]interface{}:
		if t == "object" {
			return v, nil
		}
	case string:
		var decoded interface{}
		if err := json.Unmarshal([]byte(v), &decoded); err == nil {
			return toComposite(decoded, t)
		}
	}
	return nil, fmt.Errorf("expected a JSON %s", t)
}

// Reassemble builds a content object from the content columns of row.
// Columns not declared by the schema are ignored. ok is false when the row
// carries no content columns at all, in which case the stored content
// should be left as is.
func Reassemble(row map[string]interface{}, schema *Schema) (content json.RawMessage, ok bool, errs []FieldError) {
	if schema == nil {
		return nil, false, nil
	}
	for key := range row {
		if strings.HasPrefix(key, ColumnPrefix) {
			ok = true
			break
		}
	}
	if !ok {
		return nil, false, nil
	}
	obj := make(map[string]interface{}, len(schema.Properties))
	for _, p := range schema.Properties {
		v, err := Coerce(row[p.Column()], p)
		if err == ErrOmitted {
			continue
		}
		if err != nil {
			errs = append(errs, FieldError{Path: p.Name, Message: err.Error()})
			continue
		}
		obj[p.Name] = v
	}
	if len(errs) > 0 {
		return nil, true, errs
	}
	data, err := json.Marshal(obj)
	if err != nil {
		return nil, true, []FieldError{{Message: err.Error()}}
	}
	return data, true, nil
}
