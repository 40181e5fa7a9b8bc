// Package content converts structured device content between its JSON
// object form and the per-property columns used in CSV/XLSX files, and
// validates it against the device type's JSON Schema.
package content

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ColumnPrefix prefixes every content column name.
const ColumnPrefix = "content_s."

// Property is one declared property of a content schema.
type Property struct {
	Name     string
	Types    []string
	Required bool
}

// Column returns the dataset column carrying the property.
func (p Property) Column() string { return ColumnPrefix + p.Name }

// Nullable reports whether null is an allowed type.
func (p Property) Nullable() bool {
	for _, t := range p.Types {
		if t == "null" {
			return true
		}
	}
	return false
}

// Schema is a parsed content schema with properties in declaration order.
type Schema struct {
	Raw        json.RawMessage
	Properties []Property
}

// Columns returns the content column names in declaration order.
func (s *Schema) Columns() []string {
	out := make([]string, len(s.Properties))
	for i, p := range s.Properties {
		out[i] = p.Column()
	}
	return out
}

// ParseSchema reads the top-level properties of a JSON Schema object,
// keeping their declaration order. A nil or null schema yields nil.
func ParseSchema(raw []byte) (*Schema, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	var top struct {
		Properties json.RawMessage `json:"properties"`
		Required   []string        `json:"required"`
	}
	if err := json.Unmarshal(raw, &top); err != nil {
		return nil, fmt.Errorf("content schema is not a JSON object: %v", err)
	}
	required := make(map[string]bool, len(top.Required))
	for _, name := range top.Required {
		required[name] = true
	}
	schema := &Schema{Raw: json.RawMessage(raw)}
	if len(top.Properties) == 0 {
		return schema, nil
	}

	dec := json.NewDecoder(bytes.NewReader(top.Properties))
	if tok, err := dec.Token(); err != nil || tok != json.Delim('{') {
		return nil, fmt.Errorf("content schema properties must be an object")
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		name, _ := tok.(string)
		var def struct {
			Type json.RawMessage `json:"type"`
		}
		if err := dec.Decode(&def); err != nil {
			return nil, fmt.Errorf("property %q: %v", name, err)
		}
		types, err := parseTypes(def.Type)
		if err != nil {
			return nil, fmt.Errorf("property %q: %v", name, err)
		}
		schema.Properties = append(schema.Properties, Property{Name: name, Types: types, Required: required[name]})
	}
	return schema, nil
}

func parseTypes(raw json.RawMessage) ([]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return []string{single}, nil
	}
	var many []string
	if err := json.Unmarshal(raw, &many); err != nil {
		return nil, fmt.Errorf("type must be a string or an array of strings")
	}
	return many, nil
}
