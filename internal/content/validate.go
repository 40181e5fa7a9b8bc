package content

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const schemaURL = "device_type_content.json"

// Compile compiles a content schema as JSON Schema draft 2020-12.
func Compile(raw []byte) (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	if err := c.AddResource(schemaURL, bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("invalid content schema: %v", err)
	}
	compiled, err := c.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("invalid content schema: %v", err)
	}
	return compiled, nil
}

// Validate checks content against the schema and returns one FieldError
// per failing leaf, sorted by path.
func Validate(schemaRaw, content []byte) ([]FieldError, error) {
	compiled, err := Compile(schemaRaw)
	if err != nil {
		return nil, err
	}
	var instance interface{}
	if trimmed := bytes.TrimSpace(content); len(trimmed) > 0 {
		if err := json.Unmarshal(trimmed, &instance); err != nil {
			return []FieldError{{Message: "content is not valid JSON"}}, nil
		}
	}
	err = compiled.Validate(instance)
	if err == nil {
		return nil, nil
	}
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return nil, err
	}
	var out []FieldError
	collect(ve, &out)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func collect(ve *jsonschema.ValidationError, out *[]FieldError) {
	if len(ve.Causes) == 0 {
		*out = append(*out, FieldError{Path: instancePath(ve.InstanceLocation), Message: ve.Message})
		return
	}
	for _, cause := range ve.Causes {
		collect(cause, out)
	}
}

func instancePath(location string) string {
	location = strings.TrimPrefix(location, "/")
	return strings.ReplaceAll(location, "/", ".")
}
