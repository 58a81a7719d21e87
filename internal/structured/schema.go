package structured

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Schema is a compiled JSON Schema used to validate model output.
type Schema struct {
	name     string
	raw      json.RawMessage
	compiled *jsonschema.Schema
}

// Compile compiles a schema document expressed as a Go map.
func Compile(name string, doc map[string]any) (*Schema, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize schema %s: %w", name, err)
	}

	url := name + ".json"
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(url, bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("failed to load schema %s: %w", name, err)
	}
	compiled, err := compiler.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema %s: %w", name, err)
	}

	return &Schema{name: name, raw: raw, compiled: compiled}, nil
}

// MustCompile is like Compile but panics on error. Intended for package-level schemas.
func MustCompile(name string, doc map[string]any) *Schema {
	s, err := Compile(name, doc)
	if err != nil {
		panic(err)
	}
	return s
}

// Name returns the schema name.
func (s *Schema) Name() string {
	return s.name
}

// JSON returns the serialized schema document.
func (s *Schema) JSON() json.RawMessage {
	return s.raw
}

// Validate checks a JSON document against the schema.
func (s *Schema) Validate(doc json.RawMessage) error {
	var v any
	if err := json.Unmarshal(doc, &v); err != nil {
		return fmt.Errorf("failed to decode JSON for validation: %w", err)
	}
	if err := s.compiled.Validate(v); err != nil {
		return fmt.Errorf("output does not match %s schema: %w", s.name, err)
	}
	return nil
}

// Decode extracts the first JSON value from text, validates it against s,
// and unmarshals it into T.
func Decode[T any](s *Schema, text string) (T, error) {
	var out T

	doc, err := ParseFirstJSON(text)
	if err != nil {
		return out, err
	}
	if err := s.Validate(doc); err != nil {
		return out, err
	}
	if err := json.Unmarshal(doc, &out); err != nil {
		return out, fmt.Errorf("failed to decode %s output: %w", s.name, err)
	}
	return out, nil
}
