package providers

import (
	"bytes"
	"encoding/json"
	"strings"
)

// OutputKind tags the shape of a job's output.
type OutputKind int

const (
	// OutputNone means the job has produced no output yet.
	OutputNone OutputKind = iota
	// OutputText is a single string.
	OutputText
	// OutputChunks is an array of strings (streamed tokens or image URLs).
	OutputChunks
	// OutputRaw is any other JSON value.
	OutputRaw
)

// Output is the normalized form of a job's output field.
type Output struct {
	kind   OutputKind
	text   string
	chunks []string
	raw    json.RawMessage
}

// TextOutput builds a text output.
func TextOutput(s string) Output {
	return Output{kind: OutputText, text: s}
}

// ChunksOutput builds a string-array output.
func ChunksOutput(chunks ...string) Output {
	return Output{kind: OutputChunks, chunks: append([]string(nil), chunks...)}
}

// RawOutput builds an output from an arbitrary JSON value.
func RawOutput(raw json.RawMessage) Output {
	return ParseOutput(raw)
}

// ParseOutput classifies a raw JSON output value.
func ParseOutput(raw json.RawMessage) Output {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return Output{}
	}

	var s string
	if err := json.Unmarshal(trimmed, &s); err == nil {
		return Output{kind: OutputText, text: s}
	}
	var chunks []string
	if err := json.Unmarshal(trimmed, &chunks); err == nil {
		return Output{kind: OutputChunks, chunks: chunks}
	}
	return Output{kind: OutputRaw, raw: append(json.RawMessage(nil), trimmed...)}
}

// Kind returns the output shape.
func (o Output) Kind() OutputKind {
	return o.kind
}

// IsZero reports whether there is no output.
func (o Output) IsZero() bool {
	return o.kind == OutputNone
}

// Text flattens the output to a string. Chunks are concatenated without a
// separator; raw values are returned as JSON text.
func (o Output) Text() string {
	switch o.kind {
	case OutputText:
		return o.text
	case OutputChunks:
		return strings.Join(o.chunks, "")
	case OutputRaw:
		return string(o.raw)
	}
	return ""
}

// ImageURL extracts the first non-empty image URL. Supported shapes are an
// array of URL strings, an array of {"url": ...} objects, a single URL string,
// and a single {"url": ...} object.
func (o Output) ImageURL() (string, bool) {
	switch o.kind {
	case OutputText:
		if u := strings.TrimSpace(o.text); u != "" {
			return u, true
		}
	case OutputChunks:
		for _, c := range o.chunks {
			if u := strings.TrimSpace(c); u != "" {
				return u, true
			}
		}
	case OutputRaw:
		var v any
		if err := json.Unmarshal(o.raw, &v); err != nil {
			return "", false
		}
		switch t := v.(type) {
		case []any:
			for _, item := range t {
				if u, ok := urlOf(item); ok {
					return u, true
				}
			}
		default:
			return urlOf(t)
		}
	}
	return "", false
}

func urlOf(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		if u := strings.TrimSpace(t); u != "" {
			return u, true
		}
	case map[string]any:
		if s, ok := t["url"].(string); ok {
			if u := strings.TrimSpace(s); u != "" {
				return u, true
			}
		}
	}
	return "", false
}

// MarshalJSON encodes the output back to its JSON shape.
func (o Output) MarshalJSON() ([]byte, error) {
	switch o.kind {
	case OutputText:
		return json.Marshal(o.text)
	case OutputChunks:
		return json.Marshal(o.chunks)
	case OutputRaw:
		return o.raw, nil
	}
	return []byte("null"), nil
}

// UnmarshalJSON decodes any JSON value into the output.
func (o *Output) UnmarshalJSON(data []byte) error {
	*o = ParseOutput(data)
	return nil
}
