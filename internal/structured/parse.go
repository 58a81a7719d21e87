// Package structured extracts and validates JSON documents embedded in model output.
//
// Models asked for "strict JSON" still wrap it in markdown fences or surround it
// with prose. ParseFirstJSON recovers the document, and Schema checks it against
// a JSON Schema before it is decoded into a Go type.
package structured

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

// ErrNoJSON is returned when no parseable JSON value is found in the text.
var ErrNoJSON = errors.New("model output did not contain valid JSON")

var (
	jsonFence = regexp.MustCompile("(?is)```json\\s*(.*?)```")
	anyFence  = regexp.MustCompile("(?s)```\\s*(.*?)```")
)

// ParseFirstJSON returns the first JSON value found in text.
//
// Candidates are tried in order: the whole text, the body of a ```json fence,
// the body of any ``` fence, and finally every balanced {...} substring from
// left to right. The first candidate that parses wins.
func ParseFirstJSON(text string) (json.RawMessage, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, ErrNoJSON
	}
	if json.Valid([]byte(trimmed)) {
		return json.RawMessage(trimmed), nil
	}

	for _, re := range []*regexp.Regexp{jsonFence, anyFence} {
		if m := re.FindStringSubmatch(text); m != nil {
			inner := strings.TrimSpace(m[1])
			if inner != "" && json.Valid([]byte(inner)) {
				return json.RawMessage(inner), nil
			}
		}
	}

	if obj, ok := scanObject(text); ok {
		return json.RawMessage(obj), nil
	}
	return nil, ErrNoJSON
}

// scanObject tries each '{' as a start position and returns the first balanced
// object that is valid JSON. Braces inside string literals are not counted.
func scanObject(text string) (string, bool) {
	for start := strings.IndexByte(text, '{'); start >= 0; {
		if end, ok := matchBrace(text, start); ok {
			candidate := text[start : end+1]
			if json.Valid([]byte(candidate)) {
				return candidate, true
			}
		}
		next := strings.IndexByte(text[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return "", false
}

// matchBrace returns the index of the '}' closing the '{' at start.
func matchBrace(text string, start int) (int, bool) {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		ch := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}
