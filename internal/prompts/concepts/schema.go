package concepts

import (
	"strings"

	"github.com/jackzampolin/folio/internal/structured"
)

// visible rejects strings that are empty once trimmed.
const visible = `\S`

// Schema validates concept generation output.
var Schema = structured.MustCompile("concepts", map[string]any{
	"type": "object",
	"properties": map[string]any{
		"concepts": map[string]any{
			"type":     "array",
			"minItems": 1,
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"title": map[string]any{
						"type":      "string",
						"minLength": 1,
						"pattern":   visible,
					},
					"paragraphs": map[string]any{
						"type":     "array",
						"minItems": 1,
						"maxItems": 1,
						"items": map[string]any{
							"type":      "string",
							"minLength": 1,
							"pattern":   visible,
						},
					},
				},
				"required": []string{"title", "paragraphs"},
			},
		},
	},
	"required": []string{"concepts"},
})

// Concept is a single generated concept.
type Concept struct {
	Title      string   `json:"title"`
	Paragraphs []string `json:"paragraphs"`
}

// Result is the parsed output of a concept generation call.
type Result struct {
	Concepts []Concept `json:"concepts"`
}

// Normalize trims whitespace, truncates the list to count and cuts paragraphs
// longer than MaxParagraphWords.
func (r *Result) Normalize(count int) {
	if count > 0 && len(r.Concepts) > count {
		r.Concepts = r.Concepts[:count]
	}
	for i := range r.Concepts {
		c := &r.Concepts[i]
		c.Title = strings.TrimSpace(c.Title)
		for j, p := range c.Paragraphs {
			c.Paragraphs[j] = TrimWords(strings.TrimSpace(p), MaxParagraphWords)
		}
	}
}

// TrimWords keeps the first limit words of s.
func TrimWords(s string, limit int) string {
	words := strings.Fields(s)
	if len(words) <= limit {
		return s
	}
	return strings.Join(words[:limit], " ")
}
