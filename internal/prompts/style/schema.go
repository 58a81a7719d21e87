package style

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackzampolin/folio/internal/structured"
)

const (
	hexPattern     = "^#?[0-9A-Fa-f]{6}$"
	visiblePattern = `\S`
)

func stringList(lo, hi int) map[string]any {
	return map[string]any{
		"type":     "array",
		"minItems": lo,
		"maxItems": hi,
		"items":    nonEmpty,
	}
}

// nonEmpty rejects strings that are empty once trimmed.
var nonEmpty = map[string]any{"type": "string", "minLength": 1, "pattern": visiblePattern}

// Schema validates style guide output. Palette entries may be bare hex strings
// or {"name", "hex"} objects.
var Schema = structured.MustCompile("style_guide", map[string]any{
	"type": "object",
	"properties": map[string]any{
		"palette": map[string]any{
			"type":     "array",
			"minItems": 3,
			"maxItems": 8,
			"items": map[string]any{
				"oneOf": []any{
					map[string]any{"type": "string", "pattern": hexPattern},
					map[string]any{
						"type": "object",
						"properties": map[string]any{
							"name": map[string]any{"type": []string{"string", "null"}},
							"hex":  map[string]any{"type": "string", "pattern": hexPattern},
						},
						"required": []string{"hex"},
					},
				},
			},
		},
		"lighting":         nonEmpty,
		"medium":           nonEmpty,
		"composition":      nonEmpty,
		"camera":           map[string]any{"type": []string{"string", "null"}},
		"texture":          map[string]any{"type": []string{"string", "null"}},
		"aspect":           map[string]any{"type": []string{"string", "null"}},
		"influences":       stringList(1, 6),
		"keywords":         stringList(4, 16),
		"negativeKeywords": stringList(4, 20),
	},
	"required": []string{"palette", "lighting", "medium", "composition", "influences", "keywords", "negativeKeywords"},
})

// Color is a palette entry.
type Color struct {
	Name string `json:"name,omitempty"`
	Hex  string `json:"hex"`
}

// UnmarshalJSON accepts either a hex string or a {"name", "hex"} object.
func (c *Color) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*c = Color{Hex: s}
		return nil
	}
	var obj struct {
		Name *string `json:"name"`
		Hex  string  `json:"hex"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("palette entry: %w", err)
	}
	*c = Color{Hex: obj.Hex}
	if obj.Name != nil {
		c.Name = *obj.Name
	}
	return nil
}

// Guide is the shared styling contract applied to every image prompt of a run.
// It is produced once per run and not modified afterwards.
type Guide struct {
	Palette          []Color  `json:"palette"`
	Lighting         string   `json:"lighting"`
	Medium           string   `json:"medium"`
	Composition      string   `json:"composition"`
	Camera           string   `json:"camera,omitempty"`
	Texture          string   `json:"texture,omitempty"`
	Influences       []string `json:"influences"`
	Keywords         []string `json:"keywords"`
	NegativeKeywords []string `json:"negativeKeywords"`
	Aspect           string   `json:"aspect,omitempty"`
}

// Normalize adds the leading '#' to palette hex codes (case preserved) and
// trims free-text fields.
func (g *Guide) Normalize() {
	for i := range g.Palette {
		hex := strings.TrimSpace(g.Palette[i].Hex)
		if !strings.HasPrefix(hex, "#") {
			hex = "#" + hex
		}
		g.Palette[i].Hex = hex
		g.Palette[i].Name = strings.TrimSpace(g.Palette[i].Name)
	}
	g.Lighting = strings.TrimSpace(g.Lighting)
	g.Medium = strings.TrimSpace(g.Medium)
	g.Composition = strings.TrimSpace(g.Composition)
	g.Camera = strings.TrimSpace(g.Camera)
	g.Texture = strings.TrimSpace(g.Texture)
	g.Aspect = strings.TrimSpace(g.Aspect)
}

// Clone returns a deep copy of the guide.
func (g *Guide) Clone() *Guide {
	if g == nil {
		return nil
	}
	out := *g
	out.Palette = append([]Color(nil), g.Palette...)
	out.Influences = append([]string(nil), g.Influences...)
	out.Keywords = append([]string(nil), g.Keywords...)
	out.NegativeKeywords = append([]string(nil), g.NegativeKeywords...)
	return &out
}

// Parse extracts, validates and normalizes a style guide from model output.
func Parse(text string) (*Guide, error) {
	g, err := structured.Decode[Guide](Schema, text)
	if err != nil {
		return nil, err
	}
	g.Normalize()
	return &g, nil
}
