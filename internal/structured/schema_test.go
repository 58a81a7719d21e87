package structured

import (
	"strings"
	"testing"
)

var pointSchema = MustCompile("point", map[string]any{
	"type": "object",
	"properties": map[string]any{
		"x": map[string]any{"type": "integer"},
		"y": map[string]any{"type": "integer"},
	},
	"required": []string{"x", "y"},
})

type point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func TestDecode(t *testing.T) {
	t.Run("valid fenced output", func(t *testing.T) {
		p, err := Decode[point](pointSchema, "```json\n{\"x\": 1, \"y\": 2}\n```")
		if err != nil {
			t.Fatalf("Decode() error = %v", err)
		}
		if p.X != 1 || p.Y != 2 {
			t.Errorf("got %+v", p)
		}
	})

	t.Run("schema violation", func(t *testing.T) {
		_, err := Decode[point](pointSchema, `{"x": 1}`)
		if err == nil {
			t.Fatal("expected validation error")
		}
		if !strings.Contains(err.Error(), "point schema") {
			t.Errorf("error %q should name the schema", err)
		}
	})

	t.Run("no json", func(t *testing.T) {
		if _, err := Decode[point](pointSchema, "sorry"); err == nil {
			t.Fatal("expected error")
		}
	})
}

func TestSchemaJSON(t *testing.T) {
	if pointSchema.Name() != "point" {
		t.Errorf("Name() = %q", pointSchema.Name())
	}
	if !strings.Contains(string(pointSchema.JSON()), `"required"`) {
		t.Errorf("JSON() = %s", pointSchema.JSON())
	}
}
