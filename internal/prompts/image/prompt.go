// Package image builds per-concept image prompts from a style guide.
package image

import (
	_ "embed"
	"strings"

	"github.com/jackzampolin/folio/internal/prompts"
	"github.com/jackzampolin/folio/internal/prompts/style"
)

//go:embed styled.tmpl
var styledPrompt string

//go:embed fallback.tmpl
var fallbackPrompt string

var (
	styledTemplate   = prompts.Parse("image.styled", styledPrompt)
	fallbackTemplate = prompts.Parse("image.fallback", fallbackPrompt)
)

const (
	StyledPromptKey   = "generation.image.styled"
	FallbackPromptKey = "generation.image.fallback"

	maxPalette    = 4
	maxInfluences = 4
	maxKeywords   = 12
	maxNegative   = 16
)

// NoTextClause is embedded in every image prompt.
const NoTextClause = "No text, no captions, no subtitles, no watermarks, no logos, no signatures."

// StrongNoText is appended to prompts at submission time.
const StrongNoText = "no text, no caption, no subtitles, no watermark, no logo, no signature, no letters, no words, no typography, no UI, no interface, no signs, no signage"

// StrongNegative is the negative prompt sent to models that accept one.
const StrongNegative = "text, caption, subtitles, watermark, logo, signature, letters, words, typography, graphic design, poster, diagram, chart, meme, ui, interface, screenshot, map, sign, signage, flat vector, clip art, corporate illustration"

// defaultNegative is used when a guide carries no negative keywords.
var defaultNegative = strings.Split(StrongNegative, ", ")

// FromStyle composes the image prompt for one concept under guide.
func FromStyle(title, topic string, guide *style.Guide) string {
	if guide == nil {
		return Fallback(title, topic)
	}

	hexes := make([]string, 0, maxPalette)
	for _, c := range head(guide.Palette, maxPalette) {
		hexes = append(hexes, c.Hex)
	}
	negative := guide.NegativeKeywords
	if len(negative) == 0 {
		negative = defaultNegative
	}

	return prompts.Execute(styledTemplate, struct {
		Title, Topic                           string
		Medium, Camera, Lighting, Composition  string
		Texture, Palette, Influences, Keywords string
		NoText, Negative                       string
	}{
		Title:       title,
		Topic:       topic,
		Medium:      guide.Medium,
		Camera:      guide.Camera,
		Lighting:    guide.Lighting,
		Composition: guide.Composition,
		Texture:     guide.Texture,
		Palette:     strings.Join(hexes, ", "),
		Influences:  strings.Join(head(guide.Influences, maxInfluences), ", "),
		Keywords:    strings.Join(head(guide.Keywords, maxKeywords), ", "),
		NoText:      NoTextClause,
		Negative:    strings.Join(head(negative, maxNegative), ", "),
	})
}

// Fallback composes an image prompt when no style guide is available.
func Fallback(title, topic string) string {
	return prompts.Execute(fallbackTemplate, struct {
		Title, Topic, NoText string
	}{Title: title, Topic: topic, NoText: NoTextClause})
}

// WithStrongNoText appends the strong no-text clause to a prompt.
func WithStrongNoText(prompt string) string {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return StrongNoText
	}
	return prompt + " " + StrongNoText
}

func head[T any](s []T, n int) []T {
	if len(s) > n {
		return s[:n]
	}
	return s
}

// RegisterPrompts registers the image prompt templates with the resolver.
func RegisterPrompts(r *prompts.Resolver) {
	r.Register(prompts.EmbeddedPrompt{
		Key:         StyledPromptKey,
		Text:        styledPrompt,
		Description: "Per-concept image prompt composed from the run's style guide",
	})
	r.Register(prompts.EmbeddedPrompt{
		Key:         FallbackPromptKey,
		Text:        fallbackPrompt,
		Description: "Per-concept image prompt used when no style guide is available",
	})
}
