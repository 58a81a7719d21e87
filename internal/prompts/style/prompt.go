// Package style builds the prompts, schema and types for style guide generation.
package style

import (
	_ "embed"
	"strings"

	"github.com/jackzampolin/folio/internal/prompts"
)

//go:embed system.tmpl
var systemPrompt string

//go:embed user.tmpl
var userPrompt string

var userTemplate = prompts.Parse("style.user", userPrompt)

const (
	SystemPromptKey = "generation.style.system"
	UserPromptKey   = "generation.style.user"

	// MaxTitles is the number of concept titles embedded in the user prompt.
	MaxTitles = 12
)

// SystemPrompt returns the system prompt for style guide generation.
func SystemPrompt() string {
	return systemPrompt
}

// UserPrompt returns the user prompt for topic, biased by up to MaxTitles concept titles.
func UserPrompt(topic string, conceptTitles []string) string {
	titles := "(not provided)"
	if len(conceptTitles) > 0 {
		if len(conceptTitles) > MaxTitles {
			conceptTitles = conceptTitles[:MaxTitles]
		}
		titles = strings.Join(conceptTitles, "; ")
	}
	return prompts.Execute(userTemplate, struct {
		Topic  string
		Titles string
	}{Topic: topic, Titles: titles})
}

// RegisterPrompts registers the style guide prompts with the resolver.
func RegisterPrompts(r *prompts.Resolver) {
	r.Register(prompts.EmbeddedPrompt{
		Key:         SystemPromptKey,
		Text:        systemPrompt,
		Description: "Style guide system prompt - art director persona and the StyleGuide JSON shape",
	})
	r.Register(prompts.EmbeddedPrompt{
		Key:         UserPromptKey,
		Text:        userPrompt,
		Description: "Style guide user prompt - topic-driven visual cues, cardinalities and concept titles",
	})
}
