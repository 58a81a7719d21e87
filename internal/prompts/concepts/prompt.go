// Package concepts builds the prompts and schema for concept generation.
package concepts

import (
	_ "embed"

	"github.com/jackzampolin/folio/internal/prompts"
)

//go:embed system.tmpl
var systemPrompt string

//go:embed user.tmpl
var userPrompt string

var userTemplate = prompts.Parse("concepts.user", userPrompt)

const (
	SystemPromptKey = "generation.concepts.system"
	UserPromptKey   = "generation.concepts.user"

	// DefaultCount is the number of concepts requested when none is given.
	DefaultCount = 12
	// MaxCount bounds the number of concepts per request.
	MaxCount = 100

	MaxTitleWords     = 3
	MaxParagraphWords = 100

	// RetryReminder is appended to the user prompt on the single retry.
	RetryReminder = "\nReturn only valid JSON. Do not include markdown. Ensure exactly 1 paragraph (max 100 words) per concept."
)

// SystemPrompt returns the system prompt for concept generation.
func SystemPrompt() string {
	return systemPrompt
}

// UserPrompt returns the user prompt for topic, asking for count concepts.
// count is clamped to [1, MaxCount].
func UserPrompt(topic string, count int) string {
	return prompts.Execute(userTemplate, struct {
		Topic             string
		Count             int
		MaxTitleWords     int
		MaxParagraphWords int
	}{
		Topic:             topic,
		Count:             ClampCount(count),
		MaxTitleWords:     MaxTitleWords,
		MaxParagraphWords: MaxParagraphWords,
	})
}

// ClampCount limits count to [1, MaxCount].
func ClampCount(count int) int {
	switch {
	case count < 1:
		return 1
	case count > MaxCount:
		return MaxCount
	}
	return count
}

// RegisterPrompts registers the concept prompts with the resolver.
func RegisterPrompts(r *prompts.Resolver) {
	r.Register(prompts.EmbeddedPrompt{
		Key:         SystemPromptKey,
		Text:        systemPrompt,
		Description: "Concept generation system prompt - sets tone and the strict JSON output shape",
	})
	r.Register(prompts.EmbeddedPrompt{
		Key:         UserPromptKey,
		Text:        userPrompt,
		Description: "Concept generation user prompt - topic, concept count and length limits",
	})
}
