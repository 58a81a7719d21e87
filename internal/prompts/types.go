// Package prompts holds the embedded prompt templates used by the generation
// pipeline.
//
// Each prompt lives in an embedded .tmpl file next to the builder that renders
// it (see the concepts, style and image subpackages). Builders register their
// templates with a Resolver under a hierarchical key such as
// "generation.concepts.system" so the server can list them.
package prompts

// EmbeddedPrompt represents a prompt loaded from an embedded .tmpl file.
type EmbeddedPrompt struct {
	Key         string   `json:"key"`                   // Hierarchical key: generation.concepts.system
	Text        string   `json:"text"`                  // The prompt text (Go template)
	Description string   `json:"description,omitempty"` // Human-readable description
	Variables   []string `json:"variables,omitempty"`   // Extracted template variables
	Hash        string   `json:"hash"`                  // SHA256 hash of the text for change detection
}
