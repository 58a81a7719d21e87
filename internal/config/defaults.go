package config

import (
	"sort"
	"strings"
)

// Entry is a single default setting.
type Entry struct {
	Key         string `json:"key"`
	Value       any    `json:"value"`
	Description string `json:"description"`
}

// DefaultEntries returns every default setting, keyed by dotted path.
func DefaultEntries() []Entry {
	return []Entry{
		// Server
		{Key: "server.host", Value: "127.0.0.1", Description: "Address the HTTP server binds to"},
		{Key: "server.port", Value: "8080", Description: "Port the HTTP server listens on"},

		// Backends - Replicate
		{Key: "backends.replicate.type", Value: "replicate", Description: "Backend type for Replicate"},
		{Key: "backends.replicate.base_url", Value: "https://api.replicate.com/v1", Description: "Replicate API base URL"},
		{Key: "backends.replicate.api_key", Value: "${REPLICATE_API_TOKEN}", Description: "Replicate API token (uses environment variable)"},
		{Key: "backends.replicate.rate_limit", Value: 600, Description: "Requests per minute for Replicate"},
		{Key: "backends.replicate.max_retries", Value: 3, Description: "Maximum retry attempts for Replicate requests"},
		{Key: "backends.replicate.timeout_seconds", Value: 60, Description: "HTTP timeout in seconds for Replicate requests"},
		{Key: "backends.replicate.enabled", Value: true, Description: "Whether the Replicate backend is enabled"},

		// Backends - OpenAI
		{Key: "backends.openai.type", Value: "openai", Description: "Backend type for OpenAI chat completions"},
		{Key: "backends.openai.base_url", Value: "", Description: "OpenAI-compatible base URL (empty uses the SDK default)"},
		{Key: "backends.openai.api_key", Value: "${OPENAI_API_KEY}", Description: "OpenAI API key (uses environment variable)"},
		{Key: "backends.openai.rate_limit", Value: 500, Description: "Requests per minute for OpenAI"},
		{Key: "backends.openai.max_retries", Value: 2, Description: "Maximum retry attempts for OpenAI requests"},
		{Key: "backends.openai.timeout_seconds", Value: 120, Description: "Timeout in seconds for one completion"},
		{Key: "backends.openai.enabled", Value: true, Description: "Whether the OpenAI backend is enabled"},

		// Models
		{Key: "models.text.backend", Value: "replicate", Description: "Backend for concept and style generation"},
		{Key: "models.text.name", Value: "openai/gpt-5-nano", Description: "Text model for concept and style generation"},
		{Key: "models.text.temperature", Value: 0.7, Description: "Sampling temperature for text generation"},
		{Key: "models.image.low.backend", Value: "replicate", Description: "Backend for low quality images"},
		{Key: "models.image.low.name", Value: "black-forest-labs/flux-schnell", Description: "Image model for low quality"},
		{Key: "models.image.low.negative_prompt", Value: false, Description: "Whether the low quality model accepts negative_prompt"},
		{Key: "models.image.high.backend", Value: "replicate", Description: "Backend for high quality images"},
		{Key: "models.image.high.name", Value: "stability-ai/stable-diffusion-3.5-large", Description: "Image model for high quality"},
		{Key: "models.image.high.negative_prompt", Value: true, Description: "Whether the high quality model accepts negative_prompt"},
		{Key: "models.aspect_ratio", Value: "9:16", Description: "Aspect ratio requested for every image"},

		// Generation
		{Key: "generation.default_count", Value: 12, Description: "Concepts generated when the request omits a count"},
		{Key: "generation.submit_concurrency", Value: 4, Description: "Concurrent image submissions and status checks"},

		// Client
		{Key: "client.poll_interval", Value: "1500ms", Description: "Interval between image status checks"},
	}
}

// GetDefault returns the default entry for key, or nil.
func GetDefault(key string) *Entry {
	for _, e := range DefaultEntries() {
		if e.Key == key {
			return &e
		}
	}
	return nil
}

// nest turns dotted entries into a nested map suitable for yaml output.
func nest(entries []Entry) map[string]any {
	root := make(map[string]any)
	for _, e := range entries {
		parts := strings.Split(e.Key, ".")
		m := root
		for _, p := range parts[:len(parts)-1] {
			child, ok := m[p].(map[string]any)
			if !ok {
				child = make(map[string]any)
				m[p] = child
			}
			m = child
		}
		m[parts[len(parts)-1]] = e.Value
	}
	return root
}

// IsSecret reports whether a key holds a credential.
func IsSecret(key string) bool {
	return strings.HasSuffix(key, ".api_key")
}

// Settings returns the effective value of every known key, sorted by key.
// Secrets are redacted; unresolved ${VAR} references are shown as written.
func (m *Manager) Settings() []Entry {
	m.mu.RLock()
	v := m.v
	m.mu.RUnlock()

	descriptions := make(map[string]string)
	for _, e := range DefaultEntries() {
		descriptions[e.Key] = e.Description
	}

	keys := v.AllKeys()
	sort.Strings(keys)
	out := make([]Entry, 0, len(keys))
	for _, k := range keys {
		val := v.Get(k)
		if s, ok := val.(string); ok && IsSecret(k) && s != "" && !strings.HasPrefix(s, "${") {
			val = "********"
		}
		out = append(out, Entry{Key: k, Value: val, Description: descriptions[k]})
	}
	return out
}
