package providers

import (
	"os"
)

// TestConfig holds backend credentials loaded from environment variables.
// Integration tests skip unless the relevant key is present.
type TestConfig struct {
	ReplicateAPIToken string
	OpenAIAPIKey      string
}

// LoadTestConfig loads backend keys from environment variables.
func LoadTestConfig() TestConfig {
	return TestConfig{
		ReplicateAPIToken: os.Getenv("REPLICATE_API_TOKEN"),
		OpenAIAPIKey:      os.Getenv("OPENAI_API_KEY"),
	}
}

// HasReplicate returns true if a Replicate token is configured.
func (c TestConfig) HasReplicate() bool {
	return c.ReplicateAPIToken != ""
}

// HasOpenAI returns true if an OpenAI key is configured.
func (c TestConfig) HasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}
