package generation

import (
	"time"

	"github.com/jackzampolin/folio/internal/providers"
)

// Fixed waits for the synchronous text stages.
var (
	ConceptsWait = providers.WaitOptions{Interval: 1200 * time.Millisecond, Timeout: 90 * time.Second}
	StyleWait    = providers.WaitOptions{Interval: 1200 * time.Millisecond, Timeout: 60 * time.Second}
)

const retryTemperature = 0.6

// TextModel is the model used for concepts and style guides.
type TextModel struct {
	Backend     string  `json:"backend"`
	Name        string  `json:"name"`
	Temperature float64 `json:"temperature"`
}

// ImageModel is the model used for one quality tier.
type ImageModel struct {
	Backend string `json:"backend"`
	Name    string `json:"name"`
	// NegativePrompt marks models that accept a negative_prompt input.
	NegativePrompt bool `json:"negative_prompt"`
}

// Config selects models and limits for the pipeline.
type Config struct {
	Text              TextModel              `json:"text"`
	Images            map[Quality]ImageModel `json:"images"`
	AspectRatio       string                 `json:"aspect_ratio"`
	DefaultCount      int                    `json:"default_count"`
	SubmitConcurrency int                    `json:"submit_concurrency"`
}

// DefaultConfig returns the built-in model table.
func DefaultConfig() Config {
	return Config{
		Text: TextModel{
			Backend:     "replicate",
			Name:        "openai/gpt-5-nano",
			Temperature: 0.7,
		},
		Images: map[Quality]ImageModel{
			QualityLow:  {Backend: "replicate", Name: "black-forest-labs/flux-schnell"},
			QualityHigh: {Backend: "replicate", Name: "stability-ai/stable-diffusion-3.5-large", NegativePrompt: true},
		},
		AspectRatio:       "9:16",
		DefaultCount:      12,
		SubmitConcurrency: 4,
	}
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Text.Backend == "" {
		c.Text.Backend = d.Text.Backend
	}
	if c.Text.Name == "" {
		c.Text.Name = d.Text.Name
	}
	if c.Text.Temperature <= 0 {
		c.Text.Temperature = d.Text.Temperature
	}
	images := make(map[Quality]ImageModel, len(d.Images))
	for q, m := range d.Images {
		if override, ok := c.Images[q]; ok {
			if override.Backend == "" {
				override.Backend = m.Backend
			}
			if override.Name == "" {
				override.Name = m.Name
			}
			m = override
		}
		images[q] = m
	}
	c.Images = images
	if c.DefaultCount <= 0 {
		c.DefaultCount = d.DefaultCount
	}
	if c.SubmitConcurrency <= 0 {
		c.SubmitConcurrency = d.SubmitConcurrency
	}
	return c
}
