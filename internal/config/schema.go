package config

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Config holds folio configuration.
// Stored at: ./config.yaml or {home}/config.yaml
type Config struct {
	Server     ServerCfg             `mapstructure:"server" yaml:"server"`
	Backends   map[string]BackendCfg `mapstructure:"backends" yaml:"backends"`
	Models     ModelsCfg             `mapstructure:"models" yaml:"models"`
	Generation GenerationCfg         `mapstructure:"generation" yaml:"generation"`
	Client     ClientCfg             `mapstructure:"client" yaml:"client"`
}

// ServerCfg is the HTTP listen address.
type ServerCfg struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port string `mapstructure:"port" yaml:"port"`
}

// BackendCfg configures one job backend.
type BackendCfg struct {
	Type           string `mapstructure:"type" yaml:"type"`             // "replicate", "openai"
	BaseURL        string `mapstructure:"base_url" yaml:"base_url"`     // empty uses the backend default
	APIKey         string `mapstructure:"api_key" yaml:"api_key"`       // supports ${ENV_VAR} syntax
	RateLimit      int    `mapstructure:"rate_limit" yaml:"rate_limit"` // requests per minute
	MaxRetries     int    `mapstructure:"max_retries" yaml:"max_retries"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
	Enabled        bool   `mapstructure:"enabled" yaml:"enabled"`
}

// ModelsCfg is the model table.
type ModelsCfg struct {
	Text        TextModelCfg             `mapstructure:"text" yaml:"text"`
	Image       map[string]ImageModelCfg `mapstructure:"image" yaml:"image"` // keyed by quality: low, high
	AspectRatio string                   `mapstructure:"aspect_ratio" yaml:"aspect_ratio"`
}

// TextModelCfg selects the text model.
type TextModelCfg struct {
	Backend     string  `mapstructure:"backend" yaml:"backend"`
	Name        string  `mapstructure:"name" yaml:"name"`
	Temperature float64 `mapstructure:"temperature" yaml:"temperature"`
}

// ImageModelCfg selects the image model for a quality tier.
type ImageModelCfg struct {
	Backend        string `mapstructure:"backend" yaml:"backend"`
	Name           string `mapstructure:"name" yaml:"name"`
	NegativePrompt bool   `mapstructure:"negative_prompt" yaml:"negative_prompt"`
}

// GenerationCfg holds orchestrator limits.
type GenerationCfg struct {
	DefaultCount      int `mapstructure:"default_count" yaml:"default_count"`
	SubmitConcurrency int `mapstructure:"submit_concurrency" yaml:"submit_concurrency"`
}

// ClientCfg configures the generate command's session.
type ClientCfg struct {
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
}

// Validate checks the loaded configuration.
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Server),
		validation.Field(&c.Models),
		validation.Field(&c.Generation),
		validation.Field(&c.Client),
	)
}

func (s ServerCfg) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Port, validation.Required),
	)
}

func (m ModelsCfg) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.Text),
		validation.Field(&m.Image, validation.Required),
	)
}

func (t TextModelCfg) Validate() error {
	return validation.ValidateStruct(&t,
		validation.Field(&t.Backend, validation.Required),
		validation.Field(&t.Name, validation.Required),
		validation.Field(&t.Temperature, validation.Min(0.0), validation.Max(2.0)),
	)
}

func (i ImageModelCfg) Validate() error {
	return validation.ValidateStruct(&i,
		validation.Field(&i.Backend, validation.Required),
		validation.Field(&i.Name, validation.Required),
	)
}

func (g GenerationCfg) Validate() error {
	return validation.ValidateStruct(&g,
		validation.Field(&g.DefaultCount, validation.Min(1), validation.Max(100)),
		validation.Field(&g.SubmitConcurrency, validation.Min(1)),
	)
}

func (c ClientCfg) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.PollInterval, validation.Min(100*time.Millisecond)),
	)
}
