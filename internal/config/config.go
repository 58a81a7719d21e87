// Package config loads folio configuration with viper and hot-reloads it.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"

	"github.com/jackzampolin/folio/internal/generation"
	"github.com/jackzampolin/folio/internal/providers"
)

// EnvPrefix prefixes environment overrides, e.g. FOLIO_SERVER_PORT.
const EnvPrefix = "FOLIO"

// Manager handles loading and hot-reloading configuration.
type Manager struct {
	mu        sync.RWMutex
	v         *viper.Viper
	config    *Config
	callbacks []func(*Config)
	logger    *slog.Logger
}

// NewManager creates a config manager and loads the initial config.
// cfgFile wins when set; otherwise config.yaml is searched for in
// searchPaths, defaulting to the working directory and ~/.folio.
func NewManager(cfgFile string, searchPaths ...string) (*Manager, error) {
	cm := &Manager{
		v:         viper.New(),
		callbacks: make([]func(*Config), 0),
		logger:    slog.Default(),
	}

	if err := cm.initViper(cfgFile, searchPaths); err != nil {
		return nil, err
	}

	cfg, err := cm.load()
	if err != nil {
		return nil, err
	}
	cm.config = cfg

	return cm, nil
}

// SetLogger sets the logger used for reload errors.
func (cm *Manager) SetLogger(logger *slog.Logger) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.logger = logger.With("component", "config")
}

// initViper sets up viper with defaults, env overrides and the config file.
func (cm *Manager) initViper(cfgFile string, searchPaths []string) error {
	v := cm.v
	for _, e := range DefaultEntries() {
		v.SetDefault(e.Key, e.Value)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		if len(searchPaths) == 0 {
			searchPaths = []string{".", "$HOME/.folio"}
		}
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		for _, p := range searchPaths {
			v.AddConfigPath(p)
		}
	}

	// The config file is optional.
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	return nil
}

// load parses the current viper state into a validated Config.
func (cm *Manager) load() (*Config, error) {
	var cfg Config
	if err := cm.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// Get returns the current configuration (thread-safe).
func (cm *Manager) Get() *Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.config
}

// ConfigFile returns the file the config was read from, if any.
func (cm *Manager) ConfigFile() string {
	return cm.v.ConfigFileUsed()
}

// OnChange registers a callback for config changes.
func (cm *Manager) OnChange(fn func(*Config)) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.callbacks = append(cm.callbacks, fn)
}

// WatchConfig enables hot-reloading of configuration. An edit that fails to
// parse or validate is logged and the previous config stays active.
func (cm *Manager) WatchConfig() {
	cm.v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := cm.load()
		if err != nil {
			cm.mu.RLock()
			logger := cm.logger
			cm.mu.RUnlock()
			logger.Warn("config reload rejected", "file", e.Name, "error", err)
			return
		}

		cm.mu.Lock()
		cm.config = cfg
		callbacks := make([]func(*Config), len(cm.callbacks))
		copy(callbacks, cm.callbacks)
		cm.mu.Unlock()

		for _, fn := range callbacks {
			fn(cfg)
		}
	})
	cm.v.WatchConfig()
}

var envRef = regexp.MustCompile(`\$\{([^}]+)\}`)

// ResolveEnvVars expands ${ENV_VAR} references in a string.
func ResolveEnvVars(value string) string {
	if value == "" {
		return value
	}
	return envRef.ReplaceAllStringFunc(value, func(match string) string {
		return os.Getenv(match[2 : len(match)-1])
	})
}

// ToProviderRegistryConfig converts the backend table for providers.Registry,
// resolving ${ENV_VAR} references in API keys.
func (c *Config) ToProviderRegistryConfig() providers.RegistryConfig {
	cfg := providers.RegistryConfig{
		Backends: make(map[string]providers.BackendConfig, len(c.Backends)),
	}
	for name, b := range c.Backends {
		cfg.Backends[name] = providers.BackendConfig{
			Type:           b.Type,
			BaseURL:        b.BaseURL,
			APIKey:         ResolveEnvVars(b.APIKey),
			RateLimit:      b.RateLimit,
			MaxRetries:     b.MaxRetries,
			TimeoutSeconds: b.TimeoutSeconds,
			Enabled:        b.Enabled,
		}
	}
	return cfg
}

// ToGenerationConfig converts the model table for generation.Service.
func (c *Config) ToGenerationConfig() generation.Config {
	images := make(map[generation.Quality]generation.ImageModel, len(c.Models.Image))
	for q, m := range c.Models.Image {
		images[generation.Quality(q)] = generation.ImageModel{
			Backend:        m.Backend,
			Name:           m.Name,
			NegativePrompt: m.NegativePrompt,
		}
	}
	return generation.Config{
		Text: generation.TextModel{
			Backend:     c.Models.Text.Backend,
			Name:        c.Models.Text.Name,
			Temperature: c.Models.Text.Temperature,
		},
		Images:            images,
		AspectRatio:       c.Models.AspectRatio,
		DefaultCount:      c.Generation.DefaultCount,
		SubmitConcurrency: c.Generation.SubmitConcurrency,
	}
}

// WriteDefault writes the default configuration to the specified path.
func WriteDefault(path string) error {
	data, err := yaml.Marshal(nest(DefaultEntries()))
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# folio configuration
# API keys use ${ENV_VAR} syntax to reference environment variables
# Set these in your shell: export REPLICATE_API_TOKEN=xxx OPENAI_API_KEY=xxx
# Any key can be overridden with FOLIO_<KEY>, e.g. FOLIO_SERVER_PORT=9090

`)
	return os.WriteFile(path, append(header, data...), 0o644)
}
