package providers

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Backend types understood by the registry.
const (
	TypeReplicate = "replicate"
	TypeOpenAI    = "openai"
)

// Registry holds named job clients.
// It supports config-driven instantiation, hot-reload, and provides thread-safe access.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]registered
	keyless map[string]bool // enabled in config but missing a credential
	logger  *slog.Logger
}

type registered struct {
	client JobClient
	cfg    BackendConfig
}

// NewRegistry creates a new empty registry.
func NewRegistry() *Registry {
	return &Registry{
		clients: make(map[string]registered),
		keyless: make(map[string]bool),
		logger:  slog.Default(),
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger *slog.Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logger = logger
}

// Register adds a client under name, replacing any previous one.
func (r *Registry) Register(name string, client JobClient) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[name] = registered{client: client}
	if r.logger != nil {
		r.logger.Info("registered backend", "name", name, "type", client.Name())
	}
}

// Unregister removes a client by name.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.clients, name)
	if r.logger != nil {
		r.logger.Info("unregistered backend", "name", name)
	}
}

// Get returns a client by name. A backend that is enabled in config but has
// no API key yields an *AuthError.
func (r *Registry) Get(name string) (JobClient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.clients[name]
	if !ok {
		if r.keyless[name] {
			return nil, &AuthError{Backend: name}
		}
		return nil, fmt.Errorf("backend not found: %s", name)
	}
	return entry.client, nil
}

// Has checks if a client is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.clients[name]
	return ok
}

// List returns registered backend names in sorted order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.clients))
	for name := range r.clients {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RegistryConfig defines the backends to instantiate from config.
type RegistryConfig struct {
	Backends map[string]BackendConfig
}

// BackendConfig matches config.BackendCfg with the API key resolved.
type BackendConfig struct {
	Type           string // "replicate", "openai"
	BaseURL        string
	APIKey         string
	RateLimit      int // Requests per minute
	MaxRetries     int
	TimeoutSeconds int
	Enabled        bool
}

// NewRegistryFromConfig creates a registry with backends based on configuration.
// Only enabled backends with an API key are registered.
func NewRegistryFromConfig(cfg RegistryConfig) *Registry {
	r := NewRegistry()
	r.Reload(cfg)
	return r
}

// Reload updates the registry based on new configuration.
// Backends no longer configured are unregistered; backends whose settings
// changed are rebuilt; unchanged backends keep their client (and its limiter).
func (r *Registry) Reload(cfg RegistryConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()

	want := make(map[string]bool)
	r.keyless = make(map[string]bool)
	for name, bc := range cfg.Backends {
		if !bc.Enabled {
			continue
		}
		if bc.APIKey == "" {
			r.keyless[name] = true
			if r.logger != nil {
				r.logger.Warn("backend has no API key", "name", name, "type", bc.Type)
			}
			continue
		}

		existing, hasExisting := r.clients[name]
		if hasExisting && existing.cfg == bc {
			want[name] = true
			continue
		}

		client := createClient(bc)
		if client == nil {
			if r.logger != nil {
				r.logger.Warn("unknown backend type", "name", name, "type", bc.Type)
			}
			continue
		}
		want[name] = true
		r.clients[name] = registered{client: client, cfg: bc}
		if r.logger != nil {
			if hasExisting {
				r.logger.Info("updated backend", "name", name, "type", bc.Type)
			} else {
				r.logger.Info("registered backend", "name", name, "type", bc.Type)
			}
		}
	}

	for name := range r.clients {
		if !want[name] {
			delete(r.clients, name)
			if r.logger != nil {
				r.logger.Info("unregistered backend", "name", name)
			}
		}
	}
}

// createClient creates a job client based on backend type.
func createClient(cfg BackendConfig) JobClient {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	switch cfg.Type {
	case TypeReplicate:
		return NewReplicateClient(ReplicateConfig{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			RateLimit:  cfg.RateLimit,
			MaxRetries: cfg.MaxRetries,
			Timeout:    timeout,
		})
	case TypeOpenAI:
		return NewOpenAIClient(OpenAIConfig{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			RateLimit:  cfg.RateLimit,
			MaxRetries: cfg.MaxRetries,
			Timeout:    timeout,
		})
	default:
		return nil
	}
}
