package config

import (
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackzampolin/folio/internal/generation"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configFile := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configFile, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return configFile
}

func TestResolveEnvVars(t *testing.T) {
	t.Setenv("TEST_API_KEY", "secret123")

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"resolves environment variable", "${TEST_API_KEY}", "secret123"},
		{"embedded reference", "Token ${TEST_API_KEY}!", "Token secret123!"},
		{"missing env var", "${DEFINITELY_NOT_SET_12345}", ""},
		{"literal", "literal-value", "literal-value"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ResolveEnvVars(tt.input); got != tt.want {
				t.Errorf("ResolveEnvVars(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNewManager(t *testing.T) {
	t.Run("defaults without a file", func(t *testing.T) {
		mgr, err := NewManager("", t.TempDir())
		if err != nil {
			t.Fatalf("failed to create manager: %v", err)
		}

		cfg := mgr.Get()
		if cfg.Server.Port != "8080" {
			t.Errorf("Server.Port = %q, want 8080", cfg.Server.Port)
		}
		if cfg.Client.PollInterval != 1500*time.Millisecond {
			t.Errorf("PollInterval = %v, want 1.5s", cfg.Client.PollInterval)
		}
		if b := cfg.Backends["replicate"]; b.Type != "replicate" || b.RateLimit != 600 || !b.Enabled {
			t.Errorf("replicate backend = %+v", b)
		}
		if mgr.ConfigFile() != "" {
			t.Errorf("ConfigFile() = %q, want empty", mgr.ConfigFile())
		}
	})

	t.Run("file overrides merge with defaults", func(t *testing.T) {
		configFile := writeConfig(t, `
server:
  port: "9090"
backends:
  replicate:
    api_key: literal-token
models:
  text:
    name: meta/llama-3
  image:
    high:
      name: custom/high
`)
		mgr, err := NewManager(configFile)
		if err != nil {
			t.Fatalf("failed to create manager: %v", err)
		}

		cfg := mgr.Get()
		if cfg.Server.Port != "9090" || cfg.Server.Host != "127.0.0.1" {
			t.Errorf("Server = %+v", cfg.Server)
		}
		if b := cfg.Backends["replicate"]; b.APIKey != "literal-token" || b.MaxRetries != 3 {
			t.Errorf("replicate backend = %+v", b)
		}
		if cfg.Models.Text.Name != "meta/llama-3" || cfg.Models.Text.Temperature != 0.7 {
			t.Errorf("text model = %+v", cfg.Models.Text)
		}
		if high := cfg.Models.Image["high"]; high.Name != "custom/high" || !high.NegativePrompt {
			t.Errorf("high model = %+v", high)
		}
	})

	t.Run("environment overrides", func(t *testing.T) {
		t.Setenv("FOLIO_SERVER_PORT", "7070")
		t.Setenv("FOLIO_GENERATION_DEFAULT_COUNT", "6")

		mgr, err := NewManager("", t.TempDir())
		if err != nil {
			t.Fatalf("failed to create manager: %v", err)
		}
		cfg := mgr.Get()
		if cfg.Server.Port != "7070" || cfg.Generation.DefaultCount != 6 {
			t.Errorf("env overrides not applied: %+v %+v", cfg.Server, cfg.Generation)
		}
	})

	t.Run("invalid config is rejected", func(t *testing.T) {
		configFile := writeConfig(t, `
generation:
  default_count: 500
`)
		if _, err := NewManager(configFile); err == nil {
			t.Error("expected validation error")
		}
	})

	t.Run("malformed file", func(t *testing.T) {
		configFile := writeConfig(t, "server: [unclosed\n")
		if _, err := NewManager(configFile); err == nil {
			t.Error("expected read error")
		}
	})
}

func TestConfig_Converters(t *testing.T) {
	t.Setenv("TEST_REPLICATE_TOKEN", "r8-abc")

	mgr, err := NewManager(writeConfig(t, `
backends:
  replicate:
    api_key: ${TEST_REPLICATE_TOKEN}
  openai:
    enabled: false
`))
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}
	cfg := mgr.Get()

	t.Run("registry config", func(t *testing.T) {
		rc := cfg.ToProviderRegistryConfig()
		rep := rc.Backends["replicate"]
		if rep.APIKey != "r8-abc" || rep.BaseURL != "https://api.replicate.com/v1" || rep.TimeoutSeconds != 60 {
			t.Errorf("replicate = %+v", rep)
		}
		if rc.Backends["openai"].Enabled {
			t.Error("openai should be disabled")
		}
	})

	t.Run("generation config", func(t *testing.T) {
		gc := cfg.ToGenerationConfig()
		if gc.Text.Name != "openai/gpt-5-nano" || gc.AspectRatio != "9:16" || gc.SubmitConcurrency != 4 {
			t.Errorf("generation config = %+v", gc)
		}
		low := gc.Images[generation.QualityLow]
		if low.Name != "black-forest-labs/flux-schnell" || low.NegativePrompt {
			t.Errorf("low = %+v", low)
		}
		if !gc.Images[generation.QualityHigh].NegativePrompt {
			t.Error("high tier should accept negative_prompt")
		}
	})
}

func TestManager_OnChange_Multiple(t *testing.T) {
	mgr, err := NewManager("", t.TempDir())
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}

	mgr.OnChange(func(cfg *Config) {})
	mgr.OnChange(func(cfg *Config) {})
	mgr.OnChange(func(cfg *Config) {})

	mgr.mu.RLock()
	if len(mgr.callbacks) != 3 {
		t.Errorf("expected 3 callbacks, got %d", len(mgr.callbacks))
	}
	mgr.mu.RUnlock()
}

func TestManager_Get_ThreadSafe(t *testing.T) {
	mgr, err := NewManager("", t.TempDir())
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}

	done := make(chan struct{})
	for i := 0; i < 10; i++ {
		go func() {
			for j := 0; j < 100; j++ {
				_ = mgr.Get().Server.Port
			}
			done <- struct{}{}
		}()
	}
	for i := 0; i < 10; i++ {
		<-done
	}
}

func TestManager_WatchConfig(t *testing.T) {
	configFile := writeConfig(t, `
models:
  text:
    name: initial/model
`)
	mgr, err := NewManager(configFile)
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}

	var callbackCount atomic.Int32
	var lastValue atomic.Value
	mgr.OnChange(func(cfg *Config) {
		callbackCount.Add(1)
		lastValue.Store(cfg.Models.Text.Name)
	})

	mgr.WatchConfig()

	// Give fsnotify time to set up the watcher
	time.Sleep(100 * time.Millisecond)

	newContent := `
models:
  text:
    name: updated/model
`
	if err := os.WriteFile(configFile, []byte(newContent), 0o644); err != nil {
		t.Fatalf("failed to write updated config file: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if callbackCount.Load() > 0 {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}

	if callbackCount.Load() == 0 {
		t.Fatal("callback was not invoked after config file change")
	}
	if got := mgr.Get().Models.Text.Name; got != "updated/model" {
		t.Errorf("config not updated: got %s", got)
	}
	if v := lastValue.Load(); v != "updated/model" {
		t.Errorf("callback received wrong value: %v", v)
	}
}

func TestWriteDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := WriteDefault(path); err != nil {
		t.Fatalf("WriteDefault() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"# folio configuration", "${REPLICATE_API_TOKEN}", "poll_interval: 1500ms"} {
		if !strings.Contains(string(data), want) {
			t.Errorf("default config missing %q", want)
		}
	}

	// The written file must load back to the defaults.
	mgr, err := NewManager(path)
	if err != nil {
		t.Fatalf("NewManager(default file) error = %v", err)
	}
	if mgr.Get().Models.AspectRatio != "9:16" {
		t.Errorf("AspectRatio = %q", mgr.Get().Models.AspectRatio)
	}
}

func TestDefaults(t *testing.T) {
	t.Run("known key", func(t *testing.T) {
		entry := GetDefault("models.image.low.name")
		if entry == nil || entry.Value != "black-forest-labs/flux-schnell" {
			t.Errorf("GetDefault() = %+v", entry)
		}
	})

	t.Run("unknown key", func(t *testing.T) {
		if entry := GetDefault("does.not.exist"); entry != nil {
			t.Errorf("GetDefault() = %+v, want nil", entry)
		}
	})

	t.Run("settings redact literal secrets", func(t *testing.T) {
		mgr, err := NewManager(writeConfig(t, `
backends:
  replicate:
    api_key: r8-literal
`))
		if err != nil {
			t.Fatalf("failed to create manager: %v", err)
		}

		byKey := make(map[string]Entry)
		for _, e := range mgr.Settings() {
			byKey[e.Key] = e
		}
		if got := byKey["backends.replicate.api_key"].Value; got != "********" {
			t.Errorf("replicate api_key = %v", got)
		}
		if got := byKey["backends.openai.api_key"].Value; got != "${OPENAI_API_KEY}" {
			t.Errorf("openai api_key = %v", got)
		}
		if byKey["server.port"].Description == "" {
			t.Error("expected description for server.port")
		}
	})
}
