package internal

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("DefaultConfig().Validate() error = %v", err)
	}
	if cfg.Agent.MaxIterations != 300 || cfg.Agent.KeepRounds != 3 {
		t.Errorf("agent defaults = %+v", cfg.Agent)
	}
	if cfg.Search.MaxLength != 30000 || cfg.Search.Timeout != 20*time.Second {
		t.Errorf("search defaults = %+v", cfg.Search)
	}
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `data_dir: /tmp/research
model:
  name: custom-model
  temperature: 0.6
search:
  timeout: 5s
  max_length: 1200
agent:
  max_iterations: 12
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("MOONSHOT_API_KEY", "sk-test")
	t.Setenv("SEARCH_URL", "http://localhost:9999/search")
	t.Setenv("DEEP_RESEARCH_MODEL", "")
	t.Setenv("MOONSHOT_BASE_URL", "")
	t.Setenv("DEEP_RESEARCH_DATA_DIR", "")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.DataDir != "/tmp/research" {
		t.Errorf("DataDir = %q", cfg.DataDir)
	}
	if cfg.Model.Name != "custom-model" {
		t.Errorf("Model.Name = %q, empty env must not override file", cfg.Model.Name)
	}
	if cfg.Model.APIKey != "sk-test" {
		t.Errorf("Model.APIKey not taken from env")
	}
	if cfg.Search.URL != "http://localhost:9999/search" {
		t.Errorf("Search.URL = %q", cfg.Search.URL)
	}
	if cfg.Search.Timeout != 5*time.Second || cfg.Search.MaxLength != 1200 {
		t.Errorf("Search = %+v", cfg.Search)
	}
	if cfg.Agent.MaxIterations != 12 || cfg.Agent.KeepRounds != DefaultKeepRounds {
		t.Errorf("Agent = %+v", cfg.Agent)
	}
	if cfg.Model.BaseURL != DefaultBaseURL {
		t.Errorf("Model.BaseURL = %q, want default", cfg.Model.BaseURL)
	}
}

func TestLoadConfig_ExplicitMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("LoadConfig() error = %v, want ConfigError", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"zero iterations", func(c *Config) { c.Agent.MaxIterations = 0 }, "Config.Agent.MaxIterations"},
		{"negative keep rounds", func(c *Config) { c.Agent.KeepRounds = -1 }, "Config.Agent.KeepRounds"},
		{"bad base url", func(c *Config) { c.Model.BaseURL = "not a url" }, "Config.Model.BaseURL"},
		{"temperature too high", func(c *Config) { c.Model.Temperature = 3 }, "Config.Model.Temperature"},
		{"empty data dir", func(c *Config) { c.DataDir = "" }, "Config.DataDir"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("Validate() error = %v, want ConfigError", err)
			}
			if cfgErr.Field != tt.field {
				t.Errorf("ConfigError.Field = %q, want %q", cfgErr.Field, tt.field)
			}
		})
	}
}

func TestRequireModelCredentials(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.RequireModelCredentials()
	if err == nil || !IsFatal(err) {
		t.Fatalf("RequireModelCredentials() error = %v, want fatal ConfigError", err)
	}
	cfg.Model.APIKey = "sk-123"
	if err := cfg.RequireModelCredentials(); err != nil {
		t.Errorf("RequireModelCredentials() error = %v", err)
	}
}
