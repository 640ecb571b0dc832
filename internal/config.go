package internal

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const (
	DefaultBaseURL         = "https://api.moonshot.cn/v1"
	DefaultModel           = "kimi-k2-thinking"
	DefaultMaxTokens       = 32 * 1024
	DefaultTemperature     = 1.0
	DefaultSearchURL       = "https://s.jina.ai"
	DefaultSearchTimeout   = 20 * time.Second
	DefaultSearchMaxLength = 30000
	DefaultMaxIterations   = 300
	DefaultKeepRounds      = 3
	DefaultDataDir         = "data"
	DefaultConfigFile      = ".deep-research.yaml"
)

// Config holds everything a research run or viewer command needs
type Config struct {
	DataDir string       `yaml:"data_dir" validate:"required"`
	Model   ModelConfig  `yaml:"model"`
	Search  SearchConfig `yaml:"search"`
	Agent   AgentConfig  `yaml:"agent"`
}

// ModelConfig configures the completion service
type ModelConfig struct {
	BaseURL     string  `yaml:"base_url" validate:"required,url"`
	APIKey      string  `yaml:"api_key"`
	Name        string  `yaml:"name" validate:"required"`
	MaxTokens   int     `yaml:"max_tokens" validate:"gt=0"`
	Temperature float32 `yaml:"temperature" validate:"gte=0,lte=2"`
}

// SearchConfig configures the web search provider
type SearchConfig struct {
	URL          string        `yaml:"url" validate:"required,url"`
	APIKey       string        `yaml:"api_key"`
	Engine       string        `yaml:"engine"`
	RetainImages string        `yaml:"retain_images"`
	Timeout      time.Duration `yaml:"timeout" validate:"gt=0"`
	MaxLength    int           `yaml:"max_length" validate:"gt=0"`
	Concurrency  int           `yaml:"concurrency" validate:"gte=0"`
	RateLimit    float64       `yaml:"rate_limit" validate:"gte=0"`
}

// AgentConfig configures the conversation loop
type AgentConfig struct {
	MaxIterations int `yaml:"max_iterations" validate:"gt=0"`
	KeepRounds    int `yaml:"keep_rounds" validate:"gte=0"`
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	return &Config{
		DataDir: DefaultDataDir,
		Model: ModelConfig{
			BaseURL:     DefaultBaseURL,
			Name:        DefaultModel,
			MaxTokens:   DefaultMaxTokens,
			Temperature: DefaultTemperature,
		},
		Search: SearchConfig{
			URL:          DefaultSearchURL,
			Engine:       "direct",
			RetainImages: "none",
			Timeout:      DefaultSearchTimeout,
			MaxLength:    DefaultSearchMaxLength,
		},
		Agent: AgentConfig{
			MaxIterations: DefaultMaxIterations,
			KeepRounds:    DefaultKeepRounds,
		},
	}
}

// DefaultConfigPath returns ~/.deep-research.yaml, or "" if there is no home dir
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, DefaultConfigFile)
}

// LoadConfig layers defaults, the YAML file at path and the environment, then
// validates the result. An empty path falls back to DefaultConfigPath, which
// may be absent; an explicit path must exist.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	explicit := path != ""
	if !explicit {
		path = DefaultConfigPath()
	}
	if path != "" {
		if err := cfg.mergeFile(path, explicit); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv(os.Getenv)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string, mustExist bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !mustExist {
			return nil
		}
		return &ConfigError{Field: "config", Err: fmt.Errorf("read %s: %w", path, err)}
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return &ConfigError{Field: "config", Err: fmt.Errorf("parse %s: %w", path, err)}
	}
	LogDebug("Loaded config file %s", path)
	return nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	set := func(dst *string, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	set(&c.Model.BaseURL, "MOONSHOT_BASE_URL")
	set(&c.Model.APIKey, "MOONSHOT_API_KEY")
	set(&c.Model.Name, "DEEP_RESEARCH_MODEL")
	set(&c.Search.URL, "SEARCH_URL")
	set(&c.Search.APIKey, "SEARCH_API_KEY")
	set(&c.DataDir, "DEEP_RESEARCH_DATA_DIR")
}

var validate = validator.New()

// Validate checks field constraints and reports the first violation as a ConfigError
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return &ConfigError{
			Field: fe.Namespace(),
			Err:   fmt.Errorf("failed %q constraint (value %v)", fe.Tag(), fe.Value()),
		}
	}
	return &ConfigError{Field: "config", Err: err}
}

// RequireModelCredentials fails when no completion-service API key is configured
func (c *Config) RequireModelCredentials() error {
	if c.Model.APIKey == "" {
		return &ConfigError{
			Field: "model.api_key",
			Err:   errors.New("MOONSHOT_API_KEY is not set"),
		}
	}
	return nil
}
