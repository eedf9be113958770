// Package config loads the chatbot settings from YAML files, a .env file and the
// process environment, in that order of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Model providers.
const (
	ProviderOpenAI    = "openai"
	ProviderGemini    = "gemini"
	ProviderAnthropic = "anthropic"
)

// Search providers.
const (
	SearchTavily     = "tavily"
	SearchBrave      = "brave"
	SearchDuckDuckGo = "duckduckgo"
	// SearchNone runs the chatbot without the search tool.
	SearchNone = "none"
)

const (
	defaultMaxToolRounds  = 5
	defaultMaxResults     = 2
	defaultRequestTimeout = 60 * time.Second
	defaultTurnTimeout    = 3 * time.Minute
	configDirName         = ".searchchat"
	configFileName        = "config.yaml"
)

// DefaultModels maps each provider to the model used when none is configured.
var DefaultModels = map[string]string{
	ProviderOpenAI:    "gpt-4o-mini",
	ProviderGemini:    "gemini-2.5-flash",
	ProviderAnthropic: "claude-3-5-haiku-latest",
}

// Search configures the web search tool.
type Search struct {
	Provider   string `yaml:"provider"`
	MaxResults int    `yaml:"max_results"`
	Depth      string `yaml:"depth"`

	TavilyKey string `yaml:"-"`
	BraveKey  string `yaml:"-"`
}

// Config holds every setting the chatbot reads at startup. Credentials never come
// from YAML; they are read from the environment only.
type Config struct {
	Provider       string        `yaml:"provider"`
	Model          string        `yaml:"model"`
	BaseURL        string        `yaml:"base_url"`
	SystemPrompt   string        `yaml:"system_prompt"`
	MaxToolRounds  int           `yaml:"max_tool_rounds"`
	MaxRetries     int           `yaml:"max_retries"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	TurnTimeout    time.Duration `yaml:"turn_timeout"`
	Remember       bool          `yaml:"remember"`
	LogLevel       string        `yaml:"log_level"`
	Search         Search        `yaml:"search"`

	APIKey string `yaml:"-"`
}

// Default returns the configuration used before any file or variable is applied.
func Default() *Config {
	return &Config{
		Provider:       ProviderOpenAI,
		MaxToolRounds:  defaultMaxToolRounds,
		RequestTimeout: defaultRequestTimeout,
		TurnTimeout:    defaultTurnTimeout,
		LogLevel:       "info",
		Search: Search{
			Provider:   SearchTavily,
			MaxResults: defaultMaxResults,
			Depth:      "basic",
		},
	}
}

// Load builds the configuration: defaults, then the user-level and project-level
// config files, then SEARCHCHAT_CONFIG, then .env and the environment.
func Load() (*Config, error) {
	cfg := Default()

	if home, err := os.UserHomeDir(); err == nil {
		if err := loadIfExists(filepath.Join(home, configDirName, configFileName), cfg); err != nil {
			return nil, fmt.Errorf("failed to load user config: %w", err)
		}
	}

	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}
	if err := loadIfExists(filepath.Join(wd, configDirName, configFileName), cfg); err != nil {
		return nil, fmt.Errorf("failed to load project config: %w", err)
	}

	if path := os.Getenv("SEARCHCHAT_CONFIG"); path != "" {
		if err := LoadFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
	}

	// A missing .env is the normal case.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile merges the YAML file at path into cfg. Fields present in the file replace
// the current values.
func LoadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse yaml: %w", err)
	}
	return nil
}

func loadIfExists(path string, cfg *Config) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to stat config file %s: %w", path, err)
	}
	return LoadFile(path, cfg)
}

// ApplyEnv overrides cfg with environment variables and reads the credentials of the
// selected providers.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv("SEARCHCHAT_PROVIDER"); v != "" {
		c.Provider = strings.ToLower(v)
	}
	if v := os.Getenv("SEARCHCHAT_MODEL"); v != "" {
		c.Model = v
	}
	if v := os.Getenv("SEARCHCHAT_SEARCH_PROVIDER"); v != "" {
		c.Search.Provider = strings.ToLower(v)
	}
	if v := os.Getenv("SEARCHCHAT_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("SEARCHCHAT_MAX_TOOL_ROUNDS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid SEARCHCHAT_MAX_TOOL_ROUNDS %q: %w", v, err)
		}
		c.MaxToolRounds = n
	}

	switch c.Provider {
	case ProviderOpenAI:
		c.APIKey = os.Getenv("OPENAI_API_KEY")
		if v := firstEnv("OPENAI_API_BASE", "openai_api_base", "OPENAI_BASE_URL"); v != "" {
			c.BaseURL = v
		}
	case ProviderGemini:
		c.APIKey = os.Getenv("GEMINI_API_KEY")
	case ProviderAnthropic:
		c.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	}

	if c.Model == "" {
		c.Model = DefaultModels[c.Provider]
	}

	c.Search.TavilyKey = os.Getenv("TAVILY_API_KEY")
	c.Search.BraveKey = os.Getenv("BRAVE_API_KEY")
	return nil
}

// Validate rejects settings the chatbot cannot start with.
func (c *Config) Validate() error {
	if _, ok := DefaultModels[c.Provider]; !ok {
		return fmt.Errorf("unknown provider %q: must be one of openai, gemini, anthropic", c.Provider)
	}
	switch c.Search.Provider {
	case SearchTavily, SearchBrave, SearchDuckDuckGo, SearchNone:
	default:
		return fmt.Errorf("unknown search provider %q: must be one of tavily, brave, duckduckgo, none", c.Search.Provider)
	}
	if c.MaxToolRounds <= 0 {
		return fmt.Errorf("max_tool_rounds must be positive, got %d", c.MaxToolRounds)
	}
	if c.Search.MaxResults <= 0 {
		return fmt.Errorf("search.max_results must be positive, got %d", c.Search.MaxResults)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries cannot be negative, got %d", c.MaxRetries)
	}
	if c.RequestTimeout <= 0 || c.TurnTimeout <= 0 {
		return errors.New("request_timeout and turn_timeout must be positive")
	}
	if c.APIKey == "" {
		return fmt.Errorf("%s environment variable is required for provider %s", apiKeyEnv(c.Provider), c.Provider)
	}
	return nil
}

func apiKeyEnv(provider string) string {
	switch provider {
	case ProviderGemini:
		return "GEMINI_API_KEY"
	case ProviderAnthropic:
		return "ANTHROPIC_API_KEY"
	default:
		return "OPENAI_API_KEY"
	}
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}
