// Package config handles scrivener configuration loading.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultSearchPaths returns the config file search order.
// An explicit path (from -config flag) is checked first.
// Then: ./scrivener.yaml, ~/.config/scrivener/config.yaml,
// /etc/scrivener/config.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"scrivener.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "scrivener", "config.yaml"))
	}

	paths = append(paths, "/etc/scrivener/config.yaml")
	return paths
}

// FindConfig locates a config file. If explicit is non-empty, it must exist.
// Otherwise, searches DefaultSearchPaths and returns the first that exists.
// Returns the path found, or an error if nothing was found.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", DefaultSearchPaths())
}

// Config holds all scrivener configuration.
type Config struct {
	Slack     SlackConfig  `yaml:"slack"`
	OpenAI    OpenAIConfig `yaml:"openai"`
	Agent     AgentConfig  `yaml:"agent"`
	NotesDir  string       `yaml:"notes_dir"`
	MemoryDir string       `yaml:"memory_dir"`
	DataDir   string       `yaml:"data_dir"`
	LogLevel  string       `yaml:"log_level"`
}

// SlackConfig defines Slack workspace connection settings.
type SlackConfig struct {
	// BotToken is the xoxb- token used for Web API calls.
	BotToken string `yaml:"bot_token"`
	// AppToken is the xapp- token used to open a Socket Mode connection.
	AppToken string `yaml:"app_token"`
	// RateLimit is the maximum messages accepted per sender per minute.
	// Zero means unlimited.
	RateLimit int `yaml:"rate_limit"`
	// UserCacheSize bounds the display-name cache. Default 128.
	UserCacheSize int `yaml:"user_cache_size"`
	// UserCacheTTLMinutes bounds how long a cached display name is
	// trusted. Default 60.
	UserCacheTTLMinutes int `yaml:"user_cache_ttl_minutes"`
}

// OpenAIConfig defines the completion endpoint settings.
type OpenAIConfig struct {
	APIKey string `yaml:"api_key"`
	// BaseURL overrides the API origin (default https://api.openai.com/v1).
	// Useful for proxies and tests.
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
	// WebSearch advertises the hosted web_search tool to the model.
	WebSearch bool `yaml:"web_search"`
}

// AgentConfig tunes the conversation loop.
type AgentConfig struct {
	// MaxRounds caps tool-calling rounds per user turn. Default 8.
	MaxRounds int `yaml:"max_rounds"`
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables so tokens can live outside the file.
	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Default returns a default configuration.
func Default() *Config {
	return &Config{
		Slack: SlackConfig{
			RateLimit:           10,
			UserCacheSize:       128,
			UserCacheTTLMinutes: 60,
		},
		OpenAI: OpenAIConfig{
			Model: "gpt-4o",
		},
		Agent: AgentConfig{
			MaxRounds: 8,
		},
		NotesDir:  "notes",
		MemoryDir: "memory",
		DataDir:   "data",
	}
}

// Validate reports configuration problems that would prevent startup.
func (c *Config) Validate() error {
	if c.OpenAI.APIKey == "" {
		return fmt.Errorf("openai.api_key is required")
	}
	if c.Agent.MaxRounds <= 0 {
		return fmt.Errorf("agent.max_rounds must be positive")
	}
	return nil
}
