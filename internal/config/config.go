// Package config provides configuration loading and management.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the service configuration.
type Config struct {
	Server    ServerConfig    `toml:"server"`
	Skills    SkillsConfig    `toml:"skills"`
	Agents    AgentsConfig    `toml:"agents"`
	LLM       LLMConfig       `toml:"llm"`
	Sessions  SessionsConfig  `toml:"sessions"`
	Telemetry TelemetryConfig `toml:"telemetry"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Addr string `toml:"addr"`
}

// SkillsConfig contains skill discovery settings.
type SkillsConfig struct {
	Path   string `toml:"path"`   // Directory to search for skills
	Strict bool   `toml:"strict"` // Promote validation warnings to errors
	Watch  bool   `toml:"watch"`  // Rebuild agents when skill files change
}

// AgentsConfig locates the top-level agents configuration.
type AgentsConfig struct {
	ConfigPath   string `toml:"config_path"` // agents YAML file
	DefaultModel string `toml:"default_model"`
}

// LLMConfig contains LLM provider settings.
type LLMConfig struct {
	APIKeyEnv string `toml:"api_key_env"`
	MaxTokens int    `toml:"max_tokens"`
	BaseURL   string `toml:"base_url"` // Custom API endpoint (OpenRouter, LiteLLM, Ollama)
}

// SessionsConfig contains session persistence settings.
type SessionsConfig struct {
	Path string `toml:"path"` // SQLite database path; ":memory:" for ephemeral
}

// TelemetryConfig contains telemetry settings.
type TelemetryConfig struct {
	Enabled  bool   `toml:"enabled"`
	Endpoint string `toml:"endpoint"` // OTLP endpoint (e.g., localhost:4317)
	Protocol string `toml:"protocol"` // grpc (default) or http
}

// New creates a new config with defaults.
func New() *Config {
	return &Config{
		Server: ServerConfig{
			Addr: ":8080",
		},
		Skills: SkillsConfig{
			Path: "skills",
		},
		Agents: AgentsConfig{
			ConfigPath: "agents.yaml",
		},
		LLM: LLMConfig{
			MaxTokens: 4096,
		},
		Sessions: SessionsConfig{
			Path: "sessions.db",
		},
		Telemetry: TelemetryConfig{
			Protocol: "noop",
		},
	}
}

// Default returns a default configuration.
func Default() *Config {
	return New()
}

// LoadFile loads configuration from a TOML file.
func LoadFile(path string) (*Config, error) {
	cfg := New()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// LoadDefault loads configuration from skillhub.toml in the current
// directory, falling back to defaults when the file is absent.
func LoadDefault() (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get current directory: %w", err)
	}

	path := filepath.Join(cwd, "skillhub.toml")
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return New(), nil
	}
	return LoadFile(path)
}

// GetAPIKey returns the API key for a provider, preferring the
// configured environment variable over the provider's default one.
func (c *Config) GetAPIKey(provider string) string {
	envVar := c.LLM.APIKeyEnv
	if envVar == "" {
		envVar = DefaultAPIKeyEnv(provider)
	}
	if envVar == "" {
		return ""
	}
	return os.Getenv(envVar)
}

// DefaultAPIKeyEnv returns the default environment variable name for a provider.
func DefaultAPIKeyEnv(provider string) string {
	switch provider {
	case "anthropic":
		return "ANTHROPIC_API_KEY"
	case "openai":
		return "OPENAI_API_KEY"
	case "google":
		return "GOOGLE_API_KEY"
	case "mistral":
		return "MISTRAL_API_KEY"
	case "groq":
		return "GROQ_API_KEY"
	default:
		return ""
	}
}
