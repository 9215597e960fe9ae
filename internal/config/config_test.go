package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNew_Defaults(t *testing.T) {
	cfg := New()
	if cfg.Server.Addr != ":8080" {
		t.Errorf("addr wrong. expected=%q, got=%q", ":8080", cfg.Server.Addr)
	}
	if cfg.LLM.MaxTokens != 4096 {
		t.Errorf("max tokens wrong. expected=%d, got=%d", 4096, cfg.LLM.MaxTokens)
	}
	if cfg.Telemetry.Protocol != "noop" {
		t.Errorf("telemetry protocol wrong. expected=%q, got=%q", "noop", cfg.Telemetry.Protocol)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "skillhub.toml")
	content := `
[server]
addr = ":9090"

[skills]
path = "/opt/skills"
strict = true

[agents]
config_path = "/opt/agents.yaml"
default_model = "gpt-4.1"

[sessions]
path = ":memory:"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	if cfg.Server.Addr != ":9090" {
		t.Errorf("addr wrong. expected=%q, got=%q", ":9090", cfg.Server.Addr)
	}
	if cfg.Skills.Path != "/opt/skills" || !cfg.Skills.Strict {
		t.Errorf("skills config wrong: %+v", cfg.Skills)
	}
	if cfg.Agents.DefaultModel != "gpt-4.1" {
		t.Errorf("default model wrong. expected=%q, got=%q", "gpt-4.1", cfg.Agents.DefaultModel)
	}
	// Unset sections keep defaults.
	if cfg.LLM.MaxTokens != 4096 {
		t.Errorf("max tokens should default. expected=%d, got=%d", 4096, cfg.LLM.MaxTokens)
	}
}

func TestLoadFile_Malformed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.toml")
	if err := os.WriteFile(path, []byte("[server\naddr = 1"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFile(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestGetAPIKey(t *testing.T) {
	t.Setenv("SKILLHUB_TEST_KEY", "from-custom")
	t.Setenv("OPENAI_API_KEY", "from-default")

	cfg := New()
	if got := cfg.GetAPIKey("openai"); got != "from-default" {
		t.Errorf("default env wrong. expected=%q, got=%q", "from-default", got)
	}

	cfg.LLM.APIKeyEnv = "SKILLHUB_TEST_KEY"
	if got := cfg.GetAPIKey("openai"); got != "from-custom" {
		t.Errorf("configured env should win. expected=%q, got=%q", "from-custom", got)
	}

	cfg.LLM.APIKeyEnv = ""
	if got := cfg.GetAPIKey("unknown-provider"); got != "" {
		t.Errorf("unknown provider should yield empty key, got %q", got)
	}
}
