package compose

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/skillhub-ai/skillhub/internal/skill"
)

func writeSkillDir(t *testing.T, base, name, extra string) string {
	t.Helper()
	dir := filepath.Join(base, name)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	content := "---\nname: " + name + "\ndescription: Unit " + name + " used in builder tests.\n" + extra + "---\n\nInstructions for " + name + ".\n"
	if err := os.WriteFile(filepath.Join(dir, skill.MetadataFile), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func loadUnit(t *testing.T, dir string) *skill.Unit {
	t.Helper()
	unit, err := skill.Load(dir)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	return unit
}

func TestBuild_Simple(t *testing.T) {
	base := t.TempDir()
	unit := loadUnit(t, writeSkillDir(t, base, "solo", "model: gpt-4.1\n"))

	b := NewBuilder("")
	agent, err := b.Build(unit, nil)
	if err != nil {
		t.Fatalf("build error: %v", err)
	}

	if agent.Name != "solo" {
		t.Errorf("name wrong. expected=%q, got=%q", "solo", agent.Name)
	}
	if agent.Model != "gpt-4.1" {
		t.Errorf("declared model should win. expected=%q, got=%q", "gpt-4.1", agent.Model)
	}
	if len(agent.Tools) != 0 {
		t.Errorf("expected no tools, got %d", len(agent.Tools))
	}
	if !strings.HasPrefix(agent.Instructions, "# solo") {
		t.Errorf("instructions should start with header, got %q", agent.Instructions[:20])
	}
	if !strings.Contains(agent.Instructions, "Instructions for solo.") {
		t.Error("instructions should contain the rendered body")
	}
}

func TestBuild_DefaultModelFallback(t *testing.T) {
	base := t.TempDir()
	unit := loadUnit(t, writeSkillDir(t, base, "plain", ""))

	agent, err := NewBuilder("gpt-4.1-mini").Build(unit, nil)
	if err != nil {
		t.Fatalf("build error: %v", err)
	}
	if agent.Model != "gpt-4.1-mini" {
		t.Errorf("default model should apply. expected=%q, got=%q", "gpt-4.1-mini", agent.Model)
	}
}

func TestBuild_SubAgentsBecomeTools(t *testing.T) {
	base := t.TempDir()
	writeSkillDir(t, base, "data-helper", "")
	unit := loadUnit(t, writeSkillDir(t, base, "orchestrator", "sub_agents:\n  - data-helper\ntool_name_prefix: \"ask_\"\n"))

	agent, err := NewBuilder("m").Build(unit, nil)
	if err != nil {
		t.Fatalf("build error: %v", err)
	}
	if len(agent.Tools) != 1 {
		t.Fatalf("expected 1 tool, got %d", len(agent.Tools))
	}
	tool := agent.Tools[0]
	if tool.Name != "ask_data_helper" {
		t.Errorf("tool name wrong. expected=%q, got=%q", "ask_data_helper", tool.Name)
	}
	if tool.Agent == nil || tool.Agent.Name != "data-helper" {
		t.Errorf("tool should wrap the sub-agent, got %+v", tool.Agent)
	}
	if !strings.Contains(tool.Description, "data-helper") {
		t.Errorf("description should fall back to the sub-agent's, got %q", tool.Description)
	}
}

func TestBuild_ToolDescriptionOverride(t *testing.T) {
	base := t.TempDir()
	writeSkillDir(t, base, "data-helper", "")
	unit := loadUnit(t, writeSkillDir(t, base, "orchestrator",
		"sub_agents:\n  - data-helper\ntool_descriptions:\n  data-helper: Use for narrow lookups only.\n"))

	agent, err := NewBuilder("m").Build(unit, nil)
	if err != nil {
		t.Fatalf("build error: %v", err)
	}
	if agent.Tools[0].Description != "Use for narrow lookups only." {
		t.Errorf("override should win, got %q", agent.Tools[0].Description)
	}
}

func TestBuild_CacheReturnsIdenticalInstance(t *testing.T) {
	base := t.TempDir()
	unit := loadUnit(t, writeSkillDir(t, base, "cached", ""))

	b := NewBuilder("m")
	first, err := b.Build(unit, map[string]interface{}{"k": "v"})
	if err != nil {
		t.Fatalf("build error: %v", err)
	}
	second, err := b.Build(unit, map[string]interface{}{"k": "v"})
	if err != nil {
		t.Fatalf("build error: %v", err)
	}
	if first != second {
		t.Error("same unit and variables should hit the cache")
	}

	third, err := b.Build(unit, map[string]interface{}{"k": "other"})
	if err != nil {
		t.Fatalf("build error: %v", err)
	}
	if first == third {
		t.Error("different variables should build a fresh agent")
	}
}

func TestBuild_ClearCache(t *testing.T) {
	base := t.TempDir()
	unit := loadUnit(t, writeSkillDir(t, base, "cached", ""))

	b := NewBuilder("m")
	first, _ := b.Build(unit, nil)
	b.ClearCache()
	second, _ := b.Build(unit, nil)
	if first == second {
		t.Error("ClearCache should force a rebuild")
	}
}

func TestBuild_CycleDetected(t *testing.T) {
	base := t.TempDir()
	writeSkillDir(t, base, "ping", "sub_agents:\n  - pong\n")
	writeSkillDir(t, base, "pong", "sub_agents:\n  - ping\n")

	unit := loadUnit(t, filepath.Join(base, "ping"))
	_, err := NewBuilder("m").Build(unit, nil)

	var cre *CyclicReferenceError
	if !errors.As(err, &cre) {
		t.Fatalf("expected CyclicReferenceError, got %v", err)
	}
	want := []string{"ping", "pong", "ping"}
	if len(cre.Chain) != len(want) {
		t.Fatalf("chain wrong. expected=%v, got=%v", want, cre.Chain)
	}
	for i := range want {
		if cre.Chain[i] != want[i] {
			t.Errorf("chain[%d] wrong. expected=%q, got=%q", i, want[i], cre.Chain[i])
		}
	}
}

func TestBuild_SelfReferenceDetected(t *testing.T) {
	base := t.TempDir()
	writeSkillDir(t, base, "narcissus", "sub_agents:\n  - narcissus\n")

	unit := loadUnit(t, filepath.Join(base, "narcissus"))
	_, err := NewBuilder("m").Build(unit, nil)

	var cre *CyclicReferenceError
	if !errors.As(err, &cre) {
		t.Fatalf("expected CyclicReferenceError, got %v", err)
	}
}

func TestBuild_UnresolvedSubAgentAbortsWholeTree(t *testing.T) {
	base := t.TempDir()
	writeSkillDir(t, base, "data-helper", "")
	unit := loadUnit(t, writeSkillDir(t, base, "orchestrator", "sub_agents:\n  - data-helper\n  - ghost\n"))

	if _, err := NewBuilder("m").Build(unit, nil); err == nil {
		t.Fatal("expected build to fail on unresolved sub-agent")
	}
}

func TestBuild_VariablesRenderInstructions(t *testing.T) {
	base := t.TempDir()
	dir := filepath.Join(base, "templated")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	content := "---\nname: templated\ndescription: Templated unit for variable tests.\n---\n\nReport to {{ owner|default:\"nobody\" }}.\n"
	if err := os.WriteFile(filepath.Join(dir, skill.MetadataFile), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	unit := loadUnit(t, dir)

	agent, err := NewBuilder("m").Build(unit, map[string]interface{}{"owner": "Ada"})
	if err != nil {
		t.Fatalf("build error: %v", err)
	}
	if !strings.Contains(agent.Instructions, "Report to Ada.") {
		t.Errorf("variables should render, got %q", agent.Instructions)
	}
}

func TestBuild_ResourceInventoryListed(t *testing.T) {
	base := t.TempDir()
	dir := writeSkillDir(t, base, "equipped", "")
	scripts := filepath.Join(dir, "scripts")
	if err := os.MkdirAll(scripts, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(scripts, "fetch.py"), []byte("pass\n"), 0644); err != nil {
		t.Fatal(err)
	}
	unit := loadUnit(t, dir)

	agent, err := NewBuilder("m").Build(unit, nil)
	if err != nil {
		t.Fatalf("build error: %v", err)
	}
	if !strings.Contains(agent.Instructions, "## Available Resources") {
		t.Error("instructions should list available resources")
	}
	if !strings.Contains(agent.Instructions, "scripts/fetch.py") {
		t.Errorf("instructions should name the script, got %q", agent.Instructions)
	}
}

func TestNormalizeToolName(t *testing.T) {
	cases := map[string]string{
		"data-analyzer": "data_analyzer",
		"My Helper":     "my_helper",
		"plain":         "plain",
		"a-b c":         "a_b_c",
	}
	for in, want := range cases {
		if got := NormalizeToolName(in); got != want {
			t.Errorf("NormalizeToolName(%q) wrong. expected=%q, got=%q", in, want, got)
		}
	}
}
