// Package registry loads the top-level agents configuration: a YAML
// file naming the agents to expose, the skill each one is built from,
// and per-agent overrides. Loading is partial-tolerant: one broken
// entry is logged and skipped without failing the rest.
package registry

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/skillhub-ai/skillhub/internal/compose"
	"github.com/skillhub-ai/skillhub/internal/skill"
	"github.com/vinayprograms/agentkit/logging"
	"gopkg.in/yaml.v3"
)

var log = logging.New().WithComponent("registry")

// Entry declares one exposed agent.
type Entry struct {
	Name             string                 `yaml:"name"`
	Skill            string                 `yaml:"skill"`
	Model            string                 `yaml:"model,omitempty"`
	SubAgents        []string               `yaml:"sub_agents,omitempty"`
	ToolDescriptions map[string]string      `yaml:"tool_descriptions,omitempty"`
	Variables        map[string]interface{} `yaml:"variables,omitempty"`
}

// Config is the agents configuration file.
type Config struct {
	DefaultModel    string  `yaml:"default_model,omitempty"`
	SkillsDirectory string  `yaml:"skills_directory,omitempty"`
	Agents          []Entry `yaml:"agents"`
}

// Load reads and parses the agents configuration at path.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &skill.NotFoundError{Path: path, What: "agents config"}
		}
		return nil, fmt.Errorf("failed to read agents config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, &skill.ParseError{Path: path, Err: err}
	}
	if len(cfg.Agents) == 0 {
		return nil, fmt.Errorf("agents config %s declares no agents", path)
	}
	return &cfg, nil
}

// Registry holds the agents built from one configuration file.
type Registry struct {
	builder *compose.Builder
	agents  map[string]*compose.Agent
	order   []string
}

// LoadAll loads the configuration at path and builds every declared
// agent. overrides are merged over each entry's variables, overrides
// winning. Entries that fail to resolve or build are logged and
// omitted; an error is returned only when the configuration itself
// cannot be read or no entry survives.
func LoadAll(path string, overrides map[string]interface{}) (*Registry, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	return BuildAll(cfg, filepath.Dir(path), overrides)
}

// BuildAll builds the agents of an already-parsed configuration.
// baseDir anchors relative paths in the configuration, normally the
// directory containing the config file.
func BuildAll(cfg *Config, baseDir string, overrides map[string]interface{}) (*Registry, error) {
	skillsDir := cfg.SkillsDirectory
	if skillsDir == "" {
		skillsDir = baseDir
	} else if !filepath.IsAbs(skillsDir) {
		skillsDir = filepath.Join(baseDir, skillsDir)
	}

	discovered := make(map[string]*skill.Unit)
	for _, unit := range skill.DiscoverAll(skillsDir, skill.DiscoverOptions{Recursive: true}) {
		if _, ok := discovered[unit.Name]; !ok {
			discovered[unit.Name] = unit
		}
	}

	r := &Registry{
		builder: compose.NewBuilder(cfg.DefaultModel),
		agents:  make(map[string]*compose.Agent),
	}

	for _, entry := range cfg.Agents {
		agent, err := r.buildEntry(entry, skillsDir, discovered, overrides)
		if err != nil {
			log.Error("skipping agent entry", map[string]interface{}{
				"name":  entry.Name,
				"skill": entry.Skill,
				"error": err.Error(),
			})
			continue
		}

		name := entry.Name
		if name == "" {
			name = agent.Name
		}
		if _, exists := r.agents[name]; exists {
			log.Warn("duplicate agent name, keeping first", map[string]interface{}{"name": name})
			continue
		}
		r.agents[name] = agent
		r.order = append(r.order, name)
	}

	if len(r.agents) == 0 {
		return nil, fmt.Errorf("no agents could be loaded from configuration")
	}

	log.Info("registry loaded", map[string]interface{}{
		"agents":    len(r.agents),
		"declared":  len(cfg.Agents),
		"skillsDir": skillsDir,
	})
	return r, nil
}

func (r *Registry) buildEntry(entry Entry, skillsDir string, discovered map[string]*skill.Unit, overrides map[string]interface{}) (*compose.Agent, error) {
	if entry.Skill == "" {
		return nil, fmt.Errorf("entry has no skill reference")
	}

	unit, err := resolveRef(entry.Skill, skillsDir, discovered)
	if err != nil {
		return nil, err
	}

	var subUnits []*skill.Unit
	for _, ref := range entry.SubAgents {
		sub, err := resolveRef(ref, skillsDir, discovered)
		if err != nil {
			return nil, fmt.Errorf("sub-agent %q: %w", ref, err)
		}
		subUnits = append(subUnits, sub)
	}

	variables := make(map[string]interface{}, len(entry.Variables)+len(overrides))
	for k, v := range entry.Variables {
		variables[k] = v
	}
	for k, v := range overrides {
		variables[k] = v
	}

	return r.builder.BuildWith(unit, variables, compose.BuildOptions{
		Model:            entry.Model,
		SubUnits:         subUnits,
		ToolDescriptions: entry.ToolDescriptions,
	})
}

// resolveRef maps a configuration reference to a loaded unit. A bare
// name matching a pre-discovered unit wins; otherwise the reference is
// treated as a path, absolute or relative to the skills directory, and
// finally as a name to search the tree for.
func resolveRef(ref, skillsDir string, discovered map[string]*skill.Unit) (*skill.Unit, error) {
	if unit, ok := discovered[ref]; ok {
		return unit, nil
	}

	path := ref
	if !filepath.IsAbs(path) {
		path = filepath.Join(skillsDir, ref)
	}
	if _, err := os.Stat(path); err == nil {
		return skill.Discover(path)
	}

	if found := skill.FindByName(ref, skillsDir); found != "" {
		return skill.Load(found)
	}

	return nil, &skill.NotFoundError{Path: path, What: "skill"}
}

// Get returns the built agent registered under name.
func (r *Registry) Get(name string) (*compose.Agent, bool) {
	agent, ok := r.agents[name]
	return agent, ok
}

// Names returns the registered agent names in declaration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// ClearCache drops the underlying builder cache so subsequent builds
// re-read definitions from disk.
func (r *Registry) ClearCache() {
	r.builder.ClearCache()
}
