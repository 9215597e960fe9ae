// Package compose builds executable agent trees from definition units.
// Sub-agent references are resolved on disk, rendered, and attached to
// their parent as callable tools, with memoized construction per
// (unit name, variable set).
package compose

import (
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/skillhub-ai/skillhub/internal/render"
	"github.com/skillhub-ai/skillhub/internal/skill"
	"github.com/vinayprograms/agentkit/logging"
)

// DefaultModel is used when neither the unit nor the builder declares one.
const DefaultModel = "gpt-4.1-mini"

// Agent is a built, executable agent node. Agents returned by a
// Builder may be shared through its cache and must be treated as
// immutable.
type Agent struct {
	Name         string
	Instructions string
	Model        string
	Tools        []Tool
}

// Tool exposes a built sub-agent as a named callable of its parent.
type Tool struct {
	Name        string
	Description string
	Agent       *Agent
}

// CyclicReferenceError reports a sub-agent reference cycle.
type CyclicReferenceError struct {
	Chain []string
}

func (e *CyclicReferenceError) Error() string {
	return fmt.Sprintf("cyclic sub-agent reference: %s", strings.Join(e.Chain, " -> "))
}

// BuildOptions carries per-build overrides supplied by the top-level
// registry: a model override, additional pre-resolved sub-units, and
// tool description overrides merged over the unit's own.
type BuildOptions struct {
	Model            string
	SubUnits         []*skill.Unit
	ToolDescriptions map[string]string
}

// Builder composes Agent trees. The construction cache is keyed by
// (unit name, variable hash); concurrent Build calls are serialized on
// the cache but the filesystem reads underneath are not coordinated.
type Builder struct {
	defaultModel string

	mu    sync.Mutex
	cache map[string]*Agent

	log *logging.Logger
}

// NewBuilder creates a builder with its own empty cache.
func NewBuilder(defaultModel string) *Builder {
	return NewBuilderWithCache(defaultModel, make(map[string]*Agent))
}

// NewBuilderWithCache creates a builder over an injected cache, so
// tests and concurrent callers can isolate or share caches explicitly.
func NewBuilderWithCache(defaultModel string, cache map[string]*Agent) *Builder {
	if defaultModel == "" {
		defaultModel = DefaultModel
	}
	if cache == nil {
		cache = make(map[string]*Agent)
	}
	return &Builder{
		defaultModel: defaultModel,
		cache:        cache,
		log:          logging.New().WithComponent("builder"),
	}
}

// Build composes unit and its sub-references into an Agent tree.
// The build is all-or-nothing: any unresolved or malformed node aborts
// the whole call.
func (b *Builder) Build(unit *skill.Unit, variables map[string]interface{}) (*Agent, error) {
	return b.BuildWith(unit, variables, BuildOptions{})
}

// BuildWith is Build with registry-level overrides.
func (b *Builder) BuildWith(unit *skill.Unit, variables map[string]interface{}, opts BuildOptions) (*Agent, error) {
	return b.build(unit, variables, opts, nil)
}

func (b *Builder) build(unit *skill.Unit, variables map[string]interface{}, opts BuildOptions, chain []string) (*Agent, error) {
	for _, name := range chain {
		if name == unit.Name {
			return nil, &CyclicReferenceError{Chain: append(append([]string{}, chain...), unit.Name)}
		}
	}
	chain = append(chain, unit.Name)

	key := cacheKey(unit.Name, variables)
	b.mu.Lock()
	if agent, ok := b.cache[key]; ok {
		b.mu.Unlock()
		b.log.Debug("returning cached agent", map[string]interface{}{"skill": unit.Name})
		return agent, nil
	}
	b.mu.Unlock()

	rendered, err := render.Render(unit.Instructions, variables, unit.BasePath)
	if err != nil {
		return nil, fmt.Errorf("rendering instructions for %q: %w", unit.Name, err)
	}

	model := opts.Model
	if model == "" {
		model = unit.Model
	}
	if model == "" {
		model = b.defaultModel
	}

	toolDescriptions := make(map[string]string, len(unit.ToolDescriptions)+len(opts.ToolDescriptions))
	for k, v := range unit.ToolDescriptions {
		toolDescriptions[k] = v
	}
	for k, v := range opts.ToolDescriptions {
		toolDescriptions[k] = v
	}

	var tools []Tool

	base := resolveBase(unit)
	for _, ref := range unit.SubRefs {
		path := skill.Resolve(ref, base)
		child, err := skill.Discover(path)
		if err != nil {
			return nil, fmt.Errorf("resolving sub-agent %q of %q: %w", ref, unit.Name, err)
		}
		tool, err := b.buildTool(child, unit.ToolPrefix, variables, toolDescriptions, chain)
		if err != nil {
			return nil, err
		}
		tools = append(tools, tool)
	}

	for _, child := range opts.SubUnits {
		tool, err := b.buildTool(child, unit.ToolPrefix, variables, toolDescriptions, chain)
		if err != nil {
			return nil, err
		}
		tools = append(tools, tool)
	}

	agent := &Agent{
		Name:         unit.Name,
		Instructions: assembleInstructions(unit, rendered),
		Model:        model,
		Tools:        tools,
	}

	b.mu.Lock()
	b.cache[key] = agent
	b.mu.Unlock()

	b.log.Info("built agent", map[string]interface{}{
		"skill": unit.Name,
		"model": model,
		"tools": len(tools),
	})
	return agent, nil
}

// buildTool builds one child agent and wraps it as a tool. Children
// see the same variables as their ancestors, not a filtered subset.
func (b *Builder) buildTool(child *skill.Unit, prefix string, variables map[string]interface{}, toolDescriptions map[string]string, chain []string) (Tool, error) {
	sub, err := b.build(child, variables, BuildOptions{}, chain)
	if err != nil {
		return Tool{}, err
	}

	description, ok := toolDescriptions[child.Name]
	if !ok {
		description = child.Description
	}

	return Tool{
		Name:        prefix + NormalizeToolName(child.Name),
		Description: description,
		Agent:       sub,
	}, nil
}

// ClearCache empties the construction cache; subsequent builds return
// fresh instances.
func (b *Builder) ClearCache() {
	b.mu.Lock()
	b.cache = make(map[string]*Agent)
	b.mu.Unlock()
	b.log.Debug("cleared agent cache", map[string]interface{}{})
}

// NormalizeToolName maps a unit name to a tool identifier: lowercase,
// with spaces and hyphens replaced by underscores.
func NormalizeToolName(name string) string {
	name = strings.ToLower(name)
	name = strings.ReplaceAll(name, " ", "_")
	return strings.ReplaceAll(name, "-", "_")
}

// resolveBase returns the directory sub-agent references are resolved
// against. Sibling-layout units share a directory with their peers, so
// their own BasePath is the search root; a skill-layout unit's peers
// live next to its directory, so resolution starts one level up.
func resolveBase(unit *skill.Unit) string {
	if unit.BasePath == "" {
		return ""
	}
	if _, err := os.Stat(filepath.Join(unit.BasePath, skill.MetadataFile)); err == nil {
		return filepath.Dir(unit.BasePath)
	}
	return unit.BasePath
}

// cacheKey derives the memoization key from the unit name and a
// deterministic hash of the variable mapping.
func cacheKey(name string, variables map[string]interface{}) string {
	return name + ":" + hashVariables(variables)
}

func hashVariables(variables map[string]interface{}) string {
	keys := make([]string, 0, len(variables))
	for k := range variables {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := fnv.New64a()
	for _, k := range keys {
		fmt.Fprintf(h, "%s=%v;", k, variables[k])
	}
	return fmt.Sprintf("%x", h.Sum64())
}

// assembleInstructions prepends the unit's descriptive header to the
// rendered body and appends an inventory of auxiliary resources, when
// either exists.
func assembleInstructions(unit *skill.Unit, rendered string) string {
	if unit.Description == "" {
		return rendered
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", unit.Name)
	fmt.Fprintf(&sb, "**Description**: %s\n\n", unit.Description)
	if unit.Compatibility != "" {
		fmt.Fprintf(&sb, "**Compatibility**: %s\n\n", unit.Compatibility)
	}
	sb.WriteString("---\n\n")
	sb.WriteString(rendered)

	sections := []struct {
		label string
		dir   string
	}{
		{"Scripts", unit.ScriptsDir()},
		{"References", unit.ReferencesDir()},
		{"Assets", unit.AssetsDir()},
	}

	wroteHeader := false
	for _, section := range sections {
		names, err := unit.ListResources(section.dir)
		if err != nil || len(names) == 0 {
			continue
		}
		if !wroteHeader {
			sb.WriteString("\n\n## Available Resources\n")
			wroteHeader = true
		}
		fmt.Fprintf(&sb, "\n**%s:**\n", section.label)
		for _, name := range names {
			fmt.Fprintf(&sb, "- `%s/%s`\n", strings.ToLower(section.label), name)
		}
	}

	return sb.String()
}
