// Package skill loads directory-based agent and skill definitions.
//
// Two on-disk layouts are supported. The skill layout is a directory
// containing a SKILL.md whose YAML frontmatter carries the metadata and
// whose body carries the instructions. The sibling layout is a pair of
// files <name>.yaml (metadata) and <name>.md (instructions) in the same
// directory. Both produce a Unit.
package skill

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/vinayprograms/agentkit/logging"
	"gopkg.in/yaml.v3"
)

// MetadataFile is the well-known file name for the skill layout.
const MetadataFile = "SKILL.md"

var log = logging.New().WithComponent("skill")

// Unit is a loaded definition unit: one named agent or skill.
type Unit struct {
	Name          string
	Description   string
	License       string
	Compatibility string
	Metadata      map[string]interface{}
	AllowedTools  []string

	// Composition
	Model            string   // declared model, may be empty
	SubRefs          []string // ordered sub-agent references
	ToolDescriptions map[string]string
	ToolPrefix       string

	// Content
	Instructions string

	// Location
	BasePath string // directory containing the unit's files
}

// frontmatter is the YAML shape shared by both layouts.
type frontmatter struct {
	Name             string                 `yaml:"name"`
	Description      string                 `yaml:"description"`
	License          string                 `yaml:"license,omitempty"`
	Compatibility    string                 `yaml:"compatibility,omitempty"`
	Metadata         map[string]interface{} `yaml:"metadata,omitempty"`
	AllowedTools     string                 `yaml:"allowed-tools,omitempty"`
	Model            string                 `yaml:"model,omitempty"`
	SubAgents        []string               `yaml:"sub_agents,omitempty"`
	ToolDescriptions map[string]string      `yaml:"tool_descriptions,omitempty"`
	ToolNamePrefix   string                 `yaml:"tool_name_prefix,omitempty"`
}

// Load loads a skill-layout unit from a directory.
// A name/directory mismatch is logged, not rejected; the validator
// treats the same condition as an error.
func Load(dir string) (*Unit, error) {
	path := filepath.Join(dir, MetadataFile)
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &NotFoundError{Path: dir, What: MetadataFile}
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	unit, err := Parse(string(content))
	if err != nil {
		if pe, ok := err.(*ParseError); ok {
			pe.Path = path
		}
		return nil, err
	}
	unit.BasePath = dir

	if dirName := filepath.Base(dir); unit.Name != dirName {
		log.Warn("skill name does not match directory name", map[string]interface{}{
			"name":      unit.Name,
			"directory": dirName,
		})
	}
	return unit, nil
}

// LoadSibling loads a sibling-layout unit. The path may point at the
// metadata YAML file itself or at the unit directory; for a directory,
// <dir>/<name>.yaml is probed first and <parent>/<name>.yaml second,
// to accommodate flat layouts where the files sit next to the
// directory named after the unit.
func LoadSibling(path string) (*Unit, error) {
	var dir, name, yamlPath string

	if info, err := os.Stat(path); err == nil && !info.IsDir() {
		dir = filepath.Dir(path)
		name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		yamlPath = path
	} else {
		dir = path
		name = filepath.Base(path)
		yamlPath = filepath.Join(dir, name+".yaml")
		if _, err := os.Stat(yamlPath); os.IsNotExist(err) {
			parent := filepath.Dir(dir)
			alt := filepath.Join(parent, name+".yaml")
			if _, err := os.Stat(alt); err == nil {
				dir = parent
				yamlPath = alt
			}
		}
	}

	mdPath := filepath.Join(dir, name+".md")

	raw, err := os.ReadFile(yamlPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &NotFoundError{Path: yamlPath, What: "agent config file"}
		}
		return nil, fmt.Errorf("failed to read %s: %w", yamlPath, err)
	}

	body, err := os.ReadFile(mdPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &NotFoundError{Path: mdPath, What: "agent instructions file"}
		}
		return nil, fmt.Errorf("failed to read %s: %w", mdPath, err)
	}

	var fm frontmatter
	if err := yaml.Unmarshal(raw, &fm); err != nil {
		return nil, &ParseError{Path: yamlPath, Err: err}
	}
	if fm.Name == "" {
		fm.Name = name
	}

	unit := fromFrontmatter(&fm)
	unit.Instructions = strings.TrimSpace(string(body))
	unit.BasePath = dir
	return unit, nil
}

// Parse parses SKILL.md content: frontmatter plus markdown body.
func Parse(content string) (*Unit, error) {
	fmText, body, err := splitFrontmatter(content)
	if err != nil {
		return nil, &ParseError{Err: err}
	}

	var node yaml.Node
	if err := yaml.Unmarshal([]byte(fmText), &node); err != nil {
		return nil, &ParseError{Err: fmt.Errorf("invalid frontmatter: %w", err)}
	}
	if len(node.Content) > 0 && node.Content[0].Kind != yaml.MappingNode {
		return nil, &ParseError{Err: fmt.Errorf("frontmatter must be a mapping")}
	}

	var fm frontmatter
	if err := yaml.Unmarshal([]byte(fmText), &fm); err != nil {
		return nil, &ParseError{Err: fmt.Errorf("invalid frontmatter: %w", err)}
	}

	if fm.Name == "" {
		return nil, &ParseError{Err: fmt.Errorf("missing required field: name")}
	}
	if fm.Description == "" {
		return nil, &ParseError{Err: fmt.Errorf("missing required field: description")}
	}
	if err := CheckName(fm.Name); err != nil {
		return nil, &ParseError{Err: err}
	}

	unit := fromFrontmatter(&fm)
	unit.Instructions = strings.TrimSpace(body)
	return unit, nil
}

func fromFrontmatter(fm *frontmatter) *Unit {
	var allowed []string
	if fm.AllowedTools != "" {
		allowed = strings.Fields(fm.AllowedTools)
	}
	return &Unit{
		Name:             fm.Name,
		Description:      fm.Description,
		License:          fm.License,
		Compatibility:    fm.Compatibility,
		Metadata:         fm.Metadata,
		AllowedTools:     allowed,
		Model:            fm.Model,
		SubRefs:          fm.SubAgents,
		ToolDescriptions: fm.ToolDescriptions,
		ToolPrefix:       fm.ToolNamePrefix,
	}
}

// splitFrontmatter extracts the YAML frontmatter block from markdown.
// The first line must be exactly the delimiter; a later line of only
// the delimiter closes the block.
func splitFrontmatter(content string) (fm, body string, err error) {
	lines := strings.Split(content, "\n")
	if len(lines) == 0 || strings.TrimSpace(lines[0]) != "---" {
		return "", "", ErrMissingFrontmatter
	}

	closing := -1
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "---" {
			closing = i
			break
		}
	}
	if closing == -1 {
		return "", "", ErrUnclosedFrontmatter
	}

	fm = strings.Join(lines[1:closing], "\n")
	if closing+1 < len(lines) {
		body = strings.Join(lines[closing+1:], "\n")
	}
	return fm, body, nil
}

// CheckName checks a unit name against the naming rules: 1-64 chars of
// lowercase alphanumerics and hyphens, no leading/trailing/consecutive
// hyphens. Returns the first violation.
func CheckName(name string) error {
	if len(name) == 0 || len(name) > 64 {
		return fmt.Errorf("name must be 1-64 characters")
	}
	for _, r := range name {
		if !((r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-') {
			return fmt.Errorf("name may only contain lowercase letters, numbers, and hyphens")
		}
	}
	if strings.HasPrefix(name, "-") || strings.HasSuffix(name, "-") {
		return fmt.Errorf("name must not start or end with a hyphen")
	}
	if strings.Contains(name, "--") {
		return fmt.Errorf("name must not contain consecutive hyphens")
	}
	return nil
}

// ScriptsDir returns the unit's scripts directory, or "" if absent.
func (u *Unit) ScriptsDir() string { return u.optionalDir("scripts") }

// ReferencesDir returns the unit's references directory, or "" if absent.
func (u *Unit) ReferencesDir() string { return u.optionalDir("references") }

// AssetsDir returns the unit's assets directory, or "" if absent.
func (u *Unit) AssetsDir() string { return u.optionalDir("assets") }

func (u *Unit) optionalDir(name string) string {
	if u.BasePath == "" {
		return ""
	}
	dir := filepath.Join(u.BasePath, name)
	if info, err := os.Stat(dir); err == nil && info.IsDir() {
		return dir
	}
	return ""
}

// ListResources returns the file names inside one of the unit's
// auxiliary directories, in directory order. A missing directory
// yields no entries.
func (u *Unit) ListResources(dir string) ([]string, error) {
	if dir == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var names []string
	for _, entry := range entries {
		if !entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	return names, nil
}

// ReadReference reads a file from the unit's references directory.
func (u *Unit) ReadReference(name string) (string, error) {
	path := filepath.Join(u.BasePath, "references", name)
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read reference %s: %w", name, err)
	}
	return string(content), nil
}
