// Command skillhub serves and inspects skill-defined agents.
//
// Usage:
//
//	skillhub serve --config skillhub.toml
//	skillhub validate ./skills --strict
//	skillhub inspect ./skills/data-analyzer
//	skillhub render ./skills/data-analyzer --var user=Ada
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/lipgloss"
	"github.com/joho/godotenv"

	"github.com/skillhub-ai/skillhub/internal/config"
	"github.com/skillhub-ai/skillhub/internal/render"
	"github.com/skillhub-ai/skillhub/internal/skill"
)

// Build-time variables (set via ldflags)
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

func init() {
	_ = godotenv.Load()
}

// CLI defines the command-line interface.
type CLI struct {
	Version  VersionCmd  `cmd:"" help:"Show version information."`
	Serve    ServeCmd    `cmd:"" help:"Start the agent HTTP server."`
	Validate ValidateCmd `cmd:"" help:"Validate skill definitions."`
	Inspect  InspectCmd  `cmd:"" help:"Show a skill's structure."`
	Render   RenderCmd   `cmd:"" help:"Render a skill's instructions with variables."`

	Config string `short:"c" help:"Path to config file." type:"path"`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("skillhub"),
		kong.Description("Skill-defined agent resolver and server."),
		kong.UsageOnError(),
	)
	ctx.FatalIfErrorf(ctx.Run(&cli))
}

// loadConfig loads the TOML config named on the command line, or the
// default one.
func loadConfig(cli *CLI) (*config.Config, error) {
	if cli.Config != "" {
		return config.LoadFile(cli.Config)
	}
	return config.LoadDefault()
}

// VersionCmd shows version information.
type VersionCmd struct{}

func (c *VersionCmd) Run(cli *CLI) error {
	fmt.Printf("skillhub version %s (commit: %s, built: %s)\n", version, commit, buildTime)
	return nil
}

// ValidateCmd validates skill definitions.
type ValidateCmd struct {
	Path   string `arg:"" help:"Skill directory, or a tree of skills with --all." type:"path"`
	Strict bool   `help:"Promote warnings to errors."`
	All    bool   `help:"Validate every skill found under the path."`
	JSON   bool   `help:"Emit results as JSON."`
}

var (
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))  // red
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")) // yellow
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("14")) // cyan
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("10")) // green
)

func (c *ValidateCmd) Run(cli *CLI) error {
	v := &skill.Validator{Strict: c.Strict}

	var results []*skill.Result
	if c.All {
		results = v.ValidateAll(c.Path)
		if len(results) == 0 {
			return fmt.Errorf("no skills found under %s", c.Path)
		}
	} else {
		results = []*skill.Result{v.ValidateDir(c.Path)}
	}

	if c.JSON {
		data, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
	} else {
		for _, result := range results {
			printResult(result)
		}
	}

	for _, result := range results {
		if !result.Valid {
			return fmt.Errorf("validation failed")
		}
	}
	return nil
}

func printResult(result *skill.Result) {
	if result.Valid && len(result.Issues) == 0 {
		fmt.Printf("%s %s\n", okStyle.Render("✓"), result.Path)
		return
	}

	marker := okStyle.Render("✓")
	if !result.Valid {
		marker = errorStyle.Render("✗")
	}
	fmt.Printf("%s %s\n", marker, result.Path)

	for _, issue := range result.Issues {
		var style lipgloss.Style
		switch issue.Severity {
		case skill.SeverityError:
			style = errorStyle
		case skill.SeverityWarning:
			style = warningStyle
		default:
			style = infoStyle
		}
		label := style.Render(string(issue.Severity))
		if issue.Field != "" {
			fmt.Printf("  %s [%s] %s\n", label, issue.Field, issue.Message)
		} else {
			fmt.Printf("  %s %s\n", label, issue.Message)
		}
	}
}

// InspectCmd shows a skill's structure.
type InspectCmd struct {
	Path string `arg:"" help:"Skill directory or metadata file." type:"path"`
	JSON bool   `help:"Emit as JSON."`
}

func (c *InspectCmd) Run(cli *CLI) error {
	unit, err := skill.Discover(c.Path)
	if err != nil {
		return err
	}

	if c.JSON {
		data, err := json.MarshalIndent(inspectView(unit), "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	fmt.Printf("Name:        %s\n", unit.Name)
	fmt.Printf("Description: %s\n", unit.Description)
	if unit.Model != "" {
		fmt.Printf("Model:       %s\n", unit.Model)
	}
	if unit.Compatibility != "" {
		fmt.Printf("Compat:      %s\n", unit.Compatibility)
	}
	if len(unit.SubRefs) > 0 {
		fmt.Printf("Sub-agents:  %s\n", strings.Join(unit.SubRefs, ", "))
	}
	if len(unit.AllowedTools) > 0 {
		fmt.Printf("Tools:       %s\n", strings.Join(unit.AllowedTools, ", "))
	}
	if len(unit.Metadata) > 0 {
		keys := make([]string, 0, len(unit.Metadata))
		for k := range unit.Metadata {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fmt.Println("Metadata:")
		for _, k := range keys {
			fmt.Printf("  %s: %v\n", k, unit.Metadata[k])
		}
	}
	for _, section := range []struct {
		label string
		dir   string
	}{
		{"Scripts", unit.ScriptsDir()},
		{"References", unit.ReferencesDir()},
		{"Assets", unit.AssetsDir()},
	} {
		names, err := unit.ListResources(section.dir)
		if err != nil || len(names) == 0 {
			continue
		}
		fmt.Printf("%s:\n", section.label)
		for _, name := range names {
			fmt.Printf("  %s\n", name)
		}
	}
	return nil
}

func inspectView(unit *skill.Unit) map[string]interface{} {
	view := map[string]interface{}{
		"name":        unit.Name,
		"description": unit.Description,
		"path":        unit.BasePath,
	}
	if unit.Model != "" {
		view["model"] = unit.Model
	}
	if unit.Compatibility != "" {
		view["compatibility"] = unit.Compatibility
	}
	if len(unit.SubRefs) > 0 {
		view["sub_agents"] = unit.SubRefs
	}
	if len(unit.AllowedTools) > 0 {
		view["allowed_tools"] = unit.AllowedTools
	}
	if len(unit.Metadata) > 0 {
		view["metadata"] = unit.Metadata
	}
	return view
}

// RenderCmd renders a skill's instructions with variables.
type RenderCmd struct {
	Path string   `arg:"" help:"Skill directory or metadata file." type:"path"`
	Var  []string `help:"Template variable as key=value (repeatable)."`
}

func (c *RenderCmd) Run(cli *CLI) error {
	unit, err := skill.Discover(c.Path)
	if err != nil {
		return err
	}

	variables := make(map[string]interface{}, len(c.Var))
	for _, kv := range c.Var {
		key, value, ok := strings.Cut(kv, "=")
		if !ok {
			return fmt.Errorf("invalid --var %q, expected key=value", kv)
		}
		variables[key] = value
	}

	out, err := render.Render(unit.Instructions, variables, unit.BasePath)
	if err != nil {
		return err
	}
	fmt.Fprintln(os.Stdout, out)
	return nil
}
