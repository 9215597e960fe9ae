// Package render expands definition-unit instructions with the pongo2
// template engine (Django/Jinja dialect): variable substitution,
// default filters, conditionals, loops, and includes resolved against
// the unit's references directory.
package render

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/flosch/pongo2/v6"
)

// TemplateError reports a render-time failure, including missing
// include targets.
type TemplateError struct {
	Name string
	Err  error
}

func (e *TemplateError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("template %q: %v", e.Name, e.Err)
	}
	return fmt.Sprintf("template error: %v", e.Err)
}

func (e *TemplateError) Unwrap() error { return e.Err }

// unitLoader loads include targets for one unit: the references
// directory is probed first, then the path literally under the unit
// directory.
type unitLoader struct {
	basePath string
}

func (l unitLoader) Abs(base, name string) string { return name }

func (l unitLoader) Get(path string) (io.Reader, error) {
	if l.basePath == "" {
		return nil, &TemplateError{Name: path, Err: fmt.Errorf("no unit path set for template loading")}
	}
	for _, candidate := range []string{
		filepath.Join(l.basePath, "references", path),
		filepath.Join(l.basePath, path),
	} {
		if data, err := os.ReadFile(candidate); err == nil {
			return bytes.NewReader(data), nil
		}
	}
	return nil, &TemplateError{Name: path, Err: fmt.Errorf("template not found")}
}

// Render expands template with the variable mapping. Missing variables
// without a default render empty, per the engine's semantics. basePath
// scopes include resolution; it may be empty for units without a
// resource directory, in which case any include fails.
func Render(template string, variables map[string]interface{}, basePath string) (string, error) {
	set := pongo2.NewSet("skill", unitLoader{basePath: basePath})

	tmpl, err := set.FromString(template)
	if err != nil {
		return "", &TemplateError{Err: err}
	}

	out, err := tmpl.Execute(pongo2.Context(variables))
	if err != nil {
		return "", &TemplateError{Err: err}
	}
	return out, nil
}
