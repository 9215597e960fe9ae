package skill

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Severity classifies a validation issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Validation limits.
const (
	MaxNameLength          = 64
	MaxDescriptionLength   = 1024
	MaxCompatibilityLength = 500
	RecommendedMaxLines    = 500
	RecommendedMaxTokens   = 5000
)

// Issue is a single validation finding.
type Issue struct {
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
	Field    string   `json:"field,omitempty"`
	Line     int      `json:"line,omitempty"`
}

// Result accumulates validation issues for one unit. Valid flips to
// false on the first error; warnings and info never affect it.
type Result struct {
	Valid  bool    `json:"valid"`
	Path   string  `json:"path,omitempty"`
	Issues []Issue `json:"issues"`
}

func newResult(path string) *Result {
	return &Result{Valid: true, Path: path}
}

func (r *Result) addError(msg, field string) {
	r.Issues = append(r.Issues, Issue{Message: msg, Severity: SeverityError, Field: field})
	r.Valid = false
}

func (r *Result) addWarning(msg, field string) {
	r.Issues = append(r.Issues, Issue{Message: msg, Severity: SeverityWarning, Field: field})
}

func (r *Result) addInfo(msg, field string) {
	r.Issues = append(r.Issues, Issue{Message: msg, Severity: SeverityInfo, Field: field})
}

// Errors returns only error-severity issues.
func (r *Result) Errors() []Issue { return r.filter(SeverityError) }

// Warnings returns only warning-severity issues.
func (r *Result) Warnings() []Issue { return r.filter(SeverityWarning) }

func (r *Result) filter(sev Severity) []Issue {
	var out []Issue
	for _, issue := range r.Issues {
		if issue.Severity == sev {
			out = append(out, issue)
		}
	}
	return out
}

// Validator checks definition units against the structural and quality
// rules of the skill format. It never returns an error for recoverable
// findings; everything is reported through the Result.
type Validator struct {
	// Strict promotes every warning to an additional error. The
	// original warning stays in the issue list; the promoted error is
	// appended alongside it.
	Strict bool
}

// ValidateDir validates the skill-layout unit at dir, reading and
// parsing it from disk. Filesystem absence is reported as an error
// issue, not returned as a Go error.
func (v *Validator) ValidateDir(dir string) *Result {
	result := newResult(dir)

	info, err := os.Stat(dir)
	if err != nil {
		result.addError(fmt.Sprintf("skill directory does not exist: %s", dir), "")
		return result
	}
	if !info.IsDir() {
		result.addError(fmt.Sprintf("skill path is not a directory: %s", dir), "")
		return result
	}

	path := filepath.Join(dir, MetadataFile)
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			result.addError(MetadataFile+" not found in skill directory", "")
		} else {
			result.addError(fmt.Sprintf("failed to read %s: %v", MetadataFile, err), "")
		}
		return result
	}

	unit, err := Parse(string(content))
	if err != nil {
		var pe *ParseError
		if errors.As(err, &pe) {
			result.addError(pe.Err.Error(), "")
		} else {
			result.addError(err.Error(), "")
		}
		v.finish(result)
		return result
	}
	unit.BasePath = dir

	v.checkName(unit.Name, result)
	if unit.Name != filepath.Base(dir) {
		result.addError(fmt.Sprintf("skill name %q must match directory name %q", unit.Name, filepath.Base(dir)), "name")
	}
	v.checkDescription(unit.Description, result)
	if unit.Compatibility != "" {
		v.checkCompatibility(unit.Compatibility, result)
	}
	v.checkMetadata(unit.Metadata, result)
	v.checkBody(unit.Instructions, result)
	v.checkOptionalDirs(dir, result)

	v.finish(result)
	return result
}

// ValidateUnit validates an already-loaded unit without touching the
// filesystem beyond its auxiliary directories.
func (v *Validator) ValidateUnit(unit *Unit) *Result {
	result := newResult(unit.BasePath)

	v.checkName(unit.Name, result)
	v.checkDescription(unit.Description, result)
	if unit.Compatibility != "" {
		v.checkCompatibility(unit.Compatibility, result)
	}
	if unit.BasePath != "" && unit.Name != filepath.Base(unit.BasePath) {
		result.addError(fmt.Sprintf("skill name %q must match directory name %q", unit.Name, filepath.Base(unit.BasePath)), "name")
	}
	v.checkBody(unit.Instructions, result)

	v.finish(result)
	return result
}

// ValidateAll validates every skill directory found under dir. One
// invalid unit does not block validation of the others, and a
// directory whose metadata fails to parse still yields a Result
// carrying the parse error rather than being silently dropped.
func (v *Validator) ValidateAll(dir string) []*Result {
	var results []*Result
	for _, skillDir := range findSkillDirs(dir, true, DefaultMaxDepth, 0) {
		results = append(results, v.ValidateDir(skillDir))
	}
	return results
}

func (v *Validator) checkName(name string, result *Result) {
	if name == "" {
		result.addError("name cannot be empty", "name")
		return
	}
	if len(name) > MaxNameLength {
		result.addError(fmt.Sprintf("name exceeds maximum length of %d characters", MaxNameLength), "name")
	}
	for _, r := range name {
		if !((r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-') {
			result.addError("name may only contain lowercase letters, numbers, and hyphens", "name")
			break
		}
	}
	if strings.HasPrefix(name, "-") || strings.HasSuffix(name, "-") {
		result.addError("name must not start or end with a hyphen", "name")
	}
	if strings.Contains(name, "--") {
		result.addError("name must not contain consecutive hyphens", "name")
	}
}

func (v *Validator) checkDescription(description string, result *Result) {
	if description == "" {
		result.addError("description cannot be empty", "description")
		return
	}
	if len(description) > MaxDescriptionLength {
		result.addError(fmt.Sprintf("description exceeds maximum length of %d characters", MaxDescriptionLength), "description")
	}
	if len(description) < 50 {
		result.addWarning("description is very short; consider adding more detail about what the skill does and when to use it", "description")
	}
}

func (v *Validator) checkCompatibility(compatibility string, result *Result) {
	if len(compatibility) > MaxCompatibilityLength {
		result.addError(fmt.Sprintf("compatibility exceeds maximum length of %d characters", MaxCompatibilityLength), "compatibility")
	}
}

func (v *Validator) checkMetadata(metadata map[string]interface{}, result *Result) {
	if metadata == nil {
		return
	}
	if _, ok := metadata["author"]; !ok {
		result.addInfo("consider adding 'author' to metadata", "metadata")
	}
	if _, ok := metadata["version"]; !ok {
		result.addInfo("consider adding 'version' to metadata", "metadata")
	}
}

func (v *Validator) checkBody(body string, result *Result) {
	if strings.TrimSpace(body) == "" {
		result.addWarning(MetadataFile+" body is empty; consider adding instructions", "body")
		return
	}

	lines := strings.Split(body, "\n")
	if len(lines) > RecommendedMaxLines {
		result.addWarning(fmt.Sprintf("%s body has %d lines; consider keeping under %d and moving detailed content to references/", MetadataFile, len(lines), RecommendedMaxLines), "body")
	}

	// Crude token estimate: ~4 chars per token.
	if tokens := len(body) / 4; tokens > RecommendedMaxTokens {
		result.addWarning(fmt.Sprintf("%s body is approximately %d tokens; consider keeping under %d", MetadataFile, tokens, RecommendedMaxTokens), "body")
	}
}

var scriptExtensions = map[string]bool{".py": true, ".sh": true, ".bash": true, ".js": true, ".ts": true}

var referenceExtensions = map[string]bool{".md": true, ".txt": true, ".json": true, ".yaml": true, ".yml": true}

func (v *Validator) checkOptionalDirs(dir string, result *Result) {
	for _, name := range []string{"scripts", "references", "assets"} {
		path := filepath.Join(dir, name)
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		if !info.IsDir() {
			result.addError(fmt.Sprintf("%q must be a directory", name), "")
			continue
		}
		switch name {
		case "scripts":
			v.checkExtensions(path, scriptExtensions, "script", result)
		case "references":
			v.checkExtensions(path, referenceExtensions, "reference file", result)
		}
	}
}

func (v *Validator) checkExtensions(dir string, recognized map[string]bool, kind string, result *Result) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if !recognized[ext] {
			result.addInfo(fmt.Sprintf("%s %q has unrecognized extension", kind, entry.Name()), "")
		}
	}
}

// finish applies strict-mode promotion: each warning gains a matching
// appended error. Promotion appends rather than rewriting severity, so
// callers see both the original warning and the promoted error.
func (v *Validator) finish(result *Result) {
	if !v.Strict {
		return
	}
	for _, issue := range result.Warnings() {
		result.addError("[strict] "+issue.Message, issue.Field)
	}
}
