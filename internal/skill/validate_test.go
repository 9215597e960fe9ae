package skill

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const longDescription = "Analyzes datasets, correlates their columns, and produces a structured summary report."

func validSkillAt(t *testing.T, base, name string) string {
	t.Helper()
	dir := filepath.Join(base, name)
	content := "---\nname: " + name + "\ndescription: " + longDescription + "\n---\n\nDo the analysis.\n"
	writeSkill(t, dir, content)
	return dir
}

func TestValidateDir_Valid(t *testing.T) {
	dir := validSkillAt(t, t.TempDir(), "analyzer")

	v := &Validator{}
	result := v.ValidateDir(dir)
	if !result.Valid {
		t.Fatalf("expected valid, got issues: %v", result.Issues)
	}
	if len(result.Errors()) != 0 {
		t.Errorf("expected no errors, got %v", result.Errors())
	}
}

func TestValidateDir_MissingDirectory(t *testing.T) {
	v := &Validator{}
	result := v.ValidateDir(filepath.Join(t.TempDir(), "nope"))
	if result.Valid {
		t.Fatal("expected invalid result for missing directory")
	}
	if len(result.Errors()) != 1 {
		t.Errorf("expected 1 error, got %d", len(result.Errors()))
	}
}

func TestValidateDir_NameMismatchIsError(t *testing.T) {
	base := t.TempDir()
	dir := filepath.Join(base, "wrong-dir")
	content := "---\nname: analyzer\ndescription: " + longDescription + "\n---\n\nBody.\n"
	writeSkill(t, dir, content)

	v := &Validator{}
	result := v.ValidateDir(dir)
	if result.Valid {
		t.Fatal("expected invalid result for name/directory mismatch")
	}
	found := false
	for _, issue := range result.Errors() {
		if strings.Contains(issue.Message, "must match directory name") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a name mismatch error, got %v", result.Issues)
	}
}

func TestValidateDir_ShortDescriptionWarns(t *testing.T) {
	base := t.TempDir()
	dir := filepath.Join(base, "terse")
	writeSkill(t, dir, "---\nname: terse\ndescription: Too short.\n---\n\nBody.\n")

	v := &Validator{}
	result := v.ValidateDir(dir)
	if !result.Valid {
		t.Fatalf("short description should warn, not fail: %v", result.Errors())
	}
	if len(result.Warnings()) == 0 {
		t.Error("expected a warning for a short description")
	}
}

func TestValidateDir_EmptyBodyWarns(t *testing.T) {
	base := t.TempDir()
	dir := filepath.Join(base, "hollow")
	writeSkill(t, dir, "---\nname: hollow\ndescription: "+longDescription+"\n---\n")

	v := &Validator{}
	result := v.ValidateDir(dir)
	if !result.Valid {
		t.Fatalf("empty body should warn, not fail: %v", result.Errors())
	}
	if len(result.Warnings()) != 1 {
		t.Errorf("expected 1 warning, got %d", len(result.Warnings()))
	}
}

func TestValidateDir_StrictPromotesWarnings(t *testing.T) {
	base := t.TempDir()
	dir := filepath.Join(base, "terse")
	writeSkill(t, dir, "---\nname: terse\ndescription: Too short.\n---\n\nBody.\n")

	lenient := (&Validator{}).ValidateDir(dir)
	strict := (&Validator{Strict: true}).ValidateDir(dir)

	if !lenient.Valid {
		t.Fatal("lenient validation should pass")
	}
	if strict.Valid {
		t.Fatal("strict validation should fail")
	}

	// Promotion appends errors; the original warnings stay.
	if len(strict.Warnings()) != len(lenient.Warnings()) {
		t.Errorf("strict mode should keep warnings. expected=%d, got=%d",
			len(lenient.Warnings()), len(strict.Warnings()))
	}
	if len(strict.Errors()) != len(lenient.Warnings()) {
		t.Errorf("strict mode should add one error per warning. expected=%d, got=%d",
			len(lenient.Warnings()), len(strict.Errors()))
	}
	for _, issue := range strict.Errors() {
		if !strings.HasPrefix(issue.Message, "[strict] ") {
			t.Errorf("promoted error should be marked, got %q", issue.Message)
		}
	}
}

func TestValidateDir_MetadataInfoIssues(t *testing.T) {
	base := t.TempDir()
	dir := filepath.Join(base, "bare")
	writeSkill(t, dir, "---\nname: bare\ndescription: "+longDescription+"\nmetadata:\n  owner: x\n---\n\nBody.\n")

	result := (&Validator{}).ValidateDir(dir)
	if !result.Valid {
		t.Fatalf("info issues must not invalidate: %v", result.Errors())
	}
	infos := 0
	for _, issue := range result.Issues {
		if issue.Severity == SeverityInfo {
			infos++
		}
	}
	if infos != 2 {
		t.Errorf("expected 2 info issues (author, version), got %d", infos)
	}
}

func TestValidateDir_ScriptsMustBeDirectory(t *testing.T) {
	dir := validSkillAt(t, t.TempDir(), "analyzer")
	if err := os.WriteFile(filepath.Join(dir, "scripts"), []byte("not a dir"), 0644); err != nil {
		t.Fatal(err)
	}

	result := (&Validator{}).ValidateDir(dir)
	if result.Valid {
		t.Fatal("expected invalid result when scripts is a file")
	}
}

func TestValidateAll_DoesNotStopAtFirstFailure(t *testing.T) {
	base := t.TempDir()
	validSkillAt(t, base, "first")
	writeSkill(t, filepath.Join(base, "broken"), "no frontmatter")
	validSkillAt(t, base, "third")

	results := (&Validator{}).ValidateAll(base)
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}

	valid, invalid := 0, 0
	for _, result := range results {
		if result.Valid {
			valid++
		} else {
			invalid++
		}
	}
	if valid != 2 || invalid != 1 {
		t.Errorf("expected 2 valid and 1 invalid, got %d/%d", valid, invalid)
	}
}

func TestLoadDirectory_SkipsInvalid(t *testing.T) {
	base := t.TempDir()
	validSkillAt(t, base, "keeper")
	// Parses fine but fails directory-name validation.
	writeSkill(t, filepath.Join(base, "odd-dir"), "---\nname: misnamed\ndescription: "+longDescription+"\n---\n\nBody.\n")

	units := LoadDirectory(base, true, false)
	if len(units) != 1 {
		t.Fatalf("expected 1 unit, got %d", len(units))
	}
	if _, ok := units["keeper"]; !ok {
		t.Errorf("expected keeper to survive, got %v", units)
	}
}
