package skill

import (
	"os"
	"path/filepath"
	"strings"
)

// DefaultMaxDepth bounds the recursive discovery walk.
const DefaultMaxDepth = 3

// DiscoverOptions configures DiscoverAll.
type DiscoverOptions struct {
	Recursive bool
	MaxDepth  int
}

// DiscoverAll finds every skill-layout unit under basePath. Collection
// is best-effort: a unit that fails to parse is logged and skipped, so
// the result may be partial. Subdirectories are visited in
// lexicographic order; dot-prefixed directories are skipped.
func DiscoverAll(basePath string, opts DiscoverOptions) []*Unit {
	if opts.MaxDepth == 0 {
		opts.MaxDepth = DefaultMaxDepth
	}

	info, err := os.Stat(basePath)
	if err != nil {
		log.Warn("skills directory does not exist", map[string]interface{}{"path": basePath})
		return nil
	}
	if !info.IsDir() {
		log.Warn("skills path is not a directory", map[string]interface{}{"path": basePath})
		return nil
	}

	var units []*Unit
	for _, dir := range findSkillDirs(basePath, opts.Recursive, opts.MaxDepth, 0) {
		unit, err := Load(dir)
		if err != nil {
			log.Error("failed to load skill", map[string]interface{}{
				"path":  dir,
				"error": err.Error(),
			})
			continue
		}
		units = append(units, unit)
	}

	log.Info("discovered skills", map[string]interface{}{
		"path":  basePath,
		"count": len(units),
	})
	return units
}

// findSkillDirs returns directories containing a metadata file, in
// lexicographic traversal order.
func findSkillDirs(dir string, recursive bool, maxDepth, depth int) []string {
	var dirs []string

	if _, err := os.Stat(filepath.Join(dir, MetadataFile)); err == nil {
		dirs = append(dirs, dir)
	}

	if !recursive || depth >= maxDepth {
		return dirs
	}

	// os.ReadDir sorts by filename, which makes the traversal order
	// (and therefore multi-match resolution) deterministic.
	entries, err := os.ReadDir(dir)
	if err != nil {
		return dirs
	}
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		dirs = append(dirs, findSkillDirs(filepath.Join(dir, entry.Name()), recursive, maxDepth, depth+1)...)
	}
	return dirs
}

// FindByName locates a skill directory by unit name: a direct child
// named after the unit wins, else the first discovered unit whose
// declared name matches. Returns "" when nothing matches.
func FindByName(name, basePath string) string {
	direct := filepath.Join(basePath, name)
	if _, err := os.Stat(filepath.Join(direct, MetadataFile)); err == nil {
		return direct
	}
	for _, unit := range DiscoverAll(basePath, DiscoverOptions{Recursive: true}) {
		if unit.Name == name {
			return unit.BasePath
		}
	}
	return ""
}
