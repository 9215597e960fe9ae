package skill

import (
	"os"
	"path/filepath"
	"strings"
)

// Resolve maps a sub-agent reference to the unit path it denotes,
// relative to base. References may be absolute paths, relative paths,
// or bare unit names. Resolution order, first match wins:
//
//  1. absolute path, used directly
//  2. path-shaped references probed under base, with and without the
//     metadata extension
//  3. same-level sibling (<ref>.yaml in base, or base/<ref>/SKILL.md)
//  4. depth-first search of the whole tree under base, visiting
//     subdirectories in lexicographic order
//
// When nothing matches, base/<ref> is returned so the subsequent
// Discover call fails with a clear not-found error rather than the
// resolver failing silently.
func Resolve(ref, base string) string {
	if filepath.IsAbs(ref) {
		return ref
	}

	if strings.ContainsRune(ref, '/') || strings.ContainsRune(ref, '\\') {
		full := filepath.Join(base, ref)
		if _, err := os.Stat(full); err == nil {
			return full
		}
		if _, err := os.Stat(full + ".yaml"); err == nil {
			return full
		}
	}

	if p := probeUnit(base, ref); p != "" {
		return p
	}

	if found := searchTree(base, ref); found != "" {
		return found
	}

	return filepath.Join(base, ref)
}

// probeUnit checks whether dir directly contains a unit named name in
// either layout and returns the unit path if so.
func probeUnit(dir, name string) string {
	if _, err := os.Stat(filepath.Join(dir, name+".yaml")); err == nil {
		return filepath.Join(dir, name)
	}
	if _, err := os.Stat(filepath.Join(dir, name, MetadataFile)); err == nil {
		return filepath.Join(dir, name)
	}
	return ""
}

// searchTree performs the recursive name search of step 4.
func searchTree(dir, name string) string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		sub := filepath.Join(dir, entry.Name())
		if p := probeUnit(sub, name); p != "" {
			return p
		}
		if p := searchTree(sub, name); p != "" {
			return p
		}
	}
	return ""
}

// Discover loads the unit at path in whichever layout is present.
// A directory with a SKILL.md (or the SKILL.md itself) loads as a
// skill-layout unit; anything else is treated as sibling layout.
func Discover(path string) (*Unit, error) {
	if filepath.Base(path) == MetadataFile {
		return Load(filepath.Dir(path))
	}
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		if _, err := os.Stat(filepath.Join(path, MetadataFile)); err == nil {
			return Load(path)
		}
	}
	return LoadSibling(path)
}
