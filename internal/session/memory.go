package session

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gofer/internal/config"
	"gofer/internal/logging"
	"gofer/internal/tools"
)

// findProjectRoot walks upwards from dir looking for a .git directory,
// falling back to dir itself.
func findProjectRoot(dir string) string {
	current := dir
	for {
		if info, err := os.Stat(filepath.Join(current, ".git")); err == nil && info.IsDir() {
			return current
		}
		parent := filepath.Dir(current)
		if parent == current {
			return dir
		}
		current = parent
	}
}

// LoadMemory discovers and concatenates every GOFER.md memory file visible
// from startDir: the global user file first, then files from the project
// root down. Parent memories load before child memories so more specific
// directives win.
func LoadMemory(startDir string) string {
	abs, err := filepath.Abs(startDir)
	if err != nil {
		return ""
	}
	root := findProjectRoot(abs)

	seen := make(map[string]bool)
	var files []string
	add := func(path string) {
		if !seen[path] {
			seen[path] = true
			files = append(files, path)
		}
	}

	// Global memory, then the chain from startDir up to the project root.
	if dir := config.UserSettingsDir(); dir != "" {
		if p := filepath.Join(dir, tools.MemoryFileName); isFile(p) {
			add(p)
		}
	}
	var upward []string
	for current := abs; ; current = filepath.Dir(current) {
		if p := filepath.Join(current, tools.MemoryFileName); isFile(p) {
			upward = append(upward, p)
		}
		if current == root || filepath.Dir(current) == current {
			break
		}
	}
	// Parents first.
	for i := len(upward) - 1; i >= 0; i-- {
		add(upward[i])
	}

	// Everything else below the project root.
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if d.Name() == tools.MemoryFileName {
			add(path)
		}
		return nil
	})

	if len(files) == 0 {
		return ""
	}
	logging.SessionDebug("Found %d memory file(s)", len(files))

	var sections []string
	for _, path := range files {
		content, err := os.ReadFile(path)
		if err != nil {
			logging.SessionError("Could not read memory file %s: %v", path, err)
			continue
		}
		label := path
		if rel, err := filepath.Rel(root, path); err == nil && !strings.HasPrefix(rel, "..") {
			label = rel
		}
		sections = append(sections, fmt.Sprintf("\n--- Memory from %s ---\n%s", label, string(content)))
	}
	return strings.Join(sections, "\n")
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
