package tools

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

// goferIgnoreFile lists additional patterns file tools must not touch,
// alongside .gitignore.
const goferIgnoreFile = ".goferignore"

// defaultIgnores are always skipped regardless of ignore files.
var defaultIgnores = []string{".git", ".gofer"}

// Ignorer answers whether a path should be hidden from the file tools.
// Patterns follow a simplified gitignore subset: bare names match any path
// segment, patterns with a slash are matched against the workspace-relative
// path, and * globs work within one segment.
type Ignorer struct {
	root     string
	patterns []string
}

// NewIgnorer loads ignore patterns for a workspace root. extra patterns
// (from settings) are appended last.
func NewIgnorer(root string, extra []string) *Ignorer {
	ig := &Ignorer{root: root}
	ig.patterns = append(ig.patterns, defaultIgnores...)
	for _, file := range []string{".gitignore", goferIgnoreFile} {
		ig.patterns = append(ig.patterns, readPatterns(filepath.Join(root, file))...)
	}
	ig.patterns = append(ig.patterns, extra...)
	return ig
}

func readPatterns(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var patterns []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, line)
	}
	return patterns
}

// IsIgnored reports whether path (absolute or workspace-relative) matches an
// ignore pattern.
func (ig *Ignorer) IsIgnored(path string) bool {
	rel := path
	if filepath.IsAbs(path) {
		r, err := filepath.Rel(ig.root, path)
		if err != nil || strings.HasPrefix(r, "..") {
			return false
		}
		rel = r
	}
	rel = filepath.ToSlash(rel)
	segments := strings.Split(rel, "/")

	for _, pattern := range ig.patterns {
		pattern = strings.TrimSuffix(pattern, "/")
		if pattern == "" {
			continue
		}
		if strings.Contains(pattern, "/") {
			if ok, _ := filepath.Match(strings.TrimPrefix(pattern, "/"), rel); ok {
				return true
			}
			continue
		}
		for _, seg := range segments {
			if ok, _ := filepath.Match(pattern, seg); ok {
				return true
			}
		}
	}
	return false
}

// Filter returns the entries of paths that are not ignored.
func (ig *Ignorer) Filter(paths []string) []string {
	kept := make([]string, 0, len(paths))
	for _, p := range paths {
		if !ig.IsIgnored(p) {
			kept = append(kept, p)
		}
	}
	return kept
}
