package tools

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"gofer/internal/gemini"
)

// maxSearchResults caps grep and glob output so a pathological pattern
// cannot flood the model's context window.
const maxSearchResults = 200

// ListDirectoryTool lists the contents of a directory, respecting ignore
// rules. Directories are listed first, marked with a [DIR] prefix.
type ListDirectoryTool struct {
	root    string
	ignorer *Ignorer
}

func NewListDirectoryTool(root string, ignorer *Ignorer) *ListDirectoryTool {
	return &ListDirectoryTool{root: root, ignorer: ignorer}
}

func (t *ListDirectoryTool) Name() string { return "list_directory" }
func (t *ListDirectoryTool) Description() string {
	return "Lists files and subdirectories, respecting ignore rules."
}

func (t *ListDirectoryTool) Declaration() gemini.FunctionDeclaration {
	return declaration(t.Name(), t.Description(), map[string]any{
		"path": stringProp("The path to the directory to list."),
	}, []string{"path"})
}

func (t *ListDirectoryTool) ShouldConfirmExecute(ctx context.Context, args map[string]any) (*Confirmation, error) {
	return nil, nil
}

func (t *ListDirectoryTool) Execute(ctx context.Context, args map[string]any) (map[string]any, error) {
	path, ok := stringArg(args, "path")
	if !ok {
		return nil, fmt.Errorf("%w: path", ErrMissingRequiredArg)
	}
	abs, err := resolveInRoot(t.root, path)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("path is not a directory: %s", path)
	}

	type entry struct {
		name  string
		isDir bool
	}
	var kept []entry
	for _, e := range entries {
		if t.ignorer.IsIgnored(filepath.Join(abs, e.Name())) {
			continue
		}
		kept = append(kept, entry{name: e.Name(), isDir: e.IsDir()})
	}
	sort.Slice(kept, func(i, j int) bool {
		if kept[i].isDir != kept[j].isDir {
			return kept[i].isDir
		}
		return strings.ToLower(kept[i].name) < strings.ToLower(kept[j].name)
	})

	listing := make([]any, 0, len(kept))
	for _, e := range kept {
		if e.isDir {
			listing = append(listing, "[DIR] "+e.name)
		} else {
			listing = append(listing, e.name)
		}
	}
	return map[string]any{"listing": listing}, nil
}

// GlobTool finds files matching a glob pattern, newest first.
type GlobTool struct {
	root    string
	ignorer *Ignorer
}

func NewGlobTool(root string, ignorer *Ignorer) *GlobTool {
	return &GlobTool{root: root, ignorer: ignorer}
}

func (t *GlobTool) Name() string { return "glob" }
func (t *GlobTool) Description() string {
	return "Finds files matching a glob pattern, sorted by modification time."
}

func (t *GlobTool) Declaration() gemini.FunctionDeclaration {
	return declaration(t.Name(), t.Description(), map[string]any{
		"pattern": stringProp("Glob pattern relative to the project root, e.g. 'internal/**/*.go'."),
	}, []string{"pattern"})
}

func (t *GlobTool) ShouldConfirmExecute(ctx context.Context, args map[string]any) (*Confirmation, error) {
	return nil, nil
}

func (t *GlobTool) Execute(ctx context.Context, args map[string]any) (map[string]any, error) {
	pattern, ok := stringArg(args, "pattern")
	if !ok {
		return nil, fmt.Errorf("%w: pattern", ErrMissingRequiredArg)
	}

	type match struct {
		rel     string
		modTime int64
	}
	var matches []match
	err := filepath.WalkDir(t.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		rel, err := filepath.Rel(t.root, path)
		if err != nil || rel == "." {
			return nil
		}
		if t.ignorer.IsIgnored(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if !globMatch(pattern, filepath.ToSlash(rel)) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		matches = append(matches, match{rel: rel, modTime: info.ModTime().UnixNano()})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].modTime > matches[j].modTime })
	if len(matches) > maxSearchResults {
		matches = matches[:maxSearchResults]
	}
	files := make([]any, 0, len(matches))
	for _, m := range matches {
		files = append(files, m.rel)
	}
	return map[string]any{"files": files}, nil
}

// globMatch supports the ** wildcard by matching the basename against the
// final pattern segment when the pattern contains a double star, and
// otherwise defers to filepath.Match on the whole relative path.
func globMatch(pattern, relPath string) bool {
	if strings.Contains(pattern, "**") {
		idx := strings.Index(pattern, "**")
		prefix := strings.TrimSuffix(pattern[:idx], "/")
		suffix := strings.TrimPrefix(pattern[idx+2:], "/")
		if prefix != "" && !strings.HasPrefix(relPath, prefix+"/") && relPath != prefix {
			return false
		}
		if suffix == "" {
			return true
		}
		ok, _ := filepath.Match(suffix, filepath.Base(relPath))
		return ok
	}
	ok, _ := filepath.Match(pattern, relPath)
	return ok
}

// GrepTool searches file contents for a regular expression.
type GrepTool struct {
	root    string
	ignorer *Ignorer
}

func NewGrepTool(root string, ignorer *Ignorer) *GrepTool {
	return &GrepTool{root: root, ignorer: ignorer}
}

func (t *GrepTool) Name() string { return "search_file_content" }
func (t *GrepTool) Description() string {
	return "Searches for a regex pattern within files in the project."
}

func (t *GrepTool) Declaration() gemini.FunctionDeclaration {
	return declaration(t.Name(), t.Description(), map[string]any{
		"pattern": stringProp("The regex pattern to search for."),
		"path":    stringProp("Optional directory to search in, relative to the project root."),
	}, []string{"pattern"})
}

func (t *GrepTool) ShouldConfirmExecute(ctx context.Context, args map[string]any) (*Confirmation, error) {
	return nil, nil
}

func (t *GrepTool) Execute(ctx context.Context, args map[string]any) (map[string]any, error) {
	pattern, ok := stringArg(args, "pattern")
	if !ok {
		return nil, fmt.Errorf("%w: pattern", ErrMissingRequiredArg)
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid regex pattern: %w", err)
	}

	start := t.root
	if sub, ok := stringArg(args, "path"); ok && sub != "" {
		if start, err = resolveInRoot(t.root, sub); err != nil {
			return nil, err
		}
	}

	var results []any
	err = filepath.WalkDir(start, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if t.ignorer.IsIgnored(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || len(results) >= maxSearchResults {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil || !utf8Like(data) {
			return nil
		}
		rel, _ := filepath.Rel(t.root, path)
		for i, line := range strings.Split(string(data), "\n") {
			if re.MatchString(line) {
				results = append(results, fmt.Sprintf("%s:%d: %s", rel, i+1, strings.TrimSpace(line)))
				if len(results) >= maxSearchResults {
					break
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{"matches": results}, nil
}

// utf8Like is a cheap binary-file filter: reject anything with a NUL in the
// first kilobyte.
func utf8Like(data []byte) bool {
	n := len(data)
	if n > 1024 {
		n = 1024
	}
	for _, b := range data[:n] {
		if b == 0 {
			return false
		}
	}
	return true
}
