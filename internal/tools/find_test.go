package tools

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func setupTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	for _, dir := range []string{"src", "docs", ".git", "node_modules"} {
		if err := os.Mkdir(filepath.Join(root, dir), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	files := map[string]string{
		".gitignore":       "node_modules\n",
		"README.md":        "# readme\ntodo: nothing\n",
		"src/main.go":      "package main\n\nfunc main() {}\n",
		"src/util.go":      "package main\n\n// helper\n",
		"docs/guide.md":    "guide text\n",
		".git/config":      "[core]\n",
		"node_modules/x.js": "ignored\n",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(root, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func TestListDirectory(t *testing.T) {
	root := setupTree(t)
	tool := NewListDirectoryTool(root, newTestIgnorer(t, root))

	result, err := tool.Execute(context.Background(), map[string]any{"path": "."})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	want := []any{"[DIR] docs", "[DIR] src", ".gitignore", "README.md"}
	if diff := cmp.Diff(want, result["listing"]); diff != "" {
		t.Errorf("listing mismatch (-want +got):\n%s", diff)
	}
}

func TestListDirectoryErrors(t *testing.T) {
	root := setupTree(t)
	tool := NewListDirectoryTool(root, newTestIgnorer(t, root))
	ctx := context.Background()

	if _, err := tool.Execute(ctx, map[string]any{"path": "README.md"}); err == nil {
		t.Error("file path must error")
	}
	if _, err := tool.Execute(ctx, map[string]any{"path": "../"}); err == nil {
		t.Error("traversal must error")
	}
}

func TestGlob(t *testing.T) {
	root := setupTree(t)
	// Make util.go newer so the mtime sort is observable.
	future := time.Now().Add(time.Hour)
	if err := os.Chtimes(filepath.Join(root, "src", "util.go"), future, future); err != nil {
		t.Fatal(err)
	}
	tool := NewGlobTool(root, newTestIgnorer(t, root))

	result, err := tool.Execute(context.Background(), map[string]any{"pattern": "src/**/*.go"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	files := result["files"].([]any)
	if len(files) != 2 {
		t.Fatalf("files = %v, want 2 matches", files)
	}
	if files[0] != filepath.Join("src", "util.go") {
		t.Errorf("newest first: files = %v", files)
	}
}

func TestGlobSkipsIgnored(t *testing.T) {
	root := setupTree(t)
	tool := NewGlobTool(root, newTestIgnorer(t, root))

	result, err := tool.Execute(context.Background(), map[string]any{"pattern": "**/*.js"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if files := result["files"].([]any); len(files) != 0 {
		t.Errorf("ignored dirs leaked into glob: %v", files)
	}
}

func TestGlobMatch(t *testing.T) {
	cases := []struct {
		pattern string
		path    string
		want    bool
	}{
		{"*.go", "main.go", true},
		{"*.go", "src/main.go", false},
		{"src/*.go", "src/main.go", true},
		{"**/*.go", "src/deep/main.go", true},
		{"src/**", "src/anything/at/all.txt", true},
		{"src/**", "docs/guide.md", false},
		{"src/**/*.md", "src/a/b/notes.md", true},
		{"src/**/*.md", "src/a/b/notes.go", false},
	}
	for _, tc := range cases {
		if got := globMatch(tc.pattern, tc.path); got != tc.want {
			t.Errorf("globMatch(%q, %q) = %v, want %v", tc.pattern, tc.path, got, tc.want)
		}
	}
}

func TestGrep(t *testing.T) {
	root := setupTree(t)
	tool := NewGrepTool(root, newTestIgnorer(t, root))

	result, err := tool.Execute(context.Background(), map[string]any{"pattern": `func \w+`})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	matches := result["matches"].([]any)
	if len(matches) != 1 {
		t.Fatalf("matches = %v, want 1", matches)
	}
	want := filepath.Join("src", "main.go") + ":3: func main() {}"
	if matches[0] != want {
		t.Errorf("match = %q, want %q", matches[0], want)
	}
}

func TestGrepScopedToSubdirectory(t *testing.T) {
	root := setupTree(t)
	tool := NewGrepTool(root, newTestIgnorer(t, root))

	result, err := tool.Execute(context.Background(), map[string]any{
		"pattern": "package",
		"path":    "src",
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if matches := result["matches"].([]any); len(matches) != 2 {
		t.Errorf("matches = %v, want 2 (src only)", matches)
	}
}

func TestGrepInvalidPattern(t *testing.T) {
	root := setupTree(t)
	tool := NewGrepTool(root, newTestIgnorer(t, root))
	if _, err := tool.Execute(context.Background(), map[string]any{"pattern": "("}); err == nil {
		t.Error("invalid regex must error")
	}
}

func TestGrepSkipsBinary(t *testing.T) {
	root := setupTree(t)
	if err := os.WriteFile(filepath.Join(root, "blob.bin"), []byte("match\x00me"), 0o644); err != nil {
		t.Fatal(err)
	}
	tool := NewGrepTool(root, newTestIgnorer(t, root))
	result, err := tool.Execute(context.Background(), map[string]any{"pattern": "match"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	for _, m := range result["matches"].([]any) {
		if strings.Contains(m.(string), "blob.bin") {
			t.Errorf("binary file leaked into matches: %v", m)
		}
	}
}
