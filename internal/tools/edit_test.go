package tools

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTempFile(t *testing.T, root, name, content string) string {
	t.Helper()
	path := filepath.Join(root, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestReplaceInFileConfirmationCarriesDiff(t *testing.T) {
	root := t.TempDir()
	writeTempFile(t, root, "main.go", "line one\nline two\nline three\n")
	tool := NewReplaceInFileTool(root, newTestIgnorer(t, root))

	conf, err := tool.ShouldConfirmExecute(context.Background(), map[string]any{
		"path":       "main.go",
		"old_string": "line two",
		"new_string": "line 2",
	})
	if err != nil {
		t.Fatalf("ShouldConfirmExecute: %v", err)
	}
	if conf == nil || conf.Type != ConfirmEdit || conf.Path != "main.go" {
		t.Fatalf("confirmation = %+v", conf)
	}
	if !strings.Contains(conf.Diff, "- line two") || !strings.Contains(conf.Diff, "+ line 2") {
		t.Errorf("diff missing change markers:\n%s", conf.Diff)
	}
	if !strings.Contains(conf.Diff, "  line one") {
		t.Errorf("diff missing context line:\n%s", conf.Diff)
	}
}

func TestReplaceInFileMissingTargetSkipsConfirmation(t *testing.T) {
	root := t.TempDir()
	writeTempFile(t, root, "main.go", "hello\n")
	tool := NewReplaceInFileTool(root, newTestIgnorer(t, root))
	ctx := context.Background()

	// Missing file and missing old_string both defer to Execute for the
	// in-band error instead of prompting the operator pointlessly.
	if conf, err := tool.ShouldConfirmExecute(ctx, map[string]any{
		"path": "nope.go", "old_string": "x", "new_string": "y",
	}); conf != nil || err != nil {
		t.Errorf("missing file: conf=%+v err=%v", conf, err)
	}
	if conf, err := tool.ShouldConfirmExecute(ctx, map[string]any{
		"path": "main.go", "old_string": "absent", "new_string": "y",
	}); conf != nil || err != nil {
		t.Errorf("missing old_string: conf=%+v err=%v", conf, err)
	}
}

func TestReplaceInFileExecute(t *testing.T) {
	root := t.TempDir()
	path := writeTempFile(t, root, "main.go", "aaa bbb aaa\n")
	tool := NewReplaceInFileTool(root, newTestIgnorer(t, root))

	result, err := tool.Execute(context.Background(), map[string]any{
		"path":       "main.go",
		"old_string": "aaa",
		"new_string": "ccc",
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result["success"] != true {
		t.Errorf("result = %+v", result)
	}
	data, _ := os.ReadFile(path)
	// Only the first occurrence is replaced.
	if string(data) != "ccc bbb aaa\n" {
		t.Errorf("content = %q", data)
	}
}

func TestReplaceInFileExecuteErrors(t *testing.T) {
	root := t.TempDir()
	writeTempFile(t, root, "main.go", "hello\n")
	tool := NewReplaceInFileTool(root, newTestIgnorer(t, root))
	ctx := context.Background()

	if _, err := tool.Execute(ctx, map[string]any{
		"path": "nope.go", "old_string": "x", "new_string": "y",
	}); err == nil || !strings.Contains(err.Error(), "file not found") {
		t.Errorf("missing file error = %v", err)
	}
	if _, err := tool.Execute(ctx, map[string]any{
		"path": "main.go", "old_string": "absent", "new_string": "y",
	}); err == nil || !strings.Contains(err.Error(), "not found in") {
		t.Errorf("missing old_string error = %v", err)
	}
	if _, err := tool.Execute(ctx, map[string]any{"path": "main.go"}); err == nil {
		t.Error("missing args must error")
	}
}

func TestLineDiff(t *testing.T) {
	diff := lineDiff("a\nb\nc\n", "a\nB\nc\n")
	want := []string{"  a", "- b", "+ B", "  c"}
	lines := strings.Split(strings.TrimSuffix(diff, "\n"), "\n")
	if len(lines) != len(want) {
		t.Fatalf("diff lines = %q, want %q", lines, want)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}
}
