package tools

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"gofer/internal/gemini"
	"gofer/internal/logging"
)

// ReplaceInFileTool replaces one occurrence of old_string with new_string in
// a file. The confirmation shown to the operator carries a line diff of the
// proposed change.
type ReplaceInFileTool struct {
	root    string
	ignorer *Ignorer
}

func NewReplaceInFileTool(root string, ignorer *Ignorer) *ReplaceInFileTool {
	return &ReplaceInFileTool{root: root, ignorer: ignorer}
}

func (t *ReplaceInFileTool) Name() string { return "replace_in_file" }
func (t *ReplaceInFileTool) Description() string {
	return "Replaces an `old_string` with a `new_string` in a specified file."
}

func (t *ReplaceInFileTool) Declaration() gemini.FunctionDeclaration {
	return declaration(t.Name(), t.Description(), map[string]any{
		"path":       stringProp("The path to the file to edit."),
		"old_string": stringProp("The exact string to be replaced."),
		"new_string": stringProp("The string to replace the `old_string` with."),
	}, []string{"path", "old_string", "new_string"})
}

func (t *ReplaceInFileTool) editArgs(args map[string]any) (path, oldStr, newStr string, err error) {
	var ok bool
	if path, ok = stringArg(args, "path"); !ok {
		return "", "", "", fmt.Errorf("%w: path", ErrMissingRequiredArg)
	}
	if oldStr, ok = stringArg(args, "old_string"); !ok {
		return "", "", "", fmt.Errorf("%w: old_string", ErrMissingRequiredArg)
	}
	if newStr, ok = stringArg(args, "new_string"); !ok {
		return "", "", "", fmt.Errorf("%w: new_string", ErrMissingRequiredArg)
	}
	return path, oldStr, newStr, nil
}

// ShouldConfirmExecute builds the diff preview. When the file or the target
// string cannot be found it returns nil and lets Execute produce the clean
// in-band error instead.
func (t *ReplaceInFileTool) ShouldConfirmExecute(ctx context.Context, args map[string]any) (*Confirmation, error) {
	path, oldStr, newStr, err := t.editArgs(args)
	if err != nil {
		return nil, err
	}
	abs, err := resolveInRoot(t.root, path)
	if err != nil {
		return nil, nil
	}
	original, err := os.ReadFile(abs)
	if err != nil {
		return nil, nil
	}
	content := string(original)
	if !strings.Contains(content, oldStr) {
		return nil, nil
	}
	updated := strings.Replace(content, oldStr, newStr, 1)
	return &Confirmation{
		Type: ConfirmEdit,
		Path: path,
		Diff: lineDiff(content, updated),
	}, nil
}

func (t *ReplaceInFileTool) Execute(ctx context.Context, args map[string]any) (map[string]any, error) {
	path, oldStr, newStr, err := t.editArgs(args)
	if err != nil {
		return nil, err
	}
	abs, err := resolveInRoot(t.root, path)
	if err != nil {
		return nil, err
	}
	if t.ignorer.IsIgnored(abs) {
		return nil, fmt.Errorf("file is excluded by ignore rules: %s", path)
	}
	original, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("file not found at path: %s", path)
	}
	content := string(original)
	if !strings.Contains(content, oldStr) {
		return nil, fmt.Errorf("the `old_string` was not found in %s", path)
	}
	updated := strings.Replace(content, oldStr, newStr, 1)
	if err := os.WriteFile(abs, []byte(updated), 0o644); err != nil {
		return nil, fmt.Errorf("write %s: %w", path, err)
	}
	logging.Tools("Replaced content in %s", path)
	return map[string]any{
		"success": true,
		"message": fmt.Sprintf("Successfully replaced content in %s.", path),
	}, nil
}

// lineDiff renders a line-level diff with +/- markers for the confirmation
// prompt.
func lineDiff(oldContent, newContent string) string {
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(oldContent, newContent)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	var sb strings.Builder
	for _, d := range diffs {
		prefix := "  "
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			prefix = "+ "
		case diffmatchpatch.DiffDelete:
			prefix = "- "
		}
		for _, line := range strings.Split(strings.TrimSuffix(d.Text, "\n"), "\n") {
			sb.WriteString(prefix)
			sb.WriteString(line)
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}
