package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gofer/internal/gemini"
	"gofer/internal/logging"
)

// resolveInRoot turns a tool-supplied path into an absolute path inside
// root, rejecting traversal outside the workspace.
func resolveInRoot(root, path string) (string, error) {
	abs := path
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(root, path)
	}
	abs = filepath.Clean(abs)
	rel, err := filepath.Rel(root, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrPathOutsideRoot, path)
	}
	return abs, nil
}

// ReadFileTool reads a file's content. Read-only, so it never asks for
// confirmation.
type ReadFileTool struct {
	root    string
	ignorer *Ignorer
}

func NewReadFileTool(root string, ignorer *Ignorer) *ReadFileTool {
	return &ReadFileTool{root: root, ignorer: ignorer}
}

func (t *ReadFileTool) Name() string        { return "read_file" }
func (t *ReadFileTool) Description() string { return "Reads the content of a specified file." }

func (t *ReadFileTool) Declaration() gemini.FunctionDeclaration {
	return declaration(t.Name(), t.Description(), map[string]any{
		"path": stringProp("The absolute or relative path to the file."),
	}, []string{"path"})
}

func (t *ReadFileTool) ShouldConfirmExecute(ctx context.Context, args map[string]any) (*Confirmation, error) {
	return nil, nil
}

func (t *ReadFileTool) Execute(ctx context.Context, args map[string]any) (map[string]any, error) {
	path, ok := stringArg(args, "path")
	if !ok {
		return nil, fmt.Errorf("%w: path", ErrMissingRequiredArg)
	}
	abs, err := resolveInRoot(t.root, path)
	if err != nil {
		return nil, err
	}
	if t.ignorer.IsIgnored(abs) {
		return nil, fmt.Errorf("file is excluded by ignore rules: %s", path)
	}
	info, err := os.Stat(abs)
	if err != nil || info.IsDir() {
		return nil, fmt.Errorf("path is not a file: %s", path)
	}
	content, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	logging.ToolsDebug("Read %d bytes from %s", len(content), path)
	return map[string]any{"content": string(content)}, nil
}

// WriteFileTool writes (or overwrites) a file. Writing is destructive, so
// every call asks for confirmation.
type WriteFileTool struct {
	root    string
	ignorer *Ignorer
}

func NewWriteFileTool(root string, ignorer *Ignorer) *WriteFileTool {
	return &WriteFileTool{root: root, ignorer: ignorer}
}

func (t *WriteFileTool) Name() string { return "write_file" }
func (t *WriteFileTool) Description() string {
	return "Writes content to a file, overwriting any existing content."
}

func (t *WriteFileTool) Declaration() gemini.FunctionDeclaration {
	return declaration(t.Name(), t.Description(), map[string]any{
		"path":    stringProp("The path of the file to write to."),
		"content": stringProp("The content to write."),
	}, []string{"path", "content"})
}

func (t *WriteFileTool) ShouldConfirmExecute(ctx context.Context, args map[string]any) (*Confirmation, error) {
	path, ok := stringArg(args, "path")
	if !ok {
		return nil, fmt.Errorf("%w: path", ErrMissingRequiredArg)
	}
	return &Confirmation{Type: ConfirmWrite, Path: path}, nil
}

func (t *WriteFileTool) Execute(ctx context.Context, args map[string]any) (map[string]any, error) {
	path, ok := stringArg(args, "path")
	if !ok {
		return nil, fmt.Errorf("%w: path", ErrMissingRequiredArg)
	}
	content, ok := stringArg(args, "content")
	if !ok {
		return nil, fmt.Errorf("%w: content", ErrMissingRequiredArg)
	}
	abs, err := resolveInRoot(t.root, path)
	if err != nil {
		return nil, err
	}
	if t.ignorer.IsIgnored(abs) {
		return nil, fmt.Errorf("file is excluded by ignore rules: %s", path)
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return nil, fmt.Errorf("create parent directory: %w", err)
	}
	if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
		return nil, fmt.Errorf("write %s: %w", path, err)
	}
	logging.Tools("Wrote %d bytes to %s", len(content), path)
	return map[string]any{
		"success": true,
		"message": fmt.Sprintf("Wrote %d characters to %s", len(content), path),
	}, nil
}
