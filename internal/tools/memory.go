package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gofer/internal/gemini"
	"gofer/internal/logging"
)

// MemoryFileName is the markdown file long-term facts are appended to.
const MemoryFileName = "GOFER.md"

// MemoryTool saves a "fact" to the global memory file so future sessions
// pick it up. Writing to global state always requires confirmation.
type MemoryTool struct {
	memoryFile string
}

// NewMemoryTool creates a memory tool writing under settingsDir.
func NewMemoryTool(settingsDir string) *MemoryTool {
	return &MemoryTool{memoryFile: filepath.Join(settingsDir, MemoryFileName)}
}

func (t *MemoryTool) Name() string { return "save_memory" }
func (t *MemoryTool) Description() string {
	return "Saves a 'fact' to your long-term memory to be used in future sessions."
}

func (t *MemoryTool) Declaration() gemini.FunctionDeclaration {
	return declaration(t.Name(), t.Description(), map[string]any{
		"fact": stringProp("The piece of information or fact to remember."),
	}, []string{"fact"})
}

func (t *MemoryTool) ShouldConfirmExecute(ctx context.Context, args map[string]any) (*Confirmation, error) {
	fact, ok := stringArg(args, "fact")
	if !ok {
		return nil, fmt.Errorf("%w: fact", ErrMissingRequiredArg)
	}
	return &Confirmation{
		Type: ConfirmMemoryWrite,
		Fact: fact,
		Path: t.memoryFile,
	}, nil
}

func (t *MemoryTool) Execute(ctx context.Context, args map[string]any) (map[string]any, error) {
	fact, ok := stringArg(args, "fact")
	if !ok {
		return nil, fmt.Errorf("%w: fact", ErrMissingRequiredArg)
	}
	if err := os.MkdirAll(filepath.Dir(t.memoryFile), 0o755); err != nil {
		return nil, fmt.Errorf("create memory directory: %w", err)
	}
	f, err := os.OpenFile(t.memoryFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open memory file: %w", err)
	}
	defer f.Close()

	stamp := time.Now().Format("2006-01-02 15:04:05")
	if _, err := fmt.Fprintf(f, "\n# Fact saved on %s\n- %s\n", stamp, fact); err != nil {
		return nil, fmt.Errorf("write memory file: %w", err)
	}
	logging.Tools("Saved fact to %s", t.memoryFile)
	return map[string]any{
		"success": true,
		"message": fmt.Sprintf("Successfully saved fact to %s.", t.memoryFile),
	}, nil
}
