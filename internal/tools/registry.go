package tools

import (
	"fmt"
	"sort"
	"sync"

	"gofer/internal/config"
	"gofer/internal/gemini"
	"gofer/internal/logging"
)

// Registry holds all available tools and provides lookup by name.
// It is thread-safe and supports registration at runtime. One registry is
// created per chat session, so per-tool approval memory (e.g. the shell
// whitelist) lives exactly as long as the session.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates a new empty tool registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool to the registry.
// Returns an error if a tool with the same name already exists.
func (r *Registry) Register(tool Tool) error {
	if tool.Name() == "" {
		return ErrToolNameEmpty
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[tool.Name()]; exists {
		return fmt.Errorf("%w: %s", ErrToolAlreadyRegistered, tool.Name())
	}
	r.tools[tool.Name()] = tool
	logging.ToolsDebug("Registered tool: %s", tool.Name())
	return nil
}

// Get returns a tool by name, or nil if not found.
func (r *Registry) Get(name string) Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tools[name]
}

// Has returns true if a tool with the given name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tools[name]
	return ok
}

// Count returns the number of registered tools.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Names returns the sorted names of all registered tools.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Declarations returns the function declarations for every registered tool,
// in name order, shaped as the tools block of an outbound request.
func (r *Registry) Declarations() []gemini.ToolDeclarations {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.tools) == 0 {
		return nil
	}
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	decls := make([]gemini.FunctionDeclaration, 0, len(names))
	for _, name := range names {
		decls = append(decls, r.tools[name].Declaration())
	}
	return []gemini.ToolDeclarations{{FunctionDeclarations: decls}}
}

// RegisterCoreTools registers the built-in tool set for a workspace.
func RegisterCoreTools(r *Registry, cfg *config.Config) error {
	ignorer := NewIgnorer(cfg.TargetDir, cfg.Exclude)
	core := []Tool{
		NewShellTool(cfg.TargetDir),
		NewReadFileTool(cfg.TargetDir, ignorer),
		NewWriteFileTool(cfg.TargetDir, ignorer),
		NewReplaceInFileTool(cfg.TargetDir, ignorer),
		NewListDirectoryTool(cfg.TargetDir, ignorer),
		NewGlobTool(cfg.TargetDir, ignorer),
		NewGrepTool(cfg.TargetDir, ignorer),
		NewMemoryTool(config.UserSettingsDir()),
	}
	for _, tool := range core {
		if err := r.Register(tool); err != nil {
			return err
		}
	}
	logging.Tools("Registered %d core tools: %v", r.Count(), r.Names())
	return nil
}
