package tools

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"gofer/internal/gemini"
	"gofer/internal/logging"
)

// shellMetachars matches characters that make a root token unsafe to
// remember on the whitelist (command substitution, chaining, redirection).
var shellMetachars = regexp.MustCompile("[;&|`$<>]")

// ShellTool executes a command line with sh -c in the workspace directory.
//
// Every command requires confirmation unless the operator has previously
// answered "proceed always" for the same root command, in which case that
// root token is whitelisted for the lifetime of this tool instance (one
// chat session).
type ShellTool struct {
	dir string

	mu        sync.Mutex
	whitelist map[string]bool
}

// NewShellTool creates a shell tool rooted at dir.
func NewShellTool(dir string) *ShellTool {
	return &ShellTool{dir: dir, whitelist: make(map[string]bool)}
}

func (t *ShellTool) Name() string { return "shell" }

func (t *ShellTool) Description() string {
	return "Executes a shell command in the project directory."
}

func (t *ShellTool) Declaration() gemini.FunctionDeclaration {
	return declaration(t.Name(), t.Description(), map[string]any{
		"command": stringProp("The command to execute."),
	}, []string{"command"})
}

// rootCommand extracts the first token of a command line, reduced to its
// base name. Returns "" when the token contains shell metacharacters and
// must never be whitelisted.
func rootCommand(command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return ""
	}
	root := filepath.Base(fields[0])
	if shellMetachars.MatchString(root) || strings.HasPrefix(root, "-") {
		return ""
	}
	return root
}

func (t *ShellTool) ShouldConfirmExecute(ctx context.Context, args map[string]any) (*Confirmation, error) {
	command, ok := stringArg(args, "command")
	if !ok {
		return nil, fmt.Errorf("%w: command", ErrMissingRequiredArg)
	}
	root := rootCommand(command)
	if root != "" {
		t.mu.Lock()
		approved := t.whitelist[root]
		t.mu.Unlock()
		if approved {
			return nil, nil
		}
	}
	return &Confirmation{
		Type:        ConfirmExec,
		Command:     command,
		RootCommand: root,
	}, nil
}

// HandleConfirmationResponse whitelists the root command on "proceed
// always". Commands with an unsafe root token pass "" and are never
// remembered.
func (t *ShellTool) HandleConfirmationResponse(rootCmd string, outcome Outcome) {
	if outcome != OutcomeProceedAlways || rootCmd == "" {
		return
	}
	t.mu.Lock()
	t.whitelist[rootCmd] = true
	t.mu.Unlock()
	logging.Tools("Whitelisted shell root command: %s", rootCmd)
}

func (t *ShellTool) Execute(ctx context.Context, args map[string]any) (map[string]any, error) {
	command, ok := stringArg(args, "command")
	if !ok {
		return nil, fmt.Errorf("%w: command", ErrMissingRequiredArg)
	}
	logging.Tools("Executing shell command: %s", command)

	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = t.dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	code := 0
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			code = exitErr.ExitCode()
		} else {
			return nil, fmt.Errorf("command failed to start: %w", err)
		}
	}
	return map[string]any{
		"stdout":     stdout.String(),
		"stderr":     stderr.String(),
		"returncode": code,
	}, nil
}
