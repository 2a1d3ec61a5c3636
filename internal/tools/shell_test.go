package tools

import (
	"context"
	"strings"
	"testing"
)

func TestRootCommand(t *testing.T) {
	cases := []struct {
		command string
		want    string
	}{
		{"ls -la", "ls"},
		{"/usr/bin/git status", "git"},
		{"  echo hi", "echo"},
		{"", ""},
		{"   ", ""},
		{"$(whoami)", ""},
		{"`id`", ""},
		{"a;b", ""},
		{"cat<secret", ""},
		{"-rf /", ""},
	}
	for _, tc := range cases {
		if got := rootCommand(tc.command); got != tc.want {
			t.Errorf("rootCommand(%q) = %q, want %q", tc.command, got, tc.want)
		}
	}
}

func TestShellConfirmationAndWhitelist(t *testing.T) {
	tool := NewShellTool(t.TempDir())
	ctx := context.Background()

	conf, err := tool.ShouldConfirmExecute(ctx, map[string]any{"command": "ls -la"})
	if err != nil {
		t.Fatalf("ShouldConfirmExecute: %v", err)
	}
	if conf == nil || conf.Type != ConfirmExec || conf.RootCommand != "ls" || conf.Command != "ls -la" {
		t.Fatalf("confirmation = %+v", conf)
	}

	// proceed_once leaves the whitelist untouched.
	tool.HandleConfirmationResponse(conf.RootCommand, OutcomeProceedOnce)
	if conf, _ := tool.ShouldConfirmExecute(ctx, map[string]any{"command": "ls"}); conf == nil {
		t.Fatal("proceed_once must not whitelist")
	}

	// proceed_always whitelists the root for this instance.
	tool.HandleConfirmationResponse("ls", OutcomeProceedAlways)
	if conf, _ := tool.ShouldConfirmExecute(ctx, map[string]any{"command": "ls /tmp"}); conf != nil {
		t.Errorf("whitelisted root still asked for confirmation: %+v", conf)
	}
	// A different root still asks.
	if conf, _ := tool.ShouldConfirmExecute(ctx, map[string]any{"command": "rm x"}); conf == nil {
		t.Error("unrelated root must still confirm")
	}

	// A fresh instance starts with an empty whitelist.
	fresh := NewShellTool(t.TempDir())
	if conf, _ := fresh.ShouldConfirmExecute(ctx, map[string]any{"command": "ls"}); conf == nil {
		t.Error("whitelist must not leak across instances")
	}
}

func TestShellUnsafeRootNeverWhitelisted(t *testing.T) {
	tool := NewShellTool(t.TempDir())
	ctx := context.Background()

	conf, err := tool.ShouldConfirmExecute(ctx, map[string]any{"command": "$(whoami)"})
	if err != nil {
		t.Fatalf("ShouldConfirmExecute: %v", err)
	}
	if conf.RootCommand != "" {
		t.Fatalf("unsafe command got root %q", conf.RootCommand)
	}
	// Answering proceed_always with an empty root is a no-op.
	tool.HandleConfirmationResponse(conf.RootCommand, OutcomeProceedAlways)
	if conf, _ := tool.ShouldConfirmExecute(ctx, map[string]any{"command": "$(whoami)"}); conf == nil {
		t.Error("unsafe command must keep confirming")
	}
}

func TestShellExecute(t *testing.T) {
	tool := NewShellTool(t.TempDir())
	result, err := tool.Execute(context.Background(), map[string]any{"command": "echo hello && echo oops >&2"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got := result["stdout"].(string); strings.TrimSpace(got) != "hello" {
		t.Errorf("stdout = %q", got)
	}
	if got := result["stderr"].(string); strings.TrimSpace(got) != "oops" {
		t.Errorf("stderr = %q", got)
	}
	if result["returncode"] != 0 {
		t.Errorf("returncode = %v", result["returncode"])
	}
}

func TestShellExecuteNonZeroExit(t *testing.T) {
	tool := NewShellTool(t.TempDir())
	result, err := tool.Execute(context.Background(), map[string]any{"command": "exit 3"})
	if err != nil {
		t.Fatalf("non-zero exit is an in-band result, got error %v", err)
	}
	if result["returncode"] != 3 {
		t.Errorf("returncode = %v, want 3", result["returncode"])
	}
}

func TestShellExecuteRunsInWorkspace(t *testing.T) {
	dir := t.TempDir()
	tool := NewShellTool(dir)
	result, err := tool.Execute(context.Background(), map[string]any{"command": "pwd"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	got := strings.TrimSpace(result["stdout"].(string))
	// TMPDIR may be a symlink on some systems; compare suffixes.
	if !strings.HasSuffix(got, strings.TrimPrefix(dir, "/private")) {
		t.Errorf("pwd = %q, want workspace %q", got, dir)
	}
}

func TestShellMissingCommandArg(t *testing.T) {
	tool := NewShellTool(t.TempDir())
	if _, err := tool.ShouldConfirmExecute(context.Background(), map[string]any{}); err == nil {
		t.Error("missing command must error at validation")
	}
	if _, err := tool.Execute(context.Background(), map[string]any{}); err == nil {
		t.Error("missing command must error at execution")
	}
}
