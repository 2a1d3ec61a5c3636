package turn

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"gofer/internal/gemini"
	"gofer/internal/tools"
)

// stubTool is a scriptable tool for scheduler and engine tests.
type stubTool struct {
	name         string
	confirmation *tools.Confirmation
	confirmErr   error
	result       map[string]any
	execErr      error
	panicValue   any

	mu       sync.Mutex
	executed int32
	outcomes []tools.Outcome
	gotArgs  map[string]any
}

func (s *stubTool) Name() string        { return s.name }
func (s *stubTool) Description() string { return "stub" }

func (s *stubTool) Declaration() gemini.FunctionDeclaration {
	return gemini.FunctionDeclaration{
		Name:        s.name,
		Description: "stub",
		Parameters:  map[string]any{"type": "OBJECT", "properties": map[string]any{}},
	}
}

func (s *stubTool) ShouldConfirmExecute(ctx context.Context, args map[string]any) (*tools.Confirmation, error) {
	return s.confirmation, s.confirmErr
}

func (s *stubTool) Execute(ctx context.Context, args map[string]any) (map[string]any, error) {
	atomic.AddInt32(&s.executed, 1)
	s.mu.Lock()
	s.gotArgs = args
	s.mu.Unlock()
	if s.panicValue != nil {
		panic(s.panicValue)
	}
	return s.result, s.execErr
}

func (s *stubTool) HandleConfirmationResponse(rootCommand string, outcome tools.Outcome) {
	s.mu.Lock()
	s.outcomes = append(s.outcomes, outcome)
	s.mu.Unlock()
}

func (s *stubTool) execCount() int { return int(atomic.LoadInt32(&s.executed)) }

func newStubRegistry(t *testing.T, stubs ...*stubTool) *tools.Registry {
	t.Helper()
	r := tools.NewRegistry()
	for _, s := range stubs {
		if err := r.Register(s); err != nil {
			t.Fatalf("register %s: %v", s.name, err)
		}
	}
	return r
}

func responsePayload(t *testing.T, part gemini.Part) map[string]any {
	t.Helper()
	if part.FunctionResponse == nil {
		t.Fatalf("part has no functionResponse: %+v", part)
	}
	return part.FunctionResponse.Response
}

func TestScheduleExecutesUnconfirmedCallsConcurrently(t *testing.T) {
	a := &stubTool{name: "alpha", result: map[string]any{"value": "a"}}
	b := &stubTool{name: "beta", result: map[string]any{"value": "b"}}
	s := NewScheduler(newStubRegistry(t, a, b))

	awaiting := s.Schedule(context.Background(), []ToolCallRequest{
		{CallID: "alpha-0", Name: "alpha", Args: map[string]any{"k": "v"}},
		{CallID: "beta-1", Name: "beta"},
	})
	if len(awaiting) != 0 {
		t.Fatalf("got %d awaiting calls, want 0", len(awaiting))
	}
	if a.execCount() != 1 || b.execCount() != 1 {
		t.Errorf("executions = %d/%d, want 1/1", a.execCount(), b.execCount())
	}

	results := s.DrainResults()
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	// Results come back in request order regardless of completion order.
	if results[0].FunctionResponse.Name != "alpha" || results[1].FunctionResponse.Name != "beta" {
		t.Errorf("result order = %s, %s", results[0].FunctionResponse.Name, results[1].FunctionResponse.Name)
	}
	content, ok := responsePayload(t, results[0])["content"].(map[string]any)
	if !ok || content["value"] != "a" {
		t.Errorf("alpha payload = %+v", responsePayload(t, results[0]))
	}
}

func TestScheduleUnknownToolSettlesAsError(t *testing.T) {
	s := NewScheduler(newStubRegistry(t))

	awaiting := s.Schedule(context.Background(), []ToolCallRequest{
		{CallID: "ghost-0", Name: "ghost"},
	})
	if len(awaiting) != 0 {
		t.Fatalf("unknown tool must not await approval")
	}

	results := s.DrainResults()
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1 (every call gets a response)", len(results))
	}
	payload := responsePayload(t, results[0])
	if payload["error"] != "Tool 'ghost' is not available." {
		t.Errorf("payload = %+v", payload)
	}
}

func TestScheduleConfirmationRequired(t *testing.T) {
	tool := &stubTool{
		name:         "shell",
		confirmation: &tools.Confirmation{Type: tools.ConfirmExec, Command: "rm -rf build", RootCommand: "rm"},
		result:       map[string]any{"stdout": ""},
	}
	s := NewScheduler(newStubRegistry(t, tool))

	awaiting := s.Schedule(context.Background(), []ToolCallRequest{
		{CallID: "shell-0", Name: "shell", Args: map[string]any{"command": "rm -rf build"}},
	})
	if len(awaiting) != 1 {
		t.Fatalf("got %d awaiting calls, want 1", len(awaiting))
	}
	call := awaiting[0]
	if call.Status != StatusAwaitingApproval {
		t.Errorf("status = %s", call.Status)
	}
	if call.Confirmation == nil || call.Confirmation.RootCommand != "rm" {
		t.Errorf("confirmation = %+v", call.Confirmation)
	}
	if tool.execCount() != 0 {
		t.Error("tool ran before approval")
	}
	if len(s.DrainResults()) != 0 {
		t.Error("no results should be available while awaiting approval")
	}
}

func TestResolveConfirmationProceed(t *testing.T) {
	tool := &stubTool{
		name:         "shell",
		confirmation: &tools.Confirmation{Type: tools.ConfirmExec, Command: "ls", RootCommand: "ls"},
		result:       map[string]any{"stdout": "README.md\n"},
	}
	s := NewScheduler(newStubRegistry(t, tool))
	awaiting := s.Schedule(context.Background(), []ToolCallRequest{
		{CallID: "shell-0", Name: "shell"},
	})

	s.ResolveConfirmation(context.Background(), awaiting[0].Request, tools.OutcomeProceedAlways)

	if tool.execCount() != 1 {
		t.Fatalf("tool executed %d times, want 1", tool.execCount())
	}
	if len(tool.outcomes) != 1 || tool.outcomes[0] != tools.OutcomeProceedAlways {
		t.Errorf("handler outcomes = %v", tool.outcomes)
	}
	results := s.DrainResults()
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if _, ok := responsePayload(t, results[0])["content"]; !ok {
		t.Errorf("payload = %+v", responsePayload(t, results[0]))
	}
	if awaiting[0].Status != StatusSuccess {
		t.Errorf("status = %s", awaiting[0].Status)
	}
}

func TestResolveConfirmationCancel(t *testing.T) {
	tool := &stubTool{
		name:         "write_file",
		confirmation: &tools.Confirmation{Type: tools.ConfirmWrite, Path: "out.txt"},
	}
	s := NewScheduler(newStubRegistry(t, tool))
	awaiting := s.Schedule(context.Background(), []ToolCallRequest{
		{CallID: "write_file-0", Name: "write_file"},
	})

	s.ResolveConfirmation(context.Background(), awaiting[0].Request, tools.OutcomeCancel)

	if tool.execCount() != 0 {
		t.Error("cancelled tool must not execute")
	}
	if awaiting[0].Status != StatusCancelled {
		t.Errorf("status = %s", awaiting[0].Status)
	}
	results := s.DrainResults()
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	payload := responsePayload(t, results[0])
	if payload["error"] != "Tool call was cancelled by the user." {
		t.Errorf("payload = %+v", payload)
	}
}

func TestResolveConfirmationUnknownCallIsIgnored(t *testing.T) {
	tool := &stubTool{name: "noop", result: map[string]any{}}
	s := NewScheduler(newStubRegistry(t, tool))
	s.Schedule(context.Background(), []ToolCallRequest{{CallID: "noop-0", Name: "noop"}})

	// Already executed: resolving again must be a no-op, not a re-execution.
	s.ResolveConfirmation(context.Background(), ToolCallRequest{CallID: "noop-0", Name: "noop"}, tools.OutcomeProceedOnce)
	s.ResolveConfirmation(context.Background(), ToolCallRequest{CallID: "missing-9", Name: "noop"}, tools.OutcomeProceedOnce)

	if tool.execCount() != 1 {
		t.Errorf("tool executed %d times, want 1", tool.execCount())
	}
}

func TestExecutionErrorBecomesInBandResponse(t *testing.T) {
	tool := &stubTool{name: "broken", execErr: errors.New("disk on fire")}
	s := NewScheduler(newStubRegistry(t, tool))
	s.Schedule(context.Background(), []ToolCallRequest{{CallID: "broken-0", Name: "broken"}})

	results := s.DrainResults()
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	payload := responsePayload(t, results[0])
	if payload["error"] != "disk on fire" {
		t.Errorf("payload = %+v", payload)
	}
}

func TestPanickingToolIsContained(t *testing.T) {
	bad := &stubTool{name: "bad", panicValue: "kaboom"}
	good := &stubTool{name: "good", result: map[string]any{"ok": true}}
	s := NewScheduler(newStubRegistry(t, bad, good))

	s.Schedule(context.Background(), []ToolCallRequest{
		{CallID: "bad-0", Name: "bad"},
		{CallID: "good-1", Name: "good"},
	})

	results := s.DrainResults()
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if _, ok := responsePayload(t, results[0])["error"]; !ok {
		t.Errorf("panic payload = %+v", responsePayload(t, results[0]))
	}
	if _, ok := responsePayload(t, results[1])["content"]; !ok {
		t.Errorf("sibling payload = %+v", responsePayload(t, results[1]))
	}
}

func TestConfirmCheckErrorSettlesCall(t *testing.T) {
	tool := &stubTool{name: "picky", confirmErr: errors.New("bad arguments")}
	s := NewScheduler(newStubRegistry(t, tool))
	awaiting := s.Schedule(context.Background(), []ToolCallRequest{{CallID: "picky-0", Name: "picky"}})
	if len(awaiting) != 0 {
		t.Fatal("validation failure must not await approval")
	}
	results := s.DrainResults()
	if len(results) != 1 || responsePayload(t, results[0])["error"] != "bad arguments" {
		t.Fatalf("results = %+v", results)
	}
	if tool.execCount() != 0 {
		t.Error("tool must not execute after failed validation")
	}
}

func TestDrainResultsIsOnce(t *testing.T) {
	tool := &stubTool{name: "noop", result: map[string]any{}}
	s := NewScheduler(newStubRegistry(t, tool))
	s.Schedule(context.Background(), []ToolCallRequest{{CallID: "noop-0", Name: "noop"}})

	if got := len(s.DrainResults()); got != 1 {
		t.Fatalf("first drain = %d results, want 1", got)
	}
	if got := len(s.DrainResults()); got != 0 {
		t.Errorf("second drain = %d results, want 0", got)
	}
}

func TestDeclinedWriteLeavesFileUntouched(t *testing.T) {
	root := t.TempDir()
	registry := tools.NewRegistry()
	if err := registry.Register(tools.NewWriteFileTool(root, tools.NewIgnorer(root, nil))); err != nil {
		t.Fatal(err)
	}
	s := NewScheduler(registry)

	args := map[string]any{"path": "out.txt", "content": "nope"}
	awaiting := s.Schedule(context.Background(), []ToolCallRequest{
		{CallID: "write_file-0", Name: "write_file", Args: args},
	})
	if len(awaiting) != 1 {
		t.Fatalf("write_file must always await approval, got %d", len(awaiting))
	}
	s.ResolveConfirmation(context.Background(), awaiting[0].Request, tools.OutcomeCancel)

	if _, err := os.Stat(filepath.Join(root, "out.txt")); !os.IsNotExist(err) {
		t.Error("declined write must not touch the filesystem")
	}
	results := s.DrainResults()
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if _, ok := responsePayload(t, results[0])["error"]; !ok {
		t.Errorf("payload = %+v", responsePayload(t, results[0]))
	}
}

func TestMixedBatchKeepsRequestOrder(t *testing.T) {
	auto := &stubTool{name: "auto", result: map[string]any{"n": 1}}
	gated := &stubTool{
		name:         "gated",
		confirmation: &tools.Confirmation{Type: tools.ConfirmExec, Command: "x", RootCommand: "x"},
		result:       map[string]any{"n": 2},
	}
	s := NewScheduler(newStubRegistry(t, auto, gated))

	awaiting := s.Schedule(context.Background(), []ToolCallRequest{
		{CallID: "gated-0", Name: "gated"},
		{CallID: "auto-1", Name: "auto"},
	})
	if len(awaiting) != 1 {
		t.Fatalf("got %d awaiting, want 1", len(awaiting))
	}
	s.ResolveConfirmation(context.Background(), awaiting[0].Request, tools.OutcomeProceedOnce)

	results := s.DrainResults()
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].FunctionResponse.Name != "gated" || results[1].FunctionResponse.Name != "auto" {
		t.Errorf("order = %s, %s; want gated, auto", results[0].FunctionResponse.Name, results[1].FunctionResponse.Name)
	}
}
