package turn

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"gofer/internal/gemini"
	"gofer/internal/logging"
	"gofer/internal/tools"
)

// Status is the lifecycle state of one scheduled tool call.
type Status string

const (
	StatusValidating       Status = "validating"
	StatusAwaitingApproval Status = "awaiting_approval"
	StatusExecuting        Status = "executing"
	StatusSuccess          Status = "success"
	StatusError            Status = "error"
	StatusCancelled        Status = "cancelled"
)

// Terminal reports whether a status is final.
func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusError || s == StatusCancelled
}

// ToolCallRequest is one functionCall extracted from a model response.
// CallID is unique within the turn (name plus ordinal) and correlates
// confirmation responses back to the pending call.
type ToolCallRequest struct {
	CallID string
	Name   string
	Args   map[string]any
}

// ToolCall tracks a request through the scheduler's state machine.
type ToolCall struct {
	Request      ToolCallRequest
	Tool         tools.Tool // nil when resolution failed
	Status       Status
	Confirmation *tools.Confirmation // set while awaiting approval
	Response     *gemini.Part        // set once terminal

	index   int
	drained bool
}

// Scheduler manages the lifecycle of one batch of tool calls: resolution
// against the registry, the confirmation handshake, concurrent execution of
// approved calls, and uniform response formatting. One batch is in flight
// at a time; Schedule clears the previous batch.
type Scheduler struct {
	registry *tools.Registry

	mu    sync.Mutex
	calls []*ToolCall
}

// NewScheduler creates a scheduler bound to a tool registry.
func NewScheduler(registry *tools.Registry) *Scheduler {
	return &Scheduler{registry: registry}
}

// Schedule resolves and validates a batch of requests. Calls that need no
// confirmation are executed immediately, concurrently. The returned slice
// holds the calls now awaiting operator approval, in request order.
//
// A request naming an unregistered tool settles as an error result; it is
// never surfaced as a Go error, so the model always receives a
// functionResponse for it.
func (s *Scheduler) Schedule(ctx context.Context, requests []ToolCallRequest) []*ToolCall {
	s.mu.Lock()
	s.calls = make([]*ToolCall, 0, len(requests))
	var awaiting []*ToolCall
	var runnable []*ToolCall

	for i, req := range requests {
		call := &ToolCall{Request: req, Status: StatusValidating, index: i}
		s.calls = append(s.calls, call)

		tool := s.registry.Get(req.Name)
		if tool == nil {
			logging.ToolsError("Tool %q not found in registry", req.Name)
			s.settleLocked(call, StatusError, fmt.Sprintf("Tool '%s' is not available.", req.Name))
			continue
		}
		call.Tool = tool

		confirmation, err := tool.ShouldConfirmExecute(ctx, req.Args)
		if err != nil {
			s.settleLocked(call, StatusError, err.Error())
			continue
		}
		if confirmation != nil {
			call.Status = StatusAwaitingApproval
			call.Confirmation = confirmation
			awaiting = append(awaiting, call)
			continue
		}
		call.Status = StatusExecuting
		runnable = append(runnable, call)
	}
	s.mu.Unlock()

	// Approved calls are independent; fan out and join.
	if len(runnable) > 0 {
		g, gctx := errgroup.WithContext(ctx)
		for _, call := range runnable {
			call := call
			g.Go(func() error {
				s.execute(gctx, call)
				return nil
			})
		}
		_ = g.Wait()
	}
	return awaiting
}

// ResolveConfirmation settles exactly one awaiting call identified by
// req.CallID. Proceed outcomes execute the call synchronously before
// returning; cancel settles it with an error response so the model still
// sees a functionResponse.
func (s *Scheduler) ResolveConfirmation(ctx context.Context, req ToolCallRequest, outcome tools.Outcome) {
	s.mu.Lock()
	var call *ToolCall
	for _, c := range s.calls {
		if c.Request.CallID == req.CallID && c.Status == StatusAwaitingApproval {
			call = c
			break
		}
	}
	if call == nil {
		s.mu.Unlock()
		logging.TurnWarn("Confirmation for unknown or already-settled call %q ignored", req.CallID)
		return
	}

	if handler, ok := call.Tool.(tools.ConfirmationHandler); ok {
		handler.HandleConfirmationResponse(call.Confirmation.RootCommand, outcome)
	}

	switch outcome {
	case tools.OutcomeProceedOnce, tools.OutcomeProceedAlways:
		call.Status = StatusExecuting
		s.mu.Unlock()
		s.execute(ctx, call)
	default:
		s.settleLocked(call, StatusCancelled, "Tool call was cancelled by the user.")
		s.mu.Unlock()
	}
}

// DrainResults returns the responses of every terminal call not yet
// drained, in original request order regardless of completion order.
func (s *Scheduler) DrainResults() []gemini.Part {
	s.mu.Lock()
	defer s.mu.Unlock()
	var results []gemini.Part
	for _, call := range s.calls {
		if call.Status.Terminal() && !call.drained && call.Response != nil {
			call.drained = true
			results = append(results, *call.Response)
		}
	}
	return results
}

// execute runs one approved call. A panic or error from the capability is
// captured as an error-status result and never aborts sibling executions.
func (s *Scheduler) execute(ctx context.Context, call *ToolCall) {
	name := call.Request.Name
	logging.Tools("Executing tool %q (%s)", name, call.Request.CallID)

	result, err := func() (result map[string]any, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("tool panicked: %v", r)
			}
		}()
		return call.Tool.Execute(ctx, call.Request.Args)
	}()

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		logging.ToolsError("Tool %q execution failed: %v", name, err)
		s.settleLocked(call, StatusError, err.Error())
		return
	}
	call.Status = StatusSuccess
	call.Response = &gemini.Part{FunctionResponse: &gemini.FunctionResponse{
		Name:     name,
		Response: map[string]any{"content": result},
	}}
}

// settleLocked moves a call to a terminal error-like state with a uniform
// error response. Caller holds s.mu.
func (s *Scheduler) settleLocked(call *ToolCall, status Status, message string) {
	call.Status = status
	call.Confirmation = nil
	call.Response = &gemini.Part{FunctionResponse: &gemini.FunctionResponse{
		Name:     call.Request.Name,
		Response: map[string]any{"error": message},
	}}
}
