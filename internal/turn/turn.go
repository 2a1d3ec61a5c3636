// Package turn implements the conversational turn engine: one round-trip
// cycle with the model, including streamed text, tool scheduling, the
// operator confirmation handshake, and transcript commitment.
package turn

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"gofer/internal/gemini"
	"gofer/internal/logging"
	"gofer/internal/tools"
)

// Streamer is the network call the turn engine drives. Satisfied by
// *gemini.Client.
type Streamer interface {
	StreamGenerateContent(ctx context.Context, envelope *gemini.Envelope) (*gemini.Stream, error)
}

// Config wires a Turn to its session.
type Config struct {
	Client   Streamer
	Registry *tools.Registry

	// Project is the cloud project passed through in the request envelope.
	Project string

	// Model returns the session's active model. Read once per network
	// attempt so a mid-retry fallback takes effect on the next attempt.
	Model func() string

	// History is the session transcript at turn start. The turn works on
	// its own copy and never mutates this slice.
	History []gemini.Content

	// Commit receives the full updated transcript when the turn completes
	// normally. It is not called on error.
	Commit func(history []gemini.Content)

	// OnPersistentRateLimit is forwarded to the retry controller.
	OnPersistentRateLimit func(ctx context.Context) bool

	// Retry overrides the default retry policy when non-zero.
	Retry gemini.RetryOptions
}

// eventBuffer keeps the engine from stalling on a consumer that is a few
// events behind; a terminal error still reaches a draining consumer after
// cancellation.
const eventBuffer = 16

// pendingConfirmation is the single outstanding confirmation slot. The
// engine blocks on ch; the UI resolves it exactly once.
type pendingConfirmation struct {
	call *ToolCall
	ch   chan tools.Outcome
}

// Turn drives one logical conversational turn to a terminal state. A Turn
// is single-use: create one per prompt, run it, discard it.
type Turn struct {
	cfg       Config
	scheduler *Scheduler

	mu      sync.Mutex
	pending *pendingConfirmation
}

// New creates a turn over the given session state.
func New(cfg Config) *Turn {
	return &Turn{
		cfg:       cfg,
		scheduler: NewScheduler(cfg.Registry),
	}
}

// Run executes the turn and returns its event stream. The stream is finite,
// single-pass and not restartable; the caller must consume it to exhaustion
// to observe history commitment. prompt is the user's message parts (plain
// text or pre-expanded file references).
func (t *Turn) Run(ctx context.Context, prompt []gemini.Part) <-chan Event {
	events := make(chan Event, eventBuffer)
	go func() {
		defer close(events)
		t.run(ctx, prompt, events)
	}()
	return events
}

// ResolveConfirmation supplies the operator's decision for the pending
// call. Returns an error when no confirmation with that CallID is pending.
func (t *Turn) ResolveConfirmation(req ToolCallRequest, outcome tools.Outcome) error {
	t.mu.Lock()
	p := t.pending
	if p == nil || p.call.Request.CallID != req.CallID {
		t.mu.Unlock()
		return fmt.Errorf("no pending confirmation for call %q", req.CallID)
	}
	t.pending = nil
	t.mu.Unlock()
	p.ch <- outcome
	return nil
}

func (t *Turn) emit(ctx context.Context, events chan<- Event, ev Event) bool {
	select {
	case events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

func (t *Turn) run(ctx context.Context, prompt []gemini.Part, events chan<- Event) {
	logging.Turn("Starting turn (%d history messages)", len(t.cfg.History))

	working := make([]gemini.Content, len(t.cfg.History), len(t.cfg.History)+4)
	copy(working, t.cfg.History)
	working = append(working, gemini.Content{Role: "user", Parts: prompt})

	retryOpts := t.cfg.Retry
	if retryOpts.MaxAttempts == 0 {
		retryOpts = gemini.DefaultRetryOptions()
	}
	retryOpts.OnPersistentRateLimit = t.cfg.OnPersistentRateLimit

	for {
		declarations := t.cfg.Registry.Declarations()

		stream, err := gemini.WithRetry(ctx, func(ctx context.Context) (*gemini.Stream, error) {
			// Rebuilt per attempt: the rate-limit fallback may have
			// switched the active model.
			envelope := &gemini.Envelope{
				Model:   t.cfg.Model(),
				Project: t.cfg.Project,
				Request: gemini.GenerateRequest{Contents: working, Tools: declarations},
			}
			return t.cfg.Client.StreamGenerateContent(ctx, envelope)
		}, retryOpts)
		if err != nil {
			t.fail(ctx, events, err)
			return
		}

		var (
			answer    strings.Builder
			requests  []ToolCallRequest
			citations map[string]any
		)
		for {
			data, err := stream.Recv()
			if err == io.EOF {
				break
			}
			if err != nil {
				stream.Close()
				t.fail(ctx, events, fmt.Errorf("stream error: %w", err))
				return
			}

			var chunk gemini.StreamEnvelope
			if err := json.Unmarshal(data, &chunk); err != nil {
				logging.TurnWarn("Could not parse stream chunk: %s", string(data))
				continue
			}
			if chunk.Response.GroundingMetadata != nil {
				citations = chunk.Response.GroundingMetadata
			}
			for _, part := range chunk.Parts() {
				switch {
				case part.FunctionCall != nil:
					fc := part.FunctionCall
					requests = append(requests, ToolCallRequest{
						CallID: fmt.Sprintf("%s-%d", fc.Name, len(requests)),
						Name:   fc.Name,
						Args:   fc.Args,
					})
				case part.Text != "":
					answer.WriteString(part.Text)
					if !t.emit(ctx, events, Event{Kind: EventContent, Content: part.Text}) {
						stream.Close()
						return
					}
				}
			}
		}
		stream.Close()

		if citations != nil {
			if !t.emit(ctx, events, Event{Kind: EventCitations, Citations: citations}) {
				return
			}
		}

		if len(requests) > 0 {
			callParts := make([]gemini.Part, 0, len(requests))
			for _, req := range requests {
				callParts = append(callParts, gemini.Part{
					FunctionCall: &gemini.FunctionCall{Name: req.Name, Args: req.Args},
				})
			}
			working = append(working, gemini.Content{Role: "model", Parts: callParts})

			// Auto-approved calls execute here; the rest come back for the
			// confirmation handshake, strictly one at a time.
			awaiting := t.scheduler.Schedule(ctx, requests)
			for _, call := range awaiting {
				outcome, ok := t.awaitConfirmation(ctx, events, call)
				if !ok {
					return
				}
				t.scheduler.ResolveConfirmation(ctx, call.Request, outcome)
			}

			results := t.scheduler.DrainResults()
			if len(results) > 0 {
				working = append(working, gemini.Content{Role: "user", Parts: results})
				for i := range results {
					if !t.emit(ctx, events, Event{Kind: EventToolCallResponse, Response: &results[i]}) {
						return
					}
				}
				logging.TurnDebug("Tool batch settled (%d results), continuing turn", len(results))
				continue
			}
		}

		// No pending calls: the turn is complete. Commit the transcript.
		if text := answer.String(); strings.TrimSpace(text) != "" {
			working = append(working, gemini.Content{Role: "model", Parts: gemini.TextPart(text)})
		}
		if t.cfg.Commit != nil {
			t.cfg.Commit(working)
		}
		logging.Turn("Turn finished (%d messages committed)", len(working))
		return
	}
}

// awaitConfirmation publishes one confirmation request and blocks until the
// operator answers or the context is cancelled.
func (t *Turn) awaitConfirmation(ctx context.Context, events chan<- Event, call *ToolCall) (tools.Outcome, bool) {
	p := &pendingConfirmation{call: call, ch: make(chan tools.Outcome, 1)}
	t.mu.Lock()
	t.pending = p
	t.mu.Unlock()

	if !t.emit(ctx, events, Event{Kind: EventConfirmationRequest, Call: call}) {
		return "", false
	}
	select {
	case outcome := <-p.ch:
		return outcome, true
	case <-ctx.Done():
		t.mu.Lock()
		t.pending = nil
		t.mu.Unlock()
		t.fail(ctx, events, ctx.Err())
		return "", false
	}
}

// fail converts err to a user-facing error event. The session's committed
// history is left untouched.
func (t *Turn) fail(ctx context.Context, events chan<- Event, err error) {
	err = gemini.FriendlyError(err)
	logging.TurnError("Turn failed: %v", err)
	select {
	case events <- Event{Kind: EventError, Err: err}:
	case <-ctx.Done():
		// Best effort after cancellation: the buffered channel lets a
		// draining consumer still observe the terminal error.
		select {
		case events <- Event{Kind: EventError, Err: err}:
		default:
		}
	}
}
