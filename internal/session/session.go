// Package session manages a stateful conversation: the transcript, the
// active model (including the rate-limit fallback), the tool registry, and
// turn creation.
package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"gofer/internal/config"
	"gofer/internal/gemini"
	"gofer/internal/logging"
	"gofer/internal/tools"
	"gofer/internal/turn"
)

// Session owns one conversation. History is an append-only transcript,
// mutated only at turn boundaries; a failed turn leaves it untouched.
// One turn runs at a time.
type Session struct {
	ID       string
	client   *gemini.Client
	cfg      *config.Config
	registry *tools.Registry

	mu         sync.Mutex
	model      string
	history    []gemini.Content
	activeTurn *turn.Turn
}

// New creates a session, registers the core tools, and seeds the transcript
// with the system context.
func New(client *gemini.Client, cfg *config.Config) (*Session, error) {
	registry := tools.NewRegistry()
	if err := tools.RegisterCoreTools(registry, cfg); err != nil {
		return nil, fmt.Errorf("register tools: %w", err)
	}
	s := &Session{
		ID:       uuid.NewString(),
		client:   client,
		cfg:      cfg,
		registry: registry,
		model:    cfg.Model,
	}
	s.seedContext()
	logging.Session("Session %s started (model=%s, %d tools)", s.ID, s.model, registry.Count())
	return s, nil
}

// seedContext initializes the transcript with the system prompt plus any
// discovered memory files, and a canned model acknowledgement.
func (s *Session) seedContext() {
	text := CoreSystemPrompt(s.cfg.TargetDir)
	if memory := LoadMemory(s.cfg.TargetDir); memory != "" {
		text += "\n\n# User-Provided Context\n" +
			"You MUST use the following context to augment your knowledge and follow any directives given.\n" +
			memory
	}
	s.history = []gemini.Content{
		{Role: "user", Parts: gemini.TextPart(text)},
		{Role: "model", Parts: gemini.TextPart("Understood. I will follow these instructions and use my tools to assist you.")},
	}
}

// Registry exposes the session's tool registry.
func (s *Session) Registry() *tools.Registry { return s.registry }

// Model returns the active model name.
func (s *Session) Model() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.model
}

// SetModel switches the active model.
func (s *Session) SetModel(model string) {
	s.mu.Lock()
	s.model = model
	s.mu.Unlock()
	logging.Session("Active model set to %s", model)
}

// History returns a copy of the committed transcript.
func (s *Session) History() []gemini.Content {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]gemini.Content, len(s.history))
	copy(out, s.history)
	return out
}

// Reset discards the transcript and reseeds the system context.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seedContext()
	logging.Session("Session %s history reset", s.ID)
}

// Stats reports basic session counters.
func (s *Session) Stats() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return map[string]any{
		"id":             s.ID,
		"model":          s.model,
		"history_length": len(s.history),
	}
}

// HandleFlashFallback downgrades the session to the cheaper model under
// persistent rate-limiting. Returns false when already downgraded, which
// tells the retry controller to resume normal accounting.
func (s *Session) HandleFlashFallback(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.model == gemini.FallbackModel {
		return false
	}
	logging.Session("Persistent rate-limiting: switching %s -> %s", s.model, gemini.FallbackModel)
	s.model = gemini.FallbackModel
	return true
}

// Send runs one conversational turn for prompt. @path references are
// expanded into file content before the turn starts. The returned channel
// is the turn's event stream; consume it to exhaustion.
func (s *Session) Send(ctx context.Context, prompt string) <-chan turn.Event {
	parts := ExpandAtCommands(prompt, s.cfg.TargetDir, tools.NewIgnorer(s.cfg.TargetDir, s.cfg.Exclude))

	s.mu.Lock()
	history := make([]gemini.Content, len(s.history))
	copy(history, s.history)
	t := turn.New(turn.Config{
		Client:                s.client,
		Registry:              s.registry,
		Project:               s.cfg.Project,
		Model:                 s.Model,
		History:               history,
		Commit:                s.commit,
		OnPersistentRateLimit: s.HandleFlashFallback,
	})
	s.activeTurn = t
	s.mu.Unlock()

	return t.Run(ctx, parts)
}

// ResolveConfirmation forwards the operator's decision to the running turn.
func (s *Session) ResolveConfirmation(req turn.ToolCallRequest, outcome tools.Outcome) error {
	s.mu.Lock()
	t := s.activeTurn
	s.mu.Unlock()
	if t == nil {
		return fmt.Errorf("no turn in progress")
	}
	return t.ResolveConfirmation(req, outcome)
}

// commit replaces the transcript with the turn's finished working copy.
func (s *Session) commit(history []gemini.Content) {
	s.mu.Lock()
	s.history = history
	s.mu.Unlock()
	logging.SessionDebug("Committed transcript (%d messages)", len(history))
}
