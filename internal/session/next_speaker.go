package session

import (
	"context"
	"strings"

	"gofer/internal/gemini"
	"gofer/internal/logging"
)

// NextSpeaker says whose move it is after a committed turn.
type NextSpeaker string

const (
	SpeakerUser  NextSpeaker = "user"
	SpeakerModel NextSpeaker = "model"
)

// CheckNextSpeaker decides whether the model should continue unprompted.
// A transcript ending in tool responses always continues with the model;
// otherwise the model itself is asked via a non-streaming call. Any failure
// defaults to handing control back to the user.
func (s *Session) CheckNextSpeaker(ctx context.Context) NextSpeaker {
	history := s.History()
	if len(history) == 0 {
		return SpeakerUser
	}

	last := history[len(history)-1]
	if last.Role == "user" {
		for _, part := range last.Parts {
			if part.FunctionResponse != nil {
				return SpeakerModel
			}
		}
	}

	contents := validContents(history)
	if len(contents) == 0 {
		return SpeakerUser
	}
	contents = append(contents, gemini.Content{Role: "user", Parts: gemini.TextPart(nextSpeakerPrompt)})

	envelope := &gemini.Envelope{
		Model:   s.Model(),
		Project: s.cfg.Project,
		Request: gemini.GenerateRequest{Contents: contents},
	}
	resp, err := gemini.WithRetry(ctx, func(ctx context.Context) (*gemini.StreamEnvelope, error) {
		return s.client.GenerateContent(ctx, envelope)
	}, gemini.DefaultRetryOptions())
	if err != nil {
		logging.SessionError("Next-speaker check failed: %v", err)
		return SpeakerUser
	}

	for _, part := range resp.Parts() {
		text := strings.ToLower(strings.TrimSpace(part.Text))
		if strings.HasPrefix(text, string(SpeakerModel)) {
			return SpeakerModel
		}
		if text != "" {
			break
		}
	}
	return SpeakerUser
}

// validContents drops messages with no payload-bearing parts; the API
// rejects empty parts lists.
func validContents(history []gemini.Content) []gemini.Content {
	out := make([]gemini.Content, 0, len(history))
	for _, msg := range history {
		var parts []gemini.Part
		for _, p := range msg.Parts {
			if p.Text != "" || p.FunctionCall != nil || p.FunctionResponse != nil {
				parts = append(parts, p)
			}
		}
		if len(parts) > 0 {
			out = append(out, gemini.Content{Role: msg.Role, Parts: parts})
		}
	}
	return out
}
