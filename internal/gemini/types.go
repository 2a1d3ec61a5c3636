package gemini

import "time"

// Models available through the Code Assist endpoint.
const (
	// DefaultModel is the high-capability model used for new sessions.
	DefaultModel = "gemini-2.5-pro"

	// FallbackModel is the cheaper model the session downgrades to under
	// persistent rate-limiting.
	FallbackModel = "gemini-2.5-flash"
)

// Config holds configuration for the Code Assist client.
type Config struct {
	Endpoint   string
	APIVersion string
	ProjectID  string
	Timeout    time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Endpoint:   "https://cloudcode-pa.googleapis.com",
		APIVersion: "v1internal",
		Timeout:    5 * time.Minute,
	}
}

// Content is one message in a conversation. Role is "user" or "model".
type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

// Part carries exactly one of Text, FunctionCall or FunctionResponse.
type Part struct {
	Text             string            `json:"text,omitempty"`
	FunctionCall     *FunctionCall     `json:"functionCall,omitempty"`
	FunctionResponse *FunctionResponse `json:"functionResponse,omitempty"`
}

// TextPart wraps a plain string into a single-part slice.
func TextPart(text string) []Part {
	return []Part{{Text: text}}
}

// FunctionCall is a tool invocation requested by the model.
type FunctionCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

// FunctionResponse is the tool result sent back to the model.
type FunctionResponse struct {
	Name     string         `json:"name"`
	Response map[string]any `json:"response"`
}

// FunctionDeclaration describes one callable tool to the model.
type FunctionDeclaration struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// ToolDeclarations is the tools block of a request.
type ToolDeclarations struct {
	FunctionDeclarations []FunctionDeclaration `json:"functionDeclarations"`
}

// GenerateRequest is the inner request body.
type GenerateRequest struct {
	Contents []Content          `json:"contents"`
	Tools    []ToolDeclarations `json:"tools,omitempty"`
}

// Envelope is the outer Code Assist request body.
type Envelope struct {
	Model   string          `json:"model"`
	Project string          `json:"project,omitempty"`
	Request GenerateRequest `json:"request"`
}

// Candidate holds one model response candidate.
type Candidate struct {
	Content      Content `json:"content"`
	FinishReason string  `json:"finishReason,omitempty"`
}

// GenerateResponse mirrors the response payload of generateContent.
type GenerateResponse struct {
	Candidates        []Candidate    `json:"candidates"`
	GroundingMetadata map[string]any `json:"groundingMetadata,omitempty"`
}

// StreamEnvelope is the JSON carried by each "data:" line of the SSE stream
// and by the non-streaming endpoint.
type StreamEnvelope struct {
	Response GenerateResponse `json:"response"`
}

// Parts returns the parts of the first candidate, or nil when the chunk
// carries none.
func (e *StreamEnvelope) Parts() []Part {
	if len(e.Response.Candidates) == 0 {
		return nil
	}
	return e.Response.Candidates[0].Content.Parts
}
