package gemini

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"gofer/internal/logging"
)

// TokenSource supplies the bearer token attached to every request.
// Credential acquisition and refresh live outside this package.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticTokenSource returns a TokenSource that always yields token.
func StaticTokenSource(token string) TokenSource {
	return staticToken(token)
}

type staticToken string

func (t staticToken) Token(ctx context.Context) (string, error) {
	if t == "" {
		return "", fmt.Errorf("no API token configured")
	}
	return string(t), nil
}

// Client talks to the Code Assist endpoint. It handles request framing and
// SSE transport; retry policy is layered on by the caller via WithRetry.
type Client struct {
	config     Config
	tokens     TokenSource
	httpClient *http.Client
}

// NewClient creates a Code Assist client.
func NewClient(config Config, tokens TokenSource) *Client {
	if config.Endpoint == "" {
		config.Endpoint = DefaultConfig().Endpoint
	}
	if config.APIVersion == "" {
		config.APIVersion = DefaultConfig().APIVersion
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultConfig().Timeout
	}
	return &Client{
		config:     config,
		tokens:     tokens,
		httpClient: &http.Client{Timeout: config.Timeout},
	}
}

// ProjectID returns the configured cloud project, if any.
func (c *Client) ProjectID() string { return c.config.ProjectID }

func (c *Client) newRequest(ctx context.Context, method string, envelope *Envelope, stream bool) (*http.Request, error) {
	body, err := json.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/%s:%s", c.config.Endpoint, c.config.APIVersion, method)
	if stream {
		url += "?alt=sse"
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire token: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	if stream {
		req.Header.Set("Accept", "text/event-stream")
	}
	return req, nil
}

// statusError drains the response body into a StatusError.
func statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	resp.Body.Close()
	return &StatusError{
		Code:       resp.StatusCode,
		Body:       strings.TrimSpace(string(body)),
		RetryAfter: resp.Header.Get("Retry-After"),
	}
}

// StreamGenerateContent opens a streaming generateContent call. The caller
// owns the returned Stream and must Close it.
func (c *Client) StreamGenerateContent(ctx context.Context, envelope *Envelope) (*Stream, error) {
	req, err := c.newRequest(ctx, "streamGenerateContent", envelope, true)
	if err != nil {
		return nil, err
	}

	logging.APIDebug("POST streamGenerateContent model=%s contents=%d", envelope.Model, len(envelope.Request.Contents))
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp)
	}
	return NewStream(resp.Body), nil
}

// GenerateContent issues the non-streaming variant and returns the parsed
// envelope.
func (c *Client) GenerateContent(ctx context.Context, envelope *Envelope) (*StreamEnvelope, error) {
	req, err := c.newRequest(ctx, "generateContent", envelope, false)
	if err != nil {
		return nil, err
	}

	logging.APIDebug("POST generateContent model=%s contents=%d", envelope.Model, len(envelope.Request.Contents))
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp)
	}

	var out StreamEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &out, nil
}

// Stream reads server-sent events line by line. Only "data:" lines carry
// payloads; everything else is framing and is skipped. Buffering never spans
// more than one line, so text deltas reach the consumer as soon as the
// server flushes them.
type Stream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
}

// NewStream wraps an SSE response body. Exposed for tests that feed the
// turn engine from a canned reader.
func NewStream(body io.ReadCloser) *Stream {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &Stream{body: body, scanner: scanner}
}

// Recv returns the payload of the next data line, or io.EOF when the stream
// ends. Transport errors from the scanner surface as-is.
func (s *Stream) Recv() ([]byte, error) {
	for s.scanner.Scan() {
		line := s.scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "" || data == "[DONE]" {
			continue
		}
		return []byte(data), nil
	}
	if err := s.scanner.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

// Close releases the underlying response body.
func (s *Stream) Close() error {
	return s.body.Close()
}
