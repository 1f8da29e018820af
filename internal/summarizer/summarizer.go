// Package summarizer produces a one-line description of a hook event.
//
// The capability is optional. When no model endpoint is configured the
// forwarder gets Noop and envelopes go out without a summary.
package summarizer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/telhawk-systems/hookrelay/internal/config"
	"github.com/telhawk-systems/hookrelay/internal/envelope"
)

// maxPayloadBytes bounds how much of the hook payload goes into the prompt.
const maxPayloadBytes = 1000

const systemPrompt = "You summarize events emitted by an AI coding agent for an observability dashboard. " +
	"Reply with one sentence of at most 15 words, present tense, no quotes, no trailing period."

var ErrEmptyResponse = errors.New("empty summarizer response")

type Summarizer interface {
	Summarize(ctx context.Context, env *envelope.Envelope) (string, error)
}

// New returns a Chat summarizer when cfg names an endpoint, otherwise Noop.
func New(cfg config.SummarizerConfig) Summarizer {
	if cfg.URL == "" {
		return Noop{}
	}
	return NewChat(cfg)
}

// Noop never produces a summary.
type Noop struct{}

func (Noop) Summarize(context.Context, *envelope.Envelope) (string, error) {
	return "", nil
}

// Chat calls an OpenAI-compatible chat completions endpoint.
type Chat struct {
	url       string
	apiKey    string
	model     string
	maxTokens int
	client    *http.Client
}

func NewChat(cfg config.SummarizerConfig) *Chat {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 100
	}
	return &Chat{
		url:       cfg.URL,
		apiKey:    cfg.APIKey,
		model:     cfg.Model,
		maxTokens: maxTokens,
		client:    &http.Client{Timeout: timeout},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *Chat) Summarize(ctx context.Context, env *envelope.Envelope) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt(env)},
		},
		MaxTokens:   c.maxTokens,
		Temperature: 0,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var result chatResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(result.Choices) == 0 {
		return "", ErrEmptyResponse
	}

	return clean(result.Choices[0].Message.Content), nil
}

func prompt(env *envelope.Envelope) string {
	payload := string(env.Payload)
	if len(payload) > maxPayloadBytes {
		payload = payload[:maxPayloadBytes] + "..."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Event type: %s\n", env.HookEventType)
	fmt.Fprintf(&b, "Source app: %s\n", env.SourceApp)
	fmt.Fprintf(&b, "Payload: %s\n", payload)
	return b.String()
}

// clean keeps the first line and drops wrapping quotes models like to add.
func clean(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = strings.TrimSpace(s[:i])
	}
	s = strings.Trim(s, "\"'`")
	return strings.TrimSpace(s)
}
