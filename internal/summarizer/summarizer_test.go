package summarizer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/telhawk-systems/hookrelay/internal/config"
	"github.com/telhawk-systems/hookrelay/internal/envelope"
)

func testEnvelope(t *testing.T, payload string) *envelope.Envelope {
	t.Helper()
	in, err := envelope.ParseInput([]byte(payload))
	require.NoError(t, err)
	return envelope.New("demo-app", "PreToolUse", in, time.Now())
}

func chatServer(t *testing.T, status int, reply string, check func(r *http.Request, req chatRequest)) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if check != nil {
			check(r, req)
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(reply))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestNew_SelectsImplementation(t *testing.T) {
	assert.IsType(t, Noop{}, New(config.SummarizerConfig{}))
	assert.IsType(t, &Chat{}, New(config.SummarizerConfig{URL: "http://localhost:11434/v1/chat/completions"}))
}

func TestNoop(t *testing.T) {
	summary, err := Noop{}.Summarize(context.Background(), testEnvelope(t, `{}`))
	require.NoError(t, err)
	assert.Empty(t, summary)
}

func TestChat_Summarize(t *testing.T) {
	server := chatServer(t, http.StatusOK,
		`{"choices":[{"message":{"role":"assistant","content":"  \"Agent runs ls in project root\"\n"}}]}`,
		func(r *http.Request, req chatRequest) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

			assert.Equal(t, "llama3.2", req.Model)
			assert.Equal(t, 64, req.MaxTokens)
			assert.Equal(t, float64(0), req.Temperature)
			require.Len(t, req.Messages, 2)
			assert.Equal(t, "system", req.Messages[0].Role)
			assert.Equal(t, "user", req.Messages[1].Role)
			assert.Contains(t, req.Messages[1].Content, "Event type: PreToolUse")
			assert.Contains(t, req.Messages[1].Content, `"command":"ls"`)
		})

	s := NewChat(config.SummarizerConfig{
		URL:       server.URL,
		APIKey:    "test-key",
		Model:     "llama3.2",
		MaxTokens: 64,
	})

	summary, err := s.Summarize(context.Background(), testEnvelope(t, `{"tool_input":{"command":"ls"}}`))
	require.NoError(t, err)
	assert.Equal(t, "Agent runs ls in project root", summary)
}

func TestChat_NoAPIKeyNoHeader(t *testing.T) {
	server := chatServer(t, http.StatusOK, `{"choices":[{"message":{"content":"ok"}}]}`,
		func(r *http.Request, _ chatRequest) {
			assert.Empty(t, r.Header.Get("Authorization"))
		})

	summary, err := NewChat(config.SummarizerConfig{URL: server.URL}).Summarize(context.Background(), testEnvelope(t, `{}`))
	require.NoError(t, err)
	assert.Equal(t, "ok", summary)
}

func TestChat_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		reply  string
	}{
		{"server error", http.StatusInternalServerError, `{"error":"overloaded"}`},
		{"unauthorized", http.StatusUnauthorized, `{"error":"bad key"}`},
		{"no choices", http.StatusOK, `{"choices":[]}`},
		{"not json", http.StatusOK, `<html>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := chatServer(t, tt.status, tt.reply, nil)

			summary, err := NewChat(config.SummarizerConfig{URL: server.URL}).Summarize(context.Background(), testEnvelope(t, `{}`))
			assert.Error(t, err)
			assert.Empty(t, summary)
		})
	}
}

func TestChat_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	_, err := NewChat(config.SummarizerConfig{URL: url, Timeout: time.Second}).Summarize(context.Background(), testEnvelope(t, `{}`))
	assert.Error(t, err)
}

func TestNewChat_Defaults(t *testing.T) {
	c := NewChat(config.SummarizerConfig{URL: "http://x"})
	assert.Equal(t, 100, c.maxTokens)
	assert.Equal(t, 10*time.Second, c.client.Timeout)
}

func TestPrompt_TruncatesPayload(t *testing.T) {
	env := testEnvelope(t, `{"blob":"`+strings.Repeat("a", 5000)+`"}`)

	p := prompt(env)
	assert.Less(t, len(p), maxPayloadBytes+200)
	assert.Contains(t, p, "...")
}

func TestClean(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Agent reads config", "Agent reads config"},
		{"  \"Agent reads config\"  ", "Agent reads config"},
		{"First line\nSecond line", "First line"},
		{"`quoted`", "quoted"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, clean(tt.in))
		})
	}
}
