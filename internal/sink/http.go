package sink

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/telhawk-systems/hookrelay/internal/auth"
	"github.com/telhawk-systems/hookrelay/internal/envelope"
)

// StatusError is returned when the server answers with anything but 200.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server returned status %d", e.Code)
}

type HTTPSink struct {
	url       string
	client    *http.Client
	userAgent string
	creds     *auth.Credentials
}

func NewHTTP(url string, opts Options) *HTTPSink {
	opts = opts.withDefaults()
	return &HTTPSink{
		url:       url,
		client:    &http.Client{Timeout: opts.Timeout},
		userAgent: opts.UserAgent,
		creds:     opts.Credentials,
	}
}

func (s *HTTPSink) Name() string { return "http" }

func (s *HTTPSink) Send(ctx context.Context, env *envelope.Envelope) error {
	body, err := env.Marshal()
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	token, err := s.creds.Token(env.SourceApp, env.SessionID, env.HookEventType)
	if err != nil {
		return fmt.Errorf("sign token: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("X-Request-ID", uuid.New().String())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post event: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode != http.StatusOK {
		return &StatusError{Code: resp.StatusCode}
	}

	return nil
}

func (s *HTTPSink) Close() error {
	s.client.CloseIdleConnections()
	return nil
}
