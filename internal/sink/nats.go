package sink

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/telhawk-systems/hookrelay/internal/auth"
	"github.com/telhawk-systems/hookrelay/internal/envelope"
)

// DefaultNATSSubject is used when the URL has no path.
const DefaultNATSSubject = "hooks.events"

// NATSSink publishes each envelope as one core NATS message. The URL path,
// with slashes turned into dots, is the subject:
// nats://host:4222/hooks/events publishes on "hooks.events".
type NATSSink struct {
	server    string
	subject   string
	hasUser   bool
	timeout   time.Duration
	userAgent string
	creds     *auth.Credentials
	conn      *nats.Conn
}

func newNATS(u *url.URL, opts Options) *NATSSink {
	subject := strings.ReplaceAll(strings.Trim(u.Path, "/"), "/", ".")
	if subject == "" {
		subject = DefaultNATSSubject
	}

	server := &url.URL{Scheme: u.Scheme, User: u.User, Host: u.Host}

	return &NATSSink{
		server:    server.String(),
		subject:   subject,
		hasUser:   u.User != nil,
		timeout:   opts.Timeout,
		userAgent: opts.UserAgent,
		creds:     opts.Credentials,
	}
}

func (s *NATSSink) Name() string { return "nats" }

// Subject returns the subject envelopes are published on.
func (s *NATSSink) Subject() string { return s.subject }

func (s *NATSSink) Send(ctx context.Context, env *envelope.Envelope) error {
	body, err := env.Marshal()
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	opts := []nats.Option{
		nats.Name(s.userAgent),
		nats.Timeout(s.timeout),
		nats.MaxReconnects(0),
	}
	if !s.hasUser {
		token, err := s.creds.Token(env.SourceApp, env.SessionID, env.HookEventType)
		if err != nil {
			return fmt.Errorf("sign token: %w", err)
		}
		if token != "" {
			opts = append(opts, nats.Token(token))
		}
	}

	conn, err := nats.Connect(s.server, opts...)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}
	s.conn = conn

	msg := nats.NewMsg(s.subject)
	msg.Data = body
	msg.Header.Set(nats.MsgIdHdr, uuid.New().String())
	msg.Header.Set("Hook-Event-Type", env.HookEventType)

	if err := conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}

	flushCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := conn.FlushWithContext(flushCtx); err != nil {
		return fmt.Errorf("flush event: %w", err)
	}

	return nil
}

func (s *NATSSink) Close() error {
	if s.conn != nil {
		s.conn.Close()
	}
	return nil
}
