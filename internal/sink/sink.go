// Package sink delivers envelopes. The destination URL scheme picks the
// transport: http(s) posts to the observability server, nats publishes on a
// subject, redis appends to a stream.
package sink

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/telhawk-systems/hookrelay/internal/auth"
	"github.com/telhawk-systems/hookrelay/internal/envelope"
)

const DefaultTimeout = 5 * time.Second

var ErrUnsupportedScheme = errors.New("unsupported sink scheme")

// Sink sends one envelope. Implementations make a single attempt; a failed
// delivery is reported, never retried.
type Sink interface {
	Send(ctx context.Context, env *envelope.Envelope) error
	Name() string
	Close() error
}

type Options struct {
	Timeout     time.Duration
	UserAgent   string
	Credentials *auth.Credentials
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.UserAgent == "" {
		o.UserAgent = "hookrelay"
	}
	return o
}

// New builds the sink for rawURL.
func New(rawURL string, opts Options) (Sink, error) {
	opts = opts.withDefaults()

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse destination URL: %w", err)
	}

	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return NewHTTP(rawURL, opts), nil
	case "nats":
		return newNATS(u, opts), nil
	case "redis", "rediss":
		return newRedis(u, opts)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}
}
