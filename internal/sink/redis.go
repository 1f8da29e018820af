package sink

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/telhawk-systems/hookrelay/internal/envelope"
)

// DefaultRedisStream is used when the URL has no stream parameter.
const DefaultRedisStream = "hooks:events"

// RedisSink appends each envelope to a Redis stream with XADD.
//
// URL form: redis://[:password@]host:port/db?stream=name&maxlen=N
// The stream and maxlen parameters are consumed here; everything else goes
// to redis.ParseURL.
type RedisSink struct {
	client  *redis.Client
	stream  string
	maxLen  int64
	timeout time.Duration
}

func newRedis(u *url.URL, opts Options) (*RedisSink, error) {
	q := u.Query()

	stream := q.Get("stream")
	if stream == "" {
		stream = DefaultRedisStream
	}

	var maxLen int64
	if v := q.Get("maxlen"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid redis maxlen %q", v)
		}
		maxLen = n
	}

	q.Del("stream")
	q.Del("maxlen")
	clean := *u
	clean.RawQuery = q.Encode()

	opt, err := redis.ParseURL(clean.String())
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	opt.DialTimeout = opts.Timeout
	opt.ReadTimeout = opts.Timeout
	opt.WriteTimeout = opts.Timeout
	// -1 disables go-redis' own retries.
	opt.MaxRetries = -1

	return &RedisSink{
		client:  redis.NewClient(opt),
		stream:  stream,
		maxLen:  maxLen,
		timeout: opts.Timeout,
	}, nil
}

func (s *RedisSink) Name() string { return "redis" }

// Stream returns the stream envelopes are appended to.
func (s *RedisSink) Stream() string { return s.stream }

func (s *RedisSink) Send(ctx context.Context, env *envelope.Envelope) error {
	body, err := env.Marshal()
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	args := &redis.XAddArgs{
		Stream: s.stream,
		Values: map[string]interface{}{
			"envelope":        string(body),
			"source_app":      env.SourceApp,
			"session_id":      env.SessionID,
			"hook_event_type": env.HookEventType,
		},
	}
	if s.maxLen > 0 {
		args.MaxLen = s.maxLen
		args.Approx = true
	}

	if err := s.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("xadd event: %w", err)
	}

	return nil
}

func (s *RedisSink) Close() error {
	return s.client.Close()
}
