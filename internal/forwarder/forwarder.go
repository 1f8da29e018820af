// Package forwarder runs one hook invocation: decode the payload, build the
// envelope, attach the optional extras and deliver it.
package forwarder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/telhawk-systems/hookrelay/internal/envelope"
	"github.com/telhawk-systems/hookrelay/internal/logging"
	"github.com/telhawk-systems/hookrelay/internal/metrics"
	"github.com/telhawk-systems/hookrelay/internal/sink"
	"github.com/telhawk-systems/hookrelay/internal/summarizer"
	"github.com/telhawk-systems/hookrelay/internal/transcript"
)

var (
	ErrMalformedInput = errors.New("malformed hook input")
	ErrNoSink         = errors.New("no sink configured")
)

// Options are the per-invocation settings from the command line.
type Options struct {
	SourceApp string
	EventType string
	AddChat   bool
	Summarize bool
}

// Forwarder holds the collaborators chosen at startup. Summarizer and
// Metrics may be nil; they default to no-ops.
type Forwarder struct {
	Sink        sink.Sink
	Transcripts *transcript.Reader
	Summarizer  summarizer.Summarizer
	Metrics     *metrics.Recorder
	Logger      *logging.Logger
	Now         func() time.Time
}

// Run forwards the hook payload read from stdin. It returns an error only for
// malformed input and failed delivery; transcript, summary and metrics
// problems are logged and the run carries on without them.
func (f *Forwarder) Run(ctx context.Context, opts Options, stdin io.Reader) error {
	if f.Sink == nil {
		return ErrNoSink
	}
	f.defaults()
	logger := f.Logger.With(logging.SourceApp(opts.SourceApp), logging.EventType(opts.EventType))

	data, err := io.ReadAll(stdin)
	if err != nil {
		return fmt.Errorf("%w: read stdin: %v", ErrMalformedInput, err)
	}
	in, err := envelope.ParseInput(data)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}

	env := envelope.New(opts.SourceApp, opts.EventType, in, f.Now())
	logger = logger.With(logging.SessionID(env.SessionID))

	if opts.AddChat {
		if in.HasTranscript() {
			f.attachChat(logger, env, in.TranscriptPath)
		} else {
			logger.Debug("No transcript path in hook input")
		}
	}

	if opts.Summarize {
		f.attachSummary(ctx, logger, env)
	}

	start := f.Now()
	sendErr := f.Sink.Send(ctx, env)
	took := f.Now().Sub(start)

	f.Metrics.Observe(opts.EventType, start, sendErr == nil, took, len(env.Chat))
	if err := f.Metrics.Push(ctx); err != nil {
		logger.Warn("Failed to push metrics", logging.Error(err))
	}

	if sendErr != nil {
		var statusErr *sink.StatusError
		if errors.As(sendErr, &statusErr) {
			logger.Debug("Server rejected event", logging.Sink(f.Sink.Name()), logging.Status(statusErr.Code))
		}
		return fmt.Errorf("delivery failed via %s: %w", f.Sink.Name(), sendErr)
	}

	logger.Debug("Event forwarded", logging.Sink(f.Sink.Name()), logging.Duration(took))
	return nil
}

func (f *Forwarder) attachChat(logger *logging.Logger, env *envelope.Envelope, path string) {
	if f.Transcripts == nil {
		logger.Warn("Transcript requested but no reader configured", logging.Path(path))
		return
	}

	chat, err := f.Transcripts.Load(path)
	switch {
	case errors.Is(err, transcript.ErrOutsideAllowedDir):
		logger.Warn("Transcript path outside allowed directory",
			logging.Path(path),
			"allowed_dir", f.Transcripts.AllowedDir,
		)
		return
	case err != nil:
		logger.Warn("Failed to read transcript", logging.Path(path), logging.Error(err))
		return
	}

	env.AttachChat(chat)
	logger.Debug("Transcript attached", logging.Path(path), "messages", len(chat))
}

func (f *Forwarder) attachSummary(ctx context.Context, logger *logging.Logger, env *envelope.Envelope) {
	summary, err := f.Summarizer.Summarize(ctx, env)
	if err != nil {
		logger.Warn("Failed to generate summary", logging.Error(err))
		return
	}
	if summary == "" {
		logger.Debug("No summary produced")
		return
	}
	env.AttachSummary(summary)
}

func (f *Forwarder) defaults() {
	if f.Summarizer == nil {
		f.Summarizer = summarizer.Noop{}
	}
	if f.Metrics == nil {
		f.Metrics = metrics.New("", "", 0)
	}
	if f.Logger == nil {
		f.Logger = logging.Discard()
	}
	if f.Now == nil {
		f.Now = time.Now
	}
}
