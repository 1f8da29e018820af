// Package cli wires configuration, logging and delivery behind the hookrelay
// command. Every failure ends at Run, which logs it and returns; the hook
// never blocks the agent that invoked it.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/telhawk-systems/hookrelay/internal/auth"
	"github.com/telhawk-systems/hookrelay/internal/config"
	"github.com/telhawk-systems/hookrelay/internal/forwarder"
	"github.com/telhawk-systems/hookrelay/internal/logging"
	"github.com/telhawk-systems/hookrelay/internal/metrics"
	"github.com/telhawk-systems/hookrelay/internal/sink"
	"github.com/telhawk-systems/hookrelay/internal/summarizer"
	"github.com/telhawk-systems/hookrelay/internal/transcript"
)

// Version is overridden at build time with -ldflags "-X ...cli.Version=...".
var Version = "0.1.0"

var errUnknownOutput = errors.New("unknown output format")

// app carries state shared between the command and the boundary, so that
// the boundary reports errors through the logger the command configured.
type app struct {
	logger *logging.Logger
}

func newRootCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hookrelay",
		Short: "Forward agent hook events to an observability server",
		Long: `hookrelay reads one hook payload as JSON from stdin, wraps it in an event
envelope and sends it to the observability server.

It always exits 0. Problems are reported on stderr.`,
		Example: `  echo '{"session_id":"abc"}' | hookrelay --source-app demo --event-type PreToolUse
  hookrelay --source-app demo --event-type Stop --add-chat --summarize
  hookrelay --source-app demo --event-type Stop --dry-run --output yaml`,
		Version:       Version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd)
		},
	}

	flags := cmd.Flags()
	flags.String("source-app", "", "Source application name (required)")
	flags.String("event-type", "", "Hook event type, e.g. PreToolUse or Stop (required)")
	flags.String("server-url", config.DefaultServerURL, "Destination URL; the scheme selects http(s), nats or redis delivery")
	flags.Bool("add-chat", false, "Attach the session transcript as chat")
	flags.Bool("summarize", false, "Attach a short summary of the event")
	flags.String("config", "", "Config file (default: $OBSERVABILITY_CONFIG)")
	flags.Bool("dry-run", false, "Print the envelope to stdout instead of sending it")
	flags.StringP("output", "o", "json", "Dry-run output format: json, yaml")

	_ = cmd.MarkFlagRequired("source-app")
	_ = cmd.MarkFlagRequired("event-type")

	return cmd
}

func (a *app) run(cmd *cobra.Command) error {
	sourceApp, _ := cmd.Flags().GetString("source-app")
	eventType, _ := cmd.Flags().GetString("event-type")
	addChat, _ := cmd.Flags().GetBool("add-chat")
	summarize, _ := cmd.Flags().GetBool("summarize")
	cfgFile, _ := cmd.Flags().GetString("config")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	output, _ := cmd.Flags().GetString("output")

	cfg, err := config.Load(cfgFile)
	if err != nil {
		a.logger.Warn("Could not load config, using defaults", logging.Error(err))
		cfg = config.Default()
	}
	if cmd.Flags().Changed("server-url") {
		cfg.ServerURL, _ = cmd.Flags().GetString("server-url")
	}

	a.logger = logging.New(logging.ParseLevel(cfg.Logging.Level), cfg.Logging.Format, cmd.ErrOrStderr())
	logging.SetDefault(a.logger)

	var s sink.Sink
	if dryRun {
		if output != "json" && output != "yaml" {
			return fmt.Errorf("%w: %q", errUnknownOutput, output)
		}
		s = sink.NewWriter(cmd.OutOrStdout(), output)
	} else {
		s, err = sink.New(cfg.ServerURL, sink.Options{
			Timeout:     cfg.RequestTimeout,
			UserAgent:   "hookrelay/" + Version,
			Credentials: auth.NewCredentials(cfg.AuthToken, cfg.JWTSecret, cfg.JWTTTL),
		})
		if err != nil {
			return err
		}
	}
	defer s.Close()

	a.logger.Debug("Forwarding hook event",
		logging.SourceApp(sourceApp),
		logging.EventType(eventType),
		logging.Sink(s.Name()),
		logging.URL(cfg.ServerURL),
	)

	f := &forwarder.Forwarder{
		Sink:        s,
		Transcripts: transcript.NewReader(cfg.AllowedTranscriptDir),
		Summarizer:  summarizer.New(cfg.Summarizer),
		Metrics:     metrics.New(cfg.Metrics.PushgatewayURL, sourceApp, cfg.RequestTimeout),
		Logger:      a.logger,
	}

	return f.Run(cmd.Context(), forwarder.Options{
		SourceApp: sourceApp,
		EventType: eventType,
		AddChat:   addChat,
		Summarize: summarize,
	}, cmd.InOrStdin())
}

// Run executes one hook invocation. Errors and panics are logged to stderr
// and also returned, for tests; callers exit 0 regardless.
func Run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) (err error) {
	a := &app{logger: logging.New(slog.LevelInfo, "text", stderr)}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
		if err != nil {
			a.logger.Error("Hook event not forwarded", logging.Error(err))
		}
	}()

	cmd := newRootCommand(a)
	cmd.SetArgs(args)
	cmd.SetIn(stdin)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	return cmd.ExecuteContext(ctx)
}

// Execute runs hookrelay against the process stdio.
func Execute() {
	_ = Run(context.Background(), os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
}
