package main

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	envRunMain = "HOOKRELAY_TEST_RUN_MAIN"
	envArgs    = "HOOKRELAY_TEST_ARGS"
)

// The test binary re-executes itself with envRunMain set, so main runs in
// a child process whose exit status can be observed.
func TestMain_AlwaysExitsZero(t *testing.T) {
	if os.Getenv(envRunMain) == "1" {
		os.Args = append([]string{"hookrelay"}, strings.Fields(os.Getenv(envArgs))...)
		main()
		return
	}

	dead := httptest.NewServer(http.NotFoundHandler())
	deadURL := dead.URL
	dead.Close()

	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer failing.Close()

	tests := []struct {
		name       string
		stdin      string
		args       string
		env        []string
		wantStdout string
		wantStderr string
	}{
		{
			name:       "dry run",
			stdin:      `{"session_id":"abc"}`,
			args:       "--source-app foo --event-type Bar --dry-run",
			wantStdout: `"session_id": "abc"`,
		},
		{
			name:       "malformed stdin",
			stdin:      `{"session_id":`,
			args:       "--source-app foo --event-type Bar --dry-run",
			wantStderr: "malformed hook input",
		},
		{
			name:       "missing required flag",
			stdin:      `{}`,
			args:       "--source-app foo",
			wantStderr: "required flag",
		},
		{
			name:       "server unreachable",
			stdin:      `{}`,
			args:       "--source-app foo --event-type Bar --server-url " + deadURL,
			wantStderr: "Hook event not forwarded",
		},
		{
			name:       "server rejects",
			stdin:      `{}`,
			args:       "--source-app foo --event-type Bar --server-url " + failing.URL,
			wantStderr: "status 503",
		},
		{
			name:       "broken config",
			stdin:      `{}`,
			args:       "--source-app foo --event-type Bar --dry-run",
			env:        []string{"OBSERVABILITY_REQUEST_TIMEOUT=abc"},
			wantStdout: `"source_app": "foo"`,
			wantStderr: "Could not load config",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := exec.Command(os.Args[0], "-test.run=^TestMain_AlwaysExitsZero$")
			cmd.Env = append(os.Environ(),
				envRunMain+"=1",
				envArgs+"="+tt.args,
				"OBSERVABILITY_CONFIG=",
				"OBSERVABILITY_SERVER_URL=",
				"OBSERVABILITY_REQUEST_TIMEOUT=",
				"OBSERVABILITY_PUSHGATEWAY_URL=",
				"OBSERVABILITY_SUMMARIZER_URL=",
				"ALLOWED_TRANSCRIPT_DIR="+t.TempDir(),
			)
			cmd.Env = append(cmd.Env, tt.env...)
			cmd.Stdin = strings.NewReader(tt.stdin)
			var stdout, stderr bytes.Buffer
			cmd.Stdout = &stdout
			cmd.Stderr = &stderr

			err := cmd.Run()
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				t.Fatalf("exit status %d, stderr: %s", exitErr.ExitCode(), stderr.String())
			}
			require.NoError(t, err)

			if tt.wantStdout != "" {
				assert.Contains(t, stdout.String(), tt.wantStdout)
			}
			if tt.wantStderr != "" {
				assert.Contains(t, stderr.String(), tt.wantStderr)
			}
		})
	}
}
