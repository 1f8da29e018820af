// Package envelope defines the record hookrelay sends to the observability
// server and the decoding of the hook payload it is built from.
package envelope

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// UnknownSession is used when the hook payload carries no session_id.
const UnknownSession = "unknown"

var (
	ErrEmptyInput = errors.New("hook input is empty")
	ErrNotObject  = errors.New("hook input is not a JSON object")
)

// Envelope is the enriched event. Payload is the hook input, compacted but
// otherwise untouched. Chat is nil unless a transcript was attached, in which
// case it serialises even when empty.
type Envelope struct {
	SourceApp     string            `json:"source_app"`
	SessionID     string            `json:"session_id"`
	HookEventType string            `json:"hook_event_type"`
	Payload       json.RawMessage   `json:"payload"`
	Timestamp     int64             `json:"timestamp"`
	Chat          []json.RawMessage `json:"chat,omitzero"`
	Summary       string            `json:"summary,omitempty"`
}

// Input is a decoded hook payload.
type Input struct {
	Raw            json.RawMessage
	SessionID      string
	TranscriptPath string
}

// HasTranscript reports whether the payload named a transcript file.
func (in *Input) HasTranscript() bool {
	return in.TranscriptPath != ""
}

// ParseInput decodes a hook payload. The document must be exactly one JSON
// object.
func ParseInput(data []byte) (*Input, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, ErrEmptyInput
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return nil, ErrNotObject
		}
		return nil, fmt.Errorf("decode hook input: %w", err)
	}
	if fields == nil {
		// literal null
		return nil, ErrNotObject
	}

	var compact bytes.Buffer
	if err := json.Compact(&compact, data); err != nil {
		return nil, fmt.Errorf("compact hook input: %w", err)
	}

	return &Input{
		Raw:            compact.Bytes(),
		SessionID:      sessionID(fields["session_id"]),
		TranscriptPath: stringField(fields["transcript_path"]),
	}, nil
}

func sessionID(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return UnknownSession
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	// Non-string IDs are kept as their JSON text.
	return string(raw)
}

func stringField(raw json.RawMessage) string {
	var s string
	if len(raw) == 0 || json.Unmarshal(raw, &s) != nil {
		return ""
	}
	return s
}

// New builds the envelope for one hook invocation.
func New(sourceApp, eventType string, in *Input, now time.Time) *Envelope {
	return &Envelope{
		SourceApp:     sourceApp,
		SessionID:     in.SessionID,
		HookEventType: eventType,
		Payload:       in.Raw,
		Timestamp:     now.UnixMilli(),
	}
}

// AttachChat sets the transcript. A nil chat is stored as an empty one so the
// field is still present on the wire.
func (e *Envelope) AttachChat(chat []json.RawMessage) {
	if chat == nil {
		chat = []json.RawMessage{}
	}
	e.Chat = chat
}

// AttachSummary sets the summary; an empty string leaves it out.
func (e *Envelope) AttachSummary(summary string) {
	e.Summary = summary
}

// Marshal returns the wire form of the envelope. HTML characters are left
// unescaped so the payload reaches the server as the hook wrote it.
func (e *Envelope) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(e); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
