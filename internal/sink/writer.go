package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/telhawk-systems/hookrelay/internal/envelope"
	"gopkg.in/yaml.v3"
)

// WriterSink prints envelopes instead of delivering them. It backs --dry-run.
type WriterSink struct {
	w      io.Writer
	format string
}

// NewWriter returns a sink writing to w in format "json" (default) or "yaml".
func NewWriter(w io.Writer, format string) *WriterSink {
	return &WriterSink{w: w, format: format}
}

func (s *WriterSink) Name() string { return "stdout" }

func (s *WriterSink) Send(_ context.Context, env *envelope.Envelope) error {
	body, err := env.Marshal()
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	switch s.format {
	case "yaml":
		return s.writeYAML(body)
	default:
		var out bytes.Buffer
		if err := json.Indent(&out, body, "", "  "); err != nil {
			return fmt.Errorf("indent envelope: %w", err)
		}
		out.WriteByte('\n')
		_, err := s.w.Write(out.Bytes())
		return err
	}
}

func (s *WriterSink) writeYAML(body []byte) error {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var doc any
	if err := dec.Decode(&doc); err != nil {
		return fmt.Errorf("decode envelope: %w", err)
	}

	enc := yaml.NewEncoder(s.w)
	enc.SetIndent(2)
	if err := enc.Encode(numbers(doc)); err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}
	return enc.Close()
}

// numbers swaps json.Number for int64 or float64 so YAML renders them as
// plain scalars rather than strings.
func numbers(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, child := range t {
			t[k] = numbers(child)
		}
		return t
	case []any:
		for i, child := range t {
			t[i] = numbers(child)
		}
		return t
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return n
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	default:
		return v
	}
}

func (s *WriterSink) Close() error { return nil }
