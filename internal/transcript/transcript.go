// Package transcript reads agent session transcripts for attachment to an
// envelope. Only files inside a configured directory are readable.
package transcript

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

var (
	ErrOutsideAllowedDir = errors.New("transcript path outside allowed directory")
	ErrNoAllowedDir      = errors.New("no allowed transcript directory configured")
)

// Reader loads transcripts from under AllowedDir.
type Reader struct {
	AllowedDir string
}

func NewReader(allowedDir string) *Reader {
	return &Reader{AllowedDir: allowedDir}
}

// Load resolves path against the allowed directory and reads it.
func (r *Reader) Load(path string) ([]json.RawMessage, error) {
	resolved, err := r.Resolve(path)
	if err != nil {
		return nil, err
	}
	return ReadChat(resolved)
}

// Resolve returns the canonical form of path, or ErrOutsideAllowedDir when
// it does not live under the canonical allowed directory. Symlinks are
// resolved on both sides before comparing.
func (r *Reader) Resolve(path string) (string, error) {
	if r.AllowedDir == "" {
		return "", ErrNoAllowedDir
	}

	allowedDir, err := expandHome(r.AllowedDir)
	if err != nil {
		return "", err
	}
	allowed, err := canonical(allowedDir)
	if err != nil {
		return "", fmt.Errorf("resolve allowed dir: %w", err)
	}

	target, err := canonical(path)
	if err != nil {
		return "", fmt.Errorf("resolve transcript path: %w", err)
	}

	if !within(allowed, target) {
		return "", fmt.Errorf("%w: %s", ErrOutsideAllowedDir, path)
	}
	return target, nil
}

// ReadChat reads a newline-delimited JSON file. Blank lines and lines that
// are not valid JSON are skipped; the rest keep their order.
func ReadChat(path string) ([]json.RawMessage, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open transcript: %w", err)
	}
	defer f.Close()

	chat := []json.RawMessage{}
	br := bufio.NewReader(f)
	for {
		line, readErr := br.ReadBytes('\n')
		if trimmed := bytes.TrimSpace(line); len(trimmed) > 0 && json.Valid(trimmed) {
			chat = append(chat, json.RawMessage(trimmed))
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return nil, fmt.Errorf("read transcript: %w", readErr)
		}
	}

	return chat, nil
}

// canonical makes p absolute and resolves symlinks. Trailing components that
// do not exist yet are kept as-is on top of their deepest existing parent.
func canonical(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}

	resolved, err := filepath.EvalSymlinks(abs)
	if err == nil {
		return resolved, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return "", err
	}

	parent := filepath.Dir(abs)
	if parent == abs {
		return abs, nil
	}
	dir, err := canonical(parent)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, filepath.Base(abs)), nil
}

func within(dir, target string) bool {
	rel, err := filepath.Rel(dir, target)
	if err != nil {
		return false
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return false
	}
	return !filepath.IsAbs(rel)
}

func expandHome(p string) (string, error) {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to determine home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~")), nil
}
