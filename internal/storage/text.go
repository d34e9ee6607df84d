package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/IshaanNene/rallybrief/internal/types"
)

// --- Text Sink ---

// TextSink writes extracted lines to a plain UTF-8 file, one per line,
// replacing any previous content.
type TextSink struct {
	locks  sync.Map // absolute path -> *sync.Mutex
	logger *slog.Logger
}

// NewTextSink creates a TextSink.
func NewTextSink(logger *slog.Logger) *TextSink {
	return &TextSink{logger: logger.With("component", "text_sink")}
}

// Save replaces the file at path with lines. An empty line set is rejected
// with types.ErrEmptyResult before anything on disk is touched. The new
// content is written to a temporary file in the same directory and renamed
// into place, so readers see either the old or the new file.
func (s *TextSink) Save(path string, lines []string) error {
	if len(lines) == 0 {
		return types.ErrEmptyResult
	}

	unlock := s.lock(path)
	defer unlock()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &types.StorageError{Backend: "text", Err: fmt.Errorf("create output dir: %w", err)}
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return &types.StorageError{Backend: "text", Err: fmt.Errorf("create temp file: %w", err)}
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	var b strings.Builder
	for _, line := range lines {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	if _, err := tmp.WriteString(b.String()); err != nil {
		return &types.StorageError{Backend: "text", Err: fmt.Errorf("write temp file: %w", err)}
	}
	if err := tmp.Sync(); err != nil {
		return &types.StorageError{Backend: "text", Err: fmt.Errorf("sync temp file: %w", err)}
	}
	if err := tmp.Close(); err != nil {
		return &types.StorageError{Backend: "text", Err: fmt.Errorf("close temp file: %w", err)}
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return &types.StorageError{Backend: "text", Err: fmt.Errorf("chmod temp file: %w", err)}
	}
	if err := os.Rename(tmpName, path); err != nil {
		return &types.StorageError{Backend: "text", Err: fmt.Errorf("replace %s: %w", path, err)}
	}
	committed = true

	s.logger.Info("text written", "path", path, "lines", len(lines))
	return nil
}

// Load returns the file content. A missing file is types.ErrNotFound.
func (s *TextSink) Load(path string) (string, error) {
	unlock := s.lock(path)
	defer unlock()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", types.ErrNotFound, path)
		}
		return "", &types.StorageError{Backend: "text", Err: err}
	}
	return string(data), nil
}

func (s *TextSink) lock(path string) func() {
	key := path
	if abs, err := filepath.Abs(path); err == nil {
		key = abs
	}
	v, _ := s.locks.LoadOrStore(key, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// --- JSONL Record Store ---

// JSONLStore appends briefing records as newline-delimited JSON.
type JSONLStore struct {
	path   string
	file   *os.File
	enc    *json.Encoder
	mu     sync.Mutex
	count  int
	logger *slog.Logger
}

// NewJSONLStore opens path for appending, creating it if needed.
func NewJSONLStore(path string, logger *slog.Logger) (*JSONLStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open records file: %w", err)
	}

	return &JSONLStore{
		path:   path,
		file:   f,
		enc:    json.NewEncoder(f),
		logger: logger.With("component", "jsonl_store"),
	}, nil
}

func (s *JSONLStore) Name() string { return "jsonl" }

func (s *JSONLStore) Record(_ context.Context, b *types.Briefing) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.enc.Encode(b); err != nil {
		return &types.StorageError{Backend: "jsonl", Err: fmt.Errorf("encode record: %w", err)}
	}
	s.count++
	return nil
}

func (s *JSONLStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logger.Debug("JSONL records closed", "path", s.path, "written", s.count)
	return s.file.Close()
}
