package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"depthScope/internal/model"
)

// StdoutPath selects standard output instead of a file.
const StdoutPath = "-"

// JSONLSink writes books and event envelopes as JSON lines.
type JSONLSink struct {
	mu     sync.Mutex
	closer io.Closer
	writer *bufio.Writer
}

// NewJSONLSink opens path for appending, creating parent directories as needed.
func NewJSONLSink(path string) (*JSONLSink, error) {
	if path == "" || path == StdoutPath {
		return NewJSONLWriter(os.Stdout), nil
	}

	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create output dir: %w", err)
		}
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open output file: %w", err)
	}
	return &JSONLSink{closer: file, writer: bufio.NewWriter(file)}, nil
}

// NewJSONLWriter writes to w. Close flushes but does not close w.
func NewJSONLWriter(w io.Writer) *JSONLSink {
	return &JSONLSink{writer: bufio.NewWriter(w)}
}

// PutBook appends one aggregated book.
func (s *JSONLSink) PutBook(_ context.Context, book model.AggregatedBook) error {
	return s.writeLine(book)
}

// PutEvent appends one event wrapped in its envelope.
func (s *JSONLSink) PutEvent(_ context.Context, ev model.Event) error {
	return s.writeLine(model.NewEnvelope(ev))
}

func (s *JSONLSink) writeLine(v interface{}) error {
	line, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.writer.Write(line); err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	if err := s.writer.WriteByte('\n'); err != nil {
		return fmt.Errorf("write newline: %w", err)
	}
	if err := s.writer.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}
	return nil
}

// Close flushes pending output and closes the underlying file.
func (s *JSONLSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.writer.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}
