package consumer

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"sync"

	"go.uber.org/multierr"
)

var ErrSinkClosed = errors.New("sink closed")

// Sink stores formatted reading lines.
type Sink interface {
	Append(line string) error
	Close() error
}

// SinkOpener creates the sink when the consumer starts.
type SinkOpener func() (Sink, error)

// FileSink writes one line per reading to a file. Each line is flushed as it
// is written so the file can be followed while the monitor runs.
type FileSink struct {
	mu     sync.Mutex
	file   *os.File
	w      *bufio.Writer
	closed bool
}

// OpenFile creates or truncates the sink file at path.
func OpenFile(path string) (*FileSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create sink file: %w", err)
	}
	return &FileSink{file: f, w: bufio.NewWriter(f)}, nil
}

// FileOpener returns a SinkOpener for the file at path.
func FileOpener(path string) SinkOpener {
	return func() (Sink, error) {
		return OpenFile(path)
	}
}

// Append writes line followed by a newline.
func (s *FileSink) Append(line string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSinkClosed
	}
	if _, err := s.w.WriteString(line + "\n"); err != nil {
		return err
	}
	return s.w.Flush()
}

// Close flushes buffered lines and closes the file. Closing twice is a no-op.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return multierr.Append(s.w.Flush(), s.file.Close())
}
