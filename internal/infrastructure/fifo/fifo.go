// Package fifo manages the named pipe that carries sensor tokens from the
// emitter to the monitor.
//
// The reader side blocks on open until a writer connects; Open makes that wait
// cancellable. The writer side opens non-blocking and fails with a "no reader"
// error until the monitor is listening, which the emitter turns into a retry.
package fifo

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"go.uber.org/multierr"
	"golang.org/x/sys/unix"
)

// Mode is the permission the monitor creates the pipe with.
const Mode = 0o666

// MaxToken is the largest token a single write may carry.
const MaxToken = 255

var ErrNotFIFO = errors.New("path exists and is not a named pipe")

// unblockInterval paces the writer-side opens used to release a cancelled Open.
const unblockInterval = 10 * time.Millisecond

// Create makes a named pipe at path. An existing pipe is reused, in which case
// created is false.
func Create(path string) (created bool, err error) {
	err = unix.Mkfifo(path, Mode)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, unix.EEXIST) {
		ok, statErr := IsFIFO(path)
		if statErr != nil {
			return false, fmt.Errorf("failed to inspect %s: %w", path, statErr)
		}
		if !ok {
			return false, fmt.Errorf("%w: %s", ErrNotFIFO, path)
		}
		return false, nil
	}
	return false, fmt.Errorf("failed to create pipe %s: %w", path, err)
}

// IsFIFO reports whether path is a named pipe.
func IsFIFO(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return false, err
	}
	return info.Mode()&fs.ModeNamedPipe != 0, nil
}

// Channel is the reader end of the pipe.
type Channel struct {
	path  string
	file  *os.File
	owned bool
}

// Open opens path for reading, waiting until a writer connects or ctx is done.
// An owned channel removes the pipe when closed.
func Open(ctx context.Context, path string, owned bool) (*Channel, error) {
	ok, err := IsFIFO(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open pipe %s: %w", path, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFIFO, path)
	}

	type result struct {
		file *os.File
		err  error
	}
	opened := make(chan result, 1)
	go func() {
		f, err := os.OpenFile(path, os.O_RDONLY, 0)
		opened <- result{file: f, err: err}
	}()

	select {
	case r := <-opened:
		if r.err != nil {
			return nil, fmt.Errorf("failed to open pipe %s: %w", path, r.err)
		}
		return &Channel{path: path, file: r.file, owned: owned}, nil
	case <-ctx.Done():
	}

	// The pending open only returns once a writer shows up, so become one.
	ticker := time.NewTicker(unblockInterval)
	defer ticker.Stop()
	for {
		w, err := OpenWriter(path)
		if err == nil {
			_ = w.Close()
		} else if errors.Is(err, fs.ErrNotExist) {
			// Unlinked while waiting: no writer can reach the pending open.
			go func() {
				if r := <-opened; r.file != nil {
					_ = r.file.Close()
				}
			}()
			return nil, ctx.Err()
		}
		select {
		case r := <-opened:
			if r.file != nil {
				_ = r.file.Close()
			}
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Read reads the next chunk written to the pipe.
func (c *Channel) Read(p []byte) (int, error) {
	return c.file.Read(p)
}

// Close releases the descriptor and, when owned, removes the pipe.
func (c *Channel) Close() error {
	err := c.file.Close()
	if errors.Is(err, os.ErrClosed) {
		err = nil
	}
	if c.owned {
		err = multierr.Append(err, Remove(c.path))
	}
	return err
}

// Remove deletes the pipe at path. A missing path is not an error.
func Remove(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// OpenWriter opens the writer end without waiting for a reader.
func OpenWriter(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_WRONLY|unix.O_NONBLOCK, 0)
}

// IsNoReader reports whether err means nobody has the pipe open for reading.
func IsNoReader(err error) bool {
	return errors.Is(err, unix.ENXIO)
}
