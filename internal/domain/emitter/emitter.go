// Package emitter replays a sensor data file into the monitor's named pipe,
// one token per line.
//
// The emitter waits for the monitor: while nobody reads the pipe, opening it
// fails and is retried after a fixed backoff. Once connected every line is
// written followed by a NUL terminator, paced at one line per interval.
package emitter

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/Nauj93x/MoniSenso/internal/domain/reading"
	"github.com/Nauj93x/MoniSenso/internal/infrastructure/config"
	"github.com/Nauj93x/MoniSenso/internal/infrastructure/fifo"
	"github.com/Nauj93x/MoniSenso/internal/infrastructure/logging"
	"github.com/Nauj93x/MoniSenso/internal/shared/id"
)

var (
	ErrNoData  = errors.New("no data file matches")
	ErrNotText = errors.New("data file is not text")
)

// Emitter sends the readings of one sensor.
type Emitter struct {
	cfg    config.Sensor
	id     id.EmitterID
	logger *logging.Logger
	sent   int
}

// New creates an emitter. cfg is expected to be validated.
func New(cfg config.Sensor, logger *logging.Logger) *Emitter {
	emitterID := id.NewEmitterID()
	return &Emitter{
		cfg:    cfg,
		id:     emitterID,
		logger: logger.Role("emitter", zap.Stringer("emitter_id", emitterID)),
	}
}

// Sent returns the number of lines written so far.
func (e *Emitter) Sent() int {
	return e.sent
}

// Run sends every line of the data files, then closes the pipe.
func (e *Emitter) Run(ctx context.Context) error {
	files, err := Resolve(e.cfg.File)
	if err != nil {
		return err
	}
	for _, f := range files {
		if err := CheckText(f); err != nil {
			return err
		}
	}

	w, err := e.connect(ctx)
	if err != nil {
		return err
	}
	defer w.Close()

	var limiter *rate.Limiter
	if e.cfg.Interval > 0 {
		limiter = rate.NewLimiter(rate.Every(e.cfg.Interval), 1)
	}

	for _, f := range files {
		if err := e.send(ctx, w, f, limiter); err != nil {
			return err
		}
	}

	e.logger.Info("All readings sent", zap.Int("sent", e.sent), zap.Int("files", len(files)))
	return nil
}

// connect opens the pipe, retrying while the monitor is not listening.
func (e *Emitter) connect(ctx context.Context) (io.WriteCloser, error) {
	for {
		w, err := fifo.OpenWriter(e.cfg.Pipe)
		if err == nil {
			e.logger.Info("Connected to pipe", zap.String("pipe", e.cfg.Pipe))
			return w, nil
		}
		e.logger.Warn("Pipe not ready, retrying",
			zap.String("pipe", e.cfg.Pipe),
			zap.Bool("no_reader", fifo.IsNoReader(err)),
			zap.Duration("backoff", e.cfg.Retry),
			zap.Error(err),
		)

		timer := time.NewTimer(e.cfg.Retry)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

func (e *Emitter) send(ctx context.Context, w io.Writer, path string, limiter *rate.Limiter) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open data file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return err
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}

		e.checkKind(line)
		if len(line) >= fifo.MaxToken {
			e.logger.Warn("Reading longer than a pipe token", zap.Int("bytes", len(line)), zap.Int("max", fifo.MaxToken-1))
		}
		if _, err := w.Write([]byte(line + "\x00")); err != nil {
			return fmt.Errorf("failed to write to pipe: %w", err)
		}
		e.sent++
		e.logger.Info("Reading sent", zap.String("reading", line))
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read data file %s: %w", path, err)
	}
	return nil
}

// checkKind warns about lines the monitor will not route to this sensor's
// class. They are still sent.
func (e *Emitter) checkKind(line string) {
	if e.cfg.Kind == "" {
		return
	}
	got := reading.Classify(line, reading.Lenient).Kind
	if class, _ := reading.ClassName(got); class != e.cfg.Kind {
		e.logger.Warn("Reading does not match sensor kind",
			zap.String("reading", line),
			zap.String("sensor", e.cfg.Kind),
			zap.Stringer("kind", got),
		)
	}
}

// Resolve expands pattern into data files in lexical order. A pattern
// without glob syntax must name an existing file.
func Resolve(pattern string) ([]string, error) {
	if !strings.ContainsAny(pattern, "*?[{") {
		if _, err := os.Stat(pattern); err != nil {
			return nil, fmt.Errorf("failed to open data file: %w", err)
		}
		return []string{pattern}, nil
	}

	matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("invalid data file pattern %q: %w", pattern, err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoData, pattern)
	}
	sort.Strings(matches)
	return matches, nil
}

// CheckText rejects files whose content is not text. Empty files pass.
func CheckText(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to open data file: %w", err)
	}
	if info.Size() == 0 {
		return nil
	}

	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return fmt.Errorf("mime detection failed: %w", err)
	}
	if !isText(mtype) {
		return fmt.Errorf("%w: %s is %s", ErrNotText, path, mtype.String())
	}
	return nil
}

func isText(mtype *mimetype.MIME) bool {
	for m := mtype; m != nil; m = m.Parent() {
		if strings.HasPrefix(m.String(), "text/") {
			return true
		}
	}
	return mtype.Is("application/json") || mtype.Is("application/x-ndjson")
}
