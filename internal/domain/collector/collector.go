// Package collector reads tokens from the inbound channel, classifies them and
// routes each one into the pH or temperature queue.
//
// State machine (no way back to Running):
//
//	Running -> Draining -> Terminating -> Stopped
//
// Losing the channel (end of stream or a read error) starts Draining: the
// collector waits a grace period, then sends end-of-stream to the pH queue
// and the temperature queue, in that order, and releases the channel.
package collector

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/Nauj93x/MoniSenso/internal/domain/reading"
	"github.com/Nauj93x/MoniSenso/internal/infrastructure/fifo"
	"github.com/Nauj93x/MoniSenso/internal/infrastructure/logging"
)

// DefaultGrace is how long the collector waits after losing the channel.
const DefaultGrace = 10 * time.Second

// Discard reasons.
const (
	ReasonInvalid  = "invalid"
	ReasonNegative = "negative"
	ReasonClosed   = "closed"
)

// State is a collector lifecycle stage.
type State int32

const (
	Running State = iota
	Draining
	Terminating
	Stopped
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Draining:
		return "draining"
	case Terminating:
		return "terminating"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Enqueuer accepts queue items. Put blocks while the queue is full.
type Enqueuer interface {
	Put(item reading.Item) error
}

// Recorder receives collector metrics.
type Recorder interface {
	RecordDiscard(reason string)
	SetCollectorState(state int)
}

type nopRecorder struct{}

func (nopRecorder) RecordDiscard(string)  {}
func (nopRecorder) SetCollectorState(int) {}

// Collector is the single producer feeding both queues.
type Collector struct {
	in       io.ReadCloser
	ph       Enqueuer
	temp     Enqueuer
	grace    time.Duration
	mode     reading.Mode
	logger   *logging.Logger
	recorder Recorder
	state    atomic.Int32

	// afterLF is set when the last terminator was a line feed.
	afterLF bool
}

// Option configures a Collector.
type Option func(*Collector)

// WithGrace sets the wait between losing the channel and ending the streams.
func WithGrace(d time.Duration) Option {
	return func(c *Collector) { c.grace = d }
}

// WithMode sets float classification strictness.
func WithMode(m reading.Mode) Option {
	return func(c *Collector) { c.mode = m }
}

// WithLogger sets the collector logger. The default discards everything.
func WithLogger(l *logging.Logger) Option {
	return func(c *Collector) { c.logger = l }
}

// WithRecorder reports discards and state changes to r.
func WithRecorder(r Recorder) Option {
	return func(c *Collector) { c.recorder = r }
}

// New creates a collector reading from in.
func New(in io.ReadCloser, ph, temp Enqueuer, opts ...Option) *Collector {
	c := &Collector{
		in:       in,
		ph:       ph,
		temp:     temp,
		grace:    DefaultGrace,
		mode:     reading.Lenient,
		logger:   logging.NewNop(),
		recorder: nopRecorder{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current lifecycle stage.
func (c *Collector) State() State {
	return State(c.state.Load())
}

func (c *Collector) setState(s State) {
	c.state.Store(int32(s))
	c.recorder.SetCollectorState(int(s))
	c.logger.Debug("Collector state changed", zap.Stringer("state", s))
}

// Run reads until the channel is lost, then shuts both queues down. It returns
// only the error from releasing the channel.
func (c *Collector) Run(ctx context.Context) error {
	c.setState(Running)
	c.logger.Info("Collector started", zap.Duration("grace", c.grace), zap.Stringer("mode", c.mode))

	buf := make([]byte, fifo.MaxToken)
	var pending []byte
	for {
		n, err := c.in.Read(buf)
		if n > 0 {
			pending = c.consume(pending, buf[:n])
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, os.ErrClosed) {
				c.logger.Warn("Channel read failed", zap.Error(err))
			}
			break
		}
		if n == 0 {
			break
		}
	}
	if len(pending) > 0 {
		c.dispatch(string(pending))
	}

	return c.shutdown(ctx)
}

// consume frames chunk into tokens and returns the unterminated remainder.
// A chunk without any terminator is a whole token. A NUL right after a line
// feed closes the same line and yields no token.
func (c *Collector) consume(pending, chunk []byte) []byte {
	if bytes.IndexFunc(chunk, isTerminator) < 0 {
		c.afterLF = false
		c.dispatch(string(pending) + string(chunk))
		return pending[:0]
	}

	data := append(pending, chunk...)
	for {
		i := bytes.IndexFunc(data, isTerminator)
		if i < 0 {
			break
		}
		if !(i == 0 && data[0] == 0 && c.afterLF) {
			c.dispatch(string(data[:i]))
		}
		c.afterLF = data[i] == '\n'
		data = data[i+1:]
	}
	return append([]byte(nil), data...)
}

func isTerminator(r rune) bool {
	return r == 0 || r == '\n'
}

// dispatch classifies one token and routes it.
func (c *Collector) dispatch(token string) {
	r := reading.Classify(token, c.mode)
	if err := reading.Routable(r); err != nil {
		reason := ReasonInvalid
		if errors.Is(err, reading.ErrNegative) {
			reason = ReasonNegative
		}
		c.discard(r.Token, reason)
		return
	}

	class, _ := reading.ClassName(r.Kind)
	q := c.ph
	if class == reading.TemperatureName {
		q = c.temp
	}
	if err := q.Put(reading.Of(r)); err != nil {
		c.discard(r.Token, ReasonClosed)
		return
	}
	c.logger.Debug("Reading routed", zap.String("token", r.Token), zap.String("class", class))
}

func (c *Collector) discard(token, reason string) {
	c.recorder.RecordDiscard(reason)
	c.logger.Warn("Reading discarded", zap.String("token", token), zap.String("reason", reason))
}

func (c *Collector) shutdown(ctx context.Context) error {
	c.setState(Draining)
	c.logger.Info("Channel lost, waiting before shutdown", zap.Duration("grace", c.grace))

	if c.grace > 0 {
		timer := time.NewTimer(c.grace)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			c.logger.Info("Grace period cut short", zap.Error(ctx.Err()))
		}
	}

	c.setState(Terminating)
	c.endStream(reading.PHName, c.ph)
	c.endStream(reading.TemperatureName, c.temp)

	var err error
	if cerr := c.in.Close(); cerr != nil {
		err = fmt.Errorf("failed to release channel: %w", cerr)
		c.logger.Error("Failed to release channel", zap.Error(cerr))
	}

	c.setState(Stopped)
	c.logger.Info("Collector stopped")
	return err
}

func (c *Collector) endStream(class string, q Enqueuer) {
	if err := q.Put(reading.EndOfStream()); err != nil {
		c.logger.Warn("Queue closed before end of stream", zap.String("class", class), zap.Error(err))
	}
}
