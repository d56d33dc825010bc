// Package consumer drains one reading queue into its sink, raising an alert
// for every value on or beyond the class's normal range.
//
// A consumer owns its sink for the whole run: it opens the sink before the
// first Take and closes it on end of stream. Write failures are counted and
// reported but never stop the drain, so the collector is not stalled by a
// broken sink.
package consumer

import (
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/Nauj93x/MoniSenso/internal/domain/reading"
	"github.com/Nauj93x/MoniSenso/internal/infrastructure/logging"
)

// Dequeuer yields queue items. Take blocks while the queue is empty.
type Dequeuer interface {
	Take() (reading.Item, error)
}

// Recorder receives consumer metrics.
type Recorder interface {
	RecordReading(class string)
	RecordAlert(class string)
	RecordSinkError(class string)
}

type nopRecorder struct{}

func (nopRecorder) RecordReading(string)   {}
func (nopRecorder) RecordAlert(string)     {}
func (nopRecorder) RecordSinkError(string) {}

// Summary describes one finished run.
type Summary struct {
	Class       string  `json:"class"`
	Count       int     `json:"count"`
	Alerts      int     `json:"alerts"`
	SinkErrors  int     `json:"sink_errors"`
	ParseErrors int     `json:"parse_errors"`
	Min         float64 `json:"min"`
	Max         float64 `json:"max"`
	Mean        float64 `json:"mean"`
	StdDev      float64 `json:"stddev"`
}

// Consumer drains the queue of one reading class.
type Consumer struct {
	class    reading.Class
	queue    Dequeuer
	open     SinkOpener
	alerter  Alerter
	recorder Recorder
	logger   *logging.Logger
	now      func() time.Time
	summary  Summary
}

// Option configures a Consumer.
type Option func(*Consumer)

// WithAlerter sends alerts to a instead of the log.
func WithAlerter(a Alerter) Option {
	return func(c *Consumer) { c.alerter = a }
}

// WithRecorder reports readings, alerts and sink errors to r.
func WithRecorder(r Recorder) Option {
	return func(c *Consumer) { c.recorder = r }
}

// WithLogger sets the consumer logger.
func WithLogger(l *logging.Logger) Option {
	return func(c *Consumer) { c.logger = l }
}

// WithClock replaces the timestamp source used for sink lines.
func WithClock(now func() time.Time) Option {
	return func(c *Consumer) { c.now = now }
}

// New creates a consumer for class reading from q. Alerts are logged unless
// another Alerter is given.
func New(class reading.Class, q Dequeuer, open SinkOpener, opts ...Option) *Consumer {
	c := &Consumer{
		class:    class,
		queue:    q,
		open:     open,
		recorder: nopRecorder{},
		logger:   logging.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.alerter == nil {
		c.alerter = NewLogAlerter(c.logger)
	}
	return c
}

// Class returns the class this consumer drains.
// Run opens the sink and drains the queue until end of stream.
func (c *Consumer) Run() error {
	sink, err := c.open()
	if err != nil {
		c.logger.Error("Failed to open sink", zap.String("class", c.class.Name), zap.Error(err))
		return fmt.Errorf("failed to open %s sink: %w", c.class.Name, err)
	}
	c.logger.Info("Consumer started", zap.String("class", c.class.Name), zap.Stringer("range", c.class.Range))

	var values []float64
	for {
		item, err := c.queue.Take()
		if err != nil {
			c.logger.Warn("Queue closed before end of stream", zap.String("class", c.class.Name), zap.Error(err))
			break
		}
		if item.IsEnd() {
			break
		}
		if v, ok := c.handle(sink, item.Reading()); ok {
			values = append(values, v)
		}
	}

	c.summarize(values)
	c.logger.Info("Consumer finished",
		zap.String("class", c.class.Name),
		zap.Int("count", c.summary.Count),
		zap.Int("alerts", c.summary.Alerts),
		zap.Int("sink_errors", c.summary.SinkErrors),
		zap.Float64("min", c.summary.Min),
		zap.Float64("max", c.summary.Max),
		zap.Float64("mean", c.summary.Mean),
		zap.Float64("stddev", c.summary.StdDev),
	)

	if err := sink.Close(); err != nil {
		c.logger.Error("Failed to close sink", zap.String("class", c.class.Name), zap.Error(err))
		return fmt.Errorf("failed to close %s sink: %w", c.class.Name, err)
	}
	return nil
}

// handle alerts on and records one reading. The line is written whether or
// not the value alerts.
func (c *Consumer) handle(sink Sink, r reading.Reading) (float64, bool) {
	v, err := c.class.Parse(r.Token)
	if err != nil {
		c.summary.ParseErrors++
		c.logger.Warn("Unparsable reading", zap.String("class", c.class.Name), zap.Error(err))
		return 0, false
	}

	at := c.now()
	if c.class.Range.Alerts(v) {
		c.summary.Alerts++
		c.recorder.RecordAlert(c.class.Name)
		c.alerter.Alert(Alert{
			Class: c.class.Name,
			Token: r.Token,
			Value: v,
			Range: c.class.Range,
			At:    at,
		})
	}

	if err := sink.Append(reading.FormatLine(r.Token, at)); err != nil {
		c.summary.SinkErrors++
		c.recorder.RecordSinkError(c.class.Name)
		c.logger.Error("Failed to write reading", zap.String("class", c.class.Name), zap.String("token", r.Token), zap.Error(err))
	} else {
		c.recorder.RecordReading(c.class.Name)
	}
	return v, true
}

func (c *Consumer) summarize(values []float64) {
	c.summary.Class = c.class.Name
	c.summary.Count = len(values)
	if len(values) == 0 {
		return
	}
	c.summary.Min = floats.Min(values)
	c.summary.Max = floats.Max(values)
	c.summary.Mean = stat.Mean(values, nil)
	if len(values) > 1 {
		c.summary.StdDev = stat.StdDev(values, nil)
	}
	if math.IsNaN(c.summary.StdDev) {
		c.summary.StdDev = 0
	}
}

// Summary returns the statistics of the finished run.
func (c *Consumer) Summary() Summary {
	return c.summary
}
