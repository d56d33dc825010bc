package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Nauj93x/MoniSenso/internal/domain/collector"
	"github.com/Nauj93x/MoniSenso/internal/domain/consumer"
	"github.com/Nauj93x/MoniSenso/internal/domain/queue"
	"github.com/Nauj93x/MoniSenso/internal/domain/reading"
	"github.com/Nauj93x/MoniSenso/internal/infrastructure/config"
	"github.com/Nauj93x/MoniSenso/internal/infrastructure/fifo"
	"github.com/Nauj93x/MoniSenso/internal/infrastructure/logging"
	"github.com/Nauj93x/MoniSenso/internal/infrastructure/monitoring"
	"github.com/Nauj93x/MoniSenso/internal/infrastructure/server"
	"github.com/Nauj93x/MoniSenso/internal/shared/id"
)

const shutdownTimeout = 5 * time.Second

// QueueStatus is the live fill level of one queue.
type QueueStatus struct {
	Depth    int `json:"depth"`
	Capacity int `json:"capacity"`
}

// Status is the live view served on the ops /status endpoint.
type Status struct {
	RunID     string                 `json:"run_id"`
	StartedAt time.Time              `json:"started_at"`
	Collector string                 `json:"collector"`
	Queues    map[string]QueueStatus `json:"queues"`
	Metrics   monitoring.Snapshot    `json:"metrics"`
}

// Coordinator wires the collector, both consumers and their queues for one
// monitor run.
type Coordinator struct {
	cfg     config.Config
	logger  *logging.Logger
	metrics *monitoring.Metrics
	alerter consumer.Alerter

	mu        sync.RWMutex
	runID     id.RunID
	ph        *queue.Queue[reading.Item]
	temp      *queue.Queue[reading.Item]
	collector *collector.Collector
	summaries []consumer.Summary
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithAlerter routes alerts of both consumers to a.
func WithAlerter(a consumer.Alerter) Option {
	return func(c *Coordinator) { c.alerter = a }
}

// New creates a coordinator. cfg is expected to be validated.
func New(cfg config.Config, logger *logging.Logger, metrics *monitoring.Metrics, opts ...Option) *Coordinator {
	c := &Coordinator{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run executes one monitor session and blocks until every role has finished.
func (c *Coordinator) Run(ctx context.Context) error {
	runID := id.NewRunID()
	logger := c.logger.Role("pipeline", zap.Stringer("run_id", runID))

	logger.Info("Starting monitor",
		zap.String("pipe", c.cfg.Channel.Path),
		zap.Int("capacity", c.cfg.Queue.Capacity),
		zap.Duration("grace", c.cfg.Channel.Grace),
		zap.String("ph_file", c.cfg.Sinks.PH),
		zap.String("temperature_file", c.cfg.Sinks.Temperature),
	)

	// Only a pipe made by this run is removed when the run ends.
	var owned bool
	if c.cfg.Channel.Create {
		created, err := fifo.Create(c.cfg.Channel.Path)
		if err != nil {
			logger.Error("Failed to create channel", zap.Error(err))
			return err
		}
		owned = created
		if !created {
			logger.Info("Reusing existing channel", zap.String("pipe", c.cfg.Channel.Path))
		}
	}

	ph, temp, err := newQueues(c.cfg.Queue.Capacity)
	if err != nil {
		c.removeOwned(owned, logger)
		return err
	}
	c.metrics.RegisterQueue(reading.PHName, ph.Cap(), ph.Len)
	c.metrics.RegisterQueue(reading.TemperatureName, temp.Cap(), temp.Len)

	c.mu.Lock()
	c.runID = runID
	c.ph, c.temp = ph, temp
	c.summaries = nil
	c.mu.Unlock()

	if c.cfg.Ops.Address != "" {
		ops := server.New(c.metrics, func() any { return c.Status() }, logger.Role("ops"), c.cfg.Logging.Development)
		if err := ops.Start(c.cfg.Ops.Address); err != nil {
			logger.Warn("Ops server disabled", zap.Error(err))
		} else {
			defer func() {
				sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				if err := ops.Shutdown(sctx); err != nil {
					logger.Warn("Failed to stop ops server", zap.Error(err))
				}
			}()
		}
	}

	phClass := reading.PH(reading.NormalRange{Low: c.cfg.Thresholds.PHLow, High: c.cfg.Thresholds.PHHigh})
	tempClass := reading.Temperature(reading.NormalRange{Low: c.cfg.Thresholds.TemperatureLow, High: c.cfg.Thresholds.TemperatureHigh})

	var g errgroup.Group
	consumers := []*consumer.Consumer{
		c.launch(&g, phClass, ph, c.cfg.Sinks.PH, logger),
		c.launch(&g, tempClass, temp, c.cfg.Sinks.Temperature, logger),
	}

	logger.Info("Waiting for a sensor to connect", zap.String("pipe", c.cfg.Channel.Path))
	ch, err := fifo.Open(ctx, c.cfg.Channel.Path, owned)
	if err != nil {
		logger.Error("Failed to open channel", zap.Error(err))
		_ = ph.Put(reading.EndOfStream())
		_ = temp.Put(reading.EndOfStream())
		if werr := g.Wait(); werr != nil {
			logger.Warn("Consumer failed", zap.Error(werr))
		}
		c.removeOwned(owned, logger)
		c.collectSummaries(consumers)
		return err
	}
	logger.Info("Sensor connected")

	mode := reading.Lenient
	if c.cfg.Classifier.Strict {
		mode = reading.Strict
	}
	col := collector.New(ch, ph, temp,
		collector.WithGrace(c.cfg.Channel.Grace),
		collector.WithMode(mode),
		collector.WithLogger(logger.Role("collector")),
		collector.WithRecorder(c.metrics),
	)
	c.mu.Lock()
	c.collector = col
	c.mu.Unlock()

	// Cancellation takes the collector down its channel-loss path.
	collectorDone := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			logger.Info("Shutdown requested, releasing channel")
			_ = ch.Close()
		case <-collectorDone:
		}
	}()
	g.Go(func() error {
		defer close(collectorDone)
		return col.Run(ctx)
	})

	err = g.Wait()
	c.collectSummaries(consumers)
	if err != nil {
		logger.Error("Monitor finished with errors", zap.Error(err))
		return err
	}
	logger.Info("Monitor finished")
	return nil
}

func newQueues(capacity int) (ph, temp *queue.Queue[reading.Item], err error) {
	if ph, err = queue.New[reading.Item](capacity); err != nil {
		return nil, nil, err
	}
	if temp, err = queue.New[reading.Item](capacity); err != nil {
		return nil, nil, err
	}
	return ph, temp, nil
}

func (c *Coordinator) removeOwned(owned bool, logger *logging.Logger) {
	if !owned {
		return
	}
	if err := fifo.Remove(c.cfg.Channel.Path); err != nil {
		logger.Warn("Failed to remove channel", zap.Error(err))
	}
}

// launch starts the consumer of one class. A consumer that cannot open its
// sink closes its queue so the collector discards that class instead of
// blocking on it.
func (c *Coordinator) launch(g *errgroup.Group, class reading.Class, q *queue.Queue[reading.Item], path string, logger *logging.Logger) *consumer.Consumer {
	opts := []consumer.Option{
		consumer.WithLogger(logger.Role("consumer", zap.String("class", class.Name))),
		consumer.WithRecorder(c.metrics),
	}
	if c.alerter != nil {
		opts = append(opts, consumer.WithAlerter(c.alerter))
	}
	cons := consumer.New(class, q, consumer.FileOpener(path), opts...)

	g.Go(func() error {
		err := cons.Run()
		if err != nil {
			q.Close()
		}
		return err
	})
	return cons
}

func (c *Coordinator) collectSummaries(consumers []*consumer.Consumer) {
	summaries := make([]consumer.Summary, 0, len(consumers))
	for _, cons := range consumers {
		summaries = append(summaries, cons.Summary())
	}
	c.mu.Lock()
	c.summaries = summaries
	c.mu.Unlock()
}

// Summaries returns the consumer statistics of the last finished run.
func (c *Coordinator) Summaries() []consumer.Summary {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]consumer.Summary(nil), c.summaries...)
}

// Status reports the live state of the current run.
func (c *Coordinator) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Status{
		RunID:     c.runID.String(),
		Collector: "waiting",
		Queues:    map[string]QueueStatus{},
		Metrics:   c.metrics.Snapshot(),
	}
	if started, err := id.Started(s.RunID); err == nil {
		s.StartedAt = started
	}
	if c.collector != nil {
		s.Collector = c.collector.State().String()
	}
	if c.ph != nil {
		s.Queues[reading.PHName] = QueueStatus{Depth: c.ph.Len(), Capacity: c.ph.Cap()}
	}
	if c.temp != nil {
		s.Queues[reading.TemperatureName] = QueueStatus{Depth: c.temp.Len(), Capacity: c.temp.Cap()}
	}
	return s
}

// IsShutdown reports whether err only reflects a requested shutdown.
func IsShutdown(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
