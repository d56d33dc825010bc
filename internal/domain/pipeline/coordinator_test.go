package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nauj93x/MoniSenso/internal/domain/queue"
	"github.com/Nauj93x/MoniSenso/internal/domain/reading"
	"github.com/Nauj93x/MoniSenso/internal/infrastructure/config"
	"github.com/Nauj93x/MoniSenso/internal/infrastructure/fifo"
	"github.com/Nauj93x/MoniSenso/internal/infrastructure/logging"
	"github.com/Nauj93x/MoniSenso/internal/infrastructure/monitoring"
)

var sinkLine = regexp.MustCompile(`^(\S+) \d{2}:\d{2}:\d{2}$`)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Channel.Path = filepath.Join(dir, "sensor.pipe")
	cfg.Channel.Grace = 50 * time.Millisecond
	cfg.Sinks.PH = filepath.Join(dir, "pH-data.txt")
	cfg.Sinks.Temperature = filepath.Join(dir, "temperature-data.txt")
	return *cfg
}

func newCoordinator(t *testing.T, cfg config.Config) (*Coordinator, *monitoring.Metrics) {
	t.Helper()
	m := monitoring.NewMetrics()
	t.Cleanup(m.Close)
	return New(cfg, logging.NewNop(), m), m
}

func start(ctx context.Context, c *Coordinator) <-chan error {
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()
	return done
}

// connect opens the writer end once the monitor is listening.
func connect(t *testing.T, path string) *os.File {
	t.Helper()
	var w *os.File
	require.Eventually(t, func() bool {
		f, err := fifo.OpenWriter(path)
		if err != nil {
			return false
		}
		w = f
		return true
	}, 5*time.Second, 5*time.Millisecond)
	return w
}

func send(t *testing.T, w *os.File, tokens ...string) {
	t.Helper()
	for _, tok := range tokens {
		_, err := w.Write([]byte(tok + "\x00"))
		require.NoError(t, err)
	}
}

func wait(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(10 * time.Second):
		t.Fatal("monitor did not finish")
		return nil
	}
}

// sinkTokens returns the tokens of each sink line, checking the line format.
func sinkTokens(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var tokens []string
	for _, line := range strings.Split(strings.TrimSuffix(string(data), "\n"), "\n") {
		if line == "" {
			continue
		}
		m := sinkLine.FindStringSubmatch(line)
		require.NotNil(t, m, "malformed sink line %q", line)
		tokens = append(tokens, m[1])
	}
	return tokens
}

func TestEndToEnd(t *testing.T) {
	cfg := testConfig(t)
	c, m := newCoordinator(t, cfg)
	before := time.Now().Add(-time.Second)
	done := start(context.Background(), c)

	w := connect(t, cfg.Channel.Path)
	send(t, w, "7.0", "25", "9.5", "-3", "abc")
	require.NoError(t, w.Close())

	require.NoError(t, wait(t, done))

	assert.Equal(t, []string{"7.0", "9.5"}, sinkTokens(t, cfg.Sinks.PH))
	assert.Equal(t, []string{"25"}, sinkTokens(t, cfg.Sinks.Temperature))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ReadingsTotal.WithLabelValues(reading.PHName)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ReadingsTotal.WithLabelValues(reading.TemperatureName)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AlertsTotal.WithLabelValues(reading.PHName)))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.AlertsTotal.WithLabelValues(reading.TemperatureName)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DiscardedTotal.WithLabelValues("negative")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DiscardedTotal.WithLabelValues("invalid")))

	_, err := os.Stat(cfg.Channel.Path)
	assert.True(t, os.IsNotExist(err), "monitor removes the pipe it created")

	summaries := c.Summaries()
	require.Len(t, summaries, 2)
	assert.Equal(t, reading.PHName, summaries[0].Class)
	assert.Equal(t, 2, summaries[0].Count)
	assert.Equal(t, 1, summaries[0].Alerts)
	assert.Equal(t, 1, summaries[1].Count)

	status := c.Status()
	assert.Equal(t, "stopped", status.Collector)
	assert.True(t, strings.HasPrefix(status.RunID, "run_"))
	assert.True(t, status.StartedAt.After(before), "start time comes from the run ID")
	assert.False(t, status.StartedAt.After(time.Now()))
}

func TestBackpressureKeepsEveryReading(t *testing.T) {
	cfg := testConfig(t)
	cfg.Queue.Capacity = 1
	c, _ := newCoordinator(t, cfg)
	done := start(context.Background(), c)

	var ph, temp []string
	w := connect(t, cfg.Channel.Path)
	for i := 0; i < 50; i++ {
		p := fmt.Sprintf("7.%d", i+1)
		tc := fmt.Sprintf("%d", 21+i%10)
		send(t, w, p, tc)
		ph = append(ph, p)
		temp = append(temp, tc)
	}
	require.NoError(t, w.Close())
	require.NoError(t, wait(t, done))

	assert.Equal(t, ph, sinkTokens(t, cfg.Sinks.PH))
	assert.Equal(t, temp, sinkTokens(t, cfg.Sinks.Temperature))
}

func TestConsumerSetupFailure(t *testing.T) {
	cfg := testConfig(t)
	cfg.Sinks.PH = filepath.Join(t.TempDir(), "missing", "pH-data.txt")
	c, m := newCoordinator(t, cfg)
	done := start(context.Background(), c)

	w := connect(t, cfg.Channel.Path)
	send(t, w, "7.0", "25", "7.1", "26")
	require.NoError(t, w.Close())

	err := wait(t, done)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ph sink")

	assert.Equal(t, []string{"25", "26"}, sinkTokens(t, cfg.Sinks.Temperature))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.ReadingsTotal.WithLabelValues(reading.PHName)))
}

func TestCancelBeforeSensorConnects(t *testing.T) {
	cfg := testConfig(t)
	c, _ := newCoordinator(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := start(ctx, c)

	require.Eventually(t, func() bool {
		ok, err := fifo.IsFIFO(cfg.Channel.Path)
		return err == nil && ok
	}, 5*time.Second, 5*time.Millisecond)
	cancel()

	err := wait(t, done)
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, IsShutdown(err))

	_, statErr := os.Stat(cfg.Channel.Path)
	assert.True(t, os.IsNotExist(statErr))
	assert.Empty(t, sinkTokens(t, cfg.Sinks.PH))
	assert.Empty(t, sinkTokens(t, cfg.Sinks.Temperature))
}

func TestCancelWhileConnected(t *testing.T) {
	cfg := testConfig(t)
	cfg.Channel.Grace = time.Hour
	c, m := newCoordinator(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := start(ctx, c)

	w := connect(t, cfg.Channel.Path)
	defer w.Close()
	send(t, w, "7.0", "25")

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(m.ReadingsTotal.WithLabelValues(reading.TemperatureName)) == 1 &&
			testutil.ToFloat64(m.ReadingsTotal.WithLabelValues(reading.PHName)) == 1
	}, 5*time.Second, 5*time.Millisecond)

	status := c.Status()
	assert.Equal(t, "running", status.Collector)
	assert.Equal(t, QueueStatus{Depth: 0, Capacity: 10}, status.Queues[reading.PHName])

	cancel()
	require.NoError(t, wait(t, done))

	assert.Equal(t, []string{"7.0"}, sinkTokens(t, cfg.Sinks.PH))
	assert.Equal(t, []string{"25"}, sinkTokens(t, cfg.Sinks.Temperature))
}

func TestCreateFailure(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, os.WriteFile(cfg.Channel.Path, []byte("not a pipe"), 0o644))
	c, _ := newCoordinator(t, cfg)

	err := c.Run(context.Background())
	assert.ErrorIs(t, err, fifo.ErrNotFIFO)
}

func TestExistingPipeLeftInPlace(t *testing.T) {
	cfg := testConfig(t)
	created, err := fifo.Create(cfg.Channel.Path)
	require.NoError(t, err)
	require.True(t, created)

	c, _ := newCoordinator(t, cfg)
	done := start(context.Background(), c)

	w := connect(t, cfg.Channel.Path)
	send(t, w, "7.0")
	require.NoError(t, w.Close())
	require.NoError(t, wait(t, done))

	assert.Equal(t, []string{"7.0"}, sinkTokens(t, cfg.Sinks.PH))
	ok, err := fifo.IsFIFO(cfg.Channel.Path)
	require.NoError(t, err, "a pipe the monitor did not create is kept")
	assert.True(t, ok)
}

func TestQueueSetupFailureRemovesCreatedPipe(t *testing.T) {
	cfg := testConfig(t)
	cfg.Queue.Capacity = 0
	c, _ := newCoordinator(t, cfg)

	err := c.Run(context.Background())
	assert.ErrorIs(t, err, queue.ErrInvalidCapacity)

	_, statErr := os.Stat(cfg.Channel.Path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestOpsServer(t *testing.T) {
	cfg := testConfig(t)
	cfg.Ops.Address = "127.0.0.1:0"
	c, _ := newCoordinator(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := start(ctx, c)

	require.Eventually(t, func() bool {
		return c.Status().RunID != ""
	}, 5*time.Second, 5*time.Millisecond)
	cancel()
	assert.ErrorIs(t, wait(t, done), context.Canceled)
}
