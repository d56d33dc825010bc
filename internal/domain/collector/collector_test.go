package collector

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nauj93x/MoniSenso/internal/domain/queue"
	"github.com/Nauj93x/MoniSenso/internal/domain/reading"
)

// chunkReader returns one chunk per Read, then err.
type chunkReader struct {
	mu     sync.Mutex
	chunks []string
	err    error
	closed bool
}

func (r *chunkReader) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.chunks) == 0 {
		return 0, r.err
	}
	n := copy(p, r.chunks[0])
	r.chunks = r.chunks[1:]
	return n, nil
}

func (r *chunkReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *chunkReader) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

type fakeRecorder struct {
	mu        sync.Mutex
	discarded map[string]int
	states    []int
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{discarded: map[string]int{}}
}

func (f *fakeRecorder) RecordDiscard(reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.discarded[reason]++
}

func (f *fakeRecorder) SetCollectorState(state int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states = append(f.states, state)
}

func newQueues(t *testing.T, capacity int) (*queue.Queue[reading.Item], *queue.Queue[reading.Item]) {
	t.Helper()
	ph, err := queue.New[reading.Item](capacity)
	require.NoError(t, err)
	temp, err := queue.New[reading.Item](capacity)
	require.NoError(t, err)
	return ph, temp
}

// drain takes until end of stream and returns the tokens seen.
func drain(t *testing.T, q *queue.Queue[reading.Item]) []string {
	t.Helper()
	var tokens []string
	for {
		item, err := q.Take()
		require.NoError(t, err)
		if item.IsEnd() {
			return tokens
		}
		tokens = append(tokens, item.Reading().Token)
	}
}

func TestRunRoutesByKind(t *testing.T) {
	ph, temp := newQueues(t, 10)
	in := &chunkReader{
		chunks: []string{"7.0\x00", "25\x00", "9.5\x00", "-3\x00", "abc\x00", "-0.5\x00"},
		err:    io.EOF,
	}
	rec := newFakeRecorder()

	c := New(in, ph, temp, WithGrace(0), WithRecorder(rec))
	require.NoError(t, c.Run(context.Background()))

	assert.Equal(t, []string{"7.0", "9.5"}, drain(t, ph))
	assert.Equal(t, []string{"25"}, drain(t, temp))

	assert.Equal(t, 2, rec.discarded[ReasonNegative])
	assert.Equal(t, 1, rec.discarded[ReasonInvalid])
	assert.Equal(t, []int{int(Running), int(Draining), int(Terminating), int(Stopped)}, rec.states)

	assert.Equal(t, Stopped, c.State())
	assert.True(t, in.isClosed(), "channel is released")
}

func TestFraming(t *testing.T) {
	tests := []struct {
		name   string
		chunks []string
		ph     []string
		temp   []string
	}{
		{
			name:   "one read is one token",
			chunks: []string{"7.5", "30"},
			ph:     []string{"7.5"},
			temp:   []string{"30"},
		},
		{
			name:   "several tokens in one read",
			chunks: []string{"6.5\x0021\x00", "22\n7.1\n"},
			ph:     []string{"6.5", "7.1"},
			temp:   []string{"21", "22"},
		},
		{
			name:   "remainder carried to next read",
			chunks: []string{"6.5\x007", ".25\x00"},
			ph:     []string{"6.5", "7.25"},
		},
		{
			name:   "remainder flushed at end of stream",
			chunks: []string{"7\x0031"},
			temp:   []string{"7", "31"},
		},
		{
			name:   "line feed then NUL ends one token",
			chunks: []string{"22\n\x00", "23\n", "\x00 24 \x00"},
			temp:   []string{"22", "23", "24"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ph, temp := newQueues(t, 10)
			rec := newFakeRecorder()
			in := &chunkReader{chunks: tt.chunks, err: io.EOF}

			require.NoError(t, New(in, ph, temp, WithGrace(0), WithRecorder(rec)).Run(context.Background()))

			assert.Equal(t, tt.ph, drain(t, ph))
			assert.Equal(t, tt.temp, drain(t, temp))
			assert.Empty(t, rec.discarded)
		})
	}
}

func TestBlankTokensDiscarded(t *testing.T) {
	ph, temp := newQueues(t, 10)
	rec := newFakeRecorder()
	in := &chunkReader{chunks: []string{"\x00", "   \x00", "\n\n", "7.0\x00"}, err: io.EOF}

	require.NoError(t, New(in, ph, temp, WithGrace(0), WithRecorder(rec)).Run(context.Background()))

	assert.Equal(t, []string{"7.0"}, drain(t, ph))
	assert.Empty(t, drain(t, temp))
	assert.Equal(t, 4, rec.discarded[ReasonInvalid])
}

func TestStrictMode(t *testing.T) {
	ph, temp := newQueues(t, 10)
	rec := newFakeRecorder()
	in := &chunkReader{chunks: []string{"7.2e2\x00", "7.2\x00"}, err: io.EOF}

	c := New(in, ph, temp, WithGrace(0), WithMode(reading.Strict), WithRecorder(rec))
	require.NoError(t, c.Run(context.Background()))

	assert.Equal(t, []string{"7.2"}, drain(t, ph))
	assert.Empty(t, drain(t, temp))
	assert.Equal(t, 1, rec.discarded[ReasonInvalid])
}

func TestReadErrorStartsShutdown(t *testing.T) {
	ph, temp := newQueues(t, 10)
	in := &chunkReader{chunks: []string{"7.0\x00"}, err: errors.New("broken pipe")}

	c := New(in, ph, temp, WithGrace(0))
	require.NoError(t, c.Run(context.Background()))

	assert.Equal(t, []string{"7.0"}, drain(t, ph))
	assert.Empty(t, drain(t, temp))
	assert.Equal(t, Stopped, c.State())
}

func TestGraceWait(t *testing.T) {
	ph, temp := newQueues(t, 10)
	in := &chunkReader{err: io.EOF}
	c := New(in, ph, temp, WithGrace(300*time.Millisecond))

	done := make(chan error, 1)
	go func() { done <- c.Run(context.Background()) }()

	assert.Eventually(t, func() bool { return c.State() == Draining }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, ph.Len(), "no end of stream during the grace period")
	assert.False(t, in.isClosed())

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("collector did not finish after the grace period")
	}
	assert.Equal(t, Stopped, c.State())
	assert.Empty(t, drain(t, ph))
	assert.Empty(t, drain(t, temp))
}

func TestCancelCutsGraceShort(t *testing.T) {
	ph, temp := newQueues(t, 10)
	in := &chunkReader{err: io.EOF}
	c := New(in, ph, temp, WithGrace(time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	assert.Eventually(t, func() bool { return c.State() == Draining }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("cancel did not cut the grace period short")
	}
	assert.Empty(t, drain(t, ph))
	assert.Empty(t, drain(t, temp))
}

func TestClosedQueueDiscards(t *testing.T) {
	ph, temp := newQueues(t, 10)
	ph.Close()
	rec := newFakeRecorder()
	in := &chunkReader{chunks: []string{"7.0\x00", "25\x00"}, err: io.EOF}

	require.NoError(t, New(in, ph, temp, WithGrace(0), WithRecorder(rec)).Run(context.Background()))

	assert.Equal(t, 1, rec.discarded[ReasonClosed])
	assert.Equal(t, []string{"25"}, drain(t, temp))
}

func TestBackpressure(t *testing.T) {
	ph, temp := newQueues(t, 1)
	in := &chunkReader{chunks: []string{"7.0\x00", "7.1\x00", "7.2\x00"}, err: io.EOF}
	c := New(in, ph, temp, WithGrace(0))

	done := make(chan error, 1)
	go func() { done <- c.Run(context.Background()) }()

	// the collector blocks on the second put until the consumer takes
	assert.Eventually(t, func() bool { return ph.Len() == 1 }, time.Second, 5*time.Millisecond)
	assert.Never(t, func() bool { return c.State() != Running }, 100*time.Millisecond, 10*time.Millisecond)

	tokens := make(chan []string, 1)
	go func() {
		var got []string
		for {
			item, err := ph.Take()
			if err != nil || item.IsEnd() {
				tokens <- got
				return
			}
			got = append(got, item.Reading().Token)
		}
	}()

	require.NoError(t, <-done)
	assert.Equal(t, []string{"7.0", "7.1", "7.2"}, <-tokens)
	assert.Empty(t, drain(t, temp))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "running", Running.String())
	assert.Equal(t, "draining", Draining.String())
	assert.Equal(t, "terminating", Terminating.String())
	assert.Equal(t, "stopped", Stopped.String())
	assert.Equal(t, "unknown", State(42).String())
}
