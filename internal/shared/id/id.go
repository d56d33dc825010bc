// Package id provides ULID generation for pipeline runs.
//
// IDs are lexicographically sortable and carry a type prefix so log lines from
// the monitor and the sensor emitter can be told apart at a glance:
//   - run_*: one monitor pipeline run
//   - emit_*: one sensor emitter session
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// RunID identifies one monitor pipeline run
type RunID string

// EmitterID identifies one sensor emitter session
type EmitterID string

const (
	RunPrefix     = "run"
	EmitterPrefix = "emit"
)

// Generator generates ULIDs with optional prefixes
type Generator struct {
	entropy   io.Reader
	entropyMu sync.Mutex
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the singleton generator instance
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a new ULID generator
func NewGenerator() *Generator {
	return &Generator{
		entropy: rand.Reader,
	}
}

// Generate creates a new ULID
func (g *Generator) Generate() ulid.ULID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// GenerateWithPrefix creates a prefixed ULID string
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.Generate().String())
}

// NewRunID generates a new run ID
func NewRunID() RunID {
	return RunID(Default().GenerateWithPrefix(RunPrefix))
}

// NewEmitterID generates a new emitter ID
func NewEmitterID() EmitterID {
	return EmitterID(Default().GenerateWithPrefix(EmitterPrefix))
}

func (id RunID) String() string     { return string(id) }
func (id EmitterID) String() string { return string(id) }

// Started returns the time encoded in a prefixed ID.
func Started(prefixed string) (time.Time, error) {
	_, raw, ok := strings.Cut(prefixed, "_")
	if !ok {
		raw = prefixed
	}
	parsed, err := ulid.Parse(raw)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(parsed.Time()), nil
}
