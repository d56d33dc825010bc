package id

import (
	"strings"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
)

func TestGenerate(t *testing.T) {
	gen := NewGenerator()

	id1 := gen.Generate()
	id2 := gen.Generate()

	if id1.String() == id2.String() {
		t.Error("Generated IDs should be unique")
	}
}

func TestGenerateWithPrefix(t *testing.T) {
	gen := NewGenerator()

	for _, prefix := range []string{RunPrefix, EmitterPrefix} {
		got := gen.GenerateWithPrefix(prefix)

		if !strings.HasPrefix(got, prefix+"_") {
			t.Errorf("ID should start with '%s_', got: %s", prefix, got)
		}

		parts := strings.Split(got, "_")
		if len(parts) != 2 {
			t.Fatalf("Prefixed ID should have format 'prefix_ulid', got: %s", got)
		}
		if _, err := ulid.Parse(parts[1]); err != nil {
			t.Errorf("ULID part should be valid: %s", parts[1])
		}
	}
}

func TestTypedIDGeneration(t *testing.T) {
	if run := NewRunID(); !strings.HasPrefix(run.String(), "run_") {
		t.Errorf("RunID should start with 'run_', got: %s", run)
	}
	if emit := NewEmitterID(); !strings.HasPrefix(emit.String(), "emit_") {
		t.Errorf("EmitterID should start with 'emit_', got: %s", emit)
	}
}

func TestStarted(t *testing.T) {
	before := time.Now().Add(-time.Second)
	run := NewRunID()

	started, err := Started(run.String())
	if err != nil {
		t.Fatalf("Started failed: %v", err)
	}
	if started.Before(before) || started.After(time.Now().Add(time.Second)) {
		t.Errorf("Started time %v out of range", started)
	}

	if _, err := Started("run_not-a-ulid"); err == nil {
		t.Error("Expected error for malformed ID")
	}
}
