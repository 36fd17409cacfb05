package id

import (
	"strings"
	"sync"
	"testing"
	"time"
)

func TestGenerate(t *testing.T) {
	gen := NewGenerator()

	id1 := gen.Generate()
	id2 := gen.Generate()

	if id1.String() == id2.String() {
		t.Error("Generated IDs should be unique")
	}
}

func TestGenerateString(t *testing.T) {
	gen := NewGenerator()

	id := gen.GenerateString()

	if len(id) != 26 {
		t.Errorf("ULID should be 26 characters, got %d", len(id))
	}
}

func TestGenerateWithPrefix(t *testing.T) {
	gen := NewGenerator()

	tests := []struct {
		prefix string
	}{
		{"trc"},
		{"spn"},
		{"corr"},
	}

	for _, tt := range tests {
		id := gen.GenerateWithPrefix(tt.prefix)

		if !strings.HasPrefix(id, tt.prefix+"_") {
			t.Errorf("ID should start with '%s_', got: %s", tt.prefix, id)
		}

		parts := strings.Split(id, "_")
		if len(parts) != 2 {
			t.Errorf("Prefixed ID should have format 'prefix_ulid', got: %s", id)
		}

		if !IsValid(parts[1]) {
			t.Errorf("ULID part should be valid: %s", parts[1])
		}
	}
}

func TestTypedIDGeneration(t *testing.T) {
	traceID := NewTraceID()
	spanID := NewSpanID()
	fragID := NewFragmentID()
	corrID := NewCorrelationID()

	if !strings.HasPrefix(string(traceID), "trc_") {
		t.Errorf("TraceID should start with 'trc_', got: %s", traceID)
	}

	if !strings.HasPrefix(string(spanID), "spn_") {
		t.Errorf("SpanID should start with 'spn_', got: %s", spanID)
	}

	if !strings.HasPrefix(string(fragID), "frg_") {
		t.Errorf("FragmentID should start with 'frg_', got: %s", fragID)
	}

	if !strings.HasPrefix(string(corrID), "corr_") {
		t.Errorf("CorrelationID should start with 'corr_', got: %s", corrID)
	}
}

func TestIsValid(t *testing.T) {
	gen := NewGenerator()

	if !IsValid(gen.GenerateString()) {
		t.Error("Generated ULID should be valid")
	}

	if !IsValid(gen.GenerateWithPrefix("trc")) {
		t.Error("Prefixed ID should be valid")
	}

	if IsValid("not-a-ulid") {
		t.Error("Garbage should not be valid")
	}
}

func TestTimestamp(t *testing.T) {
	before := time.Now().Add(-time.Second)
	id := NewFragmentID()
	after := time.Now().Add(time.Second)

	ts, err := Timestamp(string(id))
	if err != nil {
		t.Fatalf("Timestamp failed: %v", err)
	}

	if ts.Before(before) || ts.After(after) {
		t.Errorf("Embedded timestamp %v outside [%v, %v]", ts, before, after)
	}
}

func TestConcurrentGeneration(t *testing.T) {
	gen := NewGenerator()

	const n = 100
	ids := make([]string, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			ids[idx] = gen.GenerateString()
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool, n)
	for _, id := range ids {
		if seen[id] {
			t.Errorf("Duplicate ID generated: %s", id)
		}
		seen[id] = true
	}
}
