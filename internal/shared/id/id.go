// Package id provides centralized ID generation for the trace layer.
//
// This package offers type-safe ULID generation with:
//   - Lexicographic sortability: fragment IDs sort by capture time
//   - Prefixed types: type-specific prefixes for debugging (trc_*, spn_*, frg_*)
//   - Type safety: separate types prevent ID misuse
//   - Performance: ~2μs per ULID, safe for per-call generation
//
// Design Principles:
//   - ULIDs only: a single ID format across host and window processes
//   - K-sortable: timeline queries without extra timestamps
//   - Practical uniqueness: collision avoidance, not a global guarantee
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// ============================================================================
// Type-Safe ID Wrappers
// ============================================================================

// TraceID identifies one logical cross-process action
type TraceID string

// SpanID identifies one traced operation within a trace
type SpanID string

// FragmentID identifies one raw trace event record
type FragmentID string

// CorrelationID pairs a routed request with its response
type CorrelationID string

// WindowID identifies a UI window process
type WindowID string

// ============================================================================
// ID Prefixes (for debugging and type identification)
// ============================================================================

const (
	TracePrefix       = "trc"
	SpanPrefix        = "spn"
	FragmentPrefix    = "frg"
	CorrelationPrefix = "corr"
	WindowPrefix      = "win"
)

// ============================================================================
// ULID Generator
// ============================================================================

// Generator generates ULIDs with optional prefixes
type Generator struct {
	entropy   io.Reader
	entropyMu sync.Mutex // Protects entropy reader
}

var (
	// Default generator with cryptographically secure entropy
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

// NewGeneratorWithEntropy creates a generator with custom entropy source
// Useful for testing with deterministic entropy
func NewGeneratorWithEntropy(entropy io.Reader) *Generator {
	return &Generator{
		entropy: entropy,
	}
}

// Generate creates a new ULID
func (g *Generator) Generate() ulid.ULID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// GenerateString creates a new ULID as a string
func (g *Generator) GenerateString() string {
	return g.Generate().String()
}

// GenerateWithPrefix creates a prefixed ULID string
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.GenerateString())
}

// ============================================================================
// Typed ID Generators
// ============================================================================

// NewTraceID generates a new trace ID
func NewTraceID() TraceID {
	return TraceID(Default().GenerateWithPrefix(TracePrefix))
}

// NewSpanID generates a new span ID
func NewSpanID() SpanID {
	return SpanID(Default().GenerateWithPrefix(SpanPrefix))
}

// NewFragmentID generates a new fragment ID
func NewFragmentID() FragmentID {
	return FragmentID(Default().GenerateWithPrefix(FragmentPrefix))
}

// NewCorrelationID generates a new correlation ID
func NewCorrelationID() CorrelationID {
	return CorrelationID(Default().GenerateWithPrefix(CorrelationPrefix))
}

// NewWindowID generates a new window ID
func NewWindowID() WindowID {
	return WindowID(Default().GenerateWithPrefix(WindowPrefix))
}

// String methods for ID types
func (id TraceID) String() string       { return string(id) }
func (id SpanID) String() string        { return string(id) }
func (id FragmentID) String() string    { return string(id) }
func (id CorrelationID) String() string { return string(id) }
func (id WindowID) String() string      { return string(id) }

// IsValid checks if the ULID part of a prefixed ID parses
func IsValid(id string) bool {
	_, err := ulid.Parse(stripPrefix(id))
	return err == nil
}

// Timestamp extracts the embedded capture time from a prefixed ID
func Timestamp(id string) (time.Time, error) {
	parsed, err := ulid.Parse(stripPrefix(id))
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(parsed.Time()), nil
}

func stripPrefix(id string) string {
	for i := len(id) - 1; i >= 0; i-- {
		if id[i] == '_' {
			return id[i+1:]
		}
	}
	return id
}
