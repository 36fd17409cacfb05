package trace

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestEstimateSizePrimitives(t *testing.T) {
	if got := EstimateSize(nil); got != 0 {
		t.Errorf("nil = %d, want 0", got)
	}
	if got := EstimateSize("hello"); got != 5 {
		t.Errorf("string = %d, want 5", got)
	}
	if got := EstimateSize([]byte{1, 2, 3}); got != 3 {
		t.Errorf("bytes = %d, want 3", got)
	}
	if got := EstimateSize(true); got != 4 {
		t.Errorf("bool = %d, want 4", got)
	}
	if got := EstimateSize(12345); got != 8 {
		t.Errorf("int = %d, want 8", got)
	}
	if got := EstimateSize(3.14); got != 8 {
		t.Errorf("float = %d, want 8", got)
	}
}

func TestEstimateSizeSmallContainersExact(t *testing.T) {
	// ["a","b"] serializes to 9 bytes
	if got := EstimateSize([]string{"a", "b"}); got != 9 {
		t.Errorf("small slice = %d, want 9", got)
	}

	if got := EstimateSize(map[string]int{}); got != 2 {
		t.Errorf("empty map = %d, want 2", got)
	}
	if got := EstimateSize([]int{}); got != 2 {
		t.Errorf("empty slice = %d, want 2", got)
	}
}

func TestEstimateSizeLargeContainerBounded(t *testing.T) {
	huge := make([]string, 10000)
	for i := range huge {
		huge[i] = strings.Repeat("x", 100)
	}

	start := time.Now()
	got := EstimateSize(huge)
	elapsed := time.Since(start)

	// Exact full serialization would be ~1MB; the estimate must land
	// in the right order of magnitude without serializing everything.
	if got < 500_000 || got > 2_000_000 {
		t.Errorf("estimate %d outside expected magnitude", got)
	}
	if elapsed > 100*time.Millisecond {
		t.Errorf("estimation took %v; sampling should be fast", elapsed)
	}
}

func TestEstimateSizeLargeMapBounded(t *testing.T) {
	huge := make(map[string]string, 10000)
	for i := 0; i < 10000; i++ {
		huge[strings.Repeat("k", 10)+string(rune(i))] = strings.Repeat("v", 50)
	}

	got := EstimateSize(huge)
	if got <= 0 {
		t.Errorf("estimate %d should be positive", got)
	}
}

func TestEstimateSizeCyclicDoesNotPanic(t *testing.T) {
	cyclic := make(map[string]any)
	cyclic["self"] = cyclic

	// Must return, must not panic; the value is unspecified.
	_ = EstimateSize(cyclic)

	bigCyclic := make(map[string]any)
	for i := 0; i < 50; i++ {
		bigCyclic[strings.Repeat("k", i+1)] = i
	}
	bigCyclic["self"] = bigCyclic
	_ = EstimateSize(bigCyclic)
}

func TestPreviewNone(t *testing.T) {
	p := NewPreview(map[string]any{"secret": "data"}, PayloadNone, 1024)

	if p.Mode != PayloadNone || p.Data != nil || p.Summary != "" {
		t.Errorf("none preview should be empty: %+v", p)
	}
}

func TestPreviewRedacted(t *testing.T) {
	p := NewPreview("hello world", PayloadRedacted, 1024)

	if p.Data != nil {
		t.Error("redacted preview must not carry raw data")
	}
	if p.EstimatedBytes != 11 {
		t.Errorf("EstimatedBytes = %d, want 11", p.EstimatedBytes)
	}
	if p.Summary == "" {
		t.Error("redacted preview should carry a summary")
	}
}

func TestPreviewFullUnderCap(t *testing.T) {
	value := map[string]any{"k": "v"}
	p := NewPreview(value, PayloadFull, 1024)

	if p.Mode != PayloadFull || p.Truncated {
		t.Errorf("small value should get a full preview: %+v", p)
	}
	if p.Data == nil {
		t.Error("full preview should carry the raw value")
	}
}

func TestPreviewFullOverCapDegrades(t *testing.T) {
	p := NewPreview(strings.Repeat("x", 5000), PayloadFull, 100)

	if p.Data != nil {
		t.Error("over-cap preview must not carry raw data")
	}
	if !p.Truncated {
		t.Error("over-cap preview must be marked truncated")
	}
	if p.Summary == "" {
		t.Error("over-cap preview should carry a summary")
	}
}

func TestParsePayloadMode(t *testing.T) {
	for _, ok := range []string{"none", "redacted", "full"} {
		if _, valid := ParsePayloadMode(ok); !valid {
			t.Errorf("%q should parse", ok)
		}
	}
	if _, valid := ParsePayloadMode("everything"); valid {
		t.Error("unknown mode should not parse")
	}
}

type codedError struct{ msg string }

func (e *codedError) Error() string { return e.msg }
func (e *codedError) Code() string  { return "E_CODED" }

func TestNormalizeError(t *testing.T) {
	if NormalizeError(nil) != nil {
		t.Error("nil should normalize to nil")
	}

	info := NormalizeError(errors.New("plain failure"))
	if info.Name != "Error" || info.Message != "plain failure" {
		t.Errorf("plain error normalized wrong: %+v", info)
	}

	info = NormalizeError(&codedError{msg: "coded failure"})
	if info.Name != "codedError" {
		t.Errorf("Name = %s, want codedError", info.Name)
	}
	if info.Code != "E_CODED" {
		t.Errorf("Code = %s, want E_CODED", info.Code)
	}

	info = NormalizeError("thrown string")
	if info.Message != "thrown string" {
		t.Errorf("string normalized wrong: %+v", info)
	}

	info = NormalizeError(42)
	if info.Message != "42" {
		t.Errorf("arbitrary value normalized wrong: %+v", info)
	}

	passthrough := &ErrorInfo{Name: "Custom", Message: "already normalized"}
	if NormalizeError(passthrough) != passthrough {
		t.Error("already-normalized errors should pass through")
	}
}
