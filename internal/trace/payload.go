package trace

import (
	"fmt"
	"reflect"

	"github.com/bytedance/sonic"
)

// sampleLimit bounds how many container entries estimation serializes.
// Larger containers are extrapolated from this sample.
const sampleLimit = 10

// PayloadMode selects how much payload data events carry.
type PayloadMode string

const (
	PayloadNone     PayloadMode = "none"
	PayloadRedacted PayloadMode = "redacted"
	PayloadFull     PayloadMode = "full"
)

// ParsePayloadMode validates a mode string from the control surface.
func ParsePayloadMode(s string) (PayloadMode, bool) {
	switch PayloadMode(s) {
	case PayloadNone, PayloadRedacted, PayloadFull:
		return PayloadMode(s), true
	}
	return "", false
}

// Preview is the bounded representation of a payload carried on events.
// Data is populated only in full mode and only under the byte cap.
type Preview struct {
	Mode           PayloadMode `json:"mode"`
	EstimatedBytes int         `json:"estimatedBytes,omitempty"`
	Summary        string      `json:"summary,omitempty"`
	Data           any         `json:"data,omitempty"`
	Truncated      bool        `json:"truncated,omitempty"`
}

// EstimateSize approximates the serialized size of v in bytes without
// ever fully serializing a large structure. Exact for primitives,
// strings, and binary buffers; exact for containers up to sampleLimit
// entries; extrapolated from a sample beyond that. Never panics:
// self-referential values degrade to a partial estimate, else 0.
func EstimateSize(v any) int {
	switch x := v.(type) {
	case nil:
		return 0
	case bool:
		return 4
	case int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return 8
	case string:
		return len(x)
	case []byte:
		return len(x)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		return estimateSequence(rv)
	case reflect.Map:
		return estimateMap(rv)
	case reflect.Ptr, reflect.Interface:
		if rv.IsNil() {
			return 0
		}
		return EstimateSize(rv.Elem().Interface())
	default:
		return encodedLen(v)
	}
}

func estimateSequence(rv reflect.Value) int {
	n := rv.Len()
	if n == 0 {
		return 2 // []
	}
	if n <= sampleLimit {
		if size := encodedLen(rv.Interface()); size > 0 {
			return size
		}
		// Cyclic somewhere inside: fall through to the per-entry path.
	}

	sampled := 0
	total := 0
	for i := 0; i < n && sampled < sampleLimit; i++ {
		total += encodedLen(rv.Index(i).Interface()) + 1
		sampled++
	}
	if sampled == 0 {
		return 0
	}
	return total / sampled * n
}

func estimateMap(rv reflect.Value) int {
	n := rv.Len()
	if n == 0 {
		return 2 // {}
	}
	if n <= sampleLimit {
		if size := encodedLen(rv.Interface()); size > 0 {
			return size
		}
	}

	sampled := 0
	total := 0
	iter := rv.MapRange()
	for iter.Next() && sampled < sampleLimit {
		total += encodedLen(iter.Key().Interface()) + encodedLen(iter.Value().Interface()) + 2
		sampled++
	}
	if sampled == 0 {
		return 0
	}
	return total / sampled * n
}

// encodedLen returns the exact JSON length of v, or 0 when v cannot be
// serialized (cycles, unsupported types). Callers treat 0 as "unknown".
func encodedLen(v any) (n int) {
	defer func() {
		if recover() != nil {
			n = 0
		}
	}()
	data, err := sonic.Marshal(v)
	if err != nil {
		return 0
	}
	return len(data)
}

// NewPreview builds the preview of v under the given mode and byte cap.
// Full mode degrades to an annotated redacted summary when the estimate
// exceeds maxBytes; that is a successful, documented outcome rather
// than an error.
func NewPreview(v any, mode PayloadMode, maxBytes int) *Preview {
	switch mode {
	case PayloadNone:
		return &Preview{Mode: PayloadNone}
	case PayloadRedacted:
		est := EstimateSize(v)
		return &Preview{
			Mode:           PayloadRedacted,
			EstimatedBytes: est,
			Summary:        summarize(v, est),
		}
	case PayloadFull:
		est := EstimateSize(v)
		if est <= maxBytes {
			return &Preview{Mode: PayloadFull, EstimatedBytes: est, Data: v}
		}
		return &Preview{
			Mode:           PayloadRedacted,
			EstimatedBytes: est,
			Summary:        summarize(v, est),
			Truncated:      true,
		}
	default:
		return &Preview{Mode: PayloadNone}
	}
}

// summarize produces a short human-readable shape description without
// touching payload contents.
func summarize(v any, est int) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case string:
		return fmt.Sprintf("string (%d B)", len(x))
	case []byte:
		return fmt.Sprintf("binary (%d B)", len(x))
	case int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return "number"
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		return fmt.Sprintf("array (%d items, ~%d B)", rv.Len(), est)
	case reflect.Map:
		return fmt.Sprintf("object (%d keys, ~%d B)", rv.Len(), est)
	case reflect.Struct:
		return fmt.Sprintf("object (~%d B)", est)
	case reflect.Ptr, reflect.Interface:
		if rv.IsNil() {
			return "null"
		}
		return summarize(rv.Elem().Interface(), est)
	default:
		return fmt.Sprintf("%s (~%d B)", rv.Kind(), est)
	}
}
