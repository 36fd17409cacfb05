package hub

import (
	"bytes"
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/klauspost/compress/gzip"

	"github.com/glasspane/glasspane/internal/trace"
)

// ExportFormatVersion identifies the snapshot document layout. Readers
// must tolerate event kinds they do not know.
const ExportFormatVersion = 1

// ExportStats summarizes buffer accounting at export time.
type ExportStats struct {
	TotalEvents   int    `json:"totalEvents"`
	DroppedEvents uint64 `json:"droppedEvents"`
	Capacity      int    `json:"capacity"`
}

// ExportDoc is the self-describing snapshot document.
type ExportDoc struct {
	FormatVersion int           `json:"formatVersion"`
	Events        []trace.Event `json:"events"`
	Stats         ExportStats   `json:"stats"`
}

// ExportSnapshot captures buffer contents and stats. Events are in
// chronological (push) order.
func (h *Hub) ExportSnapshot() ExportDoc {
	h.mu.Lock()
	defer h.mu.Unlock()

	return ExportDoc{
		FormatVersion: ExportFormatVersion,
		Events:        h.buffer.All(),
		Stats: ExportStats{
			TotalEvents:   h.buffer.Len(),
			DroppedEvents: h.dropped,
			Capacity:      h.buffer.Cap(),
		},
	}
}

// Export serializes the snapshot. Supported formats: "json" and
// "json.gz" (gzip-compressed JSON).
func (h *Hub) Export(format string) ([]byte, error) {
	doc := h.ExportSnapshot()

	data, err := sonic.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("hub: export encode failed: %w", err)
	}

	switch format {
	case "", "json":
		return data, nil

	case "json.gz":
		var buf bytes.Buffer
		gz := gzip.NewWriter(&buf)
		if _, err := gz.Write(data); err != nil {
			return nil, fmt.Errorf("hub: export compress failed: %w", err)
		}
		if err := gz.Close(); err != nil {
			return nil, fmt.Errorf("hub: export compress failed: %w", err)
		}
		return buf.Bytes(), nil

	default:
		return nil, fmt.Errorf("hub: unknown export format %q", format)
	}
}
