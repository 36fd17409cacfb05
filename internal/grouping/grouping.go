// Package grouping reconstructs hierarchical call trees from flat span
// fragments.
//
// The entry point is BuildRows, a pure function: fragments in, render
// rows out. Fragments sharing (traceId, spanId) merge into one span;
// spans sharing a traceId form a forest via parent links; each trace is
// emitted as one summary row followed by a depth-first traversal of its
// spans. Malformed fragments degrade to singleton spans rather than
// failing the whole view, and the function is idempotent over its input.
package grouping

import (
	"sort"

	"github.com/glasspane/glasspane/internal/shared/id"
	"github.com/glasspane/glasspane/internal/trace"
)

// Span is one logical operation reconstructed from its fragments.
type Span struct {
	TraceID      id.TraceID   `json:"traceId"`
	SpanID       id.SpanID    `json:"spanId"`
	ParentSpanID id.SpanID    `json:"parentSpanId,omitempty"`
	Kind         trace.Kind   `json:"kind"`
	Channel      string       `json:"channel"`
	Status       trace.Status `json:"status"`

	TSStart  int64  `json:"tsStart"`
	TSEnd    *int64 `json:"tsEnd,omitempty"`
	Duration *int64 `json:"duration,omitempty"`

	Source *trace.Endpoint `json:"source,omitempty"`
	Target *trace.Endpoint `json:"target,omitempty"`

	Request  *trace.Preview   `json:"request,omitempty"`
	Response *trace.Preview   `json:"response,omitempty"`
	Error    *trace.ErrorInfo `json:"error,omitempty"`
	Payload  *trace.Preview   `json:"payload,omitempty"`

	ChunkCount *int64 `json:"chunkCount,omitempty"`
	ByteCount  *int64 `json:"byteCount,omitempty"`

	Fragments int `json:"fragments"`
}

// Incomplete reports whether no fragment observed this span's end.
func (s *Span) Incomplete() bool { return s.TSEnd == nil }

// Summary carries per-trace counters for the summary row.
type Summary struct {
	TraceID         id.TraceID `json:"traceId"`
	SpanCount       int        `json:"spanCount"`
	ErrorCount      int        `json:"errorCount"`
	IncompleteCount int        `json:"incompleteCount"`
	TSStart         int64      `json:"tsStart"`
}

// RowType discriminates render rows.
type RowType string

const (
	RowTrace RowType = "traceSummary"
	RowSpan  RowType = "span"
)

// Row is one line of the rendered view. Depth is meaningful for span
// rows only; a root span has depth 0.
type Row struct {
	Type  RowType  `json:"type"`
	Trace *Summary `json:"trace,omitempty"`
	Span  *Span    `json:"span,omitempty"`
	Depth int      `json:"depth"`
}

// Visibility controls which trace-summary rows are emitted. It never
// affects span rows.
type Visibility string

const (
	VisibilityAll                 Visibility = "all"
	VisibilityErrorsAndIncomplete Visibility = "errorsAndIncompleteOnly"
	VisibilityHiddenSummaries     Visibility = "hiddenTraceSummaries"
)

// Filter decides whether an aggregated span survives into the view.
// A nil filter keeps everything.
type Filter func(*Span) bool

// BuildRows turns an ordered fragment list into render rows.
func BuildRows(events []trace.Event, filter Filter, vis Visibility) []Row {
	spans := aggregate(events)

	sort.SliceStable(spans, func(i, j int) bool {
		return spans[i].TSStart < spans[j].TSStart
	})

	if filter != nil {
		kept := spans[:0]
		for _, s := range spans {
			if filter(s) {
				kept = append(kept, s)
			}
		}
		spans = kept
	}

	traces := groupByTrace(spans)

	rows := make([]Row, 0, len(spans)+len(traces))
	for _, tr := range traces {
		if keepSummary(tr, vis) {
			rows = append(rows, Row{Type: RowTrace, Trace: tr.summary})
		}
		rows = append(rows, spanRows(tr)...)
	}
	return rows
}

type spanKey struct {
	traceID id.TraceID
	spanID  id.SpanID
}

// aggregate merges fragments sharing (traceId, spanId) into spans.
// Fragments without a context become singleton spans keyed by their own
// fragment id.
func aggregate(events []trace.Event) []*Span {
	byKey := make(map[spanKey]*Span)
	var order []spanKey

	for _, ev := range events {
		key := keyFor(ev)
		s, ok := byKey[key]
		if !ok {
			s = &Span{
				TraceID: key.traceID,
				SpanID:  key.spanID,
				Kind:    ev.Kind,
				Channel: ev.Channel,
				Status:  ev.Status,
				TSStart: ev.TSStart,
				Source:  ev.Source,
				Target:  ev.Target,
			}
			if ev.Trace != nil {
				s.ParentSpanID = ev.Trace.ParentSpanID
			}
			byKey[key] = s
			order = append(order, key)
		}
		mergeFragment(s, ev)
	}

	out := make([]*Span, 0, len(order))
	for _, key := range order {
		out = append(out, byKey[key])
	}
	return out
}

func keyFor(ev trace.Event) spanKey {
	if ev.Trace != nil && ev.Trace.TraceID != "" && ev.Trace.SpanID != "" {
		return spanKey{traceID: ev.Trace.TraceID, spanID: ev.Trace.SpanID}
	}
	// No causal identity: the fragment stands alone.
	return spanKey{traceID: id.TraceID(ev.ID), spanID: id.SpanID(ev.ID)}
}

func mergeFragment(s *Span, ev trace.Event) {
	s.Fragments++

	if ev.TSStart != 0 && (s.TSStart == 0 || ev.TSStart < s.TSStart) {
		s.TSStart = ev.TSStart
	}
	if ev.TSEnd != nil && (s.TSEnd == nil || *ev.TSEnd > *s.TSEnd) {
		s.TSEnd = ev.TSEnd
	}
	if s.TSEnd != nil {
		d := *s.TSEnd - s.TSStart
		s.Duration = &d
	}

	if statusRank(ev.Status) > statusRank(s.Status) {
		s.Status = ev.Status
	}

	if s.Channel == "" {
		s.Channel = ev.Channel
	}
	if s.Kind == "" {
		s.Kind = ev.Kind
	}
	if s.Source == nil {
		s.Source = ev.Source
	}
	if s.Target == nil {
		s.Target = ev.Target
	}
	if s.ParentSpanID == "" && ev.Trace != nil {
		s.ParentSpanID = ev.Trace.ParentSpanID
	}

	// First non-empty previews win, matching fragment arrival order.
	if s.Request == nil {
		s.Request = ev.Request
	}
	if s.Response == nil {
		s.Response = ev.Response
	}
	if s.Error == nil {
		s.Error = ev.Error
	}
	if s.Payload == nil {
		s.Payload = ev.Payload
	}

	if ev.ChunkCount != nil {
		s.ChunkCount = ev.ChunkCount
	}
	if ev.ByteCount != nil {
		s.ByteCount = ev.ByteCount
	}
}

func statusRank(s trace.Status) int {
	switch s {
	case trace.StatusError:
		return 3
	case trace.StatusTimeout:
		return 2
	case trace.StatusCancelled:
		return 1
	default:
		return 0
	}
}

type traceGroup struct {
	summary *Summary
	spans   []*Span
	bySpan  map[id.SpanID]*Span
}

// groupByTrace buckets spans by traceId, ordered by each trace's
// earliest span start.
func groupByTrace(spans []*Span) []*traceGroup {
	byTrace := make(map[id.TraceID]*traceGroup)
	var order []*traceGroup

	for _, s := range spans {
		tr, ok := byTrace[s.TraceID]
		if !ok {
			tr = &traceGroup{
				summary: &Summary{TraceID: s.TraceID, TSStart: s.TSStart},
				bySpan:  make(map[id.SpanID]*Span),
			}
			byTrace[s.TraceID] = tr
			order = append(order, tr)
		}
		tr.spans = append(tr.spans, s)
		tr.bySpan[s.SpanID] = s

		tr.summary.SpanCount++
		if s.Status == trace.StatusError {
			tr.summary.ErrorCount++
		}
		if s.Incomplete() {
			tr.summary.IncompleteCount++
		}
		if s.TSStart < tr.summary.TSStart {
			tr.summary.TSStart = s.TSStart
		}
	}

	sort.SliceStable(order, func(i, j int) bool {
		if order[i].summary.TSStart != order[j].summary.TSStart {
			return order[i].summary.TSStart < order[j].summary.TSStart
		}
		return order[i].summary.TraceID < order[j].summary.TraceID
	})
	return order
}

func keepSummary(tr *traceGroup, vis Visibility) bool {
	switch vis {
	case VisibilityHiddenSummaries:
		return false
	case VisibilityErrorsAndIncomplete:
		return tr.summary.ErrorCount > 0 || tr.summary.IncompleteCount > 0
	default:
		return true
	}
}

// spanRows emits the trace's spans depth-first. A span whose declared
// parent is not among the trace's own spans is a forest root. Spans the
// traversal never reaches (parent-link cycles) are emitted as roots
// afterwards; a malformed link degrades the hierarchy, never the view.
func spanRows(tr *traceGroup) []Row {
	children := make(map[id.SpanID][]*Span)
	var roots []*Span

	for _, s := range tr.spans {
		if s.ParentSpanID != "" {
			if _, ok := tr.bySpan[s.ParentSpanID]; ok && s.ParentSpanID != s.SpanID {
				children[s.ParentSpanID] = append(children[s.ParentSpanID], s)
				continue
			}
		}
		roots = append(roots, s)
	}

	byStart := func(list []*Span) {
		sort.SliceStable(list, func(i, j int) bool {
			return list[i].TSStart < list[j].TSStart
		})
	}
	byStart(roots)
	for _, list := range children {
		byStart(list)
	}

	rows := make([]Row, 0, len(tr.spans))
	visited := make(map[*Span]bool, len(tr.spans))
	var walk func(s *Span, depth int)
	walk = func(s *Span, depth int) {
		if visited[s] {
			return
		}
		visited[s] = true
		rows = append(rows, Row{Type: RowSpan, Span: s, Depth: depth})
		for _, child := range children[s.SpanID] {
			walk(child, depth+1)
		}
	}
	for _, root := range roots {
		walk(root, 0)
	}

	// tr.spans is already in start order.
	for _, s := range tr.spans {
		if !visited[s] {
			walk(s, 0)
		}
	}
	return rows
}
