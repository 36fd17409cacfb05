package batch

import (
	"sync"
	"testing"
	"time"
)

type collector struct {
	mu      sync.Mutex
	batches [][]int
}

func (c *collector) flush(batch []int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.batches = append(c.batches, batch)
}

func (c *collector) snapshot() [][]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]int, len(c.batches))
	copy(out, c.batches)
	return out
}

func TestNewValidation(t *testing.T) {
	if _, err := New[int](Config{MaxBatchSize: 0, MaxBatchDelay: time.Second}, func([]int) {}); err == nil {
		t.Error("zero batch size should be rejected")
	}
	if _, err := New[int](Config{MaxBatchSize: 1, MaxBatchDelay: 0}, func([]int) {}); err == nil {
		t.Error("zero delay should be rejected")
	}
	if _, err := New[int](Config{MaxBatchSize: 1, MaxBatchDelay: time.Second}, nil); err == nil {
		t.Error("nil callback should be rejected")
	}
}

func TestSizeTriggerFlushesOnce(t *testing.T) {
	c := &collector{}
	b, err := New[int](Config{MaxBatchSize: 3, MaxBatchDelay: time.Hour}, c.flush)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	b.Add(1)
	b.Add(2)
	b.Add(3)

	got := c.snapshot()
	if len(got) != 1 {
		t.Fatalf("expected exactly 1 flush, got %d", len(got))
	}
	if len(got[0]) != 3 {
		t.Errorf("flush should carry 3 events, got %d", len(got[0]))
	}
	if b.Pending() != 0 {
		t.Errorf("pending list should be empty, has %d", b.Pending())
	}
}

func TestDelayTrigger(t *testing.T) {
	c := &collector{}
	b, _ := New[int](Config{MaxBatchSize: 100, MaxBatchDelay: 20 * time.Millisecond}, c.flush)

	b.Add(1)
	b.Add(2)

	if len(c.snapshot()) != 0 {
		t.Fatal("should not flush before the delay elapses")
	}

	time.Sleep(60 * time.Millisecond)

	got := c.snapshot()
	if len(got) != 1 {
		t.Fatalf("expected 1 flush after delay, got %d", len(got))
	}
	if len(got[0]) != 2 {
		t.Errorf("flush should carry 2 events, got %d", len(got[0]))
	}
}

func TestFlushEmptyIsNoop(t *testing.T) {
	c := &collector{}
	b, _ := New[int](Config{MaxBatchSize: 10, MaxBatchDelay: time.Hour}, c.flush)

	b.Flush()

	if len(c.snapshot()) != 0 {
		t.Error("flushing an empty batcher should not invoke the callback")
	}
}

func TestClearDiscardsWithoutCallback(t *testing.T) {
	c := &collector{}
	b, _ := New[int](Config{MaxBatchSize: 10, MaxBatchDelay: 20 * time.Millisecond}, c.flush)

	b.Add(1)
	b.Clear()

	time.Sleep(60 * time.Millisecond)

	if len(c.snapshot()) != 0 {
		t.Error("cleared items must never be delivered")
	}
	if b.Pending() != 0 {
		t.Error("pending list should be empty after Clear")
	}
}

func TestNoDoubleDelivery(t *testing.T) {
	c := &collector{}
	b, _ := New[int](Config{MaxBatchSize: 2, MaxBatchDelay: 20 * time.Millisecond}, c.flush)

	b.Add(1)
	b.Add(2) // size trigger
	b.Add(3)

	time.Sleep(60 * time.Millisecond) // delay trigger for the third
	b.Flush()                         // should be a no-op now

	seen := make(map[int]int)
	for _, batch := range c.snapshot() {
		for _, v := range batch {
			seen[v]++
		}
	}
	for v, count := range seen {
		if count != 1 {
			t.Errorf("event %d delivered %d times", v, count)
		}
	}
	for v := 1; v <= 3; v++ {
		if seen[v] != 1 {
			t.Errorf("event %d not delivered exactly once (got %d)", v, seen[v])
		}
	}
}

func TestOrderPreserved(t *testing.T) {
	c := &collector{}
	b, _ := New[int](Config{MaxBatchSize: 5, MaxBatchDelay: time.Hour}, c.flush)

	for i := 0; i < 5; i++ {
		b.Add(i)
	}

	got := c.snapshot()
	if len(got) != 1 {
		t.Fatalf("expected 1 flush, got %d", len(got))
	}
	for i, v := range got[0] {
		if v != i {
			t.Errorf("batch[%d] = %d, want %d", i, v, i)
		}
	}
}
