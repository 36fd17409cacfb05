// Package batch provides size/time windowed coalescing of trace events.
//
// Events accumulate until either the batch reaches its size limit or the
// delay timer fires, then the registered callback receives a snapshot of
// the pending list. Each event is delivered at most once; each trigger
// produces exactly one flush.
package batch

import (
	"fmt"
	"sync"
	"time"
)

// Config sets the flush triggers.
type Config struct {
	MaxBatchSize  int
	MaxBatchDelay time.Duration
}

// DefaultConfig returns the production trigger values.
func DefaultConfig() Config {
	return Config{
		MaxBatchSize:  50,
		MaxBatchDelay: 100 * time.Millisecond,
	}
}

// Batcher coalesces items of type T. Safe for concurrent use.
type Batcher[T any] struct {
	mu      sync.Mutex
	cfg     Config
	pending []T
	timer   *time.Timer
	onFlush func([]T)
}

// New creates a batcher delivering to onFlush.
func New[T any](cfg Config, onFlush func([]T)) (*Batcher[T], error) {
	if cfg.MaxBatchSize < 1 {
		return nil, fmt.Errorf("batch: max batch size must be at least 1, got %d", cfg.MaxBatchSize)
	}
	if cfg.MaxBatchDelay <= 0 {
		return nil, fmt.Errorf("batch: max batch delay must be positive, got %v", cfg.MaxBatchDelay)
	}
	if onFlush == nil {
		return nil, fmt.Errorf("batch: flush callback is required")
	}
	return &Batcher[T]{cfg: cfg, onFlush: onFlush}, nil
}

// Add appends item to the pending batch. Reaching the size limit
// flushes immediately; otherwise a delay timer is started if none is
// already running.
func (b *Batcher[T]) Add(item T) {
	b.mu.Lock()
	b.pending = append(b.pending, item)

	if len(b.pending) >= b.cfg.MaxBatchSize {
		batch := b.take()
		b.mu.Unlock()
		b.onFlush(batch)
		return
	}

	if b.timer == nil {
		b.timer = time.AfterFunc(b.cfg.MaxBatchDelay, b.Flush)
	}
	b.mu.Unlock()
}

// Flush delivers the pending batch now. A no-op when nothing is pending.
func (b *Batcher[T]) Flush() {
	b.mu.Lock()
	batch := b.take()
	b.mu.Unlock()

	if len(batch) > 0 {
		b.onFlush(batch)
	}
}

// Clear discards pending items without delivering them.
func (b *Batcher[T]) Clear() {
	b.mu.Lock()
	b.take()
	b.mu.Unlock()
}

// Pending returns the number of undelivered items.
func (b *Batcher[T]) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// take detaches the pending list and stops the timer. Caller holds mu.
func (b *Batcher[T]) take() []T {
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	batch := b.pending
	b.pending = nil
	return batch
}
