// Package ring provides a generic fixed-capacity FIFO buffer that
// overwrites its oldest element once full. All operations are O(1)
// except All/Recent, which copy out stored elements.
package ring

import (
	"errors"
	"fmt"
)

// ErrInvalidCapacity is returned for capacities below 1.
var ErrInvalidCapacity = errors.New("ring: capacity must be at least 1")

// Buffer is a fixed-capacity ring. It is not goroutine-safe; the owner
// serializes access.
type Buffer[T any] struct {
	items []T
	head  int // next write position
	size  int
}

// New creates a buffer with the given capacity.
func New[T any](capacity int) (*Buffer[T], error) {
	if capacity < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidCapacity, capacity)
	}
	return &Buffer[T]{items: make([]T, capacity)}, nil
}

// Push stores item, overwriting the oldest element when full. Returns
// true when an element was evicted.
func (b *Buffer[T]) Push(item T) bool {
	evicted := b.size == len(b.items)
	b.items[b.head] = item
	b.head = (b.head + 1) % len(b.items)
	if !evicted {
		b.size++
	}
	return evicted
}

// All returns the stored elements oldest to newest.
func (b *Buffer[T]) All() []T {
	out := make([]T, 0, b.size)
	start := b.head - b.size
	if start < 0 {
		start += len(b.items)
	}
	for i := 0; i < b.size; i++ {
		out = append(out, b.items[(start+i)%len(b.items)])
	}
	return out
}

// Recent returns the n most recent elements in chronological order.
// n larger than the current size returns everything.
func (b *Buffer[T]) Recent(n int) []T {
	if n <= 0 {
		return nil
	}
	if n > b.size {
		n = b.size
	}
	out := make([]T, 0, n)
	start := b.head - n
	if start < 0 {
		start += len(b.items)
	}
	for i := 0; i < n; i++ {
		out = append(out, b.items[(start+i)%len(b.items)])
	}
	return out
}

// Clear resets the buffer to empty without reallocating.
func (b *Buffer[T]) Clear() {
	var zero T
	for i := range b.items {
		b.items[i] = zero
	}
	b.head = 0
	b.size = 0
}

// Len returns the number of stored elements.
func (b *Buffer[T]) Len() int { return b.size }

// Cap returns the fixed capacity.
func (b *Buffer[T]) Cap() int { return len(b.items) }

// IsEmpty reports whether the buffer holds no elements.
func (b *Buffer[T]) IsEmpty() bool { return b.size == 0 }

// IsFull reports whether the next Push will evict.
func (b *Buffer[T]) IsFull() bool { return b.size == len(b.items) }
