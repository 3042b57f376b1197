// Package ring provides a fixed-capacity generic ring buffer.
//
// The buffer answers "last N items" and "last 60 seconds" style queries
// without unbounded growth: once full, each Add overwrites the oldest entry.
package ring

import (
	"errors"
	"fmt"
)

// ErrInvalidCapacity is returned when a buffer is constructed with a
// non-positive capacity.
var ErrInvalidCapacity = errors.New("ring: capacity must be positive")

// Buffer is a fixed-capacity circular buffer.
// Zero value is not usable; construct with New.
type Buffer[T any] struct {
	items []T
	head  int // index of the oldest element
	size  int
}

// New creates a buffer holding at most capacity items.
func New[T any](capacity int) (*Buffer[T], error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCapacity, capacity)
	}
	return &Buffer[T]{
		items: make([]T, capacity),
	}, nil
}

// Add appends an item in O(1), overwriting the oldest entry once full.
func (b *Buffer[T]) Add(item T) {
	if b.size < len(b.items) {
		b.items[(b.head+b.size)%len(b.items)] = item
		b.size++
		return
	}
	// Full: overwrite the oldest slot and advance the head.
	b.items[b.head] = item
	b.head = (b.head + 1) % len(b.items)
}

// Snapshot returns the buffered items oldest-first.
//
// A non-negative limit truncates the result to the most recent limit items;
// limit 0 yields an empty slice. A negative limit returns everything.
func (b *Buffer[T]) Snapshot(limit int) []T {
	n := b.size
	if limit >= 0 && limit < n {
		n = limit
	}
	out := make([]T, 0, n)
	// Skip the oldest (size - n) entries so only the most recent n remain.
	for i := b.size - n; i < b.size; i++ {
		out = append(out, b.items[(b.head+i)%len(b.items)])
	}
	return out
}

// Clear empties the buffer without changing its capacity.
func (b *Buffer[T]) Clear() {
	var zero T
	for i := range b.items {
		b.items[i] = zero
	}
	b.head = 0
	b.size = 0
}

// Len returns the number of buffered items.
func (b *Buffer[T]) Len() int { return b.size }

// Cap returns the buffer capacity.
func (b *Buffer[T]) Cap() int { return len(b.items) }
