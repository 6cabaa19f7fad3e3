package container

import "github.com/forgeengine/vkr/vkrerr"

// Array is a fixed-length typed sequence: no growth, only Get/Set/Len, the
// shape spec.md §4.3 reserves for arena-allocated fixed buffers (a chunk's
// row count, a compiled query's archetype snapshot).
type Array[T any] struct {
	data []T
}

// NewArray creates a fixed-length Array of the given length, zero-valued.
func NewArray[T any](length int) (*Array[T], error) {
	if length < 0 {
		return nil, vkrerr.New(vkrerr.InvalidParameter, "container: array length must be >= 0")
	}
	return &Array[T]{data: make([]T, length)}, nil
}

// Len returns the fixed length.
func (a *Array[T]) Len() int { return len(a.data) }

// Get returns a pointer to the element at i, or nil if out of range.
func (a *Array[T]) Get(i int) *T {
	if i < 0 || i >= len(a.data) {
		return nil
	}
	return &a.data[i]
}

// Set overwrites the element at i. Reports false if i is out of range.
func (a *Array[T]) Set(i int, val T) bool {
	if i < 0 || i >= len(a.data) {
		return false
	}
	a.data[i] = val
	return true
}

// Slice exposes the backing slice directly for bulk iteration.
func (a *Array[T]) Slice() []T { return a.data }
