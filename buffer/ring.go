package buffer

import (
	"errors"
	"fmt"
)

var (
	ErrOutOfRange      = errors.New("window index out of range")
	ErrInvalidCapacity = errors.New("window capacity must be at least 1")
)

// Ring is a fixed-capacity sliding window. Pushing into a full ring evicts the
// oldest item.
type Ring[T any] struct {
	slots []T
	next  int
	count int
}

func New[T any](capacity int) (*Ring[T], error) {
	if capacity < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidCapacity, capacity)
	}
	return &Ring[T]{slots: make([]T, capacity)}, nil
}

func (r *Ring[T]) Push(v T) {
	r.slots[r.next] = v
	r.next = (r.next + 1) % len(r.slots)
	if r.count < len(r.slots) {
		r.count++
	}
}

func (r *Ring[T]) Len() int {
	return r.count
}

func (r *Ring[T]) Cap() int {
	return len(r.slots)
}

// Back returns the n-th most recent item, Back(0) being the newest.
func (r *Ring[T]) Back(n int) (T, error) {
	var zero T
	if n < 0 || n >= r.count {
		return zero, fmt.Errorf("%w: want %d, holding %d", ErrOutOfRange, n, r.count)
	}
	idx := (r.next - 1 - n + 2*len(r.slots)) % len(r.slots)
	return r.slots[idx], nil
}

func (r *Ring[T]) MostRecent() (T, error) {
	return r.Back(0)
}

func (r *Ring[T]) SecondMostRecent() (T, error) {
	return r.Back(1)
}

// Items returns the held items from oldest to newest.
func (r *Ring[T]) Items() []T {
	out := make([]T, 0, r.count)
	for i := r.count - 1; i >= 0; i-- {
		v, _ := r.Back(i)
		out = append(out, v)
	}
	return out
}

func (r *Ring[T]) Reset() {
	var zero T
	for i := range r.slots {
		r.slots[i] = zero
	}
	r.next = 0
	r.count = 0
}
