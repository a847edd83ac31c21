package grid

import "sync/atomic"

// Allocator hands out contiguous, non-overlapping content index ranges.
// Allocate is an atomic fetch-and-add and may be called concurrently.
type Allocator struct {
	next   atomic.Int64
	stride int64
}

func NewAllocator(stride int) *Allocator {
	if stride < 1 {
		stride = 1
	}
	return &Allocator{stride: int64(stride)}
}

// Allocate returns the current start index and advances by one stride.
func (a *Allocator) Allocate() int {
	return int(a.next.Add(a.stride) - a.stride)
}

// Next returns the index the next Allocate call will return.
func (a *Allocator) Next() int {
	return int(a.next.Load())
}

// Reset rewinds the counter to zero. Only the reset protocol calls this.
func (a *Allocator) Reset() {
	a.next.Store(0)
}

func (a *Allocator) Stride() int {
	return int(a.stride)
}
