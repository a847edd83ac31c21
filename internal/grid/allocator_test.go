package grid

import (
	"sort"
	"sync"
	"testing"
)

func TestAllocatorStride(t *testing.T) {
	a := NewAllocator(22)
	for i := 0; i < 5; i++ {
		if got := a.Allocate(); got != i*22 {
			t.Fatalf("allocation %d = %d, want %d", i, got, i*22)
		}
	}
	if a.Next() != 110 {
		t.Fatalf("Next = %d, want 110", a.Next())
	}
	a.Reset()
	if got := a.Allocate(); got != 0 {
		t.Fatalf("after reset got %d, want 0", got)
	}
}

func TestAllocatorConcurrentDistinct(t *testing.T) {
	a := NewAllocator(22)
	const workers, per = 8, 200
	results := make(chan int, workers*per)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < per; i++ {
				results <- a.Allocate()
			}
		}()
	}
	wg.Wait()
	close(results)

	var got []int
	for v := range results {
		got = append(got, v)
	}
	sort.Ints(got)
	for i, v := range got {
		if v != i*22 {
			t.Fatalf("allocation %d = %d, want %d (duplicate or gap)", i, v, i*22)
		}
	}
}
