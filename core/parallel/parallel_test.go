package parallel

import (
	"errors"
	"sync/atomic"
	"testing"
)

func TestParallelizeWithThresholdCoversAllItems(t *testing.T) {
	for _, items := range []int{0, 1, 7, 100, 1001} {
		seen := make([]int32, items)
		ParallelizeWithThreshold(items, 0, func(start, end int) {
			for i := start; i < end; i++ {
				atomic.AddInt32(&seen[i], 1)
			}
		})
		for i, n := range seen {
			if n != 1 {
				t.Fatalf("items=%d: index %d visited %d times", items, i, n)
			}
		}
	}
}

func TestParallelizeWithThresholdSequential(t *testing.T) {
	calls := 0
	ParallelizeWithThreshold(10, 100, func(start, end int) {
		calls++
		if start != 0 || end != 10 {
			t.Errorf("got range [%d,%d), want [0,10)", start, end)
		}
	})
	if calls != 1 {
		t.Errorf("expected 1 sequential call, got %d", calls)
	}
}

func TestForEachReturnsFirstError(t *testing.T) {
	var visited int32
	boom := errors.New("boom")
	err := ForEach(50, 4, func(i int) error {
		atomic.AddInt32(&visited, 1)
		if i == 13 {
			return boom
		}
		return nil
	})
	if !errors.Is(err, boom) {
		t.Fatalf("ForEach() error = %v, want boom", err)
	}
	if visited != 50 {
		t.Errorf("visited %d items, want 50", visited)
	}
}
