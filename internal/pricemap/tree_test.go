package pricemap

import (
	"math"
	"testing"
)

func p(t *testing.T, v float64) Price {
	t.Helper()
	price, err := NewPrice(v)
	if err != nil {
		t.Fatalf("unexpected error constructing price %v: %v", v, err)
	}
	return price
}

func TestNewPriceRejectsNaNAndNonPositive(t *testing.T) {
	if _, err := NewPrice(math.NaN()); err == nil {
		t.Fatalf("expected error for NaN price")
	}
	if _, err := NewPrice(0); err == nil {
		t.Fatalf("expected error for zero price")
	}
	if _, err := NewPrice(-1); err == nil {
		t.Fatalf("expected error for negative price")
	}
}

func TestTreeMinMaxCached(t *testing.T) {
	tree := New[int]()
	tree.Upsert(p(t, 100), 1)
	tree.Upsert(p(t, 99), 2)
	tree.Upsert(p(t, 102), 3)

	minPrice, minVal, ok := tree.Min()
	if !ok || minPrice.Float64() != 99 || minVal != 2 {
		t.Fatalf("expected min (99, 2), got (%v, %v, %v)", minPrice.Float64(), minVal, ok)
	}

	maxPrice, maxVal, ok := tree.Max()
	if !ok || maxPrice.Float64() != 102 || maxVal != 3 {
		t.Fatalf("expected max (102, 3), got (%v, %v, %v)", maxPrice.Float64(), maxVal, ok)
	}
}

func TestAscendLEQStopsAtBound(t *testing.T) {
	tree := New[int]()
	for _, v := range []float64{100, 101, 102, 103, 104} {
		tree.Upsert(p(t, v), int(v))
	}

	var visited []int
	tree.AscendLEQ(p(t, 102), func(price Price, v int) bool {
		visited = append(visited, v)
		return true
	})

	if len(visited) != 3 || visited[0] != 100 || visited[2] != 102 {
		t.Fatalf("expected [100 101 102], got %v", visited)
	}
}

func TestDescendGEQStopsAtBound(t *testing.T) {
	tree := New[int]()
	for _, v := range []float64{100, 101, 102, 103, 104} {
		tree.Upsert(p(t, v), int(v))
	}

	var visited []int
	tree.DescendGEQ(p(t, 102), func(price Price, v int) bool {
		visited = append(visited, v)
		return true
	})

	if len(visited) != 3 || visited[0] != 104 || visited[2] != 102 {
		t.Fatalf("expected [104 103 102], got %v", visited)
	}
}

func TestDeleteUpdatesMinMax(t *testing.T) {
	tree := New[int]()
	tree.Upsert(p(t, 100), 1)
	tree.Upsert(p(t, 99), 2)
	tree.Delete(p(t, 99))

	minPrice, _, ok := tree.Min()
	if !ok || minPrice.Float64() != 100 {
		t.Fatalf("expected min to become 100 after deleting 99, got %v", minPrice.Float64())
	}
}
