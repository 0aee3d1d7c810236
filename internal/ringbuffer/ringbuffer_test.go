package ringbuffer

import "testing"

func TestRing_BasicOperations(t *testing.T) {
	r := New[int](8)

	if r.Capacity() != 8 {
		t.Fatalf("expected capacity 8, got %d", r.Capacity())
	}
	if !r.IsEmpty() {
		t.Fatalf("expected new ring to be empty")
	}

	if !r.TryPush(42) {
		t.Fatalf("expected push to succeed")
	}
	if r.IsEmpty() {
		t.Fatalf("expected ring to be non-empty after push")
	}

	v, ok := r.TryPop()
	if !ok || v != 42 {
		t.Fatalf("expected (42, true), got (%d, %v)", v, ok)
	}
	if !r.IsEmpty() {
		t.Fatalf("expected ring to be empty after pop")
	}
}

func TestRing_CapacityRoundsToPowerOfTwo(t *testing.T) {
	r := New[int](5)
	if r.Capacity() != 8 {
		t.Fatalf("expected rounded capacity 8, got %d", r.Capacity())
	}
}

func TestRing_FIFOOrder(t *testing.T) {
	r := New[int](4)
	for i := 0; i < 4; i++ {
		if !r.TryPush(i) {
			t.Fatalf("push %d should have succeeded", i)
		}
	}
	if r.TryPush(99) {
		t.Fatalf("push into full buffer should fail")
	}

	for i := 0; i < 4; i++ {
		v, ok := r.TryPop()
		if !ok || v != i {
			t.Fatalf("expected (%d, true), got (%d, %v)", i, v, ok)
		}
	}
	if _, ok := r.TryPop(); ok {
		t.Fatalf("expected pop from empty buffer to fail")
	}
}

func TestRing_FullBufferRejectsWithoutBlocking(t *testing.T) {
	r := New[int](2)
	r.TryPush(1)
	r.TryPush(2)
	if r.TryPush(3) {
		t.Fatalf("expected push to a full buffer to fail")
	}
}

// TestRing_SingleProducerSingleConsumerMonotonic exercises S5: from one producer
// push events numbered 0..100 against a small capacity, consumer pops
// until empty; popped indices must be strictly ascending.
func TestRing_SingleProducerSingleConsumerMonotonic(t *testing.T) {
	r := New[int](16)
	pushed := 0
	popped := make([]int, 0, 101)

	for i := 0; i <= 100; i++ {
		if r.TryPush(i) {
			pushed++
		}
		if v, ok := r.TryPop(); ok {
			popped = append(popped, v)
		}
	}
	for {
		v, ok := r.TryPop()
		if !ok {
			break
		}
		popped = append(popped, v)
	}

	last := -1
	for _, v := range popped {
		if v <= last {
			t.Fatalf("expected strictly ascending sequence, got %d after %d", v, last)
		}
		last = v
	}
}
