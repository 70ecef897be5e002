package segbuffer

import "testing"

func TestRingCapacityReservesOneSlot(t *testing.T) {
	r := NewRing(6)
	if r.Cap() != 5 {
		t.Fatalf("Cap() = %d, want 5", r.Cap())
	}
	if !r.Empty() {
		t.Fatalf("new ring should be empty")
	}
	for i := 0; i < 5; i++ {
		if r.Full() {
			t.Fatalf("ring reported full after %d pushes, want room for 5", i)
		}
		r.Push(Segment{NStep: uint8(i + 1)})
	}
	if !r.Full() {
		t.Fatalf("ring should be full after 5 pushes into a 6-slot buffer")
	}
	if r.Available() != 0 {
		t.Fatalf("Available() = %d, want 0", r.Available())
	}
}

func TestRingFIFOOrder(t *testing.T) {
	r := NewRing(4)
	r.Push(Segment{NStep: 1})
	r.Push(Segment{NStep: 2})
	r.Push(Segment{NStep: 3})

	for _, want := range []uint8{1, 2, 3} {
		seg := r.PeekTail()
		if seg == nil || seg.NStep != want {
			t.Fatalf("PeekTail() NStep = %v, want %d", seg, want)
		}
		r.AdvanceTail()
	}
	if !r.Empty() {
		t.Fatalf("ring should be empty after draining all pushed segments")
	}
}

func TestRingPushOnFullPanics(t *testing.T) {
	r := NewRing(2)
	r.Push(Segment{})
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic pushing onto a full ring")
		}
	}()
	r.Push(Segment{})
}

func TestRingAdvanceTailOnEmptyPanics(t *testing.T) {
	r := NewRing(3)
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic advancing tail on an empty ring")
		}
	}()
	r.AdvanceTail()
}

func TestNewRingClampsMinimumSize(t *testing.T) {
	r := NewRing(0)
	if r.Cap() != 1 {
		t.Fatalf("Cap() = %d, want 1 for a clamped minimum ring", r.Cap())
	}
}
