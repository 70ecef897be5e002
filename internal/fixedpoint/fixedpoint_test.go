package fixedpoint

import "testing"

func TestCeilDiv64(t *testing.T) {
	if got := CeilDiv64(10, 5); got != 2 {
		t.Fatalf("CeilDiv64(10,5) = %d, want 2", got)
	}
	if got := CeilDiv64(11, 5); got != 3 {
		t.Fatalf("CeilDiv64(11,5) = %d, want 3", got)
	}
	if got := CeilDiv64(0, 5); got != 0 {
		t.Fatalf("CeilDiv64(0,5) = %d, want 0", got)
	}
	if got := CeilDiv64(-3, 5); got != 0 {
		t.Fatalf("CeilDiv64(-3,5) = %d, want 0", got)
	}
}

func TestDistPerStep(t *testing.T) {
	got := DistPerStep(10)
	want := int32(CeilDiv64(Mult, 10))
	if got != want {
		t.Fatalf("DistPerStep(10) = %d, want %d", got, want)
	}
}

func TestCeilFloat(t *testing.T) {
	cases := map[float64]int64{
		0:     0,
		1:     1,
		1.1:   2,
		99.0:  99,
		99.01: 100,
	}
	for in, want := range cases {
		if got := CeilFloat(in); got != want {
			t.Fatalf("CeilFloat(%v) = %d, want %d", in, got, want)
		}
	}
}
