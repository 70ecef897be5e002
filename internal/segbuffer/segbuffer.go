// Package segbuffer implements C3, the bounded SPSC FIFO of
// execution-ready segments between the preparer (producer) and the
// step-pulse executor (consumer). Grounded on the teacher's ring-buffer
// index discipline (clock/scheduler.go's separate-counters-per-consumer
// pattern, generalized here to a head/tail SPSC ring) and on grbl's
// segment_buffer, whose head/tail/"next_head" invariants spec §3
// restates directly.
package segbuffer

// Flag bits for Segment.Flag.
const (
	FlagEndOfBlock uint8 = 1 << 0
)

// Segment is one C3 entry (spec §3).
type Segment struct {
	// NStep is the number of step events the executor must fire for
	// this segment (1..255).
	NStep uint8

	// NPhaseTick is the number of extra ISR ticks after the last step,
	// preserving pulse phase into the next segment (0..255).
	NPhaseTick uint8

	// DistPerTick is the fixed-point (INV_TIME_MULT*mm per ISR tick)
	// inverse-time increment.
	DistPerTick int32

	// DataIndex indexes into the C2 shared-data table.
	DataIndex int

	// Flag is a bitset including FlagEndOfBlock.
	Flag uint8
}

// DefaultSize is SEGMENT_BUFFER_SIZE's default (spec §6: >=3, default 6).
const DefaultSize = 6

// Ring is a fixed-capacity SPSC ring buffer of Segment. The slot at head
// is always reserved, so usable capacity is N-1 (spec §3, invariant 1).
type Ring struct {
	buf  []Segment
	head int
	tail int
}

// NewRing allocates a ring with the given capacity N (total slots,
// including the always-reserved head slot). N must be >= 2 for the ring
// to hold any segment at all; NewRing clamps below that to 2.
func NewRing(n int) *Ring {
	if n < 2 {
		n = 2
	}
	return &Ring{buf: make([]Segment, n)}
}

// Len returns the number of live (unconsumed) segments.
func (r *Ring) Len() int {
	n := len(r.buf)
	return ((r.head - r.tail) + n) % n
}

// Cap returns the usable capacity (N-1).
func (r *Ring) Cap() int {
	return len(r.buf) - 1
}

// Available returns how many more segments can be pushed before the ring
// is full — grbl's segment_buffer_items_available, used by the
// foreground preparer to decide whether it still has work to do.
func (r *Ring) Available() int {
	return r.Cap() - r.Len()
}

// Empty reports whether the ring has no live segments (head == tail).
func (r *Ring) Empty() bool {
	return r.head == r.tail
}

// Full reports whether the next push would collide with tail.
func (r *Ring) Full() bool {
	return r.nextHead() == r.tail
}

func (r *Ring) nextHead() int {
	return (r.head + 1) % len(r.buf)
}

// Push writes seg into the slot at head and publishes it by advancing
// head. The caller must have checked !Full() first; Push panics
// otherwise, since a full push would silently overwrite a live segment
// the executor has not yet consumed (spec §3, invariant 1).
func (r *Ring) Push(seg Segment) {
	if r.Full() {
		panic("segbuffer: Push on full ring")
	}
	r.buf[r.head] = seg
	r.head = r.nextHead()
}

// PeekTail returns a pointer to the segment at tail without consuming it.
// The step-pulse executor loads a segment's fields but only advances tail
// once the segment is fully stepped (spec §4.2, step 6) — this lets the
// in-progress segment's DataIndex keep referencing a live C2 slot for the
// duration of its execution.
func (r *Ring) PeekTail() *Segment {
	if r.Empty() {
		return nil
	}
	return &r.buf[r.tail]
}

// AdvanceTail consumes the segment at tail. Must only be called once that
// segment's NStep step events and NPhaseTick phase ticks have all been
// retired by the executor.
func (r *Ring) AdvanceTail() {
	if r.Empty() {
		panic("segbuffer: AdvanceTail on empty ring")
	}
	r.tail = (r.tail + 1) % len(r.buf)
}

// Reset empties the ring, per the core's reset() contract (spec §6).
func (r *Ring) Reset() {
	r.head = 0
	r.tail = 0
}
