// Package segdata implements C2, the shared-data table: one entry per
// in-flight planner block, expressed entirely in the step domain. The
// preparer (C4) owns writes; the executor (C5) only reads a slot for as
// long as a live segment references it (spec §3, invariant 2 and 5).
package segdata

// Entry is one shared-segment-data slot (spec §3).
type Entry struct {
	// StepEventsRemaining is the fractional count of step events left in
	// the block as of the last segment committed against this slot.
	StepEventsRemaining float64

	// StepPerMM converts the block's millimeter-domain quantities into
	// the step domain: step_event_count / millimeters.
	StepPerMM float64

	// DistPerStep is ceil(INV_TIME_MULT / StepPerMM), fixed-point.
	DistPerStep int32

	// Acceleration is step_per_mm * block.acceleration, in steps/s^2.
	Acceleration float64

	// CurrentRate, MaximumRate, ExitRate are steps/s.
	CurrentRate float64
	MaximumRate float64
	ExitRate    float64

	// AccelerateUntil, DecelerateAfter are step-events-remaining
	// thresholds (spec §4.1's profile-classification table).
	AccelerateUntil float64
	DecelerateAfter float64
}

// Table is the fixed-size C2 array. Callers size it to the segment ring's
// total slot count (SEGMENT_BUFFER_SIZE), one more than the ring's usable
// capacity; one slot is allocated per fresh planner block encountered by
// the preparer.
type Table struct {
	entries []Entry
}

// NewTable allocates a table with the given number of slots.
func NewTable(size int) *Table {
	if size < 1 {
		size = 1
	}
	return &Table{entries: make([]Entry, size)}
}

// Len returns the table's slot count.
func (t *Table) Len() int { return len(t.entries) }

// At returns a pointer to the slot at index, for in-place mutation by the
// preparer or read-only access by the executor.
func (t *Table) At(index int) *Entry {
	return &t.entries[index%len(t.entries)]
}
