package preparer

import (
	"testing"

	"nitro-core-dx/internal/planq"
	"nitro-core-dx/internal/segbuffer"
	"nitro-core-dx/internal/segdata"
)

const testISRTicksPerSecond = 30000.0
const testDTSegment = 1.0 / 200.0 // ACCELERATION_TICKS_PER_SECOND = 200

func sumPulses(segs []segbuffer.Segment) (nStep int, endsOfBlock int) {
	for _, s := range segs {
		nStep += int(s.NStep)
		if s.Flag&segbuffer.FlagEndOfBlock != 0 {
			endsOfBlock++
		}
	}
	return
}

func drain(t *testing.T, p *Preparer, ring *segbuffer.Ring) []segbuffer.Segment {
	t.Helper()
	var out []segbuffer.Segment
	for iter := 0; iter < 10000; iter++ {
		p.Prepare()
		for !ring.Empty() {
			out = append(out, *ring.PeekTail())
			ring.AdvanceTail()
		}
		if !p.HasPrepBlock() && p.Queue.CurrentBlock() == nil {
			break
		}
	}
	return out
}

// S1 — single-axis pure cruise.
func TestPrepareS1PureCruise(t *testing.T) {
	block := planq.Block{
		Steps:           [3]uint32{100, 0, 0},
		StepEventCount:  100,
		Millimeters:     10,
		EntrySpeedSqr:   10000,
		NominalSpeedSqr: 10000,
		ExitSpeedSqr:    10000,
		Acceleration:    100,
	}
	queue := planq.NewRingQueue([]planq.Block{block})
	ring := segbuffer.NewRing(segbuffer.DefaultSize)
	table := segdata.NewTable(segbuffer.DefaultSize)
	p := New(queue, table, ring, testDTSegment, testISRTicksPerSecond, nil)

	segs := drain(t, p, ring)
	nStep, eob := sumPulses(segs)
	if nStep != 100 {
		t.Fatalf("total n_step = %d, want 100 (ceil(step_event_count))", nStep)
	}
	if eob != 1 {
		t.Fatalf("end-of-block segments = %d, want exactly 1", eob)
	}
}

// S2 — trapezoid scenario, three axes. With L=30mm the ramp to nominal
// would need (40000-0)/(2*100) = 200mm, so classify() takes the Triangle
// branch; the test checks the step total only.
func TestPrepareS2Trapezoid(t *testing.T) {
	block := planq.Block{
		Steps:           [3]uint32{300, 200, 100},
		StepEventCount:  300,
		Millimeters:     30,
		EntrySpeedSqr:   0,
		NominalSpeedSqr: 40000,
		ExitSpeedSqr:    0,
		Acceleration:    100,
	}
	queue := planq.NewRingQueue([]planq.Block{block})
	ring := segbuffer.NewRing(segbuffer.DefaultSize)
	table := segdata.NewTable(segbuffer.DefaultSize)
	p := New(queue, table, ring, testDTSegment, testISRTicksPerSecond, nil)

	segs := drain(t, p, ring)
	nStep, eob := sumPulses(segs)
	if nStep != 300 {
		t.Fatalf("total n_step = %d, want 300", nStep)
	}
	if eob != 1 {
		t.Fatalf("end-of-block segments = %d, want exactly 1", eob)
	}
}

// S3 — triangle (same geometry as S2 but shorter, nominal never reached).
func TestPrepareS3Triangle(t *testing.T) {
	block := planq.Block{
		Steps:           [3]uint32{300, 200, 100},
		StepEventCount:  300,
		Millimeters:     5,
		EntrySpeedSqr:   0,
		NominalSpeedSqr: 40000,
		ExitSpeedSqr:    0,
		Acceleration:    100,
	}
	queue := planq.NewRingQueue([]planq.Block{block})
	ring := segbuffer.NewRing(segbuffer.DefaultSize)
	table := segdata.NewTable(segbuffer.DefaultSize)
	p := New(queue, table, ring, testDTSegment, testISRTicksPerSecond, nil)

	segs := drain(t, p, ring)
	nStep, eob := sumPulses(segs)
	if nStep != 300 {
		t.Fatalf("total n_step = %d, want 300", nStep)
	}
	if eob != 1 {
		t.Fatalf("end-of-block segments = %d, want exactly 1", eob)
	}
}

// S4 — mid-block feed hold / partial-block replan.
func TestPrepareS4PartialBlockReplan(t *testing.T) {
	block := planq.Block{
		Steps:           [3]uint32{300, 200, 100},
		StepEventCount:  300,
		Millimeters:     30,
		EntrySpeedSqr:   0,
		NominalSpeedSqr: 40000,
		ExitSpeedSqr:    0,
		Acceleration:    100,
	}
	queue := planq.NewRingQueue([]planq.Block{block})
	ring := segbuffer.NewRing(segbuffer.DefaultSize)
	table := segdata.NewTable(segbuffer.DefaultSize)
	p := New(queue, table, ring, testDTSegment, testISRTicksPerSecond, nil)

	// Run a handful of prepare iterations, mimicking a feed hold landing
	// mid-block before the block is fully segmented.
	for i := 0; i < 3; i++ {
		p.Prepare()
		for !ring.Empty() {
			ring.AdvanceTail()
		}
		if !p.HasPrepBlock() {
			break
		}
	}

	entry := p.Table.At(p.prepDataIndex)
	wantDecelerating := entry.StepEventsRemaining < entry.DecelerateAfter

	mmRemaining, isDecelerating, ok := p.FetchPartialBlockParameters()
	if !ok {
		t.Fatalf("FetchPartialBlockParameters() ok=false, want true mid-block")
	}
	if mmRemaining < 0 || mmRemaining > 30 {
		t.Fatalf("mm_remaining = %v, out of plausible [0,30] range", mmRemaining)
	}
	if isDecelerating != wantDecelerating {
		t.Fatalf("is_decelerating = %v, want %v (step_events_remaining=%.4f decelerate_after=%.4f)",
			isDecelerating, wantDecelerating, entry.StepEventsRemaining, entry.DecelerateAfter)
	}
}

func TestResetClearsBlockTrackingState(t *testing.T) {
	block := planq.Block{
		Steps: [3]uint32{10, 0, 0}, StepEventCount: 10, Millimeters: 1,
		EntrySpeedSqr: 100, NominalSpeedSqr: 100, ExitSpeedSqr: 100, Acceleration: 50,
	}
	queue := planq.NewRingQueue([]planq.Block{block})
	ring := segbuffer.NewRing(segbuffer.DefaultSize)
	table := segdata.NewTable(segbuffer.DefaultSize)
	p := New(queue, table, ring, testDTSegment, testISRTicksPerSecond, nil)

	p.Prepare()
	if !p.HasPrepBlock() {
		t.Fatalf("expected a prep block in progress before Reset")
	}
	p.Reset()
	if p.HasPrepBlock() {
		t.Fatalf("HasPrepBlock() = true after Reset(), want false")
	}
	if p.GetPrepBlockIndex() != -1 {
		t.Fatalf("GetPrepBlockIndex() = %d after Reset(), want -1", p.GetPrepBlockIndex())
	}
}
