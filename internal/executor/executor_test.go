package executor

import (
	"testing"

	"nitro-core-dx/internal/fixedpoint"
	"nitro-core-dx/internal/planq"
	"nitro-core-dx/internal/segbuffer"
	"nitro-core-dx/internal/segdata"
)

type fakeArmer struct{ count int }

func (f *fakeArmer) Arm() { f.count++ }

type fakeHooks struct{ stops int }

func (f *fakeHooks) OnCycleStop() { f.stops++ }

func newFixture(block planq.Block) (*Executor, *planq.RingQueue, *segbuffer.Ring, *segdata.Table, *planq.Recorder) {
	queue := planq.NewRingQueue([]planq.Block{block})
	ring := segbuffer.NewRing(segbuffer.DefaultSize)
	table := segdata.NewTable(segbuffer.DefaultSize)
	ports := planq.NewRecorder()
	ex := New(queue, ring, table, ports, &fakeArmer{}, &fakeHooks{}, 0, nil)
	return ex, queue, ring, table, ports
}

// One segment, one axis: every step should land on the X step bit and
// advance sys.position[X] by exactly the segment's step count, matching
// invariant 2 (per-axis pulse count equals block.steps[axis]).
func TestExecutorSingleAxisStepping(t *testing.T) {
	block := planq.Block{
		Steps:          [3]uint32{4, 0, 0},
		StepEventCount: 4,
		DirectionBits:  0,
	}
	ex, _, ring, table, ports := newFixture(block)

	data := table.At(0)
	data.DistPerStep = fixedpoint.Mult // one step per tick at this scale

	ring.Push(segbuffer.Segment{
		NStep:       4,
		DataIndex:   0,
		DistPerTick: fixedpoint.Mult,
		Flag:        segbuffer.FlagEndOfBlock,
	})
	ex.RequestSegmentLoad(true)

	for i := 0; i < 20; i++ {
		ex.OnTick()
		// fakeArmer never fires; lower the step lines the way the
		// pulse-reset timer (C6) would, so each step is a fresh rising edge.
		ports.ClearSteps()
	}

	if ports.StepEdges[planq.AxisX] != 4 {
		t.Fatalf("StepEdges[X] = %d, want 4", ports.StepEdges[planq.AxisX])
	}
	if ports.StepEdges[planq.AxisY] != 0 || ports.StepEdges[planq.AxisZ] != 0 {
		t.Fatalf("unexpected edges on idle axes: %v", ports.StepEdges)
	}
	pos := ex.Position()
	if pos[planq.AxisX] != 4 {
		t.Fatalf("Position()[X] = %d, want 4", pos[planq.AxisX])
	}
}

// Direction must be latched at least one tick before the first step edge.
func TestExecutorDirectionPrecedesStep(t *testing.T) {
	block := planq.Block{
		Steps:          [3]uint32{1, 0, 0},
		StepEventCount: 1,
		DirectionBits:  0x01, // X negative
	}
	ex, _, ring, table, ports := newFixture(block)
	data := table.At(0)
	data.DistPerStep = fixedpoint.Mult

	ring.Push(segbuffer.Segment{NStep: 1, DataIndex: 0, DistPerTick: fixedpoint.Mult, Flag: segbuffer.FlagEndOfBlock})
	ex.RequestSegmentLoad(true)

	ex.OnTick() // load phase only: direction edge deferred to next tick
	if ports.OutBits&0x07 != 0 {
		t.Fatalf("step bits asserted before direction had a chance to settle: %#x", ports.OutBits)
	}

	ex.OnTick() // direction edge latches here
	if ports.OutBits&0x30 == 0 {
		t.Fatalf("direction bits not latched on the tick after load: %#x", ports.OutBits)
	}
}

// With the planner empty and a pending load, the executor must signal
// cycle-stop exactly once (S6, invariant: no silent stall).
func TestExecutorBufferUnderrunSignalsCycleStop(t *testing.T) {
	block := planq.Block{Steps: [3]uint32{1, 0, 0}, StepEventCount: 1}
	queue := planq.NewRingQueue([]planq.Block{block})
	ring := segbuffer.NewRing(segbuffer.DefaultSize)
	table := segdata.NewTable(segbuffer.DefaultSize)
	ports := planq.NewRecorder()
	hooks := &fakeHooks{}
	ex := New(queue, ring, table, ports, &fakeArmer{}, hooks, 0, nil)

	// The cycle controller acts on the first OnCycleStop (it goes idle or
	// starts its idle-lock dwell), so a single empty-buffer tick is all
	// the executor itself is responsible for signalling.
	ex.RequestSegmentLoad(true)
	ex.OnTick()

	if hooks.stops != 1 {
		t.Fatalf("OnCycleStop called %d times, want exactly 1", hooks.stops)
	}
}

func TestExecutorReentrantTickIsNoop(t *testing.T) {
	block := planq.Block{Steps: [3]uint32{1, 0, 0}, StepEventCount: 1}
	ex, _, ring, table, ports := newFixture(block)
	table.At(0).DistPerStep = fixedpoint.Mult
	ring.Push(segbuffer.Segment{NStep: 1, DataIndex: 0, DistPerTick: fixedpoint.Mult, Flag: segbuffer.FlagEndOfBlock})
	ex.RequestSegmentLoad(true)

	before := ports.OutBits
	ex.st.Busy = true
	ex.OnTick()
	if ports.OutBits != before {
		t.Fatalf("reentrant OnTick mutated port state: before=%#x after=%#x", before, ports.OutBits)
	}
}
