// Package executor implements C5, the step-pulse executor: the periodic
// ISR body that drains C3 segments into step/direction edges on the
// hardware port, using per-axis Bresenham counters and an inverse-time
// step decision (spec §4.2).
//
// Grounded on the teacher's CPU struct (internal/cpu/cpu.go): a plain
// State struct driven by injected Mem/Log interfaces, Reset() zeroing
// derived state but leaving caller-owned wiring untouched, and a single
// per-tick entry point analogous to the CPU's fetch/execute step.
package executor

import (
	"nitro-core-dx/internal/debug"
	"nitro-core-dx/internal/planq"
	"nitro-core-dx/internal/segbuffer"
	"nitro-core-dx/internal/segdata"
)

// loadFlag is the segment-load-phase state (spec §4.2, step 4).
type loadFlag uint8

const (
	loadNOOP loadFlag = iota
	loadSegment
	loadBlock
)

// CycleHooks lets the cycle controller (C7) observe executor-driven
// transitions without the executor importing stepctl (spec §4.3's
// "call cycle-stop" action happens inside the ISR body).
type CycleHooks interface {
	// OnCycleStop is invoked from inside OnTick when C3 runs dry with a
	// pending load — the executor has nothing left to step.
	OnCycleStop()
}

// State is the executor's tick-to-tick state (spec §4.2's counter_dist,
// step_count, phase_count, out_bits, execute_step, current_data,
// current_block, and Bresenham counters).
type State struct {
	Busy bool

	LoadFlag    loadFlag
	ExecuteStep bool

	OutBits uint8
	DirBits uint8

	StepCount  uint16
	PhaseCount uint8

	CounterDist int32
	AxisCounter [3]int32

	DataIndex int
	segFlag   uint8
	block     *planq.Block

	position [3]int32
}

// Executor is C5.
type Executor struct {
	Queue    planq.Queue
	Ring     *segbuffer.Ring
	Table    *segdata.Table
	Ports    planq.Ports
	PulseUS  PulseArmer
	Hooks    CycleHooks
	Log      *debug.Logger

	InvertMask uint8

	st State
}

// PulseArmer is the C6 pulse-reset timer's arming interface (spec §4.2
// step 2: "arm the pulse-reset timer with step_pulse_time").
type PulseArmer interface {
	Arm()
}

// New creates an Executor. invertMask is the combined step+direction
// invert byte (config.Settings.CombinedInvertMask: step mask in the low
// nibble, direction mask in the high nibble).
func New(queue planq.Queue, ring *segbuffer.Ring, table *segdata.Table, ports planq.Ports, pulse PulseArmer, hooks CycleHooks, invertMask uint8, log *debug.Logger) *Executor {
	return &Executor{
		Queue:      queue,
		Ring:       ring,
		Table:      table,
		Ports:      ports,
		PulseUS:    pulse,
		Hooks:      hooks,
		InvertMask: invertMask,
		Log:        log,
	}
}

// Reset zeroes the ISR's Bresenham counters and load state (spec §4.3's
// reset() contract: "st_reset zeroing of Bresenham counters and ring
// indices").
func (e *Executor) Reset() {
	e.st = State{}
}

// RequestSegmentLoad arms the load phase for the next tick. The cycle
// controller calls this once at cycle start (spec §4.3's wake_up());
// when a segment retires, step 6 of OnTick sets the same flag directly.
func (e *Executor) RequestSegmentLoad(block bool) {
	if block {
		e.st.LoadFlag = loadBlock
	} else if e.st.LoadFlag == loadNOOP {
		e.st.LoadFlag = loadSegment
	}
}

// Position returns the current per-axis step position, in units of
// single steps. Foreground callers must only call this between ticks
// (spec §5: "must read it atomically with interrupts disabled").
func (e *Executor) Position() [3]int32 {
	return e.st.position
}

// CounterDist exposes the current inverse-time accumulator value, for
// tooling (cmd/pulsescope) that visualizes the pulse train. Not used by
// any core control-flow decision outside the package.
func (e *Executor) CounterDist() int32 {
	return e.st.CounterDist
}

// GetOutBits, GetStepCount, GetPhaseCount, GetCounterDist, and
// GetPosition implement debug.ExecutorStateReader, letting a TickLogger
// trace the ISR's register state without an import cycle.
func (e *Executor) GetOutBits() uint8     { return e.st.OutBits }
func (e *Executor) GetStepCount() uint16  { return e.st.StepCount }
func (e *Executor) GetPhaseCount() uint8  { return e.st.PhaseCount }
func (e *Executor) GetCounterDist() int32 { return e.st.CounterDist }
func (e *Executor) GetPosition() [3]int32 { return e.st.position }

// OnTick is the per-ISR-period entry point (spec §4.2). It returns
// without effect if reentered while already busy.
func (e *Executor) OnTick() {
	if e.st.Busy {
		if e.Log != nil {
			e.Log.LogExecutorf(debug.LogLevelWarning, "reentrant tick ignored")
		}
		return
	}

	// Step 2: latch a step/direction edge deferred from the previous tick.
	// out_bits already carries the invert mask, applied once either at
	// block load (direction-only edge) or at the end of step 5 (step
	// edge) — applying it again here would cancel it out.
	if e.st.ExecuteStep {
		e.Ports.DriveStepDir(e.st.OutBits)
		if e.PulseUS != nil {
			e.PulseUS.Arm()
		}
		e.st.ExecuteStep = false
	}

	// Step 3: mark busy; a real ISR would re-enable interrupts here so
	// the pulse-reset ISR can preempt and fire promptly.
	e.st.Busy = true

	// Step 4: segment load phase.
	if e.st.LoadFlag != loadNOOP {
		if e.Ring.Empty() {
			if e.Hooks != nil {
				e.Hooks.OnCycleStop()
			}
			e.st.Busy = false
			return
		}

		seg := e.Ring.PeekTail()
		e.st.StepCount = uint16(seg.NStep)
		e.st.PhaseCount = seg.NPhaseTick
		e.st.DataIndex = seg.DataIndex
		e.st.segFlag = seg.Flag

		if e.st.LoadFlag == loadBlock {
			block := e.Queue.CurrentBlock()
			if block != nil {
				e.st.block = block
				e.st.DirBits = block.DirectionBits
				e.st.OutBits = (block.DirectionBits << 4) ^ e.InvertMask
				e.st.ExecuteStep = true
				for axis := 0; axis < 3; axis++ {
					e.st.AxisCounter[axis] = int32(block.StepEventCount) / 2
				}
				data := e.Table.At(e.st.DataIndex)
				e.st.CounterDist = data.DistPerStep
			}
		}
		e.st.LoadFlag = loadNOOP
	}

	// Step 5: inverse-time step decision.
	seg := e.Ring.PeekTail()
	if seg != nil {
		e.st.CounterDist -= seg.DistPerTick
		if e.st.CounterDist < 0 && e.st.StepCount > 0 {
			data := e.Table.At(e.st.DataIndex)
			e.st.CounterDist += data.DistPerStep

			e.st.OutBits = e.st.DirBits << 4
			if block := e.st.block; block != nil {
				for axis := 0; axis < 3; axis++ {
					e.st.AxisCounter[axis] -= int32(block.Steps[axis])
					if e.st.AxisCounter[axis] < 0 {
						stepBit := uint8(1) << uint(axis)
						e.st.OutBits |= stepBit
						e.st.AxisCounter[axis] += int32(block.StepEventCount)

						if e.st.DirBits&stepBit != 0 {
							e.st.position[axis]--
						} else {
							e.st.position[axis]++
						}
					}
				}
			}
			e.st.StepCount--
			e.st.OutBits ^= e.InvertMask
			e.st.ExecuteStep = true
		}
	}

	// Step 6: segment-complete check.
	if e.st.StepCount == 0 {
		if e.st.PhaseCount == 0 {
			if e.st.segFlag&segbuffer.FlagEndOfBlock != 0 {
				e.Queue.DiscardCurrentBlock()
				e.st.LoadFlag = loadBlock
			} else {
				e.st.LoadFlag = loadSegment
			}
			e.Ring.AdvanceTail()
		} else {
			e.st.PhaseCount--
		}
	}

	e.st.Busy = false
}
