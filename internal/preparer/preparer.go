// Package preparer implements C4, the segment preparer: a foreground,
// never-blocking task that slices the head planner block into short
// constant-rate segments and pushes them onto the segment ring buffer
// (spec §4.1).
package preparer

import (
	"math"

	"nitro-core-dx/internal/debug"
	"nitro-core-dx/internal/fixedpoint"
	"nitro-core-dx/internal/planq"
	"nitro-core-dx/internal/segbuffer"
	"nitro-core-dx/internal/segdata"
)

// maxEmptySegmentRetries bounds how many DT_SEGMENT-sized windows a
// single call to computeOneSegment will fold together when a low step
// rate would otherwise emit zero step events (spec §9's
// MINIMUM_STEPS_PER_SEGMENT open question: "Enforce n_step >= 1").
const maxEmptySegmentRetries = 64

// carriedParams is the residual state fetch_partial_block_parameters
// snapshots so the next fresh block's segment data can carry it forward
// (spec §4.1 "Per-block initialization").
type carriedParams struct {
	stepEventsRemaining float64
	distPerStep         int32
	stepPerMM           float64
	acceleration        float64
}

// Preparer is C4.
type Preparer struct {
	Queue planq.Queue
	Table *segdata.Table
	Ring  *segbuffer.Ring
	Log   *debug.Logger

	// DTSegment is the target segment duration in seconds
	// (TICKS_PER_ACCEL_TICK / ISR_TICKS_PER_SECOND, spec §4.1).
	DTSegment float64

	// ISRTicksPerSecond and the fixed-point multiplier drive the
	// dist_per_tick conversion.
	ISRTicksPerSecond float64

	prepBlockIndex int // planner-queue index being prepared, -1 if none
	prepDataIndex  int // C2 slot for prepBlockIndex
	lastBlockIndex int // index of the most recently started block, -1 if none yet

	partialBlockFlag bool
	carry            carriedParams
}

// New creates a preparer. dtSegment is in seconds, isrTicksPerSecond in Hz.
func New(queue planq.Queue, table *segdata.Table, ring *segbuffer.Ring, dtSegment, isrTicksPerSecond float64, log *debug.Logger) *Preparer {
	return &Preparer{
		Queue:             queue,
		Table:             table,
		Ring:              ring,
		Log:               log,
		DTSegment:         dtSegment,
		ISRTicksPerSecond: isrTicksPerSecond,
		prepBlockIndex:    -1,
		prepDataIndex:     -1,
		lastBlockIndex:    -1,
	}
}

// Reset zeroes the preparer's block-tracking state, per the core's
// reset() contract (spec §6). It does not touch the segment ring or the
// C2 table directly; callers reset those independently.
func (p *Preparer) Reset() {
	p.prepBlockIndex = -1
	p.prepDataIndex = -1
	p.lastBlockIndex = -1
	p.partialBlockFlag = false
	p.carry = carriedParams{}
}

// GetPrepBlockIndex returns the planner-queue index currently being
// prepared, matching the core's external get_prep_block_index() (spec §6).
func (p *Preparer) GetPrepBlockIndex() int {
	return p.prepBlockIndex
}

// HasPrepBlock reports whether a block is currently being segmented.
func (p *Preparer) HasPrepBlock() bool {
	return p.prepBlockIndex >= 0
}

// FetchPartialBlockParameters is fetch_partial_block_parameters (spec §6):
// called by the planner when it must replan the in-flight block mid-way.
// It snapshots the residual step-domain state, sets partialBlockFlag so
// the next Prepare() carries it forward into a freshly-profiled segment
// data entry, and releases the preparer's claim on the current block so
// the caller's updated plan takes effect on the next Prepare() call.
func (p *Preparer) FetchPartialBlockParameters() (mmRemaining float64, isDecelerating bool, ok bool) {
	if !p.HasPrepBlock() {
		return 0, false, false
	}
	entry := p.Table.At(p.prepDataIndex)

	mmRemaining = entry.StepEventsRemaining / entry.StepPerMM
	isDecelerating = entry.StepEventsRemaining < entry.DecelerateAfter

	p.carry = carriedParams{
		stepEventsRemaining: entry.StepEventsRemaining,
		distPerStep:         entry.DistPerStep,
		stepPerMM:           entry.StepPerMM,
		acceleration:        entry.Acceleration,
	}
	p.partialBlockFlag = true
	p.prepBlockIndex = -1

	if p.Log != nil {
		p.Log.LogPreparerf(debug.LogLevelDebug, "partial block fetched: mm_remaining=%.4f decelerating=%v", mmRemaining, isDecelerating)
	}
	return mmRemaining, isDecelerating, true
}

// Prepare is the foreground prepare() contract (spec §4.1): fill the
// segment ring up to capacity-1 segments. It never blocks and returns
// promptly — each iteration below produces at most one segment.
func (p *Preparer) Prepare() {
	for p.Ring.Available() > 0 {
		if !p.HasPrepBlock() {
			if !p.startNextBlock() {
				return // planner queue empty: not an error (spec §4.1 Failure modes)
			}
		}

		seg, done := p.computeOneSegment()
		p.Ring.Push(seg)

		if done {
			p.prepBlockIndex = -1
		}
	}
}

// startNextBlock allocates the next C2 slot for a fresh planner block.
// Returns false if the planner has nothing queued.
func (p *Preparer) startNextBlock() bool {
	if p.Queue.CurrentBlock() == nil {
		return false
	}

	var nextIndex int
	switch {
	case p.partialBlockFlag:
		// Replan: the planner has updated the in-flight block in place;
		// resume at the current head, not the following block.
		nextIndex = p.Queue.HeadIndex()
	case p.lastBlockIndex < 0:
		nextIndex = p.Queue.HeadIndex()
	default:
		nextIndex = p.Queue.NextBlockIndex(p.lastBlockIndex)
	}
	block := p.Queue.BlockByIndex(nextIndex)
	if block == nil {
		return false
	}
	p.lastBlockIndex = nextIndex

	p.prepDataIndex = (p.prepDataIndex + 1) % p.Table.Len()
	entry := p.Table.At(p.prepDataIndex)

	if p.partialBlockFlag {
		entry.StepEventsRemaining = p.carry.stepEventsRemaining
		entry.DistPerStep = p.carry.distPerStep
		entry.StepPerMM = p.carry.stepPerMM
		entry.Acceleration = p.carry.acceleration
		p.partialBlockFlag = false
	} else {
		entry.StepPerMM = float64(block.StepEventCount) / block.Millimeters
		entry.DistPerStep = fixedpoint.DistPerStep(entry.StepPerMM)
		entry.Acceleration = entry.StepPerMM * block.Acceleration
		entry.StepEventsRemaining = float64(block.StepEventCount)
	}

	entry.CurrentRate = entry.StepPerMM * math.Sqrt(block.EntrySpeedSqr)
	entry.ExitRate = entry.StepPerMM * math.Sqrt(block.ExitSpeedSqr)

	classify(entry, block)

	p.prepBlockIndex = nextIndex
	if p.Log != nil {
		p.Log.LogPreparerf(debug.LogLevelDebug, "new prep block index=%d data_index=%d step_per_mm=%.4f", nextIndex, p.prepDataIndex, entry.StepPerMM)
	}
	return true
}

// classify implements the seven-way profile classification of spec
// §4.1's table, computing accelerate_until/decelerate_after/maximum_rate
// in mm and then converting to steps.
func classify(entry *segdata.Entry, block *planq.Block) {
	L := block.Millimeters
	v0 := block.EntrySpeedSqr
	vn := block.NominalSpeedSqr
	ve := block.ExitSpeedSqr
	a := block.Acceleration

	var accelUntilMM, decelAfterMM, maxRateMM float64

	switch {
	case v0 == vn && ve == vn:
		accelUntilMM, decelAfterMM, maxRateMM = L, 0, math.Sqrt(vn)
	case v0 == vn && ve < vn:
		accelUntilMM, decelAfterMM, maxRateMM = L, (vn-ve)/(2*a), math.Sqrt(vn)
	case v0 < vn && ve == vn:
		accelUntilMM, decelAfterMM, maxRateMM = L-(vn-v0)/(2*a), 0, math.Sqrt(vn)
	default:
		intersection := 0.5 * (L + (v0-ve)/(2*a))
		switch {
		case intersection > 0 && intersection < L:
			decelCandidate := (vn - ve) / (2 * a)
			if decelCandidate < intersection {
				// Trapezoid
				accelUntilMM = L - (vn-v0)/(2*a)
				decelAfterMM = decelCandidate
				maxRateMM = math.Sqrt(vn)
			} else {
				// Triangle
				accelUntilMM = L - intersection
				decelAfterMM = intersection
				maxRateMM = math.Sqrt(2*a*intersection + ve)
			}
		case intersection >= L:
			// Decel-only
			accelUntilMM, decelAfterMM, maxRateMM = L, L, math.Sqrt(v0)
		default:
			// Accel-only (intersection <= 0)
			accelUntilMM, decelAfterMM, maxRateMM = 0, 0, math.Sqrt(ve)
		}
	}

	entry.AccelerateUntil = accelUntilMM * entry.StepPerMM
	entry.DecelerateAfter = decelAfterMM * entry.StepPerMM
	entry.MaximumRate = maxRateMM * entry.StepPerMM
}

// phaseResult is the outcome of running one ramp phase for some dt budget.
type phaseResult struct {
	stepsRemaining float64
	dt             float64
	junction       bool // hit a threshold before consuming the full budget
	blockEnd       bool
}

func phaseAccel(entry *segdata.Entry, budget, stepsRemaining float64) phaseResult {
	next := stepsRemaining - (entry.CurrentRate*budget + 0.5*entry.Acceleration*budget*budget)
	if next < entry.AccelerateUntil {
		dt := 2 * (stepsRemaining - entry.AccelerateUntil) / (entry.CurrentRate + entry.MaximumRate)
		entry.CurrentRate = entry.MaximumRate
		return phaseResult{stepsRemaining: entry.AccelerateUntil, dt: dt, junction: true}
	}
	entry.CurrentRate += entry.Acceleration * budget
	return phaseResult{stepsRemaining: next, dt: budget}
}

func phaseDecel(entry *segdata.Entry, budget, stepsRemaining float64) phaseResult {
	speedVar := entry.Acceleration * budget
	if entry.CurrentRate > speedVar {
		next := stepsRemaining - budget*(entry.CurrentRate-0.5*speedVar)
		if next > 0 {
			entry.CurrentRate -= speedVar
			return phaseResult{stepsRemaining: next, dt: budget}
		}
	}
	// The rate would reach zero within this budget, or the remaining
	// steps are used up: this is the block's final segment.
	dt := 0.0
	if entry.CurrentRate+entry.ExitRate > 0 {
		dt = 2 * stepsRemaining / (entry.CurrentRate + entry.ExitRate)
	}
	return phaseResult{stepsRemaining: 0, dt: dt, blockEnd: true}
}

func phaseCruise(entry *segdata.Entry, budget, stepsRemaining float64) phaseResult {
	next := stepsRemaining - entry.MaximumRate*budget
	if next < entry.DecelerateAfter {
		dt := 0.0
		if entry.MaximumRate > 0 {
			dt = (stepsRemaining - entry.DecelerateAfter) / entry.MaximumRate
		}
		return phaseResult{stepsRemaining: entry.DecelerateAfter, dt: dt, junction: true}
	}
	return phaseResult{stepsRemaining: next, dt: budget}
}

// runPhaseChain walks the accel/cruise/decel state machine for a total
// time budget of totalBudget seconds, re-entering the next phase at each
// junction (spec §4.1: "at most two junctions per segment").
func runPhaseChain(entry *segdata.Entry, stepsAtStart, totalBudget float64) (stepsRemaining, consumedDt float64, blockEnd bool) {
	stepsRemaining = stepsAtStart
	remaining := totalBudget

	for iter := 0; iter < 4 && remaining > 0; iter++ {
		var res phaseResult
		switch {
		case stepsRemaining > entry.AccelerateUntil:
			res = phaseAccel(entry, remaining, stepsRemaining)
		case stepsRemaining <= entry.DecelerateAfter:
			res = phaseDecel(entry, remaining, stepsRemaining)
		default:
			res = phaseCruise(entry, remaining, stepsRemaining)
		}

		stepsRemaining = res.stepsRemaining
		consumedDt += res.dt
		if res.blockEnd {
			blockEnd = true
			break
		}
		if !res.junction {
			break
		}
		remaining = totalBudget - consumedDt
	}
	return stepsRemaining, consumedDt, blockEnd
}

// computeOneSegment computes and commits exactly one C3 segment from the
// current prep block's C2 entry, enforcing MINIMUM_STEPS_PER_SEGMENT by
// folding together additional DT_SEGMENT windows if needed (spec §9).
func (p *Preparer) computeOneSegment() (segbuffer.Segment, bool) {
	entry := p.Table.At(p.prepDataIndex)
	stepsAtStart := entry.StepEventsRemaining

	var stepsRemaining, consumedDt float64
	var blockEnd bool
	rateAtStart := entry.CurrentRate

	for multiplier := 1; ; multiplier++ {
		entry.CurrentRate = rateAtStart
		stepsRemaining, consumedDt, blockEnd = runPhaseChain(entry, stepsAtStart, p.DTSegment*float64(multiplier))
		if blockEnd || multiplier >= maxEmptySegmentRetries {
			break
		}
		nStep := fixedpoint.CeilFloat(stepsAtStart) - fixedpoint.CeilFloat(stepsRemaining)
		if nStep >= 1 {
			break
		}
	}

	entry.StepEventsRemaining = stepsRemaining

	if consumedDt <= 0 {
		consumedDt = p.DTSegment
	}
	rawDistPerTick := (stepsAtStart - stepsRemaining) / consumedDt * fixedpoint.Mult / p.ISRTicksPerSecond
	distPerTick := int32(math.Ceil(rawDistPerTick))

	seg := segbuffer.Segment{DataIndex: p.prepDataIndex, DistPerTick: distPerTick}

	if !blockEnd && stepsRemaining > 0 {
		nStep := fixedpoint.CeilFloat(stepsAtStart) - fixedpoint.CeilFloat(stepsRemaining)
		if nStep < 1 {
			nStep = 1
		}
		ceilRemaining := fixedpoint.CeilFloat(stepsRemaining)
		phaseFraction := float64(ceilRemaining) - stepsRemaining
		nPhaseTick := fixedpoint.CeilFloat(phaseFraction * float64(entry.DistPerStep))

		seg.NStep = clampToStepRange(nStep)
		seg.NPhaseTick = clampToByte(nPhaseTick)
		return seg, false
	}

	// Block end.
	nStep := fixedpoint.CeilFloat(stepsAtStart)
	seg.NStep = clampToStepRange(nStep)
	seg.NPhaseTick = 0
	seg.Flag = segbuffer.FlagEndOfBlock
	return seg, true
}

func clampToStepRange(v int64) uint8 {
	if v < 1 {
		return 1
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}

func clampToByte(v int64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
