// Package pulsereset implements C6, the one-shot pulse-reset timer: armed
// by the step-pulse executor each time it latches a step edge, it lowers
// the step lines after settings.pulse_microseconds have elapsed (spec
// §4.2 step 2, §6). It is a thin adapter over the shared clock.Scheduler,
// the way the teacher's MasterClock is driven by independent subsystem
// callbacks off one shared tick counter rather than its own timer.
package pulsereset

import (
	"nitro-core-dx/internal/clock"
	"nitro-core-dx/internal/planq"
)

// Timer is C6. It converts a pulse width in microseconds into ISR ticks
// and arms/fires through the scheduler's pulse-reset hook.
type Timer struct {
	scheduler *clock.Scheduler
	ports     planq.Ports

	ticksPerMicrosecond float64
	armTicks            uint32
}

// New creates a Timer bound to scheduler and ports. scheduler.OnPulseReset
// is wired to Timer.fire; callers must not overwrite it afterward.
func New(scheduler *clock.Scheduler, ports planq.Ports) *Timer {
	t := &Timer{
		scheduler:           scheduler,
		ports:               ports,
		ticksPerMicrosecond: float64(scheduler.ISRTicksPerSecond) / 1e6,
		armTicks:            1,
	}
	scheduler.OnPulseReset = t.fire
	return t
}

// SetPulseMicroseconds fixes the pulse width future Arm() calls use, in
// whole ISR ticks rounded up so the pulse is never shorter than
// requested. Mirrors settings.pulse_microseconds (spec §6).
func (t *Timer) SetPulseMicroseconds(pulseMicroseconds uint8) {
	ticks := uint32(float64(pulseMicroseconds)*t.ticksPerMicrosecond + 0.999999)
	if ticks == 0 {
		ticks = 1
	}
	t.armTicks = ticks
}

// Arm implements executor.PulseArmer: the executor calls this on every
// deferred step-edge latch (spec §4.2 step 2).
func (t *Timer) Arm() {
	t.scheduler.ArmPulseReset(t.armTicks)
}

func (t *Timer) fire() {
	t.ports.ClearSteps()
}
