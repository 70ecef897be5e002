// Package stepctl implements C7, the cycle controller: the small state
// machine that wires the planner queue (C1), segment preparer (C4), step
// executor (C5) and pulse-reset timer (C6) together into the core's
// externally visible cycle_start/feed_hold/cycle_reinitialize contract
// (spec §4.3, §6).
//
// Grounded on the teacher's MasterClock wiring (internal/clock): a small
// struct holding references to the subsystems it coordinates plus a
// handful of explicit state transitions, rather than a generic FSM
// library — the state space here is small and fixed by spec.
package stepctl

import (
	"fmt"

	"nitro-core-dx/internal/config"
	"nitro-core-dx/internal/debug"
	"nitro-core-dx/internal/executor"
	"nitro-core-dx/internal/planq"
	"nitro-core-dx/internal/preparer"
)

// State is one of the cycle controller's five states (spec §4.3).
type State int

const (
	StateIdle State = iota
	StateQueued
	StateCycle
	StateHold
	StateAlarm
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateQueued:
		return "QUEUED"
	case StateCycle:
		return "CYCLE"
	case StateHold:
		return "HOLD"
	case StateAlarm:
		return "ALARM"
	default:
		return "UNKNOWN"
	}
}

// Controller is C7.
type Controller struct {
	Queue    planq.Queue
	Preparer *preparer.Preparer
	Executor *executor.Executor
	Ports    planq.Ports
	Settings config.Settings
	Log      *debug.Logger

	state State

	// idleLockTicksRemaining counts down stepper_idle_lock_time after a
	// cycle drains normally, before drivers are released (spec §4.3's
	// go_idle() dwell). Driven by the same ISR tick the executor runs on.
	idleLockTicksRemaining uint32
	idleLockTicksPerMS     float64
}

// New creates a Controller wired to the given subsystems. Settings must
// already reflect the core's current configuration (spec §6).
func New(queue planq.Queue, prep *preparer.Preparer, exec *executor.Executor, ports planq.Ports, settings config.Settings, log *debug.Logger) *Controller {
	return &Controller{
		Queue:              queue,
		Preparer:           prep,
		Executor:           exec,
		Ports:              ports,
		Settings:           settings,
		Log:                log,
		state:              StateIdle,
		idleLockTicksPerMS: float64(settings.ISRTicksPerSecond) / 1000.0,
	}
}

// State returns the controller's current state.
func (c *Controller) State() State { return c.state }

// Running reports whether the foreground driver loop (cmd/gcore's
// scheduler.Step loop, or a real ISR timer) should keep advancing ISR ticks.
// IDLE and QUEUED never need the ISR; ALARM has already torn it down.
func (c *Controller) Running() bool {
	return c.state == StateCycle || c.state == StateHold
}

// CycleStart transitions IDLE/QUEUED to CYCLE: primes the buffer and
// wakes the stepper drive and ISR (spec §6's cycle_start(), §4.3's
// transition table).
func (c *Controller) CycleStart() error {
	if c.state != StateIdle && c.state != StateQueued {
		return fmt.Errorf("stepctl: cycle_start invalid from state %s", c.state)
	}
	c.state = StateQueued
	c.Preparer.Prepare()
	c.wakeUp()
	c.state = StateCycle
	c.logf(debug.LogLevelInfo, "cycle_start: queued -> cycle")
	return nil
}

// FeedHold requests a decel-to-stop: the planner stops auto-starting new
// blocks and the preparer re-profiles the in-flight block as a
// deceleration ramp (spec §4.3). The actual ramp recompute happens via
// the planner calling Preparer.FetchPartialBlockParameters and replanning
// before the next Prepare() — this method only flips cycle state.
func (c *Controller) FeedHold() error {
	if c.state != StateCycle {
		return fmt.Errorf("stepctl: feed_hold invalid from state %s", c.state)
	}
	c.state = StateHold
	c.logf(debug.LogLevelInfo, "feed_hold: cycle -> hold")
	return nil
}

// Reinitialize is cycle_reinitialize() (spec §6): finalizes a hold by
// returning to IDLE. Per spec §9's resolved open question, this
// implementation conservatively aborts any residual in-flight block
// rather than replanning from the hold point — matching the historical
// firmware's actual (if likely unintended) behavior.
func (c *Controller) Reinitialize() error {
	if c.state != StateHold {
		return fmt.Errorf("stepctl: cycle_reinitialize invalid from state %s", c.state)
	}
	c.Preparer.Reset()
	c.Executor.Reset()
	c.Executor.Ring.Reset()
	c.Queue.DiscardCurrentBlock()
	c.goIdle()
	c.logf(debug.LogLevelInfo, "cycle_reinitialize: hold -> idle (in-flight block aborted)")
	return nil
}

// Alarm is the immediate, any-state-to-ALARM transition (spec §4.3,
// §7): drivers are dropped unconditionally and no dwell applies.
func (c *Controller) Alarm() {
	prev := c.state
	c.state = StateAlarm
	c.Executor.Reset()
	c.Ports.Enable(false)
	c.logf(debug.LogLevelError, "alarm: %s -> alarm, drivers dropped", prev)
}

// OnCycleStop implements executor.CycleHooks: called from inside the ISR
// when C3 runs dry during an active cycle (spec §4.2 step 4, §7's
// "buffer underrun... not an error"). It starts the idle-lock dwell.
func (c *Controller) OnCycleStop() {
	if c.state != StateCycle && c.state != StateHold {
		return
	}
	if c.idleLockTicksRemaining > 0 {
		return // dwell already running; the executor signals on every empty-buffer tick
	}
	wasHold := c.state == StateHold
	c.idleLockTicksRemaining = c.idleLockDurationTicks()

	if c.idleLockTicksRemaining == 0 {
		c.goIdle()
	}
	if wasHold {
		c.logf(debug.LogLevelInfo, "buffer drained during hold, dwelling before idle")
	} else {
		c.logf(debug.LogLevelInfo, "buffer drained normally, dwelling before idle")
	}
}

// Tick lets the idle-lock dwell count down on the same ISR clock the
// executor runs on; cmd/gcore calls this once per scheduler tick
// alongside Executor.OnTick. It is a no-op once the dwell has finished.
func (c *Controller) Tick() {
	if c.idleLockTicksRemaining == 0 {
		return
	}
	c.idleLockTicksRemaining--
	if c.idleLockTicksRemaining == 0 {
		c.goIdle()
	}
}

func (c *Controller) idleLockDurationTicks() uint32 {
	switch c.Settings.StepperIdleLockTime {
	case config.IdleLockAlwaysOn, 0:
		return 0
	default:
		return uint32(float64(c.Settings.StepperIdleLockTime)*c.idleLockTicksPerMS) + 1
	}
}

// wakeUp enables the stepper drive (respecting the invert flag) and
// arms the executor to load the head block on its next tick (spec
// §4.3's wake_up()).
func (c *Controller) wakeUp() {
	c.Ports.Enable(!c.Settings.InvertStepperEnable)
	c.Executor.RequestSegmentLoad(true)
}

// goIdle releases the drivers (unless idle-lock is held indefinitely)
// and returns the controller to IDLE (spec §4.3's go_idle()).
func (c *Controller) goIdle() {
	if c.Settings.StepperIdleLockTime != config.IdleLockAlwaysOn {
		c.Ports.Enable(false)
	}
	c.state = StateIdle
}

func (c *Controller) logf(level debug.LogLevel, format string, args ...interface{}) {
	if c.Log == nil {
		return
	}
	c.Log.LogCyclef(level, format, args...)
}
