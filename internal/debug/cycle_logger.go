package debug

import (
	"fmt"
	"os"
	"sync"
)

// ExecutorStateReader reads executor state for tick-by-tick logging
// (interface to avoid an import cycle with internal/executor).
type ExecutorStateReader interface {
	GetOutBits() uint8
	GetStepCount() uint16
	GetPhaseCount() uint8
	GetCounterDist() int32
	GetPosition() [3]int32
}

// TickSnapshot is a copy of executor register state at one ISR tick.
type TickSnapshot struct {
	OutBits     uint8
	StepCount   uint16
	PhaseCount  uint8
	CounterDist int32
	Position    [3]int32
	Tick        uint64
}

// TickLogger logs executor state for each ISR tick.
// Used to verify pulse-train phase continuity across segment boundaries
// (spec invariant 3) and to produce a human-readable trace for debugging
// timing-sensitive replans.
type TickLogger struct {
	file       *os.File
	maxTicks   uint64
	startTick  uint64 // start logging after this many ticks
	tickOffset uint64
	totalTicks uint64
	enabled    bool
	mu         sync.Mutex

	executor ExecutorStateReader
}

// NewTickLogger creates a new tick logger.
// maxTicks: maximum number of ticks to log (0 = unlimited, use with caution).
// startTick: start logging after this many ticks (0 = start immediately).
func NewTickLogger(filename string, maxTicks uint64, startTick uint64, executor ExecutorStateReader) (*TickLogger, error) {
	file, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create tick log file: %w", err)
	}

	logger := &TickLogger{
		file:      file,
		maxTicks:  maxTicks,
		startTick: startTick,
		enabled:   true,
		executor:  executor,
	}

	fmt.Fprintf(file, "Tick-by-Tick Step Pulse Log\n")
	fmt.Fprintf(file, "===========================\n\n")
	if startTick > 0 {
		fmt.Fprintf(file, "Start tick offset: %d\n", startTick)
	}
	if maxTicks > 0 {
		fmt.Fprintf(file, "Max ticks to log: %d\n", maxTicks)
	}
	fmt.Fprintf(file, "\nFormat: Tick | OutBits | StepCount | PhaseCount | CounterDist | Position(X,Y,Z)\n\n")

	return logger, nil
}

// LogTick logs the executor state for one ISR tick.
func (c *TickLogger) LogTick() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.enabled {
		return
	}

	c.totalTicks++
	if c.totalTicks <= c.startTick {
		return
	}
	if c.maxTicks > 0 && c.tickOffset >= c.maxTicks {
		c.enabled = false
		return
	}
	c.tickOffset++

	if c.executor == nil {
		return
	}

	pos := c.executor.GetPosition()
	fmt.Fprintf(c.file, "Tick %8d | Out:%02X | Steps:%3d | Phase:%3d | Dist:%8d | Pos:(%d,%d,%d)\n",
		c.totalTicks, c.executor.GetOutBits(), c.executor.GetStepCount(),
		c.executor.GetPhaseCount(), c.executor.GetCounterDist(),
		pos[0], pos[1], pos[2])
}

// SetEnabled enables or disables logging.
func (c *TickLogger) SetEnabled(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.enabled = enabled
}

// Toggle toggles logging on/off.
func (c *TickLogger) Toggle() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.enabled = !c.enabled
}

// Close closes the log file.
func (c *TickLogger) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.enabled = false
	if c.file != nil {
		fmt.Fprintf(c.file, "\n\nLog complete. Total ticks logged: %d\n", c.tickOffset)
		err := c.file.Close()
		c.file = nil
		return err
	}
	return nil
}

// IsEnabled returns whether logging is enabled.
func (c *TickLogger) IsEnabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enabled && (c.maxTicks == 0 || c.tickOffset < c.maxTicks)
}

// GetStatus returns the current logging status.
func (c *TickLogger) GetStatus() (enabled bool, loggedTicks uint64, totalTicks uint64, maxTicks uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enabled, c.tickOffset, c.totalTicks, c.maxTicks
}
