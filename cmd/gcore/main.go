// Command gcore is a headless driver for the stepper execution core: it
// loads a JSON fixture of planner blocks, runs the cycle controller to
// completion against an in-memory port recorder, and prints the final
// per-axis position and pulse counts. It exists to exercise C1-C7
// without real timer hardware, the way the teacher's cmd/emulator runs
// the CPU/PPU/APU core against a ROM file from the command line.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"nitro-core-dx/internal/clock"
	"nitro-core-dx/internal/config"
	"nitro-core-dx/internal/debug"
	"nitro-core-dx/internal/executor"
	"nitro-core-dx/internal/planq"
	"nitro-core-dx/internal/preparer"
	"nitro-core-dx/internal/pulsereset"
	"nitro-core-dx/internal/segbuffer"
	"nitro-core-dx/internal/segdata"
	"nitro-core-dx/internal/stepctl"
)

// blockFixture mirrors planq.Block in JSON form, for fixture files.
type blockFixture struct {
	Steps           [3]uint32 `json:"steps"`
	StepEventCount  uint32    `json:"step_event_count"`
	DirectionBits   uint8     `json:"direction_bits"`
	Millimeters     float64   `json:"millimeters"`
	EntrySpeedSqr   float64   `json:"entry_speed_sqr"`
	NominalSpeedSqr float64   `json:"nominal_speed_sqr"`
	ExitSpeedSqr    float64   `json:"exit_speed_sqr"`
	Acceleration    float64   `json:"acceleration"`
}

func loadFixture(path string) ([]planq.Block, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading fixture: %w", err)
	}
	var fixtures []blockFixture
	if err := json.Unmarshal(data, &fixtures); err != nil {
		return nil, fmt.Errorf("parsing fixture: %w", err)
	}
	blocks := make([]planq.Block, len(fixtures))
	for i, f := range fixtures {
		blocks[i] = planq.Block{
			Steps:           f.Steps,
			StepEventCount:  f.StepEventCount,
			DirectionBits:   f.DirectionBits,
			Millimeters:     f.Millimeters,
			EntrySpeedSqr:   f.EntrySpeedSqr,
			NominalSpeedSqr: f.NominalSpeedSqr,
			ExitSpeedSqr:    f.ExitSpeedSqr,
			Acceleration:    f.Acceleration,
		}
	}
	return blocks, nil
}

func main() {
	fixturePath := flag.String("fixture", "", "Path to a JSON planner-block fixture")
	maxTicks := flag.Uint64("max-ticks", 2_000_000, "Safety bound on ISR ticks before giving up")
	enableLogging := flag.Bool("log", false, "Enable core logging (disabled by default)")
	tracePath := flag.String("trace", "", "Write a tick-by-tick step pulse trace to this file (disabled by default)")
	flag.Parse()

	if *fixturePath == "" {
		fmt.Println("Usage: gcore -fixture <path-to-blocks.json>")
		fmt.Println("  -fixture <path>   Path to a JSON planner-block fixture")
		fmt.Println("  -max-ticks <n>    Safety bound on ISR ticks (default 2000000)")
		fmt.Println("  -log              Enable core logging (disabled by default)")
		fmt.Println("  -trace <path>     Write a tick-by-tick step pulse trace to this file")
		os.Exit(1)
	}

	blocks, err := loadFixture(*fixturePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading fixture: %v\n", err)
		os.Exit(1)
	}

	var log *debug.Logger
	if *enableLogging {
		log = debug.NewLogger(10000)
		log.SetComponentEnabled(debug.ComponentPreparer, true)
		log.SetComponentEnabled(debug.ComponentExecutor, true)
		log.SetComponentEnabled(debug.ComponentCycle, true)
		log.SetComponentEnabled(debug.ComponentPlanner, true)
		log.SetComponentEnabled(debug.ComponentSystem, true)
		defer log.Shutdown()
	}

	settings := config.Default()
	queue := planq.NewRingQueue(blocks)
	ring := segbuffer.NewRing(settings.SegmentBufferSize)
	table := segdata.NewTable(settings.SegmentBufferSize)
	ports := planq.NewRecorder()
	scheduler := clock.NewScheduler(settings.ISRTicksPerSecond)
	pulseTimer := pulsereset.New(scheduler, ports)
	pulseTimer.SetPulseMicroseconds(settings.PulseMicroseconds)

	prep := preparer.New(queue, table, ring, 1.0/200.0, float64(settings.ISRTicksPerSecond), log)
	exec := executor.New(queue, ring, table, ports, pulseTimer, nil, settings.CombinedInvertMask(), log)
	ctl := stepctl.New(queue, prep, exec, ports, settings, log)
	exec.Hooks = ctl

	var tickLog *debug.TickLogger
	if *tracePath != "" {
		tickLog, err = debug.NewTickLogger(*tracePath, 0, 0, exec)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening trace file: %v\n", err)
			os.Exit(1)
		}
		defer tickLog.Close()
	}

	scheduler.OnISRTick = func(tick uint64) error {
		exec.OnTick()
		ctl.Tick()
		if tickLog != nil {
			tickLog.LogTick()
		}
		return nil
	}

	if err := ctl.CycleStart(); err != nil {
		fmt.Fprintf(os.Stderr, "Error starting cycle: %v\n", err)
		os.Exit(1)
	}

	var ticks uint64
	for ctl.Running() && ticks < *maxTicks {
		prep.Prepare()
		if err := scheduler.Step(); err != nil {
			fmt.Fprintf(os.Stderr, "Error stepping ISR: %v\n", err)
			os.Exit(1)
		}
		ticks++
	}

	pos := exec.Position()
	fmt.Println("gcore run complete")
	fmt.Printf("  blocks:        %d\n", len(blocks))
	fmt.Printf("  isr ticks:     %d\n", ticks)
	fmt.Printf("  final state:   %s\n", ctl.State())
	fmt.Printf("  position:      X=%d Y=%d Z=%d\n", pos[planq.AxisX], pos[planq.AxisY], pos[planq.AxisZ])
	fmt.Printf("  pulses:        X=%d Y=%d Z=%d\n", ports.StepEdges[planq.AxisX], ports.StepEdges[planq.AxisY], ports.StepEdges[planq.AxisZ])

	if ticks >= *maxTicks {
		fmt.Fprintln(os.Stderr, "warning: hit max-ticks safety bound before the cycle finished")
		os.Exit(2)
	}
}
