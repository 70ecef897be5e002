// Command pulsescope is an SDL2 oscilloscope for the stepper core: it
// runs a JSON planner-block fixture through the core (as cmd/gcore does
// headlessly) and plots counter_dist as a scrolling trace plus a per-axis
// step-edge count bar, so the inverse-time pulse generation can be eyeballed against
// the segment boundaries. Grounded on the teacher's SDL2 window/renderer
// setup (internal/ui/ui.go's NewUI) trimmed to a single scrolling trace
// instead of the full emulator display + panel stack.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/veandco/go-sdl2/sdl"

	"nitro-core-dx/internal/clock"
	"nitro-core-dx/internal/config"
	"nitro-core-dx/internal/executor"
	"nitro-core-dx/internal/planq"
	"nitro-core-dx/internal/preparer"
	"nitro-core-dx/internal/pulsereset"
	"nitro-core-dx/internal/segbuffer"
	"nitro-core-dx/internal/segdata"
	"nitro-core-dx/internal/stepctl"
)

const (
	traceWidth      = 1024
	traceHeight     = 480
	ticksPerColumn  = 8
	ticksPerRedraw  = ticksPerColumn * traceWidth / 4
)

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
			Steps: f.Steps, StepEventCount: f.StepEventCount, DirectionBits: f.DirectionBits,
			Millimeters: f.Millimeters, EntrySpeedSqr: f.EntrySpeedSqr,
			NominalSpeedSqr: f.NominalSpeedSqr, ExitSpeedSqr: f.ExitSpeedSqr, Acceleration: f.Acceleration,
		}
	}
	return blocks, nil
}

// scopeRecorder wraps planq.Recorder to also keep a per-tick history of
// counter_dist, since the executor only exposes its current value
// (Executor.CounterDist).
type scopeRecorder struct {
	*planq.Recorder
	samples []int32
}

func main() {
	fixturePath := flag.String("fixture", "", "Path to a JSON planner-block fixture")
	flag.Parse()

	if *fixturePath == "" {
		fmt.Println("Usage: pulsescope -fixture <path-to-blocks.json>")
		os.Exit(1)
	}

	blocks, err := loadFixture(*fixturePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading fixture: %v\n", err)
		os.Exit(1)
	}

	settings := config.Default()
	queue := planq.NewRingQueue(blocks)
	ring := segbuffer.NewRing(settings.SegmentBufferSize)
	table := segdata.NewTable(settings.SegmentBufferSize)
	ports := &scopeRecorder{Recorder: planq.NewRecorder()}
	scheduler := clock.NewScheduler(settings.ISRTicksPerSecond)
	pulseTimer := pulsereset.New(scheduler, ports)
	pulseTimer.SetPulseMicroseconds(settings.PulseMicroseconds)

	prep := preparer.New(queue, table, ring, 1.0/200.0, float64(settings.ISRTicksPerSecond), nil)
	exec := executor.New(queue, ring, table, ports, pulseTimer, nil, settings.CombinedInvertMask(), nil)
	ctl := stepctl.New(queue, prep, exec, ports, settings, nil)
	exec.Hooks = ctl

	scheduler.OnISRTick = func(tick uint64) error {
		exec.OnTick()
		ctl.Tick()
		ports.samples = append(ports.samples, exec.CounterDist())
		return nil
	}

	if err := sdl.Init(sdl.INIT_VIDEO); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize SDL: %v\n", err)
		os.Exit(1)
	}
	defer sdl.Quit()

	window, err := sdl.CreateWindow(
		"pulsescope",
		sdl.WINDOWPOS_CENTERED, sdl.WINDOWPOS_CENTERED,
		traceWidth, traceHeight,
		sdl.WINDOW_SHOWN,
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create window: %v\n", err)
		os.Exit(1)
	}
	defer window.Destroy()

	renderer, err := sdl.CreateRenderer(window, -1, sdl.RENDERER_ACCELERATED|sdl.RENDERER_PRESENTVSYNC)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create renderer: %v\n", err)
		os.Exit(1)
	}
	defer renderer.Destroy()

	if err := ctl.CycleStart(); err != nil {
		fmt.Fprintf(os.Stderr, "Error starting cycle: %v\n", err)
		os.Exit(1)
	}

	running := true
	for running {
		for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
			switch event.(type) {
			case *sdl.QuitEvent:
				running = false
			}
		}

		if ctl.Running() {
			for i := 0; i < ticksPerRedraw && ctl.Running(); i++ {
				prep.Prepare()
				if err := scheduler.Step(); err != nil {
					fmt.Fprintf(os.Stderr, "Error stepping ISR: %v\n", err)
					running = false
					break
				}
			}
		}

		renderer.SetDrawColor(10, 10, 15, 255)
		renderer.Clear()
		drawTrace(renderer, ports.samples)
		drawStepEdges(renderer, ports.Recorder)
		renderer.Present()

		if !ctl.Running() {
			sdl.Delay(16)
		}
	}
}

// drawTrace plots the most recent trace samples of counter_dist as a
// scrolling line, one column per ticksPerColumn ISR ticks.
func drawTrace(renderer *sdl.Renderer, samples []int32) {
	if len(samples) == 0 {
		return
	}
	renderer.SetDrawColor(80, 220, 120, 255)

	start := 0
	if len(samples) > traceWidth*ticksPerColumn {
		start = len(samples) - traceWidth*ticksPerColumn
	}

	var prevX, prevY int32
	first := true
	for i := start; i < len(samples); i += ticksPerColumn {
		x := int32((i - start) / ticksPerColumn)
		y := sampleToY(samples[i])
		if !first {
			renderer.DrawLine(prevX, prevY, x, y)
		}
		prevX, prevY = x, y
		first = false
	}
}

func sampleToY(v int32) int32 {
	const scaleDiv = 1 << 14
	y := traceHeight/2 - int32(int64(v)/scaleDiv)
	if y < 0 {
		y = 0
	}
	if y >= traceHeight {
		y = traceHeight - 1
	}
	return y
}

// drawStepEdges draws a small per-axis pulse counter in the corner,
// a cheap stand-in for rendering every individual step edge.
func drawStepEdges(renderer *sdl.Renderer, rec *planq.Recorder) {
	renderer.SetDrawColor(220, 80, 80, 255)
	for axis := 0; axis < 3; axis++ {
		barHeight := int32(rec.StepEdges[axis] % 200)
		rect := sdl.Rect{X: int32(10 + axis*20), Y: traceHeight - barHeight - 10, W: 12, H: barHeight}
		renderer.FillRect(&rect)
	}
}
