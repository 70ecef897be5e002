// Command stepperdevkit is a Fyne desktop monitor for the stepper
// execution core: it runs a JSON planner-block fixture through C1-C7 and
// displays the segment ring's live occupancy, the shared-data-table
// entry currently in flight, and cycle-controller state, with buttons to
// drive cycle_start/feed_hold/cycle_reinitialize/alarm.
//
// Trimmed from the teacher's corelx_devkit: the same app.New()/window/
// goroutine-ticker-plus-fyne.Do refresh loop (main.go's
// startEmulatorLoop), repurposed from rendering emulator frames to
// rendering ring-buffer and shared-data-table panels, with its settings
// persistence (settings.go) repurposed into a core-config editor.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"

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

const uiTickHz = 60

type devKitState struct {
	queue     *planq.RingQueue
	ring      *segbuffer.Ring
	table     *segdata.Table
	ports     *planq.Recorder
	scheduler *clock.Scheduler
	prep      *preparer.Preparer
	exec      *executor.Executor
	ctl       *stepctl.Controller
	settings  config.Settings

	settingsPath string

	stateLabel    *widget.Label
	ringLabel     *widget.Label
	ringBar       *widget.ProgressBar
	positionLabel *widget.Label
	pulseLabel    *widget.Label
	dataLabel     *widget.Label

	stopLoop chan struct{}
}

func newDevKitState(blocks []planq.Block, settings config.Settings) *devKitState {
	queue := planq.NewRingQueue(blocks)
	ring := segbuffer.NewRing(settings.SegmentBufferSize)
	table := segdata.NewTable(settings.SegmentBufferSize)
	ports := planq.NewRecorder()
	scheduler := clock.NewScheduler(settings.ISRTicksPerSecond)
	pulseTimer := pulsereset.New(scheduler, ports)
	pulseTimer.SetPulseMicroseconds(settings.PulseMicroseconds)

	prep := preparer.New(queue, table, ring, 1.0/200.0, float64(settings.ISRTicksPerSecond), nil)
	exec := executor.New(queue, ring, table, ports, pulseTimer, nil, settings.CombinedInvertMask(), nil)
	ctl := stepctl.New(queue, prep, exec, ports, settings, nil)
	exec.Hooks = ctl

	s := &devKitState{
		queue: queue, ring: ring, table: table, ports: ports,
		scheduler: scheduler, prep: prep, exec: exec, ctl: ctl,
		settings: settings, settingsPath: config.Path(),
		stopLoop: make(chan struct{}),
	}
	scheduler.OnISRTick = func(tick uint64) error {
		exec.OnTick()
		ctl.Tick()
		return nil
	}
	return s
}

func (s *devKitState) startRunLoop() {
	go func() {
		ticker := time.NewTicker(time.Second / uiTickHz)
		defer ticker.Stop()

		for {
			select {
			case <-s.stopLoop:
				return
			case <-ticker.C:
			}

			if s.ctl.Running() {
				for i := 0; i < 512 && s.ctl.Running(); i++ {
					s.prep.Prepare()
					if err := s.scheduler.Step(); err != nil {
						break
					}
				}
			}

			fyne.Do(func() {
				s.refreshPanels()
			})
		}
	}()
}

func (s *devKitState) refreshPanels() {
	s.stateLabel.SetText(fmt.Sprintf("Cycle state: %s", s.ctl.State()))

	occupied := s.ring.Len()
	capacity := s.ring.Cap()
	s.ringLabel.SetText(fmt.Sprintf("Segment ring: %d / %d", occupied, capacity))
	if capacity > 0 {
		s.ringBar.SetValue(float64(occupied) / float64(capacity))
	}

	pos := s.exec.Position()
	s.positionLabel.SetText(fmt.Sprintf("Position: X=%d Y=%d Z=%d", pos[planq.AxisX], pos[planq.AxisY], pos[planq.AxisZ]))
	s.pulseLabel.SetText(fmt.Sprintf("Pulses: X=%d Y=%d Z=%d", s.ports.StepEdges[planq.AxisX], s.ports.StepEdges[planq.AxisY], s.ports.StepEdges[planq.AxisZ]))

	if idx := s.prep.GetPrepBlockIndex(); idx >= 0 {
		entry := s.table.At(idx % s.table.Len())
		s.dataLabel.SetText(fmt.Sprintf("prep_block=%d step_per_mm=%.2f current_rate=%.1f max_rate=%.1f events_remaining=%.1f",
			idx, entry.StepPerMM, entry.CurrentRate, entry.MaximumRate, entry.StepEventsRemaining))
	} else {
		s.dataLabel.SetText("prep_block: none")
	}
}

func (s *devKitState) buildToolbar() fyne.CanvasObject {
	startBtn := widget.NewButton("Cycle Start", func() {
		if err := s.ctl.CycleStart(); err != nil {
			s.stateLabel.SetText(err.Error())
		}
	})
	holdBtn := widget.NewButton("Feed Hold", func() {
		if err := s.ctl.FeedHold(); err != nil {
			s.stateLabel.SetText(err.Error())
		}
	})
	reinitBtn := widget.NewButton("Reinitialize", func() {
		if err := s.ctl.Reinitialize(); err != nil {
			s.stateLabel.SetText(err.Error())
		}
	})
	alarmBtn := widget.NewButton("Alarm", func() {
		s.ctl.Alarm()
	})
	return container.NewHBox(startBtn, holdBtn, reinitBtn, alarmBtn)
}

func main() {
	fixturePath := flag.String("fixture", "", "Path to a JSON planner-block fixture")
	flag.Parse()

	if *fixturePath == "" {
		fmt.Println("Usage: stepperdevkit -fixture <path-to-blocks.json>")
		os.Exit(1)
	}

	blocks, err := loadFixture(*fixturePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading fixture: %v\n", err)
		os.Exit(1)
	}

	settings, err := config.Load(config.Path())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to load settings, using defaults: %v\n", err)
		settings = config.Default()
	}

	state := newDevKitState(blocks, settings)

	a := app.New()
	a.Settings().SetTheme(newCompactTheme())
	w := a.NewWindow("Stepper Devkit")
	w.Resize(fyne.NewSize(640, 420))

	state.stateLabel = widget.NewLabel("Cycle state: IDLE")
	state.ringLabel = widget.NewLabel("Segment ring: 0 / 0")
	state.ringBar = widget.NewProgressBar()
	state.positionLabel = widget.NewLabel("Position: X=0 Y=0 Z=0")
	state.pulseLabel = widget.NewLabel("Pulses: X=0 Y=0 Z=0")
	state.dataLabel = widget.NewLabel("prep_block: none")

	settingsForm := newSettingsForm(&state.settings, func() {
		if err := config.Save(state.settingsPath, state.settings); err != nil {
			state.stateLabel.SetText("settings save error: " + err.Error())
		}
	})

	content := container.NewVBox(
		state.buildToolbar(),
		widget.NewSeparator(),
		state.stateLabel,
		state.ringLabel,
		state.ringBar,
		state.positionLabel,
		state.pulseLabel,
		state.dataLabel,
		widget.NewSeparator(),
		widget.NewLabel("Settings"),
		settingsForm,
	)
	w.SetContent(content)

	state.startRunLoop()
	w.SetOnClosed(func() {
		close(state.stopLoop)
	})

	w.ShowAndRun()
}
