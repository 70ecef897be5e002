package main

import (
	"strconv"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/widget"

	"nitro-core-dx/internal/config"
)

// newSettingsForm builds a small editor over the subset of config.Settings
// an operator would tune from the bench: pulse width, invert masks, and
// idle-lock dwell. onSave is called after every field commits, the way
// the teacher's devkit persists settings on every change rather than
// requiring an explicit "apply" (settings.go's persistSettings callers).
func newSettingsForm(settings *config.Settings, onSave func()) fyne.CanvasObject {
	pulseEntry := widget.NewEntry()
	pulseEntry.SetText(strconv.Itoa(int(settings.PulseMicroseconds)))
	pulseEntry.OnSubmitted = func(s string) {
		if v, err := strconv.Atoi(s); err == nil && v >= 0 && v <= 255 {
			settings.PulseMicroseconds = uint8(v)
			onSave()
		}
	}

	idleLockEntry := widget.NewEntry()
	idleLockEntry.SetText(strconv.Itoa(int(settings.StepperIdleLockTime)))
	idleLockEntry.OnSubmitted = func(s string) {
		if v, err := strconv.Atoi(s); err == nil && v >= 0 && v <= 255 {
			settings.StepperIdleLockTime = uint8(v)
			onSave()
		}
	}

	stepInvertEntry := widget.NewEntry()
	stepInvertEntry.SetText(strconv.Itoa(int(settings.StepInvertMask)))
	stepInvertEntry.OnSubmitted = func(s string) {
		if v, err := strconv.Atoi(s); err == nil && v >= 0 && v <= 255 {
			settings.StepInvertMask = uint8(v)
			onSave()
		}
	}

	dirInvertEntry := widget.NewEntry()
	dirInvertEntry.SetText(strconv.Itoa(int(settings.DirInvertMask)))
	dirInvertEntry.OnSubmitted = func(s string) {
		if v, err := strconv.Atoi(s); err == nil && v >= 0 && v <= 255 {
			settings.DirInvertMask = uint8(v)
			onSave()
		}
	}

	return widget.NewForm(
		widget.NewFormItem("Pulse width (us)", pulseEntry),
		widget.NewFormItem("Idle lock time (ms, 255=always on)", idleLockEntry),
		widget.NewFormItem("Step invert mask", stepInvertEntry),
		widget.NewFormItem("Direction invert mask", dirInvertEntry),
	)
}
