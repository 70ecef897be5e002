// Package config persists the core's runtime settings (spec §6:
// pulse_microseconds, step_invert_mask, stepper_idle_lock_time,
// INVERT_ST_ENABLE) the way the teacher's devkit persists its own
// settings — JSON under os.UserConfigDir, defaulted and validated on
// load, re-validated before save.
package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
)

// IdleLockAlwaysOn is stepper_idle_lock_time's sentinel (spec §6:
// "0xff = keep enabled").
const IdleLockAlwaysOn uint8 = 0xff

// Settings is the core's persisted configuration (spec §6).
type Settings struct {
	PulseMicroseconds   uint8 `json:"pulse_microseconds"`
	StepInvertMask      uint8 `json:"step_invert_mask"`
	DirInvertMask       uint8 `json:"dir_invert_mask"`
	StepperIdleLockTime uint8 `json:"stepper_idle_lock_time"`
	InvertStepperEnable bool  `json:"invert_st_enable"`

	ISRTicksPerSecond uint32 `json:"isr_ticks_per_second"`
	SegmentBufferSize int    `json:"segment_buffer_size"`
}

// Default returns the factory settings: a 30 kHz-class ISR, 10us pulses,
// a 6-deep segment buffer (spec §6's defaults), drivers held enabled
// indefinitely after a cycle (idle lock always on, 0xff).
func Default() Settings {
	return Settings{
		PulseMicroseconds:   10,
		StepInvertMask:      0,
		DirInvertMask:       0,
		StepperIdleLockTime: IdleLockAlwaysOn,
		InvertStepperEnable: false,
		ISRTicksPerSecond:   30000,
		SegmentBufferSize:   6,
	}
}

// Path returns the default settings file location, or "" if the user
// config directory can't be determined (callers should fall back to
// Default() in that case rather than fail).
func Path() string {
	cfgDir, err := os.UserConfigDir()
	if err != nil || cfgDir == "" {
		return ""
	}
	return filepath.Join(cfgDir, "nitro-core-dx", "settings.json")
}

// Load reads settings from path, falling back to Default() for any
// missing file, and clamping values validate rejects.
func Load(path string) (Settings, error) {
	settings := Default()
	if path == "" {
		return settings, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return settings, nil
		}
		return settings, err
	}
	if len(data) == 0 {
		return settings, nil
	}
	if err := json.Unmarshal(data, &settings); err != nil {
		return Default(), err
	}
	settings.validate()
	return settings, nil
}

// Save writes settings to path as indented JSON, creating parent
// directories as needed.
func Save(path string, settings Settings) error {
	if path == "" {
		return nil
	}
	settings.validate()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (s *Settings) validate() {
	if s.ISRTicksPerSecond == 0 {
		s.ISRTicksPerSecond = Default().ISRTicksPerSecond
	}
	if s.SegmentBufferSize < 3 {
		s.SegmentBufferSize = 6
	}
}

// CombinedInvertMask returns the step+direction invert mask the executor
// XORs into every port write (spec §4.2). Direction bits occupy the high
// nibble of the combined STEPPING_PORT in this core's pin layout.
func (s Settings) CombinedInvertMask() uint8 {
	return s.StepInvertMask | (s.DirInvertMask << 4)
}
