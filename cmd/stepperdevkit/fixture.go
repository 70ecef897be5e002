package main

import (
	"encoding/json"
	"fmt"
	"os"

	"nitro-core-dx/internal/planq"
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
