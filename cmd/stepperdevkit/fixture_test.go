package main

import (
	"testing"

	"github.com/stretchr/testify/require"

	"nitro-core-dx/internal/config"
)

func TestLoadFixtureParsesCruiseBlock(t *testing.T) {
	blocks, err := loadFixture("testdata/cruise.json")
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	require.EqualValues(t, 100, blocks[0].StepEventCount)
}

func TestLoadFixtureMissingFile(t *testing.T) {
	_, err := loadFixture("testdata/does-not-exist.json")
	require.Error(t, err)
}

func TestNewDevKitStateWiresIdleController(t *testing.T) {
	blocks, err := loadFixture("testdata/cruise.json")
	require.NoError(t, err)

	settings := config.Default()
	s := newDevKitState(blocks, settings)
	require.Equal(t, "IDLE", s.ctl.State().String())

	require.NoError(t, s.ctl.CycleStart())
	require.True(t, s.ctl.Running())
}
