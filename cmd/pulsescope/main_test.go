package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadFixtureParsesCruiseBlock(t *testing.T) {
	blocks, err := loadFixture("testdata/cruise.json")
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	require.EqualValues(t, 100, blocks[0].Steps[0])
}

func TestLoadFixtureMissingFile(t *testing.T) {
	_, err := loadFixture("testdata/does-not-exist.json")
	require.Error(t, err)
}

func TestSampleToYClampsToTraceBounds(t *testing.T) {
	require.Equal(t, int32(traceHeight/2), sampleToY(0))
	require.Equal(t, int32(0), sampleToY(1<<30))
	require.Equal(t, int32(traceHeight-1), sampleToY(-(1 << 30)))
}
