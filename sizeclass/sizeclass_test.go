package sizeclass

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpRoundsUpToAtLeastRequest(t *testing.T) {
	sizes := []uint64{
		MinAllocSize,
		MinAllocSize + 1,
		200,
		4096,
		1 << 20,
		1 << 40,
		1 << 62,
	}
	for _, s := range sizes {
		c := Up(s)
		assert.GreaterOrEqualf(t, c.Rounded, s, "Up(%d).Rounded", s)
	}
}

func TestRoundTripMapping(t *testing.T) {
	sizes := []uint64{MinAllocSize, 200, 4096, 1 << 20, 1 << 40, 1 << 62}
	for _, s := range sizes {
		up := Up(s)
		down := Down(up.Rounded)
		assert.Equal(t, up.Flat, down.Flat, "size=%d", s)
	}
}

func TestDownFlatIndexWithinRange(t *testing.T) {
	sizes := []uint64{MinAllocSize, 129, 4096, 1 << 30}
	for _, s := range sizes {
		c := Down(s)
		require.GreaterOrEqual(t, c.Flat, 0)
		require.Less(t, c.Flat, FlatCount)
	}
}

func TestMinAllocSizeConstants(t *testing.T) {
	assert.Equal(t, 128, MinAllocSize)
	assert.Equal(t, 32, SubBinCount)
	assert.Equal(t, 57, BinCount)
}

func TestUpOfMinAllocSizeIsItself(t *testing.T) {
	c := Up(MinAllocSize)
	assert.Equal(t, uint64(MinAllocSize), c.Rounded)
}
