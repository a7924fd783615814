package block

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBootstrapCreatesWholePoolBlock(t *testing.T) {
	r := NewRegistry()
	id := r.Bootstrap(4096)

	assert.Equal(t, uint64(4096), r.Size(id))
	assert.Equal(t, uint64(0), r.Offset(id))
	assert.Equal(t, Free, r.State(id))
	assert.Equal(t, Nil, r.PrevPhysical(id))
	assert.Equal(t, Nil, r.NextPhysical(id))
}

func TestSplitCreatesAdjacentPhysicalNeighbour(t *testing.T) {
	r := NewRegistry()
	id := r.Bootstrap(4096)

	tail := r.Split(id, 128, 3968)
	r.SetSize(id, 128)

	require.NotEqual(t, Nil, tail)
	assert.Equal(t, id, r.PrevPhysical(tail))
	assert.Equal(t, Nil, r.NextPhysical(tail))
	assert.Equal(t, tail, r.NextPhysical(id))
	assert.Equal(t, uint64(128), r.Offset(tail))
	assert.Equal(t, uint64(3968), r.Size(tail))
}

func TestSplitRewiresExistingNextNeighbour(t *testing.T) {
	r := NewRegistry()
	id := r.Bootstrap(4096)
	far := r.Split(id, 2048, 2048)

	mid := r.Split(id, 1024, 1024)

	assert.Equal(t, mid, r.NextPhysical(id))
	assert.Equal(t, far, r.NextPhysical(mid))
	assert.Equal(t, mid, r.PrevPhysical(far))
}

func TestAbsorbPrecedingNeighbourTakesItsOffset(t *testing.T) {
	r := NewRegistry()
	id := r.Bootstrap(4096)
	tail := r.Split(id, 128, 3968)
	r.SetSize(id, 128)

	r.Absorb(tail, id)

	assert.Equal(t, uint64(0), r.Offset(tail))
	assert.Equal(t, uint64(4096), r.Size(tail))
	assert.Equal(t, Nil, r.PrevPhysical(tail))
}

func TestAbsorbFollowingNeighbourExtendsSize(t *testing.T) {
	r := NewRegistry()
	id := r.Bootstrap(4096)
	tail := r.Split(id, 128, 3968)
	r.SetSize(id, 128)

	r.Absorb(id, tail)

	assert.Equal(t, uint64(0), r.Offset(id))
	assert.Equal(t, uint64(4096), r.Size(id))
	assert.Equal(t, Nil, r.NextPhysical(id))
}

func TestReleasedSlotIsReused(t *testing.T) {
	r := NewRegistry()
	id := r.Bootstrap(4096)
	tail := r.Split(id, 128, 3968)
	r.SetSize(id, 128)

	r.Absorb(id, tail) // releases tail's slot

	other := r.Split(id, 2048, 2048)
	assert.Equal(t, tail, other, "released slot should be recycled before growing the arena")
}
