// Package block implements the allocator's block registry: the arena of
// block records, the physical (address-ordered) chain that spans the whole
// pool, and the explicit free/used state tag recommended in place of the
// self-referential prev/next-free-point-at-self encoding.
//
// Records live in a dense, index-based arena rather than as individually
// heap-allocated nodes, so the registry works unmodified when the payload
// pool itself is memory the allocator cannot dereference (e.g. GPU device
// memory): an ID is an arena index, never a pointer into the pool.
package block

// State is the free/used tag of a block.
type State uint8

const (
	// Used blocks are absent from every free list.
	Used State = iota
	// Free blocks are linked into exactly one free list.
	Free
)

// ID identifies a block record by its position in a Registry's arena.
// Nil never identifies a live block; the zero value, 0, is the arena's
// first slot.
type ID int32

// Nil is the sentinel ID meaning "no block" (end of a chain, empty list).
const Nil ID = -1

// record is one block's bookkeeping. Only Registry mutates it.
type record struct {
	size   uint64
	offset uint64
	state  State

	prevPhysical ID
	nextPhysical ID

	prevFree ID
	nextFree ID

	// nextFreeSlot chains released records for reuse; only meaningful
	// while the record is not part of any chain.
	nextFreeSlot ID
}

// Registry owns every block record for one pool. It is not safe for
// concurrent use; callers needing that wrap it (see package adapter).
type Registry struct {
	records   []record
	freeSlots ID
}

// NewRegistry returns an empty registry with no blocks.
func NewRegistry() *Registry {
	return &Registry{freeSlots: Nil}
}

// alloc reserves a record slot, reusing a released one if available, and
// returns its ID. The record's fields are left for the caller to set.
func (r *Registry) alloc() ID {
	if r.freeSlots != Nil {
		id := r.freeSlots
		r.freeSlots = r.records[id].nextFreeSlot
		return id
	}
	r.records = append(r.records, record{})
	return ID(len(r.records) - 1)
}

// Release returns a record to the free-slot list for reuse. The caller must
// have already unlinked it from both the physical and free chains.
func (r *Registry) Release(id ID) {
	r.records[id].nextFreeSlot = r.freeSlots
	r.freeSlots = id
}

// Bootstrap creates the single block spanning a freshly constructed pool:
// offset 0, the given size, state Free, and no physical neighbours.
func (r *Registry) Bootstrap(size uint64) ID {
	id := r.alloc()
	r.records[id] = record{
		size:         size,
		offset:       0,
		state:        Free,
		prevPhysical: Nil,
		nextPhysical: Nil,
		prevFree:     Nil,
		nextFree:     Nil,
	}
	return id
}

// Split carves a new block of size tailSize off the end of b, to become b's
// next physical neighbour. b's own size is not adjusted by Split; the
// caller (package tlsf) is responsible for shrinking b afterward. Split
// returns the new block's ID, already spliced into the physical chain
// between b and b's old next neighbour.
func (r *Registry) Split(b ID, tailOffset, tailSize uint64) ID {
	tail := r.alloc()
	oldNext := r.records[b].nextPhysical

	r.records[tail] = record{
		size:         tailSize,
		offset:       tailOffset,
		state:        Free,
		prevPhysical: b,
		nextPhysical: oldNext,
		prevFree:     Nil,
		nextFree:     Nil,
	}
	if oldNext != Nil {
		r.records[oldNext].prevPhysical = tail
	}
	r.records[b].nextPhysical = tail
	return tail
}

// Absorb merges neighbour into b: b's size and (if neighbour precedes b)
// offset are adjusted, the physical chain is rewired around neighbour, and
// neighbour's record is released. neighbour must already be unlinked from
// its free list and must be b's direct physical predecessor or successor.
func (r *Registry) Absorb(b, neighbour ID) {
	nb := &r.records[neighbour]
	bb := &r.records[b]

	if nb.offset < bb.offset {
		// neighbour is the physical predecessor.
		bb.offset = nb.offset
		bb.size += nb.size
		bb.prevPhysical = nb.prevPhysical
		if nb.prevPhysical != Nil {
			r.records[nb.prevPhysical].nextPhysical = b
		}
	} else {
		// neighbour is the physical successor.
		bb.size += nb.size
		bb.nextPhysical = nb.nextPhysical
		if nb.nextPhysical != Nil {
			r.records[nb.nextPhysical].prevPhysical = b
		}
	}
	r.Release(neighbour)
}

// Size returns the block's current size in bytes.
func (r *Registry) Size(id ID) uint64 { return r.records[id].size }

// SetSize sets the block's size in bytes.
func (r *Registry) SetSize(id ID, size uint64) { r.records[id].size = size }

// Offset returns the block's byte offset within the pool.
func (r *Registry) Offset(id ID) uint64 { return r.records[id].offset }

// SetOffset sets the block's byte offset within the pool.
func (r *Registry) SetOffset(id ID, offset uint64) { r.records[id].offset = offset }

// State returns the block's free/used state.
func (r *Registry) State(id ID) State { return r.records[id].state }

// SetState sets the block's free/used state.
func (r *Registry) SetState(id ID, s State) { r.records[id].state = s }

// IsFree reports whether the block is currently free.
func (r *Registry) IsFree(id ID) bool { return r.records[id].state == Free }

// PrevPhysical returns the block preceding id in address order, or Nil.
func (r *Registry) PrevPhysical(id ID) ID { return r.records[id].prevPhysical }

// NextPhysical returns the block following id in address order, or Nil.
func (r *Registry) NextPhysical(id ID) ID { return r.records[id].nextPhysical }

// PrevFree returns id's predecessor within its free-list bucket, or Nil.
func (r *Registry) PrevFree(id ID) ID { return r.records[id].prevFree }

// NextFree returns id's successor within its free-list bucket, or Nil.
func (r *Registry) NextFree(id ID) ID { return r.records[id].nextFree }

// SetPrevFree sets id's predecessor within its free-list bucket.
func (r *Registry) SetPrevFree(id, prev ID) { r.records[id].prevFree = prev }

// SetNextFree sets id's successor within its free-list bucket.
func (r *Registry) SetNextFree(id, next ID) { r.records[id].nextFree = next }

// FirstPhysical walks prevPhysical links from id back to the head of the
// physical chain, so a full-pool walk can start from any known block.
func (r *Registry) FirstPhysical(id ID) ID {
	for r.records[id].prevPhysical != Nil {
		id = r.records[id].prevPhysical
	}
	return id
}
