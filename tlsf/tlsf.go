// Package tlsf is a Two-Level Segregated Fit memory allocator for a
// contiguous, externally owned byte range. It hands back aligned
// sub-ranges of that range in O(1) and reclaims them later, coalescing
// physical neighbours so long-running workloads do not fragment the pool.
//
// The allocator never reads or writes the pool itself — only offsets into
// it — so it is equally usable for host memory and for memory the caller
// cannot dereference, such as GPU device memory. It is not safe for
// concurrent use; see package adapter for a synchronized wrapper.
package tlsf

import (
	"errors"
	"fmt"

	"github.com/yazaldefilimone/tlsf/block"
	"github.com/yazaldefilimone/tlsf/freelist"
	"github.com/yazaldefilimone/tlsf/sizeclass"
)

var (
	// ErrInvalidRequest is returned when size or alignment fail validation:
	// size below MinAllocSize or above the pool's capacity, or alignment
	// not a power of two. Either condition alone is rejected.
	ErrInvalidRequest = errors.New("tlsf: invalid request")

	// ErrOutOfMemory is returned when no free class at or above the
	// request is populated.
	ErrOutOfMemory = errors.New("tlsf: out of memory")

	// ErrBlockInsufficient signals that an admitted block's post-alignment
	// usable size fell short of the request. It never escapes Allocate:
	// the allocator reinserts the block and retries at the next class,
	// eventually surfacing ErrOutOfMemory if no class works.
	ErrBlockInsufficient = errors.New("tlsf: block insufficient after alignment")
)

// Handle is an opaque reference to a live allocation. Only a Handle returned
// by Allocate is valid; the zero Handle holds the ID of the pool's first
// block record, so it is not a "no block" value.
type Handle struct {
	id block.ID
}

// Allocator is one TLSF pool.
type Allocator struct {
	reg  *block.Registry
	free *freelist.Index

	// head is the block at the start of the physical chain. Its identity
	// can change over time: when the leftmost block is absorbed into a
	// later-freed neighbour during coalescing, that neighbour's record
	// becomes the new head.
	head block.ID

	poolSize uint64

	numAllocation uint64
	numFreeBlock  uint64
}

// New constructs an allocator managing a pool of poolSize bytes starting at
// offset 0. poolSize must be at least sizeclass.MinAllocSize. One free
// block spanning the whole pool is created and indexed.
func New(poolSize uint64) (*Allocator, error) {
	if poolSize < sizeclass.MinAllocSize {
		return nil, fmt.Errorf("tlsf: pool size %d below minimum %d: %w", poolSize, sizeclass.MinAllocSize, ErrInvalidRequest)
	}

	reg := block.NewRegistry()
	root := reg.Bootstrap(poolSize)

	a := &Allocator{
		reg:      reg,
		free:     freelist.New(reg),
		head:     root,
		poolSize: poolSize,
	}
	a.insertFree(root)
	return a, nil
}

// Allocate finds, splits, and marks used a block of at least size bytes
// whose offset, once aligned up to alignment, still leaves room for size
// bytes. alignment must be a power of two.
func (a *Allocator) Allocate(size, alignment uint64) (Handle, error) {
	if !isPowTwo(alignment) || size < sizeclass.MinAllocSize || size > a.poolSize {
		return Handle{}, ErrInvalidRequest
	}

	searchSize := size
	for {
		c, err := a.free.FindFit(searchSize)
		if err != nil {
			return Handle{}, ErrOutOfMemory
		}

		id := a.free.Head(c)
		a.removeFree(id, c)

		tail, hasTail, err := a.useFreeBlock(id, size, alignment)
		if err != nil {
			if errors.Is(err, ErrBlockInsufficient) {
				// Don't leak the block: file it back and widen the search
				// past this class, per the Open Question in the design
				// notes — retrying at the next class is an allowed
				// response to an admitted-but-unusable block.
				a.insertFree(id)
				searchSize = a.reg.Size(id) + 1
				continue
			}
			return Handle{}, err
		}
		if hasTail {
			a.insertFree(tail)
		}

		a.numAllocation++
		return Handle{id: id}, nil
	}
}

// Deallocate marks h's block free, merges it with any free physical
// neighbours, and re-indexes the result. Double-deallocation and handles
// from another pool are caller bugs; behavior is undefined, matching the
// allocator's scope (it does not track per-allocation metadata to detect
// misuse — a wrapping client that needs that tracks it itself).
func (a *Allocator) Deallocate(h Handle) {
	id := h.id
	a.reg.SetState(id, block.Free)
	a.mergeFreeBlock(id)
	a.insertFree(id)
	a.numAllocation--
}

// Stats returns the current allocation and free-block counts.
func (a *Allocator) Stats() (numAllocation, numFreeBlock uint64) {
	return a.numAllocation, a.numFreeBlock
}

// Offset recovers the byte offset within the pool at which h's region
// begins. The caller combines this with its own pool base address.
func (a *Allocator) Offset(h Handle) uint64 {
	return a.reg.Offset(h.id)
}

// Size returns the usable size, in bytes, of h's live allocation.
func (a *Allocator) Size(h Handle) uint64 {
	return a.reg.Size(h.id)
}

// PoolSize returns the total byte size of the managed pool.
func (a *Allocator) PoolSize() uint64 {
	return a.poolSize
}

// BlockInfo describes one block of the physical chain, for read-only
// inspection by package diagnostics.
type BlockInfo struct {
	Offset uint64
	Size   uint64
	Free   bool
}

// Walk calls fn once per block in the physical chain, in address order.
// It never mutates allocator state.
func (a *Allocator) Walk(fn func(BlockInfo)) {
	for id := a.head; id != block.Nil; id = a.reg.NextPhysical(id) {
		fn(BlockInfo{
			Offset: a.reg.Offset(id),
			Size:   a.reg.Size(id),
			Free:   a.reg.IsFree(id),
		})
	}
}

// useFreeBlock implements §4.4: align the block's offset up, verify the
// post-alignment region still fits size, optionally split off a trailing
// remainder, and mark the (possibly shrunk) block used.
func (a *Allocator) useFreeBlock(id block.ID, size, alignment uint64) (tail block.ID, hasTail bool, err error) {
	offset := a.reg.Offset(id)
	alignedOffset := alignUp(offset, alignment)
	adjustment := alignedOffset - offset
	required := size + adjustment

	blockSize := a.reg.Size(id)
	if required > blockSize {
		return block.Nil, false, ErrBlockInsufficient
	}

	tail = block.Nil
	if blockSize >= required+sizeclass.MinAllocSize {
		tailOffset := offset + required
		tailSize := blockSize - required
		tail = a.reg.Split(id, tailOffset, tailSize)
		hasTail = true
	}

	a.reg.SetOffset(id, alignedOffset)
	a.reg.SetSize(id, size)
	a.reg.SetState(id, block.Used)
	return tail, hasTail, nil
}

// mergeFreeBlock implements the coalescing half of §4.5: invariant 5 (no
// two adjacent free blocks) guarantees at most one free neighbour on each
// side, so a single inspection per side suffices.
func (a *Allocator) mergeFreeBlock(id block.ID) {
	if prev := a.reg.PrevPhysical(id); prev != block.Nil && a.reg.IsFree(prev) {
		a.removeFree(prev, a.free.ClassOf(prev))
		if prev == a.head {
			a.head = id
		}
		a.reg.Absorb(id, prev)
	}
	if next := a.reg.NextPhysical(id); next != block.Nil && a.reg.IsFree(next) {
		a.removeFree(next, a.free.ClassOf(next))
		a.reg.Absorb(id, next)
	}
}

func (a *Allocator) insertFree(id block.ID) {
	a.free.Insert(id)
	a.numFreeBlock++
}

func (a *Allocator) removeFree(id block.ID, c sizeclass.Class) {
	a.free.Remove(id, c)
	a.numFreeBlock--
}

func alignUp(offset, alignment uint64) uint64 {
	return (offset + alignment - 1) &^ (alignment - 1)
}

func isPowTwo(n uint64) bool {
	return n > 0 && n&(n-1) == 0
}
