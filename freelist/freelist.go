// Package freelist implements the per-class doubly linked free lists and
// the two-level bitmap index that finds the smallest non-empty class at or
// above a requested size in O(1).
package freelist

import (
	"math/bits"

	"github.com/yazaldefilimone/tlsf/block"
	"github.com/yazaldefilimone/tlsf/sizeclass"
)

// Index is the free-list + bitmap state for one pool. It holds no block
// data itself; it links into a block.Registry for the actual records.
type Index struct {
	reg *block.Registry

	bins [sizeclass.FlatCount]block.ID

	binBitmap    uint64
	subBinBitmap [sizeclass.BinCount]uint32
}

// New returns an empty Index backed by reg.
func New(reg *block.Registry) *Index {
	idx := &Index{reg: reg}
	for i := range idx.bins {
		idx.bins[i] = block.Nil
	}
	return idx
}

// Insert head-inserts id into the free list for its current size, under
// the class produced by sizeclass.Down, and lights the corresponding
// bitmap bits unconditionally.
func (idx *Index) Insert(id block.ID) {
	c := sizeclass.Down(idx.reg.Size(id))
	idx.insertAt(id, c)
}

func (idx *Index) insertAt(id block.ID, c sizeclass.Class) {
	head := idx.bins[c.Flat]
	idx.reg.SetPrevFree(id, block.Nil)
	idx.reg.SetNextFree(id, head)
	if head != block.Nil {
		idx.reg.SetPrevFree(head, id)
	}
	idx.bins[c.Flat] = id
	idx.reg.SetState(id, block.Free)

	idx.binBitmap |= 1 << uint(c.Bin)
	idx.subBinBitmap[c.Bin] |= 1 << uint(c.SubBin)
}

// Remove splices id out of the free list for class c. c must be the class
// id currently occupies (the caller already knows it, from FindFit or from
// sizeclass.Down(idx.reg.Size(id))).
//
// The bitmap bit for a class is cleared only when that class's list becomes
// empty, regardless of whether the removed node was the list head — this
// is the corrected reading of the Open Question about non-head removal
// during merge: the bit tracks list emptiness, not head identity.
func (idx *Index) Remove(id block.ID, c sizeclass.Class) {
	next := idx.reg.NextFree(id)
	prev := idx.reg.PrevFree(id)

	if next != block.Nil {
		idx.reg.SetPrevFree(next, prev)
	}
	if prev != block.Nil {
		idx.reg.SetNextFree(prev, next)
	}

	if idx.bins[c.Flat] == id {
		idx.bins[c.Flat] = next
	}

	if idx.bins[c.Flat] == block.Nil {
		idx.subBinBitmap[c.Bin] &^= 1 << uint(c.SubBin)
		if idx.subBinBitmap[c.Bin] == 0 {
			idx.binBitmap &^= 1 << uint(c.Bin)
		}
	}
}

// ClassOf returns the class a currently-free block id was filed under.
func (idx *Index) ClassOf(id block.ID) sizeclass.Class {
	return sizeclass.Down(idx.reg.Size(id))
}

// Head returns the head of the free list for class c, or block.Nil.
func (idx *Index) Head(c sizeclass.Class) block.ID {
	return idx.bins[c.Flat]
}

// ErrOutOfFreeBlock is returned by FindFit when no class at or above the
// request is populated.
type ErrOutOfFreeBlock struct{}

func (ErrOutOfFreeBlock) Error() string { return "freelist: out of free blocks" }

// FindFit implements the §4.3 bitmap search: it returns the smallest
// populated class able to satisfy size, in O(1) regardless of pool state.
func (idx *Index) FindFit(size uint64) (sizeclass.Class, error) {
	c := sizeclass.Up(size)

	masked := idx.subBinBitmap[c.Bin] & (^uint32(0) << uint(c.SubBin))
	if masked != 0 {
		c.SubBin = bits.TrailingZeros32(masked)
		c.Flat = c.Bin*sizeclass.SubBinCount + c.SubBin
		return c, nil
	}

	binMasked := idx.binBitmap & (^uint64(0) << uint(c.Bin+1))
	if binMasked == 0 {
		return sizeclass.Class{}, ErrOutOfFreeBlock{}
	}
	c.Bin = bits.TrailingZeros64(binMasked)
	c.SubBin = bits.TrailingZeros32(idx.subBinBitmap[c.Bin])
	c.Flat = c.Bin*sizeclass.SubBinCount + c.SubBin
	return c, nil
}
