// Copyright 2024 healer project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package prog

import (
	"math/rand"
	"sort"
)

// AllocGranule is the minimum unit free blocks are tracked/split at.
const AllocGranule uint64 = 64

// DefaultMemSize is the default span a per-program Allocator manages.
const DefaultMemSize uint64 = 16 << 20

type freeBlock struct {
	addr uint64
	size uint64
}

// Allocator is a dummy address-space allocator: it hands out addresses
// for pointer/buffer arguments without backing them by real memory, so
// the generator/mutator can reason about pointer placement (overlap,
// alignment) the same way a real allocator would. It tracks free blocks
// as a sorted list and restarts (resets to a single free block spanning
// the whole span) whenever a request cannot be satisfied, trading
// fragmentation realism for simplicity.
type Allocator struct {
	freeBlocks []freeBlock
	lastMax    int
	size       uint64
}

// NewAllocator creates an Allocator managing sz bytes, rounded up to a
// whole number of granules.
func NewAllocator(sz uint64) *Allocator {
	sz = alignUp(sz, AllocGranule)
	return &Allocator{freeBlocks: []freeBlock{{0, sz}}, size: sz}
}

func alignUp(v, align uint64) uint64 {
	if align == 0 {
		return v
	}
	return (v + align - 1) / align * align
}

// Restore resets the allocator to a single free block covering its
// entire managed span, discarding all outstanding allocations.
func (a *Allocator) Restore() {
	*a = *NewAllocator(a.size)
}

// Alloc returns an address for a size-byte, align-byte-aligned
// allocation. Restarts the allocator (see Restore) if no free block can
// satisfy the request even after re-scanning for the largest block.
func (a *Allocator) Alloc(size, align uint64) uint64 {
	size = alignUp(size, AllocGranule)
	if align == 0 {
		align = 1
	}
	size = alignUp(size, align)
	if size >= a.size {
		size = a.size - AllocGranule
	}

	if addr, ok := a.tryAlloc(size, align); ok {
		return addr
	}
	if a.updateMax() {
		if addr, ok := a.tryAlloc(size, align); ok {
			return addr
		}
	}
	*a = *NewAllocator(a.size)
	addr, ok := a.tryAlloc(size, align)
	if !ok {
		panic("prog: allocator: cannot satisfy allocation after restart")
	}
	return addr
}

func (a *Allocator) tryAlloc(size, align uint64) (uint64, bool) {
	blockStart, blockSize := a.freeBlocks[a.lastMax].addr, a.freeBlocks[a.lastMax].size
	blockEnd := blockStart + blockSize
	alignedAddr := alignUp(blockStart, align)
	allocEnd := alignedAddr + size

	if allocEnd > blockEnd {
		return 0, false
	}

	if allocEnd+AllocGranule > blockEnd {
		a.freeBlocks = append(a.freeBlocks[:a.lastMax], a.freeBlocks[a.lastMax+1:]...)
		a.updateMax()
	} else {
		a.freeBlocks[a.lastMax] = freeBlock{allocEnd, blockEnd - allocEnd}
	}
	return alignedAddr, true
}

func (a *Allocator) updateMax() bool {
	if len(a.freeBlocks) == 0 {
		*a = *NewAllocator(a.size)
		return true
	}
	var max uint64
	maxIdx := 0
	for i, b := range a.freeBlocks {
		if b.size > max {
			max = b.size
			maxIdx = i
		}
	}
	updated := a.lastMax != maxIdx
	a.lastMax = maxIdx
	return updated
}

// NoteAlloc marks [addr, addr+size) as allocated, splitting or removing
// the free block that contains it. Reports whether the region was
// actually free (and thus claimable) to begin with; used when replaying
// a deserialized program's existing pointer placements into a fresh
// Allocator so later generation/mutation doesn't hand out overlapping
// addresses.
func (a *Allocator) NoteAlloc(addr, size uint64) bool {
	idx := sort.Search(len(a.freeBlocks), func(i int) bool { return a.freeBlocks[i].addr >= addr })
	if idx < len(a.freeBlocks) && a.freeBlocks[idx].addr == addr {
		blockStart, blockSize := a.freeBlocks[idx].addr, a.freeBlocks[idx].size
		if blockSize < size {
			return false
		}
		if blockSize < size+AllocGranule {
			a.freeBlocks = append(a.freeBlocks[:idx], a.freeBlocks[idx+1:]...)
			a.updateMax()
		} else {
			a.freeBlocks[idx] = freeBlock{blockStart + size, blockSize - size}
		}
		return true
	}
	if idx == 0 {
		return false
	}
	i := idx - 1
	blockStart, blockSize := a.freeBlocks[i].addr, a.freeBlocks[i].size
	blockEnd := blockStart + blockSize
	allocEnd := addr + size
	if blockEnd < allocEnd {
		return false
	}
	if addr-blockStart >= AllocGranule {
		a.freeBlocks[i] = freeBlock{blockStart, addr - blockStart}
		if blockEnd-allocEnd >= AllocGranule {
			tail := freeBlock{allocEnd, blockEnd - allocEnd}
			a.freeBlocks = append(a.freeBlocks, freeBlock{})
			copy(a.freeBlocks[i+2:], a.freeBlocks[i+1:])
			a.freeBlocks[i+1] = tail
		}
	} else {
		if blockEnd-allocEnd >= AllocGranule {
			a.freeBlocks[i] = freeBlock{allocEnd, blockEnd - allocEnd}
		} else {
			a.freeBlocks = append(a.freeBlocks[:i], a.freeBlocks[i+1:]...)
			a.updateMax()
		}
	}
	return true
}

// VmaAllocator picks page ranges for Vma arguments, clustering new
// allocations near previously used pages (as real workloads tend to
// reuse nearby mappings) while occasionally probing the low or high end
// of the address space.
type VmaAllocator struct {
	pageNum uint64
	used    []uint64
	usedSet map[uint64]bool
}

// NewVmaAllocator creates a VmaAllocator managing pageNum pages.
func NewVmaAllocator(pageNum uint64) *VmaAllocator {
	return &VmaAllocator{pageNum: pageNum, usedSet: make(map[uint64]bool)}
}

// Alloc returns the starting page index of a num-page range.
func (v *VmaAllocator) Alloc(rng *rand.Rand, num uint64) uint64 {
	var page uint64
	if len(v.used) == 0 || rng.Intn(5) == 0 {
		page = uint64(rng.Intn(4))
		if rng.Intn(100) != 0 {
			page = v.pageNum - page - num
		}
	} else {
		page = v.used[rng.Intn(len(v.used))]
		if num > 1 && rng.Intn(2) == 0 {
			off := uint64(rng.Int63n(int64(num)))
			if off > page {
				off = page
			}
			page -= off
		}
		if page+num > v.pageNum {
			page = v.pageNum - num
		}
	}
	v.NoteAlloc(page, num)
	return page
}

// NoteAlloc marks [pageIdx, pageIdx+num) as used.
func (v *VmaAllocator) NoteAlloc(pageIdx, num uint64) {
	for p := pageIdx; p < pageIdx+num; p++ {
		if !v.usedSet[p] {
			v.usedSet[p] = true
			v.used = append(v.used, p)
		}
	}
}
