// Package memory implements the auxiliary ref-counted, mark-and-sweep heap
// described in spec §4.8.
//
// No retrieved example repo models a tagged, refcounted object heap — the
// closest analogues treat memory as raw, untyped bytes (a CPU's RAM, a
// device-mapped register file). This package is therefore built from the
// spec text alone, on the standard library only: a plain slice of blocks
// plus a free list, the same flat-storage shape every retrieved VM/emulator
// uses for its own stacks and register files, without a dedicated
// collections library backing it.
//
// A Heap is a sparse vector of Blocks addressed by index ("address"). Each
// block tracks a reference count and a set of child addresses it embeds
// (for compound payloads that reference other blocks). Deallocation can
// happen two ways: eagerly, when Release drops a refcount to zero, or via
// Collect, a mark-and-sweep pass that also catches reference cycles
// refcounting alone can't break.
package memory

import (
	"fmt"
	"time"

	"github.com/miniscript-lang/miniscript/pkg/vmerrors"
)

// Block is one heap cell.
type Block struct {
	Allocated bool
	Kind      int
	Payload   []byte
	RefCount  int
	Marked    bool
	Children  []int // addresses this block's payload embeds
}

// Statistics summarizes heap health, reported by the debugger's memory view.
type Statistics struct {
	Total              int
	Used               int
	Free               int
	Allocated          int
	FreeBlocks         int
	GCRuns             int
	GCTime             time.Duration
	FragmentationRatio float64
}

// Heap is the allocator. Not safe for concurrent use.
type Heap struct {
	blocks      []Block
	freeList    []int
	roots       map[int]bool
	allocCount  int
	gcThreshold int
	stats       Statistics
}

// New creates an empty heap with room for initialSize blocks reserved up
// front and a collection cycle triggered every gcThreshold allocations.
func New(initialSize, gcThreshold int) *Heap {
	h := &Heap{
		blocks:      make([]Block, 0, initialSize),
		roots:       make(map[int]bool),
		gcThreshold: gcThreshold,
	}
	return h
}

// Allocate reserves a block for payload, reusing a free block of sufficient
// capacity when one exists. It triggers a collection cycle once the
// allocation counter reaches gcThreshold. The heap itself has no size
// ceiling, so the returned error is always nil; a caller that enforces a
// limit raises OutOfMemory itself (see OutOfMemory below).
func (h *Heap) Allocate(kind int, payload []byte, children []int) (int, error) {
	h.allocCount++
	if h.gcThreshold > 0 && h.allocCount >= h.gcThreshold {
		h.Collect()
		h.allocCount = 0
	}

	if addr, ok := h.reuseFreeBlock(kind, payload, children); ok {
		return addr, nil
	}

	addr := len(h.blocks)
	h.blocks = append(h.blocks, Block{
		Allocated: true,
		Kind:      kind,
		Payload:   payload,
		RefCount:  1,
		Children:  children,
	})
	return addr, nil
}

func (h *Heap) reuseFreeBlock(kind int, payload []byte, children []int) (int, bool) {
	for i, addr := range h.freeList {
		if cap(h.blocks[addr].Payload) >= len(payload) {
			h.freeList = append(h.freeList[:i], h.freeList[i+1:]...)
			h.blocks[addr] = Block{
				Allocated: true,
				Kind:      kind,
				Payload:   payload,
				RefCount:  1,
				Children:  children,
			}
			return addr, true
		}
	}
	return 0, false
}

// Retain increments addr's reference count.
func (h *Heap) Retain(addr int) error {
	if err := h.checkAddr(addr); err != nil {
		return err
	}
	h.blocks[addr].RefCount++
	return nil
}

// Release decrements addr's reference count, deallocating the block when it
// reaches zero.
func (h *Heap) Release(addr int) error {
	if err := h.checkAddr(addr); err != nil {
		return err
	}
	b := &h.blocks[addr]
	b.RefCount--
	if b.RefCount <= 0 {
		h.deallocate(addr)
	}
	return nil
}

func (h *Heap) deallocate(addr int) {
	h.blocks[addr].Allocated = false
	h.blocks[addr].Children = nil
	h.freeList = append(h.freeList, addr)
}

func (h *Heap) checkAddr(addr int) error {
	if addr < 0 || addr >= len(h.blocks) || !h.blocks[addr].Allocated {
		return fmt.Errorf("invalid heap address %d", addr)
	}
	return nil
}

// AddRoot registers addr as a GC root.
func (h *Heap) AddRoot(addr int) { h.roots[addr] = true }

// RemoveRoot unregisters addr as a GC root.
func (h *Heap) RemoveRoot(addr int) { delete(h.roots, addr) }

// CollectResult reports one Collect call's outcome.
type CollectResult struct {
	Freed   int
	Elapsed time.Duration
}

// Collect runs one mark-and-sweep cycle: clear marks, mark everything
// reachable from the root set and from any block whose refcount is
// positive, then sweep every allocated-but-unmarked block.
func (h *Heap) Collect() CollectResult {
	start := time.Now()

	for i := range h.blocks {
		h.blocks[i].Marked = false
	}

	for addr := range h.roots {
		h.mark(addr)
	}
	for addr, b := range h.blocks {
		if b.Allocated && b.RefCount > 0 {
			h.mark(addr)
		}
	}

	freed := 0
	for addr, b := range h.blocks {
		if b.Allocated && !b.Marked {
			h.deallocate(addr)
			freed++
		}
	}

	h.stats.GCRuns++
	elapsed := time.Since(start)
	h.stats.GCTime += elapsed
	return CollectResult{Freed: freed, Elapsed: elapsed}
}

func (h *Heap) mark(addr int) {
	if addr < 0 || addr >= len(h.blocks) {
		return
	}
	b := &h.blocks[addr]
	if !b.Allocated || b.Marked {
		return
	}
	b.Marked = true
	for _, child := range b.Children {
		h.mark(child)
	}
}

// Compact moves every allocated block into a contiguous prefix of the
// address space, rewriting child references and the root set to match, and
// discards the free list (everything is now packed with no gaps).
func (h *Heap) Compact() {
	remap := make(map[int]int, len(h.blocks))
	compacted := make([]Block, 0, len(h.blocks))
	for addr, b := range h.blocks {
		if b.Allocated {
			remap[addr] = len(compacted)
			compacted = append(compacted, b)
		}
	}
	for i := range compacted {
		children := make([]int, len(compacted[i].Children))
		for j, child := range compacted[i].Children {
			children[j] = remap[child]
		}
		compacted[i].Children = children
	}

	newRoots := make(map[int]bool, len(h.roots))
	for addr := range h.roots {
		if newAddr, ok := remap[addr]; ok {
			newRoots[newAddr] = true
		}
	}

	h.blocks = compacted
	h.roots = newRoots
	h.freeList = nil
}

// OutOfMemory constructs the runtime fault a caller raises when Allocate
// cannot make room even after a collection (the heap package itself never
// raises this — callers decide their own ceiling, e.g. a configured max
// heap size, and call this when Allocate's result still doesn't fit it).
func OutOfMemory(message string) *vmerrors.RuntimeError {
	return vmerrors.NewRuntimeError(vmerrors.OutOfMemory, message, nil)
}

// Stats reports current heap statistics.
func (h *Heap) Stats() Statistics {
	used, allocated := 0, 0
	for _, b := range h.blocks {
		if b.Allocated {
			allocated++
			used += len(b.Payload)
		}
	}
	s := h.stats
	s.Total = len(h.blocks)
	s.Used = used
	s.Allocated = allocated
	s.FreeBlocks = len(h.freeList)
	s.Free = s.Total - s.Allocated
	if s.Total > 0 {
		s.FragmentationRatio = float64(s.FreeBlocks) / float64(s.Total)
	}
	return s
}
