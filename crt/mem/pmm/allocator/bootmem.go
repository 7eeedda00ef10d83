// Package allocator hands out physical page frames from the memory map that
// the firmware returned when boot services were exited.
package allocator

import (
	"io"

	"github.com/rdvdev2/posix-uefi-cmake/crt"
	"github.com/rdvdev2/posix-uefi-cmake/crt/efi"
	"github.com/rdvdev2/posix-uefi-cmake/crt/kfmt"
	"github.com/rdvdev2/posix-uefi-cmake/crt/mem"
	"github.com/rdvdev2/posix-uefi-cmake/crt/mem/pmm"
)

var (
	errBootAllocOutOfMemory = &crt.Error{Module: "pmm", Message: "out of memory"}
	errBootAllocBadCount    = &crt.Error{Module: "pmm", Message: "page count must be positive"}
)

// BootMemAllocator implements a rudimentary physical memory allocator for
// images that have taken over the machine.
//
// The allocator uses the memory map captured by ExitBootServices to detect
// free memory blocks and returns the next available run of free frames.
// Allocations are tracked via an internal counter that contains the last
// allocated frame, so allocated pages can never be freed.
type BootMemAllocator struct {
	memMap *efi.MemoryMap

	// allocCount tracks the total number of allocated frames.
	allocCount uint64

	// lastAllocFrame tracks the last allocated frame number.
	lastAllocFrame pmm.Frame
}

// New returns an allocator that serves frames from the usable regions of m.
func New(m *efi.MemoryMap) *BootMemAllocator {
	return &BootMemAllocator{memMap: m}
}

// AllocCount returns the number of frames handed out so far.
func (alloc *BootMemAllocator) AllocCount() uint64 {
	return alloc.allocCount
}

// AllocFrame scans the usable memory regions and reserves the next available
// free frame.
//
// AllocFrame returns an error if no more memory can be allocated.
func (alloc *BootMemAllocator) AllocFrame() (pmm.Frame, *crt.Error) {
	return alloc.allocRun(1)
}

// AllocPages reserves count physically contiguous pages and returns the
// address of the first one.
func (alloc *BootMemAllocator) AllocPages(count uint64) (uintptr, *crt.Error) {
	if count == 0 {
		return 0, errBootAllocBadCount
	}

	frame, err := alloc.allocRun(count)
	if err != nil {
		return 0, err
	}
	return frame.Address(), nil
}

func (alloc *BootMemAllocator) allocRun(count uint64) (pmm.Frame, *crt.Error) {
	var (
		err        = errBootAllocOutOfMemory
		firstFrame = pmm.InvalidFrame
	)

	alloc.memMap.Visit(func(region *efi.MemoryDescriptor) bool {
		// Ignore reserved regions and regions smaller than a single page
		if !region.Type.Usable() || region.NumberOfPages == 0 {
			return true
		}

		// Descriptors are page-aligned by definition but round anyway;
		// some firmware reports odd start addresses for legacy regions
		pageSizeMinus1 := uint64(mem.PageSize - 1)
		regionEnd := region.PhysicalStart + uint64(region.Size())
		regionStartFrame := pmm.Frame(((region.PhysicalStart + pageSizeMinus1) & ^pageSizeMinus1) >> mem.PageShift)
		regionEndFrame := pmm.Frame((regionEnd & ^pageSizeMinus1)>>mem.PageShift) - 1
		if regionEndFrame < regionStartFrame {
			return true
		}

		// Ignore already allocated regions
		if alloc.allocCount != 0 && alloc.lastAllocFrame >= regionEndFrame {
			return true
		}

		// The last allocated frame will be either pointing to a
		// previous region or will point inside this region. In the
		// first case (or if this is the first allocation) we select
		// the start frame for this region. In the latter case we
		// select the next available frame.
		candidate := regionStartFrame
		if alloc.allocCount != 0 && alloc.lastAllocFrame >= regionStartFrame {
			candidate = alloc.lastAllocFrame + 1
		}

		// The run must fit in this region; the tail of the region is
		// skipped if it does not
		if uint64(regionEndFrame-candidate)+1 < count {
			return true
		}

		firstFrame = candidate
		err = nil
		return false
	})

	if err != nil {
		return pmm.InvalidFrame, err
	}

	alloc.lastAllocFrame = firstFrame + pmm.Frame(count) - 1
	alloc.allocCount += count
	return firstFrame, nil
}

// PrintMemoryMap writes the memory map and the amount of usable memory to w.
func (alloc *BootMemAllocator) PrintMemoryMap(w io.Writer) {
	kfmt.Fprintf(w, "[pmm] system memory map:\n")
	var totalFree mem.Size
	alloc.memMap.Visit(func(region *efi.MemoryDescriptor) bool {
		kfmt.Fprintf(w, "\t[0x%10x - 0x%10x], size: %10d, type: %s\n", region.PhysicalStart, region.PhysicalStart+uint64(region.Size()), uint64(region.Size()), region.Type.String())

		if region.Type.Usable() {
			totalFree += region.Size()
		}
		return true
	})
	kfmt.Fprintf(w, "[pmm] free memory: %dKb\n", uint64(totalFree/mem.Kb))
}
