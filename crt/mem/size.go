package mem

// Size represents a memory block size in bytes.
type Size uint64

// Common memory block sizes.
const (
	Byte Size = 1
	Kb        = 1024 * Byte
	Mb        = 1024 * Kb
	Gb        = 1024 * Mb
)

const (
	// PointerShift is equal to log2(unsafe.Sizeof(uintptr)). UEFI images
	// are always built for a 64-bit pointer size on x86-64.
	PointerShift = 3

	// PageShift is equal to log2(PageSize). UEFI uses 4K pages for
	// AllocatePages and for the NumberOfPages field of memory descriptors
	// regardless of the page size used by the CPU.
	PageShift = 12

	// PageSize defines the firmware page size in bytes.
	PageSize = Size(1 << PageShift)
)

// Pages returns the number of pages needed to hold a block of size s.
func (s Size) Pages() uint64 {
	return uint64((s + PageSize - 1) >> PageShift)
}

// AlignUp rounds addr up to the next multiple of align which must be a power
// of 2.
func AlignUp(addr, align uintptr) uintptr {
	return (addr + align - 1) &^ (align - 1)
}
