package efi

import (
	"unsafe"

	"github.com/rdvdev2/posix-uefi-cmake/crt/mem"
)

// MemoryType defines the type of a memory region or pool allocation.
type MemoryType uint32

// Memory types.
const (
	ReservedMemoryType MemoryType = iota
	LoaderCode
	LoaderData
	BootServicesCode
	BootServicesData
	RuntimeServicesCode
	RuntimeServicesData
	ConventionalMemory
	UnusableMemory
	ACPIReclaimMemory
	ACPIMemoryNVS
	MemoryMappedIO
	MemoryMappedIOPortSpace
	PalCode
	PersistentMemory

	// Any value >= memUnknown is reported as reserved.
	memUnknown
)

// String implements fmt.Stringer for MemoryType.
func (t MemoryType) String() string {
	switch t {
	case LoaderCode:
		return "loader code"
	case LoaderData:
		return "loader data"
	case BootServicesCode:
		return "boot services code"
	case BootServicesData:
		return "boot services data"
	case RuntimeServicesCode:
		return "runtime services code"
	case RuntimeServicesData:
		return "runtime services data"
	case ConventionalMemory:
		return "available"
	case UnusableMemory:
		return "unusable"
	case ACPIReclaimMemory:
		return "ACPI (reclaimable)"
	case ACPIMemoryNVS:
		return "NVS"
	case MemoryMappedIO:
		return "MMIO"
	case MemoryMappedIOPortSpace:
		return "MMIO port space"
	case PalCode:
		return "PAL code"
	case PersistentMemory:
		return "persistent"
	default:
		return "reserved"
	}
}

// Usable reports whether a region of this type can be reclaimed by the
// image once boot services have been exited.
func (t MemoryType) Usable() bool {
	switch t {
	case ConventionalMemory, BootServicesCode, BootServicesData:
		return true
	default:
		return false
	}
}

// MemoryDescriptor mirrors EFI_MEMORY_DESCRIPTOR.
type MemoryDescriptor struct {
	Type          MemoryType
	_             uint32
	PhysicalStart uint64
	VirtualStart  uint64
	NumberOfPages uint64
	Attribute     uint64
}

// Size returns the length of the described region.
func (d *MemoryDescriptor) Size() mem.Size {
	return mem.Size(d.NumberOfPages << mem.PageShift)
}

// MemoryDescriptorVisitor is invoked by MemoryMap.Visit for each descriptor.
// The visitor must return true to continue or false to abort the scan.
type MemoryDescriptorVisitor func(desc *MemoryDescriptor) bool

// MemoryMap is a snapshot of the firmware memory map returned by
// GetMemoryMap.
type MemoryMap struct {
	// Buf holds the descriptors. Only the first Size bytes are valid.
	Buf  []byte
	Size uintptr

	// Key identifies this snapshot for ExitBootServices.
	Key uint64

	// DescriptorSize is the stride between descriptors; it may be larger
	// than the size of MemoryDescriptor.
	DescriptorSize    uintptr
	DescriptorVersion uint32
}

// Len returns the number of descriptors in the map.
func (m *MemoryMap) Len() int {
	if m == nil || m.DescriptorSize == 0 {
		return 0
	}
	return int(m.Size / m.DescriptorSize)
}

// Visit invokes visitor for each descriptor in the map.
func (m *MemoryMap) Visit(visitor MemoryDescriptorVisitor) {
	if m.Len() == 0 {
		return
	}

	curPtr := mem.AddrOf(m.Buf)
	endPtr := curPtr + uintptr(m.Len())*m.DescriptorSize
	for ; curPtr < endPtr; curPtr += m.DescriptorSize {
		desc := *(*MemoryDescriptor)(unsafe.Pointer(curPtr))

		// Report unknown types as reserved
		if desc.Type >= memUnknown {
			desc.Type = ReservedMemoryType
		}

		if !visitor(&desc) {
			return
		}
	}
}
