// Package reloc applies the self-relocation step of a position independent
// UEFI image and loads ELF64 images into memory for hosted runs.
package reloc

import (
	"debug/elf"

	"github.com/rdvdev2/posix-uefi-cmake/crt/mem"
)

const (
	// dynEntrySize is the size of an Elf64_Dyn record.
	dynEntrySize = 16

	// relaInfoOffset is the offset of r_info inside an Elf64_Rela record.
	relaInfoOffset = 8
)

var (
	// The following functions are used by tests to mock memory access.
	readWordFn  = mem.ReadUint64
	writeWordFn = mem.WriteUint64
)

// table describes the relocation table advertised by a dynamic section.
type table struct {
	addr    uintptr
	size    uint64
	entSize uint64
}

// scanDynamic walks the Elf64_Dyn array at dynamic until DT_NULL and collects
// the DT_RELA, DT_RELASZ and DT_RELAENT values.
func scanDynamic(loadBase, dynamic uintptr) table {
	var t table

	for entry := dynamic; ; entry += dynEntrySize {
		tag := elf.DynTag(int64(readWordFn(entry)))
		val := readWordFn(entry + 8)

		switch tag {
		case elf.DT_NULL:
			return t
		case elf.DT_RELA:
			t.addr = loadBase + uintptr(val)
		case elf.DT_RELASZ:
			t.size = val
		case elf.DT_RELAENT:
			t.entSize = val
		}
	}
}

// Apply performs the fixup of an image loaded at loadBase whose dynamic
// section lives at dynamic. It walks the RELA table and, at the first
// R_X86_64_RELATIVE entry, adds loadBase to the word at loadBase+r_offset.
// Processing stops after that entry. The entry addend is not consulted.
//
// Apply returns the patched address and true if a fixup was written.
func Apply(loadBase, dynamic uintptr) (uintptr, bool) {
	t := scanDynamic(loadBase, dynamic)
	if t.addr == 0 || t.entSize == 0 {
		return 0, false
	}

	for rel, left := t.addr, t.size; left > 0; rel += uintptr(t.entSize) {
		info := readWordFn(rel + relaInfoOffset)
		if elf.R_X86_64(elf.R_TYPE64(info)) == elf.R_X86_64_RELATIVE {
			target := loadBase + uintptr(readWordFn(rel))
			writeWordFn(target, readWordFn(target)+uint64(loadBase))
			return target, true
		}

		if left < t.entSize {
			break
		}
		left -= t.entSize
	}

	return 0, false
}
