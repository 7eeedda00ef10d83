package sim

import (
	"github.com/rdvdev2/posix-uefi-cmake/crt/abi"
	"github.com/rdvdev2/posix-uefi-cmake/crt/efi"
	"github.com/rdvdev2/posix-uefi-cmake/crt/mem"
)

// descriptorSize is larger than EFI_MEMORY_DESCRIPTOR, as on most real
// firmware, so consumers must honor the reported stride.
const descriptorSize = 48

// bootDataPages is the size of the backed boot services data region.
const bootDataPages = 4

// region is one memory map entry.
type region struct {
	typ   efi.MemoryType
	start uint64
	pages uint64
	attr  uint64
}

const (
	attrWB      = 0x8
	attrRuntime = 1 << 63
)

// buildMemoryMap reserves the backed regions and assembles the map. Usable
// regions are carved from the arena so memory handed out after teardown can
// really be written.
func (fw *Firmware) buildMemoryMap() error {
	backed := func(pages uint64) (uint64, error) {
		raw, err := fw.calloc(int((pages + 1) << mem.PageShift))
		if err != nil {
			return 0, err
		}
		return uint64(mem.AlignUp(raw, uintptr(mem.PageSize))), nil
	}

	conv, err := backed(fw.opts.ConventionalPages)
	if err != nil {
		return err
	}
	bsData, err := backed(bootDataPages)
	if err != nil {
		return err
	}

	fw.regions = []region{
		{efi.LoaderCode, 0x100000, 16, attrWB},
		{efi.ConventionalMemory, conv, fw.opts.ConventionalPages, attrWB},
		{efi.BootServicesData, bsData, bootDataPages, attrWB},
		{efi.RuntimeServicesData, uint64(fw.system) &^ uint64(mem.PageSize-1), 1, attrWB | attrRuntime},
		{efi.MemoryMappedIO, 0xfee00000, 1, attrRuntime},
	}
	return nil
}

// getMemoryMap(*size, *map, *key, *descriptorSize, *descriptorVersion)
func (fw *Firmware) getMemoryMap(args abi.Args) uint64 {
	sizePtr := uintptr(args.Arg(0))
	buf := uintptr(args.Arg(1))
	if sizePtr == 0 {
		return status(efi.InvalidParameter)
	}

	need := uint64(len(fw.regions) * descriptorSize)
	if descSize := uintptr(args.Arg(3)); descSize != 0 {
		mem.WriteUint64(descSize, descriptorSize)
	}

	if mem.ReadUint64(sizePtr) < need || buf == 0 {
		mem.WriteUint64(sizePtr, need)
		return status(efi.BufferTooSmall)
	}

	mem.Memset(buf, 0, uintptr(need))
	for i, r := range fw.regions {
		desc := buf + uintptr(i*descriptorSize)
		mem.WriteUint32(desc, uint32(r.typ))
		mem.WriteUint64(desc+8, r.start)
		mem.WriteUint64(desc+16, r.start)
		mem.WriteUint64(desc+24, r.pages)
		mem.WriteUint64(desc+32, r.attr)
	}

	mem.WriteUint64(sizePtr, need)
	if key := uintptr(args.Arg(2)); key != 0 {
		mem.WriteUint64(key, fw.mapKey)
	}
	if ver := uintptr(args.Arg(4)); ver != 0 {
		mem.WriteUint32(ver, 1)
	}
	return status(efi.Success)
}
