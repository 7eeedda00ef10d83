package main

import (
	"os"

	"github.com/rdvdev2/posix-uefi-cmake/crt/abi"
	"github.com/rdvdev2/posix-uefi-cmake/crt/efi"
	"github.com/rdvdev2/posix-uefi-cmake/crt/mem"
	"github.com/rdvdev2/posix-uefi-cmake/crt/reloc"
	"github.com/rdvdev2/posix-uefi-cmake/crt/start"
	"github.com/rdvdev2/posix-uefi-cmake/firmware/sim"
)

// mapImage loads the PIE image at path into firmware pool memory the way a
// boot loader would and returns the GNU style entry arguments for it.
// Relocation is left to start.Start.
func mapImage(fw *sim.Firmware, path string) (start.Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return start.Entry{}, err
	}
	defer f.Close()

	bs := efi.NewSystemTable(fw.SystemTable(), fw.Bridge(abi.Native)).BootServices()
	pageSize := uintptr(mem.PageSize)
	img, err := reloc.Load(f, func(size uintptr) (uintptr, error) {
		addr, err := bs.AllocatePool(efi.LoaderCode, uint64(size+pageSize-1))
		if err != nil {
			return 0, err
		}
		return mem.AlignUp(addr, pageSize), nil
	})
	if err != nil {
		return start.Entry{}, err
	}

	fw.SetImage(img.Base, uint64(img.Size))
	return start.EntryGNU(img.Base, img.Dynamic, fw.SystemTable(), fw.ImageHandle()), nil
}
