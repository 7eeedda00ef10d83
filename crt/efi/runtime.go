package efi

import (
	"github.com/rdvdev2/posix-uefi-cmake/crt/abi"
	"github.com/rdvdev2/posix-uefi-cmake/crt/mem"
)

// RuntimeServices is a view over EFI_RUNTIME_SERVICES. Runtime services
// remain usable after boot services have been exited.
type RuntimeServices struct {
	addr   uintptr
	bridge *abi.Bridge
}

// Addr returns the address of the table.
func (rt *RuntimeServices) Addr() uintptr {
	return rt.addr
}

// GetTime returns the current time of the platform clock.
func (rt *RuntimeServices) GetTime() (Time, error) {
	buf := mem.NewBuffer(TimeSize)
	fn := mem.ReadPtr(rt.addr + RuntimeGetTime)

	if err := Status(rt.bridge.Call2(fn, uint64(mem.AddrOf(buf)), 0)).Err(); err != nil {
		return Time{}, err
	}
	return ReadTime(mem.AddrOf(buf)), nil
}

// ResetSystem resets the platform. It only returns if the firmware rejects
// the request.
func (rt *RuntimeServices) ResetSystem(typ ResetType, status Status) error {
	fn := mem.ReadPtr(rt.addr + RuntimeResetSystem)
	return Status(rt.bridge.Call4(fn, uint64(typ), uint64(status), 0, 0)).Err()
}
