package sim

import (
	"github.com/rdvdev2/posix-uefi-cmake/crt/abi"
	"github.com/rdvdev2/posix-uefi-cmake/crt/efi"
	"github.com/rdvdev2/posix-uefi-cmake/crt/kfmt"
)

// getTime(*time, *capabilities)
func (fw *Firmware) getTime(args abi.Args) uint64 {
	out := uintptr(args.Arg(0))
	if out == 0 {
		return status(efi.InvalidParameter)
	}

	efi.WriteTime(out, efi.TimeOf(fw.opts.Clock()))
	return status(efi.Success)
}

// resetSystem(type, status, dataSize, *data)
func (fw *Firmware) resetSystem(args abi.Args) uint64 {
	fw.resetCalled = true
	kfmt.Fprintf(logger, "reset requested (type %d, status 0x%x)\n", args.Arg(0), args.Arg(1))
	return status(efi.Success)
}
