package sim

import (
	"github.com/rdvdev2/posix-uefi-cmake/crt/abi"
	"github.com/rdvdev2/posix-uefi-cmake/crt/efi"
	"github.com/rdvdev2/posix-uefi-cmake/crt/kfmt"
	"github.com/rdvdev2/posix-uefi-cmake/crt/mem"
	"github.com/samber/lo"
	"modernc.org/memory"
)

// allocatePool(type, size, *buffer)
func (fw *Firmware) allocatePool(args abi.Args) uint64 {
	memType := efi.MemoryType(args.Arg(0))
	size := args.Arg(1)
	out := uintptr(args.Arg(2))

	if out == 0 || memType == efi.ConventionalMemory || memType == efi.PersistentMemory {
		return status(efi.InvalidParameter)
	}
	if size == 0 {
		size = 1
	}

	addr, err := fw.arena.UintptrCalloc(int(size))
	if err != nil || addr == 0 {
		return status(efi.OutOfResources)
	}

	fw.pools[addr] = memType
	mem.WriteUint64(out, uint64(addr))
	return status(efi.Success)
}

// freePool(buffer)
func (fw *Firmware) freePool(args abi.Args) uint64 {
	addr := uintptr(args.Arg(0))
	if _, ok := fw.pools[addr]; !ok {
		return status(efi.InvalidParameter)
	}

	delete(fw.pools, addr)
	if err := fw.arena.UintptrFree(addr); err != nil {
		return status(efi.InvalidParameter)
	}
	return status(efi.Success)
}

// PoolSize returns the usable size of the pool allocation at addr or 0 if
// addr is not a live pool allocation.
func (fw *Firmware) PoolSize(addr uintptr) int {
	if _, ok := fw.pools[addr]; !ok {
		return 0
	}
	return memory.UintptrUsableSize(addr)
}

// checkEvent(event)
func (fw *Firmware) checkEvent(args abi.Args) uint64 {
	if efi.Event(args.Arg(0)) != fw.waitForKey {
		return status(efi.InvalidParameter)
	}
	if fw.peekKey() == nil {
		return status(efi.NotReady)
	}
	return status(efi.Success)
}

// handleProtocol(handle, *guid, *interface)
func (fw *Firmware) handleProtocol(args abi.Args) uint64 {
	iface, st := fw.lookupProtocol(efi.Handle(args.Arg(0)), uintptr(args.Arg(1)))
	if out := uintptr(args.Arg(2)); out != 0 {
		mem.WriteUint64(out, uint64(iface))
	}
	return status(st)
}

// openProtocol(handle, *guid, *interface, agent, controller, attributes)
func (fw *Firmware) openProtocol(args abi.Args) uint64 {
	if args.Arg(1) != 0 {
		fw.opened = append(fw.opened, efi.ReadGUID(uintptr(args.Arg(1))))
	}

	attrs := args.Arg(5)
	if attrs != efi.OpenProtocolGetProtocol && attrs != efi.OpenProtocolByHandleProtocol && attrs != efi.OpenProtocolTestProtocol {
		return status(efi.Unsupported)
	}
	if _, ok := fw.handles[efi.Handle(args.Arg(3))]; !ok {
		return status(efi.InvalidParameter)
	}

	iface, st := fw.lookupProtocol(efi.Handle(args.Arg(0)), uintptr(args.Arg(1)))
	if out := uintptr(args.Arg(2)); out != 0 && attrs != efi.OpenProtocolTestProtocol {
		mem.WriteUint64(out, uint64(iface))
	}
	return status(st)
}

func (fw *Firmware) lookupProtocol(h efi.Handle, guidAddr uintptr) (uintptr, efi.Status) {
	if guidAddr == 0 {
		return 0, efi.InvalidParameter
	}

	protocols, ok := fw.handles[h]
	if !ok {
		return 0, efi.InvalidParameter
	}

	iface, ok := protocols[efi.ReadGUID(guidAddr)]
	if !ok {
		return 0, efi.Unsupported
	}
	return iface, efi.Success
}

// Protocols returns the GUIDs of the protocols installed on h.
func (fw *Firmware) Protocols(h efi.Handle) []efi.GUID {
	return lo.Keys(fw.handles[h])
}

// exit(image, status, dataSize, *data)
func (fw *Firmware) exit(args abi.Args) uint64 {
	if efi.Handle(args.Arg(0)) != fw.image {
		return status(efi.InvalidParameter)
	}

	fw.exitCalled = true
	fw.exitStatus = efi.Status(args.Arg(1))
	return status(efi.Success)
}

// exitBootServices(image, mapKey)
func (fw *Firmware) exitBootServices(args abi.Args) uint64 {
	fw.ebsCalls++

	if efi.Handle(args.Arg(0)) != fw.image {
		return status(efi.InvalidParameter)
	}

	// a pending map change lands between GetMemoryMap and this call
	if fw.changes > 0 {
		fw.changes--
		fw.mapKey++
	}

	if args.Arg(1) != fw.mapKey {
		kfmt.Fprintf(logger, "ExitBootServices: stale map key %d (current %d)\n", args.Arg(1), fw.mapKey)
		return status(efi.InvalidParameter)
	}

	fw.exited = true
	return status(efi.Success)
}

// stall(microseconds)
func (fw *Firmware) stall(abi.Args) uint64 {
	return status(efi.Success)
}
