package efi

import (
	"github.com/rdvdev2/posix-uefi-cmake/crt/abi"
	"github.com/rdvdev2/posix-uefi-cmake/crt/mem"
)

// maxMemoryMapTries bounds the GetMemoryMap grow-and-retry loop.
const maxMemoryMapTries = 4

// BootServices is a view over EFI_BOOT_SERVICES. Once ExitBootServices
// succeeds the view is invalidated and every further call fails with
// ErrBootServicesExited without reaching the firmware.
type BootServices struct {
	addr   uintptr
	bridge *abi.Bridge
	exited bool
}

// Addr returns the address of the table.
func (bs *BootServices) Addr() uintptr {
	return bs.addr
}

// Exited reports whether boot services have been torn down.
func (bs *BootServices) Exited() bool {
	return bs.exited
}

// fn returns the address of the service at the given table offset.
func (bs *BootServices) fn(offset uintptr) (uintptr, error) {
	if bs.exited {
		return 0, ErrBootServicesExited
	}
	return mem.ReadPtr(bs.addr + offset), nil
}

// AllocatePool allocates size bytes of pool memory of the given type.
func (bs *BootServices) AllocatePool(memType MemoryType, size uint64) (uintptr, error) {
	fn, err := bs.fn(BootAllocatePool)
	if err != nil {
		return 0, err
	}

	out := mem.NewCell()
	st := Status(bs.bridge.Call3(fn, uint64(memType), size, out.Addr()))
	if err := st.Err(); err != nil {
		return 0, err
	}
	return uintptr(out.Get()), nil
}

// FreePool returns a pool allocation to the firmware.
func (bs *BootServices) FreePool(addr uintptr) error {
	fn, err := bs.fn(BootFreePool)
	if err != nil {
		return err
	}
	return Status(bs.bridge.Call1(fn, uint64(addr))).Err()
}

// GetMemoryMap returns a snapshot of the current memory map. The buffer is
// grown and the call retried while the firmware reports BUFFER_TOO_SMALL.
func (bs *BootServices) GetMemoryMap() (*MemoryMap, error) {
	fn, err := bs.fn(BootGetMemoryMap)
	if err != nil {
		return nil, err
	}

	var (
		size     = mem.NewCell()
		key      = mem.NewCell()
		descSize = mem.NewCell()
		descVer  = mem.NewCell()
		buf      []byte
	)

	for try := 0; try < maxMemoryMapTries; try++ {
		size.Set(uint64(len(buf)))
		st := Status(bs.bridge.Call5(fn, size.Addr(), uint64(mem.AddrOf(buf)), key.Addr(), descSize.Addr(), descVer.Addr()))

		if st == BufferTooSmall {
			// allocating the buffer may itself add descriptors
			buf = mem.NewBuffer(int(size.Get()) + 2*MemoryDescriptorSize)
			continue
		}
		if err := st.Err(); err != nil {
			return nil, err
		}

		return &MemoryMap{
			Buf:               buf,
			Size:              uintptr(size.Get()),
			Key:               key.Get(),
			DescriptorSize:    uintptr(descSize.Get()),
			DescriptorVersion: uint32(descVer.Get()),
		}, nil
	}

	return nil, BufferTooSmall
}

// HandleProtocol returns the interface of protocol guid on handle h.
func (bs *BootServices) HandleProtocol(h Handle, guid *GUID) (uintptr, error) {
	fn, err := bs.fn(BootHandleProtocol)
	if err != nil {
		return 0, err
	}

	out := mem.NewCell()
	st := Status(bs.bridge.Call3(fn, uint64(h), guid.Addr(), out.Addr()))
	if err := st.Err(); err != nil {
		return 0, err
	}
	return uintptr(out.Get()), nil
}

// OpenProtocol opens protocol guid on handle h on behalf of agent.
func (bs *BootServices) OpenProtocol(h Handle, guid *GUID, agent, controller Handle, attrs uint32) (uintptr, error) {
	fn, err := bs.fn(BootOpenProtocol)
	if err != nil {
		return 0, err
	}

	out := mem.NewCell()
	st := Status(bs.bridge.Call6(fn, uint64(h), guid.Addr(), out.Addr(), uint64(agent), uint64(controller), uint64(attrs)))
	if err := st.Err(); err != nil {
		return 0, err
	}
	return uintptr(out.Get()), nil
}

// CheckEvent returns nil if ev is signaled and NotReady if it is not.
func (bs *BootServices) CheckEvent(ev Event) error {
	fn, err := bs.fn(BootCheckEvent)
	if err != nil {
		return err
	}
	return Status(bs.bridge.Call1(fn, uint64(ev))).Err()
}

// Stall busy waits for the given number of microseconds.
func (bs *BootServices) Stall(us uint64) error {
	fn, err := bs.fn(BootStall)
	if err != nil {
		return err
	}
	return Status(bs.bridge.Call1(fn, us)).Err()
}

// Exit terminates image with the given status. On real firmware the call
// does not return when image is the running image.
func (bs *BootServices) Exit(image Handle, status Status) error {
	fn, err := bs.fn(BootExit)
	if err != nil {
		return err
	}
	return Status(bs.bridge.Call4(fn, uint64(image), uint64(status), 0, 0)).Err()
}

// ExitBootServices terminates the boot services using the map key of the
// latest memory map snapshot. On success the view is invalidated.
func (bs *BootServices) ExitBootServices(image Handle, mapKey uint64) error {
	fn, err := bs.fn(BootExitBootServices)
	if err != nil {
		return err
	}

	if err := Status(bs.bridge.Call2(fn, uint64(image), mapKey)).Err(); err != nil {
		return err
	}

	bs.exited = true
	return nil
}
