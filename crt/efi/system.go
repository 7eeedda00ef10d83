package efi

import (
	"github.com/rdvdev2/posix-uefi-cmake/crt/abi"
	"github.com/rdvdev2/posix-uefi-cmake/crt/mem"
)

// SystemTable is a view over EFI_SYSTEM_TABLE.
type SystemTable struct {
	addr   uintptr
	bridge *abi.Bridge

	boot *BootServices
}

// NewSystemTable returns a view over the system table at addr. Calls to the
// services it references are issued through bridge.
func NewSystemTable(addr uintptr, bridge *abi.Bridge) *SystemTable {
	return &SystemTable{addr: addr, bridge: bridge}
}

// Addr returns the address of the table.
func (st *SystemTable) Addr() uintptr {
	return st.addr
}

// Bridge returns the bridge used for firmware calls.
func (st *SystemTable) Bridge() *abi.Bridge {
	return st.bridge
}

// FirmwareVendor returns the vendor string of the firmware.
func (st *SystemTable) FirmwareVendor() CString16 {
	return CString16(mem.ReadPtr(st.addr + SystemFirmwareVendor))
}

// FirmwareRevision returns the firmware revision.
func (st *SystemTable) FirmwareRevision() uint32 {
	return mem.ReadUint32(st.addr + SystemFirmwareRevision)
}

// ConIn returns the console input device.
func (st *SystemTable) ConIn() *Input {
	return &Input{addr: mem.ReadPtr(st.addr + SystemConIn), bridge: st.bridge}
}

// ConOut returns the console output device.
func (st *SystemTable) ConOut() *Console {
	return &Console{addr: mem.ReadPtr(st.addr + SystemConOut), bridge: st.bridge}
}

// StdErr returns the console standard error device.
func (st *SystemTable) StdErr() *Console {
	return &Console{addr: mem.ReadPtr(st.addr + SystemStdErr), bridge: st.bridge}
}

// BootServices returns the boot services table. The same view is returned by
// every call so its teardown state is shared.
func (st *SystemTable) BootServices() *BootServices {
	if st.boot == nil {
		st.boot = &BootServices{
			addr:   mem.ReadPtr(st.addr + SystemBootServices),
			bridge: st.bridge,
		}
	}
	return st.boot
}

// RuntimeServices returns the runtime services table.
func (st *SystemTable) RuntimeServices() *RuntimeServices {
	return &RuntimeServices{
		addr:   mem.ReadPtr(st.addr + SystemRuntimeServices),
		bridge: st.bridge,
	}
}
