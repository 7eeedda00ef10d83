// Package sim implements a hosted UEFI firmware. It builds genuine x86-64
// table layouts in off-heap memory and answers service calls through an
// abi.Dispatcher, so the runtime can be exercised on a development host
// exactly as it runs on real firmware.
//
// The simulator is single threaded and not safe for concurrent use.
package sim

import (
	"io"
	"time"

	"github.com/rdvdev2/posix-uefi-cmake/crt"
	"github.com/rdvdev2/posix-uefi-cmake/crt/abi"
	"github.com/rdvdev2/posix-uefi-cmake/crt/efi"
	"github.com/rdvdev2/posix-uefi-cmake/crt/kfmt"
	"github.com/rdvdev2/posix-uefi-cmake/crt/mem"
	"modernc.org/memory"
)

// ShellMode selects which command line protocols are installed on the
// image handle.
type ShellMode uint8

const (
	// ShellNone installs no command line protocol.
	ShellNone ShellMode = iota

	// ShellInterface installs the legacy shell 1.0 interface.
	ShellInterface

	// ShellParameters installs the shell 2.0 parameters protocol.
	ShellParameters

	// ShellBoth installs both protocols.
	ShellBoth
)

// String implements fmt.Stringer for ShellMode.
func (m ShellMode) String() string {
	switch m {
	case ShellInterface:
		return "interface"
	case ShellParameters:
		return "parameters"
	case ShellBoth:
		return "both"
	default:
		return "none"
	}
}

// serviceBase is the first fake address handed out to firmware services.
const serviceBase = 0xfff00000

var (
	errArena = &crt.Error{Module: "sim", Message: "firmware arena exhausted"}

	logger = kfmt.NewPrefixWriter(nil, "sim")
)

// Options configures a simulated firmware instance.
type Options struct {
	// Shell selects the installed command line protocols and Args the
	// arguments they report (including the image name in Args[0]).
	Shell ShellMode
	Args  []string

	// LoadOptions is stored in the loaded image protocol.
	LoadOptions string

	// Root is a host directory exposed as the boot volume. When empty no
	// file system is installed on the device handle.
	Root string

	// ReadOnly makes the boot volume write protected.
	ReadOnly bool

	// MapChanges is the number of times the memory map changes between a
	// GetMemoryMap call and the following ExitBootServices call.
	MapChanges int

	// ConventionalPages is the amount of reclaimable memory reported in
	// the memory map. It is backed by real memory.
	ConventionalPages uint64

	// Stdout and Stderr receive console output. Nil discards it.
	Stdout, Stderr io.Writer

	// Keys feeds console input. Nil behaves as a keyboard that is never
	// pressed.
	Keys KeySource

	// Clock returns the platform time. It defaults to time.Now.
	Clock func() time.Time

	// Vendor is reported as the firmware vendor.
	Vendor string
}

// Firmware is a simulated UEFI firmware instance.
type Firmware struct {
	opts  Options
	arena memory.Allocator
	disp  *abi.Dispatcher

	system  uintptr
	boot    uintptr
	runtime uintptr
	conIn   uintptr
	conOut  uintptr
	stdErr  uintptr

	image       efi.Handle
	device      efi.Handle
	loadedImage uintptr
	waitForKey  efi.Event

	handles map[efi.Handle]map[efi.GUID]uintptr
	pools   map[uintptr]efi.MemoryType
	files   map[uintptr]*openFile
	fileFns map[uintptr]uintptr

	regions []region
	mapKey  uint64
	changes int

	pendingKey  *efi.InputKey
	opened      []efi.GUID
	ebsCalls    int
	exited      bool
	exitStatus  efi.Status
	exitCalled  bool
	resetCalled bool
}

// New builds a firmware instance.
func New(opts Options) (*Firmware, error) {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Stdout == nil {
		opts.Stdout = io.Discard
	}
	if opts.Stderr == nil {
		opts.Stderr = io.Discard
	}
	if opts.Keys == nil {
		opts.Keys = Keys("")
	}
	if opts.ConventionalPages == 0 {
		opts.ConventionalPages = 64
	}
	if opts.Vendor == "" {
		opts.Vendor = "Hosted Firmware"
	}

	fw := &Firmware{
		opts:    opts,
		disp:    abi.NewDispatcher(serviceBase),
		handles: make(map[efi.Handle]map[efi.GUID]uintptr),
		pools:   make(map[uintptr]efi.MemoryType),
		files:   make(map[uintptr]*openFile),
		fileFns: make(map[uintptr]uintptr),
		changes: opts.MapChanges,
		mapKey:  1,
	}

	for _, build := range []func() error{
		fw.buildConsoles,
		fw.buildBootServices,
		fw.buildRuntimeServices,
		fw.buildSystemTable,
		fw.buildMemoryMap,
		fw.buildImage,
	} {
		if err := build(); err != nil {
			fw.Close()
			return nil, err
		}
	}

	return fw, nil
}

// Close releases every resource held by the firmware. Addresses handed out by
// the firmware become invalid.
func (fw *Firmware) Close() error {
	for addr, f := range fw.files {
		f.close()
		delete(fw.files, addr)
	}
	return fw.arena.Close()
}

// SystemTable returns the address of EFI_SYSTEM_TABLE.
func (fw *Firmware) SystemTable() uintptr {
	return fw.system
}

// ImageHandle returns the handle of the running image.
func (fw *Firmware) ImageHandle() efi.Handle {
	return fw.image
}

// Dispatcher returns the call target that services firmware calls.
func (fw *Firmware) Dispatcher() *abi.Dispatcher {
	return fw.disp
}

// Bridge returns a bridge that issues calls to the firmware using conv.
func (fw *Firmware) Bridge(conv abi.Convention) *abi.Bridge {
	return abi.NewBridge(conv, fw.disp)
}

// ExitBootServicesCalls returns the number of ExitBootServices calls
// received.
func (fw *Firmware) ExitBootServicesCalls() int {
	return fw.ebsCalls
}

// BootServicesExited reports whether ExitBootServices succeeded.
func (fw *Firmware) BootServicesExited() bool {
	return fw.exited
}

// ExitStatus returns the status passed to BS->Exit and whether it was
// called at all.
func (fw *Firmware) ExitStatus() (efi.Status, bool) {
	return fw.exitStatus, fw.exitCalled
}

// ResetCalled reports whether RT->ResetSystem was invoked.
func (fw *Firmware) ResetCalled() bool {
	return fw.resetCalled
}

// OpenedProtocols returns the GUIDs passed to OpenProtocol, in call order.
func (fw *Firmware) OpenedProtocols() []efi.GUID {
	return fw.opened
}

// PoolAllocations returns the number of outstanding pool allocations.
func (fw *Firmware) PoolAllocations() int {
	return len(fw.pools)
}

// calloc returns zeroed arena memory.
func (fw *Firmware) calloc(size int) (uintptr, error) {
	addr, err := fw.arena.UintptrCalloc(size)
	if err != nil || addr == 0 {
		return 0, errArena
	}
	return addr, nil
}

// newTable allocates a zeroed table and fills the given slots with service
// addresses.
func (fw *Firmware) newTable(size int, services map[uintptr]abi.Service) (uintptr, error) {
	table, err := fw.calloc(size)
	if err != nil {
		return 0, err
	}

	for off, svc := range services {
		mem.WriteUint64(table+off, uint64(fw.disp.Register(svc)))
	}
	return table, nil
}

// string16 copies s into the arena as a NUL terminated UTF-16 string.
func (fw *Firmware) string16(s string) (uintptr, error) {
	units := efi.UTF16(s)
	addr, err := fw.calloc(2 * len(units))
	if err != nil {
		return 0, err
	}
	copy(mem.Words(addr, len(units)), units)
	return addr, nil
}

// newHandle returns a fresh handle. Handles are distinct arena addresses.
func (fw *Firmware) newHandle() (efi.Handle, error) {
	addr, err := fw.calloc(8)
	if err != nil {
		return 0, err
	}
	fw.handles[efi.Handle(addr)] = make(map[efi.GUID]uintptr)
	return efi.Handle(addr), nil
}

// install publishes a protocol interface on handle h.
func (fw *Firmware) install(h efi.Handle, guid efi.GUID, iface uintptr) {
	fw.handles[h][guid] = iface
}

func status(s efi.Status) uint64 {
	return uint64(s)
}
