package start

import (
	"github.com/rdvdev2/posix-uefi-cmake/crt/abi"
	"github.com/rdvdev2/posix-uefi-cmake/crt/efi"
	"github.com/rdvdev2/posix-uefi-cmake/crt/kfmt"
	"github.com/rdvdev2/posix-uefi-cmake/crt/mem/pmm/allocator"
)

// maxTeardownAttempts bounds the GetMemoryMap/ExitBootServices retries.
const maxTeardownAttempts = 3

// AbortCode is the value Start returns when the image is aborted.
const AbortCode = -1

// ArgsSource identifies the protocol that supplied the argument vector.
type ArgsSource uint8

const (
	// ArgsNone means no command line protocol was found.
	ArgsNone ArgsSource = iota

	// ArgsShellParameters means the shell 2.0 parameters protocol.
	ArgsShellParameters

	// ArgsShellInterface means the legacy shell 1.0 interface.
	ArgsShellInterface
)

// String implements fmt.Stringer for ArgsSource.
func (s ArgsSource) String() string {
	switch s {
	case ArgsShellParameters:
		return "shell parameters"
	case ArgsShellInterface:
		return "shell interface"
	default:
		return "none"
	}
}

// Args is the reconstructed argument vector. Argv is never nil and its
// entries point at the strings owned by the firmware.
type Args struct {
	Source ArgsSource
	Argv   []efi.CString16
}

// Argc returns the number of arguments.
func (a Args) Argc() int {
	return len(a.Argv)
}

// Context gives a running image access to the firmware. It can only be
// obtained from Start.
type Context struct {
	Image       efi.Handle
	System      *efi.SystemTable
	Boot        *efi.BootServices
	Runtime     *efi.RuntimeServices
	LoadedImage *efi.LoadedImage

	Args    Args
	Config  Config
	Options map[string]string

	// Relocated is set if the entrypoint patched a relocation.
	Relocated bool

	exitBuf  abi.JumpBuf
	exitCode int

	logSink bool
	memMap  *efi.MemoryMap
	pages   *allocator.BootMemAllocator
}

// DataPoolType returns the pool type used for the image's data, falling back
// to loader data when the loaded image protocol is unavailable.
func (ctx *Context) DataPoolType() efi.MemoryType {
	if ctx.LoadedImage == nil {
		return efi.LoaderData
	}
	return ctx.LoadedImage.ImageDataType()
}

// Exit terminates the image with code. A zero code is reported to the
// firmware as success; any other code as an error status carrying its
// magnitude. When called from within main, Exit does not return and Start
// returns code.
func (ctx *Context) Exit(code int) {
	ctx.exit(exitStatus(code), code)
}

// Abort terminates the image with an aborted status.
func (ctx *Context) Abort() {
	ctx.exit(efi.Aborted, AbortCode)
}

func (ctx *Context) exit(status efi.Status, code int) {
	ctx.exitCode = code
	if err := ctx.Boot.Exit(ctx.Image, status); err != nil {
		kfmt.Fprintf(logger, "exit(%d): %s\n", code, err.Error())
	}

	if ctx.exitBuf.Active() {
		abi.RestoreContext(&ctx.exitBuf, 1)
	}
}

func exitStatus(code int) efi.Status {
	switch {
	case code == 0:
		return efi.Success
	case code < 0:
		return efi.EFIERR(uint64(-code))
	default:
		return efi.EFIERR(uint64(code))
	}
}

// ExitBootServices takes the machine over from the firmware. The memory map
// is fetched and the teardown requested up to three times, since the map may
// change between the two calls. On success boot services are invalid for the
// rest of the image's life, the final memory map is kept and the page
// allocator becomes available. On failure boot services remain usable.
func (ctx *Context) ExitBootServices() bool {
	if ctx.Boot.Exited() {
		return true
	}

	for attempt := 1; attempt <= maxTeardownAttempts; attempt++ {
		memMap, err := ctx.Boot.GetMemoryMap()
		if err != nil {
			kfmt.Fprintf(logger, "teardown attempt %d: memory map: %s\n", attempt, err.Error())
			continue
		}

		if err = ctx.Boot.ExitBootServices(ctx.Image, memMap.Key); err != nil {
			kfmt.Fprintf(logger, "teardown attempt %d: %s\n", attempt, err.Error())
			continue
		}

		ctx.memMap = memMap
		ctx.pages = allocator.New(memMap)

		// The consoles belong to boot services
		if ctx.logSink {
			kfmt.SetOutputSink(nil)
			ctx.logSink = false
		}
		kfmt.Fprintf(logger, "boot services exited after %d attempt(s)\n", attempt)
		if ctx.Config.Verbose {
			ctx.pages.PrintMemoryMap(nil)
		}
		return true
	}

	return false
}

// MemoryMap returns the memory map captured by ExitBootServices or nil if
// boot services have not been exited.
func (ctx *Context) MemoryMap() *efi.MemoryMap {
	return ctx.memMap
}

// Pages returns the page allocator that serves the usable memory of the final
// memory map. It is nil until ExitBootServices succeeds.
func (ctx *Context) Pages() *allocator.BootMemAllocator {
	return ctx.pages
}
