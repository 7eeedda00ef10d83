package efi

import "github.com/rdvdev2/posix-uefi-cmake/crt/mem"

// ShellArgs is a view over one of the two shell command line protocols.
// They only differ in where argc and argv are stored.
type ShellArgs struct {
	addr             uintptr
	argvOff, argcOff uintptr
}

// NewShellParameters returns a view over an EFI_SHELL_PARAMETERS_PROTOCOL.
func NewShellParameters(addr uintptr) *ShellArgs {
	return &ShellArgs{addr: addr, argvOff: ShellParametersArgv, argcOff: ShellParametersArgc}
}

// NewShellInterface returns a view over a legacy EFI_SHELL_INTERFACE.
func NewShellInterface(addr uintptr) *ShellArgs {
	return &ShellArgs{addr: addr, argvOff: ShellInterfaceArgv, argcOff: ShellInterfaceArgc}
}

// Argc returns the number of arguments.
func (s *ShellArgs) Argc() int {
	return int(mem.ReadUint64(s.addr + s.argcOff))
}

// Argv returns the argument strings exactly as the shell stored them.
func (s *ShellArgs) Argv() []CString16 {
	argc := s.Argc()
	argv := make([]CString16, argc)

	table := mem.ReadPtr(s.addr + s.argvOff)
	if table == 0 {
		return argv[:0]
	}

	for i := range argv {
		argv[i] = CString16(mem.ReadPtr(table + uintptr(i)<<mem.PointerShift))
	}
	return argv
}
