package abi

// Frame is the register and stack image of a single Microsoft x64 call as
// the caller builds it right before the call instruction.
type Frame struct {
	// Regs holds the values loaded into RCX, RDX, R8 and R9.
	Regs [RegisterArgs]uint64

	// Stack holds the outgoing argument area starting at the stack
	// pointer: ShadowSlots slots of shadow space followed by the spilled
	// arguments, padded to a StackAlign boundary.
	Stack []uint64

	// argc records how many arguments the frame was built from.
	argc int
}

// frameSlots returns the number of stack slots needed by a call with argc
// arguments, including the shadow area and alignment padding.
func frameSlots(argc int) int {
	slots := ShadowSlots
	if argc > RegisterArgs {
		slots += argc - RegisterArgs
	}

	// keep the stack pointer 16-byte aligned at the call site
	perAlign := StackAlign / SlotSize
	return (slots + perAlign - 1) / perAlign * perAlign
}

// NewFrame lays out args following the Microsoft x64 calling convention.
func NewFrame(args []uint64) (*Frame, error) {
	if len(args) > MaxArgs {
		return nil, ErrTooManyArgs
	}

	f := &Frame{
		Stack: make([]uint64, frameSlots(len(args))),
		argc:  len(args),
	}

	for i, arg := range args {
		if i < RegisterArgs {
			f.Regs[i] = arg
			continue
		}

		// the shadow area sits between the stack pointer and the first
		// spilled argument
		f.Stack[ShadowSlots+i-RegisterArgs] = arg
	}

	return f, nil
}

// Size returns the size in bytes of the outgoing argument area.
func (f *Frame) Size() uintptr {
	return uintptr(len(f.Stack) * SlotSize)
}

// Argc returns the number of arguments the frame was built from.
func (f *Frame) Argc() int {
	return f.argc
}

// Arg returns argument i as the callee sees it: from a register for the
// first four arguments and from the caller's outgoing area otherwise.
// Arguments beyond the frame read as zero.
func (f *Frame) Arg(i int) uint64 {
	if i < 0 {
		return 0
	}

	if i < RegisterArgs {
		return f.Regs[i]
	}

	slot := ShadowSlots + i - RegisterArgs
	if slot >= len(f.Stack) {
		return 0
	}
	return f.Stack[slot]
}
