package abi

// Target performs the actual transfer of control to a firmware function.
type Target interface {
	// CallFrame calls fn with a prepared Microsoft x64 frame.
	CallFrame(fn uintptr, f *Frame) uint64

	// Call calls fn with args in the target's own convention.
	Call(fn uintptr, args []uint64) uint64
}

// Bridge routes firmware calls to a Target using a fixed Convention.
type Bridge struct {
	conv   Convention
	target Target
}

// NewBridge returns a Bridge that issues calls to target using conv.
func NewBridge(conv Convention, target Target) *Bridge {
	return &Bridge{conv: conv, target: target}
}

// Convention returns the convention used by the bridge.
func (b *Bridge) Convention() Convention {
	return b.conv
}

// Call0 calls fn without arguments.
func (b *Bridge) Call0(fn uintptr) uint64 {
	return b.call(fn, nil)
}

// Call1 calls fn with one argument.
func (b *Bridge) Call1(fn uintptr, a1 uint64) uint64 {
	return b.call(fn, []uint64{a1})
}

// Call2 calls fn with two arguments.
func (b *Bridge) Call2(fn uintptr, a1, a2 uint64) uint64 {
	return b.call(fn, []uint64{a1, a2})
}

// Call3 calls fn with three arguments.
func (b *Bridge) Call3(fn uintptr, a1, a2, a3 uint64) uint64 {
	return b.call(fn, []uint64{a1, a2, a3})
}

// Call4 calls fn with four arguments; all of them travel in registers.
func (b *Bridge) Call4(fn uintptr, a1, a2, a3, a4 uint64) uint64 {
	return b.call(fn, []uint64{a1, a2, a3, a4})
}

// Call5 calls fn with five arguments; the fifth one is spilled to the stack.
func (b *Bridge) Call5(fn uintptr, a1, a2, a3, a4, a5 uint64) uint64 {
	return b.call(fn, []uint64{a1, a2, a3, a4, a5})
}

// Call6 calls fn with six arguments.
func (b *Bridge) Call6(fn uintptr, a1, a2, a3, a4, a5, a6 uint64) uint64 {
	return b.call(fn, []uint64{a1, a2, a3, a4, a5, a6})
}

// Call7 calls fn with seven arguments.
func (b *Bridge) Call7(fn uintptr, a1, a2, a3, a4, a5, a6, a7 uint64) uint64 {
	return b.call(fn, []uint64{a1, a2, a3, a4, a5, a6, a7})
}

// Call8 calls fn with eight arguments.
func (b *Bridge) Call8(fn uintptr, a1, a2, a3, a4, a5, a6, a7, a8 uint64) uint64 {
	return b.call(fn, []uint64{a1, a2, a3, a4, a5, a6, a7, a8})
}

// Call9 calls fn with nine arguments.
func (b *Bridge) Call9(fn uintptr, a1, a2, a3, a4, a5, a6, a7, a8, a9 uint64) uint64 {
	return b.call(fn, []uint64{a1, a2, a3, a4, a5, a6, a7, a8, a9})
}

// Call10 calls fn with ten arguments.
func (b *Bridge) Call10(fn uintptr, a1, a2, a3, a4, a5, a6, a7, a8, a9, a10 uint64) uint64 {
	return b.call(fn, []uint64{a1, a2, a3, a4, a5, a6, a7, a8, a9, a10})
}

// Call dispatches to the fixed arity trampoline matching len(args).
func (b *Bridge) Call(fn uintptr, args ...uint64) (uint64, error) {
	if len(args) > MaxArgs {
		return 0, ErrTooManyArgs
	}
	if b.target == nil {
		return 0, ErrNoTarget
	}
	return b.call(fn, args), nil
}

func (b *Bridge) call(fn uintptr, args []uint64) uint64 {
	if b.conv == Native {
		return b.target.Call(fn, args)
	}

	f, err := NewFrame(args)
	if err != nil {
		// the fixed arity trampolines never exceed MaxArgs
		panic(err)
	}
	return b.target.CallFrame(fn, f)
}
