//go:build tamago && amd64

package abi

import "unsafe"

// callFrame loads regs into RCX, RDX, R8 and R9, copies slots 8-byte words
// from stack to a freshly aligned outgoing area and calls fn. It is
// implemented in machine_tamago_amd64.s.
func callFrame(fn uintptr, regs *[RegisterArgs]uint64, stack unsafe.Pointer, slots uintptr) uint64

// machine calls firmware code on the current CPU.
type machine struct{}

// Machine returns the Target that calls firmware code directly.
func Machine() Target {
	return machine{}
}

// CallFrame implements Target.
func (machine) CallFrame(fn uintptr, f *Frame) uint64 {
	return callFrame(fn, &f.Regs, unsafe.Pointer(&f.Stack[0]), uintptr(len(f.Stack)))
}

// Call implements Target. Go code never shares the firmware convention, so
// native calls still go through a frame; the frame is built without any
// further interpretation of the arguments.
func (m machine) Call(fn uintptr, args []uint64) uint64 {
	f, err := NewFrame(args)
	if err != nil {
		panic(err)
	}
	return m.CallFrame(fn, f)
}
