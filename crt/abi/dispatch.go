package abi

import (
	"github.com/rdvdev2/posix-uefi-cmake/crt"
	"github.com/rdvdev2/posix-uefi-cmake/crt/kfmt"
)

// Args is the callee side view of the arguments of a firmware call.
type Args interface {
	// Arg returns argument i. Arguments that were not passed read as zero.
	Arg(i int) uint64
}

// ArgList is an Args implementation over a plain argument slice; it is what a
// callee receives from a Native call.
type ArgList []uint64

// Arg implements Args.
func (l ArgList) Arg(i int) uint64 {
	if i < 0 || i >= len(l) {
		return 0
	}
	return l[i]
}

// Service is a firmware function implemented in Go.
type Service func(args Args) uint64

// errUnknownService is raised when a call lands on an address that no
// service was registered at. On real hardware this is a jump into the weeds.
var errUnknownService = &crt.Error{Module: "abi", Message: "call to unregistered service address"}

// Dispatcher is a Target that resolves function addresses to Go services. It
// lets a firmware written in Go (such as the hosted simulator) populate its
// tables with addresses that are callable through a Bridge.
type Dispatcher struct {
	services map[uintptr]Service
	next     uintptr
	stride   uintptr
	calls    int
}

// NewDispatcher returns a Dispatcher that hands out service addresses
// starting at base. Addresses are spaced 16 bytes apart so they look like
// function entry points.
func NewDispatcher(base uintptr) *Dispatcher {
	return &Dispatcher{
		services: make(map[uintptr]Service),
		next:     base,
		stride:   16,
	}
}

// Register assigns an address to s and returns it.
func (d *Dispatcher) Register(s Service) uintptr {
	addr := d.next
	d.services[addr] = s
	d.next += d.stride
	return addr
}

// Calls returns the number of calls dispatched so far.
func (d *Dispatcher) Calls() int {
	return d.calls
}

// CallFrame implements Target.
func (d *Dispatcher) CallFrame(fn uintptr, f *Frame) uint64 {
	return d.lookup(fn)(f)
}

// Call implements Target.
func (d *Dispatcher) Call(fn uintptr, args []uint64) uint64 {
	return d.lookup(fn)(ArgList(args))
}

func (d *Dispatcher) lookup(fn uintptr) Service {
	s, ok := d.services[fn]
	if !ok {
		kfmt.Printf("[abi] no service at 0x%x\n", fn)
		panic(errUnknownService)
	}
	d.calls++
	return s
}
