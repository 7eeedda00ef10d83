// Package abi bridges Go code to the register based calling convention used
// by UEFI services on x86-64.
//
// Every call into a firmware table goes through a Bridge. Depending on the
// toolchain family the image was produced with, the bridge either lays the
// arguments out in a Microsoft x64 call frame (first four arguments in RCX,
// RDX, R8 and R9, a 32 byte shadow area and the remaining arguments spilled
// above it) or hands them straight to the target.
package abi

import "github.com/rdvdev2/posix-uefi-cmake/crt"

// Convention identifies the calling convention used by the code that issues
// firmware calls.
type Convention uint8

const (
	// SysV is the stack based convention of images produced by the GNU
	// toolchain. Calls are shuffled into a register frame before they
	// reach the firmware.
	SysV Convention = iota

	// Native is the convention of images produced by toolchains that
	// already emit Microsoft x64 calls (clang targeting PE/COFF). Calls
	// are forwarded without any shuffling.
	Native
)

// String implements fmt.Stringer for Convention.
func (c Convention) String() string {
	switch c {
	case SysV:
		return "sysv"
	case Native:
		return "native"
	default:
		return "unknown"
	}
}

const (
	// MaxArgs is the largest call arity supported by the bridge.
	MaxArgs = 10

	// RegisterArgs is the number of arguments passed in registers.
	RegisterArgs = 4

	// ShadowSlots is the number of 8-byte stack slots the caller reserves
	// for the callee to spill its register arguments.
	ShadowSlots = 4

	// SlotSize is the size in bytes of a single stack slot.
	SlotSize = 8

	// StackAlign is the required alignment of the stack pointer at the
	// call instruction.
	StackAlign = 16

	// FirmwareStack is the stack space in bytes that the Machine target
	// reserves on the calling goroutine for each firmware call. It must
	// match FIRMWARE_STACK in machine_tamago_amd64.s.
	FirmwareStack = 64 << 10
)

var (
	// ErrTooManyArgs is returned when a call exceeds MaxArgs arguments.
	ErrTooManyArgs = &crt.Error{Module: "abi", Message: "too many arguments for firmware call"}

	// ErrNoTarget is returned when a bridge has no call target.
	ErrNoTarget = &crt.Error{Module: "abi", Message: "no call target for this platform"}
)
