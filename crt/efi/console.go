package efi

import (
	"runtime"

	"github.com/rdvdev2/posix-uefi-cmake/crt/abi"
	"github.com/rdvdev2/posix-uefi-cmake/crt/mem"
)

// Console is a view over EFI_SIMPLE_TEXT_OUTPUT_PROTOCOL. It implements
// io.Writer so it can be attached as a kfmt output sink.
type Console struct {
	addr   uintptr
	bridge *abi.Bridge
}

// Addr returns the address of the protocol instance.
func (c *Console) Addr() uintptr {
	return c.addr
}

// OutputString writes the NUL terminated UTF-16 string s.
func (c *Console) OutputString(s []uint16) error {
	fn := mem.ReadPtr(c.addr + OutputString)
	st := Status(c.bridge.Call2(fn, uint64(c.addr), Addr16(s)))
	runtime.KeepAlive(s)
	return st.Err()
}

// ClearScreen clears the display and homes the cursor.
func (c *Console) ClearScreen() error {
	fn := mem.ReadPtr(c.addr + OutputClearScreen)
	return Status(c.bridge.Call1(fn, uint64(c.addr))).Err()
}

// Write converts p to UTF-16 and outputs it with a single OutputString
// call. Line feeds are expanded to CR LF.
func (c *Console) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	if err := c.OutputString(consoleText(p)); err != nil {
		return 0, err
	}
	return len(p), nil
}

// InputKey mirrors EFI_INPUT_KEY.
type InputKey struct {
	ScanCode    uint16
	UnicodeChar uint16
}

// Input is a view over EFI_SIMPLE_TEXT_INPUT_PROTOCOL.
type Input struct {
	addr   uintptr
	bridge *abi.Bridge
}

// Addr returns the address of the protocol instance.
func (in *Input) Addr() uintptr {
	return in.addr
}

// ReadKeyStroke returns the next pending keystroke or NotReady if there is
// none.
func (in *Input) ReadKeyStroke() (InputKey, error) {
	out := mem.NewCell()
	fn := mem.ReadPtr(in.addr + InputReadKeyStroke)

	if err := Status(in.bridge.Call2(fn, uint64(in.addr), out.Addr())).Err(); err != nil {
		return InputKey{}, err
	}

	v := out.Get()
	return InputKey{ScanCode: uint16(v), UnicodeChar: uint16(v >> 16)}, nil
}

// WaitForKey returns the event signaled when a key is available.
func (in *Input) WaitForKey() Event {
	return Event(mem.ReadPtr(in.addr + InputWaitForKey))
}
