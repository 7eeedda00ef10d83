package sim

import (
	"io"
	"unicode/utf16"

	"github.com/rdvdev2/posix-uefi-cmake/crt/abi"
	"github.com/rdvdev2/posix-uefi-cmake/crt/efi"
	"github.com/rdvdev2/posix-uefi-cmake/crt/mem"
)

// KeySource supplies console keystrokes.
type KeySource interface {
	// ReadKey returns the next keystroke, or false if no key is pending.
	ReadKey() (efi.InputKey, bool)
}

// KeyQueue is a KeySource that replays a fixed sequence of keys.
type KeyQueue struct {
	keys []efi.InputKey
}

// Keys returns a KeyQueue that types s.
func Keys(s string) *KeyQueue {
	q := &KeyQueue{}
	for _, u := range utf16.Encode([]rune(s)) {
		q.keys = append(q.keys, efi.InputKey{UnicodeChar: u})
	}
	return q
}

// ReadKey implements KeySource.
func (q *KeyQueue) ReadKey() (efi.InputKey, bool) {
	if len(q.keys) == 0 {
		return efi.InputKey{}, false
	}
	key := q.keys[0]
	q.keys = q.keys[1:]
	return key, true
}

// outputString(this, *string)
func (fw *Firmware) outputString(w io.Writer) abi.Service {
	return func(args abi.Args) uint64 {
		if args.Arg(1) == 0 {
			return status(efi.InvalidParameter)
		}

		// consoles expect CR LF; the host terminal only wants LF
		text := efi.CString16(args.Arg(1)).String()
		out := make([]byte, 0, len(text))
		for i := 0; i < len(text); i++ {
			if text[i] == '\r' && i+1 < len(text) && text[i+1] == '\n' {
				continue
			}
			out = append(out, text[i])
		}

		if _, err := w.Write(out); err != nil {
			return status(efi.DeviceError)
		}
		return status(efi.Success)
	}
}

func (fw *Firmware) peekKey() *efi.InputKey {
	if fw.pendingKey == nil {
		if key, ok := fw.opts.Keys.ReadKey(); ok {
			fw.pendingKey = &key
		}
	}
	return fw.pendingKey
}

// readKeyStroke(this, *key)
func (fw *Firmware) readKeyStroke(args abi.Args) uint64 {
	out := uintptr(args.Arg(1))
	if out == 0 {
		return status(efi.InvalidParameter)
	}

	key := fw.peekKey()
	if key == nil {
		return status(efi.NotReady)
	}
	fw.pendingKey = nil

	mem.WriteUint16(out, key.ScanCode)
	mem.WriteUint16(out+2, key.UnicodeChar)
	return status(efi.Success)
}
