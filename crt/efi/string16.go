package efi

import (
	"unicode/utf16"
	"unicode/utf8"
	"unsafe"

	"github.com/rdvdev2/posix-uefi-cmake/crt/mem"
)

// CString16 is the address of a NUL terminated UCS-2 string owned by the
// firmware, such as an argv entry or the firmware vendor name.
type CString16 uintptr

// maxString16Len bounds the scan for the terminating NUL so a corrupt
// pointer cannot walk off into unmapped memory forever.
const maxString16Len = 1 << 16

// Len returns the number of UTF-16 code units before the terminating NUL.
func (s CString16) Len() int {
	if s == 0 {
		return 0
	}

	n := 0
	for addr := uintptr(s); n < maxString16Len && mem.ReadUint16(addr) != 0; addr += 2 {
		n++
	}
	return n
}

// Units returns the code units of s without the terminating NUL. The slice
// aliases firmware memory.
func (s CString16) Units() []uint16 {
	return mem.Words(uintptr(s), s.Len())
}

// String decodes s into a Go string. A nil string decodes to "".
func (s CString16) String() string {
	return string(utf16.Decode(s.Units()))
}

// UTF16 encodes str as a NUL terminated UTF-16 string suitable for passing
// to firmware services.
func UTF16(str string) []uint16 {
	out := make([]uint16, 0, len(str)+1)
	for _, r := range str {
		out = utf16.AppendRune(out, r)
	}
	return append(out, 0)
}

// DecodeUTF16 decodes units into a Go string stopping at the first NUL.
func DecodeUTF16(units []uint16) string {
	for i, u := range units {
		if u == 0 {
			units = units[:i]
			break
		}
	}
	return string(utf16.Decode(units))
}

// Addr16 returns the address of the first code unit of s.
func Addr16(s []uint16) uint64 {
	if len(s) == 0 {
		return 0
	}
	return uint64(uintptr(unsafe.Pointer(&s[0])))
}

// consoleText converts UTF-8 text to a NUL terminated UTF-16 string for a
// text output device, expanding bare line feeds to CR LF. Invalid UTF-8
// sequences are replaced by U+FFFD.
func consoleText(p []byte) []uint16 {
	out := make([]uint16, 0, len(p)+8)
	prev := rune(0)
	for len(p) > 0 {
		r, size := utf8.DecodeRune(p)
		p = p[size:]

		if r == '\n' && prev != '\r' {
			out = append(out, '\r')
		}
		out = utf16.AppendRune(out, r)
		prev = r
	}
	return append(out, 0)
}
