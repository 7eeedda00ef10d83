package libc

import (
	"bytes"

	"github.com/rdvdev2/posix-uefi-cmake/crt/efi"
	"github.com/rdvdev2/posix-uefi-cmake/crt/mem"
)

// Memcpy copies n bytes from src to dst and returns dst. The regions may
// overlap.
func Memcpy(dst, src, n uintptr) uintptr {
	if dst == 0 || src == 0 || n == 0 {
		return dst
	}
	mem.Memcopy(src, dst, n)
	return dst
}

// Memmove is an alias of Memcpy.
func Memmove(dst, src, n uintptr) uintptr {
	return Memcpy(dst, src, n)
}

// Memset fills n bytes at s with c and returns s.
func Memset(s uintptr, c byte, n uintptr) uintptr {
	if s != 0 && n != 0 {
		mem.Memset(s, c, n)
	}
	return s
}

// Memcmp compares n bytes at a and b and returns the difference of the first
// pair of bytes that differ.
func Memcmp(a, b, n uintptr) int {
	if a == 0 || b == 0 || n == 0 {
		return 0
	}

	x, y := mem.Bytes(a, n), mem.Bytes(b, n)
	for i := range x {
		if x[i] != y[i] {
			return int(x[i]) - int(y[i])
		}
	}
	return 0
}

// Memchr returns the address of the first c in the n bytes at s or 0.
func Memchr(s uintptr, c byte, n uintptr) uintptr {
	if s == 0 || n == 0 {
		return 0
	}
	return offsetAddr(s, bytes.IndexByte(mem.Bytes(s, n), c))
}

// Memrchr returns the address of the last c in the n bytes at s or 0.
func Memrchr(s uintptr, c byte, n uintptr) uintptr {
	if s == 0 || n == 0 {
		return 0
	}
	return offsetAddr(s, bytes.LastIndexByte(mem.Bytes(s, n), c))
}

// Memmem returns the address of the first occurrence of needle in haystack
// or 0.
func Memmem(haystack, hl, needle, nl uintptr) uintptr {
	if haystack == 0 || needle == 0 || nl == 0 || nl > hl {
		return 0
	}
	return offsetAddr(haystack, bytes.Index(mem.Bytes(haystack, hl), mem.Bytes(needle, nl)))
}

// Memrmem returns the address of the last occurrence of needle in haystack
// or 0.
func Memrmem(haystack, hl, needle, nl uintptr) uintptr {
	if haystack == 0 || needle == 0 || nl == 0 || nl > hl {
		return 0
	}
	return offsetAddr(haystack, bytes.LastIndex(mem.Bytes(haystack, hl), mem.Bytes(needle, nl)))
}

func offsetAddr(base uintptr, index int) uintptr {
	if index < 0 {
		return 0
	}
	return base + uintptr(index)
}

// Strlen returns the number of units in s.
func Strlen(s efi.CString16) int {
	if s == 0 {
		return 0
	}
	return s.Len()
}

// Strcmp compares two wide strings.
func Strcmp(a, b efi.CString16) int {
	return compare16(units(a), units(b), -1)
}

// Strncmp compares at most n units of two wide strings.
func Strncmp(a, b efi.CString16, n int) int {
	return compare16(units(a), units(b), n)
}

func compare16(a, b []uint16, n int) int {
	for i := 0; n < 0 || i < n; i++ {
		var x, y uint16
		if i < len(a) {
			x = a[i]
		}
		if i < len(b) {
			y = b[i]
		}
		if x != y || x == 0 {
			return int(x) - int(y)
		}
	}
	return 0
}

// Strchr returns the first c in s or 0.
func Strchr(s efi.CString16, c uint16) efi.CString16 {
	for i, u := range units(s) {
		if u == c {
			return s + efi.CString16(2*i)
		}
	}
	return 0
}

// Strrchr returns the last c in s or 0.
func Strrchr(s efi.CString16, c uint16) efi.CString16 {
	u := units(s)
	for i := len(u) - 1; i >= 0; i-- {
		if u[i] == c {
			return s + efi.CString16(2*i)
		}
	}
	return 0
}

// Strstr returns the first occurrence of needle in haystack or 0.
func Strstr(haystack, needle efi.CString16) efi.CString16 {
	h, n := units(haystack), units(needle)
	if haystack == 0 {
		return 0
	}

outer:
	for i := 0; i+len(n) <= len(h); i++ {
		for j := range n {
			if h[i+j] != n[j] {
				continue outer
			}
		}
		return haystack + efi.CString16(2*i)
	}
	return 0
}

// Strcpy copies src, including its terminator, to dst and returns dst.
func Strcpy(dst, src efi.CString16) efi.CString16 {
	if dst != 0 && src != 0 {
		store16(dst, units(src))
	}
	return dst
}

// Strncpy copies at most n units of src to dst and terminates the result.
// dst must have room for n+1 units.
func Strncpy(dst, src efi.CString16, n int) efi.CString16 {
	if dst != 0 && src != 0 && n > 0 {
		store16(dst, prefix16(units(src), n))
	}
	return dst
}

// Strcat appends src to dst and returns dst.
func Strcat(dst, src efi.CString16) efi.CString16 {
	if dst != 0 && src != 0 {
		store16(dst+efi.CString16(2*Strlen(dst)), units(src))
	}
	return dst
}

// Strncat appends at most n units of src to dst and terminates the result.
func Strncat(dst, src efi.CString16, n int) efi.CString16 {
	if dst != 0 && src != 0 && n > 0 {
		store16(dst+efi.CString16(2*Strlen(dst)), prefix16(units(src), n))
	}
	return dst
}

// Strtok splits s into tokens separated by units of delim. The first call
// passes the string; later calls pass 0 to continue where the previous call
// stopped. The string is modified in place.
func (env *Env) Strtok(s, delim efi.CString16) efi.CString16 {
	return StrtokR(s, delim, &env.tokNext)
}

// StrtokR is the reentrant form of Strtok. next holds the position to
// resume from between calls.
func StrtokR(s, delim efi.CString16, next *efi.CString16) efi.CString16 {
	if delim == 0 || next == nil {
		return 0
	}
	if s == 0 {
		if s = *next; s == 0 {
			return 0
		}
	}

	seps := units(delim)
	isSep := func(u uint16) bool {
		for _, d := range seps {
			if u == d {
				return true
			}
		}
		return false
	}

	u := units(s)
	start := 0
	for start < len(u) && isSep(u[start]) {
		start++
	}
	if start == len(u) {
		*next = 0
		return 0
	}

	end := start
	for end < len(u) && !isSep(u[end]) {
		end++
	}
	if end == len(u) {
		*next = 0
	} else {
		mem.Words(uintptr(s)+uintptr(2*end), 1)[0] = 0
		*next = s + efi.CString16(2*(end+1))
	}
	return s + efi.CString16(2*start)
}

// store16 writes u and a terminator at dst.
func store16(dst efi.CString16, u []uint16) {
	w := mem.Words(uintptr(dst), len(u)+1)
	copy(w, u)
	w[len(u)] = 0
}

func prefix16(u []uint16, n int) []uint16 {
	if len(u) > n {
		return u[:n]
	}
	return u
}

// Strdup copies s into memory obtained from Malloc.
func (env *Env) Strdup(s efi.CString16) efi.CString16 {
	u := units(s)
	size := uintptr(2 * (len(u) + 1))

	addr := env.Malloc(uint64(size))
	if addr == 0 {
		return 0
	}

	dst := mem.Words(addr, len(u)+1)
	copy(dst, u)
	dst[len(u)] = 0
	return efi.CString16(addr)
}

// units returns the units of s without the terminator.
func units(s efi.CString16) []uint16 {
	if s == 0 {
		return nil
	}
	return s.Units()
}
