package libc

import (
	"math"
	"sort"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/rdvdev2/posix-uefi-cmake/crt/mem"
	"modernc.org/mathutil"
)

// Malloc allocates size bytes from the image's data pool. It returns 0 and
// sets ENOMEM when the firmware cannot satisfy the request, including after
// boot services have been exited.
func (env *Env) Malloc(size uint64) uintptr {
	addr, err := env.ctx.Boot.AllocatePool(env.ctx.DataPoolType(), size)
	if err != nil || addr == 0 {
		env.Errno = ENOMEM
		return 0
	}

	env.sizes[addr] = size
	return addr
}

// Calloc allocates zeroed memory for n items of size bytes.
func (env *Env) Calloc(n, size uint64) uintptr {
	hi, total := mathutil.MulUint128_64(n, size)
	if hi != 0 || total > math.MaxInt64 {
		env.Errno = ENOMEM
		return 0
	}

	addr := env.Malloc(total)
	if addr != 0 {
		mem.Memset(addr, 0, uintptr(total))
	}
	return addr
}

// Realloc resizes the allocation at ptr, preserving its contents up to the
// smaller of the old and new sizes. A zero ptr behaves like Malloc and a zero
// size frees ptr.
func (env *Env) Realloc(ptr uintptr, size uint64) uintptr {
	if ptr == 0 {
		return env.Malloc(size)
	}
	if size == 0 {
		env.Free(ptr)
		return 0
	}

	addr := env.Malloc(size)
	if addr == 0 {
		return 0
	}

	old := env.sizes[ptr]
	if old > size {
		old = size
	}
	mem.Memcopy(ptr, addr, uintptr(old))
	env.Free(ptr)
	return addr
}

// Free returns the allocation at ptr to the firmware.
func (env *Env) Free(ptr uintptr) {
	if ptr == 0 {
		return
	}

	if err := env.ctx.Boot.FreePool(ptr); err != nil {
		env.Errno = EINVAL
		return
	}
	delete(env.sizes, ptr)
}

// Exit terminates the image with code.
func (env *Env) Exit(code int) {
	env.ctx.Exit(code)
}

// Abort terminates the image with an aborted status.
func (env *Env) Abort() {
	env.ctx.Abort()
}

// Atoi converts s to an int; see Atol.
func (env *Env) Atoi(s string) int {
	return int(env.Atol(s))
}

// Atol converts s to an integer. A 0x prefix selects base 16 and a leading
// 0 base 8; a leading '-' negates the result.
func (env *Env) Atol(s string) int64 {
	v, _ := env.Strtol(s, 0)
	return v
}

// Strtol parses an integer in the given base (2 to 36, or 0 to detect it
// from the prefix) from the start of s. It returns the value and the number
// of bytes consumed. Values that do not fit an int64 are clamped and set
// ERANGE.
func (env *Env) Strtol(s string, base int) (int64, int) {
	var (
		pos, neg = 0, false
		v        int64
		ovf      bool
	)

	if base < 0 || base == 1 || base > 36 {
		env.Errno = EINVAL
		return 0, 0
	}

	for pos < len(s) && (s[pos] == ' ' || s[pos] == '\t') {
		pos++
	}
	if pos < len(s) && (s[pos] == '-' || s[pos] == '+') {
		neg = s[pos] == '-'
		pos++
	}

	switch {
	case (base == 0 || base == 16) && pos+2 < len(s) && s[pos] == '0' && s[pos+1]|0x20 == 'x' && digitValue(s[pos+2]) < 16:
		base = 16
		pos += 2
	case base == 0 && pos < len(s) && s[pos] == '0':
		base = 8
	case base == 0:
		base = 10
	}

	start := pos
	for ; pos < len(s); pos++ {
		d := digitValue(s[pos])
		if d >= base {
			break
		}
		if ovf {
			continue
		}

		// accumulate negatively so math.MinInt64 is representable
		var mulOvf, subOvf bool
		v, mulOvf = mathutil.MulOverflowInt64(v, int64(base))
		v, subOvf = mathutil.SubOverflowInt64(v, int64(d))
		ovf = mulOvf || subOvf
	}

	if pos == start {
		return 0, 0
	}

	if !neg {
		var negOvf bool
		v, negOvf = mathutil.SubOverflowInt64(0, v)
		ovf = ovf || negOvf
	}

	if ovf {
		env.Errno = ERANGE
		if neg {
			return math.MinInt64, pos
		}
		return math.MaxInt64, pos
	}
	return v, pos
}

// digitValue returns the value of c as a digit or 36 if c is not one.
func digitValue(c byte) int {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0')
	case c >= 'a' && c <= 'z':
		return int(c-'a') + 10
	case c >= 'A' && c <= 'Z':
		return int(c-'A') + 10
	default:
		return 36
	}
}

// Mbstowcs converts the UTF-8 string s to UTF-16 in dst, stopping when dst
// is full. It returns the number of units stored, or -1 if s is not valid
// UTF-8.
func Mbstowcs(dst []uint16, s string) int {
	var n int
	for len(s) > 0 {
		r, size := utf8.DecodeRuneInString(s)
		if r == utf8.RuneError && size == 1 {
			return -1
		}
		s = s[size:]

		if r > 0xffff {
			if n+2 > len(dst) {
				break
			}
			r1, r2 := utf16.EncodeRune(r)
			dst[n], dst[n+1] = uint16(r1), uint16(r2)
			n += 2
			continue
		}

		if n+1 > len(dst) {
			break
		}
		dst[n] = uint16(r)
		n++
	}
	return n
}

// Wcstombs converts the UTF-16 string src, up to its first NUL, to UTF-8 in
// dst. Only complete characters are stored. It returns the number of bytes
// stored.
func Wcstombs(dst []byte, src []uint16) int {
	var n int
	for _, r := range utf16.Decode(trimNUL(src)) {
		if n+utf8.RuneLen(r) > len(dst) {
			break
		}
		n += utf8.EncodeRune(dst[n:], r)
	}
	return n
}

func trimNUL(s []uint16) []uint16 {
	for i, u := range s {
		if u == 0 {
			return s[:i]
		}
	}
	return s
}

// Bsearch returns the address of the element of the sorted array at base
// that cmp reports equal to key, or 0. The array holds n elements of size
// bytes each.
func Bsearch(key, base, n, size uintptr, cmp func(key, elem uintptr) int) uintptr {
	if base == 0 || size == 0 || cmp == nil {
		return 0
	}

	elem := func(i int) uintptr {
		return base + uintptr(i)*size
	}

	i := sort.Search(int(n), func(i int) bool {
		return cmp(key, elem(i)) <= 0
	})
	if i < int(n) && cmp(key, elem(i)) == 0 {
		return elem(i)
	}
	return 0
}

// Mblen returns the number of bytes of the UTF-8 character at the start of
// s, 0 if s is empty or starts with NUL and -1 if it is not valid UTF-8.
func Mblen(s []byte) int {
	_, n := Mbtowc(s)
	return n
}

// Mbtowc decodes the UTF-8 character at the start of s into a UTF-16 unit.
// It returns the unit and the number of bytes consumed, 0 for NUL or an
// empty s, or -1 if the character is invalid or does not fit a single unit.
func Mbtowc(s []byte) (uint16, int) {
	if len(s) == 0 || s[0] == 0 {
		return 0, 0
	}

	r, size := utf8.DecodeRune(s)
	if (r == utf8.RuneError && size <= 1) || r > 0xffff {
		return 0, -1
	}
	return uint16(r), size
}

// Wctomb encodes the UTF-16 unit wc as UTF-8 into dst and returns the number
// of bytes written. Unpaired surrogates and a dst that is too short yield
// -1.
func Wctomb(dst []byte, wc uint16) int {
	r := rune(wc)
	if utf16.IsSurrogate(r) || utf8.RuneLen(r) > len(dst) {
		return -1
	}
	return utf8.EncodeRune(dst, r)
}
