package libc

import (
	"math"
	"runtime"
	"testing"
	"unsafe"

	"github.com/rdvdev2/posix-uefi-cmake/crt/efi"
	"github.com/rdvdev2/posix-uefi-cmake/crt/mem"
	"github.com/rdvdev2/posix-uefi-cmake/crt/start"
	"github.com/rdvdev2/posix-uefi-cmake/firmware/sim"
)

func TestMalloc(t *testing.T) {
	env, fw := newEnv(t, sim.Options{})

	addr := env.Malloc(64)
	if addr == 0 {
		t.Fatalf("Malloc failed with errno %d", env.Errno)
	}
	if got := fw.PoolAllocations(); got != 1 {
		t.Fatalf("expected 1 pool allocation; got %d", got)
	}

	data := mem.Bytes(addr, 64)
	for i := range data {
		data[i] = byte(i)
	}

	// grow keeps the contents
	grown := env.Realloc(addr, 128)
	if grown == 0 {
		t.Fatalf("Realloc failed with errno %d", env.Errno)
	}
	for i, b := range mem.Bytes(grown, 64) {
		if b != byte(i) {
			t.Fatalf("expected byte %d to be preserved by Realloc; got %d", i, b)
		}
	}

	// shrink keeps the prefix
	shrunk := env.Realloc(grown, 8)
	for i, b := range mem.Bytes(shrunk, 8) {
		if b != byte(i) {
			t.Fatalf("expected byte %d to be preserved by Realloc; got %d", i, b)
		}
	}
	if got := fw.PoolAllocations(); got != 1 {
		t.Fatalf("expected Realloc to release the old block; got %d live allocations", got)
	}

	if got := env.Realloc(shrunk, 0); got != 0 {
		t.Fatalf("expected Realloc to size 0 to return 0; got 0x%x", got)
	}
	if got := fw.PoolAllocations(); got != 0 {
		t.Fatalf("expected no live allocations; got %d", got)
	}

	env.Free(0)
	if env.Errno != 0 {
		t.Fatalf("expected Free(0) to be a no-op; got errno %d", env.Errno)
	}
	env.Free(0xdead0)
	if env.Errno != EINVAL {
		t.Fatalf("expected freeing an unknown block to set EINVAL; got %d", env.Errno)
	}
}

func TestCalloc(t *testing.T) {
	env, _ := newEnv(t, sim.Options{})

	garbage := env.Malloc(256)
	mem.Memset(garbage, 0xff, 256)
	env.Free(garbage)

	addr := env.Calloc(16, 16)
	if addr == 0 {
		t.Fatalf("Calloc failed with errno %d", env.Errno)
	}
	for i, b := range mem.Bytes(addr, 256) {
		if b != 0 {
			t.Fatalf("expected byte %d to be zeroed; got 0x%x", i, b)
		}
	}

	if got := env.Calloc(1<<40, 1<<40); got != 0 || env.Errno != ENOMEM {
		t.Fatalf("expected an overflowing Calloc to fail with ENOMEM; got 0x%x, %d", got, env.Errno)
	}
}

func TestMallocAfterTeardown(t *testing.T) {
	env, _ := newEnv(t, sim.Options{})

	if !env.Context().ExitBootServices() {
		t.Fatal("expected teardown to succeed")
	}
	if got := env.Malloc(16); got != 0 || env.Errno != ENOMEM {
		t.Fatalf("expected Malloc to fail with ENOMEM after teardown; got 0x%x, %d", got, env.Errno)
	}
}

func TestStrtol(t *testing.T) {
	specs := []struct {
		input    string
		base     int
		exp      int64
		expLen   int
		expErrno Errno
	}{
		{"42", 10, 42, 2, 0},
		{"-42", 0, -42, 3, 0},
		{"+7", 0, 7, 2, 0},
		{"  7", 10, 7, 3, 0},
		{"0x1f", 0, 31, 4, 0},
		{"0X1F", 16, 31, 4, 0},
		{"1f", 16, 31, 2, 0},
		{"017", 0, 15, 3, 0},
		{"0", 0, 0, 1, 0},
		{"0x", 0, 0, 1, 0},
		{"12abc", 10, 12, 2, 0},
		{"zz", 36, 1295, 2, 0},
		{"101", 2, 5, 3, 0},
		{"abc", 10, 0, 0, 0},
		{"", 10, 0, 0, 0},
		{"9223372036854775807", 10, math.MaxInt64, 19, 0},
		{"-9223372036854775808", 10, math.MinInt64, 20, 0},
		{"9223372036854775808", 10, math.MaxInt64, 19, ERANGE},
		{"-99999999999999999999", 10, math.MinInt64, 21, ERANGE},
		{"12", 1, 0, 0, EINVAL},
		{"12", 37, 0, 0, EINVAL},
	}

	env := New(nil)
	for specIndex, spec := range specs {
		env.Errno = 0
		got, gotLen := env.Strtol(spec.input, spec.base)
		if got != spec.exp || gotLen != spec.expLen {
			t.Errorf("[spec %d] expected Strtol(%q, %d) to return (%d, %d); got (%d, %d)", specIndex, spec.input, spec.base, spec.exp, spec.expLen, got, gotLen)
		}
		if env.Errno != spec.expErrno {
			t.Errorf("[spec %d] expected errno %d; got %d", specIndex, spec.expErrno, env.Errno)
		}
	}
}

func TestAtoi(t *testing.T) {
	specs := []struct {
		input string
		exp   int
	}{
		{"0", 0},
		{"123", 123},
		{"-123", -123},
		{"0x10", 16},
		{"-0x10", -16},
		{"010", 8},
		{"0x7fe0000", 0x7fe0000},
		{"junk", 0},
	}

	env := New(nil)
	for specIndex, spec := range specs {
		if got := env.Atoi(spec.input); got != spec.exp {
			t.Errorf("[spec %d] expected Atoi(%q) to return %d; got %d", specIndex, spec.input, spec.exp, got)
		}
	}
}

func TestMbstowcs(t *testing.T) {
	specs := []struct {
		input  string
		dstLen int
		exp    []uint16
		expN   int
	}{
		{"héllo", 16, []uint16{'h', 0xe9, 'l', 'l', 'o'}, 5},
		{"abc", 2, []uint16{'a', 'b'}, 2},
		{"a😀", 16, []uint16{'a', 0xd83d, 0xde00}, 3},
		{"a😀", 2, []uint16{'a'}, 1},
		{"\xff", 16, nil, -1},
		{"", 16, nil, 0},
	}

	for specIndex, spec := range specs {
		dst := make([]uint16, spec.dstLen)
		n := Mbstowcs(dst, spec.input)
		if n != spec.expN {
			t.Errorf("[spec %d] expected Mbstowcs to return %d; got %d", specIndex, spec.expN, n)
			continue
		}
		for i := range spec.exp {
			if dst[i] != spec.exp[i] {
				t.Errorf("[spec %d] expected unit %d to be 0x%x; got 0x%x", specIndex, i, spec.exp[i], dst[i])
			}
		}
	}
}

func TestWcstombs(t *testing.T) {
	specs := []struct {
		input  string
		dstLen int
		exp    string
	}{
		{"héllo", 16, "héllo"},
		{"aé", 2, "a"},
		{"a😀b", 16, "a😀b"},
		{"", 16, ""},
	}

	for specIndex, spec := range specs {
		dst := make([]byte, spec.dstLen)
		n := Wcstombs(dst, efi.UTF16(spec.input))
		if got := string(dst[:n]); got != spec.exp {
			t.Errorf("[spec %d] expected %q; got %q", specIndex, spec.exp, got)
		}
	}
}

func TestExit(t *testing.T) {
	fw, err := sim.New(sim.Options{})
	if err != nil {
		t.Fatal(err)
	}
	defer fw.Close()

	cfg := start.Config{Toolchain: start.Clang, Target: fw.Dispatcher()}
	ret := start.Start(cfg, start.EntryClang(fw.ImageHandle(), fw.SystemTable()), func(ctx *start.Context, _ []efi.CString16) int {
		New(ctx).Exit(-2)
		return 0
	})

	if ret != -2 {
		t.Fatalf("expected Start to return -2; got %d", ret)
	}
	if st, _ := fw.ExitStatus(); st != efi.EFIERR(2) {
		t.Fatalf("expected exit status %s; got %s", efi.EFIERR(2), st)
	}
}

func TestBsearch(t *testing.T) {
	sorted := []uint32{2, 3, 5, 7, 11, 13, 17}
	base := uintptr(unsafe.Pointer(&sorted[0]))

	cmp := func(key, elem uintptr) int {
		k, e := *(*uint32)(unsafe.Pointer(key)), *(*uint32)(unsafe.Pointer(elem))
		return int(k) - int(e)
	}

	specs := []struct {
		key      uint32
		expIndex int
	}{
		{2, 0},
		{7, 3},
		{17, 6},
		{1, -1},
		{4, -1},
		{18, -1},
	}

	for specIndex, spec := range specs {
		key := spec.key
		got := Bsearch(uintptr(unsafe.Pointer(&key)), base, uintptr(len(sorted)), 4, cmp)

		exp := uintptr(0)
		if spec.expIndex >= 0 {
			exp = base + uintptr(spec.expIndex)*4
		}
		if got != exp {
			t.Errorf("[spec %d] expected Bsearch(%d) to return 0x%x; got 0x%x", specIndex, spec.key, exp, got)
		}
	}

	if got := Bsearch(base, base, 0, 4, cmp); got != 0 {
		t.Errorf("expected searching an empty array to return 0; got 0x%x", got)
	}
	runtime.KeepAlive(sorted)
}

func TestMultibyteChars(t *testing.T) {
	specs := []struct {
		input  string
		expWC  uint16
		expLen int
	}{
		{"a", 'a', 1},
		{"abc", 'a', 1},
		{"é!", 0xe9, 2},
		{"€", 0x20ac, 3},
		{"😀", 0, -1},
		{"\xc3", 0, -1},
		{"\x00a", 0, 0},
		{"", 0, 0},
	}

	for specIndex, spec := range specs {
		wc, n := Mbtowc([]byte(spec.input))
		if wc != spec.expWC || n != spec.expLen {
			t.Errorf("[spec %d] expected Mbtowc(%q) to return 0x%x, %d; got 0x%x, %d", specIndex, spec.input, spec.expWC, spec.expLen, wc, n)
		}
		if got := Mblen([]byte(spec.input)); got != spec.expLen {
			t.Errorf("[spec %d] expected Mblen(%q) to return %d; got %d", specIndex, spec.input, spec.expLen, got)
		}

		if spec.expLen <= 0 {
			continue
		}
		buf := make([]byte, 4)
		if n := Wctomb(buf, wc); n != spec.expLen || string(buf[:n]) != spec.input[:n] {
			t.Errorf("[spec %d] expected Wctomb(0x%x) to encode %q; got %q", specIndex, wc, spec.input[:spec.expLen], buf[:max0(n)])
		}
	}

	if n := Wctomb(make([]byte, 4), 0xd83d); n != -1 {
		t.Errorf("expected Wctomb of an unpaired surrogate to return -1; got %d", n)
	}
	if n := Wctomb(make([]byte, 1), 0x20ac); n != -1 {
		t.Errorf("expected Wctomb into a short buffer to return -1; got %d", n)
	}
}

func max0(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
