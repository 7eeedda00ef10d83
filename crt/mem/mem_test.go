package mem

import (
	"testing"
	"unsafe"
)

func TestMemset(t *testing.T) {
	// a zero size never touches the address
	Memset(uintptr(0), 0x00, 0)

	specs := []uintptr{1, 2, 3, 7, 64, 1000, uintptr(PageSize) + 5, 3 * uintptr(PageSize)}

	for specIndex, size := range specs {
		// one guard byte on either side
		buf := make([]byte, size+2)
		for i := range buf {
			buf[i] = 0xfe
		}

		Memset(uintptr(unsafe.Pointer(&buf[1])), 0xaa, size)

		if buf[0] != 0xfe || buf[len(buf)-1] != 0xfe {
			t.Errorf("[spec %d] expected guard bytes to be left alone; got 0x%x and 0x%x", specIndex, buf[0], buf[len(buf)-1])
		}
		for i, b := range buf[1 : size+1] {
			if b != 0xaa {
				t.Errorf("[spec %d] expected byte %d to be 0xaa; got 0x%x", specIndex, i, b)
				break
			}
		}
	}
}

func TestMemcopy(t *testing.T) {
	// memcopy with a 0 size should be a no-op
	Memcopy(uintptr(0), uintptr(0), 0)

	var (
		src = make([]byte, PageSize)
		dst = make([]byte, PageSize)
	)
	for i := 0; i < len(src); i++ {
		src[i] = byte(i % 256)
	}

	Memcopy(AddrOf(src), AddrOf(dst), uintptr(PageSize))

	for i := 0; i < len(src); i++ {
		if got := dst[i]; got != src[i] {
			t.Errorf("value mismatch between src and dst at index %d", i)
		}
	}
}

func TestWordAccess(t *testing.T) {
	buf := make([]uint64, 4)
	base := uintptr(unsafe.Pointer(&buf[0]))

	WriteUint64(base, 0xdeadbeefcafebabe)
	WriteUint32(base+8, 0xbadf00d)
	WriteUint16(base+16, 0xfeed)

	if got := ReadUint64(base); got != 0xdeadbeefcafebabe {
		t.Errorf("expected ReadUint64 to return 0xdeadbeefcafebabe; got 0x%x", got)
	}
	if got := ReadUint32(base + 8); got != 0xbadf00d {
		t.Errorf("expected ReadUint32 to return 0xbadf00d; got 0x%x", got)
	}
	if got := ReadUint16(base + 16); got != 0xfeed {
		t.Errorf("expected ReadUint16 to return 0xfeed; got 0x%x", got)
	}
	if got := ReadPtr(base); got != uintptr(0xdeadbeefcafebabe) {
		t.Errorf("expected ReadPtr to return 0xdeadbeefcafebabe; got 0x%x", got)
	}
}

func TestCell(t *testing.T) {
	c := NewCell()
	WriteUint64(uintptr(c.Addr()), 42)
	if got := c.Get(); got != 42 {
		t.Fatalf("expected write through cell address to be visible; got %d", got)
	}

	c.Set(7)
	if got := ReadUint64(uintptr(c.Addr())); got != 7 {
		t.Fatalf("expected read through cell address to return 7; got %d", got)
	}
}

func TestSizeHelpers(t *testing.T) {
	specs := []struct {
		size     Size
		expPages uint64
	}{
		{0, 0},
		{1, 1},
		{PageSize, 1},
		{PageSize + 1, 2},
		{3 * Mb, 768},
	}

	for specIndex, spec := range specs {
		if got := spec.size.Pages(); got != spec.expPages {
			t.Errorf("[spec %d] expected %d pages; got %d", specIndex, spec.expPages, got)
		}
	}

	if got := AlignUp(0x1001, 16); got != 0x1010 {
		t.Errorf("expected AlignUp(0x1001, 16) to return 0x1010; got 0x%x", got)
	}
	if got := AlignUp(0x1000, 16); got != 0x1000 {
		t.Errorf("expected AlignUp(0x1000, 16) to return 0x1000; got 0x%x", got)
	}
}
