package reloc

import (
	"debug/elf"
	"errors"
	"fmt"
	"io"

	"github.com/rdvdev2/posix-uefi-cmake/crt/kfmt"
	"github.com/rdvdev2/posix-uefi-cmake/crt/mem"
)

var (
	errNotELF64     = errors.New("image is not a little-endian ELF64 file")
	errNotX86_64    = errors.New("image machine is not x86-64")
	errNotPIE       = errors.New("image is not position independent (ET_DYN)")
	errNoLoadable   = errors.New("image has no loadable segments")
	errShortSegment = errors.New("segment file size exceeds its memory size")

	logger = kfmt.NewPrefixWriter(nil, "reloc")
)

// Allocator returns the address of a zeroed memory region of at least size
// bytes aligned to a page boundary.
type Allocator func(size uintptr) (uintptr, error)

// Image describes an ELF image mapped into memory.
type Image struct {
	// Base is the load bias: the value added to every virtual address in
	// the file to obtain its address in memory.
	Base uintptr

	// Size is the size of the mapped region.
	Size uintptr

	// Dynamic is the in-memory address of the PT_DYNAMIC segment or 0 if
	// the image has none.
	Dynamic uintptr

	// Entry is the in-memory address of the image entrypoint.
	Entry uintptr
}

// A wrappedError is an error wrapped with a location for context.
type wrappedError struct {
	location string
	inner    error
}

func (e *wrappedError) Error() string {
	return fmt.Sprintf("%s: %v", e.location, e.inner)
}

func (e *wrappedError) Unwrap() error {
	return e.inner
}

func wrapErrorf(e error, f string, a ...interface{}) error {
	return &wrappedError{location: fmt.Sprintf(f, a...), inner: e}
}

// Load maps the PT_LOAD segments of the ELF64 x86-64 ET_DYN image read from r
// into a region obtained from alloc. Bytes past the file size of a segment
// are zero filled. Relocations are not applied; callers pass the result to
// Apply.
func Load(r io.ReaderAt, alloc Allocator) (Image, error) {
	f, err := elf.NewFile(r)
	if err != nil {
		return Image{}, wrapErrorf(err, "elf header")
	}

	if f.Class != elf.ELFCLASS64 || f.Data != elf.ELFDATA2LSB {
		return Image{}, errNotELF64
	}
	if f.Machine != elf.EM_X86_64 {
		return Image{}, errNotX86_64
	}
	if f.Type != elf.ET_DYN {
		return Image{}, errNotPIE
	}

	lo, hi, err := loadSpan(f.Progs)
	if err != nil {
		return Image{}, err
	}

	size := uintptr(hi - lo)
	addr, err := alloc(size)
	if err != nil {
		return Image{}, wrapErrorf(err, "allocate %d bytes", size)
	}

	img := Image{
		Base: addr - uintptr(lo),
		Size: size,
	}
	img.Entry = img.Base + uintptr(f.Entry)

	for i, p := range f.Progs {
		switch p.Type {
		case elf.PT_LOAD:
			if err := mapSegment(img.Base, p); err != nil {
				return Image{}, wrapErrorf(err, "segment %d", i)
			}
		case elf.PT_DYNAMIC:
			img.Dynamic = img.Base + uintptr(p.Vaddr)
		}
	}

	kfmt.Fprintf(logger, "mapped %d bytes at 0x%x (entry 0x%x)\n", img.Size, addr, img.Entry)
	return img, nil
}

// loadSpan returns the page aligned virtual address range covered by the
// PT_LOAD segments.
func loadSpan(progs []*elf.Prog) (lo, hi uint64, err error) {
	lo = ^uint64(0)
	for i, p := range progs {
		if p.Type != elf.PT_LOAD {
			continue
		}
		if p.Filesz > p.Memsz {
			return 0, 0, wrapErrorf(errShortSegment, "segment %d", i)
		}
		if p.Vaddr < lo {
			lo = p.Vaddr
		}
		if end := p.Vaddr + p.Memsz; end > hi {
			hi = end
		}
	}

	if hi == 0 {
		return 0, 0, errNoLoadable
	}

	pageMask := uint64(mem.PageSize - 1)
	return lo &^ pageMask, (hi + pageMask) &^ pageMask, nil
}

func mapSegment(base uintptr, p *elf.Prog) error {
	dst := mem.Bytes(base+uintptr(p.Vaddr), uintptr(p.Memsz))
	if p.Filesz > 0 {
		if _, err := p.ReadAt(dst[:p.Filesz], 0); err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return fmt.Errorf("could not read segment: %w", err)
		}
	}

	if p.Memsz > p.Filesz {
		mem.Memset(base+uintptr(p.Vaddr+p.Filesz), 0, uintptr(p.Memsz-p.Filesz))
	}
	return nil
}
