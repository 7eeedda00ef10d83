package efi

import "unsafe"

// GUID is an EFI_GUID. Its memory layout matches the firmware's, so the
// address of a GUID value can be passed to boot services directly.
type GUID struct {
	Data1 uint32
	Data2 uint16
	Data3 uint16
	Data4 [8]byte
}

// Protocol GUIDs. They are package level variables so their addresses stay
// valid for the lifetime of the image.
var (
	LoadedImageProtocolGUID = GUID{
		0x5B1B31A1, 0x9562, 0x11d2,
		[8]byte{0x8E, 0x3F, 0x00, 0xA0, 0xC9, 0x69, 0x72, 0x3B},
	}

	ShellParametersProtocolGUID = GUID{
		0x752f3136, 0x4e16, 0x4fdc,
		[8]byte{0xa2, 0x2a, 0xe5, 0xf4, 0x68, 0x12, 0xf4, 0xca},
	}

	ShellInterfaceProtocolGUID = GUID{
		0x47C7B223, 0xC42A, 0x11D2,
		[8]byte{0x8E, 0x57, 0x00, 0xA0, 0xC9, 0x69, 0x72, 0x3B},
	}

	SimpleFileSystemProtocolGUID = GUID{
		0x964e5b22, 0x6459, 0x11d2,
		[8]byte{0x8e, 0x39, 0x00, 0xa0, 0xc9, 0x69, 0x72, 0x3b},
	}

	FileInfoGUID = GUID{
		0x09576e92, 0x6d3f, 0x11d2,
		[8]byte{0x8e, 0x39, 0x00, 0xa0, 0xc9, 0x69, 0x72, 0x3b},
	}
)

// Addr returns the address of g.
func (g *GUID) Addr() uint64 {
	return uint64(uintptr(unsafe.Pointer(g)))
}

// ReadGUID copies the GUID stored at addr.
func ReadGUID(addr uintptr) GUID {
	return *(*GUID)(unsafe.Pointer(addr))
}

// String returns g in registry format.
func (g GUID) String() string {
	const hex = "0123456789abcdef"

	var (
		buf [36]byte
		pos int
	)

	put := func(v uint64, digits int) {
		for shift := (digits - 1) * 4; shift >= 0; shift -= 4 {
			buf[pos] = hex[(v>>uint(shift))&0xf]
			pos++
		}
	}
	dash := func() {
		buf[pos] = '-'
		pos++
	}

	put(uint64(g.Data1), 8)
	dash()
	put(uint64(g.Data2), 4)
	dash()
	put(uint64(g.Data3), 4)
	dash()
	put(uint64(g.Data4[0])<<8|uint64(g.Data4[1]), 4)
	dash()
	for _, b := range g.Data4[2:] {
		put(uint64(b), 2)
	}

	return string(buf[:])
}
