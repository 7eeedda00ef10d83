// Package mem provides raw access to memory owned by the firmware. All
// firmware tables, protocol instances and pool allocations are reached
// through plain addresses, the same way firmware code written in C reads
// them.
package mem

import "unsafe"

// ReadUint64 returns the 64-bit little-endian word stored at addr.
func ReadUint64(addr uintptr) uint64 {
	return *(*uint64)(unsafe.Pointer(addr))
}

// WriteUint64 stores v at addr.
func WriteUint64(addr uintptr, v uint64) {
	*(*uint64)(unsafe.Pointer(addr)) = v
}

// ReadUint32 returns the 32-bit word stored at addr.
func ReadUint32(addr uintptr) uint32 {
	return *(*uint32)(unsafe.Pointer(addr))
}

// WriteUint32 stores v at addr.
func WriteUint32(addr uintptr, v uint32) {
	*(*uint32)(unsafe.Pointer(addr)) = v
}

// ReadUint16 returns the 16-bit word stored at addr.
func ReadUint16(addr uintptr) uint16 {
	return *(*uint16)(unsafe.Pointer(addr))
}

// WriteUint16 stores v at addr.
func WriteUint16(addr uintptr, v uint16) {
	*(*uint16)(unsafe.Pointer(addr)) = v
}

// ReadPtr returns the address stored at addr.
func ReadPtr(addr uintptr) uintptr {
	return uintptr(ReadUint64(addr))
}

// Bytes overlays a byte slice on top of the memory region [addr, addr+size).
// The slice aliases the region; nothing is copied.
func Bytes(addr uintptr, size uintptr) []byte {
	if size == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), size)
}

// Words overlays a uint16 slice with count entries on top of the memory
// region starting at addr.
func Words(addr uintptr, count int) []uint16 {
	if count == 0 {
		return nil
	}
	return unsafe.Slice((*uint16)(unsafe.Pointer(addr)), count)
}

// Memset fills size bytes at addr with value. The filled prefix doubles on
// every pass, so a region of n bytes takes log2(n) copies.
func Memset(addr uintptr, value byte, size uintptr) {
	if size == 0 {
		return
	}

	dst := Bytes(addr, size)
	dst[0] = value
	for filled := 1; filled < len(dst); {
		filled += copy(dst[filled:], dst[:filled])
	}
}

// Memcopy copies size bytes from src to dst.
func Memcopy(src, dst uintptr, size uintptr) {
	if size == 0 {
		return
	}

	copy(Bytes(dst, size), Bytes(src, size))
}

// AddrOf returns the address of the first byte of b. It returns 0 for an
// empty slice.
func AddrOf(b []byte) uintptr {
	if len(b) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&b[0]))
}
