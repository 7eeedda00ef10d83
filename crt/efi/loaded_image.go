package efi

import "github.com/rdvdev2/posix-uefi-cmake/crt/mem"

// LoadedImage is a view over EFI_LOADED_IMAGE_PROTOCOL.
type LoadedImage struct {
	addr uintptr
}

// NewLoadedImage returns a view over the protocol instance at addr.
func NewLoadedImage(addr uintptr) *LoadedImage {
	return &LoadedImage{addr: addr}
}

// Addr returns the address of the protocol instance.
func (li *LoadedImage) Addr() uintptr {
	return li.addr
}

// DeviceHandle returns the handle of the device the image was loaded from.
func (li *LoadedImage) DeviceHandle() Handle {
	return Handle(mem.ReadPtr(li.addr + LoadedImageDeviceHandle))
}

// LoadOptions returns the image load options as UTF-16 code units, without
// a trailing NUL.
func (li *LoadedImage) LoadOptions() []uint16 {
	size := mem.ReadUint32(li.addr + LoadedImageLoadOptionsSize)
	opts := mem.ReadPtr(li.addr + LoadedImageLoadOptions)
	if size < 2 || opts == 0 {
		return nil
	}

	units := mem.Words(opts, int(size/2))
	for i, u := range units {
		if u == 0 {
			return units[:i]
		}
	}
	return units
}

// ImageBase returns the address the image was loaded at.
func (li *LoadedImage) ImageBase() uintptr {
	return mem.ReadPtr(li.addr + LoadedImageImageBase)
}

// ImageSize returns the size of the loaded image.
func (li *LoadedImage) ImageSize() uint64 {
	return mem.ReadUint64(li.addr + LoadedImageImageSize)
}

// ImageDataType returns the memory type used for the image data sections.
func (li *LoadedImage) ImageDataType() MemoryType {
	return MemoryType(mem.ReadUint32(li.addr + LoadedImageDataType))
}
