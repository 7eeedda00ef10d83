package start

import "github.com/rdvdev2/posix-uefi-cmake/crt/efi"

// Entry holds the values the loader passes to the image entrypoint.
type Entry struct {
	// LoadBase and Dynamic locate the image and its dynamic section. They
	// are only provided by the GNU entry stub.
	LoadBase uintptr
	Dynamic  uintptr

	SystemTable uintptr
	ImageHandle efi.Handle
}

// EntryGNU builds the entry values of an ELF-linked image.
func EntryGNU(ldbase, dyn, systab uintptr, image efi.Handle) Entry {
	return Entry{
		LoadBase:    ldbase,
		Dynamic:     dyn,
		SystemTable: systab,
		ImageHandle: image,
	}
}

// EntryClang builds the entry values of a PE-linked image, in the order the
// firmware passes them.
func EntryClang(image efi.Handle, systab uintptr) Entry {
	return Entry{SystemTable: systab, ImageHandle: image}
}
