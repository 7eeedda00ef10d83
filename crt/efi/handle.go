package efi

// Handle is an EFI_HANDLE.
type Handle uintptr

// Event is an EFI_EVENT.
type Event uintptr
