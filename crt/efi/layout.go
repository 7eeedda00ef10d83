package efi

// Field offsets of the firmware structures on x86-64. They are shared by the
// views in this package and by firmware implementations that build the
// tables.
const (
	// EFI_TABLE_HEADER
	HeaderSize = 24

	// EFI_SYSTEM_TABLE
	SystemFirmwareVendor   = 24
	SystemFirmwareRevision = 32
	SystemConInHandle      = 40
	SystemConIn            = 48
	SystemConOutHandle     = 56
	SystemConOut           = 64
	SystemStdErrHandle     = 72
	SystemStdErr           = 80
	SystemRuntimeServices  = 88
	SystemBootServices     = 96
	SystemTableEntries     = 104
	SystemConfigTable      = 112
	SystemTableSize        = 120

	// EFI_BOOT_SERVICES
	BootGetMemoryMap      = 56
	BootAllocatePool      = 64
	BootFreePool          = 72
	BootCheckEvent        = 120
	BootHandleProtocol    = 152
	BootExit              = 216
	BootExitBootServices  = 232
	BootStall             = 248
	BootOpenProtocol      = 280
	BootServicesTableSize = 376

	// EFI_RUNTIME_SERVICES
	RuntimeGetTime           = 24
	RuntimeResetSystem       = 104
	RuntimeServicesTableSize = 136

	// EFI_SIMPLE_TEXT_INPUT_PROTOCOL
	InputReset         = 0
	InputReadKeyStroke = 8
	InputWaitForKey    = 16
	InputProtocolSize  = 24

	// EFI_SIMPLE_TEXT_OUTPUT_PROTOCOL
	OutputReset        = 0
	OutputString       = 8
	OutputTestString   = 16
	OutputClearScreen  = 48
	OutputProtocolSize = 80

	// EFI_LOADED_IMAGE_PROTOCOL
	LoadedImageRevision        = 0
	LoadedImageParentHandle    = 8
	LoadedImageSystemTable     = 16
	LoadedImageDeviceHandle    = 24
	LoadedImageFilePath        = 32
	LoadedImageLoadOptionsSize = 48
	LoadedImageLoadOptions     = 56
	LoadedImageImageBase       = 64
	LoadedImageImageSize       = 72
	LoadedImageCodeType        = 80
	LoadedImageDataType        = 84
	LoadedImageUnload          = 88
	LoadedImageProtocolSize    = 96

	// EFI_SHELL_PARAMETERS_PROTOCOL
	ShellParametersArgv   = 0
	ShellParametersArgc   = 8
	ShellParametersStdIn  = 16
	ShellParametersStdOut = 24
	ShellParametersStdErr = 32
	ShellParametersSize   = 40

	// EFI_SHELL_INTERFACE
	ShellInterfaceImageHandle = 0
	ShellInterfaceInfo        = 8
	ShellInterfaceArgv        = 16
	ShellInterfaceArgc        = 24
	ShellInterfaceSize        = 64

	// EFI_SIMPLE_FILE_SYSTEM_PROTOCOL
	SimpleFSRevision   = 0
	SimpleFSOpenVolume = 8
	SimpleFSSize       = 16

	// EFI_FILE_PROTOCOL
	FileRevision     = 0
	FileOpen         = 8
	FileClose        = 16
	FileDelete       = 24
	FileRead         = 32
	FileWrite        = 40
	FileGetPosition  = 48
	FileSetPosition  = 56
	FileGetInfo      = 64
	FileSetInfo      = 72
	FileFlush        = 80
	FileProtocolSize = 88

	// EFI_FILE_INFO
	FileInfoSize             = 0
	FileInfoFileSize         = 8
	FileInfoPhysicalSize     = 16
	FileInfoCreateTime       = 24
	FileInfoLastAccessTime   = 40
	FileInfoModificationTime = 56
	FileInfoAttribute        = 72
	FileInfoFileName         = 80

	// EFI_TIME
	TimeSize = 16

	// EFI_MEMORY_DESCRIPTOR
	MemoryDescriptorSize = 40
)

// OpenProtocol attributes.
const (
	OpenProtocolByHandleProtocol = 0x01
	OpenProtocolGetProtocol      = 0x02
	OpenProtocolTestProtocol     = 0x04
)

// ResetType values accepted by ResetSystem.
type ResetType uint32

// Reset types.
const (
	ResetCold ResetType = iota
	ResetWarm
	ResetShutdown
)
