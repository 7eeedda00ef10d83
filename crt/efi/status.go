// Package efi provides views over the UEFI system table, the boot and runtime
// services and the protocols used by the runtime. Every view wraps the address
// of a firmware structure and issues calls through an abi.Bridge.
package efi

import "github.com/rdvdev2/posix-uefi-cmake/crt"

// Status is an EFI_STATUS code. Codes with the high bit set are errors; other
// non-zero codes are warnings.
type Status uint64

const errorBit Status = 1 << 63

// Status codes used by the runtime.
const (
	Success Status = 0

	WarnUnknownGlyph   Status = 1
	WarnDeleteFailure  Status = 2
	WarnWriteFailure   Status = 3
	WarnBufferTooSmall Status = 4

	LoadError        = errorBit | 1
	InvalidParameter = errorBit | 2
	Unsupported      = errorBit | 3
	BadBufferSize    = errorBit | 4
	BufferTooSmall   = errorBit | 5
	NotReady         = errorBit | 6
	DeviceError      = errorBit | 7
	WriteProtected   = errorBit | 8
	OutOfResources   = errorBit | 9
	VolumeCorrupted  = errorBit | 10
	VolumeFull       = errorBit | 11
	NoMedia          = errorBit | 12
	MediaChanged     = errorBit | 13
	NotFound         = errorBit | 14
	AccessDenied     = errorBit | 15
	NoResponse       = errorBit | 16
	NoMapping        = errorBit | 17
	Timeout          = errorBit | 18
	NotStarted       = errorBit | 19
	AlreadyStarted   = errorBit | 20
	Aborted          = errorBit | 21
	EndOfFile        = errorBit | 31
)

var statusNames = map[Status]string{
	Success:            "success",
	WarnUnknownGlyph:   "unknown glyph",
	WarnDeleteFailure:  "delete failure",
	WarnWriteFailure:   "write failure",
	WarnBufferTooSmall: "buffer too small (warning)",
	LoadError:          "load error",
	InvalidParameter:   "invalid parameter",
	Unsupported:        "unsupported",
	BadBufferSize:      "bad buffer size",
	BufferTooSmall:     "buffer too small",
	NotReady:           "not ready",
	DeviceError:        "device error",
	WriteProtected:     "write protected",
	OutOfResources:     "out of resources",
	VolumeCorrupted:    "volume corrupted",
	VolumeFull:         "volume full",
	NoMedia:            "no media",
	MediaChanged:       "media changed",
	NotFound:           "not found",
	AccessDenied:       "access denied",
	NoResponse:         "no response",
	NoMapping:          "no mapping",
	Timeout:            "timeout",
	NotStarted:         "not started",
	AlreadyStarted:     "already started",
	Aborted:            "aborted",
	EndOfFile:          "end of file",
}

// ErrBootServicesExited is returned by every boot service call issued after a
// successful ExitBootServices.
var ErrBootServicesExited = &crt.Error{Module: "efi", Message: "boot services are no longer available"}

// EFIERR returns the error status with the given code.
func EFIERR(code uint64) Status {
	return errorBit | Status(code&^uint64(errorBit))
}

// IsError reports whether s has the error bit set.
func (s Status) IsError() bool {
	return s&errorBit != 0
}

// Code returns s without the error bit.
func (s Status) Code() uint64 {
	return uint64(s &^ errorBit)
}

// Err returns nil for success and warning codes and s otherwise.
func (s Status) Err() error {
	if !s.IsError() {
		return nil
	}
	return s
}

// Error implements the error interface.
func (s Status) Error() string {
	if name, ok := statusNames[s]; ok {
		return name
	}

	buf := make([]byte, 0, 32)
	if s.IsError() {
		buf = append(buf, "error "...)
	} else {
		buf = append(buf, "warning "...)
	}
	return string(appendUint(buf, s.Code()))
}

func appendUint(buf []byte, v uint64) []byte {
	var tmp [20]byte
	i := len(tmp)
	for {
		i--
		tmp[i] = byte('0' + v%10)
		v /= 10
		if v == 0 {
			break
		}
	}
	return append(buf, tmp[i:]...)
}
