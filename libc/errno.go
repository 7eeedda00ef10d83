package libc

import (
	"strconv"

	"github.com/rdvdev2/posix-uefi-cmake/crt/efi"
)

// Errno is a C library error number.
type Errno int

// Error numbers reported by the library.
const (
	EPERM  Errno = 1
	ENOENT Errno = 2
	EIO    Errno = 5
	EBADF  Errno = 9
	ENOMEM Errno = 12
	EACCES Errno = 13
	EEXIST Errno = 17
	ENODEV Errno = 19
	EISDIR Errno = 21
	EINVAL Errno = 22
	ENOSPC Errno = 28
	ESPIPE Errno = 29
	EROFS  Errno = 30
	ERANGE Errno = 34
)

var errnoNames = map[Errno]string{
	EPERM:  "operation not permitted",
	ENOENT: "no such file or directory",
	EIO:    "input/output error",
	EBADF:  "bad file descriptor",
	ENOMEM: "cannot allocate memory",
	EACCES: "permission denied",
	EEXIST: "file exists",
	ENODEV: "no such device",
	EISDIR: "is a directory",
	EINVAL: "invalid argument",
	ENOSPC: "no space left on device",
	ESPIPE: "illegal seek",
	EROFS:  "read-only file system",
	ERANGE: "numerical result out of range",
}

// Error implements the error interface.
func (e Errno) Error() string {
	if name, ok := errnoNames[e]; ok {
		return name
	}
	return "errno " + strconv.Itoa(int(e))
}

// ErrnoOf maps an error returned by a firmware call to an errno. Errors that
// do not come from the firmware map to EIO.
func ErrnoOf(err error) Errno {
	switch err {
	case nil:
		return 0
	case efi.WriteProtected:
		return EROFS
	case efi.AccessDenied, efi.WarnDeleteFailure:
		return EACCES
	case efi.VolumeFull:
		return ENOSPC
	case efi.NotFound:
		return ENOENT
	}

	if e, ok := err.(Errno); ok {
		return e
	}
	return EIO
}
