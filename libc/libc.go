// Package libc implements the small C library the runtime offers to
// applications: file streams and formatted console output, pool backed
// memory allocation, number parsing, wide string helpers, stat and time.
//
// Every function is expressed in terms of the firmware services captured by
// start.Start. Functions that fail set Env.Errno the way their C
// counterparts set errno.
package libc

import (
	"github.com/rdvdev2/posix-uefi-cmake/crt/efi"
	"github.com/rdvdev2/posix-uefi-cmake/crt/kfmt"
	"github.com/rdvdev2/posix-uefi-cmake/crt/start"
)

var logger = kfmt.NewPrefixWriter(nil, "libc")

// Env holds the library state of one running image.
type Env struct {
	ctx *start.Context

	// root is the directory the boot volume was opened at. It is opened
	// on first use.
	root *efi.File

	// sizes tracks the requested size of each pool allocation so Realloc
	// can copy the old contents.
	sizes map[uintptr]uint64

	// tokNext is where Strtok resumes.
	tokNext efi.CString16

	// Errno is set by failing calls.
	Errno Errno

	Stdin, Stdout, Stderr *File
}

// New returns the library state for ctx.
func New(ctx *start.Context) *Env {
	env := &Env{
		ctx:   ctx,
		sizes: make(map[uintptr]uint64),
	}

	env.Stdin = &File{env: env, std: streamStdin}
	env.Stdout = &File{env: env, std: streamStdout}
	env.Stderr = &File{env: env, std: streamStderr}
	return env
}

// Context returns the context the library was created for.
func (env *Env) Context() *start.Context {
	return env.ctx
}

// setErrno records the errno matching err and returns it.
func (env *Env) setErrno(err error) Errno {
	env.Errno = ErrnoOf(err)
	return env.Errno
}
