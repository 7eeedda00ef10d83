package libc

import (
	"time"

	"github.com/rdvdev2/posix-uefi-cmake/crt/efi"
)

// Mode holds the file type and permission bits reported by Stat.
type Mode uint32

// Mode bits.
const (
	ModeTypeMask Mode = 0o170000
	ModeFIFO     Mode = 0o010000
	ModeDir      Mode = 0o040000
	ModeRegular  Mode = 0o100000
	ModeRead     Mode = 0o000400
	ModeWrite    Mode = 0o000200
)

// IsDir reports whether m describes a directory.
func (m Mode) IsDir() bool {
	return m&ModeTypeMask == ModeDir
}

// blockSize is the unit of FileStat.Blocks.
const blockSize = 512

// FileStat describes a file.
type FileStat struct {
	Mode   Mode
	Size   int64
	Blocks int64

	Atime, Mtime, Ctime time.Time
}

// Fstat describes the open stream f.
func (env *Env) Fstat(f *File) (*FileStat, error) {
	switch {
	case f == nil:
		env.Errno = EINVAL
		return nil, EINVAL
	case f.std == streamStdin:
		return &FileStat{Mode: ModeRead | ModeFIFO}, nil
	case f.std != streamFile:
		return &FileStat{Mode: ModeWrite | ModeFIFO}, nil
	}

	info, err := f.fh.GetInfo()
	if err != nil {
		return nil, env.setErrno(err)
	}

	st := &FileStat{
		Mode:   ModeRead,
		Size:   int64(info.FileSize),
		Blocks: int64((info.PhysicalSize + blockSize - 1) / blockSize),
		Atime:  info.LastAccessTime.GoTime(),
		Mtime:  info.ModificationTime.GoTime(),
		Ctime:  info.CreateTime.GoTime(),
	}
	if info.Attribute&efi.FileReadOnly == 0 {
		st.Mode |= ModeWrite
	}
	if info.IsDir() {
		st.Mode |= ModeDir
	} else {
		st.Mode |= ModeRegular
	}
	return st, nil
}

// Stat describes the file at path without modifying it.
func (env *Env) Stat(path string) (*FileStat, error) {
	if path == "" {
		env.Errno = EINVAL
		return nil, EINVAL
	}

	f := env.Fopen(path, "*")
	if f == nil {
		return nil, env.Errno
	}
	defer f.Close()

	return env.Fstat(f)
}

// Mkdir creates the directory path. It fails with EEXIST if anything
// already exists at path.
func (env *Env) Mkdir(path string) error {
	if path == "" {
		env.Errno = EINVAL
		return EINVAL
	}

	if f := env.Fopen(path, "*"); f != nil {
		f.Close()
		env.Errno = EEXIST
		return EEXIST
	}
	if env.Errno != ENOENT {
		return env.Errno
	}

	f := env.Fopen(path, "wd")
	if f == nil {
		return env.Errno
	}
	return f.Close()
}
