package efi

import (
	"runtime"

	"github.com/rdvdev2/posix-uefi-cmake/crt/abi"
	"github.com/rdvdev2/posix-uefi-cmake/crt/mem"
)

// File open modes.
const (
	FileModeRead   uint64 = 1
	FileModeWrite  uint64 = 2
	FileModeCreate uint64 = 1 << 63
)

// File attributes.
const (
	FileReadOnly  uint64 = 0x01
	FileHidden    uint64 = 0x02
	FileSystem    uint64 = 0x04
	FileDirectory uint64 = 0x10
	FileArchive   uint64 = 0x20
)

// fileInfoBufSize is large enough for an EFI_FILE_INFO with a 256 character
// file name.
const fileInfoBufSize = FileInfoFileName + 2*256 + 2

// SimpleFileSystem is a view over EFI_SIMPLE_FILE_SYSTEM_PROTOCOL.
type SimpleFileSystem struct {
	addr   uintptr
	bridge *abi.Bridge
}

// NewSimpleFileSystem returns a view over the protocol instance at addr.
func NewSimpleFileSystem(addr uintptr, bridge *abi.Bridge) *SimpleFileSystem {
	return &SimpleFileSystem{addr: addr, bridge: bridge}
}

// OpenVolume opens the root directory of the volume.
func (fs *SimpleFileSystem) OpenVolume() (*File, error) {
	out := mem.NewCell()
	fn := mem.ReadPtr(fs.addr + SimpleFSOpenVolume)

	if err := Status(fs.bridge.Call2(fn, uint64(fs.addr), out.Addr())).Err(); err != nil {
		return nil, err
	}
	return &File{addr: uintptr(out.Get()), bridge: fs.bridge}, nil
}

// File is a view over EFI_FILE_PROTOCOL.
type File struct {
	addr   uintptr
	bridge *abi.Bridge
}

// Addr returns the address of the protocol instance.
func (f *File) Addr() uintptr {
	return f.addr
}

func (f *File) fn(offset uintptr) uintptr {
	return mem.ReadPtr(f.addr + offset)
}

// Open opens name relative to f.
func (f *File) Open(name string, mode, attrs uint64) (*File, error) {
	out := mem.NewCell()
	path := UTF16(name)

	st := Status(f.bridge.Call5(f.fn(FileOpen), uint64(f.addr), out.Addr(), Addr16(path), mode, attrs))
	runtime.KeepAlive(path)
	if err := st.Err(); err != nil {
		return nil, err
	}
	return &File{addr: uintptr(out.Get()), bridge: f.bridge}, nil
}

// Close closes the file handle.
func (f *File) Close() error {
	return Status(f.bridge.Call1(f.fn(FileClose), uint64(f.addr))).Err()
}

// NewFile returns a view over the file protocol instance at addr.
func NewFile(addr uintptr, bridge *abi.Bridge) *File {
	return &File{addr: addr, bridge: bridge}
}

// Delete closes and deletes the file. The handle is closed even if the file
// could not be deleted, which is reported as WarnDeleteFailure.
func (f *File) Delete() error {
	st := Status(f.bridge.Call1(f.fn(FileDelete), uint64(f.addr)))
	if st == WarnDeleteFailure {
		return st
	}
	return st.Err()
}

// Read reads up to len(p) bytes. The byte count is returned together with
// the firmware status, so END_OF_FILE can be told apart from other errors.
func (f *File) Read(p []byte) (int, Status) {
	return f.transfer(FileRead, p)
}

// Write writes p and returns the number of bytes written.
func (f *File) Write(p []byte) (int, Status) {
	return f.transfer(FileWrite, p)
}

func (f *File) transfer(offset uintptr, p []byte) (int, Status) {
	size := mem.NewCell()
	size.Set(uint64(len(p)))

	buf := p
	if len(p) > 0 {
		// firmware writes must land in memory that cannot move
		buf = mem.NewBuffer(len(p))
		copy(buf, p)
	}

	st := Status(f.bridge.Call3(f.fn(offset), uint64(f.addr), size.Addr(), uint64(mem.AddrOf(buf))))
	runtime.KeepAlive(buf)
	n := int(size.Get())
	if n > len(p) {
		n = len(p)
	}
	if offset == FileRead {
		copy(p, buf[:n])
	}
	return n, st
}

// GetPosition returns the current byte offset.
func (f *File) GetPosition() (uint64, error) {
	out := mem.NewCell()
	if err := Status(f.bridge.Call2(f.fn(FileGetPosition), uint64(f.addr), out.Addr())).Err(); err != nil {
		return 0, err
	}
	return out.Get(), nil
}

// SetPosition moves the current byte offset. The position ^0 seeks to the
// end of the file.
func (f *File) SetPosition(pos uint64) error {
	return Status(f.bridge.Call2(f.fn(FileSetPosition), uint64(f.addr), pos)).Err()
}

// Flush writes buffered data to the device.
func (f *File) Flush() error {
	return Status(f.bridge.Call1(f.fn(FileFlush), uint64(f.addr))).Err()
}

// FileInfo is the decoded form of EFI_FILE_INFO.
type FileInfo struct {
	FileSize         uint64
	PhysicalSize     uint64
	CreateTime       Time
	LastAccessTime   Time
	ModificationTime Time
	Attribute        uint64
	FileName         string
}

// IsDir reports whether the directory attribute is set.
func (fi *FileInfo) IsDir() bool {
	return fi.Attribute&FileDirectory != 0
}

// GetInfo returns the EFI_FILE_INFO record of f.
func (f *File) GetInfo() (*FileInfo, error) {
	size := mem.NewCell()
	buf := mem.NewBuffer(fileInfoBufSize)
	size.Set(uint64(len(buf)))

	st := Status(f.bridge.Call4(f.fn(FileGetInfo), uint64(f.addr), FileInfoGUID.Addr(), size.Addr(), uint64(mem.AddrOf(buf))))
	if st == BufferTooSmall {
		buf = mem.NewBuffer(int(size.Get()))
		st = Status(f.bridge.Call4(f.fn(FileGetInfo), uint64(f.addr), FileInfoGUID.Addr(), size.Addr(), uint64(mem.AddrOf(buf))))
	}
	if err := st.Err(); err != nil {
		return nil, err
	}

	return DecodeFileInfo(buf[:size.Get()]), nil
}

// DecodeFileInfo decodes a raw EFI_FILE_INFO record.
func DecodeFileInfo(raw []byte) *FileInfo {
	if len(raw) < FileInfoFileName {
		return &FileInfo{}
	}

	base := mem.AddrOf(raw)
	info := &FileInfo{
		FileSize:         mem.ReadUint64(base + FileInfoFileSize),
		PhysicalSize:     mem.ReadUint64(base + FileInfoPhysicalSize),
		CreateTime:       ReadTime(base + FileInfoCreateTime),
		LastAccessTime:   ReadTime(base + FileInfoLastAccessTime),
		ModificationTime: ReadTime(base + FileInfoModificationTime),
		Attribute:        mem.ReadUint64(base + FileInfoAttribute),
	}
	info.FileName = DecodeUTF16(mem.Words(base+FileInfoFileName, (len(raw)-FileInfoFileName)/2))
	return info
}

// EncodeFileInfo builds a raw EFI_FILE_INFO record for info.
func EncodeFileInfo(info *FileInfo) []byte {
	name := UTF16(info.FileName)
	raw := mem.NewBuffer(FileInfoFileName + 2*len(name))
	base := mem.AddrOf(raw)

	mem.WriteUint64(base+FileInfoSize, uint64(len(raw)))
	mem.WriteUint64(base+FileInfoFileSize, info.FileSize)
	mem.WriteUint64(base+FileInfoPhysicalSize, info.PhysicalSize)
	WriteTime(base+FileInfoCreateTime, info.CreateTime)
	WriteTime(base+FileInfoLastAccessTime, info.LastAccessTime)
	WriteTime(base+FileInfoModificationTime, info.ModificationTime)
	mem.WriteUint64(base+FileInfoAttribute, info.Attribute)
	copy(mem.Words(base+FileInfoFileName, len(name)), name)
	return raw
}
