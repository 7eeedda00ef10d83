package sim

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rdvdev2/posix-uefi-cmake/crt/abi"
	"github.com/rdvdev2/posix-uefi-cmake/crt/efi"
	"github.com/rdvdev2/posix-uefi-cmake/crt/mem"
	"github.com/samber/lo"
)

// openFile is the host side state of an EFI_FILE_PROTOCOL instance.
type openFile struct {
	// rel is the slash separated path relative to the volume root.
	rel      string
	host     string
	f        *os.File
	dir      bool
	writable bool

	pos     uint64
	entries []fs.DirEntry
}

func (f *openFile) close() {
	if f.f != nil {
		f.f.Close()
		f.f = nil
	}
}

// registerFileServices registers the services shared by all file
// instances the first time a file is opened.
func (fw *Firmware) registerFileServices() {
	if len(fw.fileFns) != 0 {
		return
	}

	for off, svc := range map[uintptr]abi.Service{
		efi.FileOpen:        fw.fileOpen,
		efi.FileClose:       fw.fileClose,
		efi.FileDelete:      fw.fileDelete,
		efi.FileRead:        fw.fileRead,
		efi.FileWrite:       fw.fileWrite,
		efi.FileGetPosition: fw.fileGetPosition,
		efi.FileSetPosition: fw.fileSetPosition,
		efi.FileGetInfo:     fw.fileGetInfo,
		efi.FileSetInfo:     func(abi.Args) uint64 { return status(efi.Unsupported) },
		efi.FileFlush:       fw.fileFlush,
	} {
		fw.fileFns[off] = fw.disp.Register(svc)
	}
}

// newFile allocates a file protocol instance for f.
func (fw *Firmware) newFile(f *openFile) (uintptr, error) {
	fw.registerFileServices()

	addr, err := fw.calloc(efi.FileProtocolSize)
	if err != nil {
		return 0, err
	}

	mem.WriteUint64(addr+efi.FileRevision, 0x10000)
	for off, fn := range fw.fileFns {
		mem.WriteUint64(addr+off, uint64(fn))
	}
	fw.files[addr] = f
	return addr, nil
}

// openVolume(this, *root)
func (fw *Firmware) openVolume(args abi.Args) uint64 {
	out := uintptr(args.Arg(1))
	if out == 0 {
		return status(efi.InvalidParameter)
	}

	root := &openFile{rel: ".", host: fw.opts.Root, dir: true}
	addr, err := fw.newFile(root)
	if err != nil {
		return status(efi.OutOfResources)
	}

	mem.WriteUint64(out, uint64(addr))
	return status(efi.Success)
}

// resolve converts a UEFI path relative to dir into a slash separated volume
// path. Paths that escape the volume resolve to the root.
func resolve(dir, name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	if strings.HasPrefix(name, "/") {
		return path.Clean("." + name)
	}
	return path.Clean(path.Join(dir, name))
}

func statusOf(err error) efi.Status {
	switch {
	case err == nil:
		return efi.Success
	case errors.Is(err, fs.ErrNotExist):
		return efi.NotFound
	case errors.Is(err, fs.ErrPermission):
		return efi.AccessDenied
	case errors.Is(err, fs.ErrExist):
		return efi.AccessDenied
	default:
		return efi.DeviceError
	}
}

// fileOpen(this, *newHandle, *fileName, openMode, attributes)
func (fw *Firmware) fileOpen(args abi.Args) uint64 {
	parent, ok := fw.files[uintptr(args.Arg(0))]
	out := uintptr(args.Arg(1))
	if !ok || out == 0 || args.Arg(2) == 0 {
		return status(efi.InvalidParameter)
	}

	mode := args.Arg(3)
	attrs := args.Arg(4)
	write := mode&efi.FileModeWrite != 0
	create := mode&efi.FileModeCreate != 0
	if mode&efi.FileModeRead == 0 || (create && !write) {
		return status(efi.InvalidParameter)
	}
	if write && fw.opts.ReadOnly {
		return status(efi.WriteProtected)
	}

	rel := resolve(parent.rel, efi.CString16(args.Arg(2)).String())
	if rel == ".." || strings.HasPrefix(rel, "../") {
		rel = "."
	}
	host := filepath.Join(fw.opts.Root, filepath.FromSlash(rel))

	info, err := os.Stat(host)
	switch {
	case err != nil && errors.Is(err, fs.ErrNotExist) && create:
		if attrs&efi.FileDirectory != 0 {
			err = os.Mkdir(host, 0o755)
		} else {
			var f *os.File
			if f, err = os.OpenFile(host, os.O_RDWR|os.O_CREATE, 0o644); err == nil {
				f.Close()
			}
		}
		if err != nil {
			return status(statusOf(err))
		}
		if info, err = os.Stat(host); err != nil {
			return status(statusOf(err))
		}
	case err != nil:
		return status(statusOf(err))
	}

	of := &openFile{rel: rel, host: host, dir: info.IsDir(), writable: write}
	if of.dir {
		if of.entries, err = readDir(host); err != nil {
			return status(statusOf(err))
		}
	} else {
		flag := os.O_RDONLY
		if write {
			if info.Mode().Perm()&0o200 == 0 {
				return status(efi.AccessDenied)
			}
			flag = os.O_RDWR
		}
		if of.f, err = os.OpenFile(host, flag, 0); err != nil {
			return status(statusOf(err))
		}
	}

	addr, err := fw.newFile(of)
	if err != nil {
		of.close()
		return status(efi.OutOfResources)
	}

	mem.WriteUint64(out, uint64(addr))
	return status(efi.Success)
}

func readDir(host string) ([]fs.DirEntry, error) {
	entries, err := os.ReadDir(host)
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
	return entries, nil
}

func (fw *Firmware) releaseFile(addr uintptr) *openFile {
	f := fw.files[addr]
	delete(fw.files, addr)
	f.close()
	fw.arena.UintptrFree(addr)
	return f
}

// fileClose(this)
func (fw *Firmware) fileClose(args abi.Args) uint64 {
	addr := uintptr(args.Arg(0))
	if _, ok := fw.files[addr]; !ok {
		return status(efi.InvalidParameter)
	}
	fw.releaseFile(addr)
	return status(efi.Success)
}

// fileDelete(this)
func (fw *Firmware) fileDelete(args abi.Args) uint64 {
	addr := uintptr(args.Arg(0))
	f, ok := fw.files[addr]
	if !ok {
		return status(efi.InvalidParameter)
	}

	writable := f.writable && f.rel != "."
	fw.releaseFile(addr)
	if !writable {
		// the handle is closed either way
		return status(efi.WarnDeleteFailure)
	}
	if err := os.Remove(f.host); err != nil {
		return status(efi.WarnDeleteFailure)
	}
	return status(efi.Success)
}

// fileRead(this, *bufferSize, *buffer)
func (fw *Firmware) fileRead(args abi.Args) uint64 {
	f, ok := fw.files[uintptr(args.Arg(0))]
	sizePtr := uintptr(args.Arg(1))
	if !ok || sizePtr == 0 {
		return status(efi.InvalidParameter)
	}
	size := mem.ReadUint64(sizePtr)

	if f.dir {
		return status(fw.readDirEntry(f, sizePtr, uintptr(args.Arg(2)), size))
	}

	info, err := f.f.Stat()
	if err != nil {
		return status(efi.DeviceError)
	}
	if size > 0 && f.pos >= uint64(info.Size()) {
		mem.WriteUint64(sizePtr, 0)
		return status(efi.EndOfFile)
	}

	buf := mem.Bytes(uintptr(args.Arg(2)), uintptr(size))
	n, err := f.f.ReadAt(buf, int64(f.pos))
	if err != nil && err != io.EOF {
		mem.WriteUint64(sizePtr, 0)
		return status(efi.DeviceError)
	}

	f.pos += uint64(n)
	mem.WriteUint64(sizePtr, uint64(n))
	return status(efi.Success)
}

// readDirEntry returns the next directory entry as an EFI_FILE_INFO record.
// A zero size marks the end of the directory.
func (fw *Firmware) readDirEntry(f *openFile, sizePtr, buf uintptr, size uint64) efi.Status {
	if f.pos >= uint64(len(f.entries)) {
		mem.WriteUint64(sizePtr, 0)
		return efi.Success
	}

	entry := f.entries[f.pos]
	info, err := entry.Info()
	if err != nil {
		return efi.DeviceError
	}

	raw := efi.EncodeFileInfo(fileInfo(entry.Name(), info, fw.opts.ReadOnly))
	mem.WriteUint64(sizePtr, uint64(len(raw)))
	if size < uint64(len(raw)) {
		return efi.BufferTooSmall
	}

	copy(mem.Bytes(buf, uintptr(len(raw))), raw)
	f.pos++
	return efi.Success
}

// fileWrite(this, *bufferSize, *buffer)
func (fw *Firmware) fileWrite(args abi.Args) uint64 {
	f, ok := fw.files[uintptr(args.Arg(0))]
	sizePtr := uintptr(args.Arg(1))
	if !ok || sizePtr == 0 {
		return status(efi.InvalidParameter)
	}

	switch {
	case f.dir:
		return status(efi.Unsupported)
	case fw.opts.ReadOnly:
		return status(efi.WriteProtected)
	case !f.writable:
		return status(efi.AccessDenied)
	}

	size := mem.ReadUint64(sizePtr)
	n, err := f.f.WriteAt(mem.Bytes(uintptr(args.Arg(2)), uintptr(size)), int64(f.pos))
	f.pos += uint64(n)
	mem.WriteUint64(sizePtr, uint64(n))
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return status(efi.AccessDenied)
		}
		return status(efi.VolumeFull)
	}
	return status(efi.Success)
}

// fileGetPosition(this, *position)
func (fw *Firmware) fileGetPosition(args abi.Args) uint64 {
	f, ok := fw.files[uintptr(args.Arg(0))]
	if !ok || args.Arg(1) == 0 {
		return status(efi.InvalidParameter)
	}
	if f.dir {
		return status(efi.Unsupported)
	}

	mem.WriteUint64(uintptr(args.Arg(1)), f.pos)
	return status(efi.Success)
}

// fileSetPosition(this, position)
func (fw *Firmware) fileSetPosition(args abi.Args) uint64 {
	f, ok := fw.files[uintptr(args.Arg(0))]
	if !ok {
		return status(efi.InvalidParameter)
	}

	pos := args.Arg(1)
	if f.dir {
		// directories can only be rewound
		if pos != 0 {
			return status(efi.Unsupported)
		}
		f.pos = 0
		return status(efi.Success)
	}

	if pos == ^uint64(0) {
		info, err := f.f.Stat()
		if err != nil {
			return status(efi.DeviceError)
		}
		pos = uint64(info.Size())
	}
	f.pos = pos
	return status(efi.Success)
}

// fileGetInfo(this, *infoType, *bufferSize, *buffer)
func (fw *Firmware) fileGetInfo(args abi.Args) uint64 {
	f, ok := fw.files[uintptr(args.Arg(0))]
	sizePtr := uintptr(args.Arg(2))
	if !ok || args.Arg(1) == 0 || sizePtr == 0 {
		return status(efi.InvalidParameter)
	}
	if efi.ReadGUID(uintptr(args.Arg(1))) != efi.FileInfoGUID {
		return status(efi.Unsupported)
	}

	info, err := os.Stat(f.host)
	if err != nil {
		return status(statusOf(err))
	}

	name := path.Base(f.rel)
	if f.rel == "." {
		name = ""
	}

	raw := efi.EncodeFileInfo(fileInfo(name, info, fw.opts.ReadOnly))
	size := mem.ReadUint64(sizePtr)
	mem.WriteUint64(sizePtr, uint64(len(raw)))
	if size < uint64(len(raw)) {
		return status(efi.BufferTooSmall)
	}

	copy(mem.Bytes(uintptr(args.Arg(3)), uintptr(len(raw))), raw)
	return status(efi.Success)
}

// fileFlush(this)
func (fw *Firmware) fileFlush(args abi.Args) uint64 {
	f, ok := fw.files[uintptr(args.Arg(0))]
	if !ok {
		return status(efi.InvalidParameter)
	}
	if f.f == nil || !f.writable {
		return status(efi.Success)
	}
	if err := f.f.Sync(); err != nil {
		return status(efi.DeviceError)
	}
	return status(efi.Success)
}

func fileInfo(name string, info fs.FileInfo, readOnly bool) *efi.FileInfo {
	mtime := efi.TimeOf(info.ModTime())
	size := uint64(info.Size())

	var attrs uint64
	attrs |= lo.Ternary(info.IsDir(), efi.FileDirectory, efi.FileArchive)
	if readOnly || info.Mode().Perm()&0o200 == 0 {
		attrs |= efi.FileReadOnly
	}
	if strings.HasPrefix(name, ".") && len(name) > 1 {
		attrs |= efi.FileHidden
	}

	return &efi.FileInfo{
		FileSize:         size,
		PhysicalSize:     (size + uint64(mem.PageSize) - 1) &^ (uint64(mem.PageSize) - 1),
		CreateTime:       mtime,
		LastAccessTime:   mtime,
		ModificationTime: mtime,
		Attribute:        attrs,
		FileName:         name,
	}
}

// OpenFiles returns the volume paths of the files currently open.
func (fw *Firmware) OpenFiles() []string {
	names := lo.Map(lo.Values(fw.files), func(f *openFile, _ int) string { return f.rel })
	sort.Strings(names)
	return names
}
