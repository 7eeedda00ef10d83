package libc

import (
	"bytes"
	"io"
	"unicode/utf8"

	"github.com/rdvdev2/posix-uefi-cmake/crt/efi"
	"github.com/rdvdev2/posix-uefi-cmake/crt/kfmt"
	"github.com/rdvdev2/posix-uefi-cmake/crt/mem"
)

// Whence values for Fseek.
const (
	SeekSet = io.SeekStart
	SeekCur = io.SeekCurrent
	SeekEnd = io.SeekEnd
)

// dumpRows is the number of 16 byte rows printed by Dumpmem.
const dumpRows = 8

type stream uint8

const (
	streamFile stream = iota
	streamStdin
	streamStdout
	streamStderr
)

// File is an open stream. The standard streams are bound to the firmware
// consoles; every other stream wraps a file on the boot volume.
type File struct {
	env *Env
	fh  *efi.File
	std stream
}

// rootDir opens the boot volume through the device the image was loaded
// from.
func (env *Env) rootDir() (*efi.File, error) {
	if env.root != nil {
		return env.root, nil
	}

	li := env.ctx.LoadedImage
	if li == nil {
		return nil, ENODEV
	}

	addr, err := env.ctx.Boot.HandleProtocol(li.DeviceHandle(), &efi.SimpleFileSystemProtocolGUID)
	if err != nil {
		return nil, ENODEV
	}

	root, err := efi.NewSimpleFileSystem(addr, env.ctx.System.Bridge()).OpenVolume()
	if err != nil {
		return nil, ENODEV
	}

	env.root = root
	return root, nil
}

// Fopen opens the file name on the boot volume. The first character of mode
// selects the access: 'r' opens for reading, 'w' creates or truncates the
// file, 'a' creates it if needed and positions the stream at its end and '*'
// opens an existing file or directory for reading only. A 'd' anywhere in
// mode creates a directory instead of a file.
func (env *Env) Fopen(name, mode string) *File {
	env.Errno = 0

	if name == "" || mode == "" {
		env.Errno = EINVAL
		return nil
	}

	root, err := env.rootDir()
	if err != nil {
		env.setErrno(err)
		return nil
	}

	var (
		openMode = efi.FileModeRead
		attrs    uint64
		dir      = bytes.IndexByte([]byte(mode), 'd') >= 0
	)
	switch mode[0] {
	case 'r', '*':
	default:
		openMode |= efi.FileModeWrite | efi.FileModeCreate
	}
	if dir {
		attrs = efi.FileDirectory
	}

	fh, err := root.Open(name, openMode, attrs)
	if err != nil {
		env.setErrno(err)
		return nil
	}

	f := &File{env: env, fh: fh}
	switch {
	case mode[0] == 'w' && !dir:
		if fh, err = truncate(root, fh, name, openMode); err != nil {
			env.setErrno(err)
			return nil
		}
		f.fh = fh
	case mode[0] == 'a':
		if _, err = f.Seek(0, SeekEnd); err != nil {
			fh.Close()
			env.setErrno(err)
			return nil
		}
	}

	return f
}

// truncate empties a file opened for writing by deleting and recreating it.
func truncate(root, fh *efi.File, name string, mode uint64) (*efi.File, error) {
	info, err := fh.GetInfo()
	if err != nil {
		fh.Close()
		return nil, err
	}
	if info.IsDir() {
		fh.Close()
		return nil, EISDIR
	}
	if info.FileSize == 0 {
		return fh, nil
	}

	// the old contents must not survive a failed delete
	if err = fh.Delete(); err != nil {
		return nil, err
	}
	return root.Open(name, mode, 0)
}

// Fclose closes f. It returns 0 on success and EOF on failure.
func (env *Env) Fclose(f *File) int {
	if f == nil {
		env.Errno = EBADF
		return EOF
	}
	if err := f.Close(); err != nil {
		env.setErrno(err)
		return EOF
	}
	return 0
}

// Fflush writes buffered data of f to the device.
func (env *Env) Fflush(f *File) int {
	if f == nil {
		env.Errno = EBADF
		return EOF
	}
	if err := f.Flush(); err != nil {
		env.setErrno(err)
		return EOF
	}
	return 0
}

// Fread reads up to n items of size bytes into p and returns the number of
// complete items read. End of file yields 0.
func (env *Env) Fread(p []byte, size, n int, f *File) int {
	if f == nil {
		env.Errno = EBADF
		return 0
	}
	if size <= 0 || n <= 0 {
		return 0
	}

	want := size * n
	if want > len(p) {
		want = len(p)
	}

	read, err := f.Read(p[:want])
	if err != nil && err != io.EOF {
		env.setErrno(err)
	}
	return read / size
}

// Fwrite writes n items of size bytes from p and returns the number of
// complete items written.
func (env *Env) Fwrite(p []byte, size, n int, f *File) int {
	if f == nil {
		env.Errno = EBADF
		return 0
	}
	if size <= 0 || n <= 0 {
		return 0
	}

	want := size * n
	if want > len(p) {
		want = len(p)
	}

	written, err := f.Write(p[:want])
	if err != nil {
		env.setErrno(err)
	}
	return written / size
}

// Fseek repositions f. It returns 0 on success and -1 on failure.
func (env *Env) Fseek(f *File, off int64, whence int) int {
	if f == nil {
		env.Errno = EBADF
		return -1
	}
	if _, err := f.Seek(off, whence); err != nil {
		env.setErrno(err)
		return -1
	}
	return 0
}

// Ftell returns the position of f or -1 on failure.
func (env *Env) Ftell(f *File) int64 {
	if f == nil {
		env.Errno = EBADF
		return -1
	}
	pos, err := f.Seek(0, SeekCur)
	if err != nil {
		env.setErrno(err)
		return -1
	}
	return pos
}

// Read implements io.Reader. Reading the standard input returns the keys
// that are waiting in the console without blocking.
func (f *File) Read(p []byte) (int, error) {
	switch f.std {
	case streamStdin:
		return f.readKeys(p)
	case streamStdout, streamStderr:
		return 0, EBADF
	}

	if len(p) == 0 {
		return 0, nil
	}

	n, st := f.fh.Read(p)
	switch {
	case st == efi.EndOfFile:
		return 0, io.EOF
	case st.IsError():
		return n, st
	case n == 0:
		return 0, io.EOF
	}
	return n, nil
}

func (f *File) readKeys(p []byte) (int, error) {
	var n int
	for n+utf8.UTFMax <= len(p) {
		ch := f.env.GetcharIfAny()
		if ch <= 0 {
			break
		}
		n += utf8.EncodeRune(p[n:], rune(ch))
	}

	if n == 0 && len(p) != 0 {
		return 0, io.EOF
	}
	return n, nil
}

// Write implements io.Writer. Writes to the standard streams are sent to the
// matching console.
func (f *File) Write(p []byte) (int, error) {
	switch f.std {
	case streamStdin:
		return 0, EBADF
	case streamStdout:
		return f.env.ctx.System.ConOut().Write(p)
	case streamStderr:
		return f.env.ctx.System.StdErr().Write(p)
	}

	n, st := f.fh.Write(p)
	if st.IsError() {
		return n, st
	}
	return n, nil
}

// Seek implements io.Seeker.
func (f *File) Seek(off int64, whence int) (int64, error) {
	if f.std != streamFile {
		return 0, ESPIPE
	}

	var base int64
	switch whence {
	case SeekSet:
	case SeekCur:
		pos, err := f.fh.GetPosition()
		if err != nil {
			return 0, err
		}
		base = int64(pos)
	case SeekEnd:
		info, err := f.fh.GetInfo()
		if err != nil {
			return 0, err
		}
		base = int64(info.FileSize)
	default:
		return 0, EINVAL
	}

	pos := base + off
	if pos < 0 {
		return 0, EINVAL
	}
	if err := f.fh.SetPosition(uint64(pos)); err != nil {
		return 0, err
	}
	return pos, nil
}

// Flush writes buffered data to the device. The consoles are unbuffered.
func (f *File) Flush() error {
	if f.std != streamFile {
		return nil
	}
	return f.fh.Flush()
}

// Close closes the stream. Closing a standard stream has no effect.
func (f *File) Close() error {
	if f.std != streamFile {
		return nil
	}
	return f.fh.Close()
}

// EOF is returned by the stream functions on failure.
const EOF = -1

// Sprintf formats according to format and returns the resulting string. The
// verbs are those of kfmt.Printf.
func Sprintf(format string, args ...interface{}) string {
	var buf bytes.Buffer
	kfmt.Fprintf(&buf, format, args...)
	return buf.String()
}

// Printf writes formatted output to the console with a single OutputString
// call and returns the number of characters written.
func (env *Env) Printf(format string, args ...interface{}) int {
	return env.Fprintf(env.Stdout, format, args...)
}

// Fprintf writes formatted output to f and returns the number of characters
// written. Nothing can be written to the standard input.
func (env *Env) Fprintf(f *File, format string, args ...interface{}) int {
	if f == nil || f.std == streamStdin {
		return 0
	}

	out := Sprintf(format, args...)
	if out == "" {
		return 0
	}
	if _, err := f.Write([]byte(out)); err != nil {
		env.setErrno(err)
		return 0
	}
	return utf8.RuneCountInString(out)
}

// Putchar writes c to the console and returns it.
func (env *Env) Putchar(c rune) rune {
	if err := env.ctx.System.ConOut().OutputString(efi.UTF16(string(c))); err != nil {
		env.setErrno(err)
		return EOF
	}
	return c
}

// Getchar returns the next key typed on the console or -1 if there is none.
func (env *Env) Getchar() int {
	key, err := env.ctx.System.ConIn().ReadKeyStroke()
	if err != nil {
		return EOF
	}
	return int(key.UnicodeChar)
}

// GetcharIfAny returns the next key typed on the console or 0 if no key is
// waiting.
func (env *Env) GetcharIfAny() int {
	in := env.ctx.System.ConIn()
	if err := env.ctx.Boot.CheckEvent(in.WaitForKey()); err != nil {
		return 0
	}

	key, err := in.ReadKeyStroke()
	if err != nil {
		return EOF
	}
	return int(key.UnicodeChar)
}

// Dumpmem writes a hex dump of the 128 bytes at addr, rounded down to 16
// bytes, to the error console.
func (env *Env) Dumpmem(addr uintptr) {
	var (
		row  bytes.Buffer
		errW = env.ctx.System.StdErr()
	)

	addr &^= 0xf
	for j := 0; j < dumpRows; j, addr = j+1, addr+16 {
		line := mem.Bytes(addr, 16)

		row.Reset()
		kfmt.Fprintf(&row, "%p: ", addr)
		for i, b := range line {
			kfmt.Fprintf(&row, "%02x ", b)
			if i%4 == 3 {
				row.WriteByte(' ')
			}
		}
		for _, b := range line {
			if b < 32 || b >= 127 {
				b = '.'
			}
			kfmt.Fprintf(&row, " %c", b)
		}
		row.WriteByte('\n')

		errW.Write(row.Bytes())
	}
}
