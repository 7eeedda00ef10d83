package libc

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/rdvdev2/posix-uefi-cmake/crt/abi"
	"github.com/rdvdev2/posix-uefi-cmake/crt/efi"
	"github.com/rdvdev2/posix-uefi-cmake/crt/mem"
	"github.com/rdvdev2/posix-uefi-cmake/firmware/sim"
)

func readHostFile(t *testing.T, root, name string) string {
	t.Helper()

	data, err := os.ReadFile(filepath.Join(root, name))
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func TestFopen(t *testing.T) {
	root := newVolume(t, map[string]string{
		"hello.txt":    "hello world",
		"dir/note.txt": "note",
	})
	env, _ := newEnv(t, sim.Options{Root: root})

	specs := []struct {
		name, mode string
		expErrno   Errno
	}{
		{"hello.txt", "r", 0},
		{"dir\\note.txt", "r", 0},
		{"dir", "*", 0},
		{"missing.txt", "r", ENOENT},
		{"missing.txt", "*", ENOENT},
		{"new.txt", "w", 0},
		{"newdir", "wd", 0},
		{"", "r", EINVAL},
		{"hello.txt", "", EINVAL},
	}

	for specIndex, spec := range specs {
		f := env.Fopen(spec.name, spec.mode)
		if env.Errno != spec.expErrno {
			t.Errorf("[spec %d] expected errno %d; got %d", specIndex, spec.expErrno, env.Errno)
		}
		if (f == nil) != (spec.expErrno != 0) {
			t.Errorf("[spec %d] unexpected stream %v for errno %d", specIndex, f, env.Errno)
			continue
		}
		if f != nil {
			if got := env.Fclose(f); got != 0 {
				t.Errorf("[spec %d] expected Fclose to return 0; got %d", specIndex, got)
			}
		}
	}

	if info, err := os.Stat(filepath.Join(root, "newdir")); err != nil || !info.IsDir() {
		t.Fatalf("expected Fopen with mode \"wd\" to create a directory; got %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "new.txt")); err != nil {
		t.Fatalf("expected Fopen with mode \"w\" to create a file; got %v", err)
	}
}

func TestFopenWithoutVolume(t *testing.T) {
	env, _ := newEnv(t, sim.Options{})

	if f := env.Fopen("hello.txt", "r"); f != nil || env.Errno != ENODEV {
		t.Fatalf("expected Fopen to fail with ENODEV; got %v, %d", f, env.Errno)
	}
}

func TestFopenReadOnlyVolume(t *testing.T) {
	root := newVolume(t, map[string]string{"hello.txt": "hello"})
	env, _ := newEnv(t, sim.Options{Root: root, ReadOnly: true})

	for _, mode := range []string{"w", "a", "wd"} {
		if f := env.Fopen("hello.txt", mode); f != nil || env.Errno != EROFS {
			t.Errorf("[mode %q] expected Fopen to fail with EROFS; got %v, %d", mode, f, env.Errno)
		}
	}

	f := env.Fopen("hello.txt", "r")
	if f == nil {
		t.Fatalf("expected read access to work; errno %d", env.Errno)
	}
	env.Fclose(f)
}

func TestFreadFwrite(t *testing.T) {
	root := newVolume(t, map[string]string{"log.txt": "previous contents"})
	env, _ := newEnv(t, sim.Options{Root: root})

	f := env.Fopen("log.txt", "w")
	if f == nil {
		t.Fatalf("Fopen failed with errno %d", env.Errno)
	}

	payload := []byte("0123456789abcdef")
	if got := env.Fwrite(payload, 4, 4, f); got != 4 {
		t.Fatalf("expected Fwrite to write 4 items; got %d", got)
	}
	if got := env.Ftell(f); got != 16 {
		t.Fatalf("expected Ftell to return 16; got %d", got)
	}

	specs := []struct {
		off     int64
		whence  int
		expPos  int64
		expRead string
	}{
		{0, SeekSet, 0, "0123"},
		{4, SeekSet, 4, "4567"},
		{2, SeekCur, 10, "abcd"},
		{-4, SeekEnd, 12, "cdef"},
		{0, SeekEnd, 16, ""},
	}

	for specIndex, spec := range specs {
		if got := env.Fseek(f, spec.off, spec.whence); got != 0 {
			t.Errorf("[spec %d] expected Fseek to return 0; got %d (errno %d)", specIndex, got, env.Errno)
			continue
		}
		if got := env.Ftell(f); got != spec.expPos {
			t.Errorf("[spec %d] expected position %d; got %d", specIndex, spec.expPos, got)
		}

		buf := make([]byte, 4)
		n := env.Fread(buf, 1, 4, f)
		if got := string(buf[:n]); got != spec.expRead {
			t.Errorf("[spec %d] expected to read %q; got %q", specIndex, spec.expRead, got)
		}
	}

	if got := env.Fseek(f, -1, SeekSet); got != -1 || env.Errno != EINVAL {
		t.Errorf("expected seeking before the start to fail with EINVAL; got %d, %d", got, env.Errno)
	}
	if got := env.Fseek(nil, 0, SeekSet); got != -1 || env.Errno != EBADF {
		t.Errorf("expected seeking a nil stream to fail with EBADF; got %d, %d", got, env.Errno)
	}
	if got := env.Fflush(f); got != 0 {
		t.Errorf("expected Fflush to return 0; got %d", got)
	}
	env.Fclose(f)

	if got := readHostFile(t, root, "log.txt"); got != string(payload) {
		t.Fatalf("expected file contents %q; got %q", payload, got)
	}
}

func TestAppend(t *testing.T) {
	root := newVolume(t, map[string]string{"log.txt": "one\n"})
	env, _ := newEnv(t, sim.Options{Root: root})

	f := env.Fopen("log.txt", "a")
	if f == nil {
		t.Fatalf("Fopen failed with errno %d", env.Errno)
	}
	if got := env.Fprintf(f, "%s\n", "two"); got != 4 {
		t.Fatalf("expected Fprintf to write 4 characters; got %d", got)
	}
	env.Fclose(f)

	if got := readHostFile(t, root, "log.txt"); got != "one\ntwo\n" {
		t.Fatalf("expected file contents %q; got %q", "one\ntwo\n", got)
	}
}

func TestFileReader(t *testing.T) {
	contents := strings.Repeat("gopher ", 1000)
	root := newVolume(t, map[string]string{"big.txt": contents})
	env, _ := newEnv(t, sim.Options{Root: root})

	f := env.Fopen("big.txt", "r")
	if f == nil {
		t.Fatalf("Fopen failed with errno %d", env.Errno)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != contents {
		t.Fatalf("expected to read %d bytes; got %d", len(contents), len(data))
	}

	// at end of file Fread reports nothing
	if got := env.Fread(make([]byte, 8), 1, 8, f); got != 0 {
		t.Fatalf("expected Fread at end of file to return 0; got %d", got)
	}
}

func TestConsoleOutput(t *testing.T) {
	var stdout, stderr bytes.Buffer
	env, _ := newEnv(t, sim.Options{Stdout: &stdout, Stderr: &stderr})

	if got := env.Printf("I got %d argument%s:\n", 2, "s"); got != 19 {
		t.Errorf("expected Printf to return 19; got %d", got)
	}
	if got := env.Fprintf(env.Stderr, "%s: %x\n", "wörd", 255); got != 9 {
		t.Errorf("expected Fprintf to return 9; got %d", got)
	}
	if got := env.Fprintf(env.Stdin, "ignored"); got != 0 {
		t.Errorf("expected Fprintf to stdin to return 0; got %d", got)
	}
	if got := env.Fprintf(env.Stdout, ""); got != 0 {
		t.Errorf("expected empty Fprintf to return 0; got %d", got)
	}
	if got := env.Putchar('!'); got != '!' {
		t.Errorf("expected Putchar to return '!'; got %q", got)
	}

	if exp := "I got 2 arguments:\n!"; stdout.String() != exp {
		t.Errorf("expected stdout %q; got %q", exp, stdout.String())
	}
	if exp := "wörd: ff\n"; stderr.String() != exp {
		t.Errorf("expected stderr %q; got %q", exp, stderr.String())
	}

	if got := Sprintf("%05d|%3s|%c", 42, "ab", 'z'); got != "00042| ab|z" {
		t.Errorf("expected Sprintf output %q; got %q", "00042| ab|z", got)
	}
}

func TestConsoleInput(t *testing.T) {
	env, _ := newEnv(t, sim.Options{Keys: sim.Keys("abc")})

	specs := []struct {
		fn  func() int
		exp int
	}{
		{env.GetcharIfAny, 'a'},
		{env.Getchar, 'b'},
		{env.Getchar, 'c'},
		{env.Getchar, EOF},
		{env.GetcharIfAny, 0},
	}

	for specIndex, spec := range specs {
		if got := spec.fn(); got != spec.exp {
			t.Errorf("[spec %d] expected %d; got %d", specIndex, spec.exp, got)
		}
	}
}

func TestStdinReader(t *testing.T) {
	env, _ := newEnv(t, sim.Options{Keys: sim.Keys("héllo")})

	data, err := io.ReadAll(env.Stdin)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "héllo" {
		t.Fatalf("expected to read %q; got %q", "héllo", data)
	}

	if _, err := env.Stdout.Read(make([]byte, 1)); err != EBADF {
		t.Fatalf("expected reading stdout to fail with EBADF; got %v", err)
	}
	if _, err := env.Stdin.Write([]byte("x")); err != EBADF {
		t.Fatalf("expected writing stdin to fail with EBADF; got %v", err)
	}
	if _, err := env.Stdout.Seek(0, SeekSet); err != ESPIPE {
		t.Fatalf("expected seeking stdout to fail with ESPIPE; got %v", err)
	}
}

func TestDumpmem(t *testing.T) {
	var stderr bytes.Buffer
	env, _ := newEnv(t, sim.Options{Stderr: &stderr})

	buf := make([]byte, 128+16)
	addr := mem.AlignUp(mem.AddrOf(buf), 16)
	data := mem.Bytes(addr, 128)
	for i := range data {
		data[i] = "ABCDEFGHIJKLMNOP"[i%16]
	}
	data[16] = 0x7f

	// unaligned addresses are rounded down
	env.Dumpmem(addr + 5)

	rows := strings.Split(strings.TrimSuffix(stderr.String(), "\n"), "\n")
	if len(rows) != 8 {
		t.Fatalf("expected 8 rows; got %d:\n%s", len(rows), stderr.String())
	}

	expRows := []string{
		fmt.Sprintf("%016x: 41 42 43 44  45 46 47 48  49 4a 4b 4c  4d 4e 4f 50   A B C D E F G H I J K L M N O P", addr),
		fmt.Sprintf("%016x: 7f 42 43 44  45 46 47 48  49 4a 4b 4c  4d 4e 4f 50   . B C D E F G H I J K L M N O P", addr+16),
	}
	for i, exp := range expRows {
		if rows[i] != exp {
			t.Errorf("expected row %d to be:\n%q\ngot:\n%q", i, exp, rows[i])
		}
	}
}

func TestNilStream(t *testing.T) {
	env, _ := newEnv(t, sim.Options{})
	buf := make([]byte, 4)

	specs := []struct {
		descr string
		call  func() int64
		exp   int64
	}{
		{"Fclose", func() int64 { return int64(env.Fclose(nil)) }, EOF},
		{"Fflush", func() int64 { return int64(env.Fflush(nil)) }, EOF},
		{"Fread", func() int64 { return int64(env.Fread(buf, 1, len(buf), nil)) }, 0},
		{"Fwrite", func() int64 { return int64(env.Fwrite(buf, 1, len(buf), nil)) }, 0},
		{"Fseek", func() int64 { return int64(env.Fseek(nil, 0, SeekEnd)) }, -1},
		{"Ftell", func() int64 { return env.Ftell(nil) }, -1},
	}

	for specIndex, spec := range specs {
		env.Errno = 0
		if got := spec.call(); got != spec.exp {
			t.Errorf("[spec %d] expected %s(nil) to return %d; got %d", specIndex, spec.descr, spec.exp, got)
		}
		if env.Errno != EBADF {
			t.Errorf("[spec %d] expected %s(nil) to set EBADF; got %d", specIndex, spec.descr, env.Errno)
		}
	}
}

func TestFopenTruncateDirectory(t *testing.T) {
	root := newVolume(t, map[string]string{"logs/boot.log": "booted"})
	env, _ := newEnv(t, sim.Options{Root: root})

	if f := env.Fopen("logs", "w"); f != nil || env.Errno != EISDIR {
		t.Fatalf("expected Fopen of a directory for writing to fail with EISDIR; got %v, %d", f, env.Errno)
	}
	if got := readHostFile(t, root, "logs/boot.log"); got != "booted" {
		t.Fatalf("expected directory contents to survive; got %q", got)
	}
}

// fakeFile builds an EFI_FILE_PROTOCOL instance whose services are Go
// functions.
func fakeFile(disp *abi.Dispatcher, services map[uintptr]abi.Service) ([]byte, *efi.File) {
	table := mem.NewBuffer(efi.FileProtocolSize)
	for off, svc := range services {
		mem.WriteUint64(mem.AddrOf(table)+off, uint64(disp.Register(svc)))
	}
	return table, efi.NewFile(mem.AddrOf(table), abi.NewBridge(abi.Native, disp))
}

func TestTruncateDeleteFailure(t *testing.T) {
	var (
		disp    = abi.NewDispatcher(0x40000)
		deletes int
		reopens int
	)

	info := efi.EncodeFileInfo(&efi.FileInfo{FileSize: 11, FileName: "hello.txt"})
	fileTable, fh := fakeFile(disp, map[uintptr]abi.Service{
		efi.FileGetInfo: func(a abi.Args) uint64 {
			copy(mem.Bytes(uintptr(a.Arg(3)), uintptr(len(info))), info)
			mem.WriteUint64(uintptr(a.Arg(2)), uint64(len(info)))
			return uint64(efi.Success)
		},
		efi.FileDelete: func(abi.Args) uint64 {
			deletes++
			return uint64(efi.WarnDeleteFailure)
		},
	})
	rootTable, root := fakeFile(disp, map[uintptr]abi.Service{
		efi.FileOpen: func(a abi.Args) uint64 {
			reopens++
			mem.WriteUint64(uintptr(a.Arg(1)), uint64(fh.Addr()))
			return uint64(efi.Success)
		},
	})

	got, err := truncate(root, fh, "hello.txt", efi.FileModeRead|efi.FileModeWrite|efi.FileModeCreate)
	if got != nil || ErrnoOf(err) != EACCES {
		t.Fatalf("expected truncate to fail with EACCES; got %v, %v", got, err)
	}
	if deletes != 1 || reopens != 0 {
		t.Fatalf("expected one delete and no reopen; got %d deletes and %d reopens", deletes, reopens)
	}

	runtime.KeepAlive(fileTable)
	runtime.KeepAlive(rootTable)
}
