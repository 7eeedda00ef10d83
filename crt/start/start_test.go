package start

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rdvdev2/posix-uefi-cmake/crt/efi"
	"github.com/rdvdev2/posix-uefi-cmake/crt/kfmt"
	"github.com/rdvdev2/posix-uefi-cmake/crt/mem"
	"github.com/rdvdev2/posix-uefi-cmake/crt/mem/pmm"
	"github.com/rdvdev2/posix-uefi-cmake/firmware/sim"
)

func newFirmware(t *testing.T, opts sim.Options) *sim.Firmware {
	t.Helper()

	fw, err := sim.New(opts)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { fw.Close() })
	return fw
}

// run starts a Clang image on fw.
func run(fw *sim.Firmware, main Main) int {
	cfg := Config{Toolchain: Clang, Target: fw.Dispatcher()}
	return Start(cfg, EntryClang(fw.ImageHandle(), fw.SystemTable()), main)
}

func argvStrings(argv []efi.CString16) []string {
	out := make([]string, len(argv))
	for i, arg := range argv {
		out[i] = arg.String()
	}
	return out
}

func TestStartShellParameters(t *testing.T) {
	fw := newFirmware(t, sim.Options{
		Shell: sim.ShellParameters,
		Args:  []string{"app.efi", "-v", "file.txt"},
	})

	var (
		gotArgv []efi.CString16
		expArgv []efi.CString16
	)
	ret := run(fw, func(ctx *Context, argv []efi.CString16) int {
		gotArgv = argv

		addr, err := ctx.Boot.HandleProtocol(ctx.Image, &efi.ShellParametersProtocolGUID)
		if err != nil {
			t.Fatal(err)
		}
		expArgv = efi.NewShellParameters(addr).Argv()
		return 42
	})

	if ret != 42 {
		t.Fatalf("expected Start to return main's result 42; got %d", ret)
	}
	if len(gotArgv) != 3 {
		t.Fatalf("expected argc 3; got %d", len(gotArgv))
	}
	for i := range gotArgv {
		if gotArgv[i] != expArgv[i] {
			t.Errorf("expected argv[%d] to be the firmware string at 0x%x; got 0x%x", i, uintptr(expArgv[i]), uintptr(gotArgv[i]))
		}
	}
	if got := strings.Join(argvStrings(gotArgv), " "); got != "app.efi -v file.txt" {
		t.Fatalf("expected argv %q; got %q", "app.efi -v file.txt", got)
	}
}

func TestStartArgumentDiscovery(t *testing.T) {
	args := []string{"app.efi", "one", "two"}

	specs := []struct {
		shell     sim.ShellMode
		expSource ArgsSource
		expArgc   int
		expProbes []efi.GUID
	}{
		{sim.ShellParameters, ArgsShellParameters, 3, []efi.GUID{efi.ShellParametersProtocolGUID}},
		{sim.ShellBoth, ArgsShellParameters, 3, []efi.GUID{efi.ShellParametersProtocolGUID}},
		{sim.ShellInterface, ArgsShellInterface, 3, []efi.GUID{efi.ShellParametersProtocolGUID, efi.ShellInterfaceProtocolGUID}},
		{sim.ShellNone, ArgsNone, 0, []efi.GUID{efi.ShellParametersProtocolGUID, efi.ShellInterfaceProtocolGUID}},
	}

	for specIndex, spec := range specs {
		fw := newFirmware(t, sim.Options{Shell: spec.shell, Args: args})

		var (
			gotArgs Args
			gotArgv []efi.CString16
		)
		ret := run(fw, func(ctx *Context, argv []efi.CString16) int {
			gotArgs, gotArgv = ctx.Args, argv
			return specIndex
		})

		if ret != specIndex {
			t.Errorf("[spec %d] expected Start to return %d; got %d", specIndex, specIndex, ret)
		}
		if gotArgs.Source != spec.expSource {
			t.Errorf("[spec %d] expected argument source %q; got %q", specIndex, spec.expSource, gotArgs.Source)
		}
		if gotArgv == nil {
			t.Errorf("[spec %d] expected a non-nil argv", specIndex)
		}
		if len(gotArgv) != spec.expArgc || gotArgs.Argc() != spec.expArgc {
			t.Errorf("[spec %d] expected argc %d; got %d", specIndex, spec.expArgc, len(gotArgv))
		}
		if spec.expArgc != 0 {
			if got := strings.Join(argvStrings(gotArgv), " "); got != "app.efi one two" {
				t.Errorf("[spec %d] expected argv %q; got %q", specIndex, "app.efi one two", got)
			}
		}

		probes := fw.OpenedProtocols()
		if len(probes) != len(spec.expProbes) {
			t.Errorf("[spec %d] expected %d protocol probes; got %d", specIndex, len(spec.expProbes), len(probes))
			continue
		}
		for i := range probes {
			if probes[i] != spec.expProbes[i] {
				t.Errorf("[spec %d] expected probe %d to be %s; got %s", specIndex, i, spec.expProbes[i].String(), probes[i].String())
			}
		}
	}
}

func TestStartContext(t *testing.T) {
	fw := newFirmware(t, sim.Options{LoadOptions: "app.efi root=fs0"})

	run(fw, func(ctx *Context, _ []efi.CString16) int {
		if ctx.Image != fw.ImageHandle() {
			t.Errorf("expected image handle 0x%x; got 0x%x", fw.ImageHandle(), ctx.Image)
		}
		if ctx.System.Addr() != fw.SystemTable() {
			t.Errorf("expected system table 0x%x; got 0x%x", fw.SystemTable(), ctx.System.Addr())
		}
		if ctx.Boot == nil || ctx.Runtime == nil || ctx.LoadedImage == nil {
			t.Fatal("expected boot services, runtime services and loaded image to be captured")
		}
		if got := ctx.DataPoolType(); got != efi.LoaderData {
			t.Errorf("expected data pool type %s; got %s", efi.LoaderData, got)
		}
		if got := ctx.Options["root"]; got != "fs0" {
			t.Errorf("expected option root=fs0; got %q", got)
		}
		if ctx.Config.Verbose {
			t.Error("expected verbose output to be disabled")
		}
		if ctx.Pages() != nil || ctx.MemoryMap() != nil {
			t.Error("expected no page allocator before teardown")
		}
		return 0
	})
}

func TestStartRelocation(t *testing.T) {
	defer func(orig func(uintptr, uintptr) (uintptr, bool)) {
		relocateFn = orig
	}(relocateFn)

	specs := []struct {
		toolchain  Toolchain
		dynamic    uintptr
		expCalls   int
		expApplied bool
	}{
		{GNU, 0x2000, 1, true},
		{GNU, 0, 0, false},
		{Clang, 0x2000, 0, false},
	}

	for specIndex, spec := range specs {
		fw := newFirmware(t, sim.Options{})

		var calls int
		relocateFn = func(loadBase, dynamic uintptr) (uintptr, bool) {
			calls++
			if loadBase != 0x1000 || dynamic != spec.dynamic {
				t.Errorf("[spec %d] expected relocation of (0x1000, 0x%x); got (0x%x, 0x%x)", specIndex, spec.dynamic, loadBase, dynamic)
			}
			return loadBase + 0x40, true
		}

		var relocated bool
		cfg := Config{Toolchain: spec.toolchain, Target: fw.Dispatcher()}
		Start(cfg, EntryGNU(0x1000, spec.dynamic, fw.SystemTable(), fw.ImageHandle()), func(ctx *Context, _ []efi.CString16) int {
			relocated = ctx.Relocated
			return 0
		})

		if calls != spec.expCalls {
			t.Errorf("[spec %d] expected %d relocation calls; got %d", specIndex, spec.expCalls, calls)
		}
		if relocated != spec.expApplied {
			t.Errorf("[spec %d] expected Relocated to be %t; got %t", specIndex, spec.expApplied, relocated)
		}
	}
}

func TestExit(t *testing.T) {
	specs := []struct {
		code      int
		expStatus efi.Status
	}{
		{0, efi.Success},
		{3, efi.EFIERR(3)},
		{-5, efi.EFIERR(5)},
	}

	for specIndex, spec := range specs {
		fw := newFirmware(t, sim.Options{})

		var deferred bool
		ret := run(fw, func(ctx *Context, _ []efi.CString16) int {
			defer func() { deferred = true }()

			func() {
				ctx.Exit(spec.code)
			}()

			t.Errorf("[spec %d] expected Exit not to return", specIndex)
			return 100
		})

		if ret != spec.code {
			t.Errorf("[spec %d] expected Start to return %d; got %d", specIndex, spec.code, ret)
		}
		if !deferred {
			t.Errorf("[spec %d] expected deferred calls in main to run", specIndex)
		}
		if st, called := fw.ExitStatus(); !called || st != spec.expStatus {
			t.Errorf("[spec %d] expected firmware exit with status %s; got %s (called: %t)", specIndex, spec.expStatus, st, called)
		}
	}
}

func TestAbort(t *testing.T) {
	t.Run("explicit", func(t *testing.T) {
		fw := newFirmware(t, sim.Options{})
		ret := run(fw, func(ctx *Context, _ []efi.CString16) int {
			ctx.Abort()
			return 0
		})

		if ret != AbortCode {
			t.Fatalf("expected Start to return %d; got %d", AbortCode, ret)
		}
		if st, _ := fw.ExitStatus(); st != efi.Aborted {
			t.Fatalf("expected firmware exit with status %s; got %s", efi.Aborted, st)
		}
	})

	t.Run("runtime panic", func(t *testing.T) {
		fw := newFirmware(t, sim.Options{})
		ret := run(fw, func(ctx *Context, _ []efi.CString16) int {
			kfmt.Panic("out of cheese")
			return 0
		})

		if ret != AbortCode {
			t.Fatalf("expected Start to return %d; got %d", AbortCode, ret)
		}
		if st, _ := fw.ExitStatus(); st != efi.Aborted {
			t.Fatalf("expected firmware exit with status %s; got %s", efi.Aborted, st)
		}
	})
}

func TestStartWithoutTarget(t *testing.T) {
	var halted bool
	kfmt.SetHaltHandler(func() { halted = true })
	defer kfmt.SetHaltHandler(nil)

	ret := Start(Config{}, EntryClang(0, 0), func(*Context, []efi.CString16) int {
		t.Fatal("main should not be called")
		return 0
	})

	if ret != AbortCode || !halted {
		t.Fatalf("expected Start to halt and return %d; got %d (halted: %t)", AbortCode, ret, halted)
	}
}

func TestStartWithoutTargetDefaultHalt(t *testing.T) {
	var buf bytes.Buffer
	kfmt.SetOutputSink(&buf)
	defer kfmt.SetOutputSink(nil)

	ret := Start(Config{}, EntryClang(0, 0), func(*Context, []efi.CString16) int {
		t.Fatal("main should not be called")
		return 0
	})

	if ret != AbortCode {
		t.Fatalf("expected Start to return %d; got %d", AbortCode, ret)
	}
	if exp := "[abi] unrecoverable error: no call target for this platform"; !strings.Contains(buf.String(), exp) {
		t.Fatalf("expected output to contain %q; got:\n%s", exp, buf.String())
	}
	if kfmt.HaltHandler() != nil {
		t.Fatal("expected Start to restore the default halt handler")
	}
}

func TestStartVerbose(t *testing.T) {
	var stderr bytes.Buffer
	fw := newFirmware(t, sim.Options{LoadOptions: "app.efi crt.verbose", Stderr: &stderr})

	prevSink := kfmt.GetOutputSink()
	run(fw, func(ctx *Context, _ []efi.CString16) int {
		if !ctx.Config.Verbose {
			t.Error("expected crt.verbose to enable verbose output")
		}
		return 0
	})

	if got := kfmt.GetOutputSink(); got != prevSink {
		t.Fatal("expected the previous output sink to be restored")
	}
	if exp := "[start] clang toolchain, 0 argument(s) from none\n"; !strings.Contains(stderr.String(), exp) {
		t.Fatalf("expected StdErr output to contain %q; got %q", exp, stderr.String())
	}
}

func TestExitBootServices(t *testing.T) {
	specs := []struct {
		mapChanges int
		expOK      bool
		expCalls   int
	}{
		{0, true, 1},
		{1, true, 2},
		{2, true, 3},
		{3, false, 3},
	}

	for specIndex, spec := range specs {
		fw := newFirmware(t, sim.Options{MapChanges: spec.mapChanges})

		run(fw, func(ctx *Context, _ []efi.CString16) int {
			if got := ctx.ExitBootServices(); got != spec.expOK {
				t.Errorf("[spec %d] expected ExitBootServices to return %t; got %t", specIndex, spec.expOK, got)
			}
			if got := fw.ExitBootServicesCalls(); got != spec.expCalls {
				t.Errorf("[spec %d] expected %d firmware teardown calls; got %d", specIndex, spec.expCalls, got)
			}
			if got := ctx.Boot.Exited(); got != spec.expOK {
				t.Errorf("[spec %d] expected boot services exited to be %t; got %t", specIndex, spec.expOK, got)
			}

			pools := fw.PoolAllocations()
			_, err := ctx.Boot.AllocatePool(efi.LoaderData, 64)
			switch {
			case spec.expOK && err != efi.ErrBootServicesExited:
				t.Errorf("[spec %d] expected boot services to be invalidated; got %v", specIndex, err)
			case spec.expOK && fw.PoolAllocations() != pools:
				t.Errorf("[spec %d] expected no firmware call after teardown", specIndex)
			case !spec.expOK && err != nil:
				t.Errorf("[spec %d] expected boot services to remain usable; got %v", specIndex, err)
			}

			if !spec.expOK {
				if ctx.Pages() != nil {
					t.Errorf("[spec %d] expected no page allocator after a failed teardown", specIndex)
				}
				return 0
			}

			if got := ctx.MemoryMap().Len(); got != 5 {
				t.Errorf("[spec %d] expected final memory map with 5 entries; got %d", specIndex, got)
			}
			addr, allocErr := ctx.Pages().AllocPages(2)
			if allocErr != nil {
				t.Fatalf("[spec %d] unexpected allocation error: %v", specIndex, allocErr)
			}
			// reclaimed pages are real memory
			mem.Memset(addr, 0xfe, uintptr(2*4096))
			if got := mem.ReadUint64(addr + 4096); got != 0xfefefefefefefefe {
				t.Errorf("[spec %d] expected page contents to be writable; got 0x%x", specIndex, got)
			}
			if !pmm.FrameFromAddress(addr).IsValid() {
				t.Errorf("[spec %d] expected a valid frame", specIndex)
			}

			// a second call is a no-op
			if !ctx.ExitBootServices() || fw.ExitBootServicesCalls() != spec.expCalls {
				t.Errorf("[spec %d] expected repeated teardown to be a no-op", specIndex)
			}
			return 0
		})
	}
}

func TestExitAfterTeardown(t *testing.T) {
	fw := newFirmware(t, sim.Options{})
	ret := run(fw, func(ctx *Context, _ []efi.CString16) int {
		if !ctx.ExitBootServices() {
			t.Fatal("expected teardown to succeed")
		}
		ctx.Exit(9)
		return 0
	})

	if ret != 9 {
		t.Fatalf("expected Start to return 9; got %d", ret)
	}
	if _, called := fw.ExitStatus(); called {
		t.Fatal("expected no firmware exit call after teardown")
	}
}
