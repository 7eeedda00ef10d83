// Package start implements the image entrypoint. It relocates the image,
// recovers the firmware tables, rebuilds the argument vector from whichever
// shell protocol is present and runs the application's main function.
package start

import (
	"github.com/rdvdev2/posix-uefi-cmake/crt/abi"
	"github.com/rdvdev2/posix-uefi-cmake/crt/efi"
	"github.com/rdvdev2/posix-uefi-cmake/crt/kfmt"
	"github.com/rdvdev2/posix-uefi-cmake/crt/reloc"
)

// Main is the application entrypoint. argv holds the arguments reported by
// the shell, with the image name first.
type Main func(ctx *Context, argv []efi.CString16) int

var (
	logger = kfmt.NewPrefixWriter(nil, "start")

	// relocateFn is used by tests to observe relocation requests.
	relocateFn = reloc.Apply
)

// Start brings up the image described by e and runs main. It returns the
// value returned by main or the code passed to Context.Exit.
func Start(cfg Config, e Entry, main Main) int {
	target := cfg.Target
	if target == nil {
		target = abi.Machine()
	}
	if target == nil {
		// nothing to abort through: report and return unless the caller
		// installed its own halt handler
		if kfmt.HaltHandler() == nil {
			kfmt.SetHaltHandler(func() {})
			defer kfmt.SetHaltHandler(nil)
		}
		kfmt.Panic(abi.ErrNoTarget)
		return AbortCode
	}

	ctx := &Context{Config: cfg}

	if cfg.Toolchain == GNU && e.Dynamic != 0 {
		if addr, ok := relocateFn(e.LoadBase, e.Dynamic); ok {
			ctx.Relocated = true
			kfmt.Fprintf(logger, "relocated word at 0x%x\n", addr)
		}
	}

	ctx.Image = e.ImageHandle
	ctx.System = efi.NewSystemTable(e.SystemTable, abi.NewBridge(cfg.Toolchain.Convention(), target))
	ctx.Boot = ctx.System.BootServices()
	ctx.Runtime = ctx.System.RuntimeServices()

	if addr, err := ctx.Boot.HandleProtocol(ctx.Image, &efi.LoadedImageProtocolGUID); err == nil && addr != 0 {
		ctx.LoadedImage = efi.NewLoadedImage(addr)
		ctx.Options = ParseOptions(efi.DecodeUTF16(ctx.LoadedImage.LoadOptions()))
	} else {
		ctx.Options = map[string]string{}
	}

	if enabled(ctx.Options, OptVerbose) {
		ctx.Config.Verbose = true
	}
	if ctx.Config.Verbose {
		prevSink := kfmt.GetOutputSink()
		kfmt.SetOutputSink(ctx.System.StdErr())
		ctx.logSink = true
		defer func() {
			if ctx.logSink {
				kfmt.SetOutputSink(prevSink)
			}
		}()
	}

	ctx.Args = discoverArgs(ctx)
	kfmt.Fprintf(logger, "%s toolchain, %d argument(s) from %s\n", cfg.Toolchain.String(), ctx.Args.Argc(), ctx.Args.Source.String())

	kfmt.SetHaltHandler(ctx.Abort)
	defer kfmt.SetHaltHandler(nil)

	var ret int
	if abi.SaveContext(&ctx.exitBuf, func() {
		ret = main(ctx, ctx.Args.Argv)
	}) != 0 {
		ret = ctx.exitCode
	}
	return ret
}

// discoverArgs locates the command line of the image. The shell 2.0
// parameters protocol is preferred over the legacy shell interface.
func discoverArgs(ctx *Context) Args {
	probes := []struct {
		source ArgsSource
		guid   *efi.GUID
		view   func(uintptr) *efi.ShellArgs
	}{
		{ArgsShellParameters, &efi.ShellParametersProtocolGUID, efi.NewShellParameters},
		{ArgsShellInterface, &efi.ShellInterfaceProtocolGUID, efi.NewShellInterface},
	}

	for _, probe := range probes {
		addr, err := ctx.Boot.OpenProtocol(ctx.Image, probe.guid, ctx.Image, 0, efi.OpenProtocolGetProtocol)
		if err != nil || addr == 0 {
			continue
		}

		return Args{Source: probe.source, Argv: probe.view(addr).Argv()}
	}

	return Args{Source: ArgsNone, Argv: []efi.CString16{}}
}
