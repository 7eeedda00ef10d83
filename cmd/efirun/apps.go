package main

import (
	"io"
	"sort"

	"github.com/rdvdev2/posix-uefi-cmake/crt/efi"
	"github.com/rdvdev2/posix-uefi-cmake/crt/kfmt"
	"github.com/rdvdev2/posix-uefi-cmake/crt/mem"
	"github.com/rdvdev2/posix-uefi-cmake/crt/start"
	"github.com/rdvdev2/posix-uefi-cmake/libc"
	"github.com/samber/lo"
)

// app is an example application. host receives output that must survive
// the loss of the firmware console.
type app struct {
	usage string
	run   func(env *libc.Env, argv []string, host io.Writer) int
}

var apps = map[string]app{
	"args":    {usage: "print the argument vector", run: argsMain},
	"dumpmem": {usage: "hex dump memory at argv[1] or at the image handle", run: dumpmemMain},
	"cat":     {usage: "copy files from the boot volume to the console", run: catMain},
	"exitbs":  {usage: "exit boot services and allocate argv[1] pages", run: exitbsMain},
}

func appNames() []string {
	names := lo.Keys(apps)
	sort.Strings(names)
	return names
}

// main adapts the app to the image entrypoint signature.
func (a app) main(host io.Writer) start.Main {
	return func(ctx *start.Context, argv []efi.CString16) int {
		args := lo.Map(argv, func(s efi.CString16, _ int) string {
			return s.String()
		})
		return a.run(libc.New(ctx), args, host)
	}
}

func argsMain(env *libc.Env, argv []string, _ io.Writer) int {
	env.Printf("I got %d argument%s:\n", len(argv), lo.Ternary(len(argv) == 1, "", "s"))
	for i, arg := range argv {
		env.Printf("  argv[%d] = '%s'\n", i, arg)
	}
	return 0
}

func dumpmemMain(env *libc.Env, argv []string, _ io.Writer) int {
	addr := uintptr(env.Context().Image)
	if len(argv) > 1 {
		env.Errno = 0
		addr = uintptr(env.Atol(argv[1]))
		if env.Errno != 0 {
			env.Fprintf(env.Stderr, "dumpmem: bad address '%s': %s\n", argv[1], env.Errno.Error())
			return 1
		}
	}

	env.Dumpmem(addr)
	return 0
}

func catMain(env *libc.Env, argv []string, _ io.Writer) int {
	if len(argv) < 2 {
		env.Fprintf(env.Stderr, "usage: cat file...\n")
		return 1
	}

	ret := 0
	for _, name := range argv[1:] {
		f := env.Fopen(name, "r")
		if f == nil {
			env.Fprintf(env.Stderr, "cat: %s: %s\n", name, env.Errno.Error())
			ret = 1
			continue
		}

		if _, err := io.Copy(env.Stdout, f); err != nil {
			env.Fprintf(env.Stderr, "cat: %s: %s\n", name, err.Error())
			ret = 1
		}
		env.Fclose(f)
	}
	return ret
}

func exitbsMain(env *libc.Env, argv []string, host io.Writer) int {
	count := uint64(1)
	if len(argv) > 1 {
		if n := env.Atoi(argv[1]); n > 0 {
			count = uint64(n)
		}
	}

	ctx := env.Context()
	if !ctx.ExitBootServices() {
		env.Fprintf(env.Stderr, "exitbs: the firmware refused to exit boot services\n")
		return 1
	}

	// The consoles belong to the firmware and are gone from here on.
	pages := ctx.Pages()
	addr, err := pages.AllocPages(count)
	if err != nil {
		kfmt.Fprintf(host, "exitbs: %s\n", err.Error())
		return 1
	}
	libc.Memset(addr, 0xaa, uintptr(count)*uintptr(mem.PageSize))

	kfmt.Fprintf(host, "exitbs: allocated %d page(s) at 0x%x\n", count, addr)
	pages.PrintMemoryMap(host)
	return 0
}
