// Command efirun runs one of the bundled example applications on top of the
// hosted firmware simulator.
//
// Usage:
//
//	efirun [flags] app [args...]
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/rdvdev2/posix-uefi-cmake/crt/start"
	"github.com/rdvdev2/posix-uefi-cmake/firmware/sim"
)

var (
	rootDir    = flag.String("root", "", "host directory exposed as the boot volume")
	readOnly   = flag.Bool("readonly", false, "write protect the boot volume")
	verbose    = flag.Bool("verbose", false, "pass crt.verbose in the image load options")
	options    = flag.String("options", "", "extra image load options")
	shell      = flag.String("shell", "parameters", "installed shell protocols: none, interface, parameters or both")
	toolchain  = flag.String("toolchain", "clang", "entry convention: gnu or clang")
	mapChanges = flag.Int("map-changes", 0, "memory map changes to inject before each ExitBootServices")
	pages      = flag.Uint64("pages", 64, "conventional memory pages reported by the firmware")
	imageFile  = flag.String("image", "", "PIE ELF image to map and relocate before running the app")
)

func exit(err error) {
	fmt.Fprintf(os.Stderr, "[efirun] error: %s\n", err.Error())
	os.Exit(1)
}

func parseShell(name string) (sim.ShellMode, error) {
	for _, m := range []sim.ShellMode{sim.ShellNone, sim.ShellInterface, sim.ShellParameters, sim.ShellBoth} {
		if m.String() == name {
			return m, nil
		}
	}
	return sim.ShellNone, fmt.Errorf("unknown shell mode %q", name)
}

func parseToolchain(name string) (start.Toolchain, error) {
	switch name {
	case start.GNU.String():
		return start.GNU, nil
	case start.Clang.String():
		return start.Clang, nil
	default:
		return start.Clang, fmt.Errorf("unknown toolchain %q", name)
	}
}

// loadOptions builds the command line stored in the loaded image protocol.
func loadOptions(image string) string {
	opts := []string{image}
	if *verbose {
		opts = append(opts, start.OptVerbose)
	}
	if *options != "" {
		opts = append(opts, *options)
	}
	return strings.Join(opts, " ")
}

func main() {
	flag.Parse()
	if len(flag.Args()) == 0 {
		exit(fmt.Errorf("missing app; available apps: %s", strings.Join(appNames(), ", ")))
	}

	code, err := run(flag.Arg(0), flag.Args()[1:])
	if err != nil {
		exit(err)
	}
	os.Exit(code)
}

// run boots the named app on a fresh firmware instance and returns the code
// reported by the image.
func run(name string, args []string) (int, error) {
	app, ok := apps[name]
	if !ok {
		return 0, fmt.Errorf("unknown app %q", name)
	}

	mode, err := parseShell(*shell)
	if err != nil {
		return 0, err
	}
	tc, err := parseToolchain(*toolchain)
	if err != nil {
		return 0, err
	}
	if *imageFile != "" && tc != start.GNU {
		return 0, errors.New("-image requires the gnu toolchain")
	}

	keys, closeKeys, err := openKeySource(os.Stdin)
	if err != nil {
		return 0, err
	}
	defer closeKeys()

	image := name + ".efi"
	fw, err := sim.New(sim.Options{
		Shell:             mode,
		Args:              append([]string{image}, args...),
		LoadOptions:       loadOptions(image),
		Root:              *rootDir,
		ReadOnly:          *readOnly,
		MapChanges:        *mapChanges,
		ConventionalPages: *pages,
		Stdout:            os.Stdout,
		Stderr:            os.Stderr,
		Keys:              keys,
	})
	if err != nil {
		return 0, err
	}
	defer fw.Close()

	entry := start.EntryClang(fw.ImageHandle(), fw.SystemTable())
	if *imageFile != "" {
		if entry, err = mapImage(fw, *imageFile); err != nil {
			return 0, err
		}
	}

	code := start.Start(start.Config{Toolchain: tc, Target: fw.Dispatcher()}, entry, app.main(os.Stdout))
	if status, called := fw.ExitStatus(); called && status.IsError() {
		fmt.Fprintf(os.Stderr, "[efirun] image exited with status %s\n", status.Error())
	}
	return code, nil
}
