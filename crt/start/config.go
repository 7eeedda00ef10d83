package start

import (
	"strings"

	"github.com/rdvdev2/posix-uefi-cmake/crt/abi"
)

// Toolchain identifies the compiler family an image was built with. It
// decides how the entrypoint receives its arguments and which calling
// convention firmware calls use.
type Toolchain uint8

const (
	// GNU images are linked as ELF, converted to PE afterwards and must
	// relocate themselves. Their code uses the SysV convention.
	GNU Toolchain = iota

	// Clang images are linked directly as PE and use the native firmware
	// convention.
	Clang
)

// String implements fmt.Stringer for Toolchain.
func (t Toolchain) String() string {
	if t == Clang {
		return "clang"
	}
	return "gnu"
}

// Convention returns the calling convention of code built by t.
func (t Toolchain) Convention() abi.Convention {
	if t == Clang {
		return abi.Native
	}
	return abi.SysV
}

// OptVerbose is the load option that attaches the runtime log to the
// firmware StdErr console.
const OptVerbose = "crt.verbose"

// Config controls how Start brings up the image.
type Config struct {
	Toolchain Toolchain

	// Target executes firmware calls. A nil Target selects abi.Machine.
	Target abi.Target

	// Verbose attaches the runtime log to StdErr. It is also enabled by
	// the crt.verbose load option.
	Verbose bool
}

// ParseOptions splits a command line into key/value pairs. Options have the
// form key=value; keys without a value are mapped to themselves.
func ParseOptions(cmdLine string) map[string]string {
	cmdLineKV := make(map[string]string)

	for _, pair := range strings.Fields(cmdLine) {
		kv := strings.SplitN(pair, "=", 2)
		switch len(kv) {
		case 2:
			cmdLineKV[kv[0]] = kv[1]
		case 1:
			cmdLineKV[kv[0]] = kv[0]
		}
	}

	return cmdLineKV
}

// enabled reports whether option key is set to a truthy value.
func enabled(opts map[string]string, key string) bool {
	switch strings.ToLower(opts[key]) {
	case key, "1", "on", "true", "yes":
		return true
	default:
		return false
	}
}
