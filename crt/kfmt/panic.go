package kfmt

import "github.com/rdvdev2/posix-uefi-cmake/crt"

var (
	// haltFn is invoked after the panic banner has been printed. The
	// entrypoint replaces it with a handler that aborts the image through
	// the firmware; tests replace it with a recorder. When nil, Panic
	// spins forever.
	haltFn func()

	errRuntimePanic = &crt.Error{Module: "rt", Message: "unknown cause"}
)

// SetHaltHandler installs the function that Panic calls once the panic
// banner has been printed. Passing nil restores the default handler which
// spins forever.
func SetHaltHandler(fn func()) {
	haltFn = fn
}

// HaltHandler returns the installed halt handler or nil if Panic would use
// the default one.
func HaltHandler() func() {
	return haltFn
}

func halt() {
	if haltFn == nil {
		for {
		}
	}
	haltFn()
}

// Panic outputs the supplied error (if not nil) to the console and halts the
// image. Panic only returns if the installed halt handler returns.
func Panic(e interface{}) {
	var err *crt.Error

	switch t := e.(type) {
	case *crt.Error:
		err = t
	case string:
		panicString(t)
		return
	case error:
		errRuntimePanic.Message = t.Error()
		err = errRuntimePanic
	}

	Printf("\n-----------------------------------\n")
	if err != nil {
		Printf("[%s] unrecoverable error: %s\n", err.Module, err.Message)
	}
	Printf("*** runtime panic: image aborted ***")
	Printf("\n-----------------------------------\n")

	halt()
}

// panicString wraps a plain message into errRuntimePanic.
func panicString(msg string) {
	errRuntimePanic.Message = msg
	Panic(errRuntimePanic)
}
