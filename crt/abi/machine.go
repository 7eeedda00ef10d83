//go:build !(tamago && amd64)

package abi

// Machine returns the Target that calls firmware code directly. Only
// tamago/amd64 builds run on bare firmware; elsewhere the firmware must be
// supplied explicitly (see Dispatcher) and Machine returns nil.
func Machine() Target {
	return nil
}
