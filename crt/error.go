// Package crt is the root of a small C-style runtime that lets UEFI images be
// written as ordinary console programs with a main(argc, argv) entrypoint.
package crt

// Error describes a runtime error. Runtime errors are declared as global
// variables that are pointers to the Error structure so they can be compared
// by identity and returned before a console is available for reporting.
type Error struct {
	// The module where the error occurred.
	Module string

	// The error message
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}

// String returns the error prefixed by the module that raised it.
func (e *Error) String() string {
	return "[" + e.Module + "] " + e.Message
}
