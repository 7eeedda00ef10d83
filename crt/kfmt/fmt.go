// Package kfmt implements the small printf engine used by the runtime for
// its own log output and by libc for formatted console output.
package kfmt

import (
	"io"
	"strconv"
)

// maxBufSize defines the buffer size for formatting numbers.
const maxBufSize = 32

var (
	errMissingArg   = []byte("(MISSING)")
	errWrongArgType = []byte("%!(WRONGTYPE)")
	errNoVerb       = []byte("%!(NOVERB)")
	errExtraArg     = []byte("%!(EXTRA)")
	trueValue       = []byte("true")
	falseValue      = []byte("false")
	nullValue       = []byte("(null)")
	minusSign       = []byte("-")

	// earlyPrintBuffer stores Printf output before the firmware console has
	// been discovered.
	earlyPrintBuffer backlog

	// outputSink is a io.Writer where Printf will send its output. If set
	// to nil, then the output will be redirected to the earlyPrintBuffer.
	outputSink io.Writer
)

// SetOutputSink sets the default target for calls to Printf to w and copies
// any data accumulated in the earlyPrintBuffer to it.
func SetOutputSink(w io.Writer) {
	outputSink = w
	if w != nil {
		earlyPrintBuffer.WriteTo(w)
	}
}

// GetOutputSink returns the default target for calls to Printf.
func GetOutputSink() io.Writer {
	return outputSink
}

// Printf provides a minimal Printf implementation that does not depend on
// reflection. Output goes to the sink installed by SetOutputSink or, if no
// sink is installed yet, to a backlog that is replayed once a sink is
// attached.
//
// The following subset of formatting verbs is supported:
//
// Strings:
//
//	%s the uninterpreted bytes of the string or byte slice
//	%q the string with C escapes applied to control characters
//	%c a single character (any integer type or rune)
//
// Integers:
//
//	%o base 8
//	%d base 10
//	%x base 16, with lower-case letters for a-f
//	%X base 16, with upper-case letters for A-F
//	%p base 16, zero-padded to 16 digits
//
// Booleans:
//
//	%t "true" or "false"
//
// Width is specified by an optional decimal number immediately preceding the verb.
// If absent, the width is whatever is necessary to represent the value.
// A leading zero in the width pads base-10 values with zeroes instead of spaces.
//
// Values implementing String() string are accepted by %s and %q; this lets
// firmware wide strings be printed directly.
func Printf(format string, args ...interface{}) {
	Fprintf(outputSink, format, args...)
}

// Fprintf behaves exactly like Printf but it writes the formatted output to
// the specified io.Writer.
func Fprintf(w io.Writer, format string, args ...interface{}) {
	var (
		nextCh                       byte
		nextArgIndex                 int
		blockStart, blockEnd, padLen int
		zeroPad                      bool
		fmtLen                       = len(format)
	)

	for blockEnd < fmtLen {
		nextCh = format[blockEnd]
		if nextCh != '%' {
			blockEnd++
			continue
		}

		if blockStart < blockEnd {
			doWrite(w, []byte(format[blockStart:blockEnd]))
		}

		// Scan til we hit the format character
		padLen = 0
		zeroPad = false
		blockEnd++
	parseFmt:
		for ; blockEnd < fmtLen; blockEnd++ {
			nextCh = format[blockEnd]
			switch {
			case nextCh == '%':
				doWrite(w, []byte{'%'})
				break parseFmt
			case nextCh == '0' && padLen == 0:
				zeroPad = true
				continue
			case nextCh >= '0' && nextCh <= '9':
				padLen = (padLen * 10) + int(nextCh-'0')
				continue
			case nextCh == 'l':
				// C length modifiers are accepted and ignored
				continue
			case isVerb(nextCh):
				// Run out of args to print
				if nextArgIndex >= len(args) {
					doWrite(w, errMissingArg)
					break parseFmt
				}

				switch nextCh {
				case 'o':
					fmtInt(w, args[nextArgIndex], 8, padLen, zeroPad, false)
				case 'd':
					fmtInt(w, args[nextArgIndex], 10, padLen, zeroPad, false)
				case 'x':
					fmtInt(w, args[nextArgIndex], 16, padLen, zeroPad, false)
				case 'X':
					fmtInt(w, args[nextArgIndex], 16, padLen, zeroPad, true)
				case 'p':
					fmtInt(w, args[nextArgIndex], 16, 16, true, false)
				case 's':
					fmtString(w, args[nextArgIndex], padLen, false)
				case 'q':
					fmtString(w, args[nextArgIndex], padLen, true)
				case 'c':
					fmtChar(w, args[nextArgIndex])
				case 't':
					fmtBool(w, args[nextArgIndex])
				}

				nextArgIndex++
				break parseFmt
			}

			// reached end of formatting string without finding a verb
			doWrite(w, errNoVerb)
		}
		blockStart, blockEnd = blockEnd+1, blockEnd+1
	}

	if blockStart < blockEnd && blockStart < fmtLen {
		doWrite(w, []byte(format[blockStart:]))
	}

	// Check for unused args
	for ; nextArgIndex < len(args); nextArgIndex++ {
		doWrite(w, errExtraArg)
	}
}

func isVerb(ch byte) bool {
	switch ch {
	case 'd', 'x', 'X', 'o', 'p', 's', 'q', 'c', 't':
		return true
	}
	return false
}

// fmtBool prints a formatted version of boolean value v.
func fmtBool(w io.Writer, v interface{}) {
	switch bVal := v.(type) {
	case bool:
		if bVal {
			doWrite(w, trueValue)
		} else {
			doWrite(w, falseValue)
		}
	default:
		doWrite(w, errWrongArgType)
	}
}

// fmtChar prints the character encoded by v as UTF-8.
func fmtChar(w io.Writer, v interface{}) {
	var r rune
	switch cVal := v.(type) {
	case rune:
		r = cVal
	case byte:
		r = rune(cVal)
	case uint16:
		r = rune(cVal)
	case int:
		r = rune(cVal)
	default:
		doWrite(w, errWrongArgType)
		return
	}
	doWrite(w, []byte(string(r)))
}

// fmtString prints a formatted version of string or []byte value v, applying
// the padding specified by padLen.
func fmtString(w io.Writer, v interface{}, padLen int, quote bool) {
	var str string
	switch castedVal := v.(type) {
	case string:
		str = castedVal
	case []byte:
		str = string(castedVal)
	case interface{ String() string }:
		str = castedVal.String()
	case nil:
		doWrite(w, nullValue)
		return
	default:
		doWrite(w, errWrongArgType)
		return
	}

	if quote {
		str = escape(str)
	}
	fmtRepeat(w, ' ', padLen-len(str))
	doWrite(w, []byte(str))
}

// escape replaces control characters, quotes and backslashes in s with their
// C escape sequences.
func escape(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch ch := s[i]; ch {
		case '\a':
			out = append(out, '\\', 'a')
		case '\b':
			out = append(out, '\\', 'b')
		case 0x1b:
			out = append(out, '\\', 'e')
		case '\f':
			out = append(out, '\\', 'f')
		case '\n':
			out = append(out, '\\', 'n')
		case '\r':
			out = append(out, '\\', 'r')
		case '\t':
			out = append(out, '\\', 't')
		case '\v':
			out = append(out, '\\', 'v')
		case '"', '\\':
			out = append(out, '\\', ch)
		default:
			out = append(out, ch)
		}
	}
	return string(out)
}

// fmtRepeat writes count bytes with value ch.
func fmtRepeat(w io.Writer, ch byte, count int) {
	for i := 0; i < count; i++ {
		doWrite(w, []byte{ch})
	}
}

// fmtInt writes v in the requested base. Base 10 values are padded to padLen
// with spaces, or zeroes if zeroPad is set; base 8 and 16 values are always
// zero padded. A minus sign precedes space padding and follows zero padding.
func fmtInt(w io.Writer, v interface{}, base, padLen int, zeroPad, upper bool) {
	var (
		numFmtBuf [maxBufSize]byte
		uval      uint64
		neg       bool
	)

	switch n := v.(type) {
	case uint8:
		uval = uint64(n)
	case uint16:
		uval = uint64(n)
	case uint32:
		uval = uint64(n)
	case uint64:
		uval = n
	case uint:
		uval = uint64(n)
	case uintptr:
		uval = uint64(n)
	case int8:
		uval, neg = magnitude(int64(n))
	case int16:
		uval, neg = magnitude(int64(n))
	case int32:
		uval, neg = magnitude(int64(n))
	case int64:
		uval, neg = magnitude(n)
	case int:
		uval, neg = magnitude(int64(n))
	default:
		doWrite(w, errWrongArgType)
		return
	}

	if padLen >= maxBufSize {
		padLen = maxBufSize - 1
	}

	digits := strconv.AppendUint(numFmtBuf[:0], uval, base)
	if upper {
		for i, ch := range digits {
			if ch >= 'a' {
				digits[i] = ch - 'a' + 'A'
			}
		}
	}

	padCh, pad := byte('0'), padLen-len(digits)
	if base == 10 && !zeroPad {
		padCh = ' '
	}

	switch {
	case neg && padCh == ' ':
		fmtRepeat(w, ' ', pad-1)
		doWrite(w, minusSign)
	case neg:
		doWrite(w, minusSign)
		fmtRepeat(w, '0', pad)
	default:
		fmtRepeat(w, padCh, pad)
	}
	doWrite(w, digits)
}

// magnitude splits v into its absolute value and sign.
func magnitude(v int64) (uint64, bool) {
	if v < 0 {
		return uint64(-v), true
	}
	return uint64(v), false
}

func doWrite(w io.Writer, p []byte) {
	if w != nil {
		w.Write(p)
	} else {
		earlyPrintBuffer.Write(p)
	}
}
