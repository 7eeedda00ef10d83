package main

import (
	"bufio"
	"os"
	"unicode"
	"unicode/utf16"

	"github.com/mattn/go-isatty"
	tty "github.com/mattn/go-tty"
	"github.com/rdvdev2/posix-uefi-cmake/crt/efi"
)

// keyBacklog is the number of keystrokes buffered ahead of the image.
const keyBacklog = 64

// runeKeys turns a blocking rune reader into a non-blocking key source. Keys
// are read on a separate goroutine and handed to the firmware whenever it
// polls.
type runeKeys struct {
	keys chan efi.InputKey
}

func newRuneKeys(readRune func() (rune, int, error)) *runeKeys {
	k := &runeKeys{keys: make(chan efi.InputKey, keyBacklog)}
	go k.pump(readRune)
	return k
}

func (k *runeKeys) pump(readRune func() (rune, int, error)) {
	defer close(k.keys)
	for {
		r, _, err := readRune()
		if err != nil {
			return
		}
		if r == '\n' {
			r = '\r'
		}

		if r1, r2 := utf16.EncodeRune(r); r1 != unicode.ReplacementChar {
			k.keys <- efi.InputKey{UnicodeChar: uint16(r1)}
			k.keys <- efi.InputKey{UnicodeChar: uint16(r2)}
			continue
		}
		k.keys <- efi.InputKey{UnicodeChar: uint16(r)}
	}
}

// ReadKey implements sim.KeySource.
func (k *runeKeys) ReadKey() (efi.InputKey, bool) {
	select {
	case key, ok := <-k.keys:
		return key, ok
	default:
		return efi.InputKey{}, false
	}
}

// openKeySource returns a key source fed by the controlling terminal in raw
// mode when in is a terminal or by the piped contents of in otherwise. The
// returned function restores the terminal.
func openKeySource(in *os.File) (*runeKeys, func(), error) {
	if !isatty.IsTerminal(in.Fd()) && !isatty.IsCygwinTerminal(in.Fd()) {
		r := bufio.NewReader(in)
		return newRuneKeys(r.ReadRune), func() {}, nil
	}

	t, err := tty.Open()
	if err != nil {
		return nil, nil, err
	}
	restore, err := t.Raw()
	if err != nil {
		t.Close()
		return nil, nil, err
	}

	keys := newRuneKeys(func() (rune, int, error) {
		r, err := t.ReadRune()
		return r, 1, err
	})
	return keys, func() {
		restore()
		t.Close()
	}, nil
}
