package mem

import "unsafe"

var (
	// cellSink and bufSink force cells and buffers to escape to the heap.
	// Firmware services write through the addresses they receive; a stack
	// slot may be moved by a stack copy before the write lands.
	cellSink   *Cell
	bufSink    []byte
	forceSinks bool
)

// Cell is a heap-pinned 64-bit word whose address can be handed to firmware
// services as an out-parameter (e.g. the VOID** argument of HandleProtocol).
type Cell struct {
	v uint64
}

// NewCell returns a zeroed Cell.
func NewCell() *Cell {
	c := new(Cell)
	if forceSinks {
		cellSink = c
	}
	return c
}

// Addr returns the address of the cell contents.
func (c *Cell) Addr() uint64 {
	return uint64(uintptr(unsafe.Pointer(&c.v)))
}

// Get returns the current cell value.
func (c *Cell) Get() uint64 {
	return c.v
}

// Set updates the cell value.
func (c *Cell) Set(v uint64) {
	c.v = v
}

// NewBuffer returns a heap-pinned zeroed buffer of the given size.
func NewBuffer(size int) []byte {
	b := make([]byte, size)
	if forceSinks {
		bufSink = b
	}
	return b
}
