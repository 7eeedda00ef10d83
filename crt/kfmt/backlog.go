package kfmt

import "io"

// backlogSize is the amount of early output retained until a sink is
// installed. It must be a power of 2.
const backlogSize = 4096

// backlog retains the most recent output written before the firmware console
// is known. When it overflows the oldest bytes are discarded and the replay
// resumes at the first complete line.
type backlog struct {
	buf     [backlogSize]byte
	head    int
	size    int
	wrapped bool
}

// Write implements io.Writer. It never fails.
func (b *backlog) Write(p []byte) (int, error) {
	for _, c := range p {
		b.buf[(b.head+b.size)&(backlogSize-1)] = c
		if b.size == backlogSize {
			b.head = (b.head + 1) & (backlogSize - 1)
			b.wrapped = true
			continue
		}
		b.size++
	}

	return len(p), nil
}

// Len returns the number of buffered bytes.
func (b *backlog) Len() int {
	return b.size
}

// WriteTo implements io.WriterTo. It drains the backlog into w.
func (b *backlog) WriteTo(w io.Writer) (int64, error) {
	if b.wrapped {
		b.skipPartialLine()
	}

	var total int64
	for b.size > 0 {
		end := b.head + b.size
		if end > backlogSize {
			end = backlogSize
		}

		n, err := w.Write(b.buf[b.head:end])
		total += int64(n)
		b.consume(n)
		switch {
		case err != nil:
			return total, err
		case n == 0:
			return total, io.ErrShortWrite
		}
	}

	b.Reset()
	return total, nil
}

// skipPartialLine drops the bytes preceding the first line feed. A backlog
// without any line feed is kept whole.
func (b *backlog) skipPartialLine() {
	for i := 0; i < b.size; i++ {
		if b.buf[(b.head+i)&(backlogSize-1)] == '\n' {
			b.consume(i + 1)
			return
		}
	}
}

func (b *backlog) consume(n int) {
	b.head = (b.head + n) & (backlogSize - 1)
	b.size -= n
}

// Reset discards any buffered output.
func (b *backlog) Reset() {
	b.head, b.size, b.wrapped = 0, 0, false
}
