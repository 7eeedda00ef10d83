package kfmt

import (
	"bytes"
	"io"
)

// PrefixWriter is an io.Writer that wraps another io.Writer and injects a
// prefix at the beginning of each line. The runtime uses it to tag log lines
// with the module that emitted them, e.g. "[reloc] ".
type PrefixWriter struct {
	// A writer where all writes get sent to. A nil Sink sends the output
	// to the same destination Printf would use.
	Sink io.Writer

	// The prefix injected at the beginning of each line.
	Prefix []byte

	// midLine is set while the last byte written was not a line feed.
	midLine bool
}

// NewPrefixWriter returns a PrefixWriter that tags lines with "[module] ".
func NewPrefixWriter(sink io.Writer, module string) *PrefixWriter {
	return &PrefixWriter{Sink: sink, Prefix: []byte("[" + module + "] ")}
}

// Write forwards p to the sink, emitting the prefix before the first byte of
// every line. The prefix is not included in the returned byte count.
func (w *PrefixWriter) Write(p []byte) (int, error) {
	var (
		written int
		sink    = w.sink()
	)

	for len(p) > 0 {
		if !w.midLine {
			if _, err := sink.Write(w.Prefix); err != nil {
				return written, err
			}
			w.midLine = true
		}

		line := p
		if i := bytes.IndexByte(p, '\n'); i >= 0 {
			line = p[:i+1]
		}

		n, err := sink.Write(line)
		written += n
		if err != nil {
			return written, err
		}
		w.midLine = line[len(line)-1] != '\n'
		p = p[len(line):]
	}

	return written, nil
}

func (w *PrefixWriter) sink() io.Writer {
	if w.Sink != nil {
		return w.Sink
	}
	return sinkWriter{}
}

// sinkWriter forwards writes to the active Printf destination.
type sinkWriter struct{}

func (sinkWriter) Write(p []byte) (int, error) {
	doWrite(outputSink, p)
	return len(p), nil
}
