package abi

// JumpBuf identifies a saved context that RestoreContext can return to.
type JumpBuf struct {
	active bool
}

// jumpSignal unwinds the stack from RestoreContext to the matching
// SaveContext.
type jumpSignal struct {
	buf *JumpBuf
	val int
}

// SaveContext records buf as an escape point and runs fn. If fn returns
// normally SaveContext returns 0. If fn (or anything it calls) invokes
// RestoreContext(buf, val), the stack between the two calls is unwound,
// deferred functions run, and SaveContext returns val, or 1 if val is 0.
//
// Escapes through a buffer that does not belong to an active SaveContext
// keep unwinding to the outer frames.
func SaveContext(buf *JumpBuf, fn func()) (val int) {
	buf.active = true
	defer func() {
		buf.active = false
		if r := recover(); r != nil {
			sig, ok := r.(*jumpSignal)
			if !ok || sig.buf != buf {
				panic(r)
			}
			val = sig.val
		}
	}()

	fn()
	return 0
}

// RestoreContext transfers control back to the SaveContext call that owns
// buf. It does not return. Restoring a context that is not active panics.
func RestoreContext(buf *JumpBuf, val int) {
	if !buf.active {
		panic("abi: restore of inactive context")
	}
	if val == 0 {
		val = 1
	}
	panic(&jumpSignal{buf: buf, val: val})
}

// Active reports whether buf belongs to a running SaveContext.
func (buf *JumpBuf) Active() bool {
	return buf.active
}
