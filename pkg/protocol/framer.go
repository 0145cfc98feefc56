package protocol

// Framer finds the end of a reply in the inbound byte stream.
//
// The depth counter runs over every byte captured, not only the bytes of the
// reply being awaited, and is never reset: a reply is complete when a brace
// brings the depth back to zero. An unbalanced brace from the peer skews every
// later reply. Replies that carry braces inside string values are framed
// wrongly for the same reason; peers must not send them.
type Framer struct {
	depth    int
	awaiting bool
	buf      []byte
}

// Await starts a new reply: the buffer is emptied and subsequent captured
// bytes are kept until the reply completes.
func (f *Framer) Await() {
	f.awaiting = true
	f.buf = f.buf[:0]
}

// Capture feeds a chunk of inbound bytes. It can be called with any chunking
// of the stream; the outcome is the same as feeding the bytes one at a time.
func (f *Framer) Capture(chunk []byte) {
	for _, b := range chunk {
		delim := false
		switch b {
		case OpenDelim:
			f.depth++
			delim = true
		case CloseDelim:
			f.depth--
			delim = true
		}
		if f.awaiting {
			f.buf = append(f.buf, b)
		}
		if delim && f.depth == 0 {
			f.awaiting = false
		}
	}
}

// Awaiting reports whether a reply is still being collected.
func (f *Framer) Awaiting() bool {
	return f.awaiting
}

// Bytes returns the collected reply. It is only meaningful to parse once
// Awaiting reports false.
func (f *Framer) Bytes() []byte {
	return f.buf
}

// Depth returns the running brace depth.
func (f *Framer) Depth() int {
	return f.depth
}
