package transport

import "bytes"

// LineFramer splits a byte stream into messages ended by a terminator.
//
// Leading NUL, CR and LF bytes are skipped, a trailing CR is trimmed, and
// empty messages are never emitted. Partial data is kept until the
// terminator arrives.
type LineFramer struct {
	term   []byte
	maxLen int
	buf    []byte
}

// NewLineFramer creates a framer. A maxLen of zero disables the limit on
// unterminated data.
func NewLineFramer(terminator string, maxLen int) *LineFramer {
	if terminator == "" {
		terminator = "\n"
	}

	return &LineFramer{term: []byte(terminator), maxLen: maxLen}
}

// Feed appends data and returns every message it completed. overflow is true
// when unterminated data exceeded the limit and was discarded.
func (f *LineFramer) Feed(data []byte) (msgs []string, overflow bool) {
	f.buf = append(f.buf, data...)

	for {
		f.buf = bytes.TrimLeft(f.buf, "\x00\r\n")

		idx := bytes.Index(f.buf, f.term)
		if idx < 0 {
			break
		}

		if msg := bytes.TrimRight(f.buf[:idx], "\r"); len(msg) > 0 {
			msgs = append(msgs, string(msg))
		}
		f.buf = f.buf[idx+len(f.term):]
	}

	if f.maxLen > 0 && len(f.buf) > f.maxLen {
		f.buf = nil
		overflow = true
	} else {
		f.buf = append([]byte(nil), f.buf...)
	}

	return msgs, overflow
}

// Pending returns the number of buffered bytes not yet framed.
func (f *LineFramer) Pending() int {
	return len(f.buf)
}

// Reset discards buffered data.
func (f *LineFramer) Reset() {
	f.buf = nil
}
