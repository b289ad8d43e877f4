package sse

import "bytes"

// bom is the UTF-8 encoding of U+FEFF; a single leading BOM is
// stripped before line splitting begins.
var bom = []byte{0xEF, 0xBB, 0xBF}

// splitter reassembles arriving chunks into complete, terminator-
// stripped lines. A line wholly inside the current chunk is yielded
// as a view into it; a line that touches the carry buffer is
// assembled into one freshly owned allocation bounded to exactly that
// line's bytes.
type splitter[C Chunk] struct {
	chunk C
	data  []byte // view of chunk
	pos   int    // scan offset into data

	// carry holds the unterminated tail of previous chunks. It never
	// contains a terminator, except possibly a trailing bare CR whose
	// CRLF-or-lone status is still undecided.
	carry []byte

	eof     bool
	started bool   // leading-BOM decision made
	prefix  []byte // verified BOM prefix stashed across chunks
}

// span is one complete line. For lines aliasing the current chunk,
// owned is false and lo is the line's offset within it; owned lines
// are safe to keep as-is.
type span struct {
	b     []byte
	lo    int
	owned bool
}

// feed installs the next chunk. The previous chunk must have been
// drained first (next returned ok == false).
func (s *splitter[C]) feed(c C) {
	s.chunk = c
	s.data = c.view()
	s.pos = 0
	if !s.started {
		s.skipBOM()
	}
}

// finish marks the end of input; any non-empty carry then becomes one
// final terminator-less line.
func (s *splitter[C]) finish() {
	s.eof = true
	if len(s.prefix) > 0 {
		// too short to be a BOM after all
		s.carry = append(s.carry, s.prefix...)
		s.prefix = nil
	}
}

// next yields the next complete line. The span is valid only until
// the following next or feed call unless retained. ok is false when
// more input is needed, or, after finish, when no lines remain.
func (s *splitter[C]) next() (span, bool) {
	// A trailing bare CR closed its line unless the very next byte is
	// an LF.
	if n := len(s.carry); n > 0 && s.carry[n-1] == '\r' {
		switch {
		case s.pos < len(s.data):
			if s.data[s.pos] == '\n' {
				s.pos++
			}
			return s.takeCarry(n - 1), true
		case s.eof:
			return s.takeCarry(n - 1), true
		default:
			return span{}, false
		}
	}

	if s.pos < len(s.data) {
		if end, next, ok := findEOL(s.data[s.pos:]); ok {
			line := s.data[s.pos : s.pos+end]
			lo := s.pos
			s.pos += next
			if len(s.carry) > 0 {
				return s.joinCarry(line), true
			}
			return span{b: line, lo: lo}, true
		}
		// no complete terminator left; the tail joins the carry
		s.carry = append(s.carry, s.data[s.pos:]...)
		s.pos = len(s.data)
	}

	if s.eof && len(s.carry) > 0 {
		return s.takeCarry(len(s.carry)), true
	}
	return span{}, false
}

// retainValue makes the byte range [lo, hi) of line sp safe to keep
// after the chunk is released: a chunk-view line goes through the
// chunk's storage discipline, an owned line is kept directly.
func (s *splitter[C]) retainValue(sp span, lo, hi int) []byte {
	if sp.owned {
		return sp.b[lo:hi:hi]
	}
	return s.chunk.retain(sp.lo+lo, sp.lo+hi)
}

// takeCarry hands out the first n carry bytes as an owned line and
// resets the carry. The copy is required because the carry's backing
// array is reused for later chunks.
func (s *splitter[C]) takeCarry(n int) span {
	line := make([]byte, n)
	copy(line, s.carry[:n])
	s.carry = s.carry[:0]
	return span{b: line, owned: true}
}

// joinCarry assembles carry + head into one owned line: the single
// copy a chunk-spanning line costs on the shared path.
func (s *splitter[C]) joinCarry(head []byte) span {
	line := make([]byte, len(s.carry)+len(head))
	n := copy(line, s.carry)
	copy(line[n:], head)
	s.carry = s.carry[:0]
	return span{b: line, owned: true}
}

// skipBOM decides whether the stream opens with a UTF-8 BOM, which
// may arrive split across chunks, and drops it if so.
func (s *splitter[C]) skipBOM() {
	have := len(s.prefix)
	rest := s.data[s.pos:]
	if have+len(rest) < len(bom) {
		if bytes.HasPrefix(bom[have:], rest) {
			// still a plausible BOM; stash and wait for more bytes
			s.prefix = append(s.prefix, rest...)
			s.pos = len(s.data)
			return
		}
	} else if bytes.HasPrefix(rest, bom[have:]) {
		s.pos += len(bom) - have
		s.prefix = nil
		s.started = true
		return
	}
	// not a BOM; stashed bytes are ordinary data preceding this chunk
	s.carry = append(s.carry, s.prefix...)
	s.prefix = nil
	s.started = true
}
