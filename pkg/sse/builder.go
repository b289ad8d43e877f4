package sse

import (
	"bytes"
	"math"
	"time"
)

// builder is the mutable accumulator for the one pending event.
// Scalar fields are overwritten by the most recent field line of that
// name; data lines stack up unjoined until the dispatch boundary.
type builder struct {
	id       string
	typ      string
	retry    time.Duration
	hasRetry bool
	data     [][]byte // retained data lines
	dirty    bool     // some recognized field arrived since the last boundary
}

// addData appends one retained data line.
func (b *builder) addData(v []byte) {
	b.data = append(b.data, v)
	b.dirty = true
}

// setID overwrites the pending id. An id holding a NUL byte is
// discarded, per the WHATWG processing rules.
func (b *builder) setID(v []byte) {
	if bytes.IndexByte(v, 0) < 0 {
		b.id = string(v)
	}
	b.dirty = true
}

func (b *builder) setType(v []byte) {
	b.typ = string(v)
	b.dirty = true
}

// setRetry parses a base-10 millisecond count. Anything else,
// including overflow, is dropped without error.
func (b *builder) setRetry(v []byte) {
	b.dirty = true
	if d, ok := parseRetry(v); ok {
		b.retry = d
		b.hasRetry = true
	}
}

// flush handles a dispatch boundary. It reports false, dispatching
// nothing, when no recognized field arrived since the previous
// boundary; blank lines in a row or comment-only groups are free.
func (b *builder) flush() (Event, bool) {
	if !b.dirty {
		return Event{}, false
	}
	ev := Event{
		ID:       b.id,
		Type:     defaultEventType,
		Data:     b.joinData(),
		Retry:    b.retry,
		HasRetry: b.hasRetry,
	}
	if b.typ != "" {
		ev.Type = b.typ
	}
	b.id, b.typ = "", ""
	b.retry, b.hasRetry = 0, false
	b.data = b.data[:0]
	b.dirty = false
	return ev, true
}

// joinData concatenates the pending data lines with single newlines.
// With exactly one line pending, that line's bytes are reused as-is;
// only the zero- and multi-line cases touch the allocator (and the
// zero case returns nil).
func (b *builder) joinData() []byte {
	switch len(b.data) {
	case 0:
		return nil
	case 1:
		return b.data[0]
	}
	n := len(b.data) - 1
	for _, d := range b.data {
		n += len(d)
	}
	out := make([]byte, 0, n)
	out = append(out, b.data[0]...)
	for _, d := range b.data[1:] {
		out = append(out, '\n')
		out = append(out, d...)
	}
	return out
}

func parseRetry(v []byte) (time.Duration, bool) {
	if len(v) == 0 {
		return 0, false
	}
	const maxMS = uint64(math.MaxInt64) / uint64(time.Millisecond)
	var n uint64
	for _, c := range v {
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + uint64(c-'0')
		if n > maxMS {
			return 0, false
		}
	}
	return time.Duration(n) * time.Millisecond, true
}
