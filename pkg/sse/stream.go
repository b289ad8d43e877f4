// Package sse decodes Server-Sent Event streams: it turns the byte
// chunks a transport delivers, split at arbitrary boundaries, into a
// lazily pulled sequence of Events.
//
// The package does no I/O of its own beyond asking a Source for the
// next chunk, and it performs no retry or reconnection; see
// pkg/client for the reconnecting wrapper. A Stream is owned by a
// single consumer and is not safe for concurrent use.
package sse

import "io"

// Stream decodes an ordered chunk sequence into Events.
//
// The chunk storage type fixes the copying behavior: Owned chunks
// force a copy whenever event bytes must outlive the chunk, Shared
// chunks let events alias the chunk storage so the only copy left is
// the line that genuinely spans two chunks. The two instantiations
// yield the identical Event sequence for identical input bytes.
type Stream[C Chunk] struct {
	src         Source[C]
	sp          splitter[C]
	b           builder
	lastEventID string
	err         error // sticky; io.EOF after a clean end
}

// New returns a Stream decoding events from src.
func New[C Chunk](src Source[C]) *Stream[C] {
	return &Stream[C]{src: src}
}

// Next returns the next event, consuming as many chunks as it takes
// to reach a dispatch boundary. It returns io.EOF at the end of
// input; an error from the chunk source is returned unchanged. Either
// way the stream is finished and later calls repeat the same error.
//
// Field state still pending when the input ends without a closing
// blank line is dropped, never dispatched.
func (s *Stream[C]) Next() (Event, error) {
	if s.err != nil {
		return Event{}, s.err
	}
	for {
		for {
			ln, ok := s.sp.next()
			if !ok {
				break
			}
			if ev, ok := s.apply(ln); ok {
				if ev.ID != "" {
					s.lastEventID = ev.ID
				}
				return ev, nil
			}
		}
		if s.sp.eof {
			s.err = io.EOF
			return Event{}, io.EOF
		}
		chunk, err := s.src.Next()
		if err == io.EOF {
			s.sp.finish()
			continue
		}
		if err != nil {
			s.err = err
			return Event{}, err
		}
		if len(chunk.view()) == 0 {
			continue
		}
		s.sp.feed(chunk)
	}
}

// apply runs one line through the classifier and the assembler,
// reporting a dispatched event if the line was a productive boundary.
func (s *Stream[C]) apply(ln span) (Event, bool) {
	lc := classify(ln.b)
	switch lc.kind {
	case lineBlank:
		return s.b.flush()
	case lineField:
		switch lc.field {
		case fieldData:
			// data lines outlive the chunk, so retention goes through
			// the chunk's storage discipline
			s.b.addData(s.sp.retainValue(ln, lc.valLo, lc.valHi))
		case fieldEvent:
			s.b.setType(ln.b[lc.valLo:lc.valHi])
		case fieldID:
			s.b.setID(ln.b[lc.valLo:lc.valHi])
		case fieldRetry:
			s.b.setRetry(ln.b[lc.valLo:lc.valHi])
		}
	}
	// comments and unknown field names change nothing
	return Event{}, false
}

// LastEventID returns the most recent non-empty id this stream has
// yielded: the value a reconnecting client sends as Last-Event-ID.
func (s *Stream[C]) LastEventID() string { return s.lastEventID }

// SetLastEventID seeds the id, for resuming a remembered stream.
func (s *Stream[C]) SetLastEventID(id string) { s.lastEventID = id }

// NewReader returns a Stream reading chunks from r, typically an HTTP
// response body. The read buffer is recycled between reads, so the
// chunks are Owned.
func NewReader(r io.Reader) *Stream[Owned] {
	return New[Owned](&readerSource{r: r, buf: make([]byte, 8192)})
}

type readerSource struct {
	r   io.Reader
	buf []byte
	err error // delivered after the bytes that arrived with it
}

func (s *readerSource) Next() (Owned, error) {
	if s.err != nil {
		return nil, s.err
	}
	for {
		n, err := s.r.Read(s.buf)
		if n > 0 {
			s.err = err
			return Owned(s.buf[:n]), nil
		}
		if err != nil {
			return nil, err
		}
	}
}
