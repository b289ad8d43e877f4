package sse

// Chunk is the storage discipline of the byte spans a transport
// delivers. The two implementations differ only in how long that
// storage stays valid:
//
//   - Owned: the producer may overwrite the storage once the next
//     chunk is requested. Retaining a byte range copies it.
//   - Shared: the storage is immutable for the life of the stream.
//     Retaining a byte range reslices it — the zero-copy path.
//
// The constraint is closed, so the path is picked at compile time.
type Chunk interface {
	Owned | Shared

	view() []byte
	retain(lo, hi int) []byte
}

// Owned is a chunk whose backing storage the producer may reuse after
// delivering the next one, such as a recycled read buffer.
type Owned []byte

func (c Owned) view() []byte { return c }

func (c Owned) retain(lo, hi int) []byte {
	out := make([]byte, hi-lo)
	copy(out, c[lo:hi])
	return out
}

// Shared is a chunk whose backing storage is handed over to the
// stream; sub-slices of it may outlive the chunk itself.
type Shared []byte

func (c Shared) view() []byte { return c }

func (c Shared) retain(lo, hi int) []byte { return c[lo:hi:hi] }

// Source produces the ordered chunk sequence a Stream consumes.
type Source[C Chunk] interface {
	// Next returns the next chunk, blocking until the transport has
	// one. It returns io.EOF after the final chunk; any other error
	// is forwarded by the stream unchanged.
	Next() (C, error)
}

// SourceFunc adapts a function to a Source.
type SourceFunc[C Chunk] func() (C, error)

func (f SourceFunc[C]) Next() (C, error) { return f() }
