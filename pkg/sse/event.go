package sse

import "time"

// Event is a single server-sent event, dispatched at a blank-line
// boundary.
type Event struct {
	// ID is the value of the last "id" field seen before dispatch.
	// Empty means the event carried none. IDs do not persist from one
	// event to the next; a reconnecting client remembers the last
	// non-empty id itself (see LastEventID on Stream).
	ID string

	// Type is the value of the last "event" field, or "message" when
	// the server sent none.
	Type string

	// Data is the payload: the values of the event's consecutive
	// "data" fields joined with single newlines, no trailing newline.
	// It may alias the producer's chunk storage on Shared sources;
	// treat it as read-only.
	Data []byte

	// Retry is the reconnection delay requested by a "retry" field.
	// Meaningful only when HasRetry is true, so a "retry: 0" is
	// distinguishable from no retry field at all.
	Retry    time.Duration
	HasRetry bool
}

// defaultEventType is the type of an event whose group had no "event"
// field.
const defaultEventType = "message"
