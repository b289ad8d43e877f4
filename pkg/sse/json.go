package sse

import (
	"fmt"

	"github.com/goccy/go-json"
)

// EventSource is anything that yields Events; both Stream
// instantiations satisfy it.
type EventSource interface {
	Next() (Event, error)
}

// JSONStream decodes each event's data payload into T, for endpoints
// whose every event carries a JSON document.
type JSONStream[T any] struct {
	src EventSource
	err error
}

// NewJSONStream returns a JSONStream pulling events from src.
func NewJSONStream[T any](src EventSource) *JSONStream[T] {
	return &JSONStream[T]{src: src}
}

// Next returns the next decoded payload. An error from the underlying
// source is forwarded unchanged; a payload that fails to decode ends
// the stream with the decode error. Both are sticky.
func (j *JSONStream[T]) Next() (T, error) {
	var v T
	if j.err != nil {
		return v, j.err
	}
	ev, err := j.src.Next()
	if err != nil {
		j.err = err
		return v, err
	}
	if err := json.Unmarshal(ev.Data, &v); err != nil {
		j.err = fmt.Errorf("sse: decode %q event data: %w", ev.Type, err)
		return v, j.err
	}
	return v, nil
}
