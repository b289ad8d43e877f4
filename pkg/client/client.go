// Package client implements a reconnecting EventSource on top of the
// sse core. It issues the HTTP request, replays the last seen event
// id on reconnect via the Last-Event-ID header, and honors server
// retry overrides; the core itself does no network I/O.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bitop-dev/sse/pkg/sse"
)

// Reconnection defaults, used when no Policy is set.
const (
	defaultInitialRetry = 3 * time.Second
	defaultMaxRetry     = 30 * time.Second
	defaultMultiplier   = 1.5
)

// ErrClosed is returned by Next after Close, or after the server
// ended the subscription with 204 No Content.
var ErrClosed = errors.New("client: event source closed")

// StreamEvent is one item from an EventSource: an Open marker for a
// newly (re-)established connection, or a decoded event.
type StreamEvent struct {
	Open  bool
	Event sse.Event
}

// EventSource maintains a long-lived SSE subscription. It is owned by
// a single consumer; interrupt a blocked Next by cancelling its
// context.
type EventSource struct {
	// HTTPClient is used for every connection attempt.
	// Defaults to http.DefaultClient.
	HTTPClient *http.Client

	// Policy governs reconnection delays.
	// Defaults to NewBackoff(3s, 30s, 1.5, 0).
	Policy RetryPolicy

	// Logger receives connection lifecycle logs.
	// Defaults to slog.Default().
	Logger *slog.Logger

	req         *http.Request // template, cloned per attempt
	lastEventID string

	stream       *sse.Stream[sse.Owned]
	body         io.ReadCloser
	connID       string
	reconnecting bool // a delay is owed before the next attempt
	lastErr      error
	closed       bool
}

// New returns an EventSource subscribing to req. The request is used
// as a template and cloned for every attempt, so it must carry no
// body; SSE subscriptions are GETs.
func New(req *http.Request) *EventSource {
	return &EventSource{req: req}
}

// LastEventID returns the id the source would replay on reconnect.
func (es *EventSource) LastEventID() string { return es.lastEventID }

// SetLastEventID seeds the replay id before the first connection,
// resuming a stream observed in an earlier process.
func (es *EventSource) SetLastEventID(id string) { es.lastEventID = id }

// Next returns the next stream event, connecting or reconnecting as
// needed. It returns ErrClosed after Close or a 204 response, the
// context error if ctx ends, and a terminal error once the retry
// policy gives up. Every (re)connection yields one Open marker before
// that connection's events.
func (es *EventSource) Next(ctx context.Context) (StreamEvent, error) {
	for {
		if es.closed {
			return StreamEvent{}, ErrClosed
		}
		if es.stream == nil {
			if err := es.connect(ctx); err != nil {
				return StreamEvent{}, err
			}
			return StreamEvent{Open: true}, nil
		}
		ev, err := es.stream.Next()
		if err == nil {
			if ev.ID != "" {
				es.lastEventID = ev.ID
			}
			if ev.HasRetry {
				es.policy().SetReconnectionTime(ev.Retry)
			}
			return StreamEvent{Event: ev}, nil
		}
		es.drop(err)
		if ctx.Err() != nil {
			return StreamEvent{}, ctx.Err()
		}
	}
}

// Close tears down any open connection. It is not safe to call
// concurrently with Next; cancel Next's context instead.
func (es *EventSource) Close() error {
	es.closed = true
	if es.body != nil {
		es.body.Close()
		es.body = nil
		es.stream = nil
	}
	return nil
}

// drop tears down the current connection after a stream end or error.
func (es *EventSource) drop(err error) {
	if err == io.EOF {
		es.logger().Debug("stream ended", "conn", es.connID)
	} else {
		es.lastErr = err
		es.logger().Warn("stream failed", "conn", es.connID, "err", err)
	}
	es.body.Close()
	es.body = nil
	es.stream = nil
}

// connect runs the retry loop until a connection opens, the policy
// gives up, or ctx is done. The very first attempt of the source's
// life is not delayed.
func (es *EventSource) connect(ctx context.Context) error {
	for attempt := 1; ; attempt++ {
		if es.reconnecting {
			delay, ok := es.policy().NextDelay(attempt)
			if !ok {
				es.closed = true
				if es.lastErr != nil {
					return fmt.Errorf("client: giving up after %d attempts: %w", attempt-1, es.lastErr)
				}
				return fmt.Errorf("client: giving up after %d attempts", attempt-1)
			}
			es.logger().Debug("reconnecting", "attempt", attempt, "delay", delay)
			if err := sleep(ctx, delay); err != nil {
				return err
			}
		}
		es.reconnecting = true

		err := es.dial(ctx)
		if err == nil {
			es.policy().Reset()
			return nil
		}
		if es.closed {
			// server declined the subscription for good
			return err
		}
		es.lastErr = err
		es.logger().Warn("connect failed", "attempt", attempt, "err", err)
	}
}

// dial performs one connection attempt.
func (es *EventSource) dial(ctx context.Context) error {
	req := es.req.Clone(ctx)
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	if es.lastEventID != "" {
		req.Header.Set("Last-Event-ID", es.lastEventID)
	}

	resp, err := es.httpClient().Do(req)
	if err != nil {
		return fmt.Errorf("client: connect: %w", err)
	}
	switch {
	case resp.StatusCode == http.StatusNoContent:
		// 204 means "do not reconnect"
		resp.Body.Close()
		es.closed = true
		return ErrClosed
	case resp.StatusCode != http.StatusOK:
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		return fmt.Errorf("client: HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	es.connID = uuid.New().String()[:8]
	es.body = resp.Body
	es.stream = sse.NewReader(resp.Body)
	es.stream.SetLastEventID(es.lastEventID)
	es.logger().Debug("connected", "conn", es.connID, "url", req.URL.String())
	return nil
}

func (es *EventSource) httpClient() *http.Client {
	if es.HTTPClient != nil {
		return es.HTTPClient
	}
	return http.DefaultClient
}

func (es *EventSource) policy() RetryPolicy {
	if es.Policy == nil {
		es.Policy = NewBackoff(defaultInitialRetry, defaultMaxRetry, defaultMultiplier, 0)
	}
	return es.Policy
}

func (es *EventSource) logger() *slog.Logger {
	if es.Logger != nil {
		return es.Logger
	}
	return slog.Default()
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
