package client_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bitop-dev/sse/pkg/client"
)

// recordingPolicy reconnects immediately and records what the server
// asked for.
type recordingPolicy struct {
	delays      int32
	reconnTime  atomic.Int64
	maxAttempts int
}

func (p *recordingPolicy) NextDelay(attempt int) (time.Duration, bool) {
	if p.maxAttempts > 0 && attempt > p.maxAttempts {
		return 0, false
	}
	atomic.AddInt32(&p.delays, 1)
	return time.Millisecond, true
}

func (p *recordingPolicy) SetReconnectionTime(d time.Duration) { p.reconnTime.Store(int64(d)) }

func (p *recordingPolicy) Reset() {}

func newEventSource(t *testing.T, url string) *client.EventSource {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		t.Fatal(err)
	}
	es := client.New(req)
	es.Policy = &recordingPolicy{}
	t.Cleanup(func() { es.Close() })
	return es
}

func TestEventSource_OpenThenEvents(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Accept"); got != "text/event-stream" {
			t.Errorf("Accept = %q", got)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "event: tick\ndata: 1\n\ndata: 2\n\n")
	}))
	defer srv.Close()

	es := newEventSource(t, srv.URL)
	es.Policy = &recordingPolicy{maxAttempts: 1}
	ctx := t.Context()

	se, err := es.Next(ctx)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if !se.Open {
		t.Fatalf("first item = %+v, want Open marker", se)
	}

	se, err = es.Next(ctx)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if se.Open || se.Event.Type != "tick" || string(se.Event.Data) != "1" {
		t.Errorf("event = %+v, want tick/1", se.Event)
	}

	se, err = es.Next(ctx)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if string(se.Event.Data) != "2" {
		t.Errorf("data = %q, want %q", se.Event.Data, "2")
	}
}

func TestEventSource_ReconnectSendsLastEventID(t *testing.T) {
	var conns int32
	gotID := make(chan string, 2)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&conns, 1)
		gotID <- r.Header.Get("Last-Event-ID")
		w.Header().Set("Content-Type", "text/event-stream")
		if n == 1 {
			fmt.Fprint(w, "id: 41\ndata: first\n\n")
			return // closing the body ends the stream
		}
		fmt.Fprint(w, "data: second\n\n")
	}))
	defer srv.Close()

	es := newEventSource(t, srv.URL)
	ctx := t.Context()

	var events []string
	for len(events) < 2 {
		se, err := es.Next(ctx)
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if !se.Open {
			events = append(events, string(se.Event.Data))
		}
	}

	if first := <-gotID; first != "" {
		t.Errorf("first connection sent Last-Event-ID %q, want none", first)
	}
	if second := <-gotID; second != "41" {
		t.Errorf("second connection Last-Event-ID = %q, want %q", second, "41")
	}
	if events[0] != "first" || events[1] != "second" {
		t.Errorf("events = %q", events)
	}
	if got := es.LastEventID(); got != "41" {
		t.Errorf("LastEventID = %q, want %q", got, "41")
	}
}

func TestEventSource_RetryFieldOverridesPolicy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "retry: 1234\ndata: x\n\n")
	}))
	defer srv.Close()

	es := newEventSource(t, srv.URL)
	pol := &recordingPolicy{}
	es.Policy = pol
	ctx := t.Context()

	for range 2 { // Open marker, then the event
		if _, err := es.Next(ctx); err != nil {
			t.Fatalf("Next: %v", err)
		}
	}
	if got := time.Duration(pol.reconnTime.Load()); got != 1234*time.Millisecond {
		t.Errorf("reconnection time = %v, want 1.234s", got)
	}
}

func TestEventSource_NoContentStops(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	es := newEventSource(t, srv.URL)
	if _, err := es.Next(t.Context()); !errors.Is(err, client.ErrClosed) {
		t.Fatalf("err = %v, want ErrClosed", err)
	}
}

func TestEventSource_GivesUpAfterMaxAttempts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	es := newEventSource(t, srv.URL)
	es.Policy = &recordingPolicy{maxAttempts: 2}

	_, err := es.Next(t.Context())
	if err == nil {
		t.Fatal("want terminal error, got nil")
	}
	if _, err := es.Next(t.Context()); !errors.Is(err, client.ErrClosed) {
		t.Fatalf("after giving up err = %v, want ErrClosed", err)
	}
}

func TestEventSource_Close(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: x\n\n")
	}))
	defer srv.Close()

	es := newEventSource(t, srv.URL)
	if _, err := es.Next(t.Context()); err != nil {
		t.Fatalf("Next: %v", err)
	}
	es.Close()
	if _, err := es.Next(t.Context()); !errors.Is(err, client.ErrClosed) {
		t.Fatalf("err = %v, want ErrClosed", err)
	}
}

func TestLoadFileConfig(t *testing.T) {
	t.Setenv("TEST_SSE_TOKEN", "sekrit")
	path := filepath.Join(t.TempDir(), "source.yaml")
	yaml := `
url: https://example.com/events
headers:
  Authorization: "Bearer ${TEST_SSE_TOKEN}"
last_event_id: "99"
initial_retry_ms: 250
max_attempts: 5
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := client.LoadFileConfig(path)
	if err != nil {
		t.Fatalf("LoadFileConfig: %v", err)
	}
	if cfg.URL != "https://example.com/events" {
		t.Errorf("url = %q", cfg.URL)
	}
	if got := cfg.Headers["Authorization"]; got != "Bearer sekrit" {
		t.Errorf("Authorization = %q, want env-expanded token", got)
	}
	if cfg.InitialRetryMS != 250 || cfg.MaxAttempts != 5 {
		t.Errorf("retry settings = %+v", cfg)
	}

	es, err := cfg.NewEventSource()
	if err != nil {
		t.Fatalf("NewEventSource: %v", err)
	}
	if got := es.LastEventID(); got != "99" {
		t.Errorf("seeded LastEventID = %q, want %q", got, "99")
	}
}

func TestLoadFileConfig_MissingURL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("headers: {}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := client.LoadFileConfig(path); err == nil {
		t.Fatal("want error for missing url, got nil")
	}
}

func TestEventSource_ContextCancel(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: x\n\n")
		w.(http.Flusher).Flush()
		<-release // hold the connection open with no further events
	}))
	defer srv.Close()
	defer close(release)

	es := newEventSource(t, srv.URL)
	ctx, cancel := context.WithCancel(t.Context())

	for range 2 { // Open marker, then the event
		if _, err := es.Next(ctx); err != nil {
			t.Fatalf("Next: %v", err)
		}
	}

	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()
	if _, err := es.Next(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
