package analytics

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/adgeist/adgeistkit/internal/dedup"
	"github.com/adgeist/adgeistkit/internal/observability"
	"github.com/adgeist/adgeistkit/sdk/mobile/internal/storage"
)

type mockSink struct {
	mu     sync.Mutex
	events []storage.PendingEvent
	err    error
	gate   chan struct{} // when non-nil, Add blocks until it is closed
}

func (s *mockSink) Add(e storage.PendingEvent) error {
	if s.gate != nil {
		<-s.gate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, e)
	return nil
}

func (s *mockSink) types() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.events))
	for i, e := range s.events {
		out[i] = e.EventType
	}
	return out
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestEmitter_PreservesOrderAndDrainsOnClose(t *testing.T) {
	sink := &mockSink{}
	e := NewEmitter(sink, observability.Discard(), testLogger())

	amb := Ambient{AdSpaceID: "space", LoadID: "load"}
	e.Emit(amb, Impression{RenderTime: 10 * time.Millisecond})
	e.Emit(amb, Click{})
	e.Emit(amb, View{ViewTime: time.Second})
	e.Emit(amb, TotalViewTime{Total: 3 * time.Second})
	e.Close()

	got := sink.types()
	want := []string{"IMPRESSION", "CLICK", "VIEW", "TOTAL_VIEW_TIME"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
	if sink.events[0].AdSpaceID != "space" || sink.events[0].Payload == "" {
		t.Fatalf("unexpected pending event: %+v", sink.events[0])
	}
}

func TestEmitter_DropsDuplicateOneTimeEvents(t *testing.T) {
	sink := &mockSink{}
	filter := dedup.New(dedup.DefaultConfig(), nil, testLogger())
	e := NewEmitter(sink, nil, testLogger(), WithDedup(filter))

	amb := Ambient{AdSpaceID: "space", LoadID: "load"}
	e.Emit(amb, Impression{})
	e.Emit(amb, Impression{})
	e.Emit(amb, Click{})
	e.Emit(amb, Click{})
	e.Close()

	if got := sink.types(); len(got) != 3 {
		t.Fatalf("got %v, want IMPRESSION and two CLICKs", got)
	}
}

func TestEmitter_EmitAfterCloseIsDropped(t *testing.T) {
	sink := &mockSink{}
	var hookErr error
	e := NewEmitter(sink, nil, testLogger(), WithErrorHook(func(err error) { hookErr = err }))
	e.Close()
	e.Close()

	e.Emit(Ambient{}, Click{})

	if len(sink.types()) != 0 {
		t.Fatal("event after Close reached the sink")
	}
	if !errors.Is(hookErr, ErrClosed) {
		t.Fatalf("hook error = %v, want ErrClosed", hookErr)
	}
}

func TestEmitter_NeverBlocksWhenBufferIsFull(t *testing.T) {
	sink := &mockSink{gate: make(chan struct{})}
	e := NewEmitter(sink, nil, testLogger(), WithBuffer(1))

	done := make(chan struct{})
	go func() {
		for i := 0; i < 50; i++ {
			e.Emit(Ambient{}, Click{})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Emit blocked on a stalled sink")
	}

	close(sink.gate)
	e.Close()
	if n := len(sink.types()); n == 0 || n > 2 {
		t.Fatalf("sink received %d events, want 1 or 2 (one in flight, one buffered)", n)
	}
}

func TestEmitter_ReportsPersistFailures(t *testing.T) {
	sink := &mockSink{err: errors.New("disk full")}
	var mu sync.Mutex
	var errs []error
	e := NewEmitter(sink, nil, testLogger(), WithErrorHook(func(err error) {
		mu.Lock()
		errs = append(errs, err)
		mu.Unlock()
	}))

	e.Emit(Ambient{}, Click{})
	e.Close()

	mu.Lock()
	defer mu.Unlock()
	if len(errs) != 1 {
		t.Fatalf("got %d errors, want 1", len(errs))
	}
}
