package push

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/yndnr/lobbysync-go/internal/core/domain"
	"github.com/yndnr/lobbysync-go/internal/telemetry/logger"
)

type fakeStream struct {
	lobbyID string
	ctx     context.Context
	emit    func(Event)
	end     chan error
}

type fakeTransport struct {
	streams chan *fakeStream

	mu      sync.Mutex
	refuse  int // number of dials to fail before connecting
	dialled []string
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{streams: make(chan *fakeStream, 16)}
}

func (f *fakeTransport) Stream(ctx context.Context, lobbyID string, emit func(Event)) error {
	f.mu.Lock()
	f.dialled = append(f.dialled, lobbyID)
	if f.refuse > 0 {
		f.refuse--
		f.mu.Unlock()
		return errors.New("connection refused")
	}
	f.mu.Unlock()

	s := &fakeStream{lobbyID: lobbyID, ctx: ctx, emit: emit, end: make(chan error, 1)}
	emit(Event{Kind: EventConnected, LobbyID: lobbyID})
	f.streams <- s

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-s.end:
		return err
	}
}

func (f *fakeTransport) next(t *testing.T) *fakeStream {
	t.Helper()
	select {
	case s := <-f.streams:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("no stream opened")
		return nil
	}
}

func (f *fakeTransport) expectNone(t *testing.T) {
	t.Helper()
	select {
	case s := <-f.streams:
		t.Fatalf("unexpected stream for %q", s.lobbyID)
	case <-time.After(50 * time.Millisecond):
	}
}

type eventSink chan Event

func (s eventSink) HandlePushEvent(ev Event) {
	s <- ev
}

func (s eventSink) next(t *testing.T) Event {
	t.Helper()
	select {
	case ev := <-s:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("no event delivered")
		return Event{}
	}
}

func waitDone(t *testing.T, ctx context.Context) {
	t.Helper()
	select {
	case <-ctx.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("stream was not cancelled")
	}
}

func newTestSupervisor(t *testing.T) (*Supervisor, *fakeTransport, eventSink) {
	t.Helper()
	tr := newFakeTransport()
	sink := make(eventSink, 64)
	s := NewSupervisor(tr, sink, Config{ReconnectBase: 5 * time.Millisecond, ReconnectMax: 20 * time.Millisecond},
		WithLogger(logger.Discard()))
	t.Cleanup(s.Close)
	return s, tr, sink
}

func TestSupervisor_Connect(t *testing.T) {
	s, tr, sink := newTestSupervisor(t)

	s.Connect("l1")
	st := tr.next(t)
	if st.lobbyID != "l1" {
		t.Errorf("stream lobby = %q", st.lobbyID)
	}
	if ev := sink.next(t); ev.Kind != EventConnected || ev.LobbyID != "l1" {
		t.Errorf("event = %+v", ev)
	}
	if !s.ConnectedTo("l1") {
		t.Error("ConnectedTo(l1) = false")
	}
	if s.ConnectedTo("l2") {
		t.Error("ConnectedTo(l2) = true")
	}

	// Same id is a no-op.
	s.Connect("l1")
	tr.expectNone(t)
	if st.ctx.Err() != nil {
		t.Error("reconnecting to the same lobby should keep the stream")
	}
}

func TestSupervisor_SwitchLobby(t *testing.T) {
	s, tr, sink := newTestSupervisor(t)

	s.Connect("l1")
	first := tr.next(t)
	sink.next(t)

	s.Connect("l2")
	waitDone(t, first.ctx)
	second := tr.next(t)
	if second.lobbyID != "l2" {
		t.Fatalf("stream lobby = %q", second.lobbyID)
	}
	if s.ConnectedTo("l1") || !s.ConnectedTo("l2") {
		t.Error("connection should follow the new lobby")
	}

	// Events from the superseded stream are dropped.
	first.emit(Event{Kind: EventUpdated, Lobby: &domain.Lobby{ID: "l1"}})
	for {
		select {
		case ev := <-sink:
			if ev.LobbyID == "l1" {
				t.Fatalf("stale event delivered: %+v", ev)
			}
			continue
		case <-time.After(50 * time.Millisecond):
		}
		break
	}
}

func TestSupervisor_Disconnect(t *testing.T) {
	s, tr, sink := newTestSupervisor(t)

	s.Connect("l1")
	st := tr.next(t)
	sink.next(t)

	s.Disconnect()
	waitDone(t, st.ctx)
	if s.ConnectedTo("l1") || s.Target() != "" {
		t.Error("Disconnect should clear the connection and target")
	}
	tr.expectNone(t)

	// A later Connect to the same id opens a new stream.
	s.Connect("l1")
	if tr.next(t).lobbyID != "l1" {
		t.Error("expected reconnect to l1")
	}
}

func TestSupervisor_PauseResume(t *testing.T) {
	tests := []struct {
		name       string
		setup      func(s *Supervisor, tr *fakeTransport, t *testing.T)
		wantResume bool
	}{
		{
			name: "connected before pause",
			setup: func(s *Supervisor, tr *fakeTransport, t *testing.T) {
				s.Connect("l1")
				tr.next(t)
			},
			wantResume: true,
		},
		{
			name:       "never connected",
			setup:      func(s *Supervisor, tr *fakeTransport, t *testing.T) {},
			wantResume: false,
		},
		{
			name: "disconnected before pause",
			setup: func(s *Supervisor, tr *fakeTransport, t *testing.T) {
				s.Connect("l1")
				tr.next(t)
				s.Disconnect()
			},
			wantResume: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, tr, _ := newTestSupervisor(t)
			tt.setup(s, tr, t)

			s.Pause()
			if s.ConnectedTo("l1") {
				t.Error("paused supervisor should not report a connection")
			}
			s.Resume()

			if tt.wantResume {
				if st := tr.next(t); st.lobbyID != "l1" {
					t.Errorf("resumed lobby = %q", st.lobbyID)
				}
			} else {
				tr.expectNone(t)
			}
		})
	}
}

func TestSupervisor_ConnectWhilePaused(t *testing.T) {
	s, tr, _ := newTestSupervisor(t)

	s.Pause()
	s.Connect("l1")
	tr.expectNone(t)
	if s.Target() != "l1" {
		t.Errorf("Target() = %q", s.Target())
	}

	s.Resume()
	if st := tr.next(t); st.lobbyID != "l1" {
		t.Errorf("stream lobby = %q", st.lobbyID)
	}
}

func TestSupervisor_Reconnect(t *testing.T) {
	s, tr, sink := newTestSupervisor(t)

	s.Connect("l1")
	st := tr.next(t)
	sink.next(t) // connected

	st.end <- errors.New("reset by peer")

	ev := sink.next(t)
	if ev.Kind != EventDisconnected {
		t.Fatalf("event = %+v, want disconnected", ev)
	}
	ev = sink.next(t)
	if ev.Kind != EventError || !errors.Is(ev.Err, domain.ErrPushUnavailable) {
		t.Fatalf("event = %+v, want push unavailable error", ev)
	}

	again := tr.next(t)
	if again.lobbyID != "l1" {
		t.Errorf("reconnected to %q", again.lobbyID)
	}
	if ev := sink.next(t); ev.Kind != EventConnected {
		t.Errorf("event = %+v, want connected", ev)
	}
}

func TestSupervisor_RetriesFailedDials(t *testing.T) {
	s, tr, sink := newTestSupervisor(t)
	tr.refuse = 2

	s.Connect("l1")
	for i := 0; i < 2; i++ {
		if ev := sink.next(t); ev.Kind != EventError {
			t.Fatalf("event %d = %+v, want error", i, ev)
		}
	}
	tr.next(t)
	if ev := sink.next(t); ev.Kind != EventConnected {
		t.Errorf("event = %+v, want connected", ev)
	}

	tr.mu.Lock()
	defer tr.mu.Unlock()
	if len(tr.dialled) != 3 {
		t.Errorf("dials = %v, want 3", tr.dialled)
	}
}

func TestSupervisor_ForwardsFrames(t *testing.T) {
	s, tr, sink := newTestSupervisor(t)

	s.Connect("l1")
	st := tr.next(t)
	sink.next(t)

	st.emit(Event{Kind: EventUpdated})
	st.emit(Event{Kind: EventUpdated, Lobby: &domain.Lobby{ID: "l1", LastModified: "t1"}})
	st.emit(Event{Kind: EventDeleted})

	ev := sink.next(t)
	if ev.Kind != EventUpdated || ev.Lobby == nil || ev.LobbyID != "l1" {
		t.Errorf("event = %+v, want update (empty update dropped)", ev)
	}
	ev = sink.next(t)
	if ev.Kind != EventDeleted || ev.LobbyID != "l1" {
		t.Errorf("event = %+v, want deleted with lobby id filled in", ev)
	}
}

func TestNewSupervisor_Defaults(t *testing.T) {
	s := NewSupervisor(newFakeTransport(), nil, Config{ReconnectBase: time.Minute})
	if s.cfg.ReconnectMax != time.Minute {
		t.Errorf("ReconnectMax = %v, want clamped to base", s.cfg.ReconnectMax)
	}
	s = NewSupervisor(newFakeTransport(), nil, Config{})
	if s.cfg.ReconnectBase != DefaultReconnectBase || s.cfg.ReconnectMax != DefaultReconnectMax {
		t.Errorf("defaults = %+v", s.cfg)
	}
}
