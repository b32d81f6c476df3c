package lobby

import (
	"context"
	"encoding/json"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/yndnr/lobbysync-go/internal/client"
	"github.com/yndnr/lobbysync-go/internal/core/domain"
	"github.com/yndnr/lobbysync-go/internal/push"
	"github.com/yndnr/lobbysync-go/internal/queue"
	"github.com/yndnr/lobbysync-go/internal/refresh"
	"github.com/yndnr/lobbysync-go/internal/telemetry/logger"
	"github.com/yndnr/lobbysync-go/internal/telemetry/metric"
)

var _ Remote = (*client.Client)(nil)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// fakeRemote is an in-memory lobby service.
type fakeRemote struct {
	mu      sync.Mutex
	lobbies map[string]*domain.Lobby
	seq     int

	gets atomic.Int32

	// createGate, when set, blocks CreateLobby until it is closed.
	createGate    chan struct{}
	createEntered chan struct{}
	createErr     error
	// createDelay stalls CreateLobby without watching ctx.
	createDelay time.Duration
	// emptyRemove makes RemovePlayer answer with an empty body.
	emptyRemove bool
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{lobbies: make(map[string]*domain.Lobby)}
}

func (f *fakeRemote) stampLocked(l *domain.Lobby) {
	f.seq++
	l.LastModified = epoch.Add(time.Duration(f.seq) * time.Second).Format(time.RFC3339)
}

// mutateLobby changes a stored lobby, bumps its marker and returns a copy.
func (f *fakeRemote) mutateLobby(id string, fn func(l *domain.Lobby)) *domain.Lobby {
	f.mu.Lock()
	defer f.mu.Unlock()
	l := f.lobbies[id]
	fn(l)
	f.stampLocked(l)
	return l.Clone()
}

func (f *fakeRemote) remove(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.lobbies, id)
}

func (f *fakeRemote) put(l *domain.Lobby) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lobbies[l.ID] = l.Clone()
}

func (f *fakeRemote) CreateLobby(ctx context.Context, req *domain.CreateLobbyRequest) (*domain.Lobby, error) {
	if f.createEntered != nil {
		close(f.createEntered)
	}
	if f.createGate != nil {
		select {
		case <-f.createGate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.createDelay > 0 {
		time.Sleep(f.createDelay)
	}
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	l := &domain.Lobby{
		ID:         "l" + strconv.Itoa(len(f.lobbies)+1),
		Name:       req.Name,
		Code:       "CODE" + strconv.Itoa(len(f.lobbies)+1),
		Host:       req.Host,
		MaxPlayers: req.MaxPlayers,
		Status:     domain.StatusWaiting,
		Players:    []string{req.Host},
	}
	f.stampLocked(l)
	f.lobbies[l.ID] = l
	return l.Clone(), nil
}

func (f *fakeRemote) JoinLobby(ctx context.Context, lobbyID string, req domain.JoinRequest) (*domain.Lobby, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.lobbies[lobbyID]
	if !ok {
		return nil, domain.ErrLobbyNotFound
	}
	if !l.HasPlayer(req.PlayerID) {
		l.Players = append(l.Players, req.PlayerID)
	}
	f.stampLocked(l)
	return l.Clone(), nil
}

func (f *fakeRemote) JoinLobbyByCode(ctx context.Context, code string, req domain.JoinRequest) (*domain.Lobby, error) {
	f.mu.Lock()
	var id string
	for _, l := range f.lobbies {
		if l.Code == code {
			id = l.ID
		}
	}
	f.mu.Unlock()
	if id == "" {
		return nil, domain.ErrLobbyNotFound
	}
	return f.JoinLobby(ctx, id, req)
}

func (f *fakeRemote) RemovePlayer(ctx context.Context, lobbyID, playerID, requesterID string, kick bool) (*domain.Lobby, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.lobbies[lobbyID]
	if !ok {
		return nil, domain.ErrLobbyNotFound
	}
	l.Players = slices.DeleteFunc(l.Players, func(p string) bool { return p == playerID })
	f.stampLocked(l)
	if f.emptyRemove {
		return nil, nil
	}
	return l.Clone(), nil
}

func (f *fakeRemote) GetLobby(ctx context.Context, lobbyID string) (*domain.Lobby, error) {
	f.gets.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.lobbies[lobbyID]
	if !ok {
		return nil, domain.ErrLobbyNotFound
	}
	return l.Clone(), nil
}

func (f *fakeRemote) ListLobbies(ctx context.Context) ([]*domain.Lobby, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*domain.Lobby, 0, len(f.lobbies))
	for _, l := range f.lobbies {
		out = append(out, l.Clone())
	}
	return out, nil
}

func (f *fakeRemote) UpdateLobby(ctx context.Context, lobbyID string, upd *domain.LobbyUpdate) (*domain.Lobby, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.lobbies[lobbyID]
	if !ok {
		return nil, domain.ErrLobbyNotFound
	}
	if upd.Status != "" {
		l.Status = upd.Status
	}
	if upd.Host != "" {
		l.Host = upd.Host
	}
	if len(upd.PlayerState) > 0 {
		if l.PlayerState == nil {
			l.PlayerState = map[string]json.RawMessage{}
		}
		l.PlayerState[upd.RequesterID] = upd.PlayerState
	}
	if upd.Matchmaking != nil && upd.Matchmaking.Action == domain.MatchmakingStart {
		l.Status = domain.StatusInQueue
	}
	f.stampLocked(l)
	return l.Clone(), nil
}

func (f *fakeRemote) DeleteLobby(ctx context.Context, lobbyID, playerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.lobbies[lobbyID]; !ok {
		return domain.ErrLobbyNotFound
	}
	delete(f.lobbies, lobbyID)
	return nil
}

func (f *fakeRemote) GetPlayerLobby(ctx context.Context, playerID string) (*domain.Lobby, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, l := range f.lobbies {
		if l.HasPlayer(playerID) {
			return l.Clone(), nil
		}
	}
	return nil, nil
}

// fakeStream is one open push connection.
type fakeStream struct {
	lobbyID string
	ctx     context.Context
	emit    func(push.Event)
}

func (s *fakeStream) update(l *domain.Lobby) {
	s.emit(push.Event{Kind: push.EventUpdated, LobbyID: l.ID, Lobby: l})
}

func pushDeleted(lobbyID string) push.Event {
	return push.Event{Kind: push.EventDeleted, LobbyID: lobbyID}
}

type fakeTransport struct {
	streams chan *fakeStream
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{streams: make(chan *fakeStream, 16)}
}

func (f *fakeTransport) Stream(ctx context.Context, lobbyID string, emit func(push.Event)) error {
	emit(push.Event{Kind: push.EventConnected, LobbyID: lobbyID})
	f.streams <- &fakeStream{lobbyID: lobbyID, ctx: ctx, emit: emit}
	<-ctx.Done()
	return ctx.Err()
}

func (f *fakeTransport) next(t *testing.T) *fakeStream {
	t.Helper()
	select {
	case s := <-f.streams:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("push never connected")
		return nil
	}
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.RestoreOnStart = false
	cfg.Queue.Pause = time.Millisecond
	cfg.Retry = queue.RetryPolicy{BaseDelay: time.Millisecond, MaxAttempts: 2}
	cfg.Refresh = refresh.Config{Interval: time.Hour, LaunchInterval: 5 * time.Millisecond}
	cfg.Push = push.Config{ReconnectBase: 5 * time.Millisecond, ReconnectMax: 20 * time.Millisecond}
	return cfg
}

type harness struct {
	s       *Session
	remote  *fakeRemote
	tr      *fakeTransport
	metrics *metric.Registry
	events  <-chan Event
}

func newHarness(t *testing.T, withPush bool, tweak func(*Config)) *harness {
	t.Helper()
	h := &harness{remote: newFakeRemote(), metrics: metric.NewRegistry()}
	cfg := testConfig()
	if tweak != nil {
		tweak(&cfg)
	}

	var tr push.Transport
	if withPush {
		h.tr = newFakeTransport()
		tr = h.tr
	}
	s, err := New(h.remote, tr, cfg, WithLogger(logger.Discard()), WithMetrics(h.metrics))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(s.Close)
	h.s = s
	h.events, _ = s.Subscribe()
	return h
}

func (h *harness) start(t *testing.T, playerID string) {
	t.Helper()
	if err := h.s.Start(context.Background(), playerID); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
}

func (h *harness) create(t *testing.T) *domain.Lobby {
	t.Helper()
	l, err := h.s.CreateLobby(context.Background(), domain.CreateLobbyRequest{Name: "room", MaxPlayers: 4})
	if err != nil {
		t.Fatalf("CreateLobby() error = %v", err)
	}
	return l
}

// waitFor returns the next event of type T matching match, skipping others.
func waitFor[T Event](t *testing.T, ch <-chan Event, match func(T) bool) T {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				t.Fatal("event channel closed")
			}
			if v, ok := ev.(T); ok && (match == nil || match(v)) {
				return v
			}
		case <-deadline:
			var zero T
			t.Fatalf("no %s event", zero.Type())
			return zero
		}
	}
}

// expectNone fails if an event of type T arrives within d.
func expectNone[T Event](t *testing.T, ch <-chan Event, d time.Duration) {
	t.Helper()
	deadline := time.After(d)
	for {
		select {
		case ev := <-ch:
			if v, ok := ev.(T); ok {
				t.Fatalf("unexpected %s event: %+v", v.Type(), v)
			}
		case <-deadline:
			return
		}
	}
}

func drain(ch <-chan Event) {
	for {
		select {
		case <-ch:
		default:
			return
		}
	}
}

// counterValue reads one sample of a counter vector from the registry.
func counterValue(t *testing.T, m *metric.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := m.Gatherer().Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	next:
		for _, sample := range mf.GetMetric() {
			for _, lp := range sample.GetLabel() {
				if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
					continue next
				}
			}
			return sample.GetCounter().GetValue()
		}
	}
	return 0
}
