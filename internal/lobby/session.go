package lobby

import (
	"context"
	"sync"
	"time"

	"github.com/yndnr/lobbysync-go/internal/core/domain"
	"github.com/yndnr/lobbysync-go/internal/core/reconcile"
	"github.com/yndnr/lobbysync-go/internal/core/session"
	"github.com/yndnr/lobbysync-go/internal/push"
	"github.com/yndnr/lobbysync-go/internal/queue"
	"github.com/yndnr/lobbysync-go/internal/refresh"
	"github.com/yndnr/lobbysync-go/internal/telemetry/logger"
	"github.com/yndnr/lobbysync-go/internal/telemetry/metric"
)

// Remote is the lobby service as seen by a session.
type Remote interface {
	refresh.Fetcher

	CreateLobby(ctx context.Context, req *domain.CreateLobbyRequest) (*domain.Lobby, error)
	JoinLobby(ctx context.Context, lobbyID string, req domain.JoinRequest) (*domain.Lobby, error)
	JoinLobbyByCode(ctx context.Context, code string, req domain.JoinRequest) (*domain.Lobby, error)
	RemovePlayer(ctx context.Context, lobbyID, playerID, requesterID string, kick bool) (*domain.Lobby, error)
	UpdateLobby(ctx context.Context, lobbyID string, upd *domain.LobbyUpdate) (*domain.Lobby, error)
	DeleteLobby(ctx context.Context, lobbyID, playerID string) error
	GetPlayerLobby(ctx context.Context, playerID string) (*domain.Lobby, error)
}

// Config holds session configuration.
type Config struct {
	// DedupWindow is how long a seen snapshot suppresses its echo.
	DedupWindow time.Duration
	// TrackedFields names the fields compared independently of the marker.
	// Empty means reconcile.DefaultTrackedFields.
	TrackedFields []string

	Queue queue.Config
	// Retry applies to lobby updates. MaxAttempts <= 1 disables retries.
	Retry   queue.RetryPolicy
	Refresh refresh.Config
	Push    push.Config

	// RestoreOnStart looks up the player's current lobby in Start.
	RestoreOnStart bool
	// EventBuffer is the capacity of each Bus subscription.
	EventBuffer int
}

// DefaultConfig returns the default session configuration.
func DefaultConfig() Config {
	return Config{
		DedupWindow:    reconcile.DefaultDedupWindow,
		Queue:          queue.DefaultConfig(),
		Retry:          queue.DefaultRetryPolicy(),
		Refresh:        refresh.Config{Interval: refresh.DefaultInterval},
		Push:           push.Config{ReconnectBase: push.DefaultReconnectBase, ReconnectMax: push.DefaultReconnectMax},
		RestoreOnStart: true,
		EventBuffer:    DefaultEventBuffer,
	}
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.log = l
		}
	}
}

// WithMetrics sets the metrics registry.
func WithMetrics(m *metric.Registry) Option {
	return func(s *Session) {
		s.metrics = m
	}
}

// WithClock replaces time.Now for the dedup window and queue expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		s.now = now
	}
}

// Session is the client-side replica of one player's lobby.
type Session struct {
	remote  Remote
	cfg     Config
	log     logger.Logger
	metrics *metric.Registry
	now     func() time.Time

	machine *session.Machine
	dedup   *reconcile.Deduplicator
	queue   *queue.Queue
	sched   *refresh.Scheduler
	push    *push.Supervisor // nil when push is disabled
	bus     *Bus

	// ingestMu serialises dedup, reconcile and apply across all sources.
	ingestMu sync.Mutex

	lifeMu  sync.Mutex
	started bool
	closed  bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New builds a session. transport may be nil, in which case the session
// relies on polling alone.
func New(remote Remote, transport push.Transport, cfg Config, opts ...Option) (*Session, error) {
	if remote == nil {
		return nil, domain.ErrMissingArgument.WithDetails("remote is required")
	}
	fields, err := reconcile.FieldsByName(cfg.TrackedFields)
	if err != nil {
		return nil, err
	}

	s := &Session{
		remote: remote,
		cfg:    cfg,
		log:    logger.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With("component", "session")

	var dedupOpts []reconcile.DedupOption
	queueOpts := []queue.Option{queue.WithLogger(s.log), queue.WithMetrics(s.metrics)}
	if s.now != nil {
		dedupOpts = append(dedupOpts, reconcile.WithClock(s.now))
		queueOpts = append(queueOpts, queue.WithClock(s.now))
	}

	s.machine = session.NewMachine(reconcile.NewReconciler(fields...))
	s.dedup = reconcile.NewDeduplicator(cfg.DedupWindow, dedupOpts...)
	s.queue = queue.New(cfg.Queue, queueOpts...)
	s.sched = refresh.New(remote, (*schedulerSink)(s), cfg.Refresh,
		refresh.WithLogger(s.log), refresh.WithMetrics(s.metrics))
	if transport != nil {
		s.push = push.NewSupervisor(transport, (*pushSink)(s), cfg.Push,
			push.WithLogger(s.log), push.WithMetrics(s.metrics))
	}
	s.bus = NewBus(cfg.EventBuffer, s.metrics)

	s.machine.OnTransition(s.onTransition)
	s.machine.OnLeave(s.onLeave)

	if err := s.metrics.Register(metric.NewSessionCollector(s.machine)); err != nil {
		s.log.Warn("session collector not registered", "error", err)
	}
	return s, nil
}

// Bus returns the event bus.
func (s *Session) Bus() *Bus {
	return s.bus
}

// Subscribe is shorthand for Bus().Subscribe.
func (s *Session) Subscribe(types ...EventType) (<-chan Event, func()) {
	return s.bus.Subscribe(types...)
}

// Start binds the session to playerID and starts the queue worker and the
// refresh loop. With RestoreOnStart it adopts the lobby the player is
// already in, if any.
func (s *Session) Start(ctx context.Context, playerID string) error {
	s.lifeMu.Lock()
	if s.closed {
		s.lifeMu.Unlock()
		return domain.ErrQueueClosed.WithDetails("session closed")
	}
	if s.started {
		s.lifeMu.Unlock()
		return domain.ErrAlreadyInitialized.WithDetails("session already started")
	}
	if err := s.machine.Initialize(playerID); err != nil {
		s.lifeMu.Unlock()
		return err
	}
	s.started = true

	runCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		_ = s.queue.Run(runCtx)
	}()
	go func() {
		defer s.wg.Done()
		_ = s.sched.Run(runCtx)
	}()
	s.lifeMu.Unlock()

	s.log.Info("session started", "player_id", playerID)

	if !s.cfg.RestoreOnStart {
		return nil
	}
	l, err := s.remote.GetPlayerLobby(ctx, playerID)
	if err != nil {
		s.log.Warn("restoring current lobby failed", "player_id", playerID, "error", err)
		return nil
	}
	if l != nil {
		s.adopt(l, true)
		s.log.Info("restored current lobby", "lobby_id", l.ID)
	}
	return nil
}

// Close stops every component, fails pending mutations and closes the bus.
// In-flight mutations are allowed to finish, so Close waits for a remote
// call that ignores cancellation to return. Close must not be called from
// an event handler that blocks the bus.
func (s *Session) Close() {
	s.lifeMu.Lock()
	if s.closed {
		s.lifeMu.Unlock()
		return
	}
	s.closed = true
	cancel := s.cancel
	s.lifeMu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.queue.Close()
	s.sched.Close()
	if s.push != nil {
		s.push.Close()
	}
	s.wg.Wait()

	s.ingestMu.Lock()
	s.machine.Disconnect()
	s.dedup.Reset()
	s.ingestMu.Unlock()

	s.bus.Close()
	s.log.Info("session closed")
}

// Pause suspends the push connection, e.g. while the application is in the
// background.
func (s *Session) Pause() {
	if s.push != nil {
		s.push.Pause()
	}
}

// Resume re-establishes a push connection suspended by Pause.
func (s *Session) Resume() {
	if s.push != nil {
		s.push.Resume()
	}
}

// SetRefreshInterval changes the poll interval of a running session.
func (s *Session) SetRefreshInterval(d time.Duration) time.Duration {
	return s.sched.SetInterval(d)
}

// Current returns the current snapshot, or nil outside a lobby.
func (s *Session) Current() *domain.Lobby {
	return s.machine.Current()
}

// Phase returns the session phase.
func (s *Session) Phase() domain.Phase {
	return s.machine.Phase()
}

// PlayerID returns the local player id.
func (s *Session) PlayerID() string {
	return s.machine.PlayerID()
}

// PushTarget returns the lobby the push channel is assigned to, or "" when
// push is idle or disabled. The target survives Pause.
func (s *Session) PushTarget() string {
	if s.push == nil {
		return ""
	}
	return s.push.Target()
}

// PushConnected reports whether push is live for the current lobby.
func (s *Session) PushConnected() bool {
	return (*schedulerSink)(s).PushConnectedTo(s.machine.CurrentLobbyID())
}

// ListLobbies fetches the lobby list. It bypasses the mutation queue.
func (s *Session) ListLobbies(ctx context.Context) ([]*domain.Lobby, error) {
	return s.remote.ListLobbies(ctx)
}

// Refresh polls the current lobby now. Outside a lobby it does nothing.
func (s *Session) Refresh(ctx context.Context) error {
	return s.sched.RefreshNow(ctx)
}

func (s *Session) onTransition(t session.Transition) {
	s.log.Debug("session transition",
		"from", t.From.String(),
		"to", t.To.String(),
		"lobby_id", t.LobbyID,
		"reason", t.Reason,
	)
	s.bus.Publish(StateChanged{From: t.From, To: t.To, LobbyID: t.LobbyID, Reason: t.Reason})

	switch {
	case t.To == domain.PhaseInLobby:
		if s.push != nil {
			s.push.Connect(t.LobbyID)
		}
	case t.From == domain.PhaseInLobby:
		s.log.Info("left lobby", "lobby_id", t.LobbyID, "reason", t.Reason)
		s.bus.Publish(LobbyLeft{LobbyID: t.LobbyID, Reason: t.Reason})
	}
}

// onLeave resets per-lobby state. Mutations already queued are not touched.
func (s *Session) onLeave(lobbyID string) {
	s.dedup.Forget(lobbyID)
	s.sched.CancelLaunchWatch()
	if s.push != nil {
		s.push.Disconnect()
	}
}

func (s *Session) requireStarted() error {
	if s.machine.Phase() == domain.PhaseDisconnected {
		return domain.ErrNotInitialized
	}
	return nil
}

func (s *Session) requireLobby() (lobbyID, playerID string, err error) {
	if err := s.requireStarted(); err != nil {
		return "", "", err
	}
	lobbyID = s.machine.CurrentLobbyID()
	if lobbyID == "" {
		return "", "", domain.ErrNotInLobby
	}
	return lobbyID, s.machine.PlayerID(), nil
}
