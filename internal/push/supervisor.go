package push

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yndnr/lobbysync-go/internal/core/domain"
	"github.com/yndnr/lobbysync-go/internal/infra/backoff"
	"github.com/yndnr/lobbysync-go/internal/telemetry/logger"
	"github.com/yndnr/lobbysync-go/internal/telemetry/metric"
)

// Reconnect backoff defaults.
const (
	DefaultReconnectBase = time.Second
	DefaultReconnectMax  = 30 * time.Second
)

// Config holds supervisor configuration.
type Config struct {
	ReconnectBase time.Duration
	ReconnectMax  time.Duration
}

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Supervisor) {
		if l != nil {
			s.log = l
		}
	}
}

// WithMetrics sets the metrics registry.
func WithMetrics(m *metric.Registry) Option {
	return func(s *Supervisor) {
		s.metrics = m
	}
}

// link is one connection attempt loop for one lobby id.
type link struct {
	lobbyID string
	cancel  context.CancelFunc
	up      bool // guarded by Supervisor.mu
	opened  atomic.Bool
}

// Supervisor owns the lifecycle of the push connection.
//
// Connect, Disconnect, Pause and Resume never block on the network and never
// call the Sink synchronously, so they are safe to call while holding locks
// the Sink also takes.
type Supervisor struct {
	transport Transport
	sink      Sink
	cfg       Config
	log       logger.Logger
	metrics   *metric.Registry

	mu      sync.Mutex
	target  string // lobby id the caller wants to be connected to
	current *link
	paused  bool
	resume  bool // reconnect on Resume
	closed  bool

	wg sync.WaitGroup
}

// NewSupervisor creates a supervisor delivering events to sink.
func NewSupervisor(t Transport, sink Sink, cfg Config, opts ...Option) *Supervisor {
	if cfg.ReconnectBase <= 0 {
		cfg.ReconnectBase = DefaultReconnectBase
	}
	if cfg.ReconnectMax <= 0 {
		cfg.ReconnectMax = DefaultReconnectMax
	}
	if cfg.ReconnectMax < cfg.ReconnectBase {
		cfg.ReconnectMax = cfg.ReconnectBase
	}
	s := &Supervisor{
		transport: t,
		sink:      sink,
		cfg:       cfg,
		log:       logger.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With("component", "push")
	return s
}

// Connect switches the push channel to lobbyID. Connecting to the lobby
// already targeted is a no-op. While paused, the target is recorded and
// connected on Resume.
func (s *Supervisor) Connect(lobbyID string) {
	if lobbyID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.target == lobbyID {
		return
	}

	s.detachLocked()
	s.target = lobbyID
	if s.paused {
		s.resume = true
		return
	}
	s.startLocked()
}

// Disconnect closes the push channel and forgets the target.
func (s *Supervisor) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.target = ""
	s.resume = false
	s.detachLocked()
}

// Pause tears down the connection but remembers the target, so that Resume
// reconnects to it.
func (s *Supervisor) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.paused || s.closed {
		return
	}
	s.paused = true
	s.resume = s.current != nil
	s.detachLocked()
	s.log.Debug("push paused", "lobby_id", s.target, "will_resume", s.resume)
}

// Resume reconnects if a connection was held when Pause was called.
func (s *Supervisor) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.paused || s.closed {
		return
	}
	s.paused = false
	if s.resume && s.target != "" {
		s.startLocked()
	}
	s.resume = false
	s.log.Debug("push resumed", "lobby_id", s.target)
}

// ConnectedTo reports whether an established connection for lobbyID is up.
func (s *Supervisor) ConnectedTo(lobbyID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return lobbyID != "" && s.current != nil && s.current.lobbyID == lobbyID && s.current.up
}

// Target returns the lobby id the supervisor is connected or connecting to.
// A paused supervisor keeps its target.
func (s *Supervisor) Target() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.target
}

// Close disconnects and waits for connection goroutines to exit. It must not
// be called from the Sink.
func (s *Supervisor) Close() {
	s.mu.Lock()
	s.closed = true
	s.target = ""
	s.resume = false
	s.detachLocked()
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Supervisor) startLocked() {
	ctx, cancel := context.WithCancel(context.Background())
	l := &link{lobbyID: s.target, cancel: cancel}
	s.current = l
	s.wg.Add(1)
	go s.run(ctx, l)
}

// detachLocked cancels the current link. Its goroutine exits on its own and
// its remaining events are dropped.
func (s *Supervisor) detachLocked() {
	l := s.current
	if l == nil {
		return
	}
	s.current = nil
	l.cancel()
	if l.up {
		l.up = false
		s.metrics.SetPushConnected(false)
	}
}

func (s *Supervisor) run(ctx context.Context, l *link) {
	defer s.wg.Done()
	b := backoff.Backoff{Base: s.cfg.ReconnectBase, Max: s.cfg.ReconnectMax}
	log := s.log.With("lobby_id", l.lobbyID)

	for {
		err := s.transport.Stream(ctx, l.lobbyID, func(ev Event) { s.deliver(l, ev) })
		if ctx.Err() != nil {
			return
		}

		if l.opened.Swap(false) {
			b.Reset()
		}
		if s.markDown(l) {
			s.emit(l, Event{Kind: EventDisconnected, LobbyID: l.lobbyID, Err: err})
		}
		if err != nil {
			s.emit(l, Event{
				Kind:    EventError,
				LobbyID: l.lobbyID,
				Err:     domain.ErrPushUnavailable.WithCause(err),
			})
		}

		delay := b.Next()
		log.Warn("push connection lost, reconnecting",
			"attempt", b.Failures(),
			"delay", delay,
			"error", err,
		)
		if backoff.Sleep(ctx, delay) != nil {
			return
		}
	}
}

// deliver handles an event emitted by the transport.
func (s *Supervisor) deliver(l *link, ev Event) {
	if ev.LobbyID == "" {
		ev.LobbyID = l.lobbyID
	}

	switch ev.Kind {
	case EventConnected:
		l.opened.Store(true)
		s.mu.Lock()
		if s.current != l {
			s.mu.Unlock()
			return
		}
		l.up = true
		s.mu.Unlock()
		s.metrics.SetPushConnected(true)
		s.log.Info("push connected", "lobby_id", l.lobbyID)
	case EventUpdated:
		if ev.Lobby == nil {
			return
		}
	case EventDeleted, EventError, EventDisconnected:
	default:
		s.log.Debug("ignoring unknown push event", "kind", ev.Kind)
		return
	}
	s.emit(l, ev)
}

// markDown clears the up flag and reports whether the current link was up.
func (s *Supervisor) markDown(l *link) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != l || !l.up {
		return false
	}
	l.up = false
	s.metrics.SetPushConnected(false)
	return true
}

// emit forwards ev to the sink unless l has been superseded.
func (s *Supervisor) emit(l *link, ev Event) {
	s.mu.Lock()
	current := s.current == l
	s.mu.Unlock()
	if !current {
		return
	}
	s.metrics.ObservePush(string(ev.Kind))
	if s.sink != nil {
		s.sink.HandlePushEvent(ev)
	}
}
