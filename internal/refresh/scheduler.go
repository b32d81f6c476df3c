package refresh

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

// Scheduler defaults.
const (
	MinInterval           = 3 * time.Second
	DefaultInterval       = 5 * time.Second
	DefaultLaunchInterval = 2 * time.Second
	DefaultLaunchAttempts = 30
	DefaultPollTimeout    = 10 * time.Second
)

// Poll kinds reported to metrics.
const (
	KindList   = "list"
	KindLobby  = "lobby"
	KindManual = "manual"
	KindLaunch = "launch"
)

// minInterval is the enforced floor for the tick interval.
var minInterval = MinInterval

// Fetcher reads from the lobby service.
type Fetcher interface {
	GetLobby(ctx context.Context, lobbyID string) (*domain.Lobby, error)
	ListLobbies(ctx context.Context) ([]*domain.Lobby, error)
}

// Sink is the session side of the scheduler.
type Sink interface {
	// CurrentLobbyID returns the lobby the session is in, or "".
	CurrentLobbyID() string
	// PushConnectedTo reports whether push is live for lobbyID.
	PushConnectedTo(lobbyID string) bool
	// DeliverPolled feeds a polled snapshot through dedup and reconcile.
	DeliverPolled(l *domain.Lobby)
	// LobbyGone reports that lobbyID returned 404.
	LobbyGone(lobbyID string)
	// LobbiesListed publishes the result of a list poll.
	LobbiesListed(lobbies []*domain.Lobby)
	// LaunchFinished reports the end of a launch watch. l is the last
	// snapshot seen, possibly nil.
	LaunchFinished(lobbyID string, outcome LaunchOutcome, l *domain.Lobby)
}

// Config holds scheduler configuration.
type Config struct {
	Interval       time.Duration
	LaunchInterval time.Duration
	LaunchAttempts int
	// PollTimeout bounds each launch watch request.
	PollTimeout time.Duration
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.log = l
		}
	}
}

// WithMetrics sets the metrics registry.
func WithMetrics(m *metric.Registry) Option {
	return func(s *Scheduler) {
		s.metrics = m
	}
}

type launchWatch struct {
	lobbyID string
	cancel  context.CancelFunc
}

// Scheduler drives periodic polling and the launch watch.
type Scheduler struct {
	fetch   Fetcher
	sink    Sink
	cfg     Config
	log     logger.Logger
	metrics *metric.Registry

	interval atomic.Int64
	reset    chan struct{}

	// pollMu serialises every fetch of the regular poll and the launch watch.
	pollMu sync.Mutex

	mu     sync.Mutex
	launch *launchWatch

	base   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a scheduler. Zero config fields take their defaults.
func New(fetch Fetcher, sink Sink, cfg Config, opts ...Option) *Scheduler {
	if cfg.LaunchInterval <= 0 {
		cfg.LaunchInterval = DefaultLaunchInterval
	}
	if cfg.LaunchAttempts <= 0 {
		cfg.LaunchAttempts = DefaultLaunchAttempts
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = DefaultPollTimeout
	}

	base, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		fetch:  fetch,
		sink:   sink,
		cfg:    cfg,
		log:    logger.Default(),
		reset:  make(chan struct{}, 1),
		base:   base,
		cancel: cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With("component", "refresh")
	s.interval.Store(int64(clampInterval(cfg.Interval)))
	return s
}

func clampInterval(d time.Duration) time.Duration {
	if d <= 0 {
		d = DefaultInterval
	}
	if d < minInterval {
		d = minInterval
	}
	return d
}

// Interval returns the current tick interval.
func (s *Scheduler) Interval() time.Duration {
	return time.Duration(s.interval.Load())
}

// SetInterval changes the tick interval, clamped to the minimum. A running
// loop picks it up immediately.
func (s *Scheduler) SetInterval(d time.Duration) time.Duration {
	d = clampInterval(d)
	if time.Duration(s.interval.Swap(int64(d))) == d {
		return d
	}
	s.log.Info("refresh interval changed", "interval", d)
	select {
	case s.reset <- struct{}{}:
	default:
	}
	return d
}

// Run ticks until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.Interval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.base.Done():
			return nil
		case <-s.reset:
			ticker.Reset(s.Interval())
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick performs one scheduling decision.
func (s *Scheduler) Tick(ctx context.Context) {
	lobbyID := s.sink.CurrentLobbyID()
	if lobbyID == "" {
		s.pollList(ctx)
		return
	}
	if s.LaunchWatchActive() {
		s.metrics.SkipPoll("launch_watch")
		return
	}
	if s.sink.PushConnectedTo(lobbyID) {
		s.metrics.SkipPoll("push_connected")
		return
	}
	_ = s.pollLobby(ctx, lobbyID, KindLobby)
}

// RefreshNow polls the current lobby immediately. It does nothing outside a
// lobby.
func (s *Scheduler) RefreshNow(ctx context.Context) error {
	lobbyID := s.sink.CurrentLobbyID()
	if lobbyID == "" {
		return nil
	}
	return s.pollLobby(ctx, lobbyID, KindManual)
}

func (s *Scheduler) pollList(ctx context.Context) {
	s.pollMu.Lock()
	lobbies, err := s.fetch.ListLobbies(ctx)
	s.pollMu.Unlock()

	if err != nil {
		s.metrics.ObservePoll(KindList, "error")
		s.log.Warn("lobby list poll failed", "error", err)
		return
	}
	s.metrics.ObservePoll(KindList, "ok")
	s.sink.LobbiesListed(lobbies)
}

func (s *Scheduler) pollLobby(ctx context.Context, lobbyID, kind string) error {
	s.pollMu.Lock()
	l, err := s.fetch.GetLobby(ctx, lobbyID)
	s.pollMu.Unlock()

	switch {
	case domain.IsNotFound(err):
		s.metrics.ObservePoll(kind, "gone")
		s.log.Info("lobby no longer exists", "lobby_id", lobbyID)
		s.sink.LobbyGone(lobbyID)
		return nil
	case err != nil:
		s.metrics.ObservePoll(kind, "error")
		s.log.Warn("lobby poll failed", "lobby_id", lobbyID, "kind", kind, "error", err)
		return err
	}
	s.metrics.ObservePoll(kind, "ok")
	s.sink.DeliverPolled(l)
	return nil
}

// WatchLaunch starts the launch watch for lobbyID. A watch already running
// for the same lobby is kept; one for another lobby is cancelled.
func (s *Scheduler) WatchLaunch(lobbyID string) {
	if lobbyID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.base.Err() != nil {
		return
	}
	if s.launch != nil {
		if s.launch.lobbyID == lobbyID {
			return
		}
		s.launch.cancel()
	}

	ctx, cancel := context.WithCancel(s.base)
	w := &launchWatch{lobbyID: lobbyID, cancel: cancel}
	s.launch = w
	s.wg.Add(1)
	go s.watch(ctx, w)
	s.log.Info("watching server launch",
		"lobby_id", lobbyID,
		"interval", s.cfg.LaunchInterval,
		"attempts", s.cfg.LaunchAttempts,
	)
}

// CancelLaunchWatch stops the launch watch, if any. It does not wait.
func (s *Scheduler) CancelLaunchWatch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.launch != nil {
		s.launch.cancel()
		s.launch = nil
	}
}

// LaunchWatchActive reports whether a launch watch is running.
func (s *Scheduler) LaunchWatchActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.launch != nil
}

// Close stops the launch watch and any Run loop, and waits for the watch
// goroutine. It must not be called from the Sink.
func (s *Scheduler) Close() {
	s.cancel()
	s.wg.Wait()
}

func (s *Scheduler) watch(ctx context.Context, w *launchWatch) {
	defer s.wg.Done()
	log := s.log.With("lobby_id", w.lobbyID)

	var last *domain.Lobby
	for attempt := 1; attempt <= s.cfg.LaunchAttempts; attempt++ {
		if backoff.Sleep(ctx, s.cfg.LaunchInterval) != nil {
			s.finish(w, LaunchCancelled, last)
			return
		}

		l, err := s.fetchLaunch(ctx, w.lobbyID)
		switch {
		case ctx.Err() != nil:
			s.finish(w, LaunchCancelled, last)
			return
		case domain.IsNotFound(err):
			s.metrics.ObservePoll(KindLaunch, "gone")
			log.Info("lobby no longer exists")
			s.finish(w, LaunchGone, last)
			s.sink.LobbyGone(w.lobbyID)
			return
		case err != nil:
			s.metrics.ObservePoll(KindLaunch, "error")
			log.Warn("launch poll failed", "attempt", attempt, "error", err)
			continue
		}
		s.metrics.ObservePoll(KindLaunch, "ok")
		last = l
		s.sink.DeliverPolled(l)

		if outcome, done := classify(l); done {
			s.finish(w, outcome, l)
			return
		}
		log.Debug("server still launching", "attempt", attempt)
	}
	s.finish(w, LaunchTimeout, last)
}

func (s *Scheduler) fetchLaunch(ctx context.Context, lobbyID string) (*domain.Lobby, error) {
	s.pollMu.Lock()
	defer s.pollMu.Unlock()
	reqCtx, cancel := context.WithTimeout(ctx, s.cfg.PollTimeout)
	defer cancel()
	return s.fetch.GetLobby(reqCtx, lobbyID)
}

func (s *Scheduler) finish(w *launchWatch, outcome LaunchOutcome, l *domain.Lobby) {
	s.mu.Lock()
	if s.launch == w {
		s.launch = nil
	}
	s.mu.Unlock()
	w.cancel()

	s.log.Info("launch watch finished", "lobby_id", w.lobbyID, "outcome", outcome)
	s.sink.LaunchFinished(w.lobbyID, outcome, l)
}
