package lobby

import (
	"github.com/yndnr/lobbysync-go/internal/core/domain"
	"github.com/yndnr/lobbysync-go/internal/core/session"
	"github.com/yndnr/lobbysync-go/internal/push"
	"github.com/yndnr/lobbysync-go/internal/refresh"
)

// adopt applies a mutation result. With enter set (create, join, restore)
// the session switches to the result's lobby; otherwise a result for a
// lobby the session has meanwhile left is dropped.
func (s *Session) adopt(l *domain.Lobby, enter bool) {
	if l == nil || l.ID == "" {
		return
	}
	s.ingestMu.Lock()
	defer s.ingestMu.Unlock()

	cur := s.machine.CurrentLobbyID()
	switch {
	case cur == l.ID:
	case enter && cur != "":
		s.machine.Leave(domain.LeaveSwitched)
	case !enter:
		s.metrics.ObserveSnapshot(string(SourceMutation), "foreign")
		return
	}

	s.dedup.MarkAsSeen(l)
	s.applyLocked(l, SourceMutation)
}

// deliver applies a push or poll snapshot.
func (s *Session) deliver(l *domain.Lobby, src Source) {
	if l == nil || l.ID == "" {
		return
	}
	s.ingestMu.Lock()
	defer s.ingestMu.Unlock()

	if s.machine.CurrentLobbyID() != l.ID {
		s.metrics.ObserveSnapshot(string(src), "foreign")
		return
	}
	if s.dedup.IsDuplicate(l) {
		s.metrics.ObserveSnapshot(string(src), "duplicate")
		s.log.Debug("duplicate snapshot suppressed",
			"lobby_id", l.ID,
			"last_modified", l.LastModified,
			"source", src,
		)
		return
	}
	s.applyLocked(l, src)
}

func (s *Session) applyLocked(l *domain.Lobby, src Source) {
	res, err := s.machine.Apply(l)
	if err != nil {
		s.log.Warn("snapshot not applied", "lobby_id", l.ID, "source", src, "error", err)
		return
	}
	if !res.Accepted {
		s.metrics.ObserveSnapshot(string(src), string(res.Reason))
		s.log.Debug("snapshot rejected",
			"lobby_id", l.ID,
			"last_modified", l.LastModified,
			"source", src,
			"reason", res.Reason,
		)
		return
	}
	s.metrics.ObserveSnapshot(string(src), "applied")
	s.publishDelta(res, src)

	if pid := s.machine.PlayerID(); pid != "" && !l.HasPlayer(pid) {
		s.log.Info("local player no longer on roster", "lobby_id", l.ID, "player_id", pid)
		s.machine.LeaveIf(l.ID, domain.LeaveKicked)
		return
	}

	if res.Delta.LaunchStarted() {
		s.sched.WatchLaunch(l.ID)
	}
	if src == SourcePush {
		if st := l.ServerStatus(); st == domain.ServerRunning || st.IsTerminal() {
			s.sched.CancelLaunchWatch()
		}
	}
}

func (s *Session) publishDelta(res session.Result, src Source) {
	l, d := res.Current, res.Delta
	s.bus.Publish(LobbyUpdated{Lobby: l, Delta: d, Source: src})

	for _, id := range d.Joined {
		s.bus.Publish(PlayerJoined{LobbyID: l.ID, PlayerID: id})
	}
	for _, id := range d.Left {
		s.bus.Publish(PlayerLeft{LobbyID: l.ID, PlayerID: id})
	}
	if d.StatusChanged {
		s.bus.Publish(StatusChanged{LobbyID: l.ID, From: d.PreviousStatus, To: d.Status})
	}
	if d.ServerStatusChanged {
		s.bus.Publish(ServerStatusChanged{LobbyID: l.ID, From: d.PreviousServerStatus, To: d.ServerStatus})
	}
	if d.MatchReady {
		s.log.Info("match ready", "lobby_id", l.ID)
		s.bus.Publish(MatchReady{Lobby: l})
	}
}

// leaveIf leaves lobbyID under the ingest lock.
func (s *Session) leaveIf(lobbyID string, reason domain.LeaveReason) bool {
	s.ingestMu.Lock()
	defer s.ingestMu.Unlock()
	return s.machine.LeaveIf(lobbyID, reason)
}

// pushSink adapts a Session to push.Sink.
type pushSink Session

func (p *pushSink) HandlePushEvent(ev push.Event) {
	s := (*Session)(p)
	switch ev.Kind {
	case push.EventConnected:
		s.bus.Publish(PushStatusChanged{LobbyID: ev.LobbyID, Connected: true})
	case push.EventDisconnected:
		s.bus.Publish(PushStatusChanged{LobbyID: ev.LobbyID, Err: ev.Err})
	case push.EventError:
		s.log.Warn("push channel error, polling continues", "lobby_id", ev.LobbyID, "error", ev.Err)
	case push.EventUpdated:
		s.deliver(ev.Lobby, SourcePush)
	case push.EventDeleted:
		s.leaveIf(ev.LobbyID, domain.LeaveDeleted)
	}
}

// schedulerSink adapts a Session to refresh.Sink.
type schedulerSink Session

func (r *schedulerSink) CurrentLobbyID() string {
	return r.machine.CurrentLobbyID()
}

func (r *schedulerSink) PushConnectedTo(lobbyID string) bool {
	return r.push != nil && r.push.ConnectedTo(lobbyID)
}

func (r *schedulerSink) DeliverPolled(l *domain.Lobby) {
	(*Session)(r).deliver(l, SourcePoll)
}

func (r *schedulerSink) LobbyGone(lobbyID string) {
	(*Session)(r).leaveIf(lobbyID, domain.LeaveGone)
}

func (r *schedulerSink) LobbiesListed(lobbies []*domain.Lobby) {
	r.bus.Publish(LobbiesListed{Lobbies: lobbies})
}

func (r *schedulerSink) LaunchFinished(lobbyID string, outcome refresh.LaunchOutcome, _ *domain.Lobby) {
	r.bus.Publish(LaunchWatchFinished{LobbyID: lobbyID, Outcome: outcome, Err: outcome.Err()})
}
