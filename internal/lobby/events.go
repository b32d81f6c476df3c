package lobby

import (
	"github.com/yndnr/lobbysync-go/internal/core/domain"
	"github.com/yndnr/lobbysync-go/internal/refresh"
)

// EventType names an event.
type EventType string

// Event types.
const (
	TypeStateChanged        EventType = "state_changed"
	TypeLobbyUpdated        EventType = "lobby_updated"
	TypePlayerJoined        EventType = "player_joined"
	TypePlayerLeft          EventType = "player_left"
	TypeStatusChanged       EventType = "status_changed"
	TypeServerStatusChanged EventType = "server_status_changed"
	TypeMatchReady          EventType = "match_ready"
	TypeLaunchWatchFinished EventType = "launch_watch_finished"
	TypeLobbyLeft           EventType = "lobby_left"
	TypeLobbiesListed       EventType = "lobbies_listed"
	TypePushStatusChanged   EventType = "push_status_changed"
	TypeMutationFailed      EventType = "mutation_failed"
)

// Source says where an applied snapshot came from.
type Source string

// Snapshot sources.
const (
	SourceMutation Source = "mutation"
	SourcePush     Source = "push"
	SourcePoll     Source = "poll"
)

// Event is published on the Bus.
type Event interface {
	Type() EventType
}

// StateChanged reports a session phase transition.
type StateChanged struct {
	From    domain.Phase
	To      domain.Phase
	LobbyID string
	Reason  domain.LeaveReason
}

// LobbyUpdated reports an accepted snapshot.
type LobbyUpdated struct {
	Lobby  *domain.Lobby
	Delta  domain.LobbyDelta
	Source Source
}

// PlayerJoined reports a roster addition.
type PlayerJoined struct {
	LobbyID  string
	PlayerID string
}

// PlayerLeft reports a roster removal.
type PlayerLeft struct {
	LobbyID  string
	PlayerID string
}

// StatusChanged reports a lobby status change.
type StatusChanged struct {
	LobbyID string
	From    domain.LobbyStatus
	To      domain.LobbyStatus
}

// ServerStatusChanged reports a game server status change.
type ServerStatusChanged struct {
	LobbyID string
	From    domain.ServerStatus
	To      domain.ServerStatus
}

// MatchReady fires once per match when the game server is running.
type MatchReady struct {
	Lobby *domain.Lobby
}

// LaunchWatchFinished reports how the launch watch ended. Err is nil for
// running and cancelled.
type LaunchWatchFinished struct {
	LobbyID string
	Outcome refresh.LaunchOutcome
	Err     error
}

// LobbyLeft reports that the session is no longer in a lobby.
type LobbyLeft struct {
	LobbyID string
	Reason  domain.LeaveReason
}

// LobbiesListed carries the result of a list poll.
type LobbiesListed struct {
	Lobbies []*domain.Lobby
}

// PushStatusChanged reports the push link going up or down.
type PushStatusChanged struct {
	LobbyID   string
	Connected bool
	Err       error
}

// MutationFailed reports a failed mutation.
type MutationFailed struct {
	MutationID string
	Operation  string
	Err        error
}

func (StateChanged) Type() EventType        { return TypeStateChanged }
func (LobbyUpdated) Type() EventType        { return TypeLobbyUpdated }
func (PlayerJoined) Type() EventType        { return TypePlayerJoined }
func (PlayerLeft) Type() EventType          { return TypePlayerLeft }
func (StatusChanged) Type() EventType       { return TypeStatusChanged }
func (ServerStatusChanged) Type() EventType { return TypeServerStatusChanged }
func (MatchReady) Type() EventType          { return TypeMatchReady }
func (LaunchWatchFinished) Type() EventType { return TypeLaunchWatchFinished }
func (LobbyLeft) Type() EventType           { return TypeLobbyLeft }
func (LobbiesListed) Type() EventType       { return TypeLobbiesListed }
func (PushStatusChanged) Type() EventType   { return TypePushStatusChanged }
func (MutationFailed) Type() EventType      { return TypeMutationFailed }
