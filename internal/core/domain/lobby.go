package domain

import (
	"encoding/json"
	"maps"
	"slices"
	"strings"
	"time"
)

// LobbyStatus is the lifecycle status of a lobby.
// The set is open: values unknown to this package pass through unchanged.
type LobbyStatus string

// Known lobby statuses.
const (
	StatusWaiting    LobbyStatus = "waiting"
	StatusInGame     LobbyStatus = "in_game"
	StatusInQueue    LobbyStatus = "in_queue"
	StatusMatchFound LobbyStatus = "match_found"
)

// ServerStatus is the provisioning status of the game server backing a lobby.
type ServerStatus string

// Known server statuses.
const (
	ServerLaunching ServerStatus = "launching"
	ServerRunning   ServerStatus = "running"
	ServerFailed    ServerStatus = "failed"
	ServerStopped   ServerStatus = "stopped"
)

// IsTerminal reports whether the server will not become ready from this status.
func (s ServerStatus) IsTerminal() bool {
	return s == ServerFailed || s == ServerStopped
}

// Endpoint is a host/port pair for one protocol.
type Endpoint struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// ServerInfo describes the game server assigned to a lobby.
type ServerInfo struct {
	Status ServerStatus `json:"status"`

	// Endpoints is keyed by protocol (e.g. "udp", "tcp", "ws").
	Endpoints map[string]Endpoint `json:"endpoints,omitempty"`
}

// Lobby is a full snapshot of a remote lobby at a point in time.
//
// Only ID, LastModified, Status, Players, PlayerState and ServerInfo take part
// in reconciliation; the remaining fields are carried for display.
type Lobby struct {
	ID           string `json:"id"`
	LastModified string `json:"lastModified"`

	Name          string `json:"name,omitempty"`
	Code          string `json:"code,omitempty"`
	Host          string `json:"host,omitempty"`
	MaxPlayers    int    `json:"maxPlayers,omitempty"`
	IsPrivate     bool   `json:"isPrivate,omitempty"`
	AllowLateJoin bool   `json:"allowLateJoin,omitempty"`
	Region        string `json:"region,omitempty"`

	Status      LobbyStatus                `json:"status"`
	Players     []string                   `json:"players"`
	PlayerState map[string]json.RawMessage `json:"playerState,omitempty"`
	Settings    map[string]json.RawMessage `json:"settings,omitempty"`
	ServerInfo  *ServerInfo                `json:"serverInfo,omitempty"`
}

// ServerStatus returns the nested server status, or "" when no server is assigned.
func (l *Lobby) ServerStatus() ServerStatus {
	if l == nil || l.ServerInfo == nil {
		return ""
	}
	return l.ServerInfo.Status
}

// HasPlayer reports whether playerID is on the roster.
func (l *Lobby) HasPlayer(playerID string) bool {
	if l == nil {
		return false
	}
	return slices.Contains(l.Players, playerID)
}

// IsHost reports whether playerID is the lobby host.
func (l *Lobby) IsHost(playerID string) bool {
	return l != nil && playerID != "" && l.Host == playerID
}

// AwaitingServer reports whether the lobby is in game with a server still launching.
func (l *Lobby) AwaitingServer() bool {
	return l != nil && l.Status == StatusInGame && l.ServerStatus() == ServerLaunching
}

// Clone returns a deep copy of the lobby.
func (l *Lobby) Clone() *Lobby {
	if l == nil {
		return nil
	}
	c := *l
	c.Players = slices.Clone(l.Players)
	c.PlayerState = cloneRaw(l.PlayerState)
	c.Settings = cloneRaw(l.Settings)
	if l.ServerInfo != nil {
		si := *l.ServerInfo
		si.Endpoints = maps.Clone(l.ServerInfo.Endpoints)
		c.ServerInfo = &si
	}
	return &c
}

func cloneRaw(m map[string]json.RawMessage) map[string]json.RawMessage {
	if m == nil {
		return nil
	}
	out := make(map[string]json.RawMessage, len(m))
	for k, v := range m {
		out[k] = slices.Clone(v)
	}
	return out
}

// CompareMarkers orders two lastModified markers.
//
// Markers are opaque. When both parse as RFC 3339 timestamps their instants
// are compared, which keeps differing fractional precision in order;
// otherwise they are compared lexicographically. The empty marker sorts first.
// The result is -1, 0 or +1.
func CompareMarkers(a, b string) int {
	if a == b {
		return 0
	}
	if a == "" {
		return -1
	}
	if b == "" {
		return 1
	}
	ta, errA := time.Parse(time.RFC3339Nano, a)
	tb, errB := time.Parse(time.RFC3339Nano, b)
	if errA == nil && errB == nil {
		return ta.Compare(tb)
	}
	return strings.Compare(a, b)
}
