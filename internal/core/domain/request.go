package domain

import (
	"encoding/json"
	"strings"
)

// Lobby constraints enforced before a request leaves the client.
const (
	MaxLobbyNameLength = 64
	MinPlayers         = 1
	MaxPlayers         = 64
)

// CreateLobbyRequest is the body of POST /lobbies.
type CreateLobbyRequest struct {
	Name          string                     `json:"name"`
	MaxPlayers    int                        `json:"maxPlayers"`
	IsPrivate     bool                       `json:"isPrivate"`
	AllowLateJoin bool                       `json:"allowLateJoin"`
	Region        string                     `json:"region,omitempty"`
	Settings      map[string]json.RawMessage `json:"settings,omitempty"`
	Host          string                     `json:"host"`
}

// Validate checks the request against client-side constraints.
func (r *CreateLobbyRequest) Validate() error {
	var violations []string
	name := strings.TrimSpace(r.Name)
	if name == "" {
		violations = append(violations, "name is required")
	}
	if len(name) > MaxLobbyNameLength {
		violations = append(violations, "name exceeds 64 characters")
	}
	if r.MaxPlayers < MinPlayers || r.MaxPlayers > MaxPlayers {
		violations = append(violations, "maxPlayers must be between 1 and 64")
	}
	if r.Host == "" {
		violations = append(violations, "host is required")
	}
	if len(violations) > 0 {
		return ErrInvalidArgument.WithDetails(strings.Join(violations, "; "))
	}
	return nil
}

// JoinRequest is the body of the join endpoints.
type JoinRequest struct {
	PlayerID string          `json:"playerId"`
	Metadata json.RawMessage `json:"metadata,omitempty"`
}

// MatchmakingAction is the action field of a matchmaking update.
type MatchmakingAction string

// Matchmaking actions.
const (
	MatchmakingStart  MatchmakingAction = "start"
	MatchmakingCancel MatchmakingAction = "cancel"
)

// Matchmaking is the nested matchmaking document of a lobby update.
type Matchmaking struct {
	Action MatchmakingAction `json:"action"`
	Mode   string            `json:"mode,omitempty"`
}

// LobbyUpdate is the partial document sent with PUT /lobbies/{id}.
// Zero-valued fields are omitted and left untouched by the service.
type LobbyUpdate struct {
	Status      LobbyStatus                `json:"status,omitempty"`
	Host        string                     `json:"host,omitempty"`
	Settings    map[string]json.RawMessage `json:"settings,omitempty"`
	PlayerState json.RawMessage            `json:"playerState,omitempty"`
	RequesterID string                     `json:"requesterId,omitempty"`
	Matchmaking *Matchmaking               `json:"matchmaking,omitempty"`
}

// IsEmpty reports whether the update carries no change.
func (u *LobbyUpdate) IsEmpty() bool {
	return u.Status == "" && u.Host == "" && len(u.Settings) == 0 &&
		len(u.PlayerState) == 0 && u.Matchmaking == nil
}
