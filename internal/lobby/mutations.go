package lobby

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"time"

	"github.com/yndnr/lobbysync-go/internal/core/domain"
	"github.com/yndnr/lobbysync-go/internal/queue"
)

// Operation names used for logs, metrics and MutationFailed events.
const (
	OpCreate      = "create_lobby"
	OpJoin        = "join_lobby"
	OpJoinByCode  = "join_lobby_by_code"
	OpLeave       = "leave_lobby"
	OpKick        = "kick_player"
	OpUpdate      = "update_lobby"
	OpPlayerState = "set_player_state"
	OpStatus      = "set_status"
	OpHost        = "transfer_host"
	OpMatchmaking = "matchmaking"
	OpDelete      = "delete_lobby"
)

type lobbyOp func(ctx context.Context) (*domain.Lobby, error)

// mutate queues op and waits for it. Giving up on ctx does not cancel the
// queued mutation.
//
// An operation can succeed remotely and be applied locally after its queue
// deadline. The caller then gets domain.ErrOperationTimeout together with
// the applied snapshot, so a non-nil lobby means the session moved to it.
func (s *Session) mutate(ctx context.Context, name string, op lobbyOp, retry bool, opts ...queue.EnqueueOption) (*domain.Lobby, error) {
	var result atomic.Pointer[domain.Lobby]
	run := queue.Operation(func(ctx context.Context) error {
		l, err := op(ctx)
		if err != nil {
			return err
		}
		result.Store(l)
		return nil
	})
	if retry && s.cfg.Retry.MaxAttempts > 1 {
		policy := s.cfg.Retry
		policy.OnRetry = func(attempt int, err error, delay time.Duration) {
			s.log.Debug("retrying mutation", "operation", name, "attempt", attempt, "delay", delay, "error", err)
		}
		run = policy.Wrap(run)
	}

	ticket, err := s.queue.Enqueue(name, run, s.mutationFailed, opts...)
	if err != nil {
		return nil, err
	}
	if err := ticket.Wait(ctx); err != nil {
		if errors.Is(err, domain.ErrOperationTimeout) {
			return result.Load(), err
		}
		return nil, err
	}
	return result.Load(), nil
}

func (s *Session) mutationFailed(t *queue.Ticket, err error) {
	s.bus.Publish(MutationFailed{MutationID: t.ID, Operation: t.Name, Err: err})
}

// CreateLobby creates a lobby hosted by the local player and enters it.
// The creation is critical: if it fails, mutations queued behind it are
// discarded. A creation that completes after its deadline still enters the
// lobby and is returned along with domain.ErrOperationTimeout.
func (s *Session) CreateLobby(ctx context.Context, req domain.CreateLobbyRequest) (*domain.Lobby, error) {
	if err := s.requireStarted(); err != nil {
		return nil, err
	}
	if req.Host == "" {
		req.Host = s.machine.PlayerID()
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return s.mutate(ctx, OpCreate, func(ctx context.Context) (*domain.Lobby, error) {
		l, err := s.remote.CreateLobby(ctx, &req)
		if err != nil {
			return nil, err
		}
		s.adopt(l, true)
		return l, nil
	}, false, queue.Critical())
}

// JoinLobby joins the lobby with the given id, leaving the current one.
func (s *Session) JoinLobby(ctx context.Context, lobbyID string, metadata json.RawMessage) (*domain.Lobby, error) {
	if err := s.requireStarted(); err != nil {
		return nil, err
	}
	if lobbyID == "" {
		return nil, domain.ErrMissingArgument.WithDetails("lobby id is required")
	}
	req := domain.JoinRequest{PlayerID: s.machine.PlayerID(), Metadata: metadata}
	return s.mutate(ctx, OpJoin, func(ctx context.Context) (*domain.Lobby, error) {
		l, err := s.remote.JoinLobby(ctx, lobbyID, req)
		if err != nil {
			return nil, err
		}
		s.adopt(l, true)
		return l, nil
	}, false)
}

// JoinLobbyByCode joins the lobby with the given join code.
func (s *Session) JoinLobbyByCode(ctx context.Context, code string, metadata json.RawMessage) (*domain.Lobby, error) {
	if err := s.requireStarted(); err != nil {
		return nil, err
	}
	if code == "" {
		return nil, domain.ErrMissingArgument.WithDetails("join code is required")
	}
	req := domain.JoinRequest{PlayerID: s.machine.PlayerID(), Metadata: metadata}
	return s.mutate(ctx, OpJoinByCode, func(ctx context.Context) (*domain.Lobby, error) {
		l, err := s.remote.JoinLobbyByCode(ctx, code, req)
		if err != nil {
			return nil, err
		}
		s.adopt(l, true)
		return l, nil
	}, false)
}

// LeaveLobby removes the local player from the current lobby. A lobby that
// no longer exists counts as left.
func (s *Session) LeaveLobby(ctx context.Context) error {
	lobbyID, playerID, err := s.requireLobby()
	if err != nil {
		return err
	}
	_, err = s.mutate(ctx, OpLeave, func(ctx context.Context) (*domain.Lobby, error) {
		_, err := s.remote.RemovePlayer(ctx, lobbyID, playerID, playerID, false)
		switch {
		case domain.IsNotFound(err):
			s.leaveIf(lobbyID, domain.LeaveGone)
			return nil, nil
		case err != nil:
			return nil, err
		}
		s.leaveIf(lobbyID, domain.LeaveRequested)
		return nil, nil
	}, false)
	return err
}

// KickPlayer removes another player from the current lobby.
func (s *Session) KickPlayer(ctx context.Context, playerID string) (*domain.Lobby, error) {
	lobbyID, self, err := s.requireLobby()
	if err != nil {
		return nil, err
	}
	if playerID == "" || playerID == self {
		return nil, domain.ErrInvalidArgument.WithDetails("cannot kick " + quoteOrEmpty(playerID))
	}
	return s.mutate(ctx, OpKick, func(ctx context.Context) (*domain.Lobby, error) {
		l, err := s.remote.RemovePlayer(ctx, lobbyID, playerID, self, true)
		if err != nil {
			return nil, err
		}
		if l == nil {
			// Empty response: fetch the resulting state.
			if l, err = s.remote.GetLobby(ctx, lobbyID); err != nil {
				return nil, err
			}
		}
		s.adopt(l, false)
		return l, nil
	}, false)
}

// UpdateLobby sends a partial update for the current lobby.
func (s *Session) UpdateLobby(ctx context.Context, upd domain.LobbyUpdate) (*domain.Lobby, error) {
	return s.update(ctx, OpUpdate, upd)
}

// SetPlayerState replaces the local player's state blob.
func (s *Session) SetPlayerState(ctx context.Context, state json.RawMessage) (*domain.Lobby, error) {
	if len(state) == 0 {
		return nil, domain.ErrMissingArgument.WithDetails("player state is required")
	}
	return s.update(ctx, OpPlayerState, domain.LobbyUpdate{PlayerState: state})
}

// SetStatus changes the lobby status.
func (s *Session) SetStatus(ctx context.Context, status domain.LobbyStatus) (*domain.Lobby, error) {
	if status == "" {
		return nil, domain.ErrMissingArgument.WithDetails("status is required")
	}
	return s.update(ctx, OpStatus, domain.LobbyUpdate{Status: status})
}

// TransferHost hands the host role to another player in the lobby.
func (s *Session) TransferHost(ctx context.Context, playerID string) (*domain.Lobby, error) {
	if cur := s.machine.Current(); cur != nil && !cur.HasPlayer(playerID) {
		return nil, domain.ErrInvalidArgument.WithDetails("player " + quoteOrEmpty(playerID) + " is not in the lobby")
	}
	return s.update(ctx, OpHost, domain.LobbyUpdate{Host: playerID})
}

// Matchmaking starts or cancels matchmaking for the lobby.
func (s *Session) Matchmaking(ctx context.Context, action domain.MatchmakingAction, mode string) (*domain.Lobby, error) {
	if action != domain.MatchmakingStart && action != domain.MatchmakingCancel {
		return nil, domain.ErrInvalidArgument.WithDetails("unknown matchmaking action " + quoteOrEmpty(string(action)))
	}
	return s.update(ctx, OpMatchmaking, domain.LobbyUpdate{
		Matchmaking: &domain.Matchmaking{Action: action, Mode: mode},
	})
}

// DeleteLobby deletes the current lobby and leaves it.
func (s *Session) DeleteLobby(ctx context.Context) error {
	lobbyID, playerID, err := s.requireLobby()
	if err != nil {
		return err
	}
	_, err = s.mutate(ctx, OpDelete, func(ctx context.Context) (*domain.Lobby, error) {
		err := s.remote.DeleteLobby(ctx, lobbyID, playerID)
		if err != nil && !domain.IsNotFound(err) {
			return nil, err
		}
		s.leaveIf(lobbyID, domain.LeaveDeleted)
		return nil, nil
	}, false)
	return err
}

func (s *Session) update(ctx context.Context, name string, upd domain.LobbyUpdate) (*domain.Lobby, error) {
	lobbyID, playerID, err := s.requireLobby()
	if err != nil {
		return nil, err
	}
	if upd.IsEmpty() {
		return nil, domain.ErrInvalidArgument.WithDetails("empty lobby update")
	}
	if upd.RequesterID == "" {
		upd.RequesterID = playerID
	}
	return s.mutate(ctx, name, func(ctx context.Context) (*domain.Lobby, error) {
		l, err := s.remote.UpdateLobby(ctx, lobbyID, &upd)
		if err != nil {
			return nil, err
		}
		s.adopt(l, false)
		return l, nil
	}, true)
}

func quoteOrEmpty(s string) string {
	if s == "" {
		return "<empty>"
	}
	return `"` + s + `"`
}
