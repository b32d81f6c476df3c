package command

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/yndnr/lobbysync-go/internal/cli/output"
	"github.com/yndnr/lobbysync-go/internal/cli/repl"
	"github.com/yndnr/lobbysync-go/internal/core/domain"
	"github.com/yndnr/lobbysync-go/internal/lobby"
)

// shell drives a running session from console commands.
type shell struct {
	session *lobby.Session
	out     io.Writer
	format  output.Format
	wide    bool
}

// newConsole builds the console of watch --interactive.
func newConsole(s *lobby.Session, in io.Reader, out io.Writer, format output.Format, wide bool, history *repl.History) *repl.REPL {
	sh := &shell{session: s, out: out, format: format, wide: wide}
	r := repl.New(in, out, repl.WithHistory(history))
	r.Register(sh.commands()...)
	return r
}

func (sh *shell) commands() []repl.Command {
	return []repl.Command{
		{Name: "show", Usage: "print the current lobby", Handler: sh.show},
		{Name: "list", Usage: "list open lobbies", Handler: sh.list},
		{Name: "create", Usage: "create NAME [MAX_PLAYERS]", Handler: sh.create},
		{Name: "join", Usage: "join LOBBY_ID", Handler: sh.join},
		{Name: "code", Usage: "join by CODE", Handler: sh.code},
		{Name: "leave", Usage: "leave the current lobby", Handler: sh.leave},
		{Name: "delete", Usage: "delete the current lobby (host only)", Handler: sh.delete},
		{Name: "kick", Usage: "kick PLAYER_ID (host only)", Handler: sh.kick},
		{Name: "host", Usage: "transfer host to PLAYER_ID", Handler: sh.host},
		{Name: "status", Usage: "set the lobby STATUS", Handler: sh.status},
		{Name: "state", Usage: "set this player's state to a JSON value", Handler: sh.state},
		{Name: "mm", Usage: "matchmaking start [MODE] | cancel", Handler: sh.matchmaking},
		{Name: "refresh", Usage: "poll the lobby now", Handler: sh.refresh},
		{Name: "interval", Usage: "set the poll interval, e.g. 10s", Handler: sh.interval},
		{Name: "pause", Usage: "suspend the push connection", Handler: sh.pause},
		{Name: "resume", Usage: "re-establish the push connection", Handler: sh.resume},
		{Name: "push", Usage: "print the push connection status", Handler: sh.pushStatus},
	}
}

func (sh *shell) render(data any) error {
	return output.NewFormatter(sh.format, sh.wide).Format(sh.out, data)
}

func (sh *shell) show(context.Context, string) error {
	l := sh.session.Current()
	if l == nil {
		fmt.Fprintf(sh.out, "not in a lobby (%s)\n", sh.session.Phase())
		return nil
	}
	return sh.render(l)
}

func (sh *shell) list(ctx context.Context, _ string) error {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()
	lobbies, err := sh.session.ListLobbies(ctx)
	if err != nil {
		return err
	}
	if len(lobbies) == 0 && sh.format == output.FormatTable {
		fmt.Fprintln(sh.out, "no lobbies found")
		return nil
	}
	return sh.render(lobbies)
}

func (sh *shell) create(ctx context.Context, args string) error {
	name, maxPlayers := args, 8
	if i := strings.LastIndexByte(args, ' '); i > 0 {
		if n, err := strconv.Atoi(args[i+1:]); err == nil {
			name, maxPlayers = strings.TrimSpace(args[:i]), n
		}
	}
	if name == "" {
		return errors.New("usage: create NAME [MAX_PLAYERS]")
	}
	return sh.mutate(ctx, func(ctx context.Context) (*domain.Lobby, error) {
		return sh.session.CreateLobby(ctx, domain.CreateLobbyRequest{Name: name, MaxPlayers: maxPlayers})
	})
}

func (sh *shell) join(ctx context.Context, args string) error {
	if args == "" {
		return errors.New("usage: join LOBBY_ID")
	}
	return sh.mutate(ctx, func(ctx context.Context) (*domain.Lobby, error) {
		return sh.session.JoinLobby(ctx, args, nil)
	})
}

func (sh *shell) code(ctx context.Context, args string) error {
	if args == "" {
		return errors.New("usage: code CODE")
	}
	return sh.mutate(ctx, func(ctx context.Context) (*domain.Lobby, error) {
		return sh.session.JoinLobbyByCode(ctx, args, nil)
	})
}

func (sh *shell) leave(ctx context.Context, _ string) error {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()
	return sh.session.LeaveLobby(ctx)
}

func (sh *shell) delete(ctx context.Context, _ string) error {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()
	return sh.session.DeleteLobby(ctx)
}

func (sh *shell) kick(ctx context.Context, args string) error {
	if args == "" {
		return errors.New("usage: kick PLAYER_ID")
	}
	return sh.mutate(ctx, func(ctx context.Context) (*domain.Lobby, error) {
		return sh.session.KickPlayer(ctx, args)
	})
}

func (sh *shell) host(ctx context.Context, args string) error {
	if args == "" {
		return errors.New("usage: host PLAYER_ID")
	}
	return sh.mutate(ctx, func(ctx context.Context) (*domain.Lobby, error) {
		return sh.session.TransferHost(ctx, args)
	})
}

func (sh *shell) status(ctx context.Context, args string) error {
	if args == "" {
		return errors.New("usage: status STATUS")
	}
	return sh.mutate(ctx, func(ctx context.Context) (*domain.Lobby, error) {
		return sh.session.SetStatus(ctx, domain.LobbyStatus(args))
	})
}

func (sh *shell) state(ctx context.Context, args string) error {
	if !json.Valid([]byte(args)) {
		return errors.New("usage: state JSON")
	}
	return sh.mutate(ctx, func(ctx context.Context) (*domain.Lobby, error) {
		return sh.session.SetPlayerState(ctx, json.RawMessage(args))
	})
}

func (sh *shell) matchmaking(ctx context.Context, args string) error {
	action, mode, _ := strings.Cut(args, " ")
	a := domain.MatchmakingAction(action)
	if a != domain.MatchmakingStart && a != domain.MatchmakingCancel {
		return errors.New("usage: mm start [MODE] | mm cancel")
	}
	return sh.mutate(ctx, func(ctx context.Context) (*domain.Lobby, error) {
		return sh.session.Matchmaking(ctx, a, strings.TrimSpace(mode))
	})
}

func (sh *shell) refresh(ctx context.Context, _ string) error {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()
	return sh.session.Refresh(ctx)
}

func (sh *shell) interval(_ context.Context, args string) error {
	d, err := time.ParseDuration(args)
	if err != nil {
		return fmt.Errorf("usage: interval DURATION: %w", err)
	}
	fmt.Fprintf(sh.out, "poll interval %s\n", sh.session.SetRefreshInterval(d))
	return nil
}

func (sh *shell) pause(context.Context, string) error {
	sh.session.Pause()
	return nil
}

func (sh *shell) resume(context.Context, string) error {
	sh.session.Resume()
	return nil
}

func (sh *shell) pushStatus(context.Context, string) error {
	fmt.Fprintln(sh.out, pushLine(sh.session.PushTarget(), sh.session.PushConnected()))
	return nil
}

func pushLine(target string, connected bool) string {
	switch {
	case target == "":
		return "push idle"
	case connected:
		return "push connected to " + target
	default:
		return "push not connected, target " + target
	}
}

// mutate runs op with the command timeout. The resulting lobby is reported
// by the event stream, so only failures are returned.
func (sh *shell) mutate(ctx context.Context, op func(context.Context) (*domain.Lobby, error)) error {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()
	_, err := op(ctx)
	return err
}
