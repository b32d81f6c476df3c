package command

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/lobbysync-go/internal/core/domain"
)

// LobbyCommand returns the lobby subcommand group. Each subcommand is a
// single REST call; use watch to follow a lobby.
func LobbyCommand() *cli.Command {
	return &cli.Command{
		Name:    "lobby",
		Aliases: []string{"l"},
		Usage:   "Query and modify lobbies",
		Subcommands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List lobbies",
				Action: lobbyList,
			},
			{
				Name:      "get",
				Usage:     "Show one lobby",
				ArgsUsage: "LOBBY_ID",
				Action:    lobbyGet,
			},
			{
				Name:   "current",
				Usage:  "Show the lobby the player is in",
				Action: lobbyCurrent,
			},
			{
				Name:  "create",
				Usage: "Create a lobby hosted by the player",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Usage: "Lobby name", Required: true},
					&cli.IntFlag{Name: "max-players", Aliases: []string{"m"}, Value: 8, Usage: "Maximum number of players"},
					&cli.BoolFlag{Name: "private", Usage: "Hide the lobby from listings"},
					&cli.BoolFlag{Name: "late-join", Usage: "Allow joining while in game"},
					&cli.StringFlag{Name: "region", Usage: "Preferred server region"},
					settingFlag(),
				},
				Action: lobbyCreate,
			},
			{
				Name:      "join",
				Usage:     "Join a lobby by ID or join code",
				ArgsUsage: "[LOBBY_ID]",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "code", Usage: "Join code instead of a lobby ID"},
					&cli.StringFlag{Name: "metadata", Usage: "Join metadata as JSON"},
				},
				Action: lobbyJoin,
			},
			{
				Name:      "leave",
				Usage:     "Leave a lobby",
				ArgsUsage: "LOBBY_ID",
				Action:    lobbyLeave,
			},
			{
				Name:      "kick",
				Usage:     "Remove another player (host only)",
				ArgsUsage: "LOBBY_ID PLAYER_ID",
				Action:    lobbyKick,
			},
			{
				Name:      "delete",
				Aliases:   []string{"rm"},
				Usage:     "Delete a lobby (host only)",
				ArgsUsage: "LOBBY_ID",
				Action:    lobbyDelete,
			},
			{
				Name:      "update",
				Usage:     "Send a partial lobby update",
				ArgsUsage: "LOBBY_ID",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "status", Usage: "New lobby status (waiting, in_game, ...)"},
					&cli.StringFlag{Name: "host", Usage: "Transfer host to this player"},
					&cli.StringFlag{Name: "state", Usage: "The player's own state as JSON"},
					&cli.StringFlag{Name: "matchmaking", Usage: "Matchmaking action: start or cancel"},
					&cli.StringFlag{Name: "mode", Usage: "Matchmaking mode"},
					settingFlag(),
				},
				Action: lobbyUpdate,
			},
		},
	}
}

func settingFlag() cli.Flag {
	return &cli.StringSliceFlag{
		Name:  "setting",
		Usage: "Lobby setting as KEY=VALUE; VALUE is JSON or a plain string",
	}
}

func lobbyList(c *cli.Context) error {
	cl, err := connect(c)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Context, commandTimeout)
	defer cancel()

	lobbies, err := cl.ListLobbies(ctx)
	if err != nil {
		return fmt.Errorf("list lobbies: %w", err)
	}
	if len(lobbies) == 0 && isTable(c) {
		printf(c, "No lobbies found.")
		return nil
	}
	return render(c, lobbies)
}

func lobbyGet(c *cli.Context) error {
	lobbyID, err := arg(c, 0, "LOBBY_ID")
	if err != nil {
		return err
	}
	cl, err := connect(c)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Context, commandTimeout)
	defer cancel()

	l, err := cl.GetLobby(ctx, lobbyID)
	if err != nil {
		return fmt.Errorf("get lobby: %w", err)
	}
	return render(c, l)
}

func lobbyCurrent(c *cli.Context) error {
	player, err := RequirePlayer(c)
	if err != nil {
		return err
	}
	cl, err := connect(c)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Context, commandTimeout)
	defer cancel()

	l, err := cl.GetPlayerLobby(ctx, player)
	if err != nil {
		return fmt.Errorf("get player lobby: %w", err)
	}
	if l == nil {
		printf(c, "Player %s is not in a lobby.", player)
		return nil
	}
	return render(c, l)
}

func lobbyCreate(c *cli.Context) error {
	player, err := RequirePlayer(c)
	if err != nil {
		return err
	}
	settings, err := parseSettings(c.StringSlice("setting"))
	if err != nil {
		return err
	}
	req := &domain.CreateLobbyRequest{
		Name:          c.String("name"),
		MaxPlayers:    c.Int("max-players"),
		IsPrivate:     c.Bool("private"),
		AllowLateJoin: c.Bool("late-join"),
		Region:        c.String("region"),
		Settings:      settings,
		Host:          player,
	}
	cl, err := connect(c)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Context, commandTimeout)
	defer cancel()

	l, err := cl.CreateLobby(ctx, req)
	if err != nil {
		return fmt.Errorf("create lobby: %w", err)
	}
	printf(c, "Lobby created: %s", l.ID)
	return render(c, l)
}

func lobbyJoin(c *cli.Context) error {
	player, err := RequirePlayer(c)
	if err != nil {
		return err
	}
	code := c.String("code")
	lobbyID := c.Args().First()
	if (code == "") == (lobbyID == "") {
		return fmt.Errorf("specify either LOBBY_ID or --code")
	}
	metadata, err := parseJSONFlag(c, "metadata")
	if err != nil {
		return err
	}
	cl, err := connect(c)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Context, commandTimeout)
	defer cancel()

	req := domain.JoinRequest{PlayerID: player, Metadata: metadata}
	var l *domain.Lobby
	if code != "" {
		l, err = cl.JoinLobbyByCode(ctx, code, req)
	} else {
		l, err = cl.JoinLobby(ctx, lobbyID, req)
	}
	if err != nil {
		return fmt.Errorf("join lobby: %w", err)
	}
	printf(c, "Joined lobby %s", l.ID)
	return render(c, l)
}

func lobbyLeave(c *cli.Context) error {
	lobbyID, err := arg(c, 0, "LOBBY_ID")
	if err != nil {
		return err
	}
	player, err := RequirePlayer(c)
	if err != nil {
		return err
	}
	cl, err := connect(c)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Context, commandTimeout)
	defer cancel()

	if _, err := cl.RemovePlayer(ctx, lobbyID, player, player, false); err != nil && !domain.IsNotFound(err) {
		return fmt.Errorf("leave lobby: %w", err)
	}
	printf(c, "Left lobby %s", lobbyID)
	return nil
}

func lobbyKick(c *cli.Context) error {
	lobbyID, err := arg(c, 0, "LOBBY_ID")
	if err != nil {
		return err
	}
	target, err := arg(c, 1, "PLAYER_ID")
	if err != nil {
		return err
	}
	player, err := RequirePlayer(c)
	if err != nil {
		return err
	}
	cl, err := connect(c)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Context, commandTimeout)
	defer cancel()

	l, err := cl.RemovePlayer(ctx, lobbyID, target, player, true)
	if err != nil {
		return fmt.Errorf("kick player: %w", err)
	}
	printf(c, "Kicked %s from lobby %s", target, lobbyID)
	if l == nil {
		return nil
	}
	return render(c, l)
}

func lobbyDelete(c *cli.Context) error {
	lobbyID, err := arg(c, 0, "LOBBY_ID")
	if err != nil {
		return err
	}
	player, err := RequirePlayer(c)
	if err != nil {
		return err
	}
	cl, err := connect(c)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Context, commandTimeout)
	defer cancel()

	if err := cl.DeleteLobby(ctx, lobbyID, player); err != nil && !domain.IsNotFound(err) {
		return fmt.Errorf("delete lobby: %w", err)
	}
	printf(c, "Lobby %s deleted", lobbyID)
	return nil
}

func lobbyUpdate(c *cli.Context) error {
	lobbyID, err := arg(c, 0, "LOBBY_ID")
	if err != nil {
		return err
	}
	player, err := RequirePlayer(c)
	if err != nil {
		return err
	}
	upd, err := buildUpdate(c, player)
	if err != nil {
		return err
	}
	cl, err := connect(c)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Context, commandTimeout)
	defer cancel()

	l, err := cl.UpdateLobby(ctx, lobbyID, upd)
	if err != nil {
		return fmt.Errorf("update lobby: %w", err)
	}
	return render(c, l)
}

// buildUpdate assembles a partial update from the update flags. The service
// stores --state under the requester.
func buildUpdate(c *cli.Context, player string) (*domain.LobbyUpdate, error) {
	settings, err := parseSettings(c.StringSlice("setting"))
	if err != nil {
		return nil, err
	}
	state, err := parseJSONFlag(c, "state")
	if err != nil {
		return nil, err
	}
	upd := &domain.LobbyUpdate{
		Status:      domain.LobbyStatus(c.String("status")),
		Host:        c.String("host"),
		Settings:    settings,
		PlayerState: state,
		RequesterID: player,
	}
	if action := c.String("matchmaking"); action != "" {
		a := domain.MatchmakingAction(action)
		if a != domain.MatchmakingStart && a != domain.MatchmakingCancel {
			return nil, fmt.Errorf("--matchmaking must be start or cancel, got %q", action)
		}
		upd.Matchmaking = &domain.Matchmaking{Action: a, Mode: c.String("mode")}
	}
	if upd.IsEmpty() {
		return nil, fmt.Errorf("nothing to update: set at least one of --status, --host, --state, --setting, --matchmaking")
	}
	return upd, nil
}

// parseSettings turns KEY=VALUE pairs into raw JSON values. A VALUE that is
// not valid JSON is sent as a JSON string.
func parseSettings(pairs []string) (map[string]json.RawMessage, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]json.RawMessage, len(pairs))
	for _, p := range pairs {
		key, value, ok := strings.Cut(p, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid setting %q: want KEY=VALUE", p)
		}
		if json.Valid([]byte(value)) {
			out[key] = json.RawMessage(value)
			continue
		}
		quoted, err := json.Marshal(value)
		if err != nil {
			return nil, err
		}
		out[key] = quoted
	}
	return out, nil
}

func parseJSONFlag(c *cli.Context, name string) (json.RawMessage, error) {
	v := c.String(name)
	if v == "" {
		return nil, nil
	}
	if !json.Valid([]byte(v)) {
		return nil, fmt.Errorf("--%s must be valid JSON", name)
	}
	return json.RawMessage(v), nil
}

func arg(c *cli.Context, i int, name string) (string, error) {
	v := c.Args().Get(i)
	if v == "" {
		return "", fmt.Errorf("%s is required", name)
	}
	return v, nil
}
