package command

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/lobbysync-go/internal/cli/output"
	"github.com/yndnr/lobbysync-go/internal/cli/repl"
	"github.com/yndnr/lobbysync-go/internal/config"
	"github.com/yndnr/lobbysync-go/internal/core/domain"
	"github.com/yndnr/lobbysync-go/internal/infra/confloader"
	"github.com/yndnr/lobbysync-go/internal/infra/shutdown"
	"github.com/yndnr/lobbysync-go/internal/infra/tlsroots"
	"github.com/yndnr/lobbysync-go/internal/lobby"
	"github.com/yndnr/lobbysync-go/internal/push"
	"github.com/yndnr/lobbysync-go/internal/telemetry/logger"
	"github.com/yndnr/lobbysync-go/internal/telemetry/metric"
)

// WatchCommand returns the watch command, which keeps a live replica of the
// player's lobby and prints its events until interrupted.
func WatchCommand() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Follow the player's lobby and print its events",
		Description: "Runs a full lobby session: the current lobby is restored, " +
			"kept up to date by push and polling, and every change is printed. " +
			"The configuration file is reloaded when it changes.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "create", Usage: "Create a lobby with this name first"},
			&cli.IntFlag{Name: "max-players", Value: 8, Usage: "Maximum players for --create"},
			&cli.StringFlag{Name: "join", Usage: "Join this lobby ID first"},
			&cli.StringFlag{Name: "code", Usage: "Join the lobby with this join code first"},
			&cli.BoolFlag{Name: "lobbies", Usage: "Also print lobby list polls while not in a lobby"},
		&cli.BoolFlag{Name: "interactive", Aliases: []string{"i"}, Usage: "Read lobby commands from stdin while watching"},
		},
		Action: watch,
	}
}

func watch(c *cli.Context) error {
	player, err := RequirePlayer(c)
	if err != nil {
		return err
	}
	if n := countSet(c.String("create"), c.String("join"), c.String("code")); n > 1 {
		return errors.New("--create, --join and --code are mutually exclusive")
	}
	format, err := output.ParseFormat(c.String("output"))
	if err != nil {
		return err
	}
	cfg, err := LoadConfig(c)
	if err != nil {
		return err
	}

	logCfg := cfg.LoggerOptions()
	logCfg.Output = c.App.ErrWriter
	log, err := logger.New(logCfg)
	if err != nil {
		return err
	}
	logger.SetDefault(log)

	w, err := newWatchRun(cfg, log)
	if err != nil {
		return err
	}
	return w.run(c.Context, c, player, format)
}

// watchRun owns the components of one watch invocation.
type watchRun struct {
	cfg     *config.ClientConfig
	log     logger.Logger
	metrics *metric.Registry
	keyPair *tlsroots.KeyPair
	session *lobby.Session
	stop    *shutdown.Handler
}

func newWatchRun(cfg *config.ClientConfig, log logger.Logger) (*watchRun, error) {
	tlsCfg, keyPair, err := clientTLS(cfg)
	if err != nil {
		return nil, err
	}
	cl, err := newClient(cfg, tlsCfg)
	if err != nil {
		return nil, err
	}

	var transport push.Transport
	if cfg.Push.Enabled {
		wsCfg := cfg.PushTransport()
		wsCfg.TLSConfig = tlsCfg
		ws, err := push.NewWebSocketTransport(wsCfg, log)
		if err != nil {
			return nil, err
		}
		transport = ws
	}

	reg := metric.NewRegistry()
	s, err := lobby.New(cl, transport, cfg.SessionOptions(),
		lobby.WithLogger(log), lobby.WithMetrics(reg))
	if err != nil {
		return nil, err
	}
	return &watchRun{
		cfg:     cfg,
		log:     log,
		metrics: reg,
		keyPair: keyPair,
		session: s,
		stop:    shutdown.NewHandler(shutdown.DefaultTimeout, log),
	}, nil
}

func (w *watchRun) run(ctx context.Context, c *cli.Context, player string, format output.Format) error {
	var types []lobby.EventType
	if !c.Bool("lobbies") {
		types = watchedEvents
	}
	events, unsubscribe := w.session.Subscribe(types...)
	printed := make(chan struct{})
	go func() {
		defer close(printed)
		p := &eventPrinter{w: c.App.Writer, format: format}
		for ev := range events {
			p.print(ev)
		}
	}()

	// Hooks run in reverse: the session closes first, which closes the
	// event stream, then the printer drains.
	w.stop.OnShutdown("printer", func(ctx context.Context) error {
		unsubscribe()
		select {
		case <-printed:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	if err := w.serveMetrics(); err != nil {
		w.session.Close()
		return err
	}
	if err := w.watchFiles(c); err != nil {
		w.log.Warn("config reload disabled", "error", err)
	}
	w.stop.OnShutdown("session", func(context.Context) error {
		w.session.Close()
		return nil
	})

	if err := w.session.Start(ctx, player); err != nil {
		w.stop.Trigger()
		return errors.Join(err, w.stop.Wait(ctx))
	}
	if err := w.enter(ctx, c); err != nil {
		w.stop.Trigger()
		return errors.Join(err, w.stop.Wait(ctx))
	}
	if c.Bool("interactive") {
		w.startConsole(c, format)
	}
	return w.stop.Wait(ctx)
}

// startConsole runs the interactive console until it exits, which stops the
// watch. Its history is saved on shutdown.
func (w *watchRun) startConsole(c *cli.Context, format output.Format) {
	history := repl.NewHistory(repl.DefaultHistoryFile(), repl.DefaultHistorySize)
	if err := history.Load(); err != nil {
		w.log.Warn("console history not loaded", "error", err)
	}
	console := newConsole(w.session, c.App.Reader, c.App.Writer, format, c.Bool("wide"), history)

	ctx, cancel := context.WithCancel(context.Background())
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		if err := console.Run(ctx); err != nil {
			w.log.Warn("console input failed", "error", err)
		}
		w.stop.Trigger()
	}()
	w.stop.OnShutdown("console", func(hookCtx context.Context) error {
		cancel()
		select {
		case <-finished:
		case <-hookCtx.Done():
			return hookCtx.Err()
		}
		return history.Save()
	})
}

// enter performs the optional --create, --join or --code step.
func (w *watchRun) enter(ctx context.Context, c *cli.Context) error {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	var err error
	switch {
	case c.String("create") != "":
		_, err = w.session.CreateLobby(ctx, domain.CreateLobbyRequest{
			Name:       c.String("create"),
			MaxPlayers: c.Int("max-players"),
		})
	case c.String("join") != "":
		_, err = w.session.JoinLobby(ctx, c.String("join"), nil)
	case c.String("code") != "":
		_, err = w.session.JoinLobbyByCode(ctx, c.String("code"), nil)
	}
	return err
}

// serveMetrics exposes /metrics when metrics.addr is set.
func (w *watchRun) serveMetrics() error {
	addr := w.cfg.Metrics.Addr
	if addr == "" {
		return nil
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("metrics listener: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", w.metrics.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			w.log.Error("metrics server stopped", "error", err)
		}
	}()
	w.log.Info("serving metrics", "addr", ln.Addr().String())
	w.stop.OnShutdown("metrics", srv.Shutdown)
	return nil
}

// watchFiles reloads the configuration file and the client certificate
// when they change on disk.
func (w *watchRun) watchFiles(c *cli.Context) error {
	path := ParseGlobalFlags(c).ConfigFile
	if path == "" && w.keyPair == nil {
		return nil
	}
	fw, err := confloader.NewWatcher(confloader.WithWatcherLogger(w.log))
	if err != nil {
		return err
	}
	if path != "" {
		if err := fw.Watch(path); err != nil {
			_ = fw.Stop()
			return err
		}
		overrides := ParseGlobalFlags(c).Overrides()
		clean := filepath.Clean(path)
		fw.OnChange(func(changed string) {
			if changed == clean {
				w.reload(path, overrides)
			}
		})
	}
	if w.keyPair != nil {
		if err := w.keyPair.WatchFiles(fw, w.log); err != nil {
			_ = fw.Stop()
			return err
		}
	}
	fw.StartAsync()
	w.stop.OnShutdown("watcher", func(context.Context) error { return fw.Stop() })
	return nil
}

// reload applies the settings that can change while running. Everything
// else needs a restart.
func (w *watchRun) reload(path string, overrides map[string]any) {
	next, err := config.Load(path, overrides)
	if err != nil {
		w.log.Error("config reload failed, keeping current settings", "error", err)
		return
	}
	if next.Refresh.Interval != w.cfg.Refresh.Interval {
		w.session.SetRefreshInterval(next.Refresh.Interval)
	}
	if !strings.EqualFold(next.Log.Level, w.cfg.Log.Level) {
		logger.SetLevel(next.Log.Level)
		w.log.Info("log level changed", "level", next.Log.Level)
	}
	w.cfg = next
}

func countSet(values ...string) int {
	n := 0
	for _, v := range values {
		if v != "" {
			n++
		}
	}
	return n
}

// watchedEvents is every event type except list polls.
var watchedEvents = []lobby.EventType{
	lobby.TypeStateChanged,
	lobby.TypeLobbyUpdated,
	lobby.TypePlayerJoined,
	lobby.TypePlayerLeft,
	lobby.TypeStatusChanged,
	lobby.TypeServerStatusChanged,
	lobby.TypeMatchReady,
	lobby.TypeLaunchWatchFinished,
	lobby.TypeLobbyLeft,
	lobby.TypePushStatusChanged,
	lobby.TypeMutationFailed,
}

// eventRecord is the machine-readable form of an event.
type eventRecord struct {
	Time    time.Time     `json:"time"`
	Type    string        `json:"type"`
	LobbyID string        `json:"lobbyId,omitempty"`
	Message string        `json:"message"`
	Lobby   *domain.Lobby `json:"lobby,omitempty"`
	Error   string        `json:"error,omitempty"`
}

type eventPrinter struct {
	w      io.Writer
	format output.Format
	now    func() time.Time
}

func (p *eventPrinter) print(ev lobby.Event) {
	now := time.Now
	if p.now != nil {
		now = p.now
	}
	rec := describeEvent(ev)
	rec.Time = now().UTC()

	switch p.format {
	case output.FormatJSON:
		_ = (&output.JSONFormatter{Compact: true}).Format(p.w, rec)
	case output.FormatYAML:
		fmt.Fprintln(p.w, "---")
		_ = (&output.YAMLFormatter{}).Format(p.w, rec)
	default:
		line := rec.Time.Format("15:04:05") + "  " + rec.Message
		if rec.Error != "" {
			line += ": " + rec.Error
		}
		fmt.Fprintln(p.w, line)
	}
}

func describeEvent(ev lobby.Event) eventRecord {
	rec := eventRecord{Type: string(ev.Type())}
	setErr := func(err error) {
		if err != nil {
			rec.Error = err.Error()
		}
	}

	switch e := ev.(type) {
	case lobby.StateChanged:
		rec.LobbyID = e.LobbyID
		rec.Message = fmt.Sprintf("session %s -> %s", e.From, e.To)
		if e.LobbyID != "" {
			rec.Message += " (lobby " + e.LobbyID + ")"
		}
	case lobby.LobbyUpdated:
		rec.LobbyID = e.Lobby.ID
		rec.Lobby = e.Lobby
		rec.Message = fmt.Sprintf("lobby %s updated via %s: %s", e.Lobby.ID, e.Source, summarize(e.Delta))
	case lobby.PlayerJoined:
		rec.LobbyID = e.LobbyID
		rec.Message = "player " + e.PlayerID + " joined"
	case lobby.PlayerLeft:
		rec.LobbyID = e.LobbyID
		rec.Message = "player " + e.PlayerID + " left"
	case lobby.StatusChanged:
		rec.LobbyID = e.LobbyID
		rec.Message = fmt.Sprintf("status %s -> %s", orNone(string(e.From)), e.To)
	case lobby.ServerStatusChanged:
		rec.LobbyID = e.LobbyID
		rec.Message = fmt.Sprintf("server %s -> %s", orNone(string(e.From)), orNone(string(e.To)))
	case lobby.MatchReady:
		rec.LobbyID = e.Lobby.ID
		rec.Lobby = e.Lobby
		rec.Message = "match ready" + endpoints(e.Lobby)
	case lobby.LaunchWatchFinished:
		rec.LobbyID = e.LobbyID
		rec.Message = "launch watch finished: " + string(e.Outcome)
		setErr(e.Err)
	case lobby.LobbyLeft:
		rec.LobbyID = e.LobbyID
		rec.Message = fmt.Sprintf("left lobby %s (%s)", e.LobbyID, e.Reason)
	case lobby.LobbiesListed:
		rec.Message = fmt.Sprintf("%d lobbies available", len(e.Lobbies))
	case lobby.PushStatusChanged:
		rec.LobbyID = e.LobbyID
		rec.Message = "push disconnected"
		if e.Connected {
			rec.Message = "push connected"
		}
		setErr(e.Err)
	case lobby.MutationFailed:
		rec.Message = fmt.Sprintf("%s failed", e.Operation)
		setErr(e.Err)
	default:
		rec.Message = string(ev.Type())
	}
	return rec
}

func summarize(d domain.LobbyDelta) string {
	switch {
	case d.First:
		return "first snapshot"
	case len(d.ChangedFields) == 0:
		return "marker only"
	default:
		msg := "changed " + strings.Join(d.ChangedFields, ", ")
		if d.RosterChanged() {
			msg += fmt.Sprintf(" (+%d -%d players)", len(d.Joined), len(d.Left))
		}
		return msg
	}
}

func endpoints(l *domain.Lobby) string {
	if l == nil || l.ServerInfo == nil || len(l.ServerInfo.Endpoints) == 0 {
		return ""
	}
	parts := make([]string, 0, len(l.ServerInfo.Endpoints))
	for proto, ep := range l.ServerInfo.Endpoints {
		parts = append(parts, fmt.Sprintf("%s=%s:%d", proto, ep.Host, ep.Port))
	}
	slices.Sort(parts)
	return " (" + strings.Join(parts, " ") + ")"
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
