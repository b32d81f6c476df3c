package push

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/yndnr/lobbysync-go/internal/core/domain"
	"github.com/yndnr/lobbysync-go/internal/infra/buildinfo"
	"github.com/yndnr/lobbysync-go/internal/telemetry/logger"
)

// LobbyPlaceholder is replaced by the escaped lobby id in WebSocketConfig.URL.
const LobbyPlaceholder = "{lobby}"

const (
	// Time allowed to write a control frame.
	writeWait = 10 * time.Second

	// DefaultPingInterval is how often pings are sent.
	DefaultPingInterval = 30 * time.Second

	// Maximum frame size accepted from the server.
	maxMessageSize = 1 << 20

	defaultHandshakeTimeout = 10 * time.Second
)

// WebSocketConfig configures WebSocketTransport.
type WebSocketConfig struct {
	// URL of the push endpoint, e.g. wss://host/lobbies/{lobby}/events.
	URL string
	// CredentialHeader and Credential authenticate the handshake.
	CredentialHeader string
	Credential       string
	UserAgent        string
	// PingInterval between pings. The connection is considered dead when no
	// pong arrives within twice the interval.
	PingInterval     time.Duration
	HandshakeTimeout time.Duration
	// TLSConfig is used for wss endpoints. Nil means the system defaults.
	TLSConfig *tls.Config
}

// WebSocketTransport implements Transport over gorilla/websocket.
type WebSocketTransport struct {
	cfg    WebSocketConfig
	dialer *websocket.Dialer
	log    logger.Logger
}

var _ Transport = (*WebSocketTransport)(nil)

// frame is the wire format of push messages.
type frame struct {
	Type    string        `json:"type"`
	Lobby   *domain.Lobby `json:"lobby,omitempty"`
	LobbyID string        `json:"lobbyId,omitempty"`
}

// NewWebSocketTransport validates cfg and builds a transport.
func NewWebSocketTransport(cfg WebSocketConfig, log logger.Logger) (*WebSocketTransport, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, domain.ErrMissingArgument.WithDetails("push url is required")
	}
	if _, err := url.Parse(strings.ReplaceAll(cfg.URL, LobbyPlaceholder, "x")); err != nil {
		return nil, domain.ErrInvalidArgument.WithDetails("parse push url").WithCause(err)
	}
	if cfg.CredentialHeader == "" {
		cfg.CredentialHeader = "Authorization"
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = buildinfo.UserAgent()
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = DefaultPingInterval
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = defaultHandshakeTimeout
	}

	return &WebSocketTransport{
		cfg: cfg,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: cfg.HandshakeTimeout,
			TLSClientConfig:  cfg.TLSConfig,
		},
		log: logger.OrDefault(log).With("component", "push.websocket"),
	}, nil
}

// URLFor returns the endpoint for lobbyID.
func (t *WebSocketTransport) URLFor(lobbyID string) string {
	return strings.ReplaceAll(t.cfg.URL, LobbyPlaceholder, url.PathEscape(lobbyID))
}

// Stream implements Transport.
func (t *WebSocketTransport) Stream(ctx context.Context, lobbyID string, emit func(Event)) error {
	header := http.Header{}
	if t.cfg.Credential != "" {
		header.Set(t.cfg.CredentialHeader, t.cfg.Credential)
	}
	header.Set("User-Agent", t.cfg.UserAgent)

	conn, resp, err := t.dialer.DialContext(ctx, t.URLFor(lobbyID), header)
	if err != nil {
		if resp != nil {
			return domain.ErrPushUnavailable.WithDetails("handshake status " + resp.Status).WithCause(err)
		}
		return err
	}
	defer conn.Close()

	pongWait := 2 * t.cfg.PingInterval
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	emit(Event{Kind: EventConnected, LobbyID: lobbyID})

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		t.keepAlive(ctx, conn, done)
	}()
	defer func() {
		close(done)
		wg.Wait()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))

		ev, ok := t.decode(lobbyID, data)
		if ok {
			emit(ev)
		}
	}
}

// keepAlive sends pings and closes the connection when ctx is cancelled,
// which unblocks the reader.
func (t *WebSocketTransport) keepAlive(ctx context.Context, conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(t.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			_ = conn.Close()
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				if !errors.Is(err, websocket.ErrCloseSent) {
					t.log.Debug("ping failed", "error", err)
				}
				_ = conn.Close()
				return
			}
		}
	}
}

// decode turns one frame into an event. Malformed or unknown frames are
// logged and skipped.
func (t *WebSocketTransport) decode(lobbyID string, data []byte) (Event, bool) {
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		t.log.Warn("malformed push frame", "lobby_id", lobbyID, "error", err)
		return Event{}, false
	}

	switch EventKind(f.Type) {
	case EventUpdated:
		if f.Lobby == nil || f.Lobby.ID == "" {
			t.log.Warn("push update without lobby", "lobby_id", lobbyID)
			return Event{}, false
		}
		return Event{Kind: EventUpdated, LobbyID: f.Lobby.ID, Lobby: f.Lobby}, true
	case EventDeleted:
		id := f.LobbyID
		if id == "" {
			id = lobbyID
		}
		return Event{Kind: EventDeleted, LobbyID: id}, true
	default:
		t.log.Debug("ignoring push frame", "type", f.Type)
		return Event{}, false
	}
}
