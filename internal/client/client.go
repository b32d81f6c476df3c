package client

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/yndnr/lobbysync-go/internal/core/domain"
	"github.com/yndnr/lobbysync-go/internal/infra/buildinfo"
	"github.com/yndnr/lobbysync-go/internal/telemetry/logger"
)

const (
	defaultCredentialHeader = "Authorization"
	defaultTimeout          = 10 * time.Second

	// maxBodySize bounds how much of a response is read.
	maxBodySize = 4 << 20
)

// Config holds client configuration.
type Config struct {
	// BaseURL is the service root, e.g. https://lobby.example.com/v1.
	BaseURL string
	// ConfigName is sent as the name query parameter where the service expects it.
	ConfigName string
	// CredentialHeader names the header carrying Credential. Defaults to Authorization.
	CredentialHeader string
	// Credential is sent verbatim in CredentialHeader when non-empty.
	Credential string
	// UserAgent overrides the default lobbysync/<version> agent.
	UserAgent string
	// Timeout bounds every request. Defaults to 10s.
	Timeout time.Duration
	// TLSConfig is used for https endpoints. Nil means the system defaults.
	TLSConfig *tls.Config
	// HTTPClient replaces the default client; Timeout and TLSConfig are then
	// ignored.
	HTTPClient *http.Client
}

// Client is the lobby service client. It is safe for concurrent use.
type Client struct {
	baseURL          *url.URL
	http             *http.Client
	configName       string
	credentialHeader string
	credential       string
	userAgent        string
}

// New builds a Client.
func New(cfg Config) (*Client, error) {
	base, err := parseBaseURL(cfg.BaseURL)
	if err != nil {
		return nil, err
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
		if cfg.TLSConfig != nil {
			transport := http.DefaultTransport.(*http.Transport).Clone()
			transport.TLSClientConfig = cfg.TLSConfig
			httpClient.Transport = transport
		}
	}

	header := cfg.CredentialHeader
	if header == "" {
		header = defaultCredentialHeader
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = buildinfo.UserAgent()
	}

	return &Client{
		baseURL:          base,
		http:             httpClient,
		configName:       cfg.ConfigName,
		credentialHeader: header,
		credential:       cfg.Credential,
		userAgent:        ua,
	}, nil
}

// BaseURL returns the base URL of the client.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// ============================================================================
// Lobby Operations
// ============================================================================

// CreateLobby creates a lobby hosted by req.Host.
func (c *Client) CreateLobby(ctx context.Context, req *domain.CreateLobbyRequest) (*domain.Lobby, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return c.lobby(ctx, http.MethodPost, c.path(true, "lobbies"), req)
}

// JoinLobby adds a player to the lobby with the given id.
func (c *Client) JoinLobby(ctx context.Context, lobbyID string, req domain.JoinRequest) (*domain.Lobby, error) {
	if lobbyID == "" || req.PlayerID == "" {
		return nil, domain.ErrMissingArgument.WithDetails("lobby id and player id are required")
	}
	return c.lobby(ctx, http.MethodPost, c.path(false, "lobbies", lobbyID, "players"), req)
}

// JoinLobbyByCode adds a player to the lobby with the given join code.
func (c *Client) JoinLobbyByCode(ctx context.Context, code string, req domain.JoinRequest) (*domain.Lobby, error) {
	if code == "" || req.PlayerID == "" {
		return nil, domain.ErrMissingArgument.WithDetails("code and player id are required")
	}
	return c.lobby(ctx, http.MethodPost, c.path(false, "lobbies", "code", code, "players"), req)
}

// RemovePlayer removes playerID from the lobby, either leaving (requester ==
// player) or kicking. The service may answer with the updated snapshot or
// with an empty body, in which case the snapshot is nil.
func (c *Client) RemovePlayer(ctx context.Context, lobbyID, playerID, requesterID string, kick bool) (*domain.Lobby, error) {
	if lobbyID == "" || playerID == "" {
		return nil, domain.ErrMissingArgument.WithDetails("lobby id and player id are required")
	}
	rel := c.path(false, "lobbies", lobbyID, "players", playerID)
	q := rel.Query()
	if requesterID != "" {
		q.Set("requesterId", requesterID)
	}
	q.Set("isKick", strconv.FormatBool(kick))
	rel.RawQuery = q.Encode()

	var out domain.Lobby
	found, err := c.do(ctx, http.MethodDelete, rel, nil, &out)
	if err != nil || !found {
		return nil, err
	}
	return &out, nil
}

// GetLobby fetches one lobby. A missing lobby is domain.ErrLobbyNotFound.
func (c *Client) GetLobby(ctx context.Context, lobbyID string) (*domain.Lobby, error) {
	if lobbyID == "" {
		return nil, domain.ErrMissingArgument.WithDetails("lobby id is required")
	}
	return c.lobby(ctx, http.MethodGet, c.path(true, "lobbies", lobbyID), nil)
}

// ListLobbies fetches the lobby list.
func (c *Client) ListLobbies(ctx context.Context) ([]*domain.Lobby, error) {
	var raw json.RawMessage
	found, err := c.do(ctx, http.MethodGet, c.path(true, "lobbies"), nil, &raw)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return decodeList(raw)
}

// UpdateLobby sends a partial update merged server-side.
func (c *Client) UpdateLobby(ctx context.Context, lobbyID string, upd *domain.LobbyUpdate) (*domain.Lobby, error) {
	if lobbyID == "" {
		return nil, domain.ErrMissingArgument.WithDetails("lobby id is required")
	}
	if upd == nil || upd.IsEmpty() {
		return nil, domain.ErrInvalidArgument.WithDetails("empty lobby update")
	}
	return c.lobby(ctx, http.MethodPut, c.path(true, "lobbies", lobbyID), upd)
}

// DeleteLobby deletes the lobby on behalf of playerID (normally the host).
func (c *Client) DeleteLobby(ctx context.Context, lobbyID, playerID string) error {
	if lobbyID == "" || playerID == "" {
		return domain.ErrMissingArgument.WithDetails("lobby id and player id are required")
	}
	body := struct {
		PlayerID string `json:"playerId"`
	}{playerID}
	_, err := c.do(ctx, http.MethodDelete, c.path(false, "lobbies", lobbyID), body, nil)
	return err
}

// GetPlayerLobby returns the lobby playerID is in, or nil when there is none.
func (c *Client) GetPlayerLobby(ctx context.Context, playerID string) (*domain.Lobby, error) {
	if playerID == "" {
		return nil, domain.ErrMissingArgument.WithDetails("player id is required")
	}
	l, err := c.lobby(ctx, http.MethodGet, c.path(true, "lobbies", "player", playerID), nil)
	if domain.IsNotFound(err) {
		return nil, nil
	}
	return l, err
}

// ============================================================================
// Transport
// ============================================================================

func (c *Client) lobby(ctx context.Context, method string, rel *url.URL, body any) (*domain.Lobby, error) {
	var out domain.Lobby
	found, err := c.do(ctx, method, rel, body, &out)
	if err != nil {
		return nil, err
	}
	if !found || out.ID == "" {
		return nil, domain.ErrMalformedResponse.WithDetails(method + " " + rel.Path + ": response without lobby")
	}
	return &out, nil
}

// path joins escaped segments under the base path, adding the name parameter
// when withName is set.
func (c *Client) path(withName bool, segments ...string) *url.URL {
	escaped := make([]string, len(segments))
	for i, s := range segments {
		escaped[i] = url.PathEscape(s)
	}
	rel := &url.URL{
		Path:    strings.TrimSuffix(c.baseURL.Path, "/") + "/" + strings.Join(segments, "/"),
		RawPath: strings.TrimSuffix(c.baseURL.EscapedPath(), "/") + "/" + strings.Join(escaped, "/"),
	}
	if withName && c.configName != "" {
		rel.RawQuery = url.Values{"name": {c.configName}}.Encode()
	}
	return rel
}

// do performs the request and decodes a JSON body into dest. It reports
// false when the response body was empty.
func (c *Client) do(ctx context.Context, method string, rel *url.URL, body, dest any) (bool, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return false, domain.ErrInvalidArgument.WithDetails("marshal body").WithCause(err)
		}
		bodyReader = bytes.NewReader(data)
	}

	reqURL := c.baseURL.ResolveReference(rel)
	req, err := http.NewRequestWithContext(ctx, method, reqURL.String(), bodyReader)
	if err != nil {
		return false, domain.ErrInvalidArgument.WithDetails("create request").WithCause(err)
	}
	c.addHeaders(req, body != nil)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return false, err
		}
		return false, domain.ErrTransientNetwork.WithDetails(method + " " + rel.Path).WithCause(err)
	}
	defer func() { _ = resp.Body.Close() }()
	logger.L(ctx).Debug("lobby request",
		"method", method,
		"path", rel.Path,
		"status", resp.StatusCode,
		"duration", time.Since(start))

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return false, domain.ErrTransientNetwork.WithDetails("read " + rel.Path).WithCause(err)
	}

	if resp.StatusCode >= 300 {
		return false, statusError(method, rel.Path, resp.StatusCode, data)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return false, nil
	}
	if dest == nil {
		return true, nil
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, domain.ErrMalformedResponse.WithDetails(method + " " + rel.Path).WithCause(err)
	}
	return true, nil
}

// addHeaders adds authentication and common headers.
func (c *Client) addHeaders(req *http.Request, hasBody bool) {
	if c.credential != "" {
		req.Header.Set(c.credentialHeader, c.credential)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if hasBody {
		req.Header.Set("Content-Type", "application/json")
	}
}

func statusError(method, path string, status int, body []byte) error {
	details := fmt.Sprintf("%s %s: status %d", method, path, status)
	var errResp struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &errResp) == nil && errResp.Message != "" {
		details += fmt.Sprintf(": [%s] %s", errResp.Code, errResp.Message)
	}

	switch {
	case status == http.StatusNotFound:
		return domain.ErrLobbyNotFound.WithDetails(details)
	case status >= 500:
		return domain.ErrTransientNetwork.WithDetails(details)
	default:
		return domain.ErrClientRejected.WithDetails(details)
	}
}

// decodeList accepts either a bare array or an object wrapping it under "lobbies".
func decodeList(raw json.RawMessage) ([]*domain.Lobby, error) {
	var lobbies []*domain.Lobby
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var wrapped struct {
			Lobbies []*domain.Lobby `json:"lobbies"`
		}
		if err := json.Unmarshal(trimmed, &wrapped); err != nil {
			return nil, domain.ErrMalformedResponse.WithDetails("lobby list").WithCause(err)
		}
		lobbies = wrapped.Lobbies
	} else if err := json.Unmarshal(trimmed, &lobbies); err != nil {
		return nil, domain.ErrMalformedResponse.WithDetails("lobby list").WithCause(err)
	}

	out := lobbies[:0]
	for _, l := range lobbies {
		if l != nil {
			out = append(out, l)
		}
	}
	return out, nil
}

func parseBaseURL(raw string) (*url.URL, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, domain.ErrMissingArgument.WithDetails("service base url is required")
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, domain.ErrInvalidArgument.WithDetails("parse base url " + raw).WithCause(err)
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}
