package command

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/yndnr/lobbysync-go/internal/core/domain"
)

// mockServer is a lobby service stub keyed by "METHOD /path".
type mockServer struct {
	*httptest.Server

	mu       sync.Mutex
	handlers map[string]http.HandlerFunc
	requests []recordedRequest
}

type recordedRequest struct {
	Method string
	Path   string
	Query  string
	Body   string
}

func newMockServer(t *testing.T) *mockServer {
	t.Helper()
	m := &mockServer{handlers: make(map[string]http.HandlerFunc)}
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		m.mu.Lock()
		m.requests = append(m.requests, recordedRequest{
			Method: r.Method, Path: r.URL.Path, Query: r.URL.RawQuery, Body: string(body),
		})
		h, ok := m.handlers[r.Method+" "+r.URL.Path]
		m.mu.Unlock()
		if !ok {
			errorResponse(w, http.StatusNotFound, "NOT_FOUND", "no such route")
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))
		h(w, r)
	}))
	t.Cleanup(m.Close)
	return m
}

// handle registers a handler for "METHOD /path".
func (m *mockServer) handle(route string, h http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[route] = h
}

// last returns the most recent request for route.
func (m *mockServer) last(route string) (recordedRequest, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.requests) - 1; i >= 0; i-- {
		r := m.requests[i]
		if r.Method+" "+r.Path == route {
			return r, true
		}
	}
	return recordedRequest{}, false
}

func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func errorResponse(w http.ResponseWriter, status int, code, message string) {
	jsonResponse(w, status, map[string]string{"code": code, "message": message})
}

func lobbyHandler(l *domain.Lobby) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		jsonResponse(w, http.StatusOK, l)
	}
}

func sampleLobby() *domain.Lobby {
	return &domain.Lobby{
		ID:           "lob-1",
		LastModified: "2024-05-01T10:00:00Z",
		Name:         "Friday night",
		Host:         "alice",
		MaxPlayers:   4,
		Status:       domain.StatusWaiting,
		Players:      []string{"alice", "bob"},
	}
}

// syncBuffer is a bytes.Buffer safe for concurrent writers and readers.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// runApp runs the CLI against server with args and returns what it printed.
func runApp(t *testing.T, server *mockServer, args ...string) (string, error) {
	t.Helper()
	out := &syncBuffer{}
	err := runAppWith(context.Background(), out, server, args...)
	return out.String(), err
}

func runAppWith(ctx context.Context, out io.Writer, server *mockServer, args ...string) error {
	app := App()
	app.Writer = out
	app.ErrWriter = io.Discard
	full := []string{"lobbysync", "--server", server.URL}
	return app.RunContext(ctx, append(full, args...))
}

func assertContains(t *testing.T, got string, wants ...string) {
	t.Helper()
	for _, w := range wants {
		if !strings.Contains(got, w) {
			t.Errorf("output missing %q:\n%s", w, got)
		}
	}
}
