package push

import (
	"context"

	"github.com/yndnr/lobbysync-go/internal/core/domain"
)

// EventKind identifies a push event.
type EventKind string

// Push event kinds.
const (
	EventConnected    EventKind = "connected"
	EventDisconnected EventKind = "disconnected"
	EventUpdated      EventKind = "updated"
	EventDeleted      EventKind = "deleted"
	EventError        EventKind = "error"
)

// Event is one notification from the push channel.
type Event struct {
	Kind    EventKind
	LobbyID string

	// Lobby is set for EventUpdated.
	Lobby *domain.Lobby

	// Err is set for EventError and, when the link failed, EventDisconnected.
	Err error
}

// Sink receives push events. HandlePushEvent runs on the connection
// goroutine and must not call Close on the supervisor that invoked it.
type Sink interface {
	HandlePushEvent(Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Event)

// HandlePushEvent calls f(ev).
func (f SinkFunc) HandlePushEvent(ev Event) {
	f(ev)
}

// Transport opens push connections.
type Transport interface {
	// Stream connects to the channel of lobbyID and blocks, passing events to
	// emit, until ctx is done or the connection fails. It emits
	// EventConnected once the connection is established. A nil return means
	// the server closed the connection normally.
	Stream(ctx context.Context, lobbyID string, emit func(Event)) error
}
