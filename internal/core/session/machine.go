package session

import (
	"sync"
	"sync/atomic"

	"github.com/yndnr/lobbysync-go/internal/core/domain"
	"github.com/yndnr/lobbysync-go/internal/core/reconcile"
)

// Transition is emitted on every phase change.
type Transition struct {
	From    domain.Phase
	To      domain.Phase
	LobbyID string             // lobby entered or left, if any
	Reason  domain.LeaveReason // set when leaving a lobby
}

// RejectReason explains why Apply did not accept a candidate.
type RejectReason string

// Rejection reasons.
const (
	RejectStale   RejectReason = "stale"
	RejectForeign RejectReason = "foreign"
)

// Result describes the outcome of Apply.
type Result struct {
	Accepted bool
	Reason   RejectReason // set when not accepted
	Delta    domain.LobbyDelta
	Previous *domain.Lobby
	Current  *domain.Lobby

	// Entered is set when the candidate moved the machine into InLobby.
	Entered bool
}

// Machine is the session state machine. It is safe for concurrent use.
type Machine struct {
	reconciler *reconcile.Reconciler

	mu       sync.Mutex
	phase    domain.Phase
	playerID string
	current  atomic.Pointer[domain.Lobby]

	hooksMu      sync.RWMutex
	onTransition []func(Transition)
	onLeave      []func(lobbyID string)
}

// NewMachine creates a Machine in the Disconnected phase.
// A nil reconciler is replaced by one tracking the default fields.
func NewMachine(r *reconcile.Reconciler) *Machine {
	if r == nil {
		r = reconcile.NewReconciler()
	}
	return &Machine{reconciler: r}
}

// OnTransition registers fn to be called after every phase change.
// Hooks run outside the machine's lock, in registration order.
func (m *Machine) OnTransition(fn func(Transition)) {
	m.hooksMu.Lock()
	m.onTransition = append(m.onTransition, fn)
	m.hooksMu.Unlock()
}

// OnLeave registers fn to be called with the lobby id whenever the machine
// leaves a lobby, so per-lobby trackers can be reset.
func (m *Machine) OnLeave(fn func(lobbyID string)) {
	m.hooksMu.Lock()
	m.onLeave = append(m.onLeave, fn)
	m.hooksMu.Unlock()
}

// Phase returns the current phase.
func (m *Machine) Phase() domain.Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

// PlayerID returns the local player id, or "" before Initialize.
func (m *Machine) PlayerID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.playerID
}

// Current returns the current snapshot, or nil when not in a lobby.
// The returned value is shared and must not be modified.
func (m *Machine) Current() *domain.Lobby {
	return m.current.Load()
}

// CurrentLobbyID returns the id of the current lobby, or "".
func (m *Machine) CurrentLobbyID() string {
	if l := m.current.Load(); l != nil {
		return l.ID
	}
	return ""
}

// Initialize binds the session to playerID and moves it to Connected.
func (m *Machine) Initialize(playerID string) error {
	if playerID == "" {
		return domain.ErrMissingArgument.WithDetails("player id is required")
	}

	m.mu.Lock()
	if m.phase != domain.PhaseDisconnected {
		m.mu.Unlock()
		return domain.ErrAlreadyInitialized.WithDetails("player " + m.playerID)
	}
	m.playerID = playerID
	m.phase = domain.PhaseConnected
	m.mu.Unlock()

	m.emit(Transition{From: domain.PhaseDisconnected, To: domain.PhaseConnected})
	return nil
}

// Apply submits a candidate snapshot.
//
// The candidate is reconciled against the current snapshot and, when
// accepted, becomes the current snapshot. The first accepted snapshot moves
// the machine from Connected to InLobby. A candidate for a lobby other than
// the current one is rejected; callers switching lobbies Leave first.
// The candidate must not be modified after it is handed over.
func (m *Machine) Apply(candidate *domain.Lobby) (Result, error) {
	if candidate == nil || candidate.ID == "" {
		return Result{}, domain.ErrMissingArgument.WithDetails("snapshot without lobby id")
	}

	m.mu.Lock()
	if m.phase == domain.PhaseDisconnected {
		m.mu.Unlock()
		return Result{}, domain.ErrNotInitialized
	}

	prev := m.current.Load()
	if prev != nil && prev.ID != candidate.ID {
		m.mu.Unlock()
		return Result{Reason: RejectForeign, Previous: prev, Current: prev}, nil
	}

	accept, delta := m.reconciler.Reconcile(prev, candidate)
	if !accept {
		m.mu.Unlock()
		return Result{Reason: RejectStale, Previous: prev, Current: prev}, nil
	}
	m.reconciler.Commit(candidate, &delta)
	m.current.Store(candidate)

	res := Result{
		Accepted: true,
		Delta:    delta,
		Previous: prev,
		Current:  candidate,
	}
	if m.phase == domain.PhaseConnected {
		m.phase = domain.PhaseInLobby
		res.Entered = true
	}
	m.mu.Unlock()

	if res.Entered {
		m.emit(Transition{From: domain.PhaseConnected, To: domain.PhaseInLobby, LobbyID: candidate.ID})
	}
	return res, nil
}

// Leave drops the current lobby and returns to Connected. It returns the id
// of the lobby left and false when the machine was not in a lobby.
func (m *Machine) Leave(reason domain.LeaveReason) (string, bool) {
	m.mu.Lock()
	lobbyID, ok := m.leaveLocked()
	m.mu.Unlock()

	if !ok {
		return "", false
	}
	m.afterLeave(lobbyID, reason)
	return lobbyID, true
}

// LeaveIf leaves only when the current lobby is lobbyID.
func (m *Machine) LeaveIf(lobbyID string, reason domain.LeaveReason) bool {
	m.mu.Lock()
	if cur := m.current.Load(); cur == nil || cur.ID != lobbyID {
		m.mu.Unlock()
		return false
	}
	left, ok := m.leaveLocked()
	m.mu.Unlock()

	if ok {
		m.afterLeave(left, reason)
	}
	return ok
}

// Disconnect leaves any lobby and returns the machine to Disconnected.
// The machine can be initialized again afterwards.
func (m *Machine) Disconnect() {
	m.mu.Lock()
	lobbyID, left := m.leaveLocked()
	from := m.phase
	m.phase = domain.PhaseDisconnected
	m.playerID = ""
	m.mu.Unlock()

	if left {
		m.afterLeave(lobbyID, domain.LeaveDisconnected)
	}
	if from != domain.PhaseDisconnected {
		m.emit(Transition{From: domain.PhaseConnected, To: domain.PhaseDisconnected})
	}
}

func (m *Machine) leaveLocked() (string, bool) {
	cur := m.current.Load()
	if m.phase != domain.PhaseInLobby || cur == nil {
		return "", false
	}
	m.current.Store(nil)
	m.phase = domain.PhaseConnected
	m.reconciler.Reset()
	return cur.ID, true
}

func (m *Machine) afterLeave(lobbyID string, reason domain.LeaveReason) {
	m.hooksMu.RLock()
	hooks := append([]func(string){}, m.onLeave...)
	m.hooksMu.RUnlock()
	for _, fn := range hooks {
		fn(lobbyID)
	}
	m.emit(Transition{From: domain.PhaseInLobby, To: domain.PhaseConnected, LobbyID: lobbyID, Reason: reason})
}

func (m *Machine) emit(t Transition) {
	m.hooksMu.RLock()
	hooks := append([]func(Transition){}, m.onTransition...)
	m.hooksMu.RUnlock()
	for _, fn := range hooks {
		fn(t)
	}
}
