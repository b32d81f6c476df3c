package reconcile

import (
	"sync"

	"github.com/yndnr/lobbysync-go/internal/core/domain"
)

// Reconciler applies the staleness test to candidate snapshots.
type Reconciler struct {
	fields []TrackedField

	mu      sync.Mutex
	latched bool // match ready already signalled for the current match
}

// NewReconciler creates a Reconciler tracking the given fields.
// With no fields it tracks DefaultTrackedFields.
func NewReconciler(fields ...TrackedField) *Reconciler {
	if len(fields) == 0 {
		fields, _ = FieldsByName(DefaultTrackedFields)
	}
	return &Reconciler{fields: fields}
}

// Fields returns the names of the tracked fields.
func (r *Reconciler) Fields() []string {
	names := make([]string, len(r.fields))
	for i, f := range r.fields {
		names[i] = f.Name
	}
	return names
}

// Reconcile decides whether candidate should replace current and describes
// the change.
//
// A candidate is accepted when there is no current snapshot, when its marker
// is newer than the current one, or when any tracked field differs. A
// candidate for a different lobby is never accepted. Reconcile does not
// touch the match-ready latch; see Commit.
func (r *Reconciler) Reconcile(current, candidate *domain.Lobby) (bool, domain.LobbyDelta) {
	if candidate == nil {
		return false, domain.LobbyDelta{}
	}
	if current != nil && current.ID != candidate.ID {
		return false, domain.LobbyDelta{}
	}

	delta := domain.LobbyDelta{
		First:          current == nil,
		MarkerAdvanced: domain.CompareMarkers(candidate.LastModified, markerOf(current)) > 0,
		Status:         candidate.Status,
		ServerStatus:   candidate.ServerStatus(),
	}

	if current == nil {
		delta.Joined = append([]string(nil), candidate.Players...)
		delta.StatusChanged = candidate.Status != ""
		delta.ServerStatusChanged = delta.ServerStatus != ""
		return true, delta
	}

	for _, f := range r.fields {
		if f.Changed(current, candidate) {
			delta.ChangedFields = append(delta.ChangedFields, f.Name)
		}
	}
	if !delta.MarkerAdvanced && len(delta.ChangedFields) == 0 {
		return false, domain.LobbyDelta{}
	}

	delta.Joined, delta.Left = domain.RosterDiff(current.Players, candidate.Players)
	delta.PreviousStatus = current.Status
	delta.StatusChanged = current.Status != candidate.Status
	delta.PreviousServerStatus = current.ServerStatus()
	delta.ServerStatusChanged = delta.PreviousServerStatus != delta.ServerStatus
	return true, delta
}

// Commit records an accepted candidate against the match-ready latch.
//
// The latch fires once, setting delta.MatchReady, the first time an accepted
// snapshot is in game with a running server. It re-arms when the lobby
// leaves the in-game status.
func (r *Reconciler) Commit(candidate *domain.Lobby, delta *domain.LobbyDelta) {
	if candidate == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if candidate.Status != domain.StatusInGame {
		r.latched = false
		return
	}
	if candidate.ServerStatus() == domain.ServerRunning && !r.latched {
		r.latched = true
		if delta != nil {
			delta.MatchReady = true
		}
	}
}

// Reset re-arms the match-ready latch.
func (r *Reconciler) Reset() {
	r.mu.Lock()
	r.latched = false
	r.mu.Unlock()
}

func markerOf(l *domain.Lobby) string {
	if l == nil {
		return ""
	}
	return l.LastModified
}
