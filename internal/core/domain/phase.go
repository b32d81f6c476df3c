package domain

// Phase is the coarse session state.
type Phase int

// Session phases.
const (
	PhaseDisconnected Phase = iota
	PhaseConnected
	PhaseInLobby
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case PhaseDisconnected:
		return "disconnected"
	case PhaseConnected:
		return "connected"
	case PhaseInLobby:
		return "in_lobby"
	default:
		return "unknown"
	}
}

// LeaveReason explains why the session left a lobby.
type LeaveReason string

// Leave reasons.
const (
	LeaveRequested    LeaveReason = "left"
	LeaveKicked       LeaveReason = "kicked"
	LeaveDeleted      LeaveReason = "deleted"
	LeaveGone         LeaveReason = "gone"
	LeaveSwitched     LeaveReason = "switched"
	LeaveDisconnected LeaveReason = "disconnected"
)
