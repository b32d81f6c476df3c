package refresh

import (
	"github.com/yndnr/lobbysync-go/internal/core/domain"
)

// LaunchOutcome is how a launch watch ended.
type LaunchOutcome string

// Launch watch outcomes.
const (
	LaunchRunning   LaunchOutcome = "running"
	LaunchFailed    LaunchOutcome = "failed"
	LaunchTimeout   LaunchOutcome = "timeout"
	LaunchGone      LaunchOutcome = "gone"
	LaunchCancelled LaunchOutcome = "cancelled"
)

// Err returns the error a caller waiting on the launch should see, or nil
// when the server is running or the watch was cancelled.
func (o LaunchOutcome) Err() error {
	switch o {
	case LaunchFailed:
		return domain.ErrServerLaunchFailed
	case LaunchTimeout:
		return domain.ErrServerLaunchTimeout
	case LaunchGone:
		return domain.ErrLobbyNotFound
	default:
		return nil
	}
}

// classify maps a polled snapshot to a terminal outcome. It reports false
// while the server is still launching.
func classify(l *domain.Lobby) (LaunchOutcome, bool) {
	switch s := l.ServerStatus(); {
	case s == domain.ServerRunning:
		return LaunchRunning, true
	case s.IsTerminal():
		return LaunchFailed, true
	case l.Status != domain.StatusInGame:
		// The lobby left the game, e.g. the host aborted the launch.
		return LaunchCancelled, true
	default:
		return "", false
	}
}
