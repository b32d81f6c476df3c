package domain

// LobbyDelta describes what an accepted snapshot changed relative to the
// snapshot it replaced.
type LobbyDelta struct {
	// First is set when there was no previous snapshot.
	First bool

	// MarkerAdvanced is set when lastModified moved forward.
	MarkerAdvanced bool

	// ChangedFields names the tracked fields that differ, regardless of the marker.
	ChangedFields []string

	// Joined lists roster additions in roster order.
	Joined []string

	// Left lists roster removals in previous roster order.
	Left []string

	PreviousStatus LobbyStatus
	Status         LobbyStatus
	StatusChanged  bool

	PreviousServerStatus ServerStatus
	ServerStatus         ServerStatus
	ServerStatusChanged  bool

	// MatchReady is the one-shot "server is running" signal. It is set at most
	// once per match.
	MatchReady bool
}

// RosterChanged reports whether anyone joined or left.
func (d LobbyDelta) RosterChanged() bool {
	return len(d.Joined) > 0 || len(d.Left) > 0
}

// LaunchStarted reports whether this change moved the lobby into an in-game
// state whose server is still launching.
func (d LobbyDelta) LaunchStarted() bool {
	if d.Status != StatusInGame || d.ServerStatus != ServerLaunching {
		return false
	}
	return d.First || d.StatusChanged || d.ServerStatusChanged
}

// RosterDiff returns the players present in next but not prev (joined) and
// those present in prev but not next (left).
func RosterDiff(prev, next []string) (joined, left []string) {
	before := make(map[string]struct{}, len(prev))
	for _, id := range prev {
		before[id] = struct{}{}
	}
	after := make(map[string]struct{}, len(next))
	for _, id := range next {
		after[id] = struct{}{}
		if _, ok := before[id]; !ok {
			joined = append(joined, id)
		}
	}
	for _, id := range prev {
		if _, ok := after[id]; !ok {
			left = append(left, id)
		}
	}
	return joined, left
}
