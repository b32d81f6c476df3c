package reconcile

import (
	"bytes"
	"slices"
	"sort"
	"strings"

	"github.com/yndnr/lobbysync-go/internal/core/domain"
)

// Tracked field names.
const (
	FieldServerStatus = "server_status"
	FieldRoster       = "roster"
	FieldRosterSize   = "roster_size"
	FieldStatus       = "status"
	FieldHost         = "host"
	FieldPlayerState  = "player_state"
)

// DefaultTrackedFields is the field set used when none is configured.
var DefaultTrackedFields = []string{FieldServerStatus, FieldRoster, FieldRosterSize}

// TrackedField is a named predicate that detects a meaningful change between
// two snapshots of the same lobby. A change in any tracked field makes a
// candidate acceptable even when its marker did not advance.
type TrackedField struct {
	Name    string
	Changed func(prev, next *domain.Lobby) bool
}

var builtinFields = map[string]TrackedField{
	FieldServerStatus: {
		Name: FieldServerStatus,
		Changed: func(prev, next *domain.Lobby) bool {
			return prev.ServerStatus() != next.ServerStatus()
		},
	},
	FieldRoster: {
		Name:    FieldRoster,
		Changed: rosterMembershipChanged,
	},
	FieldRosterSize: {
		Name: FieldRosterSize,
		Changed: func(prev, next *domain.Lobby) bool {
			return len(prev.Players) != len(next.Players)
		},
	},
	FieldStatus: {
		Name: FieldStatus,
		Changed: func(prev, next *domain.Lobby) bool {
			return prev.Status != next.Status
		},
	},
	FieldHost: {
		Name: FieldHost,
		Changed: func(prev, next *domain.Lobby) bool {
			return prev.Host != next.Host
		},
	},
	FieldPlayerState: {
		Name:    FieldPlayerState,
		Changed: playerStateChanged,
	},
}

// KnownFields returns the names of the built-in tracked fields, sorted.
func KnownFields() []string {
	names := make([]string, 0, len(builtinFields))
	for name := range builtinFields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FieldsByName resolves configured field names to their predicates.
// Duplicate names are collapsed; unknown names are an error.
func FieldsByName(names []string) ([]TrackedField, error) {
	fields := make([]TrackedField, 0, len(names))
	var unknown []string
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if seen[name] {
			continue
		}
		seen[name] = true
		f, ok := builtinFields[name]
		if !ok {
			unknown = append(unknown, name)
			continue
		}
		fields = append(fields, f)
	}
	if len(unknown) > 0 {
		return nil, domain.ErrInvalidArgument.WithDetails(
			"unknown tracked fields: " + strings.Join(unknown, ", ") +
				" (known: " + strings.Join(KnownFields(), ", ") + ")")
	}
	return fields, nil
}

func rosterMembershipChanged(prev, next *domain.Lobby) bool {
	if len(prev.Players) != len(next.Players) {
		return true
	}
	for _, id := range next.Players {
		if !slices.Contains(prev.Players, id) {
			return true
		}
	}
	return false
}

func playerStateChanged(prev, next *domain.Lobby) bool {
	if len(prev.PlayerState) != len(next.PlayerState) {
		return true
	}
	for id, state := range next.PlayerState {
		old, ok := prev.PlayerState[id]
		if !ok || !bytes.Equal(old, state) {
			return true
		}
	}
	return false
}
