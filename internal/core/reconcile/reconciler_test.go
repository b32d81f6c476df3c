package reconcile

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"slices"
	"testing"

	"github.com/yndnr/lobbysync-go/internal/core/domain"
)

func lobby(marker string, status domain.LobbyStatus, server domain.ServerStatus, players ...string) *domain.Lobby {
	l := &domain.Lobby{
		ID:           "lobby-1",
		LastModified: marker,
		Status:       status,
		Players:      players,
	}
	if server != "" {
		l.ServerInfo = &domain.ServerInfo{Status: server}
	}
	return l
}

func TestReconcile(t *testing.T) {
	const (
		t1 = "2024-05-01T10:00:00Z"
		t2 = "2024-05-01T10:00:01Z"
	)

	tests := []struct {
		name       string
		current    *domain.Lobby
		candidate  *domain.Lobby
		wantAccept bool
		wantFields []string
	}{
		{
			name:       "no current snapshot",
			current:    nil,
			candidate:  lobby(t1, domain.StatusWaiting, "", "A"),
			wantAccept: true,
		},
		{
			name:       "newer marker",
			current:    lobby(t1, domain.StatusWaiting, "", "A"),
			candidate:  lobby(t2, domain.StatusWaiting, "", "A"),
			wantAccept: true,
		},
		{
			name:       "same marker same content",
			current:    lobby(t1, domain.StatusWaiting, "", "A"),
			candidate:  lobby(t1, domain.StatusWaiting, "", "A"),
			wantAccept: false,
		},
		{
			name:       "older marker same content",
			current:    lobby(t2, domain.StatusWaiting, "", "A"),
			candidate:  lobby(t1, domain.StatusWaiting, "", "A"),
			wantAccept: false,
		},
		{
			name:       "same marker server status changed",
			current:    lobby(t1, domain.StatusInGame, domain.ServerLaunching, "A"),
			candidate:  lobby(t1, domain.StatusInGame, domain.ServerRunning, "A"),
			wantAccept: true,
			wantFields: []string{FieldServerStatus},
		},
		{
			name:       "older marker roster grew",
			current:    lobby(t2, domain.StatusWaiting, "", "A"),
			candidate:  lobby(t1, domain.StatusWaiting, "", "A", "B"),
			wantAccept: true,
			wantFields: []string{FieldRoster, FieldRosterSize},
		},
		{
			name:       "same marker roster swapped",
			current:    lobby(t1, domain.StatusWaiting, "", "A", "B"),
			candidate:  lobby(t1, domain.StatusWaiting, "", "A", "C"),
			wantAccept: true,
			wantFields: []string{FieldRoster},
		},
		{
			name:       "same marker roster reordered",
			current:    lobby(t1, domain.StatusWaiting, "", "A", "B"),
			candidate:  lobby(t1, domain.StatusWaiting, "", "B", "A"),
			wantAccept: false,
		},
		{
			name:       "same marker untracked status change",
			current:    lobby(t1, domain.StatusWaiting, "", "A"),
			candidate:  lobby(t1, domain.StatusInQueue, "", "A"),
			wantAccept: false,
		},
		{
			name:       "nil candidate",
			current:    lobby(t1, domain.StatusWaiting, "", "A"),
			candidate:  nil,
			wantAccept: false,
		},
		{
			name:    "foreign lobby",
			current: lobby(t1, domain.StatusWaiting, "", "A"),
			candidate: &domain.Lobby{
				ID:           "lobby-2",
				LastModified: t2,
				Players:      []string{"A", "B"},
			},
			wantAccept: false,
		},
	}

	r := NewReconciler()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			accept, delta := r.Reconcile(tt.current, tt.candidate)
			if accept != tt.wantAccept {
				t.Fatalf("Reconcile() accept = %v, want %v", accept, tt.wantAccept)
			}
			if !slices.Equal(delta.ChangedFields, tt.wantFields) {
				t.Errorf("ChangedFields = %v, want %v", delta.ChangedFields, tt.wantFields)
			}
		})
	}
}

func TestReconcile_Delta(t *testing.T) {
	r := NewReconciler()

	t.Run("first snapshot joins everyone", func(t *testing.T) {
		_, delta := r.Reconcile(nil, lobby("t1", domain.StatusWaiting, "", "A", "B"))
		if !delta.First {
			t.Error("First should be set")
		}
		if !slices.Equal(delta.Joined, []string{"A", "B"}) || len(delta.Left) != 0 {
			t.Errorf("joined=%v left=%v", delta.Joined, delta.Left)
		}
	})

	t.Run("roster and status transitions", func(t *testing.T) {
		prev := lobby("t1", domain.StatusWaiting, "", "A", "B")
		next := lobby("t2", domain.StatusInGame, domain.ServerLaunching, "B", "C")

		accept, delta := r.Reconcile(prev, next)
		if !accept {
			t.Fatal("newer snapshot should be accepted")
		}
		if !slices.Equal(delta.Joined, []string{"C"}) {
			t.Errorf("Joined = %v, want [C]", delta.Joined)
		}
		if !slices.Equal(delta.Left, []string{"A"}) {
			t.Errorf("Left = %v, want [A]", delta.Left)
		}
		if !delta.StatusChanged || delta.PreviousStatus != domain.StatusWaiting || delta.Status != domain.StatusInGame {
			t.Errorf("status transition = %+v", delta)
		}
		if !delta.ServerStatusChanged || delta.PreviousServerStatus != "" || delta.ServerStatus != domain.ServerLaunching {
			t.Errorf("server status transition = %+v", delta)
		}
		if !delta.LaunchStarted() {
			t.Error("LaunchStarted should be true")
		}
		if !delta.MarkerAdvanced {
			t.Error("MarkerAdvanced should be true")
		}
	})
}

func TestReconcile_CustomFields(t *testing.T) {
	fields, err := FieldsByName([]string{FieldStatus, FieldPlayerState, FieldHost})
	if err != nil {
		t.Fatalf("FieldsByName() error = %v", err)
	}
	r := NewReconciler(fields...)

	prev := lobby("t1", domain.StatusWaiting, "", "A")
	prev.PlayerState = map[string]json.RawMessage{"A": json.RawMessage(`{"ready":false}`)}

	next := prev.Clone()
	next.PlayerState["A"] = json.RawMessage(`{"ready":true}`)
	if accept, delta := r.Reconcile(prev, next); !accept || !slices.Equal(delta.ChangedFields, []string{FieldPlayerState}) {
		t.Errorf("player state change: accept=%v fields=%v", accept, delta.ChangedFields)
	}

	next = prev.Clone()
	next.Host = "B"
	if accept, _ := r.Reconcile(prev, next); !accept {
		t.Error("host change should be accepted")
	}

	// Roster is not tracked in this configuration.
	next = prev.Clone()
	next.Players = []string{"A", "B"}
	if accept, _ := r.Reconcile(prev, next); accept {
		t.Error("roster change should be ignored when roster is not tracked")
	}
}

func TestFieldsByName(t *testing.T) {
	tests := []struct {
		name    string
		input   []string
		want    []string
		wantErr bool
	}{
		{"defaults", DefaultTrackedFields, DefaultTrackedFields, false},
		{"duplicates collapse", []string{"roster", "roster"}, []string{"roster"}, false},
		{"whitespace trimmed", []string{" host "}, []string{"host"}, false},
		{"unknown", []string{"roster", "colour"}, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields, err := FieldsByName(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("FieldsByName() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if !domain.IsDomainError(err, domain.ErrInvalidArgument.Code) {
					t.Errorf("error code = %q", domain.GetErrorCode(err))
				}
				return
			}
			got := NewReconciler(fields...).Fields()
			if !slices.Equal(got, tt.want) {
				t.Errorf("Fields() = %v, want %v", got, tt.want)
			}
		})
	}
}

// Mutual acceptance of two snapshots must imply their tracked content differs,
// so reordered delivery of identical content cannot ping-pong.
func TestReconcile_NoMutualAcceptOfIdenticalContent(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	markers := []string{"2024-05-01T10:00:00Z", "2024-05-01T10:00:00.5Z", "2024-05-01T10:00:01Z"}
	statuses := []domain.ServerStatus{"", domain.ServerLaunching, domain.ServerRunning}
	rosters := [][]string{{"A"}, {"A", "B"}, {"B", "A"}, {"B", "C"}}

	gen := func() *domain.Lobby {
		return lobby(
			markers[rng.Intn(len(markers))],
			domain.StatusInGame,
			statuses[rng.Intn(len(statuses))],
			rosters[rng.Intn(len(rosters))]...,
		)
	}

	r := NewReconciler()
	for i := 0; i < 2000; i++ {
		a, b := gen(), gen()
		forward, _ := r.Reconcile(a, b)
		backward, _ := r.Reconcile(b, a)
		if !forward || !backward {
			continue
		}
		sameContent := a.ServerStatus() == b.ServerStatus() && !rosterMembershipChanged(a, b)
		if sameContent {
			t.Fatalf("mutual accept with identical tracked content: a=%+v b=%+v", a, b)
		}
	}
}

func TestCommit_MatchReadyLatch(t *testing.T) {
	r := NewReconciler()

	steps := []struct {
		status    domain.LobbyStatus
		server    domain.ServerStatus
		wantReady bool
	}{
		{domain.StatusWaiting, "", false},
		{domain.StatusInGame, domain.ServerLaunching, false},
		{domain.StatusInGame, domain.ServerRunning, true},
		{domain.StatusInGame, domain.ServerRunning, false}, // latched
		{domain.StatusWaiting, "", false},                  // re-arms
		{domain.StatusInGame, domain.ServerRunning, true},
	}

	for i, s := range steps {
		t.Run(fmt.Sprintf("step=%d", i), func(t *testing.T) {
			var delta domain.LobbyDelta
			r.Commit(lobby("t", s.status, s.server, "A"), &delta)
			if delta.MatchReady != s.wantReady {
				t.Errorf("MatchReady = %v, want %v", delta.MatchReady, s.wantReady)
			}
		})
	}

	r.Reset()
	var delta domain.LobbyDelta
	r.Commit(lobby("t", domain.StatusInGame, domain.ServerRunning, "A"), &delta)
	if !delta.MatchReady {
		t.Error("Reset should re-arm the latch")
	}
}
