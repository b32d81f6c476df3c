package lobby

import (
	"testing"

	"github.com/yndnr/lobbysync-go/internal/telemetry/metric"
)

func TestBus_Filter(t *testing.T) {
	b := NewBus(4, nil)
	all, _ := b.Subscribe()
	left, _ := b.Subscribe(TypeLobbyLeft)

	b.Publish(PlayerJoined{LobbyID: "l1", PlayerID: "p2"})
	b.Publish(LobbyLeft{LobbyID: "l1"})

	if got := len(all); got != 2 {
		t.Errorf("unfiltered subscriber got %d events, want 2", got)
	}
	if got := len(left); got != 1 {
		t.Fatalf("filtered subscriber got %d events, want 1", got)
	}
	if ev := <-left; ev.Type() != TypeLobbyLeft {
		t.Errorf("filtered event = %s", ev.Type())
	}
}

func TestBus_DropsWhenFull(t *testing.T) {
	m := metric.NewRegistry()
	b := NewBus(1, m)
	ch, _ := b.Subscribe()

	b.Publish(PlayerJoined{PlayerID: "a"})
	b.Publish(PlayerJoined{PlayerID: "b"})
	b.Publish(PlayerLeft{PlayerID: "a"})

	if b.Dropped() != 2 {
		t.Errorf("Dropped() = %d, want 2", b.Dropped())
	}
	if ev := (<-ch).(PlayerJoined); ev.PlayerID != "a" {
		t.Errorf("kept event = %+v, want the first", ev)
	}
	if got := counterValue(t, m, "lobbysync_events_dropped_total", map[string]string{"event": string(TypePlayerJoined)}); got != 1 {
		t.Errorf("dropped player_joined = %v, want 1", got)
	}
}

func TestBus_Unsubscribe(t *testing.T) {
	b := NewBus(4, nil)
	ch, cancel := b.Subscribe()
	cancel()
	cancel()

	if _, ok := <-ch; ok {
		t.Error("channel should be closed after cancel")
	}
	b.Publish(LobbyLeft{})
	if b.Dropped() != 0 {
		t.Error("publish after cancel should not count drops")
	}
}

func TestBus_Close(t *testing.T) {
	b := NewBus(4, nil)
	ch, cancel := b.Subscribe()
	b.Publish(LobbyLeft{LobbyID: "l1"})
	b.Close()
	b.Close()
	cancel()

	if ev, ok := <-ch; !ok || ev.(LobbyLeft).LobbyID != "l1" {
		t.Errorf("buffered event lost: %v %v", ev, ok)
	}
	if _, ok := <-ch; ok {
		t.Error("channel should be closed")
	}

	late, _ := b.Subscribe()
	if _, ok := <-late; ok {
		t.Error("subscribing to a closed bus should return a closed channel")
	}
	b.Publish(LobbyLeft{})
}
