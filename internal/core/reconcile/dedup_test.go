package reconcile

import (
	"sync"
	"testing"
	"time"

	"github.com/yndnr/lobbysync-go/internal/core/domain"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func snap(id, marker string) *domain.Lobby {
	return &domain.Lobby{ID: id, LastModified: marker}
}

func TestDeduplicator_IsDuplicate(t *testing.T) {
	clock := newFakeClock()
	d := NewDeduplicator(2*time.Second, WithClock(clock.Now))

	if d.IsDuplicate(snap("l1", "t1")) {
		t.Fatal("first sighting should not be a duplicate")
	}
	if !d.IsDuplicate(snap("l1", "t1")) {
		t.Fatal("repeat within window should be a duplicate")
	}
	if d.IsDuplicate(snap("l1", "t2")) {
		t.Fatal("different marker should not be a duplicate")
	}
	if d.IsDuplicate(snap("l2", "t2")) {
		t.Fatal("different lobby should not be a duplicate")
	}
}

func TestDeduplicator_DuplicateDoesNotRefreshAge(t *testing.T) {
	clock := newFakeClock()
	d := NewDeduplicator(2*time.Second, WithClock(clock.Now))

	d.IsDuplicate(snap("l1", "t1"))

	clock.Advance(1500 * time.Millisecond)
	if !d.IsDuplicate(snap("l1", "t1")) {
		t.Fatal("repeat at 1.5s should be a duplicate")
	}

	// 2.5s after the original record. Had the duplicate refreshed the age,
	// this would still be inside the window.
	clock.Advance(time.Second)
	if d.IsDuplicate(snap("l1", "t1")) {
		t.Fatal("record should have expired 2s after it was first recorded")
	}
}

func TestDeduplicator_WindowBoundary(t *testing.T) {
	clock := newFakeClock()
	d := NewDeduplicator(2*time.Second, WithClock(clock.Now))

	d.IsDuplicate(snap("l1", "t1"))
	clock.Advance(2 * time.Second)
	if !d.IsDuplicate(snap("l1", "t1")) {
		t.Error("age equal to window should still be a duplicate")
	}
}

func TestDeduplicator_MarkAsSeen(t *testing.T) {
	clock := newFakeClock()
	d := NewDeduplicator(2*time.Second, WithClock(clock.Now))

	d.MarkAsSeen(snap("l1", "t1"))
	if !d.IsDuplicate(snap("l1", "t1")) {
		t.Error("snapshot marked as seen should be a duplicate")
	}

	// MarkAsSeen refreshes unconditionally.
	clock.Advance(1500 * time.Millisecond)
	d.MarkAsSeen(snap("l1", "t1"))
	clock.Advance(1500 * time.Millisecond)
	if !d.IsDuplicate(snap("l1", "t1")) {
		t.Error("re-marked snapshot should still be a duplicate")
	}
}

func TestDeduplicator_SweepAndForget(t *testing.T) {
	clock := newFakeClock()
	d := NewDeduplicator(time.Second, WithClock(clock.Now))

	d.MarkAsSeen(snap("l1", "t1"))
	d.MarkAsSeen(snap("l2", "t1"))
	if d.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", d.Len())
	}

	d.Forget("l1")
	if d.Len() != 1 {
		t.Errorf("Len() after Forget = %d, want 1", d.Len())
	}
	if d.IsDuplicate(snap("l1", "t1")) {
		t.Error("forgotten lobby should not be a duplicate")
	}

	clock.Advance(2 * time.Second)
	d.IsDuplicate(nil) // any call sweeps
	if d.Len() != 0 {
		t.Errorf("Len() after sweep = %d, want 0", d.Len())
	}

	d.MarkAsSeen(snap("l3", "t1"))
	d.Reset()
	if d.Len() != 0 {
		t.Errorf("Len() after Reset = %d, want 0", d.Len())
	}
}

func TestDeduplicator_IgnoresAnonymous(t *testing.T) {
	d := NewDeduplicator(0)
	if d.Window() != DefaultDedupWindow {
		t.Errorf("Window() = %v, want %v", d.Window(), DefaultDedupWindow)
	}

	d.MarkAsSeen(&domain.Lobby{LastModified: "t1"})
	if d.IsDuplicate(&domain.Lobby{LastModified: "t1"}) || d.IsDuplicate(nil) {
		t.Error("id-less snapshots are never duplicates")
	}
	if d.Len() != 0 {
		t.Errorf("Len() = %d, want 0", d.Len())
	}
}
