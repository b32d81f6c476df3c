package reconcile

import (
	"time"

	"github.com/yndnr/lobbysync-go/internal/core/domain"
	"github.com/yndnr/lobbysync-go/pkg/ttlmap"
)

// DefaultDedupWindow is how long a recorded marker suppresses repeats.
const DefaultDedupWindow = 2 * time.Second

// Deduplicator remembers the last marker seen per lobby id.
//
// A candidate is a duplicate when a record for its lobby exists, carries a
// byte-equal marker and is no older than the window. Records are replaced,
// never merged, and expired records are swept on every call.
type Deduplicator struct {
	records *ttlmap.Map[string]
}

// DedupOption configures a Deduplicator.
type DedupOption func(*dedupOptions)

type dedupOptions struct {
	now func() time.Time
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) DedupOption {
	return func(o *dedupOptions) {
		o.now = now
	}
}

// NewDeduplicator creates a Deduplicator with the given window.
// A non-positive window falls back to DefaultDedupWindow.
func NewDeduplicator(window time.Duration, opts ...DedupOption) *Deduplicator {
	if window <= 0 {
		window = DefaultDedupWindow
	}
	var o dedupOptions
	for _, opt := range opts {
		opt(&o)
	}

	var mapOpts []ttlmap.Option
	if o.now != nil {
		mapOpts = append(mapOpts, ttlmap.WithClock(o.now))
	}
	return &Deduplicator{
		records: ttlmap.New[string](window, mapOpts...),
	}
}

// Window returns the dedup window.
func (d *Deduplicator) Window() time.Duration {
	return d.records.TTL()
}

// IsDuplicate reports whether l repeats a recently recorded snapshot.
// Non-duplicates are recorded; duplicates leave the record's age untouched.
func (d *Deduplicator) IsDuplicate(l *domain.Lobby) bool {
	d.records.Sweep()
	if l == nil || l.ID == "" {
		return false
	}

	dup := false
	d.records.Compute(l.ID, func(marker string, live bool) (string, bool) {
		if live && marker == l.LastModified {
			dup = true
			return marker, false
		}
		return l.LastModified, true
	})
	return dup
}

// MarkAsSeen records l unconditionally. It is used for snapshots the client
// produced itself so their echo on another channel is suppressed.
func (d *Deduplicator) MarkAsSeen(l *domain.Lobby) {
	d.records.Sweep()
	if l == nil || l.ID == "" {
		return
	}
	d.records.Set(l.ID, l.LastModified)
}

// Forget drops the record for lobbyID.
func (d *Deduplicator) Forget(lobbyID string) {
	d.records.Delete(lobbyID)
}

// Reset drops every record.
func (d *Deduplicator) Reset() {
	d.records.Clear()
}

// Len returns the number of records, including expired ones not yet swept.
func (d *Deduplicator) Len() int {
	return d.records.Len()
}
