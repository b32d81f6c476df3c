// Package ttlmap provides a concurrent map whose entries expire.
//
// The map is split into shards selected by a murmur3 hash of the key, each
// guarded by its own RWMutex. Every entry remembers when it was stored;
// an entry older than the map's TTL is invisible to readers and removed by
// the next Sweep.
//
// Usage:
//
//	m := ttlmap.New[string](2*time.Second)
//	m.Set("lobby-1", "2024-05-01T10:00:00Z")
//	m.Compute("lobby-1", func(marker string, live bool) (string, bool) {
//		return marker, false
//	})
//
// Thread Safety:
//
// All operations are thread-safe. Compute runs its callback under the
// shard's write lock, so read-modify-write sequences on one key are atomic.
package ttlmap
