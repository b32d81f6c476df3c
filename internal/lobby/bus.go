package lobby

import (
	"sync"
	"sync/atomic"

	"github.com/yndnr/lobbysync-go/internal/telemetry/metric"
)

// DefaultEventBuffer is the channel capacity of a subscription.
const DefaultEventBuffer = 64

type subscriber struct {
	ch     chan Event
	filter map[EventType]struct{}
}

func (s *subscriber) wants(t EventType) bool {
	if len(s.filter) == 0 {
		return true
	}
	_, ok := s.filter[t]
	return ok
}

// Bus fans events out to subscribers. Publish never blocks: an event that
// does not fit in a subscriber's buffer is dropped for that subscriber and
// counted.
type Bus struct {
	buffer  int
	metrics *metric.Registry

	mu     sync.RWMutex
	subs   map[uint64]*subscriber
	nextID uint64
	closed bool

	dropped atomic.Uint64
}

// NewBus creates a bus whose subscriptions buffer up to buffer events.
func NewBus(buffer int, m *metric.Registry) *Bus {
	if buffer <= 0 {
		buffer = DefaultEventBuffer
	}
	return &Bus{
		buffer:  buffer,
		metrics: m,
		subs:    make(map[uint64]*subscriber),
	}
}

// Subscribe returns a channel receiving events of the given types, or of
// every type when none are given, and a function cancelling the
// subscription. The channel is closed on cancel or when the bus closes.
func (b *Bus) Subscribe(types ...EventType) (<-chan Event, func()) {
	sub := &subscriber{ch: make(chan Event, b.buffer)}
	if len(types) > 0 {
		sub.filter = make(map[EventType]struct{}, len(types))
		for _, t := range types {
			sub.filter[t] = struct{}{}
		}
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(sub.ch)
		return sub.ch, func() {}
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = sub
	b.mu.Unlock()

	var once sync.Once
	return sub.ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if s, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(s.ch)
			}
		})
	}
}

// Publish delivers ev to every interested subscriber without blocking.
func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, s := range b.subs {
		if !s.wants(ev.Type()) {
			continue
		}
		select {
		case s.ch <- ev:
		default:
			b.dropped.Add(1)
			b.metrics.DropEvent(string(ev.Type()))
		}
	}
}

// Dropped returns how many deliveries were dropped because a subscriber was
// full.
func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}

// Close closes every subscription. Later publishes are discarded.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, s := range b.subs {
		delete(b.subs, id)
		close(s.ch)
	}
}
