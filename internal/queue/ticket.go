package queue

import (
	"context"
	"crypto/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// MutationIDPrefix prefixes every mutation id.
const MutationIDPrefix = "mut-"

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// newMutationID returns a sortable id used to correlate a mutation's log lines.
func newMutationID(now time.Time) string {
	entropyMu.Lock()
	id, err := ulid.New(ulid.Timestamp(now), entropy)
	entropyMu.Unlock()
	if err != nil {
		// Monotonic entropy overflowed within one millisecond.
		id = ulid.Make()
	}
	return MutationIDPrefix + strings.ToLower(id.String())
}

// Ticket is the caller's handle on a queued mutation.
type Ticket struct {
	ID   string
	Name string

	done chan struct{}
	err  error
}

func newTicket(id, name string) *Ticket {
	return &Ticket{ID: id, Name: name, done: make(chan struct{})}
}

// Done is closed once the mutation has finished, failed or been discarded.
func (t *Ticket) Done() <-chan struct{} {
	return t.done
}

// Err returns the mutation's outcome. It is nil until Done is closed.
func (t *Ticket) Err() error {
	select {
	case <-t.done:
		return t.err
	default:
		return nil
	}
}

// Wait blocks until the mutation finishes or ctx is done. Abandoning the
// wait does not cancel the mutation.
func (t *Ticket) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *Ticket) resolve(err error) {
	t.err = err
	close(t.done)
}
