// Package queue serialises outbound lobby mutations.
//
// A Queue runs at most one mutation at a time, in FIFO order, on a single
// worker goroutine started with Run. Each entry carries a timeout that bounds
// both its wait in the queue and its execution:
//
//   - an entry that waited longer than its timeout fails with
//     domain.ErrQueueExpired and is never started
//   - a started entry that overruns its timeout is cancelled and fails with
//     domain.ErrOperationTimeout
//   - a failed critical entry discards everything queued behind it with
//     domain.ErrQueueCleared
//
// Successive starts are paced by a token bucket so the remote service sees
// at most one mutation per pause interval. Retries are not the queue's
// business; compose them into the operation with RetryPolicy.Wrap.
package queue
