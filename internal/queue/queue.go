package queue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/yndnr/lobbysync-go/internal/core/domain"
	"github.com/yndnr/lobbysync-go/internal/telemetry/logger"
	"github.com/yndnr/lobbysync-go/internal/telemetry/metric"
)

// Defaults for Config.
const (
	DefaultTimeout = 30 * time.Second
	DefaultPause   = 100 * time.Millisecond
	DefaultGrace   = time.Second
)

// Outcome labels reported to metrics.
const (
	OutcomeOK      = "ok"
	OutcomeError   = "error"
	OutcomeExpired = "expired"
	OutcomeTimeout = "timeout"
	OutcomeCleared = "cleared"
	OutcomeClosed  = "closed"
)

// Operation is one unit of remote work. It must honour ctx cancellation: an
// operation that keeps running past its timeout and grace has its ticket
// resolved, but the worker holds every later entry until it returns.
type Operation func(ctx context.Context) error

// ErrorHandler receives the failure of a mutation together with its ticket.
// It runs on the worker goroutine, or on the caller of Close, and must not
// block.
type ErrorHandler func(t *Ticket, err error)

// Config holds queue configuration.
type Config struct {
	// Timeout is the default per-entry timeout.
	Timeout time.Duration
	// Pause is the minimum gap between one mutation's completion and the
	// next mutation's start.
	Pause time.Duration
	// Grace bounds how long a timed-out operation may take to return after
	// cancellation before its ticket is resolved with a timeout.
	Grace time.Duration
}

// DefaultConfig returns the default queue configuration.
func DefaultConfig() Config {
	return Config{
		Timeout: DefaultTimeout,
		Pause:   DefaultPause,
		Grace:   DefaultGrace,
	}
}

// EnqueueOption configures a single entry.
type EnqueueOption func(*entry)

// Critical marks the entry critical: its failure discards the rest of the queue.
func Critical() EnqueueOption {
	return func(e *entry) {
		e.critical = true
	}
}

// WithTimeout overrides the entry's timeout.
func WithTimeout(d time.Duration) EnqueueOption {
	return func(e *entry) {
		if d > 0 {
			e.timeout = d
		}
	}
}

type entry struct {
	ticket     *Ticket
	op         Operation
	onError    ErrorHandler
	critical   bool
	timeout    time.Duration
	enqueuedAt time.Time
}

// Option configures a Queue.
type Option func(*Queue)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(q *Queue) {
		if l != nil {
			q.log = l
		}
	}
}

// WithMetrics sets the metrics registry.
func WithMetrics(m *metric.Registry) Option {
	return func(q *Queue) {
		q.metrics = m
	}
}

// WithClock replaces time.Now for expiry checks, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(q *Queue) {
		if now != nil {
			q.now = now
		}
	}
}

// Queue is a single-worker FIFO of mutations.
type Queue struct {
	cfg     Config
	log     logger.Logger
	metrics *metric.Registry
	now     func() time.Time
	limiter *rate.Limiter

	mu      sync.Mutex
	pending []*entry
	closed  bool
	wake    chan struct{}
	stop    chan struct{}

	running atomic.Bool
}

// New creates a queue. Zero config fields take their defaults.
func New(cfg Config, opts ...Option) *Queue {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Pause < 0 {
		cfg.Pause = 0
	}
	if cfg.Grace <= 0 {
		cfg.Grace = DefaultGrace
	}

	limit := rate.Inf
	if cfg.Pause > 0 {
		limit = rate.Every(cfg.Pause)
	}

	q := &Queue{
		cfg:     cfg,
		log:     logger.Default(),
		now:     time.Now,
		limiter: rate.NewLimiter(limit, 1),
		wake:    make(chan struct{}, 1),
		stop:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(q)
	}
	q.log = q.log.With("component", "queue")
	return q
}

// Enqueue appends a mutation and returns its ticket. onError may be nil.
func (q *Queue) Enqueue(name string, op Operation, onError ErrorHandler, opts ...EnqueueOption) (*Ticket, error) {
	if op == nil {
		return nil, domain.ErrMissingArgument.WithDetails("operation is required")
	}

	now := q.now()
	e := &entry{
		ticket:     newTicket(newMutationID(now), name),
		op:         op,
		onError:    onError,
		timeout:    q.cfg.Timeout,
		enqueuedAt: now,
	}
	for _, opt := range opts {
		opt(e)
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil, domain.ErrQueueClosed
	}
	q.pending = append(q.pending, e)
	depth := len(q.pending)
	q.mu.Unlock()

	q.metrics.SetQueueDepth(depth)
	q.log.Debug("mutation queued",
		"mutation_id", e.ticket.ID,
		"operation", name,
		"critical", e.critical,
		"depth", depth,
	)

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return e.ticket, nil
}

// Len returns the number of entries waiting to start.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Run is the worker loop. It returns when ctx is done or the queue is
// closed. Only one Run may be active at a time.
func (q *Queue) Run(ctx context.Context) error {
	if !q.running.CompareAndSwap(false, true) {
		return errors.New("queue: worker already running")
	}
	defer q.running.Store(false)

	for {
		e, ok := q.next(ctx)
		if !ok {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return nil
		}
		q.process(ctx, e)
	}
}

// Close stops accepting entries and fails every pending entry with
// domain.ErrQueueClosed. A running mutation is allowed to finish.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	drained := q.pending
	q.pending = nil
	close(q.stop)
	q.mu.Unlock()

	q.metrics.SetQueueDepth(0)
	for _, e := range drained {
		q.finish(e, domain.ErrQueueClosed, OutcomeClosed, 0)
	}
}

// next blocks until an entry is available, ctx is done or the queue closes.
func (q *Queue) next(ctx context.Context) (*entry, bool) {
	for {
		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			return nil, false
		}
		if len(q.pending) > 0 {
			e := q.pending[0]
			q.pending[0] = nil
			q.pending = q.pending[1:]
			depth := len(q.pending)
			q.mu.Unlock()
			q.metrics.SetQueueDepth(depth)
			return e, true
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, false
		case <-q.stop:
			return nil, false
		case <-q.wake:
		}
	}
}

func (q *Queue) process(ctx context.Context, e *entry) {
	// 1. Expired while waiting: never dispatched.
	if waited := q.now().Sub(e.enqueuedAt); waited > e.timeout {
		err := domain.ErrQueueExpired.WithDetails(e.ticket.Name + " waited " + waited.Round(time.Millisecond).String())
		q.finish(e, err, OutcomeExpired, 0)
		if e.critical {
			q.clear(err)
		}
		return
	}

	// 2. Pace against the previous completion.
	if err := q.limiter.Wait(ctx); err != nil {
		q.finish(e, err, OutcomeError, 0)
		return
	}

	// 3. Run against the timeout.
	start := time.Now()
	straggler, err := q.execute(ctx, e)
	elapsed := time.Since(start)

	outcome := OutcomeOK
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrOperationTimeout):
		outcome = OutcomeTimeout
	default:
		outcome = OutcomeError
	}
	q.finish(e, err, outcome, elapsed)

	// 4. Critical failure discards the rest.
	if err != nil && e.critical {
		q.clear(err)
	}

	if straggler != nil {
		q.await(e, straggler)
	}
	q.rest()
}

// rest spends the pacing token now, so the next start waits a full Pause
// after this completion.
func (q *Queue) rest() {
	if q.cfg.Pause <= 0 {
		return
	}
	q.limiter = rate.NewLimiter(rate.Every(q.cfg.Pause), 1)
	q.limiter.Allow()
}

// await blocks the worker until an operation that outlived its grace
// returns. Its ticket is already resolved.
func (q *Queue) await(e *entry, straggler <-chan error) {
	start := time.Now()
	q.log.Warn("mutation ignored cancellation, holding queue",
		"mutation_id", e.ticket.ID,
		"operation", e.ticket.Name,
		"grace", q.cfg.Grace,
	)
	err := <-straggler
	q.log.Warn("stalled mutation returned",
		"mutation_id", e.ticket.ID,
		"operation", e.ticket.Name,
		"held", time.Since(start),
		"error", err,
	)
}

// execute runs e against its timeout. When the operation is still running
// after the grace period, the returned channel yields its eventual result.
func (q *Queue) execute(ctx context.Context, e *entry) (<-chan error, error) {
	opCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	opCtx = logger.WithMutationID(logger.WithLogger(opCtx, q.log), e.ticket.ID)

	result := make(chan error, 1)
	go func() {
		result <- e.op(opCtx)
	}()

	select {
	case err := <-result:
		// An operation that surfaced its own deadline is still a timeout.
		if err != nil && errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, domain.ErrOperationTimeout.WithDetails(e.ticket.Name).WithCause(err)
		}
		return nil, err
	case <-opCtx.Done():
	}

	cancel()
	grace := time.NewTimer(q.cfg.Grace)
	defer grace.Stop()
	var straggler <-chan error
	select {
	case <-result:
	case <-grace.C:
		straggler = result
	}

	if ctx.Err() != nil {
		return straggler, ctx.Err()
	}
	return straggler, domain.ErrOperationTimeout.WithDetails(e.ticket.Name + " exceeded " + e.timeout.String())
}

func (q *Queue) clear(cause error) {
	q.mu.Lock()
	drained := q.pending
	q.pending = nil
	q.mu.Unlock()

	if len(drained) == 0 {
		return
	}
	q.metrics.SetQueueDepth(0)
	q.log.Warn("critical mutation failed, clearing queue",
		"discarded", len(drained),
		"error", cause,
	)
	err := domain.ErrQueueCleared.WithCause(cause)
	for _, e := range drained {
		q.finish(e, err, OutcomeCleared, 0)
	}
}

func (q *Queue) finish(e *entry, err error, outcome string, elapsed time.Duration) {
	q.metrics.ObserveMutation(e.ticket.Name, outcome, elapsed)
	if err == nil {
		q.log.Debug("mutation completed",
			"mutation_id", e.ticket.ID,
			"operation", e.ticket.Name,
			"duration", elapsed,
		)
	} else {
		q.log.Warn("mutation failed",
			"mutation_id", e.ticket.ID,
			"operation", e.ticket.Name,
			"outcome", outcome,
			"error", err,
		)
	}

	if err != nil && e.onError != nil {
		e.onError(e.ticket, err)
	}
	e.ticket.resolve(err)
}
