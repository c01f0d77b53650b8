// Package resilience provides protection patterns for outbound venue calls,
// centered on a rate-limit-aware call serialization queue.
package resilience

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	apperrors "stock-trader/internal/errors"
)

// CallQueueConfig holds call queue configuration.
type CallQueueConfig struct {
	// Backoff is how long the worker waits before retrying a dequeued call
	// while the venue is believed to be throttling.
	Backoff time.Duration
}

// DefaultCallQueueConfig returns sensible defaults.
func DefaultCallQueueConfig() CallQueueConfig {
	return CallQueueConfig{
		Backoff: 10 * time.Second,
	}
}

type callResult struct {
	value any
	err   error
}

type queuedCall struct {
	attempt func() (any, error)
	done    chan callResult
}

// CallQueue serializes outbound venue calls under rate-limit backpressure.
//
// While the venue has capacity, calls run inline on the caller's goroutine.
// Once any call observes throttling, subsequent calls are appended to an
// unbounded FIFO serviced by a single worker, which waits a fixed backoff
// before each retry while throttled. The single worker is what prevents a
// stampede of simultaneous retries during a throttling window.
type CallQueue struct {
	backoff time.Duration
	sleep   func(time.Duration) // replaced in tests
	log     zerolog.Logger

	// hasCapacity races between the inline fast path and the worker. The
	// race is benign: the worst case is one extra inline attempt that fails
	// and gets queued.
	hasCapacity atomic.Bool

	mu     sync.Mutex
	cond   *sync.Cond
	items  []*queuedCall
	closed bool

	workerDone chan struct{}

	// Metrics
	totalInline  atomic.Int64
	totalQueued  atomic.Int64
	totalRetried atomic.Int64
}

// NewCallQueue creates a call queue and starts its retry worker.
func NewCallQueue(cfg CallQueueConfig, log zerolog.Logger) *CallQueue {
	if cfg.Backoff <= 0 {
		cfg.Backoff = DefaultCallQueueConfig().Backoff
	}
	q := &CallQueue{
		backoff:    cfg.Backoff,
		sleep:      time.Sleep,
		log:        log.With().Str("component", "callqueue").Logger(),
		workerDone: make(chan struct{}),
	}
	q.cond = sync.NewCond(&q.mu)
	q.hasCapacity.Store(true)
	go q.run()
	return q
}

// Do executes attempt through the queue and blocks until a terminal result.
//
// If the venue currently has capacity, attempt runs inline and a success or a
// non-rate-limit failure is returned immediately. A rate-limited attempt (or
// any attempt while throttled) is queued for the worker; Do then waits for
// the worker to resolve it. Cancelling ctx abandons the wait but does not
// remove the queued call.
func Do[T any](ctx context.Context, q *CallQueue, attempt func() (T, error)) (T, error) {
	var zero T
	v, err := q.execute(ctx, func() (any, error) { return attempt() })
	if err != nil {
		return zero, err
	}
	out, _ := v.(T)
	return out, nil
}

func (q *CallQueue) execute(ctx context.Context, attempt func() (any, error)) (any, error) {
	if q.hasCapacity.Load() {
		q.totalInline.Add(1)
		v, err := attempt()
		if err == nil {
			return v, nil
		}
		if !apperrors.Is(err, apperrors.ErrRateLimited) {
			return nil, err
		}
		q.hasCapacity.Store(false)
		q.log.Warn().Msg("venue throttling detected, queueing call")
	}

	call := &queuedCall{attempt: attempt, done: make(chan callResult, 1)}
	if err := q.enqueue(call, false); err != nil {
		return nil, err
	}
	q.totalQueued.Add(1)

	select {
	case r := <-call.done:
		return r.value, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// enqueue appends a call to the back of the queue. Re-appends from the
// worker (requeue) are allowed even after Shutdown so an already-admitted
// call can still drain; new callers are rejected once closed.
func (q *CallQueue) enqueue(call *queuedCall, requeue bool) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed && !requeue {
		return apperrors.ErrQueueClosed
	}
	q.items = append(q.items, call)
	q.cond.Signal()
	return nil
}

// next blocks until a call is available or the queue is closed and drained.
func (q *CallQueue) next() (*queuedCall, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.items) == 0 {
		return nil, false
	}
	call := q.items[0]
	q.items = q.items[1:]
	return call, true
}

func (q *CallQueue) run() {
	defer close(q.workerDone)
	for {
		call, ok := q.next()
		if !ok {
			return
		}

		// One wait per dequeue while throttled: calls drained back-to-back
		// after capacity is restored share a single backoff.
		if !q.hasCapacity.Load() {
			q.sleep(q.backoff)
		}

		v, err := call.attempt()
		if err != nil && apperrors.Is(err, apperrors.ErrRateLimited) {
			q.hasCapacity.Store(false)
			q.totalRetried.Add(1)
			q.log.Debug().Msg("retry rate limited, requeueing")
			// Back of the queue: a retried call competes fairly with calls
			// submitted after its first failure.
			_ = q.enqueue(call, true)
			continue
		}
		if err == nil {
			q.hasCapacity.Store(true)
		}
		call.done <- callResult{value: v, err: err}
	}
}

// Shutdown closes the input side of the queue and waits for the worker to
// drain and exit. In-flight venue calls are not cancelled.
func (q *CallQueue) Shutdown() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.cond.Broadcast()
	<-q.workerDone
}

// HasCapacity reports whether the venue is currently believed to accept
// calls without throttling.
func (q *CallQueue) HasCapacity() bool {
	return q.hasCapacity.Load()
}

// Stats returns queue counters.
func (q *CallQueue) Stats() CallQueueStats {
	q.mu.Lock()
	pending := len(q.items)
	q.mu.Unlock()
	return CallQueueStats{
		Pending:      pending,
		TotalInline:  q.totalInline.Load(),
		TotalQueued:  q.totalQueued.Load(),
		TotalRetried: q.totalRetried.Load(),
	}
}

// CallQueueStats holds call queue statistics.
type CallQueueStats struct {
	Pending      int
	TotalInline  int64
	TotalQueued  int64
	TotalRetried int64
}
