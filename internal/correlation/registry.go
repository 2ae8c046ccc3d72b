// Package correlation turns an asynchronous request/response exchange into
// a blocking call. Each in-flight request owns one Pending entry keyed by its
// correlation ID; whichever of Resolve or the awaiting side's timeout removes
// the entry first decides the outcome, so a value is delivered at most once.
package correlation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"paymenthub/internal/metrics"

	"go.uber.org/zap"
)

var (
	ErrDuplicate = errors.New("correlation id already in flight")
	ErrTimeout   = errors.New("timed out waiting for response")
	ErrEmptyID   = errors.New("empty correlation id")
)

// Pending is the handle returned by Register. Only the registry touches its
// channel.
type Pending[T any] struct {
	id      string
	created time.Time
	done    chan T
}

func (p *Pending[T]) ID() string           { return p.id }
func (p *Pending[T]) CreatedAt() time.Time { return p.created }

// Registry is safe for concurrent Register/Resolve/Await from any goroutine.
// Every operation is a single atomic step on one key; there is no global lock.
type Registry[T any] struct {
	entries sync.Map // string -> *Pending[T]
	size    atomic.Int64
	logger  *zap.SugaredLogger
}

func NewRegistry[T any](logger *zap.SugaredLogger) *Registry[T] {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Registry[T]{logger: logger}
}

// Register creates the entry for id. It must happen before the request is
// published, otherwise a fast reply has nothing to resolve.
func (r *Registry[T]) Register(id string) (*Pending[T], error) {
	if id == "" {
		return nil, ErrEmptyID
	}
	p := &Pending[T]{id: id, created: time.Now(), done: make(chan T, 1)}
	if _, loaded := r.entries.LoadOrStore(id, p); loaded {
		return nil, fmt.Errorf("%w: %s", ErrDuplicate, id)
	}
	r.size.Add(1)
	metrics.PendingCorrelations.Inc()
	return p, nil
}

// Resolve removes the entry for id and hands it v. It reports false when no
// live entry exists: the request already timed out, was already resolved, or
// was never registered here. That is expected under duplicate or late
// delivery and only logged.
func (r *Registry[T]) Resolve(id string, v T) bool {
	val, ok := r.entries.LoadAndDelete(id)
	if !ok {
		metrics.Resolutions.WithLabelValues(metrics.OutcomeLate).Inc()
		r.logger.Warnw("no waiting request for response, dropping", "correlationId", id)
		return false
	}
	r.removed()
	p := val.(*Pending[T])
	// Only the goroutine that won LoadAndDelete gets here, and the buffer
	// holds one value, so this never blocks.
	p.done <- v
	metrics.Resolutions.WithLabelValues(metrics.OutcomeResolved).Inc()
	return true
}

// Await blocks until p is resolved, timeout elapses or ctx ends. On timeout
// it returns an error matching ErrTimeout and any later Resolve for the same
// id is dropped. If Resolve removed the entry a moment before the timer
// fired, its value wins and is returned.
func (r *Registry[T]) Await(ctx context.Context, p *Pending[T], timeout time.Duration) (T, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var cause error
	select {
	case v := <-p.done:
		return v, nil
	case <-timer.C:
		cause = fmt.Errorf("%w: %s after %s", ErrTimeout, p.id, timeout)
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			cause = fmt.Errorf("%w: %s: %v", ErrTimeout, p.id, ctx.Err())
		} else {
			cause = ctx.Err()
		}
	}

	if r.entries.CompareAndDelete(p.id, p) {
		r.removed()
		outcome := metrics.OutcomeTimeout
		if !errors.Is(cause, ErrTimeout) {
			outcome = metrics.OutcomeCanceled
		}
		metrics.Resolutions.WithLabelValues(outcome).Inc()
		var zero T
		return zero, cause
	}

	// A resolver removed the entry first; its value is in flight.
	return <-p.done, nil
}

// Cancel drops p without resolving it, e.g. when publishing failed. It
// reports whether the entry was still live.
func (r *Registry[T]) Cancel(p *Pending[T]) bool {
	if r.entries.CompareAndDelete(p.id, p) {
		r.removed()
		metrics.Resolutions.WithLabelValues(metrics.OutcomeCanceled).Inc()
		return true
	}
	return false
}

// Len is the number of live entries.
func (r *Registry[T]) Len() int {
	return int(r.size.Load())
}

func (r *Registry[T]) removed() {
	r.size.Add(-1)
	metrics.PendingCorrelations.Dec()
}
