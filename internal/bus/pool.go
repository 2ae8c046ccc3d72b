package bus

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Concurrency bounds a worker pool: Min workers are always running and up to
// Max handlers may run at once under load.
type Concurrency struct {
	Min int
	Max int
}

// ParseConcurrency reads "10-50" or a single number such as "8".
func ParseConcurrency(s string) (Concurrency, error) {
	lo, hi, found := strings.Cut(strings.TrimSpace(s), "-")
	c := Concurrency{}
	var err error
	if c.Min, err = strconv.Atoi(strings.TrimSpace(lo)); err != nil {
		return Concurrency{}, fmt.Errorf("invalid concurrency %q: %w", s, err)
	}
	c.Max = c.Min
	if found {
		if c.Max, err = strconv.Atoi(strings.TrimSpace(hi)); err != nil {
			return Concurrency{}, fmt.Errorf("invalid concurrency %q: %w", s, err)
		}
	}
	if c.Min < 1 || c.Max < c.Min {
		return Concurrency{}, fmt.Errorf("invalid concurrency %q: need 1 <= min <= max", s)
	}
	return c, nil
}

// ErrPoolClosed is returned by Submit once Close has been called.
var ErrPoolClosed = errors.New("worker pool closed")

// Pool runs submitted functions on Min long-lived workers, spilling over to
// short-lived goroutines up to Max when every worker is busy. Once Max
// functions are running, Submit blocks.
type Pool struct {
	work     chan func()
	done     chan struct{}
	overflow *semaphore.Weighted
	wg       sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

func NewPool(c Concurrency) *Pool {
	if c.Min < 1 {
		c.Min = 1
	}
	if c.Max < c.Min {
		c.Max = c.Min
	}
	p := &Pool{
		work:     make(chan func()),
		done:     make(chan struct{}),
		overflow: semaphore.NewWeighted(int64(c.Max - c.Min)),
	}
	for i := 0; i < c.Min; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for {
		select {
		case fn := <-p.work:
			fn()
		case <-p.done:
			return
		}
	}
}

// Submit hands fn to an idle worker, or to a new goroutine if the pool has
// headroom, or waits for a worker to free up. After Close it returns
// ErrPoolClosed without running fn.
func (p *Pool) Submit(ctx context.Context, fn func()) error {
	select {
	case <-p.done:
		return ErrPoolClosed
	default:
	}

	select {
	case p.work <- fn:
		return nil
	default:
	}

	if p.overflow.TryAcquire(1) {
		if !p.spawn(fn) {
			p.overflow.Release(1)
			return ErrPoolClosed
		}
		return nil
	}

	select {
	case p.work <- fn:
		return nil
	case <-p.done:
		return ErrPoolClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// spawn runs fn on an overflow goroutine unless the pool is closed. The
// caller holds one overflow slot, which the goroutine releases.
func (p *Pool) spawn(fn func()) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer p.overflow.Release(1)
		fn()
	}()
	return true
}

// Close stops the workers and waits for every running function to return.
// It is safe to call more than once.
func (p *Pool) Close() {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.done)
	}
	p.mu.Unlock()
	p.wg.Wait()
}
