// Package dispatch runs blocking operations on a pool of background workers
// and hands their results to a single coordinating goroutine.
//
// Callers never see a result on a worker goroutine: deliver callbacks run one
// at a time on the coordinator, in completion order. A result whose [Ticket]
// was cancelled, or whose [Scope] was closed, is dropped instead of
// delivered. Cancelling does not interrupt an operation that has already
// started; only its result is discarded.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

const (
	// DefaultWorkers is the worker pool size used when New gets 0.
	DefaultWorkers = 4

	// DefaultQueue is the pending-job capacity used when New gets 0.
	DefaultQueue = 64
)

// ErrStopped is returned by [Submit] once the dispatcher has shut down.
var ErrStopped = errors.New("dispatcher stopped")

// Scope groups tickets that belong to one consumer (a screen, an HTTP
// request). Closing the scope cancels all of them at once.
type Scope struct {
	closed atomic.Bool
}

// NewScope returns an open scope.
func NewScope() *Scope { return &Scope{} }

// Close drops every pending and future result of tickets in the scope.
func (s *Scope) Close() { s.closed.Store(true) }

// Closed reports whether Close has been called.
func (s *Scope) Closed() bool { return s.closed.Load() }

// Ticket identifies one submitted operation.
type Ticket struct {
	id        uint64
	op        string
	scope     *Scope
	cancelled atomic.Bool
}

// ID returns the ticket's sequence number, unique per dispatcher.
func (t *Ticket) ID() uint64 { return t.id }

// Cancel drops the ticket's result. It is safe to call at any time, any
// number of times.
func (t *Ticket) Cancel() { t.cancelled.Store(true) }

// Cancelled reports whether the ticket or its scope was cancelled.
func (t *Ticket) Cancelled() bool {
	return t.cancelled.Load() || (t.scope != nil && t.scope.Closed())
}

type job struct {
	ticket *Ticket
	// run executes the operation and returns the deliver closure bound to
	// its result.
	run func() func()
}

type result struct {
	ticket  *Ticket
	deliver func()
}

// Dispatcher is a worker pool with a single result coordinator. Create one
// with [New], start it with [Dispatcher.Run], and submit work with [Submit].
type Dispatcher struct {
	workers int
	jobs    chan job
	results chan result
	log     *slog.Logger

	seq      atomic.Uint64
	stopOnce sync.Once
	done     chan struct{}
	started  atomic.Bool
}

// New creates a Dispatcher with the given number of workers and pending-job
// capacity. Zero values select the defaults.
func New(workers, queue int, logger *slog.Logger) *Dispatcher {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if queue <= 0 {
		queue = DefaultQueue
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		workers: workers,
		jobs:    make(chan job, queue),
		results: make(chan result, queue),
		log:     logger,
		done:    make(chan struct{}),
	}
}

// Run starts the workers and the coordinator and blocks until ctx is
// cancelled. Operations already running are allowed to finish, but their
// results are no longer delivered. Jobs still queued are discarded. Run may
// be called only once.
func (d *Dispatcher) Run(ctx context.Context) error {
	if !d.started.CompareAndSwap(false, true) {
		return errors.New("dispatcher already started")
	}
	defer d.stop()

	g, gctx := errgroup.WithContext(ctx)
	for i := range d.workers {
		g.Go(func() error {
			d.work(gctx, i)
			return nil
		})
	}
	g.Go(func() error {
		d.coordinate(gctx)
		return nil
	})

	d.log.Info("dispatcher started", "workers", d.workers, "queue", cap(d.jobs))
	<-ctx.Done()
	d.stop()
	err := g.Wait()
	d.log.Info("dispatcher stopped")
	return err
}

// Done is closed once the dispatcher has shut down.
func (d *Dispatcher) Done() <-chan struct{} { return d.done }

func (d *Dispatcher) stop() {
	d.stopOnce.Do(func() { close(d.done) })
}

func (d *Dispatcher) stopped() bool {
	select {
	case <-d.done:
		return true
	default:
		return false
	}
}

// Submit queues op for execution on a worker. When op returns, deliver is
// called with its result on the coordinator goroutine, unless the ticket or
// scope has been cancelled by then. scope may be nil.
//
// op runs with a context carrying ctx's values but not its cancellation.
//
// Submit blocks while the queue is full. It returns ErrStopped, without
// queueing anything, once the dispatcher has shut down.
func Submit[T any](
	ctx context.Context,
	d *Dispatcher,
	scope *Scope,
	name string,
	op func(context.Context) (T, error),
	deliver func(T, error),
) (*Ticket, error) {
	if d.stopped() {
		return nil, ErrStopped
	}

	t := &Ticket{id: d.seq.Add(1), op: name, scope: scope}
	opCtx := context.WithoutCancel(ctx)
	j := job{
		ticket: t,
		run: func() func() {
			v, err := safeCall(opCtx, op)
			return func() { deliver(v, err) }
		},
	}

	select {
	case d.jobs <- j:
		return t, nil
	case <-d.done:
		return nil, ErrStopped
	case <-ctx.Done():
		return nil, fmt.Errorf("submitting %s: %w", name, ctx.Err())
	}
}

// safeCall runs op, turning a panic into an error.
func safeCall[T any](ctx context.Context, op func(context.Context) (T, error)) (v T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("operation panicked: %v", r)
		}
	}()
	return op(ctx)
}

func (d *Dispatcher) work(ctx context.Context, worker int) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-d.jobs:
			if j.ticket.Cancelled() {
				d.log.Debug("skipping cancelled job", "ticket", j.ticket.id, "op", j.ticket.op)
				continue
			}
			deliver := j.run()
			select {
			case d.results <- result{ticket: j.ticket, deliver: deliver}:
			case <-ctx.Done():
				d.log.Debug("dropping result after shutdown", "ticket", j.ticket.id, "op", j.ticket.op, "worker", worker)
				return
			}
		}
	}
}

func (d *Dispatcher) coordinate(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case r := <-d.results:
			if r.ticket.Cancelled() {
				d.log.Debug("dropping result of cancelled ticket", "ticket", r.ticket.id, "op", r.ticket.op)
				continue
			}
			r.deliver()
		}
	}
}

// Call submits op and waits for its delivered result. If ctx ends first the
// ticket is cancelled and ctx's error is returned; op still runs to
// completion in the background.
func Call[T any](ctx context.Context, d *Dispatcher, name string, op func(context.Context) (T, error)) (T, error) {
	type outcome struct {
		v   T
		err error
	}
	ch := make(chan outcome, 1)

	var zero T
	t, err := Submit(ctx, d, nil, name, op, func(v T, err error) {
		ch <- outcome{v, err}
	})
	if err != nil {
		return zero, err
	}

	select {
	case o := <-ch:
		return o.v, o.err
	case <-ctx.Done():
		t.Cancel()
		return zero, ctx.Err()
	case <-d.done:
		t.Cancel()
		return zero, ErrStopped
	}
}
