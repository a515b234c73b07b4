package query

import (
	"context"
	"sync"
	"time"

	"github.com/coder/quartz"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
)

// State of a PendingRequest.
type State int

const (
	StatePending State = iota
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result is the outcome of one fan-out request: either Page or Err is set.
type Result struct {
	Index       int
	Query       QuerySpec
	Page        *Page
	Err         error
	CompletedAt time.Time
}

// PendingRequest is one fan-out submission. It moves from StatePending to
// either StateCompleted or StateFailed exactly once.
type PendingRequest struct {
	Index int
	Query QuerySpec

	submittedAt time.Time
	done        chan struct{}

	mtx         sync.Mutex
	state       State
	page        *Page
	err         error
	completedAt time.Time
	listeners   []func(*PendingRequest)
}

func newPendingRequest(idx int, q QuerySpec, now time.Time) *PendingRequest {
	return &PendingRequest{
		Index:       idx,
		Query:       q,
		submittedAt: now,
		done:        make(chan struct{}),
	}
}

func (r *PendingRequest) State() State {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	return r.state
}

// Done is closed once the request reaches a terminal state.
func (r *PendingRequest) Done() <-chan struct{} { return r.done }

func (r *PendingRequest) complete(page *Page, err error, now time.Time) bool {
	r.mtx.Lock()
	if r.state != StatePending {
		r.mtx.Unlock()
		return false
	}
	if err != nil {
		r.state = StateFailed
		r.err = asBackendError(err)
	} else {
		r.state = StateCompleted
		r.page = page
	}
	r.completedAt = now
	listeners := r.listeners
	r.listeners = nil
	close(r.done)
	r.mtx.Unlock()

	for _, fn := range listeners {
		fn(r)
	}
	return true
}

// subscribe runs fn once the request is terminal, immediately if it already is.
func (r *PendingRequest) subscribe(fn func(*PendingRequest)) {
	r.mtx.Lock()
	if r.state == StatePending {
		r.listeners = append(r.listeners, fn)
		r.mtx.Unlock()
		return
	}
	r.mtx.Unlock()
	fn(r)
}

// resultOrTimeout returns the terminal result, or a timeout result if the
// request is still pending.
func (r *PendingRequest) resultOrTimeout(cause error) Result {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	res := Result{Index: r.Index, Query: r.Query}
	switch r.state {
	case StateCompleted:
		res.Page = r.page
		res.CompletedAt = r.completedAt
	case StateFailed:
		res.Err = r.err
		res.CompletedAt = r.completedAt
	default:
		res.Err = &TimeoutError{Index: r.Index, Err: cause}
	}
	return res
}

// HandleSet is the set of requests produced by one Submit call. It can be
// consumed by exactly one aggregator.
type HandleSet struct {
	requests []*PendingRequest
	claimed  atomic.Bool

	// completions serializes timestamping, state change and listener calls.
	completions sync.Mutex
}

func (hs *HandleSet) Len() int { return len(hs.requests) }

// Requests returns the requests in submission order.
func (hs *HandleSet) Requests() []*PendingRequest {
	out := make([]*PendingRequest, len(hs.requests))
	copy(out, hs.requests)
	return out
}

func (hs *HandleSet) claim() error {
	if hs == nil {
		return errors.Wrap(ErrInvalidArgument, "nil handle set")
	}
	if !hs.claimed.CompareAndSwap(false, true) {
		return errors.Wrap(ErrIllegalState, "handle set already consumed")
	}
	return nil
}

// Dispatcher submits batches of independent queries concurrently.
type Dispatcher struct {
	backend Backend
	logger  log.Logger
	metrics *Metrics
	clock   quartz.Clock
}

type DispatcherOption func(*Dispatcher)

// WithClock sets the clock used to timestamp completions.
func WithClock(c quartz.Clock) DispatcherOption {
	return func(d *Dispatcher) { d.clock = c }
}

func WithMetrics(m *Metrics) DispatcherOption {
	return func(d *Dispatcher) { d.metrics = m }
}

func NewDispatcher(backend Backend, logger log.Logger, opts ...DispatcherOption) *Dispatcher {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	d := &Dispatcher{
		backend: backend,
		logger:  logger,
		clock:   quartz.NewReal(),
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Submit issues every query through the backend's asynchronous path and
// returns without waiting for any of them. Request indexes follow the order
// of queries.
func (d *Dispatcher) Submit(ctx context.Context, queries []QuerySpec) (*HandleSet, error) {
	if d.backend == nil {
		return nil, errors.Wrap(ErrInvalidArgument, "nil backend")
	}
	for i, q := range queries {
		if err := q.Validate(); err != nil {
			return nil, errors.Wrapf(err, "query %d", i)
		}
	}

	hs := &HandleSet{requests: make([]*PendingRequest, len(queries))}
	now := d.clock.Now()
	for i, q := range queries {
		hs.requests[i] = newPendingRequest(i, q, now)
	}
	if d.metrics != nil {
		d.metrics.inflight.Add(float64(len(queries)))
	}

	for _, req := range hs.requests {
		h := d.backend.ExecuteAsync(ctx, req.Query)
		if h == nil {
			d.finish(hs, req, nil, errors.New("backend returned no handle"))
			continue
		}
		h.OnComplete(func(page *Page, err error) {
			d.finish(hs, req, page, err)
		})
	}

	level.Debug(d.logger).Log("msg", "submitted fan-out", "queries", len(queries))
	return hs, nil
}

func (d *Dispatcher) finish(hs *HandleSet, req *PendingRequest, page *Page, err error) {
	hs.completions.Lock()
	defer hs.completions.Unlock()

	now := d.clock.Now()
	if err == nil && page == nil {
		err = errors.New("backend completed without a page")
	}
	if !req.complete(page, err, now) {
		return
	}
	if err != nil {
		level.Debug(d.logger).Log("msg", "fan-out request failed", "index", req.Index, "err", err)
	}
	if d.metrics != nil {
		d.metrics.inflight.Dec()
		d.metrics.requests.WithLabelValues(req.State().String()).Inc()
		d.metrics.requestDuration.Observe(now.Sub(req.submittedAt).Seconds())
	}
}
