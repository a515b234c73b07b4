package query

import (
	"context"
	"sync"
	"time"

	"github.com/emirpasic/gods/queues/priorityqueue"
)

// CompletionStream yields the results of a HandleSet in the order the
// requests finished. Requests that finished at the same instant come out by
// ascending submission index.
//
// A stream is finite and cannot be rewound; re-submit the queries to run them
// again.
type CompletionStream struct {
	ctx      context.Context
	requests []*PendingRequest
	notify   chan struct{}

	mtx     sync.Mutex
	queue   *priorityqueue.Queue
	emitted []bool
	count   int
	closed  bool

	expired bool
	cur     Result
}

type completion struct {
	at  time.Time
	req *PendingRequest
}

func byCompletion(a, b interface{}) int {
	ca, cb := a.(completion), b.(completion)
	switch {
	case ca.at.Before(cb.at):
		return -1
	case cb.at.Before(ca.at):
		return 1
	case ca.req.Index < cb.req.Index:
		return -1
	case ca.req.Index > cb.req.Index:
		return 1
	}
	return 0
}

// Stream starts consuming hs in completion order. If ctx expires, results
// that are already available are still emitted; every request that is still
// pending is then emitted with a *TimeoutError.
func Stream(ctx context.Context, hs *HandleSet) (*CompletionStream, error) {
	if err := hs.claim(); err != nil {
		return nil, err
	}
	s := &CompletionStream{
		ctx:      ctx,
		requests: hs.requests,
		notify:   make(chan struct{}, 1),
		queue:    priorityqueue.NewWith(byCompletion),
		emitted:  make([]bool, len(hs.requests)),
	}
	for _, req := range hs.requests {
		req.subscribe(s.push)
	}
	return s, nil
}

// push is called from completion callbacks, on any goroutine.
func (s *CompletionStream) push(req *PendingRequest) {
	req.mtx.Lock()
	at := req.completedAt
	req.mtx.Unlock()

	s.mtx.Lock()
	if s.closed || s.emitted[req.Index] {
		s.mtx.Unlock()
		return
	}
	s.queue.Enqueue(completion{at: at, req: req})
	s.mtx.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// Next advances to the next result. It blocks only while no request has
// finished since the last call, and returns false once every request has been
// emitted or the stream was closed.
func (s *CompletionStream) Next() bool {
	for {
		s.mtx.Lock()
		if s.closed || s.count == len(s.requests) {
			s.mtx.Unlock()
			return false
		}
		if v, ok := s.queue.Dequeue(); ok {
			req := v.(completion).req
			s.emit(req, nil)
			s.mtx.Unlock()
			return true
		}
		if s.expired {
			for _, req := range s.requests {
				if !s.emitted[req.Index] {
					s.emit(req, s.ctx.Err())
					break
				}
			}
			s.mtx.Unlock()
			return true
		}
		s.mtx.Unlock()

		select {
		case <-s.notify:
		case <-s.ctx.Done():
			s.expired = true
		}
	}
}

// emit must be called with s.mtx held.
func (s *CompletionStream) emit(req *PendingRequest, cause error) {
	s.emitted[req.Index] = true
	s.count++
	s.cur = req.resultOrTimeout(cause)
}

// At returns the current result.
func (s *CompletionStream) At() Result { return s.cur }

// Remaining is the number of results not emitted yet.
func (s *CompletionStream) Remaining() int {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return len(s.requests) - s.count
}

// Close stops the stream; later calls to Next return false, and a Next blocked
// on another goroutine returns false too.
func (s *CompletionStream) Close() error {
	s.mtx.Lock()
	s.closed = true
	s.queue.Clear()
	s.mtx.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
	return nil
}
