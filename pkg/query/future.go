package query

import (
	"context"
	"sync"

	"github.com/pkg/errors"
)

// Future is the Handle implementation shared by backends.
type Future struct {
	done chan struct{}

	mtx       sync.Mutex
	completed bool
	page      *Page
	err       error
	callbacks []func(*Page, error)
}

func NewFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// RunAsync runs fn on a new goroutine and completes the returned handle with
// its result.
func RunAsync(ctx context.Context, fn func(context.Context) (*Page, error)) Handle {
	f := NewFuture()
	go func() {
		page, err := fn(ctx)
		f.Complete(page, err)
	}()
	return f
}

// Complete sets the result. Only the first call has an effect; it reports
// whether this call completed the future.
func (f *Future) Complete(page *Page, err error) bool {
	f.mtx.Lock()
	if f.completed {
		f.mtx.Unlock()
		return false
	}
	f.completed = true
	f.page, f.err = page, err
	callbacks := f.callbacks
	f.callbacks = nil
	close(f.done)
	f.mtx.Unlock()

	for _, fn := range callbacks {
		fn(page, err)
	}
	return true
}

func (f *Future) IsDone() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

func (f *Future) Done() <-chan struct{} { return f.done }

func (f *Future) Get(ctx context.Context) (*Page, error) {
	if !f.IsDone() {
		select {
		case <-f.done:
		case <-ctx.Done():
			return nil, errors.WithStack(ctx.Err())
		}
	}
	f.mtx.Lock()
	defer f.mtx.Unlock()
	return f.page, f.err
}

func (f *Future) OnComplete(fn func(*Page, error)) {
	f.mtx.Lock()
	if !f.completed {
		f.callbacks = append(f.callbacks, fn)
		f.mtx.Unlock()
		return
	}
	page, err := f.page, f.err
	f.mtx.Unlock()
	fn(page, err)
}
