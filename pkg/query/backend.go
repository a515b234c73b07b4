package query

import (
	"context"
)

// Backend is the narrow capability the orchestration layer needs from a data
// store. Implementations own their I/O goroutines; the core only submits work
// and reacts to completions.
type Backend interface {
	// ExecuteSync performs one bounded fetch of q, resuming from token when
	// it is non-empty.
	ExecuteSync(ctx context.Context, q QuerySpec, token ContinuationToken) (*Page, error)

	// ExecuteAsync submits q as a full, non paginated query and returns
	// without waiting for it.
	ExecuteAsync(ctx context.Context, q QuerySpec) Handle
}

// Handle is the eventual result of an asynchronous query.
type Handle interface {
	// IsDone polls for completion.
	IsDone() bool
	// Done is closed once the result is available.
	Done() <-chan struct{}
	// Get blocks until the result is available or ctx is done.
	Get(ctx context.Context) (*Page, error)
	// OnComplete registers fn to run once with the result. fn may run on any
	// goroutine, and runs immediately if the handle is already done.
	OnComplete(fn func(*Page, error))
}
