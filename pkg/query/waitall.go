package query

import (
	"context"
)

// WaitAll blocks until every request of hs is terminal and returns one result
// per request, ordered by submission index regardless of completion order.
//
// If ctx expires first, requests that already finished keep their result and
// the remaining slots hold a *TimeoutError. In-flight requests are left alone.
func WaitAll(ctx context.Context, hs *HandleSet) ([]Result, error) {
	if err := hs.claim(); err != nil {
		return nil, err
	}

	results := make([]Result, len(hs.requests))
	expired := false
	for i, req := range hs.requests {
		if !expired {
			select {
			case <-req.Done():
			case <-ctx.Done():
				expired = true
			}
		}
		results[i] = req.resultOrTimeout(ctx.Err())
	}
	return results, nil
}
