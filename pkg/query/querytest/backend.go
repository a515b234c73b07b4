// Package querytest provides in-memory query.Backend implementations for tests
// and dry runs.
package querytest

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/grafana/cqlwalk/pkg/query"
)

// Backend serves rows from memory. Each statement maps to its own table of
// rows; tokens are row offsets and mean nothing outside this backend.
type Backend struct {
	mtx       sync.Mutex
	tables    map[string][]query.Row
	delays    map[string]time.Duration
	failures  map[string]error
	syncErr   error
	failAfter int
	syncCalls int
}

func NewBackend() *Backend {
	return &Backend{
		tables:    map[string][]query.Row{},
		delays:    map[string]time.Duration{},
		failures:  map[string]error{},
		failAfter: -1,
	}
}

// SetRows sets the rows returned for statement.
func (b *Backend) SetRows(statement string, rows []query.Row) {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	b.tables[statement] = rows
}

// SetDelay delays asynchronous completions of statement.
func (b *Backend) SetDelay(statement string, d time.Duration) {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	b.delays[statement] = d
}

// SetError makes every execution of statement fail with err.
func (b *Backend) SetError(statement string, err error) {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	b.failures[statement] = err
}

// FailSyncAfter lets n synchronous fetches succeed and fails the following
// ones with err.
func (b *Backend) FailSyncAfter(n int, err error) {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	b.failAfter = n
	b.syncErr = err
}

// SyncCalls is the number of ExecuteSync calls served so far.
func (b *Backend) SyncCalls() int {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	return b.syncCalls
}

func (b *Backend) ExecuteSync(ctx context.Context, q query.QuerySpec, token query.ContinuationToken) (*query.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mtx.Lock()
	defer b.mtx.Unlock()
	b.syncCalls++
	if b.failAfter >= 0 && b.syncCalls > b.failAfter {
		return nil, b.syncErr
	}
	if err := b.failures[q.Statement()]; err != nil {
		return nil, err
	}

	rows := b.tables[q.Statement()]
	offset := 0
	if len(token) > 0 {
		n, err := strconv.Atoi(string(token))
		if err != nil || n < 0 || n > len(rows) {
			return nil, errors.Errorf("invalid paging state %q", token)
		}
		offset = n
	}

	size := q.FetchSize()
	if size <= 0 {
		size = len(rows) - offset
	}
	end := offset + size
	if end > len(rows) {
		end = len(rows)
	}

	var next query.ContinuationToken
	if end < len(rows) {
		next = query.ContinuationToken(strconv.Itoa(end))
	}
	return query.NewPage(copyRows(rows[offset:end]), next), nil
}

func (b *Backend) ExecuteAsync(ctx context.Context, q query.QuerySpec) query.Handle {
	b.mtx.Lock()
	delay := b.delays[q.Statement()]
	failure := b.failures[q.Statement()]
	rows := copyRows(b.tables[q.Statement()])
	b.mtx.Unlock()

	return query.RunAsync(ctx, func(ctx context.Context) (*query.Page, error) {
		if delay > 0 {
			t := time.NewTimer(delay)
			defer t.Stop()
			select {
			case <-t.C:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		if failure != nil {
			return nil, failure
		}
		return query.NewPage(rows, nil), nil
	})
}

func copyRows(rows []query.Row) []query.Row {
	out := make([]query.Row, len(rows))
	copy(out, rows)
	return out
}

// Customers generates n customer rows with account numbers 1..n.
func Customers(n int) []query.Row {
	rows := make([]query.Row, 0, n)
	for i := 1; i <= n; i++ {
		rows = append(rows, query.NewRow(
			[]string{"acct_no", "first_name", "last_name", "tier"},
			[]interface{}{i, fmt.Sprintf("first%d", i), fmt.Sprintf("last%d", i), i%3 + 1},
		))
	}
	return rows
}

// ManualBackend hands out futures that the test completes explicitly.
type ManualBackend struct {
	mtx     sync.Mutex
	futures []*query.Future
	queries []query.QuerySpec
}

func (b *ManualBackend) ExecuteSync(context.Context, query.QuerySpec, query.ContinuationToken) (*query.Page, error) {
	return nil, errors.New("manual backend does not support synchronous fetches")
}

func (b *ManualBackend) ExecuteAsync(_ context.Context, q query.QuerySpec) query.Handle {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	f := query.NewFuture()
	b.futures = append(b.futures, f)
	b.queries = append(b.queries, q)
	return f
}

// Future returns the future of the i-th submitted query.
func (b *ManualBackend) Future(i int) *query.Future {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	return b.futures[i]
}

// Complete completes the i-th submitted query with a single row page.
func (b *ManualBackend) Complete(i int) {
	b.Future(i).Complete(query.NewPage([]query.Row{
		query.NewRow([]string{"index"}, []interface{}{i}),
	}, nil), nil)
}

// Fail fails the i-th submitted query.
func (b *ManualBackend) Fail(i int, err error) {
	b.Future(i).Complete(nil, err)
}
