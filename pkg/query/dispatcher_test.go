package query_test

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/go-kit/log"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grafana/cqlwalk/pkg/query"
	"github.com/grafana/cqlwalk/pkg/query/querytest"
)

// accountLookups builds one query per account number and registers a single
// row answer for each of them.
func accountLookups(backend *querytest.Backend, n int) []query.QuerySpec {
	queries := make([]query.QuerySpec, 0, n)
	for i := 0; i < n; i++ {
		stmt := fmt.Sprintf("SELECT * FROM customers WHERE acct_no = %d", (i+1)*5)
		backend.SetRows(stmt, []query.Row{
			query.NewRow([]string{"acct_no"}, []interface{}{(i + 1) * 5}),
		})
		queries = append(queries, query.NewQuerySpec(stmt))
	}
	return queries
}

func firstAcctNo(t *testing.T, res query.Result) int {
	t.Helper()
	require.NoError(t, res.Err)
	rows := res.Page.Rows()
	require.Len(t, rows, 1)
	n, err := rows[0].Int("acct_no")
	require.NoError(t, err)
	return n
}

func TestWaitAllKeepsSubmissionOrder(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	backend := querytest.NewBackend()
	queries := accountLookups(backend, 20)
	rnd := rand.New(rand.NewSource(42))
	for _, q := range queries {
		backend.SetDelay(q.Statement(), time.Duration(rnd.Intn(30))*time.Millisecond)
	}

	d := query.NewDispatcher(backend, log.NewNopLogger(), query.WithMetrics(query.NewMetrics(prometheus.NewRegistry())))
	hs, err := d.Submit(ctx, queries)
	require.NoError(t, err)
	require.Equal(t, 20, hs.Len())

	results, err := query.WaitAll(ctx, hs)
	require.NoError(t, err)
	require.Len(t, results, 20)
	for i, res := range results {
		assert.Equal(t, i, res.Index)
		assert.Equal(t, (i+1)*5, firstAcctNo(t, res))
	}
	for _, req := range hs.Requests() {
		assert.Equal(t, query.StateCompleted, req.State())
	}
}

func TestWaitAllIsolatesFailures(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	backend := querytest.NewBackend()
	queries := accountLookups(backend, 5)
	boom := errors.New("read timeout from replica")
	backend.SetError(queries[2].Statement(), boom)
	backend.SetDelay(queries[4].Statement(), 20*time.Millisecond)

	hs, err := query.NewDispatcher(backend, nil).Submit(ctx, queries)
	require.NoError(t, err)

	results, err := query.WaitAll(ctx, hs)
	require.NoError(t, err)
	require.Len(t, results, 5)

	for i, res := range results {
		if i == 2 {
			var backendErr *query.BackendError
			require.ErrorAs(t, res.Err, &backendErr)
			require.ErrorIs(t, res.Err, boom)
			require.Nil(t, res.Page)
			continue
		}
		assert.Equal(t, (i+1)*5, firstAcctNo(t, res))
	}
	assert.Equal(t, query.StateFailed, hs.Requests()[2].State())
}

func TestHandleSetConsumedOnce(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	backend := querytest.NewBackend()
	d := query.NewDispatcher(backend, nil)

	hs, err := d.Submit(ctx, accountLookups(backend, 3))
	require.NoError(t, err)
	_, err = query.WaitAll(ctx, hs)
	require.NoError(t, err)

	_, err = query.WaitAll(ctx, hs)
	require.ErrorIs(t, err, query.ErrIllegalState)
	_, err = query.Stream(ctx, hs)
	require.ErrorIs(t, err, query.ErrIllegalState)

	hs, err = d.Submit(ctx, accountLookups(backend, 3))
	require.NoError(t, err)
	s, err := query.Stream(ctx, hs)
	require.NoError(t, err)
	defer s.Close()
	_, err = query.WaitAll(ctx, hs)
	require.ErrorIs(t, err, query.ErrIllegalState)
}

func TestHandleSetRejectsRacingConsumers(t *testing.T) {
	backend := &querytest.ManualBackend{}
	hs, err := query.NewDispatcher(backend, nil).Submit(context.Background(), []query.QuerySpec{
		query.NewQuerySpec("SELECT 1"),
	})
	require.NoError(t, err)

	var (
		wg       sync.WaitGroup
		mtx      sync.Mutex
		rejected int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := query.WaitAll(context.Background(), hs)
			if errors.Is(err, query.ErrIllegalState) {
				mtx.Lock()
				rejected++
				mtx.Unlock()
			}
		}()
	}
	backend.Complete(0)
	wg.Wait()
	require.Equal(t, 7, rejected)
}

func TestSubmitValidatesQueries(t *testing.T) {
	backend := &querytest.ManualBackend{}
	_, err := query.NewDispatcher(backend, nil).Submit(context.Background(), []query.QuerySpec{
		query.NewQuerySpec("SELECT 1"),
		query.NewQuerySpec(""),
	})
	require.ErrorIs(t, err, query.ErrInvalidArgument)

	hs, err := query.NewDispatcher(backend, nil).Submit(context.Background(), nil)
	require.NoError(t, err)
	results, err := query.WaitAll(context.Background(), hs)
	require.NoError(t, err)
	require.Empty(t, results)
}

func TestSubmitDoesNotBlock(t *testing.T) {
	backend := &querytest.ManualBackend{}
	queries := []query.QuerySpec{query.NewQuerySpec("SELECT 1"), query.NewQuerySpec("SELECT 2")}

	hs, err := query.NewDispatcher(backend, nil).Submit(context.Background(), queries)
	require.NoError(t, err)
	for _, req := range hs.Requests() {
		require.Equal(t, query.StatePending, req.State())
	}

	backend.Fail(1, errors.New("unavailable"))
	backend.Complete(0)
	// A late second completion must not change the terminal state.
	backend.Future(1).Complete(query.NewPage(nil, nil), nil)

	results, err := query.WaitAll(context.Background(), hs)
	require.NoError(t, err)
	require.NoError(t, results[0].Err)
	require.Error(t, results[1].Err)
	require.Equal(t, query.StateFailed, hs.Requests()[1].State())
}

func TestWaitAllDeadline(t *testing.T) {
	backend := &querytest.ManualBackend{}
	hs, err := query.NewDispatcher(backend, nil, query.WithClock(quartz.NewMock(t))).Submit(context.Background(), []query.QuerySpec{
		query.NewQuerySpec("SELECT 1"),
		query.NewQuerySpec("SELECT 2"),
		query.NewQuerySpec("SELECT 3"),
	})
	require.NoError(t, err)

	backend.Complete(0)
	backend.Fail(2, errors.New("overloaded"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	results, err := query.WaitAll(ctx, hs)
	require.NoError(t, err)
	require.Len(t, results, 3)

	require.NoError(t, results[0].Err)
	require.ErrorIs(t, results[1].Err, query.ErrTimeout)
	require.ErrorIs(t, results[1].Err, context.DeadlineExceeded)
	var backendErr *query.BackendError
	require.ErrorAs(t, results[2].Err, &backendErr)

	// The timed out request is still in flight and may complete later.
	require.Equal(t, query.StatePending, hs.Requests()[1].State())
	backend.Complete(1)
	require.Equal(t, query.StateCompleted, hs.Requests()[1].State())
}
