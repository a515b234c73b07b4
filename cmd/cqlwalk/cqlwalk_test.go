package main

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/go-kit/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grafana/cqlwalk/pkg/mapping"
	"github.com/grafana/cqlwalk/pkg/query"
	"github.com/grafana/cqlwalk/pkg/query/querytest"
)

func init() {
	color.NoColor = true
}

func TestRunPagesResumes(t *testing.T) {
	ctx := context.Background()
	backend := querytest.NewBackend()
	q := query.NewQuerySpec("SELECT * FROM bank.customers_by_tier WHERE tier = ?", 1)
	backend.SetRows(q.Statement(), querytest.Customers(45))

	var first bytes.Buffer
	require.NoError(t, runPages(ctx, &first, backend, q, 20, "", 1))
	out := first.String()
	assert.Contains(t, out, "page 1 (20 rows)")
	assert.NotContains(t, out, "end of results")

	idx := strings.LastIndex(out, "state: ")
	require.NotEqual(t, -1, idx)
	state := strings.TrimSpace(out[idx+len("state: "):])

	var rest bytes.Buffer
	require.NoError(t, runPages(ctx, &rest, backend, q, 20, state, 0))
	out = rest.String()
	assert.Contains(t, out, "page 1 (20 rows)")
	assert.Contains(t, out, "page 2 (5 rows)")
	assert.Contains(t, out, "21 first21 last21")
	assert.NotContains(t, out, "20 first20 last20")
	assert.Contains(t, out, "end of results")

	var wrong bytes.Buffer
	assert.Error(t, runPages(ctx, &wrong, backend, q, 10, state, 0))
}

func TestTierQuery(t *testing.T) {
	q, err := tierQuery(tieredTable("bank"), 2, query.ConsistencyLocalQuorum)
	require.NoError(t, err)
	assert.Equal(t, "SELECT tier, acct_no, first_name, last_name FROM bank.customers_by_tier WHERE tier = ?", q.Statement())
	assert.Equal(t, []interface{}{2}, q.Values())
	assert.Equal(t, query.ConsistencyLocalQuorum, q.Consistency())
}

func TestAccountQueries(t *testing.T) {
	table := customersTable("bank")

	queries, err := accountQueries(table, 5, 100, 5)
	require.NoError(t, err)
	require.Len(t, queries, 20)
	assert.Equal(t, []interface{}{5}, queries[0].Values())
	assert.Equal(t, []interface{}{100}, queries[19].Values())
	assert.Equal(t, "SELECT acct_no, first_name, last_name FROM bank.customers WHERE acct_no = ?", queries[0].Statement())
	assert.Equal(t, query.ConsistencyLocalOne, queries[0].Consistency())

	_, err = accountQueries(table, 10, 5, 1)
	assert.Error(t, err)
	_, err = accountQueries(table, 1, 5, 0)
	assert.Error(t, err)
}

func TestRunFanout(t *testing.T) {
	backend := querytest.NewBackend()
	queries, err := accountQueries(customersTable("bank"), 5, 20, 5)
	require.NoError(t, err)
	backend.SetRows(queries[0].Statement(), querytest.Customers(1))

	var buf bytes.Buffer
	d := query.NewDispatcher(backend, log.NewNopLogger())
	require.NoError(t, runFanout(context.Background(), &buf, d, queries, time.Second))

	out := buf.String()
	submission := strings.Index(out, "in submission order:")
	completion := strings.Index(out, "in completion order:")
	require.True(t, submission >= 0 && completion > submission)
	for _, idx := range []string{"#0", "#1", "#2", "#3"} {
		assert.Equal(t, 2, strings.Count(out, idx), idx)
	}
	assert.True(t, strings.Index(out, "#0") < strings.Index(out, "#3"))
}

// memorySession stores rows by primary key, enough to run the mapping
// walkthrough without a cluster.
type memorySession struct {
	table *mapping.Table[TieredCustomer]

	mtx  sync.Mutex
	rows map[[2]int]TieredCustomer
}

func (s *memorySession) Exec(_ context.Context, q query.QuerySpec) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	v := q.Values()
	switch q.Statement() {
	case s.table.InsertStatement():
		c, err := s.table.FromValues(v)
		if err != nil {
			return err
		}
		s.rows[[2]int{c.Tier, c.AcctNo}] = *c
	case s.table.DeleteStatement():
		delete(s.rows, [2]int{v[0].(int), v[1].(int)})
	}
	return nil
}

func (s *memorySession) ExecuteSync(_ context.Context, q query.QuerySpec, _ query.ContinuationToken) (*query.Page, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	v := q.Values()
	var rows []query.Row
	for key, c := range s.rows {
		if key[0] != v[0].(int) || (len(v) > 1 && key[1] != v[1].(int)) {
			continue
		}
		rows = append(rows, query.NewRow(s.table.Columns(), s.table.Values(&c)))
	}
	return query.NewPage(rows, nil), nil
}

func (s *memorySession) ExecuteAsync(ctx context.Context, q query.QuerySpec) query.Handle {
	return query.RunAsync(ctx, func(ctx context.Context) (*query.Page, error) {
		return s.ExecuteSync(ctx, q, nil)
	})
}

func TestRunMapping(t *testing.T) {
	table := tieredTable("bank")
	session := &memorySession{table: table, rows: map[[2]int]TieredCustomer{
		{2, 7}: {Tier: 2, AcctNo: 7, FirstName: "Ada", LastName: "Lovelace"},
	}}

	var buf bytes.Buffer
	require.NoError(t, runMapping(context.Background(), &buf, mapping.NewMapper(table, session), 2, 1001))

	out := buf.String()
	assert.Contains(t, out, "get: 2 1001 Jane Doe")
	assert.Contains(t, out, "tier 2: 2 customers")
	assert.Contains(t, out, "tier 2, acct 1001: Jane Smith")
	assert.Contains(t, out, "get after delete: not found")
	assert.Len(t, session.rows, 1)
}

func TestRunGet(t *testing.T) {
	table := customersTable("bank")
	backend := querytest.NewBackend()
	byKey, err := table.SelectStatement(1)
	require.NoError(t, err)
	all, err := table.SelectStatement(0)
	require.NoError(t, err)

	row := query.NewRow(table.Columns(), []interface{}{3, "Grace", "Hopper"})
	backend.SetRows(byKey, []query.Row{row})
	backend.SetRows(all+" LIMIT ?", []query.Row{row, row})

	session := &fakeSession{Backend: backend}
	var buf bytes.Buffer
	require.NoError(t, runGet(context.Background(), &buf, session, table, 3, 2))
	assert.Contains(t, buf.String(), "account 3: Grace Hopper")
	assert.Contains(t, buf.String(), "page 1 (2 rows)")

	backend.SetRows(byKey, nil)
	buf.Reset()
	require.NoError(t, runGet(context.Background(), &buf, session, table, 4, 0))
	assert.Contains(t, buf.String(), "account 4 not found")
}

type fakeSession struct {
	*querytest.Backend
}

func (fakeSession) Exec(context.Context, query.QuerySpec) error { return nil }
