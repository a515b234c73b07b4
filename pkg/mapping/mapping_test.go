package mapping

import (
	"context"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grafana/cqlwalk/pkg/query"
	"github.com/grafana/cqlwalk/pkg/query/querytest"
)

type customer struct {
	Country   string
	Tier      int
	AcctNo    int
	FirstName string
}

func customerTable(t *testing.T) *Table[customer] {
	table, err := NewTable("bank", "customers",
		TextField("Country", "country", func(c *customer) *string { return &c.Country }).Partition(),
		IntField("Tier", "tier", func(c *customer) *int { return &c.Tier }).Partition(),
		IntField("AcctNo", "acct_no", func(c *customer) *int { return &c.AcctNo }).Clustering(),
		TextField("FirstName", "first_name", func(c *customer) *string { return &c.FirstName }),
	)
	require.NoError(t, err)
	return table.WithConsistency(query.ConsistencyLocalOne, query.ConsistencyLocalQuorum)
}

func TestStatements(t *testing.T) {
	table := customerTable(t)

	assert.Equal(t, "CREATE TABLE IF NOT EXISTS bank.customers (country text, tier int, acct_no int, first_name text, PRIMARY KEY ((country, tier), acct_no))", table.CreateStatement())
	assert.Equal(t, "INSERT INTO bank.customers (country, tier, acct_no, first_name) VALUES (?, ?, ?, ?)", table.InsertStatement())
	assert.Equal(t, "DELETE FROM bank.customers WHERE country = ? AND tier = ? AND acct_no = ?", table.DeleteStatement())

	for _, tc := range []struct {
		keys     int
		expected string
		err      bool
	}{
		{keys: 0, expected: "SELECT country, tier, acct_no, first_name FROM bank.customers"},
		{keys: 1, err: true},
		{keys: 2, expected: "SELECT country, tier, acct_no, first_name FROM bank.customers WHERE country = ? AND tier = ?"},
		{keys: 3, expected: "SELECT country, tier, acct_no, first_name FROM bank.customers WHERE country = ? AND tier = ? AND acct_no = ?"},
		{keys: 4, err: true},
	} {
		stmt, err := table.SelectStatement(tc.keys)
		if tc.err {
			assert.Error(t, err, "keys=%d", tc.keys)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tc.expected, stmt)
	}
}

func TestNewTableValidation(t *testing.T) {
	name := TextField("Name", "name", func(c *customer) *string { return &c.FirstName })

	_, err := NewTable[customer]("bank", "customers")
	assert.Error(t, err)

	_, err = NewTable("bank", "customers", name)
	assert.Error(t, err, "no partition key")

	_, err = NewTable("bank", "customers", name.Partition(), name)
	assert.Error(t, err, "duplicate column")

	_, err = NewTable("", "customers", name.Partition())
	assert.Error(t, err)

	_, err = NewTable("bank", "customers", Field[customer]{Name: "x", Column: "x", Kind: PartitionKey})
	assert.Error(t, err, "missing accessors")
}

func TestValuesAndDecode(t *testing.T) {
	table := customerTable(t)
	c := &customer{Country: "US", Tier: 2, AcctNo: 42, FirstName: "Ada"}

	assert.Equal(t, []interface{}{"US", 2, 42, "Ada"}, table.Values(c))
	assert.Equal(t, []interface{}{"US", 2, 42}, table.Key(c))

	row := query.NewRow(table.Columns(), []interface{}{"US", int32(2), int64(42), nil})
	var got customer
	require.NoError(t, table.Decode(row, &got))
	assert.Equal(t, customer{Country: "US", Tier: 2, AcctNo: 42}, got)

	bad := query.NewRow([]string{"country"}, []interface{}{"US"})
	assert.Error(t, table.Decode(bad, &got))

	wrongType := query.NewRow(table.Columns(), []interface{}{"US", "two", 42, "Ada"})
	assert.Error(t, table.Decode(wrongType, &got))
}

func TestFromValues(t *testing.T) {
	table := customerTable(t)

	c, err := table.FromValues([]interface{}{"DE", 1, 7, "Grace"})
	require.NoError(t, err)
	assert.Equal(t, &customer{Country: "DE", Tier: 1, AcctNo: 7, FirstName: "Grace"}, c)

	_, err = table.FromValues([]interface{}{"DE"})
	assert.Error(t, err)
}

func TestParseValue(t *testing.T) {
	for _, tc := range []struct {
		typ      ColumnType
		in       string
		expected interface{}
		err      bool
	}{
		{typ: Text, in: " Ada ", expected: "Ada"},
		{typ: Int, in: "12", expected: 12},
		{typ: Int, in: "99999999999", err: true},
		{typ: BigInt, in: "99999999999", expected: int64(99999999999)},
		{typ: Boolean, in: "true", expected: true},
		{typ: Double, in: "1.5", expected: 1.5},
		{typ: Int, in: "x", err: true},
		{typ: ColumnType("blob"), in: "x", err: true},
	} {
		v, err := ParseValue(tc.typ, tc.in)
		if tc.err {
			assert.Error(t, err, "%s %q", tc.typ, tc.in)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tc.expected, v)
	}
}

type fakeSession struct {
	*querytest.Backend

	mtx   sync.Mutex
	execs []query.QuerySpec
}

func (s *fakeSession) Exec(_ context.Context, q query.QuerySpec) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.execs = append(s.execs, q)
	return nil
}

func TestMapper(t *testing.T) {
	ctx := context.Background()
	table := customerTable(t)
	session := &fakeSession{Backend: querytest.NewBackend()}
	m := NewMapper(table, session).WithPageSize(3)

	c := &customer{Country: "US", Tier: 1, AcctNo: 5, FirstName: "Ada"}
	require.NoError(t, m.Save(ctx, c))
	require.NoError(t, m.Delete(ctx, c))
	require.Len(t, session.execs, 2)
	assert.Equal(t, table.InsertStatement(), session.execs[0].Statement())
	assert.Equal(t, table.Values(c), session.execs[0].Values())
	assert.Equal(t, query.ConsistencyLocalQuorum, session.execs[0].Consistency())
	assert.Equal(t, table.Key(c), session.execs[1].Values())

	byPartition, _ := table.SelectStatement(2)
	var rows []query.Row
	for i := 1; i <= 7; i++ {
		rows = append(rows, query.NewRow(table.Columns(), []interface{}{"US", 1, i, "n"}))
	}
	session.SetRows(byPartition, rows)

	all, err := m.Query(ctx, "US", 1)
	require.NoError(t, err)
	require.Len(t, all, 7)
	for i, c := range all {
		assert.Equal(t, i+1, c.AcctNo)
	}
	assert.Equal(t, 3, session.SyncCalls(), "7 rows in pages of 3")

	_, err = m.Query(ctx, "US")
	assert.True(t, errors.Is(err, query.ErrInvalidArgument))

	byKey, _ := table.SelectStatement(3)
	session.SetRows(byKey, rows[:1])
	got, err := m.Get(ctx, "US", 1, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, got.AcctNo)

	session.SetRows(byKey, nil)
	_, err = m.Get(ctx, "US", 1, 1)
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = m.Get(ctx, "US", 1)
	assert.True(t, errors.Is(err, query.ErrInvalidArgument))
}
