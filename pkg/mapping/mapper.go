package mapping

import (
	"context"

	"github.com/pkg/errors"

	"github.com/grafana/cqlwalk/pkg/query"
)

// ErrNotFound is returned by Mapper.Get when no row matches the key.
var ErrNotFound = errors.New("not found")

// Session executes statements for a Mapper.
type Session interface {
	query.Backend
	Exec(ctx context.Context, q query.QuerySpec) error
}

// Mapper saves, loads and deletes T values in the table described by its
// descriptor.
type Mapper[T any] struct {
	table    *Table[T]
	session  Session
	pageSize int
}

// DefaultPageSize is the page size Mapper.Query reads with.
const DefaultPageSize = 100

func NewMapper[T any](table *Table[T], session Session) *Mapper[T] {
	return &Mapper[T]{table: table, session: session, pageSize: DefaultPageSize}
}

// WithPageSize sets the page size used by Query.
func (m *Mapper[T]) WithPageSize(n int) *Mapper[T] {
	m.pageSize = n
	return m
}

func (m *Mapper[T]) Table() *Table[T] { return m.table }

func (m *Mapper[T]) Save(ctx context.Context, v *T) error {
	q := query.NewQuerySpec(m.table.InsertStatement(), m.table.Values(v)...).
		WithConsistency(m.table.WriteConsistency)
	return errors.Wrapf(m.session.Exec(ctx, q), "saving into %s", m.table.QualifiedName())
}

func (m *Mapper[T]) Delete(ctx context.Context, v *T) error {
	q := query.NewQuerySpec(m.table.DeleteStatement(), m.table.Key(v)...).
		WithConsistency(m.table.WriteConsistency)
	return errors.Wrapf(m.session.Exec(ctx, q), "deleting from %s", m.table.QualifiedName())
}

// Get loads the row with the given full primary key.
func (m *Mapper[T]) Get(ctx context.Context, key ...interface{}) (*T, error) {
	if len(key) != len(m.table.PrimaryKey()) {
		return nil, errors.Wrapf(query.ErrInvalidArgument, "%s needs %d key values, got %d", m.table.QualifiedName(), len(m.table.PrimaryKey()), len(key))
	}
	stmt, err := m.table.SelectStatement(len(key))
	if err != nil {
		return nil, errors.Wrap(query.ErrInvalidArgument, err.Error())
	}
	q := query.NewQuerySpec(stmt, key...).WithConsistency(m.table.ReadConsistency).WithFetchSize(1)
	page, err := m.session.ExecuteSync(ctx, q, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "reading from %s", m.table.QualifiedName())
	}
	if !page.Next() {
		return nil, ErrNotFound
	}
	v := new(T)
	if err := m.table.Decode(page.Row(), v); err != nil {
		return nil, err
	}
	return v, nil
}

// Query reads every row matching a primary key prefix, page by page. An empty
// prefix reads the whole table.
func (m *Mapper[T]) Query(ctx context.Context, prefix ...interface{}) ([]*T, error) {
	stmt, err := m.table.SelectStatement(len(prefix))
	if err != nil {
		return nil, errors.Wrap(query.ErrInvalidArgument, err.Error())
	}
	q := query.NewQuerySpec(stmt, prefix...).WithConsistency(m.table.ReadConsistency)
	cursor, err := query.OpenCursor(m.session, q, m.pageSize)
	if err != nil {
		return nil, err
	}

	var out []*T
	for {
		page, err := cursor.FetchNext(ctx)
		if errors.Is(err, query.ErrEndOfResults) {
			return out, nil
		} else if err != nil {
			return out, err
		}
		for page.Next() {
			v := new(T)
			if err := m.table.Decode(page.Row(), v); err != nil {
				return out, err
			}
			out = append(out, v)
		}
	}
}

// IsNotFound reports whether err means no row matched.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
