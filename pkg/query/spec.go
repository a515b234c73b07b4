package query

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Consistency is the consistency requirement of a query. The core passes it
// through to the Backend untouched.
type Consistency string

const (
	ConsistencyDefault     Consistency = ""
	ConsistencyOne         Consistency = "ONE"
	ConsistencyLocalOne    Consistency = "LOCAL_ONE"
	ConsistencyQuorum      Consistency = "QUORUM"
	ConsistencyLocalQuorum Consistency = "LOCAL_QUORUM"
	ConsistencyAll         Consistency = "ALL"
)

// QuerySpec is an immutable description of one bounded query. The With*
// methods return modified copies.
type QuerySpec struct {
	statement   string
	values      []interface{}
	fetchSize   int
	consistency Consistency
}

// NewQuerySpec describes a statement with its bound values.
func NewQuerySpec(statement string, values ...interface{}) QuerySpec {
	v := make([]interface{}, len(values))
	copy(v, values)
	return QuerySpec{statement: statement, values: v}
}

func (q QuerySpec) Statement() string { return q.statement }

// Values returns a copy of the bound values.
func (q QuerySpec) Values() []interface{} {
	v := make([]interface{}, len(q.values))
	copy(v, q.values)
	return v
}

// FetchSize is the page size; zero leaves it to the backend.
func (q QuerySpec) FetchSize() int { return q.fetchSize }

func (q QuerySpec) Consistency() Consistency { return q.consistency }

func (q QuerySpec) WithFetchSize(n int) QuerySpec {
	q.fetchSize = n
	return q
}

func (q QuerySpec) WithConsistency(c Consistency) QuerySpec {
	q.consistency = c
	return q
}

// Validate checks the query can be submitted.
func (q QuerySpec) Validate() error {
	if strings.TrimSpace(q.statement) == "" {
		return errors.Wrap(ErrInvalidArgument, "empty statement")
	}
	if q.fetchSize < 0 {
		return errors.Wrapf(ErrInvalidArgument, "negative fetch size %d", q.fetchSize)
	}
	return nil
}

func (q QuerySpec) String() string {
	return fmt.Sprintf("%s %v", q.statement, q.values)
}
