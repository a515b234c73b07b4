package query

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Row is a read-only mapping from column name to value. Rows are produced by
// a Backend and never modified afterwards.
type Row struct {
	columns []string
	values  map[string]interface{}
}

// NewRow builds a Row from parallel column and value slices.
func NewRow(columns []string, values []interface{}) Row {
	r := Row{
		columns: make([]string, 0, len(columns)),
		values:  make(map[string]interface{}, len(columns)),
	}
	for i, c := range columns {
		var v interface{}
		if i < len(values) {
			v = values[i]
		}
		if _, ok := r.values[c]; !ok {
			r.columns = append(r.columns, c)
		}
		r.values[c] = v
	}
	return r
}

// Columns returns the column names in the order the backend reported them.
func (r Row) Columns() []string {
	out := make([]string, len(r.columns))
	copy(out, r.columns)
	return out
}

// Len is the number of columns in the row.
func (r Row) Len() int { return len(r.columns) }

// Get returns the raw value of a column.
func (r Row) Get(column string) (interface{}, bool) {
	v, ok := r.values[column]
	return v, ok
}

// Int returns an integer column.
func (r Row) Int(column string) (int, error) {
	v, ok := r.values[column]
	if !ok {
		return 0, errors.Errorf("column %q not found", column)
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int8:
		return int(n), nil
	case int16:
		return int(n), nil
	case int32:
		return int(n), nil
	case int64:
		return int(n), nil
	case nil:
		return 0, errors.Errorf("column %q is null", column)
	default:
		return 0, errors.Errorf("column %q is %T, not an integer", column, v)
	}
}

// String returns a text column.
func (r Row) String(column string) (string, error) {
	v, ok := r.values[column]
	if !ok {
		return "", errors.Errorf("column %q not found", column)
	}
	switch s := v.(type) {
	case string:
		return s, nil
	case []byte:
		return string(s), nil
	case nil:
		return "", errors.Errorf("column %q is null", column)
	default:
		return "", errors.Errorf("column %q is %T, not text", column, v)
	}
}

// Format renders the row values separated by spaces, in column order.
func (r Row) Format() string {
	parts := make([]string, 0, len(r.columns))
	for _, c := range r.columns {
		parts = append(parts, fmt.Sprint(r.values[c]))
	}
	return strings.Join(parts, " ")
}
