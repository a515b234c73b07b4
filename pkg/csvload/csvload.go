// Package csvload reads comma separated sample data into typed column values.
package csvload

import (
	"encoding/csv"
	"io"
	"os"

	"github.com/pkg/errors"

	"github.com/grafana/cqlwalk/pkg/mapping"
)

// Read parses every line of r into values of the given column types. Lines
// must have exactly len(types) fields; blank lines are skipped.
func Read(r io.Reader, types []mapping.ColumnType) ([][]interface{}, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(types)
	cr.TrimLeadingSpace = true

	var out [][]interface{}
	for {
		record, err := cr.Read()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, errors.Wrap(err, "reading csv")
		}
		line, _ := cr.FieldPos(0)
		values := make([]interface{}, len(types))
		for i, t := range types {
			if values[i], err = mapping.ParseValue(t, record[i]); err != nil {
				return nil, errors.Wrapf(err, "line %d, field %d", line, i+1)
			}
		}
		out = append(out, values)
	}
}

// ReadFile is Read over the named file.
func ReadFile(path string, types []mapping.ColumnType) ([][]interface{}, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer f.Close()
	return Read(f, types)
}

// Decode reads r into values of T described by table, in field order.
func Decode[T any](r io.Reader, table *mapping.Table[T]) ([]*T, error) {
	records, err := Read(r, table.Types())
	if err != nil {
		return nil, err
	}
	out := make([]*T, 0, len(records))
	for i, rec := range records {
		v, err := table.FromValues(rec)
		if err != nil {
			return nil, errors.Wrapf(err, "record %d", i+1)
		}
		out = append(out, v)
	}
	return out, nil
}
