package mapping

import (
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// ColumnType is a CQL column type.
type ColumnType string

const (
	Text      ColumnType = "text"
	Int       ColumnType = "int"
	BigInt    ColumnType = "bigint"
	Boolean   ColumnType = "boolean"
	Double    ColumnType = "double"
	Timestamp ColumnType = "timestamp"
)

// ParseValue converts the textual form of a value, as found in CSV input,
// to the Go type the driver binds for t.
func ParseValue(t ColumnType, s string) (interface{}, error) {
	s = strings.TrimSpace(s)
	switch t {
	case Text:
		return s, nil
	case Int:
		n, err := strconv.ParseInt(s, 10, 32)
		if err != nil {
			return nil, errors.Wrapf(err, "parsing %q as %s", s, t)
		}
		return int(n), nil
	case BigInt:
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "parsing %q as %s", s, t)
		}
		return n, nil
	case Boolean:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return nil, errors.Wrapf(err, "parsing %q as %s", s, t)
		}
		return b, nil
	case Double:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "parsing %q as %s", s, t)
		}
		return f, nil
	case Timestamp:
		ts, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return nil, errors.Wrapf(err, "parsing %q as %s", s, t)
		}
		return ts, nil
	default:
		return nil, errors.Errorf("unsupported column type %q", t)
	}
}

func toInt(v interface{}) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int32:
		return int(n), nil
	case int64:
		return int(n), nil
	case int16:
		return int(n), nil
	case int8:
		return int(n), nil
	default:
		return 0, errors.Errorf("cannot convert %T to int", v)
	}
}
