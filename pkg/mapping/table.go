// Package mapping maps Go structs to tables through an explicit schema
// descriptor: an ordered list of fields, each naming its column, CQL type and
// accessor functions. Nothing is discovered through reflection.
package mapping

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/grafana/cqlwalk/pkg/query"
)

// Kind is the role of a column in the primary key.
type Kind int

const (
	Regular Kind = iota
	PartitionKey
	ClusteringColumn
)

// Field describes one mapped column of T.
type Field[T any] struct {
	Name   string
	Column string
	Type   ColumnType
	Kind   Kind

	Get func(*T) interface{}
	Set func(*T, interface{}) error
}

// Partition returns a copy of f used as the next partition key component.
func (f Field[T]) Partition() Field[T] {
	f.Kind = PartitionKey
	return f
}

// Clustering returns a copy of f used as the next clustering column.
func (f Field[T]) Clustering() Field[T] {
	f.Kind = ClusteringColumn
	return f
}

// TextField maps a string field through its address.
func TextField[T any](name, column string, addr func(*T) *string) Field[T] {
	return Field[T]{
		Name:   name,
		Column: column,
		Type:   Text,
		Get:    func(v *T) interface{} { return *addr(v) },
		Set: func(v *T, x interface{}) error {
			switch s := x.(type) {
			case string:
				*addr(v) = s
			case []byte:
				*addr(v) = string(s)
			default:
				return errors.Errorf("cannot convert %T to string", x)
			}
			return nil
		},
	}
}

// IntField maps an int field through its address.
func IntField[T any](name, column string, addr func(*T) *int) Field[T] {
	return Field[T]{
		Name:   name,
		Column: column,
		Type:   Int,
		Get:    func(v *T) interface{} { return *addr(v) },
		Set: func(v *T, x interface{}) error {
			n, err := toInt(x)
			if err != nil {
				return err
			}
			*addr(v) = n
			return nil
		},
	}
}

// Table is the schema descriptor of T. Field order is column order; key
// fields keep their relative order inside the partition and clustering keys.
type Table[T any] struct {
	Keyspace string
	Name     string
	Fields   []Field[T]

	ReadConsistency  query.Consistency
	WriteConsistency query.Consistency
}

// NewTable validates the descriptor.
func NewTable[T any](keyspace, name string, fields ...Field[T]) (*Table[T], error) {
	if keyspace == "" || name == "" {
		return nil, errors.New("keyspace and table name are required")
	}
	if len(fields) == 0 {
		return nil, errors.Errorf("table %s.%s has no fields", keyspace, name)
	}
	seen := map[string]struct{}{}
	partition := 0
	for _, f := range fields {
		if f.Column == "" || f.Get == nil || f.Set == nil {
			return nil, errors.Errorf("table %s.%s: field %q is incomplete", keyspace, name, f.Name)
		}
		if _, ok := seen[f.Column]; ok {
			return nil, errors.Errorf("table %s.%s: duplicate column %q", keyspace, name, f.Column)
		}
		seen[f.Column] = struct{}{}
		if f.Kind == PartitionKey {
			partition++
		}
	}
	if partition == 0 {
		return nil, errors.Errorf("table %s.%s has no partition key", keyspace, name)
	}
	return &Table[T]{Keyspace: keyspace, Name: name, Fields: fields}, nil
}

// MustNewTable is NewTable for descriptors declared at init time.
func MustNewTable[T any](keyspace, name string, fields ...Field[T]) *Table[T] {
	t, err := NewTable(keyspace, name, fields...)
	if err != nil {
		panic(err)
	}
	return t
}

// WithConsistency sets read and write consistency.
func (t *Table[T]) WithConsistency(read, write query.Consistency) *Table[T] {
	t.ReadConsistency, t.WriteConsistency = read, write
	return t
}

func (t *Table[T]) QualifiedName() string {
	return t.Keyspace + "." + t.Name
}

func (t *Table[T]) Columns() []string {
	out := make([]string, 0, len(t.Fields))
	for _, f := range t.Fields {
		out = append(out, f.Column)
	}
	return out
}

// Types returns the column types in field order.
func (t *Table[T]) Types() []ColumnType {
	out := make([]ColumnType, 0, len(t.Fields))
	for _, f := range t.Fields {
		out = append(out, f.Type)
	}
	return out
}

func (t *Table[T]) fieldsOfKind(k Kind) []Field[T] {
	var out []Field[T]
	for _, f := range t.Fields {
		if f.Kind == k {
			out = append(out, f)
		}
	}
	return out
}

// PrimaryKey returns the partition key fields followed by the clustering columns.
func (t *Table[T]) PrimaryKey() []Field[T] {
	return append(t.fieldsOfKind(PartitionKey), t.fieldsOfKind(ClusteringColumn)...)
}

func columnsOf[T any](fields []Field[T]) []string {
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		out = append(out, f.Column)
	}
	return out
}

func (t *Table[T]) CreateStatement() string {
	defs := make([]string, 0, len(t.Fields)+1)
	for _, f := range t.Fields {
		defs = append(defs, fmt.Sprintf("%s %s", f.Column, f.Type))
	}
	partition := strings.Join(columnsOf(t.fieldsOfKind(PartitionKey)), ", ")
	key := "(" + partition + ")"
	if clustering := columnsOf(t.fieldsOfKind(ClusteringColumn)); len(clustering) > 0 {
		key += ", " + strings.Join(clustering, ", ")
	}
	defs = append(defs, fmt.Sprintf("PRIMARY KEY (%s)", key))
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", t.QualifiedName(), strings.Join(defs, ", "))
}

func (t *Table[T]) InsertStatement() string {
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(t.Fields)), ", ")
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", t.QualifiedName(), strings.Join(t.Columns(), ", "), marks)
}

// SelectStatement selects every mapped column restricted by the first
// keyColumns primary key columns. Zero selects the whole table; otherwise at
// least the full partition key is required.
func (t *Table[T]) SelectStatement(keyColumns int) (string, error) {
	stmt := fmt.Sprintf("SELECT %s FROM %s", strings.Join(t.Columns(), ", "), t.QualifiedName())
	if keyColumns == 0 {
		return stmt, nil
	}
	where, err := t.keyRestriction(keyColumns)
	if err != nil {
		return "", err
	}
	return stmt + " WHERE " + where, nil
}

// DeleteStatement deletes one row by its full primary key.
func (t *Table[T]) DeleteStatement() string {
	where, _ := t.keyRestriction(len(t.PrimaryKey()))
	return fmt.Sprintf("DELETE FROM %s WHERE %s", t.QualifiedName(), where)
}

func (t *Table[T]) keyRestriction(n int) (string, error) {
	pk := t.PrimaryKey()
	if n < len(t.fieldsOfKind(PartitionKey)) || n > len(pk) {
		return "", errors.Errorf("%d key columns given, %s needs between %d and %d", n, t.QualifiedName(), len(t.fieldsOfKind(PartitionKey)), len(pk))
	}
	conds := make([]string, 0, n)
	for _, f := range pk[:n] {
		conds = append(conds, f.Column+" = ?")
	}
	return strings.Join(conds, " AND "), nil
}

// Values returns the column values of v in field order.
func (t *Table[T]) Values(v *T) []interface{} {
	out := make([]interface{}, 0, len(t.Fields))
	for _, f := range t.Fields {
		out = append(out, f.Get(v))
	}
	return out
}

// Key returns the primary key values of v.
func (t *Table[T]) Key(v *T) []interface{} {
	pk := t.PrimaryKey()
	out := make([]interface{}, 0, len(pk))
	for _, f := range pk {
		out = append(out, f.Get(v))
	}
	return out
}

// Decode copies the mapped columns of row into dst. Null columns leave the
// field untouched.
func (t *Table[T]) Decode(row query.Row, dst *T) error {
	for _, f := range t.Fields {
		v, ok := row.Get(f.Column)
		if !ok {
			return errors.Errorf("decoding %s: column %q missing from row", t.QualifiedName(), f.Column)
		}
		if v == nil {
			continue
		}
		if err := f.Set(dst, v); err != nil {
			return errors.Wrapf(err, "decoding %s.%s", t.QualifiedName(), f.Column)
		}
	}
	return nil
}

// FromValues builds a T from values in field order, as read from a CSV line.
func (t *Table[T]) FromValues(values []interface{}) (*T, error) {
	if len(values) != len(t.Fields) {
		return nil, errors.Errorf("%s expects %d values, got %d", t.QualifiedName(), len(t.Fields), len(values))
	}
	v := new(T)
	for i, f := range t.Fields {
		if err := f.Set(v, values[i]); err != nil {
			return nil, errors.Wrapf(err, "field %s", f.Name)
		}
	}
	return v, nil
}
