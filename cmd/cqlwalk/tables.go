package main

import (
	"github.com/grafana/cqlwalk/pkg/mapping"
	"github.com/grafana/cqlwalk/pkg/query"
)

// Customer is a row of the customers table, keyed by account number.
type Customer struct {
	AcctNo    int
	FirstName string
	LastName  string
}

func customersTable(keyspace string) *mapping.Table[Customer] {
	return mapping.MustNewTable(keyspace, "customers",
		mapping.IntField("AcctNo", "acct_no", func(c *Customer) *int { return &c.AcctNo }).Partition(),
		mapping.TextField("FirstName", "first_name", func(c *Customer) *string { return &c.FirstName }),
		mapping.TextField("LastName", "last_name", func(c *Customer) *string { return &c.LastName }),
	).WithConsistency(query.ConsistencyLocalOne, query.ConsistencyLocalOne)
}

// TieredCustomer is a row of customers_by_tier: one partition per tier,
// accounts clustered in ascending order.
type TieredCustomer struct {
	Tier      int
	AcctNo    int
	FirstName string
	LastName  string
}

func tieredTable(keyspace string) *mapping.Table[TieredCustomer] {
	return mapping.MustNewTable(keyspace, "customers_by_tier",
		mapping.IntField("Tier", "tier", func(c *TieredCustomer) *int { return &c.Tier }).Partition(),
		mapping.IntField("AcctNo", "acct_no", func(c *TieredCustomer) *int { return &c.AcctNo }).Clustering(),
		mapping.TextField("FirstName", "first_name", func(c *TieredCustomer) *string { return &c.FirstName }),
		mapping.TextField("LastName", "last_name", func(c *TieredCustomer) *string { return &c.LastName }),
	).WithConsistency(query.ConsistencyLocalOne, query.ConsistencyLocalOne)
}

// loadTable is the subset of a table descriptor the load command needs.
type loadTable interface {
	QualifiedName() string
	CreateStatement() string
	InsertStatement() string
	Types() []mapping.ColumnType
}

var loadTableNames = []string{"customers", "customers_by_tier"}

func loadTables(keyspace string) map[string]loadTable {
	return map[string]loadTable{
		"customers":         customersTable(keyspace),
		"customers_by_tier": tieredTable(keyspace),
	}
}
