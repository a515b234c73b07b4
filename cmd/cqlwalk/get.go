package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/kingpin/v2"

	"github.com/grafana/cqlwalk/pkg/mapping"
	"github.com/grafana/cqlwalk/pkg/query"
)

// getCommand reads one customer by account number and the first rows of the
// table.
type getCommand struct {
	ctx context.Context
	env *env

	acct  *int
	limit *int
}

func (cmd *getCommand) run(_ *kingpin.ParseContext) error {
	if err := cmd.env.connect(); err != nil {
		return err
	}
	return runGet(cmd.ctx, os.Stdout, cmd.env.backend, customersTable(cmd.env.cfg.Cassandra.Keyspace), *cmd.acct, *cmd.limit)
}

func runGet(ctx context.Context, w io.Writer, session mapping.Session, table *mapping.Table[Customer], acct, limit int) error {
	c, err := mapping.NewMapper(table, session).Get(ctx, acct)
	switch {
	case err == nil:
		bold.Fprintf(w, "account %d: ", acct)
		fmt.Fprintf(w, "%s %s\n", c.FirstName, c.LastName)
	case mapping.IsNotFound(err):
		red.Fprintf(w, "account %d not found\n", acct)
	default:
		return err
	}

	if limit <= 0 {
		return nil
	}
	stmt, err := table.SelectStatement(0)
	if err != nil {
		return err
	}
	q := query.NewQuerySpec(stmt+" LIMIT ?", limit).WithConsistency(table.ReadConsistency)
	page, err := session.ExecuteSync(ctx, q, nil)
	if err != nil {
		return err
	}
	printPage(w, 1, page)
	return nil
}

func addGetCommand(ctx context.Context, app *kingpin.Application, e *env) {
	cmd := &getCommand{ctx: ctx, env: e}
	get := app.Command("get", "Read a customer by account number, then the first rows of the table.").Action(cmd.run)
	cmd.acct = get.Flag("acct", "Account number to look up.").Default("1").Int()
	cmd.limit = get.Flag("limit", "Rows to read with LIMIT. 0 skips the multi-row read.").Default("10").Int()
}
