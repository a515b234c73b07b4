package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/kingpin/v2"
	"github.com/pkg/errors"

	"github.com/grafana/cqlwalk/pkg/mapping"
)

// mapCommand walks through the mapper: save, get, update, query and delete.
type mapCommand struct {
	ctx context.Context
	env *env

	tier *int
	acct *int
	drop *bool
}

func (cmd *mapCommand) run(_ *kingpin.ParseContext) error {
	if err := cmd.env.connect(); err != nil {
		return err
	}
	table := tieredTable(cmd.env.cfg.Cassandra.Keyspace)
	tc := cmd.env.tableClient()
	if err := tc.CreateKeyspace(cmd.ctx, table.Keyspace); err != nil {
		return err
	}
	if err := tc.CreateTable(cmd.ctx, table); err != nil {
		return err
	}
	if err := runMapping(cmd.ctx, os.Stdout, mapping.NewMapper(table, cmd.env.backend), *cmd.tier, *cmd.acct); err != nil {
		return err
	}
	if *cmd.drop {
		return tc.DropTable(cmd.ctx, table)
	}
	return nil
}

func runMapping(ctx context.Context, w io.Writer, m *mapping.Mapper[TieredCustomer], tier, acct int) error {
	c := &TieredCustomer{Tier: tier, AcctNo: acct, FirstName: "Jane", LastName: "Doe"}
	if err := m.Save(ctx, c); err != nil {
		return err
	}
	bold.Fprintln(w, "saved")

	got, err := m.Get(ctx, tier, acct)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "get: %d %d %s %s\n", got.Tier, got.AcctNo, got.FirstName, got.LastName)

	got.LastName = "Smith"
	if err := m.Save(ctx, got); err != nil {
		return err
	}
	bold.Fprintln(w, "updated")

	inTier, err := m.Query(ctx, tier)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "tier %d: %d customers\n", tier, len(inTier))

	exact, err := m.Query(ctx, tier, acct)
	if err != nil {
		return err
	}
	for _, c := range exact {
		fmt.Fprintf(w, "tier %d, acct %d: %s %s\n", c.Tier, c.AcctNo, c.FirstName, c.LastName)
	}

	if err := m.Delete(ctx, got); err != nil {
		return err
	}
	bold.Fprintln(w, "deleted")

	if _, err := m.Get(ctx, tier, acct); !mapping.IsNotFound(err) {
		if err == nil {
			err = errors.Errorf("account %d still present after delete", acct)
		}
		return err
	}
	fmt.Fprintln(w, "get after delete: not found")
	return nil
}

func addMapCommand(ctx context.Context, app *kingpin.Application, e *env) {
	cmd := &mapCommand{ctx: ctx, env: e}
	m := app.Command("map", "Save, read, update, query and delete a customer through the mapper.").Action(cmd.run)
	cmd.tier = m.Flag("tier", "Tier of the sample customer.").Default("2").Int()
	cmd.acct = m.Flag("acct", "Account number of the sample customer.").Default("1001").Int()
	cmd.drop = m.Flag("drop", "Drop the table once the walkthrough is done.").Bool()
}
