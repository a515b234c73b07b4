package main

import (
	"context"
	"fmt"
	"os"

	"github.com/alecthomas/kingpin/v2"
	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"

	"github.com/grafana/cqlwalk/pkg/csvload"
	"github.com/grafana/cqlwalk/pkg/query"
	"github.com/grafana/cqlwalk/pkg/storage/cassandra"
	util_log "github.com/grafana/cqlwalk/pkg/util/log"
)

// loadCommand creates the keyspace and a table, then loads a CSV file into it.
type loadCommand struct {
	ctx context.Context
	env *env

	file         *string
	table        *string
	mode         *string
	truncate     *bool
	dropKeyspace *bool
}

func (cmd *loadCommand) run(_ *kingpin.ParseContext) error {
	if err := cmd.env.connect(); err != nil {
		return err
	}
	ks := cmd.env.cfg.Cassandra.Keyspace
	table, ok := loadTables(ks)[*cmd.table]
	if !ok {
		return errors.Errorf("unknown table %q", *cmd.table)
	}
	rows, err := csvload.ReadFile(*cmd.file, table.Types())
	if err != nil {
		return err
	}

	tc := cmd.env.tableClient()
	if *cmd.dropKeyspace {
		if err := tc.DropKeyspace(cmd.ctx, ks); err != nil {
			return err
		}
	}
	if err := tc.CreateKeyspace(cmd.ctx, ks); err != nil {
		return err
	}
	if err := tc.CreateTable(cmd.ctx, table); err != nil {
		return err
	}
	if *cmd.truncate {
		if err := tc.TruncateTable(cmd.ctx, table); err != nil {
			return err
		}
	}

	w := cassandra.NewWriter(cmd.env.cfg.Cassandra, cmd.env.backend.Session(), util_log.Logger, cmd.env.metrics)
	stats, err := w.Write(cmd.ctx, *cmd.mode, table.InsertStatement(), rows, query.ConsistencyLocalOne)
	fmt.Fprintf(os.Stdout, "%s: loaded %s of %s rows into %s in %v\n",
		*cmd.mode, humanize.Comma(int64(stats.Rows)), humanize.Comma(int64(len(rows))), table.QualifiedName(), stats.Elapsed)
	return err
}

func addLoadCommand(ctx context.Context, app *kingpin.Application, e *env) {
	cmd := &loadCommand{ctx: ctx, env: e}
	load := app.Command("load", "Create the keyspace and a table and load a CSV file into it.").Action(cmd.run)
	cmd.file = load.Arg("file", "CSV file with one row per line, in table column order.").Required().ExistingFile()
	cmd.table = load.Flag("table", "Table to load.").Default("customers").Enum(loadTableNames...)
	cmd.mode = load.Flag("mode", "simple: one insert per row, batch: logged batches, async: concurrent inserts.").Default(cassandra.ModeAsync).Enum(cassandra.Modes...)
	cmd.truncate = load.Flag("truncate", "Truncate the table before loading.").Bool()
	cmd.dropKeyspace = load.Flag("drop-keyspace", "Drop the keyspace and every table in it before loading.").Bool()
}
