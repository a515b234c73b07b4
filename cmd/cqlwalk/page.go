package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/kingpin/v2"
	"github.com/pkg/errors"

	"github.com/grafana/cqlwalk/pkg/mapping"
	"github.com/grafana/cqlwalk/pkg/query"
	util_log "github.com/grafana/cqlwalk/pkg/util/log"
)

// pageCommand pages through one tier of customers_by_tier.
type pageCommand struct {
	ctx context.Context
	env *env

	tier        *int
	pageSize    *int
	state       *string
	pages       *int
	consistency *string
}

func (cmd *pageCommand) run(_ *kingpin.ParseContext) error {
	if err := cmd.env.connect(); err != nil {
		return err
	}
	q, err := tierQuery(tieredTable(cmd.env.cfg.Cassandra.Keyspace), *cmd.tier, query.Consistency(*cmd.consistency))
	if err != nil {
		return err
	}
	opts := []query.CursorOption{
		query.WithCursorLogger(util_log.Logger),
		query.WithCursorMetrics(cmd.env.qmetrics),
	}
	return runPages(cmd.ctx, os.Stdout, cmd.env.backend, q, *cmd.pageSize, *cmd.state, *cmd.pages, opts...)
}

// tierQuery selects one tier of customers_by_tier.
func tierQuery(table *mapping.Table[TieredCustomer], tier int, c query.Consistency) (query.QuerySpec, error) {
	stmt, err := table.SelectStatement(1)
	if err != nil {
		return query.QuerySpec{}, err
	}
	return query.NewQuerySpec(stmt, tier).WithConsistency(c), nil
}

// runPages prints up to maxPages pages of q, all of them when maxPages is 0.
// The saved state is printed after each page so a later run can resume with
// it.
func runPages(ctx context.Context, w io.Writer, backend query.Backend, q query.QuerySpec, pageSize int, state string, maxPages int, opts ...query.CursorOption) error {
	var (
		cursor *query.PageCursor
		err    error
	)
	if state != "" {
		cursor, err = query.RestoreCursor(backend, state, q, pageSize, opts...)
	} else {
		cursor, err = query.OpenCursor(backend, q, pageSize, opts...)
	}
	if err != nil {
		return err
	}

	for n := 1; maxPages == 0 || n <= maxPages; n++ {
		page, err := cursor.FetchNext(ctx)
		if errors.Is(err, query.ErrEndOfResults) {
			break
		} else if err != nil {
			return err
		}

		saved, err := cursor.SaveState()
		if err != nil {
			return err
		}
		printPage(w, n, page)
		faint.Fprintf(w, "state: %s\n", saved)
	}
	if cursor.IsExhausted() {
		fmt.Fprintln(w, "end of results")
	}
	return nil
}

func addPageCommand(ctx context.Context, app *kingpin.Application, e *env) {
	cmd := &pageCommand{ctx: ctx, env: e}
	page := app.Command("page", "Page through the customers of one tier.").Action(cmd.run)
	cmd.tier = page.Flag("tier", "Tier to read.").Default("1").Int()
	cmd.pageSize = page.Flag("page-size", "Rows per page.").Default("20").Int()
	cmd.state = page.Flag("state", "Resume from a state printed by an earlier run.").String()
	cmd.consistency = page.Flag("consistency", "Read consistency.").Default(string(query.ConsistencyLocalQuorum)).
		Enum(string(query.ConsistencyOne), string(query.ConsistencyLocalOne), string(query.ConsistencyQuorum), string(query.ConsistencyLocalQuorum), string(query.ConsistencyAll))
	cmd.pages = page.Flag("pages", "Stop after this many pages. 0 reads to the end.").Default("0").Int()
}
