package main

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/pkg/errors"

	"github.com/grafana/cqlwalk/pkg/mapping"
	"github.com/grafana/cqlwalk/pkg/query"
	util_log "github.com/grafana/cqlwalk/pkg/util/log"
)

// fanoutCommand looks up several accounts concurrently and prints the results
// twice: in submission order, then in completion order.
type fanoutCommand struct {
	ctx context.Context
	env *env

	from    *int
	to      *int
	step    *int
	timeout *time.Duration
}

func (cmd *fanoutCommand) run(_ *kingpin.ParseContext) error {
	if err := cmd.env.connect(); err != nil {
		return err
	}
	queries, err := accountQueries(customersTable(cmd.env.cfg.Cassandra.Keyspace), *cmd.from, *cmd.to, *cmd.step)
	if err != nil {
		return err
	}
	d := query.NewDispatcher(cmd.env.backend, util_log.Logger, query.WithMetrics(cmd.env.qmetrics))
	return runFanout(cmd.ctx, os.Stdout, d, queries, *cmd.timeout)
}

// accountQueries builds one lookup per account in [from, to] stepping by step.
func accountQueries(table *mapping.Table[Customer], from, to, step int) ([]query.QuerySpec, error) {
	if step < 1 || from > to {
		return nil, errors.Errorf("invalid account range %d..%d step %d", from, to, step)
	}
	stmt, err := table.SelectStatement(1)
	if err != nil {
		return nil, err
	}
	var out []query.QuerySpec
	for acct := from; acct <= to; acct += step {
		out = append(out, query.NewQuerySpec(stmt, acct).WithConsistency(table.ReadConsistency))
	}
	return out, nil
}

func runFanout(ctx context.Context, w io.Writer, d *query.Dispatcher, queries []query.QuerySpec, timeout time.Duration) error {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	hs, err := d.Submit(waitCtx, queries)
	if err != nil {
		return err
	}
	results, err := query.WaitAll(waitCtx, hs)
	if err != nil {
		return err
	}
	bold.Fprintln(w, "in submission order:")
	for _, r := range results {
		printResult(w, r)
	}

	streamCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	hs, err = d.Submit(streamCtx, queries)
	if err != nil {
		return err
	}
	stream, err := query.Stream(streamCtx, hs)
	if err != nil {
		return err
	}
	defer stream.Close()

	bold.Fprintln(w, "in completion order:")
	for stream.Next() {
		printResult(w, stream.At())
	}
	return nil
}

func addFanoutCommand(ctx context.Context, app *kingpin.Application, e *env) {
	cmd := &fanoutCommand{ctx: ctx, env: e}
	f := app.Command("fanout", "Look up a range of accounts concurrently.").Action(cmd.run)
	cmd.from = f.Flag("from", "First account number.").Default("5").Int()
	cmd.to = f.Flag("to", "Last account number.").Default("100").Int()
	cmd.step = f.Flag("step", "Distance between account numbers.").Default("5").Int()
	cmd.timeout = f.Flag("timeout", "Deadline for each pass over the results.").Default("10s").Duration()
}
