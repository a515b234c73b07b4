package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/alecthomas/kingpin/v2"
)

// connectCommand opens a session and runs a trivial read.
type connectCommand struct {
	ctx context.Context
	env *env
}

func (cmd *connectCommand) run(_ *kingpin.ParseContext) error {
	if err := cmd.env.connect(); err != nil {
		return err
	}
	tc := cmd.env.tableClient()
	version, err := tc.ReleaseVersion(cmd.ctx)
	if err != nil {
		return err
	}
	bold.Fprint(os.Stdout, "connected: ")
	fmt.Fprintf(os.Stdout, "cassandra %s, local DC %q\n", version, cmd.env.cfg.Cassandra.LocalDC)

	ks := cmd.env.cfg.Cassandra.Keyspace
	tables, err := tc.ListTables(cmd.ctx, ks)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "keyspace %s: %d tables %s\n", ks, len(tables), strings.Join(tables, " "))
	return nil
}

func addConnectCommand(ctx context.Context, app *kingpin.Application, e *env) {
	cmd := &connectCommand{ctx: ctx, env: e}
	app.Command("connect", "Connect to the cluster and print the server version.").Action(cmd.run)
}
