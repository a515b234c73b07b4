package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kingpin/v2"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/grafana/cqlwalk/pkg/cfg"
	"github.com/grafana/cqlwalk/pkg/query"
	"github.com/grafana/cqlwalk/pkg/storage/cassandra"
	util_log "github.com/grafana/cqlwalk/pkg/util/log"
)

// Config is the root config of the command.
type Config struct {
	Cassandra cassandra.Config `yaml:"cassandra"`
	Log       util_log.Config  `yaml:"log"`
}

func (c *Config) RegisterFlags(f *flag.FlagSet) {
	c.Cassandra.RegisterFlags(f)
	c.Log.RegisterFlags(f)
}

// env is what every subcommand needs: the loaded config, a logger and a
// connected backend.
type env struct {
	configFile *string
	overrides  *[]string

	cfg      Config
	reg      *prometheus.Registry
	metrics  *cassandra.Metrics
	qmetrics *query.Metrics
	backend  *cassandra.Backend
}

func (e *env) load() error {
	var args []string
	if *e.configFile != "" {
		args = append(args, "-config.file="+*e.configFile)
	}
	for _, o := range *e.overrides {
		args = append(args, "-"+o)
	}
	fs := flag.NewFlagSet("cqlwalk", flag.ContinueOnError)
	if err := cfg.DefaultUnmarshal(&e.cfg, args, fs); err != nil {
		return err
	}
	if err := e.cfg.Cassandra.Validate(); err != nil {
		return err
	}

	e.reg = prometheus.NewRegistry()
	e.reg.MustRegister(collectors.NewGoCollector())
	util_log.InitLogger(e.cfg.Log, e.reg)
	e.metrics = cassandra.NewMetrics(e.reg)
	e.qmetrics = query.NewMetrics(e.reg)
	return nil
}

// connect loads the config and opens a session.
func (e *env) connect() error {
	if err := e.load(); err != nil {
		return err
	}
	session, err := e.cfg.Cassandra.Session(e.metrics)
	if err != nil {
		return err
	}
	e.backend = cassandra.NewBackend(e.cfg.Cassandra, session, util_log.Logger, e.metrics)
	level.Info(util_log.Logger).Log("msg", "connected", "addresses", e.cfg.Cassandra.Addresses.String(), "local_dc", e.cfg.Cassandra.LocalDC)
	return nil
}

func (e *env) close() {
	if e.backend != nil {
		e.backend.Close()
	}
}

func (e *env) tableClient() *cassandra.TableClient {
	return cassandra.NewTableClient(e.cfg.Cassandra, e.backend.Session())
}

func main() {
	app := kingpin.New("cqlwalk", "Walk through Cassandra reads, writes, paging and fan-out queries.")
	e := &env{
		configFile: app.Flag("config.file", "YAML config file to load.").String(),
		overrides:  app.Flag("set", "Override a config flag, e.g. --set cassandra.addresses=10.0.0.1. Repeatable.").Short('s').Strings(),
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	addConnectCommand(ctx, app, e)
	addLoadCommand(ctx, app, e)
	addGetCommand(ctx, app, e)
	addPageCommand(ctx, app, e)
	addMapCommand(ctx, app, e)
	addFanoutCommand(ctx, app, e)

	_, err := app.Parse(os.Args[1:])
	e.close()
	if err != nil {
		exitWithErr(err)
	}
}

func exitWithErr(err error) {
	fmt.Fprintln(os.Stderr, err.Error())
	os.Exit(1)
}
