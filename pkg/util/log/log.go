package log

import (
	"flag"
	"io"
	"os"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	dslog "github.com/grafana/dskit/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Logger is the process wide logger used by the command. Library packages
// take a log.Logger explicitly instead.
var Logger = log.NewNopLogger()

// Config holds the logging flags.
type Config struct {
	Level  dslog.Level `yaml:"level"`
	Format string      `yaml:"format"`
}

func (cfg *Config) RegisterFlags(f *flag.FlagSet) {
	cfg.Level.RegisterFlags(f)
	f.StringVar(&cfg.Format, "log.format", "logfmt", "Output log messages in the given format. Valid formats: [logfmt, json]")
}

// InitLogger builds the process logger writing to stderr and installs it as Logger.
func InitLogger(cfg Config, reg prometheus.Registerer) log.Logger {
	Logger = NewLogger(cfg, os.Stderr, reg)
	return Logger
}

// NewLogger builds a leveled logger writing to w. Every message is counted by
// level when reg is not nil.
func NewLogger(cfg Config, w io.Writer, reg prometheus.Registerer) log.Logger {
	var logger log.Logger
	if cfg.Format == "json" {
		logger = log.NewJSONLogger(log.NewSyncWriter(w))
	} else {
		logger = log.NewLogfmtLogger(log.NewSyncWriter(w))
	}
	if reg != nil {
		logger = newPrometheusLogger(logger, reg)
	}
	if cfg.Level.Option != nil {
		logger = level.NewFilter(logger, cfg.Level.Option)
	}
	return log.With(logger, "ts", log.DefaultTimestampUTC)
}

type prometheusLogger struct {
	baseLogger  log.Logger
	logMessages *prometheus.CounterVec
}

func newPrometheusLogger(l log.Logger, reg prometheus.Registerer) *prometheusLogger {
	logMessages := promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
		Namespace: "cqlwalk",
		Name:      "log_messages_total",
		Help:      "Total number of log messages.",
	}, []string{"level"})
	for _, lvl := range []level.Value{level.DebugValue(), level.InfoValue(), level.WarnValue(), level.ErrorValue()} {
		logMessages.WithLabelValues(lvl.String())
	}
	return &prometheusLogger{baseLogger: l, logMessages: logMessages}
}

func (pl *prometheusLogger) Log(kv ...interface{}) error {
	err := pl.baseLogger.Log(kv...)
	l := "unknown"
	for i := 1; i < len(kv); i += 2 {
		if v, ok := kv[i].(level.Value); ok {
			l = v.String()
			break
		}
	}
	pl.logMessages.WithLabelValues(l).Inc()
	return err
}
