package log

import (
	"bytes"
	"strings"
	"testing"

	"github.com/go-kit/log/level"
	dslog "github.com/grafana/dskit/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerFiltersByLevel(t *testing.T) {
	var lvl dslog.Level
	require.NoError(t, lvl.Set("info"))

	var buf bytes.Buffer
	reg := prometheus.NewRegistry()
	logger := NewLogger(Config{Level: lvl, Format: "logfmt"}, &buf, reg)

	level.Debug(logger).Log("msg", "hidden")
	level.Info(logger).Log("msg", "fetched page", "rows", 20)
	level.Warn(logger).Log("msg", "cursor failed")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `msg="fetched page"`)
	assert.Contains(t, out, "rows=20")
	assert.Contains(t, out, "level=warn")

	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(`
# HELP cqlwalk_log_messages_total Total number of log messages.
# TYPE cqlwalk_log_messages_total counter
cqlwalk_log_messages_total{level="debug"} 0
cqlwalk_log_messages_total{level="error"} 0
cqlwalk_log_messages_total{level="info"} 1
cqlwalk_log_messages_total{level="warn"} 1
`), "cqlwalk_log_messages_total"))
}

func TestNewLoggerJSON(t *testing.T) {
	var lvl dslog.Level
	require.NoError(t, lvl.Set("debug"))

	var buf bytes.Buffer
	logger := NewLogger(Config{Level: lvl, Format: "json"}, &buf, nil)
	level.Debug(logger).Log("msg", "submitted fan-out", "queries", 20)

	assert.Contains(t, buf.String(), `"msg":"submitted fan-out"`)
	assert.Contains(t, buf.String(), `"queries":20`)
}
