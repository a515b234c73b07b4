package cassandra

import (
	"context"
	"sync"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/gocql/gocql"
	"github.com/grafana/dskit/multierror"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/grafana/cqlwalk/pkg/query"
)

// Load modes.
const (
	ModeSimple = "simple"
	ModeBatch  = "batch"
	ModeAsync  = "async"
)

var Modes = []string{ModeSimple, ModeBatch, ModeAsync}

// WriteStats summarises a load.
type WriteStats struct {
	Rows    int
	Batches int
	Elapsed time.Duration
}

// Writer inserts rows with one prepared statement.
type Writer struct {
	cfg     Config
	session *gocql.Session
	logger  log.Logger
	metrics *Metrics
}

func NewWriter(cfg Config, session *gocql.Session, logger log.Logger, metrics *Metrics) *Writer {
	return &Writer{
		cfg:     cfg,
		session: session,
		logger:  logger,
		metrics: metrics,
	}
}

// Write inserts rows using the given mode.
func (w *Writer) Write(ctx context.Context, mode, stmt string, rows [][]interface{}, c query.Consistency) (WriteStats, error) {
	switch mode {
	case ModeSimple:
		return w.InsertEach(ctx, stmt, rows, c)
	case ModeBatch:
		return w.InsertBatch(ctx, stmt, rows, c)
	case ModeAsync:
		return w.InsertAsync(ctx, stmt, rows, c)
	default:
		return WriteStats{}, errors.Wrapf(query.ErrInvalidArgument, "unknown load mode %q", mode)
	}
}

func (w *Writer) newQuery(ctx context.Context, stmt string, values []interface{}, c query.Consistency) (*gocql.Query, error) {
	q := w.session.Query(stmt, values...).WithContext(ctx)
	gc, ok, err := consistencyOf(c)
	if err != nil {
		return nil, err
	}
	if ok {
		q = q.Consistency(gc)
	}
	if w.cfg.Tracing {
		q = q.Trace(gocql.NewTraceWriter(w.session, log.NewStdlibAdapter(level.Debug(w.logger))))
	}
	return q, nil
}

func (w *Writer) done(mode string, stats *WriteStats, start time.Time) {
	stats.Elapsed = time.Since(start)
	if w.metrics != nil {
		w.metrics.rowsWritten.WithLabelValues(mode).Add(float64(stats.Rows))
	}
	level.Info(w.logger).Log("msg", "load finished", "mode", mode, "rows", stats.Rows, "batches", stats.Batches, "elapsed", stats.Elapsed)
}

// InsertEach inserts rows one at a time and stops at the first failure.
func (w *Writer) InsertEach(ctx context.Context, stmt string, rows [][]interface{}, c query.Consistency) (stats WriteStats, err error) {
	defer w.done(ModeSimple, &stats, time.Now())

	for i, values := range rows {
		q, err := w.newQuery(ctx, stmt, values, c)
		if err != nil {
			return stats, err
		}
		if err := q.Exec(); err != nil {
			return stats, errors.Wrapf(err, "row %d", i+1)
		}
		stats.Rows++
	}
	return stats, nil
}

// InsertBatch inserts rows in logged batches of cfg.BatchSize rows, or in a
// single batch when the size is 0.
func (w *Writer) InsertBatch(ctx context.Context, stmt string, rows [][]interface{}, c query.Consistency) (stats WriteStats, err error) {
	defer w.done(ModeBatch, &stats, time.Now())

	gc, ok, err := consistencyOf(c)
	if err != nil {
		return stats, err
	}

	for _, chunk := range chunks(rows, w.cfg.BatchSize) {
		batch := w.session.NewBatch(gocql.LoggedBatch).WithContext(ctx)
		if ok {
			batch.Cons = gc
		}
		for _, values := range chunk {
			batch.Query(stmt, values...)
		}
		if err := w.session.ExecuteBatch(batch); err != nil {
			return stats, errors.Wrapf(err, "batch %d", stats.Batches+1)
		}
		stats.Batches++
		stats.Rows += len(chunk)
	}
	return stats, nil
}

// InsertAsync keeps up to cfg.MaxConcurrentWrites inserts in flight. A failed
// row does not stop the others; every failure is returned.
func (w *Writer) InsertAsync(ctx context.Context, stmt string, rows [][]interface{}, c query.Consistency) (stats WriteStats, err error) {
	defer w.done(ModeAsync, &stats, time.Now())

	var (
		mtx  sync.Mutex
		errs multierror.MultiError
		g    errgroup.Group
	)
	g.SetLimit(w.cfg.MaxConcurrentWrites)
	for i, values := range rows {
		g.Go(func() error {
			q, err := w.newQuery(ctx, stmt, values, c)
			if err == nil {
				err = q.Exec()
			}

			mtx.Lock()
			defer mtx.Unlock()
			if err != nil {
				errs.Add(errors.Wrapf(err, "row %d", i+1))
				return nil
			}
			stats.Rows++
			return nil
		})
	}
	g.Wait()
	return stats, errs.Err()
}

func chunks(rows [][]interface{}, size int) [][][]interface{} {
	if len(rows) == 0 {
		return nil
	}
	if size <= 0 || size >= len(rows) {
		return [][][]interface{}{rows}
	}
	out := make([][][]interface{}, 0, (len(rows)+size-1)/size)
	for size < len(rows) {
		rows, out = rows[size:], append(out, rows[:size])
	}
	return append(out, rows)
}
