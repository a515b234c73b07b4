package cassandra

import (
	"context"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/gocql/gocql"
	"github.com/pkg/errors"

	"github.com/grafana/cqlwalk/pkg/query"
)

// Backend executes queries over a gocql session.
type Backend struct {
	cfg     Config
	session *gocql.Session
	logger  log.Logger
	metrics *Metrics
}

func NewBackend(cfg Config, session *gocql.Session, logger log.Logger, metrics *Metrics) *Backend {
	return &Backend{
		cfg:     cfg,
		session: session,
		logger:  logger,
		metrics: metrics,
	}
}

func (b *Backend) Close() {
	b.session.Close()
}

func (b *Backend) Session() *gocql.Session { return b.session }

func consistencyOf(c query.Consistency) (gocql.Consistency, bool, error) {
	if c == query.ConsistencyDefault {
		return 0, false, nil
	}
	gc, err := gocql.ParseConsistencyWrapper(string(c))
	if err != nil {
		return 0, false, errors.Wrap(query.ErrInvalidArgument, err.Error())
	}
	return gc, true, nil
}

func (b *Backend) newQuery(ctx context.Context, q query.QuerySpec) (*gocql.Query, error) {
	gq := b.session.Query(q.Statement(), q.Values()...).WithContext(ctx)
	c, ok, err := consistencyOf(q.Consistency())
	if err != nil {
		return nil, err
	}
	if ok {
		gq = gq.Consistency(c)
	}
	if q.FetchSize() > 0 {
		gq = gq.PageSize(q.FetchSize())
	}
	return gq, nil
}

// ExecuteSync fetches exactly one page. Passing the paging state, even an
// empty one, turns off the driver's automatic paging so the iterator stops at
// the page boundary.
func (b *Backend) ExecuteSync(ctx context.Context, q query.QuerySpec, token query.ContinuationToken) (*query.Page, error) {
	var page *query.Page
	err := withRetries(ctx, b.cfg.Retry, b.logger, b.metrics, "page", func() error {
		gq, err := b.newQuery(ctx, q)
		if err != nil {
			return err
		}
		iter := gq.PageState(token).Iter()

		// The paging state has to be read before the rows are scanned.
		next := append(query.ContinuationToken(nil), iter.PageState()...)
		rows, err := scanRows(iter)
		if err != nil {
			return err
		}
		page = query.NewPage(rows, next)
		return nil
	})
	if err != nil {
		return nil, err
	}
	level.Debug(b.logger).Log("msg", "fetched page", "query", q.Statement(), "rows", page.Len(), "exhausted", page.Exhausted())
	return page, nil
}

// ExecuteAsync runs q in the background and reads the complete result.
func (b *Backend) ExecuteAsync(ctx context.Context, q query.QuerySpec) query.Handle {
	return query.RunAsync(ctx, func(ctx context.Context) (*query.Page, error) {
		var page *query.Page
		err := withRetries(ctx, b.cfg.Retry, b.logger, b.metrics, "query", func() error {
			gq, err := b.newQuery(ctx, q)
			if err != nil {
				return err
			}
			rows, err := scanRows(gq.Iter())
			if err != nil {
				return err
			}
			page = query.NewPage(rows, nil)
			return nil
		})
		return page, err
	})
}

// Exec runs a statement that returns no rows.
func (b *Backend) Exec(ctx context.Context, q query.QuerySpec) error {
	return withRetries(ctx, b.cfg.Retry, b.logger, b.metrics, "exec", func() error {
		gq, err := b.newQuery(ctx, q)
		if err != nil {
			return err
		}
		return errors.WithStack(gq.Exec())
	})
}

func scanRows(iter *gocql.Iter) ([]query.Row, error) {
	cols := iter.Columns()
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}

	var rows []query.Row
	for {
		m := make(map[string]interface{}, len(cols))
		if !iter.MapScan(m) {
			break
		}
		values := make([]interface{}, len(names))
		for i, n := range names {
			values[i] = m[n]
		}
		rows = append(rows, query.NewRow(names, values))
	}
	if err := iter.Close(); err != nil {
		return nil, errors.WithStack(err)
	}
	return rows, nil
}
