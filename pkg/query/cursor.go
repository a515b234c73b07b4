package query

import (
	"context"
	"encoding/base64"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
)

const stateVersion = 1

// PageCursor drives successive bounded fetches of one query. It holds at most
// the last fetched page and only moves forward.
//
// A cursor has a single owner: concurrent calls to FetchNext or SaveState fail
// with ErrIllegalState instead of racing on the continuation token.
type PageCursor struct {
	backend  Backend
	query    QuerySpec
	pageSize int
	logger   log.Logger
	metrics  *Metrics

	inUse atomic.Bool

	token     ContinuationToken
	exhausted bool
	err       error
	page      *Page
	pages     int
}

type CursorOption func(*PageCursor)

func WithCursorLogger(l log.Logger) CursorOption {
	return func(c *PageCursor) { c.logger = l }
}

func WithCursorMetrics(m *Metrics) CursorOption {
	return func(c *PageCursor) { c.metrics = m }
}

// OpenCursor opens a cursor over q that fetches pageSize rows at a time. The
// fetch size is fixed for the life of the cursor, so a query carrying a
// different fetch size is rejected.
func OpenCursor(backend Backend, q QuerySpec, pageSize int, opts ...CursorOption) (*PageCursor, error) {
	if backend == nil {
		return nil, errors.Wrap(ErrInvalidArgument, "nil backend")
	}
	if pageSize < 1 {
		return nil, errors.Wrapf(ErrInvalidArgument, "page size must be at least 1, got %d", pageSize)
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}
	if q.FetchSize() != 0 && q.FetchSize() != pageSize {
		return nil, errors.Wrapf(ErrInvalidArgument, "query fetch size %d does not match page size %d", q.FetchSize(), pageSize)
	}

	c := &PageCursor{
		backend:  backend,
		query:    q.WithFetchSize(pageSize),
		pageSize: pageSize,
		logger:   log.NewNopLogger(),
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// RestoreCursor rebuilds a cursor from a SaveState result. The next FetchNext
// resumes right after the rows delivered before the state was saved.
func RestoreCursor(backend Backend, state string, q QuerySpec, pageSize int, opts ...CursorOption) (*PageCursor, error) {
	pos, err := decodeState(state)
	if err != nil {
		return nil, err
	}
	if pos.PageSize != pageSize {
		return nil, errors.Wrapf(ErrInvalidArgument, "state was saved with page size %d, cannot resume with %d", pos.PageSize, pageSize)
	}
	c, err := OpenCursor(backend, q, pageSize, opts...)
	if err != nil {
		return nil, err
	}
	c.token = pos.Token
	c.exhausted = pos.Exhausted
	return c, nil
}

// FetchNext fetches the next page. It returns ErrEndOfResults once the cursor
// is exhausted. A backend failure moves the cursor to a terminal errored state
// and is returned again by every later call.
func (c *PageCursor) FetchNext(ctx context.Context) (*Page, error) {
	if !c.inUse.CompareAndSwap(false, true) {
		return nil, errors.Wrap(ErrIllegalState, "cursor is already in use")
	}
	defer c.inUse.Store(false)

	if c.err != nil {
		return nil, c.err
	}
	if c.exhausted {
		return nil, ErrEndOfResults
	}

	page, err := c.backend.ExecuteSync(ctx, c.query, c.token)
	if err == nil && page == nil {
		err = errors.New("backend returned no page")
	}
	if err == nil && page.Len() > c.pageSize {
		err = errors.Errorf("backend returned %d rows for page size %d", page.Len(), c.pageSize)
	}
	if err != nil {
		c.fail(err)
		return nil, c.err
	}

	// Capture the token before the caller gets a chance to consume the page.
	token, err := page.ContinuationToken()
	if err != nil {
		c.fail(err)
		return nil, c.err
	}
	c.token = token
	c.exhausted = page.Exhausted()
	c.page = page
	c.pages++

	if c.metrics != nil {
		c.metrics.pagesFetched.Inc()
		c.metrics.rowsFetched.Add(float64(page.Len()))
	}
	level.Debug(c.logger).Log("msg", "fetched page", "page", c.pages, "rows", page.Len(), "exhausted", c.exhausted)
	return page, nil
}

func (c *PageCursor) fail(err error) {
	c.err = asBackendError(err)
	c.page = nil
	if c.metrics != nil {
		c.metrics.cursorFailures.Inc()
	}
	level.Warn(c.logger).Log("msg", "page cursor failed", "query", c.query.Statement(), "err", err)
}

// SaveState serializes the cursor position. Call it right after FetchNext and
// before iterating the page; once the page is consumed the position can no
// longer be saved.
func (c *PageCursor) SaveState() (string, error) {
	if !c.inUse.CompareAndSwap(false, true) {
		return "", errors.Wrap(ErrIllegalState, "cursor is already in use")
	}
	defer c.inUse.Store(false)

	if c.err != nil {
		return "", errors.Wrapf(ErrIllegalState, "cursor errored: %v", c.err)
	}
	if c.page != nil && c.page.Consumed() {
		return "", errors.Wrap(ErrIllegalState, "page already consumed, save state before iterating rows")
	}
	return encodeState(position{
		Version:   stateVersion,
		PageSize:  c.pageSize,
		Token:     c.token,
		Exhausted: c.exhausted,
	})
}

// IsExhausted reports whether the backend signalled that no further data exists.
func (c *PageCursor) IsExhausted() bool { return c.exhausted }

// Err returns the error that moved the cursor to the errored state, if any.
func (c *PageCursor) Err() error { return c.err }

func (c *PageCursor) PageSize() int { return c.pageSize }

func (c *PageCursor) Query() QuerySpec { return c.query }

// position is everything needed to resume a cursor.
type position struct {
	Version   int    `json:"v"`
	PageSize  int    `json:"page_size"`
	Token     []byte `json:"token,omitempty"`
	Exhausted bool   `json:"exhausted,omitempty"`
}

func encodeState(p position) (string, error) {
	buf, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(p)
	if err != nil {
		return "", errors.WithStack(err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func decodeState(s string) (position, error) {
	var p position
	buf, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return p, errors.Wrapf(ErrInvalidArgument, "malformed cursor state: %v", err)
	}
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(buf, &p); err != nil {
		return p, errors.Wrapf(ErrInvalidArgument, "malformed cursor state: %v", err)
	}
	if p.Version != stateVersion {
		return p, errors.Wrapf(ErrInvalidArgument, "unsupported cursor state version %d", p.Version)
	}
	if p.PageSize < 1 {
		return p, errors.Wrapf(ErrInvalidArgument, "invalid page size %d in cursor state", p.PageSize)
	}
	if p.Exhausted && len(p.Token) > 0 {
		return p, errors.Wrap(ErrInvalidArgument, "exhausted cursor state carries a continuation token")
	}
	return p, nil
}
