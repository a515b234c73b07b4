package query

import (
	"github.com/pkg/errors"
)

// ContinuationToken is an opaque, backend issued marker telling a bounded
// fetch where to resume. An empty token means no further data exists.
type ContinuationToken []byte

// Page is one bounded batch of rows. It is owned by whoever fetched it until
// its rows have been iterated.
//
// The continuation token must be read before the rows are consumed: once Next
// has returned false the page is consumed and ContinuationToken fails.
type Page struct {
	rows      []Row
	token     ContinuationToken
	exhausted bool

	pos      int
	consumed bool
}

// NewPage builds a page. A nil or empty token marks the page as the last one.
func NewPage(rows []Row, token ContinuationToken) *Page {
	var t ContinuationToken
	if len(token) > 0 {
		t = make(ContinuationToken, len(token))
		copy(t, token)
	}
	return &Page{
		rows:      rows,
		token:     t,
		exhausted: len(t) == 0,
		pos:       -1,
	}
}

// Len is the number of rows in the page.
func (p *Page) Len() int { return len(p.rows) }

// Exhausted reports whether the backend signalled that no data follows this page.
func (p *Page) Exhausted() bool { return p.exhausted }

// ContinuationToken returns a copy of the token issued with this page.
func (p *Page) ContinuationToken() (ContinuationToken, error) {
	if p.consumed {
		return nil, errors.Wrap(ErrIllegalState, "page already consumed, continuation token is gone")
	}
	if len(p.token) == 0 {
		return nil, nil
	}
	t := make(ContinuationToken, len(p.token))
	copy(t, p.token)
	return t, nil
}

// Next advances to the next row. It returns false, and marks the page as
// consumed, once all rows have been visited.
func (p *Page) Next() bool {
	if p.consumed {
		return false
	}
	p.pos++
	if p.pos >= len(p.rows) {
		p.consumed = true
		return false
	}
	return true
}

// Row returns the row at the current position.
func (p *Page) Row() Row {
	if p.pos < 0 || p.pos >= len(p.rows) {
		return Row{}
	}
	return p.rows[p.pos]
}

// Consumed reports whether the rows of the page have been fully iterated.
func (p *Page) Consumed() bool { return p.consumed }

// Rows drains the page and returns every remaining row.
func (p *Page) Rows() []Row {
	var out []Row
	for p.Next() {
		out = append(out, p.Row())
	}
	return out
}
