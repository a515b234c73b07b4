package main

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"

	"github.com/grafana/cqlwalk/pkg/query"
)

var (
	bold  = color.New(color.Bold)
	faint = color.New(color.Faint)
	red   = color.New(color.FgRed)
	blue  = color.New(color.FgBlue)
)

// printPage prints and consumes every row of page.
func printPage(w io.Writer, n int, page *query.Page) {
	bold.Fprintf(w, "page %d (%s rows)\n", n, humanize.Comma(int64(page.Len())))
	for page.Next() {
		fmt.Fprintf(w, "  %s\n", page.Row().Format())
	}
}

func printResult(w io.Writer, r query.Result) {
	if r.Err != nil {
		red.Fprintf(w, "#%-3d %s: %v\n", r.Index, r.Query.Statement(), r.Err)
		return
	}
	blue.Fprintf(w, "#%-3d", r.Index)
	fmt.Fprintf(w, " %s\n", faint.Sprint(r.Query.Values()...))
	for r.Page.Next() {
		fmt.Fprintf(w, "     %s\n", r.Page.Row().Format())
	}
}
