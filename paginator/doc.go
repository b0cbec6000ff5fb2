// Package paginator splits a countable collection into numbered pages and
// computes the short run of page numbers a UI shows around the current page.
//
// Requests never fail because of an out-of-range page number: numbers below
// one resolve to the first page, numbers past the end resolve to the last
// page, and strings that are not plain decimal digits resolve to the first
// page. Only values that are neither integers nor strings are rejected with
// ErrInvalidArgument.
//
// The window keeps at most perSide numbers on each side of the current page.
// When one side runs short the other side takes up the slack, so the window
// length stays min(2*perSide+1, totalPages):
//
//	w, _ := paginator.ComputeWindow(15, paginator.IntPage(9), 4)
//	// w.PageRange == [5 6 7 8 9 10 11 12 13]
//
//	w, _ = paginator.ComputeWindow(9, paginator.StringPage("4"), 4)
//	// w.LeftSide == [1 2 3], w.RightSide == [5 6 7 8 9]
//
// Paginator composes a PageSource (anything that can count and slice its
// items) with the window computation:
//
//	p, _ := paginator.New[*User](source, 25)
//	page, err := p.Page(ctx, paginator.StringPage(c.Query("page")), paginator.DefaultPerSide)
package paginator
