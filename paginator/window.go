package paginator

import (
	"github.com/samber/oops"
)

// DefaultPerSide is the number of pages shown on each side of the current
// page when callers have no preference.
const DefaultPerSide = 4

// Window is the run of page numbers displayed around the current page.
type Window struct {
	Current   int   `json:"current"`
	LeftSide  []int `json:"left_side"`
	RightSide []int `json:"right_side"`
	PageRange []int `json:"page_range"`
}

// First returns the lowest page number in the window.
func (w Window) First() int {
	if len(w.PageRange) == 0 {
		return w.Current
	}
	return w.PageRange[0]
}

// Last returns the highest page number in the window.
func (w Window) Last() int {
	if len(w.PageRange) == 0 {
		return w.Current
	}
	return w.PageRange[len(w.PageRange)-1]
}

// ComputeWindow resolves the requested page against totalPages and returns
// at most perSide page numbers on each side of it. When one side has fewer
// than perSide pages the other side grows to compensate.
func ComputeWindow(totalPages int, requested PageNumber, perSide int) (Window, error) {
	if perSide < 0 {
		return Window{}, oops.
			In("paginator").
			Code("INVALID_ARGUMENT").
			With("per_side", perSide).
			Wrapf(ErrInvalidArgument, "per side must not be negative")
	}

	if totalPages < 1 {
		totalPages = 1
	}

	current, err := requested.Resolve(totalPages)
	if err != nil {
		return Window{}, err
	}

	return buildWindow(totalPages, current, perSide), nil
}

// Window4 is ComputeWindow with DefaultPerSide.
func Window4(totalPages int, requested PageNumber) (Window, error) {
	return ComputeWindow(totalPages, requested, DefaultPerSide)
}

// buildWindow expects 1 <= current <= totalPages. The page set 1..totalPages
// is contiguous, so both sides are derived from their lengths instead of
// materializing every page number.
func buildWindow(totalPages, current, perSide int) Window {
	lenLeft := current - 1
	lenRight := totalPages - current

	takeLeft, takeRight := lenLeft, lenRight

	// The order of these checks matters when both sides are short: the left
	// check wins and the right side compensates.
	switch {
	case lenLeft == perSide && lenRight == perSide:
	case lenLeft >= perSide && lenRight >= perSide:
		takeLeft = perSide
		takeRight = perSide
	case lenLeft < perSide:
		takeRight = min(perSide*2-lenLeft, lenRight)
	case lenRight < perSide:
		takeLeft = min(perSide*2-lenRight, lenLeft)
	}

	left := sequence(current-takeLeft, takeLeft)
	right := sequence(current+1, takeRight)

	pageRange := make([]int, 0, len(left)+1+len(right))
	pageRange = append(pageRange, left...)
	pageRange = append(pageRange, current)
	pageRange = append(pageRange, right...)

	return Window{
		Current:   current,
		LeftSide:  left,
		RightSide: right,
		PageRange: pageRange,
	}
}

func sequence(start, count int) []int {
	out := make([]int, count)
	for i := range out {
		out[i] = start + i
	}
	return out
}
