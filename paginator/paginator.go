package paginator

import (
	"context"

	"github.com/samber/oops"
)

// PageSource is the collection being paginated. Count reports the total
// number of items and Slice returns up to limit items starting at offset.
type PageSource[T any] interface {
	Count(ctx context.Context) (int, error)
	Slice(ctx context.Context, offset, limit int) ([]T, error)
}

// Option customizes a Paginator.
type Option func(*settings)

type settings struct {
	orphans             int
	allowEmptyFirstPage bool
}

// WithOrphans folds a last page holding orphans items or fewer into the
// previous page.
func WithOrphans(orphans int) Option {
	return func(s *settings) {
		if orphans >= 0 {
			s.orphans = orphans
		}
	}
}

// WithAllowEmptyFirstPage controls whether an empty collection still has a
// (blank) first page. Enabled by default.
func WithAllowEmptyFirstPage(allow bool) Option {
	return func(s *settings) {
		s.allowEmptyFirstPage = allow
	}
}

// Paginator pages through a PageSource without ever failing on an out of
// range page number.
type Paginator[T any] struct {
	source  PageSource[T]
	perPage int
	settings
}

// Page is a single page of items plus the navigation window around it.
type Page[T any] struct {
	Items              []T    `json:"items"`
	Number             int    `json:"number"`
	NumPages           int    `json:"num_pages"`
	Count              int    `json:"count"`
	PerPage            int    `json:"per_page"`
	HasNext            bool   `json:"has_next"`
	HasPrevious        bool   `json:"has_previous"`
	NextPageNumber     int    `json:"next_page_number,omitempty"`
	PreviousPageNumber int    `json:"previous_page_number,omitempty"`
	StartIndex         int    `json:"start_index"`
	EndIndex           int    `json:"end_index"`
	Window             Window `json:"window"`
}

// HasOtherPages reports whether there is any page besides this one.
func (p *Page[T]) HasOtherPages() bool {
	return p.HasNext || p.HasPrevious
}

// New returns a Paginator over source with perPage items per page.
func New[T any](source PageSource[T], perPage int, opts ...Option) (*Paginator[T], error) {
	if perPage < 1 {
		return nil, oops.
			In("paginator").
			Code("INVALID_ARGUMENT").
			With("per_page", perPage).
			Wrap(ErrInvalidPerPage)
	}

	if source == nil {
		return nil, oops.
			In("paginator").
			Code("INVALID_ARGUMENT").
			Wrapf(ErrInvalidArgument, "page source is required")
	}

	p := &Paginator[T]{
		source:  source,
		perPage: perPage,
		settings: settings{
			allowEmptyFirstPage: true,
		},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(&p.settings)
		}
	}

	return p, nil
}

// PerPage returns the configured page size.
func (p *Paginator[T]) PerPage() int {
	return p.perPage
}

// NumPages returns the total number of pages.
func (p *Paginator[T]) NumPages(ctx context.Context) (int, error) {
	count, err := p.count(ctx)
	if err != nil {
		return 0, err
	}
	return p.numPages(count), nil
}

// Page returns the requested page, clamped into the valid range, together
// with a window of at most perSide page numbers on each side.
func (p *Paginator[T]) Page(ctx context.Context, number PageNumber, perSide int) (*Page[T], error) {
	count, err := p.count(ctx)
	if err != nil {
		return nil, err
	}

	numPages := p.numPages(count)
	if numPages == 0 {
		return nil, oops.
			In("paginator").
			Code("EMPTY_PAGE").
			Wrap(ErrEmptyPage)
	}

	window, err := ComputeWindow(numPages, number, perSide)
	if err != nil {
		return nil, err
	}

	current := window.Current
	bottom := (current - 1) * p.perPage
	top := bottom + p.perPage
	if top+p.orphans >= count {
		top = count
	}

	items := []T{}
	if top > bottom {
		items, err = p.source.Slice(ctx, bottom, top-bottom)
		if err != nil {
			return nil, oops.
				In("paginator").
				Code("SOURCE_FAILED").
				With("page", current).
				Wrapf(err, "failed to load page items")
		}
		if items == nil {
			items = []T{}
		}
	}

	page := &Page[T]{
		Items:       items,
		Number:      current,
		NumPages:    numPages,
		Count:       count,
		PerPage:     p.perPage,
		HasNext:     current < numPages,
		HasPrevious: current > 1,
		Window:      window,
	}

	if page.HasNext {
		page.NextPageNumber = current + 1
	}

	if page.HasPrevious {
		page.PreviousPageNumber = current - 1
	}

	if count > 0 {
		page.StartIndex = bottom + 1
		page.EndIndex = top
	}

	return page, nil
}

func (p *Paginator[T]) count(ctx context.Context) (int, error) {
	count, err := p.source.Count(ctx)
	if err != nil {
		return 0, oops.
			In("paginator").
			Code("SOURCE_FAILED").
			Wrapf(err, "failed to count items")
	}

	if count < 0 {
		count = 0
	}

	return count, nil
}

func (p *Paginator[T]) numPages(count int) int {
	if count == 0 && !p.allowEmptyFirstPage {
		return 0
	}

	hits := max(1, count-p.orphans)
	return (hits + p.perPage - 1) / p.perPage
}
