package paginator

import "errors"

// ErrInvalidArgument is returned for page numbers that are neither integers
// nor strings, and for negative window sizes.
var ErrInvalidArgument = errors.New("invalid argument")

// ErrEmptyPage is returned when the collection is empty and the paginator was
// configured to reject an empty first page.
var ErrEmptyPage = errors.New("page contains no results")

// ErrInvalidPerPage is returned by New when the page size is not positive.
var ErrInvalidPerPage = errors.New("per page must be greater than zero")
