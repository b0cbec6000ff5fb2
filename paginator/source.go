package paginator

import "context"

// SliceSource pages over an in-memory slice.
type SliceSource[T any] []T

func (s SliceSource[T]) Count(context.Context) (int, error) {
	return len(s), nil
}

func (s SliceSource[T]) Slice(_ context.Context, offset, limit int) ([]T, error) {
	if offset < 0 {
		offset = 0
	}

	if offset >= len(s) || limit <= 0 {
		return []T{}, nil
	}

	end := min(offset+limit, len(s))
	return s[offset:end], nil
}

// CountFunc reports the size of a collection.
type CountFunc func(ctx context.Context) (int, error)

// SliceFunc loads a window of a collection.
type SliceFunc[T any] func(ctx context.Context, offset, limit int) ([]T, error)

// SourceFunc adapts a pair of functions to PageSource, typically a COUNT
// query and a LIMIT/OFFSET query against the same table.
type SourceFunc[T any] struct {
	CountFn CountFunc
	SliceFn SliceFunc[T]
}

func (s SourceFunc[T]) Count(ctx context.Context) (int, error) {
	if s.CountFn == nil {
		return 0, nil
	}
	return s.CountFn(ctx)
}

func (s SourceFunc[T]) Slice(ctx context.Context, offset, limit int) ([]T, error) {
	if s.SliceFn == nil {
		return []T{}, nil
	}
	return s.SliceFn(ctx, offset, limit)
}
