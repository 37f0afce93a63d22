package protocol

import (
	"context"
)

// Strategy decides where the next page starts and whether it exists.
type Strategy interface {
	Next(position, fetched, total int) (next int, more bool)
}

// OffsetStrategy walks 0-based item offsets; total is the item count.
type OffsetStrategy struct{}

// Next implements Strategy.
func (OffsetStrategy) Next(position, fetched, total int) (int, bool) {
	next := position + fetched
	return next, next < total
}

// PageStrategy walks 1-based page numbers; total is the page count.
type PageStrategy struct{}

// Next implements Strategy.
func (PageStrategy) Next(position, fetched, total int) (int, bool) {
	return position + 1, position < total
}

// Iterator yields the items of a paginated listing one at a time. It fetches
// a page only when the previous one is exhausted and cannot be restarted.
type Iterator[T any] struct {
	ctx      context.Context
	session  *Session
	spec     PagedSpec[T]
	strategy Strategy

	buf  []T
	idx  int
	cur  T
	done bool
	err  error
}

// Paginate returns an Iterator over spec. No request is made until Next is
// called.
func Paginate[T any](ctx context.Context, s *Session, spec PagedSpec[T], strategy Strategy) *Iterator[T] {
	if strategy == nil {
		strategy = OffsetStrategy{}
	}
	return &Iterator[T]{ctx: ctx, session: s, spec: spec, strategy: strategy}
}

// Next advances to the next item, fetching a page if needed. It returns false
// when the listing is exhausted or a call failed; check Err.
func (it *Iterator[T]) Next() bool {
	for {
		if it.err != nil {
			return false
		}
		if it.idx < len(it.buf) {
			it.cur = it.buf[it.idx]
			it.idx++
			return true
		}
		if it.done {
			return false
		}
		it.fetch()
	}
}

// Item returns the current item.
func (it *Iterator[T]) Item() T {
	return it.cur
}

// Err returns the error that stopped the iteration, if any.
func (it *Iterator[T]) Err() error {
	return it.err
}

func (it *Iterator[T]) fetch() {
	page, err := Execute[Page[T]](it.ctx, it.session, it.spec)
	if err != nil {
		it.err = err
		it.buf, it.idx = nil, 0
		return
	}
	it.buf, it.idx = page.Items, 0

	// An empty page ends the walk even if the remote still reports more.
	if len(page.Items) == 0 {
		it.done = true
		return
	}
	next, more := it.strategy.Next(page.Position, len(page.Items), page.Total)
	if !more {
		it.done = true
		return
	}
	it.spec.SetPosition(next)
}

// Collect drains it into a slice.
func Collect[T any](it *Iterator[T]) ([]T, error) {
	var out []T
	for it.Next() {
		out = append(out, it.Item())
	}
	if err := it.Err(); err != nil {
		return out, err
	}
	return out, nil
}
