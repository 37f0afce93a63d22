package cloud115

import "github.com/go115/cloud115/pkg/protocol"

// Iterator walks a remote listing. Each call to Next may block on one page
// request; abandoning the iterator stops further requests.
type Iterator[T any] struct {
	next func() bool
	item func() T
	err  func() error
}

func mapIterator[R, T any](src *protocol.Iterator[R], conv func(R) T) *Iterator[T] {
	return &Iterator[T]{
		next: src.Next,
		item: func() T { return conv(src.Item()) },
		err:  src.Err,
	}
}

// Next advances to the next item.
func (it *Iterator[T]) Next() bool {
	return it.next()
}

// Item returns the current item.
func (it *Iterator[T]) Item() T {
	return it.item()
}

// Err returns the error that stopped the iteration, if any.
func (it *Iterator[T]) Err() error {
	return it.err()
}

// Collect drains the iterator.
func (it *Iterator[T]) Collect() ([]T, error) {
	var out []T
	for it.Next() {
		out = append(out, it.Item())
	}
	return out, it.Err()
}
