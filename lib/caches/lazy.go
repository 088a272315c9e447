package caches

import "sync"

// Lazy loads a value on first use. Errors are kept like values.
type Lazy[T any] struct {
	once   sync.Once
	loader func() (T, error)
	val    T
	err    error
}

func NewLazy[T any](loader func() (T, error)) *Lazy[T] {
	return &Lazy[T]{
		loader: loader,
	}
}

func (l *Lazy[T]) Get() (T, error) {
	l.once.Do(func() {
		l.val, l.err = l.loader()
		l.loader = nil
	})

	return l.val, l.err
}
