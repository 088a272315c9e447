package caches

type Cache[K comparable, V any] interface {
	// Get returns the cached value, calling loader only once per key.
	// Errors are cached too.
	Get(key K, loader func(K) (V, error)) (V, error)
	Len() int
}
