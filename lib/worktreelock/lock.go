package worktreelock

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"golang.org/x/sync/semaphore"
)

const maxReaders = 1 << 20

// Lock gives exclusive access to writers and shared access to readers of one worktree.
// Waiters are served in order, so a pending writer holds back new readers.
type Lock struct {
	path           string
	sem            *semaphore.Weighted
	pendingWriters atomic.Int32
}

var registry = struct {
	sync.Mutex
	locks map[string]*Lock
}{locks: map[string]*Lock{}}

// ForRepository returns the lock shared by everyone using the repository at path.
func ForRepository(path string) *Lock {
	key, err := filepath.Abs(path)
	if err != nil {
		key = path
	}
	key = filepath.Clean(key)

	registry.Lock()
	defer registry.Unlock()

	l, ok := registry.locks[key]
	if !ok {
		l = New(key)
		registry.locks[key] = l
	}
	return l
}

func New(path string) *Lock {
	return &Lock{
		path: path,
		sem:  semaphore.NewWeighted(maxReaders),
	}
}

type WriteGuard struct {
	release func()
}

type ReadGuard struct {
	release func()
}

func (g *WriteGuard) Release() {
	g.release()
}

func (g *ReadGuard) Release() {
	g.release()
}

func (l *Lock) Exclusive(ctx context.Context) (*WriteGuard, error) {
	l.pendingWriters.Add(1)
	defer l.pendingWriters.Add(-1)

	err := l.sem.Acquire(ctx, maxReaders)
	if err != nil {
		return nil, errors.Wrapf(err, "error waiting for exclusive access to %v", l.path)
	}

	return &WriteGuard{release: onlyOnce(func() { l.sem.Release(maxReaders) })}, nil
}

func (l *Lock) Shared(ctx context.Context) (*ReadGuard, error) {
	err := l.sem.Acquire(ctx, 1)
	if err != nil {
		return nil, errors.Wrapf(err, "error waiting for shared access to %v", l.path)
	}

	return &ReadGuard{release: onlyOnce(func() { l.sem.Release(1) })}, nil
}

// TryExclusive returns nil if the lock is in use.
func (l *Lock) TryExclusive() *WriteGuard {
	if !l.sem.TryAcquire(maxReaders) {
		return nil
	}
	return &WriteGuard{release: onlyOnce(func() { l.sem.Release(maxReaders) })}
}

// PendingWriters is the number of writers waiting for the lock.
func (l *Lock) PendingWriters() int {
	return int(l.pendingWriters.Load())
}

func onlyOnce(f func()) func() {
	var once sync.Once
	return func() {
		once.Do(f)
	}
}
