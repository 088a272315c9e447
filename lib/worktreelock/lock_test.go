package worktreelock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func shortContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	t.Cleanup(cancel)
	return ctx
}

func TestReadersShare(t *testing.T) {
	t.Parallel()

	l := New("repo")

	r1, err := l.Shared(context.Background())
	require.Nil(t, err)
	r2, err := l.Shared(shortContext(t))
	require.Nil(t, err)

	assert.Nil(t, l.TryExclusive())

	r1.Release()
	r2.Release()

	w := l.TryExclusive()
	require.NotNil(t, w)
	w.Release()
}

func TestWriterExcludesEveryone(t *testing.T) {
	t.Parallel()

	l := New("repo")

	w, err := l.Exclusive(context.Background())
	require.Nil(t, err)

	_, err = l.Shared(shortContext(t))
	assert.NotNil(t, err)

	_, err = l.Exclusive(shortContext(t))
	assert.NotNil(t, err)

	w.Release()
	w.Release()

	r, err := l.Shared(shortContext(t))
	require.Nil(t, err)
	r.Release()
}

func TestPendingWriterHoldsBackNewReaders(t *testing.T) {
	t.Parallel()

	l := New("repo")

	r, err := l.Shared(context.Background())
	require.Nil(t, err)

	acquired := make(chan *WriteGuard)
	go func() {
		w, err := l.Exclusive(context.Background())
		if err == nil {
			acquired <- w
		}
	}()

	assert.Eventually(t, func() bool { return l.PendingWriters() == 1 }, time.Second, time.Millisecond)
	assert.Eventually(t, func() bool {
		// fails only once the writer is queued
		if l.sem.TryAcquire(1) {
			l.sem.Release(1)
			return false
		}
		return true
	}, time.Second, time.Millisecond)

	_, err = l.Shared(shortContext(t))
	assert.NotNil(t, err)

	r.Release()

	select {
	case w := <-acquired:
		assert.Equal(t, 0, l.PendingWriters())
		w.Release()
	case <-time.After(time.Second):
		t.Fatal("writer did not get the lock")
	}
}

func TestForRepositorySharesLocks(t *testing.T) {
	t.Parallel()

	a := ForRepository("some/repo")
	b := ForRepository("some/../some/repo/")
	c := ForRepository("other")

	assert.Same(t, a, b)
	assert.NotSame(t, a, c)
}
