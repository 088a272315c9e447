package caches

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestUnlimitedLoadsOnce(t *testing.T) {
	t.Parallel()

	c := NewUnlimited[string, int]()
	calls := 0
	loader := func(k string) (int, error) {
		calls++
		return len(k), nil
	}

	v, err := c.Get("abc", loader)
	assert.Nil(t, err)
	assert.Equal(t, 3, v)

	v, err = c.Get("abc", loader)
	assert.Nil(t, err)
	assert.Equal(t, 3, v)

	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, c.Len())
}

func TestUnlimitedCachesErrors(t *testing.T) {
	t.Parallel()

	c := NewUnlimited[int, int]()
	calls := 0
	loader := func(k int) (int, error) {
		calls++
		return 0, errors.New("boom")
	}

	_, err := c.Get(1, loader)
	assert.NotNil(t, err)
	_, err = c.Get(1, loader)
	assert.NotNil(t, err)

	assert.Equal(t, 1, calls)
}

func TestLazyLoadsOnce(t *testing.T) {
	t.Parallel()

	calls := 0
	l := NewLazy(func() (string, error) {
		calls++
		return "user", nil
	})

	for i := 0; i < 3; i++ {
		v, err := l.Get()
		assert.Nil(t, err)
		assert.Equal(t, "user", v)
	}

	assert.Equal(t, 1, calls)
}
