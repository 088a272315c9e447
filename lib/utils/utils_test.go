package utils

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestMinMax(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 1, Min(3, 1, 2))
	assert.Equal(t, 3, Max(3, 1, 2))
	assert.Equal(t, 5, Min(5))
}

func TestIIf(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "a", IIf(true, "a", "b"))
	assert.Equal(t, "b", IIf(false, "a", "b"))
}

func TestIsTrue(t *testing.T) {
	t.Parallel()

	assert.True(t, IsTrue("yes"))
	assert.True(t, IsTrue("1"))
	assert.False(t, IsTrue("No"))
	assert.False(t, IsTrue(""))
}

func TestParallelForCollectsAllOutputs(t *testing.T) {
	t.Parallel()

	group := ParallelFor([]int{1, 2, 3, 4}, func(i int) (int, error) {
		return i * 2, nil
	}, ParallelOptions{Routines: 2})

	sum := 0
	for o := range group.Output {
		sum += o
	}

	assert.Equal(t, 20, sum)
}

func TestParallelForStopsOnError(t *testing.T) {
	t.Parallel()

	group := ParallelFor([]int{1, 2, 3, 4, 5, 6, 7, 8}, func(i int) (int, error) {
		if i == 3 {
			return 0, errors.New("three")
		}
		return i, nil
	}, ParallelOptions{Routines: 2})

	for range group.Output {
	}

	err := <-group.Err
	assert.EqualError(t, err, "three")
}
