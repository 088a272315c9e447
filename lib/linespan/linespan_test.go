package linespan

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewRejectsInvalidSpans(t *testing.T) {
	t.Parallel()

	_, err := New(0, 3)
	assert.NotNil(t, err)

	_, err = New(5, 4)
	assert.NotNil(t, err)

	s, err := New(4, 4)
	assert.Nil(t, err)
	assert.Equal(t, 1, s.Lines())
}

func TestFromStartAndLines(t *testing.T) {
	t.Parallel()

	s, err := FromStartAndLines(10, 3)
	assert.Nil(t, err)
	assert.Equal(t, LineSpan{Start: 10, End: 12}, s)

	_, err = FromStartAndLines(10, 0)
	assert.NotNil(t, err)
}

func TestContains(t *testing.T) {
	t.Parallel()

	s := MustNew(3, 6)

	assert.True(t, s.Contains(3))
	assert.True(t, s.Contains(6))
	assert.False(t, s.Contains(2))
	assert.False(t, s.Contains(7))

	assert.True(t, s.ContainsSpan(MustNew(4, 5)))
	assert.True(t, s.ContainsSpan(s))
	assert.False(t, s.ContainsSpan(MustNew(5, 7)))
}

func TestIntersects(t *testing.T) {
	t.Parallel()

	s := MustNew(3, 6)

	assert.True(t, s.Intersects(MustNew(6, 8)))
	assert.True(t, s.Intersects(MustNew(1, 3)))
	assert.True(t, s.Intersects(MustNew(4, 4)))
	assert.False(t, s.Intersects(MustNew(7, 8)))
	assert.False(t, s.Intersects(MustNew(1, 2)))
}

func TestDistance(t *testing.T) {
	t.Parallel()

	s := MustNew(3, 6)

	assert.Equal(t, 0, s.Distance(MustNew(5, 9)))
	assert.Equal(t, 0, s.Distance(MustNew(7, 9)))
	assert.Equal(t, 3, s.Distance(MustNew(10, 12)))
	assert.Equal(t, 1, MustNew(10, 12).Distance(MustNew(1, 8)))
}

func TestUnionAndString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "1-9", MustNew(1, 3).Union(MustNew(7, 9)).String())
}
