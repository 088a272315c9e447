package merge

import (
	"testing"

	"github.com/bloomberg/go-testgroup"
)

func TestThreeWay(t *testing.T) {
	testgroup.RunInParallel(t, &ThreeWayTests{})
}

type ThreeWayTests struct {
}

const base = "1\n2\n3\n4\n5\n"

func (g *ThreeWayTests) SameChangeOnBothSides(t *testgroup.T) {
	r := ThreeWay(base, "1\nx\n3\n4\n5\n", "1\nx\n3\n4\n5\n", Options{})

	t.False(r.Conflicted())
	t.Equal("1\nx\n3\n4\n5\n", r.Content)
}

func (g *ThreeWayTests) OnlyTheirsChanged(t *testgroup.T) {
	r := ThreeWay(base, base, "1\n2\n3\n4\n5\n6\n", Options{})

	t.False(r.Conflicted())
	t.Equal("1\n2\n3\n4\n5\n6\n", r.Content)
}

func (g *ThreeWayTests) DisjointChanges(t *testgroup.T) {
	r := ThreeWay(base, "a\n2\n3\n4\n5\n", "1\n2\n3\n4\ne\n", Options{})

	t.False(r.Conflicted())
	t.Equal("a\n2\n3\n4\ne\n", r.Content)
}

func (g *ThreeWayTests) InsertAndDeleteElsewhere(t *testgroup.T) {
	r := ThreeWay(base, "1\n2\n2.5\n3\n4\n5\n", "1\n2\n3\n5\n", Options{})

	t.False(r.Conflicted())
	t.Equal("1\n2\n2.5\n3\n5\n", r.Content)
}

func (g *ThreeWayTests) ConflictWritesMarkers(t *testgroup.T) {
	r := ThreeWay(base, "1\n2\nours\n4\n5\n", "1\n2\ntheirs\n4\n5\n", Options{OursLabel: "lane-a", TheirsLabel: "c3"})

	t.True(r.Conflicted())
	t.Equal(1, r.Conflicts)
	t.Equal("1\n2\n<<<<<<< lane-a\nours\n=======\ntheirs\n>>>>>>> c3\n4\n5\n", r.Content)
}

func (g *ThreeWayTests) ConflictFavorOurs(t *testgroup.T) {
	r := ThreeWay(base, "1\n2\nours\n4\n5\n", "1\n2\ntheirs\n4\n5\n", Options{Favor: FavorOurs})

	t.True(r.Conflicted())
	t.Equal("1\n2\nours\n4\n5\n", r.Content)
}

func (g *ThreeWayTests) ConflictFavorTheirs(t *testgroup.T) {
	r := ThreeWay(base, "1\n2\nours\n4\n5\n", "1\n2\ntheirs\n4\n5\n", Options{Favor: FavorTheirs})

	t.True(r.Conflicted())
	t.Equal("1\n2\ntheirs\n4\n5\n", r.Content)
}

func (g *ThreeWayTests) InsertionsAtSamePointConflict(t *testgroup.T) {
	r := ThreeWay(base, base+"a\n", base+"b\n", Options{Favor: FavorOurs})

	t.True(r.Conflicted())
	t.Equal(base+"a\n", r.Content)
}

func (g *ThreeWayTests) EmptyBase(t *testgroup.T) {
	r := ThreeWay("", "a\n", "", Options{})

	t.False(r.Conflicted())
	t.Equal("a\n", r.Content)
}
