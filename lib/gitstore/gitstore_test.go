package gitstore

import (
	"testing"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pescuma/lanes/lib/consoles"
	"github.com/pescuma/lanes/lib/gittest"
)

func newTestRepository(t *testing.T) (*gittest.Repo, *Repository) {
	g := gittest.New(t)
	return g, New(g.Git, consoles.NewNullConsole())
}

func TestOverlayIsInvisibleUntilPersisted(t *testing.T) {
	t.Parallel()

	g, repo := newTestRepository(t)
	c1 := g.Commit("c1", map[string]string{"a.txt": "a\n"})

	overlay := repo.CreateOverlay()
	blob, err := WriteBlob(overlay, []byte("new\n"))
	require.Nil(t, err)

	assert.Nil(t, overlay.HasEncodedObject(blob))
	assert.NotNil(t, repo.Storer().HasEncodedObject(blob))
	assert.True(t, overlay.Contains(blob))
	assert.Equal(t, 1, overlay.Written())

	// reads fall back to the repository
	c, err := FindCommit(overlay, c1)
	require.Nil(t, err)
	assert.Equal(t, "c1", c.Message)
	assert.False(t, overlay.Contains(c1))

	err = repo.Persist(overlay)
	require.Nil(t, err)

	assert.Nil(t, repo.Storer().HasEncodedObject(blob))
	content, err := ReadBlob(repo.Storer(), blob)
	require.Nil(t, err)
	assert.Equal(t, "new\n", string(content))
}

func TestBuildAndFlattenTree(t *testing.T) {
	t.Parallel()

	_, repo := newTestRepository(t)
	overlay := repo.CreateOverlay()

	a, _ := WriteBlob(overlay, []byte("a"))
	b, _ := WriteBlob(overlay, []byte("b"))

	tree, err := BuildTree(overlay, map[string]object.TreeEntry{
		"a.txt":     {Mode: filemode.Regular, Hash: a},
		"a/b.txt":   {Mode: filemode.Regular, Hash: b},
		"a/c/d.txt": {Mode: filemode.Executable, Hash: a},
	})
	require.Nil(t, err)

	root, err := object.GetTree(overlay, tree)
	require.Nil(t, err)
	assert.Equal(t, []string{"a.txt", "a"}, []string{root.Entries[0].Name, root.Entries[1].Name})

	files, err := FlattenTree(overlay, tree)
	require.Nil(t, err)
	assert.Len(t, files, 3)
	assert.Equal(t, b, files["a/b.txt"].Hash)
	assert.Equal(t, filemode.Executable, files["a/c/d.txt"].Mode)

	empty, err := FlattenTree(overlay, plumbing.ZeroHash)
	require.Nil(t, err)
	assert.Empty(t, empty)
}

func TestMergeTreesCombinesIndependentChanges(t *testing.T) {
	t.Parallel()

	g, repo := newTestRepository(t)
	base := g.Tree(map[string]string{"a.txt": "1\n2\n3\n", "b.txt": "b\n"})
	ours := g.Tree(map[string]string{"a.txt": "X\n2\n3\n", "b.txt": "b\n"})
	theirs := g.Tree(map[string]string{"a.txt": "1\n2\nZ\n", "c.txt": "c\n"})

	overlay := repo.CreateOverlay()
	m, err := MergeTrees(overlay, base, ours, theirs)
	require.Nil(t, err)

	assert.False(t, m.Conflicted())
	require.Nil(t, repo.Persist(overlay))
	assert.Equal(t, map[string]string{"a.txt": "X\n2\nZ\n", "c.txt": "c\n"}, g.TreeFiles(m.Tree))
}

func TestMergeTreesAutoResolvesConflictsWithOurs(t *testing.T) {
	t.Parallel()

	g, repo := newTestRepository(t)
	base := g.Tree(map[string]string{"a.txt": "1\n2\n3\n", "b.txt": "b\n"})
	ours := g.Tree(map[string]string{"a.txt": "1\nours\n3\n", "b.txt": "b2\n"})
	theirs := g.Tree(map[string]string{"a.txt": "1\ntheirs\n3\n"})

	overlay := repo.CreateOverlay()
	m, err := MergeTrees(overlay, base, ours, theirs)
	require.Nil(t, err)

	assert.Equal(t, []string{"a.txt", "b.txt"}, m.Conflicts)
	require.Nil(t, repo.Persist(overlay))
	assert.Equal(t, map[string]string{"a.txt": "1\nours\n3\n", "b.txt": "b2\n"}, g.TreeFiles(m.Tree))
}

func TestMergeTreesTrivialCases(t *testing.T) {
	t.Parallel()

	g, repo := newTestRepository(t)
	base := g.Tree(map[string]string{"a.txt": "1\n"})
	other := g.Tree(map[string]string{"a.txt": "2\n"})

	m, err := MergeTrees(repo.Storer(), base, base, other)
	require.Nil(t, err)
	assert.Equal(t, other, m.Tree)

	m, err = MergeTrees(repo.Storer(), base, other, base)
	require.Nil(t, err)
	assert.Equal(t, other, m.Tree)
}

func TestConflictedTree(t *testing.T) {
	t.Parallel()

	g, repo := newTestRepository(t)
	ours := g.Tree(map[string]string{"a.txt": "ours\n"})
	theirs := g.Tree(map[string]string{"a.txt": "theirs\n"})
	base := g.Tree(map[string]string{"a.txt": "base\n"})

	overlay := repo.CreateOverlay()
	tree, err := WriteConflictedTree(overlay, ConflictedTree{
		Ours:           ours,
		Theirs:         theirs,
		Base:           base,
		AutoResolution: ours,
		Files:          []string{"a.txt"},
	})
	require.Nil(t, err)

	sig := g.Signature()
	h, err := WriteObject(overlay, &object.Commit{Author: sig, Committer: sig, Message: "conflicted", TreeHash: tree})
	require.Nil(t, err)

	c, err := FindCommit(overlay, h)
	require.Nil(t, err)
	assert.True(t, IsConflicted(c))

	ct, err := ReadConflictedTree(c)
	require.Nil(t, err)
	assert.Equal(t, ours, ct.Ours)
	assert.Equal(t, theirs, ct.Theirs)
	assert.Equal(t, base, ct.Base)
	assert.Equal(t, []string{"a.txt"}, ct.Files)

	content, err := ContentTree(c)
	require.Nil(t, err)
	assert.Equal(t, ours, content)

	clean := g.Commit("clean", map[string]string{"a.txt": "a\n"})
	cc, err := repo.FindCommit(clean)
	require.Nil(t, err)
	assert.False(t, IsConflicted(cc))
}
