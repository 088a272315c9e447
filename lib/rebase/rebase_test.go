package rebase

import (
	"testing"
	"time"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pescuma/lanes/lib/checkout"
	"github.com/pescuma/lanes/lib/consoles"
	"github.com/pescuma/lanes/lib/gitstore"
	"github.com/pescuma/lanes/lib/gittest"
)

// fixture has two lanes on top of base:
//
//	A: base -> a1 (changes a.txt) -> a2 (adds b.txt)
//	B: base -> b1 (changes the same line of a.txt)
//
// main points to base and HEAD to A.
type fixture struct {
	g    *gittest.Repo
	repo *gitstore.Repository

	base, a1, a2, b1 plumbing.Hash
}

func newFixture(t testing.TB) *fixture {
	g := gittest.New(t)

	f := &fixture{g: g}
	f.base = g.Commit("base", map[string]string{"a.txt": "1\n2\n3\n"})
	f.a1 = g.Change(f.base, "a1", map[string]string{"a.txt": "1\nA\n3\n"})
	f.a2 = g.Change(f.a1, "a2", map[string]string{"b.txt": "b\n"})
	f.b1 = g.Change(f.base, "b1", map[string]string{"a.txt": "1\nB\n3\n"})

	g.Branch("main", f.base)
	g.Branch("A", f.a2)
	g.Branch("B", f.b1)
	g.Checkout("A")

	f.repo = gitstore.New(g.Git, consoles.NewNullConsole())
	return f
}

func (f *fixture) editor(t testing.TB) *Editor {
	e, err := NewEditor(f.repo, EditorOptions{
		Heads:    []plumbing.ReferenceName{plumbing.NewBranchReferenceName("A"), plumbing.NewBranchReferenceName("B")},
		Base:     f.base,
		Identity: &object.Signature{Name: "Lanes", Email: "lanes@example.com"},
		Now:      func() time.Time { return time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC) },
	})
	require.NoError(t, err)
	return e
}

func (f *fixture) selectCommit(t testing.TB, e *Editor, h plumbing.Hash) Selector {
	sel, _, err := e.FindSelectableCommit(h.String())
	require.NoError(t, err)
	return sel
}

func hashPtr(h plumbing.Hash) *plumbing.Hash {
	return &h
}

func TestNoOpRebaseChangesNothing(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	e := f.editor(t)

	r, err := e.Rebase()
	require.NoError(t, err)

	assert.Equal(t, map[plumbing.Hash]plumbing.Hash{
		f.base: f.base,
		f.a1:   f.a1,
		f.a2:   f.a2,
		f.b1:   f.b1,
	}, r.CommitMapping)
	assert.Empty(t, r.RefEdits)
	assert.Empty(t, r.Checkouts)
	assert.Equal(t, 0, r.NewObjects())

	out, err := r.Materialize(MaterializeOptions{})
	require.NoError(t, err)

	assert.Nil(t, out.Checkout)
	assert.Nil(t, out.CheckoutSkipped)
	assert.Equal(t, f.a2, f.g.BranchCommit("A"))
	assert.Equal(t, f.b1, f.g.BranchCommit("B"))
}

func TestRemovingACommitRebasesItsDescendants(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	e := f.editor(t)

	_, err := e.Remove(f.selectCommit(t, e, f.a1))
	require.NoError(t, err)

	r, err := e.Rebase()
	require.NoError(t, err)

	newA2 := r.CommitMapping[f.a2]
	assert.NotEqual(t, f.a2, newA2)
	assert.NotContains(t, r.CommitMapping, f.a1)
	assert.Equal(t, f.b1, r.CommitMapping[f.b1])

	assert.Equal(t, []gitstore.RefEdit{
		{Name: plumbing.NewBranchReferenceName("A"), Kind: gitstore.RefUpdate, Expected: hashPtr(f.a2), New: newA2},
	}, r.RefEdits)
	assert.Equal(t, []Checkout{CheckoutHead}, r.Checkouts)
	assert.Equal(t, newA2, r.NewHead)

	_, err = f.repo.FindCommit(newA2)
	assert.Error(t, err, "new commits stay in memory until materialized")

	out, err := r.Materialize(MaterializeOptions{})
	require.NoError(t, err)

	assert.Equal(t, newA2, f.g.BranchCommit("A"))
	assert.Equal(t, []plumbing.Hash{f.base}, f.g.Parents(newA2))
	assert.Equal(t, map[string]string{"a.txt": "1\n2\n3\n", "b.txt": "b\n"}, f.g.Files(newA2))
	assert.Equal(t, "a2", f.g.Message(newA2))

	c, err := f.repo.FindCommit(newA2)
	require.NoError(t, err)
	assert.Equal(t, "Lanes", c.Committer.Name)
	assert.Equal(t, "Tester", c.Author.Name)

	require.NotNil(t, out.Checkout)
	assert.Equal(t, 1, out.Checkout.FilesUpdated)
	assert.Equal(t, "1\n2\n3\n", f.g.ReadFile("a.txt"))
}

func TestRenamingAReferenceCreatesAndDeletes(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.g.Branch("feature", f.a1)
	e := f.editor(t)

	sel, err := e.SelectReference("feature")
	require.NoError(t, err)

	_, err = e.Replace(sel, Reference{Name: plumbing.NewBranchReferenceName("renamed")})
	require.NoError(t, err)

	r, err := e.Rebase()
	require.NoError(t, err)

	assert.ElementsMatch(t, []gitstore.RefEdit{
		{Name: plumbing.NewBranchReferenceName("renamed"), Kind: gitstore.RefCreate, New: f.a1},
		{Name: plumbing.NewBranchReferenceName("feature"), Kind: gitstore.RefDelete, Expected: hashPtr(f.a1)},
	}, r.RefEdits)
	assert.Empty(t, r.Checkouts)

	_, err = r.Materialize(MaterializeOptions{})
	require.NoError(t, err)

	assert.Equal(t, f.a1, f.g.BranchCommit("renamed"))
	assert.Equal(t, plumbing.ZeroHash, f.g.BranchCommit("feature"))
	assert.Equal(t, f.a2, f.g.BranchCommit("A"))
}

func TestRemovedReferenceIsDeletedOnce(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.g.Branch("feature", f.a1)
	e := f.editor(t)

	sel, err := e.SelectReference(plumbing.NewBranchReferenceName("feature"))
	require.NoError(t, err)

	_, err = e.Remove(sel)
	require.NoError(t, err)

	r, err := e.Rebase()
	require.NoError(t, err)

	assert.Equal(t, []gitstore.RefEdit{
		{Name: plumbing.NewBranchReferenceName("feature"), Kind: gitstore.RefDelete, Expected: hashPtr(f.a1)},
	}, r.RefEdits)
}

// moveToB cherry-picks a1 to the top of lane B and removes it from lane A.
func (f *fixture) moveToB(t testing.TB, e *Editor) Selector {
	refB, err := e.SelectReference("B")
	require.NoError(t, err)

	onto, err := e.Insert(refB, Removed{}, Below)
	require.NoError(t, err)

	a1 := f.selectCommit(t, e, f.a1)

	sel, err := e.CherryPick(a1, onto)
	require.NoError(t, err)

	_, err = e.Remove(a1)
	require.NoError(t, err)

	return sel
}

func TestConflictingCherryPickStillMaterializes(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	e := f.editor(t)

	sel := f.moveToB(t, e)

	step, err := e.Step(sel)
	require.NoError(t, err)
	picked := step.(Pick).CommitID

	c, err := e.FindCommit(picked)
	require.NoError(t, err)
	assert.True(t, gitstore.IsConflicted(c))
	assert.Equal(t, []plumbing.Hash{f.b1}, c.ParentHashes)

	r, err := e.Rebase()
	require.NoError(t, err)

	assert.Equal(t, picked, r.CommitMapping[picked])
	assert.Equal(t, picked, r.CommitMapping[f.a1])

	newA2 := r.CommitMapping[f.a2]
	assert.ElementsMatch(t, []gitstore.RefEdit{
		{Name: plumbing.NewBranchReferenceName("A"), Kind: gitstore.RefUpdate, Expected: hashPtr(f.a2), New: newA2},
		{Name: plumbing.NewBranchReferenceName("B"), Kind: gitstore.RefUpdate, Expected: hashPtr(f.b1), New: picked},
	}, r.RefEdits)

	_, err = r.Materialize(MaterializeOptions{})
	require.NoError(t, err)

	assert.Equal(t, picked, f.g.BranchCommit("B"))
	assert.Equal(t, newA2, f.g.BranchCommit("A"))
	assert.Equal(t, f.base, f.g.BranchCommit("main"))

	c, err = f.repo.FindCommit(picked)
	require.NoError(t, err)
	ct, err := gitstore.ReadConflictedTree(c)
	require.NoError(t, err)

	assert.Equal(t, []string{"a.txt"}, ct.Files)
	assert.Equal(t, "1\nB\n3\n", f.g.TreeFiles(ct.AutoResolution)["a.txt"])
	assert.Equal(t, "1\nA\n3\n", f.g.TreeFiles(ct.Theirs)["a.txt"])
	assert.Equal(t, "1\n2\n3\n", f.g.TreeFiles(ct.Base)["a.txt"])
}

func TestSkippedCheckoutStillMovesReferences(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	e := f.editor(t)

	f.moveToB(t, e)

	r, err := e.Rebase()
	require.NoError(t, err)

	f.g.WriteFile("a.txt", "1\nX\n3\n")

	out, err := r.Materialize(MaterializeOptions{UncommittedChanges: checkout.KeepAndAbortOnConflict})
	require.NoError(t, err)

	assert.True(t, errors.Is(out.CheckoutSkipped, checkout.ErrConflictingChanges))
	assert.Nil(t, out.Checkout)
	assert.Equal(t, r.CommitMapping, out.CommitMapping)

	assert.Equal(t, r.CommitMapping[f.a2], f.g.BranchCommit("A"))
	assert.Equal(t, "1\nX\n3\n", f.g.ReadFile("a.txt"))
}

func TestDetachedHeadIsMoved(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	require.NoError(t, f.g.Git.Storer.SetReference(plumbing.NewHashReference(plumbing.HEAD, f.a2)))
	e := f.editor(t)

	_, err := e.Remove(f.selectCommit(t, e, f.a1))
	require.NoError(t, err)

	r, err := e.Rebase()
	require.NoError(t, err)

	newA2 := r.CommitMapping[f.a2]
	assert.Contains(t, r.RefEdits, gitstore.RefEdit{Name: plumbing.HEAD, Kind: gitstore.RefUpdate, Expected: hashPtr(f.a2), New: newA2})
	assert.Equal(t, []Checkout{CheckoutHead}, r.Checkouts)

	_, err = r.Materialize(MaterializeOptions{})
	require.NoError(t, err)

	head, err := f.repo.Head()
	require.NoError(t, err)
	assert.Equal(t, plumbing.HashReference, head.Type())
	assert.Equal(t, newA2, head.Hash())
}

func TestMovedReferenceLeavesWorktreeAndReferencesAlone(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	require.NoError(t, f.g.Git.Storer.SetReference(plumbing.NewHashReference(plumbing.HEAD, f.a2)))
	e := f.editor(t)

	_, err := e.Remove(f.selectCommit(t, e, f.a1))
	require.NoError(t, err)

	r, err := e.Rebase()
	require.NoError(t, err)
	require.Equal(t, []Checkout{CheckoutHead}, r.Checkouts)

	f.g.Branch("A", f.base)

	_, err = r.Materialize(MaterializeOptions{})
	assert.True(t, errors.Is(err, gitstore.ErrReferenceMismatch))

	assert.Equal(t, "1\nA\n3\n", f.g.ReadFile("a.txt"))
	assert.Equal(t, "b\n", f.g.ReadFile("b.txt"))

	head, err := f.repo.Head()
	require.NoError(t, err)
	assert.Equal(t, f.a2, head.Hash())
	assert.Equal(t, f.base, f.g.BranchCommit("A"))
	assert.Equal(t, f.b1, f.g.BranchCommit("B"))
}

func TestReorderingKeepsTopologicalOrder(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	e := f.editor(t)

	// a2 goes below a1
	a2 := f.selectCommit(t, e, f.a2)
	a1 := f.selectCommit(t, e, f.a1)

	_, err := e.Remove(a2)
	require.NoError(t, err)
	_, err = e.Insert(a1, NewPick(f.a2), Below)
	require.NoError(t, err)

	r, err := e.Rebase()
	require.NoError(t, err)

	newA2 := r.CommitMapping[f.a2]
	newA1 := r.CommitMapping[f.a1]

	_, err = r.Materialize(MaterializeOptions{})
	require.NoError(t, err)

	assert.Equal(t, []plumbing.Hash{f.base}, f.g.Parents(newA2))
	assert.Equal(t, []plumbing.Hash{newA2}, f.g.Parents(newA1))
	assert.Equal(t, newA1, f.g.BranchCommit("A"))
	assert.Equal(t, map[string]string{"a.txt": "1\nA\n3\n", "b.txt": "b\n"}, f.g.Files(newA1))
	assert.Equal(t, map[string]string{"a.txt": "1\n2\n3\n", "b.txt": "b\n"}, f.g.Files(newA2))
}

func TestMergeCommitKeepsParentOrder(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	side := f.g.Change(f.base, "side", map[string]string{"d.txt": "d\n"})
	m := f.g.Commit("merge", map[string]string{"a.txt": "1\nA\n3\n", "b.txt": "b\n", "d.txt": "d\n"}, f.a2, side)
	c := f.g.Change(f.a2, "c", map[string]string{"c.txt": "c\n"})
	f.g.Branch("A", m)
	f.g.Checkout("A")
	e := f.editor(t)

	_, err := e.Insert(f.selectCommit(t, e, f.a2), NewPick(c), Above)
	require.NoError(t, err)

	r, err := e.Rebase()
	require.NoError(t, err)

	assert.Equal(t, c, r.CommitMapping[c])
	assert.Equal(t, side, r.CommitMapping[side])

	newM := r.CommitMapping[m]
	require.NotEqual(t, m, newM)

	_, err = r.Materialize(MaterializeOptions{})
	require.NoError(t, err)

	assert.Equal(t, []plumbing.Hash{c, side}, f.g.Parents(newM))
	assert.Equal(t, map[string]string{"a.txt": "1\nA\n3\n", "b.txt": "b\n", "c.txt": "c\n", "d.txt": "d\n"}, f.g.Files(newM))
	assert.Equal(t, newM, f.g.BranchCommit("A"))
}
