package rebase

import (
	"testing"
	"time"

	"github.com/bloomberg/go-testgroup"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/pkg/errors"

	"github.com/pescuma/lanes/lib/gitstore"
)

func TestEditor(t *testing.T) {
	t.Parallel()

	testgroup.RunInParallel(t, &EditorTests{})
}

type EditorTests struct {
}

func (g *EditorTests) steps(t *testgroup.T, e *Editor, sels []Selector) []string {
	var result []string
	for _, s := range sels {
		step, err := e.Step(s)
		t.Require.NoError(err)
		result = append(result, step.String())
	}
	return result
}

func (g *EditorTests) parents(t *testgroup.T, e *Editor, sel Selector) []string {
	ps, err := e.Parents(sel)
	t.Require.NoError(err)
	return g.steps(t, e, ps)
}

func (g *EditorTests) BuildsLanesOverTheBase(t *testgroup.T) {
	f := newFixture(t.T)
	e := f.editor(t.T)

	a, err := e.SelectReference("A")
	t.Require.NoError(err)
	main, err := e.SelectReference("main")
	t.Require.NoError(err)

	t.Equal([]string{NewPick(f.a2).String()}, g.parents(t, e, a))
	t.Equal([]string{Pick{CommitID: f.base, PreservedParents: []plumbing.Hash{}}.String()}, g.parents(t, e, main))

	a1 := f.selectCommit(t.T, e, f.a1)
	t.Equal([]string{"reference refs/heads/main"}, g.parents(t, e, a1))

	b1 := f.selectCommit(t.T, e, f.b1)
	t.Equal([]string{"reference refs/heads/main"}, g.parents(t, e, b1))

	base, _, err := e.FindSelectableCommit(f.base.String())
	t.Require.NoError(err)
	step, err := e.Step(base)
	t.Require.NoError(err)
	t.True(step.(Pick).IsBoundary())

	t.Equal(map[plumbing.ReferenceName]plumbing.Hash{
		plumbing.NewBranchReferenceName("A"):    f.a2,
		plumbing.NewBranchReferenceName("B"):    f.b1,
		plumbing.NewBranchReferenceName("main"): f.base,
	}, e.InitialReferences())
	t.Len(e.Heads(), 2)
}

func (g *EditorTests) ReferenceFilterSkipsOtherBranches(t *testgroup.T) {
	f := newFixture(t.T)
	f.g.Branch("feature/x", f.a1)

	e, err := NewEditor(f.repo, EditorOptions{
		Heads:      []plumbing.ReferenceName{plumbing.NewBranchReferenceName("A")},
		Base:       f.base,
		References: "feature/*",
	})
	t.Require.NoError(err)

	_, err = e.SelectReference("feature/x")
	t.NoError(err)
	_, err = e.SelectReference("main")
	t.True(errors.Is(err, ErrNotFound))
}

func (g *EditorTests) InsertAboveRedirectsChildren(t *testgroup.T) {
	f := newFixture(t.T)
	e := f.editor(t.T)

	a1 := f.selectCommit(t.T, e, f.a1)
	sel, err := e.Insert(a1, Reference{Name: plumbing.NewBranchReferenceName("new")}, Above)
	t.Require.NoError(err)

	a2 := f.selectCommit(t.T, e, f.a2)
	t.Equal([]string{"reference refs/heads/new"}, g.parents(t, e, a2))
	t.Equal([]string{NewPick(f.a1).String()}, g.parents(t, e, sel))
}

func (g *EditorTests) InsertBelowTakesTheParents(t *testgroup.T) {
	f := newFixture(t.T)
	e := f.editor(t.T)

	a1 := f.selectCommit(t.T, e, f.a1)
	sel, err := e.Insert(a1, Removed{}, Below)
	t.Require.NoError(err)

	t.Equal([]string{"removed"}, g.parents(t, e, a1))
	t.Equal([]string{"reference refs/heads/main"}, g.parents(t, e, sel))
}

func (g *EditorTests) InsertBetweenLeavesOtherChildren(t *testgroup.T) {
	f := newFixture(t.T)
	e := f.editor(t.T)

	a1 := f.selectCommit(t.T, e, f.a1)
	a2 := f.selectCommit(t.T, e, f.a2)
	b1 := f.selectCommit(t.T, e, f.b1)
	main, err := e.SelectReference("main")
	t.Require.NoError(err)

	sel, err := e.InsertBetween(main, a1, Removed{})
	t.Require.NoError(err)

	t.Equal([]string{"removed"}, g.parents(t, e, a1))
	t.Equal([]string{"reference refs/heads/main"}, g.parents(t, e, sel))
	t.Equal([]string{"reference refs/heads/main"}, g.parents(t, e, b1))

	n := e.Graph().Len()
	_, err = e.InsertBetween(main, a2, Removed{})
	t.Error(err)
	t.Equal(n, e.Graph().Len())
}

func (g *EditorTests) ReplaceParentKeepsTheEdgeOrder(t *testgroup.T) {
	f := newFixture(t.T)
	e := f.editor(t.T)

	a2 := f.selectCommit(t.T, e, f.a2)
	a1 := f.selectCommit(t.T, e, f.a1)
	b1 := f.selectCommit(t.T, e, f.b1)
	main, err := e.SelectReference("main")
	t.Require.NoError(err)

	t.Require.NoError(e.ReplaceParent(a2, a1, b1, main))
	t.Equal([]string{NewPick(f.b1).String(), "reference refs/heads/main"}, g.parents(t, e, a2))

	t.Require.NoError(e.ReplaceParent(a2, b1, a1))
	t.Equal([]string{NewPick(f.a1).String(), "reference refs/heads/main"}, g.parents(t, e, a2))

	t.Require.NoError(e.ReplaceParent(a2, main))
	t.Equal([]string{NewPick(f.a1).String()}, g.parents(t, e, a2))

	t.Require.Error(e.ReplaceParent(a2, b1, main))
}

func (g *EditorTests) ForeignSelectorsAreRejected(t *testgroup.T) {
	f := newFixture(t.T)
	e1 := f.editor(t.T)
	e2 := f.editor(t.T)

	sel := f.selectCommit(t.T, e1, f.a1)

	_, err := e2.Remove(sel)
	t.True(errors.Is(err, ErrForeignSelector))

	_, err = e2.Insert(sel, Removed{}, Above)
	t.True(errors.Is(err, ErrForeignSelector))
}

func (g *EditorTests) FindsCommitsByPrefixAndReference(t *testgroup.T) {
	f := newFixture(t.T)
	e := f.editor(t.T)

	_, c, err := e.FindSelectableCommit(f.a1.String()[:10])
	t.Require.NoError(err)
	t.Equal(f.a1, c.Hash)

	_, c, err = e.FindSelectableCommit("B")
	t.Require.NoError(err)
	t.Equal(f.b1, c.Hash)

	_, _, err = e.FindSelectableCommit("nope")
	t.True(errors.Is(err, ErrNotFound))

	outside := f.g.Commit("outside", map[string]string{"x": "x"})
	_, _, err = e.FindSelectableCommit(outside.String())
	t.True(errors.Is(err, ErrNotFound))
}

func (g *EditorTests) RemovedCommitsAreReported(t *testgroup.T) {
	f := newFixture(t.T)
	e := f.editor(t.T)

	_, err := e.Remove(f.selectCommit(t.T, e, f.a1))
	t.Require.NoError(err)

	_, _, err = e.FindSelectableCommit(f.a1.String())
	t.True(errors.Is(err, ErrRemoved))
}

// conflicted adds a lane C whose only commit is conflicted on a.txt.
func (g *EditorTests) conflicted(t *testgroup.T, f *fixture) plumbing.Hash {
	baseTree, err := gitstore.TreeOf(f.g.Git.Storer, f.base)
	t.Require.NoError(err)
	a1Tree, err := gitstore.TreeOf(f.g.Git.Storer, f.a1)
	t.Require.NoError(err)

	tree, err := gitstore.WriteConflictedTree(f.g.Git.Storer, gitstore.ConflictedTree{
		Ours:           baseTree,
		Theirs:         a1Tree,
		Base:           baseTree,
		AutoResolution: baseTree,
		Files:          []string{"a.txt"},
	})
	t.Require.NoError(err)

	sig := f.g.Signature()
	c, err := gitstore.WriteObject(f.g.Git.Storer, &object.Commit{
		Author:       sig,
		Committer:    sig,
		Message:      "conflicted",
		TreeHash:     tree,
		ParentHashes: []plumbing.Hash{f.base},
	})
	t.Require.NoError(err)

	f.g.Branch("C", c)
	return c
}

func (g *EditorTests) ConflictedCommitsOnlyAcceptResolutions(t *testgroup.T) {
	f := newFixture(t.T)
	c := g.conflicted(t, f)

	e, err := NewEditor(f.repo, EditorOptions{
		Heads: []plumbing.ReferenceName{plumbing.NewBranchReferenceName("C")},
		Base:  f.base,
	})
	t.Require.NoError(err)

	sel := f.selectCommit(t.T, e, c)
	main, err := e.SelectReference("main")
	t.Require.NoError(err)

	_, err = e.Remove(sel)
	t.True(errors.Is(err, ErrConflictedCommit))

	_, err = e.Insert(sel, Removed{}, Below)
	t.True(errors.Is(err, ErrConflictedCommit))

	_, err = e.CherryPick(sel, main)
	t.True(errors.Is(err, ErrConflictedCommit))

	_, err = e.Insert(sel, Reference{Name: plumbing.NewBranchReferenceName("above")}, Above)
	t.NoError(err)

	_, err = e.Replace(sel, NewPick(f.a1))
	t.NoError(err)
}

func (g *EditorTests) ParentsMustBeReferences(t *testgroup.T) {
	f := newFixture(t.T)
	e := f.editor(t.T)

	a1 := f.selectCommit(t.T, e, f.a1)
	_, err := e.Replace(a1, Pick{CommitID: f.a1, Conflictable: true, ParentsMustBeReferences: true})
	t.Require.NoError(err)

	_, err = e.Rebase()
	t.NoError(err)

	a2 := f.selectCommit(t.T, e, f.a2)
	_, err = e.Replace(a2, Pick{CommitID: f.a2, Conflictable: true, ParentsMustBeReferences: true})
	t.Require.NoError(err)

	_, err = e.Rebase()
	t.Require.Error(err)
}

func (g *EditorTests) CyclesFailTheRebase(t *testgroup.T) {
	f := newFixture(t.T)
	e := f.editor(t.T)

	a1 := f.selectCommit(t.T, e, f.a1)
	a2 := f.selectCommit(t.T, e, f.a2)
	main, err := e.SelectReference("main")
	t.Require.NoError(err)

	t.Require.NoError(e.ReplaceParent(a1, main, a2))

	_, err = e.Rebase()
	t.Require.Error(err)
}

func (g *EditorTests) NonConflictablePicksFail(t *testgroup.T) {
	f := newFixture(t.T)
	e := f.editor(t.T)

	b1 := f.selectCommit(t.T, e, f.b1)
	_, err := e.Replace(b1, Pick{CommitID: f.b1})
	t.Require.NoError(err)

	a1 := f.selectCommit(t.T, e, f.a1)
	t.Require.NoError(e.ReplaceParent(b1, f.mustSelect(t, e, "main"), a1))

	_, err = e.Rebase()
	t.Require.Error(err)
}

func (f *fixture) mustSelect(t *testgroup.T, e *Editor, name plumbing.ReferenceName) Selector {
	sel, err := e.SelectReference(name)
	t.Require.NoError(err)
	return sel
}

func (g *EditorTests) NewCommitAppliesTheDateMode(t *testgroup.T) {
	f := newFixture(t.T)
	e := f.editor(t.T)

	original, err := f.repo.FindCommit(f.a1)
	t.Require.NoError(err)

	now := time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC)

	cases := []struct {
		mode          DateMode
		committer     string
		committerWhen time.Time
		authorWhen    time.Time
	}{
		{CommitterUpdateAuthorKeep, "Lanes", now, original.Author.When},
		{CommitterUpdateAuthorUpdate, "Lanes", now, now},
		{CommitterKeepAuthorKeep, original.Committer.Name, original.Committer.When, original.Author.When},
	}

	for _, c := range cases {
		signed := *original
		signed.PGPSignature = "-----BEGIN PGP SIGNATURE-----\nx\n-----END PGP SIGNATURE-----\n"

		id, err := e.NewCommit(&signed, c.mode)
		t.Require.NoError(err, c.mode.String())

		written, err := e.FindCommit(id)
		t.Require.NoError(err, c.mode.String())

		t.Equal(c.committer, written.Committer.Name, c.mode.String())
		t.Equal(c.committerWhen.Unix(), written.Committer.When.Unix(), c.mode.String())
		t.Equal(original.Author.Name, written.Author.Name, c.mode.String())
		t.Equal(c.authorWhen.Unix(), written.Author.When.Unix(), c.mode.String())
		t.Empty(written.PGPSignature, c.mode.String())
		t.Equal(original.TreeHash, written.TreeHash, c.mode.String())
		t.Equal(original.ParentHashes, written.ParentHashes, c.mode.String())
	}
}
