package rebase

import (
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/pescuma/lanes/lib/gitstore"
)

type pickOutcome int

const (
	pickIdentity pickOutcome = iota
	pickCommit
	pickConflicted
	// pickFailedToMergeBases means the parents of the commit, or the commits it goes onto,
	// could not be merged together.
	pickFailedToMergeBases
)

func (o pickOutcome) String() string {
	switch o {
	case pickIdentity:
		return "identity"
	case pickCommit:
		return "commit"
	case pickConflicted:
		return "conflicted"
	default:
		return "failed to merge bases"
	}
}

// CherryPick applies the commit at target on top of the commits at onto, and adds a pick
// of the result right above onto. The original pick stays in place.
func (e *Editor) CherryPick(target, onto Selector) (Selector, error) {
	targetID, err := e.graph.resolve(target)
	if err != nil {
		return Selector{}, err
	}

	ontoID, err := e.graph.resolve(onto)
	if err != nil {
		return Selector{}, err
	}

	p, ok := e.graph.step(targetID).(Pick)
	if !ok {
		return Selector{}, errors.Errorf("%v is not a pick: %v", target, e.graph.step(targetID))
	}

	err = e.checkNotConflicted(targetID)
	if err != nil {
		return Selector{}, err
	}

	ontos := e.commitsAt(ontoID)

	newID, outcome, err := e.pick(p.CommitID, ontos)
	if err != nil {
		return Selector{}, err
	}
	if outcome == pickFailedToMergeBases {
		return Selector{}, errors.Errorf("failed to merge the commits to cherry-pick %v onto", p.CommitID)
	}

	sel, err := e.Insert(onto, NewPick(newID), Above)
	if err != nil {
		return Selector{}, err
	}

	origin := e.graph.nodes[targetID].origin
	if origin.IsZero() {
		origin = p.CommitID
	}
	e.graph.nodes[sel.id].origin = origin

	return sel, nil
}

// pick re-applies target on top of ontos. The new commit is written to the overlay.
func (e *Editor) pick(target plumbing.Hash, ontos []plumbing.Hash) (plumbing.Hash, pickOutcome, error) {
	c, err := e.FindCommit(target)
	if err != nil {
		return plumbing.ZeroHash, 0, err
	}

	if hashesEqual(ontos, c.ParentHashes) {
		return target, pickIdentity, nil
	}

	var base, theirs plumbing.Hash
	if gitstore.IsConflicted(c) {
		ct, err := gitstore.ReadConflictedTree(c)
		if err != nil {
			return plumbing.ZeroHash, 0, err
		}

		base = ct.Base
		theirs = ct.Theirs

	} else {
		var ok bool
		base, ok, err = e.mergeCommits(c.ParentHashes)
		if err != nil {
			return plumbing.ZeroHash, 0, err
		}
		if !ok {
			return plumbing.ZeroHash, pickFailedToMergeBases, nil
		}

		theirs = c.TreeHash
	}

	ours, ok, err := e.mergeCommits(ontos)
	if err != nil {
		return plumbing.ZeroHash, 0, err
	}
	if !ok {
		return plumbing.ZeroHash, pickFailedToMergeBases, nil
	}

	m, err := gitstore.MergeTrees(e.overlay, base, ours, theirs)
	if err != nil {
		return plumbing.ZeroHash, 0, err
	}

	result := *c
	result.ParentHashes = append([]plumbing.Hash{}, ontos...)
	result.TreeHash = m.Tree
	outcome := pickCommit

	if m.Conflicted() {
		result.TreeHash, err = gitstore.WriteConflictedTree(e.overlay, gitstore.ConflictedTree{
			Ours:           ours,
			Theirs:         theirs,
			Base:           base,
			AutoResolution: m.Tree,
			Files:          m.Conflicts,
		})
		if err != nil {
			return plumbing.ZeroHash, 0, err
		}

		outcome = pickConflicted
	}

	newID, err := e.NewCommit(&result, CommitterUpdateAuthorKeep)
	if err != nil {
		return plumbing.ZeroHash, 0, err
	}

	return newID, outcome, nil
}

// mergeCommits merges the content of commits. Without commits the result is the empty tree.
// It returns false when the commits conflict.
func (e *Editor) mergeCommits(hashes []plumbing.Hash) (plumbing.Hash, bool, error) {
	if len(hashes) == 0 {
		empty, err := gitstore.BuildTree(e.overlay, nil)
		return empty, err == nil, err
	}

	commits := make([]*object.Commit, len(hashes))
	for i, h := range hashes {
		c, err := e.FindCommit(h)
		if err != nil {
			return plumbing.ZeroHash, false, err
		}
		commits[i] = c
	}

	sum, err := gitstore.ContentTree(commits[len(commits)-1])
	if err != nil {
		return plumbing.ZeroHash, false, err
	}

	if len(commits) == 1 {
		return sum, true, nil
	}

	base, err := e.mergeBaseTree(commits)
	if err != nil {
		return plumbing.ZeroHash, false, err
	}

	for i := len(commits) - 2; i >= 0; i-- {
		tree, err := gitstore.ContentTree(commits[i])
		if err != nil {
			return plumbing.ZeroHash, false, err
		}

		m, err := gitstore.MergeTrees(e.overlay, base, sum, tree)
		if err != nil {
			return plumbing.ZeroHash, false, err
		}
		if m.Conflicted() {
			return plumbing.ZeroHash, false, nil
		}

		sum = m.Tree
	}

	return sum, true, nil
}

// mergeBaseTree returns the content of the common ancestor of all commits, or the empty
// tree when there is none.
func (e *Editor) mergeBaseTree(commits []*object.Commit) (plumbing.Hash, error) {
	base := commits[0]
	for _, c := range commits[1:] {
		bases, err := base.MergeBase(c)
		if err != nil {
			return plumbing.ZeroHash, errors.Wrapf(err, "error computing merge base of %v and %v", base.Hash, c.Hash)
		}
		if len(bases) == 0 {
			return gitstore.BuildTree(e.overlay, nil)
		}

		base = bases[0]
	}

	return gitstore.ContentTree(base)
}

func hashesEqual(a, b []plumbing.Hash) bool {
	if len(a) != len(b) {
		return false
	}
	return lo.EveryBy(lo.Range(len(a)), func(i int) bool { return a[i] == b[i] })
}
