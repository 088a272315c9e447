package operations

import (
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/pescuma/lanes/lib/gitstore"
	"github.com/pescuma/lanes/lib/hunkdeps"
	"github.com/pescuma/lanes/lib/rebase"
)

// MoveCommit moves a commit to the top of another lane. Moves that would break the hunk
// dependencies of the source lane are refused, and reported in Result.Illegal.
func MoveCommit(repo *gitstore.Repository, opts Options, commit string, lane string) (*Result, error) {
	target, err := findLane(opts, lane)
	if err != nil {
		return nil, err
	}

	e, err := newEditor(repo, opts)
	if err != nil {
		return nil, err
	}

	sel, c, err := e.FindSelectableCommit(commit)
	if err != nil {
		return nil, err
	}

	if gitstore.IsConflicted(c) {
		return nil, errors.Wrapf(rebase.ErrConflictedCommit, "%v", c.Hash)
	}

	lanes, err := ListLanes(repo, opts)
	if err != nil {
		return nil, err
	}

	sources := lo.Filter(lanes, func(l *Lane, _ int) bool { return l.Contains(c.Hash) })
	if lo.ContainsBy(sources, func(l *Lane) bool { return l.Name == target }) {
		return nil, errors.Wrapf(ErrSameLane, "%v in %v", c.Hash, target.Short())
	}

	if len(sources) > 0 {
		deps, err := AnalyzeDependencies(repo, opts, nil)
		if err != nil {
			return nil, err
		}

		illegal := hunkdeps.CheckMove(deps.Workspace, laneName(sources[0].Name), c.Hash, deps.Uncommitted)
		if illegal != nil {
			return &Result{Illegal: illegal}, nil
		}
	}

	ref, err := e.SelectReference(target)
	if err != nil {
		return nil, err
	}

	// The new commit goes between the lane and the placeholder, so only the lane moves
	// even when its tip is shared.
	onto, err := e.Insert(ref, rebase.Removed{}, rebase.Below)
	if err != nil {
		return nil, err
	}

	_, err = e.CherryPick(sel, onto)
	if err != nil {
		return nil, err
	}

	_, err = e.Remove(sel)
	if err != nil {
		return nil, err
	}

	return rebaseAndMaterialize(e, opts)
}

// ReorderCommit moves a commit right above another commit of the same lane.
func ReorderCommit(repo *gitstore.Repository, opts Options, commit string, onto string) (*Result, error) {
	e, err := newEditor(repo, opts)
	if err != nil {
		return nil, err
	}

	sel, c, err := e.FindSelectableCommit(commit)
	if err != nil {
		return nil, err
	}

	ontoSel, o, err := e.FindSelectableCommit(onto)
	if err != nil {
		return nil, err
	}

	if c.Hash == o.Hash {
		return nil, errors.Errorf("can not reorder %v onto itself", c.Hash)
	}

	lanes, err := ListLanes(repo, opts)
	if err != nil {
		return nil, err
	}

	lane, ok := lo.Find(lanes, func(l *Lane) bool {
		return l.Contains(c.Hash) && (l.Contains(o.Hash) || o.Hash == opts.Base)
	})
	if !ok {
		return nil, errors.Errorf("%v and %v are not in the same lane", c.Hash, o.Hash)
	}

	shared := func(h plumbing.Hash) bool {
		return lo.ContainsBy(lanes, func(l *Lane) bool { return l != lane && l.Contains(h) })
	}

	if shared(c.Hash) {
		return nil, errors.Wrapf(ErrSharedCommit, "%v", c.Hash)
	}

	// The commit goes on the edge between onto and the lane's commit right above it, so
	// other lanes on top of onto stay where they are.
	var parent, child rebase.Selector
	if o.Hash == opts.Base {
		lowest := lane.Commits[len(lane.Commits)-1]
		if shared(lowest.Hash) {
			return nil, errors.Wrapf(ErrSharedCommit, "%v", lowest.Hash)
		}

		child, _, err = e.FindSelectableCommit(lowest.Hash.String())
		if err != nil {
			return nil, err
		}

		parents, err := e.Parents(child)
		if err != nil {
			return nil, err
		}
		if len(parents) == 0 {
			return nil, errors.Errorf("%v has no parent", lowest.Hash)
		}
		parent = parents[0]

	} else {
		i := lo.IndexOf(lo.Map(lane.Commits, func(lc *object.Commit, _ int) plumbing.Hash { return lc.Hash }), o.Hash)
		if i == 0 {
			child, err = e.SelectReference(lane.Name)
		} else if shared(lane.Commits[i-1].Hash) {
			return nil, errors.Wrapf(ErrSharedCommit, "%v", lane.Commits[i-1].Hash)
		} else {
			child, _, err = e.FindSelectableCommit(lane.Commits[i-1].Hash.String())
		}
		if err != nil {
			return nil, err
		}

		parent, err = edgeTowards(e, child, ontoSel)
		if err != nil {
			return nil, err
		}
	}

	_, err = e.Remove(sel)
	if err != nil {
		return nil, err
	}

	_, err = e.InsertBetween(parent, child, rebase.NewPick(c.Hash))
	if err != nil {
		return nil, err
	}

	return rebaseAndMaterialize(e, opts)
}

// edgeTowards returns the parent of child that leads to target, possibly through references
// of other branches placed on target.
func edgeTowards(e *rebase.Editor, child, target rebase.Selector) (rebase.Selector, error) {
	parents, err := e.Parents(child)
	if err != nil {
		return rebase.Selector{}, err
	}

	for _, p := range parents {
		cur := p
		for {
			if cur == target {
				return p, nil
			}

			step, err := e.Step(cur)
			if err != nil {
				return rebase.Selector{}, err
			}
			if _, ok := step.(rebase.Reference); !ok {
				break
			}

			below, err := e.Parents(cur)
			if err != nil {
				return rebase.Selector{}, err
			}
			if len(below) != 1 {
				break
			}
			cur = below[0]
		}
	}

	return rebase.Selector{}, errors.Errorf("%v is not above %v", child, target)
}
