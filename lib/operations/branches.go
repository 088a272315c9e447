package operations

import (
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/pescuma/lanes/lib/gitstore"
	"github.com/pescuma/lanes/lib/rebase"
)

// RenameBranch renames a branch of the graph. HEAD follows the branch when it points to it.
func RenameBranch(repo *gitstore.Repository, opts Options, oldName, newName string) (*Result, error) {
	oldRef := branchName(oldName)
	newRef := branchName(newName)

	existing, err := repo.Reference(newRef)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, errors.Wrapf(ErrBranchExists, "%v", newRef.Short())
	}

	head, err := repo.Head()
	if err != nil && !errors.Is(err, plumbing.ErrReferenceNotFound) {
		return nil, err
	}

	e, err := newEditor(repo, opts)
	if err != nil {
		return nil, err
	}

	sel, err := e.SelectReference(oldRef)
	if err != nil {
		return nil, err
	}

	_, err = e.Replace(sel, rebase.Reference{Name: newRef})
	if err != nil {
		return nil, err
	}

	result, err := rebaseAndMaterialize(e, opts)
	if err != nil {
		return nil, err
	}

	if head != nil && head.Type() == plumbing.SymbolicReference && head.Target() == oldRef {
		err = repo.AttachHead(newRef)
		if err != nil {
			return nil, err
		}
	}

	return result, nil
}

// StackBranch rebases the commits of a lane on top of another lane. Commits the lane shares
// with other lanes stay where they are.
func StackBranch(repo *gitstore.Repository, opts Options, branch, onto string) (*Result, error) {
	branchRef, err := findLane(opts, branch)
	if err != nil {
		return nil, err
	}

	ontoRef := branchName(onto)
	if branchRef == ontoRef {
		return nil, errors.Wrapf(ErrStackOntoSelf, "%v", branchRef.Short())
	}

	lanes, err := ListLanes(repo, opts)
	if err != nil {
		return nil, err
	}

	e, err := newEditor(repo, opts)
	if err != nil {
		return nil, err
	}

	sel, err := e.SelectReference(branchRef)
	if err != nil {
		return nil, err
	}

	ontoSel, err := e.SelectReference(ontoRef)
	if err != nil {
		return nil, err
	}

	bottom := sel
	own := ownCommits(lanes, branchRef)
	if len(own) > 0 {
		bottom, _, err = e.FindSelectableCommit(own[len(own)-1].Hash.String())
		if err != nil {
			return nil, err
		}
	}

	parents, err := e.Parents(bottom)
	if err != nil {
		return nil, err
	}
	if len(parents) == 0 {
		return nil, errors.Errorf("%v has no parent to replace", bottom)
	}

	err = e.ReplaceParent(bottom, parents[0], ontoSel)
	if err != nil {
		return nil, err
	}

	return rebaseAndMaterialize(e, opts)
}

// ownCommits returns the commits of a lane, from its tip, until the first one that is also
// in another lane.
func ownCommits(lanes []*Lane, name plumbing.ReferenceName) []*object.Commit {
	lane, ok := lo.Find(lanes, func(l *Lane) bool { return l.Name == name })
	if !ok {
		return nil
	}

	others := lo.Filter(lanes, func(l *Lane, _ int) bool { return l.Name != name })

	var result []*object.Commit
	for _, c := range lane.Commits {
		if lo.ContainsBy(others, func(l *Lane) bool { return l.Contains(c.Hash) }) {
			break
		}
		result = append(result, c)
	}
	return result
}

func branchName(name string) plumbing.ReferenceName {
	if plumbing.ReferenceName(name).IsBranch() {
		return plumbing.ReferenceName(name)
	}
	return plumbing.NewBranchReferenceName(name)
}
