package operations

import (
	"time"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/pescuma/lanes/lib/checkout"
	"github.com/pescuma/lanes/lib/gitstore"
	"github.com/pescuma/lanes/lib/hunkdeps"
	"github.com/pescuma/lanes/lib/rebase"
)

var (
	ErrUnknownLane   = errors.New("unknown lane")
	ErrSameLane      = errors.New("commit is already in the lane")
	ErrStackOntoSelf = errors.New("can not stack a branch onto itself")
	ErrBranchExists  = errors.New("branch already exists")
	ErrNotConflicted = errors.New("commit is not conflicted")
	ErrNotCheckedOut = errors.New("commit is not in the checked out lane")
	ErrNoChanges     = errors.New("no changes match")
	ErrSharedCommit  = errors.New("commit is shared with other lanes")
)

// Options describes the lanes an operation works on.
type Options struct {
	// Base is the commit the lanes start from.
	Base plumbing.Hash
	// Lanes are the branches that can be rewritten.
	Lanes []plumbing.ReferenceName
	// References filters the other branches that follow the rewritten commits.
	References string
	// Identity is the committer of new commits. Defaults to the git configuration.
	Identity *object.Signature
	Now      func() time.Time

	UncommittedChanges checkout.UncommittedChanges
}

// Result is the outcome of an operation. Exactly one of its fields is set.
type Result struct {
	Outcome *rebase.MaterializeOutcome
	// Illegal explains why a move was refused. Nothing was changed.
	Illegal *hunkdeps.IllegalMove
}

func newEditor(repo *gitstore.Repository, opts Options) (*rebase.Editor, error) {
	return rebase.NewEditor(repo, rebase.EditorOptions{
		Heads:      opts.Lanes,
		Base:       opts.Base,
		References: opts.References,
		Identity:   opts.Identity,
		Now:        opts.Now,
	})
}

func rebaseAndMaterialize(e *rebase.Editor, opts Options, keepWorktree ...string) (*Result, error) {
	r, err := e.Rebase()
	if err != nil {
		return nil, err
	}

	outcome, err := r.Materialize(rebase.MaterializeOptions{
		UncommittedChanges: opts.UncommittedChanges,
		KeepWorktree:       keepWorktree,
	})
	if err != nil {
		return nil, err
	}

	return &Result{Outcome: outcome}, nil
}

func laneName(name plumbing.ReferenceName) string {
	return name.Short()
}

func findLane(opts Options, name string) (plumbing.ReferenceName, error) {
	lane, ok := lo.Find(opts.Lanes, func(l plumbing.ReferenceName) bool {
		return l.Short() == name || string(l) == name
	})
	if !ok {
		return "", errors.Wrapf(ErrUnknownLane, "%v", name)
	}

	return lane, nil
}
