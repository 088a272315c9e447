package rebase

import (
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/pkg/errors"

	"github.com/pescuma/lanes/lib/checkout"
)

type MaterializeOptions struct {
	UncommittedChanges checkout.UncommittedChanges
	// KeepWorktree lists path patterns whose worktree content survives the checkout.
	KeepWorktree []string
}

type MaterializeOutcome struct {
	CommitMapping map[plumbing.Hash]plumbing.Hash
	// Checkout is nil when no checkout was needed or it was skipped.
	Checkout *checkout.Outcome
	// CheckoutSkipped holds the reason the worktree was left as it was.
	CheckoutSkipped error
}

// Materialize writes the new objects to the repository, checks out the new HEAD and moves
// the references, in this order. Nothing is checked out when a reference no longer has the
// value the rebase expects.
func (r *SuccessfulRebase) Materialize(opts MaterializeOptions) (*MaterializeOutcome, error) {
	console := r.repo.Console()

	_, err := r.repo.CheckReferences(r.RefEdits)
	if err != nil {
		return nil, err
	}

	err = r.repo.Persist(r.overlay)
	if err != nil {
		return nil, err
	}

	result := &MaterializeOutcome{
		CommitMapping: r.CommitMapping,
	}

	for _, c := range r.Checkouts {
		if c != CheckoutHead {
			continue
		}

		result.Checkout, err = checkout.SafeCheckoutFromHead(r.repo, r.NewHead, checkout.Options{
			UncommittedChanges: opts.UncommittedChanges,
			KeepWorktree:       opts.KeepWorktree,
		})
		switch {
		case errors.Is(err, checkout.ErrConflictingChanges) && opts.UncommittedChanges == checkout.KeepAndAbortOnConflict:
			console.Printf("Skipping checkout: %v\n", err)
			result.CheckoutSkipped = err
			result.Checkout = nil
		case err != nil:
			return nil, err
		case result.Checkout.Snapshot != nil:
			console.Printf("Conflicting uncommitted changes were saved in tree %v\n", result.Checkout.Snapshot)
		}
	}

	if len(r.RefEdits) > 0 {
		console.PushPrefix("refs: ")
		for _, e := range r.RefEdits {
			console.Printf("%v\n", e)
		}
		console.PopPrefix()
	}

	err = r.repo.EditReferences(r.RefEdits)
	if err != nil {
		return nil, err
	}

	return result, nil
}

// NewObjects is the number of objects the rebase wrote to its overlay.
func (r *SuccessfulRebase) NewObjects() int {
	return r.overlay.Written()
}
