package operations

import (
	"os"

	"github.com/go-git/go-billy/v5/util"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/pkg/errors"

	"github.com/pescuma/lanes/lib/checkout"
	"github.com/pescuma/lanes/lib/gitstore"
	"github.com/pescuma/lanes/lib/rebase"
)

// EditMode is what is needed to leave edit mode.
type EditMode struct {
	// Commit is the conflicted commit being resolved.
	Commit plumbing.Hash
	// Head is the branch HEAD pointed to, or empty when it was detached at HeadCommit.
	Head       plumbing.ReferenceName
	HeadCommit plumbing.Hash
}

// EnterEditMode checks out the auto-resolution of a conflicted commit, with HEAD detached at
// it, so the conflicts can be resolved in the worktree.
func EnterEditMode(repo *gitstore.Repository, opts Options, commit string) (*EditMode, error) {
	h, err := repo.ResolveCommit(commit)
	if err != nil {
		return nil, errors.Wrapf(rebase.ErrNotFound, "commit %v", commit)
	}

	c, err := repo.FindCommit(h)
	if err != nil {
		return nil, err
	}

	if !gitstore.IsConflicted(c) {
		return nil, errors.Wrapf(ErrNotConflicted, "%v", h)
	}

	head, err := repo.Head()
	if err != nil {
		return nil, errors.Wrap(err, "error reading HEAD")
	}

	result := &EditMode{Commit: h}
	if head.Type() == plumbing.SymbolicReference {
		result.Head = head.Target()
	} else {
		result.HeadCommit = head.Hash()
	}

	_, err = checkout.SafeCheckoutFromHead(repo, h, checkout.Options{UncommittedChanges: opts.UncommittedChanges})
	if err != nil {
		return nil, err
	}

	err = repo.DetachHead(h)
	if err != nil {
		return nil, err
	}

	return result, nil
}

// LeaveEditMode replaces the conflicted commit by one with the resolved tree, rebases its
// descendants and returns HEAD to where it was.
func LeaveEditMode(repo *gitstore.Repository, opts Options, mode EditMode, resolvedTree plumbing.Hash) (*Result, error) {
	head, err := repo.HeadCommit()
	if err != nil {
		return nil, err
	}
	if head != mode.Commit {
		return nil, errors.Errorf("HEAD moved to %v while editing %v", head, mode.Commit)
	}

	e, err := newEditor(repo, opts)
	if err != nil {
		return nil, err
	}

	sel, c, err := e.FindSelectableCommit(mode.Commit.String())
	if err != nil {
		return nil, err
	}

	resolved := *c
	resolved.TreeHash = resolvedTree

	id, err := e.NewCommit(&resolved, rebase.CommitterUpdateAuthorKeep)
	if err != nil {
		return nil, err
	}

	_, err = e.Replace(sel, rebase.NewPick(id))
	if err != nil {
		return nil, err
	}

	result, err := rebaseAndMaterialize(e, opts)
	if err != nil {
		return nil, err
	}

	err = restoreHead(repo, opts, mode, result.Outcome.CommitMapping)
	if err != nil {
		return nil, err
	}

	return result, nil
}

func restoreHead(repo *gitstore.Repository, opts Options, mode EditMode, mapping map[plumbing.Hash]plumbing.Hash) error {
	target := mode.HeadCommit
	if mode.Head != "" {
		ref, err := repo.Reference(mode.Head)
		if err != nil {
			return err
		}
		if ref == nil {
			return errors.Errorf("branch %v was removed while editing", mode.Head.Short())
		}
		target = ref.Hash()
	} else if n, ok := mapping[target]; ok {
		target = n
	}

	_, err := checkout.SafeCheckoutFromHead(repo, target, checkout.Options{UncommittedChanges: opts.UncommittedChanges})
	if err != nil {
		return err
	}

	if mode.Head != "" {
		return repo.AttachHead(mode.Head)
	}
	return repo.DetachHead(target)
}

// WorktreeTree writes the current worktree content, untracked files included, as a tree.
func WorktreeTree(repo *gitstore.Repository) (plumbing.Hash, error) {
	wt, err := repo.Git().Worktree()
	if err != nil {
		return plumbing.ZeroHash, errors.Wrap(err, "error opening worktree")
	}

	files := map[string]object.TreeEntry{}

	head, err := repo.HeadCommit()
	if err != nil {
		return plumbing.ZeroHash, err
	}
	if !head.IsZero() {
		c, err := repo.FindCommit(head)
		if err != nil {
			return plumbing.ZeroHash, err
		}

		tree, err := gitstore.ContentTree(c)
		if err != nil {
			return plumbing.ZeroHash, err
		}

		headFiles, err := repo.FlattenTree(tree)
		if err != nil {
			return plumbing.ZeroHash, err
		}

		for path, entry := range headFiles {
			files[path] = entry
		}
	}

	status, err := wt.Status()
	if err != nil {
		return plumbing.ZeroHash, errors.Wrap(err, "error reading worktree status")
	}

	for path, s := range status {
		if s.Worktree == git.Unmodified && s.Staging == git.Unmodified {
			continue
		}

		content, err := util.ReadFile(wt.Filesystem, path)
		if os.IsNotExist(err) {
			delete(files, path)
			continue
		} else if err != nil {
			return plumbing.ZeroHash, errors.Wrapf(err, "error reading %v", path)
		}

		blob, err := gitstore.WriteBlob(repo.Storer(), content)
		if err != nil {
			return plumbing.ZeroHash, err
		}

		mode := filemode.Regular
		if old, ok := files[path]; ok {
			mode = old.Mode
		}

		files[path] = object.TreeEntry{Name: path, Mode: mode, Hash: blob}
	}

	return gitstore.BuildTree(repo.Storer(), files)
}
