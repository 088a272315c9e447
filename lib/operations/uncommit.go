package operations

import (
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/pescuma/lanes/lib/gitstore"
	"github.com/pescuma/lanes/lib/rebase"
)

// UncommitChanges takes the changes to the files matching patterns out of a commit of the
// checked out lane. The commits above it are rebased, and the changes are left in the
// worktree.
func UncommitChanges(repo *gitstore.Repository, opts Options, commit string, patterns []string) (*Result, error) {
	for _, p := range patterns {
		if !doublestar.ValidatePattern(p) {
			return nil, errors.Errorf("invalid path pattern: %v", p)
		}
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

	head, err := repo.HeadCommit()
	if err != nil {
		return nil, err
	}

	checkedOut := false
	if !head.IsZero() {
		checkedOut, err = gitstore.IsAncestor(repo.Storer(), c.Hash, head)
		if err != nil {
			return nil, err
		}
	}
	if !checkedOut {
		return nil, errors.Wrapf(ErrNotCheckedOut, "%v", c.Hash)
	}

	files, changed, err := resetPaths(e, c, patterns)
	if err != nil {
		return nil, err
	}
	if changed == 0 {
		return nil, errors.Wrapf(ErrNoChanges, "%v in %v", strings.Join(patterns, " "), c.Hash)
	}

	tree, err := gitstore.BuildTree(e.Objects(), files)
	if err != nil {
		return nil, err
	}

	uncommitted := *c
	uncommitted.TreeHash = tree

	id, err := e.NewCommit(&uncommitted, rebase.CommitterUpdateAuthorKeep)
	if err != nil {
		return nil, err
	}

	_, err = e.Replace(sel, rebase.NewPick(id))
	if err != nil {
		return nil, err
	}

	return rebaseAndMaterialize(e, opts, patterns...)
}

// resetPaths returns the files of c with the paths matching patterns set back to their
// content in the first parent, and how many paths changed.
func resetPaths(e *rebase.Editor, c *object.Commit, patterns []string) (map[string]object.TreeEntry, int, error) {
	files, err := gitstore.FlattenTree(e.Objects(), c.TreeHash)
	if err != nil {
		return nil, 0, err
	}

	parentFiles := map[string]object.TreeEntry{}
	if c.NumParents() > 0 {
		parent, err := e.FindCommit(c.ParentHashes[0])
		if err != nil {
			return nil, 0, err
		}

		tree, err := gitstore.ContentTree(parent)
		if err != nil {
			return nil, 0, err
		}

		parentFiles, err = gitstore.FlattenTree(e.Objects(), tree)
		if err != nil {
			return nil, 0, err
		}
	}

	result := lo.Assign(files)
	changed := 0

	for _, path := range lo.Union(lo.Keys(files), lo.Keys(parentFiles)) {
		if !lo.ContainsBy(patterns, func(p string) bool {
			ok, _ := doublestar.Match(p, path)
			return ok
		}) {
			continue
		}

		old, inOld := parentFiles[path]
		cur, inCur := files[path]
		if inOld == inCur && (!inOld || (old.Hash == cur.Hash && old.Mode == cur.Mode)) {
			continue
		}

		changed++
		if inOld {
			result[path] = old
		} else {
			delete(result, path)
		}
	}

	return result, changed, nil
}
