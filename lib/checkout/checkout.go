package checkout

import (
	"io"
	"os"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/go-enry/go-enry/v2"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/format/index"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/utils/merkletrie"
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/pescuma/lanes/lib/gitstore"
	"github.com/pescuma/lanes/lib/merge"
)

var ErrConflictingChanges = errors.New("uncommitted changes conflict with the checkout")

type UncommittedChanges int

const (
	// KeepAndAbortOnConflict keeps uncommitted changes, and changes nothing if they conflict.
	KeepAndAbortOnConflict UncommittedChanges = iota
	// KeepConflictingInSnapshotAndOverwrite stores conflicting uncommitted changes in a
	// snapshot tree and overwrites them.
	KeepConflictingInSnapshotAndOverwrite
)

func (u UncommittedChanges) String() string {
	switch u {
	case KeepConflictingInSnapshotAndOverwrite:
		return "snapshot"
	default:
		return "keep-abort"
	}
}

func ParseUncommittedChanges(text string) (UncommittedChanges, error) {
	switch strings.ToLower(text) {
	case "", "keep-abort":
		return KeepAndAbortOnConflict, nil
	case "snapshot":
		return KeepConflictingInSnapshotAndOverwrite, nil
	default:
		return 0, errors.Errorf("unknown uncommitted changes policy: %v", text)
	}
}

type Options struct {
	UncommittedChanges UncommittedChanges
	// KeepWorktree lists doublestar patterns of paths that are only updated in the index.
	// Their worktree content is left as it is and shows up as uncommitted.
	KeepWorktree []string
}

func (o Options) keepsWorktree(path string) bool {
	return lo.ContainsBy(o.KeepWorktree, func(pattern string) bool {
		ok, _ := doublestar.Match(pattern, path)
		return ok
	})
}

type Outcome struct {
	FilesAdded   int
	FilesRemoved int
	FilesUpdated int
	// Snapshot is the tree with the uncommitted content that was overwritten.
	Snapshot *plumbing.Hash
}

type fileChange struct {
	path   string
	action merkletrie.Action
	old    *object.TreeEntry
	new    *object.TreeEntry

	// content to write, when the worktree keeps uncommitted edits on top of the new blob
	merged    *string
	indexOnly bool
	conflict  bool
	current   []byte
	exists    bool
}

// SafeCheckoutFromHead moves the worktree and index from the tree of the current HEAD
// commit to the tree of newHead. Uncommitted changes are kept: they are merged into the
// new content, and handled according to opts when they conflict. HEAD itself is not moved.
func SafeCheckoutFromHead(repo *gitstore.Repository, newHead plumbing.Hash, opts Options) (*Outcome, error) {
	wt, err := repo.Git().Worktree()
	if err != nil {
		return nil, errors.Wrap(err, "error opening worktree")
	}

	oldTree, err := headTree(repo)
	if err != nil {
		return nil, err
	}

	newCommit, err := repo.FindCommit(newHead)
	if err != nil {
		return nil, err
	}

	newTreeHash, err := gitstore.ContentTree(newCommit)
	if err != nil {
		return nil, err
	}

	newTree, err := repo.FindTree(newTreeHash)
	if err != nil {
		return nil, err
	}

	changes, err := object.DiffTree(oldTree, newTree)
	if err != nil {
		return nil, errors.Wrap(err, "error comparing trees")
	}

	if len(changes) == 0 {
		return &Outcome{}, nil
	}

	status, err := wt.Status()
	if err != nil {
		return nil, errors.Wrap(err, "error reading worktree status")
	}

	var files []*fileChange
	var conflicts []string
	for _, change := range changes {
		f, err := prepareChange(repo, wt.Filesystem, status, change)
		if err != nil {
			return nil, err
		}

		if opts.keepsWorktree(f.path) {
			f.indexOnly = true
			f.conflict = false
		}

		files = append(files, f)
		if f.conflict {
			conflicts = append(conflicts, f.path)
		}
	}

	result := &Outcome{}

	if len(conflicts) > 0 {
		sort.Strings(conflicts)

		if opts.UncommittedChanges == KeepAndAbortOnConflict {
			return nil, errors.Wrapf(ErrConflictingChanges, "%v", strings.Join(conflicts, ", "))
		}

		snapshot, err := writeSnapshot(repo, files)
		if err != nil {
			return nil, err
		}
		result.Snapshot = &snapshot
	}

	idx, err := repo.Git().Storer.Index()
	if err != nil {
		return nil, errors.Wrap(err, "error reading index")
	}

	for _, f := range files {
		err = applyChange(repo, wt.Filesystem, idx, f)
		if err != nil {
			return nil, err
		}

		switch f.action {
		case merkletrie.Insert:
			result.FilesAdded++
		case merkletrie.Delete:
			result.FilesRemoved++
		default:
			result.FilesUpdated++
		}
	}

	err = repo.Git().Storer.SetIndex(idx)
	if err != nil {
		return nil, errors.Wrap(err, "error writing index")
	}

	return result, nil
}

func headTree(repo *gitstore.Repository) (*object.Tree, error) {
	head, err := repo.HeadCommit()
	if err != nil {
		return nil, err
	}

	if head.IsZero() {
		return nil, nil
	}

	c, err := repo.FindCommit(head)
	if err != nil {
		return nil, err
	}

	tree, err := gitstore.ContentTree(c)
	if err != nil {
		return nil, err
	}

	return repo.FindTree(tree)
}

func prepareChange(repo *gitstore.Repository, fs billy.Filesystem, status git.Status, change *object.Change) (*fileChange, error) {
	action, err := change.Action()
	if err != nil {
		return nil, err
	}

	f := &fileChange{action: action}
	if action != merkletrie.Insert {
		f.old = &object.TreeEntry{Name: change.From.Name, Mode: change.From.TreeEntry.Mode, Hash: change.From.TreeEntry.Hash}
		f.path = change.From.Name
	}
	if action != merkletrie.Delete {
		f.new = &object.TreeEntry{Name: change.To.Name, Mode: change.To.TreeEntry.Mode, Hash: change.To.TreeEntry.Hash}
		f.path = change.To.Name
	}

	fileStatus, ok := status[f.path]
	if !ok || (fileStatus.Worktree == git.Unmodified && fileStatus.Staging == git.Unmodified) {
		return f, nil
	}

	f.current, f.exists, err = readFile(fs, f.path)
	if err != nil {
		return nil, err
	}

	var oldContent, newContent []byte
	if f.old != nil {
		oldContent, err = gitstore.ReadBlob(repo.Storer(), f.old.Hash)
		if err != nil {
			return nil, err
		}
	}
	if f.new != nil {
		newContent, err = gitstore.ReadBlob(repo.Storer(), f.new.Hash)
		if err != nil {
			return nil, err
		}
	}

	switch {
	case f.exists == (f.new != nil) && string(f.current) == string(newContent):
		// already matches the new content

	case f.exists == (f.old != nil) && string(f.current) == string(oldContent):
		// no real uncommitted change

	case !f.exists || f.new == nil:
		// deleted on one side and changed on the other
		f.conflict = true

	case enry.IsBinary(f.current) || enry.IsBinary(oldContent) || enry.IsBinary(newContent):
		f.conflict = true

	default:
		m := merge.ThreeWay(string(oldContent), string(f.current), string(newContent), merge.Options{
			OursLabel:   "uncommitted",
			TheirsLabel: "new",
		})
		if m.Conflicted() {
			f.conflict = true
		} else {
			f.merged = &m.Content
		}
	}

	return f, nil
}

func readFile(fs billy.Filesystem, path string) ([]byte, bool, error) {
	file, err := fs.Open(path)
	if os.IsNotExist(err) {
		return nil, false, nil
	} else if err != nil {
		return nil, false, errors.Wrapf(err, "error reading %v", path)
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return nil, false, errors.Wrapf(err, "error reading %v", path)
	}

	return content, true, nil
}

func writeSnapshot(repo *gitstore.Repository, files []*fileChange) (plumbing.Hash, error) {
	entries := map[string]object.TreeEntry{}

	for _, f := range files {
		if !f.conflict || !f.exists {
			continue
		}

		h, err := gitstore.WriteBlob(repo.Storer(), f.current)
		if err != nil {
			return plumbing.ZeroHash, err
		}

		entries[f.path] = object.TreeEntry{Name: f.path, Mode: filemode.Regular, Hash: h}
	}

	return gitstore.BuildTree(repo.Storer(), entries)
}

func applyChange(repo *gitstore.Repository, fs billy.Filesystem, idx *index.Index, f *fileChange) error {
	if f.new == nil {
		if !f.indexOnly {
			err := fs.Remove(f.path)
			if err != nil && !os.IsNotExist(err) {
				return errors.Wrapf(err, "error removing %v", f.path)
			}
		}

		_, err := idx.Remove(f.path)
		if err != nil && err != index.ErrEntryNotFound {
			return errors.Wrapf(err, "error removing %v from index", f.path)
		}

		return nil
	}

	var content []byte
	if f.merged != nil {
		content = []byte(*f.merged)
	} else {
		var err error
		content, err = gitstore.ReadBlob(repo.Storer(), f.new.Hash)
		if err != nil {
			return err
		}
	}

	if !f.indexOnly {
		err := writeFile(fs, f.path, f.new.Mode, content)
		if err != nil {
			return err
		}
	}

	e, err := idx.Entry(f.path)
	if err == index.ErrEntryNotFound {
		e = idx.Add(f.path)
	} else if err != nil {
		return err
	}

	e.Hash = f.new.Hash
	e.Mode = f.new.Mode
	e.Size = uint32(len(content))

	return nil
}

func writeFile(fs billy.Filesystem, path string, mode filemode.FileMode, content []byte) error {
	perm := os.FileMode(0o644)
	if mode == filemode.Executable {
		perm = 0o755
	}

	file, err := fs.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, perm)
	if err != nil {
		return errors.Wrapf(err, "error writing %v", path)
	}

	_, err = file.Write(content)
	if err != nil {
		_ = file.Close()
		return errors.Wrapf(err, "error writing %v", path)
	}

	err = file.Close()
	if err != nil {
		return errors.Wrapf(err, "error writing %v", path)
	}

	return nil
}
