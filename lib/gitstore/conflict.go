package gitstore

import (
	"strings"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"
	"github.com/pkg/errors"
)

// Entries of the root tree of a conflicted commit.
const (
	ConflictSideOurs   = ".conflict-side-0"
	ConflictSideTheirs = ".conflict-side-1"
	ConflictBase       = ".conflict-base-0"
	AutoResolution     = ".auto-resolution"
	ConflictFiles      = ".conflict-files"
	ConflictReadme     = "README.txt"
)

const conflictReadme = `This commit has unresolved conflicts.

Its tree does not hold the files of the commit. It holds:

  .auto-resolution  the files, with conflicting regions taken from the destination
  .conflict-side-0  the destination the commit was applied to
  .conflict-side-1  the commit being applied
  .conflict-base-0  the common base of both sides
  .conflict-files   the paths that conflicted

Enter edit mode on this commit to resolve the conflicts.
`

// ConflictedTree describes the trees stored in a conflicted commit.
type ConflictedTree struct {
	Ours           plumbing.Hash
	Theirs         plumbing.Hash
	Base           plumbing.Hash
	AutoResolution plumbing.Hash
	Files          []string
}

// WriteConflictedTree writes the root tree of a conflicted commit.
func WriteConflictedTree(s storer.EncodedObjectStorer, c ConflictedTree) (plumbing.Hash, error) {
	files, err := WriteBlob(s, []byte(strings.Join(c.Files, "\n")+"\n"))
	if err != nil {
		return plumbing.ZeroHash, err
	}

	readme, err := WriteBlob(s, []byte(conflictReadme))
	if err != nil {
		return plumbing.ZeroHash, err
	}

	entries := []object.TreeEntry{
		{Name: AutoResolution, Mode: filemode.Dir, Hash: c.AutoResolution},
		{Name: ConflictBase, Mode: filemode.Dir, Hash: c.Base},
		{Name: ConflictFiles, Mode: filemode.Regular, Hash: files},
		{Name: ConflictSideOurs, Mode: filemode.Dir, Hash: c.Ours},
		{Name: ConflictSideTheirs, Mode: filemode.Dir, Hash: c.Theirs},
		{Name: ConflictReadme, Mode: filemode.Regular, Hash: readme},
	}
	SortTreeEntries(entries)

	return WriteObject(s, &object.Tree{Entries: entries})
}

// IsConflicted checks if the commit carries unresolved conflicts.
func IsConflicted(c *object.Commit) bool {
	tree, err := c.Tree()
	if err != nil {
		return false
	}

	_, err = tree.FindEntry(ConflictFiles)
	return err == nil
}

// ReadConflictedTree reads the trees stored in a conflicted commit.
func ReadConflictedTree(c *object.Commit) (*ConflictedTree, error) {
	tree, err := c.Tree()
	if err != nil {
		return nil, err
	}

	result := &ConflictedTree{}
	for name, target := range map[string]*plumbing.Hash{
		ConflictSideOurs:   &result.Ours,
		ConflictSideTheirs: &result.Theirs,
		ConflictBase:       &result.Base,
		AutoResolution:     &result.AutoResolution,
	} {
		e, err := tree.FindEntry(name)
		if err != nil {
			return nil, errors.Wrapf(err, "commit %v is not conflicted", c.Hash)
		}
		*target = e.Hash
	}

	f, err := tree.File(ConflictFiles)
	if err != nil {
		return nil, errors.Wrapf(err, "commit %v is not conflicted", c.Hash)
	}

	content, err := f.Contents()
	if err != nil {
		return nil, err
	}

	for _, line := range strings.Split(content, "\n") {
		if line != "" {
			result.Files = append(result.Files, line)
		}
	}

	return result, nil
}

// ContentTree returns the tree with the files of a commit. For conflicted commits it is
// the auto-resolution.
func ContentTree(c *object.Commit) (plumbing.Hash, error) {
	if !IsConflicted(c) {
		return c.TreeHash, nil
	}

	ct, err := ReadConflictedTree(c)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	return ct.AutoResolution, nil
}
