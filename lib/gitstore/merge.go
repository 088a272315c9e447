package gitstore

import (
	"sort"

	"github.com/go-enry/go-enry/v2"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"
	"github.com/hashicorp/go-set/v2"

	"github.com/pescuma/lanes/lib/merge"
)

// TreeMerge is the result of a three-way tree merge. When there are conflicts, Tree is
// the auto-resolution, where each conflicting region takes the ours side.
type TreeMerge struct {
	Tree      plumbing.Hash
	Conflicts []string
}

func (m *TreeMerge) Conflicted() bool {
	return len(m.Conflicts) > 0
}

// MergeTrees merges the changes base->ours and base->theirs. ZeroHash is the empty tree.
func MergeTrees(s storer.EncodedObjectStorer, base, ours, theirs plumbing.Hash) (*TreeMerge, error) {
	trivial := plumbing.ZeroHash
	switch {
	case ours == theirs, base == theirs:
		trivial = ours
	case base == ours:
		trivial = theirs
	default:
		return mergeFiles(s, base, ours, theirs)
	}

	if trivial.IsZero() {
		var err error
		trivial, err = BuildTree(s, nil)
		if err != nil {
			return nil, err
		}
	}

	return &TreeMerge{Tree: trivial}, nil
}

func mergeFiles(s storer.EncodedObjectStorer, base, ours, theirs plumbing.Hash) (*TreeMerge, error) {
	baseFiles, err := FlattenTree(s, base)
	if err != nil {
		return nil, err
	}

	oursFiles, err := FlattenTree(s, ours)
	if err != nil {
		return nil, err
	}

	theirsFiles, err := FlattenTree(s, theirs)
	if err != nil {
		return nil, err
	}

	paths := set.New[string](len(oursFiles) + len(theirsFiles))
	for _, files := range []map[string]object.TreeEntry{baseFiles, oursFiles, theirsFiles} {
		for path := range files {
			paths.Insert(path)
		}
	}

	result := &TreeMerge{}
	merged := make(map[string]object.TreeEntry, paths.Size())

	for _, path := range paths.Slice() {
		entry, conflict, err := mergeEntry(s, lookupEntry(baseFiles, path), lookupEntry(oursFiles, path), lookupEntry(theirsFiles, path))
		if err != nil {
			return nil, err
		}

		if conflict {
			result.Conflicts = append(result.Conflicts, path)
		}
		if entry != nil {
			merged[path] = *entry
		}
	}

	sort.Strings(result.Conflicts)

	result.Tree, err = BuildTree(s, merged)
	if err != nil {
		return nil, err
	}

	return result, nil
}

func lookupEntry(files map[string]object.TreeEntry, path string) *object.TreeEntry {
	e, ok := files[path]
	if !ok {
		return nil
	}
	return &e
}

func sameEntry(a, b *object.TreeEntry) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Mode == b.Mode && a.Hash == b.Hash
}

// mergeEntry returns the merged entry (nil for a deleted path) and if it had to be
// auto-resolved.
func mergeEntry(s storer.EncodedObjectStorer, base, ours, theirs *object.TreeEntry) (*object.TreeEntry, bool, error) {
	switch {
	case sameEntry(ours, theirs), sameEntry(base, theirs):
		return ours, false, nil
	case sameEntry(base, ours):
		return theirs, false, nil
	case ours == nil || theirs == nil:
		// modified on one side and deleted on the other
		return ours, true, nil
	case !isFile(ours.Mode) || !isFile(theirs.Mode):
		return ours, true, nil
	}

	mode := ours.Mode
	if base != nil && ours.Mode == base.Mode {
		mode = theirs.Mode
	}

	var baseContent []byte
	if base != nil && isFile(base.Mode) {
		var err error
		baseContent, err = ReadBlob(s, base.Hash)
		if err != nil {
			return nil, false, err
		}
	}

	oursContent, err := ReadBlob(s, ours.Hash)
	if err != nil {
		return nil, false, err
	}

	theirsContent, err := ReadBlob(s, theirs.Hash)
	if err != nil {
		return nil, false, err
	}

	if enry.IsBinary(oursContent) || enry.IsBinary(theirsContent) || enry.IsBinary(baseContent) {
		return ours, true, nil
	}

	m := merge.ThreeWay(string(baseContent), string(oursContent), string(theirsContent), merge.Options{Favor: merge.FavorOurs})

	h, err := WriteBlob(s, []byte(m.Content))
	if err != nil {
		return nil, false, err
	}

	return &object.TreeEntry{Name: ours.Name, Mode: mode, Hash: h}, m.Conflicted(), nil
}

func isFile(mode filemode.FileMode) bool {
	return mode == filemode.Regular || mode == filemode.Executable || mode == filemode.Deprecated
}
