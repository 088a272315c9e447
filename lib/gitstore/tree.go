package gitstore

import (
	"sort"
	"strings"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"
	"github.com/pkg/errors"
)

// FlattenTree lists all non-tree entries of a tree by full path. ZeroHash is the empty tree.
func FlattenTree(s storer.EncodedObjectStorer, h plumbing.Hash) (map[string]object.TreeEntry, error) {
	result := map[string]object.TreeEntry{}
	if h.IsZero() {
		return result, nil
	}

	tree, err := object.GetTree(s, h)
	if err != nil {
		return nil, errors.Wrapf(err, "error reading tree %v", h)
	}

	err = flattenTree(s, tree, "", result)
	if err != nil {
		return nil, err
	}

	return result, nil
}

func flattenTree(s storer.EncodedObjectStorer, tree *object.Tree, prefix string, result map[string]object.TreeEntry) error {
	for _, entry := range tree.Entries {
		path := entry.Name
		if prefix != "" {
			path = prefix + "/" + entry.Name
		}

		if entry.Mode == filemode.Dir {
			sub, err := object.GetTree(s, entry.Hash)
			if err != nil {
				return errors.Wrapf(err, "error reading tree %v", path)
			}

			err = flattenTree(s, sub, path, result)
			if err != nil {
				return err
			}

			continue
		}

		result[path] = object.TreeEntry{Name: path, Mode: entry.Mode, Hash: entry.Hash}
	}

	return nil
}

type treeNode struct {
	dirs  map[string]*treeNode
	files []object.TreeEntry
}

// BuildTree writes the nested trees for a map of full paths to entries.
func BuildTree(s storer.EncodedObjectStorer, entries map[string]object.TreeEntry) (plumbing.Hash, error) {
	root := &treeNode{dirs: map[string]*treeNode{}}

	for path, entry := range entries {
		root.insert(strings.Split(path, "/"), entry)
	}

	return root.write(s)
}

func (n *treeNode) insert(parts []string, entry object.TreeEntry) {
	if len(parts) == 1 {
		n.files = append(n.files, object.TreeEntry{Name: parts[0], Mode: entry.Mode, Hash: entry.Hash})
		return
	}

	dir, ok := n.dirs[parts[0]]
	if !ok {
		dir = &treeNode{dirs: map[string]*treeNode{}}
		n.dirs[parts[0]] = dir
	}

	dir.insert(parts[1:], entry)
}

func (n *treeNode) write(s storer.EncodedObjectStorer) (plumbing.Hash, error) {
	entries := make([]object.TreeEntry, 0, len(n.files)+len(n.dirs))
	entries = append(entries, n.files...)

	for name, dir := range n.dirs {
		h, err := dir.write(s)
		if err != nil {
			return plumbing.ZeroHash, err
		}

		entries = append(entries, object.TreeEntry{Name: name, Mode: filemode.Dir, Hash: h})
	}

	SortTreeEntries(entries)

	return WriteObject(s, &object.Tree{Entries: entries})
}

// SortTreeEntries sorts entries the way git expects: by name, with a trailing slash on
// directories.
func SortTreeEntries(entries []object.TreeEntry) {
	key := func(e object.TreeEntry) string {
		if e.Mode == filemode.Dir {
			return e.Name + "/"
		}
		return e.Name
	}

	sort.Slice(entries, func(i, j int) bool {
		return key(entries[i]) < key(entries[j])
	})
}

// TreeOf returns the tree hash of a commit, reading it from any store.
func TreeOf(s storer.EncodedObjectStorer, commit plumbing.Hash) (plumbing.Hash, error) {
	c, err := findCommit(s, commit)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	return c.TreeHash, nil
}

// SubTree returns the hash of a tree entry of the root tree.
func SubTree(s storer.EncodedObjectStorer, tree plumbing.Hash, name string) (plumbing.Hash, bool, error) {
	t, err := object.GetTree(s, tree)
	if err != nil {
		return plumbing.ZeroHash, false, errors.Wrapf(err, "error reading tree %v", tree)
	}

	for _, e := range t.Entries {
		if e.Name == name {
			return e.Hash, true, nil
		}
	}

	return plumbing.ZeroHash, false, nil
}
