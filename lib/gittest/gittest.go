// Package gittest builds in-memory git repositories for tests.
package gittest

import (
	"io"
	"sort"
	"testing"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/storage"
	"github.com/go-git/go-git/v5/storage/memory"
	"github.com/stretchr/testify/require"
)

// Deleted removes a file when used as content in Change.
const Deleted = "\x00deleted\x00"

type Repo struct {
	Git *git.Repository
	FS  billy.Filesystem

	t   testing.TB
	now time.Time
}

func New(t testing.TB) *Repo {
	return NewWithStorer(t, memory.NewStorage())
}

func NewWithStorer(t testing.TB, s storage.Storer) *Repo {
	fs := memfs.New()

	g, err := git.Init(s, fs)
	require.NoError(t, err)

	return &Repo{
		Git: g,
		FS:  fs,
		t:   t,
		now: time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC),
	}
}

func (r *Repo) Signature() object.Signature {
	r.now = r.now.Add(time.Minute)
	return object.Signature{Name: "Tester", Email: "tester@example.com", When: r.now}
}

// Commit writes a commit whose tree holds exactly the given files.
func (r *Repo) Commit(message string, files map[string]string, parents ...plumbing.Hash) plumbing.Hash {
	tree := r.Tree(files)

	sig := r.Signature()
	return r.write(&object.Commit{
		Author:       sig,
		Committer:    sig,
		Message:      message,
		TreeHash:     tree,
		ParentHashes: parents,
	})
}

// Change writes a commit on top of parent, changing only the given files.
func (r *Repo) Change(parent plumbing.Hash, message string, changes map[string]string) plumbing.Hash {
	files := r.Files(parent)
	for path, content := range changes {
		if content == Deleted {
			delete(files, path)
		} else {
			files[path] = content
		}
	}

	return r.Commit(message, files, parent)
}

// Tree writes a tree with the given files. Directories are not supported.
func (r *Repo) Tree(files map[string]string) plumbing.Hash {
	var entries []object.TreeEntry
	for path, content := range files {
		entries = append(entries, object.TreeEntry{Name: path, Mode: filemode.Regular, Hash: r.Blob(content)})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name < entries[j].Name
	})

	return r.write(&object.Tree{Entries: entries})
}

func (r *Repo) Blob(content string) plumbing.Hash {
	obj := r.Git.Storer.NewEncodedObject()
	obj.SetType(plumbing.BlobObject)

	w, err := obj.Writer()
	require.NoError(r.t, err)
	_, err = w.Write([]byte(content))
	require.NoError(r.t, err)
	require.NoError(r.t, w.Close())

	h, err := r.Git.Storer.SetEncodedObject(obj)
	require.NoError(r.t, err)
	return h
}

func (r *Repo) write(o interface {
	Encode(plumbing.EncodedObject) error
},
) plumbing.Hash {
	obj := r.Git.Storer.NewEncodedObject()
	require.NoError(r.t, o.Encode(obj))

	h, err := r.Git.Storer.SetEncodedObject(obj)
	require.NoError(r.t, err)
	return h
}

// Files reads all files of a commit, or of a conflicted commit's root tree.
func (r *Repo) Files(commit plumbing.Hash) map[string]string {
	c, err := r.Git.CommitObject(commit)
	require.NoError(r.t, err)

	return r.TreeFiles(c.TreeHash)
}

func (r *Repo) TreeFiles(tree plumbing.Hash) map[string]string {
	t, err := r.Git.TreeObject(tree)
	require.NoError(r.t, err)

	result := map[string]string{}
	err = t.Files().ForEach(func(f *object.File) error {
		content, err := f.Contents()
		if err != nil {
			return err
		}
		result[f.Name] = content
		return nil
	})
	require.NoError(r.t, err)

	return result
}

func (r *Repo) Message(commit plumbing.Hash) string {
	c, err := r.Git.CommitObject(commit)
	require.NoError(r.t, err)
	return c.Message
}

func (r *Repo) Parents(commit plumbing.Hash) []plumbing.Hash {
	c, err := r.Git.CommitObject(commit)
	require.NoError(r.t, err)
	return c.ParentHashes
}

func (r *Repo) Branch(name string, commit plumbing.Hash) plumbing.ReferenceName {
	ref := plumbing.NewBranchReferenceName(name)
	require.NoError(r.t, r.Git.Storer.SetReference(plumbing.NewHashReference(ref, commit)))
	return ref
}

// BranchCommit returns the commit of a branch, or ZeroHash if it does not exist.
func (r *Repo) BranchCommit(name string) plumbing.Hash {
	ref, err := r.Git.Storer.Reference(plumbing.NewBranchReferenceName(name))
	if err == plumbing.ErrReferenceNotFound {
		return plumbing.ZeroHash
	}
	require.NoError(r.t, err)
	return ref.Hash()
}

// Checkout points HEAD to the branch and resets the worktree and index to its commit.
func (r *Repo) Checkout(name string) {
	wt, err := r.Git.Worktree()
	require.NoError(r.t, err)

	err = wt.Checkout(&git.CheckoutOptions{
		Branch: plumbing.NewBranchReferenceName(name),
		Force:  true,
	})
	require.NoError(r.t, err)
}

func (r *Repo) WriteFile(path, content string) {
	f, err := r.FS.Create(path)
	require.NoError(r.t, err)
	_, err = f.Write([]byte(content))
	require.NoError(r.t, err)
	require.NoError(r.t, f.Close())
}

// ReadFile returns the worktree content, or Deleted if the file does not exist.
func (r *Repo) ReadFile(path string) string {
	f, err := r.FS.Open(path)
	if err != nil {
		return Deleted
	}
	defer f.Close()

	content, err := io.ReadAll(f)
	require.NoError(r.t, err)
	return string(content)
}
