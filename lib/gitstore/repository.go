package gitstore

import (
	"sort"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"
	"github.com/pkg/errors"

	"github.com/pescuma/lanes/lib/caches"
	"github.com/pescuma/lanes/lib/consoles"
)

// Repository wraps a go-git repository with the object and reference operations needed to
// rewrite history.
type Repository struct {
	git     *git.Repository
	console consoles.Console
	trees   caches.Cache[plumbing.Hash, map[string]object.TreeEntry]
	user    *caches.Lazy[object.Signature]
}

func Open(path string, console consoles.Console) (*Repository, error) {
	g, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, errors.Wrapf(err, "error opening git repository at %v", path)
	}

	return New(g, console), nil
}

func New(g *git.Repository, console consoles.Console) *Repository {
	return &Repository{
		git:     g,
		console: console,
		trees:   caches.NewUnlimited[plumbing.Hash, map[string]object.TreeEntry](),
		user:    caches.NewLazy(func() (object.Signature, error) { return readUser(g), nil }),
	}
}

func (r *Repository) Git() *git.Repository {
	return r.git
}

func (r *Repository) Console() consoles.Console {
	return r.console
}

// Storer gives direct access to the durable object store.
func (r *Repository) Storer() storer.EncodedObjectStorer {
	return r.git.Storer
}

func (r *Repository) FindCommit(h plumbing.Hash) (*object.Commit, error) {
	return findCommit(r.git.Storer, h)
}

func (r *Repository) FindTree(h plumbing.Hash) (*object.Tree, error) {
	tree, err := object.GetTree(r.git.Storer, h)
	if err != nil {
		return nil, errors.Wrapf(err, "error reading tree %v", h)
	}
	return tree, nil
}

// WriteCommit writes the commit directly to the repository.
func (r *Repository) WriteCommit(c *object.Commit) (plumbing.Hash, error) {
	return WriteObject(r.git.Storer, c)
}

// FlattenTree lists all files of a tree by path. The result is shared and must not be
// modified.
func (r *Repository) FlattenTree(h plumbing.Hash) (map[string]object.TreeEntry, error) {
	if h.IsZero() {
		return map[string]object.TreeEntry{}, nil
	}

	// missing trees are not cached, they may show up after a persist
	err := r.git.Storer.HasEncodedObject(h)
	if err != nil {
		return nil, errors.Wrapf(err, "error reading tree %v", h)
	}

	return r.trees.Get(h, func(h plumbing.Hash) (map[string]object.TreeEntry, error) {
		return FlattenTree(r.git.Storer, h)
	})
}

func (r *Repository) CreateOverlay() *Overlay {
	return newOverlay(r.git.Storer)
}

// Persist copies every object written to the overlay into the repository.
func (r *Repository) Persist(o *Overlay) error {
	written := 0
	for h, obj := range o.Objects {
		if r.git.Storer.HasEncodedObject(h) == nil {
			continue
		}

		_, err := r.git.Storer.SetEncodedObject(obj)
		if err != nil {
			return errors.Wrapf(err, "error persisting object %v", h)
		}
		written++
	}

	if written > 0 {
		r.console.Printf("Wrote %v new objects\n", written)
	}

	return nil
}

// Head returns HEAD without resolving it.
func (r *Repository) Head() (*plumbing.Reference, error) {
	return r.git.Storer.Reference(plumbing.HEAD)
}

// HeadCommit returns the commit HEAD points to, or ZeroHash for an unborn branch.
func (r *Repository) HeadCommit() (plumbing.Hash, error) {
	ref, err := r.git.Head()
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return plumbing.ZeroHash, nil
	} else if err != nil {
		return plumbing.ZeroHash, err
	}
	return ref.Hash(), nil
}

// AttachHead points HEAD to a branch. The worktree is not touched.
func (r *Repository) AttachHead(branch plumbing.ReferenceName) error {
	err := r.git.Storer.SetReference(plumbing.NewSymbolicReference(plumbing.HEAD, branch))
	return errors.Wrapf(err, "error pointing HEAD to %v", branch)
}

// DetachHead points HEAD directly to a commit. The worktree is not touched.
func (r *Repository) DetachHead(commit plumbing.Hash) error {
	err := r.git.Storer.SetReference(plumbing.NewHashReference(plumbing.HEAD, commit))
	return errors.Wrapf(err, "error detaching HEAD at %v", commit)
}

// Reference returns the reference or nil if it does not exist.
func (r *Repository) Reference(name plumbing.ReferenceName) (*plumbing.Reference, error) {
	ref, err := r.git.Storer.Reference(name)
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return nil, nil
	} else if err != nil {
		return nil, errors.Wrapf(err, "error reading reference %v", name)
	}
	return ref, nil
}

// Branches returns all local branches sorted by name.
func (r *Repository) Branches() ([]*plumbing.Reference, error) {
	iter, err := r.git.Branches()
	if err != nil {
		return nil, err
	}

	var result []*plumbing.Reference
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		result = append(result, ref)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Name() < result[j].Name()
	})
	return result, nil
}

// ResolveCommit accepts full or abbreviated hashes and reference names.
func (r *Repository) ResolveCommit(locator string) (plumbing.Hash, error) {
	h, err := r.git.ResolveRevision(plumbing.Revision(locator))
	if err != nil {
		return plumbing.ZeroHash, errors.Wrapf(err, "error resolving %v", locator)
	}
	return *h, nil
}

// Signature returns the identity configured in git.
func (r *Repository) Signature(when time.Time) object.Signature {
	result, _ := r.user.Get()
	result.When = when
	return result
}

func readUser(g *git.Repository) object.Signature {
	result := object.Signature{
		Name:  "lanes",
		Email: "lanes@localhost",
	}

	cfg, err := g.ConfigScoped(config.GlobalScope)
	if err != nil {
		return result
	}

	if cfg.User.Name != "" {
		result.Name = cfg.User.Name
	}
	if cfg.User.Email != "" {
		result.Email = cfg.User.Email
	}
	return result
}

// IsAncestor checks if ancestor is reachable from descendant. A commit is its own ancestor.
func IsAncestor(s storer.EncodedObjectStorer, ancestor, descendant plumbing.Hash) (bool, error) {
	if ancestor == descendant {
		return true, nil
	}

	a, err := findCommit(s, ancestor)
	if err != nil {
		return false, err
	}

	d, err := findCommit(s, descendant)
	if err != nil {
		return false, err
	}

	return a.IsAncestor(d)
}

func findCommit(s storer.EncodedObjectStorer, h plumbing.Hash) (*object.Commit, error) {
	c, err := object.GetCommit(s, h)
	if err != nil {
		return nil, errors.Wrapf(err, "error reading commit %v", h)
	}
	return c, nil
}
