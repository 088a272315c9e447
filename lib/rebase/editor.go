package rebase

import (
	"time"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/gobwas/glob"
	"github.com/oleiade/lane/v2"
	"github.com/pkg/errors"

	"github.com/pescuma/lanes/lib/gitstore"
)

type EditorOptions struct {
	// Heads are the references whose history can be rewritten.
	Heads []plumbing.ReferenceName
	// Base is where the walk stops. Commits shared with it are kept as they are.
	// ZeroHash walks to the root commits.
	Base plumbing.Hash
	// References filters, by short name, the other branches added to the graph.
	// Empty adds all of them.
	References string
	// Identity is used as committer of new commits. Defaults to the git configuration.
	Identity *object.Signature
	// Now defaults to time.Now.
	Now func() time.Time
}

// Editor holds a pending rewrite as a graph of steps. New commits are written to an
// overlay, and nothing changes in the repository until the rebase is materialized.
type Editor struct {
	repo    *gitstore.Repository
	overlay *gitstore.Overlay
	graph   *StepGraph
	heads   []Selector

	initialReferences map[plumbing.ReferenceName]plumbing.Hash
	head              *plumbing.Reference
	headCommit        plumbing.Hash

	identity *object.Signature
	now      func() time.Time
}

// NewEditor builds the step graph of the history between the heads and the base.
func NewEditor(repo *gitstore.Repository, opts EditorOptions) (*Editor, error) {
	e := &Editor{
		repo:              repo,
		overlay:           repo.CreateOverlay(),
		graph:             newStepGraph(),
		initialReferences: map[plumbing.ReferenceName]plumbing.Hash{},
		identity:          opts.Identity,
		now:               opts.Now,
	}
	if e.now == nil {
		e.now = time.Now
	}

	var err error
	e.head, err = repo.Head()
	if err != nil && !errors.Is(err, plumbing.ErrReferenceNotFound) {
		return nil, errors.Wrap(err, "error reading HEAD")
	}

	e.headCommit, err = repo.HeadCommit()
	if err != nil {
		return nil, err
	}

	var filter glob.Glob
	if opts.References != "" {
		filter, err = glob.Compile(opts.References, '/')
		if err != nil {
			return nil, errors.Wrapf(err, "invalid reference filter %v", opts.References)
		}
	}

	tips := make([]plumbing.Hash, len(opts.Heads))
	for i, name := range opts.Heads {
		ref, err := repo.Reference(name)
		if err != nil {
			return nil, err
		}
		if ref == nil {
			return nil, errors.Errorf("reference %v not found", name)
		}
		if ref.Type() != plumbing.HashReference {
			return nil, errors.Errorf("reference %v is symbolic", name)
		}

		tips[i] = ref.Hash()
	}

	boundary, err := e.findBoundary(tips, opts.Base)
	if err != nil {
		return nil, err
	}

	picks, err := e.addCommits(tips, boundary)
	if err != nil {
		return nil, err
	}

	for i, name := range opts.Heads {
		id := e.graph.add(Reference{Name: name})
		e.graph.addParent(id, picks[tips[i]], 0)

		e.heads = append(e.heads, e.graph.selector(id))
		e.initialReferences[name] = tips[i]
	}

	err = e.addOtherReferences(picks, filter)
	if err != nil {
		return nil, err
	}

	return e, nil
}

// findBoundary returns the commits where the walk from the tips stops: the base and the
// merge bases of each tip with it.
func (e *Editor) findBoundary(tips []plumbing.Hash, base plumbing.Hash) (map[plumbing.Hash]bool, error) {
	result := map[plumbing.Hash]bool{}
	if base.IsZero() {
		return result, nil
	}

	result[base] = true

	b, err := e.repo.FindCommit(base)
	if err != nil {
		return nil, err
	}

	for _, tip := range tips {
		c, err := e.repo.FindCommit(tip)
		if err != nil {
			return nil, err
		}

		bases, err := c.MergeBase(b)
		if err != nil {
			return nil, errors.Wrapf(err, "error computing merge base of %v and %v", tip, base)
		}

		for _, mb := range bases {
			result[mb.Hash] = true
		}
	}

	return result, nil
}

// addCommits adds a pick for every commit between the tips and the boundary.
func (e *Editor) addCommits(tips []plumbing.Hash, boundary map[plumbing.Hash]bool) (map[plumbing.Hash]int, error) {
	picks := map[plumbing.Hash]int{}
	queue := lane.NewQueue[plumbing.Hash]()

	nodeFor := func(h plumbing.Hash) int {
		id, ok := picks[h]
		if !ok {
			id = e.graph.add(NewPick(h))
			picks[h] = id
			queue.Enqueue(h)
		}
		return id
	}

	for _, tip := range tips {
		nodeFor(tip)
	}

	for queue.Size() > 0 {
		h, _ := queue.Dequeue()
		id := picks[h]

		c, err := e.repo.FindCommit(h)
		if err != nil {
			return nil, err
		}

		if boundary[h] || c.NumParents() == 0 {
			pick := NewPick(h)
			pick.PreservedParents = append([]plumbing.Hash{}, c.ParentHashes...)
			e.graph.nodes[id].step = pick
			continue
		}

		for i, p := range c.ParentHashes {
			e.graph.addParent(id, nodeFor(p), i)
		}
	}

	return picks, nil
}

// addOtherReferences adds every local branch pointing into the graph above its commit.
// References on the same commit are stacked in name order, the first one right above it.
func (e *Editor) addOtherReferences(picks map[plumbing.Hash]int, filter glob.Glob) error {
	branches, err := e.repo.Branches()
	if err != nil {
		return err
	}

	for i := len(branches) - 1; i >= 0; i-- {
		ref := branches[i]

		if _, ok := e.initialReferences[ref.Name()]; ok {
			continue
		}
		if filter != nil && !filter.Match(ref.Name().Short()) {
			continue
		}

		pick, ok := picks[ref.Hash()]
		if !ok {
			continue
		}

		_, err = e.Insert(e.graph.selector(pick), Reference{Name: ref.Name()}, Above)
		if err != nil {
			return err
		}

		e.initialReferences[ref.Name()] = ref.Hash()
	}

	return nil
}

func (e *Editor) Repository() *gitstore.Repository {
	return e.repo
}

// Objects is where new trees and blobs for the rewrite must be written, so they are
// persisted with the commits that use them.
func (e *Editor) Objects() *gitstore.Overlay {
	return e.overlay
}

func (e *Editor) Graph() *StepGraph {
	return e.graph
}

// Heads returns the selectors of the head references.
func (e *Editor) Heads() []Selector {
	return append([]Selector{}, e.heads...)
}

// InitialReferences returns the references in the graph and their targets when the editor
// was created.
func (e *Editor) InitialReferences() map[plumbing.ReferenceName]plumbing.Hash {
	result := make(map[plumbing.ReferenceName]plumbing.Hash, len(e.initialReferences))
	for k, v := range e.initialReferences {
		result[k] = v
	}
	return result
}

// FindCommit reads a commit from the repository or from the commits created by the editor.
func (e *Editor) FindCommit(h plumbing.Hash) (*object.Commit, error) {
	return gitstore.FindCommit(e.overlay, h)
}

func (e *Editor) Describe() string {
	return e.graph.Describe(e.heads...)
}
