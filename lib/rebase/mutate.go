package rebase

import (
	"encoding/hex"
	"strings"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/pescuma/lanes/lib/gitstore"
)

var (
	ErrNotFound         = errors.New("not found in the step graph")
	ErrRemoved          = errors.New("step was removed")
	ErrConflictedCommit = errors.New("conflicted commits can not be reordered or replaced")
)

type Side int

const (
	// Above places the new step between the selected step and its children.
	Above Side = iota
	// Below places the new step between the selected step and its parents.
	Below
)

func (s Side) String() string {
	if s == Below {
		return "below"
	}
	return "above"
}

// Step returns the step at sel.
func (e *Editor) Step(sel Selector) (Step, error) {
	id, err := e.graph.resolve(sel)
	if err != nil {
		return nil, err
	}
	return e.graph.step(id), nil
}

// Parents returns the parents of sel, in edge order.
func (e *Editor) Parents(sel Selector) ([]Selector, error) {
	id, err := e.graph.resolve(sel)
	if err != nil {
		return nil, err
	}

	var result []Selector
	for _, p := range e.graph.orderedParents(id) {
		result = append(result, e.graph.selector(p))
	}
	return result, nil
}

// Insert adds a new step above or below sel and returns its selector.
func (e *Editor) Insert(sel Selector, step Step, side Side) (Selector, error) {
	id, err := e.graph.resolve(sel)
	if err != nil {
		return Selector{}, err
	}

	if side == Below {
		err = e.checkNotConflicted(id)
		if err != nil {
			return Selector{}, err
		}
	}

	n := e.graph.add(step)

	switch side {
	case Above:
		for _, child := range e.graph.children(id) {
			e.graph.redirectParent(child, id, n)
		}
		e.graph.addParent(n, id, 0)

	case Below:
		e.graph.nodes[n].parents = e.graph.nodes[id].parents
		e.graph.nodes[id].parents = []parentEdge{{parent: n, edge: Edge{Order: 0}}}
	}

	return e.graph.selector(n), nil
}

// InsertBetween adds a new step on the edge from child to parent. The other children of
// parent keep their edges.
func (e *Editor) InsertBetween(parent, child Selector, step Step) (Selector, error) {
	p, err := e.graph.resolve(parent)
	if err != nil {
		return Selector{}, err
	}

	c, err := e.graph.resolve(child)
	if err != nil {
		return Selector{}, err
	}

	if !lo.ContainsBy(e.graph.nodes[c].parents, func(pe parentEdge) bool { return pe.parent == p }) {
		return Selector{}, errors.Errorf("%v is not a parent of %v", parent, child)
	}

	err = e.checkNotConflicted(c)
	if err != nil {
		return Selector{}, err
	}

	n := e.graph.add(step)
	e.graph.addParent(n, p, 0)
	e.graph.redirectParent(c, p, n)

	return e.graph.selector(n), nil
}

// Replace swaps the step at sel, keeping its edges, and returns the previous step.
func (e *Editor) Replace(sel Selector, step Step) (Step, error) {
	id, err := e.graph.resolve(sel)
	if err != nil {
		return nil, err
	}

	if !e.resolvesConflict(step) {
		err = e.checkNotConflicted(id)
		if err != nil {
			return nil, err
		}
	}

	n := e.graph.nodes[id]
	old := n.step
	n.step = step
	if p, ok := step.(Pick); ok && n.origin.IsZero() {
		n.origin = p.CommitID
	}

	return old, nil
}

// Remove replaces the step at sel with Removed.
func (e *Editor) Remove(sel Selector) (Step, error) {
	return e.Replace(sel, Removed{})
}

// ReplaceParent replaces the parent oldParent of sel with newParents. The first new parent
// takes the place of the old one. Without new parents the edge is dropped.
func (e *Editor) ReplaceParent(sel, oldParent Selector, newParents ...Selector) error {
	id, err := e.graph.resolve(sel)
	if err != nil {
		return err
	}

	old, err := e.graph.resolve(oldParent)
	if err != nil {
		return err
	}

	news := make([]int, len(newParents))
	for i, p := range newParents {
		news[i], err = e.graph.resolve(p)
		if err != nil {
			return err
		}
	}

	err = e.checkNotConflicted(id)
	if err != nil {
		return err
	}

	return e.graph.replaceParent(id, old, news)
}

// resolvesConflict checks if step is a pick of a commit without conflicts. Replacing a
// conflicted commit with it is how a conflict gets resolved.
func (e *Editor) resolvesConflict(step Step) bool {
	p, ok := step.(Pick)
	if !ok {
		return false
	}

	c, err := e.FindCommit(p.CommitID)
	if err != nil {
		return false
	}

	return !gitstore.IsConflicted(c)
}

func (e *Editor) checkNotConflicted(id int) error {
	p, ok := e.graph.step(id).(Pick)
	if !ok {
		return nil
	}

	c, err := e.FindCommit(p.CommitID)
	if err != nil {
		return err
	}

	if gitstore.IsConflicted(c) {
		return errors.Wrapf(ErrConflictedCommit, "%v", p.CommitID)
	}

	return nil
}

// FindSelectableCommit finds the pick of a commit by full or abbreviated hash, or by
// reference name.
func (e *Editor) FindSelectableCommit(locator string) (Selector, *object.Commit, error) {
	h, err := e.resolveLocator(locator)
	if err != nil {
		return Selector{}, nil, err
	}

	removed := false
	for id, n := range e.graph.nodes {
		switch s := n.step.(type) {
		case Pick:
			if s.CommitID == h {
				c, err := e.FindCommit(h)
				if err != nil {
					return Selector{}, nil, err
				}
				return e.graph.selector(id), c, nil
			}
		case Removed:
			if n.origin == h {
				removed = true
			}
		}
	}

	if removed {
		return Selector{}, nil, errors.Wrapf(ErrRemoved, "commit %v", locator)
	}
	return Selector{}, nil, errors.Wrapf(ErrNotFound, "commit %v", locator)
}

func (e *Editor) resolveLocator(locator string) (plumbing.Hash, error) {
	if isFullHash(locator) {
		return plumbing.NewHash(locator), nil
	}

	h, err := e.repo.ResolveCommit(locator)
	if err != nil {
		return plumbing.ZeroHash, errors.Wrapf(ErrNotFound, "commit %v", locator)
	}
	return h, nil
}

func isFullHash(s string) bool {
	if len(s) != 40 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}

// SelectReference returns the selector of a reference step. Both full and short branch
// names are accepted.
func (e *Editor) SelectReference(name plumbing.ReferenceName) (Selector, error) {
	full := name
	if !strings.HasPrefix(string(name), "refs/") {
		full = plumbing.NewBranchReferenceName(string(name))
	}

	for id, n := range e.graph.nodes {
		if r, ok := n.step.(Reference); ok && r.Name == full {
			return e.graph.selector(id), nil
		}
	}

	return Selector{}, errors.Wrapf(ErrNotFound, "reference %v", name)
}

// commitsAt returns the commits a step stands for: its own for a pick, or the ones of its
// parents for other steps.
func (e *Editor) commitsAt(id int) []plumbing.Hash {
	if p, ok := e.graph.step(id).(Pick); ok {
		return []plumbing.Hash{p.CommitID}
	}

	var result []plumbing.Hash
	for _, parent := range e.graph.orderedParents(id) {
		result = append(result, e.commitsAt(parent)...)
	}
	return result
}
