package rebase

import (
	"sort"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/oleiade/lane/v2"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"v.io/x/lib/toposort"

	"github.com/pescuma/lanes/lib/gitstore"
)

type Checkout int

const (
	// CheckoutHead moves the worktree to the new commit of HEAD.
	CheckoutHead Checkout = iota
)

// SuccessfulRebase is a rebase that was computed in memory and can be materialized.
type SuccessfulRebase struct {
	repo    *gitstore.Repository
	overlay *gitstore.Overlay

	// CommitMapping maps every picked commit to its new id. Unchanged commits map to
	// themselves.
	CommitMapping map[plumbing.Hash]plumbing.Hash
	RefEdits      []gitstore.RefEdit
	Checkouts     []Checkout
	// NewHead is the commit to check out when Checkouts has CheckoutHead.
	NewHead plumbing.Hash
}

type rebaseState struct {
	e         *Editor
	newIDs    map[int]plumbing.Hash
	mapping   map[plumbing.Hash]plumbing.Hash
	edits     []gitstore.RefEdit
	unchanged map[plumbing.ReferenceName]bool
}

// Rebase re-applies every step reachable from the heads, parents first.
func (e *Editor) Rebase() (*SuccessfulRebase, error) {
	err := e.validateReferenceConstraints()
	if err != nil {
		return nil, err
	}

	ordered, err := e.orderSteps()
	if err != nil {
		return nil, err
	}

	s := &rebaseState{
		e:         e,
		newIDs:    map[int]plumbing.Hash{},
		mapping:   map[plumbing.Hash]plumbing.Hash{},
		unchanged: map[plumbing.ReferenceName]bool{},
	}

	for _, id := range ordered {
		switch step := e.graph.step(id).(type) {
		case Pick:
			err = s.processPick(id, step)
		case Reference:
			err = s.processReference(id, step)
		}
		if err != nil {
			return nil, err
		}
	}

	s.deleteOrphanedReferences()
	s.mapOrigins()

	result := &SuccessfulRebase{
		repo:          e.repo,
		overlay:       e.overlay,
		CommitMapping: s.mapping,
		RefEdits:      s.edits,
	}

	s.computeCheckouts(result)

	return result, nil
}

func (e *Editor) validateReferenceConstraints() error {
	for id, n := range e.graph.nodes {
		p, ok := n.step.(Pick)
		if !ok || !p.ParentsMustBeReferences {
			continue
		}

		if !e.allParentsAreReferences(id) {
			return errors.Errorf("commit %v has parents that are not references", p.CommitID)
		}
	}

	return nil
}

// allParentsAreReferences checks if every parent of a step reaches a reference before
// reaching a pick. Removed steps are skipped.
func (e *Editor) allParentsAreReferences(id int) bool {
	seen := map[int]bool{}
	stack := lane.NewStack[int](e.graph.orderedParents(id)...)

	for stack.Size() > 0 {
		p, _ := stack.Pop()
		if seen[p] {
			continue
		}
		seen[p] = true

		switch e.graph.step(p).(type) {
		case Pick:
			return false
		case Removed:
			for _, pp := range e.graph.orderedParents(p) {
				stack.Push(pp)
			}
		}
	}

	return true
}

// orderSteps returns the steps reachable from the heads, parents before children.
func (e *Editor) orderSteps() ([]int, error) {
	sorter := toposort.Sorter{}
	seen := map[int]bool{}
	queue := lane.NewQueue[int]()

	for _, h := range e.heads {
		seen[h.id] = true
		queue.Enqueue(h.id)
	}

	for queue.Size() > 0 {
		id, _ := queue.Dequeue()
		sorter.AddNode(id)

		for _, p := range e.graph.orderedParents(id) {
			sorter.AddEdge(id, p)

			if !seen[p] {
				seen[p] = true
				queue.Enqueue(p)
			}
		}
	}

	sorted, cycles := sorter.Sort()
	if len(cycles) > 0 {
		return nil, errors.Errorf("the step graph has a cycle: %v", cycles[0])
	}

	return lo.Map(sorted, func(n interface{}, _ int) int { return n.(int) }), nil
}

// effectiveCommits returns the new commits a step stands for. Must be called after all
// its parents were processed.
func (s *rebaseState) effectiveCommits(id int) []plumbing.Hash {
	if _, ok := s.e.graph.step(id).(Pick); ok {
		return []plumbing.Hash{s.newIDs[id]}
	}

	return s.parentCommits(id)
}

func (s *rebaseState) parentCommits(id int) []plumbing.Hash {
	var result []plumbing.Hash
	for _, p := range s.e.graph.orderedParents(id) {
		result = append(result, s.effectiveCommits(p)...)
	}
	return lo.Uniq(result)
}

func (s *rebaseState) processPick(id int, pick Pick) error {
	ontos := pick.PreservedParents
	if !pick.IsBoundary() {
		ontos = s.parentCommits(id)
	}

	newID, outcome, err := s.e.pick(pick.CommitID, ontos)
	if err != nil {
		return err
	}

	switch {
	case outcome == pickFailedToMergeBases:
		return errors.Errorf("failed to merge the parents of commit %v", pick.CommitID)
	case outcome == pickConflicted && !pick.Conflictable:
		return errors.Errorf("commit %v can not be conflicted, but conflicted when rebased", pick.CommitID)
	}

	s.newIDs[id] = newID
	s.mapping[pick.CommitID] = newID
	return nil
}

func (s *rebaseState) processReference(id int, ref Reference) error {
	targets := s.parentCommits(id)
	if len(targets) == 0 {
		// deleted below, if it existed
		return nil
	}
	target := targets[0]

	current, err := s.e.repo.Reference(ref.Name)
	if err != nil {
		return err
	}

	switch {
	case current == nil:
		s.edits = append(s.edits, gitstore.RefEdit{Name: ref.Name, Kind: gitstore.RefCreate, New: target})

	case current.Type() != plumbing.HashReference:
		return errors.Errorf("can not update the symbolic reference %v", ref.Name)

	case current.Hash() == target:
		s.unchanged[ref.Name] = true

	default:
		expected := current.Hash()
		s.edits = append(s.edits, gitstore.RefEdit{Name: ref.Name, Kind: gitstore.RefUpdate, Expected: &expected, New: target})
	}

	return nil
}

func (s *rebaseState) deleteOrphanedReferences() {
	names := lo.Keys(s.e.initialReferences)
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })

	for _, name := range names {
		if s.unchanged[name] || lo.ContainsBy(s.edits, func(e gitstore.RefEdit) bool { return e.Name == name }) {
			continue
		}

		expected := s.e.initialReferences[name]
		s.edits = append(s.edits, gitstore.RefEdit{Name: name, Kind: gitstore.RefDelete, Expected: &expected})
	}
}

// mapOrigins maps the commits that were replaced or cherry-picked elsewhere to their
// new ids.
func (s *rebaseState) mapOrigins() {
	for id, n := range s.e.graph.nodes {
		newID, ok := s.newIDs[id]
		if !ok || n.origin.IsZero() {
			continue
		}

		if _, mapped := s.mapping[n.origin]; !mapped {
			s.mapping[n.origin] = newID
		}
	}
}

func (s *rebaseState) computeCheckouts(r *SuccessfulRebase) {
	head := s.e.head
	if head == nil {
		return
	}

	if head.Type() == plumbing.SymbolicReference {
		edit, ok := lo.Find(s.edits, func(e gitstore.RefEdit) bool { return e.Name == head.Target() })
		if ok && edit.Kind != gitstore.RefDelete {
			r.Checkouts = append(r.Checkouts, CheckoutHead)
			r.NewHead = edit.New
		}
		return
	}

	newHead, ok := s.mapping[s.e.headCommit]
	if !ok || newHead == s.e.headCommit {
		return
	}

	expected := s.e.headCommit
	r.RefEdits = append(r.RefEdits, gitstore.RefEdit{Name: plumbing.HEAD, Kind: gitstore.RefUpdate, Expected: &expected, New: newHead})
	r.Checkouts = append(r.Checkouts, CheckoutHead)
	r.NewHead = newHead
}
