package rebase

import (
	"fmt"

	"github.com/go-git/go-git/v5/plumbing"
)

// Step is one node of a StepGraph: a Pick, a Reference or Removed.
type Step interface {
	fmt.Stringer
	isStep()
}

// Pick re-applies a commit on top of the commits of its graph parents.
type Pick struct {
	CommitID plumbing.Hash
	// PreservedParents is not nil for commits at the boundary of the graph. They keep these
	// parents instead of the ones from the graph.
	PreservedParents []plumbing.Hash
	// Conflictable allows the pick to produce a conflicted commit. Otherwise a conflict is
	// an error.
	Conflictable bool
	// ParentsMustBeReferences requires every graph parent to be reached through reference
	// steps, skipping removed ones.
	ParentsMustBeReferences bool
}

func NewPick(commitID plumbing.Hash) Pick {
	return Pick{CommitID: commitID, Conflictable: true}
}

func (p Pick) IsBoundary() bool {
	return p.PreservedParents != nil
}

func (p Pick) String() string {
	return "pick " + p.CommitID.String()
}

// Reference points a reference to the commit of its first parent.
type Reference struct {
	Name plumbing.ReferenceName
}

func (r Reference) String() string {
	return "reference " + r.Name.String()
}

// Removed takes the place of a step that was removed. Its children are applied on top of
// its parents.
type Removed struct{}

func (Removed) String() string {
	return "removed"
}

func (Pick) isStep()      {}
func (Reference) isStep() {}
func (Removed) isStep()   {}
