package hunkdeps

import (
	"sort"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/hashicorp/go-set/v2"
	"github.com/samber/lo"
)

// StackRanges holds the ranges of every path changed by one stack.
type StackRanges struct {
	StackID string
	Paths   map[string]*PathRanges
}

func NewStackRanges(stackID string) *StackRanges {
	return &StackRanges{
		StackID: stackID,
		Paths:   make(map[string]*PathRanges),
	}
}

// Add ingests the hunks of one commit for one path. Commits must be added from the base
// of the stack to its tip.
func (s *StackRanges) Add(commitID plumbing.Hash, path string, changeType ChangeType, hunks []InputDiffHunk) error {
	p, ok := s.Paths[path]
	if !ok {
		p = NewPathRanges()
		s.Paths[path] = p
	}

	return p.Add(s.StackID, commitID, changeType, hunks)
}

func (s *StackRanges) Intersection(path string, start, lines int) []HunkRange {
	p, ok := s.Paths[path]
	if !ok {
		return nil
	}

	return p.Intersection(start, lines)
}

func (s *StackRanges) UniquePaths() []string {
	result := lo.Keys(s.Paths)
	sort.Strings(result)
	return result
}

// CommitDependencies unions the dependencies of all paths.
func (s *StackRanges) CommitDependencies() map[plumbing.Hash]*set.Set[plumbing.Hash] {
	result := make(map[plumbing.Hash]*set.Set[plumbing.Hash])
	for _, p := range s.Paths {
		mergeDependencies(result, p.CommitDependencies)
	}
	return result
}

func mergeDependencies(target, source map[plumbing.Hash]*set.Set[plumbing.Hash]) {
	for commitID, deps := range source {
		t, ok := target[commitID]
		if !ok {
			t = set.New[plumbing.Hash](deps.Size())
			target[commitID] = t
		}
		t.InsertSlice(deps.Slice())
	}
}

// SortedHashes returns the hashes in a stable order.
func SortedHashes(s *set.Set[plumbing.Hash]) []plumbing.Hash {
	if s == nil {
		return nil
	}

	result := s.Slice()
	sort.Slice(result, func(i, j int) bool {
		return result[i].String() < result[j].String()
	})
	return result
}
