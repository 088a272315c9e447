package hunkdeps

import (
	"fmt"
	"sort"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/hashicorp/go-set/v2"
	"github.com/samber/lo"
)

type InputStack struct {
	StackID string
	// Commits are ordered from the base of the stack to its tip.
	Commits []InputCommit
}

type InputCommit struct {
	CommitID plumbing.Hash
	Files    []InputFile
}

type InputFile struct {
	Path       string
	ChangeType ChangeType
	Hunks      []InputDiffHunk
}

// CalculationError reports a path whose ranges could not be calculated. The other paths
// are still usable.
type CalculationError struct {
	Msg      string
	StackID  string
	CommitID plumbing.Hash
	Path     string
}

func (e CalculationError) Error() string {
	return fmt.Sprintf("%v: %v in commit %v of %v", e.Path, e.Msg, e.CommitID, e.StackID)
}

// WorkspaceRanges combines the ranges of all stacks into workspace coordinates.
type WorkspaceRanges struct {
	Paths map[string][]HunkRange
	// CommitDependencies maps, per stack, each commit to the commits it depends on.
	CommitDependencies map[string]map[plumbing.Hash]*set.Set[plumbing.Hash]
	// InverseCommitDependencies maps, per stack, each commit to the commits that depend on it.
	InverseCommitDependencies map[string]map[plumbing.Hash]*set.Set[plumbing.Hash]
	Errors                    []CalculationError

	stackIDs []string
}

func CreateWorkspaceRanges(stacks []InputStack) *WorkspaceRanges {
	result := &WorkspaceRanges{
		Paths:                     make(map[string][]HunkRange),
		CommitDependencies:        make(map[string]map[plumbing.Hash]*set.Set[plumbing.Hash]),
		InverseCommitDependencies: make(map[string]map[plumbing.Hash]*set.Set[plumbing.Hash]),
	}

	var stackRanges []*StackRanges
	for _, stack := range stacks {
		sr := result.calculateStack(stack)
		stackRanges = append(stackRanges, sr)
		result.stackIDs = append(result.stackIDs, stack.StackID)

		deps := sr.CommitDependencies()
		result.CommitDependencies[stack.StackID] = deps
		result.InverseCommitDependencies[stack.StackID] = invertDependencies(deps)
	}

	paths := set.New[string](100)
	for _, sr := range stackRanges {
		paths.InsertSlice(sr.UniquePaths())
	}

	for _, path := range paths.Slice() {
		var perStack [][]HunkRange
		for _, sr := range stackRanges {
			if p, ok := sr.Paths[path]; ok {
				perStack = append(perStack, p.HunkRanges)
			}
		}
		result.Paths[path] = combinePathRanges(perStack)
	}

	return result
}

func (w *WorkspaceRanges) calculateStack(stack InputStack) *StackRanges {
	sr := NewStackRanges(stack.StackID)
	failed := set.New[string](0)

	for _, commit := range stack.Commits {
		for _, file := range commit.Files {
			if failed.Contains(file.Path) {
				continue
			}

			err := sr.Add(commit.CommitID, file.Path, file.ChangeType, file.Hunks)
			if err != nil {
				w.Errors = append(w.Errors, CalculationError{
					Msg:      err.Error(),
					StackID:  stack.StackID,
					CommitID: commit.CommitID,
					Path:     file.Path,
				})

				failed.Insert(file.Path)
				delete(sr.Paths, file.Path)
			}
		}
	}

	return sr
}

// combinePathRanges merges the ranges of each stack in workspace order. Every range taken
// shifts the remaining ranges of the other stacks by its line shift. On ties the stack
// that comes first wins.
func combinePathRanges(perStack [][]HunkRange) []HunkRange {
	var result []HunkRange

	next := make([]int, len(perStack))
	shifts := make([]int, len(perStack))

	for {
		best := -1
		bestStart := 0
		for i, ranges := range perStack {
			if next[i] >= len(ranges) {
				continue
			}

			start := ranges[next[i]].Start + shifts[i]
			if best == -1 || start < bestStart {
				best = i
				bestStart = start
			}
		}

		if best == -1 {
			return result
		}

		h := perStack[best][next[best]]
		h.Start = bestStart
		result = append(result, h)
		next[best]++

		for i := range shifts {
			if i != best {
				shifts[i] += h.LineShift
			}
		}
	}
}

func invertDependencies(deps map[plumbing.Hash]*set.Set[plumbing.Hash]) map[plumbing.Hash]*set.Set[plumbing.Hash] {
	result := make(map[plumbing.Hash]*set.Set[plumbing.Hash])
	for commitID, dependsOn := range deps {
		for _, d := range dependsOn.Slice() {
			inv, ok := result[d]
			if !ok {
				inv = set.New[plumbing.Hash](1)
				result[d] = inv
			}
			inv.Insert(commitID)
		}
	}
	return result
}

// Intersection returns the ranges of all stacks touched by the given workspace lines.
func (w *WorkspaceRanges) Intersection(path string, start, lines int) []HunkRange {
	return lo.Filter(w.Paths[path], func(h HunkRange, _ int) bool {
		return h.Intersects(start, lines)
	})
}

// UncommittedDependencies returns the ranges touched by an uncommitted hunk, whose old side
// is in workspace coordinates.
func (w *WorkspaceRanges) UncommittedDependencies(path string, hunk InputDiffHunk) []HunkRange {
	return w.Intersection(path, hunk.OldStart, hunk.OldLines)
}

// AllCommitDependencies unions the dependencies of every stack.
func (w *WorkspaceRanges) AllCommitDependencies() map[plumbing.Hash]*set.Set[plumbing.Hash] {
	result := make(map[plumbing.Hash]*set.Set[plumbing.Hash])
	for _, stackID := range w.stackIDs {
		mergeDependencies(result, w.CommitDependencies[stackID])
	}
	return result
}

func (w *WorkspaceRanges) StackIDs() []string {
	return w.stackIDs
}

func (w *WorkspaceRanges) SortedPaths() []string {
	result := lo.Keys(w.Paths)
	sort.Strings(result)
	return result
}
