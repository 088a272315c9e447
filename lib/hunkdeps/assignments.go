package hunkdeps

import (
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/samber/lo"
)

type UncommittedHunk struct {
	Path string
	Hunk InputDiffHunk
}

type HunkLock struct {
	StackID  string
	CommitID plumbing.Hash
}

// HunkAssignment tells which stack an uncommitted hunk belongs to and which commits it is
// locked to. StackID is empty when the hunk touches no committed range.
type HunkAssignment struct {
	Path    string
	Hunk    InputDiffHunk
	StackID string
	Locks   []HunkLock
}

// AssignUncommitted assigns every hunk to the stack owning the first range it touches, in
// workspace order.
func (w *WorkspaceRanges) AssignUncommitted(hunks []UncommittedHunk) []HunkAssignment {
	result := make([]HunkAssignment, 0, len(hunks))

	for _, h := range hunks {
		ranges := w.UncommittedDependencies(h.Path, h.Hunk)

		a := HunkAssignment{
			Path: h.Path,
			Hunk: h.Hunk,
		}
		if len(ranges) > 0 {
			a.StackID = ranges[0].StackID
		}
		a.Locks = lo.Uniq(lo.Map(ranges, func(r HunkRange, _ int) HunkLock {
			return HunkLock{StackID: r.StackID, CommitID: r.CommitID}
		}))

		result = append(result, a)
	}

	return result
}
