package hunkdeps

import (
	"fmt"
	"strings"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/samber/lo"
)

type IllegalMoveKind int

const (
	DependsOnCommits IllegalMoveKind = iota + 1
	HasDependentChanges
	HasDependentUncommittedChanges
)

func (k IllegalMoveKind) String() string {
	switch k {
	case DependsOnCommits:
		return "depends-on-commits"
	case HasDependentChanges:
		return "has-dependent-changes"
	case HasDependentUncommittedChanges:
		return "has-dependent-uncommitted-changes"
	default:
		return "unknown"
	}
}

// IllegalMove explains why a commit can not be moved out of its stack.
type IllegalMove struct {
	Kind    IllegalMoveKind
	Commits []plumbing.Hash
}

func (m *IllegalMove) Error() string {
	switch m.Kind {
	case DependsOnCommits:
		return fmt.Sprintf("commit depends on %v", joinShort(m.Commits))
	case HasDependentChanges:
		return fmt.Sprintf("commits %v depend on this commit", joinShort(m.Commits))
	default:
		return "uncommitted changes depend on this commit"
	}
}

// CheckMove classifies moving commitID out of stackID. It returns nil when the move is legal.
func CheckMove(ws *WorkspaceRanges, stackID string, commitID plumbing.Hash, uncommitted []HunkAssignment) *IllegalMove {
	if deps := ws.CommitDependencies[stackID][commitID]; deps != nil && deps.Size() > 0 {
		return &IllegalMove{Kind: DependsOnCommits, Commits: SortedHashes(deps)}
	}

	if deps := ws.InverseCommitDependencies[stackID][commitID]; deps != nil && deps.Size() > 0 {
		return &IllegalMove{Kind: HasDependentChanges, Commits: SortedHashes(deps)}
	}

	locked := lo.ContainsBy(uncommitted, func(a HunkAssignment) bool {
		return lo.ContainsBy(a.Locks, func(l HunkLock) bool { return l.CommitID == commitID })
	})
	if locked {
		return &IllegalMove{Kind: HasDependentUncommittedChanges}
	}

	return nil
}

func joinShort(hashes []plumbing.Hash) string {
	return strings.Join(lo.Map(hashes, func(h plumbing.Hash, _ int) string {
		return h.String()[:7]
	}), ", ")
}
