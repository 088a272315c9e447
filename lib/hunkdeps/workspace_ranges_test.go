package hunkdeps

import (
	"fmt"
	"testing"

	"github.com/bloomberg/go-testgroup"
	"github.com/go-git/go-git/v5/plumbing"
)

func TestWorkspaceRanges(t *testing.T) {
	testgroup.RunInParallel(t, &WorkspaceRangesTests{})
}

type WorkspaceRangesTests struct {
}

func stack(id string, commits ...InputCommit) InputStack {
	return InputStack{StackID: id, Commits: commits}
}

func commit(n int, files ...InputFile) InputCommit {
	return InputCommit{CommitID: commitID(n), Files: files}
}

func file(path string, changeType ChangeType, hunks ...InputDiffHunk) InputFile {
	return InputFile{Path: path, ChangeType: changeType, Hunks: hunks}
}

func (g *WorkspaceRangesTests) summary(ranges []HunkRange) []string {
	var result []string
	for _, h := range ranges {
		result = append(result, fmt.Sprintf("%v%v:%v+%v", h.StackID, int(h.CommitID[19]), h.Start, h.Lines))
	}
	return result
}

func (g *WorkspaceRangesTests) CombinesStacksInWorkspaceCoordinates(t *testgroup.T) {
	ws := CreateWorkspaceRanges([]InputStack{
		stack("A", commit(1, file("a.txt", Modification, hunk(0, 0, 1, 2)))),
		stack("B",
			commit(2, file("a.txt", Modification, hunk(5, 1, 5, 1))),
			commit(3, file("a.txt", Modification, hunk(8, 0, 9, 3))),
		),
	})

	t.Empty(ws.Errors)
	t.Equal([]string{"A1:1+2", "B2:7+1", "B3:11+3"}, g.summary(ws.Paths["a.txt"]))
	t.Equal([]string{"B2:7+1"}, g.summary(ws.Intersection("a.txt", 7, 1)))
	t.Empty(ws.Intersection("a.txt", 8, 2))
	t.Empty(ws.Intersection("b.txt", 1, 1))
}

func (g *WorkspaceRangesTests) FirstStackWinsTies(t *testgroup.T) {
	ws := CreateWorkspaceRanges([]InputStack{
		stack("A", commit(1, file("a.txt", Modification, hunk(0, 0, 1, 1)))),
		stack("B", commit(2, file("a.txt", Modification, hunk(0, 0, 1, 1)))),
	})

	t.Equal([]string{"A1:1+1", "B2:2+1"}, g.summary(ws.Paths["a.txt"]))
	t.Equal([]string{"A", "B"}, ws.StackIDs())
}

func (g *WorkspaceRangesTests) FailedPathIsDroppedAndReported(t *testgroup.T) {
	ws := CreateWorkspaceRanges([]InputStack{
		stack("A",
			commit(1,
				file("a.txt", Deletion, hunk(1, 1, 0, 0), hunk(3, 1, 1, 0)),
				file("b.txt", Addition, hunk(0, 0, 1, 3)),
			),
			commit(2, file("a.txt", Modification, hunk(1, 1, 1, 1))),
		),
	})

	t.Len(ws.Errors, 1)
	t.Equal("a.txt", ws.Errors[0].Path)
	t.Equal("A", ws.Errors[0].StackID)
	t.Equal(commitID(1), ws.Errors[0].CommitID)
	t.Equal([]string{"b.txt"}, ws.SortedPaths())
}

func (g *WorkspaceRangesTests) DependenciesArePerStack(t *testgroup.T) {
	ws := CreateWorkspaceRanges([]InputStack{
		stack("A",
			commit(1, file("a.txt", Modification, hunk(0, 0, 1, 5))),
			commit(2, file("a.txt", Modification, hunk(2, 1, 2, 1))),
		),
		stack("B", commit(3, file("b.txt", Modification, hunk(0, 0, 1, 5)))),
	})

	t.Equal([]plumbing.Hash{commitID(1)}, SortedHashes(ws.CommitDependencies["A"][commitID(2)]))
	t.Equal([]plumbing.Hash{commitID(2)}, SortedHashes(ws.InverseCommitDependencies["A"][commitID(1)]))
	t.Empty(ws.CommitDependencies["B"])
	t.Len(ws.AllCommitDependencies(), 1)
}

func (g *WorkspaceRangesTests) AssignsUncommittedHunks(t *testgroup.T) {
	ws := CreateWorkspaceRanges([]InputStack{
		stack("A", commit(1, file("a.txt", Modification, hunk(0, 0, 1, 2)))),
		stack("B", commit(2, file("a.txt", Modification, hunk(5, 1, 5, 1)))),
	})

	result := ws.AssignUncommitted([]UncommittedHunk{
		{Path: "a.txt", Hunk: hunk(1, 1, 1, 1)},
		{Path: "a.txt", Hunk: hunk(7, 1, 7, 2)},
		{Path: "a.txt", Hunk: hunk(2, 6, 2, 1)},
		{Path: "a.txt", Hunk: hunk(20, 1, 20, 1)},
	})

	t.Len(result, 4)
	t.Equal("A", result[0].StackID)
	t.Equal([]HunkLock{{StackID: "A", CommitID: commitID(1)}}, result[0].Locks)
	t.Equal("B", result[1].StackID)
	t.Equal([]HunkLock{{StackID: "B", CommitID: commitID(2)}}, result[1].Locks)
	t.Equal("A", result[2].StackID)
	t.Len(result[2].Locks, 2)
	t.Equal("", result[3].StackID)
	t.Empty(result[3].Locks)
}

func TestCheckMove(t *testing.T) {
	testgroup.RunInParallel(t, &CheckMoveTests{})
}

type CheckMoveTests struct {
}

func (g *CheckMoveTests) workspace() *WorkspaceRanges {
	return CreateWorkspaceRanges([]InputStack{
		stack("A",
			commit(1, file("a.txt", Modification, hunk(0, 0, 1, 5))),
			commit(2, file("a.txt", Modification, hunk(9, 0, 10, 3))),
			commit(3, file("a.txt", Modification, hunk(2, 1, 2, 1))),
		),
	})
}

func (g *CheckMoveTests) IndependentCommitsCanMove(t *testgroup.T) {
	ws := g.workspace()

	t.Nil(CheckMove(ws, "A", commitID(2), nil))
}

func (g *CheckMoveTests) CommitWithDependencies(t *testgroup.T) {
	ws := g.workspace()

	m := CheckMove(ws, "A", commitID(3), nil)

	t.Require.NotNil(m)
	t.Equal(DependsOnCommits, m.Kind)
	t.Equal([]plumbing.Hash{commitID(1)}, m.Commits)
}

func (g *CheckMoveTests) CommitWithDependents(t *testgroup.T) {
	ws := g.workspace()

	m := CheckMove(ws, "A", commitID(1), nil)

	t.Require.NotNil(m)
	t.Equal(HasDependentChanges, m.Kind)
	t.Equal([]plumbing.Hash{commitID(3)}, m.Commits)
}

func (g *CheckMoveTests) CommitLockedByUncommittedChanges(t *testgroup.T) {
	ws := g.workspace()
	uncommitted := ws.AssignUncommitted([]UncommittedHunk{
		{Path: "a.txt", Hunk: hunk(11, 1, 11, 1)},
	})

	m := CheckMove(ws, "A", commitID(2), uncommitted)

	t.Require.NotNil(m)
	t.Equal(HasDependentUncommittedChanges, m.Kind)
	t.Equal("uncommitted changes depend on this commit", m.Error())
}
