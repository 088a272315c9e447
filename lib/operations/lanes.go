package operations

import (
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/pescuma/lanes/lib/gitstore"
	"github.com/pescuma/lanes/lib/hunkdeps"
)

type Lane struct {
	Name plumbing.ReferenceName
	Tip  plumbing.Hash
	// Commits go from the tip to the base, following first parents.
	Commits []*object.Commit
}

func ListLanes(repo *gitstore.Repository, opts Options) ([]*Lane, error) {
	tips, err := laneTips(repo, opts)
	if err != nil {
		return nil, err
	}

	result := make([]*Lane, len(tips))
	for i, tip := range tips {
		commits, err := hunkdeps.LaneHistory(repo, tip.Tip, opts.Base)
		if err != nil {
			return nil, err
		}

		result[i] = &Lane{
			Name:    opts.Lanes[i],
			Tip:     tip.Tip,
			Commits: lo.Reverse(commits),
		}
	}

	return result, nil
}

func laneTips(repo *gitstore.Repository, opts Options) ([]hunkdeps.LaneTip, error) {
	result := make([]hunkdeps.LaneTip, len(opts.Lanes))
	for i, name := range opts.Lanes {
		ref, err := repo.Reference(name)
		if err != nil {
			return nil, err
		}
		if ref == nil {
			return nil, errors.Errorf("lane %v not found", name.Short())
		}

		result[i] = hunkdeps.LaneTip{StackID: laneName(name), Tip: ref.Hash()}
	}

	return result, nil
}

// Dependencies are the hunk ranges of all lanes and the assignment of the uncommitted
// changes to them.
type Dependencies struct {
	Workspace   *hunkdeps.WorkspaceRanges
	Uncommitted []hunkdeps.HunkAssignment
}

// AnalyzeDependencies diffs every commit of every lane. progress, when not nil, is called
// once per commit.
func AnalyzeDependencies(repo *gitstore.Repository, opts Options, progress func(*object.Commit)) (*Dependencies, error) {
	tips, err := laneTips(repo, opts)
	if err != nil {
		return nil, err
	}

	stacks, err := hunkdeps.CollectInputStacks(repo, tips, hunkdeps.CollectOptions{
		Base:     opts.Base,
		Progress: progress,
	})
	if err != nil {
		return nil, err
	}

	ws := hunkdeps.CreateWorkspaceRanges(stacks)

	hunks, err := hunkdeps.CollectUncommitted(repo)
	if err != nil {
		return nil, err
	}

	return &Dependencies{
		Workspace:   ws,
		Uncommitted: ws.AssignUncommitted(hunks),
	}, nil
}

func (l *Lane) Contains(commit plumbing.Hash) bool {
	return lo.ContainsBy(l.Commits, func(c *object.Commit) bool { return c.Hash == commit })
}
