package hunkdeps

import (
	"io"
	"os"
	"sort"

	"github.com/go-enry/go-enry/v2"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/pescuma/lanes/lib/caches"
	"github.com/pescuma/lanes/lib/gitstore"
	"github.com/pescuma/lanes/lib/linediff"
	"github.com/pescuma/lanes/lib/utils"
)

// LaneTip is the tip of one stack to collect.
type LaneTip struct {
	StackID string
	Tip     plumbing.Hash
}

type CollectOptions struct {
	// Base stops the walk at the commits the lanes share with it. ZeroHash walks to the root.
	Base plumbing.Hash
	// Progress is called once per commit diffed.
	Progress func(commit *object.Commit)
}

type commitWork struct {
	stack  int
	index  int
	commit *object.Commit
	files  []InputFile
}

// CollectInputStacks walks the first parents of every lane, from its tip to the base, and
// diffs each commit against its first parent. Merge commits are skipped.
func CollectInputStacks(repo *gitstore.Repository, lanes []LaneTip, opts CollectOptions) ([]InputStack, error) {
	result := make([]InputStack, len(lanes))

	var toProcess []*commitWork
	for i, lane := range lanes {
		commits, err := laneCommits(repo, lane.Tip, opts.Base)
		if err != nil {
			return nil, errors.Wrapf(err, "error listing commits of %v", lane.StackID)
		}

		result[i] = InputStack{StackID: lane.StackID, Commits: make([]InputCommit, len(commits))}
		for j, c := range commits {
			toProcess = append(toProcess, &commitWork{stack: i, index: j, commit: c})
		}
	}

	d := newDiffer(repo)

	group := utils.ParallelFor(toProcess, func(w *commitWork) (*commitWork, error) {
		var err error
		w.files, err = d.commitFiles(w.commit)
		return w, err
	})

	for w := range group.Output {
		if opts.Progress != nil {
			opts.Progress(w.commit)
		}

		result[w.stack].Commits[w.index] = InputCommit{CommitID: w.commit.Hash, Files: w.files}
	}

	err := <-group.Err
	if err != nil {
		return nil, err
	}

	return result, nil
}

// laneCommits returns the non-merge commits of a lane, from its base to its tip.
func laneCommits(repo *gitstore.Repository, tip, base plumbing.Hash) ([]*object.Commit, error) {
	commits, err := LaneHistory(repo, tip, base)
	if err != nil {
		return nil, err
	}

	return lo.Filter(commits, func(c *object.Commit, _ int) bool { return c.NumParents() < 2 }), nil
}

// LaneHistory follows the first parents of tip until a commit it shares with base, and
// returns the commits found from the oldest to tip.
func LaneHistory(repo *gitstore.Repository, tip, base plumbing.Hash) ([]*object.Commit, error) {
	c, err := repo.FindCommit(tip)
	if err != nil {
		return nil, err
	}

	stop := map[plumbing.Hash]bool{}
	if !base.IsZero() {
		b, err := repo.FindCommit(base)
		if err != nil {
			return nil, err
		}

		bases, err := c.MergeBase(b)
		if err != nil {
			return nil, errors.Wrapf(err, "error computing merge base of %v and %v", tip, base)
		}
		for _, mb := range bases {
			stop[mb.Hash] = true
		}
	}

	var result []*object.Commit
	for !stop[c.Hash] {
		result = append(result, c)

		if c.NumParents() == 0 {
			break
		}

		c, err = repo.FindCommit(c.ParentHashes[0])
		if err != nil {
			return nil, err
		}
	}

	return lo.Reverse(result), nil
}

type differ struct {
	repo  *gitstore.Repository
	blobs caches.Cache[plumbing.Hash, []byte]
}

func newDiffer(repo *gitstore.Repository) *differ {
	return &differ{
		repo:  repo,
		blobs: caches.NewUnlimited[plumbing.Hash, []byte](),
	}
}

func (d *differ) commitFiles(c *object.Commit) ([]InputFile, error) {
	newTree, err := gitstore.ContentTree(c)
	if err != nil {
		return nil, err
	}

	oldTree := plumbing.ZeroHash
	if c.NumParents() > 0 {
		parent, err := d.repo.FindCommit(c.ParentHashes[0])
		if err != nil {
			return nil, err
		}

		oldTree, err = gitstore.ContentTree(parent)
		if err != nil {
			return nil, err
		}
	}

	return d.treeFiles(oldTree, newTree)
}

func (d *differ) treeFiles(oldTree, newTree plumbing.Hash) ([]InputFile, error) {
	oldFiles, err := d.repo.FlattenTree(oldTree)
	if err != nil {
		return nil, err
	}

	newFiles, err := d.repo.FlattenTree(newTree)
	if err != nil {
		return nil, err
	}

	paths := lo.Union(lo.Keys(oldFiles), lo.Keys(newFiles))
	sort.Strings(paths)

	var result []InputFile
	for _, path := range paths {
		o, inOld := oldFiles[path]
		n, inNew := newFiles[path]
		if inOld && inNew && o.Hash == n.Hash {
			continue
		}

		var oldContent, newContent []byte
		if inOld {
			oldContent, err = d.blob(o)
			if err != nil {
				return nil, err
			}
		}
		if inNew {
			newContent, err = d.blob(n)
			if err != nil {
				return nil, err
			}
		}

		f, ok := diffFile(path, changeTypeOf(inOld, inNew), oldContent, newContent)
		if ok {
			result = append(result, f)
		}
	}

	return result, nil
}

func (d *differ) blob(e object.TreeEntry) ([]byte, error) {
	if e.Mode == filemode.Submodule {
		return nil, nil
	}

	return d.blobs.Get(e.Hash, func(h plumbing.Hash) ([]byte, error) {
		return gitstore.ReadBlob(d.repo.Storer(), h)
	})
}

func changeTypeOf(inOld, inNew bool) ChangeType {
	switch {
	case !inOld:
		return Addition
	case !inNew:
		return Deletion
	default:
		return Modification
	}
}

// diffFile returns false for binary files and for changes without line hunks.
func diffFile(path string, changeType ChangeType, oldContent, newContent []byte) (InputFile, bool) {
	if enry.IsBinary(oldContent) || enry.IsBinary(newContent) {
		return InputFile{}, false
	}

	hunks := linediff.HunksBetween(string(oldContent), string(newContent))
	if len(hunks) == 0 {
		return InputFile{}, false
	}

	return InputFile{
		Path:       path,
		ChangeType: changeType,
		Hunks: lo.Map(hunks, func(h linediff.Hunk, _ int) InputDiffHunk {
			return InputDiffHunk{OldStart: h.OldStart, OldLines: h.OldLines, NewStart: h.NewStart, NewLines: h.NewLines}
		}),
	}, true
}

// CollectUncommitted diffs the worktree against the content of HEAD.
func CollectUncommitted(repo *gitstore.Repository) ([]UncommittedHunk, error) {
	wt, err := repo.Git().Worktree()
	if err != nil {
		return nil, errors.Wrap(err, "error opening worktree")
	}

	status, err := wt.Status()
	if err != nil {
		return nil, errors.Wrap(err, "error reading worktree status")
	}

	headFiles := map[string]object.TreeEntry{}
	head, err := repo.HeadCommit()
	if err != nil {
		return nil, err
	}
	if !head.IsZero() {
		c, err := repo.FindCommit(head)
		if err != nil {
			return nil, err
		}

		tree, err := gitstore.ContentTree(c)
		if err != nil {
			return nil, err
		}

		headFiles, err = repo.FlattenTree(tree)
		if err != nil {
			return nil, err
		}
	}

	paths := lo.Keys(status)
	sort.Strings(paths)

	d := newDiffer(repo)

	var result []UncommittedHunk
	for _, path := range paths {
		s := status[path]
		if s.Worktree == git.Unmodified && s.Staging == git.Unmodified {
			continue
		}

		var oldContent []byte
		e, inOld := headFiles[path]
		if inOld {
			oldContent, err = d.blob(e)
			if err != nil {
				return nil, err
			}
		}

		newContent, inNew, err := readWorktreeFile(wt, path)
		if err != nil {
			return nil, err
		}

		if !inOld && !inNew {
			continue
		}

		f, ok := diffFile(path, changeTypeOf(inOld, inNew), oldContent, newContent)
		if !ok {
			continue
		}

		for _, h := range f.Hunks {
			result = append(result, UncommittedHunk{Path: path, Hunk: h})
		}
	}

	return result, nil
}

func readWorktreeFile(wt *git.Worktree, path string) ([]byte, bool, error) {
	file, err := wt.Filesystem.Open(path)
	if os.IsNotExist(err) {
		return nil, false, nil
	} else if err != nil {
		return nil, false, errors.Wrapf(err, "error reading %v", path)
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return nil, false, errors.Wrapf(err, "error reading %v", path)
	}

	return content, true, nil
}
