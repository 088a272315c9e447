package hunkdeps

import (
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/hashicorp/go-set/v2"
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/pescuma/lanes/lib/utils"
)

// PathRanges tracks which commit owns each block of lines of a single path.
// Commits must be added oldest first.
type PathRanges struct {
	HunkRanges         []HunkRange
	CommitDependencies map[plumbing.Hash]*set.Set[plumbing.Hash]

	commitIDs []plumbing.Hash
	lineShift int
}

func NewPathRanges() *PathRanges {
	return &PathRanges{
		CommitDependencies: make(map[plumbing.Hash]*set.Set[plumbing.Hash]),
	}
}

func (p *PathRanges) Add(stackID string, commitID plumbing.Hash, changeType ChangeType, hunks []InputDiffHunk) error {
	if lo.Contains(p.commitIDs, commitID) {
		return errors.Errorf("commit %v was already added", commitID)
	}

	var err error
	switch {
	case len(p.HunkRanges) == 1 && p.HunkRanges[0].ChangeType == Deletion:
		err = p.addFileRecreation(stackID, commitID, changeType, hunks)

	case changeType == Deletion:
		err = p.addFileDeletion(stackID, commitID, hunks)

	case len(p.HunkRanges) == 0:
		p.addAll(stackID, commitID, changeType, hunks)

	default:
		err = p.addHunks(stackID, commitID, changeType, hunks)
	}
	if err != nil {
		return err
	}

	p.commitIDs = append(p.commitIDs, commitID)
	return nil
}

// Intersection returns the ranges touched by the given lines.
func (p *PathRanges) Intersection(start, lines int) []HunkRange {
	return lo.Filter(p.HunkRanges, func(h HunkRange, _ int) bool {
		return h.Intersects(start, lines)
	})
}

func (p *PathRanges) addFileRecreation(stackID string, commitID plumbing.Hash, changeType ChangeType, hunks []InputDiffHunk) error {
	if len(hunks) != 1 {
		return errors.Errorf("file recreation must be the only hunk of commit %v", commitID)
	}
	if changeType != Addition {
		return errors.Errorf("file recreation in commit %v must be an addition, got %v", commitID, changeType)
	}

	err := p.trackCommitDependency(commitID, p.HunkRanges[0].CommitID)
	if err != nil {
		return err
	}

	p.HunkRanges = nil
	p.addAll(stackID, commitID, changeType, hunks)
	return nil
}

func (p *PathRanges) addFileDeletion(stackID string, commitID plumbing.Hash, hunks []InputDiffHunk) error {
	if len(hunks) != 1 {
		return errors.Errorf("file deletion must be the only hunk of commit %v", commitID)
	}

	// depends on the last commit that touched the file
	if len(p.commitIDs) > 0 {
		err := p.trackCommitDependency(commitID, p.commitIDs[len(p.commitIDs)-1])
		if err != nil {
			return err
		}
	}

	hunk := hunks[0]
	p.HunkRanges = []HunkRange{{
		ChangeType: Deletion,
		StackID:    stackID,
		CommitID:   commitID,
		Start:      hunk.NewStart,
		Lines:      hunk.NewLines,
		LineShift:  hunk.NetLines(),
	}}
	return nil
}

func (p *PathRanges) addAll(stackID string, commitID plumbing.Hash, changeType ChangeType, hunks []InputDiffHunk) {
	for _, hunk := range hunks {
		p.HunkRanges = append(p.HunkRanges, newHunkRange(stackID, commitID, changeType, hunk))
	}
}

func (p *PathRanges) addHunks(stackID string, commitID plumbing.Hash, changeType ChangeType, hunks []InputDiffHunk) error {
	p.lineShift = 0
	next := 0

	for _, hunk := range hunks {
		start := hunk.OldStart + p.lineShift

		boundary := start + hunk.OldLines - 1
		if hunk.OldLines == 0 {
			boundary = start
		}

		i := next
		first, last := -1, -1
		for ; i < len(p.HunkRanges); i++ {
			current := p.HunkRanges[i]

			if current.Lines == 0 {
				if current.Start >= boundary {
					break
				}
				if current.Start < start {
					continue
				}
			} else {
				if current.follows(start, hunk.OldLines) {
					break
				}
				if current.precedes(start, hunk.OldLines) {
					continue
				}
			}

			if first == -1 {
				first = i
			}
			last = i
		}

		from, to := i, i
		if first != -1 {
			from, to = first, last+1
		}

		var err error
		next, err = p.replaceRanges(from, to, start, stackID, commitID, changeType, hunk)
		if err != nil {
			return err
		}

		p.lineShift += hunk.NetLines()
	}

	return nil
}

// replaceRanges replaces HunkRanges[from:to] with what is left above the hunk, the hunk
// itself and what is left below it. Deletion markers inside the hunk are dropped.
// It returns the index right after the hunk.
func (p *PathRanges) replaceRanges(from, to, start int, stackID string, commitID plumbing.Hash,
	changeType ChangeType, hunk InputDiffHunk,
) (int, error) {
	replaced := p.HunkRanges[from:to]
	intersecting := lo.Filter(replaced, func(h HunkRange, _ int) bool {
		return h.Lines > 0
	})

	var dependsOn []plumbing.Hash
	if len(intersecting) == 0 {
		// the only commit this can depend on is the one that created the file
		if creation, ok := p.findFileCreationCommit(); ok {
			dependsOn = append(dependsOn, creation)
		}
	} else {
		dependsOn = lo.Map(intersecting, func(h HunkRange, _ int) plumbing.Hash {
			return h.CommitID
		})
	}

	err := p.trackCommitDependency(commitID, dependsOn...)
	if err != nil {
		return 0, err
	}

	firstReplaced := start
	lastReplaced := start + hunk.OldLines - 1
	if hunk.OldLines == 0 {
		firstReplaced = start + 1
		lastReplaced = start
	}

	nextNewLine := hunk.NewStart + hunk.NewLines
	if hunk.NewLines == 0 {
		nextNewLine = hunk.NewStart + 1
	}

	var top, bottom *HunkRange
	if len(intersecting) > 0 {
		firstRange := intersecting[0]
		lastRange := intersecting[len(intersecting)-1]

		if firstRange.Start < firstReplaced {
			t := firstRange
			t.Lines = firstReplaced - firstRange.Start
			top = &t
		}

		if lastRange.End() > lastReplaced {
			b := lastRange
			b.Start = nextNewLine
			b.Lines = lastRange.End() - lastReplaced
			if len(intersecting) == 1 && top != nil {
				// a range split in two keeps its shift in the top part
				b.LineShift = 0
			}
			bottom = &b
		}
	}

	// shifts of overwritten ranges move to the incoming one, so they always add up to the
	// net lines of the stack
	incoming := newHunkRange(stackID, commitID, changeType, hunk)
	for _, h := range replaced {
		incoming.LineShift += h.LineShift
	}

	var toAdd []HunkRange
	if top != nil {
		incoming.LineShift -= top.LineShift
		toAdd = append(toAdd, *top)
	}
	afterIncoming := from + len(toAdd) + 1
	if bottom != nil {
		incoming.LineShift -= bottom.LineShift
	}
	toAdd = append(toAdd, incoming)
	if bottom != nil {
		toAdd = append(toAdd, *bottom)
	}

	p.HunkRanges = insertHunkRanges(p.HunkRanges, from, to, toAdd...)
	p.updateStartLines(from+len(toAdd), hunk.NetLines())

	return afterIncoming, nil
}

func (p *PathRanges) findFileCreationCommit() (plumbing.Hash, bool) {
	h, ok := lo.Find(p.HunkRanges, func(h HunkRange) bool {
		return h.ChangeType == Addition
	})
	return h.CommitID, ok
}

func (p *PathRanges) trackCommitDependency(commitID plumbing.Hash, dependsOn ...plumbing.Hash) error {
	for _, d := range dependsOn {
		if d == commitID {
			return errors.Errorf("commit %v can not depend on itself", commitID)
		}
	}

	if len(dependsOn) == 0 {
		return nil
	}

	deps, ok := p.CommitDependencies[commitID]
	if !ok {
		deps = set.New[plumbing.Hash](len(dependsOn))
		p.CommitDependencies[commitID] = deps
	}
	deps.InsertSlice(dependsOn)

	return nil
}

func (p *PathRanges) updateStartLines(from int, shift int) {
	for i := from; i < len(p.HunkRanges); i++ {
		p.HunkRanges[i].Start += shift
	}
}

// insertHunkRanges replaces ranges[start:end] with toAdd.
func insertHunkRanges(ranges []HunkRange, start, end int, toAdd ...HunkRange) []HunkRange {
	result := make([]HunkRange, 0, len(ranges)-(end-start)+len(toAdd))
	result = append(result, ranges[:start]...)
	result = append(result, toAdd...)
	result = append(result, ranges[utils.Min(end, len(ranges)):]...)
	return result
}

func newHunkRange(stackID string, commitID plumbing.Hash, changeType ChangeType, hunk InputDiffHunk) HunkRange {
	return HunkRange{
		ChangeType: changeType,
		StackID:    stackID,
		CommitID:   commitID,
		Start:      hunk.NewStart,
		Lines:      hunk.NewLines,
		LineShift:  hunk.NetLines(),
	}
}
