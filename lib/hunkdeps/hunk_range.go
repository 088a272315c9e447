package hunkdeps

import (
	"fmt"

	"github.com/go-git/go-git/v5/plumbing"

	"github.com/pescuma/lanes/lib/linespan"
)

type ChangeType int

const (
	Modification ChangeType = iota
	Addition
	Deletion
)

func (c ChangeType) String() string {
	switch c {
	case Addition:
		return "addition"
	case Deletion:
		return "deletion"
	default:
		return "modification"
	}
}

// HunkRange is the block of lines a commit owns in a path, in workspace coordinates.
// A range without lines marks a deletion at the boundary after Start.
type HunkRange struct {
	ChangeType ChangeType
	StackID    string
	CommitID   plumbing.Hash
	Start      int
	Lines      int
	// LineShift is the number of lines this range added to (or removed from) the file.
	LineShift int
}

func (h HunkRange) End() int {
	return h.Start + h.Lines - 1
}

// Span returns the lines owned by the range. ok is false for deletion markers.
func (h HunkRange) Span() (span linespan.LineSpan, ok bool) {
	if h.Lines <= 0 || h.Start < 1 {
		return linespan.LineSpan{}, false
	}
	return linespan.LineSpan{Start: h.Start, End: h.End()}, true
}

// Intersects checks if the range is touched by the query. A query without lines is an
// insertion point after start.
func (h HunkRange) Intersects(start, lines int) bool {
	switch {
	case h.ChangeType == Deletion:
		// the whole file was deleted
		return true

	case h.Lines == 0:
		if lines == 0 {
			return start == h.Start
		}
		return start <= h.Start+1 && start+lines-1 >= h.Start

	case lines == 0:
		return h.Start <= start && start < h.End()

	default:
		return h.Start <= start+lines-1 && start <= h.End()
	}
}

// follows checks if the range starts after the old side of an incoming hunk.
func (h HunkRange) follows(start, lines int) bool {
	if lines == 0 {
		return h.Start > start
	}
	return h.Start > start+lines-1
}

// precedes checks if the range ends before the old side of an incoming hunk.
func (h HunkRange) precedes(start, lines int) bool {
	if lines == 0 {
		return h.End() <= start
	}
	return h.End() < start
}

func (h HunkRange) String() string {
	return fmt.Sprintf("%v %v:%v+%v (%v)", h.StackID, h.CommitID.String()[:7], h.Start, h.Lines, h.LineShift)
}
