package linespan

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/pescuma/lanes/lib/utils"
)

// LineSpan is an inclusive range of one-based line numbers.
type LineSpan struct {
	Start int
	End   int
}

func New(start, end int) (LineSpan, error) {
	if start < 1 {
		return LineSpan{}, errors.Errorf("line spans are one-based, got start %v", start)
	}
	if start > end {
		return LineSpan{}, errors.Errorf("invalid line span: start %v is after end %v", start, end)
	}

	return LineSpan{Start: start, End: end}, nil
}

func MustNew(start, end int) LineSpan {
	s, err := New(start, end)
	if err != nil {
		panic(err)
	}
	return s
}

// FromStartAndLines creates a span covering lines lines beginning at start.
func FromStartAndLines(start, lines int) (LineSpan, error) {
	if lines < 1 {
		return LineSpan{}, errors.Errorf("a line span needs at least one line, got %v", lines)
	}

	return New(start, start+lines-1)
}

func (s LineSpan) Lines() int {
	return s.End - s.Start + 1
}

func (s LineSpan) Contains(line int) bool {
	return s.Start <= line && line <= s.End
}

func (s LineSpan) ContainsSpan(other LineSpan) bool {
	return s.Start <= other.Start && other.End <= s.End
}

func (s LineSpan) Intersects(other LineSpan) bool {
	return s.Start <= other.End && other.Start <= s.End
}

// Distance returns the number of lines between both spans, or 0 if they touch or intersect.
func (s LineSpan) Distance(other LineSpan) int {
	switch {
	case s.End < other.Start:
		return utils.Max(other.Start-s.End-1, 0)
	case other.End < s.Start:
		return utils.Max(s.Start-other.End-1, 0)
	default:
		return 0
	}
}

// Union returns the smallest span covering both.
func (s LineSpan) Union(other LineSpan) LineSpan {
	return LineSpan{
		Start: utils.Min(s.Start, other.Start),
		End:   utils.Max(s.End, other.End),
	}
}

func (s LineSpan) String() string {
	return fmt.Sprintf("%v-%v", s.Start, s.End)
}
