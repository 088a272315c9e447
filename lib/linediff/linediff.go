package linediff

import (
	"strings"
	"time"

	"github.com/sergi/go-diff/diffmatchpatch"
)

const DefaultTimeout = 5 * time.Second

type Diff struct {
	Type  Operation
	Lines int
}

type Operation int8

const (
	DiffDelete Operation = Operation(diffmatchpatch.DiffDelete)
	DiffInsert Operation = Operation(diffmatchpatch.DiffInsert)
	DiffEqual  Operation = Operation(diffmatchpatch.DiffEqual)
)

func Do(src, dst string) []Diff {
	return DoWithTimeout(src, dst, DefaultTimeout)
}

func DoWithTimeout(src, dst string, timeout time.Duration) []Diff {
	return DoLinesWithTimeout(SplitLines(src), SplitLines(dst), timeout)
}

// DoLinesWithTimeout diffs two texts that were already split with SplitLines.
func DoLinesWithTimeout(src, dst []string, timeout time.Duration) []Diff {
	dmp := diffmatchpatch.New()
	dmp.DiffTimeout = timeout
	wSrc, wDst := linesToIndexes(src, dst)
	dmpd := dmp.DiffMainRunes(wSrc, wDst, false)
	diffs := lineIndexesToDiff(dmpd)
	return diffs
}

// SplitLines splits text keeping the line terminators. A trailing terminator does not
// create an extra empty line.
func SplitLines(text string) []string {
	if text == "" {
		return nil
	}

	lines := strings.SplitAfter(text, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

func lineIndexesToDiff(diffs []diffmatchpatch.Diff) []Diff {
	hydrated := make([]Diff, 0, len(diffs))
	for _, aDiff := range diffs {
		lines := len([]rune(aDiff.Text))
		if lines == 0 {
			continue
		}

		// diffmatchpatch may split a run, so merge with the previous one
		if len(hydrated) > 0 && hydrated[len(hydrated)-1].Type == Operation(aDiff.Type) {
			hydrated[len(hydrated)-1].Lines += lines
			continue
		}

		hydrated = append(hydrated, Diff{
			Type:  Operation(aDiff.Type),
			Lines: lines,
		})
	}
	return hydrated
}

func linesToIndexes(lines1, lines2 []string) ([]rune, []rune) {
	lineToIndex := make(map[string]int)
	indexes1 := linesToLineIndexes(lines1, lineToIndex)
	indexes2 := linesToLineIndexes(lines2, lineToIndex)
	return indexes1, indexes2
}

func linesToLineIndexes(lines []string, lineToIndex map[string]int) []rune {
	result := make([]rune, len(lines))
	for i, line := range lines {
		lineValue, ok := lineToIndex[line]

		if !ok {
			lineValue = len(lineToIndex)
			lineToIndex[line] = lineValue
		}

		result[i] = rune(lineValue)
	}
	return result
}
