package hunkdeps

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

var ErrMalformedHunkHeader = errors.New("malformed hunk header")

var hunkHeaderRE = regexp.MustCompile(`^@@ -(\d+)(?:,(\d+))? \+(\d+)(?:,(\d+))? @@`)

// InputDiffHunk is a hunk without context lines. A side without lines points at the line
// before the change, as in a unified diff header.
type InputDiffHunk struct {
	OldStart int
	OldLines int
	NewStart int
	NewLines int
}

func (h InputDiffHunk) NetLines() int {
	return h.NewLines - h.OldLines
}

func (h InputDiffHunk) IsAdditionOnly() bool {
	return h.OldLines == 0 && h.NewLines > 0
}

func (h InputDiffHunk) IsDeletionOnly() bool {
	return h.NewLines == 0 && h.OldLines > 0
}

// ParseInputDiffHunk parses a unified diff hunk. The body is optional; when present, leading
// and trailing context lines are removed from the ranges.
func ParseInputDiffHunk(diff string) (InputDiffHunk, error) {
	header, body, _ := strings.Cut(diff, "\n")

	m := hunkHeaderRE.FindStringSubmatch(header)
	if m == nil {
		return InputDiffHunk{}, errors.Wrapf(ErrMalformedHunkHeader, "%q", header)
	}

	oldStart, err := parseHeaderNumber(m[1], 0)
	if err != nil {
		return InputDiffHunk{}, err
	}
	oldLines, err := parseHeaderNumber(m[2], 1)
	if err != nil {
		return InputDiffHunk{}, err
	}
	newStart, err := parseHeaderNumber(m[3], 0)
	if err != nil {
		return InputDiffHunk{}, err
	}
	newLines, err := parseHeaderNumber(m[4], 1)
	if err != nil {
		return InputDiffHunk{}, err
	}

	if body == "" {
		return InputDiffHunk{
			OldStart: oldStart,
			OldLines: oldLines,
			NewStart: newStart,
			NewLines: newLines,
		}, nil
	}

	lines := strings.Split(strings.TrimSuffix(body, "\n"), "\n")
	lines = removeNoNewlineMarkers(lines)

	leading := 0
	for leading < len(lines) && isContextLine(lines[leading]) {
		leading++
	}
	if leading == len(lines) {
		return InputDiffHunk{}, errors.Wrapf(ErrMalformedHunkHeader, "%q has no changed lines", header)
	}

	trailing := 0
	for trailing < len(lines) && isContextLine(lines[len(lines)-1-trailing]) {
		trailing++
	}

	context := leading + trailing
	if context > oldLines || context > newLines {
		return InputDiffHunk{}, errors.Wrapf(ErrMalformedHunkHeader, "%q has more context lines than the header allows", header)
	}

	oldStart, oldLines = stripContext(oldStart, oldLines, leading, trailing)
	newStart, newLines = stripContext(newStart, newLines, leading, trailing)

	return InputDiffHunk{
		OldStart: oldStart,
		OldLines: oldLines,
		NewStart: newStart,
		NewLines: newLines,
	}, nil
}

func MustParseInputDiffHunk(diff string) InputDiffHunk {
	h, err := ParseInputDiffHunk(diff)
	if err != nil {
		panic(err)
	}
	return h
}

func parseHeaderNumber(s string, def int) (int, error) {
	if s == "" {
		return def, nil
	}

	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, errors.Wrapf(ErrMalformedHunkHeader, "invalid number %q", s)
	}
	return v, nil
}

func stripContext(start, lines, leading, trailing int) (int, int) {
	if lines == 0 {
		return start, lines
	}

	start += leading
	lines -= leading + trailing
	if lines == 0 {
		start--
	}
	return start, lines
}

func isContextLine(line string) bool {
	return !strings.HasPrefix(line, "+") && !strings.HasPrefix(line, "-")
}

func removeNoNewlineMarkers(lines []string) []string {
	result := lines[:0:0]
	for _, l := range lines {
		if strings.HasPrefix(l, `\`) {
			continue
		}
		result = append(result, l)
	}
	return result
}
