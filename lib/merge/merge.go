package merge

import (
	"strings"

	"github.com/pescuma/lanes/lib/linediff"
	"github.com/pescuma/lanes/lib/utils"
)

type Favor int

const (
	// FavorNone writes conflict markers for conflicting regions.
	FavorNone Favor = iota
	FavorOurs
	FavorTheirs
)

type Options struct {
	Favor       Favor
	OursLabel   string
	TheirsLabel string
}

type Result struct {
	Content   string
	Conflicts int
}

func (r *Result) Conflicted() bool {
	return r.Conflicts > 0
}

// region replaces base lines [start, end) with lines.
type region struct {
	start int
	end   int
	lines []string
	ours  bool
}

// ThreeWay merges the line changes base->ours and base->theirs.
func ThreeWay(base, ours, theirs string, opts Options) *Result {
	switch {
	case ours == theirs, base == theirs:
		return &Result{Content: ours}
	case base == ours:
		return &Result{Content: theirs}
	}

	if opts.OursLabel == "" {
		opts.OursLabel = "ours"
	}
	if opts.TheirsLabel == "" {
		opts.TheirsLabel = "theirs"
	}

	baseLines := linediff.SplitLines(base)
	oursLines := linediff.SplitLines(ours)
	theirsLines := linediff.SplitLines(theirs)

	oursRegions := computeRegions(baseLines, oursLines, true)
	theirsRegions := computeRegions(baseLines, theirsLines, false)

	result := &Result{}
	out := strings.Builder{}

	pos := 0
	for _, group := range groupRegions(oursRegions, theirsRegions) {
		start, end := groupSpan(group)

		writeLines(&out, baseLines[pos:start])
		pos = end

		oursVersion, hasOurs := applyRegions(baseLines, start, end, group, true)
		theirsVersion, hasTheirs := applyRegions(baseLines, start, end, group, false)

		switch {
		case !hasTheirs:
			writeLines(&out, oursVersion)
		case !hasOurs:
			writeLines(&out, theirsVersion)
		case equalLines(oursVersion, theirsVersion):
			writeLines(&out, oursVersion)
		default:
			result.Conflicts++

			switch opts.Favor {
			case FavorOurs:
				writeLines(&out, oursVersion)
			case FavorTheirs:
				writeLines(&out, theirsVersion)
			default:
				out.WriteString("<<<<<<< " + opts.OursLabel + "\n")
				writeLinesTerminated(&out, oursVersion)
				out.WriteString("=======\n")
				writeLinesTerminated(&out, theirsVersion)
				out.WriteString(">>>>>>> " + opts.TheirsLabel + "\n")
			}
		}
	}
	writeLines(&out, baseLines[pos:])

	result.Content = out.String()
	return result
}

func computeRegions(base, other []string, ours bool) []*region {
	var result []*region

	basePos, otherPos := 0, 0
	var current *region

	for _, d := range linediff.DoLinesWithTimeout(base, other, linediff.DefaultTimeout) {
		switch d.Type {
		case linediff.DiffEqual:
			current = nil
			basePos += d.Lines
			otherPos += d.Lines

		case linediff.DiffDelete:
			if current == nil {
				current = &region{start: basePos, end: basePos, ours: ours}
				result = append(result, current)
			}
			basePos += d.Lines
			current.end = basePos

		case linediff.DiffInsert:
			if current == nil {
				current = &region{start: basePos, end: basePos, ours: ours}
				result = append(result, current)
			}
			current.lines = append(current.lines, other[otherPos:otherPos+d.Lines]...)
			otherPos += d.Lines
		}
	}

	return result
}

func overlaps(a, b *region) bool {
	if a.start < b.end && b.start < a.end {
		return true
	}
	if a.start == b.start {
		return true
	}
	if a.start == a.end && b.start < a.start && a.start < b.end {
		return true
	}
	if b.start == b.end && a.start < b.start && b.start < a.end {
		return true
	}
	return false
}

// groupRegions sorts both sides by base position and chains overlapping regions together.
func groupRegions(ours, theirs []*region) [][]*region {
	var all []*region
	i, j := 0, 0
	for i < len(ours) || j < len(theirs) {
		if j >= len(theirs) || (i < len(ours) && ours[i].start <= theirs[j].start) {
			all = append(all, ours[i])
			i++
		} else {
			all = append(all, theirs[j])
			j++
		}
	}

	var result [][]*region
	for _, r := range all {
		if len(result) > 0 {
			last := result[len(result)-1]
			if groupOverlaps(last, r) {
				result[len(result)-1] = append(last, r)
				continue
			}
		}
		result = append(result, []*region{r})
	}
	return result
}

func groupOverlaps(group []*region, r *region) bool {
	for _, g := range group {
		if overlaps(g, r) {
			return true
		}
	}
	return false
}

func groupSpan(group []*region) (int, int) {
	start, end := group[0].start, group[0].end
	for _, r := range group[1:] {
		start = utils.Min(start, r.start)
		end = utils.Max(end, r.end)
	}
	return start, end
}

func applyRegions(base []string, start, end int, group []*region, ours bool) ([]string, bool) {
	var result []string
	found := false

	pos := start
	for _, r := range group {
		if r.ours != ours {
			continue
		}
		found = true

		result = append(result, base[pos:r.start]...)
		result = append(result, r.lines...)
		pos = r.end
	}
	result = append(result, base[pos:end]...)

	return result, found
}

func equalLines(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func writeLines(out *strings.Builder, lines []string) {
	for _, l := range lines {
		out.WriteString(l)
	}
}

// writeLinesTerminated makes sure conflict markers start on their own line.
func writeLinesTerminated(out *strings.Builder, lines []string) {
	writeLines(out, lines)
	if len(lines) > 0 && !strings.HasSuffix(lines[len(lines)-1], "\n") {
		out.WriteString("\n")
	}
}
