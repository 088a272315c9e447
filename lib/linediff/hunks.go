package linediff

// Hunk is a zero-context change between two texts, numbered as in a unified diff header.
// A side without lines points at the line before the change.
type Hunk struct {
	OldStart int
	OldLines int
	NewStart int
	NewLines int
}

// Hunks groups each run of deletes and inserts into a Hunk.
func Hunks(diffs []Diff) []Hunk {
	var result []Hunk

	oldLine, newLine := 1, 1
	var current *Hunk

	flush := func() {
		if current == nil {
			return
		}
		if current.OldLines == 0 {
			current.OldStart--
		}
		if current.NewLines == 0 {
			current.NewStart--
		}
		result = append(result, *current)
		current = nil
	}

	for _, d := range diffs {
		if d.Type == DiffEqual {
			flush()
			oldLine += d.Lines
			newLine += d.Lines
			continue
		}

		if current == nil {
			current = &Hunk{OldStart: oldLine, NewStart: newLine}
		}

		switch d.Type {
		case DiffDelete:
			current.OldLines += d.Lines
			oldLine += d.Lines
		case DiffInsert:
			current.NewLines += d.Lines
			newLine += d.Lines
		}
	}
	flush()

	return result
}

func HunksBetween(src, dst string) []Hunk {
	return Hunks(Do(src, dst))
}
