package main

import (
	"fmt"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/samber/lo"

	"github.com/pescuma/lanes/lib/hunkdeps"
	"github.com/pescuma/lanes/lib/utils"
)

type LanesCmd struct {
	Limit int `short:"n" default:"10" help:"Maximum commits to show per lane. 0 shows all."`
}

func (c *LanesCmd) Run(ctx *context) error {
	lanes, err := ctx.ws.Lanes(ctx.ctx)
	if err != nil {
		return err
	}

	for _, l := range lanes {
		fmt.Printf("%v (%v)\n", l.Name.Short(), count(len(l.Commits), "commit"))

		commits := l.Commits
		if c.Limit > 0 && len(commits) > c.Limit {
			commits = commits[:c.Limit]
		}

		for _, commit := range commits {
			fmt.Printf("  %v %-60v %v\n", short(commit.Hash), subject(commit), humanize.Time(commit.Author.When))
		}

		if len(commits) < len(l.Commits) {
			fmt.Printf("  ... %v more\n", len(l.Commits)-len(commits))
		}
	}

	return nil
}

type DepsCmd struct {
	Uncommitted bool `short:"u" help:"Also show which lanes the uncommitted changes depend on."`
}

func (c *DepsCmd) Run(ctx *context) error {
	lanes, err := ctx.ws.Lanes(ctx.ctx)
	if err != nil {
		return err
	}

	commits := map[plumbing.Hash]*object.Commit{}
	for _, l := range lanes {
		for _, commit := range l.Commits {
			commits[commit.Hash] = commit
		}
	}

	bar := utils.NewProgressBar(len(commits), "diffing commits")
	deps, err := ctx.ws.Dependencies(ctx.ctx, func(*object.Commit) {
		_ = bar.Add(1)
	})
	_ = bar.Finish()
	if err != nil {
		return err
	}

	describe := func(h plumbing.Hash) string {
		if commit, ok := commits[h]; ok {
			return fmt.Sprintf("%v %v", short(h), subject(commit))
		}
		return short(h)
	}

	ws := deps.Workspace
	for _, l := range lanes {
		stackID := l.Name.Short()
		byCommit := ws.CommitDependencies[stackID]

		fmt.Printf("%v\n", stackID)

		found := false
		for _, commit := range l.Commits {
			ds := byCommit[commit.Hash]
			if ds == nil || ds.Size() == 0 {
				continue
			}

			found = true
			fmt.Printf("  %v\n", describe(commit.Hash))
			for _, d := range hunkdeps.SortedHashes(ds) {
				fmt.Printf("    depends on %v\n", describe(d))
			}
		}

		if !found {
			fmt.Printf("  no dependencies between commits\n")
		}
	}

	for _, e := range ws.Errors {
		fmt.Printf("Could not compute %v\n", e)
	}

	if !c.Uncommitted {
		return nil
	}

	fmt.Printf("\nUncommitted changes (%v):\n", count(len(deps.Uncommitted), "hunk"))

	assignments := lo.GroupBy(deps.Uncommitted, func(a hunkdeps.HunkAssignment) string { return a.Path })
	paths := lo.Keys(assignments)
	sort.Strings(paths)

	for _, path := range paths {
		for _, a := range assignments[path] {
			lane := lo.Ternary(a.StackID == "", "no lane", a.StackID)
			fmt.Printf("  %v -%v,%v +%v,%v: %v\n", path, a.Hunk.OldStart, a.Hunk.OldLines, a.Hunk.NewStart, a.Hunk.NewLines, lane)

			for _, lock := range a.Locks {
				fmt.Printf("    locked to %v in %v\n", describe(lock.CommitID), lock.StackID)
			}
		}
	}

	return nil
}
