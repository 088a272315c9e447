package main

import (
	"fmt"
)

type EditCmd struct {
	Commit string `arg:"" help:"Conflicted commit to edit."`
}

func (c *EditCmd) Run(ctx *context) error {
	mode, err := ctx.ws.EnterEditMode(ctx.ctx, c.Commit)
	if err != nil {
		return err
	}

	fmt.Printf("Editing %v. Fix the conflicts in the worktree and run: lanes resolve\n", short(mode.Commit))
	return nil
}

type ResolveCmd struct {
}

func (c *ResolveCmd) Run(ctx *context) error {
	result, err := ctx.ws.Resolve(ctx.ctx)
	if err != nil {
		return err
	}

	printResult(result)
	return nil
}
