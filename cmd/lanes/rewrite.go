package main

type MoveCmd struct {
	Commit string `arg:"" help:"Commit to move."`
	Lane   string `arg:"" help:"Lane to move the commit to."`
}

func (c *MoveCmd) Run(ctx *context) error {
	result, err := ctx.ws.MoveCommit(ctx.ctx, c.Commit, c.Lane)
	if err != nil {
		return err
	}

	printResult(result)
	return nil
}

type ReorderCmd struct {
	Commit string `arg:"" help:"Commit to move."`
	Onto   string `arg:"" help:"Commit of the same lane, or the base, to put it above."`
}

func (c *ReorderCmd) Run(ctx *context) error {
	result, err := ctx.ws.ReorderCommit(ctx.ctx, c.Commit, c.Onto)
	if err != nil {
		return err
	}

	printResult(result)
	return nil
}

type UncommitCmd struct {
	Commit   string   `arg:"" help:"Commit to change. It must be checked out."`
	Patterns []string `arg:"" help:"Paths to uncommit. Accepts ** globs."`
}

func (c *UncommitCmd) Run(ctx *context) error {
	result, err := ctx.ws.UncommitChanges(ctx.ctx, c.Commit, c.Patterns)
	if err != nil {
		return err
	}

	printResult(result)
	return nil
}

type RenameCmd struct {
	Old string `arg:"" help:"Branch to rename."`
	New string `arg:"" help:"New name."`
}

func (c *RenameCmd) Run(ctx *context) error {
	result, err := ctx.ws.RenameBranch(ctx.ctx, c.Old, c.New)
	if err != nil {
		return err
	}

	printResult(result)
	return nil
}

type StackCmd struct {
	Branch string `arg:"" help:"Lane to move."`
	Onto   string `arg:"" help:"Lane to stack it on."`
}

func (c *StackCmd) Run(ctx *context) error {
	result, err := ctx.ws.StackBranch(ctx.ctx, c.Branch, c.Onto)
	if err != nil {
		return err
	}

	printResult(result)
	return nil
}
