package main

import (
	stdcontext "context"
	"os"
	"os/signal"

	"github.com/alecthomas/kong"

	"github.com/pescuma/lanes/lib/workspace"
)

var cli struct {
	Repo      string `short:"C" default:"." help:"Path inside the git repository." type:"path"`
	Workspace string `short:"w" help:"Workspace database. Default is .lanes/lanes.sqlite if .lanes exists, or lanes.sqlite inside the git folder." type:"path"`

	Lanes LanesCmd `cmd:"" help:"List the lanes and their commits."`
	Deps  DepsCmd  `cmd:"" help:"Show the hunk dependencies between commits."`

	Move     MoveCmd     `cmd:"" help:"Move a commit to the top of another lane."`
	Reorder  ReorderCmd  `cmd:"" help:"Move a commit right above another commit of its lane."`
	Uncommit UncommitCmd `cmd:"" help:"Take the changes to some files out of a commit, leaving them uncommitted."`
	Rename   RenameCmd   `cmd:"" help:"Rename a branch."`
	Stack    StackCmd    `cmd:"" help:"Stack a lane on top of another one."`
	Edit     EditCmd     `cmd:"" help:"Check out a conflicted commit to resolve its conflicts."`
	Resolve  ResolveCmd  `cmd:"" help:"Replace the commit being edited by the worktree content."`

	Oplog OplogCmd `cmd:"" help:"Show the operations applied to the repository."`

	Config struct {
		Set  ConfigSetCmd  `cmd:"" help:"Set configuration parameters."`
		Show ConfigShowCmd `cmd:"" help:"Show configuration parameters."`
	} `cmd:""`

	Serve ServeCmd `cmd:"" help:"Start the HTTP API."`
}

type context struct {
	ctx stdcontext.Context
	ws  *workspace.Workspace
}

func main() {
	ctx := kong.Parse(&cli, kong.ShortUsageOnError())

	ws, err := workspace.NewWorkspace(cli.Repo, cli.Workspace)
	ctx.FatalIfErrorf(err)
	defer ws.Close()

	sctx, stop := signal.NotifyContext(stdcontext.Background(), os.Interrupt)
	defer stop()

	err = ctx.Run(&context{
		ctx: sctx,
		ws:  ws,
	})
	ctx.FatalIfErrorf(err)
}
