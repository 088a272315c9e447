package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/samber/lo"
)

type OplogCmd struct {
	Limit   int  `short:"n" default:"20" help:"Maximum operations to show. 0 shows all."`
	Verbose bool `short:"v" help:"Show the references each operation changed."`
}

func (c *OplogCmd) Run(ctx *context) error {
	ops, err := ctx.ws.Operations(ctx.ctx)
	if err != nil {
		return err
	}

	if c.Limit > 0 && len(ops) > c.Limit {
		ops = ops[:c.Limit]
	}

	for _, op := range ops {
		status := "ok"
		switch {
		case op.Error != "":
			status = "failed: " + op.Error
		case op.Illegal != "":
			status = "refused: " + op.Illegal
		}

		fmt.Printf("%v %-8v %v (%v, %v) %v\n", op.ID, op.Kind, strings.Join(op.Arguments, " "),
			humanize.Time(op.Started), op.Duration, status)

		if !c.Verbose {
			continue
		}

		names := lo.Uniq(append(lo.Keys(op.RefsBefore), lo.Keys(op.RefsAfter)...))
		sort.Strings(names)

		for _, name := range names {
			fmt.Printf("    %v: %v -> %v\n", name, shortOrNone(op.RefsBefore[name]), shortOrNone(op.RefsAfter[name]))
		}
	}

	return nil
}

func shortOrNone(h string) string {
	if h == "" {
		return "(none)"
	}
	return h[:min(8, len(h))]
}
