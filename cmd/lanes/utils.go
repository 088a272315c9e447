package main

import (
	"fmt"
	"strings"

	"github.com/aquilax/truncate"
	"github.com/gertd/go-pluralize"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/samber/lo"

	"github.com/pescuma/lanes/lib/operations"
)

const subjectLength = 60

var plurals = pluralize.NewClient()

func count(n int, word string) string {
	return plurals.Pluralize(word, n, true)
}

func short(h plumbing.Hash) string {
	return h.String()[:8]
}

func subject(c *object.Commit) string {
	s, _, _ := strings.Cut(c.Message, "\n")
	return truncate.Truncate(strings.TrimSpace(s), subjectLength, "...", truncate.PositionEnd)
}

func printResult(result *operations.Result) {
	if result.Illegal != nil {
		fmt.Printf("Refused: %v\n", result.Illegal)
		return
	}

	o := result.Outcome
	rewritten := lo.CountBy(lo.Entries(o.CommitMapping), func(e lo.Entry[plumbing.Hash, plumbing.Hash]) bool {
		return e.Key != e.Value
	})
	fmt.Printf("Rewrote %v\n", count(rewritten, "commit"))

	if o.Checkout != nil {
		fmt.Printf("Checked out: %v added, %v removed, %v updated\n",
			o.Checkout.FilesAdded, o.Checkout.FilesRemoved, o.Checkout.FilesUpdated)
		if o.Checkout.Snapshot != nil {
			fmt.Printf("Conflicting uncommitted changes were saved in tree %v\n", o.Checkout.Snapshot)
		}
	}
	if o.CheckoutSkipped != nil {
		fmt.Printf("The worktree was not updated: %v\n", o.CheckoutSkipped)
	}
}
