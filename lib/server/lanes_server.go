package server

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/hashicorp/go-set/v2"
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/pescuma/lanes/lib/hunkdeps"
	"github.com/pescuma/lanes/lib/operations"
	"github.com/pescuma/lanes/lib/rebase"
)

func (s *server) initLanes(r *gin.Engine) {
	r.GET("/api/lanes", getP[ListParams](s.lanesList))
	r.GET("/api/dependencies", getP[DependenciesParams](s.dependencies))
	r.POST("/api/commits/:commit/move", postP[MoveParams](s.commitMove))
	r.POST("/api/branches/:branch/rename", postP[RenameParams](s.branchRename))
}

func (s *server) lanesList(ctx context.Context, params *ListParams) (any, error) {
	lanes, err := s.ws.Lanes(ctx)
	if err != nil {
		return nil, err
	}

	asc := params.Asc == nil || *params.Asc
	switch params.Sort {
	case "", "name":
		sortBy(lanes, func(l *operations.Lane) string { return string(l.Name) }, asc)
	case "commits":
		sortBy(lanes, func(l *operations.Lane) int { return len(l.Commits) }, asc)
	default:
		return nil, errors.Wrapf(errBadRequest, "unknown sort field: %v", params.Sort)
	}

	total := len(lanes)

	lanes = paginate(lanes, params.Offset, params.Limit)

	return gin.H{
		"data":  lo.Map(lanes, func(l *operations.Lane, _ int) gin.H { return s.toLane(l) }),
		"total": total,
	}, nil
}

func (s *server) dependencies(ctx context.Context, params *DependenciesParams) (any, error) {
	deps, err := s.ws.Dependencies(ctx, nil)
	if err != nil {
		return nil, err
	}

	ws := deps.Workspace

	paths := gin.H{}
	for _, path := range ws.SortedPaths() {
		paths[path] = lo.Map(ws.Paths[path], func(h hunkdeps.HunkRange, _ int) gin.H { return toHunkRange(h) })
	}

	dependencies := gin.H{}
	for _, stackID := range ws.StackIDs() {
		dependencies[stackID] = toDependencyMap(ws.CommitDependencies[stackID])
	}

	result := gin.H{
		"lanes":        ws.StackIDs(),
		"paths":        paths,
		"dependencies": dependencies,
		"errors": lo.Map(ws.Errors, func(e hunkdeps.CalculationError, _ int) gin.H {
			return gin.H{
				"lane":   e.StackID,
				"commit": e.CommitID.String(),
				"path":   e.Path,
				"error":  e.Msg,
			}
		}),
	}

	if params.Uncommitted {
		result["uncommitted"] = lo.Map(deps.Uncommitted, func(a hunkdeps.HunkAssignment, _ int) gin.H {
			return gin.H{
				"path":     a.Path,
				"oldStart": a.Hunk.OldStart,
				"oldLines": a.Hunk.OldLines,
				"newStart": a.Hunk.NewStart,
				"newLines": a.Hunk.NewLines,
				"lane":     a.StackID,
				"locks": lo.Map(a.Locks, func(l hunkdeps.HunkLock, _ int) gin.H {
					return gin.H{"lane": l.StackID, "commit": l.CommitID.String()}
				}),
			}
		})
	}

	return result, nil
}

func (s *server) commitMove(ctx context.Context, params *MoveParams) (*operations.Result, error) {
	if params.Lane == "" {
		return nil, errors.Wrap(errBadRequest, "missing lane")
	}

	return s.ws.MoveCommit(ctx, params.Commit, params.Lane)
}

func (s *server) branchRename(ctx context.Context, params *RenameParams) (*operations.Result, error) {
	if params.Name == "" {
		return nil, errors.Wrap(errBadRequest, "missing name")
	}

	return s.ws.RenameBranch(ctx, params.Branch, params.Name)
}

func (s *server) toLane(l *operations.Lane) gin.H {
	return gin.H{
		"name":    l.Name.Short(),
		"ref":     string(l.Name),
		"tip":     l.Tip.String(),
		"commits": lo.Map(l.Commits, func(c *object.Commit, _ int) gin.H { return toCommit(c) }),
	}
}

func toCommit(c *object.Commit) gin.H {
	subject, _, _ := strings.Cut(c.Message, "\n")

	return gin.H{
		"id":      c.Hash.String(),
		"subject": subject,
		"author":  c.Author.Name,
		"date":    encodeDate(c.Author.When),
		"parents": lo.Map(c.ParentHashes, func(h plumbing.Hash, _ int) string { return h.String() }),
	}
}

func toHunkRange(h hunkdeps.HunkRange) gin.H {
	return gin.H{
		"lane":       h.StackID,
		"commit":     h.CommitID.String(),
		"changeType": h.ChangeType.String(),
		"start":      h.Start,
		"lines":      h.Lines,
		"lineShift":  h.LineShift,
	}
}

func toDependencyMap(deps map[plumbing.Hash]*set.Set[plumbing.Hash]) gin.H {
	result := gin.H{}
	for commit, ds := range deps {
		result[commit.String()] = lo.Map(hunkdeps.SortedHashes(ds), func(h plumbing.Hash, _ int) string { return h.String() })
	}
	return result
}

func toIllegal(m *hunkdeps.IllegalMove) gin.H {
	return gin.H{
		"kind":    m.Kind.String(),
		"message": m.Error(),
		"commits": lo.Map(m.Commits, func(h plumbing.Hash, _ int) string { return h.String() }),
	}
}

func toOutcome(o *rebase.MaterializeOutcome) gin.H {
	mapping := gin.H{}
	for old, n := range o.CommitMapping {
		if old != n {
			mapping[old.String()] = n.String()
		}
	}

	result := gin.H{
		"commitMapping": mapping,
	}
	if o.Checkout != nil {
		result["checkout"] = gin.H{
			"added":   o.Checkout.FilesAdded,
			"removed": o.Checkout.FilesRemoved,
			"updated": o.Checkout.FilesUpdated,
		}
		if o.Checkout.Snapshot != nil {
			result["snapshot"] = o.Checkout.Snapshot.String()
		}
	}
	if o.CheckoutSkipped != nil {
		result["checkoutSkipped"] = o.CheckoutSkipped.Error()
	}
	return result
}
