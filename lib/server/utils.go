package server

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"golang.org/x/exp/constraints"

	"github.com/pescuma/lanes/lib/checkout"
	"github.com/pescuma/lanes/lib/gitstore"
	"github.com/pescuma/lanes/lib/hunkdeps"
	"github.com/pescuma/lanes/lib/operations"
	"github.com/pescuma/lanes/lib/rebase"
	"github.com/pescuma/lanes/lib/utils"
)

var errBadRequest = errors.New("bad request")

func statusOf(err error) int {
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, rebase.ErrForeignSelector),
		errors.Is(err, hunkdeps.ErrMalformedHunkHeader):
		return http.StatusBadRequest
	case errors.Is(err, rebase.ErrNotFound),
		errors.Is(err, operations.ErrUnknownLane):
		return http.StatusNotFound
	case errors.Is(err, operations.ErrSameLane),
		errors.Is(err, operations.ErrStackOntoSelf),
		errors.Is(err, operations.ErrSharedCommit),
		errors.Is(err, operations.ErrBranchExists),
		errors.Is(err, rebase.ErrConflictedCommit),
		errors.Is(err, checkout.ErrConflictingChanges),
		errors.Is(err, gitstore.ErrReferenceMismatch):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func sendError(c *gin.Context, err error) {
	c.JSON(statusOf(err), gin.H{"error": err.Error()})
}

func get(f func(context.Context) (any, error)) func(c *gin.Context) {
	return func(c *gin.Context) {
		result, err := f(c.Request.Context())
		if err != nil {
			sendError(c, err)
			return
		}

		c.JSON(http.StatusOK, result)
	}
}

func getP[P any](f func(context.Context, *P) (any, error)) func(c *gin.Context) {
	return func(c *gin.Context) {
		var params P

		err := c.ShouldBindQuery(&params)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		result, err := f(c.Request.Context(), &params)
		if err != nil {
			sendError(c, err)
			return
		}

		c.JSON(http.StatusOK, result)
	}
}

// postP binds the uri and the json body to the same params.
func postP[P any](f func(context.Context, *P) (*operations.Result, error)) func(c *gin.Context) {
	return func(c *gin.Context) {
		var params P

		err := c.ShouldBindUri(&params)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		err = c.ShouldBindJSON(&params)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		result, err := f(c.Request.Context(), &params)
		if err != nil {
			sendError(c, err)
			return
		}

		if result.Illegal != nil {
			c.JSON(http.StatusConflict, gin.H{"illegal": toIllegal(result.Illegal)})
			return
		}

		c.JSON(http.StatusOK, toOutcome(result.Outcome))
	}
}

func sortBy[T any, R constraints.Ordered](col []T, get func(T) R, asc bool) {
	if asc {
		sort.SliceStable(col, func(i, j int) bool {
			return get(col[i]) < get(col[j])
		})
	} else {
		sort.SliceStable(col, func(i, j int) bool {
			return get(col[i]) > get(col[j])
		})
	}
}

func paginate[T any](col []T, offset, limit *int) []T {
	if offset != nil {
		if *offset > len(col) {
			return []T{}
		}

		col = col[*offset:]
	}

	if limit != nil && *limit < len(col) {
		col = col[:*limit]
	}

	return col
}

func encodeDate(v time.Time) *time.Time {
	empty := time.Time{}
	return utils.IIf(v == empty, nil, &v)
}
