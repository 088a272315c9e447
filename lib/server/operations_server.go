package server

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"

	"github.com/pescuma/lanes/lib/storages"
)

func (s *server) initOperations(r *gin.Engine) {
	r.GET("/api/operations", getP[ListParams](s.operationsList))
}

func (s *server) operationsList(ctx context.Context, params *ListParams) (any, error) {
	ops, err := s.ws.Operations(ctx)
	if err != nil {
		return nil, err
	}

	total := len(ops)

	ops = paginate(ops, params.Offset, params.Limit)

	return gin.H{
		"data":  lo.Map(ops, func(o *storages.Operation, _ int) gin.H { return toOperation(o) }),
		"total": total,
	}, nil
}

func toOperation(o *storages.Operation) gin.H {
	return gin.H{
		"id":            o.ID,
		"kind":          o.Kind,
		"arguments":     o.Arguments,
		"started":       encodeDate(o.Started),
		"durationMs":    o.Duration.Milliseconds(),
		"refsBefore":    o.RefsBefore,
		"refsAfter":     o.RefsAfter,
		"commitMapping": o.CommitMapping,
		"illegal":       o.Illegal,
		"error":         o.Error,
	}
}
