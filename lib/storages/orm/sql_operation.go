package orm

import (
	"time"

	"github.com/pescuma/lanes/lib/storages"
)

type sqlOperation struct {
	ID         string `gorm:"primaryKey"`
	Kind       string
	Arguments  []string `gorm:"serializer:json"`
	Started    time.Time `gorm:"index"`
	DurationMs int64

	RefsBefore    map[string]string `gorm:"serializer:json"`
	RefsAfter     map[string]string `gorm:"serializer:json"`
	CommitMapping map[string]string `gorm:"serializer:json"`

	Illegal string
	Error   string

	CreatedAt time.Time
	UpdatedAt time.Time
}

func newSqlOperation(op *storages.Operation) *sqlOperation {
	return &sqlOperation{
		ID:            op.ID,
		Kind:          op.Kind,
		Arguments:     op.Arguments,
		Started:       op.Started,
		DurationMs:    op.Duration.Milliseconds(),
		RefsBefore:    encodeMap(op.RefsBefore),
		RefsAfter:     encodeMap(op.RefsAfter),
		CommitMapping: encodeMap(op.CommitMapping),
		Illegal:       op.Illegal,
		Error:         op.Error,
	}
}

func (s *sqlOperation) CacheKey() string {
	return s.ID
}

func (s *sqlOperation) ToModel() *storages.Operation {
	return &storages.Operation{
		ID:            s.ID,
		Kind:          s.Kind,
		Arguments:     s.Arguments,
		Started:       s.Started,
		Duration:      time.Duration(s.DurationMs) * time.Millisecond,
		RefsBefore:    decodeMap(s.RefsBefore),
		RefsAfter:     decodeMap(s.RefsAfter),
		CommitMapping: decodeMap(s.CommitMapping),
		Illegal:       s.Illegal,
		Error:         s.Error,
	}
}
