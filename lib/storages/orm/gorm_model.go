package orm

import (
	"strings"

	"gorm.io/gorm/schema"
)

type sqlTable interface {
	CacheKey() string
}

// NamingStrategy drops the sql prefix of the table structs.
type NamingStrategy struct {
	schema.NamingStrategy
}

func (n *NamingStrategy) TableName(table string) string {
	return n.NamingStrategy.TableName(strings.TrimPrefix(table, "sql"))
}
