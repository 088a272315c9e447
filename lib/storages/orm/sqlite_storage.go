package orm

import (
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

// WithSqlite opens a database file. Writers wait up to 5s for the lock.
func WithSqlite(file string) gorm.Dialector {
	return sqlite.Open(file + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
}

func WithSqliteInMemory() gorm.Dialector {
	return sqlite.Open(":memory:")
}
