package orm

import "time"

// sqlConfig is one workspace setting.
type sqlConfig struct {
	Key   string `gorm:"primaryKey"`
	Value string `gorm:"not null"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func newSqlConfig(key string, value string) *sqlConfig {
	return &sqlConfig{Key: key, Value: value}
}

func (s *sqlConfig) CacheKey() string {
	return s.Key
}
