package orm

import (
	"log"
	"os"
	"reflect"
	"sync"
	"time"

	"github.com/samber/lo"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/pescuma/lanes/lib/consoles"
	"github.com/pescuma/lanes/lib/storages"
)

type gormStorage struct {
	mutex   sync.RWMutex
	db      *gorm.DB
	console consoles.Console

	config *map[string]string

	sqlConfigs map[string]*sqlConfig
}

func NewGormStorage(d gorm.Dialector, console consoles.Console) (storages.Storage, error) {
	l := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: false,
			Colorful:                  true,
		},
	)

	db, err := gorm.Open(d, &gorm.Config{
		NamingStrategy: &NamingStrategy{},
		Logger:         l,
	})
	if err != nil {
		return nil, err
	}

	err = db.AutoMigrate(
		&sqlConfig{},
		&sqlOperation{},
	)
	if err != nil {
		return nil, err
	}

	return &gormStorage{
		db:      db,
		console: console,
	}, nil
}

func (s *gormStorage) Close() error {
	db, err := s.db.DB()
	if err != nil {
		return err
	}

	return db.Close()
}

func createCache[T sqlTable](rows []T) map[string]T {
	return lo.Associate(rows, func(i T) (string, T) {
		return i.CacheKey(), i
	})
}

func (s *gormStorage) LoadConfig() (*map[string]string, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.config != nil {
		return s.config, nil
	}

	result := map[string]string{}

	var sqlConfigs []*sqlConfig
	err := s.db.Find(&sqlConfigs).Error
	if err != nil {
		return nil, err
	}

	s.sqlConfigs = createCache(sqlConfigs)

	for _, sc := range sqlConfigs {
		result[sc.Key] = sc.Value
	}

	s.config = &result
	return &result, nil
}

func (s *gormStorage) WriteConfig() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.config == nil {
		return nil
	}

	var changed []*sqlConfig
	for k, v := range *s.config {
		sc := newSqlConfig(k, v)
		if prepareChange(&s.sqlConfigs, sc) {
			changed = append(changed, sc)
		}
	}

	deleted := lo.Filter(lo.Keys(s.sqlConfigs), func(k string, _ int) bool {
		_, ok := (*s.config)[k]
		return !ok
	})

	now := time.Now().Local()
	db := s.db.Session(&gorm.Session{
		NowFunc:         func() time.Time { return now },
		CreateBatchSize: 300,
	})

	if len(changed) > 0 {
		err := db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&changed).Error
		if err != nil {
			return err
		}
	}

	if len(deleted) > 0 {
		err := db.Delete(&sqlConfig{}, deleted).Error
		if err != nil {
			return err
		}

		for _, k := range deleted {
			delete(s.sqlConfigs, k)
		}
	}

	return nil
}

func (s *gormStorage) LoadOperations() ([]*storages.Operation, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var rows []*sqlOperation
	err := s.db.Order("started desc").Find(&rows).Error
	if err != nil {
		return nil, err
	}

	return lo.Map(rows, func(r *sqlOperation, _ int) *storages.Operation { return r.ToModel() }), nil
}

func (s *gormStorage) WriteOperation(op *storages.Operation) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	now := time.Now().Local()
	db := s.db.Session(&gorm.Session{
		NowFunc: func() time.Time { return now },
	})

	return db.Clauses(clause.OnConflict{UpdateAll: true}).Create(newSqlOperation(op)).Error
}

func prepareChange[T sqlTable](byID *map[string]T, n T) bool {
	if *byID == nil {
		*byID = map[string]T{}
	}

	o, ok := (*byID)[n.CacheKey()]
	if ok {
		ro := reflect.Indirect(reflect.ValueOf(o))
		rn := reflect.Indirect(reflect.ValueOf(n))

		rn.FieldByName("CreatedAt").Set(ro.FieldByName("CreatedAt"))
		rn.FieldByName("UpdatedAt").Set(ro.FieldByName("UpdatedAt"))
	}

	if reflect.DeepEqual(n, o) {
		return false
	} else {
		(*byID)[n.CacheKey()] = n
		return true
	}
}
