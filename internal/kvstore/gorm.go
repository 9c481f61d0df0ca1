package kvstore

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"time"

	gomysql "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/AMEND09/ID-Scanner/internal/conf"
	"github.com/AMEND09/ID-Scanner/internal/errors"
	"github.com/AMEND09/ID-Scanner/internal/logger"
)

const slowQueryThreshold = 200 * time.Millisecond

// Entry is one persisted key-value pair.
type Entry struct {
	Name      string `gorm:"primaryKey;size:191"`
	Value     string `gorm:"type:text"`
	UpdatedAt time.Time
}

// TableName pins the table name regardless of GORM naming strategy.
func (Entry) TableName() string {
	return "kv_entries"
}

// GormStore is a Store backed by SQLite or MySQL.
type GormStore struct {
	db *gorm.DB
}

// Open returns the store selected by settings.
func Open(settings *conf.StorageSettings) (Store, error) {
	var (
		store *GormStore
		err   error
	)
	switch settings.Type {
	case "memory":
		return NewMemoryStore(), nil
	case "mysql":
		store, err = OpenMySQL(&settings.MySQL)
	case "sqlite", "":
		store, err = OpenSQLite(settings.SQLite.Path)
	default:
		return nil, errors.Newf("unknown storage type %q", settings.Type).
			Component("kvstore").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if err != nil {
		return nil, err
	}
	return store, nil
}

// OpenSQLite opens or creates the SQLite database at path.
func OpenSQLite(path string) (*GormStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.New(err).
				Component("kvstore").
				Category(errors.CategoryFileIO).
				Context("operation", "create_db_dir").
				Build()
		}
	}
	return openGorm(sqlite.Open(path), "sqlite")
}

// OpenMySQL connects to the MySQL database described by settings.
func OpenMySQL(settings *conf.MySQLSettings) (*GormStore, error) {
	return openGorm(mysql.Open(MySQLDSN(settings)), "mysql")
}

// MySQLDSN builds the driver DSN. Credentials are escaped by the driver.
func MySQLDSN(settings *conf.MySQLSettings) string {
	cfg := gomysql.NewConfig()
	cfg.User = settings.Username
	cfg.Passwd = settings.Password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(settings.Host, settings.Port)
	cfg.DBName = settings.Database
	cfg.ParseTime = true
	cfg.Loc = time.Local
	cfg.Params = map[string]string{"charset": "utf8mb4"}
	return cfg.FormatDSN()
}

func openGorm(dialector gorm.Dialector, backend string) (*GormStore, error) {
	log := GetLogger()
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.NewGormLoggerAdapter(log, slowQueryThreshold),
	})
	if err != nil {
		return nil, errors.New(err).
			Component("kvstore").
			Category(errors.CategoryStorage).
			Context("operation", "open").
			Context("backend", backend).
			Build()
	}

	if err := db.AutoMigrate(&Entry{}); err != nil {
		return nil, errors.New(err).
			Component("kvstore").
			Category(errors.CategoryStorage).
			Context("operation", "auto_migrate").
			Context("backend", backend).
			Build()
	}

	log.Debug("key-value store opened", logger.String("backend", backend))
	return &GormStore{db: db}, nil
}

func (s *GormStore) Get(ctx context.Context, key string) (string, bool, error) {
	var entries []Entry
	if err := s.db.WithContext(ctx).Where("name = ?", key).Limit(1).Find(&entries).Error; err != nil {
		return "", false, storageError(err, "get", key)
	}
	if len(entries) == 0 {
		return "", false, nil
	}
	return entries[0].Value, true, nil
}

func (s *GormStore) Set(ctx context.Context, key, value string) error {
	entry := Entry{Name: key, Value: value, UpdatedAt: time.Now()}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&entry).Error
	if err != nil {
		return storageError(err, "set", key)
	}
	return nil
}

func (s *GormStore) Remove(ctx context.Context, key string) error {
	if err := s.db.WithContext(ctx).Where("name = ?", key).Delete(&Entry{}).Error; err != nil {
		return storageError(err, "remove", key)
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return storageError(err, "close", "")
	}
	return sqlDB.Close()
}

func storageError(err error, operation, key string) error {
	b := errors.New(err).
		Component("kvstore").
		Category(errors.CategoryStorage).
		Context("operation", operation)
	if key != "" {
		b = b.Context("key", key)
	}
	return b.Build()
}
