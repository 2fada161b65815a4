package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// GORMBackend opens GORM connections to SQLite or PostgreSQL.
type GORMBackend struct {
	config *Config
}

// NewGORMBackend validates config and returns a backend for it.
func NewGORMBackend(config *Config) (*GORMBackend, error) {
	if config == nil {
		config = &Config{}
	}
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid database configuration: %w", err)
	}
	return &GORMBackend{config: config}, nil
}

// Config returns the backend configuration.
func (b *GORMBackend) Config() *Config { return b.config }

// Open connects to the database and optionally migrates the schema.
func (b *GORMBackend) Open(ctx context.Context) (Conn, error) {
	var dialector gorm.Dialector
	switch b.config.Type {
	case DatabaseTypeSQLite:
		dialector = sqlite.Open(b.sqliteDSN())
		if b.config.SQLite.Path != MemoryPath {
			if err := os.MkdirAll(filepath.Dir(b.config.SQLite.Path), 0755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	case DatabaseTypePostgres:
		dialector = postgres.Open(b.config.Postgres.URL)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedScheme, b.config.Type)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying database: %w", err)
	}
	switch {
	case b.config.Type == DatabaseTypePostgres:
		sqlDB.SetMaxOpenConns(b.config.Postgres.MaxOpenConns)
		sqlDB.SetMaxIdleConns(b.config.Postgres.MaxIdleConns)
	case b.config.SQLite.Path == MemoryPath:
		// Every pooled connection would otherwise get its own database.
		sqlDB.SetMaxOpenConns(1)
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if b.config.GenerateSchemas {
		if err := db.WithContext(ctx).AutoMigrate(AllModels()...); err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("failed to run database migration: %w", err)
		}
	}

	return &gormConn{db: db}, nil
}

func (b *GORMBackend) sqliteDSN() string {
	if b.config.SQLite.Path == MemoryPath {
		return MemoryPath + "?_pragma=foreign_keys(1)"
	}
	return b.config.SQLite.Path +
		"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
}

type gormConn struct {
	db *gorm.DB
}

func (c *gormConn) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	res := c.db.WithContext(ctx).Exec(query, args...)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (c *gormConn) Query(ctx context.Context, query string, args ...any) ([]map[string]any, error) {
	rows := []map[string]any{}
	if err := c.db.WithContext(ctx).Raw(query, args...).Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (c *gormConn) Ping(ctx context.Context) error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying database: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

func (c *gormConn) DB() *gorm.DB { return c.db }

func (c *gormConn) Close() error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying database: %w", err)
	}
	return sqlDB.Close()
}

// isUniqueConstraintError checks if the error is a unique constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "UNIQUE constraint failed") ||
		strings.Contains(errStr, "duplicate key value violates unique constraint")
}

// convertNotFoundError converts gorm.ErrRecordNotFound to the appropriate domain error.
func convertNotFoundError(err error, notFoundErr error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFoundErr
	}
	return err
}

// String describes the target without credentials.
func (b *GORMBackend) String() string { return b.config.String() }
