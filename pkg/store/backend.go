package store

import (
	"context"

	"gorm.io/gorm"
)

// Backend opens connections to a datastore.
type Backend interface {
	// Open performs the connection handshake.
	Open(ctx context.Context) (Conn, error)
}

// Conn is a live datastore connection.
type Conn interface {
	// Exec runs a statement and returns the number of affected rows.
	Exec(ctx context.Context, query string, args ...any) (int64, error)

	// Query runs a statement and returns each row as a column map.
	Query(ctx context.Context, query string, args ...any) ([]map[string]any, error)

	Ping(ctx context.Context) error
	DB() *gorm.DB
	Close() error
}
