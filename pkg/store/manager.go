package store

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"gorm.io/gorm"

	"github.com/bft-labs/taverna/pkg/log"
)

// Manager holds the process-wide datastore connection.
type Manager struct {
	backend Backend
	logger  log.Logger

	mu   sync.Mutex
	conn Conn

	// initialized mirrors conn != nil for lock-free reads.
	initialized atomic.Bool
}

// NewManager creates a manager over backend. Nothing is opened until Connect.
func NewManager(backend Backend, logger log.Logger) *Manager {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &Manager{
		backend: backend,
		logger:  logger,
	}
}

// Connect opens the connection. It is a no-op when already connected.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conn != nil {
		return nil
	}

	conn, err := m.backend.Open(ctx)
	if err != nil {
		return fmt.Errorf("store: connect: %w", err)
	}
	m.conn = conn
	m.initialized.Store(true)

	if s, ok := m.backend.(fmt.Stringer); ok {
		m.logger.Info("database connection initialized", log.String("target", s.String()))
	} else {
		m.logger.Info("database connection initialized")
	}
	return nil
}

// Close tears the connection down. It is a no-op when not connected, and
// concurrent callers observe exactly one teardown.
func (m *Manager) Close(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conn == nil {
		return nil
	}

	conn := m.conn
	m.conn = nil
	m.initialized.Store(false)

	if err := conn.Close(); err != nil {
		m.logger.Warn("error closing database connection", log.Err(err))
		return fmt.Errorf("store: close: %w", err)
	}
	m.logger.Info("database connection closed")
	return nil
}

// Initialized reports whether a connection is live.
func (m *Manager) Initialized() bool {
	return m.initialized.Load()
}

func (m *Manager) current() (Conn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conn == nil {
		return nil, ErrNotConnected
	}
	return m.conn, nil
}

// ExecRaw runs a raw statement and returns the affected row count.
func (m *Manager) ExecRaw(ctx context.Context, query string, args ...any) (int64, error) {
	conn, err := m.current()
	if err != nil {
		return 0, err
	}
	return conn.Exec(ctx, query, args...)
}

// FetchRaw runs a raw query and returns the rows as column maps.
func (m *Manager) FetchRaw(ctx context.Context, query string, args ...any) ([]map[string]any, error) {
	conn, err := m.current()
	if err != nil {
		return nil, err
	}
	return conn.Query(ctx, query, args...)
}

// Healthcheck pings the datastore.
func (m *Manager) Healthcheck(ctx context.Context) error {
	conn, err := m.current()
	if err != nil {
		return err
	}
	return conn.Ping(ctx)
}

// DB returns the ORM handle, or ErrNotConnected.
func (m *Manager) DB() (*gorm.DB, error) {
	conn, err := m.current()
	if err != nil {
		return nil, err
	}
	return conn.DB(), nil
}
