package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"optionsTracker/internal/ports"
)

// mockLogger implements ports.Logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

// setupTestStore creates a temporary store for testing.
func setupTestStore(t *testing.T, mutate func(*Config)) (*Store, func()) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "options-tracker-test-*")
	require.NoError(t, err)

	cfg := Config{
		DBPath:         filepath.Join(tmpDir, "test.db"),
		MinConns:       1,
		MaxConns:       5,
		AcquireTimeout: 2 * time.Second,
		Logger:         &mockLogger{},
	}
	if mutate != nil {
		mutate(&cfg)
	}

	store, err := New(cfg)
	require.NoError(t, err)

	cleanup := func() {
		store.Close(5 * time.Second)
		os.RemoveAll(tmpDir)
	}
	return store, cleanup
}

func TestStore_New_RequiresLogger(t *testing.T) {
	_, err := New(Config{DBPath: "ignored.db"})
	assert.Error(t, err)
}

func TestStore_WithConn_ReleasesOnError(t *testing.T) {
	store, cleanup := setupTestStore(t, func(cfg *Config) {
		cfg.MaxConns = 1
		cfg.AcquireTimeout = 500 * time.Millisecond
	})
	defer cleanup()

	ctx := context.Background()
	boom := errors.New("store call failed mid-operation")

	// With a single-connection pool, a leaked connection would make every
	// later acquire time out.
	for i := 0; i < 3; i++ {
		err := store.WithConn(ctx, func(conn *sql.Conn) error {
			return boom
		})
		assert.ErrorIs(t, err, boom)
	}

	err := store.WithConn(ctx, func(conn *sql.Conn) error {
		return conn.PingContext(ctx)
	})
	assert.NoError(t, err)
}

func TestStore_WithConn_ReleasesOnPanic(t *testing.T) {
	store, cleanup := setupTestStore(t, func(cfg *Config) {
		cfg.MaxConns = 1
		cfg.AcquireTimeout = 500 * time.Millisecond
	})
	defer cleanup()

	ctx := context.Background()

	require.Panics(t, func() {
		_ = store.WithConn(ctx, func(conn *sql.Conn) error {
			panic("worker blew up")
		})
	})

	// The connection must have been returned despite the panic.
	err := store.WithConn(ctx, func(conn *sql.Conn) error {
		return conn.PingContext(ctx)
	})
	assert.NoError(t, err)
}

func TestStore_WithConn_PoolExhaustion(t *testing.T) {
	store, cleanup := setupTestStore(t, func(cfg *Config) {
		cfg.MaxConns = 1
		cfg.AcquireTimeout = 200 * time.Millisecond
	})
	defer cleanup()

	ctx := context.Background()
	holding := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)

	go func() {
		done <- store.WithConn(ctx, func(conn *sql.Conn) error {
			close(holding)
			<-release
			return nil
		})
	}()

	<-holding

	// All connections are held: acquire must fail within the bounded
	// timeout, not hang.
	err := store.WithConn(ctx, func(conn *sql.Conn) error { return nil })
	assert.ErrorIs(t, err, ports.ErrPoolExhausted)

	close(release)
	require.NoError(t, <-done)

	// Once the holder released, acquisition works again.
	err = store.WithConn(ctx, func(conn *sql.Conn) error { return nil })
	assert.NoError(t, err)
}

func TestStore_WithConn_BlocksUntilReleased(t *testing.T) {
	store, cleanup := setupTestStore(t, func(cfg *Config) {
		cfg.MaxConns = 1
		cfg.AcquireTimeout = 2 * time.Second
	})
	defer cleanup()

	ctx := context.Background()
	holding := make(chan struct{})
	done := make(chan error, 1)

	go func() {
		done <- store.WithConn(ctx, func(conn *sql.Conn) error {
			close(holding)
			time.Sleep(100 * time.Millisecond)
			return nil
		})
	}()

	<-holding

	// The second acquire waits for the holder instead of failing.
	err := store.WithConn(ctx, func(conn *sql.Conn) error { return nil })
	assert.NoError(t, err)
	require.NoError(t, <-done)
}

func TestStore_Close_WithinTimeout(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "options-tracker-test-*")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	store, err := New(Config{
		DBPath: filepath.Join(tmpDir, "test.db"),
		Logger: &mockLogger{},
	})
	require.NoError(t, err)

	assert.NoError(t, store.Close(5*time.Second))

	// The pool is closed: acquisition must report it, not hang.
	err = store.WithConn(context.Background(), func(conn *sql.Conn) error { return nil })
	assert.Error(t, err)
}
