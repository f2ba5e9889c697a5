package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"optionsTracker/internal/ports"

	"github.com/mattn/go-sqlite3"
)

// driverName registers a dedicated driver so the computation engine
// functions are installed on every physical connection the pool opens. A
// pooled connection therefore never comes back without the engine attached,
// and no per-acquisition state survives release.
const driverName = "sqlite3_with_engine"

func init() {
	sql.Register(driverName, &sqlite3.SQLiteDriver{
		ConnectHook: registerEngineFuncs,
	})
}

// Store owns the bounded connection pool against the backing store and is
// the only component that hands out connections. Every unit of work goes
// through WithConn; nothing else acquires a connection directly.
type Store struct {
	db             *sql.DB
	logger         ports.Logger
	acquireTimeout time.Duration
}

// Config holds configuration for the store.
type Config struct {
	DBPath          string
	MinConns        int           // connections kept idle and ready
	MaxConns        int           // ceiling on open connections
	ConnMaxLifetime time.Duration // recycle connections after this age
	AcquireTimeout  time.Duration // bound on waiting for a free connection
	Logger          ports.Logger
}

// New opens the store, verifies it is reachable, applies the pool bounds and
// initializes the schema. An unreachable store is fatal: the caller must not
// proceed to serve traffic.
func New(cfg Config) (*Store, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for sqlite store")
	}
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = "./data/options_tracker.db"
	}
	if cfg.MaxConns <= 0 {
		cfg.MaxConns = 10
	}
	if cfg.MinConns < 0 {
		cfg.MinConns = 0
	}
	if cfg.AcquireTimeout <= 0 {
		cfg.AcquireTimeout = 5 * time.Second
	}

	// Create data directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		err = fmt.Errorf("failed to create data directory '%s': %w", filepath.Dir(dbPath), err)
		cfg.Logger.Error(context.Background(), err, "Store initialization failed")
		return nil, err
	}

	// WAL mode for concurrent readers; foreign keys enforced to protect the
	// user/stock references on transactions.
	db, err := sql.Open(driverName, dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=1")
	if err != nil {
		err = fmt.Errorf("failed to open database at '%s': %w", dbPath, err)
		cfg.Logger.Error(context.Background(), err, "Store initialization failed")
		return nil, err
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		err = fmt.Errorf("%w: ping '%s' failed: %v", ports.ErrStoreUnreachable, dbPath, err)
		cfg.Logger.Error(context.Background(), err, "Store initialization failed")
		return nil, err
	}

	// Pool bounds
	db.SetMaxOpenConns(cfg.MaxConns)
	db.SetMaxIdleConns(cfg.MinConns)
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	cfg.Logger.Info(context.Background(), "Connection pool started", map[string]interface{}{
		"path":     dbPath,
		"minConns": cfg.MinConns,
		"maxConns": cfg.MaxConns,
	})

	store := &Store{db: db, logger: cfg.Logger, acquireTimeout: cfg.AcquireTimeout}

	if err := store.initializeSchema(context.Background()); err != nil {
		db.Close()
		err = fmt.Errorf("failed to initialize database schema: %w", err)
		cfg.Logger.Error(context.Background(), err, "Store initialization failed")
		return nil, err
	}
	cfg.Logger.Info(context.Background(), "Database schema initialized/verified")

	return store, nil
}

// initializeSchema creates tables if they don't exist.
// NOTE: This is a basic approach. A proper migration tool is recommended for production.
func (s *Store) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS users (
		user_id  INTEGER PRIMARY KEY,
		password TEXT NOT NULL,
		role     TEXT NOT NULL DEFAULT 'user'
	);

	CREATE TABLE IF NOT EXISTS stocks (
		stock_id      INTEGER PRIMARY KEY,
		ticker        TEXT NOT NULL UNIQUE,
		current_price REAL NOT NULL,
		volatility    REAL NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS transactions (
		transaction_id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id        INTEGER NOT NULL REFERENCES users(user_id),
		stock_id       INTEGER NOT NULL REFERENCES stocks(stock_id),
		strategy_type  TEXT NOT NULL,
		strike_price   REAL NOT NULL,
		premium        REAL NOT NULL,
		maturity_time  INTEGER NOT NULL,
		stock_quantity INTEGER NOT NULL,
		created_at     TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS audit_log (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		action     TEXT NOT NULL,
		table_name TEXT NOT NULL,
		timestamp  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		user_id    INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_transactions_user ON transactions (user_id);
	CREATE INDEX IF NOT EXISTS idx_audit_log_user ON audit_log (user_id);
	`
	_, err := s.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("failed to execute schema initialization: %w", err)
	}
	return nil
}

// WithConn runs fn with one pooled connection and releases it exactly once
// on every exit path, including a panic inside fn. Acquisition is bounded by
// the configured timeout; exhaustion surfaces as ErrPoolExhausted rather
// than a silent hang. A release failure is logged, never returned, so it
// cannot mask fn's own result.
func (s *Store) WithConn(ctx context.Context, fn func(conn *sql.Conn) error) error {
	acquireCtx, cancel := context.WithTimeout(ctx, s.acquireTimeout)
	defer cancel()

	conn, err := s.db.Conn(acquireCtx)
	if err != nil {
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			return fmt.Errorf("%w: no connection became free within %s", ports.ErrPoolExhausted, s.acquireTimeout)
		case errors.Is(err, sql.ErrConnDone):
			return fmt.Errorf("%w: %v", ports.ErrPoolClosed, err)
		default:
			return fmt.Errorf("failed to acquire connection: %w", err)
		}
	}

	defer func() {
		if cerr := conn.Close(); cerr != nil {
			s.logger.Warn(ctx, "Failed to release connection to pool", map[string]interface{}{"error": cerr.Error()})
		}
	}()

	return fn(conn)
}

// Stats exposes the pool counters, mainly for tests and the health endpoint.
func (s *Store) Stats() sql.DBStats {
	return s.db.Stats()
}

// Close drains the pool within the timeout. Partial failures during
// shutdown are logged, not escalated; only exceeding the drain timeout is
// reported as an error.
func (s *Store) Close(timeout time.Duration) error {
	s.logger.Info(context.Background(), "Draining connection pool")

	done := make(chan error, 1)
	go func() { done <- s.db.Close() }()

	select {
	case err := <-done:
		if err != nil {
			s.logger.Error(context.Background(), err, "Error while closing connection pool")
		} else {
			s.logger.Info(context.Background(), "Connection pool closed")
		}
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("%w: pool drain exceeded %s", ports.ErrTimeout, timeout)
	}
}
