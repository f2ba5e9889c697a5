package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"optionsTracker/internal/domain"
	"optionsTracker/internal/ports"

	"github.com/mattn/go-sqlite3"
)

// Repositories operate on a connection handed in by the guard scope. They
// hold no connection state of their own, so one instance serves all
// concurrent operations.

// --- TransactionRepository ---

// TransactionRepository implements ports.TransactionRepository.
type TransactionRepository struct {
	logger ports.Logger
}

// NewTransactionRepository creates the transaction writer/reader.
func NewTransactionRepository(logger ports.Logger) (*TransactionRepository, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for transaction repository")
	}
	return &TransactionRepository{logger: logger}, nil
}

// Insert validates the seven mandatory fields in fixed order before issuing
// any store call, then persists the transaction. The write commits
// immediately; the store assigns the transaction ID.
func (r *TransactionRepository) Insert(ctx context.Context, conn *sql.Conn, req *domain.TransactionRequest) (int64, error) {
	if err := validateRequest(req); err != nil {
		return 0, err
	}

	const query = `
	INSERT INTO transactions (user_id, stock_id, strategy_type, strike_price, premium, maturity_time, stock_quantity)
	VALUES (?, ?, ?, ?, ?, ?, ?)`

	result, err := conn.ExecContext(ctx, query,
		*req.UserID, *req.StockID, string(*req.StrategyType), *req.StrikePrice, *req.Premium, *req.MaturityTime, *req.StockQuantity)
	if err != nil {
		return 0, fmt.Errorf("%w: insert transaction for user %d: %v", ports.ErrInsertFailed, *req.UserID, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("%w: last insert ID for user %d: %v", ports.ErrInsertFailed, *req.UserID, err)
	}
	r.logger.Debug(ctx, "Transaction inserted", map[string]interface{}{"transactionID": id, "userID": *req.UserID})
	return id, nil
}

// validateRequest checks presence of the mandatory fields. The check order
// is fixed: userId, stockId, strategyType, strikePrice, premium,
// maturityTime, stockQuantity; the first nil field is reported.
func validateRequest(req *domain.TransactionRequest) error {
	if req == nil {
		return &ports.ValidationError{Field: "userId"}
	}
	switch {
	case req.UserID == nil:
		return &ports.ValidationError{Field: "userId"}
	case req.StockID == nil:
		return &ports.ValidationError{Field: "stockId"}
	case req.StrategyType == nil:
		return &ports.ValidationError{Field: "strategyType"}
	case req.StrikePrice == nil:
		return &ports.ValidationError{Field: "strikePrice"}
	case req.Premium == nil:
		return &ports.ValidationError{Field: "premium"}
	case req.MaturityTime == nil:
		return &ports.ValidationError{Field: "maturityTime"}
	case req.StockQuantity == nil:
		return &ports.ValidationError{Field: "stockQuantity"}
	}
	return nil
}

// FindByUser retrieves the user's transactions in insertion order. An empty
// result is valid and denotes a user with no transactions.
func (r *TransactionRepository) FindByUser(ctx context.Context, conn *sql.Conn, userID int64) ([]domain.TransactionRecord, error) {
	const query = `
	SELECT transaction_id, user_id, stock_id, strategy_type, strike_price, premium, maturity_time, stock_quantity, created_at
	FROM transactions
	WHERE user_id = ?
	ORDER BY transaction_id`

	rows, err := conn.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: query transactions for user %d: %v", ports.ErrQueryFailed, userID, err)
	}
	defer rows.Close()

	records := make([]domain.TransactionRecord, 0)
	for rows.Next() {
		rec, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan transaction for user %d: %v", ports.ErrQueryFailed, userID, err)
		}
		records = append(records, *rec)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate transactions for user %d: %v", ports.ErrQueryFailed, userID, err)
	}
	return records, nil
}

// --- UserRepository ---

// UserRepository implements ports.UserRepository.
type UserRepository struct {
	logger ports.Logger
}

// NewUserRepository creates the user repository.
func NewUserRepository(logger ports.Logger) (*UserRepository, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for user repository")
	}
	return &UserRepository{logger: logger}, nil
}

// Create inserts a new user with a hashed password.
func (r *UserRepository) Create(ctx context.Context, conn *sql.Conn, user *domain.User) error {
	const query = `INSERT INTO users (user_id, password, role) VALUES (?, ?, ?)`

	role := user.Role
	if role == "" {
		role = domain.RoleUser
	}
	_, err := conn.ExecContext(ctx, query, user.ID, user.PasswordHash, string(role))
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
			return fmt.Errorf("%w: user %d", ports.ErrDuplicateEntry, user.ID)
		}
		return fmt.Errorf("%w: insert user %d: %v", ports.ErrInsertFailed, user.ID, err)
	}
	r.logger.Debug(ctx, "User created", map[string]interface{}{"userID": user.ID, "role": string(role)})
	return nil
}

// FindByID retrieves a user by ID.
// Returns nil, nil if no such user exists.
func (r *UserRepository) FindByID(ctx context.Context, conn *sql.Conn, id int64) (*domain.User, error) {
	const query = `SELECT user_id, password, role FROM users WHERE user_id = ?`

	u := &domain.User{}
	var role string
	err := conn.QueryRowContext(ctx, query, id).Scan(&u.ID, &u.PasswordHash, &role)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: query user %d: %v", ports.ErrQueryFailed, id, err)
	}
	u.Role = domain.Role(role)
	return u, nil
}

// --- AuditLogRepository ---

// AuditLogRepository implements ports.AuditLogRepository.
type AuditLogRepository struct {
	logger ports.Logger
}

// NewAuditLogRepository creates the audit log repository.
func NewAuditLogRepository(logger ports.Logger) (*AuditLogRepository, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for audit log repository")
	}
	return &AuditLogRepository{logger: logger}, nil
}

// Record appends an audit entry. The store owns the timestamp.
func (r *AuditLogRepository) Record(ctx context.Context, conn *sql.Conn, entry *domain.AuditLogEntry) error {
	const query = `INSERT INTO audit_log (action, table_name, user_id) VALUES (?, ?, ?)`

	_, err := conn.ExecContext(ctx, query, entry.Action, entry.TableName, entry.UserID)
	if err != nil {
		return fmt.Errorf("%w: insert audit entry for user %d: %v", ports.ErrInsertFailed, entry.UserID, err)
	}
	return nil
}

// FindVisible retrieves the audit entries visible under the given role. The
// role is threaded in explicitly rather than parked on the session, so
// nothing role-scoped can survive the connection's return to the pool.
func (r *AuditLogRepository) FindVisible(ctx context.Context, conn *sql.Conn, role domain.Role, userID int64) ([]domain.AuditLogEntry, error) {
	const allQuery = `SELECT id, action, table_name, timestamp, user_id FROM audit_log ORDER BY id`
	const ownQuery = `SELECT id, action, table_name, timestamp, user_id FROM audit_log WHERE user_id = ? ORDER BY id`

	var (
		rows *sql.Rows
		err  error
	)
	if role == domain.RoleAdmin {
		rows, err = conn.QueryContext(ctx, allQuery)
	} else {
		rows, err = conn.QueryContext(ctx, ownQuery, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: query audit log for user %d: %v", ports.ErrQueryFailed, userID, err)
	}
	defer rows.Close()

	entries := make([]domain.AuditLogEntry, 0)
	for rows.Next() {
		var e domain.AuditLogEntry
		if err := rows.Scan(&e.ID, &e.Action, &e.TableName, &e.Timestamp, &e.UserID); err != nil {
			return nil, fmt.Errorf("%w: scan audit entry: %v", ports.ErrQueryFailed, err)
		}
		entries = append(entries, e)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate audit entries: %v", ports.ErrQueryFailed, err)
	}
	return entries, nil
}

// --- StockRepository ---

// StockRepository implements ports.StockRepository.
type StockRepository struct {
	logger ports.Logger
}

// NewStockRepository creates the stock catalog repository.
func NewStockRepository(logger ports.Logger) (*StockRepository, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for stock repository")
	}
	return &StockRepository{logger: logger}, nil
}

// Upsert inserts the stock or refreshes its price and volatility in place.
func (r *StockRepository) Upsert(ctx context.Context, conn *sql.Conn, stock *domain.Stock) error {
	const query = `
	INSERT INTO stocks (stock_id, ticker, current_price, volatility)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(stock_id) DO UPDATE SET
		ticker = excluded.ticker,
		current_price = excluded.current_price,
		volatility = excluded.volatility`

	_, err := conn.ExecContext(ctx, query, stock.ID, stock.Ticker, stock.CurrentPrice, stock.Volatility)
	if err != nil {
		return fmt.Errorf("%w: upsert stock %d (%s): %v", ports.ErrInsertFailed, stock.ID, stock.Ticker, err)
	}
	r.logger.Debug(ctx, "Stock upserted", map[string]interface{}{"stockID": stock.ID, "ticker": stock.Ticker})
	return nil
}

// FindByID retrieves a stock by ID.
// Returns nil, nil if no such stock exists.
func (r *StockRepository) FindByID(ctx context.Context, conn *sql.Conn, id int64) (*domain.Stock, error) {
	const query = `SELECT stock_id, ticker, current_price, volatility FROM stocks WHERE stock_id = ?`

	s := &domain.Stock{}
	err := conn.QueryRowContext(ctx, query, id).Scan(&s.ID, &s.Ticker, &s.CurrentPrice, &s.Volatility)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: query stock %d: %v", ports.ErrQueryFailed, id, err)
	}
	return s, nil
}

// --- Helper Scan Functions ---

// scanner defines an interface compatible with *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

// scanTransaction scans a row into a domain.TransactionRecord.
func scanTransaction(s scanner) (*domain.TransactionRecord, error) {
	rec := &domain.TransactionRecord{}
	var strategy string
	err := s.Scan(
		&rec.ID, &rec.UserID, &rec.StockID, &strategy, &rec.StrikePrice,
		&rec.Premium, &rec.MaturityTime, &rec.StockQuantity, &rec.CreatedAt)
	if err != nil {
		return nil, err // Handle sql.ErrNoRows in the caller
	}
	rec.StrategyType = domain.StrategyType(strategy)
	return rec, nil
}
