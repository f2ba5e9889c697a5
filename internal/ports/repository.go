package ports

import (
	"context"
	"database/sql"

	"optionsTracker/internal/domain"
)

// Repositories operate on a connection handed to them by the scoped
// connection guard; no repository acquires a connection on its own. The
// *sql.Conn is exclusively owned by the guard scope that acquired it and
// must never be retained past the call.

// TransactionRepository stores and retrieves derivative-strategy
// transactions.
type TransactionRepository interface {
	// Insert validates the seven mandatory request fields in fixed order
	// (userId, stockId, strategyType, strikePrice, premium, maturityTime,
	// stockQuantity) and persists the transaction. Returns the
	// store-assigned transaction ID. The write commits immediately.
	Insert(ctx context.Context, conn *sql.Conn, req *domain.TransactionRequest) (int64, error)
	// FindByUser retrieves the user's transactions in insertion order.
	// An empty slice is a valid result, not an error.
	FindByUser(ctx context.Context, conn *sql.Conn, userID int64) ([]domain.TransactionRecord, error)
}

// UserRepository reads and creates user accounts. This layer never deletes
// users and never sees plaintext passwords.
type UserRepository interface {
	// Create inserts a new user with a hashed password.
	Create(ctx context.Context, conn *sql.Conn, user *domain.User) error
	// FindByID retrieves a user by ID.
	// Returns nil, nil if no such user exists.
	FindByID(ctx context.Context, conn *sql.Conn, id int64) (*domain.User, error)
}

// AuditLogRepository records and reads audit entries. Entries are read-only
// once written; visibility of reads is gated by the role resolved for the
// caller.
type AuditLogRepository interface {
	// Record appends an audit entry for a store mutation.
	Record(ctx context.Context, conn *sql.Conn, entry *domain.AuditLogEntry) error
	// FindVisible retrieves the entries visible under the given role:
	// admins see every entry, other roles only entries for their own user.
	FindVisible(ctx context.Context, conn *sql.Conn, role domain.Role, userID int64) ([]domain.AuditLogEntry, error)
}

// StockRepository maintains the tracked stock catalog. The catalog is owned
// by an external collaborator; transactions only reference stocks by ID.
type StockRepository interface {
	// Upsert inserts the stock or updates its price/volatility in place.
	Upsert(ctx context.Context, conn *sql.Conn, stock *domain.Stock) error
	// FindByID retrieves a stock by ID.
	// Returns nil, nil if no such stock exists.
	FindByID(ctx context.Context, conn *sql.Conn, id int64) (*domain.Stock, error)
}
