package ports

import (
	"context"
	"database/sql"
)

// ConnScope is the scoped connection guard: it acquires one pooled
// connection per unit of work and guarantees release on every exit path,
// including a panic inside fn. Release failures are logged, never returned —
// a release failure must not mask the work's own result.
type ConnScope interface {
	WithConn(ctx context.Context, fn func(conn *sql.Conn) error) error
}
