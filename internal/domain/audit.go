package domain

import "time"

// AuditLogEntry is a read-only record of a store mutation. Which entries a
// caller can see depends on the role resolved for them at read time.
type AuditLogEntry struct {
	ID        int64     `json:"id"`
	Action    string    `json:"action"`
	TableName string    `json:"table"`
	Timestamp time.Time `json:"timestamp"`
	UserID    int64     `json:"userId"`
}
