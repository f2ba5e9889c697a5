package ports

import (
	"errors"
	"fmt"
)

// Standard application-level errors.
// Adapters should wrap underlying infrastructure errors with these standard errors.
var (
	// General Errors
	ErrUnknown         = errors.New("unknown error occurred")
	ErrNotFound        = errors.New("resource not found")
	ErrTimeout         = errors.New("operation timed out")
	ErrContextCanceled = errors.New("operation canceled via context")
	ErrConfiguration   = errors.New("invalid or missing configuration")

	// Pool Specific Errors
	ErrStoreUnreachable = errors.New("backing store is unreachable")
	ErrPoolExhausted    = errors.New("connection pool exhausted")
	ErrPoolClosed       = errors.New("connection pool is closed")

	// Store Specific Errors
	ErrDuplicateEntry = errors.New("database record already exists")
	ErrQueryFailed    = errors.New("database query failed")
	ErrInsertFailed   = errors.New("database insert failed")

	// Engine Specific Errors
	ErrEngineCallFailed = errors.New("computation engine call failed")

	// Credential Errors
	ErrUserExists         = errors.New("user ID already exists")
	ErrInvalidCredentials = errors.New("invalid user ID or password")
)

// ValidationError reports the first mandatory transaction field found
// missing. Detected before any store call is issued, so a failed validation
// leaves no partial write behind.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("missing or null value for required field: %s", e.Field)
}

// NotFoundError reports a referenced user that does not exist.
type NotFoundError struct {
	UserID int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("user %d not found", e.UserID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// EngineError carries the computation engine's own message for a failed
// call. Inputs are never validated client-side, so any fault (unknown
// strategy type, computation error) originates in the engine.
type EngineError struct {
	Call string // engine function that failed
	Err  error
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("engine call %s failed: %v", e.Call, e.Err)
}

func (e *EngineError) Unwrap() error { return e.Err }

// OrchestrationStep tags which step of the calculate-and-store sequence
// failed.
type OrchestrationStep string

const (
	StepBreakeven OrchestrationStep = "compute_breakeven"
	StepRiskRate  OrchestrationStep = "compute_risk_rate"
	StepInsert    OrchestrationStep = "insert_transaction"
	StepReadBack  OrchestrationStep = "read_user_transactions"
)

// OrchestrationError wraps a step failure from the multi-step orchestration.
// Partial marks the read-back step failing after the insert committed: the
// write is durable and the caller still receives the transaction ID
// alongside this error.
type OrchestrationError struct {
	Step    OrchestrationStep
	Partial bool
	Err     error
}

func (e *OrchestrationError) Error() string {
	return fmt.Sprintf("orchestration step %s failed: %v", e.Step, e.Err)
}

func (e *OrchestrationError) Unwrap() error { return e.Err }
