package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"optionsTracker/internal/domain"
	"optionsTracker/internal/ports"
)

// StrategyService orchestrates the derivative-strategy operations: the
// calculate-and-store sequence, the calculator-only preview, the history
// read and the role-gated audit read. Each operation runs inside one guard
// scope; the service never touches a connection outside of it.
type StrategyService struct {
	logger ports.Logger
	scope  ports.ConnScope
	engine ports.ComputationEngine
	txRepo ports.TransactionRepository
	users  ports.UserRepository
	audit  ports.AuditLogRepository
	stocks ports.StockRepository
}

// NewStrategyService creates a new application service instance.
func NewStrategyService(
	logger ports.Logger,
	scope ports.ConnScope,
	engine ports.ComputationEngine,
	txRepo ports.TransactionRepository,
	users ports.UserRepository,
	audit ports.AuditLogRepository,
	stocks ports.StockRepository,
) (*StrategyService, error) {

	// Validate dependencies
	if logger == nil || scope == nil || engine == nil || txRepo == nil || users == nil || audit == nil || stocks == nil {
		return nil, fmt.Errorf("missing required dependencies for StrategyService")
	}

	return &StrategyService{
		logger: logger,
		scope:  scope,
		engine: engine,
		txRepo: txRepo,
		users:  users,
		audit:  audit,
		stocks: stocks,
	}, nil
}

// CalculateAndStore runs the full sequence in a single connection scope:
// compute breakeven, compute risk rate, insert the transaction, read back
// the user's history. A failing step aborts the remaining ones and the
// returned error names the step.
//
// If the read-back fails after the insert committed, the result is returned
// alongside the error (Partial set) so the committed transaction ID is not
// discarded. Steps 1-2 failing leave no persisted state.
func (s *StrategyService) CalculateAndStore(ctx context.Context, req *domain.TransactionRequest, currentPrice float64) (*domain.StrategyResult, error) {
	var result *domain.StrategyResult

	err := s.scope.WithConn(ctx, func(conn *sql.Conn) error {
		// Calls already issued must run to completion even if the caller
		// disconnects; each write auto-commits, so aborting midway would
		// leave no way to roll back.
		opCtx := context.WithoutCancel(ctx)

		strategy, strikePrice, premium := engineInputs(req)

		breakeven, err := s.engine.ComputeBreakeven(opCtx, conn, strategy, currentPrice, strikePrice, premium)
		if err != nil {
			return &ports.OrchestrationError{Step: ports.StepBreakeven, Err: err}
		}
		s.logger.Debug(ctx, "Breakeven computed", map[string]interface{}{"breakeven": breakeven})

		riskRate, err := s.engine.ComputeRiskRate(opCtx, conn, strategy, currentPrice, strikePrice, premium)
		if err != nil {
			return &ports.OrchestrationError{Step: ports.StepRiskRate, Err: err}
		}
		s.logger.Debug(ctx, "Risk rate computed", map[string]interface{}{"riskRate": riskRate})

		transactionID, err := s.txRepo.Insert(opCtx, conn, req)
		if err != nil {
			return &ports.OrchestrationError{Step: ports.StepInsert, Err: err}
		}
		s.logger.Info(ctx, "Transaction stored", map[string]interface{}{"transactionID": transactionID})

		// The audit trail is best effort: a failed entry must not undo an
		// already-committed transaction.
		if aerr := s.audit.Record(opCtx, conn, &domain.AuditLogEntry{
			Action:    "INSERT",
			TableName: "transactions",
			UserID:    *req.UserID,
		}); aerr != nil {
			s.logger.Warn(ctx, "Failed to record audit entry", map[string]interface{}{"error": aerr.Error()})
		}

		// The insert is durable from here on: carry the ID even if the
		// read-back fails.
		result = &domain.StrategyResult{
			Breakeven:     breakeven,
			RiskRate:      riskRate,
			TransactionID: transactionID,
		}

		records, err := s.txRepo.FindByUser(opCtx, conn, *req.UserID)
		if err != nil {
			return &ports.OrchestrationError{Step: ports.StepReadBack, Partial: true, Err: err}
		}
		result.UserTransactions = records
		return nil
	})

	if err != nil {
		var oe *ports.OrchestrationError
		if errors.As(err, &oe) && oe.Partial {
			return result, err
		}
		return nil, err
	}
	return result, nil
}

// Calculate is the calculator-only variant: it performs the two engine
// calls and persists nothing.
func (s *StrategyService) Calculate(ctx context.Context, strategy domain.StrategyType, currentPrice, strikePrice, premium float64) (*domain.DerivedMetrics, error) {
	var metrics *domain.DerivedMetrics

	err := s.scope.WithConn(ctx, func(conn *sql.Conn) error {
		opCtx := context.WithoutCancel(ctx)

		breakeven, err := s.engine.ComputeBreakeven(opCtx, conn, strategy, currentPrice, strikePrice, premium)
		if err != nil {
			return &ports.OrchestrationError{Step: ports.StepBreakeven, Err: err}
		}
		riskRate, err := s.engine.ComputeRiskRate(opCtx, conn, strategy, currentPrice, strikePrice, premium)
		if err != nil {
			return &ports.OrchestrationError{Step: ports.StepRiskRate, Err: err}
		}
		metrics = &domain.DerivedMetrics{Breakeven: breakeven, RiskRate: riskRate}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return metrics, nil
}

// UserTransactions returns the user's transaction history in insertion
// order. An empty history is a valid result.
func (s *StrategyService) UserTransactions(ctx context.Context, userID int64) ([]domain.TransactionRecord, error) {
	var records []domain.TransactionRecord

	err := s.scope.WithConn(ctx, func(conn *sql.Conn) error {
		var err error
		records, err = s.txRepo.FindByUser(context.WithoutCancel(ctx), conn, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// AuditLogsForUser resolves the user's role and returns the audit entries
// visible under it. All three steps share one connection scope and run in
// order: an absent user short-circuits before any audit access, and the
// resolved role is threaded explicitly into the read so no elevation
// outlives the scope.
func (s *StrategyService) AuditLogsForUser(ctx context.Context, userID int64) ([]domain.AuditLogEntry, error) {
	var entries []domain.AuditLogEntry

	err := s.scope.WithConn(ctx, func(conn *sql.Conn) error {
		opCtx := context.WithoutCancel(ctx)

		user, err := s.users.FindByID(opCtx, conn, userID)
		if err != nil {
			return err
		}
		if user == nil {
			return &ports.NotFoundError{UserID: userID}
		}

		entries, err = s.audit.FindVisible(opCtx, conn, user.Role, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// UpsertStock creates or refreshes a tracked stock.
func (s *StrategyService) UpsertStock(ctx context.Context, stock *domain.Stock) error {
	return s.scope.WithConn(ctx, func(conn *sql.Conn) error {
		return s.stocks.Upsert(context.WithoutCancel(ctx), conn, stock)
	})
}

// StockByID returns a tracked stock, or nil if it is not in the catalog.
func (s *StrategyService) StockByID(ctx context.Context, stockID int64) (*domain.Stock, error) {
	var stock *domain.Stock

	err := s.scope.WithConn(ctx, func(conn *sql.Conn) error {
		var err error
		stock, err = s.stocks.FindByID(context.WithoutCancel(ctx), conn, stockID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return stock, nil
}

// engineInputs extracts the engine-call arguments from the request without
// validating them: a missing field is forwarded as its zero value and the
// engine remains the authority on rejecting it.
func engineInputs(req *domain.TransactionRequest) (domain.StrategyType, float64, float64) {
	var (
		strategy    domain.StrategyType
		strikePrice float64
		premium     float64
	)
	if req == nil {
		return strategy, strikePrice, premium
	}
	if req.StrategyType != nil {
		strategy = *req.StrategyType
	}
	if req.StrikePrice != nil {
		strikePrice = *req.StrikePrice
	}
	if req.Premium != nil {
		premium = *req.Premium
	}
	return strategy, strikePrice, premium
}
