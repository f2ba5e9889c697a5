package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"optionsTracker/internal/domain"
	"optionsTracker/internal/ports"

	"github.com/mattn/go-sqlite3"
)

// The derived-value engine lives inside the store, mirroring a stored
// package of scalar functions: calculate_breakeven and calculate_risk_rate
// are registered on every physical connection by the driver's ConnectHook,
// and the gateway below reaches them with plain procedure-style SELECTs.
// Engine faults come back as store-level errors carrying the engine's
// message.

func registerEngineFuncs(conn *sqlite3.SQLiteConn) error {
	if err := conn.RegisterFunc("calculate_breakeven", engineBreakeven, true); err != nil {
		return err
	}
	return conn.RegisterFunc("calculate_risk_rate", engineRiskRate, true)
}

// engineBreakeven is the engine-side breakeven formula per strategy. The
// gateway never inspects these numbers; the engine is authoritative.
func engineBreakeven(strategyType string, currentPrice, strikePrice, premium float64) (float64, error) {
	switch domain.StrategyType(strategyType) {
	case domain.StrategyProtectivePut:
		return currentPrice + premium, nil
	case domain.StrategyCoveredCall:
		return currentPrice - premium, nil
	case domain.StrategyCashSecuredPut:
		return strikePrice - premium, nil
	}
	return 0, fmt.Errorf("unknown strategy type: %q", strategyType)
}

// engineRiskRate is the engine-side exposure metric per strategy, expressed
// as maximum loss relative to the current underlying price.
func engineRiskRate(strategyType string, currentPrice, strikePrice, premium float64) (float64, error) {
	if currentPrice == 0 {
		return 0, fmt.Errorf("current price must be non-zero")
	}
	switch domain.StrategyType(strategyType) {
	case domain.StrategyProtectivePut:
		return (currentPrice - strikePrice + premium) / currentPrice, nil
	case domain.StrategyCoveredCall:
		return (currentPrice - premium) / currentPrice, nil
	case domain.StrategyCashSecuredPut:
		return (strikePrice - premium) / currentPrice, nil
	}
	return 0, fmt.Errorf("unknown strategy type: %q", strategyType)
}

// Engine implements ports.ComputationEngine over the in-store functions.
type Engine struct {
	logger ports.Logger
}

// NewEngine creates the derived metric gateway.
func NewEngine(logger ports.Logger) (*Engine, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for computation engine")
	}
	return &Engine{logger: logger}, nil
}

// ComputeBreakeven issues one engine call and returns its scalar output.
func (e *Engine) ComputeBreakeven(ctx context.Context, conn *sql.Conn, strategy domain.StrategyType, currentPrice, strikePrice, premium float64) (float64, error) {
	return e.call(ctx, conn, "calculate_breakeven", strategy, currentPrice, strikePrice, premium)
}

// ComputeRiskRate issues one engine call and returns its scalar output.
func (e *Engine) ComputeRiskRate(ctx context.Context, conn *sql.Conn, strategy domain.StrategyType, currentPrice, strikePrice, premium float64) (float64, error) {
	return e.call(ctx, conn, "calculate_risk_rate", strategy, currentPrice, strikePrice, premium)
}

func (e *Engine) call(ctx context.Context, conn *sql.Conn, fn string, strategy domain.StrategyType, currentPrice, strikePrice, premium float64) (float64, error) {
	// Inputs pass through unmodified; no client-side range validation.
	query := fmt.Sprintf("SELECT %s(?, ?, ?, ?)", fn)

	var out float64
	err := conn.QueryRowContext(ctx, query, string(strategy), currentPrice, strikePrice, premium).Scan(&out)
	if err != nil {
		e.logger.Debug(ctx, "Engine call failed", map[string]interface{}{"call": fn, "strategy": string(strategy)})
		return 0, &ports.EngineError{Call: fn, Err: err}
	}
	return out, nil
}
