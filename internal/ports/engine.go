package ports

import (
	"context"
	"database/sql"

	"optionsTracker/internal/domain"
)

// ComputationEngine is the call contract for the external derived-value
// engine. Inputs are passed through unmodified; the engine is authoritative
// over numeric ranges and strategy types, and any engine-side fault surfaces
// as an EngineError carrying the engine's message.
//
// The two calls have no data dependency and are order-independent. They are
// issued sequentially because a single connection serializes use.
type ComputationEngine interface {
	// ComputeBreakeven returns the underlying-price level at which the
	// strategy's profit is zero.
	ComputeBreakeven(ctx context.Context, conn *sql.Conn, strategy domain.StrategyType, currentPrice, strikePrice, premium float64) (float64, error)
	// ComputeRiskRate returns the engine's derived exposure metric for the
	// strategy.
	ComputeRiskRate(ctx context.Context, conn *sql.Conn, strategy domain.StrategyType, currentPrice, strikePrice, premium float64) (float64, error)
}
