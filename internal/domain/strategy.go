package domain

// StrategyType identifies the derivative strategy a transaction records.
// The values match what the computation engine accepts.
type StrategyType string

const (
	StrategyProtectivePut  StrategyType = "Protective Put"
	StrategyCoveredCall    StrategyType = "Covered Call"
	StrategyCashSecuredPut StrategyType = "Cash Secured Put"
)

// IsValid reports whether the strategy type is one the engine knows about.
// The engine remains authoritative; this exists only for early feedback at
// the HTTP boundary.
func (s StrategyType) IsValid() bool {
	switch s {
	case StrategyProtectivePut, StrategyCoveredCall, StrategyCashSecuredPut:
		return true
	}
	return false
}

// DerivedMetrics holds the two engine-computed risk figures for a strategy.
type DerivedMetrics struct {
	Breakeven float64 `json:"breakeven"`
	RiskRate  float64 `json:"riskRate"`
}
