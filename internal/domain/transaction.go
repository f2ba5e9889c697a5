package domain

import "time"

// TransactionRequest carries the seven mandatory fields of a new
// derivative-strategy transaction. Fields are pointers so that an absent
// field is distinguishable from a zero value (premium of 0 is legal, a
// missing premium is not); the writer rejects the first nil it finds.
type TransactionRequest struct {
	UserID        *int64        `json:"userId"`
	StockID       *int64        `json:"stockId"`
	StrategyType  *StrategyType `json:"strategyType"`
	StrikePrice   *float64      `json:"strikePrice"`
	Premium       *float64      `json:"premium"`
	MaturityTime  *int64        `json:"maturityTime"`
	StockQuantity *int64        `json:"stockQuantity"`
}

// TransactionRecord is a persisted transaction. The ID is assigned by the
// store on insert; CreatedAt is owned by the store. Records are immutable
// once written.
type TransactionRecord struct {
	ID            int64        `json:"transactionId"`
	UserID        int64        `json:"userId"`
	StockID       int64        `json:"stockId"`
	StrategyType  StrategyType `json:"strategyType"`
	StrikePrice   float64      `json:"strikePrice"`
	Premium       float64      `json:"premium"`
	MaturityTime  int64        `json:"maturityTime"`
	StockQuantity int64        `json:"stockQuantity"`
	CreatedAt     time.Time    `json:"createdAt"`
}

// StrategyResult is the outcome of a full calculate-and-store orchestration.
// On a partial success (transaction committed but the history read-back
// failed) TransactionID is set and UserTransactions is nil.
type StrategyResult struct {
	Breakeven        float64             `json:"breakeven"`
	RiskRate         float64             `json:"riskRate"`
	TransactionID    int64               `json:"transactionId"`
	UserTransactions []TransactionRecord `json:"userTransactions"`
}
