package domain

// Stock is a tracked underlying. The catalog is maintained by an external
// collaborator; transactions reference stocks by ID only.
type Stock struct {
	ID           int64   `json:"stockId"`
	Ticker       string  `json:"ticker"`
	CurrentPrice float64 `json:"currentPrice"`
	Volatility   float64 `json:"volatility"`
}
