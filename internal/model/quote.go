package model

// Quote is a priced offer from one liquidity venue for a given order.
// Quotes are scoped to a single routing attempt and never persisted.
type Quote struct {
	Venue     string  `json:"venue"`
	Price     float64 `json:"price"`
	Fee       float64 `json:"fee"`
	AmountOut float64 `json:"amountOut"`
}

// Zero reports whether the quote carries no liquidity for the pair.
func (q Quote) Zero() bool {
	return q.Price == 0
}

// ExecutionResult is the outcome of a settlement attempt.
type ExecutionResult struct {
	TxID          string  `json:"txHash"`
	ExecutedPrice float64 `json:"executedPrice"`
	Success       bool    `json:"success"`
}
