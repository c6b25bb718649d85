package model

// OrderType classifies how an order should be priced.
type OrderType string

const (
	OrderTypeMarket OrderType = "MARKET"
	// LIMIT and SNIPER are reserved. The pipeline rejects them without retry.
	OrderTypeLimit  OrderType = "LIMIT"
	OrderTypeSniper OrderType = "SNIPER"
)

// Side is the direction of the trade.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Status is the order's position in the execution state machine:
// PENDING → ROUTING → BUILDING → SUBMITTED → CONFIRMED | FAILED.
// The field is observational; the worker drives the authoritative
// progression and the notification stream is the externally visible record.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusRouting   Status = "ROUTING"
	StatusBuilding  Status = "BUILDING"
	StatusSubmitted Status = "SUBMITTED"
	StatusConfirmed Status = "CONFIRMED"
	StatusFailed    Status = "FAILED"

	// StatusRoutingComplete is informational only — it is emitted on the
	// notification stream between ROUTING and BUILDING but never stored.
	StatusRoutingComplete Status = "ROUTING_COMPLETE"
)

// Terminal reports whether s ends the state machine.
func (s Status) Terminal() bool {
	return s == StatusConfirmed || s == StatusFailed
}

// Order is a single requested asset exchange. ID is assigned at intake and
// is the correlation key across queue, router, executor and notification hub.
type Order struct {
	ID          string    `json:"id"`
	Type        OrderType `json:"type"`
	Side        Side      `json:"side"`
	InputToken  string    `json:"inputToken"`
	OutputToken string    `json:"outputToken"`
	Amount      float64   `json:"amount"`
	Status      Status    `json:"status"`
}

// Pair returns the ordered trading pair key, e.g. "SOL-USDC".
func (o Order) Pair() string {
	return o.InputToken + "-" + o.OutputToken
}
