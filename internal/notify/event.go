package notify

import (
	"encoding/json"
	"time"

	"swap-enginev1/internal/model"
)

// Extra carries the status-specific fields of an order update.
// Zero-valued fields are omitted from the wire frame.
type Extra struct {
	Route         string  `json:"route,omitempty"`
	Price         float64 `json:"price,omitempty"`
	TxHash        string  `json:"txHash,omitempty"`
	ExecutedPrice float64 `json:"executedPrice,omitempty"`
	Reason        string  `json:"reason,omitempty"`
}

// Event is the wire format of a single order update frame:
// {"type":"ORDER_UPDATE","orderId":...,"status":...,<extra>,"timestamp":...}.
type Event struct {
	Type    string       `json:"type"`
	OrderID string       `json:"orderId"`
	Status  model.Status `json:"status"`
	Extra
	Timestamp string `json:"timestamp"`
}

// NewEvent builds an ORDER_UPDATE event stamped with the current UTC time.
func NewEvent(orderID string, status model.Status, extra Extra) Event {
	return Event{
		Type:      "ORDER_UPDATE",
		OrderID:   orderID,
		Status:    status,
		Extra:     extra,
		Timestamp: time.Now().UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	}
}

// Marshal serializes the event for a single text frame.
func (e Event) Marshal() []byte {
	buf, _ := json.Marshal(e)
	return buf
}
