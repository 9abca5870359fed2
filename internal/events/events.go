package events

import "time"

const Topic = "order-events"

const (
	TypeOrderCreated       = "order.created"
	TypeOrderPaid          = "order.paid"
	TypeOrderStatusChanged = "order.status_changed"
	TypeOrderUpdated       = "order.updated"
)

// OrderEvent is one order lifecycle event on the wire. CampaignID and Source
// ride along for admin edits; nil means the field was not posted.
type OrderEvent struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	OrderID    int64     `json:"order_id"`
	OldStatus  string    `json:"old_status,omitempty"`
	NewStatus  string    `json:"new_status,omitempty"`
	CampaignID *int64    `json:"campaign_id,omitempty"`
	Source     *string   `json:"source,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}
