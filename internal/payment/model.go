package payment

import "time"

type Status string

const (
	StatusPending  Status = "pending"
	StatusPaid     Status = "paid"
	StatusConsumed Status = "consumed"
)

// Session is the ledger record of one hosted checkout. It moves
// pending -> paid -> consumed; consumed is final and is reached in the same
// atomic step as the stock decrement.
type Session struct {
	ID        string    `json:"session_id"`
	OwnerID   string    `json:"user_id"`
	ProductID string    `json:"item_id"`
	Quantity  int       `json:"quantity"`
	Status    Status    `json:"status"`
	URL       string    `json:"url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Metadata keys attached to every gateway session.
const (
	MetaItemID   = "item_id"
	MetaUserID   = "user_id"
	MetaQuantity = "quantity"
)
