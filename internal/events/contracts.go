package events

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	EventTypeBillCreated       = "BillCreated"
	EventTypeStockDepleted     = "StockDepleted"
	EventTypeSessionConsumed   = "PaymentSessionConsumed"
	EventTypeCheckoutCompleted = "PaymentCheckoutCompleted"

	billCreatedSchema       = "pos.bill.created.v1"
	stockDepletedSchema     = "pos.stock.depleted.v1"
	sessionConsumedSchema   = "pos.payment.session.consumed.v1"
	checkoutCompletedSchema = "pos.payment.checkout.completed.v1"
)

type BillLine struct {
	ProductID string          `json:"productId"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

type BillCreatedPayload struct {
	BillID     string          `json:"billId"`
	MerchantID string          `json:"merchantId"`
	Items      []BillLine      `json:"items"`
	Total      decimal.Decimal `json:"total"`
	Timestamp  time.Time       `json:"timestamp"`
}

type StockDepletedPayload struct {
	MerchantID string    `json:"merchantId"`
	ProductID  string    `json:"productId"`
	Timestamp  time.Time `json:"timestamp"`
}

type SessionConsumedPayload struct {
	SessionID  string    `json:"sessionId"`
	MerchantID string    `json:"merchantId"`
	ProductID  string    `json:"productId"`
	Quantity   int       `json:"quantity"`
	Remaining  int       `json:"remaining"`
	Timestamp  time.Time `json:"timestamp"`
}

// CheckoutCompletedPayload is relayed from the payment gateway's webhook.
type CheckoutCompletedPayload struct {
	SessionID string `json:"session_id"`
}
