package billing

import (
	"time"

	"github.com/shopspring/decimal"
)

// Line is one cart entry submitted for billing.
type Line struct {
	ProductID string `json:"id"`
	Qty       int    `json:"qty"`
}

type Item struct {
	ProductID string          `json:"id"`
	Name      string          `json:"name"`
	Qty       int             `json:"qty"`
	Price     decimal.Decimal `json:"price"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

type Bill struct {
	ID         string          `json:"id"`
	MerchantID string          `json:"user_id"`
	Items      []Item          `json:"items"`
	Total      decimal.Decimal `json:"total"`
	CreatedAt  time.Time       `json:"created_at"`
}
