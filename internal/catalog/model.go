package catalog

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID        string          `json:"id"`
	OwnerID   string          `json:"user_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Stock     int             `json:"stock"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Patch lists the fields of an update. Nil fields are left as they are.
type Patch struct {
	Name  *string
	Price *decimal.Decimal
	Stock *int
}

func (p Patch) Empty() bool {
	return p.Name == nil && p.Price == nil && p.Stock == nil
}

func (p Patch) apply(prod *Product) {
	if p.Name != nil {
		prod.Name = *p.Name
	}
	if p.Price != nil {
		prod.Price = *p.Price
	}
	if p.Stock != nil {
		prod.Stock = *p.Stock
	}
}
