package payment

import (
	"context"
	"errors"
)

// ErrUnknownSession is returned by a Gateway that has no session with the id.
var ErrUnknownSession = errors.New("gateway: unknown session")

type CheckoutRequest struct {
	Currency    string
	ProductName string
	// UnitAmount is the price in minor currency units.
	UnitAmount int64
	Quantity   int64
	SuccessURL string
	CancelURL  string
	Metadata   map[string]string
}

type Checkout struct {
	ID  string
	URL string
}

type GatewaySession struct {
	ID       string
	Paid     bool
	Metadata map[string]string
}

// Gateway is a hosted card-payment checkout provider.
type Gateway interface {
	CreateCheckout(ctx context.Context, req CheckoutRequest) (Checkout, error)
	Retrieve(ctx context.Context, sessionID string) (GatewaySession, error)
}
