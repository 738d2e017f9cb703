package payment

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76"
)

type fakeStripeSessions struct {
	created *stripe.CheckoutSessionParams
	session *stripe.CheckoutSession
	err     error
}

func (f *fakeStripeSessions) New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	f.created = params
	return f.session, f.err
}

func (f *fakeStripeSessions) Get(string, *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	return f.session, f.err
}

func TestStripeGateway_CreateCheckoutParams(t *testing.T) {
	fake := &fakeStripeSessions{session: &stripe.CheckoutSession{ID: "cs_test_1", URL: "https://checkout.stripe.com/c/pay/cs_test_1"}}
	g := &StripeGateway{sessions: fake}

	co, err := g.CreateCheckout(context.Background(), CheckoutRequest{
		Currency:    "inr",
		ProductName: "Pen",
		UnitAmount:  1234,
		Quantity:    2,
		SuccessURL:  "https://pos.example/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:   "https://pos.example/failed",
		Metadata:    map[string]string{MetaItemID: "p1", MetaUserID: "m1", MetaQuantity: "2"},
	})
	require.NoError(t, err)
	assert.Equal(t, Checkout{ID: "cs_test_1", URL: "https://checkout.stripe.com/c/pay/cs_test_1"}, co)

	p := fake.created
	require.NotNil(t, p)
	require.Len(t, p.LineItems, 1)
	li := p.LineItems[0]
	assert.Equal(t, "inr", *li.PriceData.Currency)
	assert.Equal(t, "Pen", *li.PriceData.ProductData.Name)
	assert.Equal(t, int64(1234), *li.PriceData.UnitAmount)
	assert.Equal(t, int64(2), *li.Quantity)
	assert.Equal(t, "payment", *p.Mode)
	assert.Equal(t, "card", *p.PaymentMethodTypes[0])
	assert.Equal(t, "p1", p.Metadata[MetaItemID])
	assert.NotNil(t, p.Context)
}

func TestStripeGateway_Retrieve(t *testing.T) {
	fake := &fakeStripeSessions{session: &stripe.CheckoutSession{
		ID:            "cs_test_1",
		PaymentStatus: stripe.CheckoutSessionPaymentStatusPaid,
		Metadata:      map[string]string{MetaItemID: "p1"},
	}}
	g := &StripeGateway{sessions: fake}

	s, err := g.Retrieve(context.Background(), "cs_test_1")
	require.NoError(t, err)
	assert.True(t, s.Paid)
	assert.Equal(t, "p1", s.Metadata[MetaItemID])

	fake.session.PaymentStatus = stripe.CheckoutSessionPaymentStatusUnpaid
	s, err = g.Retrieve(context.Background(), "cs_test_1")
	require.NoError(t, err)
	assert.False(t, s.Paid)
}

func TestStripeGateway_RetrieveErrors(t *testing.T) {
	g := &StripeGateway{sessions: &fakeStripeSessions{err: &stripe.Error{HTTPStatusCode: http.StatusNotFound, Msg: "No such checkout.session"}}}
	_, err := g.Retrieve(context.Background(), "cs_missing")
	assert.ErrorIs(t, err, ErrUnknownSession)

	g = &StripeGateway{sessions: &fakeStripeSessions{err: errors.New("connection reset")}}
	_, err = g.Retrieve(context.Background(), "cs_1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnknownSession)
}
