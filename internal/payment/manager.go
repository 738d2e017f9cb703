package payment

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/andreasstove999/ecommerce-system/services/pos-service-go/internal/apperr"
	"github.com/andreasstove999/ecommerce-system/services/pos-service-go/internal/catalog"
	"github.com/andreasstove999/ecommerce-system/services/pos-service-go/internal/logging"
	"github.com/andreasstove999/ecommerce-system/services/pos-service-go/internal/metrics"
)

type ProductReader interface {
	Get(ctx context.Context, id string) (catalog.Product, error)
}

// Guard consumes a paid session and decrements stock as one atomic step.
// consumed is false with a nil error when the session was already consumed.
type Guard interface {
	ConsumeSession(ctx context.Context, s Session) (consumed bool, remaining int, err error)
}

type EventPublisher interface {
	PublishSessionConsumed(ctx context.Context, s Session, remaining int) error
	PublishStockDepleted(ctx context.Context, merchantID, productID string) error
}

type URLs struct {
	Success string
	Cancel  string
}

type Option func(*Manager)

func WithPublisher(p EventPublisher) Option { return func(m *Manager) { m.publisher = p } }

func WithMetrics(mt *metrics.Metrics) Option { return func(m *Manager) { m.metrics = mt } }

type Manager struct {
	products  ProductReader
	gateway   Gateway
	sessions  SessionStore
	guard     Guard
	currency  string
	urls      URLs
	publisher EventPublisher
	metrics   *metrics.Metrics
	tracer    trace.Tracer
}

func NewManager(products ProductReader, gateway Gateway, sessions SessionStore, guard Guard, currency string, urls URLs, opts ...Option) *Manager {
	m := &Manager{
		products: products,
		gateway:  gateway,
		sessions: sessions,
		guard:    guard,
		currency: currency,
		urls:     urls,
		tracer:   otel.Tracer("pos/payment"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

type CheckoutResult struct {
	SessionID string `json:"session_id"`
	URL       string `json:"url"`
}

// CreateCheckoutSession opens a hosted checkout for quantity units of the
// product. Stock is checked but not reserved.
func (m *Manager) CreateCheckoutSession(ctx context.Context, merchantID, productID string, quantity int) (CheckoutResult, error) {
	ctx, span := m.tracer.Start(ctx, "payment.CreateCheckoutSession", trace.WithAttributes(
		attribute.String("merchant.id", merchantID),
		attribute.String("product.id", productID),
		attribute.Int("quantity", quantity),
	))
	defer span.End()

	res, err := m.createCheckoutSession(ctx, merchantID, productID, quantity)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return CheckoutResult{}, err
	}
	span.SetStatus(codes.Ok, "")
	return res, nil
}

func (m *Manager) createCheckoutSession(ctx context.Context, merchantID, productID string, quantity int) (CheckoutResult, error) {
	switch {
	case strings.TrimSpace(merchantID) == "":
		return CheckoutResult{}, apperr.Validation("user_id is required")
	case strings.TrimSpace(productID) == "":
		return CheckoutResult{}, apperr.Validation("item_id is required")
	case quantity < 1:
		return CheckoutResult{}, apperr.Validation("quantity must be at least 1")
	}
	log := logging.FromContext(ctx)

	p, err := m.products.Get(ctx, productID)
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		return CheckoutResult{}, apperr.NotFound("Item not found")
	case err != nil:
		log.Error("catalog read failed", zap.String("product_id", productID), zap.Error(err))
		return CheckoutResult{}, apperr.Upstream(err, "catalog store unavailable")
	case p.OwnerID != merchantID:
		return CheckoutResult{}, apperr.NotFound("Item not found")
	case quantity > p.Stock:
		return CheckoutResult{}, apperr.InsufficientStock("Insufficient stock for %s", p.Name)
	}

	co, err := m.gateway.CreateCheckout(ctx, CheckoutRequest{
		Currency:    m.currency,
		ProductName: p.Name,
		UnitAmount:  p.Price.Shift(2).IntPart(),
		Quantity:    int64(quantity),
		SuccessURL:  m.urls.Success,
		CancelURL:   m.urls.Cancel,
		Metadata: map[string]string{
			MetaItemID:   p.ID,
			MetaUserID:   merchantID,
			MetaQuantity: strconv.Itoa(quantity),
		},
	})
	if err != nil {
		log.Error("gateway create checkout failed", zap.String("product_id", productID), zap.Error(err))
		return CheckoutResult{}, apperr.Upstream(err, "payment gateway unavailable")
	}

	if err := m.sessions.Create(ctx, Session{
		ID:        co.ID,
		OwnerID:   merchantID,
		ProductID: p.ID,
		Quantity:  quantity,
		Status:    StatusPending,
		URL:       co.URL,
	}); err != nil {
		log.Error("record checkout session failed", zap.String("session_id", co.ID), zap.Error(err))
		return CheckoutResult{}, apperr.Upstream(err, "payment session store unavailable")
	}

	if m.metrics != nil {
		m.metrics.SessionsCreated.Inc()
	}
	log.Info("checkout session created",
		zap.String("session_id", co.ID),
		zap.String("product_id", p.ID),
		zap.Int("quantity", quantity))
	return CheckoutResult{SessionID: co.ID, URL: co.URL}, nil
}

type ConfirmResult struct {
	SessionID string
	ProductID string
	Quantity  int
	Remaining int
	// AlreadyConsumed is set when an earlier confirmation did the decrement.
	AlreadyConsumed bool
}

// ConfirmSession decrements stock for a paid session exactly once. Repeated
// and concurrent calls for the same session succeed without decrementing
// again.
func (m *Manager) ConfirmSession(ctx context.Context, sessionID string) (ConfirmResult, error) {
	ctx, span := m.tracer.Start(ctx, "payment.ConfirmSession", trace.WithAttributes(
		attribute.String("session.id", sessionID),
	))
	defer span.End()

	res, err := m.confirmSession(ctx, sessionID)
	m.countConfirmation(res, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return ConfirmResult{}, err
	}
	span.SetAttributes(attribute.Bool("session.already_consumed", res.AlreadyConsumed))
	span.SetStatus(codes.Ok, "")
	return res, nil
}

func (m *Manager) confirmSession(ctx context.Context, sessionID string) (ConfirmResult, error) {
	if strings.TrimSpace(sessionID) == "" {
		return ConfirmResult{}, apperr.Validation("session id is required")
	}
	log := logging.FromContext(ctx).With(zap.String("session_id", sessionID))

	gs, err := m.gateway.Retrieve(ctx, sessionID)
	switch {
	case errors.Is(err, ErrUnknownSession):
		return ConfirmResult{}, apperr.NotFound("Session not found")
	case err != nil:
		log.Error("gateway retrieve failed", zap.Error(err))
		return ConfirmResult{}, apperr.Upstream(err, "payment gateway unavailable")
	case !gs.Paid:
		return ConfirmResult{}, apperr.PaymentIncomplete("Payment not completed")
	}

	s, err := sessionFromMetadata(sessionID, gs.Metadata)
	if err != nil {
		return ConfirmResult{}, err
	}

	s, err = m.sessions.MarkPaid(ctx, s)
	if err != nil {
		log.Error("mark session paid failed", zap.Error(err))
		return ConfirmResult{}, apperr.Upstream(err, "payment session store unavailable")
	}
	res := ConfirmResult{SessionID: s.ID, ProductID: s.ProductID, Quantity: s.Quantity}
	if s.Status == StatusConsumed {
		res.AlreadyConsumed = true
		return res, nil
	}

	consumed, remaining, err := m.guard.ConsumeSession(ctx, s)
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		return ConfirmResult{}, apperr.NotFound("Product %s not found", s.ProductID)
	case errors.Is(err, catalog.ErrInsufficientStock):
		return ConfirmResult{}, apperr.InsufficientStock("Insufficient stock for %s", s.ProductID)
	case err != nil:
		log.Error("consume session failed", zap.Error(err))
		return ConfirmResult{}, apperr.Upstream(err, "catalog store unavailable")
	case !consumed:
		res.AlreadyConsumed = true
		return res, nil
	}
	res.Remaining = remaining

	if m.publisher != nil {
		if err := m.publisher.PublishSessionConsumed(ctx, s, remaining); err != nil {
			log.Warn("publish session consumed", zap.Error(err))
		}
		if remaining == 0 {
			if err := m.publisher.PublishStockDepleted(ctx, s.OwnerID, s.ProductID); err != nil {
				log.Warn("publish stock depleted", zap.Error(err))
			}
		}
	}
	if m.metrics != nil && remaining == 0 {
		m.metrics.StockDepleted.Inc()
	}

	log.Info("session consumed",
		zap.String("product_id", s.ProductID),
		zap.Int("quantity", s.Quantity),
		zap.Int("remaining", remaining))
	return res, nil
}

func sessionFromMetadata(sessionID string, md map[string]string) (Session, error) {
	itemID, userID := md[MetaItemID], md[MetaUserID]
	if itemID == "" || userID == "" {
		return Session{}, apperr.Validation("session metadata is incomplete")
	}
	qty, err := strconv.Atoi(md[MetaQuantity])
	if err != nil || qty < 1 {
		return Session{}, apperr.Validation("session metadata has an invalid quantity")
	}
	return Session{ID: sessionID, OwnerID: userID, ProductID: itemID, Quantity: qty}, nil
}

func (m *Manager) countConfirmation(res ConfirmResult, err error) {
	if m.metrics == nil {
		return
	}
	outcome := "consumed"
	switch {
	case errors.Is(err, apperr.ErrPaymentIncomplete):
		outcome = "unpaid"
	case errors.Is(err, apperr.ErrInsufficientStock):
		outcome = "insufficient_stock"
	case err != nil:
		outcome = "error"
	case res.AlreadyConsumed:
		outcome = "duplicate"
	}
	m.metrics.Confirmations.WithLabelValues(outcome).Inc()
}
