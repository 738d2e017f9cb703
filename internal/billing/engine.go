package billing

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
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

// StockDecrementer performs the conditional stock decrement. It returns
// catalog.ErrInsufficientStock when stock < qty at the time of the write.
type StockDecrementer interface {
	Decrement(ctx context.Context, ownerID, productID string, qty int) (int, error)
}

type Recorder interface {
	Record(ctx context.Context, b Bill) error
}

type EventPublisher interface {
	PublishBillCreated(ctx context.Context, b Bill) error
	PublishStockDepleted(ctx context.Context, merchantID, productID string) error
}

type Option func(*Engine)

func WithRecorder(r Recorder) Option { return func(e *Engine) { e.recorder = r } }

func WithPublisher(p EventPublisher) Option { return func(e *Engine) { e.publisher = p } }

func WithMetrics(m *metrics.Metrics) Option { return func(e *Engine) { e.metrics = m } }

type Engine struct {
	products  ProductReader
	stock     StockDecrementer
	recorder  Recorder
	publisher EventPublisher
	metrics   *metrics.Metrics
	tracer    trace.Tracer
	now       func() time.Time
}

func NewEngine(products ProductReader, stock StockDecrementer, opts ...Option) *Engine {
	e := &Engine{
		products: products,
		stock:    stock,
		tracer:   otel.Tracer("pos/billing"),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CreateBill prices the cart against the merchant's catalog and commits one
// conditional decrement per line. A line that fails its decrement fails the
// bill; decrements already committed for earlier lines stay committed.
func (e *Engine) CreateBill(ctx context.Context, merchantID string, lines []Line) (Bill, error) {
	ctx, span := e.tracer.Start(ctx, "billing.CreateBill", trace.WithAttributes(
		attribute.String("merchant.id", merchantID),
		attribute.Int("bill.lines", len(lines)),
	))
	defer span.End()

	bill, err := e.createBill(ctx, merchantID, lines)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.reject(err)
		return Bill{}, err
	}
	span.SetStatus(codes.Ok, "")
	span.SetAttributes(attribute.String("bill.id", bill.ID))
	return bill, nil
}

func (e *Engine) createBill(ctx context.Context, merchantID string, lines []Line) (Bill, error) {
	if err := validate(merchantID, lines); err != nil {
		return Bill{}, err
	}
	log := logging.FromContext(ctx)

	// Read pass: price every line and check stock without writing.
	snapshots := make(map[string]catalog.Product, len(lines))
	requested := make(map[string]int, len(lines))
	items := make([]Item, 0, len(lines))
	total := decimal.Zero

	for _, ln := range lines {
		p, ok := snapshots[ln.ProductID]
		if !ok {
			var err error
			p, err = e.products.Get(ctx, ln.ProductID)
			switch {
			case errors.Is(err, catalog.ErrNotFound):
				return Bill{}, apperr.NotFound("Product %s not found", ln.ProductID)
			case err != nil:
				log.Error("catalog read failed", zap.String("product_id", ln.ProductID), zap.Error(err))
				return Bill{}, apperr.Upstream(err, "catalog store unavailable")
			case p.OwnerID != merchantID:
				return Bill{}, apperr.NotFound("Product %s not found", ln.ProductID)
			}
			snapshots[ln.ProductID] = p
		}

		// Compare before accumulating so a huge qty cannot wrap the running sum.
		if ln.Qty > p.Stock-requested[ln.ProductID] {
			return Bill{}, apperr.InsufficientStock("Insufficient stock for %s", p.Name)
		}
		requested[ln.ProductID] += ln.Qty

		subtotal := p.Price.Mul(decimal.NewFromInt(int64(ln.Qty)))
		items = append(items, Item{
			ProductID: p.ID,
			Name:      p.Name,
			Qty:       ln.Qty,
			Price:     p.Price,
			Subtotal:  subtotal,
		})
		total = total.Add(subtotal)
	}

	// Commit pass.
	var depleted []string
	for _, it := range items {
		remaining, err := e.stock.Decrement(ctx, merchantID, it.ProductID, it.Qty)
		if err != nil {
			switch {
			case errors.Is(err, catalog.ErrInsufficientStock):
				return Bill{}, apperr.InsufficientStock("Insufficient stock for %s", it.Name)
			case errors.Is(err, catalog.ErrNotFound):
				return Bill{}, apperr.NotFound("Product %s not found", it.ProductID)
			default:
				log.Error("stock decrement failed", zap.String("product_id", it.ProductID), zap.Error(err))
				return Bill{}, apperr.Upstream(err, "catalog store unavailable")
			}
		}
		if remaining == 0 {
			depleted = append(depleted, it.ProductID)
		}
	}

	bill := Bill{
		ID:         uuid.NewString(),
		MerchantID: merchantID,
		Items:      items,
		Total:      total,
		CreatedAt:  e.now(),
	}

	// Stock is committed at this point; the bill is returned whatever happens below.
	if e.recorder != nil {
		if err := e.recorder.Record(ctx, bill); err != nil {
			log.Warn("bill not recorded", zap.String("bill_id", bill.ID), zap.Error(err))
		}
	}
	if e.publisher != nil {
		if err := e.publisher.PublishBillCreated(ctx, bill); err != nil {
			log.Warn("publish bill created", zap.String("bill_id", bill.ID), zap.Error(err))
		}
		for _, id := range depleted {
			if err := e.publisher.PublishStockDepleted(ctx, merchantID, id); err != nil {
				log.Warn("publish stock depleted", zap.String("product_id", id), zap.Error(err))
			}
		}
	}
	if e.metrics != nil {
		e.metrics.BillsCreated.Inc()
		e.metrics.StockDepleted.Add(float64(len(depleted)))
	}

	log.Info("bill created",
		zap.String("bill_id", bill.ID),
		zap.String("merchant_id", merchantID),
		zap.Int("lines", len(items)),
		zap.String("total", total.String()))
	return bill, nil
}

func validate(merchantID string, lines []Line) error {
	if strings.TrimSpace(merchantID) == "" {
		return apperr.Validation("user_id is required")
	}
	if len(lines) == 0 {
		return apperr.Validation("items must not be empty")
	}
	for i, ln := range lines {
		if strings.TrimSpace(ln.ProductID) == "" {
			return apperr.Validation("items[%d]: id is required", i)
		}
		if ln.Qty <= 0 {
			return apperr.Validation("items[%d]: qty must be positive", i)
		}
	}
	return nil
}

func (e *Engine) reject(err error) {
	if e.metrics == nil {
		return
	}
	reason := "internal"
	switch {
	case errors.Is(err, apperr.ErrValidation):
		reason = "validation"
	case errors.Is(err, apperr.ErrNotFound):
		reason = "not_found"
	case errors.Is(err, apperr.ErrInsufficientStock):
		reason = "insufficient_stock"
	}
	e.metrics.BillsRejected.WithLabelValues(reason).Inc()
}
