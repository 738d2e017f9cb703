package inventory

import (
	"context"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/andreasstove999/ecommerce-system/services/pos-service-go/internal/apperr"
	"github.com/andreasstove999/ecommerce-system/services/pos-service-go/internal/catalog"
	"github.com/andreasstove999/ecommerce-system/services/pos-service-go/internal/logging"
)

type AddInput struct {
	ID    string
	Name  string
	Price decimal.Decimal
	Stock int
}

// Service is the merchant-facing catalog API. Every mutation checks that the
// caller owns the product.
type Service struct {
	repo catalog.Repository
}

func NewService(repo catalog.Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Add(ctx context.Context, merchantID string, in AddInput) (catalog.Product, error) {
	switch {
	case strings.TrimSpace(merchantID) == "":
		return catalog.Product{}, apperr.Validation("user_id is required")
	case strings.TrimSpace(in.ID) == "":
		return catalog.Product{}, apperr.Validation("id is required")
	case strings.TrimSpace(in.Name) == "":
		return catalog.Product{}, apperr.Validation("name is required")
	case in.Price.IsNegative():
		return catalog.Product{}, apperr.Validation("price must not be negative")
	case !isCents(in.Price):
		return catalog.Product{}, apperr.Validation("price must have at most 2 decimal places")
	case in.Stock < 0:
		return catalog.Product{}, apperr.Validation("stock must not be negative")
	}

	p, err := s.repo.Upsert(ctx, catalog.Product{
		ID:      in.ID,
		OwnerID: merchantID,
		Name:    in.Name,
		Price:   in.Price,
		Stock:   in.Stock,
	})
	if err != nil {
		return catalog.Product{}, mapErr(ctx, err)
	}

	logging.FromContext(ctx).Info("item added",
		zap.String("merchant_id", merchantID),
		zap.String("product_id", p.ID),
		zap.Int("stock", p.Stock))
	return p, nil
}

func (s *Service) Update(ctx context.Context, merchantID, id string, patch catalog.Patch) (catalog.Product, error) {
	if strings.TrimSpace(merchantID) == "" {
		return catalog.Product{}, apperr.Validation("user_id is required")
	}
	if strings.TrimSpace(id) == "" {
		return catalog.Product{}, apperr.Validation("id is required")
	}
	if err := validatePatch(patch); err != nil {
		return catalog.Product{}, err
	}

	p, err := s.repo.Update(ctx, merchantID, id, patch)
	if err != nil {
		return catalog.Product{}, mapErr(ctx, err)
	}
	return p, nil
}

func (s *Service) Delete(ctx context.Context, merchantID, id string) error {
	if strings.TrimSpace(merchantID) == "" {
		return apperr.Validation("user_id is required")
	}
	if strings.TrimSpace(id) == "" {
		return apperr.Validation("id is required")
	}
	if err := s.repo.Delete(ctx, merchantID, id); err != nil {
		return mapErr(ctx, err)
	}
	logging.FromContext(ctx).Info("item deleted", zap.String("merchant_id", merchantID), zap.String("product_id", id))
	return nil
}

// ListAll returns the merchant's products keyed by id.
func (s *Service) ListAll(ctx context.Context, merchantID string) (map[string]catalog.Product, error) {
	if strings.TrimSpace(merchantID) == "" {
		return nil, apperr.Validation("user_id is required")
	}
	list, err := s.repo.ListByOwner(ctx, merchantID)
	if err != nil {
		return nil, mapErr(ctx, err)
	}
	out := make(map[string]catalog.Product, len(list))
	for _, p := range list {
		out[p.ID] = p
	}
	return out, nil
}

func validatePatch(p catalog.Patch) error {
	if p.Empty() {
		return apperr.Validation("nothing to update")
	}
	if p.Name != nil && strings.TrimSpace(*p.Name) == "" {
		return apperr.Validation("name must not be empty")
	}
	if p.Price != nil && p.Price.IsNegative() {
		return apperr.Validation("price must not be negative")
	}
	if p.Price != nil && !isCents(*p.Price) {
		return apperr.Validation("price must have at most 2 decimal places")
	}
	if p.Stock != nil && *p.Stock < 0 {
		return apperr.Validation("stock must not be negative")
	}
	return nil
}

// isCents reports whether d fits the catalog's NUMERIC(12, 2) price column
// without rounding.
func isCents(d decimal.Decimal) bool {
	return d.Equal(d.Round(2))
}

func mapErr(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		return apperr.NotFound("Item not found")
	case errors.Is(err, catalog.ErrOwnerMismatch):
		return apperr.Forbidden("Item belongs to another user")
	default:
		logging.FromContext(ctx).Error("catalog store failure", zap.Error(err))
		return apperr.Upstream(err, "catalog store unavailable")
	}
}
