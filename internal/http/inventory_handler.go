package httpapi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/andreasstove999/ecommerce-system/services/pos-service-go/internal/apperr"
	"github.com/andreasstove999/ecommerce-system/services/pos-service-go/internal/catalog"
	"github.com/andreasstove999/ecommerce-system/services/pos-service-go/internal/inventory"
)

type InventoryService interface {
	Add(ctx context.Context, merchantID string, in inventory.AddInput) (catalog.Product, error)
	Update(ctx context.Context, merchantID, id string, patch catalog.Patch) (catalog.Product, error)
	Delete(ctx context.Context, merchantID, id string) error
	ListAll(ctx context.Context, merchantID string) (map[string]catalog.Product, error)
}

type inventoryHandler struct {
	svc InventoryService
}

type addItemRequest struct {
	UserID string           `json:"user_id"`
	ID     string           `json:"id"`
	Name   string           `json:"name"`
	Price  *decimal.Decimal `json:"price"`
	Stock  *int             `json:"stock"`
}

type updateItemRequest struct {
	UserID string           `json:"user_id"`
	Name   *string          `json:"name"`
	Price  *decimal.Decimal `json:"price"`
	Stock  *int             `json:"stock"`
}

type deleteItemRequest struct {
	UserID string `json:"user_id"`
}

type itemResponse struct {
	Message string          `json:"message"`
	Item    catalog.Product `json:"item"`
}

func (h *inventoryHandler) Add(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if err := decodeJSON(r, &req, false); err != nil {
		respondErr(w, r, err)
		return
	}
	if req.Price == nil || req.Stock == nil {
		respondErr(w, r, apperr.Validation("Missing required fields"))
		return
	}

	p, err := h.svc.Add(r.Context(), req.UserID, inventory.AddInput{
		ID:    req.ID,
		Name:  req.Name,
		Price: *req.Price,
		Stock: *req.Stock,
	})
	if err != nil {
		respondErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, itemResponse{Message: "Item added", Item: p})
}

func (h *inventoryHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req updateItemRequest
	if err := decodeJSON(r, &req, true); err != nil {
		respondErr(w, r, err)
		return
	}

	p, err := h.svc.Update(r.Context(), req.UserID, chi.URLParam(r, "id"), catalog.Patch{
		Name:  req.Name,
		Price: req.Price,
		Stock: req.Stock,
	})
	if err != nil {
		respondErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, itemResponse{Message: "Item updated", Item: p})
}

// Delete takes the merchant from the JSON body. Clients that cannot send a
// body with DELETE may pass ?user_id= instead.
func (h *inventoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	merchantID := r.URL.Query().Get("user_id")
	if r.ContentLength > 0 {
		var req deleteItemRequest
		if err := decodeJSON(r, &req, false); err != nil {
			respondErr(w, r, err)
			return
		}
		if req.UserID != "" {
			merchantID = req.UserID
		}
	}

	if err := h.svc.Delete(r.Context(), merchantID, chi.URLParam(r, "id")); err != nil {
		respondErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Item deleted"})
}

func (h *inventoryHandler) All(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.ListAll(r.Context(), r.URL.Query().Get("user_id"))
	if err != nil {
		respondErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}
