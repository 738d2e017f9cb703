package httpapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/andreasstove999/ecommerce-system/services/pos-service-go/internal/apperr"
	"github.com/andreasstove999/ecommerce-system/services/pos-service-go/internal/payment"
)

type PaymentService interface {
	CreateCheckoutSession(ctx context.Context, merchantID, productID string, quantity int) (payment.CheckoutResult, error)
	ConfirmSession(ctx context.Context, sessionID string) (payment.ConfirmResult, error)
}

type paymentHandler struct {
	svc PaymentService
}

type createCheckoutRequest struct {
	ItemID   string `json:"item_id"`
	UserID   string `json:"user_id"`
	Quantity *int   `json:"quantity"`
}

func (h *paymentHandler) CreateCheckoutSession(w http.ResponseWriter, r *http.Request) {
	var req createCheckoutRequest
	if err := decodeJSON(r, &req, false); err != nil {
		respondErr(w, r, err)
		return
	}
	qty := 1
	if req.Quantity != nil {
		qty = *req.Quantity
	}

	res, err := h.svc.CreateCheckoutSession(r.Context(), req.UserID, req.ItemID, qty)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ConfirmSession is hit by the checkout success page. Repeated calls for the
// same session succeed without touching stock again.
func (h *paymentHandler) ConfirmSession(w http.ResponseWriter, r *http.Request) {
	if _, err := h.svc.ConfirmSession(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Stock updated successfully"})
}

type localCheckoutHandler struct {
	gateway *payment.LocalGateway
}

// Pay completes a local checkout session, standing in for the hosted page.
func (h *localCheckoutHandler) Pay(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.gateway.Pay(id); err != nil {
		if errors.Is(err, payment.ErrUnknownSession) {
			respondErr(w, r, apperr.NotFound("Session not found"))
			return
		}
		respondErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Payment completed", "session_id": id})
}
