package httpapi

import (
	"context"
	"net/http"

	"github.com/andreasstove999/ecommerce-system/services/pos-service-go/internal/billing"
)

type BillingService interface {
	CreateBill(ctx context.Context, merchantID string, lines []billing.Line) (billing.Bill, error)
}

type billingHandler struct {
	svc BillingService
}

type createBillRequest struct {
	UserID string         `json:"user_id"`
	Items  []billing.Line `json:"items"`
}

type createBillResponse struct {
	Message string       `json:"message"`
	Bill    billing.Bill `json:"bill"`
}

func (h *billingHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createBillRequest
	if err := decodeJSON(r, &req, false); err != nil {
		respondErr(w, r, err)
		return
	}

	bill, err := h.svc.CreateBill(r.Context(), req.UserID, req.Items)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, createBillResponse{Message: "Bill created", Bill: bill})
}
