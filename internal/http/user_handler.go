package httpapi

import (
	"context"
	"net/http"
)

type UserService interface {
	Create(ctx context.Context, name, email, password string) (string, error)
}

type userHandler struct {
	svc UserService
}

type createUserRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *userHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(r, &req, false); err != nil {
		respondErr(w, r, err)
		return
	}

	id, err := h.svc.Create(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success", "user_id": id})
}
