package http

import (
	"net/http"

	"exam-delivery-service/internal/app"
)

type AccountHandler struct {
	accounts *app.AccountService
}

func NewAccountHandler(accounts *app.AccountService) *AccountHandler {
	return &AccountHandler{accounts: accounts}
}

func (h *AccountHandler) Register(w http.ResponseWriter, r *http.Request) {
	var in app.RegisterInput
	if !decodeJSON(w, r, &in) {
		return
	}
	user, err := h.accounts.Register(r.Context(), in)
	if err != nil {
		writeDomainErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (h *AccountHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	user, err := h.accounts.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		writeDomainErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}
