package api

import (
	"chat-sync/auth"
	"chat-sync/services"
	"log/slog"
	"net/http"
)

type AuthHandler struct {
	log     *slog.Logger
	service services.IAuthService
}

func NewAuthHandler(log *slog.Logger, service services.IAuthService) *AuthHandler {
	return &AuthHandler{log: log, service: service}
}

// Register handles POST /register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req auth.RegisterRequest
	if err := decode(r, &req); err != nil {
		fail(w, h.log, err)
		return
	}
	tokens, err := h.service.Register(r.Context(), req)
	if err != nil {
		fail(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, tokens)
}

// Refresh handles POST /token/refresh
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req auth.RefreshRequest
	if err := decode(r, &req); err != nil {
		fail(w, h.log, err)
		return
	}
	tokens, err := h.service.Refresh(r.Context(), req)
	if err != nil {
		fail(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, tokens)
}
