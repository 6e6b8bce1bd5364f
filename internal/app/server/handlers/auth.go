package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/garthpuckerin/dreamcatcher-sub000/internal/core/services"
	"github.com/garthpuckerin/dreamcatcher-sub000/pkg/middleware"
)

type AuthHandler struct {
	userSvc  *services.UserService
	tokenSvc *services.TokenService
}

func NewAuthHandler(u *services.UserService, t *services.TokenService) *AuthHandler {
	return &AuthHandler{userSvc: u, tokenSvc: t}
}

// Token upserts the profile and issues a JWT for the realtime connection.
func (h *AuthHandler) Token(w http.ResponseWriter, r *http.Request) {
	log, _ := r.Context().Value(middleware.LoggerKey).(*slog.Logger)
	var req struct {
		UserID string `json:"userId"`
		Name   string `json:"name"`
		Avatar string `json:"avatar"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		log.ErrorContext(r.Context(), "auth handler - bad request")
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	user, err := h.userSvc.EnsureUser(r.Context(), req.UserID, req.Name, req.Avatar)
	if err != nil {
		log.ErrorContext(r.Context(), "auth handler - ensure user failed", "user_id", req.UserID)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	token, err := h.tokenSvc.GenerateToken(user.ID)
	if err != nil {
		log.ErrorContext(r.Context(), "auth handler - generate token failed", "user_id", user.ID)
		http.Error(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(map[string]interface{}{
		"token":      token,
		"user_id":    user.ID,
		"created_at": user.CreatedAt,
	})
	log.InfoContext(r.Context(), "auth handler - token issued", "user_id", user.ID)
}
