package api_http

import (
	"errors"
	"net/http"

	"bank/internal/domain"

	"go.uber.org/zap"
)

func (h *Handler) RegisterUser(w http.ResponseWriter, r *http.Request) {
	var req RegisterUserRequest
	if !h.decode(w, r, &req) {
		return
	}

	user, err := h.services.Guard.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, newUserResponse(user))
}

// IssueToken runs one login attempt through the guard and returns a bearer
// token when it succeeds.
func (h *Handler) IssueToken(w http.ResponseWriter, r *http.Request) {
	var req TokenRequest
	if !h.decode(w, r, &req) {
		return
	}

	outcome, err := h.services.Guard.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		// Unknown emails get the same answer as a wrong password.
		if errors.Is(err, domain.ErrUserNotFound) {
			err = domain.ErrInvalidCredentials
		}
		h.writeError(w, r, err)
		return
	}
	if err := outcome.Err(); err != nil {
		h.writeError(w, r, err)
		return
	}

	token, expiresAt, err := h.services.Tokens.Issue(outcome.User.ID)
	if err != nil {
		h.logger.Error("Failed to issue token", zap.String("user_id", outcome.User.ID), zap.Error(err))
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, TokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresAt:   formatTime(expiresAt),
	})
}
