package api_http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"bank/internal/app/accounts"
	"bank/internal/app/lending"
	"bank/internal/app/loginguard"
	"bank/internal/app/transfers"
	"bank/internal/auth"
	"bank/internal/domain"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

// Services bundles everything the HTTP layer calls into.
type Services struct {
	Accounts  accounts.AccountService
	Transfers transfers.TransferService
	Lending   lending.LendingService
	Guard     loginguard.Guard
	Tokens    *auth.TokenManager
}

type Handler struct {
	services Services
	logger   *zap.Logger
}

func NewHandler(s Services, l *zap.Logger) *Handler {
	return &Handler{services: s, logger: l}
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		h.logger.Warn("Invalid request body", zap.String("path", r.URL.Path), zap.Error(err))
		msg := "Invalid request body"
		if domain.IsValidation(err) {
			msg = err.Error()
		}
		h.writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: msg, Code: http.StatusBadRequest})
		return false
	}
	return true
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to write JSON response", zap.Error(err))
	}
}

// writeError maps a service error onto its HTTP status. Internal failures are
// logged and reported without detail.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		h.logger.Error("Request failed", zap.String("method", r.Method), zap.String("path", r.URL.Path), zap.Error(err))
		msg = "Internal server error"
	}
	h.writeJSON(w, status, ErrorResponse{Error: msg, Code: status})
}

func statusFor(err error) int {
	switch {
	case domain.IsValidation(err), errors.Is(err, domain.ErrInvalidSchedule):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotOwner):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInsufficientFunds),
		errors.Is(err, domain.ErrBelowMinimum),
		errors.Is(err, domain.ErrAboveMaximum):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrLocked):
		return http.StatusLocked
	case errors.Is(err, domain.ErrUnderReview), errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrRetryableCollision), errors.Is(err, domain.ErrUserAlreadyExists):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) principal(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := auth.Principal(r.Context())
	if !ok {
		h.writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "Authentication required", Code: http.StatusUnauthorized})
	}
	return userID, ok
}

// validIDs rejects identifiers that are not UUIDs before they reach the store.
func (h *Handler) validIDs(w http.ResponseWriter, ids ...string) bool {
	for _, id := range ids {
		if _, err := uuid.Parse(id); err != nil {
			h.writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: fmt.Sprintf("invalid id %q", id), Code: http.StatusBadRequest})
			return false
		}
	}
	return true
}

// pathID returns the {id} URL parameter once it is known to be a UUID.
func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "id")
	return id, h.validIDs(w, id)
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "Bank service is healthy!")
}
