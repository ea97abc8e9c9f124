package checkout

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/joao-fontenele/foodhub/internal/auth"
	"github.com/joao-fontenele/foodhub/internal/payment"
)

type Handler struct {
	builder *Builder
	logger  *slog.Logger
}

func NewHandler(builder *Builder, logger *slog.Logger) *Handler {
	return &Handler{
		builder: builder,
		logger:  logger,
	}
}

type sessionResponse struct {
	ID            string `json:"id"`
	URL           string `json:"url"`
	PaymentStatus string `json:"payment_status"`
}

func (h *Handler) HandleCreateSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "User must be logged in to checkout")
		return
	}

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	session, err := h.builder.CreateSession(r.Context(), userID, req)
	if err != nil {
		var validationErr *ValidationError
		switch {
		case errors.As(err, &validationErr):
			h.writeError(w, http.StatusBadRequest, validationErr.Error())
		case errors.Is(err, ErrRestaurantNotFound):
			h.writeError(w, http.StatusNotFound, "Restaurant not found.")
		case errors.Is(err, ErrEmptyMenu):
			h.writeError(w, http.StatusBadRequest, "Restaurant has no menu items.")
		case errors.Is(err, payment.ErrProvider):
			h.logger.Error("payment provider rejected checkout", "error", err, "user_id", userID)
			h.writeError(w, http.StatusBadGateway, "Payment provider unavailable, please try again.")
		default:
			h.logger.Error("failed to create checkout session", "error", err, "user_id", userID)
			h.writeError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	if session.URL == "" {
		h.logger.Error("provider returned session without url", "session_id", session.ID)
		h.writeError(w, http.StatusBadGateway, "Error while creating session")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"session": sessionResponse{
			ID:            session.ID,
			URL:           session.URL,
			PaymentStatus: string(session.PaymentStatus),
		},
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]any{"success": false, "message": message})
}
