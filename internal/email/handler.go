package email

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
)

type Handler struct {
	sender   Sender
	override string
	logger   *slog.Logger
}

// NewHandler returns the send endpoint. A non-empty override redirects every
// message to that address, for staging environments.
func NewHandler(sender Sender, override string, logger *slog.Logger) *Handler {
	return &Handler{
		sender:   sender,
		override: strings.TrimSpace(override),
		logger:   logger,
	}
}

type sendResponse struct {
	Status string `json:"status"`
	ID     string `json:"id"`
}

func (h *Handler) HandleSend(w http.ResponseWriter, r *http.Request) {
	var msg Message
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := msg.validate(); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if h.override != "" {
		h.logger.Warn("email override active, redirecting", "original_to", msg.To, "to", h.override)
		msg.To = h.override
	}

	id, err := h.sender.Send(r.Context(), msg)
	if err != nil {
		h.logger.Error("failed to send email", "error", err, "to", msg.To, "subject", msg.Subject)
		h.writeError(w, http.StatusBadGateway, "email provider unavailable")
		return
	}

	h.logger.Info("email sent", "message_id", id, "to", msg.To, "subject", msg.Subject)
	h.writeJSON(w, http.StatusOK, sendResponse{Status: "sent", ID: id})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
