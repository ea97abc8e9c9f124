package orders

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/joao-fontenele/foodhub/internal/auth"
	"github.com/joao-fontenele/foodhub/internal/domain"
	"github.com/joao-fontenele/foodhub/internal/payment"
)

const (
	DefaultVerifyTimeout = 20 * time.Second
	maxWebhookBody       = 1 << 16
)

type OrderReader interface {
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Order, error)
	ListByRestaurant(ctx context.Context, restaurantID string) ([]domain.Order, error)
	UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) (*domain.Order, error)
}

type RestaurantLookup interface {
	GetByOwner(ctx context.Context, ownerID string) (*domain.Restaurant, error)
}

type WebhookParser interface {
	ParseWebhook(payload []byte, signature string) (*payment.WebhookEvent, error)
}

type Handler struct {
	materializer  *Materializer
	orders        OrderReader
	restaurants   RestaurantLookup
	webhooks      WebhookParser
	logger        *slog.Logger
	verifyTimeout time.Duration
}

func NewHandler(m *Materializer, orders OrderReader, restaurants RestaurantLookup, webhooks WebhookParser, logger *slog.Logger) *Handler {
	return &Handler{
		materializer:  m,
		orders:        orders,
		restaurants:   restaurants,
		webhooks:      webhooks,
		logger:        logger,
		verifyTimeout: DefaultVerifyTimeout,
	}
}

// SetVerifyTimeout bounds how long a verify call may wait on the provider
// and the database.
func (h *Handler) SetVerifyTimeout(d time.Duration) {
	h.verifyTimeout = d
}

type verifyRequest struct {
	SessionID string `json:"sessionId"`
}

func (h *Handler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "User must be logged in")
		return
	}

	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.SessionID) == "" {
		h.writeError(w, http.StatusBadRequest, "Session ID is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.verifyTimeout)
	defer cancel()

	order, err := h.materializer.Materialize(ctx, req.SessionID, TriggerVerify)
	if err != nil {
		switch {
		case errors.Is(err, ErrPaymentNotCompleted):
			h.writeError(w, http.StatusBadRequest, "Payment not completed")
		case errors.Is(err, payment.ErrSessionNotFound):
			h.writeError(w, http.StatusNotFound, "Checkout session not found")
		case errors.Is(err, ErrCorruptSession):
			h.writeError(w, http.StatusUnprocessableEntity, "Payment received but the order could not be recorded. Please contact support.")
		case errors.Is(err, context.DeadlineExceeded):
			h.logger.Warn("verify timed out", "session_id", req.SessionID, "user_id", userID)
			h.writeError(w, http.StatusGatewayTimeout, "Verification is taking longer than expected, please check your orders shortly")
		case errors.Is(err, payment.ErrProvider):
			h.logger.Error("provider unavailable during verify", "error", err, "session_id", req.SessionID)
			h.writeError(w, http.StatusBadGateway, "Payment provider unavailable, please try again.")
		default:
			h.logger.Error("failed to verify order", "error", err, "session_id", req.SessionID)
			h.writeError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	if order.UserID != userID {
		h.logger.Warn("verify called by a user who does not own the session",
			"order_id", order.ID,
			"session_id", req.SessionID,
			"user_id", userID,
		)
		h.writeError(w, http.StatusForbidden, "This order belongs to another user")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Order placed successfully",
		"order":   order,
	})
}

// HandleWebhook acknowledges every verified event it cannot act on so the
// provider stops retrying. Only transient failures return 500.
func (h *Handler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "unable to read webhook body")
		return
	}

	signature := r.Header.Get("Stripe-Signature")
	if signature == "" {
		h.writeError(w, http.StatusBadRequest, "Webhook error: missing signature")
		return
	}

	event, err := h.webhooks.ParseWebhook(payload, signature)
	if err != nil {
		if errors.Is(err, payment.ErrMalformedEvent) {
			h.logger.Error("verified webhook could not be decoded", "error", err)
			h.countEvent(r.Context(), "unknown", "malformed")
			h.ack(w)
			return
		}
		h.logger.Warn("webhook signature rejected", "error", err)
		h.writeError(w, http.StatusBadRequest, "Webhook error: invalid signature")
		return
	}

	outcome, err := h.handleEvent(r.Context(), event)
	h.countEvent(r.Context(), event.Type, outcome)
	if err != nil {
		h.logger.Error("webhook processing failed, provider will retry",
			"error", err,
			"event_id", event.ID,
			"event_type", event.Type,
		)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.ack(w)
}

func (h *Handler) handleEvent(ctx context.Context, event *payment.WebhookEvent) (string, error) {
	if event.Session == nil {
		return "ignored", nil
	}

	switch event.Type {
	case payment.EventCheckoutCompleted, payment.EventAsyncPaymentSucceeded:
		if event.Session.PaymentStatus != domain.SessionPaid {
			h.logger.Info("checkout completed without payment, awaiting async result",
				"event_id", event.ID,
				"session_id", event.Session.ID,
				"payment_status", event.Session.PaymentStatus,
			)
			return "awaiting_payment", nil
		}

		_, err := h.materializer.MaterializeSession(ctx, event.Session, TriggerWebhook)
		switch {
		case err == nil:
			return "materialized", nil
		case errors.Is(err, ErrCorruptSession):
			return "corrupt", nil
		case errors.Is(err, ErrPaymentNotCompleted):
			return "not_paid", nil
		default:
			return "retry", err
		}

	case payment.EventAsyncPaymentFailed:
		if _, err := h.materializer.HandlePaymentFailure(ctx, event.Session.ID); err != nil {
			return "retry", err
		}
		return "payment_failed", nil
	}

	return "ignored", nil
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "User must be logged in")
		return
	}

	orders, err := h.orders.ListByUser(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed to list orders", "error", err, "user_id", userID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"success": true, "orders": orders})
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "User must be logged in")
		return
	}

	orderID := r.PathValue("orderId")
	order, err := h.orders.GetByID(r.Context(), orderID)
	if err != nil {
		h.logger.Error("failed to get order", "error", err, "order_id", orderID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if order == nil {
		h.writeError(w, http.StatusNotFound, "Order not found")
		return
	}
	if order.UserID != userID {
		h.writeError(w, http.StatusForbidden, "Access denied")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"success": true, "order": order})
}

func (h *Handler) HandleRestaurantOrders(w http.ResponseWriter, r *http.Request) {
	restaurant, ok := h.ownedRestaurant(w, r)
	if !ok {
		return
	}

	orders, err := h.orders.ListByRestaurant(r.Context(), restaurant.ID)
	if err != nil {
		h.logger.Error("failed to list restaurant orders", "error", err, "restaurant_id", restaurant.ID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"success": true, "orders": orders})
}

type updateStatusRequest struct {
	Status domain.OrderStatus `json:"status"`
}

func (h *Handler) HandleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !req.Status.Valid() {
		h.writeError(w, http.StatusBadRequest, "Invalid status")
		return
	}

	restaurant, ok := h.ownedRestaurant(w, r)
	if !ok {
		return
	}

	orderID := r.PathValue("orderId")
	order, err := h.orders.GetByID(r.Context(), orderID)
	if err != nil {
		h.logger.Error("failed to get order", "error", err, "order_id", orderID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if order == nil {
		h.writeError(w, http.StatusNotFound, "Order not found")
		return
	}
	if order.RestaurantID != restaurant.ID {
		h.writeError(w, http.StatusForbidden, "Order belongs to another restaurant")
		return
	}

	updated, err := h.orders.UpdateStatus(r.Context(), orderID, req.Status)
	if err != nil {
		h.logger.Error("failed to update order status", "error", err, "order_id", orderID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if updated == nil {
		h.writeError(w, http.StatusNotFound, "Order not found")
		return
	}

	h.logger.Info("order status updated",
		"order_id", orderID,
		"from", order.Status,
		"to", updated.Status,
	)

	h.writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"status":  updated.Status,
		"message": "Status updated",
	})
}

// ownedRestaurant resolves the caller's restaurant, writing the error
// response itself when there is none.
func (h *Handler) ownedRestaurant(w http.ResponseWriter, r *http.Request) (*domain.Restaurant, bool) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "User must be logged in")
		return nil, false
	}

	restaurant, err := h.restaurants.GetByOwner(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed to load owned restaurant", "error", err, "user_id", userID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return nil, false
	}
	if restaurant == nil {
		h.writeError(w, http.StatusNotFound, "Restaurant not found")
		return nil, false
	}

	return restaurant, true
}

func (h *Handler) countEvent(ctx context.Context, eventType, outcome string) {
	webhookEvents.Add(ctx, 1, metric.WithAttributes(
		attribute.String("type", eventType),
		attribute.String("outcome", outcome),
	))
}

func (h *Handler) ack(w http.ResponseWriter) {
	h.writeJSON(w, http.StatusOK, map[string]any{"received": true})
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
