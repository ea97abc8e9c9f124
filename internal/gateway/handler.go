package gateway

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
)

// Public route prefixes and what they are mounted on in the API service.
const (
	PaymentPrefix    = "/api"
	OrderPrefix      = "/api/v1"
	RestaurantPrefix = "/api/v1"
)

type Handler struct {
	apiProxy *ServiceProxy
	logger   *slog.Logger
}

func NewHandler(apiProxy *ServiceProxy, logger *slog.Logger) *Handler {
	return &Handler{
		apiProxy: apiProxy,
		logger:   logger,
	}
}

// HandlePayment serves /api/payment/*.
func (h *Handler) HandlePayment(w http.ResponseWriter, r *http.Request) {
	h.proxyRequest(w, r, strings.TrimPrefix(r.URL.Path, PaymentPrefix))
}

// HandleOrder serves /api/v1/order/*, including the provider webhook.
func (h *Handler) HandleOrder(w http.ResponseWriter, r *http.Request) {
	h.proxyRequest(w, r, strings.TrimPrefix(r.URL.Path, OrderPrefix))
}

// HandleRestaurant serves /api/v1/restaurant/*.
func (h *Handler) HandleRestaurant(w http.ResponseWriter, r *http.Request) {
	h.proxyRequest(w, r, strings.TrimPrefix(r.URL.Path, RestaurantPrefix))
}

func (h *Handler) proxyRequest(w http.ResponseWriter, r *http.Request, path string) {
	resp, err := h.apiProxy.ForwardRequest(r.Context(), r, path)
	if err != nil {
		h.logger.Error("failed to forward request", "error", err, "path", path)
		h.writeError(w, http.StatusBadGateway, "service unavailable")
		return
	}
	defer func() { _ = resp.Body.Close() }()

	if contentType := resp.Header.Get("Content-Type"); contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}
	for _, cookie := range resp.Header.Values("Set-Cookie") {
		w.Header().Add("Set-Cookie", cookie)
	}

	w.WriteHeader(resp.StatusCode)

	h.logger.Info("request proxied", "method", r.Method, "path", path, "status", resp.StatusCode)

	if _, err := io.Copy(w, resp.Body); err != nil {
		h.logger.Error("failed to copy response body", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]any{"success": false, "message": message}); err != nil {
		h.logger.Error("failed to encode error response", "error", err)
	}
}
