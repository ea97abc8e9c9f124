package catalog

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

type Handler struct {
	repo   *RestaurantRepository
	logger *slog.Logger
}

func NewHandler(repo *RestaurantRepository, logger *slog.Logger) *Handler {
	return &Handler{
		repo:   repo,
		logger: logger,
	}
}

func (h *Handler) HandleGetRestaurant(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "missing restaurant id")
		return
	}

	restaurant, err := h.repo.GetWithMenu(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get restaurant", "error", err, "restaurant_id", id)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if restaurant == nil {
		h.writeError(w, http.StatusNotFound, "restaurant not found")
		return
	}

	h.logger.Info("restaurant retrieved", "restaurant_id", id, "menu_items", len(restaurant.Menus))
	h.writeJSON(w, http.StatusOK, map[string]any{"success": true, "restaurant": restaurant})
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
