package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/noah-isme/backend-pos/internal/common"
)

// Handler exposes the stock endpoints.
type Handler struct {
	Svc *Service
}

type stockMoveRequest struct {
	Quantity int32  `json:"quantity"`
	Note     string `json:"note"`
}

type reserveRequest struct {
	CartID uuid.UUID         `json:"cart_id"`
	Items  []ReservationItem `json:"items"`
}

// Get handles GET /api/v1/products/{id}/inventory.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	productID, err := pathID(r)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid product id", nil)
		return
	}
	inv, err := h.Svc.GetInventory(r.Context(), productID)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": inv})
}

// AddStock handles POST /api/v1/products/{id}/inventory/add.
func (h *Handler) AddStock(w http.ResponseWriter, r *http.Request) {
	h.move(w, r, h.Svc.AddStock)
}

// RemoveStock handles POST /api/v1/products/{id}/inventory/remove.
func (h *Handler) RemoveStock(w http.ResponseWriter, r *http.Request) {
	h.move(w, r, h.Svc.RemoveStock)
}

// AdjustStock handles POST /api/v1/products/{id}/inventory/adjust.
func (h *Handler) AdjustStock(w http.ResponseWriter, r *http.Request) {
	productID, err := pathID(r)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid product id", nil)
		return
	}
	var req stockMoveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid json body", nil)
		return
	}
	inv, err := h.Svc.AdjustStock(r.Context(), productID, req.Quantity, req.Note)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": inv})
}

// Movements handles GET /api/v1/products/{id}/inventory/movements.
func (h *Handler) Movements(w http.ResponseWriter, r *http.Request) {
	productID, err := pathID(r)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid product id", nil)
		return
	}
	limit := int64(50)
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.ParseInt(raw, 10, 32); err == nil {
			limit = parsed
		}
	}
	rows, err := h.Svc.Movements(r.Context(), productID, int32(limit))
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": rows})
}

// Reserve handles POST /api/v1/reservations.
func (h *Handler) Reserve(w http.ResponseWriter, r *http.Request) {
	var req reserveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid json body", nil)
		return
	}
	if req.CartID == uuid.Nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "cart_id is required", nil)
		return
	}
	res, err := h.Svc.Reserve(r.Context(), req.CartID, req.Items)
	if err != nil {
		if errors.Is(err, ErrInsufficientStock) {
			common.JSONError(w, http.StatusConflict, "INSUFFICIENT_STOCK", err.Error(), nil)
			return
		}
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": res})
}

// Release handles DELETE /api/v1/reservations/{cartID}.
func (h *Handler) Release(w http.ResponseWriter, r *http.Request) {
	cartID, err := uuid.Parse(chi.URLParam(r, "cartID"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid cart id", nil)
		return
	}
	if err := h.Svc.Release(r.Context(), cartID); err != nil {
		if errors.Is(err, ErrReservationNotFound) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "reservation not found", nil)
			return
		}
		common.RenderError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) move(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, productID int64, qty int32, note string) (Inventory, error)) {
	productID, err := pathID(r)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid product id", nil)
		return
	}
	var req stockMoveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid json body", nil)
		return
	}
	inv, err := fn(r.Context(), productID, req.Quantity, req.Note)
	if err != nil {
		if errors.Is(err, ErrInsufficientStock) {
			common.JSONError(w, http.StatusConflict, "INSUFFICIENT_STOCK", err.Error(), nil)
			return
		}
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": inv})
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}
