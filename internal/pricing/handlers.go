package pricing

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-pos/internal/common"
)

// DiscountInput is the admin payload for creating or updating a discount.
type DiscountInput struct {
	Code        *string         `json:"code"`
	Kind        string          `json:"type" validate:"required,oneof=fixed percent"`
	Value       decimal.Decimal `json:"value"`
	MinQuantity int             `json:"min_quantity" validate:"gte=0"`
	Priority    int             `json:"priority"`
	Stackable   bool            `json:"is_stackable"`
	StartsAt    *time.Time      `json:"starts_at"`
	EndsAt      *time.Time      `json:"ends_at"`
	Active      bool            `json:"is_active"`
}

// TaxRateInput is the admin payload for creating or updating a tax rate.
type TaxRateInput struct {
	Name       string          `json:"name" validate:"required"`
	Percentage decimal.Decimal `json:"percentage"`
	Kind       string          `json:"type" validate:"required,oneof=inclusive exclusive"`
	Category   *string         `json:"category"`
	Active     bool            `json:"is_active"`
}

// AdminStore captures the write methods behind the discount/tax admin endpoints.
type AdminStore interface {
	ListDiscounts(ctx context.Context) ([]Discount, error)
	CreateDiscount(ctx context.Context, in DiscountInput) (Discount, error)
	UpdateDiscount(ctx context.Context, id int64, in DiscountInput) (Discount, error)
	ListTaxRates(ctx context.Context) ([]TaxRate, error)
	CreateTaxRate(ctx context.Context, in TaxRateInput) (TaxRate, error)
	UpdateTaxRate(ctx context.Context, id int64, in TaxRateInput) (TaxRate, error)
}

// ErrNotFound is returned by AdminStore implementations for missing rows.
var ErrNotFound = errors.New("row not found")

// ErrDuplicateCode is returned when a discount code already exists.
var ErrDuplicateCode = errors.New("discount code already exists")

// Handler exposes the pricing endpoints.
type Handler struct {
	Svc      *Service
	Admin    AdminStore
	Validate *validator.Validate
}

type calculateRequest struct {
	Items        []LineRequest `json:"items" validate:"required,min=1,dive"`
	DiscountCode string        `json:"discount_code"`
}

type setPriceRequest struct {
	Amount    decimal.Decimal `json:"amount"`
	Reason    string          `json:"reason"`
	ChangedBy *int64          `json:"changed_by"`
}

// Calculate handles POST /api/v1/pricing/calculate.
func (h *Handler) Calculate(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "pricing service not configured", nil)
		return
	}
	var req calculateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid json body", nil)
		return
	}
	if len(req.Items) == 0 {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "items is required", nil)
		return
	}
	for _, it := range req.Items {
		if it.Quantity <= 0 {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "quantity must be positive", map[string]any{"product_id": it.ProductID})
			return
		}
	}
	result, err := h.Svc.CalculateCart(r.Context(), req.Items, req.DiscountCode)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": result})
}

// SetPrice handles PUT /api/v1/products/{id}/price.
func (h *Handler) SetPrice(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "pricing service not configured", nil)
		return
	}
	productID, err := pathID(r)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid product id", nil)
		return
	}
	var req setPriceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid json body", nil)
		return
	}
	record, err := h.Svc.SetPrice(r.Context(), productID, req.Amount, req.Reason, req.ChangedBy)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": record})
}

// PriceHistory handles GET /api/v1/products/{id}/prices.
func (h *Handler) PriceHistory(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "pricing service not configured", nil)
		return
	}
	productID, err := pathID(r)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid product id", nil)
		return
	}
	records, err := h.Svc.PriceHistory(r.Context(), productID)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": records})
}

// PriceLogs handles GET /api/v1/products/{id}/price-logs.
func (h *Handler) PriceLogs(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "pricing service not configured", nil)
		return
	}
	productID, err := pathID(r)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid product id", nil)
		return
	}
	logs, err := h.Svc.PriceLogs(r.Context(), productID)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": logs})
}

// ListDiscounts handles GET /api/v1/admin/discounts.
func (h *Handler) ListDiscounts(w http.ResponseWriter, r *http.Request) {
	if h.Admin == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "admin store not configured", nil)
		return
	}
	rows, err := h.Admin.ListDiscounts(r.Context())
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": rows})
}

// CreateDiscount handles POST /api/v1/admin/discounts.
func (h *Handler) CreateDiscount(w http.ResponseWriter, r *http.Request) {
	if h.Admin == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "admin store not configured", nil)
		return
	}
	var in DiscountInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid json body", nil)
		return
	}
	if err := h.validate(in); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return
	}
	if in.Value.IsNegative() {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "value cannot be negative", nil)
		return
	}
	row, err := h.Admin.CreateDiscount(r.Context(), in)
	if err != nil {
		if errors.Is(err, ErrDuplicateCode) {
			common.JSONError(w, http.StatusConflict, "CONFLICT", "discount code already exists", nil)
			return
		}
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": row})
}

// UpdateDiscount handles PUT /api/v1/admin/discounts/{id}.
func (h *Handler) UpdateDiscount(w http.ResponseWriter, r *http.Request) {
	if h.Admin == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "admin store not configured", nil)
		return
	}
	id, err := pathID(r)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid discount id", nil)
		return
	}
	var in DiscountInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid json body", nil)
		return
	}
	if err := h.validate(in); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return
	}
	if in.Value.IsNegative() {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "value cannot be negative", nil)
		return
	}
	row, err := h.Admin.UpdateDiscount(r.Context(), id, in)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "discount not found", nil)
			return
		}
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": row})
}

// ListTaxRates handles GET /api/v1/admin/tax-rates.
func (h *Handler) ListTaxRates(w http.ResponseWriter, r *http.Request) {
	if h.Admin == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "admin store not configured", nil)
		return
	}
	rows, err := h.Admin.ListTaxRates(r.Context())
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": rows})
}

// CreateTaxRate handles POST /api/v1/admin/tax-rates.
func (h *Handler) CreateTaxRate(w http.ResponseWriter, r *http.Request) {
	if h.Admin == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "admin store not configured", nil)
		return
	}
	var in TaxRateInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid json body", nil)
		return
	}
	if err := h.validate(in); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return
	}
	if in.Percentage.IsNegative() {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "percentage cannot be negative", nil)
		return
	}
	row, err := h.Admin.CreateTaxRate(r.Context(), in)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": row})
}

// UpdateTaxRate handles PUT /api/v1/admin/tax-rates/{id}.
func (h *Handler) UpdateTaxRate(w http.ResponseWriter, r *http.Request) {
	if h.Admin == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "admin store not configured", nil)
		return
	}
	id, err := pathID(r)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid tax rate id", nil)
		return
	}
	var in TaxRateInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid json body", nil)
		return
	}
	if err := h.validate(in); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return
	}
	if in.Percentage.IsNegative() {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "percentage cannot be negative", nil)
		return
	}
	row, err := h.Admin.UpdateTaxRate(r.Context(), id, in)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "tax rate not found", nil)
			return
		}
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": row})
}

func (h *Handler) validate(v any) error {
	if h.Validate == nil {
		return nil
	}
	return h.Validate.Struct(v)
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}
