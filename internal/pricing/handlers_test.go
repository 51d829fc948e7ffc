package pricing

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

type stubAdmin struct {
	discounts []Discount
	taxRates  []TaxRate
}

func (a *stubAdmin) ListDiscounts(_ context.Context) ([]Discount, error) {
	return a.discounts, nil
}

func (a *stubAdmin) CreateDiscount(_ context.Context, in DiscountInput) (Discount, error) {
	d := Discount{ID: int64(len(a.discounts) + 1), Code: in.Code, Kind: DiscountKind(in.Kind), Value: in.Value, Active: in.Active}
	a.discounts = append(a.discounts, d)
	return d, nil
}

func (a *stubAdmin) UpdateDiscount(_ context.Context, id int64, _ DiscountInput) (Discount, error) {
	for _, d := range a.discounts {
		if d.ID == id {
			return d, nil
		}
	}
	return Discount{}, ErrNotFound
}

func (a *stubAdmin) ListTaxRates(_ context.Context) ([]TaxRate, error) {
	return a.taxRates, nil
}

func (a *stubAdmin) CreateTaxRate(_ context.Context, in TaxRateInput) (TaxRate, error) {
	t := TaxRate{ID: int64(len(a.taxRates) + 1), Name: in.Name, Percentage: in.Percentage, Kind: TaxKind(in.Kind), Active: in.Active}
	a.taxRates = append(a.taxRates, t)
	return t, nil
}

func (a *stubAdmin) UpdateTaxRate(_ context.Context, id int64, _ TaxRateInput) (TaxRate, error) {
	for _, t := range a.taxRates {
		if t.ID == id {
			return t, nil
		}
	}
	return TaxRate{}, ErrNotFound
}

func newTestHandler(t *testing.T) *Handler {
	t.Helper()
	return &Handler{
		Svc:      newTestService(newStub(t)),
		Admin:    &stubAdmin{},
		Validate: validator.New(),
	}
}

func testRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Post("/pricing/calculate", h.Calculate)
	r.Get("/products/{id}/prices", h.PriceHistory)
	r.Post("/admin/discounts", h.CreateDiscount)
	r.Put("/admin/discounts/{id}", h.UpdateDiscount)
	r.Post("/admin/tax-rates", h.CreateTaxRate)
	return r
}

func TestCalculateHandlerSuccess(t *testing.T) {
	router := testRouter(newTestHandler(t))
	body := `{"items":[{"product_id":1,"quantity":2}]}`
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/pricing/calculate", strings.NewReader(body)))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rr.Code, rr.Body.String())
	}
	var envelope struct {
		Data Result `json:"data"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !envelope.Data.Subtotal.Equal(dec(t, "30")) {
		t.Fatalf("expected subtotal 30 got %s", envelope.Data.Subtotal)
	}
}

func TestCalculateHandlerRejectsBadInput(t *testing.T) {
	router := testRouter(newTestHandler(t))

	cases := []struct {
		name string
		body string
	}{
		{"empty items", `{"items":[]}`},
		{"zero quantity", `{"items":[{"product_id":1,"quantity":0}]}`},
		{"negative quantity", `{"items":[{"product_id":1,"quantity":-2}]}`},
		{"invalid json", `{`},
	}
	for _, tc := range cases {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/pricing/calculate", strings.NewReader(tc.body)))
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400 got %d", tc.name, rr.Code)
		}
	}
}

func TestCreateDiscountHandlerValidates(t *testing.T) {
	router := testRouter(newTestHandler(t))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/admin/discounts",
		strings.NewReader(`{"type":"loyalty","value":"10"}`)))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("unknown discount type must 400, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/admin/discounts",
		strings.NewReader(`{"type":"percent","value":"10","is_active":true}`)))
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestUpdateDiscountHandlerNotFound(t *testing.T) {
	router := testRouter(newTestHandler(t))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPut, "/admin/discounts/99",
		strings.NewReader(`{"type":"fixed","value":"5"}`)))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", rr.Code)
	}
}

func TestCreateTaxRateHandlerValidates(t *testing.T) {
	router := testRouter(newTestHandler(t))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/admin/tax-rates",
		strings.NewReader(`{"name":"VAT","type":"flat","percentage":"12"}`)))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("unknown tax type must 400, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/admin/tax-rates",
		strings.NewReader(`{"name":"VAT","type":"exclusive","percentage":"12","is_active":true}`)))
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestPriceHistoryHandlerBadID(t *testing.T) {
	router := testRouter(newTestHandler(t))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/products/abc/prices", nil))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rr.Code)
	}
}
