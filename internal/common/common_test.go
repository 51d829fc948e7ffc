package common_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/noah-isme/backend-pos/internal/common"
)

func TestParsePageDefaults(t *testing.T) {
	page := common.ParsePage(url.Values{}, 20, 100)
	if page.Number != 1 || page.PerPage != 20 {
		t.Fatalf("unexpected defaults %+v", page)
	}
	if page.Offset() != 0 {
		t.Fatalf("expected offset 0 got %d", page.Offset())
	}
}

func TestParsePageClampsPerPage(t *testing.T) {
	values := url.Values{"page": {"3"}, "per_page": {"9999"}}
	page := common.ParsePage(values, 20, 100)
	if page.Number != 3 {
		t.Fatalf("expected page 3 got %d", page.Number)
	}
	if page.PerPage != 100 {
		t.Fatalf("expected per_page clamped to 100 got %d", page.PerPage)
	}
	if page.Offset() != 200 {
		t.Fatalf("expected offset 200 got %d", page.Offset())
	}
}

func TestParsePageIgnoresGarbage(t *testing.T) {
	values := url.Values{"page": {"-4"}, "per_page": {"abc"}}
	page := common.ParsePage(values, 20, 100)
	if page.Number != 1 || page.PerPage != 20 {
		t.Fatalf("garbage input must fall back to defaults, got %+v", page)
	}
}

func TestAtoiDefault(t *testing.T) {
	if got := common.AtoiDefault("42", 7); got != 42 {
		t.Fatalf("expected 42 got %d", got)
	}
	if got := common.AtoiDefault("nope", 7); got != 7 {
		t.Fatalf("expected fallback 7 got %d", got)
	}
}

func TestRenderErrorAppError(t *testing.T) {
	rr := httptest.NewRecorder()
	common.RenderError(rr, common.NewAppError("NOT_FOUND", "product not found", http.StatusNotFound, nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", rr.Code)
	}
	var payload struct {
		Error common.ErrorBody `json:"error"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Error.Code != "NOT_FOUND" {
		t.Fatalf("unexpected code %q", payload.Error.Code)
	}
}

func TestRenderErrorWrapped(t *testing.T) {
	rr := httptest.NewRecorder()
	wrapped := errors.Join(errors.New("outer"), common.NewAppError("CONFLICT", "busy", http.StatusConflict, nil))
	common.RenderError(rr, wrapped)
	if rr.Code != http.StatusConflict {
		t.Fatalf("wrapped app errors must keep their status, got %d", rr.Code)
	}
}

func TestRenderErrorPlain(t *testing.T) {
	rr := httptest.NewRecorder()
	common.RenderError(rr, errors.New("boom"))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 got %d", rr.Code)
	}
	var payload struct {
		Error common.ErrorBody `json:"error"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	// Internal details never leak to clients.
	if payload.Error.Message != "internal server error" {
		t.Fatalf("unexpected message %q", payload.Error.Message)
	}
}

func TestAppErrorUnwrap(t *testing.T) {
	inner := errors.New("row not found")
	appErr := common.NewAppError("NOT_FOUND", "missing", http.StatusNotFound, inner)
	if !errors.Is(appErr, inner) {
		t.Fatal("AppError must unwrap to its cause")
	}
	if !common.IsAppError(appErr) {
		t.Fatal("IsAppError must detect AppError")
	}
	if common.IsAppError(inner) {
		t.Fatal("IsAppError must reject plain errors")
	}
}
