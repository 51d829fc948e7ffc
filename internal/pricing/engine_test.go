package pricing

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("parse decimal %q: %v", s, err)
	}
	return d
}

func line(t *testing.T, id int64, qty int, unit string) LineItem {
	t.Helper()
	price := dec(t, unit)
	return LineItem{
		ProductID: id,
		Name:      "item",
		Quantity:  qty,
		UnitPrice: price,
		Total:     price.Mul(decimal.NewFromInt(int64(qty))),
	}
}

func strPtr(s string) *string { return &s }

var testNow = time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)

func TestCalculatePassthrough(t *testing.T) {
	result := Calculate(CalcInput{
		Lines:         []LineItem{line(t, 1, 2, "50.00")},
		TotalQuantity: 2,
		Now:           testNow,
		Currency:      "PHP",
	})
	if !result.Subtotal.Equal(dec(t, "100")) {
		t.Fatalf("expected subtotal 100 got %s", result.Subtotal)
	}
	if !result.GrandTotal.Equal(dec(t, "100")) {
		t.Fatalf("expected grand total 100 got %s", result.GrandTotal)
	}
	if !result.DiscountTotal.IsZero() || !result.TaxTotal.IsZero() {
		t.Fatalf("expected zero discount and tax, got %s / %s", result.DiscountTotal, result.TaxTotal)
	}
	if len(result.AppliedDiscounts) != 0 || len(result.TaxBreakdown) != 0 {
		t.Fatalf("expected empty discount and tax slices")
	}
}

func TestCalculateExclusiveTax(t *testing.T) {
	result := Calculate(CalcInput{
		Lines:         []LineItem{line(t, 1, 1, "100.00")},
		TotalQuantity: 1,
		TaxRates: []TaxRate{
			{ID: 1, Name: "VAT", Percentage: dec(t, "12"), Kind: TaxExclusive, Active: true},
		},
		Now: testNow,
	})
	if !result.GrandTotal.Equal(dec(t, "112")) {
		t.Fatalf("expected grand total 112 got %s", result.GrandTotal)
	}
	if !result.TaxTotal.Equal(dec(t, "12")) {
		t.Fatalf("expected tax total 12 got %s", result.TaxTotal)
	}
	if len(result.TaxBreakdown) != 1 || !result.TaxBreakdown[0].Amount.Equal(dec(t, "12")) {
		t.Fatalf("unexpected tax breakdown %+v", result.TaxBreakdown)
	}
}

func TestCalculateInclusiveTax(t *testing.T) {
	result := Calculate(CalcInput{
		Lines:         []LineItem{line(t, 1, 1, "110.00")},
		TotalQuantity: 1,
		TaxRates: []TaxRate{
			{ID: 1, Name: "VAT", Percentage: dec(t, "10"), Kind: TaxInclusive, Active: true},
		},
		Now: testNow,
	})
	// Inclusive tax is disclosed, not added: 110 already contains 10.
	if !result.GrandTotal.Equal(dec(t, "110")) {
		t.Fatalf("expected grand total 110 got %s", result.GrandTotal)
	}
	if !result.TaxTotal.Equal(dec(t, "10")) {
		t.Fatalf("expected tax total 10 got %s", result.TaxTotal)
	}
}

func TestCalculateMixedTaxes(t *testing.T) {
	category := "food"
	result := Calculate(CalcInput{
		Lines:         []LineItem{line(t, 1, 1, "100.00")},
		TotalQuantity: 1,
		TaxRates: []TaxRate{
			{ID: 1, Name: "VAT", Percentage: dec(t, "12"), Kind: TaxExclusive, Active: true},
			// Category never narrows applicability; every active rate applies.
			{ID: 2, Name: "Local", Percentage: dec(t, "10"), Kind: TaxInclusive, Category: &category, Active: true},
		},
		Now: testNow,
	})
	if len(result.TaxBreakdown) != 2 {
		t.Fatalf("expected both rates in breakdown, got %d", len(result.TaxBreakdown))
	}
	// Only the exclusive amount moves the grand total.
	if !result.GrandTotal.Equal(dec(t, "112")) {
		t.Fatalf("expected grand total 112 got %s", result.GrandTotal)
	}
	if !result.TaxTotal.Equal(dec(t, "21.09")) {
		t.Fatalf("expected tax total 21.09 got %s", result.TaxTotal)
	}
}

func TestBulkDiscountMinQuantity(t *testing.T) {
	bulk := Discount{ID: 1, Kind: DiscountFixed, Value: dec(t, "50"), MinQuantity: 5, Priority: 10, Active: true}

	below := Calculate(CalcInput{
		Lines:         []LineItem{line(t, 1, 4, "100.00")},
		TotalQuantity: 4,
		Discounts:     []Discount{bulk},
		Now:           testNow,
	})
	if !below.DiscountTotal.IsZero() {
		t.Fatalf("discount should not apply below min quantity, got %s", below.DiscountTotal)
	}

	at := Calculate(CalcInput{
		Lines:         []LineItem{line(t, 1, 5, "100.00")},
		TotalQuantity: 5,
		Discounts:     []Discount{bulk},
		Now:           testNow,
	})
	if !at.DiscountTotal.Equal(dec(t, "50")) {
		t.Fatalf("expected discount 50 at min quantity, got %s", at.DiscountTotal)
	}
	if !at.GrandTotal.Equal(dec(t, "450")) {
		t.Fatalf("expected grand total 450, got %s", at.GrandTotal)
	}
}

func TestDiscountStackingCompounds(t *testing.T) {
	result := Calculate(CalcInput{
		Lines:         []LineItem{line(t, 1, 2, "100.00")},
		TotalQuantity: 2,
		Code:          "CODE10",
		Discounts: []Discount{
			{ID: 1, Code: strPtr("CODE10"), Kind: DiscountPercent, Value: dec(t, "10"), Priority: 100, Stackable: true, Active: true},
			{ID: 2, Kind: DiscountFixed, Value: dec(t, "20"), Priority: 50, Stackable: true, Active: true},
		},
		Now: testNow,
	})
	// 200 - 10% = 180, then -20 = 160.
	if !result.GrandTotal.Equal(dec(t, "160")) {
		t.Fatalf("expected grand total 160 got %s", result.GrandTotal)
	}
	if !result.DiscountTotal.Equal(dec(t, "40")) {
		t.Fatalf("expected discount total 40 got %s", result.DiscountTotal)
	}
	if len(result.AppliedDiscounts) != 2 {
		t.Fatalf("expected 2 applied discounts got %d", len(result.AppliedDiscounts))
	}
	if !result.AppliedDiscounts[0].Amount.Equal(dec(t, "20")) {
		t.Fatalf("expected first applied amount 20 got %s", result.AppliedDiscounts[0].Amount)
	}
}

func TestNonStackableTopAppliesAlone(t *testing.T) {
	result := Calculate(CalcInput{
		Lines:         []LineItem{line(t, 1, 1, "100.00")},
		TotalQuantity: 1,
		Discounts: []Discount{
			{ID: 1, Kind: DiscountFixed, Value: dec(t, "30"), Priority: 100, Stackable: false, Active: true},
			{ID: 2, Kind: DiscountFixed, Value: dec(t, "10"), Priority: 50, Stackable: true, Active: true},
		},
		Now: testNow,
	})
	if len(result.AppliedDiscounts) != 1 {
		t.Fatalf("expected 1 applied discount got %d", len(result.AppliedDiscounts))
	}
	if !result.DiscountTotal.Equal(dec(t, "30")) {
		t.Fatalf("expected discount total 30 got %s", result.DiscountTotal)
	}
}

func TestDiscountCappedAtRunningSubtotal(t *testing.T) {
	result := Calculate(CalcInput{
		Lines:         []LineItem{line(t, 1, 1, "100.00")},
		TotalQuantity: 1,
		Discounts: []Discount{
			{ID: 1, Kind: DiscountFixed, Value: dec(t, "500"), Priority: 10, Active: true},
		},
		Now: testNow,
	})
	if !result.DiscountTotal.Equal(dec(t, "100")) {
		t.Fatalf("expected discount capped at 100 got %s", result.DiscountTotal)
	}
	if result.GrandTotal.IsNegative() {
		t.Fatalf("grand total must never be negative, got %s", result.GrandTotal)
	}
	if !result.GrandTotal.IsZero() {
		t.Fatalf("expected grand total 0 got %s", result.GrandTotal)
	}
}

func TestEligibleDiscountsOrdering(t *testing.T) {
	eligible := EligibleDiscounts([]Discount{
		{ID: 3, Priority: 10, Active: true},
		{ID: 1, Priority: 10, Active: true},
		{ID: 2, Priority: 99, Active: true},
	}, "", 1, testNow)
	if len(eligible) != 3 {
		t.Fatalf("expected 3 eligible got %d", len(eligible))
	}
	if eligible[0].ID != 2 {
		t.Fatalf("highest priority first, got ID %d", eligible[0].ID)
	}
	if eligible[1].ID != 1 || eligible[2].ID != 3 {
		t.Fatalf("priority ties must break by ID ascending, got %d then %d", eligible[1].ID, eligible[2].ID)
	}
}

func TestDiscountCodeIsCaseSensitive(t *testing.T) {
	discounts := []Discount{
		{ID: 1, Code: strPtr("CODE10"), Kind: DiscountPercent, Value: dec(t, "10"), Active: true},
	}
	if got := EligibleDiscounts(discounts, "code10", 1, testNow); len(got) != 0 {
		t.Fatalf("lowercase code must not match, got %d eligible", len(got))
	}
	if got := EligibleDiscounts(discounts, "CODE10", 1, testNow); len(got) != 1 {
		t.Fatalf("exact code must match, got %d eligible", len(got))
	}
}

func TestExpiredDiscountExcluded(t *testing.T) {
	ended := testNow.Add(-time.Hour)
	notStarted := testNow.Add(time.Hour)
	discounts := []Discount{
		{ID: 1, Kind: DiscountFixed, Value: dec(t, "10"), EndsAt: &ended, Active: true},
		{ID: 2, Kind: DiscountFixed, Value: dec(t, "10"), StartsAt: &notStarted, Active: true},
		{ID: 3, Kind: DiscountFixed, Value: dec(t, "10"), Active: false},
	}
	if got := EligibleDiscounts(discounts, "", 1, testNow); len(got) != 0 {
		t.Fatalf("expected no eligible discounts, got %d", len(got))
	}
}

func TestCalculateIsDeterministic(t *testing.T) {
	in := CalcInput{
		Lines:         []LineItem{line(t, 1, 3, "33.33")},
		TotalQuantity: 3,
		Discounts: []Discount{
			{ID: 1, Kind: DiscountPercent, Value: dec(t, "7.5"), Priority: 1, Active: true},
		},
		TaxRates: []TaxRate{
			{ID: 1, Name: "VAT", Percentage: dec(t, "12"), Kind: TaxExclusive, Active: true},
		},
		Now:      testNow,
		Currency: "PHP",
	}
	first := Calculate(in)
	second := Calculate(in)

	a, err := json.Marshal(first)
	if err != nil {
		t.Fatalf("marshal first: %v", err)
	}
	b, err := json.Marshal(second)
	if err != nil {
		t.Fatalf("marshal second: %v", err)
	}
	if string(a) != string(b) {
		t.Fatalf("same input must produce identical results:\n%s\n%s", a, b)
	}
}

func TestCalculateWarningsPassThrough(t *testing.T) {
	result := Calculate(CalcInput{
		Lines:         []LineItem{line(t, 1, 2, "10.00")},
		Warnings:      []string{"Low stock for Chips: Only 1 left."},
		TotalQuantity: 2,
		Now:           testNow,
	})
	if len(result.InventoryWarnings) != 1 {
		t.Fatalf("expected warning to pass through, got %v", result.InventoryWarnings)
	}
	// Warnings never change totals.
	if !result.GrandTotal.Equal(dec(t, "20")) {
		t.Fatalf("expected grand total 20 got %s", result.GrandTotal)
	}
}
