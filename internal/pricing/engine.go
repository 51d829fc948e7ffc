package pricing

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// DiscountKind enumerates how a discount value is interpreted.
type DiscountKind string

// TaxKind enumerates how a tax rate interacts with the subtotal.
type TaxKind string

const (
	DiscountFixed   DiscountKind = "fixed"
	DiscountPercent DiscountKind = "percent"

	TaxInclusive TaxKind = "inclusive"
	TaxExclusive TaxKind = "exclusive"
)

// LineRequest is a single requested cart entry.
type LineRequest struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

// LineItem is a resolved cart line with its effective unit price.
type LineItem struct {
	ProductID int64           `json:"product_id"`
	Name      string          `json:"name"`
	Category  string          `json:"category"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Total     decimal.Decimal `json:"total"`
}

// Discount captures the runtime constraints of a discount row.
type Discount struct {
	ID          int64
	Code        *string
	Kind        DiscountKind
	Value       decimal.Decimal
	MinQuantity int
	Priority    int
	Stackable   bool
	StartsAt    *time.Time
	EndsAt      *time.Time
	Active      bool
}

// ActiveAt reports whether the discount is active and inside its time window.
func (d Discount) ActiveAt(now time.Time) bool {
	if !d.Active {
		return false
	}
	if d.StartsAt != nil && now.Before(*d.StartsAt) {
		return false
	}
	if d.EndsAt != nil && now.After(*d.EndsAt) {
		return false
	}
	return true
}

// CodeMatches reports whether the discount may apply given the cart-supplied
// code. Discounts without a code apply automatically; coded discounts require
// an exact, case-sensitive match.
func (d Discount) CodeMatches(supplied string) bool {
	if d.Code == nil {
		return true
	}
	return *d.Code == supplied
}

// TaxRate represents an active tax configuration row.
type TaxRate struct {
	ID         int64
	Name       string
	Percentage decimal.Decimal
	Kind       TaxKind
	Category   *string
	Active     bool
}

// AppliedDiscount records one discount application in order.
type AppliedDiscount struct {
	Code   *string         `json:"code"`
	Amount decimal.Decimal `json:"amount"`
}

// TaxDetail discloses a single tax rate's contribution.
type TaxDetail struct {
	Name   string          `json:"name"`
	Kind   TaxKind         `json:"type"`
	Amount decimal.Decimal `json:"amount"`
}

// Result is the full cart calculation payload.
type Result struct {
	LineItems         []LineItem        `json:"line_items"`
	Subtotal          decimal.Decimal   `json:"subtotal"`
	DiscountTotal     decimal.Decimal   `json:"discount_total"`
	AppliedDiscounts  []AppliedDiscount `json:"applied_discounts"`
	TaxTotal          decimal.Decimal   `json:"tax_total"`
	TaxBreakdown      []TaxDetail       `json:"taxes"`
	GrandTotal        decimal.Decimal   `json:"grand_total"`
	InventoryWarnings []string          `json:"inventory_warnings"`
	Currency          string            `json:"currency"`
}

// CalcInput bundles the snapshot a calculation runs against. Discounts and
// TaxRates are candidate rows fetched by the repository; all filtering and
// ordering happens in here so the algorithm is testable without a database.
type CalcInput struct {
	Lines    []LineItem
	Warnings []string
	// TotalQuantity is summed over the raw request, including lines whose
	// product could not be resolved.
	TotalQuantity int
	Discounts     []Discount
	TaxRates      []TaxRate
	Code          string
	Now           time.Time
	Currency      string
}

var hundred = decimal.NewFromInt(100)

// EligibleDiscounts filters candidate discounts down to the ones that may
// apply to this cart and orders them by priority descending. Priority ties
// break by ID ascending so the ordering is deterministic.
func EligibleDiscounts(candidates []Discount, code string, totalQty int, now time.Time) []Discount {
	eligible := make([]Discount, 0, len(candidates))
	for _, d := range candidates {
		if !d.ActiveAt(now) {
			continue
		}
		if !d.CodeMatches(code) {
			continue
		}
		if d.MinQuantity > 0 && totalQty < d.MinQuantity {
			continue
		}
		eligible = append(eligible, d)
	}
	sort.Slice(eligible, func(i, j int) bool {
		if eligible[i].Priority != eligible[j].Priority {
			return eligible[i].Priority > eligible[j].Priority
		}
		return eligible[i].ID < eligible[j].ID
	})
	return eligible
}

// SelectStack picks which eligible discounts actually apply. The highest
// priority discount always applies; when it is stackable every other
// stackable discount joins it, otherwise it applies alone.
func SelectStack(eligible []Discount) []Discount {
	if len(eligible) == 0 {
		return nil
	}
	first := eligible[0]
	selected := []Discount{first}
	if !first.Stackable {
		return selected
	}
	for _, d := range eligible[1:] {
		if d.Stackable {
			selected = append(selected, d)
		}
	}
	return selected
}

// ApplyDiscounts applies the selected discounts in order with compounding
// semantics: percentages are computed against the already-discounted
// remainder and every amount is capped at the remaining subtotal, so the
// running subtotal never goes negative.
func ApplyDiscounts(subtotal decimal.Decimal, selected []Discount) (running, total decimal.Decimal, applied []AppliedDiscount) {
	running = subtotal
	total = decimal.Zero
	for _, d := range selected {
		var amount decimal.Decimal
		switch d.Kind {
		case DiscountFixed:
			amount = d.Value
		case DiscountPercent:
			amount = running.Mul(d.Value).Div(hundred)
		default:
			continue
		}
		if amount.GreaterThan(running) {
			amount = running
		}
		total = total.Add(amount)
		running = running.Sub(amount)
		applied = append(applied, AppliedDiscount{Code: d.Code, Amount: amount})
	}
	return running, total, applied
}

// ComputeTaxes evaluates every rate against the post-discount subtotal.
// Exclusive rates add on top; inclusive rates are extracted from the base and
// only disclosed. Amounts are rounded to 2 decimals per rate, and the
// exclusive sum uses those rounded amounts so the breakdown always reconciles
// with the grand total.
func ComputeTaxes(base decimal.Decimal, rates []TaxRate) (details []TaxDetail, taxTotal, exclusiveSum decimal.Decimal) {
	taxTotal = decimal.Zero
	exclusiveSum = decimal.Zero
	for _, rate := range rates {
		var amount decimal.Decimal
		switch rate.Kind {
		case TaxExclusive:
			amount = base.Mul(rate.Percentage).Div(hundred)
		case TaxInclusive:
			divisor := decimal.NewFromInt(1).Add(rate.Percentage.Div(hundred))
			amount = base.Sub(base.Div(divisor))
		default:
			continue
		}
		amount = amount.Round(2)
		taxTotal = taxTotal.Add(amount)
		if rate.Kind == TaxExclusive {
			exclusiveSum = exclusiveSum.Add(amount)
		}
		details = append(details, TaxDetail{Name: rate.Name, Kind: rate.Kind, Amount: amount})
	}
	return details, taxTotal, exclusiveSum
}

// Calculate runs the full pricing pipeline over a snapshot of cart lines,
// discount candidates, and tax rates. It is a pure function of its input.
func Calculate(in CalcInput) Result {
	subtotal := decimal.Zero
	for _, line := range in.Lines {
		subtotal = subtotal.Add(line.Total)
	}

	eligible := EligibleDiscounts(in.Discounts, in.Code, in.TotalQuantity, in.Now)
	selected := SelectStack(eligible)
	running, discountTotal, applied := ApplyDiscounts(subtotal, selected)

	taxes, taxTotal, exclusiveSum := ComputeTaxes(running, in.TaxRates)
	grandTotal := running.Add(exclusiveSum)

	if applied == nil {
		applied = []AppliedDiscount{}
	}
	if taxes == nil {
		taxes = []TaxDetail{}
	}
	warnings := in.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	lines := in.Lines
	if lines == nil {
		lines = []LineItem{}
	}

	return Result{
		LineItems:         lines,
		Subtotal:          subtotal.Round(2),
		DiscountTotal:     discountTotal.Round(2),
		AppliedDiscounts:  applied,
		TaxTotal:          taxTotal.Round(2),
		TaxBreakdown:      taxes,
		GrandTotal:        grandTotal.Round(2),
		InventoryWarnings: warnings,
		Currency:          in.Currency,
	}
}
