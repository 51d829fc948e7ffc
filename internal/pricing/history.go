package pricing

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceRecord is one row of a product's price history. The effective price of
// a product at an instant is the most recent record whose EffectiveDate is at
// or before that instant, falling back to the product's base price when no
// record exists.
type PriceRecord struct {
	ID            int64           `json:"id"`
	ProductID     int64           `json:"product_id"`
	Amount        decimal.Decimal `json:"amount"`
	EffectiveDate time.Time       `json:"effective_date"`
	CreatedAt     time.Time       `json:"created_at"`
}

// PriceLog is an audit entry for a price change.
type PriceLog struct {
	ID        int64            `json:"id"`
	ProductID int64            `json:"product_id"`
	OldAmount *decimal.Decimal `json:"old_amount"`
	NewAmount decimal.Decimal  `json:"new_amount"`
	Reason    string           `json:"reason"`
	ChangedBy *int64           `json:"changed_by"`
	CreatedAt time.Time        `json:"created_at"`
}

// ShouldCoalesce decides whether a price update mutates the latest record in
// place instead of appending a new one: the latest record's effective date
// must fall on the same calendar day as now and the record must have been
// created less than window ago. This keeps rapid successive edits from
// bloating the history.
func ShouldCoalesce(latest PriceRecord, now time.Time, window time.Duration) bool {
	if window <= 0 {
		window = time.Hour
	}
	eff := latest.EffectiveDate.In(now.Location())
	sameDay := eff.Year() == now.Year() && eff.YearDay() == now.YearDay()
	if !sameDay {
		return false
	}
	age := now.Sub(latest.CreatedAt)
	return age >= 0 && age < window
}
