package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/noah-isme/backend-pos/internal/pricing"
)

const discountColumns = `id, code, type, value, min_quantity, priority, is_stackable, starts_at, ends_at, is_active`

func scanDiscount(row pgx.Row) (pricing.Discount, error) {
	var d pricing.Discount
	err := row.Scan(&d.ID, &d.Code, &d.Kind, &d.Value, &d.MinQuantity, &d.Priority,
		&d.Stackable, &d.StartsAt, &d.EndsAt, &d.Active)
	if errors.Is(err, pgx.ErrNoRows) {
		return pricing.Discount{}, pricing.ErrNotFound
	}
	if err != nil {
		return pricing.Discount{}, fmt.Errorf("scan discount: %w", err)
	}
	return d, nil
}

const taxRateColumns = `id, name, percentage, type, category, is_active`

func scanTaxRate(row pgx.Row) (pricing.TaxRate, error) {
	var t pricing.TaxRate
	err := row.Scan(&t.ID, &t.Name, &t.Percentage, &t.Kind, &t.Category, &t.Active)
	if errors.Is(err, pgx.ErrNoRows) {
		return pricing.TaxRate{}, pricing.ErrNotFound
	}
	if err != nil {
		return pricing.TaxRate{}, fmt.Errorf("scan tax rate: %w", err)
	}
	return t, nil
}

// LatestPriceOnOrBefore returns the newest price record effective at or
// before the given instant. The bool reports whether one exists.
func (s *Store) LatestPriceOnOrBefore(ctx context.Context, productID int64, at time.Time) (pricing.PriceRecord, bool, error) {
	var rec pricing.PriceRecord
	err := s.Pool.QueryRow(ctx,
		`SELECT id, product_id, amount, effective_date, created_at
		   FROM prices
		  WHERE product_id = $1 AND effective_date <= $2
		  ORDER BY effective_date DESC, id DESC
		  LIMIT 1`,
		productID, at,
	).Scan(&rec.ID, &rec.ProductID, &rec.Amount, &rec.EffectiveDate, &rec.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return pricing.PriceRecord{}, false, nil
	}
	if err != nil {
		return pricing.PriceRecord{}, false, fmt.Errorf("latest price: %w", err)
	}
	return rec, true, nil
}

// ListPriceHistory returns all price records for a product, newest first.
func (s *Store) ListPriceHistory(ctx context.Context, productID int64) ([]pricing.PriceRecord, error) {
	rows, err := s.Pool.Query(ctx,
		`SELECT id, product_id, amount, effective_date, created_at
		   FROM prices WHERE product_id = $1
		  ORDER BY effective_date DESC, id DESC`,
		productID,
	)
	if err != nil {
		return nil, fmt.Errorf("list price history: %w", err)
	}
	defer rows.Close()

	out := []pricing.PriceRecord{}
	for rows.Next() {
		var rec pricing.PriceRecord
		if err := rows.Scan(&rec.ID, &rec.ProductID, &rec.Amount, &rec.EffectiveDate, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan price record: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ListPriceLogs returns the audit entries for a product, newest first.
func (s *Store) ListPriceLogs(ctx context.Context, productID int64) ([]pricing.PriceLog, error) {
	rows, err := s.Pool.Query(ctx,
		`SELECT id, product_id, old_amount, new_amount, reason, changed_by, created_at
		   FROM price_logs WHERE product_id = $1
		  ORDER BY created_at DESC, id DESC`,
		productID,
	)
	if err != nil {
		return nil, fmt.Errorf("list price logs: %w", err)
	}
	defer rows.Close()

	out := []pricing.PriceLog{}
	for rows.Next() {
		var log pricing.PriceLog
		if err := rows.Scan(&log.ID, &log.ProductID, &log.OldAmount, &log.NewAmount, &log.Reason, &log.ChangedBy, &log.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan price log: %w", err)
		}
		out = append(out, log)
	}
	return out, rows.Err()
}

// ListCandidateDiscounts returns active discounts whose window covers the
// given instant. The engine re-checks eligibility per cart.
func (s *Store) ListCandidateDiscounts(ctx context.Context, at time.Time) ([]pricing.Discount, error) {
	rows, err := s.Pool.Query(ctx,
		`SELECT `+discountColumns+`
		   FROM discounts
		  WHERE is_active = TRUE
		    AND (starts_at IS NULL OR starts_at <= $1)
		    AND (ends_at IS NULL OR ends_at >= $1)
		  ORDER BY priority DESC, id`,
		at,
	)
	if err != nil {
		return nil, fmt.Errorf("list candidate discounts: %w", err)
	}
	defer rows.Close()

	out := []pricing.Discount{}
	for rows.Next() {
		var d pricing.Discount
		if err := rows.Scan(&d.ID, &d.Code, &d.Kind, &d.Value, &d.MinQuantity, &d.Priority,
			&d.Stackable, &d.StartsAt, &d.EndsAt, &d.Active); err != nil {
			return nil, fmt.Errorf("scan discount: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// ListActiveTaxRates returns every active tax rate.
func (s *Store) ListActiveTaxRates(ctx context.Context) ([]pricing.TaxRate, error) {
	rows, err := s.Pool.Query(ctx,
		`SELECT `+taxRateColumns+` FROM tax_rates WHERE is_active = TRUE ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list tax rates: %w", err)
	}
	defer rows.Close()

	out := []pricing.TaxRate{}
	for rows.Next() {
		var t pricing.TaxRate
		if err := rows.Scan(&t.ID, &t.Name, &t.Percentage, &t.Kind, &t.Category, &t.Active); err != nil {
			return nil, fmt.Errorf("scan tax rate: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ListDiscounts returns every discount, for the admin surface.
func (s *Store) ListDiscounts(ctx context.Context) ([]pricing.Discount, error) {
	rows, err := s.Pool.Query(ctx, `SELECT `+discountColumns+` FROM discounts ORDER BY priority DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list discounts: %w", err)
	}
	defer rows.Close()

	out := []pricing.Discount{}
	for rows.Next() {
		var d pricing.Discount
		if err := rows.Scan(&d.ID, &d.Code, &d.Kind, &d.Value, &d.MinQuantity, &d.Priority,
			&d.Stackable, &d.StartsAt, &d.EndsAt, &d.Active); err != nil {
			return nil, fmt.Errorf("scan discount: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// CreateDiscount inserts a discount, mapping unique violations on code to
// pricing.ErrDuplicateCode.
func (s *Store) CreateDiscount(ctx context.Context, in pricing.DiscountInput) (pricing.Discount, error) {
	row := s.Pool.QueryRow(ctx,
		`INSERT INTO discounts (code, type, value, min_quantity, priority, is_stackable, starts_at, ends_at, is_active)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING `+discountColumns,
		in.Code, in.Kind, in.Value, in.MinQuantity, in.Priority, in.Stackable, in.StartsAt, in.EndsAt, in.Active,
	)
	d, err := scanDiscount(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return pricing.Discount{}, pricing.ErrDuplicateCode
		}
		return pricing.Discount{}, err
	}
	return d, nil
}

// UpdateDiscount overwrites a discount row.
func (s *Store) UpdateDiscount(ctx context.Context, id int64, in pricing.DiscountInput) (pricing.Discount, error) {
	row := s.Pool.QueryRow(ctx,
		`UPDATE discounts
		    SET code = $2, type = $3, value = $4, min_quantity = $5, priority = $6,
		        is_stackable = $7, starts_at = $8, ends_at = $9, is_active = $10, updated_at = now()
		  WHERE id = $1
		  RETURNING `+discountColumns,
		id, in.Code, in.Kind, in.Value, in.MinQuantity, in.Priority, in.Stackable, in.StartsAt, in.EndsAt, in.Active,
	)
	return scanDiscount(row)
}

// ListTaxRates returns every tax rate, for the admin surface.
func (s *Store) ListTaxRates(ctx context.Context) ([]pricing.TaxRate, error) {
	rows, err := s.Pool.Query(ctx, `SELECT `+taxRateColumns+` FROM tax_rates ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list tax rates: %w", err)
	}
	defer rows.Close()

	out := []pricing.TaxRate{}
	for rows.Next() {
		var t pricing.TaxRate
		if err := rows.Scan(&t.ID, &t.Name, &t.Percentage, &t.Kind, &t.Category, &t.Active); err != nil {
			return nil, fmt.Errorf("scan tax rate: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// CreateTaxRate inserts a tax rate row.
func (s *Store) CreateTaxRate(ctx context.Context, in pricing.TaxRateInput) (pricing.TaxRate, error) {
	row := s.Pool.QueryRow(ctx,
		`INSERT INTO tax_rates (name, percentage, type, category, is_active)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+taxRateColumns,
		in.Name, in.Percentage, in.Kind, in.Category, in.Active,
	)
	return scanTaxRate(row)
}

// UpdateTaxRate overwrites a tax rate row.
func (s *Store) UpdateTaxRate(ctx context.Context, id int64, in pricing.TaxRateInput) (pricing.TaxRate, error) {
	row := s.Pool.QueryRow(ctx,
		`UPDATE tax_rates
		    SET name = $2, percentage = $3, type = $4, category = $5, is_active = $6, updated_at = now()
		  WHERE id = $1
		  RETURNING `+taxRateColumns,
		id, in.Name, in.Percentage, in.Kind, in.Category, in.Active,
	)
	return scanTaxRate(row)
}
