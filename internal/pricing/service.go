package pricing

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-pos/internal/catalog"
	"github.com/noah-isme/backend-pos/internal/common"
	"github.com/noah-isme/backend-pos/internal/events"
	"github.com/noah-isme/backend-pos/internal/obs"
)

// Querier captures the read methods the pricing engine needs. All methods
// read a snapshot; the engine itself never writes through this interface.
type Querier interface {
	GetProduct(ctx context.Context, id int64) (catalog.Product, error)
	GetInventoryQuantity(ctx context.Context, productID int64) (int32, bool, error)
	LatestPriceOnOrBefore(ctx context.Context, productID int64, at time.Time) (PriceRecord, bool, error)
	ListCandidateDiscounts(ctx context.Context, at time.Time) ([]Discount, error)
	ListActiveTaxRates(ctx context.Context) ([]TaxRate, error)
	ListPriceHistory(ctx context.Context, productID int64) ([]PriceRecord, error)
	ListPriceLogs(ctx context.Context, productID int64) ([]PriceLog, error)
}

// Service wires the pure calculation engine to the data stores. Price
// history updates are the one mutating path and run through Pool directly so
// the read-then-write happens inside a single transaction.
type Service struct {
	Q    Querier
	Pool *pgxpool.Pool

	Events *events.Bus

	Now            func() time.Time
	Currency       string
	CoalesceWindow time.Duration
}

// CalculateCart prices the requested items against the current catalog,
// discount, and tax snapshot. Unknown product ids are skipped, not errored.
func (s *Service) CalculateCart(ctx context.Context, items []LineRequest, discountCode string) (Result, error) {
	if s == nil || s.Q == nil {
		return Result{}, errors.New("pricing service not configured")
	}
	now := s.now()

	var (
		lines    []LineItem
		warnings []string
		totalQty int
	)
	for _, it := range items {
		if it.Quantity <= 0 {
			continue
		}
		totalQty += it.Quantity

		product, err := s.Q.GetProduct(ctx, it.ProductID)
		if err != nil {
			if errors.Is(err, catalog.ErrProductNotFound) {
				continue
			}
			s.countCalculation("error")
			return Result{}, fmt.Errorf("resolve product %d: %w", it.ProductID, err)
		}

		unitPrice := product.Price
		if record, ok, err := s.Q.LatestPriceOnOrBefore(ctx, product.ID, now); err != nil {
			s.countCalculation("error")
			return Result{}, fmt.Errorf("resolve price for product %d: %w", product.ID, err)
		} else if ok {
			unitPrice = record.Amount
		}

		if qty, ok, err := s.Q.GetInventoryQuantity(ctx, product.ID); err != nil {
			s.countCalculation("error")
			return Result{}, fmt.Errorf("check inventory for product %d: %w", product.ID, err)
		} else if ok && int(qty) < it.Quantity {
			warnings = append(warnings, fmt.Sprintf("Low stock for %s: Only %d left.", product.Name, qty))
		}

		lines = append(lines, LineItem{
			ProductID: product.ID,
			Name:      product.Name,
			Category:  product.Category,
			Quantity:  it.Quantity,
			UnitPrice: unitPrice,
			Total:     unitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))),
		})
	}

	candidates, err := s.Q.ListCandidateDiscounts(ctx, now)
	if err != nil {
		s.countCalculation("error")
		return Result{}, fmt.Errorf("list discounts: %w", err)
	}
	rates, err := s.Q.ListActiveTaxRates(ctx)
	if err != nil {
		s.countCalculation("error")
		return Result{}, fmt.Errorf("list tax rates: %w", err)
	}

	result := Calculate(CalcInput{
		Lines:         lines,
		Warnings:      warnings,
		TotalQuantity: totalQty,
		Discounts:     candidates,
		TaxRates:      rates,
		Code:          discountCode,
		Now:           now,
		Currency:      s.currency(),
	})
	s.countCalculation("ok")
	if obs.DiscountsAppliedTotal != nil && len(result.AppliedDiscounts) > 0 {
		obs.DiscountsAppliedTotal.Add(float64(len(result.AppliedDiscounts)))
	}
	return result, nil
}

// EffectivePrice resolves a product's unit price at now via the price
// history, falling back to the base price.
func (s *Service) EffectivePrice(ctx context.Context, productID int64) (decimal.Decimal, error) {
	if s == nil || s.Q == nil {
		return decimal.Zero, errors.New("pricing service not configured")
	}
	product, err := s.Q.GetProduct(ctx, productID)
	if err != nil {
		if errors.Is(err, catalog.ErrProductNotFound) {
			return decimal.Zero, &common.AppError{Code: "NOT_FOUND", Message: "product not found", HTTPStatus: http.StatusNotFound, Err: err}
		}
		return decimal.Zero, err
	}
	if record, ok, err := s.Q.LatestPriceOnOrBefore(ctx, productID, s.now()); err != nil {
		return decimal.Zero, err
	} else if ok {
		return record.Amount, nil
	}
	return product.Price, nil
}

// SetPrice records a new price for a product. Updates landing on the same
// calendar day within the coalesce window mutate the latest record in place
// instead of appending; either way a PriceLog entry is written. The
// read-then-write runs in one transaction with the latest price row locked so
// concurrent updates cannot both take the coalesce branch.
func (s *Service) SetPrice(ctx context.Context, productID int64, amount decimal.Decimal, reason string, actorID *int64) (PriceRecord, error) {
	if s == nil || s.Pool == nil {
		return PriceRecord{}, errors.New("pricing service not configured")
	}
	if amount.IsNegative() {
		return PriceRecord{}, &common.AppError{Code: "BAD_REQUEST", Message: "amount cannot be negative", HTTPStatus: http.StatusBadRequest}
	}
	if strings.TrimSpace(reason) == "" {
		reason = "Manual Update"
	}
	now := s.now()

	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return PriceRecord{}, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var basePrice decimal.Decimal
	err = tx.QueryRow(ctx, `SELECT price FROM products WHERE id = $1`, productID).Scan(&basePrice)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PriceRecord{}, &common.AppError{Code: "NOT_FOUND", Message: "product not found", HTTPStatus: http.StatusNotFound, Err: err}
		}
		return PriceRecord{}, err
	}

	var latest PriceRecord
	haveLatest := true
	err = tx.QueryRow(ctx, `
		SELECT id, product_id, amount, effective_date, created_at
		FROM prices
		WHERE product_id = $1
		ORDER BY effective_date DESC
		LIMIT 1
		FOR UPDATE`, productID).
		Scan(&latest.ID, &latest.ProductID, &latest.Amount, &latest.EffectiveDate, &latest.CreatedAt)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return PriceRecord{}, err
		}
		haveLatest = false
	}

	var record PriceRecord
	if haveLatest && ShouldCoalesce(latest, now, s.coalesceWindow()) {
		if _, err := tx.Exec(ctx, `UPDATE prices SET amount = $1, updated_at = $2 WHERE id = $3`, amount, now, latest.ID); err != nil {
			return PriceRecord{}, err
		}
		oldAmount := latest.Amount
		if _, err := tx.Exec(ctx, `
			INSERT INTO price_logs (product_id, old_amount, new_amount, reason, changed_by, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			productID, oldAmount, amount, reason+" (Updated Recent Entry)", actorID, now); err != nil {
			return PriceRecord{}, err
		}
		record = latest
		record.Amount = amount
		s.countPriceUpdate("coalesced")
	} else {
		err = tx.QueryRow(ctx, `
			INSERT INTO prices (product_id, amount, effective_date, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $4)
			RETURNING id`, productID, amount, now, now).Scan(&record.ID)
		if err != nil {
			return PriceRecord{}, err
		}
		record.ProductID = productID
		record.Amount = amount
		record.EffectiveDate = now
		record.CreatedAt = now

		oldAmount := basePrice
		if haveLatest {
			oldAmount = latest.Amount
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO price_logs (product_id, old_amount, new_amount, reason, changed_by, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			productID, oldAmount, amount, reason, actorID, now); err != nil {
			return PriceRecord{}, err
		}
		s.countPriceUpdate("inserted")
	}

	if err := tx.Commit(ctx); err != nil {
		return PriceRecord{}, err
	}

	if s.Events != nil {
		_, _ = s.Events.Emit(ctx, events.TopicPriceUpdated, strconv.FormatInt(productID, 10), map[string]any{
			"product_id": productID,
			"amount":     amount,
			"reason":     reason,
		})
	}
	return record, nil
}

// PriceHistory returns a product's price records ordered by effective date descending.
func (s *Service) PriceHistory(ctx context.Context, productID int64) ([]PriceRecord, error) {
	if s == nil || s.Q == nil {
		return nil, errors.New("pricing service not configured")
	}
	records, err := s.Q.ListPriceHistory(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("list price history: %w", err)
	}
	if records == nil {
		records = []PriceRecord{}
	}
	return records, nil
}

// PriceLogs returns a product's price change audit trail, newest first.
func (s *Service) PriceLogs(ctx context.Context, productID int64) ([]PriceLog, error) {
	if s == nil || s.Q == nil {
		return nil, errors.New("pricing service not configured")
	}
	logs, err := s.Q.ListPriceLogs(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("list price logs: %w", err)
	}
	if logs == nil {
		logs = []PriceLog{}
	}
	return logs, nil
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) currency() string {
	if s != nil && strings.TrimSpace(s.Currency) != "" {
		return s.Currency
	}
	return "PHP"
}

func (s *Service) coalesceWindow() time.Duration {
	if s != nil && s.CoalesceWindow > 0 {
		return s.CoalesceWindow
	}
	return time.Hour
}

func (s *Service) countCalculation(result string) {
	if obs.CartCalculationsTotal != nil {
		obs.CartCalculationsTotal.WithLabelValues(result).Inc()
	}
}

func (s *Service) countPriceUpdate(mode string) {
	if obs.PriceUpdatesTotal != nil {
		obs.PriceUpdatesTotal.WithLabelValues(mode).Inc()
	}
}
