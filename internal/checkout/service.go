package checkout

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-pos/internal/common"
	"github.com/noah-isme/backend-pos/internal/events"
	"github.com/noah-isme/backend-pos/internal/inventory"
	"github.com/noah-isme/backend-pos/internal/obs"
	"github.com/noah-isme/backend-pos/internal/pricing"
)

// Input is a checkout request: the cart lines plus an optional discount code.
type Input struct {
	Items        []pricing.LineRequest `json:"items"`
	DiscountCode string                `json:"discount_code"`
	PaidAmount   decimal.Decimal       `json:"paid_amount"`
	CashierID    *int64                `json:"cashier_id"`
}

// SaleItem is the immutable snapshot of one sold line.
type SaleItem struct {
	ProductID int64           `json:"product_id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Total     decimal.Decimal `json:"total"`
}

// Sale is a completed transaction.
type Sale struct {
	ID            string            `json:"id"`
	Items         []SaleItem        `json:"items"`
	Subtotal      decimal.Decimal   `json:"subtotal"`
	DiscountTotal decimal.Decimal   `json:"discount_total"`
	TaxTotal      decimal.Decimal   `json:"tax_total"`
	GrandTotal    decimal.Decimal   `json:"grand_total"`
	PaidAmount    decimal.Decimal   `json:"paid_amount"`
	ChangeDue     decimal.Decimal   `json:"change_due"`
	Currency      string            `json:"currency"`
	CashierID     *int64            `json:"cashier_id,omitempty"`
	Breakdown     *pricing.Result   `json:"breakdown,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
}

// Service turns a priced cart into a persisted sale. The whole write —
// transaction row, item snapshots, stock deductions, daily summary — happens
// in one database transaction.
type Service struct {
	Pool    *pgxpool.Pool
	Pricing *pricing.Service
	Events  *events.Bus
	Now     func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Create prices the cart, deducts stock and persists the sale. Any
// insufficiency aborts and rolls back the whole sale.
func (s *Service) Create(ctx context.Context, in Input) (Sale, error) {
	if s == nil || s.Pool == nil || s.Pricing == nil {
		return Sale{}, errors.New("checkout service not configured")
	}
	if len(in.Items) == 0 {
		return Sale{}, common.NewAppError("BAD_REQUEST", "items is required", http.StatusBadRequest, nil)
	}
	for _, it := range in.Items {
		if it.Quantity <= 0 {
			return Sale{}, common.NewAppError("BAD_REQUEST", "quantity must be positive", http.StatusBadRequest, nil)
		}
	}

	result, err := s.Pricing.CalculateCart(ctx, in.Items, in.DiscountCode)
	if err != nil {
		s.countCheckout("error")
		return Sale{}, err
	}
	if len(result.LineItems) == 0 {
		s.countCheckout("rejected")
		return Sale{}, common.NewAppError("BAD_REQUEST", "no resolvable items in cart", http.StatusBadRequest, nil)
	}
	if !in.PaidAmount.IsZero() && in.PaidAmount.LessThan(result.GrandTotal) {
		s.countCheckout("rejected")
		return Sale{}, common.NewAppError("PAYMENT_TOO_LOW", "paid amount is less than the grand total", http.StatusUnprocessableEntity, nil)
	}

	now := s.now()
	sale := Sale{
		ID:            NewSaleID(now),
		Subtotal:      result.Subtotal,
		DiscountTotal: result.DiscountTotal,
		TaxTotal:      result.TaxTotal,
		GrandTotal:    result.GrandTotal,
		PaidAmount:    in.PaidAmount,
		Currency:      result.Currency,
		CashierID:     in.CashierID,
		Breakdown:     &result,
		CreatedAt:     now,
	}
	if !in.PaidAmount.IsZero() {
		sale.ChangeDue = in.PaidAmount.Sub(result.GrandTotal).Round(2)
	}

	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Sale{}, fmt.Errorf("begin checkout: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	breakdown, err := json.Marshal(result)
	if err != nil {
		return Sale{}, fmt.Errorf("encode breakdown: %w", err)
	}
	_, err = tx.Exec(ctx,
		`INSERT INTO transactions (id, subtotal, discount_total, tax_total, grand_total, paid_amount, change_due, currency, cashier_id, breakdown, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		sale.ID, sale.Subtotal, sale.DiscountTotal, sale.TaxTotal, sale.GrandTotal,
		sale.PaidAmount, sale.ChangeDue, sale.Currency, sale.CashierID, breakdown, now,
	)
	if err != nil {
		return Sale{}, fmt.Errorf("insert transaction: %w", err)
	}

	itemsSold := 0
	for _, li := range result.LineItems {
		item := SaleItem{
			ProductID: li.ProductID,
			Name:      li.Name,
			Quantity:  li.Quantity,
			UnitPrice: li.UnitPrice,
			Total:     li.Total,
		}
		sale.Items = append(sale.Items, item)
		itemsSold += item.Quantity

		_, err = tx.Exec(ctx,
			`INSERT INTO transaction_items (transaction_id, product_id, name, quantity, unit_price, total) VALUES ($1, $2, $3, $4, $5, $6)`,
			sale.ID, item.ProductID, item.Name, item.Quantity, item.UnitPrice, item.Total,
		)
		if err != nil {
			return Sale{}, fmt.Errorf("insert transaction item: %w", err)
		}

		_, err = inventory.DeductInTx(ctx, tx, item.ProductID, int32(item.Quantity), "sale "+sale.ID, now)
		if err != nil {
			if errors.Is(err, inventory.ErrInsufficientStock) {
				s.countCheckout("insufficient_stock")
				return Sale{}, common.NewAppError("INSUFFICIENT_STOCK", err.Error(), http.StatusConflict, err)
			}
			return Sale{}, err
		}
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO daily_sales_summaries (date, total_sales, discount_total, tax_total, transactions_count, items_sold)
		 VALUES ($1, $2, $3, $4, 1, $5)
		 ON CONFLICT (date) DO UPDATE SET
		   total_sales = daily_sales_summaries.total_sales + EXCLUDED.total_sales,
		   discount_total = daily_sales_summaries.discount_total + EXCLUDED.discount_total,
		   tax_total = daily_sales_summaries.tax_total + EXCLUDED.tax_total,
		   transactions_count = daily_sales_summaries.transactions_count + 1,
		   items_sold = daily_sales_summaries.items_sold + EXCLUDED.items_sold`,
		now.Format("2006-01-02"), sale.GrandTotal, sale.DiscountTotal, sale.TaxTotal, itemsSold,
	)
	if err != nil {
		return Sale{}, fmt.Errorf("upsert daily summary: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Sale{}, fmt.Errorf("commit checkout: %w", err)
	}

	s.countCheckout("success")
	if s.Events != nil {
		_, _ = s.Events.Emit(ctx, events.TopicSaleCompleted, sale.ID, map[string]any{
			"transaction_id": sale.ID,
			"grand_total":    sale.GrandTotal,
			"items_sold":     itemsSold,
			"currency":       sale.Currency,
		})
	}
	return sale, nil
}

// Get returns a sale with its item snapshots.
func (s *Service) Get(ctx context.Context, id string) (Sale, error) {
	var sale Sale
	var breakdown []byte
	err := s.Pool.QueryRow(ctx,
		`SELECT id, subtotal, discount_total, tax_total, grand_total, paid_amount, change_due, currency, cashier_id, breakdown, created_at
		   FROM transactions WHERE id = $1`,
		id,
	).Scan(&sale.ID, &sale.Subtotal, &sale.DiscountTotal, &sale.TaxTotal, &sale.GrandTotal,
		&sale.PaidAmount, &sale.ChangeDue, &sale.Currency, &sale.CashierID, &breakdown, &sale.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Sale{}, common.NewAppError("NOT_FOUND", "transaction not found", http.StatusNotFound, nil)
	}
	if err != nil {
		return Sale{}, fmt.Errorf("get transaction: %w", err)
	}
	if len(breakdown) > 0 {
		var result pricing.Result
		if err := json.Unmarshal(breakdown, &result); err == nil {
			sale.Breakdown = &result
		}
	}

	rows, err := s.Pool.Query(ctx,
		`SELECT product_id, name, quantity, unit_price, total FROM transaction_items WHERE transaction_id = $1 ORDER BY id`,
		id,
	)
	if err != nil {
		return Sale{}, fmt.Errorf("list transaction items: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var it SaleItem
		if err := rows.Scan(&it.ProductID, &it.Name, &it.Quantity, &it.UnitPrice, &it.Total); err != nil {
			return Sale{}, fmt.Errorf("scan transaction item: %w", err)
		}
		sale.Items = append(sale.Items, it)
	}
	return sale, rows.Err()
}

// List returns recent sales, newest first, without the per-item snapshots.
func (s *Service) List(ctx context.Context, page, perPage int) ([]Sale, int64, error) {
	if s == nil || s.Pool == nil {
		return nil, 0, errors.New("checkout service not configured")
	}
	var total int64
	if err := s.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM transactions`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count transactions: %w", err)
	}

	offset := 0
	if page > 1 {
		offset = (page - 1) * perPage
	}
	rows, err := s.Pool.Query(ctx,
		`SELECT id, subtotal, discount_total, tax_total, grand_total, paid_amount, change_due, currency, cashier_id, created_at
		   FROM transactions ORDER BY created_at DESC, id DESC LIMIT $1 OFFSET $2`,
		perPage, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	sales := make([]Sale, 0, perPage)
	for rows.Next() {
		var sale Sale
		if err := rows.Scan(&sale.ID, &sale.Subtotal, &sale.DiscountTotal, &sale.TaxTotal, &sale.GrandTotal,
			&sale.PaidAmount, &sale.ChangeDue, &sale.Currency, &sale.CashierID, &sale.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan transaction: %w", err)
		}
		sales = append(sales, sale)
	}
	return sales, total, rows.Err()
}

func (s *Service) countCheckout(result string) {
	if obs.CheckoutTotal != nil {
		obs.CheckoutTotal.WithLabelValues(result).Inc()
	}
}

const saleIDAlphabet = "0123456789"

// NewSaleID builds a human-readable transaction id like TRX-2026-1756600000-4812.
func NewSaleID(now time.Time) string {
	buf := make([]byte, 4)
	suffix := "0000"
	if _, err := rand.Read(buf); err == nil {
		b := make([]byte, 4)
		for i := range buf {
			b[i] = saleIDAlphabet[int(buf[i])%len(saleIDAlphabet)]
		}
		suffix = string(b)
	}
	return fmt.Sprintf("TRX-%d-%d-%s", now.Year(), now.Unix(), suffix)
}
