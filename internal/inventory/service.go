package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/noah-isme/backend-pos/internal/common"
	"github.com/noah-isme/backend-pos/internal/events"
	"github.com/noah-isme/backend-pos/internal/obs"
)

// Service owns stock levels, movement audit rows and cart reservations.
type Service struct {
	Pool           *pgxpool.Pool
	Events         *events.Bus
	ReservationTTL time.Duration
	Now            func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) ttl() time.Duration {
	if s.ReservationTTL > 0 {
		return s.ReservationTTL
	}
	return 15 * time.Minute
}

// GetInventory returns the on-hand record for a product with the low stock flag set.
func (s *Service) GetInventory(ctx context.Context, productID int64) (Inventory, error) {
	var inv Inventory
	err := s.Pool.QueryRow(ctx,
		`SELECT product_id, quantity, low_stock_threshold, updated_at FROM inventories WHERE product_id = $1`,
		productID,
	).Scan(&inv.ProductID, &inv.Quantity, &inv.LowStockThreshold, &inv.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Inventory{}, common.NewAppError("NOT_FOUND", "inventory not found", http.StatusNotFound, nil)
	}
	if err != nil {
		return Inventory{}, fmt.Errorf("get inventory: %w", err)
	}
	inv.LowStock = inv.Quantity < inv.LowStockThreshold
	return inv, nil
}

// AddStock increases on-hand quantity and records an "in" movement.
func (s *Service) AddStock(ctx context.Context, productID int64, qty int32, note string) (Inventory, error) {
	if qty <= 0 {
		return Inventory{}, common.NewAppError("BAD_REQUEST", "quantity must be positive", http.StatusBadRequest, nil)
	}
	return s.move(ctx, productID, qty, MovementIn, note)
}

// RemoveStock decreases on-hand quantity and records an "out" movement.
// It fails with ErrInsufficientStock when fewer units are on hand.
func (s *Service) RemoveStock(ctx context.Context, productID int64, qty int32, note string) (Inventory, error) {
	if qty <= 0 {
		return Inventory{}, common.NewAppError("BAD_REQUEST", "quantity must be positive", http.StatusBadRequest, nil)
	}
	return s.move(ctx, productID, -qty, MovementOut, note)
}

// AdjustStock sets the on-hand quantity to an absolute value and records
// the delta as an adjustment movement.
func (s *Service) AdjustStock(ctx context.Context, productID int64, target int32, note string) (Inventory, error) {
	if target < 0 {
		return Inventory{}, common.NewAppError("BAD_REQUEST", "quantity cannot be negative", http.StatusBadRequest, nil)
	}
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Inventory{}, fmt.Errorf("begin adjust: %w", err)
	}
	defer tx.Rollback(ctx)

	current, err := lockQuantity(ctx, tx, productID)
	if err != nil {
		return Inventory{}, err
	}
	inv, err := applyDelta(ctx, tx, productID, target-current, MovementAdjust, note, s.now())
	if err != nil {
		return Inventory{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Inventory{}, fmt.Errorf("commit adjust: %w", err)
	}
	s.emitStockAdjusted(ctx, inv)
	return inv, nil
}

// Movements returns the audit trail for a product, newest first.
func (s *Service) Movements(ctx context.Context, productID int64, limit int32) ([]Movement, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := s.Pool.Query(ctx,
		`SELECT id, product_id, type, quantity, note, created_at
		   FROM inventory_transactions
		  WHERE product_id = $1
		  ORDER BY created_at DESC, id DESC
		  LIMIT $2`,
		productID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list movements: %w", err)
	}
	defer rows.Close()

	out := []Movement{}
	for rows.Next() {
		var m Movement
		if err := rows.Scan(&m.ID, &m.ProductID, &m.Kind, &m.Quantity, &m.Note, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan movement: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Reserve holds stock for a cart. The held units are deducted up front and
// restored when the reservation is released or expires.
func (s *Service) Reserve(ctx context.Context, cartID uuid.UUID, items []ReservationItem) (Reservation, error) {
	if len(items) == 0 {
		return Reservation{}, common.NewAppError("BAD_REQUEST", "items is required", http.StatusBadRequest, nil)
	}
	for _, it := range items {
		if it.Quantity <= 0 {
			return Reservation{}, common.NewAppError("BAD_REQUEST", "quantity must be positive", http.StatusBadRequest, nil)
		}
	}
	now := s.now()
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Reservation{}, fmt.Errorf("begin reserve: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, it := range items {
		if _, err := applyDelta(ctx, tx, it.ProductID, -it.Quantity, MovementOut, fmt.Sprintf("reservation for cart %s", cartID), now); err != nil {
			return Reservation{}, err
		}
	}

	res := Reservation{
		ID:        uuid.New(),
		CartID:    cartID,
		Items:     items,
		ExpiresAt: now.Add(s.ttl()),
		CreatedAt: now,
	}
	payload, err := json.Marshal(items)
	if err != nil {
		return Reservation{}, fmt.Errorf("encode reservation items: %w", err)
	}
	_, err = tx.Exec(ctx,
		`INSERT INTO inventory_reservations (id, cart_id, items, expires_at, created_at) VALUES ($1, $2, $3, $4, $5)`,
		res.ID, res.CartID, payload, res.ExpiresAt, res.CreatedAt,
	)
	if err != nil {
		return Reservation{}, fmt.Errorf("insert reservation: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return Reservation{}, fmt.Errorf("commit reserve: %w", err)
	}
	return res, nil
}

// Release returns the held units of a cart's reservations to stock.
func (s *Service) Release(ctx context.Context, cartID uuid.UUID) error {
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin release: %w", err)
	}
	defer tx.Rollback(ctx)

	n, err := restoreReservations(ctx, tx, `cart_id = $1`, cartID, s.now())
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrReservationNotFound
	}
	return tx.Commit(ctx)
}

// ExpireReservations restores stock for every reservation past its expiry
// and reports how many were swept. The worker calls this on a ticker.
func (s *Service) ExpireReservations(ctx context.Context) (int, error) {
	now := s.now()
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, fmt.Errorf("begin sweep: %w", err)
	}
	defer tx.Rollback(ctx)

	n, err := restoreReservations(ctx, tx, `expires_at <= $1`, now, now)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit sweep: %w", err)
	}
	if obs.ReservationsExpiredTotal != nil && n > 0 {
		obs.ReservationsExpiredTotal.Add(float64(n))
	}
	return n, nil
}

func (s *Service) move(ctx context.Context, productID int64, delta int32, kind MovementKind, note string) (Inventory, error) {
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Inventory{}, fmt.Errorf("begin stock move: %w", err)
	}
	defer tx.Rollback(ctx)

	inv, err := applyDelta(ctx, tx, productID, delta, kind, note, s.now())
	if err != nil {
		return Inventory{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Inventory{}, fmt.Errorf("commit stock move: %w", err)
	}
	s.emitStockAdjusted(ctx, inv)
	return inv, nil
}

func (s *Service) emitStockAdjusted(ctx context.Context, inv Inventory) {
	if s.Events == nil {
		return
	}
	_, _ = s.Events.Emit(ctx, events.TopicStockAdjusted, fmt.Sprintf("%d", inv.ProductID), map[string]any{
		"product_id": inv.ProductID,
		"quantity":   inv.Quantity,
		"low_stock":  inv.LowStock,
	})
}

// DeductInTx removes stock inside the caller's transaction. Checkout uses
// this so a sale and its stock movements commit or roll back together.
func DeductInTx(ctx context.Context, tx pgx.Tx, productID int64, qty int32, note string, now time.Time) (Inventory, error) {
	if qty <= 0 {
		return Inventory{}, fmt.Errorf("deduct quantity must be positive, got %d", qty)
	}
	return applyDelta(ctx, tx, productID, -qty, MovementOut, note, now)
}

func lockQuantity(ctx context.Context, tx pgx.Tx, productID int64) (int32, error) {
	var qty int32
	err := tx.QueryRow(ctx,
		`SELECT quantity FROM inventories WHERE product_id = $1 FOR UPDATE`,
		productID,
	).Scan(&qty)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, common.NewAppError("NOT_FOUND", "inventory not found", http.StatusNotFound, nil)
	}
	if err != nil {
		return 0, fmt.Errorf("lock inventory: %w", err)
	}
	return qty, nil
}

// applyDelta mutates on-hand quantity inside the caller's transaction and
// writes the matching audit row. The row stays locked until commit.
func applyDelta(ctx context.Context, tx pgx.Tx, productID int64, delta int32, kind MovementKind, note string, now time.Time) (Inventory, error) {
	current, err := lockQuantity(ctx, tx, productID)
	if err != nil {
		return Inventory{}, err
	}
	next := current + delta
	if next < 0 {
		return Inventory{}, fmt.Errorf("product %d has %d on hand, need %d: %w", productID, current, -delta, ErrInsufficientStock)
	}

	var inv Inventory
	err = tx.QueryRow(ctx,
		`UPDATE inventories SET quantity = $2, updated_at = $3 WHERE product_id = $1
		 RETURNING product_id, quantity, low_stock_threshold, updated_at`,
		productID, next, now,
	).Scan(&inv.ProductID, &inv.Quantity, &inv.LowStockThreshold, &inv.UpdatedAt)
	if err != nil {
		return Inventory{}, fmt.Errorf("update inventory: %w", err)
	}
	inv.LowStock = inv.Quantity < inv.LowStockThreshold

	recorded := delta
	if recorded < 0 {
		recorded = -recorded
	}
	_, err = tx.Exec(ctx,
		`INSERT INTO inventory_transactions (product_id, type, quantity, note, created_at) VALUES ($1, $2, $3, $4, $5)`,
		productID, kind, recorded, note, now,
	)
	if err != nil {
		return Inventory{}, fmt.Errorf("insert movement: %w", err)
	}
	return inv, nil
}

// restoreReservations returns held units to stock for all reservations
// matching the where clause, then deletes the rows.
func restoreReservations(ctx context.Context, tx pgx.Tx, where string, arg any, now time.Time) (int, error) {
	rows, err := tx.Query(ctx,
		`SELECT id, items FROM inventory_reservations WHERE `+where+` FOR UPDATE`, arg)
	if err != nil {
		return 0, fmt.Errorf("select reservations: %w", err)
	}
	type held struct {
		id    uuid.UUID
		items []ReservationItem
	}
	var matched []held
	for rows.Next() {
		var h held
		var payload []byte
		if err := rows.Scan(&h.id, &payload); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scan reservation: %w", err)
		}
		if err := json.Unmarshal(payload, &h.items); err != nil {
			rows.Close()
			return 0, fmt.Errorf("decode reservation items: %w", err)
		}
		matched = append(matched, h)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	for _, h := range matched {
		for _, it := range h.items {
			if _, err := applyDelta(ctx, tx, it.ProductID, it.Quantity, MovementIn, fmt.Sprintf("reservation %s released", h.id), now); err != nil {
				return 0, err
			}
		}
		if _, err := tx.Exec(ctx, `DELETE FROM inventory_reservations WHERE id = $1`, h.id); err != nil {
			return 0, fmt.Errorf("delete reservation: %w", err)
		}
	}
	return len(matched), nil
}
