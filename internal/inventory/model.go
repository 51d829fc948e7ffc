package inventory

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrInsufficientStock is returned when a removal asks for more units than on hand.
var ErrInsufficientStock = errors.New("insufficient stock")

// ErrReservationNotFound is returned when releasing an unknown reservation.
var ErrReservationNotFound = errors.New("reservation not found")

// MovementKind labels an inventory transaction row.
type MovementKind string

const (
	MovementIn     MovementKind = "in"
	MovementOut    MovementKind = "out"
	MovementAdjust MovementKind = "adjustment"
)

// Inventory is the on-hand record for a product.
type Inventory struct {
	ProductID         int64     `json:"product_id"`
	Quantity          int32     `json:"quantity"`
	LowStockThreshold int32     `json:"low_stock_threshold"`
	LowStock          bool      `json:"low_stock"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Movement is one audit row in inventory_transactions.
type Movement struct {
	ID        int64        `json:"id"`
	ProductID int64        `json:"product_id"`
	Kind      MovementKind `json:"type"`
	Quantity  int32        `json:"quantity"`
	Note      string       `json:"note,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
}

// ReservationItem is one line of a cart hold.
type ReservationItem struct {
	ProductID int64 `json:"product_id"`
	Quantity  int32 `json:"quantity"`
}

// Reservation is a short-lived hold tied to a cart.
type Reservation struct {
	ID        uuid.UUID         `json:"id"`
	CartID    uuid.UUID         `json:"cart_id"`
	Items     []ReservationItem `json:"items"`
	ExpiresAt time.Time         `json:"expires_at"`
	CreatedAt time.Time         `json:"created_at"`
}
