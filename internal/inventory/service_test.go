package inventory

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/noah-isme/backend-pos/internal/common"
)

func TestAddStockRejectsNonPositiveQuantity(t *testing.T) {
	svc := &Service{}
	for _, qty := range []int32{0, -5} {
		if _, err := svc.AddStock(context.Background(), 1, qty, ""); err == nil {
			t.Fatalf("quantity %d must be rejected", qty)
		} else if !common.IsAppError(err) {
			t.Fatalf("expected app error, got %v", err)
		}
	}
}

func TestRemoveStockRejectsNonPositiveQuantity(t *testing.T) {
	svc := &Service{}
	if _, err := svc.RemoveStock(context.Background(), 1, 0, ""); err == nil {
		t.Fatal("zero quantity must be rejected")
	}
}

func TestAdjustStockRejectsNegativeTarget(t *testing.T) {
	svc := &Service{}
	if _, err := svc.AdjustStock(context.Background(), 1, -1, ""); err == nil {
		t.Fatal("negative target must be rejected")
	}
}

func TestReserveValidatesItems(t *testing.T) {
	svc := &Service{}
	cartID := uuid.New()
	if _, err := svc.Reserve(context.Background(), cartID, nil); err == nil {
		t.Fatal("empty item list must be rejected")
	}
	if _, err := svc.Reserve(context.Background(), cartID, []ReservationItem{{ProductID: 1, Quantity: 0}}); err == nil {
		t.Fatal("zero quantity line must be rejected")
	}
}
