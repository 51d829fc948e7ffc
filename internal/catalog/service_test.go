package catalog

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-pos/internal/common"
)

type stubQuerier struct {
	products    map[int64]Product
	getCalls    int
	listParams  ListParams
	updateCalls int
}

func (s *stubQuerier) GetProduct(_ context.Context, id int64) (Product, error) {
	s.getCalls++
	p, ok := s.products[id]
	if !ok {
		return Product{}, ErrProductNotFound
	}
	return p, nil
}

func (s *stubQuerier) ListProducts(_ context.Context, params ListParams) ([]Product, int64, error) {
	s.listParams = params
	out := make([]Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, p)
	}
	return out, int64(len(out)), nil
}

func (s *stubQuerier) CreateProduct(_ context.Context, in ProductInput) (Product, error) {
	p := Product{ID: int64(len(s.products) + 1), Name: in.Name, Category: in.Category, Price: in.Price, Active: true}
	s.products[p.ID] = p
	return p, nil
}

func (s *stubQuerier) UpdateProduct(_ context.Context, id int64, in ProductInput) (Product, error) {
	s.updateCalls++
	p, ok := s.products[id]
	if !ok {
		return Product{}, ErrProductNotFound
	}
	p.Name = in.Name
	p.Price = in.Price
	s.products[id] = p
	return p, nil
}

func (s *stubQuerier) ListCategories(_ context.Context) ([]Category, error) {
	return []Category{{ID: 1, Name: "Beverages"}}, nil
}

func testRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func newStub() *stubQuerier {
	return &stubQuerier{products: map[int64]Product{
		1: {ID: 1, Name: "Bottled Water", Category: "Beverages", Price: decimal.NewFromInt(15), Active: true},
	}}
}

func TestGetProductCachesResult(t *testing.T) {
	stub := newStub()
	svc, err := NewService(ServiceConfig{
		Queries: stub,
		Cache:   NewCache(testRedis(t), time.Minute),
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	first, err := svc.GetProduct(context.Background(), 1)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	second, err := svc.GetProduct(context.Background(), 1)
	if err != nil {
		t.Fatalf("get product cached: %v", err)
	}
	if stub.getCalls != 1 {
		t.Fatalf("expected one database hit, got %d", stub.getCalls)
	}
	if first.Name != second.Name || !first.Price.Equal(second.Price) {
		t.Fatalf("cached product differs: %+v vs %+v", first, second)
	}
}

func TestGetProductNotFound(t *testing.T) {
	svc, err := NewService(ServiceConfig{Queries: newStub()})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	_, err = svc.GetProduct(context.Background(), 404)
	if err == nil {
		t.Fatal("expected not found error")
	}
	if !common.IsAppError(err) {
		t.Fatalf("expected app error, got %v", err)
	}
}

func TestUpdateProductInvalidatesCache(t *testing.T) {
	stub := newStub()
	svc, err := NewService(ServiceConfig{
		Queries: stub,
		Cache:   NewCache(testRedis(t), time.Minute),
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	if _, err := svc.GetProduct(context.Background(), 1); err != nil {
		t.Fatalf("prime cache: %v", err)
	}
	if _, err := svc.UpdateProduct(context.Background(), 1, ProductInput{Name: "Spring Water", Price: decimal.NewFromInt(18)}); err != nil {
		t.Fatalf("update product: %v", err)
	}
	refreshed, err := svc.GetProduct(context.Background(), 1)
	if err != nil {
		t.Fatalf("get after update: %v", err)
	}
	if refreshed.Name != "Spring Water" {
		t.Fatalf("stale cache after update, got %q", refreshed.Name)
	}
}

func TestListProductsClampsPagination(t *testing.T) {
	stub := newStub()
	svc, err := NewService(ServiceConfig{Queries: stub, DefaultPerPage: 20, MaxPerPage: 50})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if _, err := svc.ListProducts(context.Background(), ListParams{Page: 0, PerPage: 9999}); err != nil {
		t.Fatalf("list products: %v", err)
	}
	if stub.listParams.Page != 1 {
		t.Fatalf("expected page clamped to 1, got %d", stub.listParams.Page)
	}
	if stub.listParams.PerPage != 50 {
		t.Fatalf("expected per page clamped to 50, got %d", stub.listParams.PerPage)
	}
}

func TestCreateProductValidation(t *testing.T) {
	svc, err := NewService(ServiceConfig{Queries: newStub()})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if _, err := svc.CreateProduct(context.Background(), ProductInput{Name: "  "}); err == nil {
		t.Fatal("expected error for blank name")
	}
	if _, err := svc.CreateProduct(context.Background(), ProductInput{Name: "Soda", Price: decimal.NewFromInt(-1)}); err == nil {
		t.Fatal("expected error for negative price")
	}
}
