package analytics

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

type stubQuerier struct {
	salesCalls int
	topCalls   int
	topParams  [2]int32
}

func (s *stubQuerier) GetDailySummaries(_ context.Context, _, _ time.Time) ([]DailySummary, error) {
	s.salesCalls++
	return []DailySummary{
		{Date: "2026-03-14", TotalSales: decimal.NewFromInt(1500), TransactionsCount: 12, ItemsSold: 40},
	}, nil
}

func (s *stubQuerier) GetTopProducts(_ context.Context, limit, offset int32) ([]TopProduct, error) {
	s.topCalls++
	s.topParams = [2]int32{limit, offset}
	return []TopProduct{
		{ProductID: 1, Name: "Bottled Water", QuantitySold: 120, Revenue: decimal.NewFromInt(1800)},
	}, nil
}

func testRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func TestSalesRangeUsesCache(t *testing.T) {
	stub := &stubQuerier{}
	svc := &Service{Q: stub, R: testRedis(t), TTL: time.Minute}
	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)

	first, err := svc.SalesRange(context.Background(), from, to)
	if err != nil {
		t.Fatalf("sales range: %v", err)
	}
	second, err := svc.SalesRange(context.Background(), from, to)
	if err != nil {
		t.Fatalf("sales range cached: %v", err)
	}
	if stub.salesCalls != 1 {
		t.Fatalf("expected one database hit, got %d", stub.salesCalls)
	}
	if len(first) != 1 || len(second) != 1 {
		t.Fatalf("unexpected row counts %d / %d", len(first), len(second))
	}
	if !first[0].TotalSales.Equal(second[0].TotalSales) {
		t.Fatalf("cached total differs: %s vs %s", first[0].TotalSales, second[0].TotalSales)
	}
}

func TestSalesRangeWithoutRedisHitsDB(t *testing.T) {
	stub := &stubQuerier{}
	svc := &Service{Q: stub}
	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 7)

	for i := 0; i < 2; i++ {
		if _, err := svc.SalesRange(context.Background(), from, to); err != nil {
			t.Fatalf("sales range: %v", err)
		}
	}
	if stub.salesCalls != 2 {
		t.Fatalf("expected two database hits without cache, got %d", stub.salesCalls)
	}
}

func TestTopProductsClampsInputs(t *testing.T) {
	stub := &stubQuerier{}
	svc := &Service{Q: stub}

	if _, err := svc.TopProducts(context.Background(), -5, -1); err != nil {
		t.Fatalf("top products: %v", err)
	}
	if stub.topParams[0] != 10 || stub.topParams[1] != 0 {
		t.Fatalf("expected clamped limit/offset 10/0, got %d/%d", stub.topParams[0], stub.topParams[1])
	}
}

func TestServiceNotConfigured(t *testing.T) {
	var svc *Service
	if _, err := svc.SalesRange(context.Background(), time.Now(), time.Now()); err == nil {
		t.Fatal("expected error from unconfigured service")
	}
}
