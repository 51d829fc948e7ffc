package store

import (
	"context"
	"fmt"
	"time"

	"github.com/noah-isme/backend-pos/internal/analytics"
	"github.com/noah-isme/backend-pos/internal/events"
)

// InsertDomainEvent appends one row to the domain_events log.
func (s *Store) InsertDomainEvent(ctx context.Context, topic, aggregateID string, payload []byte) (events.Event, error) {
	var ev events.Event
	err := s.Pool.QueryRow(ctx,
		`INSERT INTO domain_events (topic, aggregate_id, payload)
		 VALUES ($1, $2, $3)
		 RETURNING id, topic, aggregate_id, payload, occurred_at`,
		topic, aggregateID, payload,
	).Scan(&ev.ID, &ev.Topic, &ev.AggregateID, &ev.Payload, &ev.OccurredAt)
	if err != nil {
		return events.Event{}, fmt.Errorf("insert domain event: %w", err)
	}
	return ev, nil
}

// GetDailySummaries returns summary rows for [from, to), oldest first.
func (s *Store) GetDailySummaries(ctx context.Context, from, to time.Time) ([]analytics.DailySummary, error) {
	rows, err := s.Pool.Query(ctx,
		`SELECT to_char(date, 'YYYY-MM-DD'), total_sales, discount_total, tax_total, transactions_count, items_sold
		   FROM daily_sales_summaries
		  WHERE date >= $1 AND date < $2
		  ORDER BY date`,
		from.Format("2006-01-02"), to.Format("2006-01-02"),
	)
	if err != nil {
		return nil, fmt.Errorf("list daily summaries: %w", err)
	}
	defer rows.Close()

	out := []analytics.DailySummary{}
	for rows.Next() {
		var row analytics.DailySummary
		if err := rows.Scan(&row.Date, &row.TotalSales, &row.DiscountTotal, &row.TaxTotal, &row.TransactionsCount, &row.ItemsSold); err != nil {
			return nil, fmt.Errorf("scan daily summary: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// GetTopProducts aggregates transaction items into a best-seller list.
func (s *Store) GetTopProducts(ctx context.Context, limit, offset int32) ([]analytics.TopProduct, error) {
	rows, err := s.Pool.Query(ctx,
		`SELECT product_id, MAX(name), SUM(quantity)::bigint, SUM(total)
		   FROM transaction_items
		  GROUP BY product_id
		  ORDER BY SUM(quantity) DESC, product_id
		  LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list top products: %w", err)
	}
	defer rows.Close()

	out := []analytics.TopProduct{}
	for rows.Next() {
		var row analytics.TopProduct
		if err := rows.Scan(&row.ProductID, &row.Name, &row.QuantitySold, &row.Revenue); err != nil {
			return nil, fmt.Errorf("scan top product: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
