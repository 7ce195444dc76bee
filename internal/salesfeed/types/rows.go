package types

import (
	"time"

	cbigquery "cloud.google.com/go/bigquery"
)

// SalesEventRow mirrors the sales_events BigQuery schema.
type SalesEventRow struct {
	EventID       string             `bigquery:"event_id"`
	EventType     string             `bigquery:"event_type"`
	OccurredAt    time.Time          `bigquery:"occurred_at"`
	OrderID       *string            `bigquery:"order_id"`
	CartID        *string            `bigquery:"cart_id"`
	UserID        *string            `bigquery:"user_id"`
	SessionID     *string            `bigquery:"session_id"`
	Currency      *string            `bigquery:"currency"`
	SubtotalCents *int64             `bigquery:"subtotal_cents"`
	DiscountCents *int64             `bigquery:"discount_cents"`
	TaxCents      *int64             `bigquery:"tax_cents"`
	ShippingCents *int64             `bigquery:"shipping_cents"`
	TotalCents    *int64             `bigquery:"total_cents"`
	PromoCode     *string            `bigquery:"promo_code"`
	LineItemCount *int64             `bigquery:"line_item_count"`
	Payload       cbigquery.NullJSON `bigquery:"payload"`
}

// OrderStatusFactRow mirrors the order_status_facts BigQuery schema.
type OrderStatusFactRow struct {
	EventID    string             `bigquery:"event_id"`
	OccurredAt time.Time          `bigquery:"occurred_at"`
	OrderID    string             `bigquery:"order_id"`
	UserID     *string            `bigquery:"user_id"`
	FromStatus string             `bigquery:"from_status"`
	ToStatus   string             `bigquery:"to_status"`
	Version    int64              `bigquery:"version"`
	Payload    cbigquery.NullJSON `bigquery:"payload"`
}
