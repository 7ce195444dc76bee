package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// OrderPlacedEvent signals a successfully created order.
type OrderPlacedEvent struct {
	OrderID        uuid.UUID  `json:"order_id"`
	CartID         *uuid.UUID `json:"cart_id,omitempty"`
	UserID         *uuid.UUID `json:"user_id,omitempty"`
	SessionID      *string    `json:"session_id,omitempty"`
	Currency       string     `json:"currency"`
	SubtotalCents  int        `json:"subtotal_cents"`
	DiscountCents  int        `json:"discount_cents"`
	TaxCents       int        `json:"tax_cents"`
	ShippingCents  int        `json:"shipping_cents"`
	TotalCents     int        `json:"total_cents"`
	PromoCode      *string    `json:"promo_code,omitempty"`
	LineItemCount  int        `json:"line_item_count"`
	PlacedAt       time.Time  `json:"placed_at"`
	IdempotencyKey *string    `json:"idempotency_key,omitempty"`
}

// OrderStatusChangedEvent is emitted on every legal order transition.
type OrderStatusChangedEvent struct {
	OrderID    uuid.UUID         `json:"order_id"`
	UserID     *uuid.UUID        `json:"user_id,omitempty"`
	FromStatus enums.OrderStatus `json:"from_status"`
	ToStatus   enums.OrderStatus `json:"to_status"`
	Version    int               `json:"version"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// CartCompletedEvent records a cart being consumed by checkout.
type CartCompletedEvent struct {
	CartID  uuid.UUID `json:"cart_id"`
	OrderID uuid.UUID `json:"order_id"`
}
