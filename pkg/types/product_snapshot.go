package types

import "github.com/google/uuid"

// ProductSnapshot is the point-in-time copy of a product stored on a cart
// item. Prices on order lines are re-resolved from the live catalog at order
// creation; this snapshot exists for display and audit of the cart itself.
type ProductSnapshot struct {
	ID         uuid.UUID      `json:"id"`
	Name       string         `json:"name"`
	SKU        string         `json:"sku"`
	PriceCents int            `json:"price_cents"`
	Attributes map[string]any `json:"attributes,omitempty"`
}
