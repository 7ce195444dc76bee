package orders

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// CreateOrderInput is the checkout payload. The cart referenced must belong
// to the caller and still be active.
type CreateOrderInput struct {
	CartID                uuid.UUID  `json:"cart_id" validate:"required"`
	ShippingAddressID     uuid.UUID  `json:"shipping_address_id" validate:"required"`
	BillingAddressID      *uuid.UUID `json:"billing_address_id"`
	BillingSameAsShipping bool       `json:"billing_same_as_shipping"`
	PromoCode             *string    `json:"promo_code" validate:"omitempty,min=2,max=50"`
	IdempotencyKey        *string    `json:"idempotency_key" validate:"omitempty,min=8,max=255"`
}

// PreviewInput requests a non-binding quote for a cart.
type PreviewInput struct {
	CartID    uuid.UUID `json:"cart_id" validate:"required"`
	PromoCode *string   `json:"promo_code" validate:"omitempty,min=2,max=50"`
}

// QuoteItem is one priced line of a quote, using live catalog prices.
type QuoteItem struct {
	ProductID      uuid.UUID  `json:"product_id"`
	VariantID      *uuid.UUID `json:"variant_id,omitempty"`
	ProductName    string     `json:"product_name"`
	SKU            string     `json:"sku"`
	ImageURL       *string    `json:"image_url,omitempty"`
	UnitPriceCents int        `json:"unit_price_cents"`
	Quantity       int        `json:"quantity"`
	LineTotalCents int        `json:"line_total_cents"`
}

// Quote is the computed financial breakdown for a cart. Creating an order
// persists exactly these numbers; previewing returns them without side
// effects.
type Quote struct {
	Currency      enums.Currency       `json:"currency"`
	SubtotalCents int                  `json:"subtotal_cents"`
	DiscountCents int                  `json:"discount_cents"`
	TaxCents      int                  `json:"tax_cents"`
	ShippingCents int                  `json:"shipping_cents"`
	TotalCents    int                  `json:"total_cents"`
	PromoSnapshot *types.PromoSnapshot `json:"promo_snapshot,omitempty"`
	Items         []QuoteItem          `json:"items"`
}

// UpdateStatusInput moves an order through the state machine. ExpectedVersion
// is the version the caller read; the update fails on a mismatch so a stale
// read never drives a transition.
type UpdateStatusInput struct {
	Status          enums.OrderStatus `json:"status" validate:"required"`
	ExpectedVersion int               `json:"expected_version" validate:"required,min=1"`
}
