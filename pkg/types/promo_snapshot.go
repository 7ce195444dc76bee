package types

import "github.com/angelmondragon/storefront-backend/pkg/enums"

// PromoSnapshot freezes the terms of an applied promo code onto an order.
// The raw configuration and the computed discount are both captured so the
// order stays auditable even if the promo code row is edited or deleted.
type PromoSnapshot struct {
	Code                  string          `json:"code"`
	Type                  enums.PromoType `json:"type"`
	ValueCents            *int            `json:"value_cents,omitempty"`
	PercentBasisPoints    *int            `json:"percent_basis_points,omitempty"`
	MaxDiscountCents      *int            `json:"max_discount_cents,omitempty"`
	ComputedDiscountCents int             `json:"computed_discount_cents"`
}
