package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// Order is the immutable record produced by a completed checkout. Financial
// fields and snapshots never change after creation; only Status and the
// transition timestamps move, guarded by the Version counter.
//
// When IdempotencyKey is set, the (user_id, idempotency_key) and
// (session_id, idempotency_key) pairs are unique (partial indexes
// ux_orders_user_idem and ux_orders_session_idem) so retried creation
// requests resolve to a single row.
type Order struct {
	ID        uuid.UUID      `gorm:"column:id;type:uuid;primaryKey"`
	CartID    *uuid.UUID     `gorm:"column:cart_id;type:uuid;index"`
	UserID    *uuid.UUID     `gorm:"column:user_id;type:uuid;index"`
	SessionID *string        `gorm:"column:session_id;type:varchar(255);index"`
	Currency  enums.Currency `gorm:"column:currency;type:varchar(3);not null;default:'USD'"`

	SubtotalCents int `gorm:"column:subtotal_cents;not null;default:0"`
	TaxCents      int `gorm:"column:tax_cents;not null;default:0"`
	DiscountCents int `gorm:"column:discount_cents;not null;default:0"`
	ShippingCents int `gorm:"column:shipping_cents;not null;default:0"`
	TotalCents    int `gorm:"column:total_cents;not null"`

	ShippingAddressID      uuid.UUID              `gorm:"column:shipping_address_id;type:uuid;not null"`
	BillingAddressID       *uuid.UUID             `gorm:"column:billing_address_id;type:uuid"`
	BillingSameAsShipping  bool                   `gorm:"column:billing_same_as_shipping;not null;default:true"`
	ShippingAddressFrozen  *types.AddressSnapshot `gorm:"column:shipping_address_frozen;type:jsonb;serializer:json"`
	BillingAddressFrozen   *types.AddressSnapshot `gorm:"column:billing_address_frozen;type:jsonb;serializer:json"`

	PromoCode     *string              `gorm:"column:promo_code;type:varchar(50);index"`
	PromoSnapshot *types.PromoSnapshot `gorm:"column:promo_snapshot;type:jsonb;serializer:json"`

	IdempotencyKey *string `gorm:"column:idempotency_key;type:varchar(255)"`

	Status      enums.OrderStatus `gorm:"column:status;type:varchar(20);not null;default:'pending';index"`
	PlacedAt    *time.Time        `gorm:"column:placed_at;index"`
	PaidAt      *time.Time        `gorm:"column:paid_at"`
	FulfilledAt *time.Time        `gorm:"column:fulfilled_at"`
	CanceledAt  *time.Time        `gorm:"column:canceled_at"`

	Version int `gorm:"column:version;not null;default:1"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime;index"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`

	Items []OrderItem `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
}

// BeforeCreate assigns the primary key and default status.
func (o *Order) BeforeCreate(_ *gorm.DB) error {
	assignID(&o.ID)
	if o.Status == "" {
		o.Status = enums.OrderStatusPending
	}
	if o.Currency == "" {
		o.Currency = enums.CurrencyUSD
	}
	if o.Version == 0 {
		o.Version = 1
	}
	return nil
}
