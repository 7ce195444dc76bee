package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// Cart is the mutable pre-order aggregate. It is owned by exactly one of a
// user id or a guest session token, and at most one active cart may exist per
// owner at any time (partial unique indexes ux_carts_active_user and
// ux_carts_active_session). Every mutation bumps Version.
type Cart struct {
	ID        uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	UserID    *uuid.UUID       `gorm:"column:user_id;type:uuid;index"`
	SessionID *string          `gorm:"column:session_id;type:varchar(255);index"`
	Status    enums.CartStatus `gorm:"column:status;type:varchar(20);not null;default:'active';index"`
	Currency  enums.Currency   `gorm:"column:currency;type:varchar(3);not null;default:'USD'"`

	SubtotalCents int `gorm:"column:subtotal_cents;not null;default:0"`
	TaxCents      int `gorm:"column:tax_cents;not null;default:0"`
	DiscountCents int `gorm:"column:discount_cents;not null;default:0"`
	ShippingCents int `gorm:"column:shipping_cents;not null;default:0"`

	Version int `gorm:"column:version;not null;default:1"`

	ExpiresAt   *time.Time `gorm:"column:expires_at;index"`
	CompletedAt *time.Time `gorm:"column:completed_at"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;autoUpdateTime"`

	Items []CartItem `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE"`
}

// TotalCents derives the payable amount: subtotal + shipping - discount + tax.
func (c Cart) TotalCents() int {
	return c.SubtotalCents + c.ShippingCents - c.DiscountCents + c.TaxCents
}

// BeforeCreate assigns the primary key and default status.
func (c *Cart) BeforeCreate(_ *gorm.DB) error {
	assignID(&c.ID)
	if c.Status == "" {
		c.Status = enums.CartStatusActive
	}
	if c.Currency == "" {
		c.Currency = enums.CurrencyUSD
	}
	if c.Version == 0 {
		c.Version = 1
	}
	return nil
}
