package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// CartItem is a line on a cart. A (cart, product, variant) triple is unique;
// a repeated add increments Quantity instead of inserting a second row.
type CartItem struct {
	ID     uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	CartID uuid.UUID `gorm:"column:cart_id;type:uuid;not null;uniqueIndex:uq_cart_items_cart_product_variant;index"`

	ProductID uuid.UUID  `gorm:"column:product_id;type:uuid;not null;uniqueIndex:uq_cart_items_cart_product_variant;index"`
	VariantID *uuid.UUID `gorm:"column:variant_id;type:uuid;uniqueIndex:uq_cart_items_cart_product_variant"`

	ProductName     string                 `gorm:"column:product_name;type:varchar(255);not null"`
	ProductSnapshot *types.ProductSnapshot `gorm:"column:product_snapshot;type:jsonb;serializer:json"`

	Quantity       int `gorm:"column:quantity;not null;default:1"`
	UnitPriceCents int `gorm:"column:unit_price_cents;not null"`
	TaxCents       int `gorm:"column:tax_cents;not null;default:0"`
	DiscountCents  int `gorm:"column:discount_cents;not null;default:0"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// LineTotalCents derives unit_price * quantity - discount + tax.
func (i CartItem) LineTotalCents() int {
	return i.UnitPriceCents*i.Quantity - i.DiscountCents + i.TaxCents
}

// BeforeCreate assigns the primary key.
func (i *CartItem) BeforeCreate(_ *gorm.DB) error {
	assignID(&i.ID)
	return nil
}
