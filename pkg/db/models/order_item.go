package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OrderItem is the frozen copy of one cart line, written once alongside its
// order and never updated afterward.
type OrderItem struct {
	ID        uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	OrderID   uuid.UUID  `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID uuid.UUID  `gorm:"column:product_id;type:uuid;not null;index"`
	VariantID *uuid.UUID `gorm:"column:variant_id;type:uuid"`

	ProductName string  `gorm:"column:product_name;type:varchar(255);not null"`
	SKU         string  `gorm:"column:sku;type:varchar(50);not null"`
	ImageURL    *string `gorm:"column:image_url;type:varchar(1024)"`

	UnitPriceCents int `gorm:"column:unit_price_cents;not null;default:0"`
	Quantity       int `gorm:"column:quantity;not null;default:1"`
	LineTotalCents int `gorm:"column:line_total_cents;not null"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// BeforeCreate assigns the primary key.
func (i *OrderItem) BeforeCreate(_ *gorm.DB) error {
	assignID(&i.ID)
	return nil
}
