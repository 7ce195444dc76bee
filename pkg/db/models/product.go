package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Product is the minimal catalog surface the order core depends on. The full
// catalog (categories, variants, media) lives outside this service; order
// creation only needs the live name, sku and unit price.
type Product struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Name       string    `gorm:"column:name;type:varchar(255);not null"`
	SKU        string    `gorm:"column:sku;type:varchar(50);not null;uniqueIndex:uq_products_sku"`
	PriceCents int       `gorm:"column:price_cents;not null"`
	ImageURL   *string   `gorm:"column:image_url;type:varchar(1024)"`
	IsActive   bool      `gorm:"column:is_active;not null;default:true"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// BeforeCreate assigns the primary key.
func (p *Product) BeforeCreate(_ *gorm.DB) error {
	assignID(&p.ID)
	return nil
}
