package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Address is a customer-owned shipping or billing address. Orders never
// reference these rows for display; they freeze an AddressSnapshot instead.
type Address struct {
	ID     uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	UserID *uuid.UUID `gorm:"column:user_id;type:uuid;index"`

	Name       string  `gorm:"column:name;type:varchar(255);not null"`
	Company    *string `gorm:"column:company;type:varchar(255)"`
	Line1      string  `gorm:"column:line1;type:varchar(255);not null"`
	Line2      *string `gorm:"column:line2;type:varchar(255)"`
	City       string  `gorm:"column:city;type:varchar(100);not null"`
	Region     string  `gorm:"column:region;type:varchar(100);not null"`
	PostalCode string  `gorm:"column:postal_code;type:varchar(20);not null"`
	Country    string  `gorm:"column:country;type:varchar(2);not null"`
	Phone      *string `gorm:"column:phone;type:varchar(50)"`
	Email      *string `gorm:"column:email;type:varchar(255)"`

	Extra map[string]any `gorm:"column:extra;type:jsonb;serializer:json"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// BeforeCreate assigns the primary key.
func (a *Address) BeforeCreate(_ *gorm.DB) error {
	assignID(&a.ID)
	return nil
}
