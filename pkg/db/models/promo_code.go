package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// PromoCode is a promotional discount definition. Codes are stored lowercase
// and matched case-insensitively. UsageCount is only ever advanced through the
// conditional increment in the promo repository, which is the authoritative
// enforcement point for UsageLimit.
type PromoCode struct {
	ID   uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	Code string          `gorm:"column:code;type:varchar(50);not null;uniqueIndex:uq_promo_codes_code"`
	Type enums.PromoType `gorm:"column:promo_type;type:varchar(20);not null"`

	ValueCents         *int `gorm:"column:value_cents"`
	PercentBasisPoints *int `gorm:"column:percent_basis_points"`
	MaxDiscountCents   *int `gorm:"column:max_discount_cents"`
	MinSubtotalCents   *int `gorm:"column:min_subtotal_cents"`

	UsageLimit   *int `gorm:"column:usage_limit"`
	PerUserLimit *int `gorm:"column:per_user_limit"`
	UsageCount   int  `gorm:"column:usage_count;not null;default:0"`

	IsActive bool `gorm:"column:is_active;not null;default:true"`

	StartsAt time.Time  `gorm:"column:starts_at;not null"`
	EndsAt   *time.Time `gorm:"column:ends_at"`

	AppliesToUserIDs []uuid.UUID `gorm:"column:applies_to_user_ids;type:jsonb;serializer:json"`

	LastUsedAt *time.Time `gorm:"column:last_used_at"`
	CreatedAt  time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// BeforeCreate assigns the primary key and normalizes the code to lowercase.
func (p *PromoCode) BeforeCreate(_ *gorm.DB) error {
	assignID(&p.ID)
	p.Code = strings.ToLower(strings.TrimSpace(p.Code))
	if p.StartsAt.IsZero() {
		p.StartsAt = time.Now().UTC()
	}
	return nil
}

// AllowsUser reports whether the promo is open to the given user. A nil
// allow-list admits everyone.
func (p PromoCode) AllowsUser(userID *uuid.UUID) bool {
	if len(p.AppliesToUserIDs) == 0 {
		return true
	}
	if userID == nil {
		return false
	}
	for _, allowed := range p.AppliesToUserIDs {
		if allowed == *userID {
			return true
		}
	}
	return false
}
