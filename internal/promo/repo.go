package promo

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

// Repository exposes persistence operations for promo codes.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a promo repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) PromoRepository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// FindByCode loads a promo by its case-insensitive code.
func (r *Repository) FindByCode(ctx context.Context, code string) (*models.PromoCode, error) {
	var promo models.PromoCode
	normalized := strings.ToLower(strings.TrimSpace(code))
	err := r.db.WithContext(ctx).
		Where("lower(code) = ?", normalized).
		First(&promo).Error
	if err != nil {
		return nil, err
	}
	return &promo, nil
}

// FindByID loads a promo by primary key.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.PromoCode, error) {
	var promo models.PromoCode
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&promo).Error; err != nil {
		return nil, err
	}
	return &promo, nil
}

// List returns all promo codes ordered by creation time.
func (r *Repository) List(ctx context.Context) ([]models.PromoCode, error) {
	var rows []models.PromoCode
	if err := r.db.WithContext(ctx).Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Create inserts a new promo code.
func (r *Repository) Create(ctx context.Context, promo *models.PromoCode) (*models.PromoCode, error) {
	if err := r.db.WithContext(ctx).Create(promo).Error; err != nil {
		return nil, err
	}
	return promo, nil
}

// Save persists the provided promo code.
func (r *Repository) Save(ctx context.Context, promo *models.PromoCode) (*models.PromoCode, error) {
	promo.Code = strings.ToLower(strings.TrimSpace(promo.Code))
	if err := r.db.WithContext(ctx).Save(promo).Error; err != nil {
		return nil, err
	}
	return promo, nil
}

// Delete removes a promo code.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.PromoCode{}).Error
}

// CountOrdersByUserAndCode counts persisted orders where the user applied the
// given code. Backs the per-user usage limit.
func (r *Repository) CountOrdersByUserAndCode(ctx context.Context, userID uuid.UUID, code string) (int64, error) {
	var count int64
	normalized := strings.ToLower(strings.TrimSpace(code))
	err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("user_id = ? AND lower(promo_code) = ?", userID, normalized).
		Count(&count).Error
	return count, err
}

// IncrementUsage advances usage_count by one, but only while the global limit
// has not been reached. This single conditional statement is the authoritative
// enforcement point: when it matches no row the limit was exhausted by a
// concurrent order. Returns the new usage count.
func (r *Repository) IncrementUsage(ctx context.Context, id uuid.UUID, now time.Time) (int, bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.PromoCode{}).
		Where("id = ? AND (usage_limit IS NULL OR usage_count < usage_limit)", id).
		Updates(map[string]any{
			"usage_count":  gorm.Expr("usage_count + 1"),
			"last_used_at": now,
		})
	if res.Error != nil {
		return 0, false, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, false, nil
	}

	var promo models.PromoCode
	if err := r.db.WithContext(ctx).Select("usage_count").Where("id = ?", id).First(&promo).Error; err != nil {
		return 0, true, err
	}
	return promo.UsageCount, true, nil
}
