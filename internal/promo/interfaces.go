package promo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

// PromoRepository abstracts promo persistence so services can be exercised
// against stubs in tests.
type PromoRepository interface {
	WithTx(tx *gorm.DB) PromoRepository
	FindByCode(ctx context.Context, code string) (*models.PromoCode, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.PromoCode, error)
	List(ctx context.Context) ([]models.PromoCode, error)
	Create(ctx context.Context, promo *models.PromoCode) (*models.PromoCode, error)
	Save(ctx context.Context, promo *models.PromoCode) (*models.PromoCode, error)
	Delete(ctx context.Context, id uuid.UUID) error
	CountOrdersByUserAndCode(ctx context.Context, userID uuid.UUID, code string) (int64, error)
	IncrementUsage(ctx context.Context, id uuid.UUID, now time.Time) (int, bool, error)
}
