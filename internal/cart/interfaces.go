package cart

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

// CartRepository abstracts cart persistence for service tests.
type CartRepository interface {
	WithTx(tx *gorm.DB) CartRepository
	FindActiveByOwner(ctx context.Context, owner Owner) (*models.Cart, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Cart, error)
	Create(ctx context.Context, cart *models.Cart) (*models.Cart, error)
	FindItem(ctx context.Context, cartID, itemID uuid.UUID) (*models.CartItem, error)
	IncrementItemQuantity(ctx context.Context, cartID, productID uuid.UUID, variantID *uuid.UUID, delta int) (bool, error)
	InsertItem(ctx context.Context, item *models.CartItem) error
	UpdateItemQuantity(ctx context.Context, itemID uuid.UUID, quantity int) error
	DeleteItem(ctx context.Context, itemID uuid.UUID) error
	DeleteItemsByCart(ctx context.Context, cartID uuid.UUID) error
	BumpVersion(ctx context.Context, cartID uuid.UUID) error
	RecomputeSubtotal(ctx context.Context, cartID uuid.UUID) error
	Complete(ctx context.Context, cartID uuid.UUID, now time.Time) (bool, error)
	ReassignOwner(ctx context.Context, cartID, userID uuid.UUID) error
	MarkMerged(ctx context.Context, cartID uuid.UUID) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}
