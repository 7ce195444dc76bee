package cart

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/products"
	"github.com/angelmondragon/storefront-backend/pkg/clock"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/types"
	"github.com/angelmondragon/storefront-backend/pkg/validate"
)

// addItemRetries bounds the insert-vs-increment race loop. Two concurrent
// first adds of the same product collide on the line's unique index; the
// loser retries as an increment.
const addItemRetries = 3

// AddItemInput is the payload for adding a product to a cart.
type AddItemInput struct {
	ProductID uuid.UUID  `json:"product_id" validate:"required"`
	VariantID *uuid.UUID `json:"variant_id"`
	Quantity  int        `json:"quantity" validate:"required,min=1,max=999"`
}

// ServiceParams groups dependencies for the cart service.
type ServiceParams struct {
	DB       txRunner
	CartRepo CartRepository
	Catalog  products.Catalog
	Clock    clock.Clock
	GuestTTL time.Duration
}

// Service exposes cart aggregate operations. Every mutation bumps the cart
// version and re-derives the subtotal inside one transaction.
type Service interface {
	GetOrCreate(ctx context.Context, owner Owner) (*models.Cart, error)
	Get(ctx context.Context, owner Owner, cartID uuid.UUID) (*models.Cart, error)
	AddItem(ctx context.Context, owner Owner, input AddItemInput) (*models.Cart, error)
	UpdateItemQuantity(ctx context.Context, owner Owner, itemID uuid.UUID, quantity int) (*models.Cart, error)
	RemoveItem(ctx context.Context, owner Owner, itemID uuid.UUID) (*models.Cart, error)
	MergeGuestIntoUser(ctx context.Context, sessionID string, userID uuid.UUID) (*models.Cart, error)
}

type service struct {
	db       txRunner
	cartRepo CartRepository
	catalog  products.Catalog
	clock    clock.Clock
	guestTTL time.Duration
}

// NewService builds a cart service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.DB == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "db runner is required")
	}
	if params.CartRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart repo is required")
	}
	if params.Catalog == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product catalog is required")
	}
	if params.Clock == nil {
		params.Clock = clock.System()
	}
	return &service{
		db:       params.DB,
		cartRepo: params.CartRepo,
		catalog:  params.Catalog,
		clock:    params.Clock,
		guestTTL: params.GuestTTL,
	}, nil
}

// GetOrCreate returns the owner's active cart, creating one when absent. A
// concurrent create loses on the active-cart unique index and re-reads the
// winner, so both callers end up on the same cart.
func (s *service) GetOrCreate(ctx context.Context, owner Owner) (*models.Cart, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}

	cart, err := s.cartRepo.FindActiveByOwner(ctx, owner)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load active cart")
	}

	fresh := &models.Cart{UserID: owner.UserID, SessionID: owner.SessionID}
	if owner.SessionID != nil && s.guestTTL > 0 {
		expiresAt := s.clock.Now().Add(s.guestTTL)
		fresh.ExpiresAt = &expiresAt
	}

	created, err := s.cartRepo.Create(ctx, fresh)
	if err == nil {
		created.Items = []models.CartItem{}
		return created, nil
	}
	if !db.IsUniqueViolation(err, "") {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create cart")
	}

	winner, err := s.cartRepo.FindActiveByOwner(ctx, owner)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload cart after create race")
	}
	return winner, nil
}

// Get loads a cart by id and enforces ownership.
func (s *service) Get(ctx context.Context, owner Owner, cartID uuid.UUID) (*models.Cart, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}
	return s.loadOwned(ctx, s.cartRepo, owner, cartID)
}

// AddItem adds quantity of a product to the owner's active cart. A line for
// the same (product, variant) is incremented in place rather than duplicated.
func (s *service) AddItem(ctx context.Context, owner Owner, input AddItemInput) (*models.Cart, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}
	if err := validate.Struct(input); err != nil {
		return nil, err
	}

	cart, err := s.GetOrCreate(ctx, owner)
	if err != nil {
		return nil, err
	}
	if cart.Status != enums.CartStatusActive {
		return nil, ErrNotActive
	}

	product, err := s.catalog.FindActiveByID(ctx, input.ProductID)
	if err != nil {
		if errors.Is(err, products.ErrNotFound) {
			return nil, ErrProductUnavailable
		}
		return nil, err
	}

	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.cartRepo.WithTx(tx)
		if err := s.upsertLine(ctx, repo, cart.ID, product, input); err != nil {
			return err
		}
		return s.finalizeMutation(ctx, repo, cart.ID)
	})
	if err != nil {
		return nil, err
	}

	return s.reload(ctx, cart.ID)
}

// upsertLine increments the existing line or inserts a new one, retrying the
// insert-vs-increment race a bounded number of times.
func (s *service) upsertLine(ctx context.Context, repo CartRepository, cartID uuid.UUID, product *models.Product, input AddItemInput) error {
	for attempt := 0; attempt < addItemRetries; attempt++ {
		bumped, err := repo.IncrementItemQuantity(ctx, cartID, input.ProductID, input.VariantID, input.Quantity)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "increment cart line")
		}
		if bumped {
			return nil
		}

		item := &models.CartItem{
			CartID:         cartID,
			ProductID:      product.ID,
			VariantID:      input.VariantID,
			ProductName:    product.Name,
			Quantity:       input.Quantity,
			UnitPriceCents: product.PriceCents,
			ProductSnapshot: &types.ProductSnapshot{
				ID:         product.ID,
				Name:       product.Name,
				SKU:        product.SKU,
				PriceCents: product.PriceCents,
			},
		}
		err = repo.InsertItem(ctx, item)
		if err == nil {
			return nil
		}
		if !db.IsUniqueViolation(err, "uq_cart_items_cart_product_variant") {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert cart line")
		}
	}
	return pkgerrors.New(pkgerrors.CodeConflict, "cart line contention, retry the request")
}

// UpdateItemQuantity sets a line's quantity. Zero removes the line.
func (s *service) UpdateItemQuantity(ctx context.Context, owner Owner, itemID uuid.UUID, quantity int) (*models.Cart, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}
	if quantity < 0 || quantity > 999 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be between 0 and 999")
	}

	cart, err := s.activeOwnedCart(ctx, owner)
	if err != nil {
		return nil, err
	}

	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.cartRepo.WithTx(tx)
		item, err := repo.FindItem(ctx, cart.ID, itemID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrItemNotFound
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart line")
		}
		if quantity == 0 {
			if err := repo.DeleteItem(ctx, item.ID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete cart line")
			}
		} else if err := repo.UpdateItemQuantity(ctx, item.ID, quantity); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart line")
		}
		return s.finalizeMutation(ctx, repo, cart.ID)
	})
	if err != nil {
		return nil, err
	}

	return s.reload(ctx, cart.ID)
}

// RemoveItem deletes a line from the owner's active cart.
func (s *service) RemoveItem(ctx context.Context, owner Owner, itemID uuid.UUID) (*models.Cart, error) {
	return s.UpdateItemQuantity(ctx, owner, itemID, 0)
}

// MergeGuestIntoUser folds a guest cart into the user's cart at sign-in.
// When the user has no active cart the guest cart is simply reassigned;
// otherwise matching lines merge quantities and the guest cart is archived.
func (s *service) MergeGuestIntoUser(ctx context.Context, sessionID string, userID uuid.UUID) (*models.Cart, error) {
	if sessionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}

	guest, err := s.cartRepo.FindActiveByOwner(ctx, SessionOwner(sessionID))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Nothing to merge; hand back whatever the user has.
			return s.GetOrCreate(ctx, UserOwner(userID))
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load guest cart")
	}

	userCart, err := s.cartRepo.FindActiveByOwner(ctx, UserOwner(userID))
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user cart")
		}
		userCart = nil
	}

	var targetID uuid.UUID
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.cartRepo.WithTx(tx)

		if userCart == nil {
			if err := repo.ReassignOwner(ctx, guest.ID, userID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reassign guest cart")
			}
			targetID = guest.ID
			return nil
		}

		targetID = userCart.ID
		for _, line := range guest.Items {
			bumped, err := repo.IncrementItemQuantity(ctx, userCart.ID, line.ProductID, line.VariantID, line.Quantity)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "merge cart line")
			}
			if bumped {
				continue
			}
			moved := &models.CartItem{
				CartID:          userCart.ID,
				ProductID:       line.ProductID,
				VariantID:       line.VariantID,
				ProductName:     line.ProductName,
				ProductSnapshot: line.ProductSnapshot,
				Quantity:        line.Quantity,
				UnitPriceCents:  line.UnitPriceCents,
			}
			if err := repo.InsertItem(ctx, moved); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "move cart line")
			}
		}
		if err := repo.DeleteItemsByCart(ctx, guest.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear guest cart")
		}
		if err := repo.MarkMerged(ctx, guest.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "archive guest cart")
		}
		return s.finalizeMutation(ctx, repo, userCart.ID)
	})
	if err != nil {
		return nil, err
	}

	return s.reload(ctx, targetID)
}

// finalizeMutation re-derives the subtotal and bumps the version. Runs inside
// the caller's transaction so readers never observe a stale subtotal.
func (s *service) finalizeMutation(ctx context.Context, repo CartRepository, cartID uuid.UUID) error {
	if err := repo.RecomputeSubtotal(ctx, cartID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "recompute cart subtotal")
	}
	if err := repo.BumpVersion(ctx, cartID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "bump cart version")
	}
	return nil
}

func (s *service) activeOwnedCart(ctx context.Context, owner Owner) (*models.Cart, error) {
	cart, err := s.cartRepo.FindActiveByOwner(ctx, owner)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load active cart")
	}
	return cart, nil
}

func (s *service) loadOwned(ctx context.Context, repo CartRepository, owner Owner, cartID uuid.UUID) (*models.Cart, error) {
	cart, err := repo.FindByID(ctx, cartID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	if !owner.Owns(cart) {
		return nil, ErrOwnershipMismatch
	}
	return cart, nil
}

func (s *service) reload(ctx context.Context, cartID uuid.UUID) (*models.Cart, error) {
	cart, err := s.cartRepo.FindByID(ctx, cartID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload cart")
	}
	return cart, nil
}
