package orders

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/address"
	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/products"
	"github.com/angelmondragon/storefront-backend/internal/promo"
	"github.com/angelmondragon/storefront-backend/pkg/clock"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
	"github.com/angelmondragon/storefront-backend/pkg/types"
	"github.com/angelmondragon/storefront-backend/pkg/validate"
)

// ServiceParams groups dependencies for the order service.
type ServiceParams struct {
	Logger          *logger.Logger
	DB              txRunner
	OrderRepo       OrderRepository
	CartRepo        cart.CartRepository
	Catalog         products.Catalog
	Promos          promo.Service
	Addresses       address.Provider
	Outbox          outboxEmitter
	Clock           clock.Clock
	TaxRateBasisPts int
}

// Service turns carts into orders and moves orders through their lifecycle.
type Service interface {
	Preview(ctx context.Context, owner cart.Owner, input PreviewInput) (*Quote, error)
	Create(ctx context.Context, owner cart.Owner, input CreateOrderInput) (*models.Order, error)
	GetByID(ctx context.Context, owner cart.Owner, orderID uuid.UUID) (*models.Order, error)
	ListForUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Order, error)
	UpdateStatus(ctx context.Context, orderID uuid.UUID, input UpdateStatusInput) (*models.Order, error)
}

type service struct {
	logg       *logger.Logger
	db         txRunner
	orderRepo  OrderRepository
	cartRepo   cart.CartRepository
	catalog    products.Catalog
	promos     promo.Service
	addresses  address.Provider
	outbox     outboxEmitter
	clock      clock.Clock
	taxRateBps int
}

// NewService builds the order service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.DB == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "db runner is required")
	}
	if params.OrderRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order repo is required")
	}
	if params.CartRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart repo is required")
	}
	if params.Catalog == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product catalog is required")
	}
	if params.Promos == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "promo service is required")
	}
	if params.Addresses == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "address provider is required")
	}
	if params.Outbox == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "outbox emitter is required")
	}
	if params.TaxRateBasisPts < 0 || params.TaxRateBasisPts > 10000 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tax rate basis points out of range")
	}
	if params.Clock == nil {
		params.Clock = clock.System()
	}
	return &service{
		logg:       params.Logger,
		db:         params.DB,
		orderRepo:  params.OrderRepo,
		cartRepo:   params.CartRepo,
		catalog:    params.Catalog,
		promos:     params.Promos,
		addresses:  params.Addresses,
		outbox:     params.Outbox,
		clock:      params.Clock,
		taxRateBps: params.TaxRateBasisPts,
	}, nil
}

// Preview computes the quote for a cart without touching any state. The same
// pricing path runs again inside Create, so a preview matches the order that
// a subsequent checkout produces as long as nothing changed in between.
func (s *service) Preview(ctx context.Context, owner cart.Owner, input PreviewInput) (*Quote, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}
	if err := validate.Struct(input); err != nil {
		return nil, err
	}

	cartRow, err := s.loadCheckoutCart(ctx, s.cartRepo, owner, input.CartID)
	if err != nil {
		return nil, err
	}
	quote, _, err := s.buildQuote(ctx, s.catalog, cartRow, input.PromoCode, owner.UserID)
	if err != nil {
		return nil, err
	}
	return quote, nil
}

// Create runs the checkout pipeline in a single transaction: price the cart
// from the live catalog, apply the promo, freeze address snapshots, insert
// the order, close the cart, consume the promo slot and queue the domain
// events. A retried request with the same idempotency key returns the order
// created by the first attempt.
func (s *service) Create(ctx context.Context, owner cart.Owner, input CreateOrderInput) (*models.Order, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}
	if err := validate.Struct(input); err != nil {
		return nil, err
	}
	if !input.BillingSameAsShipping && input.BillingAddressID == nil {
		return nil, ErrBillingRequired
	}

	if input.IdempotencyKey != nil {
		existing, err := s.orderRepo.FindByIdempotencyKey(ctx, owner, *input.IdempotencyKey)
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency key")
		}
	}

	var order *models.Order
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		cartRepo := s.cartRepo.WithTx(tx)
		orderRepo := s.orderRepo.WithTx(tx)

		cartRow, err := s.loadCheckoutCart(ctx, cartRepo, owner, input.CartID)
		if err != nil {
			return err
		}

		quote, promoResult, err := s.buildQuote(ctx, s.catalog.WithTx(tx), cartRow, input.PromoCode, owner.UserID)
		if err != nil {
			return err
		}

		candidate, err := s.assembleOrder(ctx, tx, cartRow, owner, input, quote)
		if err != nil {
			return err
		}

		if err := orderRepo.Insert(ctx, candidate); err != nil {
			return err
		}

		completed, err := cartRepo.Complete(ctx, cartRow.ID, s.clock.Now())
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "complete cart")
		}
		if !completed {
			return ErrCartNotActive
		}

		if promoResult != nil {
			if _, err := s.promos.IncrementUsage(ctx, tx, promoResult.Promo.ID); err != nil {
				return err
			}
		}

		if err := s.emitCreationEvents(ctx, tx, candidate, cartRow.ID); err != nil {
			return err
		}

		order = candidate
		return nil
	})
	if err != nil {
		// Two racers with one idempotency key both reach the insert; the
		// loser resolves to the winner's row.
		if input.IdempotencyKey != nil && db.IsUniqueViolation(err, "") {
			winner, readErr := s.orderRepo.FindByIdempotencyKey(ctx, owner, *input.IdempotencyKey)
			if readErr == nil {
				return winner, nil
			}
		}
		return nil, err
	}

	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"order_id":    order.ID.String(),
			"cart_id":     input.CartID.String(),
			"total_cents": order.TotalCents,
		})
		s.logg.Info(logCtx, "order created")
	}
	return order, nil
}

// GetByID loads an order and enforces ownership.
func (s *service) GetByID(ctx context.Context, owner cart.Owner, orderID uuid.UUID) (*models.Order, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}
	order, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if !ownsOrder(owner, order) {
		return nil, ErrOwnershipMismatch
	}
	return order, nil
}

// ListForUser returns the user's order history, newest first.
func (s *service) ListForUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Order, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	rows, err := s.orderRepo.ListForUser(ctx, userID, pagination.NormalizeLimit(limit), pagination.NormalizeOffset(offset))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return rows, nil
}

// UpdateStatus moves an order along the state machine with a single
// compare-and-swap, stamping the transition timestamp and emitting the
// status-changed event in the same transaction.
func (s *service) UpdateStatus(ctx context.Context, orderID uuid.UUID, input UpdateStatusInput) (*models.Order, error) {
	if err := validate.Struct(input); err != nil {
		return nil, err
	}
	if !input.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown order status")
	}

	order, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}

	if input.ExpectedVersion != order.Version {
		return nil, ErrVersionMismatch
	}
	if err := ValidateTransition(order.Status, input.Status); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	stamps := transitionStamps(input.Status, now)

	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.orderRepo.WithTx(tx)
		moved, err := repo.UpdateStatus(ctx, order.ID, order.Status, input.Status, order.Version, stamps)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		if !moved {
			return ErrVersionMismatch
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderStatusChanged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			OccurredAt:    now,
			Data: payloads.OrderStatusChangedEvent{
				OrderID:    order.ID,
				UserID:     order.UserID,
				FromStatus: order.Status,
				ToStatus:   input.Status,
				Version:    order.Version + 1,
				OccurredAt: now,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	updated, err := s.orderRepo.FindByID(ctx, order.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload order")
	}
	return updated, nil
}

// loadCheckoutCart loads the cart and verifies it can be checked out.
func (s *service) loadCheckoutCart(ctx context.Context, repo cart.CartRepository, owner cart.Owner, cartID uuid.UUID) (*models.Cart, error) {
	cartRow, err := repo.FindByID(ctx, cartID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, cart.ErrNotFound
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	if !owner.Owns(cartRow) {
		return nil, cart.ErrOwnershipMismatch
	}
	if cartRow.Status != enums.CartStatusActive {
		return nil, ErrCartNotActive
	}
	if len(cartRow.Items) == 0 {
		return nil, ErrCartEmpty
	}
	return cartRow, nil
}

// buildQuote prices the cart's lines against the live catalog, applies the
// promo and derives tax and total. Tax applies to the post-discount subtotal
// and truncates toward zero.
func (s *service) buildQuote(ctx context.Context, catalog products.Catalog, cartRow *models.Cart, promoCode *string, userID *uuid.UUID) (*Quote, *promo.Result, error) {
	ids := make([]uuid.UUID, 0, len(cartRow.Items))
	for _, line := range cartRow.Items {
		ids = append(ids, line.ProductID)
	}
	live, err := catalog.FindActiveByIDs(ctx, ids)
	if err != nil {
		return nil, nil, err
	}

	quote := &Quote{
		Currency:      cartRow.Currency,
		ShippingCents: cartRow.ShippingCents,
		Items:         make([]QuoteItem, 0, len(cartRow.Items)),
	}
	for _, line := range cartRow.Items {
		product, ok := live[line.ProductID]
		if !ok {
			return nil, nil, ErrProductUnavailable
		}
		lineTotal := product.PriceCents * line.Quantity
		quote.SubtotalCents += lineTotal
		quote.Items = append(quote.Items, QuoteItem{
			ProductID:      product.ID,
			VariantID:      line.VariantID,
			ProductName:    product.Name,
			SKU:            product.SKU,
			ImageURL:       product.ImageURL,
			UnitPriceCents: product.PriceCents,
			Quantity:       line.Quantity,
			LineTotalCents: lineTotal,
		})
	}

	var promoResult *promo.Result
	if promoCode != nil && *promoCode != "" {
		promoResult, err = s.promos.ValidateAndCompute(ctx, *promoCode, quote.SubtotalCents, userID)
		if err != nil {
			return nil, nil, err
		}
		quote.DiscountCents = promoResult.DiscountCents
		snapshot := promoResult.Snapshot
		quote.PromoSnapshot = &snapshot
		if promoResult.Promo.Type == enums.PromoTypeFreeShipping {
			quote.ShippingCents = 0
		}
	}

	taxable := quote.SubtotalCents - quote.DiscountCents
	quote.TaxCents = taxable * s.taxRateBps / 10000
	quote.TotalCents = quote.SubtotalCents - quote.DiscountCents + quote.TaxCents + quote.ShippingCents
	return quote, promoResult, nil
}

// assembleOrder freezes the quote and address snapshots into an order row.
func (s *service) assembleOrder(ctx context.Context, tx *gorm.DB, cartRow *models.Cart, owner cart.Owner, input CreateOrderInput, quote *Quote) (*models.Order, error) {
	provider := s.addresses.WithTx(tx)

	shipping, err := provider.Get(ctx, input.ShippingAddressID)
	if err != nil {
		return nil, err
	}
	shippingFrozen := address.Snapshot(shipping)

	// Create rejects a nil billing address up front, so !billingSame always
	// has an id to resolve here.
	billingSame := input.BillingSameAsShipping
	var billingFrozen *types.AddressSnapshot
	if !billingSame {
		billing, err := provider.Get(ctx, *input.BillingAddressID)
		if err != nil {
			return nil, err
		}
		frozen := address.Snapshot(billing)
		billingFrozen = &frozen
	}

	now := s.clock.Now()
	order := &models.Order{
		CartID:                &cartRow.ID,
		UserID:                owner.UserID,
		SessionID:             owner.SessionID,
		Currency:              quote.Currency,
		SubtotalCents:         quote.SubtotalCents,
		TaxCents:              quote.TaxCents,
		DiscountCents:         quote.DiscountCents,
		ShippingCents:         quote.ShippingCents,
		TotalCents:            quote.TotalCents,
		ShippingAddressID:     input.ShippingAddressID,
		BillingAddressID:      input.BillingAddressID,
		BillingSameAsShipping: billingSame,
		ShippingAddressFrozen: &shippingFrozen,
		BillingAddressFrozen:  billingFrozen,
		IdempotencyKey:        input.IdempotencyKey,
		Status:                enums.OrderStatusPending,
		PlacedAt:              &now,
	}
	if quote.PromoSnapshot != nil {
		code := quote.PromoSnapshot.Code
		order.PromoCode = &code
		order.PromoSnapshot = quote.PromoSnapshot
	}

	order.Items = make([]models.OrderItem, 0, len(quote.Items))
	for _, line := range quote.Items {
		order.Items = append(order.Items, models.OrderItem{
			ProductID:      line.ProductID,
			VariantID:      line.VariantID,
			ProductName:    line.ProductName,
			SKU:            line.SKU,
			ImageURL:       line.ImageURL,
			UnitPriceCents: line.UnitPriceCents,
			Quantity:       line.Quantity,
			LineTotalCents: line.LineTotalCents,
		})
	}
	return order, nil
}

func (s *service) emitCreationEvents(ctx context.Context, tx *gorm.DB, order *models.Order, cartID uuid.UUID) error {
	placedAt := s.clock.Now()
	if order.PlacedAt != nil {
		placedAt = *order.PlacedAt
	}
	err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderPlaced,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		OccurredAt:    placedAt,
		Data: payloads.OrderPlacedEvent{
			OrderID:        order.ID,
			CartID:         order.CartID,
			UserID:         order.UserID,
			SessionID:      order.SessionID,
			Currency:       order.Currency.String(),
			SubtotalCents:  order.SubtotalCents,
			DiscountCents:  order.DiscountCents,
			TaxCents:       order.TaxCents,
			ShippingCents:  order.ShippingCents,
			TotalCents:     order.TotalCents,
			PromoCode:      order.PromoCode,
			LineItemCount:  len(order.Items),
			PlacedAt:       placedAt,
			IdempotencyKey: order.IdempotencyKey,
		},
	})
	if err != nil {
		return err
	}
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventCartCompleted,
		AggregateType: enums.AggregateCart,
		AggregateID:   cartID,
		OccurredAt:    placedAt,
		Data: payloads.CartCompletedEvent{
			CartID:  cartID,
			OrderID: order.ID,
		},
	})
}

// transitionStamps maps a destination status to its timestamp column.
func transitionStamps(to enums.OrderStatus, now time.Time) map[string]any {
	switch to {
	case enums.OrderStatusPaid:
		return map[string]any{"paid_at": now}
	case enums.OrderStatusFulfilled:
		return map[string]any{"fulfilled_at": now}
	case enums.OrderStatusCancelled:
		return map[string]any{"canceled_at": now}
	default:
		return nil
	}
}

func ownsOrder(owner cart.Owner, order *models.Order) bool {
	if owner.UserID != nil {
		return order.UserID != nil && *order.UserID == *owner.UserID
	}
	if owner.SessionID != nil {
		return order.SessionID != nil && *order.SessionID == *owner.SessionID
	}
	return false
}
