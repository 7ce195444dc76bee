package promo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/clock"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// Result carries the outcome of a successful validation: the promo row, the
// clamped discount and the immutable snapshot to persist on the order.
type Result struct {
	Promo         *models.PromoCode
	DiscountCents int
	Snapshot      types.PromoSnapshot
}

// Service validates promo codes against cart subtotals and consumes usage
// slots atomically.
type Service interface {
	ValidateAndCompute(ctx context.Context, code string, subtotalCents int, userID *uuid.UUID) (*Result, error)
	IncrementUsage(ctx context.Context, tx *gorm.DB, promoID uuid.UUID) (int, error)
}

type service struct {
	repo  PromoRepository
	clock clock.Clock
}

// NewService builds a promo service backed by the provided repository.
func NewService(repo PromoRepository, clk clock.Clock) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("promo repository required")
	}
	if clk == nil {
		clk = clock.System()
	}
	return &service{repo: repo, clock: clk}, nil
}

// ValidateAndCompute looks up the code case-insensitively, applies every
// eligibility rule and computes the clamped discount. The global-limit check
// here is only a fast reject; IncrementUsage is the authoritative gate.
func (s *service) ValidateAndCompute(ctx context.Context, code string, subtotalCents int, userID *uuid.UUID) (*Result, error) {
	if subtotalCents < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "subtotal cannot be negative")
	}

	promo, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load promo code")
	}

	now := s.clock.Now()
	if !promo.IsActive {
		return nil, ErrInactive
	}
	if promo.StartsAt.After(now) {
		return nil, ErrNotStarted
	}
	if promo.EndsAt != nil && !promo.EndsAt.After(now) {
		return nil, ErrExpired
	}
	if promo.MinSubtotalCents != nil && subtotalCents < *promo.MinSubtotalCents {
		return nil, ErrBelowMinimumSubtotal
	}

	if promo.PerUserLimit != nil {
		if userID == nil {
			return nil, ErrRequiresIdentity
		}
		used, err := s.repo.CountOrdersByUserAndCode(ctx, *userID, promo.Code)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count promo usage")
		}
		if used >= int64(*promo.PerUserLimit) {
			return nil, ErrPerUserLimitReached
		}
	}

	if promo.UsageLimit != nil && promo.UsageCount >= *promo.UsageLimit {
		return nil, ErrGlobalLimitReached
	}

	if !promo.AllowsUser(userID) {
		return nil, ErrNotEligible
	}

	discount, err := computeDiscount(promo, subtotalCents)
	if err != nil {
		return nil, err
	}

	return &Result{
		Promo:         promo,
		DiscountCents: discount,
		Snapshot: types.PromoSnapshot{
			Code:                  promo.Code,
			Type:                  promo.Type,
			ValueCents:            copyIntPtr(promo.ValueCents),
			PercentBasisPoints:    copyIntPtr(promo.PercentBasisPoints),
			MaxDiscountCents:      copyIntPtr(promo.MaxDiscountCents),
			ComputedDiscountCents: discount,
		},
	}, nil
}

// IncrementUsage consumes one usage slot inside the caller's transaction.
// Fails with ErrGlobalLimitReached when the limit was exhausted between
// validation and commit.
func (s *service) IncrementUsage(ctx context.Context, tx *gorm.DB, promoID uuid.UUID) (int, error) {
	repo := s.repo
	if tx != nil {
		repo = s.repo.WithTx(tx)
	}
	count, ok, err := repo.IncrementUsage(ctx, promoID, s.clock.Now())
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "increment promo usage")
	}
	if !ok {
		return 0, ErrGlobalLimitReached
	}
	return count, nil
}

// computeDiscount applies the promo's value to the subtotal and clamps the
// result to [0, min(subtotal, cap)]. Percentage promos use integer basis-point
// math; truncation toward zero is intentional.
func computeDiscount(promo *models.PromoCode, subtotalCents int) (int, error) {
	var discount int
	switch promo.Type {
	case enums.PromoTypePercentage:
		if promo.PercentBasisPoints == nil || *promo.PercentBasisPoints <= 0 {
			return 0, ErrMisconfigured
		}
		discount = subtotalCents * *promo.PercentBasisPoints / 10000
	case enums.PromoTypeFixedAmount:
		if promo.ValueCents != nil {
			discount = *promo.ValueCents
		}
	case enums.PromoTypeFreeShipping:
		discount = 0
	default:
		return 0, ErrMisconfigured
	}

	if promo.MaxDiscountCents != nil && discount > *promo.MaxDiscountCents {
		discount = *promo.MaxDiscountCents
	}
	if discount > subtotalCents {
		discount = subtotalCents
	}
	if discount < 0 {
		discount = 0
	}
	return discount, nil
}

func copyIntPtr(src *int) *int {
	if src == nil {
		return nil
	}
	val := *src
	return &val
}
