package promo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/clock"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/validate"
)

// CreateInput is the admin payload for defining a promo code.
type CreateInput struct {
	Code               string      `json:"code" validate:"required,min=2,max=50"`
	Type               string      `json:"type" validate:"required,oneof=percentage fixed_amount free_shipping"`
	ValueCents         *int        `json:"value_cents" validate:"omitempty,min=0"`
	PercentBasisPoints *int        `json:"percent_basis_points" validate:"omitempty,min=1,max=10000"`
	MaxDiscountCents   *int        `json:"max_discount_cents" validate:"omitempty,min=0"`
	MinSubtotalCents   *int        `json:"min_subtotal_cents" validate:"omitempty,min=0"`
	UsageLimit         *int        `json:"usage_limit" validate:"omitempty,min=1"`
	PerUserLimit       *int        `json:"per_user_limit" validate:"omitempty,min=1"`
	StartsAt           *time.Time  `json:"starts_at"`
	EndsAt             *time.Time  `json:"ends_at"`
	AppliesToUserIDs   []uuid.UUID `json:"applies_to_user_ids"`
}

// UpdateInput carries optional promo fields to overwrite.
type UpdateInput struct {
	MaxDiscountCents *int       `json:"max_discount_cents" validate:"omitempty,min=0"`
	MinSubtotalCents *int       `json:"min_subtotal_cents" validate:"omitempty,min=0"`
	UsageLimit       *int       `json:"usage_limit" validate:"omitempty,min=1"`
	PerUserLimit     *int       `json:"per_user_limit" validate:"omitempty,min=1"`
	EndsAt           *time.Time `json:"ends_at"`
}

// AdminService manages promo code definitions. Eligibility and consumption
// live on Service; this surface is for back-office CRUD.
type AdminService interface {
	Create(ctx context.Context, input CreateInput) (*models.PromoCode, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*models.PromoCode, error)
	Activate(ctx context.Context, id uuid.UUID) (*models.PromoCode, error)
	Deactivate(ctx context.Context, id uuid.UUID) (*models.PromoCode, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Get(ctx context.Context, id uuid.UUID) (*models.PromoCode, error)
	List(ctx context.Context) ([]models.PromoCode, error)
}

type adminService struct {
	repo  PromoRepository
	clock clock.Clock
}

// NewAdminService builds the promo management service.
func NewAdminService(repo PromoRepository, clk clock.Clock) (AdminService, error) {
	if repo == nil {
		return nil, fmt.Errorf("promo repository required")
	}
	if clk == nil {
		clk = clock.System()
	}
	return &adminService{repo: repo, clock: clk}, nil
}

func (s *adminService) Create(ctx context.Context, input CreateInput) (*models.PromoCode, error) {
	if err := validate.Struct(input); err != nil {
		return nil, err
	}

	promoType, err := enums.ParsePromoType(input.Type)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid promo type")
	}
	if err := validateValueFields(promoType, input.ValueCents, input.PercentBasisPoints); err != nil {
		return nil, err
	}

	startsAt := s.clock.Now()
	if input.StartsAt != nil {
		startsAt = *input.StartsAt
	}
	if input.EndsAt != nil && !startsAt.Before(*input.EndsAt) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "promo validity window must be well-ordered")
	}

	promo := &models.PromoCode{
		Code:               strings.ToLower(strings.TrimSpace(input.Code)),
		Type:               promoType,
		ValueCents:         input.ValueCents,
		PercentBasisPoints: input.PercentBasisPoints,
		MaxDiscountCents:   input.MaxDiscountCents,
		MinSubtotalCents:   input.MinSubtotalCents,
		UsageLimit:         input.UsageLimit,
		PerUserLimit:       input.PerUserLimit,
		IsActive:           true,
		StartsAt:           startsAt,
		EndsAt:             input.EndsAt,
		AppliesToUserIDs:   input.AppliesToUserIDs,
	}

	created, err := s.repo.Create(ctx, promo)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "create promo code")
	}
	return created, nil
}

func (s *adminService) Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*models.PromoCode, error) {
	if err := validate.Struct(input); err != nil {
		return nil, err
	}

	promo, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.MaxDiscountCents != nil {
		promo.MaxDiscountCents = input.MaxDiscountCents
	}
	if input.MinSubtotalCents != nil {
		promo.MinSubtotalCents = input.MinSubtotalCents
	}
	if input.UsageLimit != nil {
		if *input.UsageLimit < promo.UsageCount {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "usage limit cannot fall below current usage")
		}
		promo.UsageLimit = input.UsageLimit
	}
	if input.PerUserLimit != nil {
		promo.PerUserLimit = input.PerUserLimit
	}
	if input.EndsAt != nil {
		if !promo.StartsAt.Before(*input.EndsAt) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "promo validity window must be well-ordered")
		}
		promo.EndsAt = input.EndsAt
	}

	saved, err := s.repo.Save(ctx, promo)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update promo code")
	}
	return saved, nil
}

func (s *adminService) Activate(ctx context.Context, id uuid.UUID) (*models.PromoCode, error) {
	return s.setActive(ctx, id, true)
}

func (s *adminService) Deactivate(ctx context.Context, id uuid.UUID) (*models.PromoCode, error) {
	return s.setActive(ctx, id, false)
}

func (s *adminService) setActive(ctx context.Context, id uuid.UUID, active bool) (*models.PromoCode, error) {
	promo, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if promo.IsActive == active {
		if active {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "promo code is already active")
		}
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "promo code is already inactive")
	}
	promo.IsActive = active
	saved, err := s.repo.Save(ctx, promo)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save promo code")
	}
	return saved, nil
}

func (s *adminService) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete promo code")
	}
	return nil
}

func (s *adminService) Get(ctx context.Context, id uuid.UUID) (*models.PromoCode, error) {
	promo, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load promo code")
	}
	return promo, nil
}

func (s *adminService) List(ctx context.Context) ([]models.PromoCode, error) {
	rows, err := s.repo.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list promo codes")
	}
	return rows, nil
}

// validateValueFields enforces the mutually exclusive value columns per type.
func validateValueFields(promoType enums.PromoType, valueCents, basisPoints *int) error {
	switch promoType {
	case enums.PromoTypePercentage:
		if basisPoints == nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "percentage promo requires percent_basis_points")
		}
		if valueCents != nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "percentage promo cannot carry value_cents")
		}
	case enums.PromoTypeFixedAmount:
		if valueCents == nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "fixed amount promo requires value_cents")
		}
		if basisPoints != nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "fixed amount promo cannot carry percent_basis_points")
		}
	case enums.PromoTypeFreeShipping:
		if valueCents != nil || basisPoints != nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "free shipping promo cannot carry value fields")
		}
	}
	return nil
}
