package promo

import (
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// Each rejection reason is a distinct, user-facing error kind. Callers match
// with errors.Is; the order pipeline propagates them unchanged.
var (
	ErrNotFound             = pkgerrors.New(pkgerrors.CodeNotFound, "promo code not found")
	ErrInactive             = pkgerrors.New(pkgerrors.CodePromo, "promo code is not active")
	ErrNotStarted           = pkgerrors.New(pkgerrors.CodePromo, "promo code is not yet active")
	ErrExpired              = pkgerrors.New(pkgerrors.CodePromo, "promo code has expired")
	ErrBelowMinimumSubtotal = pkgerrors.New(pkgerrors.CodePromo, "subtotal below promo minimum")
	ErrRequiresIdentity     = pkgerrors.New(pkgerrors.CodePromo, "promo code requires a signed-in user")
	ErrPerUserLimitReached  = pkgerrors.New(pkgerrors.CodePromo, "per-user promo usage limit reached")
	ErrGlobalLimitReached   = pkgerrors.New(pkgerrors.CodePromo, "promo global usage limit reached")
	ErrNotEligible          = pkgerrors.New(pkgerrors.CodePromo, "user not eligible for this promo")
	ErrMisconfigured        = pkgerrors.New(pkgerrors.CodeValidation, "promo code is misconfigured")
)
