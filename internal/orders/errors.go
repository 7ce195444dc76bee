package orders

import (
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

var (
	ErrNotFound           = pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	ErrOwnershipMismatch  = pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to the caller")
	ErrCartEmpty          = pkgerrors.New(pkgerrors.CodeValidation, "cart has no items")
	ErrBillingRequired    = pkgerrors.New(pkgerrors.CodeValidation, "billing address is required when not same as shipping")
	ErrCartNotActive      = pkgerrors.New(pkgerrors.CodeStateConflict, "cart is no longer active")
	ErrProductUnavailable = pkgerrors.New(pkgerrors.CodeNotFound, "a cart product is no longer available")
	ErrVersionMismatch    = pkgerrors.New(pkgerrors.CodeConflict, "order was modified concurrently")
)
