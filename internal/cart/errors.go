package cart

import (
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

var (
	ErrNotFound           = pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
	ErrItemNotFound       = pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
	ErrOwnershipMismatch  = pkgerrors.New(pkgerrors.CodeForbidden, "cart does not belong to the caller")
	ErrNotActive          = pkgerrors.New(pkgerrors.CodeStateConflict, "cart is not active")
	ErrProductUnavailable = pkgerrors.New(pkgerrors.CodeNotFound, "product is unavailable")
)
