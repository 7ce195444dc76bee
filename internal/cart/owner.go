package cart

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// Owner identifies who a cart or order belongs to: exactly one of a signed-in
// user id or an anonymous session token.
type Owner struct {
	UserID    *uuid.UUID
	SessionID *string
}

// UserOwner builds an Owner for a signed-in user.
func UserOwner(userID uuid.UUID) Owner {
	return Owner{UserID: &userID}
}

// SessionOwner builds an Owner for a guest session.
func SessionOwner(sessionID string) Owner {
	return Owner{SessionID: &sessionID}
}

// Validate rejects owners with zero or two identities.
func (o Owner) Validate() error {
	hasUser := o.UserID != nil && *o.UserID != uuid.Nil
	hasSession := o.SessionID != nil && *o.SessionID != ""
	if hasUser == hasSession {
		return pkgerrors.New(pkgerrors.CodeValidation, "exactly one of user id or session id required")
	}
	return nil
}

// Owns reports whether the cart belongs to this owner.
func (o Owner) Owns(c *models.Cart) bool {
	if o.UserID != nil {
		return c.UserID != nil && *c.UserID == *o.UserID
	}
	if o.SessionID != nil {
		return c.SessionID != nil && *c.SessionID == *o.SessionID
	}
	return false
}
