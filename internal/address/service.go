package address

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

var ErrNotFound = pkgerrors.New(pkgerrors.CodeNotFound, "address not found")

// Provider loads stored addresses for snapshotting onto orders.
type Provider interface {
	WithTx(tx *gorm.DB) Provider
	Get(ctx context.Context, id uuid.UUID) (*models.Address, error)
}

type provider struct {
	db *gorm.DB
}

// NewProvider builds the address lookup repository.
func NewProvider(db *gorm.DB) (Provider, error) {
	if db == nil {
		return nil, fmt.Errorf("db handle required")
	}
	return &provider{db: db}, nil
}

func (p *provider) WithTx(tx *gorm.DB) Provider {
	if tx == nil {
		return p
	}
	return &provider{db: tx}
}

func (p *provider) Get(ctx context.Context, id uuid.UUID) (*models.Address, error) {
	var addr models.Address
	err := p.db.WithContext(ctx).Where("id = ?", id).First(&addr).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load address")
	}
	return &addr, nil
}

// Snapshot copies an address row into the immutable form persisted on orders.
// Later edits to the row never touch existing orders.
func Snapshot(addr *models.Address) types.AddressSnapshot {
	snap := types.AddressSnapshot{
		Name:       addr.Name,
		Company:    copyStringPtr(addr.Company),
		Line1:      addr.Line1,
		Line2:      copyStringPtr(addr.Line2),
		City:       addr.City,
		Region:     addr.Region,
		PostalCode: addr.PostalCode,
		Country:    addr.Country,
		Phone:      copyStringPtr(addr.Phone),
		Email:      copyStringPtr(addr.Email),
	}
	if len(addr.Extra) > 0 {
		snap.Extra = make(map[string]any, len(addr.Extra))
		for k, v := range addr.Extra {
			snap.Extra[k] = v
		}
	}
	return snap
}

func copyStringPtr(src *string) *string {
	if src == nil {
		return nil
	}
	val := *src
	return &val
}
