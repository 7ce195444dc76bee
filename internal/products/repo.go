package products

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// ErrNotFound covers both missing and deactivated products; callers treat
// them identically because an inactive product cannot be priced.
var ErrNotFound = pkgerrors.New(pkgerrors.CodeNotFound, "product not found")

// Catalog resolves live product rows for pricing. Order creation re-reads the
// catalog rather than trusting cart snapshots.
type Catalog interface {
	WithTx(tx *gorm.DB) Catalog
	FindActiveByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	FindActiveByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error)
}

type catalog struct {
	db *gorm.DB
}

// NewCatalog builds the product lookup repository.
func NewCatalog(db *gorm.DB) (Catalog, error) {
	if db == nil {
		return nil, fmt.Errorf("db handle required")
	}
	return &catalog{db: db}, nil
}

func (c *catalog) WithTx(tx *gorm.DB) Catalog {
	if tx == nil {
		return c
	}
	return &catalog{db: tx}
}

func (c *catalog) FindActiveByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := c.db.WithContext(ctx).
		Where("id = ? AND is_active = ?", id, true).
		First(&product).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	return &product, nil
}

// FindActiveByIDs loads every active product in ids. The caller is
// responsible for treating absent keys as unavailable products.
func (c *catalog) FindActiveByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error) {
	if len(ids) == 0 {
		return map[uuid.UUID]models.Product{}, nil
	}
	var rows []models.Product
	err := c.db.WithContext(ctx).
		Where("id IN ? AND is_active = ?", ids, true).
		Find(&rows).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load products")
	}
	out := make(map[uuid.UUID]models.Product, len(rows))
	for _, row := range rows {
		out[row.ID] = row
	}
	return out, nil
}
