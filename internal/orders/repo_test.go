package orders

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

func newRepoTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&models.Order{}, &models.OrderItem{}))
	return conn
}

func seedOrder(t *testing.T, db *gorm.DB, mutate func(*models.Order)) *models.Order {
	t.Helper()
	shippingID := uuid.New()
	order := &models.Order{
		ShippingAddressID: shippingID,
		TotalCents:        1000,
		Items: []models.OrderItem{
			{ProductID: uuid.New(), ProductName: "Seeded", SKU: "SEED-01", UnitPriceCents: 1000, Quantity: 1, LineTotalCents: 1000},
		},
	}
	if mutate != nil {
		mutate(order)
	}
	require.NoError(t, db.Create(order).Error)
	return order
}

func TestRepository_InsertAndFindByID(t *testing.T) {
	db := newRepoTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	userID := uuid.New()
	order := seedOrder(t, db, func(o *models.Order) { o.UserID = &userID })

	found, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, order.ID, found.ID)
	require.Len(t, found.Items, 1)
	require.Equal(t, enums.OrderStatusPending, found.Status)
	require.Equal(t, 1, found.Version)
}

func TestRepository_FindByIdempotencyKey_ScopedToOwner(t *testing.T) {
	db := newRepoTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	userID := uuid.New()
	key := "checkout-attempt-1"
	order := seedOrder(t, db, func(o *models.Order) {
		o.UserID = &userID
		o.IdempotencyKey = &key
	})

	found, err := repo.FindByIdempotencyKey(ctx, cart.UserOwner(userID), key)
	require.NoError(t, err)
	require.Equal(t, order.ID, found.ID)

	// the same key under another identity must not resolve
	_, err = repo.FindByIdempotencyKey(ctx, cart.UserOwner(uuid.New()), key)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)

	_, err = repo.FindByIdempotencyKey(ctx, cart.SessionOwner("sess-1"), key)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestRepository_FindByIdempotencyKey_SessionOwner(t *testing.T) {
	db := newRepoTestDB(t)
	repo := NewRepository(db)

	sessionID := "sess-1"
	key := "checkout-attempt-9"
	order := seedOrder(t, db, func(o *models.Order) {
		o.SessionID = &sessionID
		o.IdempotencyKey = &key
	})

	found, err := repo.FindByIdempotencyKey(context.Background(), cart.SessionOwner(sessionID), key)
	require.NoError(t, err)
	require.Equal(t, order.ID, found.ID)
}

func TestRepository_UpdateStatus_CompareAndSwap(t *testing.T) {
	db := newRepoTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	now := time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)

	order := seedOrder(t, db, nil)

	moved, err := repo.UpdateStatus(ctx, order.ID, enums.OrderStatusPending, enums.OrderStatusPaid, 1, map[string]any{"paid_at": now})
	require.NoError(t, err)
	require.True(t, moved)

	var reloaded models.Order
	require.NoError(t, db.First(&reloaded, "id = ?", order.ID).Error)
	require.Equal(t, enums.OrderStatusPaid, reloaded.Status)
	require.Equal(t, 2, reloaded.Version)
	require.NotNil(t, reloaded.PaidAt)

	// a writer holding the old version loses
	moved, err = repo.UpdateStatus(ctx, order.ID, enums.OrderStatusPending, enums.OrderStatusCancelled, 1, nil)
	require.NoError(t, err)
	require.False(t, moved)

	// so does one holding the old status with the right version
	moved, err = repo.UpdateStatus(ctx, order.ID, enums.OrderStatusPending, enums.OrderStatusCancelled, 2, nil)
	require.NoError(t, err)
	require.False(t, moved)
}

func TestRepository_ListForUser(t *testing.T) {
	db := newRepoTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	userID := uuid.New()
	for i := 0; i < 3; i++ {
		seedOrder(t, db, func(o *models.Order) {
			o.UserID = &userID
			o.CreatedAt = time.Date(2026, time.March, 10+i, 0, 0, 0, 0, time.UTC)
		})
	}
	otherID := uuid.New()
	seedOrder(t, db, func(o *models.Order) { o.UserID = &otherID })

	rows, err := repo.ListForUser(ctx, userID, 10, 0)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.True(t, rows[0].CreatedAt.After(rows[1].CreatedAt))
	require.Len(t, rows[0].Items, 1)

	paged, err := repo.ListForUser(ctx, userID, 2, 2)
	require.NoError(t, err)
	require.Len(t, paged, 1)
}
