package cart

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/products"
	"github.com/angelmondragon/storefront-backend/pkg/clock"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

var errDuplicateLine = errors.New(`duplicate key value violates unique constraint "uq_cart_items_cart_product_variant"`)

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type stubCartRepo struct {
	activeCarts     []*models.Cart
	activeErrs      []error
	activeCalls     int
	byID            map[uuid.UUID]*models.Cart
	createErr       error
	created         *models.Cart
	item            *models.CartItem
	findItemErr     error
	incrementRes    []bool
	incrementErr    error
	incrementCalls  int
	insertErrs      []error
	insertCalls     int
	inserted        []*models.CartItem
	deletedItems    []uuid.UUID
	updatedQty      map[uuid.UUID]int
	recomputeCalls  int
	bumpCalls       int
	reassignedTo    *uuid.UUID
	mergedCartID    *uuid.UUID
	clearedCarts    []uuid.UUID
	completeResults []bool
}

func newStubCartRepo() *stubCartRepo {
	return &stubCartRepo{
		byID:       map[uuid.UUID]*models.Cart{},
		updatedQty: map[uuid.UUID]int{},
	}
}

func (s *stubCartRepo) WithTx(tx *gorm.DB) CartRepository { return s }

func (s *stubCartRepo) FindActiveByOwner(ctx context.Context, owner Owner) (*models.Cart, error) {
	idx := s.activeCalls
	s.activeCalls++
	if idx < len(s.activeErrs) && s.activeErrs[idx] != nil {
		return nil, s.activeErrs[idx]
	}
	if idx < len(s.activeCarts) && s.activeCarts[idx] != nil {
		return s.activeCarts[idx], nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubCartRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Cart, error) {
	if cart, ok := s.byID[id]; ok {
		return cart, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubCartRepo) Create(ctx context.Context, cart *models.Cart) (*models.Cart, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	cart.ID = uuid.New()
	cart.Status = enums.CartStatusActive
	s.created = cart
	s.byID[cart.ID] = cart
	return cart, nil
}

func (s *stubCartRepo) FindItem(ctx context.Context, cartID, itemID uuid.UUID) (*models.CartItem, error) {
	if s.findItemErr != nil {
		return nil, s.findItemErr
	}
	if s.item == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return s.item, nil
}

func (s *stubCartRepo) IncrementItemQuantity(ctx context.Context, cartID, productID uuid.UUID, variantID *uuid.UUID, delta int) (bool, error) {
	idx := s.incrementCalls
	s.incrementCalls++
	if s.incrementErr != nil {
		return false, s.incrementErr
	}
	if idx < len(s.incrementRes) {
		return s.incrementRes[idx], nil
	}
	return false, nil
}

func (s *stubCartRepo) InsertItem(ctx context.Context, item *models.CartItem) error {
	idx := s.insertCalls
	s.insertCalls++
	if idx < len(s.insertErrs) && s.insertErrs[idx] != nil {
		return s.insertErrs[idx]
	}
	s.inserted = append(s.inserted, item)
	return nil
}

func (s *stubCartRepo) UpdateItemQuantity(ctx context.Context, itemID uuid.UUID, quantity int) error {
	s.updatedQty[itemID] = quantity
	return nil
}

func (s *stubCartRepo) DeleteItem(ctx context.Context, itemID uuid.UUID) error {
	s.deletedItems = append(s.deletedItems, itemID)
	return nil
}

func (s *stubCartRepo) DeleteItemsByCart(ctx context.Context, cartID uuid.UUID) error {
	s.clearedCarts = append(s.clearedCarts, cartID)
	return nil
}

func (s *stubCartRepo) BumpVersion(ctx context.Context, cartID uuid.UUID) error {
	s.bumpCalls++
	return nil
}

func (s *stubCartRepo) RecomputeSubtotal(ctx context.Context, cartID uuid.UUID) error {
	s.recomputeCalls++
	return nil
}

func (s *stubCartRepo) Complete(ctx context.Context, cartID uuid.UUID, now time.Time) (bool, error) {
	if len(s.completeResults) == 0 {
		return true, nil
	}
	res := s.completeResults[0]
	s.completeResults = s.completeResults[1:]
	return res, nil
}

func (s *stubCartRepo) ReassignOwner(ctx context.Context, cartID, userID uuid.UUID) error {
	s.reassignedTo = &userID
	return nil
}

func (s *stubCartRepo) MarkMerged(ctx context.Context, cartID uuid.UUID) error {
	s.mergedCartID = &cartID
	return nil
}

type stubCatalog struct {
	product *models.Product
	err     error
}

func (s *stubCatalog) WithTx(tx *gorm.DB) products.Catalog { return s }

func (s *stubCatalog) FindActiveByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.product, nil
}

func (s *stubCatalog) FindActiveByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := map[uuid.UUID]models.Product{}
	if s.product != nil {
		out[s.product.ID] = *s.product
	}
	return out, nil
}

var cartTestNow = time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)

func testProduct() *models.Product {
	return &models.Product{
		ID:         uuid.New(),
		Name:       "Canvas Tote",
		SKU:        "TOTE-01",
		PriceCents: 1750,
		IsActive:   true,
	}
}

func newCartService(t *testing.T, repo CartRepository, catalog products.Catalog) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		DB:       stubTxRunner{},
		CartRepo: repo,
		Catalog:  catalog,
		Clock:    clock.Fixed(cartTestNow),
		GuestTTL: 30 * 24 * time.Hour,
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func activeCart(owner Owner) *models.Cart {
	cart := &models.Cart{
		ID:       uuid.New(),
		Status:   enums.CartStatusActive,
		Currency: enums.CurrencyUSD,
		Version:  1,
	}
	cart.UserID = owner.UserID
	cart.SessionID = owner.SessionID
	return cart
}

func TestGetOrCreate_ReturnsExistingCart(t *testing.T) {
	owner := UserOwner(uuid.New())
	existing := activeCart(owner)
	repo := newStubCartRepo()
	repo.activeCarts = []*models.Cart{existing}
	svc := newCartService(t, repo, &stubCatalog{})

	cart, err := svc.GetOrCreate(context.Background(), owner)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cart.ID != existing.ID {
		t.Errorf("expected existing cart %s, got %s", existing.ID, cart.ID)
	}
	if repo.created != nil {
		t.Error("should not create a cart when one exists")
	}
}

func TestGetOrCreate_CreatesGuestCartWithExpiry(t *testing.T) {
	owner := SessionOwner("sess-abc")
	repo := newStubCartRepo()
	svc := newCartService(t, repo, &stubCatalog{})

	cart, err := svc.GetOrCreate(context.Background(), owner)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cart.SessionID == nil || *cart.SessionID != "sess-abc" {
		t.Error("expected guest cart bound to session")
	}
	if cart.ExpiresAt == nil {
		t.Fatal("expected guest cart expiry")
	}
	want := cartTestNow.Add(30 * 24 * time.Hour)
	if !cart.ExpiresAt.Equal(want) {
		t.Errorf("expected expiry %v, got %v", want, cart.ExpiresAt)
	}
}

func TestGetOrCreate_UserCartHasNoExpiry(t *testing.T) {
	owner := UserOwner(uuid.New())
	repo := newStubCartRepo()
	svc := newCartService(t, repo, &stubCatalog{})

	cart, err := svc.GetOrCreate(context.Background(), owner)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cart.ExpiresAt != nil {
		t.Error("user carts should not expire")
	}
}

func TestGetOrCreate_LosingRacerReadsWinner(t *testing.T) {
	owner := UserOwner(uuid.New())
	winner := activeCart(owner)
	repo := newStubCartRepo()
	repo.createErr = errors.New(`duplicate key value violates unique constraint "ux_carts_active_user"`)
	repo.activeCarts = []*models.Cart{nil, winner}
	svc := newCartService(t, repo, &stubCatalog{})

	cart, err := svc.GetOrCreate(context.Background(), owner)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cart.ID != winner.ID {
		t.Errorf("expected winner cart %s, got %s", winner.ID, cart.ID)
	}
}

func TestGetOrCreate_RejectsAmbiguousOwner(t *testing.T) {
	userID := uuid.New()
	sessionID := "sess-abc"
	svc := newCartService(t, newStubCartRepo(), &stubCatalog{})

	cases := map[string]Owner{
		"neither": {},
		"both":    {UserID: &userID, SessionID: &sessionID},
	}
	for name, owner := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.GetOrCreate(context.Background(), owner)
			var appErr *pkgerrors.Error
			if !errors.As(err, &appErr) || appErr.Code() != pkgerrors.CodeValidation {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
}

func TestAddItem_IncrementsExistingLine(t *testing.T) {
	owner := UserOwner(uuid.New())
	cart := activeCart(owner)
	product := testProduct()
	repo := newStubCartRepo()
	repo.activeCarts = []*models.Cart{cart}
	repo.byID[cart.ID] = cart
	repo.incrementRes = []bool{true}
	svc := newCartService(t, repo, &stubCatalog{product: product})

	_, err := svc.AddItem(context.Background(), owner, AddItemInput{ProductID: product.ID, Quantity: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.insertCalls != 0 {
		t.Error("existing line should be incremented, not re-inserted")
	}
	if repo.recomputeCalls != 1 || repo.bumpCalls != 1 {
		t.Errorf("expected subtotal recompute and version bump, got %d/%d", repo.recomputeCalls, repo.bumpCalls)
	}
}

func TestAddItem_InsertsNewLineWithSnapshot(t *testing.T) {
	owner := UserOwner(uuid.New())
	cart := activeCart(owner)
	product := testProduct()
	repo := newStubCartRepo()
	repo.activeCarts = []*models.Cart{cart}
	repo.byID[cart.ID] = cart
	repo.incrementRes = []bool{false}
	svc := newCartService(t, repo, &stubCatalog{product: product})

	_, err := svc.AddItem(context.Background(), owner, AddItemInput{ProductID: product.ID, Quantity: 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(repo.inserted) != 1 {
		t.Fatalf("expected one inserted line, got %d", len(repo.inserted))
	}
	line := repo.inserted[0]
	if line.Quantity != 3 || line.UnitPriceCents != 1750 {
		t.Errorf("line should freeze quantity and unit price, got %d/%d", line.Quantity, line.UnitPriceCents)
	}
	if line.ProductSnapshot == nil || line.ProductSnapshot.SKU != "TOTE-01" {
		t.Error("line should carry a product snapshot")
	}
}

func TestAddItem_RetriesInsertRaceAsIncrement(t *testing.T) {
	owner := UserOwner(uuid.New())
	cart := activeCart(owner)
	product := testProduct()
	repo := newStubCartRepo()
	repo.activeCarts = []*models.Cart{cart}
	repo.byID[cart.ID] = cart
	repo.incrementRes = []bool{false, true}
	repo.insertErrs = []error{errDuplicateLine}
	svc := newCartService(t, repo, &stubCatalog{product: product})

	_, err := svc.AddItem(context.Background(), owner, AddItemInput{ProductID: product.ID, Quantity: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.incrementCalls != 2 {
		t.Errorf("expected losing insert to retry as increment, got %d increment calls", repo.incrementCalls)
	}
}

func TestAddItem_GivesUpAfterBoundedRetries(t *testing.T) {
	owner := UserOwner(uuid.New())
	cart := activeCart(owner)
	product := testProduct()
	repo := newStubCartRepo()
	repo.activeCarts = []*models.Cart{cart}
	repo.byID[cart.ID] = cart
	repo.incrementRes = []bool{false, false, false}
	repo.insertErrs = []error{errDuplicateLine, errDuplicateLine, errDuplicateLine}
	svc := newCartService(t, repo, &stubCatalog{product: product})

	_, err := svc.AddItem(context.Background(), owner, AddItemInput{ProductID: product.ID, Quantity: 1})
	var appErr *pkgerrors.Error
	if !errors.As(err, &appErr) || appErr.Code() != pkgerrors.CodeConflict {
		t.Errorf("expected conflict after exhausted retries, got %v", err)
	}
}

func TestAddItem_UnavailableProduct(t *testing.T) {
	owner := UserOwner(uuid.New())
	cart := activeCart(owner)
	repo := newStubCartRepo()
	repo.activeCarts = []*models.Cart{cart}
	svc := newCartService(t, repo, &stubCatalog{err: products.ErrNotFound})

	_, err := svc.AddItem(context.Background(), owner, AddItemInput{ProductID: uuid.New(), Quantity: 1})
	if !errors.Is(err, ErrProductUnavailable) {
		t.Errorf("expected ErrProductUnavailable, got %v", err)
	}
}

func TestAddItem_RejectsZeroQuantity(t *testing.T) {
	owner := UserOwner(uuid.New())
	svc := newCartService(t, newStubCartRepo(), &stubCatalog{product: testProduct()})

	_, err := svc.AddItem(context.Background(), owner, AddItemInput{ProductID: uuid.New(), Quantity: 0})
	var appErr *pkgerrors.Error
	if !errors.As(err, &appErr) || appErr.Code() != pkgerrors.CodeValidation {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestUpdateItemQuantity_ZeroDeletesLine(t *testing.T) {
	owner := UserOwner(uuid.New())
	cart := activeCart(owner)
	item := &models.CartItem{ID: uuid.New(), CartID: cart.ID, Quantity: 2}
	repo := newStubCartRepo()
	repo.activeCarts = []*models.Cart{cart}
	repo.byID[cart.ID] = cart
	repo.item = item
	svc := newCartService(t, repo, &stubCatalog{})

	_, err := svc.UpdateItemQuantity(context.Background(), owner, item.ID, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(repo.deletedItems) != 1 || repo.deletedItems[0] != item.ID {
		t.Error("quantity zero should delete the line")
	}
	if repo.recomputeCalls != 1 || repo.bumpCalls != 1 {
		t.Error("deletion should still recompute subtotal and bump version")
	}
}

func TestUpdateItemQuantity_SetsNewQuantity(t *testing.T) {
	owner := UserOwner(uuid.New())
	cart := activeCart(owner)
	item := &models.CartItem{ID: uuid.New(), CartID: cart.ID, Quantity: 2}
	repo := newStubCartRepo()
	repo.activeCarts = []*models.Cart{cart}
	repo.byID[cart.ID] = cart
	repo.item = item
	svc := newCartService(t, repo, &stubCatalog{})

	_, err := svc.UpdateItemQuantity(context.Background(), owner, item.ID, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.updatedQty[item.ID] != 5 {
		t.Errorf("expected quantity 5, got %d", repo.updatedQty[item.ID])
	}
}

func TestUpdateItemQuantity_MissingLine(t *testing.T) {
	owner := UserOwner(uuid.New())
	cart := activeCart(owner)
	repo := newStubCartRepo()
	repo.activeCarts = []*models.Cart{cart}
	repo.byID[cart.ID] = cart
	svc := newCartService(t, repo, &stubCatalog{})

	_, err := svc.UpdateItemQuantity(context.Background(), owner, uuid.New(), 1)
	if !errors.Is(err, ErrItemNotFound) {
		t.Errorf("expected ErrItemNotFound, got %v", err)
	}
}

func TestGet_OwnershipMismatch(t *testing.T) {
	cartOwner := UserOwner(uuid.New())
	cart := activeCart(cartOwner)
	repo := newStubCartRepo()
	repo.byID[cart.ID] = cart
	svc := newCartService(t, repo, &stubCatalog{})

	_, err := svc.Get(context.Background(), UserOwner(uuid.New()), cart.ID)
	if !errors.Is(err, ErrOwnershipMismatch) {
		t.Errorf("expected ErrOwnershipMismatch, got %v", err)
	}
}

func TestMergeGuestIntoUser_NoGuestCartFallsBackToUserCart(t *testing.T) {
	userID := uuid.New()
	userCart := activeCart(UserOwner(userID))
	repo := newStubCartRepo()
	repo.activeCarts = []*models.Cart{nil, userCart}
	repo.byID[userCart.ID] = userCart
	svc := newCartService(t, repo, &stubCatalog{})

	cart, err := svc.MergeGuestIntoUser(context.Background(), "sess-abc", userID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cart.ID != userCart.ID {
		t.Errorf("expected the user cart, got %s", cart.ID)
	}
}

func TestMergeGuestIntoUser_ReassignsWhenUserHasNoCart(t *testing.T) {
	userID := uuid.New()
	guest := activeCart(SessionOwner("sess-abc"))
	repo := newStubCartRepo()
	repo.activeCarts = []*models.Cart{guest, nil}
	repo.byID[guest.ID] = guest
	svc := newCartService(t, repo, &stubCatalog{})

	_, err := svc.MergeGuestIntoUser(context.Background(), "sess-abc", userID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.reassignedTo == nil || *repo.reassignedTo != userID {
		t.Error("guest cart should be reassigned to the user")
	}
	if repo.mergedCartID != nil {
		t.Error("reassigned cart should not be archived")
	}
}

func TestMergeGuestIntoUser_FoldsLinesAndArchivesGuest(t *testing.T) {
	userID := uuid.New()
	guest := activeCart(SessionOwner("sess-abc"))
	productA := uuid.New()
	productB := uuid.New()
	guest.Items = []models.CartItem{
		{ID: uuid.New(), CartID: guest.ID, ProductID: productA, Quantity: 2, UnitPriceCents: 500},
		{ID: uuid.New(), CartID: guest.ID, ProductID: productB, Quantity: 1, UnitPriceCents: 900},
	}
	userCart := activeCart(UserOwner(userID))
	repo := newStubCartRepo()
	repo.activeCarts = []*models.Cart{guest, userCart}
	repo.byID[userCart.ID] = userCart
	// productA already in the user cart, productB is new
	repo.incrementRes = []bool{true, false}
	svc := newCartService(t, repo, &stubCatalog{})

	cart, err := svc.MergeGuestIntoUser(context.Background(), "sess-abc", userID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cart.ID != userCart.ID {
		t.Errorf("merge should land on the user cart, got %s", cart.ID)
	}
	if len(repo.inserted) != 1 || repo.inserted[0].ProductID != productB {
		t.Error("only the unmatched line should be moved")
	}
	if repo.mergedCartID == nil || *repo.mergedCartID != guest.ID {
		t.Error("guest cart should be archived after merge")
	}
	if len(repo.clearedCarts) != 1 || repo.clearedCarts[0] != guest.ID {
		t.Error("guest cart lines should be cleared")
	}
}
