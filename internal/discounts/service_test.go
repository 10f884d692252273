package discounts

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vendora-market/vendora-backend/internal/orders"
	"github.com/vendora-market/vendora-backend/pkg/db/models"
	"github.com/vendora-market/vendora-backend/pkg/enums"
	apperrors "github.com/vendora-market/vendora-backend/pkg/errors"
)

var testNow = time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)

func TestApplyCouponMinimumSubtotal(t *testing.T) {
	t.Parallel()

	coupon := &models.Coupon{
		ID:                  uuid.New(),
		Code:                "SAVE10",
		DiscountType:        enums.DiscountTypeFixed,
		DiscountValue:       1000,
		MinOrderAmountCents: 5000,
		Active:              true,
	}

	t.Run("below minimum rejected", func(t *testing.T) {
		repo := newStubDiscountsRepo()
		repo.coupons["SAVE10"] = cloneCoupon(coupon)
		ordersRepo, orderID := newStubOrderStore(4000)
		service := buildDiscountService(t, repo, ordersRepo)

		_, err := service.ApplyCoupon(context.Background(), orderID, "SAVE10")
		if !apperrors.HasCode(err, apperrors.CodeCouponIneligible) {
			t.Fatalf("expected coupon ineligible, got %v", err)
		}
		if len(repo.usages) != 0 {
			t.Fatalf("no usage row should exist, got %d", len(repo.usages))
		}
	})

	t.Run("above minimum applied once", func(t *testing.T) {
		repo := newStubDiscountsRepo()
		repo.coupons["SAVE10"] = cloneCoupon(coupon)
		ordersRepo, orderID := newStubOrderStore(6000)
		service := buildDiscountService(t, repo, ordersRepo)

		updated, err := service.ApplyCoupon(context.Background(), orderID, "SAVE10")
		if err != nil {
			t.Fatalf("apply coupon: %v", err)
		}
		if updated.DiscountCents != 1000 {
			t.Fatalf("discount mismatch: %d", updated.DiscountCents)
		}
		if updated.TotalCents != 5000 {
			t.Fatalf("total mismatch: %d", updated.TotalCents)
		}
		if len(repo.usages) != 1 {
			t.Fatalf("expected 1 usage row, got %d", len(repo.usages))
		}

		_, err = service.ApplyCoupon(context.Background(), orderID, "SAVE10")
		if !apperrors.HasCode(err, apperrors.CodeCouponIneligible) {
			t.Fatalf("re-application should be rejected, got %v", err)
		}
	})
}

func TestApplyCouponValidation(t *testing.T) {
	t.Parallel()

	expired := testNow.Add(-time.Hour)
	limit := 3

	cases := []struct {
		name   string
		coupon *models.Coupon
	}{
		{
			name: "expired",
			coupon: &models.Coupon{
				ID: uuid.New(), Code: "C", DiscountType: enums.DiscountTypeFixed,
				DiscountValue: 100, Active: true, ExpiresAt: &expired,
			},
		},
		{
			name: "inactive",
			coupon: &models.Coupon{
				ID: uuid.New(), Code: "C", DiscountType: enums.DiscountTypeFixed,
				DiscountValue: 100, Active: false,
			},
		},
		{
			name: "usage cap reached",
			coupon: &models.Coupon{
				ID: uuid.New(), Code: "C", DiscountType: enums.DiscountTypeFixed,
				DiscountValue: 100, Active: true, UsageLimit: &limit, UsageCount: 3,
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := newStubDiscountsRepo()
			repo.coupons["C"] = tc.coupon
			ordersRepo, orderID := newStubOrderStore(10000)
			service := buildDiscountService(t, repo, ordersRepo)

			_, err := service.ApplyCoupon(context.Background(), orderID, "C")
			if !apperrors.HasCode(err, apperrors.CodeCouponIneligible) {
				t.Fatalf("expected coupon ineligible, got %v", err)
			}
		})
	}
}

func TestApplyCouponPercentage(t *testing.T) {
	t.Parallel()

	repo := newStubDiscountsRepo()
	repo.coupons["PCT25"] = &models.Coupon{
		ID:            uuid.New(),
		Code:          "PCT25",
		DiscountType:  enums.DiscountTypePercentage,
		DiscountValue: 25,
		Active:        true,
	}
	ordersRepo, orderID := newStubOrderStore(8000)
	service := buildDiscountService(t, repo, ordersRepo)

	updated, err := service.ApplyCoupon(context.Background(), orderID, "PCT25")
	if err != nil {
		t.Fatalf("apply coupon: %v", err)
	}
	if updated.DiscountCents != 2000 {
		t.Fatalf("discount mismatch: %d", updated.DiscountCents)
	}
	if updated.TotalCents != 6000 {
		t.Fatalf("total mismatch: %d", updated.TotalCents)
	}
}

func TestApplyCouponRejectedAfterGiftCard(t *testing.T) {
	t.Parallel()

	repo := newStubDiscountsRepo()
	repo.coupons["LATE"] = &models.Coupon{
		ID: uuid.New(), Code: "LATE", DiscountType: enums.DiscountTypeFixed,
		DiscountValue: 500, Active: true,
	}
	ordersRepo, orderID := newStubOrderStore(10000)
	repo.redeemedOrders[orderID] = true
	service := buildDiscountService(t, repo, ordersRepo)

	_, err := service.ApplyCoupon(context.Background(), orderID, "LATE")
	if !apperrors.HasCode(err, apperrors.CodeCouponIneligible) {
		t.Fatalf("expected coupon ineligible, got %v", err)
	}
}

func TestApplyGiftCardPartialUse(t *testing.T) {
	t.Parallel()

	repo := newStubDiscountsRepo()
	card := &models.GiftCard{
		ID:                  uuid.New(),
		Code:                "GC1",
		InitialBalanceCents: 3000,
		CurrentBalanceCents: 3000,
		Status:              enums.GiftCardStatusActive,
		CanBePartiallyUsed:  true,
	}
	repo.cards["GC1"] = card
	ordersRepo, orderID := newStubOrderStore(10000)
	service := buildDiscountService(t, repo, ordersRepo)

	updated, err := service.ApplyGiftCard(context.Background(), orderID, "GC1")
	if err != nil {
		t.Fatalf("apply gift card: %v", err)
	}
	if updated.DiscountCents != 3000 {
		t.Fatalf("discount mismatch: %d", updated.DiscountCents)
	}
	if updated.TotalCents != 7000 {
		t.Fatalf("total mismatch: %d", updated.TotalCents)
	}
	if card.CurrentBalanceCents != 0 {
		t.Fatalf("card balance should be drained, got %d", card.CurrentBalanceCents)
	}
	if card.Status != enums.GiftCardStatusRedeemed {
		t.Fatalf("card status should be redeemed, got %s", card.Status)
	}

	if len(repo.ledger) != 1 {
		t.Fatalf("expected 1 ledger row, got %d", len(repo.ledger))
	}
	row := repo.ledger[0]
	if row.BalanceBeforeCents != 3000 || row.BalanceAfterCents != 0 {
		t.Fatalf("ledger balances wrong: before=%d after=%d", row.BalanceBeforeCents, row.BalanceAfterCents)
	}
	if row.BalanceBeforeCents+row.AmountCents != row.BalanceAfterCents {
		t.Fatalf("ledger row does not replay: %+v", row)
	}
}

func TestApplyGiftCardFullUseOnly(t *testing.T) {
	t.Parallel()

	repo := newStubDiscountsRepo()
	repo.cards["GC2"] = &models.GiftCard{
		ID:                  uuid.New(),
		Code:                "GC2",
		InitialBalanceCents: 3000,
		CurrentBalanceCents: 3000,
		Status:              enums.GiftCardStatusActive,
		CanBePartiallyUsed:  false,
	}
	ordersRepo, orderID := newStubOrderStore(10000)
	service := buildDiscountService(t, repo, ordersRepo)

	_, err := service.ApplyGiftCard(context.Background(), orderID, "GC2")
	if !apperrors.HasCode(err, apperrors.CodeInsufficientBalance) {
		t.Fatalf("expected insufficient balance, got %v", err)
	}
	if len(repo.ledger) != 0 {
		t.Fatalf("no ledger row should exist, got %d", len(repo.ledger))
	}
}

func TestApplyGiftCardCoversWholeOrder(t *testing.T) {
	t.Parallel()

	repo := newStubDiscountsRepo()
	card := &models.GiftCard{
		ID:                  uuid.New(),
		Code:                "GC3",
		InitialBalanceCents: 20000,
		CurrentBalanceCents: 20000,
		Status:              enums.GiftCardStatusActive,
		CanBePartiallyUsed:  false,
	}
	repo.cards["GC3"] = card
	ordersRepo, orderID := newStubOrderStore(10000)
	service := buildDiscountService(t, repo, ordersRepo)

	updated, err := service.ApplyGiftCard(context.Background(), orderID, "GC3")
	if err != nil {
		t.Fatalf("apply gift card: %v", err)
	}
	if updated.TotalCents != 0 {
		t.Fatalf("total should be zero, got %d", updated.TotalCents)
	}
	if card.CurrentBalanceCents != 10000 {
		t.Fatalf("card balance mismatch: %d", card.CurrentBalanceCents)
	}
	if card.Status != enums.GiftCardStatusActive {
		t.Fatalf("card with remaining balance stays active, got %s", card.Status)
	}
}

func TestApplyGiftCardRetriesLostSwap(t *testing.T) {
	t.Parallel()

	repo := newStubDiscountsRepo()
	repo.cards["GC4"] = &models.GiftCard{
		ID:                  uuid.New(),
		Code:                "GC4",
		InitialBalanceCents: 5000,
		CurrentBalanceCents: 5000,
		Status:              enums.GiftCardStatusActive,
		CanBePartiallyUsed:  true,
	}
	repo.failSwaps = 2
	ordersRepo, orderID := newStubOrderStore(4000)
	service := buildDiscountService(t, repo, ordersRepo)

	updated, err := service.ApplyGiftCard(context.Background(), orderID, "GC4")
	if err != nil {
		t.Fatalf("apply gift card after retries: %v", err)
	}
	if updated.TotalCents != 0 {
		t.Fatalf("total mismatch: %d", updated.TotalCents)
	}
	if repo.swapCalls != 3 {
		t.Fatalf("expected 3 swap attempts, got %d", repo.swapCalls)
	}
}

func TestApplyGiftCardGivesUpAfterBoundedRetries(t *testing.T) {
	t.Parallel()

	repo := newStubDiscountsRepo()
	repo.cards["GC5"] = &models.GiftCard{
		ID:                  uuid.New(),
		Code:                "GC5",
		InitialBalanceCents: 5000,
		CurrentBalanceCents: 5000,
		Status:              enums.GiftCardStatusActive,
		CanBePartiallyUsed:  true,
	}
	repo.failSwaps = casAttempts + 1
	ordersRepo, orderID := newStubOrderStore(4000)
	service := buildDiscountService(t, repo, ordersRepo)

	_, err := service.ApplyGiftCard(context.Background(), orderID, "GC5")
	if !apperrors.HasCode(err, apperrors.CodeConflict) {
		t.Fatalf("expected conflict after bounded retries, got %v", err)
	}
}

func buildDiscountService(t *testing.T, repo Repository, ordersRepo orders.Repository) Service {
	t.Helper()

	service, err := NewService(ServiceParams{
		Tx:         stubTxRunner{},
		Repo:       repo,
		OrdersRepo: ordersRepo,
		Now:        func() time.Time { return testNow },
	})
	if err != nil {
		t.Fatalf("build service: %v", err)
	}
	return service
}

func cloneCoupon(c *models.Coupon) *models.Coupon {
	copied := *c
	return &copied
}

var errDuplicateUsage = errors.New("UNIQUE constraint failed: coupon_usages.coupon_id, coupon_usages.order_id")

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type stubDiscountsRepo struct {
	coupons        map[string]*models.Coupon
	cards          map[string]*models.GiftCard
	usages         []models.CouponUsage
	ledger         []models.GiftCardTransaction
	redeemedOrders map[uuid.UUID]bool
	failSwaps      int
	swapCalls      int
}

func newStubDiscountsRepo() *stubDiscountsRepo {
	return &stubDiscountsRepo{
		coupons:        map[string]*models.Coupon{},
		cards:          map[string]*models.GiftCard{},
		redeemedOrders: map[uuid.UUID]bool{},
	}
}

func (s *stubDiscountsRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubDiscountsRepo) FindCouponByCode(ctx context.Context, code string) (*models.Coupon, error) {
	coupon, ok := s.coupons[code]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return coupon, nil
}

func (s *stubDiscountsRepo) CreateCouponUsage(ctx context.Context, usage *models.CouponUsage) error {
	for _, existing := range s.usages {
		if existing.CouponID == usage.CouponID && existing.OrderID == usage.OrderID {
			return errDuplicateUsage
		}
	}
	usage.ID = uuid.New()
	s.usages = append(s.usages, *usage)
	return nil
}

func (s *stubDiscountsRepo) IncrementCouponUsage(ctx context.Context, couponID uuid.UUID) (bool, error) {
	for _, coupon := range s.coupons {
		if coupon.ID != couponID {
			continue
		}
		if coupon.UsageLimit != nil && coupon.UsageCount >= *coupon.UsageLimit {
			return false, nil
		}
		coupon.UsageCount++
		return true, nil
	}
	return false, nil
}

func (s *stubDiscountsRepo) FindGiftCardByCode(ctx context.Context, code string) (*models.GiftCard, error) {
	card, ok := s.cards[code]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *card
	return &copied, nil
}

func (s *stubDiscountsRepo) CompareAndSwapBalance(ctx context.Context, cardID uuid.UUID, oldBalance, newBalance int64, status enums.GiftCardStatus) (bool, error) {
	s.swapCalls++
	if s.failSwaps > 0 {
		s.failSwaps--
		return false, nil
	}
	for _, card := range s.cards {
		if card.ID != cardID || card.CurrentBalanceCents != oldBalance {
			continue
		}
		card.CurrentBalanceCents = newBalance
		card.Status = status
		return true, nil
	}
	return false, nil
}

func (s *stubDiscountsRepo) AppendGiftCardTransaction(ctx context.Context, row *models.GiftCardTransaction) error {
	row.ID = uuid.New()
	s.ledger = append(s.ledger, *row)
	return nil
}

func (s *stubDiscountsRepo) HasGiftCardRedemption(ctx context.Context, orderID uuid.UUID) (bool, error) {
	return s.redeemedOrders[orderID], nil
}

func (s *stubDiscountsRepo) ListGiftCardTransactions(ctx context.Context, cardID uuid.UUID) ([]models.GiftCardTransaction, error) {
	var rows []models.GiftCardTransaction
	for _, row := range s.ledger {
		if row.GiftCardID == cardID {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

type stubOrderRepo struct {
	orders map[uuid.UUID]*models.Order
}

func newStubOrderStore(subtotalCents int64) (*stubOrderRepo, uuid.UUID) {
	order := &models.Order{
		ID:            uuid.New(),
		OrderGroupID:  uuid.New(),
		SellerID:      uuid.New(),
		OrderNumber:   "ORD-20260815-0001",
		Status:        enums.OrderStatusPending,
		PaymentStatus: enums.PaymentStatusUnpaid,
		Currency:      enums.CurrencyUSD,
		SubtotalCents: subtotalCents,
		TotalCents:    subtotalCents,
	}
	repo := &stubOrderRepo{orders: map[uuid.UUID]*models.Order{order.ID: order}}
	return repo, order.ID
}

func (s *stubOrderRepo) WithTx(tx *gorm.DB) orders.Repository { return s }

func (s *stubOrderRepo) CreateOrderGroup(ctx context.Context, group *models.OrderGroup) (*models.OrderGroup, error) {
	return group, nil
}

func (s *stubOrderRepo) CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error) {
	return order, nil
}

func (s *stubOrderRepo) CreateOrderItems(ctx context.Context, items []models.OrderItem) error {
	return nil
}

func (s *stubOrderRepo) FindOrderGroupByID(ctx context.Context, id uuid.UUID) (*models.OrderGroup, error) {
	return nil, gorm.ErrRecordNotFound
}

func (s *stubOrderRepo) FindOrderByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	order, ok := s.orders[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *order
	return &copied, nil
}

func (s *stubOrderRepo) UpdateOrder(ctx context.Context, orderID uuid.UUID, updates map[string]any) error {
	order, ok := s.orders[orderID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if v, ok := updates["discount_cents"].(int64); ok {
		order.DiscountCents = v
	}
	if v, ok := updates["total_cents"].(int64); ok {
		order.TotalCents = v
	}
	return nil
}

func (s *stubOrderRepo) FindAttributionByOrder(ctx context.Context, orderID uuid.UUID) (*models.AffiliateAttribution, error) {
	return nil, nil
}

func (s *stubOrderRepo) CreateAttribution(ctx context.Context, attribution *models.AffiliateAttribution) error {
	return nil
}
