package discounts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vendora-market/vendora-backend/internal/orders"
	"github.com/vendora-market/vendora-backend/pkg/db"
	"github.com/vendora-market/vendora-backend/pkg/db/models"
	"github.com/vendora-market/vendora-backend/pkg/enums"
	apperrors "github.com/vendora-market/vendora-backend/pkg/errors"
)

const casAttempts = 5

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service validates and atomically redeems discount instruments against an
// order. Coupons apply before gift cards; the coupon shrinks the subtotal
// the gift card then draws against.
type Service interface {
	ApplyCoupon(ctx context.Context, orderID uuid.UUID, code string) (*models.Order, error)
	ApplyGiftCard(ctx context.Context, orderID uuid.UUID, code string) (*models.Order, error)
}

// ServiceParams carries the dependencies for NewService.
type ServiceParams struct {
	Tx         txRunner
	Repo       Repository
	OrdersRepo orders.Repository
	Now        func() time.Time
}

type service struct {
	tx         txRunner
	repo       Repository
	ordersRepo orders.Repository
	now        func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("discounts repository required")
	}
	if params.OrdersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Now == nil {
		params.Now = time.Now
	}
	return &service{
		tx:         params.Tx,
		repo:       params.Repo,
		ordersRepo: params.OrdersRepo,
		now:        params.Now,
	}, nil
}

func (s *service) ApplyCoupon(ctx context.Context, orderID uuid.UUID, code string) (*models.Order, error) {
	if code == "" {
		return nil, apperrors.New(apperrors.CodeValidation, "coupon code required")
	}

	var result *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		ordersRepo := s.ordersRepo.WithTx(tx)

		order, err := loadAdjustableOrder(ctx, ordersRepo, orderID)
		if err != nil {
			return err
		}

		redeemed, err := repo.HasGiftCardRedemption(ctx, orderID)
		if err != nil {
			return apperrors.Wrap(apperrors.CodeInternal, err, "checking gift card redemptions")
		}
		if redeemed {
			return apperrors.New(apperrors.CodeCouponIneligible, "coupon must be applied before a gift card")
		}

		coupon, err := repo.FindCouponByCode(ctx, code)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.New(apperrors.CodeCouponIneligible, "unknown coupon code")
			}
			return apperrors.Wrap(apperrors.CodeInternal, err, "loading coupon")
		}

		if err := s.validateCoupon(coupon, order); err != nil {
			return err
		}

		discount := couponDiscount(coupon, order.SubtotalCents)
		if discount <= 0 {
			return apperrors.New(apperrors.CodeCouponIneligible, "coupon yields no discount")
		}

		usage := &models.CouponUsage{
			CouponID:      coupon.ID,
			OrderID:       order.ID,
			DiscountCents: discount,
		}
		if err := repo.CreateCouponUsage(ctx, usage); err != nil {
			if db.IsUniqueViolation(err, "") {
				return apperrors.New(apperrors.CodeCouponIneligible, "coupon already applied to this order")
			}
			return apperrors.Wrap(apperrors.CodeInternal, err, "recording coupon usage")
		}

		bumped, err := repo.IncrementCouponUsage(ctx, coupon.ID)
		if err != nil {
			return apperrors.Wrap(apperrors.CodeInternal, err, "incrementing coupon usage")
		}
		if !bumped {
			return apperrors.New(apperrors.CodeCouponIneligible, "coupon usage limit reached")
		}

		newDiscount := order.DiscountCents + discount
		newTotal := order.SubtotalCents - newDiscount + order.ShippingCents
		if err := ordersRepo.UpdateOrder(ctx, order.ID, map[string]any{
			"discount_cents": newDiscount,
			"total_cents":    newTotal,
		}); err != nil {
			return apperrors.Wrap(apperrors.CodeInternal, err, "updating order totals")
		}

		order.DiscountCents = newDiscount
		order.TotalCents = newTotal
		result = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) validateCoupon(coupon *models.Coupon, order *models.Order) error {
	if !coupon.Active {
		return apperrors.New(apperrors.CodeCouponIneligible, "coupon is not active")
	}
	if coupon.ExpiresAt != nil && coupon.ExpiresAt.Before(s.now()) {
		return apperrors.New(apperrors.CodeCouponIneligible, "coupon has expired")
	}
	if coupon.UsageLimit != nil && coupon.UsageCount >= *coupon.UsageLimit {
		return apperrors.New(apperrors.CodeCouponIneligible, "coupon usage limit reached")
	}
	if order.SubtotalCents < coupon.MinOrderAmountCents {
		return apperrors.New(apperrors.CodeCouponIneligible, "order subtotal below coupon minimum").
			WithDetails(map[string]any{
				"min_order_amount_cents": coupon.MinOrderAmountCents,
				"subtotal_cents":         order.SubtotalCents,
			})
	}
	return nil
}

func couponDiscount(coupon *models.Coupon, subtotalCents int64) int64 {
	var discount int64
	switch coupon.DiscountType {
	case enums.DiscountTypePercentage:
		discount = subtotalCents * coupon.DiscountValue / 100
	default:
		discount = coupon.DiscountValue
	}
	if discount > subtotalCents {
		discount = subtotalCents
	}
	return discount
}

func (s *service) ApplyGiftCard(ctx context.Context, orderID uuid.UUID, code string) (*models.Order, error) {
	if code == "" {
		return nil, apperrors.New(apperrors.CodeValidation, "gift card code required")
	}

	var result *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		ordersRepo := s.ordersRepo.WithTx(tx)

		order, err := loadAdjustableOrder(ctx, ordersRepo, orderID)
		if err != nil {
			return err
		}
		if order.TotalCents <= 0 {
			return apperrors.New(apperrors.CodeValidation, "order has no outstanding amount")
		}

		amountUsed, balanceBefore, card, err := s.redeemWithRetry(ctx, repo, code, order.TotalCents)
		if err != nil {
			return err
		}

		ledgerRow := &models.GiftCardTransaction{
			GiftCardID:         card.ID,
			OrderID:            &order.ID,
			AmountCents:        -amountUsed,
			BalanceBeforeCents: balanceBefore,
			BalanceAfterCents:  balanceBefore - amountUsed,
		}
		if err := repo.AppendGiftCardTransaction(ctx, ledgerRow); err != nil {
			return apperrors.Wrap(apperrors.CodeInternal, err, "appending gift card ledger row")
		}

		newDiscount := order.DiscountCents + amountUsed
		newTotal := order.SubtotalCents - newDiscount + order.ShippingCents
		if err := ordersRepo.UpdateOrder(ctx, order.ID, map[string]any{
			"discount_cents": newDiscount,
			"total_cents":    newTotal,
		}); err != nil {
			return apperrors.Wrap(apperrors.CodeInternal, err, "updating order totals")
		}

		order.DiscountCents = newDiscount
		order.TotalCents = newTotal
		result = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// redeemWithRetry runs the optimistic balance swap, re-reading the card on
// each lost race up to casAttempts times.
func (s *service) redeemWithRetry(ctx context.Context, repo Repository, code string, requestedCents int64) (int64, int64, *models.GiftCard, error) {
	for attempt := 0; attempt < casAttempts; attempt++ {
		card, err := repo.FindGiftCardByCode(ctx, code)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return 0, 0, nil, apperrors.New(apperrors.CodeValidation, "unknown gift card code")
			}
			return 0, 0, nil, apperrors.Wrap(apperrors.CodeInternal, err, "loading gift card")
		}

		if card.Status != enums.GiftCardStatusActive {
			return 0, 0, nil, apperrors.New(apperrors.CodeValidation, "gift card is not active").
				WithDetails(map[string]any{"status": card.Status.String()})
		}
		if card.ExpiresAt != nil && card.ExpiresAt.Before(s.now()) {
			return 0, 0, nil, apperrors.New(apperrors.CodeValidation, "gift card has expired")
		}

		balance := card.CurrentBalanceCents
		amountUsed := requestedCents
		if balance < amountUsed {
			amountUsed = balance
		}
		if amountUsed < requestedCents && !card.CanBePartiallyUsed {
			return 0, 0, nil, apperrors.New(apperrors.CodeInsufficientBalance, "gift card does not cover the full amount").
				WithDetails(map[string]any{
					"balance_cents":   balance,
					"requested_cents": requestedCents,
				})
		}
		if amountUsed <= 0 {
			return 0, 0, nil, apperrors.New(apperrors.CodeInsufficientBalance, "gift card balance is empty")
		}

		newBalance := balance - amountUsed
		status := card.Status
		if newBalance == 0 {
			status = enums.GiftCardStatusRedeemed
		}

		swapped, err := repo.CompareAndSwapBalance(ctx, card.ID, balance, newBalance, status)
		if err != nil {
			return 0, 0, nil, apperrors.Wrap(apperrors.CodeInternal, err, "swapping gift card balance")
		}
		if swapped {
			return amountUsed, balance, card, nil
		}
		// Lost the race; re-read and try again.
	}
	return 0, 0, nil, apperrors.New(apperrors.CodeConflict, "gift card balance contention")
}

// loadAdjustableOrder fetches the order and rejects discount changes once
// the order has left pending or payment has started.
func loadAdjustableOrder(ctx context.Context, repo orders.Repository, orderID uuid.UUID) (*models.Order, error) {
	order, err := repo.FindOrderByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.New(apperrors.CodeNotFound, "order not found")
		}
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "loading order")
	}
	if order.Status != enums.OrderStatusPending {
		return nil, apperrors.New(apperrors.CodeStateConflict, "discounts can only apply to pending orders").
			WithDetails(map[string]any{"status": order.Status.String()})
	}
	if order.PaymentStatus != enums.PaymentStatusUnpaid {
		return nil, apperrors.New(apperrors.CodeStateConflict, "payment already started for this order")
	}
	return order, nil
}
