package discounts

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vendora-market/vendora-backend/pkg/db/models"
	"github.com/vendora-market/vendora-backend/pkg/enums"
)

// Repository manages persistence for coupons and gift cards.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindCouponByCode(ctx context.Context, code string) (*models.Coupon, error)
	CreateCouponUsage(ctx context.Context, usage *models.CouponUsage) error
	IncrementCouponUsage(ctx context.Context, couponID uuid.UUID) (bool, error)
	FindGiftCardByCode(ctx context.Context, code string) (*models.GiftCard, error)
	CompareAndSwapBalance(ctx context.Context, cardID uuid.UUID, oldBalance, newBalance int64, status enums.GiftCardStatus) (bool, error)
	AppendGiftCardTransaction(ctx context.Context, row *models.GiftCardTransaction) error
	HasGiftCardRedemption(ctx context.Context, orderID uuid.UUID) (bool, error)
	ListGiftCardTransactions(ctx context.Context, cardID uuid.UUID) ([]models.GiftCardTransaction, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a discounts repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindCouponByCode(ctx context.Context, code string) (*models.Coupon, error) {
	var coupon models.Coupon
	if err := r.db.WithContext(ctx).First(&coupon, "code = ?", code).Error; err != nil {
		return nil, err
	}
	return &coupon, nil
}

func (r *repository) CreateCouponUsage(ctx context.Context, usage *models.CouponUsage) error {
	return r.db.WithContext(ctx).Create(usage).Error
}

// IncrementCouponUsage bumps the usage counter only while it is under the
// cap; the false return means the cap was hit by a concurrent application.
func (r *repository) IncrementCouponUsage(ctx context.Context, couponID uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).Exec(
		`UPDATE coupons
		 SET usage_count = usage_count + 1, updated_at = ?
		 WHERE id = ? AND (usage_limit IS NULL OR usage_count < usage_limit)`,
		time.Now(), couponID,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) FindGiftCardByCode(ctx context.Context, code string) (*models.GiftCard, error) {
	var card models.GiftCard
	if err := r.db.WithContext(ctx).First(&card, "code = ?", code).Error; err != nil {
		return nil, err
	}
	return &card, nil
}

// CompareAndSwapBalance writes the new balance only if the stored balance
// still equals the one the caller read. The false return signals the caller
// lost the race and must re-read.
func (r *repository) CompareAndSwapBalance(ctx context.Context, cardID uuid.UUID, oldBalance, newBalance int64, status enums.GiftCardStatus) (bool, error) {
	result := r.db.WithContext(ctx).Exec(
		`UPDATE gift_cards
		 SET current_balance_cents = ?, status = ?, updated_at = ?
		 WHERE id = ? AND current_balance_cents = ?`,
		newBalance, status, time.Now(), cardID, oldBalance,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) AppendGiftCardTransaction(ctx context.Context, row *models.GiftCardTransaction) error {
	return r.db.WithContext(ctx).Create(row).Error
}

func (r *repository) HasGiftCardRedemption(ctx context.Context, orderID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.GiftCardTransaction{}).
		Where("order_id = ?", orderID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repository) ListGiftCardTransactions(ctx context.Context, cardID uuid.UUID) ([]models.GiftCardTransaction, error) {
	var rows []models.GiftCardTransaction
	err := r.db.WithContext(ctx).
		Where("gift_card_id = ?", cardID).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
