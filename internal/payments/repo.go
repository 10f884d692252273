package payments

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vendora-market/vendora-backend/pkg/db/models"
	"github.com/vendora-market/vendora-backend/pkg/enums"
)

// Repository manages persistence for payment transactions.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateTransaction(ctx context.Context, txn *models.Transaction) (*models.Transaction, error)
	UpdateTransaction(ctx context.Context, id uuid.UUID, updates map[string]any) error
	FindTransactionByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error)
	FindTransactionByIdempotencyKey(ctx context.Context, key string) (*models.Transaction, error)
	FindTransactionByProviderRef(ctx context.Context, ref string) (*models.Transaction, error)
	LatestAttempt(ctx context.Context, groupID uuid.UUID) (int, error)
	HasCompletedTransaction(ctx context.Context, groupID uuid.UUID) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a payments repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateTransaction(ctx context.Context, txn *models.Transaction) (*models.Transaction, error) {
	if err := r.db.WithContext(ctx).Create(txn).Error; err != nil {
		return nil, err
	}
	return txn, nil
}

func (r *repository) UpdateTransaction(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	result := r.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Where("id = ?", id).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repository) FindTransactionByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	var txn models.Transaction
	if err := r.db.WithContext(ctx).First(&txn, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &txn, nil
}

func (r *repository) FindTransactionByIdempotencyKey(ctx context.Context, key string) (*models.Transaction, error) {
	var txn models.Transaction
	if err := r.db.WithContext(ctx).First(&txn, "idempotency_key = ?", key).Error; err != nil {
		return nil, err
	}
	return &txn, nil
}

func (r *repository) FindTransactionByProviderRef(ctx context.Context, ref string) (*models.Transaction, error) {
	var txn models.Transaction
	if err := r.db.WithContext(ctx).First(&txn, "provider_ref = ?", ref).Error; err != nil {
		return nil, err
	}
	return &txn, nil
}

// LatestAttempt returns the highest attempt number recorded for the group,
// zero when the group has no transactions yet.
func (r *repository) LatestAttempt(ctx context.Context, groupID uuid.UUID) (int, error) {
	var txn models.Transaction
	err := r.db.WithContext(ctx).
		Where("order_group_id = ?", groupID).
		Order("attempt DESC").
		First(&txn).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return txn.Attempt, nil
}

func (r *repository) HasCompletedTransaction(ctx context.Context, groupID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Where("order_group_id = ? AND status = ?", groupID, enums.TransactionStatusCompleted).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
