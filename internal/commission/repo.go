package commission

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vendora-market/vendora-backend/pkg/db/models"
)

// Repository persists the immutable commission ledgers.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreatePlatformCommission(ctx context.Context, row *models.PlatformCommission) error
	CreateAffiliateCommission(ctx context.Context, row *models.AffiliateCommission) error
	ListPlatformCommissionsByTransaction(ctx context.Context, txnID uuid.UUID) ([]models.PlatformCommission, error)
	ListAffiliateCommissionsByTransaction(ctx context.Context, txnID uuid.UUID) ([]models.AffiliateCommission, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a commission repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreatePlatformCommission(ctx context.Context, row *models.PlatformCommission) error {
	return r.db.WithContext(ctx).Create(row).Error
}

func (r *repository) CreateAffiliateCommission(ctx context.Context, row *models.AffiliateCommission) error {
	return r.db.WithContext(ctx).Create(row).Error
}

func (r *repository) ListPlatformCommissionsByTransaction(ctx context.Context, txnID uuid.UUID) ([]models.PlatformCommission, error) {
	var rows []models.PlatformCommission
	err := r.db.WithContext(ctx).
		Where("transaction_id = ?", txnID).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) ListAffiliateCommissionsByTransaction(ctx context.Context, txnID uuid.UUID) ([]models.AffiliateCommission, error) {
	var rows []models.AffiliateCommission
	err := r.db.WithContext(ctx).
		Where("transaction_id = ?", txnID).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
