package reconcile

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vendora-market/vendora-backend/pkg/db/models"
	"github.com/vendora-market/vendora-backend/pkg/enums"
)

// Repository exposes the queries the orphan sweeps need. Candidate listing
// runs outside any transaction; the mutating calls run inside one so every
// candidate can be re-checked under the same snapshot that deletes it.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	ListStalePendingTransactions(ctx context.Context, cutoff time.Time, limit int) ([]models.Transaction, error)
	FindTransactionByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error)
	MarkTransactionFailed(ctx context.Context, id uuid.UUID, reason string) error
	HasCompletedTransaction(ctx context.Context, groupID uuid.UUID) (bool, error)
	ListPendingOrdersByGroup(ctx context.Context, groupID uuid.UUID) ([]models.Order, error)
	CancelOrder(ctx context.Context, id uuid.UUID, at time.Time) error
	ListStaleGroupIDs(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error)
	FindGroupForPurge(ctx context.Context, id uuid.UUID) (*models.OrderGroup, error)
	PurgeGroup(ctx context.Context, id uuid.UUID) (int, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a reconcile repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) ListStalePendingTransactions(ctx context.Context, cutoff time.Time, limit int) ([]models.Transaction, error) {
	var rows []models.Transaction
	err := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", enums.TransactionStatusPending, cutoff).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) FindTransactionByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	var txn models.Transaction
	if err := r.db.WithContext(ctx).First(&txn, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &txn, nil
}

func (r *repository) MarkTransactionFailed(ctx context.Context, id uuid.UUID, reason string) error {
	return r.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Where("id = ? AND status = ?", id, enums.TransactionStatusPending).
		Updates(map[string]any{
			"status":         enums.TransactionStatusFailed,
			"failure_reason": reason,
		}).Error
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

func (r *repository) ListPendingOrdersByGroup(ctx context.Context, groupID uuid.UUID) ([]models.Order, error) {
	var rows []models.Order
	err := r.db.WithContext(ctx).
		Where("order_group_id = ? AND status = ?", groupID, enums.OrderStatusPending).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) CancelOrder(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", id, enums.OrderStatusPending).
		Updates(map[string]any{
			"status":       enums.OrderStatusCancelled,
			"cancelled_at": at,
		}).Error
}

// ListStaleGroupIDs finds groups past the cutoff with at least one order
// still stuck in pending and no settled transaction. A sibling order that
// progressed does not shield the group: a multi-seller checkout is
// commercially meaningless once even one leg never completed.
func (r *repository) ListStaleGroupIDs(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.OrderGroup{}).
		Where("created_at < ?", cutoff).
		Where("NOT EXISTS (SELECT 1 FROM transactions t WHERE t.order_group_id = order_groups.id AND t.status = ?)", enums.TransactionStatusCompleted).
		Where("EXISTS (SELECT 1 FROM orders o WHERE o.order_group_id = order_groups.id AND o.status = ?)", enums.OrderStatusPending).
		Order("created_at ASC").
		Limit(limit).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *repository) FindGroupForPurge(ctx context.Context, id uuid.UUID) (*models.OrderGroup, error) {
	var group models.OrderGroup
	err := r.db.WithContext(ctx).
		Preload("Orders").
		First(&group, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &group, nil
}

// PurgeGroup removes the group and everything hanging off it. Returns the
// number of orders removed.
func (r *repository) PurgeGroup(ctx context.Context, id uuid.UUID) (int, error) {
	db := r.db.WithContext(ctx)

	err := db.
		Where("order_id IN (?)", db.Session(&gorm.Session{NewDB: true}).
			Model(&models.Order{}).
			Select("id").
			Where("order_group_id = ?", id)).
		Delete(&models.OrderItem{}).Error
	if err != nil {
		return 0, err
	}

	orders := db.Where("order_group_id = ?", id).Delete(&models.Order{})
	if orders.Error != nil {
		return 0, orders.Error
	}

	if err := db.Where("order_group_id = ?", id).Delete(&models.Transaction{}).Error; err != nil {
		return 0, err
	}
	if err := db.Where("id = ?", id).Delete(&models.OrderGroup{}).Error; err != nil {
		return 0, err
	}
	return int(orders.RowsAffected), nil
}
