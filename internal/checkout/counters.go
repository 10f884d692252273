package checkout

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/vendora-market/vendora-backend/pkg/db/models"
)

// CounterRepository maintains the date-bucketed order number counters.
type CounterRepository struct {
	db *gorm.DB
}

func NewCounterRepository(db *gorm.DB) *CounterRepository {
	return &CounterRepository{db: db}
}

// PruneBuckets deletes counter rows for days before the cutoff. Order
// numbers embed their bucket, so old counters carry no information once the
// day has passed; pruning keeps the table from growing forever.
func (r *CounterRepository) PruneBuckets(ctx context.Context, before time.Time) (int64, error) {
	bucket := before.UTC().Format("20060102")
	result := r.db.WithContext(ctx).
		Where("bucket < ?", bucket).
		Delete(&models.OrderNumberCounter{})
	return result.RowsAffected, result.Error
}
