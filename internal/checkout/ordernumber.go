package checkout

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/vendora-market/vendora-backend/pkg/db"
	apperrors "github.com/vendora-market/vendora-backend/pkg/errors"
)

const (
	orderNumberPrefix    = "ORD"
	counterAllocAttempts = 3
)

// NextOrderNumber allocates the next number in the day's bucket and formats
// it as ORD-YYYYMMDD-NNNN. Must run inside the caller's transaction so the
// allocated value commits or rolls back with the orders that use it.
//
// The counter row is created lazily; two transactions racing to create the
// same bucket resolve through the unique bucket key and a bounded retry.
func NextOrderNumber(ctx context.Context, tx *gorm.DB, now time.Time) (string, error) {
	bucket := now.UTC().Format("20060102")

	for attempt := 0; attempt < counterAllocAttempts; attempt++ {
		value, err := incrementBucket(ctx, tx, bucket)
		if err == nil {
			return fmt.Sprintf("%s-%s-%04d", orderNumberPrefix, bucket, value), nil
		}
		if !db.IsUniqueViolation(err, "") {
			return "", apperrors.Wrap(apperrors.CodeInternal, err, "allocating order number")
		}
	}
	return "", apperrors.New(apperrors.CodeConflict, "order number allocation contention")
}

func incrementBucket(ctx context.Context, tx *gorm.DB, bucket string) (int64, error) {
	result := tx.WithContext(ctx).Exec(
		"UPDATE order_number_counters SET last_value = last_value + 1 WHERE bucket = ?",
		bucket,
	)
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected == 0 {
		// First order of the day; the insert races with concurrent checkouts.
		insert := tx.WithContext(ctx).Exec(
			"INSERT INTO order_number_counters (bucket, last_value) VALUES (?, 1)",
			bucket,
		)
		if insert.Error != nil {
			return 0, insert.Error
		}
		return 1, nil
	}

	var value int64
	row := tx.WithContext(ctx).Raw(
		"SELECT last_value FROM order_number_counters WHERE bucket = ?",
		bucket,
	).Scan(&value)
	if row.Error != nil {
		return 0, row.Error
	}
	return value, nil
}

// ParseOrderNumberBucket extracts the YYYYMMDD bucket from a formatted
// order number. Used by reporting and tests.
func ParseOrderNumberBucket(orderNumber string) (string, bool) {
	parts := strings.Split(orderNumber, "-")
	if len(parts) != 3 || parts[0] != orderNumberPrefix || len(parts[1]) != 8 {
		return "", false
	}
	return parts[1], true
}
