package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PlatformCommission is the immutable ledger row written once per
// (completed transaction, order) pair. The rate is captured at computation
// time so the row stays auditable if platform rates change later.
// Invariant: CommissionAmountCents + SellerAmountCents == TotalAmountCents.
type PlatformCommission struct {
	ID                    uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	TransactionID         uuid.UUID       `gorm:"column:transaction_id;type:uuid;not null;uniqueIndex:ux_platform_commissions_txn_order"`
	OrderID               uuid.UUID       `gorm:"column:order_id;type:uuid;not null;uniqueIndex:ux_platform_commissions_txn_order"`
	SellerID              uuid.UUID       `gorm:"column:seller_id;type:uuid;not null;index"`
	TotalAmountCents      int64           `gorm:"column:total_amount_cents;not null"`
	CommissionRate        decimal.Decimal `gorm:"column:commission_rate;type:decimal(8,6);not null"`
	CommissionAmountCents int64           `gorm:"column:commission_amount_cents;not null"`
	SellerAmountCents     int64           `gorm:"column:seller_amount_cents;not null"`
	CreatedAt             time.Time       `gorm:"column:created_at;autoCreateTime"`
}
