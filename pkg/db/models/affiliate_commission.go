package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AffiliateCommission is the optional sibling ledger row written when the
// order carries a referral attribution. It is computed against the seller
// net amount and paid out of the platform margin, never deducted from the
// seller a second time.
type AffiliateCommission struct {
	ID                    uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	TransactionID         uuid.UUID       `gorm:"column:transaction_id;type:uuid;not null;uniqueIndex:ux_affiliate_commissions_txn_order"`
	OrderID               uuid.UUID       `gorm:"column:order_id;type:uuid;not null;uniqueIndex:ux_affiliate_commissions_txn_order"`
	AffiliateID           uuid.UUID       `gorm:"column:affiliate_id;type:uuid;not null;index"`
	BaseAmountCents       int64           `gorm:"column:base_amount_cents;not null"`
	CommissionRate        decimal.Decimal `gorm:"column:commission_rate;type:decimal(8,6);not null"`
	CommissionAmountCents int64           `gorm:"column:commission_amount_cents;not null"`
	CappedAt              *int64          `gorm:"column:capped_at"`
	CreatedAt             time.Time       `gorm:"column:created_at;autoCreateTime"`
}

// AffiliateAttribution links an order to the referral that produced it.
type AffiliateAttribution struct {
	ID                        uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID                   uuid.UUID       `gorm:"column:order_id;type:uuid;not null;unique"`
	AffiliateID               uuid.UUID       `gorm:"column:affiliate_id;type:uuid;not null;index"`
	CommissionRate            decimal.Decimal `gorm:"column:commission_rate;type:decimal(8,6);not null"`
	MaxCommissionPerSaleCents *int64          `gorm:"column:max_commission_per_sale_cents"`
	CreatedAt                 time.Time       `gorm:"column:created_at;autoCreateTime"`
}
