package models

import (
	"time"

	"github.com/google/uuid"
)

// Seller is a store on the platform that owns products and receives payouts.
type Seller struct {
	ID               uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name             string    `gorm:"column:name;not null"`
	Active           bool      `gorm:"column:active;not null;default:true"`
	PayoutAccountRef *string   `gorm:"column:payout_account_ref"`
	CreatedAt        time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
