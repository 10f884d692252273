package models

import (
	"time"

	"github.com/google/uuid"
)

// OrderGroup links the per-seller orders produced by one checkout attempt.
type OrderGroup struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	BuyerRef  string    `gorm:"column:buyer_ref;not null"`
	Orders    []Order   `gorm:"foreignKey:OrderGroupID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

// Complete reports whether every child order reached a terminal status.
// An empty group is not complete; the splitter never creates one.
func (g OrderGroup) Complete() bool {
	if len(g.Orders) == 0 {
		return false
	}
	for _, order := range g.Orders {
		if !order.Status.IsTerminal() {
			return false
		}
	}
	return true
}
