package models

import (
	"time"

	"github.com/google/uuid"
)

// SkuStock tracks the two counters for a sellable variant. OnHandQty is the
// physical truth; AvailableQty is what open carts have not yet claimed.
// AvailableQty is written only by the inventory ledger, OnHandQty only by the
// transaction finalizer and the (out of scope) stock-count admin path.
type SkuStock struct {
	ProductID    uuid.UUID `gorm:"column:product_id;type:uuid;primaryKey"`
	StoreID      uuid.UUID `gorm:"column:store_id;type:uuid;not null;index"`
	OnHandQty    int       `gorm:"column:on_hand_qty;not null;default:0"`
	AvailableQty int       `gorm:"column:available_qty;not null;default:0"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
